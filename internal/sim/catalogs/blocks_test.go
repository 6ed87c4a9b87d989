package catalogs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlockType(t *testing.T) {
	tests := []struct {
		in   string
		want BlockType
	}{
		{"dirt", Dirt},
		{" Metal-Pole ", MetalPole},
		{"battery", Battery},
		{"substation", Substation},
	}
	for _, tc := range tests {
		got, err := ParseBlockType(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.want, mustParse(t, got.String()))
	}

	_, err := ParseBlockType("lava")
	assert.Error(t, err)
}

func mustParse(t *testing.T, s string) BlockType {
	t.Helper()
	b, err := ParseBlockType(s)
	require.NoError(t, err)
	return b
}

func TestBlockClasses(t *testing.T) {
	assert.True(t, Pole.IsPole())
	assert.True(t, MetalPole.IsPole())
	assert.False(t, Battery.IsPole())
	assert.True(t, Dirt.IsTerrain())
	assert.False(t, Stone.IsTerrain())
	assert.True(t, Customer.IsStructure())
	assert.False(t, Substation.Placeable())
	assert.False(t, Air.Placeable())
	assert.NotContains(t, Palette(), Air)
	assert.Len(t, Palette(), 8)
}

func TestTextMarshalling(t *testing.T) {
	raw, err := Brick.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "brick", string(raw))

	var b BlockType
	require.NoError(t, b.UnmarshalText([]byte("cobblestone")))
	assert.Equal(t, Cobblestone, b)

	_, err = BlockType(99).MarshalText()
	assert.Error(t, err)
}

func TestPaletteDigestStable(t *testing.T) {
	assert.Len(t, PaletteDigest(), 64)
	assert.Equal(t, PaletteDigest(), PaletteDigest())
}
