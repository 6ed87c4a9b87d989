package mathx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloorDiv(t *testing.T) {
	assert.Equal(t, 2, FloorDiv(5, 2))
	assert.Equal(t, -3, FloorDiv(-5, 2))
	assert.Equal(t, -20, FloorDiv(-40, 2))
	assert.Equal(t, 0, FloorDiv(0, 7))
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0.5, 1},
		{0.49, 0},
		{-0.5, 0},
		{-0.51, -1},
		{2.5, 3},
		{-2.5, -2},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Round(tc.in), "Round(%v)", tc.in)
	}
}

func TestHashDeterministicUnit(t *testing.T) {
	a := Hash2(7, 1, 2)
	assert.Equal(t, a, Hash2(7, 1, 2))
	assert.NotEqual(t, a, Hash2(8, 1, 2))

	for i := 0; i < 100; i++ {
		u := Unit(Hash2(int64(i), i, -i))
		assert.GreaterOrEqual(t, u, 0.0)
		assert.Less(t, u, 1.0)
	}
}
