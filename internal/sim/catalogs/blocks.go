package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// BlockType is the tag stored at a voxel coordinate.
type BlockType uint16

const (
	Air BlockType = iota
	Dirt
	Stone
	Wood
	Cobblestone
	Brick
	Battery
	Pole
	MetalPole
	Substation
	Customer
)

var blockNames = [...]string{
	Air:         "air",
	Dirt:        "dirt",
	Stone:       "stone",
	Wood:        "wood",
	Cobblestone: "cobblestone",
	Brick:       "brick",
	Battery:     "battery",
	Pole:        "pole",
	MetalPole:   "metal-pole",
	Substation:  "substation",
	Customer:    "customer",
}

func (b BlockType) String() string {
	if int(b) < len(blockNames) {
		return blockNames[b]
	}
	return fmt.Sprintf("block(%d)", uint16(b))
}

func (b BlockType) Valid() bool { return int(b) < len(blockNames) }

// IsPole reports whether conductors may attach to blocks of this type.
func (b BlockType) IsPole() bool { return b == Pole || b == MetalPole }

// IsTerrain reports natural ground. Removing it is charged, never refunded.
func (b BlockType) IsTerrain() bool { return b == Dirt }

// IsStructure reports challenge building material.
func (b BlockType) IsStructure() bool { return b == Substation || b == Customer }

// Placeable reports whether a player may place this type.
func (b BlockType) Placeable() bool {
	switch b {
	case Dirt, Stone, Wood, Cobblestone, Brick, Battery, Pole, MetalPole:
		return true
	}
	return false
}

func (b BlockType) MarshalText() ([]byte, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("unknown block type %d", uint16(b))
	}
	return []byte(blockNames[b]), nil
}

func (b *BlockType) UnmarshalText(text []byte) error {
	v, err := ParseBlockType(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func ParseBlockType(s string) (BlockType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range blockNames {
		if name == s {
			return BlockType(i), nil
		}
	}
	return Air, fmt.Errorf("unknown block type %q", s)
}

// Palette lists the types a player can pick, in hotbar order.
func Palette() []BlockType {
	out := make([]BlockType, 0, len(blockNames))
	for i := range blockNames {
		if BlockType(i).Placeable() {
			out = append(out, BlockType(i))
		}
	}
	return out
}

// PaletteDigest identifies the name table so stored scenes can detect drift.
func PaletteDigest() string {
	raw, _ := json.Marshal(blockNames[:])
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
