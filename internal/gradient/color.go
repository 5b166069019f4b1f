package gradient

import (
	"fmt"
	"math"
)

// Color is an anchor or derived grid color. Anchors hold whole numbers in
// [0,255]; derived corners may carry a half step from averaging.
type Color struct {
	R, G, B float64
}

// RGB is an interpolated color after flooring. Channels are not clamped, so
// extrapolated positions can leave [0,255].
type RGB struct {
	R, G, B int
}

// NewColor builds a Color from 8-bit channels
func NewColor(r, g, b uint8) Color {
	return Color{R: float64(r), G: float64(g), B: float64(b)}
}

// Floor truncates each channel toward negative infinity
func (c Color) Floor() RGB {
	return RGB{
		R: int(math.Floor(c.R)),
		G: int(math.Floor(c.G)),
		B: int(math.Floor(c.B)),
	}
}

// InRange reports whether every channel lies within [0,255]
func (c Color) InRange() bool {
	return inByteRange(c.R) && inByteRange(c.G) && inByteRange(c.B)
}

func inByteRange(v float64) bool {
	return v >= 0 && v <= 255
}

// String renders the color in CSS rgb() notation
func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// Clamped limits each channel to a displayable byte
func (c RGB) Clamped() (r, g, b uint8) {
	return clampByte(c.R), clampByte(c.G), clampByte(c.B)
}

func clampByte(v int) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// Derivation selects how corner colors are averaged from their two anchors
type Derivation int

const (
	// DeriveLegacy averages the green inputs into the blue channel, matching
	// the colors the effect has always shipped with.
	DeriveLegacy Derivation = iota
	// DeriveComponentwise averages each channel with its own counterpart
	DeriveComponentwise
)

func (d Derivation) String() string {
	switch d {
	case DeriveLegacy:
		return "legacy"
	case DeriveComponentwise:
		return "componentwise"
	default:
		return "unknown"
	}
}

// Average blends two anchors into a derived corner color
func Average(a, b Color, mode Derivation) Color {
	out := Color{
		R: 0.5 * (a.R + b.R),
		G: 0.5 * (a.G + b.G),
		B: 0.5 * (a.B + b.B),
	}
	if mode == DeriveLegacy {
		out.B = 0.5 * (a.G + b.G)
	}
	return out
}
