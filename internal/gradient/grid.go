package gradient

import (
	"errors"
	"fmt"
	"math"
)

// ErrEmptyViewport is returned when a viewport has no area to normalize against
var ErrEmptyViewport = errors.New("viewport has zero width or height")

// Anchors are the five configured colors of the grid
type Anchors struct {
	Center       Color
	TopMiddle    Color
	LeftMiddle   Color
	RightMiddle  Color
	BottomMiddle Color
}

// DefaultAnchors returns the stock purple palette
func DefaultAnchors() Anchors {
	return Anchors{
		Center:       NewColor(152, 99, 146),
		TopMiddle:    NewColor(191, 124, 178),
		LeftMiddle:   NewColor(66, 133, 244),
		RightMiddle:  NewColor(234, 67, 53),
		BottomMiddle: NewColor(88, 57, 84),
	}
}

// Validate ensures every anchor channel is a byte value
func (a Anchors) Validate() error {
	named := []struct {
		name  string
		color Color
	}{
		{"center", a.Center},
		{"top_middle", a.TopMiddle},
		{"left_middle", a.LeftMiddle},
		{"right_middle", a.RightMiddle},
		{"bottom_middle", a.BottomMiddle},
	}
	for _, n := range named {
		if !n.color.InRange() {
			return fmt.Errorf("anchor %s out of range: %+v", n.name, n.color)
		}
	}
	return nil
}

// Grid is the 3x3 color lattice: five anchors plus four derived corners.
// It is immutable once built.
type Grid struct {
	Anchors
	TopLeft     Color
	TopRight    Color
	BottomLeft  Color
	BottomRight Color
	Mode        Derivation
}

// NewGrid derives the corner colors from the anchors
func NewGrid(a Anchors, mode Derivation) Grid {
	return Grid{
		Anchors:     a,
		TopLeft:     Average(a.LeftMiddle, a.TopMiddle, mode),
		TopRight:    Average(a.TopMiddle, a.RightMiddle, mode),
		BottomLeft:  Average(a.LeftMiddle, a.BottomMiddle, mode),
		BottomRight: Average(a.BottomMiddle, a.RightMiddle, mode),
		Mode:        mode,
	}
}

// Quadrant identifies one quarter of the normalized viewport
type Quadrant int

const (
	TopLeft Quadrant = iota
	TopRight
	BottomLeft
	BottomRight
)

func (q Quadrant) String() string {
	switch q {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomLeft:
		return "bottom-left"
	case BottomRight:
		return "bottom-right"
	default:
		return "unknown"
	}
}

// Corners are a quadrant's colors at local coordinates (0,0), (0,1), (1,0), (1,1)
type Corners struct {
	X00, X01, X10, X11 Color
}

// Point is a pointer position relative to the viewport, nominally in [0,1]
type Point struct {
	X, Y float64
}

// Viewport is the pixel or cell size of the tinted surface
type Viewport struct {
	Width, Height int
}

// Normalize maps an absolute pointer position into viewport-relative units.
// The viewport is passed per event; nothing about it is remembered.
func Normalize(px, py float64, vp Viewport) (Point, error) {
	if vp.Width <= 0 || vp.Height <= 0 {
		return Point{}, fmt.Errorf("normalize (%v,%v) in %dx%d: %w", px, py, vp.Width, vp.Height, ErrEmptyViewport)
	}
	return Point{X: px / float64(vp.Width), Y: py / float64(vp.Height)}, nil
}

// Locate picks the quadrant for p and rescales p into that quadrant's unit
// square. Midline values go to the left/top side.
func (g Grid) Locate(p Point) (Quadrant, Corners, Point) {
	x, y := p.X, p.Y
	switch {
	case x > 0.5 && y > 0.5:
		return BottomRight, Corners{
			X00: g.Center,
			X01: g.BottomMiddle,
			X10: g.RightMiddle,
			X11: g.BottomRight,
		}, Point{X: 2 * (x - 0.5), Y: 2 * (y - 0.5)}
	case x > 0.5:
		return TopRight, Corners{
			X00: g.TopMiddle,
			X01: g.Center,
			X10: g.TopRight,
			X11: g.RightMiddle,
		}, Point{X: 2 * (x - 0.5), Y: 2 * y}
	case y > 0.5:
		return BottomLeft, Corners{
			X00: g.LeftMiddle,
			X01: g.BottomLeft,
			X10: g.Center,
			X11: g.BottomMiddle,
		}, Point{X: 2 * x, Y: 2 * (y - 0.5)}
	default:
		return TopLeft, Corners{
			X00: g.TopLeft,
			X01: g.LeftMiddle,
			X10: g.TopMiddle,
			X11: g.Center,
		}, Point{X: 2 * x, Y: 2 * y}
	}
}

// Bilinear blends four corner values at local coordinates (x, y)
func Bilinear(x00, x01, x10, x11, x, y float64) float64 {
	return x00*(1-x)*(1-y) + x10*x*(1-y) + x01*(1-x)*y + x11*x*y
}

// Blend interpolates all three channels of c at local coordinates without flooring
func (c Corners) Blend(local Point) Color {
	return Color{
		R: Bilinear(c.X00.R, c.X01.R, c.X10.R, c.X11.R, local.X, local.Y),
		G: Bilinear(c.X00.G, c.X01.G, c.X10.G, c.X11.G, local.X, local.Y),
		B: Bilinear(c.X00.B, c.X01.B, c.X10.B, c.X11.B, local.X, local.Y),
	}
}

// At returns the floored grid color at p. A NaN position yields channels
// that are not meaningful; callers normalize through Normalize to avoid that.
func (g Grid) At(p Point) RGB {
	_, corners, local := g.Locate(p)
	return corners.Blend(local).Floor()
}

// Sample is one evaluated position, kept for status displays
type Sample struct {
	Point    Point
	Quadrant Quadrant
	Color    RGB
}

// Sample evaluates p and reports which quadrant produced the color
func (g Grid) Sample(p Point) Sample {
	q, corners, local := g.Locate(p)
	return Sample{Point: p, Quadrant: q, Color: corners.Blend(local).Floor()}
}

// Colors lists the nine lattice colors row by row, top-left first
func (g Grid) Colors() [3][3]Color {
	return [3][3]Color{
		{g.TopLeft, g.TopMiddle, g.TopRight},
		{g.LeftMiddle, g.Center, g.RightMiddle},
		{g.BottomLeft, g.BottomMiddle, g.BottomRight},
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Finite reports whether p can be interpolated meaningfully
func (p Point) Finite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}
