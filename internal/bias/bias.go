package bias

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownBias is returned when a label is not one of the known biases
	ErrUnknownBias = errors.New("unknown bias")
	// ErrUnknownExtent is returned when a label is not one of the known extents
	ErrUnknownExtent = errors.New("unknown extent")
	// ErrUnmapped is returned when a (bias, extent) pair has no indicator position
	ErrUnmapped = errors.New("no indicator position for bias/extent pair")
)

// Bias is the direction a page leans
type Bias string

const (
	Neutral Bias = "neutral"
	Left    Bias = "left"
	Right   Bias = "right"
)

// Extent is how strongly a page leans
type Extent string

const (
	None     Extent = "none"
	Minimal  Extent = "minimal"
	Moderate Extent = "moderate"
	Strong   Extent = "strong"
	Extreme  Extent = "extreme"
)

// Biases lists every bias in display order
var Biases = []Bias{Neutral, Left, Right}

// Extents lists every extent in increasing strength
var Extents = []Extent{None, Minimal, Moderate, Strong, Extreme}

// ParseBias converts a service label into a Bias
func ParseBias(s string) (Bias, error) {
	b := Bias(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Biases {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBias, s)
}

// ParseExtent converts a service label into an Extent
func ParseExtent(s string) (Extent, error) {
	e := Extent(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Extents {
		if e == known {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownExtent, s)
}

// Key addresses one indicator position
type Key struct {
	Bias   Bias
	Extent Extent
}

// Offset is the indicator's horizontal position as a percentage of the gauge
type Offset float64

// String renders the offset the way a style attribute expects it, e.g. "79.04%"
func (o Offset) String() string {
	return strconv.FormatFloat(float64(o), 'f', -1, 64) + "%"
}

// Fraction returns the offset in [0,1]
func (o Offset) Fraction() float64 {
	return float64(o) / 100
}

var positions = map[Key]Offset{
	{Neutral, None}: 46.25,

	{Left, Minimal}:  57.18,
	{Left, Moderate}: 68.11,
	{Left, Strong}:   79.04,
	{Left, Extreme}:  89.97,

	{Right, Minimal}:  35.29,
	{Right, Moderate}: 24.36,
	{Right, Strong}:   13.43,
	{Right, Extreme}:  2.5,
}

// Lookup returns the indicator position for a bias/extent pair
func Lookup(b Bias, e Extent) (Offset, error) {
	o, ok := positions[Key{Bias: b, Extent: e}]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrUnmapped, b, e)
	}
	return o, nil
}

// Keys returns every mapped pair in display order
func Keys() []Key {
	keys := make([]Key, 0, len(positions))
	for _, b := range Biases {
		for _, e := range Extents {
			if _, ok := positions[Key{b, e}]; ok {
				keys = append(keys, Key{b, e})
			}
		}
	}
	return keys
}

// Reading is a resolved classification ready to display
type Reading struct {
	Bias   Bias   `json:"bias"`
	Extent Extent `json:"extent"`
	Offset Offset `json:"offset"`
}

// Resolve parses raw service labels and looks up their position
func Resolve(rawBias, rawExtent string) (Reading, error) {
	b, err := ParseBias(rawBias)
	if err != nil {
		return Reading{}, err
	}
	e, err := ParseExtent(rawExtent)
	if err != nil {
		return Reading{}, err
	}
	o, err := Lookup(b, e)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Bias: b, Extent: e, Offset: o}, nil
}
