package ui

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sawpanic/skew/internal/bias"
	"github.com/sawpanic/skew/internal/classify"
)

const (
	arrowGlyph = "▲"
	trackGlyph = "─"
)

var biasColors = map[bias.Bias]lipgloss.Color{
	bias.Neutral: lipgloss.Color("#986392"),
	bias.Left:    lipgloss.Color("#4285F4"),
	bias.Right:   lipgloss.Color("#EA4335"),
}

// Gauge renders a classification as a label above a track with a positioned arrow
type Gauge struct {
	Width int

	label lipgloss.Style
	track lipgloss.Style
	arrow lipgloss.Style
	fail  lipgloss.Style
	r     *lipgloss.Renderer
}

// NewGauge creates a gauge that renders for the terminal behind w
func NewGauge(w io.Writer, width int) *Gauge {
	if width < 2 {
		width = 2
	}
	r := lipgloss.NewRenderer(w)
	return &Gauge{
		Width: width,
		label: r.NewStyle().Bold(true),
		track: r.NewStyle().Faint(true),
		arrow: r.NewStyle().Bold(true),
		fail:  r.NewStyle().Foreground(lipgloss.Color("#EA4335")),
		r:     r,
	}
}

// Column returns the zero-based track column the arrow points at
func (g *Gauge) Column(o bias.Offset) int {
	col := int(math.Round(o.Fraction() * float64(g.Width-1)))
	if col < 0 {
		return 0
	}
	if col > g.Width-1 {
		return g.Width - 1
	}
	return col
}

// Render draws the label, the track, and the arrow with its offset
func (g *Gauge) Render(reading bias.Reading) string {
	color := biasColors[reading.Bias]

	label := g.label.Foreground(color).Render(strings.ToUpper(string(reading.Bias)))
	if reading.Extent != bias.None {
		label += " " + string(reading.Extent)
	}

	col := g.Column(reading.Offset)
	track := g.track.Render(strings.Repeat(trackGlyph, g.Width))
	arrow := strings.Repeat(" ", col) + g.arrow.Foreground(color).Render(arrowGlyph) + " " + reading.Offset.String()

	return lipgloss.JoinVertical(lipgloss.Left, label, track, arrow)
}

// RenderError draws the failure line shown instead of a gauge
func (g *Gauge) RenderError(err error) string {
	reason := err.Error()
	var ce *classify.Error
	if errors.As(err, &ce) {
		reason = ce.Reason()
	}
	return g.fail.Render(fmt.Sprintf("✗ %s", reason))
}
