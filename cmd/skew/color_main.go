package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/sawpanic/skew/internal/gradient"
)

func newColorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "color",
		Short: "Probe the gradient at a position",
		Long: `Prints the interpolated color at a viewport-relative position (--x, --y)
or at an absolute position inside a viewport (--px, --py, --width, --height).
Positions outside the viewport extrapolate; channels are not clamped.`,
		RunE: runColor,
	}

	cmd.Flags().Float64("x", 0.5, "Relative horizontal position")
	cmd.Flags().Float64("y", 0.5, "Relative vertical position")
	cmd.Flags().Float64("px", 0, "Absolute horizontal position")
	cmd.Flags().Float64("py", 0, "Absolute vertical position")
	cmd.Flags().Int("width", 0, "Viewport width for --px/--py")
	cmd.Flags().Int("height", 0, "Viewport height for --px/--py")
	cmd.Flags().Bool("grid", false, "List the nine lattice colors instead")
	cmd.Flags().Bool("fix-blue", false, "Average blue with blue when deriving corners")

	return cmd
}

func runColor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if fixBlue, _ := cmd.Flags().GetBool("fix-blue"); fixBlue {
		cfg.Palette.FixBlueChannel = true
	}
	grid := cfg.Palette.Grid()
	out := cmd.OutOrStdout()
	r := lipgloss.NewRenderer(out)

	if showGrid, _ := cmd.Flags().GetBool("grid"); showGrid {
		fmt.Fprintf(out, "derivation: %s\n", grid.Mode)
		for _, row := range grid.Colors() {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				rgb := c.Floor()
				cells = append(cells, swatch(r, rgb)+" "+fmt.Sprintf("%-16s", rgb))
			}
			fmt.Fprintln(out, strings.TrimRight(strings.Join(cells, "  "), " "))
		}
		return nil
	}

	p, err := colorPoint(cmd)
	if err != nil {
		return err
	}
	if !p.Finite() {
		return fmt.Errorf("position (%v, %v) is not a finite number", p.X, p.Y)
	}

	s := grid.Sample(p)
	fmt.Fprintf(out, "%s %s  %s  x=%.4f y=%.4f\n", swatch(r, s.Color), s.Color, s.Quadrant, s.Point.X, s.Point.Y)
	return nil
}

// colorPoint reads the relative position, or normalizes the absolute one
func colorPoint(cmd *cobra.Command) (gradient.Point, error) {
	flags := cmd.Flags()
	if flags.Changed("px") || flags.Changed("py") {
		px, _ := flags.GetFloat64("px")
		py, _ := flags.GetFloat64("py")
		w, _ := flags.GetInt("width")
		h, _ := flags.GetInt("height")
		return gradient.Normalize(px, py, gradient.Viewport{Width: w, Height: h})
	}

	x, _ := flags.GetFloat64("x")
	y, _ := flags.GetFloat64("y")
	return gradient.Point{X: x, Y: y}, nil
}

func swatch(r *lipgloss.Renderer, c gradient.RGB) string {
	red, green, blue := c.Clamped()
	hex := fmt.Sprintf("#%02x%02x%02x", red, green, blue)
	return r.NewStyle().Background(lipgloss.Color(hex)).Render("  ")
}
