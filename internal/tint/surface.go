package tint

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/skew/internal/gradient"
)

// DefaultText is the banner shown when no text is given
const DefaultText = "Skew: know the lean before you read"

// Surface tints a line of text with the grid color under the pointer
type Surface struct {
	screen tcell.Screen
	grid   gradient.Grid
	text   string

	fg   tcell.Style
	last *gradient.Sample
}

// New creates a surface on an initialized screen
func New(screen tcell.Screen, grid gradient.Grid, text string) *Surface {
	if text == "" {
		text = DefaultText
	}
	return &Surface{
		screen: screen,
		grid:   grid,
		text:   text,
		fg:     tcell.StyleDefault,
	}
}

// Run handles events until the user quits or ctx is cancelled. The caller
// owns the screen and calls Fini afterwards, which also releases the poller.
func (s *Surface) Run(ctx context.Context) error {
	s.screen.EnableMouse()
	s.draw()

	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := s.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if !s.handle(ev) {
				return nil
			}
		}
	}
}

// handle applies one event and reports whether the loop should continue
func (s *Surface) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if isQuit(ev.Key(), ev.Rune()) {
			return false
		}
	case *tcell.EventMouse:
		x, y := ev.Position()
		s.track(x, y)
	case *tcell.EventResize:
		s.screen.Sync()
		s.draw()
	}
	return true
}

func isQuit(k tcell.Key, r rune) bool {
	switch k {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return r == 'q' || r == 'Q'
	}
	return false
}

// track recolors the banner for a pointer at cell (x, y). The viewport is
// read from the screen on every call.
func (s *Surface) track(x, y int) {
	w, h := s.screen.Size()
	p, err := gradient.Normalize(float64(x), float64(y), gradient.Viewport{Width: w, Height: h})
	if err != nil {
		log.Debug().Err(err).Msg("Skipping pointer event")
		return
	}

	sample := s.grid.Sample(p)
	s.last = &sample
	s.fg = tcell.StyleDefault.Foreground(TerminalColor(sample.Color)).Bold(true)
	s.draw()
}

// TerminalColor converts an interpolated color to a terminal color, clamping
// each channel to a byte
func TerminalColor(c gradient.RGB) tcell.Color {
	r, g, b := c.Clamped()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

func (s *Surface) draw() {
	s.screen.Clear()
	w, h := s.screen.Size()
	if w <= 0 || h <= 0 {
		return
	}

	row := h / 2
	col := (w - len([]rune(s.text))) / 2
	if col < 0 {
		col = 0
	}
	s.put(col, row, s.text, s.fg)
	s.put(0, h-1, s.status(), tcell.StyleDefault.Dim(true))
	s.screen.Show()
}

func (s *Surface) status() string {
	if s.last == nil {
		return "move the pointer over the window · q to quit"
	}
	return fmt.Sprintf("x=%.3f y=%.3f %s %s",
		s.last.Point.X, s.last.Point.Y, s.last.Quadrant, s.last.Color)
}

func (s *Surface) put(x, y int, text string, style tcell.Style) {
	w, _ := s.screen.Size()
	for _, r := range text {
		if x >= w {
			return
		}
		s.screen.SetContent(x, y, r, nil, style)
		x++
	}
}
