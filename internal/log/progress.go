package log

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner provides rotating visual feedback while a request is in flight
type Spinner struct {
	mu       sync.Mutex
	out      io.Writer
	label    string
	chars    []string
	current  int
	interval time.Duration
	started  time.Time
	stop     chan struct{}
	done     chan struct{}
	running  bool
}

// SpinnerStyle defines different spinner animations
type SpinnerStyle string

const (
	SpinnerDots SpinnerStyle = "dots"
	SpinnerLine SpinnerStyle = "line"
)

// NewSpinner creates a spinner that draws label on out
func NewSpinner(out io.Writer, label string, style SpinnerStyle) *Spinner {
	s := &Spinner{
		out:      out,
		label:    label,
		interval: 100 * time.Millisecond,
	}

	switch style {
	case SpinnerLine:
		s.chars = []string{"-", "\\", "|", "/"}
	default:
		s.chars = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	}

	return s
}

// Start begins the spinner animation
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.running = true
	s.started = time.Now()
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.draw()
	go s.spin(s.stop, s.done)
}

// Stop ends the animation and clears the line. It returns the time spent spinning.
func (s *Spinner) Stop() time.Duration {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return 0
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, "\r\033[K")
	return time.Since(s.started)
}

// spin runs the spinner animation loop
func (s *Spinner) spin(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.current = (s.current + 1) % len(s.chars)
			s.draw()
			s.mu.Unlock()
		}
	}
}

// draw writes the current frame; callers hold mu
func (s *Spinner) draw() {
	fmt.Fprintf(s.out, "\r\033[K%s %s", s.chars[s.current], s.label)
}

// Current returns the current spinner character
func (s *Spinner) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chars[s.current]
}
