package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/skew/internal/gradient"
)

// Config is the complete skew configuration
type Config struct {
	Classifier ClassifierConfig `yaml:"classifier"`
	Palette    PaletteConfig    `yaml:"palette"`
	Server     ServerConfig     `yaml:"server"`
}

// ClassifierConfig configures the classification client
type ClassifierConfig struct {
	Endpoint  string        `yaml:"endpoint"`   // Base URL; /process is appended
	TimeoutMS int           `yaml:"timeout_ms"` // Per-request timeout in milliseconds
	UserAgent string        `yaml:"user_agent"`
	Breaker   BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the fail-fast breaker in front of the classifier
type BreakerConfig struct {
	ConsecutiveFailures int `yaml:"consecutive_failures"` // Failures in a row that open the breaker
	OpenSecs            int `yaml:"open_secs"`            // Time spent open before a probe
}

// PaletteConfig holds the five anchor colors as [r, g, b] triples
type PaletteConfig struct {
	Center         [3]int `yaml:"center"`
	TopMiddle      [3]int `yaml:"top_middle"`
	LeftMiddle     [3]int `yaml:"left_middle"`
	RightMiddle    [3]int `yaml:"right_middle"`
	BottomMiddle   [3]int `yaml:"bottom_middle"`
	FixBlueChannel bool   `yaml:"fix_blue_channel"` // Average blue with blue when deriving corners
}

// ServerConfig configures the local classification stub
type ServerConfig struct {
	Host  string  `yaml:"host"`
	Port  int     `yaml:"port"`
	RPS   float64 `yaml:"rps"`   // Requests per second per client
	Burst int     `yaml:"burst"` // Burst capacity per client
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Classifier: ClassifierConfig{
			Endpoint:  "https://ivyhacks-skew.wl.r.appspot.com",
			TimeoutMS: 10000,
			UserAgent: "skew/1.0",
			Breaker: BreakerConfig{
				ConsecutiveFailures: 3,
				OpenSecs:            30,
			},
		},
		Palette: PaletteConfig{
			Center:       [3]int{152, 99, 146},
			TopMiddle:    [3]int{191, 124, 178},
			LeftMiddle:   [3]int{66, 133, 244},
			RightMiddle:  [3]int{234, 67, 53},
			BottomMiddle: [3]int{88, 57, 84},
		},
		Server: ServerConfig{
			Host:  "127.0.0.1",
			Port:  8000,
			RPS:   20,
			Burst: 40,
		},
	}
}

// Load reads a YAML file over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path when set and falls back to Default otherwise
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if err := c.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if err := c.Palette.Validate(); err != nil {
		return fmt.Errorf("palette: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Validate ensures the classifier settings are usable
func (c *ClassifierConfig) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint must be http or https, got %q", c.Endpoint)
	}
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", c.TimeoutMS)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent cannot be empty")
	}
	if c.Breaker.ConsecutiveFailures <= 0 {
		return fmt.Errorf("breaker consecutive_failures must be positive, got %d", c.Breaker.ConsecutiveFailures)
	}
	if c.Breaker.OpenSecs <= 0 {
		return fmt.Errorf("breaker open_secs must be positive, got %d", c.Breaker.OpenSecs)
	}
	return nil
}

// Timeout returns the per-request timeout
func (c *ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// OpenTimeout returns how long the breaker stays open
func (c *BreakerConfig) OpenTimeout() time.Duration {
	return time.Duration(c.OpenSecs) * time.Second
}

// Validate ensures every palette channel is a byte value
func (p *PaletteConfig) Validate() error {
	for name, c := range p.named() {
		for _, v := range c {
			if v < 0 || v > 255 {
				return fmt.Errorf("%s channel %d out of range [0,255]", name, v)
			}
		}
	}
	return nil
}

func (p *PaletteConfig) named() map[string][3]int {
	return map[string][3]int{
		"center":        p.Center,
		"top_middle":    p.TopMiddle,
		"left_middle":   p.LeftMiddle,
		"right_middle":  p.RightMiddle,
		"bottom_middle": p.BottomMiddle,
	}
}

// Anchors converts the palette into interpolation anchors
func (p *PaletteConfig) Anchors() gradient.Anchors {
	return gradient.Anchors{
		Center:       toColor(p.Center),
		TopMiddle:    toColor(p.TopMiddle),
		LeftMiddle:   toColor(p.LeftMiddle),
		RightMiddle:  toColor(p.RightMiddle),
		BottomMiddle: toColor(p.BottomMiddle),
	}
}

// Derivation reports which corner averaging the palette asks for
func (p *PaletteConfig) Derivation() gradient.Derivation {
	if p.FixBlueChannel {
		return gradient.DeriveComponentwise
	}
	return gradient.DeriveLegacy
}

// Grid builds the interpolation grid for this palette
func (p *PaletteConfig) Grid() gradient.Grid {
	return gradient.NewGrid(p.Anchors(), p.Derivation())
}

func toColor(c [3]int) gradient.Color {
	return gradient.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2])}
}

// Validate ensures the server settings are usable
func (s *ServerConfig) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port must be in 1-65535, got %d", s.Port)
	}
	if s.RPS <= 0 {
		return fmt.Errorf("rps must be positive, got %v", s.RPS)
	}
	if s.Burst < 1 {
		return fmt.Errorf("burst must be at least 1, got %d", s.Burst)
	}
	return nil
}

// Addr returns the listen address
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
