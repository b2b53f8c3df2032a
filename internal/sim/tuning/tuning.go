package tuning

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"marswalk/internal/sim/grid"
)

const (
	RendererTUI      = "tui"
	RendererText     = "text"
	RendererHeadless = "headless"
)

type Tuning struct {
	Width  int           `yaml:"width" toml:"width"`
	Height int           `yaml:"height" toml:"height"`
	Agents int           `yaml:"agents" toml:"agents"`
	Start  grid.Position `yaml:"start" toml:"start"`

	// One symbol per agent id, in id order.
	Markers string `yaml:"markers" toml:"markers"`
	Seed    int64  `yaml:"seed" toml:"seed"`

	PollTimeoutMs int    `yaml:"poll_timeout_ms" toml:"poll_timeout_ms"`
	MaxTicks      uint64 `yaml:"max_ticks" toml:"max_ticks"`
	Renderer      string `yaml:"renderer" toml:"renderer"`

	DataDir string `yaml:"data_dir" toml:"data_dir"`
	Record  bool   `yaml:"record" toml:"record"`

	Log      Log      `yaml:"log" toml:"log"`
	Observer Observer `yaml:"observer" toml:"observer"`
}

type Log struct {
	Level   string `yaml:"level" toml:"level"`
	Dir     string `yaml:"dir" toml:"dir"`
	Console bool   `yaml:"console" toml:"console"`
}

type Observer struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
}

func Defaults() Tuning {
	return Tuning{
		Width:         20,
		Height:        20,
		Agents:        5,
		Start:         grid.Position{X: 10, Y: 10},
		Markers:       grid.DefaultMarkers.String(),
		Seed:          0,
		PollTimeoutMs: 100,
		Renderer:      RendererTUI,
		DataDir:       "./data",
		Record:        true,
		Log: Log{
			Level: "info",
			Dir:   "./logs",
		},
		Observer: Observer{
			Addr: "127.0.0.1:8089",
		},
	}
}

// Load reads a YAML (.yaml/.yml) or TOML (.toml) file over Defaults and validates the result.
func Load(path string) (Tuning, error) {
	t := Defaults()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, &t); err != nil {
			return Tuning{}, fmt.Errorf("tuning %s: %w", path, err)
		}
	case ".yaml", ".yml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Tuning{}, err
		}
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return Tuning{}, fmt.Errorf("tuning %s: %w", path, err)
		}
	default:
		return Tuning{}, fmt.Errorf("tuning %s: unsupported extension %q", path, ext)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}

// Save writes t as YAML.
func Save(path string, t Tuning) error {
	b, err := yaml.Marshal(t)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// Validate checks ranges. An agent count larger than the marker table is allowed; those
// agents surface as unsupported ids when the grid is projected.
func (t Tuning) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("grid must be at least 1x1, got %dx%d", t.Width, t.Height)
	}
	if t.Agents <= 0 {
		return fmt.Errorf("agents must be positive, got %d", t.Agents)
	}
	if !t.Bounds().Contains(t.Start) {
		return fmt.Errorf("start %v outside %dx%d grid", t.Start, t.Width, t.Height)
	}
	if err := t.MarkerTable().Validate(); err != nil {
		return fmt.Errorf("markers: %w", err)
	}
	if t.PollTimeoutMs < 0 {
		return fmt.Errorf("poll_timeout_ms must not be negative, got %d", t.PollTimeoutMs)
	}
	switch t.Renderer {
	case RendererTUI, RendererText, RendererHeadless:
	default:
		return fmt.Errorf("unknown renderer %q", t.Renderer)
	}
	if t.Observer.Enabled && strings.TrimSpace(t.Observer.Addr) == "" {
		return fmt.Errorf("observer enabled without addr")
	}
	return nil
}

func (t Tuning) Bounds() grid.Bounds { return grid.Bounds{Width: t.Width, Height: t.Height} }

func (t Tuning) MarkerTable() grid.Markers { return grid.ParseMarkers(t.Markers) }

func (t Tuning) PollTimeout() time.Duration {
	return time.Duration(t.PollTimeoutMs) * time.Millisecond
}
