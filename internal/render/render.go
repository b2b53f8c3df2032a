// Package render holds the interchangeable display backends. The backend is chosen at
// runtime by name; every backend is a world.Renderer paired with the Input the loop polls.
package render

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"marswalk/internal/sim/world"
)

type Backend interface {
	world.Renderer
	// Input returns the quit source for this backend, or nil when only signals end the run.
	Input() world.Input
	Close() error
}

type Options struct {
	// Out is where the text backend draws. Defaults to stdout.
	Out io.Writer
	// AltScreen runs the TUI in the terminal's alternate screen.
	AltScreen bool
	Logger    zerolog.Logger
}

// New builds the backend named kind: "tui", "text" or "headless".
func New(kind string, opts Options) (Backend, error) {
	switch kind {
	case "tui":
		return NewTUI(opts)
	case "text":
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		return NewText(out), nil
	case "headless":
		return &Headless{}, nil
	default:
		return nil, fmt.Errorf("render: unknown backend %q", kind)
	}
}

// Multi renders every frame to each renderer in order. All renderers see the frame even
// when an earlier one fails; the failures are joined.
type Multi []world.Renderer

func (m Multi) Render(f world.Frame) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Render(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Headless draws nothing. It keeps the last frame for callers that want a summary.
type Headless struct {
	Frames uint64
	Last   world.Frame
}

func (h *Headless) Render(f world.Frame) error {
	h.Frames++
	h.Last = f
	return nil
}

func (h *Headless) Input() world.Input { return nil }
func (h *Headless) Close() error       { return nil }
