package world

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrIO marks a renderer or input failure. It is fatal to the run.
var ErrIO = errors.New("io failure")

type Status int

const (
	Continue Status = iota
	Finish
)

func (s Status) String() string {
	switch s {
	case Continue:
		return "continue"
	case Finish:
		return "finish"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Renderer displays one completed tick.
type Renderer interface {
	Render(f Frame) error
}

// Input is polled once per tick with a bounded wait. quit=true ends the run.
type Input interface {
	Poll(ctx context.Context, timeout time.Duration) (quit bool, err error)
}

type LoopConfig struct {
	Renderer    Renderer
	Input       Input // nil: never quits, no pacing
	PollTimeout time.Duration
	MaxTicks    uint64 // 0: unbounded
}

// Loop drives a World one tick per Update call.
type Loop struct {
	w   *World
	cfg LoopConfig
	log zerolog.Logger

	status Status
}

func NewLoop(w *World, cfg LoopConfig, logger zerolog.Logger) *Loop {
	return &Loop{
		w:   w,
		cfg: cfg,
		log: logger.With().Str("component", "loop").Logger(),
	}
}

func (l *Loop) Status() Status { return l.status }

// Update runs one tick:
//  1. broadcast Move, 2. collect every reply and apply it, 3. re-stamp the trail,
//  4. poll input (quit ends here, nothing is rendered), 5. advance the tick, 6. render.
//
// Context cancellation is a clean Finish. Renderer and input failures wrap ErrIO.
func (l *Loop) Update(ctx context.Context) (Status, error) {
	if l.status == Finish {
		return Finish, nil
	}

	if _, err := l.w.Move(ctx); err != nil {
		if ctx.Err() != nil {
			l.log.Info().Uint64("tick", l.w.CurrentTick()).Msg("cancelled during barrier")
			return l.finish(), nil
		}
		return l.finish(), err
	}

	if l.cfg.Input != nil {
		quit, err := l.cfg.Input.Poll(ctx, l.cfg.PollTimeout)
		if err != nil {
			return l.finish(), fmt.Errorf("%w: input: %v", ErrIO, err)
		}
		if quit {
			l.log.Info().Uint64("tick", l.w.CurrentTick()).Msg("quit requested")
			return l.finish(), nil
		}
	}
	if ctx.Err() != nil {
		return l.finish(), nil
	}

	tick := l.w.Advance()

	f := l.w.Frame()
	if f.Err != nil {
		l.log.Warn().Err(f.Err).Uint64("tick", tick).Ints("agents", f.Unsupported()).Msg("projection incomplete")
	}
	if l.cfg.Renderer != nil {
		if err := l.cfg.Renderer.Render(f); err != nil {
			return l.finish(), fmt.Errorf("%w: render tick %d: %v", ErrIO, tick, err)
		}
	}

	if l.cfg.MaxTicks > 0 && tick >= l.cfg.MaxTicks {
		l.log.Info().Uint64("tick", tick).Msg("max ticks reached")
		return l.finish(), nil
	}
	return Continue, nil
}

// Run calls Update until Finish or a fatal error.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().
		Int("agents", l.w.cfg.Agents).
		Int("width", l.w.cfg.Bounds.Width).
		Int("height", l.w.cfg.Bounds.Height).
		Uint64("max_ticks", l.cfg.MaxTicks).
		Msg("loop start")
	for {
		st, err := l.Update(ctx)
		if err != nil {
			l.log.Error().Err(err).Uint64("tick", l.w.CurrentTick()).Msg("loop failed")
			return err
		}
		if st == Finish {
			l.log.Info().Uint64("tick", l.w.CurrentTick()).Msg("loop finished")
			return nil
		}
	}
}

func (l *Loop) finish() Status {
	l.status = Finish
	return Finish
}

// ChanInput is an Input backed by a quit channel. Poll waits up to timeout for a value on
// the channel; a nil channel just paces the loop.
type ChanInput struct {
	Quit <-chan struct{}
}

func (in ChanInput) Poll(ctx context.Context, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		select {
		case <-in.Quit:
			return true, nil
		case <-ctx.Done():
			return true, nil
		default:
			return false, nil
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-in.Quit:
		return true, nil
	case <-ctx.Done():
		return true, nil
	case <-t.C:
		return false, nil
	}
}
