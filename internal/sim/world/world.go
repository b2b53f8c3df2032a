package world

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"marswalk/internal/sim/actor"
	"marswalk/internal/sim/grid"
	"marswalk/internal/sim/registry"
	"marswalk/internal/sim/trail"
)

type WorldConfig struct {
	Bounds  grid.Bounds
	Agents  int
	Start   grid.Position
	Markers grid.Markers
	Seed    int64
}

func (c WorldConfig) validate() error {
	if c.Bounds.Width <= 0 || c.Bounds.Height <= 0 {
		return fmt.Errorf("world: bad bounds %dx%d", c.Bounds.Width, c.Bounds.Height)
	}
	if c.Agents <= 0 {
		return fmt.Errorf("world: agent count must be positive, got %d", c.Agents)
	}
	return nil
}

// RecordedMove is one actor reply as it was applied.
type RecordedMove struct {
	ID      int  `json:"id"`
	DX      int  `json:"dx"`
	DY      int  `json:"dy"`
	Clamped bool `json:"clamped,omitempty"`
}

type TickLogEntry struct {
	Tick      uint64                `json:"tick"`
	Moves     []RecordedMove        `json:"moves"`
	Positions []registry.AgentState `json:"positions"`
	Digest    string                `json:"digest"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// MetricsSink receives per-tick runtime signals. Implemented in internal/observability.
type MetricsSink interface {
	ObserveTick(tick uint64, barrier time.Duration, trailCells int)
	ObserveClamp(id int)
	ObserveUnsupported(id int)
}

// World is the simulation engine: actors, registry and trail.
// All state must be accessed only from the loop goroutine; CurrentTick and Metrics are safe
// from anywhere.
type World struct {
	cfg WorldConfig
	log zerolog.Logger

	pool  *actor.Pool
	reg   *registry.Registry
	trail *trail.History

	tick atomic.Uint64

	// Optional (may be nil).
	tickLogger TickLogger
	sink       MetricsSink

	metrics atomic.Value // Metrics
}

// New starts one actor per agent with seeded sources.
func New(cfg WorldConfig, logger zerolog.Logger) (*World, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newWorld(cfg, actor.NewPool(cfg.Agents, cfg.Seed, logger), logger), nil
}

// NewWithGenerators is New with caller-supplied displacement sources; gens[i] drives agent i.
func NewWithGenerators(cfg WorldConfig, gens []actor.Generator, logger zerolog.Logger) (*World, error) {
	cfg.Agents = len(gens)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return newWorld(cfg, actor.NewPoolWith(gens, logger), logger), nil
}

func newWorld(cfg WorldConfig, pool *actor.Pool, logger zerolog.Logger) *World {
	w := &World{
		cfg:   cfg,
		log:   logger.With().Str("component", "world").Logger(),
		pool:  pool,
		reg:   registry.New(cfg.Bounds, cfg.Agents, cfg.Start),
		trail: trail.NewHistory(),
	}
	w.metrics.Store(Metrics{Agents: cfg.Agents})
	return w
}

func (w *World) SetTickLogger(l TickLogger) { w.tickLogger = l }
func (w *World) SetMetricsSink(s MetricsSink) { w.sink = s }

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Close stops every actor. Safe to call more than once.
func (w *World) Close() { w.pool.Close() }

// Move performs one lockstep exchange for the current tick: broadcast Move to every actor,
// wait for all replies, apply them in arrival order and re-stamp the trail for every
// occupied cell. The tick counter is not advanced.
func (w *World) Move(ctx context.Context) ([]RecordedMove, error) {
	nowTick := w.tick.Load()
	start := time.Now()

	msgs, err := w.pool.Round(ctx)
	if err != nil {
		return nil, err
	}
	barrier := time.Since(start)

	moves := make([]RecordedMove, 0, len(msgs))
	clamped := 0
	for _, m := range msgs {
		out, ok := w.reg.Update(m.ID, m.Delta)
		if !ok {
			w.log.Warn().Int("agent", m.ID).Uint64("tick", nowTick).Msg("reply for unknown agent dropped")
			continue
		}
		if out.Clamped {
			clamped++
			if w.sink != nil {
				w.sink.ObserveClamp(m.ID)
			}
		}
		moves = append(moves, RecordedMove{ID: m.ID, DX: m.Delta.DX, DY: m.Delta.DY, Clamped: out.Clamped})
	}

	w.trail.Stamp(nowTick, w.reg.Positions()...)

	if w.tickLogger != nil {
		entry := TickLogEntry{
			Tick:      nowTick,
			Moves:     moves,
			Positions: w.reg.States(),
			Digest:    Digest(nowTick, w.reg.States()),
		}
		if err := w.tickLogger.WriteTick(entry); err != nil {
			w.log.Warn().Err(err).Uint64("tick", nowTick).Msg("tick log write failed")
		}
	}

	if w.sink != nil {
		w.sink.ObserveTick(nowTick, barrier, w.trail.Len())
	}
	m := w.Metrics()
	m.Tick = nowTick
	m.BarrierMS = float64(barrier.Microseconds()) / 1000
	m.TrailCells = w.trail.Len()
	m.ClampedTotal += uint64(clamped)
	w.metrics.Store(m)

	return moves, nil
}

// Advance increments the tick counter and returns the new value.
func (w *World) Advance() uint64 {
	t := w.tick.Add(1)
	m := w.Metrics()
	m.Tick = t
	w.metrics.Store(m)
	return t
}

// Frame projects the registry onto a blank grid and snapshots the trail at the current tick.
// A projection error (unsupported agent ids) is carried in Frame.Err next to the partial map.
func (w *World) Frame() Frame {
	nowTick := w.tick.Load()
	m, err := grid.Project(w.cfg.Bounds, w.cfg.Markers, w.reg.Occupants())
	if ids := unsupportedIDs(err); len(ids) > 0 {
		if w.sink != nil {
			for _, id := range ids {
				w.sink.ObserveUnsupported(id)
			}
		}
		mm := w.Metrics()
		mm.UnsupportedTotal += uint64(len(ids))
		w.metrics.Store(mm)
	}
	return Frame{
		Tick:   nowTick,
		Bounds: w.cfg.Bounds,
		Agents: w.reg.States(),
		Map:    m,
		Trail:  w.trail.Snapshot(nowTick),
		Err:    err,
	}
}

// Frame is everything a renderer needs for one tick. It holds copies only.
type Frame struct {
	Tick   uint64
	Bounds grid.Bounds
	Agents []registry.AgentState
	Map    grid.Map
	Trail  []trail.Mark
	Err    error
}

// Unsupported lists the agent ids the projection could not place.
func (f Frame) Unsupported() []int { return unsupportedIDs(f.Err) }

func unsupportedIDs(err error) []int {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var ids []int
		for _, e := range j.Unwrap() {
			ids = append(ids, unsupportedIDs(e)...)
		}
		return ids
	}
	var u *grid.UnsupportedAgentIDError
	if errors.As(err, &u) {
		return []int{u.ID}
	}
	return nil
}
