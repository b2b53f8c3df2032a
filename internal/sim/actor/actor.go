// Package actor runs one goroutine per agent. Each actor waits on its private command channel
// and answers every Move with a displacement on the shared result channel.
package actor

import (
	"math/rand/v2"

	"github.com/rs/zerolog"

	"marswalk/internal/sim/grid"
	"marswalk/internal/sim/mathx"
)

// Command is a request from the orchestrator to an actor.
type Command int

const (
	// Move asks for one displacement.
	Move Command = iota
)

func (c Command) String() string {
	switch c {
	case Move:
		return "MOVE"
	default:
		return "UNKNOWN"
	}
}

// Message is an actor's proposed displacement for the current tick (NewPosition).
type Message struct {
	ID    int        `json:"id"`
	Delta grid.Delta `json:"delta"`
}

// Generator yields successive displacements for one agent.
type Generator interface {
	Next() grid.Delta
}

// Source draws dx and dy independently and uniformly from {-1, 0, 1}. Its stream depends only
// on (seed, id), so the same agent replays the same walk across runs.
type Source struct {
	rng *rand.Rand
}

func NewSource(seed int64, id int) *Source {
	s1, s2 := mathx.StreamSeeds(seed, id)
	return &Source{rng: rand.New(rand.NewPCG(s1, s2))}
}

func (s *Source) Next() grid.Delta {
	dx := s.rng.IntN(3) - 1
	dy := s.rng.IntN(3) - 1
	return grid.Delta{DX: dx, DY: dy}
}

// Actor is the per-agent movement generator.
type Actor struct {
	id   int
	cmds <-chan Command
	out  chan<- Message
	gen  Generator
	log  zerolog.Logger
}

func newActor(id int, cmds <-chan Command, out chan<- Message, gen Generator, logger zerolog.Logger) *Actor {
	return &Actor{
		id:   id,
		cmds: cmds,
		out:  out,
		gen:  gen,
		log:  logger.With().Str("component", "actor").Int("agent", id).Logger(),
	}
}

// Run blocks on the command channel until it is closed. A closed channel is the normal
// shutdown path.
func (a *Actor) Run() {
	for cmd := range a.cmds {
		switch cmd {
		case Move:
			d := a.gen.Next()
			a.log.Trace().Int("dx", d.DX).Int("dy", d.DY).Msg("move")
			a.out <- Message{ID: a.id, Delta: d}
		default:
			a.log.Warn().Stringer("command", cmd).Msg("ignoring unknown command")
		}
	}
	a.log.Debug().Msg("command channel closed")
}
