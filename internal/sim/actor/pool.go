package actor

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Pool owns the command channel of every actor plus the shared result channel.
// Broadcast and Collect must be called from a single goroutine (the orchestrator).
type Pool struct {
	cmds    []chan Command
	results chan Message

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewPool starts n actors with seeded sources; agent ids are 0..n-1.
func NewPool(n int, seed int64, logger zerolog.Logger) *Pool {
	gens := make([]Generator, n)
	for id := range gens {
		gens[id] = NewSource(seed, id)
	}
	return NewPoolWith(gens, logger)
}

// NewPoolWith starts one actor per generator; gens[i] drives agent id i.
func NewPoolWith(gens []Generator, logger zerolog.Logger) *Pool {
	p := &Pool{
		cmds: make([]chan Command, len(gens)),
		// One slot per actor: within a tick every actor sends at most one message.
		results: make(chan Message, len(gens)),
	}
	for id, gen := range gens {
		// Buffered so the fan-out never waits on a busy actor.
		ch := make(chan Command, 1)
		p.cmds[id] = ch
		a := newActor(id, ch, p.results, gen, logger)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			a.Run()
		}()
	}
	return p
}

func (p *Pool) Size() int { return len(p.cmds) }

// Broadcast sends one Move to every actor.
func (p *Pool) Broadcast(ctx context.Context) error {
	for id, ch := range p.cmds {
		select {
		case ch <- Move:
		case <-ctx.Done():
			return fmt.Errorf("broadcast to actor %d: %w", id, ctx.Err())
		}
	}
	return nil
}

// Collect is the tick barrier: it returns after exactly Size() messages, in arrival order.
// There is no per-actor timeout; only ctx cancellation ends the wait early.
func (p *Pool) Collect(ctx context.Context) ([]Message, error) {
	msgs := make([]Message, 0, len(p.cmds))
	for len(msgs) < len(p.cmds) {
		select {
		case m := <-p.results:
			msgs = append(msgs, m)
		case <-ctx.Done():
			return msgs, fmt.Errorf("barrier collected %d/%d: %w", len(msgs), len(p.cmds), ctx.Err())
		}
	}
	return msgs, nil
}

// Round runs one lockstep exchange: Broadcast then Collect.
func (p *Pool) Round(ctx context.Context) ([]Message, error) {
	if err := p.Broadcast(ctx); err != nil {
		return nil, err
	}
	return p.Collect(ctx)
}

// Close closes every command channel and waits for the actors to exit.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		for _, ch := range p.cmds {
			close(ch)
		}
		p.wg.Wait()
	})
}
