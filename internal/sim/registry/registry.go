// Package registry is the authoritative id -> position table.
//
// A Registry is owned by the world loop goroutine: only that goroutine calls Update, and
// readers on other goroutines only ever see copies taken after a tick completes. It carries
// no locks.
package registry

import (
	"sort"

	"marswalk/internal/sim/grid"
)

// AgentState is the registry entry for one agent.
type AgentState struct {
	ID  int           `json:"id"`
	Pos grid.Position `json:"pos"`
}

// Outcome describes an applied update.
type Outcome struct {
	State   AgentState
	From    grid.Position
	Clamped bool
}

type Registry struct {
	bounds  grid.Bounds
	entries map[int]*AgentState
	ids     []int
}

// New creates n entries (ids 0..n-1) all standing at start, clamped into bounds.
func New(bounds grid.Bounds, n int, start grid.Position) *Registry {
	r := &Registry{
		bounds:  bounds,
		entries: make(map[int]*AgentState, n),
		ids:     make([]int, 0, n),
	}
	p := bounds.Clamp(start)
	for id := 0; id < n; id++ {
		r.entries[id] = &AgentState{ID: id, Pos: p}
		r.ids = append(r.ids, id)
	}
	return r
}

// FromStates rebuilds a registry from explicit entries.
func FromStates(bounds grid.Bounds, states []AgentState) *Registry {
	r := &Registry{
		bounds:  bounds,
		entries: make(map[int]*AgentState, len(states)),
	}
	for _, s := range states {
		if _, dup := r.entries[s.ID]; dup {
			continue
		}
		st := AgentState{ID: s.ID, Pos: bounds.Clamp(s.Pos)}
		r.entries[s.ID] = &st
		r.ids = append(r.ids, s.ID)
	}
	sort.Ints(r.ids)
	return r
}

func (r *Registry) Bounds() grid.Bounds { return r.bounds }

func (r *Registry) Len() int { return len(r.ids) }

// Update moves id by d, clamping into bounds. Unknown ids are a no-op and report false.
func (r *Registry) Update(id int, d grid.Delta) (Outcome, bool) {
	e, ok := r.entries[id]
	if !ok {
		return Outcome{}, false
	}
	from := e.Pos
	want := from.Add(d)
	e.Pos = r.bounds.Clamp(want)
	return Outcome{State: *e, From: from, Clamped: e.Pos != want}, true
}

func (r *Registry) Get(id int) (AgentState, bool) {
	e, ok := r.entries[id]
	if !ok {
		return AgentState{}, false
	}
	return *e, true
}

// Each visits entries in ascending id order. fn receives copies.
func (r *Registry) Each(fn func(AgentState)) {
	for _, id := range r.ids {
		fn(*r.entries[id])
	}
}

// States returns a copy of every entry in ascending id order.
func (r *Registry) States() []AgentState {
	out := make([]AgentState, 0, len(r.ids))
	r.Each(func(s AgentState) { out = append(out, s) })
	return out
}

func (r *Registry) Positions() []grid.Position {
	out := make([]grid.Position, 0, len(r.ids))
	r.Each(func(s AgentState) { out = append(out, s.Pos) })
	return out
}

func (r *Registry) Occupants() []grid.Occupant {
	out := make([]grid.Occupant, 0, len(r.ids))
	r.Each(func(s AgentState) { out = append(out, grid.Occupant{ID: s.ID, Pos: s.Pos}) })
	return out
}
