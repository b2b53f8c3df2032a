// Package trail records the last tick at which each grid cell was occupied and classifies
// cell age into decay buckets for rendering.
//
// Entries are never evicted. Agent positions are clamped to the grid, so the history is
// bounded by the grid area rather than by run length.
package trail

import (
	"sort"

	"marswalk/internal/sim/grid"
)

// History maps a cell to the last tick an agent stood on it.
// It is owned by the world loop goroutine and is not safe for concurrent use.
type History struct {
	last map[grid.Position]uint64
}

func NewHistory() *History {
	return &History{last: map[grid.Position]uint64{}}
}

// Stamp records tick as the last-seen tick of every given position.
func (h *History) Stamp(tick uint64, positions ...grid.Position) {
	for _, p := range positions {
		h.last[p] = tick
	}
}

func (h *History) LastSeen(p grid.Position) (uint64, bool) {
	t, ok := h.last[p]
	return t, ok
}

func (h *History) Len() int { return len(h.last) }

// Age is now - lastSeen, floored at zero.
func Age(now, lastSeen uint64) uint64 {
	if lastSeen > now {
		return 0
	}
	return now - lastSeen
}

// Mark is one visited cell as seen at a given tick.
type Mark struct {
	Pos      grid.Position
	LastSeen uint64
	Age      uint64
	Bucket   Bucket
}

// Snapshot returns every visited cell with its age at tick now, ordered by row then column.
func (h *History) Snapshot(now uint64) []Mark {
	out := make([]Mark, 0, len(h.last))
	for p, t := range h.last {
		age := Age(now, t)
		out = append(out, Mark{Pos: p, LastSeen: t, Age: age, Bucket: BucketFor(age)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pos.Y != out[j].Pos.Y {
			return out[i].Pos.Y < out[j].Pos.Y
		}
		return out[i].Pos.X < out[j].Pos.X
	})
	return out
}
