package world

import (
	"marswalk/internal/persistence/snapshot"
)

// ExportSnapshot captures agent positions and the full trail history. Call it from the loop
// goroutine or after the loop has stopped.
func (w *World) ExportSnapshot(runID string) snapshot.SnapshotV1 {
	nowTick := w.tick.Load()
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: snapshot.Version, RunID: runID, Tick: nowTick},
		Seed:   w.cfg.Seed,
		Width:  w.cfg.Bounds.Width,
		Height: w.cfg.Bounds.Height,
	}
	for _, a := range w.reg.States() {
		s.Agents = append(s.Agents, snapshot.AgentV1{ID: a.ID, X: a.Pos.X, Y: a.Pos.Y})
	}
	for _, m := range w.trail.Snapshot(nowTick) {
		s.Trail = append(s.Trail, snapshot.TrailCellV1{X: m.Pos.X, Y: m.Pos.Y, LastSeen: m.LastSeen})
	}
	return s
}
