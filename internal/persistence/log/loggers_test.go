package log

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"marswalk/internal/sim/grid"
	"marswalk/internal/sim/registry"
	"marswalk/internal/sim/world"
)

func entry(tick uint64) world.TickLogEntry {
	states := []registry.AgentState{{ID: 0, Pos: grid.Position{X: int(tick), Y: 1}}}
	return world.TickLogEntry{
		Tick:      tick,
		Moves:     []world.RecordedMove{{ID: 0, DX: 1}},
		Positions: states,
		Digest:    world.Digest(tick, states),
	}
}

func TestTickLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	for i := uint64(0); i < 50; i++ {
		if err := l.WriteTick(entry(i)); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var got []world.TickLogEntry
	err := ReadTicks(filepath.Join(dir, "events"), func(e world.TickLogEntry) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("entries=%d want 50", len(got))
	}
	for i, e := range got {
		if e.Tick != uint64(i) || e.Positions[0].Pos.X != i || e.Digest != world.Digest(e.Tick, e.Positions) {
			t.Fatalf("entry %d=%+v", i, e)
		}
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events")
	now := time.Date(2024, 5, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	if err := w.Write(entry(0)); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(entry(1)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListEventFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v", files)
	}
	if filepath.Base(files[0]) != "events-2024-05-01-10.jsonl.zst" || filepath.Base(files[1]) != "events-2024-05-01-11.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}

	var ticks []uint64
	if err := ReadTicks(dir, func(e world.TickLogEntry) error {
		ticks = append(ticks, e.Tick)
		return nil
	}); err != nil {
		t.Fatalf("ReadTicks: %v", err)
	}
	if len(ticks) != 2 || ticks[0] != 0 || ticks[1] != 1 {
		t.Fatalf("ticks=%v", ticks)
	}
}

func TestReadTicks_StopsOnCallbackError(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	for i := uint64(0); i < 3; i++ {
		_ = l.WriteTick(entry(i))
	}
	_ = l.Close()

	stop := errors.New("stop")
	n := 0
	err := ReadTicks(filepath.Join(dir, "events"), func(world.TickLogEntry) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Fatalf("err=%v n=%d", err, n)
	}
}

func TestReadTicks_EmptyDir(t *testing.T) {
	if err := ReadTicks(t.TempDir(), func(world.TickLogEntry) error { return nil }); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
