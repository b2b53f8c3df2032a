package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"marswalk/internal/sim/grid"
	"marswalk/internal/sim/registry"
	"marswalk/internal/sim/trail"
	"marswalk/internal/sim/world"
)

func sampleFrame(t *testing.T, markers grid.Markers, agents ...registry.AgentState) world.Frame {
	t.Helper()
	b := grid.Bounds{Width: 4, Height: 3}
	occ := make([]grid.Occupant, 0, len(agents))
	for _, a := range agents {
		occ = append(occ, grid.Occupant{ID: a.ID, Pos: a.Pos})
	}
	m, err := grid.Project(b, markers, occ)
	h := trail.NewHistory()
	h.Stamp(0, grid.Position{X: 3, Y: 2})
	h.Stamp(1, grid.Position{X: 0, Y: 0})
	return world.Frame{
		Tick:   2,
		Bounds: b,
		Agents: agents,
		Map:    m,
		Trail:  h.Snapshot(2),
		Err:    err,
	}
}

func TestText_DrawsRowsAndTick(t *testing.T) {
	var buf bytes.Buffer
	r := NewText(&buf)
	f := sampleFrame(t, grid.DefaultMarkers,
		registry.AgentState{ID: 0, Pos: grid.Position{X: 0, Y: 0}},
		registry.AgentState{ID: 1, Pos: grid.Position{X: 2, Y: 1}},
	)
	if err := r.Render(f); err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := clearScreen + "@   \n  % \n    \ntick 2\n"
	if buf.String() != want {
		t.Fatalf("got %q\nwant %q", buf.String(), want)
	}
}

func TestText_ReportsUnsupported(t *testing.T) {
	var buf bytes.Buffer
	r := NewText(&buf)
	f := sampleFrame(t, grid.Markers{'@'},
		registry.AgentState{ID: 0, Pos: grid.Position{X: 0, Y: 0}},
		registry.AgentState{ID: 1, Pos: grid.Position{X: 1, Y: 0}},
	)
	if err := r.Render(f); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "unsupported agents: [1]") {
		t.Fatalf("output=%q", buf.String())
	}
}

func TestDrawFrame_AgentsAndTrail(t *testing.T) {
	f := sampleFrame(t, grid.DefaultMarkers,
		registry.AgentState{ID: 2, Pos: grid.Position{X: 0, Y: 0}},
	)
	out := DrawFrame(f)
	if !strings.Contains(out, "#") {
		t.Fatalf("agent marker missing: %q", out)
	}
	// (3,2) is only a trail cell; (0,0) is covered by the agent.
	if strings.Count(out, trailDot) != 1 {
		t.Fatalf("trail dots=%d want 1: %q", strings.Count(out, trailDot), out)
	}
	if !strings.Contains(out, "Mars Map") || !strings.Contains(out, "tick 2") {
		t.Fatalf("title/footer missing: %q", out)
	}
}

func TestModel_QuitKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyEnter},
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	} {
		called := 0
		m := newModel(func() { called++ })
		_, cmd := m.Update(key)
		if called != 1 || cmd == nil {
			t.Fatalf("key %q: quit called %d times, cmd=%v", key.String(), called, cmd)
		}
	}

	called := 0
	m := newModel(func() { called++ })
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}}); cmd != nil || called != 0 {
		t.Fatalf("non-quit key triggered quit")
	}
}

func TestModel_StoresFrame(t *testing.T) {
	m := newModel(nil)
	if !strings.Contains(m.View(), "waiting") {
		t.Fatalf("initial view=%q", m.View())
	}
	f := sampleFrame(t, grid.DefaultMarkers, registry.AgentState{ID: 0, Pos: grid.Position{X: 1, Y: 1}})
	next, _ := m.Update(frameMsg(f))
	if v := next.View(); !strings.Contains(v, "@") {
		t.Fatalf("view=%q", v)
	}
}

type failing struct{ calls int }

func (f *failing) Render(world.Frame) error {
	f.calls++
	return errors.New("boom")
}

func TestMulti_RendersAllAndJoinsErrors(t *testing.T) {
	h := &Headless{}
	bad := &failing{}
	m := Multi{bad, nil, h}
	err := m.Render(world.Frame{Tick: 4})
	if err == nil || bad.calls != 1 {
		t.Fatalf("err=%v calls=%d", err, bad.calls)
	}
	if h.Frames != 1 || h.Last.Tick != 4 {
		t.Fatalf("headless=%+v", h)
	}
}

func TestNew_Backends(t *testing.T) {
	for _, kind := range []string{"text", "headless"} {
		b, err := New(kind, Options{Out: &bytes.Buffer{}})
		if err != nil {
			t.Fatalf("New(%q): %v", kind, err)
		}
		_ = b.Close()
	}
	if _, err := New("hologram", Options{}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
	if in := (&Headless{}).Input(); in != nil {
		t.Fatalf("headless input should be nil")
	}
}
