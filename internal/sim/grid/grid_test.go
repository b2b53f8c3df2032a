package grid

import (
	"errors"
	"testing"
)

func TestClamp_AllDeltasStayInBounds(t *testing.T) {
	b := Bounds{Width: 20, Height: 20}
	starts := []Position{{0, 0}, {19, 19}, {0, 19}, {19, 0}, {10, 10}}
	for _, s := range starts {
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				p := b.Clamp(s.Add(Delta{DX: dx, DY: dy}))
				if !b.Contains(p) {
					t.Fatalf("start=%v delta=(%d,%d) -> %v out of bounds", s, dx, dy, p)
				}
			}
		}
	}
}

func TestClamp_CornerStays(t *testing.T) {
	b := Bounds{Width: 20, Height: 20}
	if got := b.Clamp(Position{0, 0}.Add(Delta{DX: -1, DY: -1})); got != (Position{0, 0}) {
		t.Fatalf("got %v want (0,0)", got)
	}
	if got := b.Clamp(Position{19, 19}.Add(Delta{DX: 1, DY: 1})); got != (Position{19, 19}) {
		t.Fatalf("got %v want (19,19)", got)
	}
}

func TestMarkers_For(t *testing.T) {
	r, err := DefaultMarkers.For(2)
	if err != nil || r != '#' {
		t.Fatalf("For(2)=%q,%v", r, err)
	}
	_, err = DefaultMarkers.For(5)
	if !errors.Is(err, ErrUnsupportedAgentID) {
		t.Fatalf("expected ErrUnsupportedAgentID, got %v", err)
	}
	var ue *UnsupportedAgentIDError
	if !errors.As(err, &ue) || ue.ID != 5 || ue.Supported != 5 {
		t.Fatalf("unexpected error detail: %#v", err)
	}
	if _, err := DefaultMarkers.For(-1); err == nil {
		t.Fatalf("negative id should be unsupported")
	}
}

func TestMarkers_Validate(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"default", "@%#*+", false},
		{"empty", "", true},
		{"duplicate", "@%@", true},
		{"blank", "@ #", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ParseMarkers(c.in).Validate()
			if (err != nil) != c.wantErr {
				t.Fatalf("Validate(%q) err=%v wantErr=%v", c.in, err, c.wantErr)
			}
		})
	}
}

func TestProject_OneMarkerPerAgent(t *testing.T) {
	b := Bounds{Width: 20, Height: 20}
	occ := []Occupant{
		{ID: 0, Pos: Position{1, 1}},
		{ID: 1, Pos: Position{2, 3}},
		{ID: 2, Pos: Position{19, 0}},
		{ID: 3, Pos: Position{0, 19}},
		{ID: 4, Pos: Position{10, 10}},
	}
	m, err := Project(b, DefaultMarkers, occ)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if got := m.Occupied(); got != len(occ) {
		t.Fatalf("occupied=%d want %d", got, len(occ))
	}
	for _, o := range occ {
		c := m.At(o.Pos)
		if c.Kind != CellAgent || c.AgentID != o.ID || c.Marker != DefaultMarkers[o.ID] || c.Count != 1 {
			t.Fatalf("cell at %v = %+v", o.Pos, c)
		}
	}
}

func TestProject_StackedAgentsLastWriteWins(t *testing.T) {
	b := Bounds{Width: 20, Height: 20}
	var occ []Occupant
	for id := 0; id < 5; id++ {
		occ = append(occ, Occupant{ID: id, Pos: Position{10, 10}})
	}
	m, err := Project(b, DefaultMarkers, occ)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if m.Occupied() != 1 {
		t.Fatalf("occupied=%d want 1", m.Occupied())
	}
	c := m.At(Position{10, 10})
	if c.AgentID != 4 || c.Marker != '+' || c.Count != 5 {
		t.Fatalf("stacked cell = %+v", c)
	}
}

func TestProject_UnsupportedIDIsReported(t *testing.T) {
	b := Bounds{Width: 20, Height: 20}
	occ := []Occupant{
		{ID: 0, Pos: Position{0, 0}},
		{ID: 5, Pos: Position{1, 1}},
		{ID: 6, Pos: Position{2, 2}},
	}
	m, err := Project(b, DefaultMarkers, occ)
	if !errors.Is(err, ErrUnsupportedAgentID) {
		t.Fatalf("expected unsupported id error, got %v", err)
	}
	if m.Occupied() != 1 {
		t.Fatalf("supported agents should still be stamped, occupied=%d", m.Occupied())
	}
}

func TestProject_ClampsOutOfRangePositions(t *testing.T) {
	b := Bounds{Width: 4, Height: 3}
	m, err := Project(b, DefaultMarkers, []Occupant{{ID: 0, Pos: Position{9, -2}}})
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if c := m.At(Position{3, 0}); c.Kind != CellAgent {
		t.Fatalf("expected clamped agent at (3,0)")
	}
}

func TestMap_Rows(t *testing.T) {
	b := Bounds{Width: 3, Height: 2}
	m, _ := Project(b, DefaultMarkers, []Occupant{{ID: 0, Pos: Position{0, 0}}, {ID: 1, Pos: Position{2, 1}}})
	rows := m.Rows()
	if len(rows) != 2 || rows[0] != "@  " || rows[1] != "  %" {
		t.Fatalf("rows=%q", rows)
	}
}
