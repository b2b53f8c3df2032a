package grid

import (
	"errors"
	"strings"
)

type CellKind uint8

const (
	CellBlank CellKind = iota
	CellAgent
)

// Cell is one square of a projected map. When several agents share a cell the last one
// stamped (highest id) wins and Count records how many were stacked there.
type Cell struct {
	Kind    CellKind
	AgentID int
	Marker  rune
	Count   int
}

// Occupant is the input of a projection: an agent id and where it stands.
type Occupant struct {
	ID  int
	Pos Position
}

// Map is a projected board indexed as Cells[y][x].
type Map struct {
	Bounds Bounds
	Cells  [][]Cell
}

// NewMap returns an all-blank map.
func NewMap(b Bounds) Map {
	cells := make([][]Cell, b.Height)
	for y := range cells {
		cells[y] = make([]Cell, b.Width)
	}
	return Map{Bounds: b, Cells: cells}
}

func (m Map) At(p Position) Cell {
	if !m.Bounds.Contains(p) {
		return Cell{}
	}
	return m.Cells[p.Y][p.X]
}

// Occupied counts non-blank cells.
func (m Map) Occupied() int {
	n := 0
	for _, row := range m.Cells {
		for _, c := range row {
			if c.Kind != CellBlank {
				n++
			}
		}
	}
	return n
}

// Rows renders the map as text, one string per row, blanks as spaces.
func (m Map) Rows() []string {
	out := make([]string, 0, len(m.Cells))
	var sb strings.Builder
	for _, row := range m.Cells {
		sb.Reset()
		for _, c := range row {
			if c.Kind == CellBlank {
				sb.WriteByte(' ')
				continue
			}
			sb.WriteRune(c.Marker)
		}
		out = append(out, sb.String())
	}
	return out
}

// Project builds a fresh blank map and stamps each occupant's marker at its clamped position.
// Occupants whose id has no marker are skipped and reported through the returned error, which
// matches ErrUnsupportedAgentID; the map still carries every supported occupant.
func Project(b Bounds, markers Markers, occupants []Occupant) (Map, error) {
	m := NewMap(b)
	var errs []error
	for _, o := range occupants {
		marker, err := markers.For(o.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p := b.Clamp(o.Pos)
		c := &m.Cells[p.Y][p.X]
		c.Kind = CellAgent
		c.AgentID = o.ID
		c.Marker = marker
		c.Count++
	}
	return m, errors.Join(errs...)
}
