// Package grid holds the fixed 2D board: positions, bounds clamping, the per-agent marker
// table and the projection of agent positions onto a blank map.
package grid

import "marswalk/internal/sim/mathx"

// Position is a cell coordinate. Valid positions satisfy 0 <= X < Width and 0 <= Y < Height.
type Position struct {
	X int `json:"x" yaml:"x" toml:"x"`
	Y int `json:"y" yaml:"y" toml:"y"`
}

// Delta is a single-step displacement; both components are in {-1, 0, 1}.
type Delta struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

func (p Position) Add(d Delta) Position {
	return Position{X: p.X + d.DX, Y: p.Y + d.DY}
}

// Bounds is the grid size. It is fixed for the lifetime of a run.
type Bounds struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (b Bounds) Contains(p Position) bool {
	return p.X >= 0 && p.X < b.Width && p.Y >= 0 && p.Y < b.Height
}

// Clamp pulls p back inside the grid along each axis independently.
func (b Bounds) Clamp(p Position) Position {
	return Position{
		X: mathx.ClampInt(p.X, 0, b.Width-1),
		Y: mathx.ClampInt(p.Y, 0, b.Height-1),
	}
}

func (b Bounds) Area() int { return b.Width * b.Height }
