package grid

import (
	"errors"
	"fmt"
	"unicode"
)

// ErrUnsupportedAgentID is matched by every *UnsupportedAgentIDError.
var ErrUnsupportedAgentID = errors.New("unsupported agent id")

// UnsupportedAgentIDError reports an agent id with no entry in the marker table.
type UnsupportedAgentIDError struct {
	ID        int
	Supported int
}

func (e *UnsupportedAgentIDError) Error() string {
	return fmt.Sprintf("agent id %d has no marker (table holds %d)", e.ID, e.Supported)
}

func (e *UnsupportedAgentIDError) Is(target error) bool { return target == ErrUnsupportedAgentID }

// Markers maps agent id i to Markers[i].
type Markers []rune

// DefaultMarkers is the five-symbol table the simulator ships with.
var DefaultMarkers = Markers{'@', '%', '#', '*', '+'}

// ParseMarkers turns a string such as "@%#*+" into a table, one rune per agent id.
func ParseMarkers(s string) Markers {
	return Markers([]rune(s))
}

func (m Markers) String() string { return string(m) }

// For returns the marker for id or an *UnsupportedAgentIDError.
func (m Markers) For(id int) (rune, error) {
	if id < 0 || id >= len(m) {
		return 0, &UnsupportedAgentIDError{ID: id, Supported: len(m)}
	}
	return m[id], nil
}

// Validate rejects empty tables, blank symbols and symbols shared by two ids.
func (m Markers) Validate() error {
	if len(m) == 0 {
		return errors.New("marker table is empty")
	}
	seen := make(map[rune]int, len(m))
	for id, r := range m {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return fmt.Errorf("marker for id %d is not a printable symbol", id)
		}
		if prev, ok := seen[r]; ok {
			return fmt.Errorf("marker %q used by ids %d and %d", r, prev, id)
		}
		seen[r] = id
	}
	return nil
}
