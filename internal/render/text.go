package render

import (
	"bufio"
	"fmt"
	"io"

	"marswalk/internal/sim/world"
)

const clearScreen = "\x1b[2J\x1b[1;1H"

// Text clears the terminal and prints one line per grid row, agents as their markers.
type Text struct {
	w *bufio.Writer
}

func NewText(out io.Writer) *Text {
	return &Text{w: bufio.NewWriter(out)}
}

func (t *Text) Render(f world.Frame) error {
	if _, err := t.w.WriteString(clearScreen); err != nil {
		return err
	}
	for _, row := range f.Map.Rows() {
		if _, err := t.w.WriteString(row); err != nil {
			return err
		}
		if err := t.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(t.w, "tick %d\n", f.Tick); err != nil {
		return err
	}
	if ids := f.Unsupported(); len(ids) > 0 {
		if _, err := fmt.Fprintf(t.w, "unsupported agents: %v\n", ids); err != nil {
			return err
		}
	}
	return t.w.Flush()
}

func (t *Text) Input() world.Input { return world.ChanInput{} }
func (t *Text) Close() error       { return t.w.Flush() }
