package render

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"marswalk/internal/sim/grid"
	"marswalk/internal/sim/trail"
	"marswalk/internal/sim/world"
)

const trailDot = "•"

var errTUIClosed = errors.New("tui program exited")

type frameMsg world.Frame

// TUI runs a bubbletea program on its own goroutine and feeds it one frame per tick.
type TUI struct {
	p   *tea.Program
	log zerolog.Logger

	quit     chan struct{}
	quitOnce sync.Once

	done   chan struct{}
	runErr error
}

func NewTUI(opts Options) (*TUI, error) {
	t := &TUI{
		log:  opts.Logger.With().Str("component", "tui").Logger(),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	var popts []tea.ProgramOption
	if opts.AltScreen {
		popts = append(popts, tea.WithAltScreen())
	}
	// Quit keys are handled by the model; signals reach the loop through its context.
	popts = append(popts, tea.WithoutSignalHandler())
	t.p = tea.NewProgram(newModel(t.requestQuit), popts...)
	go func() {
		defer close(t.done)
		if _, err := t.p.Run(); err != nil {
			t.runErr = err
			t.log.Error().Err(err).Msg("tui exited")
		}
		t.requestQuit()
	}()
	return t, nil
}

func (t *TUI) requestQuit() { t.quitOnce.Do(func() { close(t.quit) }) }

func (t *TUI) Render(f world.Frame) error {
	select {
	case <-t.done:
		if t.runErr != nil {
			return fmt.Errorf("%w: %v", errTUIClosed, t.runErr)
		}
		return nil
	default:
	}
	t.p.Send(frameMsg(f))
	return nil
}

func (t *TUI) Input() world.Input { return world.ChanInput{Quit: t.quit} }

// Close stops the program and restores the terminal.
func (t *TUI) Close() error {
	t.p.Quit()
	<-t.done
	return t.runErr
}

type model struct {
	frame world.Frame
	have  bool
	quit  func()
}

func newModel(quit func()) model { return model{quit: quit} }

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.frame = world.Frame(msg)
		m.have = true
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "enter", "esc", "ctrl+c":
			if m.quit != nil {
				m.quit()
			}
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	if !m.have {
		return "waiting for first tick...\n"
	}
	return DrawFrame(m.frame)
}

var (
	agentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	trailStyles = func() map[trail.Bucket]lipgloss.Style {
		out := make(map[trail.Bucket]lipgloss.Style)
		for _, b := range trail.Buckets() {
			out[b] = lipgloss.NewStyle().Foreground(lipgloss.Color(b.Color()))
		}
		return out
	}()
)

// DrawFrame renders the map with trail dots colored by age and agents on top.
func DrawFrame(f world.Frame) string {
	marks := make(map[grid.Position]trail.Bucket, len(f.Trail))
	for _, m := range f.Trail {
		marks[m.Pos] = m.Bucket
	}

	var sb strings.Builder
	for y := 0; y < f.Bounds.Height; y++ {
		for x := 0; x < f.Bounds.Width; x++ {
			p := grid.Position{X: x, Y: y}
			c := f.Map.At(p)
			switch {
			case c.Kind == grid.CellAgent:
				sb.WriteString(agentStyle.Render(string(c.Marker)))
			default:
				if b, ok := marks[p]; ok {
					sb.WriteString(trailStyles[b].Render(trailDot))
				} else {
					sb.WriteByte(' ')
				}
			}
		}
		if y < f.Bounds.Height-1 {
			sb.WriteByte('\n')
		}
	}

	body := titleStyle.Render("Mars Map") + "\n" + boxStyle.Render(sb.String())
	footer := mutedStyle.Render(fmt.Sprintf("tick %d · %d agents · q/enter/esc to quit", f.Tick, len(f.Agents)))
	if ids := f.Unsupported(); len(ids) > 0 {
		footer += "\n" + warnStyle.Render(fmt.Sprintf("no marker for agents %v", ids))
	}
	return body + "\n" + footer + "\n"
}
