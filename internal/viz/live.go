package viz

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/porosim/internal/engine"
	"github.com/san-kum/porosim/internal/grid"
	"github.com/san-kum/porosim/internal/sim"
)

const (
	historyCapacity = 400
	graphWidth      = 60
	graphHeight     = 6
	mapMaxWidth     = 48
	mapMaxHeight    = 18
)

type status int

const (
	running status = iota
	paused
	done
	failed
)

type TickMsg time.Time

// Monitor is the live terminal view of one running simulation. Each UI
// tick advances the stream by one accepted step, so the display rate
// bounds the simulation rate.
type Monitor struct {
	run    *sim.Run
	stream *engine.Stream

	state *grid.State
	last  *engine.Step

	dtHistory  []float64
	cflHistory []float64

	status status
	err    error
}

func NewMonitor(run *sim.Run) (*Monitor, error) {
	stream, err := run.Stream()
	if err != nil {
		return nil, err
	}
	return &Monitor{
		run:        run,
		stream:     stream,
		state:      run.InitialState(),
		dtHistory:  make([]float64, 0, historyCapacity),
		cflHistory: make([]float64, 0, historyCapacity),
	}, nil
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m *Monitor) Init() tea.Cmd {
	return tick()
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.stream.Close()
			return m, tea.Quit
		case " ":
			switch m.status {
			case running:
				m.status = paused
			case paused:
				m.status = running
			}
		}
	case TickMsg:
		if m.status == running {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

func (m *Monitor) advance() {
	step, err := m.stream.Next()
	if err != nil {
		if errors.Is(err, engine.ErrDone) {
			m.status = done
		} else {
			m.status = failed
			m.err = err
		}
		m.stream.Close()
		return
	}

	m.state = step.State
	m.last = step
	m.dtHistory = appendBounded(m.dtHistory, step.StepSize)
	m.cflHistory = appendBounded(m.cflHistory, step.Diag.CFL)
}

func appendBounded(hist []float64, v float64) []float64 {
	if len(hist) >= historyCapacity {
		hist = hist[1:]
	}
	return append(hist, v)
}

func (m *Monitor) View() string {
	var b strings.Builder

	b.WriteString(HeaderStyle.Render(fmt.Sprintf("porosim · %s", m.run.Config.Scenario)))
	b.WriteString("  ")
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	progress := m.state.Time / m.run.Config.Horizon
	b.WriteString(fmt.Sprintf("t = %s / %s  ", formatSeconds(m.state.Time), formatSeconds(m.run.Config.Horizon)))
	b.WriteString(ProgressBar(progress, 40))
	b.WriteString("\n\n")

	left := PanelStyle.Render(m.saturationMap())
	right := PanelStyle.Render(m.statsPanel())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	b.WriteString("\n")

	if len(m.dtHistory) > 1 {
		b.WriteString(graphStyle.Render(asciigraph.Plot(m.dtHistory,
			asciigraph.Height(graphHeight), asciigraph.Width(graphWidth),
			asciigraph.Caption("step size (s)"))))
		b.WriteString("\n")
		b.WriteString(graphStyle.Render(asciigraph.Plot(m.cflHistory,
			asciigraph.Height(graphHeight), asciigraph.Width(graphWidth),
			asciigraph.Caption("realized CFL"))))
		b.WriteString("\n")
	}

	b.WriteString(KeyHint.Render("space pause · q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m *Monitor) statusLine() string {
	switch m.status {
	case running:
		return StatusRunning.Render("running")
	case paused:
		return StatusPaused.Render("paused")
	case done:
		return StatusRunning.Render("complete")
	default:
		return StatusFailed.Render("failed: " + m.err.Error())
	}
}

// saturationMap renders the top layer of the water saturation field,
// downsampled to fit the panel.
func (m *Monitor) saturationMap() string {
	g := m.state.Geom
	sx := (g.Nx + mapMaxWidth - 1) / mapMaxWidth
	sy := (g.Ny + mapMaxHeight - 1) / mapMaxHeight
	if sx < 1 {
		sx = 1
	}
	if sy < 1 {
		sy = 1
	}

	var b strings.Builder
	b.WriteString(MetricLabel.Render("water saturation"))
	b.WriteString("\n")
	for j := 0; j < g.Ny; j += sy {
		for i := 0; i < g.Nx; i += sx {
			b.WriteRune(saturationRune(m.state.Sw[g.Index(i, j, 0)]))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Monitor) statsPanel() string {
	sum := m.run.Stats.Summary()

	row := func(label, value string) string {
		return MetricLabel.Render(fmt.Sprintf("%-12s", label)) + MetricValue.Render(value) + "\n"
	}

	var b strings.Builder
	b.WriteString(row("steps", fmt.Sprintf("%d", sum.Accepts)))
	b.WriteString(row("rejects", fmt.Sprintf("%d mild / %d severe", sum.MildRejects, sum.SevereRejects)))
	if m.last != nil {
		b.WriteString(row("dt", formatSeconds(m.last.StepSize)))
		b.WriteString(row("cfl", fmt.Sprintf("%.3f", m.last.Diag.CFL)))
		b.WriteString(row("solver", fmt.Sprintf("%s (%d it)", m.last.Diag.Solver, m.last.Diag.Iterations)))
	}
	for name, wins := range sum.SolverWins {
		b.WriteString(row("wins·"+name, fmt.Sprintf("%d", wins)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSeconds(s float64) string {
	switch {
	case s >= 3600:
		return fmt.Sprintf("%.1fh", s/3600)
	case s >= 60:
		return fmt.Sprintf("%.1fm", s/60)
	default:
		return fmt.Sprintf("%.1fs", s)
	}
}
