package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/mecsim/internal/optim"
)

const costHistory = 60

// ProgressMsg carries one fitter report into the Bubble Tea loop.
type ProgressMsg optim.Progress

type closedMsg struct{}

type tickMsg time.Time

// WaitForProgress blocks on the next report. A closed channel ends the view.
func WaitForProgress(updates <-chan optim.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return ProgressMsg(p)
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// FitModel shows the live state of a fit fed through a progress channel.
type FitModel struct {
	names      []string
	iterations int
	updates    <-chan optim.Progress

	latest  optim.Progress
	seen    bool
	costs   []float64
	frame   int
	done    bool
	aborted bool
	started time.Time
}

func NewFitModel(names []string, iterations int, updates <-chan optim.Progress) FitModel {
	return FitModel{
		names:      names,
		iterations: iterations,
		updates:    updates,
		started:    time.Now(),
	}
}

// Aborted reports whether the user quit before the fit finished.
func (m FitModel) Aborted() bool { return m.aborted }

// Latest is the most recent report received.
func (m FitModel) Latest() optim.Progress { return m.latest }

func (m FitModel) Init() tea.Cmd {
	return tea.Batch(WaitForProgress(m.updates), tick())
}

func (m FitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.aborted = !m.done
			return m, tea.Quit
		}
	case ProgressMsg:
		m.latest, m.seen = optim.Progress(msg), true
		m.costs = append(m.costs, msg.Cost)
		if len(m.costs) > costHistory {
			m.costs = m.costs[1:]
		}
		if msg.Done {
			m.done = true
		}
		return m, WaitForProgress(m.updates)
	case closedMsg:
		m.done = true
		return m, tea.Quit
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, tick()
	}
	return m, nil
}

func (m FitModel) View() string {
	var b strings.Builder
	b.WriteString(Title.Render("mecsim fit") + "  ")
	switch {
	case m.done:
		b.WriteString(StatusDone.Render("done"))
	default:
		b.WriteString(StatusRunning.Render(Spinner(m.frame) + " fitting"))
	}
	b.WriteString(Subtle.Render(fmt.Sprintf("  %s", time.Since(m.started).Round(time.Second))))
	b.WriteString("\n\n")

	fraction := 0.0
	if m.iterations > 0 {
		fraction = float64(m.latest.Iteration) / float64(m.iterations)
	}
	if m.done {
		fraction = 1
	}
	fmt.Fprintf(&b, "%s %d/%d\n", ProgressBar(fraction, 40), m.latest.Iteration, m.iterations)

	if !m.seen {
		b.WriteString(Subtle.Render("waiting for the first iteration") + "\n")
		return Panel.Render(b.String())
	}

	fmt.Fprintf(&b, "%s%s\n", MetricLabel.Render("cost"), MetricValue.Render(fmt.Sprintf("%.6g", m.latest.Cost)))
	fmt.Fprintf(&b, "%s%s\n", MetricLabel.Render("step"), MetricValue.Render(fmt.Sprintf("%.3g", m.latest.StepSize)))
	fmt.Fprintf(&b, "%s%s\n\n", MetricLabel.Render("history"), SparkMid.Render(Sparkline(m.costs, 40)))

	names := append([]string(nil), m.names...)
	sort.Strings(names)
	for _, name := range names {
		v, err := m.latest.Params.Get(name)
		if err != nil {
			continue
		}
		line := fmt.Sprintf("%-14.6g", v)
		if g, ok := m.latest.Gradient[name]; ok {
			line += Subtle.Render(fmt.Sprintf(" ∂=%.3g", g))
		}
		fmt.Fprintf(&b, "%s%s\n", MetricLabel.Render(name), line)
	}

	b.WriteString("\n" + KeyHint.Render("q: quit"))
	return Panel.Render(b.String())
}
