// Package tui renders a live convergence monitor for a running realm.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/saitoasukakawaii/nalu-wind/internal/realm"
)

const (
	barWidth        = 30
	graphWidth      = 50
	graphHeight     = 8
	historyCapacity = 600
)

type stepMsg realm.Step

type doneMsg struct{}

// Model is the bubbletea model of the live monitor. It consumes steps from
// a feed until the feed closes.
type Model struct {
	name    string
	systems []string
	total   int
	feed    <-chan realm.Step
	cancel  context.CancelFunc

	steps    []realm.Step
	history  []float64
	finished bool
	quitting bool
	width    int
}

func NewModel(name string, systems []string, total int, feed <-chan realm.Step, cancel context.CancelFunc) Model {
	return Model{
		name:    name,
		systems: systems,
		total:   total,
		feed:    feed,
		cancel:  cancel,
		history: make([]float64, 0, historyCapacity),
		width:   80,
	}
}

func waitForStep(feed <-chan realm.Step) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-feed
		if !ok {
			return doneMsg{}
		}
		return stepMsg(s)
	}
}

func (m Model) Init() tea.Cmd {
	return waitForStep(m.feed)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case stepMsg:
		s := realm.Step(msg)
		m.steps = append(m.steps, s)
		if len(m.history) == historyCapacity {
			m.history = m.history[1:]
		}
		m.history = append(m.history, log10(s.SystemNorm))
		return m, waitForStep(m.feed)
	case doneMsg:
		m.finished = true
	}
	return m, nil
}

// log10 clamps zero norms so the chart stays finite.
func log10(v float64) float64 {
	return math.Log10(math.Max(v, 1e-16))
}

func (m Model) status() string {
	switch {
	case m.finished && len(m.steps) < m.total:
		return statusFailed.Render("STOPPED")
	case m.finished:
		return statusDone.Render("DONE")
	default:
		return statusRunning.Render("RUNNING")
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.name)) + "\n\n")
	s.WriteString(m.status() + "  ")

	fraction := 0.0
	if m.total > 0 {
		fraction = float64(len(m.steps)) / float64(m.total)
	}
	s.WriteString(progressBar(fraction, barWidth))
	s.WriteString(fmt.Sprintf(" %d/%d\n", len(m.steps), m.total))

	if len(m.history) > 1 {
		chart := asciigraph.Plot(m.history,
			asciigraph.Height(graphHeight),
			asciigraph.Width(graphWidth),
			asciigraph.Caption("log10 system norm"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	if n := len(m.steps); n > 0 {
		last := m.steps[n-1]
		converged := 0
		for _, st := range m.steps {
			if st.Converged {
				converged++
			}
		}
		s.WriteString("\n")
		s.WriteString(labelStyle.Render("Time") + valueStyle.Render(fmt.Sprintf("%.4g", last.Time)) + "\n")
		s.WriteString(labelStyle.Render("Iterations") + valueStyle.Render(fmt.Sprintf("%d", last.Iterations)) + "\n")
		s.WriteString(labelStyle.Render("Converged") + valueStyle.Render(fmt.Sprintf("%d/%d", converged, n)) + "\n")
		s.WriteString(labelStyle.Render("System norm") + normStyle(last.SystemNorm).Render(fmt.Sprintf("%.3e", last.SystemNorm)) + "\n")

		s.WriteString("\nSYSTEMS\n")
		for _, name := range m.systems {
			norm := last.Norms[name]
			s.WriteString("  " + labelStyle.Render(name) + normStyle(norm).Render(fmt.Sprintf("%.3e", norm)) + "\n")
		}
	}

	s.WriteString(helpStyle.Render("Q:Quit"))
	return lipgloss.NewStyle().MaxWidth(m.width).Render(panelStyle.Render(s.String()))
}

// feed forwards steps to the monitor until ctx ends.
type feed struct {
	ctx context.Context
	ch  chan realm.Step
}

func (f *feed) OnStep(s realm.Step) {
	select {
	case f.ch <- s:
	case <-f.ctx.Done():
	}
}

// Run runs r under the live monitor and returns its result once both the
// run and the monitor have finished. Quitting the monitor cancels the run.
func Run(ctx context.Context, r *realm.Realm, opts ...tea.ProgramOption) (*realm.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f := &feed{ctx: ctx, ch: make(chan realm.Step)}
	r.AddObserver(f)

	type outcome struct {
		res *realm.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := r.Run(ctx)
		close(f.ch)
		done <- outcome{res, err}
	}()

	m := NewModel(r.Name(), r.SolvingSystems(), r.Config().TimeIntegrator.Steps, f.ch, cancel)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		cancel()
		<-done
		return nil, err
	}
	out := <-done
	return out.res, out.err
}

