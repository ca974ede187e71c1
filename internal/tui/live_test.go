package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/saitoasukakawaii/nalu-wind/internal/realm"
)

func step(i int, norm float64) realm.Step {
	return realm.Step{
		Index:      i,
		Time:       0.1 * float64(i),
		Iterations: 2,
		Converged:  true,
		SystemNorm: norm,
		Norms:      map[string]float64{"MomentumEQS": norm, "myEnth": norm / 2},
	}
}

func TestModelConsumesSteps(t *testing.T) {
	feed := make(chan realm.Step, 2)
	feed <- step(1, 1e-3)
	feed <- step(2, 1e-7)
	close(feed)

	var m tea.Model = NewModel("channel", []string{"MomentumEQS", "myEnth"}, 2, feed, nil)
	cmd := m.Init()
	for cmd != nil {
		m, cmd = m.Update(cmd())
	}

	got := m.(Model)
	if len(got.steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(got.steps))
	}
	if !got.finished {
		t.Error("expected monitor to finish when the feed closes")
	}

	view := got.View()
	for _, want := range []string{"CHANNEL", "DONE", "2/2", "MomentumEQS", "myEnth", "log10 system norm"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModelStoppedEarly(t *testing.T) {
	feed := make(chan realm.Step)
	close(feed)

	var m tea.Model = NewModel("channel", nil, 5, feed, nil)
	m, _ = m.Update(m.Init()())
	if !strings.Contains(m.View(), "STOPPED") {
		t.Error("expected STOPPED status for a short run")
	}
}

func TestQuitCancels(t *testing.T) {
	cancelled := false
	m := NewModel("channel", nil, 1, make(chan realm.Step), func() { cancelled = true })

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !cancelled {
		t.Error("expected quit to cancel the run")
	}
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if updated.View() != "" {
		t.Error("expected empty view after quitting")
	}
}

func TestLog10Clamps(t *testing.T) {
	if got := log10(0); got != -16 {
		t.Errorf("expected -16 for zero norm, got %g", got)
	}
	if got := log10(100); got != 2 {
		t.Errorf("expected 2, got %g", got)
	}
}
