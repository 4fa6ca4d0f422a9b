package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/jwebster45206/papal-schism/data"
	"github.com/jwebster45206/papal-schism/internal/decision"
	"github.com/jwebster45206/papal-schism/internal/engine"
	"github.com/jwebster45206/papal-schism/internal/session"
	"github.com/jwebster45206/papal-schism/pkg/ending"
	"github.com/jwebster45206/papal-schism/pkg/state"
	"github.com/jwebster45206/papal-schism/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUI(t *testing.T) ConsoleUI {
	t.Helper()
	graph, err := data.DefaultStory()
	require.NoError(t, err)
	manager := session.NewManager(session.Options{
		Storage: storage.NewMockStorage(),
		Graph:   graph,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(manager.Close)

	s, _, err := manager.Open(context.Background(), uuid.New())
	require.NoError(t, err)

	model, _ := NewConsoleUI(s, graph.Name(), "memory").Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return model.(ConsoleUI)
}

func press(t *testing.T, m ConsoleUI, keys ...tea.KeyMsg) ConsoleUI {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(ConsoleUI)
	}
	return m
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

func digit(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestConsoleUI_PlaysOpening(t *testing.T) {
	m := newTestUI(t)
	assert.Equal(t, screenTitle, m.screen())
	assert.Equal(t, []string{"New Game"}, m.options())

	m = press(t, m, enter)
	require.Equal(t, screenPlaying, m.screen())
	assert.Equal(t, "opening", m.view.State.CurrentNodeID)

	for i := 0; i < 6; i++ {
		m = press(t, m, space)
	}
	require.True(t, m.view.AtChoices)
	assert.Len(t, m.options(), 3)
	assert.Contains(t, m.View(), "1. ")

	m = press(t, m, digit('1'))
	assert.Equal(t, "first_council", m.view.State.CurrentNodeID)
	assert.NotEmpty(t, m.view.LastStatChanges)
	assert.Contains(t, m.View(), "LAST DECREE")
}

func TestConsoleUI_ArrowSelection(t *testing.T) {
	m := newTestUI(t)
	m = press(t, m, enter)
	for i := 0; i < 6; i++ {
		m = press(t, m, space)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown}, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 2, m.selected)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 1, m.selected)

	chosen := m.view.VisibleChoices[1]
	m = press(t, m, enter)
	assert.Equal(t, chosen.NextNodeID, m.view.State.CurrentNodeID)
	assert.Equal(t, 0, m.selected)
}

func TestConsoleUI_IgnoresOlderViews(t *testing.T) {
	m := newTestUI(t)
	old := m.view
	m = press(t, m, enter)
	current := m.view.Version

	next, _ := m.Update(viewMsg(old))
	m = next.(ConsoleUI)

	assert.Equal(t, current, m.view.Version)
	assert.Equal(t, screenPlaying, m.screen())
}

func TestConsoleUI_CountdownNeverRewinds(t *testing.T) {
	m := newTestUI(t)
	m = press(t, m, enter)
	node, turn := m.view.Node.ID, m.view.Turn

	send := func(cd decision.Countdown) {
		next, _ := m.Update(tickMsg(cd))
		m = next.(ConsoleUI)
	}

	send(decision.Countdown{NodeID: node, Turn: turn, Remaining: 5, Limit: 10})
	send(decision.Countdown{NodeID: node, Turn: turn, Remaining: 7, Limit: 10})
	require.NotNil(t, m.countdown)
	assert.Equal(t, 5, m.countdown.Remaining, "a late tick is ignored")

	send(decision.Countdown{NodeID: node, Turn: turn, Remaining: 4, Limit: 10})
	assert.Equal(t, 4, m.countdown.Remaining)

	send(decision.Countdown{NodeID: node, Turn: turn + 1, Remaining: 1, Limit: 10})
	assert.Equal(t, 4, m.countdown.Remaining, "a tick for another turn is ignored")
}

func TestConsoleUI_QuitModal(t *testing.T) {
	m := newTestUI(t)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, m.showQuitModal)
	assert.Contains(t, m.View(), "Quit Game?")

	m = press(t, m, digit('n'))
	assert.False(t, m.showQuitModal)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	_, cmd := m.Update(digit('y'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Holy Roman Empire", label("holyRomanEmpire"))
	assert.Equal(t, "Legitimacy", label("legitimacy"))
	assert.Equal(t, "Blessed France", label("blessed france"))
}

func TestStatChanges(t *testing.T) {
	got := statChanges(map[string]int{"france": -30, "piety": 10, "legitimacy": 5, "gold": 0})
	assert.Equal(t, []string{"+5 Legitimacy", "+10 Piety", "-30 France"}, got)
	assert.Empty(t, statChanges(nil))
}

func TestRevealedDialogue(t *testing.T) {
	gs := state.NewGameState()
	gs.DialogueIndex = 1
	v := engine.View{State: gs}
	v.Node.Dialogue = []string{"one", "two", "three"}

	assert.Equal(t, []string{"one", "two"}, revealedDialogue(v, 40))
	assert.Nil(t, revealedDialogue(engine.View{}, 40))
}

func TestEndingText(t *testing.T) {
	gs := state.NewGameState()
	gs.IsComplete = true
	gs.Flags.Add("fled_rome")
	v := engine.View{State: gs, Ending: &ending.Exile}

	md := endingMarkdown(v)
	assert.Contains(t, md, "# "+ending.Exile.Title)
	assert.Contains(t, md, "| Holy Roman Empire | 0 |")
	assert.Contains(t, md, "- Fled Rome")

	summary := endingSummary("The Papal Schism", v)
	assert.Contains(t, summary, "The Papal Schism: "+ending.Exile.Title)
	assert.Contains(t, summary, "Piety 50")

	assert.Empty(t, endingMarkdown(engine.View{State: gs}))
}
