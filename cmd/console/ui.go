package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/papal-schism/internal/decision"
	"github.com/jwebster45206/papal-schism/internal/engine"
	"github.com/jwebster45206/papal-schism/internal/session"
	"github.com/jwebster45206/papal-schism/pkg/state"
)

type screen int

const (
	screenTitle screen = iota
	screenPlaying
	screenEnding
)

// viewMsg carries a view published by the store, possibly out of order.
type viewMsg engine.View

type tickMsg decision.Countdown

type copiedMsg struct {
	err error
}

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220")). // gold
			Bold(true)

	nodeTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	dialogueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	currentLineStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("255")).
				Bold(true)

	consequenceStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Foreground(lipgloss.Color("229")).
				Italic(true).
				Padding(0, 1)

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedChoiceStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("220")).
				Bold(true)

	positiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	urgentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	sidePanelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			PaddingLeft(2)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2)
)

// ConsoleUI is the BubbleTea model of the game.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	session   *session.Session
	storyName string
	saveWhere string

	view      engine.View
	countdown *decision.Countdown
	selected  int

	keys     keyMap
	help     help.Model
	dialogue viewport.Model
	timer    progress.Model

	width, height int
	ready         bool
	showQuitModal bool
	notice        string
}

func NewConsoleUI(s *session.Session, storyName, saveWhere string) ConsoleUI {
	m := ConsoleUI{
		session:   s,
		storyName: storyName,
		saveWhere: saveWhere,
		keys:      newKeyMap(),
		help:      help.New(),
		dialogue:  viewport.New(60, 20),
		timer:     progress.New(progress.WithGradient("#FF5F5F", "#FFD75F"), progress.WithoutPercentage()),
	}
	m.setView(s.Store.View())
	return m
}

func (m ConsoleUI) Init() tea.Cmd {
	return nil
}

func (m ConsoleUI) screen() screen {
	switch {
	case m.view.State == nil || !m.view.State.HasStarted:
		return screenTitle
	case m.view.Ending != nil:
		return screenEnding
	default:
		return screenPlaying
	}
}

// setView adopts v unless a newer view is already shown.
func (m *ConsoleUI) setView(v engine.View) {
	if v.Version < m.view.Version {
		return
	}
	if v.Turn != m.view.Turn || v.AtChoices != m.view.AtChoices {
		m.selected = 0
	}
	m.view = v
	m.countdown = nil
	if cd, ok := m.session.Timer.Active(); ok && cd.Turn == v.Turn {
		m.countdown = &cd
	}
	m.clampSelection()
	m.writeDialogue()
}

func (m *ConsoleUI) clampSelection() {
	n := len(m.options())
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// options are the selectable entries of the current screen.
func (m ConsoleUI) options() []string {
	switch m.screen() {
	case screenTitle:
		if m.view.HasSave {
			return []string{"Continue", "New Game"}
		}
		return []string{"New Game"}
	case screenPlaying:
		if m.view.AtChoices && m.view.Consequence == "" {
			out := make([]string, len(m.view.VisibleChoices))
			for i, c := range m.view.VisibleChoices {
				out[i] = c.Text
			}
			return out
		}
	}
	return nil
}

func (m *ConsoleUI) apply(fn func(*engine.Store) (engine.View, error)) {
	v, err := fn(m.session.Store)
	m.notice = ""
	if err != nil && !errors.Is(err, engine.ErrDialogueExhausted) {
		m.notice = err.Error()
	}
	m.setView(v)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		m.writeDialogue()
		return m, nil

	case viewMsg:
		m.setView(engine.View(msg))
		return m, nil

	case tickMsg:
		cd := decision.Countdown(msg)
		if cd.Turn != m.view.Turn {
			return m, nil
		}
		// Relayed ticks can arrive out of order; a countdown only goes down.
		if prev := m.countdown; prev != nil && prev.Turn == cd.Turn && prev.NodeID == cd.NodeID && cd.Remaining > prev.Remaining {
			return m, nil
		}
		m.countdown = &cd
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.notice = "Copy failed: " + msg.err.Error()
		} else {
			m.notice = "Ending copied to clipboard."
		}
		return m, nil

	case tea.KeyMsg:
		if m.showQuitModal {
			return m.updateQuitModal(msg)
		}
		if key.Matches(msg, m.keys.Quit) {
			m.showQuitModal = true
			return m, nil
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.dialogue, cmd = m.dialogue.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ConsoleUI) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen() {
	case screenTitle:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.move(-1)
		case key.Matches(msg, m.keys.Down):
			m.move(1)
		case key.Matches(msg, m.keys.Select):
			if m.options()[m.selected] == "Continue" {
				m.apply((*engine.Store).Continue)
			} else {
				m.apply((*engine.Store).Start)
			}
		}

	case screenPlaying:
		switch {
		case m.view.Consequence != "" && key.Matches(msg, m.keys.Advance):
			m.apply((*engine.Store).DismissConsequence)
		case m.view.AtChoices && key.Matches(msg, m.keys.Up):
			m.move(-1)
		case m.view.AtChoices && key.Matches(msg, m.keys.Down):
			m.move(1)
		case m.view.AtChoices && key.Matches(msg, m.keys.Select):
			m.choose(m.selected)
		case m.view.AtChoices && len(msg.Runes) == 1 && msg.Runes[0] >= '1' && msg.Runes[0] <= '9':
			m.choose(int(msg.Runes[0] - '1'))
		case !m.view.AtChoices && key.Matches(msg, m.keys.Advance):
			m.apply((*engine.Store).AdvanceDialogue)
		default:
			var cmd tea.Cmd
			m.dialogue, cmd = m.dialogue.Update(msg)
			return m, cmd
		}

	case screenEnding:
		switch {
		case key.Matches(msg, m.keys.Copy):
			return m, copyEnding(endingSummary(m.storyName, m.view))
		case key.Matches(msg, m.keys.Restart), key.Matches(msg, m.keys.Select):
			m.apply((*engine.Store).Restart)
		default:
			var cmd tea.Cmd
			m.dialogue, cmd = m.dialogue.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *ConsoleUI) move(delta int) {
	m.selected += delta
	m.clampSelection()
}

func (m *ConsoleUI) choose(i int) {
	if i < 0 || i >= len(m.view.VisibleChoices) {
		return
	}
	id := m.view.VisibleChoices[i].ID
	m.apply(func(s *engine.Store) (engine.View, error) { return s.ApplyChoice(id) })
}

func copyEnding(text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{err: clipboard.WriteAll(text)}
	}
}

func (m ConsoleUI) updateQuitModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter", "ctrl+c":
		return m, tea.Quit
	case "n", "N", "esc":
		m.showQuitModal = false
	}
	return m, nil
}

func (m *ConsoleUI) mainWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(20, m.width*2/3-2)
}

func (m *ConsoleUI) resize() {
	w := m.mainWidth()
	m.dialogue.Width = w
	m.dialogue.Height = max(5, m.height-12)
	m.timer.Width = min(w, 60)
	m.help.Width = m.width
}

func (m *ConsoleUI) writeDialogue() {
	w := m.mainWidth()
	if m.screen() == screenEnding {
		m.dialogue.SetContent(renderMarkdown(endingMarkdown(m.view), w))
		m.dialogue.GotoTop()
		return
	}
	lines := revealedDialogue(m.view, w)
	var b strings.Builder
	for i, line := range lines {
		if i == len(lines)-1 {
			b.WriteString(currentLineStyle.Render(line))
		} else {
			b.WriteString(dialogueStyle.Render(line))
		}
		b.WriteString("\n\n")
	}
	m.dialogue.SetContent(b.String())
	m.dialogue.GotoBottom()
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	switch m.screen() {
	case screenTitle:
		return m.renderTitle()
	case screenEnding:
		return m.renderEnding()
	}
	return m.renderPlaying()
}

func (m ConsoleUI) renderTitle() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(strings.ToUpper(m.storyName)) + "\n\n")
	b.WriteString(mutedStyle.Render("Saves: "+m.saveWhere) + "\n\n")
	m.renderOptions(&b)
	b.WriteString("\n" + m.help.View(bindings{m.keys.Up, m.keys.Down, m.keys.Select, m.keys.Quit}))
	if m.notice != "" {
		b.WriteString("\n\n" + urgentStyle.Render(m.notice))
	}
	box := modalStyle.Width(min(60, m.width-4)).Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m ConsoleUI) renderOptions(b *strings.Builder) {
	for i, opt := range m.options() {
		line := fmt.Sprintf("%d. %s", i+1, opt)
		if i == m.selected {
			b.WriteString(selectedChoiceStyle.Render("▶ "+line) + "\n")
		} else {
			b.WriteString(choiceStyle.Render("  "+line) + "\n")
		}
	}
}

func (m ConsoleUI) renderPlaying() string {
	var body strings.Builder
	title := m.view.Node.Title
	if title == "" {
		title = label(m.view.Node.ID)
	}
	body.WriteString(nodeTitleStyle.Render(title) + "\n\n")
	body.WriteString(m.dialogue.View() + "\n")

	keys := bindings{m.keys.Advance, m.keys.Quit}
	switch {
	case m.view.Consequence != "":
		body.WriteString(consequenceStyle.Width(m.mainWidth()-2).Render(m.view.Consequence) + "\n")
		body.WriteString(mutedStyle.Render("press space") + "\n")
	case m.view.Stalled:
		body.WriteString(urgentStyle.Render("No path lies open from here.") + "\n")
	case m.view.AtChoices:
		if m.countdown != nil {
			body.WriteString(m.renderCountdown() + "\n")
		}
		m.renderOptions(&body)
		keys = bindings{m.keys.Up, m.keys.Down, m.keys.Select, m.keys.Quit}
	default:
		body.WriteString(mutedStyle.Render(fmt.Sprintf("%d/%d", m.view.State.DialogueIndex+1, len(m.view.Node.Dialogue))) + "\n")
	}
	if m.notice != "" {
		body.WriteString(urgentStyle.Render(m.notice) + "\n")
	}
	body.WriteString("\n" + m.help.View(keys))

	left := lipgloss.NewStyle().Width(m.mainWidth()).Render(body.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, m.renderSidePanel())
}

func (m ConsoleUI) renderCountdown() string {
	cd := m.countdown
	secs := fmt.Sprintf(" %ds", cd.Remaining)
	if cd.Urgent() {
		secs = urgentStyle.Render(secs)
	}
	return m.timer.ViewAs(cd.Fraction()) + secs
}

func (m ConsoleUI) renderSidePanel() string {
	var b strings.Builder
	gs := m.view.State
	b.WriteString(titleStyle.Render("THE HOLY SEE") + "\n\n")
	b.WriteString(standingLines(gs.Stats.StatValue, state.StatNames, false))
	b.WriteString("\n" + titleStyle.Render("THE CROWNS") + "\n\n")
	b.WriteString(standingLines(gs.Relationships.Value, state.RelationshipNames, true))

	if changes := statChanges(m.view.LastStatChanges); len(changes) > 0 {
		b.WriteString("\n" + titleStyle.Render("LAST DECREE") + "\n\n")
		for _, c := range changes {
			if strings.HasPrefix(c, "+") {
				b.WriteString(positiveStyle.Render(c) + "\n")
			} else {
				b.WriteString(negativeStyle.Render(c) + "\n")
			}
		}
	}
	b.WriteString("\n" + mutedStyle.Render(fmt.Sprintf("Turn %d", m.view.Turn)))
	return sidePanelStyle.Render(b.String())
}

func (m ConsoleUI) renderEnding() string {
	var b strings.Builder
	b.WriteString(m.dialogue.View() + "\n")
	if m.notice != "" {
		b.WriteString(positiveStyle.Render(m.notice) + "\n")
	}
	b.WriteString(m.help.View(bindings{m.keys.Copy, m.keys.Restart, m.keys.Quit}))
	return b.String()
}

func (m ConsoleUI) renderQuitModal() string {
	var content strings.Builder
	content.WriteString(nodeTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Your progress is saved.")
	content.WriteString("\n\n")
	content.WriteString(mutedStyle.Render("Press Y to quit, N to continue"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}
