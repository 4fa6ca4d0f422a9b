package main

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/charmbracelet/glamour"
	"github.com/jwebster45206/papal-schism/internal/engine"
	"github.com/jwebster45206/papal-schism/pkg/state"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// label turns a stat or faction key into a display name:
// "holyRomanEmpire" becomes "Holy Roman Empire".
func label(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return titleCaser.String(b.String())
}

func signed(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}

// statChanges lists the last choice's effects, stats first, then factions,
// each in display order. Unknown names sort last.
func statChanges(changes map[string]int) []string {
	order := make(map[string]int, len(state.StatNames)+len(state.RelationshipNames))
	for i, n := range append(append([]string{}, state.StatNames...), state.RelationshipNames...) {
		order[n] = i
	}
	names := make([]string, 0, len(changes))
	for n, d := range changes {
		if d != 0 {
			names = append(names, n)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		oi, iok := order[names[i]]
		oj, jok := order[names[j]]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})

	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, fmt.Sprintf("%s %s", signed(changes[n]), label(n)))
	}
	return out
}

// revealedDialogue returns the lines shown so far, wrapped to width.
func revealedDialogue(v engine.View, width int) []string {
	if v.State == nil {
		return nil
	}
	last := v.State.DialogueIndex
	if last >= len(v.Node.Dialogue) {
		last = len(v.Node.Dialogue) - 1
	}
	lines := make([]string, 0, last+1)
	for _, line := range v.Node.Dialogue[:last+1] {
		lines = append(lines, wordwrap.String(line, width))
	}
	return lines
}

func standing(gs *state.GameState) string {
	var b strings.Builder
	for _, n := range state.StatNames {
		v, _ := gs.Stats.StatValue(n)
		fmt.Fprintf(&b, "| %s | %d |\n", label(n), v)
	}
	for _, n := range state.RelationshipNames {
		v, _ := gs.Relationships.Value(n)
		fmt.Fprintf(&b, "| %s | %s |\n", label(n), signed(v))
	}
	return b.String()
}

// endingMarkdown is the ending screen document.
func endingMarkdown(v engine.View) string {
	if v.Ending == nil || v.State == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", v.Ending.Title, v.Ending.Text)
	b.WriteString("## Final standing\n\n| | |\n|---|---|\n")
	b.WriteString(standing(v.State))
	if flags := v.State.Flags.Sorted(); len(flags) > 0 {
		b.WriteString("\n## Deeds\n\n")
		for _, f := range flags {
			fmt.Fprintf(&b, "- %s\n", label(strings.ReplaceAll(f, "_", " ")))
		}
	}
	return b.String()
}

// endingSummary is the plain text put on the clipboard.
func endingSummary(storyName string, v engine.View) string {
	if v.Ending == nil || v.State == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n\n%s\n\n", storyName, v.Ending.Title, v.Ending.Text)
	for _, n := range state.StatNames {
		val, _ := v.State.Stats.StatValue(n)
		fmt.Fprintf(&b, "%s %d\n", label(n), val)
	}
	return b.String()
}

func renderMarkdown(md string, width int) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := renderer.Render(md)
	if err != nil {
		return md
	}
	return out
}

// standingLines renders one "Name  value" line per name. Signed values are
// shown with an explicit plus.
func standingLines(value func(string) (int, bool), names []string, signedValues bool) string {
	width := 0
	for _, n := range names {
		width = max(width, len(label(n)))
	}
	var b strings.Builder
	for _, n := range names {
		v, _ := value(n)
		shown := fmt.Sprintf("%3d", v)
		if signedValues {
			shown = fmt.Sprintf("%4s", signed(v))
		}
		fmt.Fprintf(&b, "%-*s %s\n", width, label(n), shown)
	}
	return b.String()
}
