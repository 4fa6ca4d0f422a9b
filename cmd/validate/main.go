package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/jwebster45206/papal-schism/pkg/story"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <story.json|story.yaml>...\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		validator := &StoryValidator{}
		if err := validator.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		for _, w := range validator.warnings {
			fmt.Printf("warning:%s\n", w)
		}
		fmt.Printf("%s is valid!\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

type StoryValidator struct {
	errors   []string
	warnings []string
}

func (v *StoryValidator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	format, err := story.FormatFromPath(filename)
	if err != nil {
		return err
	}

	baseName := filepath.Base(filename)
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	if !isValidStoryFilename(nameWithoutExt) {
		return fmt.Errorf("story filename '%s' must be lowercase snake_case (e.g., my_story.json, not my-story.json or MyStory.json)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	v.errors = nil
	v.warnings = nil

	graph, err := story.ParseStrict(data, format)
	if err != nil {
		var verr *story.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("integrity errors in %s:\n  - %s", filename, strings.Join(verr.Problems, "\n  - "))
		}
		return fmt.Errorf("file %s failed strict unmarshaling: %w", filename, err)
	}

	v.validateGraph(graph)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *StoryValidator) validateGraph(g *story.Graph) {
	added := map[string]bool{}
	gated := map[string][]string{}

	for _, id := range g.IDs() {
		n, _ := g.Node(id)
		v.validateIDFormat("node ID", n.ID)

		for _, c := range n.Choices {
			where := fmt.Sprintf("node %s choice %s", n.ID, c.ID)
			v.validateIDFormat("choice ID", c.ID)
			for _, f := range append(append([]string{}, c.AddFlags...), c.RemoveFlags...) {
				v.validateFlagName(where, f)
			}
			for _, f := range c.AddFlags {
				added[f] = true
			}
			for _, f := range append(append([]string{}, c.RequiresFlags...), c.ExcludesFlags...) {
				v.validateFlagName(where, f)
				gated[f] = append(gated[f], where)
			}
		}

		if n.TimedDecision != nil {
			if def, ok := n.DefaultChoice(); ok && len(def.RequiresFlags) > 0 {
				v.addWarning(fmt.Sprintf("node %s timed default %s is flag-gated; the first visible choice is used when it is hidden", n.ID, def.ID))
			}
		}
	}

	for _, id := range g.Unreachable() {
		v.addWarning(fmt.Sprintf("node %s is unreachable from the start node", id))
	}

	flags := make([]string, 0, len(gated))
	for f := range gated {
		flags = append(flags, f)
	}
	sort.Strings(flags)
	for _, f := range flags {
		if !added[f] {
			v.addWarning(fmt.Sprintf("flag %s gates %s but no choice adds it", f, strings.Join(gated[f], ", ")))
		}
	}
}

func (v *StoryValidator) validateFlagName(context, name string) {
	if !isValidFlagName(name) {
		v.addError(fmt.Sprintf("%s has invalid flag name '%s' - should be lowercase snake_case", context, name))
	}
}

func (v *StoryValidator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}

	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase snake_case", fieldName, id))
	}
}

func (v *StoryValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

func (v *StoryValidator) addWarning(msg string) {
	v.warnings = append(v.warnings, "  - "+msg)
}

var (
	validIDRegex       = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validFlagRegex     = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isValidFlagName(name string) bool {
	return validFlagRegex.MatchString(name)
}

func isValidStoryFilename(name string) bool {
	// Allow 'x.' prefix for experimental stories
	name = strings.TrimPrefix(name, "x.")
	return validFilenameRegex.MatchString(name)
}
