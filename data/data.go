// Package data holds the story content shipped with the engine.
package data

import (
	_ "embed"

	"github.com/jwebster45206/papal-schism/pkg/story"
)

// DefaultStoryFile is the name of the embedded story.
const DefaultStoryFile = "papal_schism.json"

//go:embed stories/papal_schism.json
var papalSchism []byte

// PapalSchism returns the raw embedded story document.
func PapalSchism() []byte {
	return append([]byte(nil), papalSchism...)
}

// DefaultStory parses and validates the embedded story.
func DefaultStory() (*story.Graph, error) {
	return story.Parse(papalSchism, story.FormatJSON)
}

// LoadStory loads the story file at path, or the embedded story when path is empty.
func LoadStory(path string) (*story.Graph, error) {
	if path == "" {
		return DefaultStory()
	}
	return story.Load(path)
}
