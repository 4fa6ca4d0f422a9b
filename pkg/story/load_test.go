package story

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonStory = `{
  "name": "Tiny",
  "nodes": [
    {
      "id": "opening",
      "dialogue": ["Habemus papam."],
      "timedDecision": { "timeLimit": 7, "defaultChoiceIndex": 1 },
      "choices": [
        { "id": "bless", "text": "Bless", "nextNodeId": "end", "statDeltas": { "piety": 5 } },
        { "id": "curse", "text": "Curse", "nextNodeId": "end", "addFlags": ["cursed"] }
      ]
    },
    { "id": "end", "dialogue": ["Fin."], "isEnding": true }
  ]
}`

const yamlStory = `
name: Tiny
nodes:
  - id: opening
    scene: coronation
    dialogue:
      - Habemus papam.
    timedDecision:
      timeLimitSeconds: 7
      defaultChoiceIndex: 1
    choices:
      - id: bless
        text: Bless
        nextNodeId: end
        statDeltas:
          piety: 5
      - id: curse
        text: Curse
        nextNodeId: end
        requiresFlags: [heretic]
  - id: end
    dialogue: [Fin.]
    isEnding: true
`

func TestParse_JSON(t *testing.T) {
	g, err := Parse([]byte(jsonStory), FormatJSON)
	require.NoError(t, err)

	start := g.Start()
	require.NotNil(t, start.TimedDecision)
	assert.Equal(t, 7, start.TimedDecision.TimeLimitSeconds, "legacy timeLimit is accepted")
	assert.Equal(t, 1, start.TimedDecision.DefaultChoiceIndex)
	assert.Equal(t, 5, start.Choices[0].StatDeltas["piety"])
	assert.Equal(t, []string{"cursed"}, start.Choices[1].AddFlags)
}

func TestParse_YAML(t *testing.T) {
	g, err := Parse([]byte(yamlStory), FormatYAML)
	require.NoError(t, err)

	start := g.Start()
	assert.Equal(t, SceneCoronation, start.Scene)
	assert.Equal(t, 7, start.TimedDecision.TimeLimitSeconds)
	assert.Equal(t, []string{"heretic"}, start.Choices[1].RequiresFlags)
}

func TestParse_InvalidContent(t *testing.T) {
	_, err := Parse([]byte(`{"name":"x","nodes":[{"id":"elsewhere","dialogue":["a"],"isEnding":true}]}`), FormatJSON)
	assert.ErrorIs(t, err, ErrInvalidContent)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"nodes": [`), FormatJSON)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidContent)

	_, err = Parse([]byte(jsonStory), Format("toml"))
	assert.Error(t, err)
}

func TestParseStrict_UnknownFields(t *testing.T) {
	withExtra := `{"name":"x","nodes":[{"id":"opening","dialogue":["a"],"isEnding":true,"music":"organ"}]}`

	_, err := Parse([]byte(withExtra), FormatJSON)
	require.NoError(t, err)

	_, err = ParseStrict([]byte(withExtra), FormatJSON)
	assert.Error(t, err)

	yamlExtra := "name: x\nnodes:\n  - id: opening\n    dialogue: [a]\n    isEnding: true\n    music: organ\n"
	_, err = ParseStrict([]byte(yamlExtra), FormatYAML)
	assert.Error(t, err)

	timedTypo := `{"name":"x","nodes":[{"id":"opening","dialogue":["a"],` +
		`"choices":[{"id":"a","text":"A","nextNodeId":"opening"},{"id":"b","text":"B","nextNodeId":"opening"}],` +
		`"timedDecision":{"timeLimitSeconds":5,"defaultChoiceIndx":1}}]}`
	g, err := Parse([]byte(timedTypo), FormatJSON)
	require.NoError(t, err)
	n, _ := g.Node("opening")
	assert.Equal(t, 0, n.TimedDecision.DefaultChoiceIndex)
	_, err = ParseStrict([]byte(timedTypo), FormatJSON)
	assert.ErrorContains(t, err, "defaultChoiceIndx")

	yamlTimedTypo := "name: x\nnodes:\n  - id: opening\n    dialogue: [a]\n" +
		"    choices:\n      - {id: a, text: A, nextNodeId: opening}\n" +
		"    timedDecision: {timeLimitSeconds: 5, defaultChoiceIndx: 0}\n"
	_, err = ParseStrict([]byte(yamlTimedTypo), FormatYAML)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "tiny.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(jsonStory), 0o600))
	g, err := Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "Tiny", g.Name())

	yamlPath := filepath.Join(dir, "tiny.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlStory), 0o600))
	g, err = Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())

	_, err = Load(filepath.Join(dir, "tiny.txt"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
