package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/papal-schism/data"
	"github.com/jwebster45206/papal-schism/pkg/story"
	"github.com/jwebster45206/papal-schism/pkg/storage"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fixtureGraph is a small story exercising gates, timers and endings.
func fixtureGraph(t *testing.T) *story.Graph {
	t.Helper()
	g, err := story.NewGraph(&story.Story{
		Name: "Fixture",
		Nodes: []story.Node{
			{
				ID:       "opening",
				Dialogue: []string{"first", "second"},
				Choices: []story.Choice{
					{ID: "pious", Text: "Pray", NextNodeID: "middle", Consequence: "The faithful rejoice.",
						StatDeltas: map[string]int{"piety": 10, "legitimacy": 5}},
					{ID: "secret", Text: "Use the key", NextNodeID: "end", RequiresFlags: []string{"key"}},
					{ID: "to_locked", Text: "Open the vault", NextNodeID: "locked"},
				},
			},
			{
				ID:            "middle",
				Dialogue:      []string{"middle"},
				TimedDecision: &story.TimedDecision{TimeLimitSeconds: 5, DefaultChoiceIndex: 1},
				Choices: []story.Choice{
					{ID: "gold", Text: "Take gold", NextNodeID: "end",
						StatDeltas: map[string]int{"gold": 60}, AddFlags: []string{"rich", "temp"}, RemoveFlags: []string{"temp"}},
					{ID: "hidden_default", Text: "Never shown", NextNodeID: "end", RequiresFlags: []string{"never"}},
					{ID: "plain", Text: "Insult France", NextNodeID: "end",
						RelationshipDeltas: map[string]int{"france": -30}},
				},
			},
			{
				ID:            "locked",
				Dialogue:      []string{"a locked room"},
				TimedDecision: &story.TimedDecision{TimeLimitSeconds: 3, DefaultChoiceIndex: 0},
				Choices: []story.Choice{
					{ID: "escape", Text: "Escape", NextNodeID: "end", RequiresFlags: []string{"never"}},
				},
			},
			{ID: "end", Dialogue: []string{"fin", "really fin"}, IsEnding: true},
		},
	})
	require.NoError(t, err)
	return g
}

func papalGraph(t *testing.T) *story.Graph {
	t.Helper()
	g, err := data.DefaultStory()
	require.NoError(t, err)
	return g
}

type testStore struct {
	*Store
	storage  *storage.MockStorage
	slot     uuid.UUID
	recorder *countingRecorder
}

func newTestStore(t *testing.T, g *story.Graph, mutate func(*Options)) *testStore {
	t.Helper()
	ms := storage.NewMockStorage()
	slot := uuid.New()
	rec := &countingRecorder{}
	opts := Options{
		Persistence:    SaveSlot{Storage: ms, ID: slot},
		Logger:         discardLogger(),
		Recorder:       rec,
		PersistTimeout: time.Second,
	}
	if mutate != nil {
		mutate(&opts)
	}
	s := New(g, opts)
	t.Cleanup(s.Close)
	return &testStore{Store: s, storage: ms, slot: slot, recorder: rec}
}

func (ts *testStore) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ts.Flush(ctx))
}

func (ts *testStore) advanceToChoices(t *testing.T) {
	t.Helper()
	for !ts.View().AtChoices {
		_, err := ts.AdvanceDialogue()
		require.NoError(t, err)
	}
}

type countingRecorder struct {
	mu          sync.Mutex
	choices     []string
	timeouts    int
	endings     []string
	persistFail map[string]int
}

func (r *countingRecorder) ChoiceApplied(nodeID, choiceID string, source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.choices = append(r.choices, nodeID+"/"+choiceID)
	if source == SourceTimeout {
		r.timeouts++
	}
}

func (r *countingRecorder) EndingReached(title string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endings = append(r.endings, title)
}

func (r *countingRecorder) PersistFailed(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.persistFail == nil {
		r.persistFail = make(map[string]int)
	}
	r.persistFail[op]++
}

func (r *countingRecorder) failures(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persistFail[op]
}
