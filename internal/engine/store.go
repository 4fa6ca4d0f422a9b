// Package engine holds the game state store, the only code allowed to
// mutate a player's progress.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/jwebster45206/papal-schism/pkg/ending"
	"github.com/jwebster45206/papal-schism/pkg/state"
	"github.com/jwebster45206/papal-schism/pkg/story"
)

// Options configures a Store. The zero value is usable: nothing is
// persisted and the default ending conditions apply.
type Options struct {
	Persistence    Persistence
	Resolver       *ending.Resolver
	Logger         *slog.Logger
	Recorder       Recorder
	PersistTimeout time.Duration
	// Strict panics on stale choice references instead of ignoring them.
	Strict bool
}

// Store owns one GameState. All methods are safe for concurrent use;
// concurrent events are applied one at a time.
type Store struct {
	graph     *story.Graph
	resolver  *ending.Resolver
	logger    *slog.Logger
	recorder  Recorder
	strict    bool
	persister *persister
	closeOnce sync.Once

	mu              sync.Mutex
	gs              *state.GameState
	loaded          bool
	restored        bool
	turn            uint64
	version         uint64
	consequence     string
	lastStatChanges map[string]int
	listeners       []Listener

	// notifyMu keeps listener calls in mutation order.
	notifyMu sync.Mutex
}

// New returns a Store over graph, holding the initial state. Call Load
// before sending player events.
func New(graph *story.Graph, opts Options) *Store {
	if opts.Persistence == nil {
		opts.Persistence = nopPersistence{}
	}
	if opts.Resolver == nil {
		opts.Resolver = ending.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = DefaultPersistTimeout
	}

	return &Store{
		graph:     graph,
		resolver:  opts.Resolver,
		logger:    opts.Logger,
		recorder:  opts.Recorder,
		strict:    opts.Strict,
		persister: newPersister(opts.Persistence, opts.PersistTimeout, opts.Logger, opts.Recorder),
		gs:        state.NewGameState(),
	}
}

// Subscribe registers l for every later mutation.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Load restores the saved game, if any. It is the only blocking call and
// must finish before player events are accepted. A failed or unusable load
// is logged and play starts fresh. It reports whether a save was restored.
// Calling Load again returns the earlier result without reloading.
func (s *Store) Load(ctx context.Context) bool {
	s.mu.Lock()
	if s.loaded {
		defer s.mu.Unlock()
		return s.restored
	}
	s.mu.Unlock()

	saved, err := s.persister.target.Load(ctx)
	if err != nil {
		s.logger.Error("Failed to load saved game, starting fresh", "error", err)
		saved = nil
	}
	if saved != nil {
		saved = s.sanitize(saved)
	}

	s.mu.Lock()
	if s.loaded {
		defer s.mu.Unlock()
		return s.restored
	}
	s.loaded = true
	if saved != nil {
		s.gs = saved
		s.restored = true
		s.logger.Info("Restored saved game", "node", saved.CurrentNodeID, "dialogue_index", saved.DialogueIndex)
	}
	s.turn++
	s.commitLocked()
	return saved != nil
}

// sanitize drops or repairs a restored state that does not fit the graph.
func (s *Store) sanitize(gs *state.GameState) *state.GameState {
	node, ok := s.graph.Node(gs.CurrentNodeID)
	if !ok {
		s.logger.Warn("Saved game points at unknown node, starting fresh", "node", gs.CurrentNodeID)
		s.persister.clear()
		return nil
	}
	if gs.DialogueIndex < 0 || gs.DialogueIndex >= len(node.Dialogue) {
		s.logger.Warn("Saved dialogue index out of range, clamping",
			"node", gs.CurrentNodeID, "dialogue_index", gs.DialogueIndex)
		gs.DialogueIndex = max(0, min(gs.DialogueIndex, len(node.Dialogue)-1))
	}
	gs.Stats = gs.Stats.Clamped()
	gs.Relationships = gs.Relationships.Clamped()
	if gs.Flags == nil {
		gs.Flags = state.NewFlags()
	}
	return gs
}

// Start begins a new game from the initial state.
func (s *Store) Start() (View, error) {
	return s.mutate(func() (bool, error) {
		s.gs = state.NewGameState()
		s.gs.HasStarted = true
		s.enterNodeLocked()
		s.persister.save(s.gs.Clone())
		s.logger.Info("Game started")
		return true, nil
	})
}

// Continue resumes a saved, unfinished game. It changes nothing.
func (s *Store) Continue() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return View{}, ErrNotLoaded
	}
	if !s.gs.HasSave() {
		return s.viewLocked(), ErrNoSave
	}
	return s.viewLocked(), nil
}

// AdvanceDialogue reveals the next dialogue line of the current node.
// At the last line it is a no-op returning ErrDialogueExhausted.
func (s *Store) AdvanceDialogue() (View, error) {
	return s.mutate(func() (bool, error) {
		if !s.gs.HasStarted {
			return false, ErrNotStarted
		}
		node := s.currentNodeLocked()
		if s.gs.DialogueIndex+1 >= len(node.Dialogue) {
			return false, ErrDialogueExhausted
		}
		s.gs.DialogueIndex++
		s.lastStatChanges = nil
		s.persister.save(s.gs.Clone())
		return true, nil
	})
}

// ApplyChoice applies a visible choice of the current node. A choice that is
// not offered is a stale reference: nothing changes and ErrStaleChoice is
// returned, or the store panics when Strict is set.
func (s *Store) ApplyChoice(choiceID string) (View, error) {
	v, err := s.mutate(func() (bool, error) {
		if !s.gs.HasStarted {
			return false, ErrNotStarted
		}
		node := s.currentNodeLocked()
		choice, ok := visibleChoice(node, s.gs.Flags, choiceID)
		if !ok {
			s.logger.Warn("Ignoring stale choice", "node", node.ID, "choice", choiceID)
			return false, fmt.Errorf("%w: %q at node %q", ErrStaleChoice, choiceID, node.ID)
		}
		s.applyLocked(node, choice, SourceManual)
		return true, nil
	})
	if s.strict && errors.Is(err, ErrStaleChoice) {
		panic(err)
	}
	return v, err
}

// ApplyTimedDefault applies the default choice of nodeID once its countdown
// has run out. It is a no-op returning ErrTimerSuperseded when the game has
// left that node, or re-entered it, since the countdown began at turn.
func (s *Store) ApplyTimedDefault(nodeID string, turn uint64) (View, error) {
	return s.mutate(func() (bool, error) {
		if !s.gs.HasStarted || s.gs.IsComplete || s.gs.CurrentNodeID != nodeID || s.turn != turn {
			return false, ErrTimerSuperseded
		}
		node := s.currentNodeLocked()
		choice, ok := node.DefaultChoice()
		if !ok {
			return false, fmt.Errorf("%w: node %q has no timed default", ErrNoVisibleChoice, node.ID)
		}
		if !choice.IsVisible(s.gs.Flags) {
			visible := node.VisibleChoices(s.gs.Flags)
			if len(visible) == 0 {
				s.logger.Error("Timed decision expired with no visible choice", "node", node.ID)
				return false, fmt.Errorf("%w: node %q", ErrNoVisibleChoice, node.ID)
			}
			s.logger.Error("Timed default choice is hidden, using first visible choice",
				"node", node.ID, "default", choice.ID, "fallback", visible[0].ID)
			choice = visible[0]
		}
		s.applyLocked(node, choice, SourceTimeout)
		return true, nil
	})
}

// Restart clears the save and returns to the initial, not-started state.
func (s *Store) Restart() (View, error) {
	return s.mutate(func() (bool, error) {
		s.gs = state.NewGameState()
		s.enterNodeLocked()
		s.persister.clear()
		s.logger.Info("Game restarted")
		return true, nil
	})
}

// DismissConsequence clears the pending consequence text.
func (s *Store) DismissConsequence() (View, error) {
	return s.mutate(func() (bool, error) {
		if s.consequence == "" {
			return false, nil
		}
		s.consequence = ""
		return true, nil
	})
}

// View returns the current snapshot.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Ending resolves the ending of a completed game.
func (s *Store) Ending() (ending.Ending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gs.IsComplete {
		return ending.Ending{}, false
	}
	return s.resolver.Resolve(s.gs.Stats, s.gs.Flags), true
}

// HasSave reports whether there is a started, unfinished game.
func (s *Store) HasSave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gs.HasSave()
}

// Flush waits for queued saves and clears to finish.
func (s *Store) Flush(ctx context.Context) error {
	return s.persister.flush(ctx)
}

// Close finishes queued persistence and stops the store's worker.
// Events sent after Close still change memory but are no longer saved.
func (s *Store) Close() {
	s.closeOnce.Do(s.persister.close)
}

// mutate runs fn under the lock. When fn reports a change, listeners are
// notified with the new view.
func (s *Store) mutate(fn func() (bool, error)) (View, error) {
	s.mu.Lock()
	if !s.loaded {
		s.mu.Unlock()
		return View{}, ErrNotLoaded
	}
	changed, err := fn()
	if !changed {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, err
	}
	return s.commitLocked(), err
}

// commitLocked publishes a new version. It must be called with s.mu held
// and releases it.
func (s *Store) commitLocked() View {
	s.version++
	v := s.viewLocked()
	listeners := append([]Listener(nil), s.listeners...)

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	if v.Stalled {
		s.logger.Warn("No visible choices at node", "node", v.Node.ID)
	}
	for _, l := range listeners {
		l(v)
	}
	return v
}

func (s *Store) applyLocked(node story.Node, choice story.Choice, source Source) {
	if unknown := s.gs.ApplyDelta(choice.Delta()); len(unknown) > 0 {
		s.logger.Warn("Choice names unknown stats", "node", node.ID, "choice", choice.ID, "names", unknown)
	}

	next := s.graph.Start()
	if n, ok := s.graph.Node(choice.NextNodeID); ok {
		next = n
	} else {
		// Graph validation makes this unreachable.
		s.logger.Error("Choice points at unknown node", "node", node.ID, "choice", choice.ID, "next", choice.NextNodeID)
	}
	s.gs.CurrentNodeID = next.ID
	s.gs.DialogueIndex = 0
	if next.IsEnding {
		s.gs.IsComplete = true
	}

	s.consequence = choice.Consequence
	s.lastStatChanges = maps.Clone(choice.StatDeltas)
	s.turn++

	s.persister.save(s.gs.Clone())
	s.recorder.ChoiceApplied(node.ID, choice.ID, source)
	s.logger.Debug("Choice applied", "node", node.ID, "choice", choice.ID, "source", string(source), "next", next.ID)

	if s.gs.IsComplete {
		e := s.resolver.Resolve(s.gs.Stats, s.gs.Flags)
		s.recorder.EndingReached(e.Title)
		s.logger.Info("Game complete", "ending", e.Title)
	}
}

// enterNodeLocked resets per-node presentation state after the state is replaced.
func (s *Store) enterNodeLocked() {
	s.consequence = ""
	s.lastStatChanges = nil
	s.turn++
}

func (s *Store) currentNodeLocked() story.Node {
	if n, ok := s.graph.Node(s.gs.CurrentNodeID); ok {
		return n
	}
	return s.graph.Start()
}

func (s *Store) viewLocked() View {
	node := s.currentNodeLocked()
	v := View{
		State:           s.gs.Clone(),
		Node:            node,
		AtChoices:       node.AtChoices(s.gs.DialogueIndex),
		VisibleChoices:  node.VisibleChoices(s.gs.Flags),
		Consequence:     s.consequence,
		LastStatChanges: maps.Clone(s.lastStatChanges),
		HasSave:         s.gs.HasSave(),
		Turn:            s.turn,
		Version:         s.version,
	}
	v.Stalled = v.AtChoices && len(v.VisibleChoices) == 0
	if s.gs.IsComplete {
		e := s.resolver.Resolve(s.gs.Stats, s.gs.Flags)
		v.Ending = &e
	}
	return v
}

func visibleChoice(node story.Node, flags state.Flags, id string) (story.Choice, bool) {
	c, ok := node.Choice(id)
	if !ok || !c.IsVisible(flags) {
		return story.Choice{}, false
	}
	return c, true
}
