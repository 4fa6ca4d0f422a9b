package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jwebster45206/papal-schism/pkg/ending"
	"github.com/jwebster45206/papal-schism/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RejectsEventsBeforeLoad(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), nil)

	_, err := ts.Start()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = ts.AdvanceDialogue()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = ts.ApplyChoice("pious")
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = ts.Restart()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = ts.Continue()
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestStore_StartFromInitialState(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), nil)
	assert.False(t, ts.Load(context.Background()))

	v, err := ts.Start()
	require.NoError(t, err)

	want := state.NewGameState()
	want.HasStarted = true
	assert.Equal(t, want, v.State)
	assert.Equal(t, "opening", v.Node.ID)
	assert.False(t, v.AtChoices)
	assert.True(t, v.HasSave)

	ts.flush(t)
	saved, err := ts.storage.LoadGameState(context.Background(), ts.slot)
	require.NoError(t, err)
	assert.Equal(t, want, saved)
}

func TestStore_EventsBeforeStart(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), nil)
	ts.Load(context.Background())

	_, err := ts.AdvanceDialogue()
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = ts.ApplyChoice("pious")
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = ts.Continue()
	assert.ErrorIs(t, err, ErrNoSave)
}

func TestStore_AdvanceDialogue(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), nil)
	ts.Load(context.Background())
	_, err := ts.Start()
	require.NoError(t, err)

	v, err := ts.AdvanceDialogue()
	require.NoError(t, err)
	assert.Equal(t, 1, v.State.DialogueIndex)
	assert.True(t, v.AtChoices)
	assert.Len(t, v.VisibleChoices, 2, "the keyed choice is hidden")

	before := v.Version
	v, err = ts.AdvanceDialogue()
	assert.ErrorIs(t, err, ErrDialogueExhausted)
	assert.Equal(t, 1, v.State.DialogueIndex)
	assert.Equal(t, before, v.Version, "a no-op does not publish")
}

func TestStore_ApplyChoice_OpeningScenario(t *testing.T) {
	ts := newTestStore(t, papalGraph(t), nil)
	ts.Load(context.Background())
	_, err := ts.Start()
	require.NoError(t, err)
	ts.advanceToChoices(t)

	v, err := ts.ApplyChoice("humble")
	require.NoError(t, err)

	assert.Equal(t, state.Stats{Legitimacy: 55, Gold: 50, Piety: 60, Stability: 50, Curia: 50}, v.State.Stats)
	assert.Equal(t, "first_council", v.State.CurrentNodeID)
	assert.Equal(t, 0, v.State.DialogueIndex)
	assert.False(t, v.State.IsComplete)
	assert.Equal(t, "The faithful weep with hope.", v.Consequence)
	assert.Equal(t, map[string]int{"piety": 10, "legitimacy": 5}, v.LastStatChanges)
	assert.Equal(t, []string{"opening/humble"}, ts.recorder.choices)
}

func TestStore_ApplyChoice_ClampsAndFlagOrder(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), nil)
	ts.Load(context.Background())
	_, err := ts.Start()
	require.NoError(t, err)
	ts.advanceToChoices(t)
	_, err = ts.ApplyChoice("pious")
	require.NoError(t, err)

	v, err := ts.ApplyChoice("gold")
	require.NoError(t, err)

	assert.Equal(t, 100, v.State.Stats.Gold, "50 + 60 clamps to 100")
	assert.True(t, v.State.HasFlag("rich"))
	assert.False(t, v.State.HasFlag("temp"), "added then removed by the same choice")
	assert.Equal(t, "end", v.State.CurrentNodeID)
	assert.True(t, v.State.IsComplete)
	assert.False(t, v.HasSave)
	require.NotNil(t, v.Ending)
	assert.Equal(t, ending.Forgotten, *v.Ending)
	assert.Equal(t, []string{"The Forgotten Pope"}, ts.recorder.endings)

	e, ok := ts.Ending()
	assert.True(t, ok)
	assert.Equal(t, ending.Forgotten, e)
}

func TestStore_ApplyChoice_RelationshipClamp(t *testing.T) {
	ms := newTestStore(t, fixtureGraph(t), nil)
	saved := state.NewGameState()
	saved.HasStarted = true
	saved.CurrentNodeID = "middle"
	saved.Relationships.France = -90
	require.NoError(t, ms.storage.SaveGameState(context.Background(), ms.slot, saved))

	require.True(t, ms.Load(context.Background()))
	v, err := ms.ApplyChoice("plain")
	require.NoError(t, err)
	assert.Equal(t, -100, v.State.Relationships.France)
}

func TestStore_StaleChoice(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), nil)
	ts.Load(context.Background())
	_, err := ts.Start()
	require.NoError(t, err)
	ts.advanceToChoices(t)
	before := ts.View()

	for _, id := range []string{"nonexistent", "secret", "gold"} {
		v, err := ts.ApplyChoice(id)
		assert.ErrorIs(t, err, ErrStaleChoice, id)
		assert.Equal(t, before.State, v.State, id)
		assert.Equal(t, before.Version, v.Version, id)
	}
	assert.Empty(t, ts.recorder.choices)
}

func TestStore_StaleChoice_Strict(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), func(o *Options) { o.Strict = true })
	ts.Load(context.Background())
	_, err := ts.Start()
	require.NoError(t, err)

	assert.Panics(t, func() { _, _ = ts.ApplyChoice("nonexistent") })

	// The store is still usable after the panic.
	_, err = ts.AdvanceDialogue()
	assert.NoError(t, err)
}

func TestStore_GatedChoiceBecomesVisible(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), nil)
	saved := state.NewGameState()
	saved.HasStarted = true
	saved.DialogueIndex = 1
	saved.Flags.Add("key")
	require.NoError(t, ts.storage.SaveGameState(context.Background(), ts.slot, saved))
	ts.Load(context.Background())

	v := ts.View()
	assert.Len(t, v.VisibleChoices, 3)

	v, err := ts.ApplyChoice("secret")
	require.NoError(t, err)
	assert.True(t, v.State.IsComplete)
}

func TestStore_ConsequenceIsOneShot(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), nil)
	ts.Load(context.Background())
	_, err := ts.Start()
	require.NoError(t, err)
	ts.advanceToChoices(t)

	v, err := ts.ApplyChoice("pious")
	require.NoError(t, err)
	assert.Equal(t, "The faithful rejoice.", v.Consequence)

	v, err = ts.DismissConsequence()
	require.NoError(t, err)
	assert.Empty(t, v.Consequence)

	again, err := ts.DismissConsequence()
	require.NoError(t, err)
	assert.Equal(t, v.Version, again.Version)

	ts.flush(t)
	saved, err := ts.storage.LoadGameState(context.Background(), ts.slot)
	require.NoError(t, err)
	assert.Equal(t, "middle", saved.CurrentNodeID)
}

func TestStore_RestartAfterCompletion(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), nil)
	ts.Load(context.Background())
	_, err := ts.Start()
	require.NoError(t, err)
	ts.advanceToChoices(t)
	_, err = ts.ApplyChoice("pious")
	require.NoError(t, err)
	v, err := ts.ApplyChoice("gold")
	require.NoError(t, err)
	require.True(t, v.State.IsComplete)

	v, err = ts.Restart()
	require.NoError(t, err)

	assert.Equal(t, state.NewGameState(), v.State)
	assert.Empty(t, v.Consequence)
	assert.Nil(t, v.LastStatChanges)
	assert.Nil(t, v.Ending)
	_, ok := ts.Ending()
	assert.False(t, ok)

	ts.flush(t)
	assert.False(t, ts.storage.Has(ts.slot))
}

func TestStore_PersistenceFailureDoesNotBlockPlay(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), nil)
	ts.Load(context.Background())
	ts.storage.SetSaveError(errors.New("disk full"))
	ts.storage.SetDeleteError(errors.New("disk full"))

	_, err := ts.Start()
	require.NoError(t, err)
	ts.advanceToChoices(t)
	v, err := ts.ApplyChoice("pious")
	require.NoError(t, err)
	assert.Equal(t, "middle", v.State.CurrentNodeID)

	_, err = ts.Restart()
	require.NoError(t, err)

	ts.flush(t)
	assert.Equal(t, 3, ts.recorder.failures("save"))
	assert.Equal(t, 1, ts.recorder.failures("clear"))
	assert.Equal(t, "opening", ts.View().State.CurrentNodeID)
}

func TestStore_Load(t *testing.T) {
	t.Run("restores a save", func(t *testing.T) {
		ts := newTestStore(t, fixtureGraph(t), nil)
		saved := state.NewGameState()
		saved.HasStarted = true
		saved.CurrentNodeID = "middle"
		saved.Stats.Piety = 77
		require.NoError(t, ts.storage.SaveGameState(context.Background(), ts.slot, saved))

		assert.True(t, ts.Load(context.Background()))
		assert.True(t, ts.Load(context.Background()), "second load returns the first result")
		assert.True(t, ts.HasSave())

		v, err := ts.Continue()
		require.NoError(t, err)
		assert.Equal(t, saved, v.State)
		assert.True(t, v.AtChoices)
		assert.True(t, v.Timed())
	})

	t.Run("unknown node starts fresh", func(t *testing.T) {
		ts := newTestStore(t, fixtureGraph(t), nil)
		saved := state.NewGameState()
		saved.HasStarted = true
		saved.CurrentNodeID = "deleted_in_a_patch"
		require.NoError(t, ts.storage.SaveGameState(context.Background(), ts.slot, saved))

		assert.False(t, ts.Load(context.Background()))
		assert.Equal(t, state.NewGameState(), ts.View().State)
		ts.flush(t)
		assert.False(t, ts.storage.Has(ts.slot))
	})

	t.Run("out of range values are repaired", func(t *testing.T) {
		ts := newTestStore(t, fixtureGraph(t), nil)
		saved := state.NewGameState()
		saved.HasStarted = true
		saved.DialogueIndex = 9
		saved.Stats.Gold = 400
		saved.Relationships.Castile = -250
		require.NoError(t, ts.storage.SaveGameState(context.Background(), ts.slot, saved))

		require.True(t, ts.Load(context.Background()))
		v := ts.View()
		assert.Equal(t, 1, v.State.DialogueIndex)
		assert.Equal(t, 100, v.State.Stats.Gold)
		assert.Equal(t, -100, v.State.Relationships.Castile)
	})

	t.Run("load failure starts fresh", func(t *testing.T) {
		ts := newTestStore(t, fixtureGraph(t), nil)
		ts.storage.SetLoadError(errors.New("connection refused"))

		assert.False(t, ts.Load(context.Background()))
		_, err := ts.Start()
		assert.NoError(t, err)
	})
}

func TestStore_ListenersSeeEveryMutationInOrder(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), nil)

	var mu sync.Mutex
	var versions []uint64
	ts.Subscribe(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		versions = append(versions, v.Version)
	})

	ts.Load(context.Background())
	_, _ = ts.Start()
	_, _ = ts.AdvanceDialogue()
	_, _ = ts.AdvanceDialogue() // no-op
	_, _ = ts.ApplyChoice("pious")
	_, _ = ts.DismissConsequence()
	_, _ = ts.Restart()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, versions)
}

func TestStore_TurnChangesOnNodeEntry(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), nil)
	ts.Load(context.Background())
	loaded := ts.View().Turn

	v, _ := ts.Start()
	assert.Greater(t, v.Turn, loaded)
	started := v.Turn

	v, _ = ts.AdvanceDialogue()
	assert.Equal(t, started, v.Turn, "dialogue does not change the turn")

	v, _ = ts.ApplyChoice("pious")
	assert.Greater(t, v.Turn, started)
}

func TestStore_Stalled(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), nil)
	ts.Load(context.Background())
	_, err := ts.Start()
	require.NoError(t, err)
	ts.advanceToChoices(t)

	v, err := ts.ApplyChoice("to_locked")
	require.NoError(t, err)
	assert.True(t, v.AtChoices)
	assert.Empty(t, v.VisibleChoices)
	assert.True(t, v.Stalled)
}

func TestStore_ConcurrentChoicesApplyOnce(t *testing.T) {
	ts := newTestStore(t, fixtureGraph(t), nil)
	ts.Load(context.Background())
	_, err := ts.Start()
	require.NoError(t, err)
	ts.advanceToChoices(t)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ts.ApplyChoice("pious")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	applied := 0
	for err := range errs {
		if err == nil {
			applied++
		} else {
			assert.ErrorIs(t, err, ErrStaleChoice)
		}
	}
	assert.Equal(t, 1, applied)
	assert.Equal(t, 60, ts.View().State.Stats.Piety)
}

func TestStore_ViewEditsDoNotReachGraph(t *testing.T) {
	g := fixtureGraph(t)
	ts := newTestStore(t, g, nil)
	ts.Load(context.Background())
	_, err := ts.Start()
	require.NoError(t, err)
	ts.advanceToChoices(t)
	v := ts.View()
	require.NotEmpty(t, v.VisibleChoices)

	v.Node.Dialogue[0] = "edited"
	v.Node.Choices[0].NextNodeID = "end"
	v.VisibleChoices[0].StatDeltas["piety"] = 1000
	v.VisibleChoices[0].AddFlags = append(v.VisibleChoices[0].AddFlags, "forged")

	n, ok := g.Node("opening")
	require.True(t, ok)
	assert.Equal(t, "first", n.Dialogue[0])
	assert.Equal(t, "middle", n.Choices[0].NextNodeID)
	assert.Equal(t, 10, n.Choices[0].StatDeltas["piety"])

	after, err := ts.ApplyChoice("pious")
	require.NoError(t, err)
	assert.Equal(t, "middle", after.Node.ID)
	assert.Equal(t, 60, after.State.Stats.Piety)
	assert.False(t, after.State.Flags.HasFlag("forged"))
}
