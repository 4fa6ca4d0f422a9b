package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/papal-schism/pkg/state"
	"github.com/jwebster45206/papal-schism/pkg/storage"
)

// DefaultPersistTimeout bounds a single save or clear.
const DefaultPersistTimeout = 5 * time.Second

// Persistence is the single-key store a game is saved to.
// Load returns nil, nil when nothing is saved.
type Persistence interface {
	Load(ctx context.Context) (*state.GameState, error)
	Save(ctx context.Context, gs *state.GameState) error
	Clear(ctx context.Context) error
}

// SaveSlot binds one id of a Storage as a Persistence.
type SaveSlot struct {
	Storage storage.Storage
	ID      uuid.UUID
}

var _ Persistence = SaveSlot{}

func (s SaveSlot) Load(ctx context.Context) (*state.GameState, error) {
	return s.Storage.LoadGameState(ctx, s.ID)
}

func (s SaveSlot) Save(ctx context.Context, gs *state.GameState) error {
	return s.Storage.SaveGameState(ctx, s.ID, gs)
}

func (s SaveSlot) Clear(ctx context.Context) error {
	return s.Storage.DeleteGameState(ctx, s.ID)
}

// nopPersistence keeps nothing.
type nopPersistence struct{}

func (nopPersistence) Load(context.Context) (*state.GameState, error) { return nil, nil }
func (nopPersistence) Save(context.Context, *state.GameState) error   { return nil }
func (nopPersistence) Clear(context.Context) error                    { return nil }

type opKind string

const (
	opSave    opKind = "save"
	opClear   opKind = "clear"
	opBarrier opKind = "flush"
)

type persistOp struct {
	kind  opKind
	state *state.GameState
	done  chan struct{}
}

// persister runs saves and clears one at a time, in the order they were queued.
// Failures are logged and counted; nothing is returned to the caller.
type persister struct {
	target   Persistence
	timeout  time.Duration
	logger   *slog.Logger
	recorder Recorder

	mu     sync.Mutex
	queue  []persistOp
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newPersister(target Persistence, timeout time.Duration, logger *slog.Logger, recorder Recorder) *persister {
	p := &persister{
		target:   target,
		timeout:  timeout,
		logger:   logger,
		recorder: recorder,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// enqueue never blocks. Ops queued after close are dropped.
func (p *persister) enqueue(op persistOp) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.queue = append(p.queue, op)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

func (p *persister) save(gs *state.GameState) {
	p.enqueue(persistOp{kind: opSave, state: gs})
}

func (p *persister) clear() {
	p.enqueue(persistOp{kind: opClear})
}

// flush waits until every op queued before it has run.
func (p *persister) flush(ctx context.Context) error {
	done := make(chan struct{})
	if !p.enqueue(persistOp{kind: opBarrier, done: done}) {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close runs what is queued, then stops the worker.
func (p *persister) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.done
		return
	}
	p.closed = true
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	<-p.done
}

func (p *persister) run() {
	defer close(p.done)
	for {
		p.mu.Lock()
		for len(p.queue) == 0 {
			if p.closed {
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
			<-p.wake
			p.mu.Lock()
		}
		op := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.exec(op)
	}
}

func (p *persister) exec(op persistOp) {
	if op.kind == opBarrier {
		close(op.done)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	var err error
	switch op.kind {
	case opSave:
		err = p.target.Save(ctx, op.state)
	case opClear:
		err = p.target.Clear(ctx)
	}
	if err != nil {
		p.logger.Error("Failed to persist game state", "op", string(op.kind), "error", err)
		p.recorder.PersistFailed(string(op.kind))
	}
}
