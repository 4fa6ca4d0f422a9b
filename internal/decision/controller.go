// Package decision runs the countdown of timed story nodes and applies the
// default choice when it runs out.
package decision

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/papal-schism/internal/engine"
)

const (
	// DefaultTick is one countdown step.
	DefaultTick = time.Second
	// UrgentRemaining is the step count at which a countdown is shown as urgent.
	UrgentRemaining = 3
)

// Chooser applies a node's timed default. engine.Store implements it.
type Chooser interface {
	ApplyTimedDefault(nodeID string, turn uint64) (engine.View, error)
}

// Countdown is the public state of a running timer.
type Countdown struct {
	NodeID    string `json:"nodeId"`
	Turn      uint64 `json:"turn"`
	Remaining int    `json:"remaining"`
	Limit     int    `json:"limit"`
}

// Urgent reports whether the countdown is nearly out.
func (c Countdown) Urgent() bool {
	return c.Remaining <= UrgentRemaining
}

// Fraction is the share of time left, from 1 down to 0.
func (c Countdown) Fraction() float64 {
	if c.Limit <= 0 {
		return 0
	}
	return float64(c.Remaining) / float64(c.Limit)
}

// Options configures a Controller.
type Options struct {
	Tick   time.Duration
	Logger *slog.Logger
	// OnTick receives every countdown step, including the first at full limit.
	// It runs on the timer goroutine and must not block.
	OnTick func(Countdown)
}

// Controller is Idle or Counting. Observe drives the transitions: a view at
// the choices of a timed node starts a countdown, any other view cancels it.
type Controller struct {
	chooser Chooser
	tick    time.Duration
	logger  *slog.Logger
	onTick  func(Countdown)

	mu      sync.Mutex
	active  *countdown
	stopped bool
	wg      sync.WaitGroup
}

type countdown struct {
	Countdown
	cancel context.CancelFunc
}

// New returns an idle Controller applying defaults through chooser.
func New(chooser Chooser, opts Options) *Controller {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		chooser: chooser,
		tick:    opts.Tick,
		logger:  opts.Logger,
		onTick:  opts.OnTick,
	}
}

// Observe is an engine.Listener.
func (c *Controller) Observe(v engine.View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	if !v.Timed() {
		c.cancelLocked()
		return
	}
	if c.active != nil && c.active.NodeID == v.Node.ID && c.active.Turn == v.Turn {
		return
	}
	c.cancelLocked()

	limit := v.Node.TimedDecision.TimeLimitSeconds
	ctx, cancel := context.WithCancel(context.Background())
	cd := &countdown{
		Countdown: Countdown{NodeID: v.Node.ID, Turn: v.Turn, Remaining: limit, Limit: limit},
		cancel:    cancel,
	}
	c.active = cd
	c.wg.Add(1)
	go c.run(ctx, cd)

	c.logger.Debug("Countdown started", "node", cd.NodeID, "turn", cd.Turn, "limit", limit)
}

// Active returns the running countdown, if any.
func (c *Controller) Active() (Countdown, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Countdown{}, false
	}
	return c.active.Countdown, true
}

// Stop cancels any countdown and ignores later views. It waits for the
// timer goroutine to exit.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.cancelLocked()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Controller) cancelLocked() {
	if c.active == nil {
		return
	}
	c.active.cancel()
	c.logger.Debug("Countdown cancelled", "node", c.active.NodeID, "remaining", c.active.Remaining)
	c.active = nil
}

func (c *Controller) run(ctx context.Context, cd *countdown) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	remaining := cd.Limit
	c.report(ctx, cd, remaining)
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		remaining--
		c.report(ctx, cd, remaining)
	}

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	if c.active == cd {
		c.active = nil
	}
	c.mu.Unlock()
	cd.cancel()

	_, err := c.chooser.ApplyTimedDefault(cd.NodeID, cd.Turn)
	switch {
	case err == nil:
		c.logger.Info("Timed decision expired, default applied", "node", cd.NodeID)
	case errors.Is(err, engine.ErrTimerSuperseded):
		c.logger.Debug("Timed decision already resolved", "node", cd.NodeID)
	default:
		c.logger.Error("Failed to apply timed default", "node", cd.NodeID, "error", err)
	}
}

func (c *Controller) report(ctx context.Context, cd *countdown, remaining int) {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	cd.Remaining = remaining
	snapshot := cd.Countdown
	c.mu.Unlock()

	if c.onTick != nil {
		c.onTick(snapshot)
	}
}
