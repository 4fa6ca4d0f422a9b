package engine

import "errors"

var (
	// ErrNotLoaded is returned for player events sent before Load.
	ErrNotLoaded = errors.New("game not loaded")
	// ErrNotStarted is returned for gameplay events before Start.
	ErrNotStarted = errors.New("game not started")
	// ErrNoSave is returned by Continue when there is no game to resume.
	ErrNoSave = errors.New("no saved game to continue")
	// ErrStaleChoice means the choice is not offered at the current node.
	// It comes from an outdated presentation and changes nothing.
	ErrStaleChoice = errors.New("choice is not available at the current node")
	// ErrDialogueExhausted means the current node has no more dialogue to reveal.
	ErrDialogueExhausted = errors.New("dialogue already fully revealed")
	// ErrTimerSuperseded means the game moved on before a countdown expired.
	ErrTimerSuperseded = errors.New("timed decision superseded")
	// ErrNoVisibleChoice means a timed node has nothing to fall back to.
	ErrNoVisibleChoice = errors.New("no visible choice to apply")
)
