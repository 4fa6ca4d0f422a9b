package engine

// Source says what applied a choice.
type Source string

const (
	SourceManual  Source = "manual"
	SourceTimeout Source = "timeout"
)

// Recorder receives gameplay counters. Implementations must be safe for
// concurrent use and must not block.
type Recorder interface {
	ChoiceApplied(nodeID, choiceID string, source Source)
	EndingReached(title string)
	PersistFailed(op string)
}

type nopRecorder struct{}

func (nopRecorder) ChoiceApplied(string, string, Source) {}
func (nopRecorder) EndingReached(string)                 {}
func (nopRecorder) PersistFailed(string)                 {}
