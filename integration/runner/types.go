package runner

import (
	"time"

	"github.com/google/uuid"
)

// Step actions. Each maps to one games endpoint, except advance_all, which
// advances until the choices are shown, and wait_timeout, which polls until
// the timed default has been applied.
const (
	ActionStart       = "start"
	ActionContinue    = "continue"
	ActionAdvance     = "advance"
	ActionAdvanceAll  = "advance_all"
	ActionChoose      = "choose"
	ActionDismiss     = "dismiss"
	ActionRestart     = "restart"
	ActionGet         = "get"
	ActionWaitTimeout = "wait_timeout"
)

// TestSuite defines a complete playthrough script
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name  string     `json:"name"`
	Steps []TestStep `json:"steps,omitempty"` // Used for regular tests
	Cases []string   `json:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one player action and its expected outcome
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	Action       string       `json:"action"`
	Choice       string       `json:"choice,omitempty"`
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	// Status is the expected HTTP status; 200 when unset.
	Status         *int           `json:"status,omitempty"`
	Node           *string        `json:"node,omitempty"`
	DialogueIndex  *int           `json:"dialogue_index,omitempty"`
	AtChoices      *bool          `json:"at_choices,omitempty"`
	VisibleChoices []string       `json:"visible_choices,omitempty"` // Ordered choice ids
	Stats          map[string]int `json:"stats,omitempty"`
	Relationships  map[string]int `json:"relationships,omitempty"`
	LastChanges    map[string]int `json:"last_stat_changes,omitempty"`
	FlagsPresent   []string       `json:"flags_present,omitempty"`
	FlagsAbsent    []string       `json:"flags_absent,omitempty"`
	Ending         *string        `json:"ending,omitempty"` // Ending title
	IsComplete     *bool          `json:"is_complete,omitempty"`
	HasStarted     *bool          `json:"has_started,omitempty"`
	HasSave        *bool          `json:"has_save,omitempty"`
	ErrorContains  string         `json:"error_contains,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName string
	StepName string
	Success  bool
	Error    error
	Duration time.Duration
	Status   int
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	GameID   uuid.UUID // ID of the game used for this test
}
