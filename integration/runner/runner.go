package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/papal-schism/internal/handlers"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// maxAdvances bounds advance_all on a misbehaving server.
const maxAdvances = 64

// Runner plays scripted games against a running papal-schism API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration // How long wait_timeout may wait
	Logger            func(format string, args ...any)
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 30 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...any) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}

	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
// Returns a list of actual test suites (expanded from the sequence if needed)
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		casePath := filepath.Join(casesDir, caseFile)

		// Recursively load (in case a sequence references another sequence)
		subJobs, err := LoadTestSuiteWithExpansion(casePath, casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}

		jobs = append(jobs, subJobs...)
	}

	return jobs, nil
}

// RunSuite plays a complete test suite on a new game
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job: TestJob{
			Name:  suite.Name,
			Suite: suite,
		},
		Results: make([]TestResult, 0, len(suite.Steps)),
	}

	gameID, err := CreateGame(ctx, r.Client, r.BaseURL)
	if err != nil {
		result.Error = fmt.Errorf("failed to create game: %w", err)
		result.Duration = time.Since(start)
		return result, result.Error
	}
	result.GameID = gameID
	defer func() {
		if err := DeleteGame(context.WithoutCancel(ctx), r.Client, r.BaseURL, gameID); err != nil {
			r.Logger("    warning: failed to delete game %s: %v", gameID, err)
		}
	}()

	var last handlers.GameResponse
	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult, resp := r.runStep(ctx, gameID, step, last)
		last = resp
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}

		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

// runStep executes one step. last is the response of the previous step.
func (r *Runner) runStep(ctx context.Context, gameID uuid.UUID, step TestStep, last handlers.GameResponse) (TestResult, handlers.GameResponse) {
	start := time.Now()
	result := TestResult{StepName: step.Name}

	status, resp, err := r.perform(ctx, gameID, step, last)
	result.Status = status
	if err == nil {
		err = checkExpectations(step.Expectations, status, resp)
	}
	result.Error = err
	result.Success = err == nil
	result.Duration = time.Since(start)
	return result, resp
}

func (r *Runner) perform(ctx context.Context, gameID uuid.UUID, step TestStep, last handlers.GameResponse) (int, handlers.GameResponse, error) {
	base := fmt.Sprintf("%s/v1/games/%s", r.BaseURL, gameID)

	switch step.Action {
	case ActionGet:
		return Call(ctx, r.Client, http.MethodGet, base)

	case ActionStart, ActionContinue, ActionAdvance, ActionDismiss, ActionRestart:
		return Call(ctx, r.Client, http.MethodPost, base+"/"+step.Action)

	case ActionChoose:
		if step.Choice == "" {
			return 0, handlers.GameResponse{}, fmt.Errorf("choose step needs a choice")
		}
		return Call(ctx, r.Client, http.MethodPost, base+"/choices/"+step.Choice)

	case ActionAdvanceAll:
		for i := 0; i < maxAdvances; i++ {
			status, resp, err := Call(ctx, r.Client, http.MethodGet, base)
			if err != nil || status != http.StatusOK || resp.View.AtChoices || resp.View.Ending != nil {
				return status, resp, err
			}
			if status, resp, err = Call(ctx, r.Client, http.MethodPost, base+"/advance"); err != nil || status != http.StatusOK {
				return status, resp, err
			}
		}
		return 0, handlers.GameResponse{}, fmt.Errorf("choices not reached after %d advances", maxAdvances)

	case ActionWaitTimeout:
		// The countdown may already have run out, so wait from the turn the
		// previous step saw rather than from the current one.
		if !last.View.Timed() {
			return 0, last, fmt.Errorf("no timed decision is running at node %s", last.View.Node.ID)
		}
		return PollForTurnChange(ctx, r.Client, r.BaseURL, gameID, last.View.Turn, r.Timeout)
	}

	return 0, handlers.GameResponse{}, fmt.Errorf("unknown action %q", step.Action)
}

// checkExpectations validates the test expectations against the response
func checkExpectations(exp Expectations, status int, resp handlers.GameResponse) error {
	want := http.StatusOK
	if exp.Status != nil {
		want = *exp.Status
	}
	if status != want {
		return fmt.Errorf("expected status %d, got %d (%s)", want, status, resp.Error)
	}
	if exp.ErrorContains != "" && !strings.Contains(resp.Error, exp.ErrorContains) {
		return fmt.Errorf("expected error containing %q, got %q", exp.ErrorContains, resp.Error)
	}

	v := resp.View
	if v.State == nil {
		if exp.Node != nil || exp.DialogueIndex != nil || len(exp.Stats) > 0 {
			return fmt.Errorf("response has no game state")
		}
		return nil
	}
	gs := v.State

	if exp.Node != nil && gs.CurrentNodeID != *exp.Node {
		return fmt.Errorf("expected node %s, got %s", *exp.Node, gs.CurrentNodeID)
	}
	if exp.DialogueIndex != nil && gs.DialogueIndex != *exp.DialogueIndex {
		return fmt.Errorf("expected dialogue index %d, got %d", *exp.DialogueIndex, gs.DialogueIndex)
	}
	if exp.AtChoices != nil && v.AtChoices != *exp.AtChoices {
		return fmt.Errorf("expected at_choices %t, got %t", *exp.AtChoices, v.AtChoices)
	}
	if exp.VisibleChoices != nil {
		ids := make([]string, len(v.VisibleChoices))
		for i, c := range v.VisibleChoices {
			ids[i] = c.ID
		}
		if !slices.Equal(ids, exp.VisibleChoices) {
			return fmt.Errorf("expected visible choices %v, got %v", exp.VisibleChoices, ids)
		}
	}

	for name, want := range exp.Stats {
		got, ok := gs.Stats.StatValue(name)
		if !ok {
			return fmt.Errorf("unknown stat %s in expectations", name)
		}
		if got != want {
			return fmt.Errorf("expected stat %s to be %d, got %d", name, want, got)
		}
	}
	for name, want := range exp.Relationships {
		got, ok := gs.Relationships.Value(name)
		if !ok {
			return fmt.Errorf("unknown relationship %s in expectations", name)
		}
		if got != want {
			return fmt.Errorf("expected relationship %s to be %d, got %d", name, want, got)
		}
	}
	for name, want := range exp.LastChanges {
		if got := v.LastStatChanges[name]; got != want {
			return fmt.Errorf("expected last change to %s of %d, got %d", name, want, got)
		}
	}

	for _, f := range exp.FlagsPresent {
		if !gs.HasFlag(f) {
			return fmt.Errorf("expected flag %s to be set. Flags: %v", f, gs.Flags.Sorted())
		}
	}
	for _, f := range exp.FlagsAbsent {
		if gs.HasFlag(f) {
			return fmt.Errorf("expected flag %s to be absent", f)
		}
	}

	if exp.Ending != nil {
		if v.Ending == nil {
			return fmt.Errorf("expected ending %q, got none", *exp.Ending)
		}
		if v.Ending.Title != *exp.Ending {
			return fmt.Errorf("expected ending %q, got %q", *exp.Ending, v.Ending.Title)
		}
	}
	if exp.IsComplete != nil && gs.IsComplete != *exp.IsComplete {
		return fmt.Errorf("expected is_complete %t, got %t", *exp.IsComplete, gs.IsComplete)
	}
	if exp.HasStarted != nil && gs.HasStarted != *exp.HasStarted {
		return fmt.Errorf("expected has_started %t, got %t", *exp.HasStarted, gs.HasStarted)
	}
	if exp.HasSave != nil && v.HasSave != *exp.HasSave {
		return fmt.Errorf("expected has_save %t, got %t", *exp.HasSave, v.HasSave)
	}

	return nil
}
