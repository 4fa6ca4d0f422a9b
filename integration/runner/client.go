package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/papal-schism/internal/handlers"
)

// PollInterval is how often wait_timeout checks the game
const PollInterval = 100 * time.Millisecond

// Call sends one games request and decodes the response. Non-2xx statuses
// are returned, not treated as errors; a 409 still carries the view.
func Call(ctx context.Context, client *http.Client, method, url string) (int, handlers.GameResponse, error) {
	var out handlers.GameResponse

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, out, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, out, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, out, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return resp.StatusCode, out, fmt.Errorf("failed to decode response (%d): %s", resp.StatusCode, string(body))
		}
	}
	return resp.StatusCode, out, nil
}

// CreateGame creates a new game via POST /v1/games
func CreateGame(ctx context.Context, client *http.Client, baseURL string) (uuid.UUID, error) {
	status, resp, err := Call(ctx, client, http.MethodPost, baseURL+"/v1/games")
	if err != nil {
		return uuid.Nil, err
	}
	if status != http.StatusCreated {
		return uuid.Nil, fmt.Errorf("create game returned %d: %s", status, resp.Error)
	}
	return resp.ID, nil
}

// DeleteGame clears the game's save.
func DeleteGame(ctx context.Context, client *http.Client, baseURL string, gameID uuid.UUID) error {
	status, _, err := Call(ctx, client, http.MethodDelete, fmt.Sprintf("%s/v1/games/%s", baseURL, gameID))
	if err != nil {
		return err
	}
	if status != http.StatusNoContent {
		return fmt.Errorf("delete game returned %d", status)
	}
	return nil
}

// PollForTurnChange waits until the game leaves the given turn, which is
// how a timed default shows up to a client that did nothing.
func PollForTurnChange(ctx context.Context, client *http.Client, baseURL string, gameID uuid.UUID, turn uint64, timeout time.Duration) (int, handlers.GameResponse, error) {
	deadline := time.Now().Add(timeout)
	url := fmt.Sprintf("%s/v1/games/%s", baseURL, gameID)
	for {
		status, resp, err := Call(ctx, client, http.MethodGet, url)
		if err != nil {
			return status, resp, err
		}
		if resp.View.Turn != turn {
			return status, resp, nil
		}
		if time.Now().After(deadline) {
			return status, resp, fmt.Errorf("timeout waiting for timed decision at turn %d", turn)
		}
		select {
		case <-ctx.Done():
			return status, resp, ctx.Err()
		case <-time.After(PollInterval):
		}
	}
}
