package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/papal-schism/internal/decision"
	"github.com/jwebster45206/papal-schism/internal/engine"
	"github.com/jwebster45206/papal-schism/internal/session"
)

// Sessions is the part of session.Manager the games endpoints use.
type Sessions interface {
	Create(ctx context.Context) (*session.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionDeletedPublisher is told when a game is deleted. Optional.
type SessionDeletedPublisher interface {
	PublishSessionDeleted(ctx context.Context, gameID uuid.UUID) error
}

// GameResponse is the body of every games endpoint.
type GameResponse struct {
	ID    uuid.UUID           `json:"id"`
	Error string              `json:"error,omitempty"`
	View  engine.View         `json:"view"`
	Timer *decision.Countdown `json:"timer,omitempty"`
}

type GamesHandler struct {
	sessions Sessions
	deleted  SessionDeletedPublisher
	logger   *slog.Logger
}

func NewGamesHandler(sessions Sessions, deleted SessionDeletedPublisher, logger *slog.Logger) *GamesHandler {
	return &GamesHandler{
		sessions: sessions,
		deleted:  deleted,
		logger:   logger,
	}
}

// ServeHTTP routes the games API.
// Routes:
// POST   /v1/games                          - Create a new game
// GET    /v1/games/{id}                     - Current view
// DELETE /v1/games/{id}                     - Clear the save and drop the game
// POST   /v1/games/{id}/start               - Start a new playthrough
// POST   /v1/games/{id}/continue            - Resume a saved playthrough
// POST   /v1/games/{id}/advance             - Reveal the next dialogue line
// POST   /v1/games/{id}/restart             - Back to the title screen
// POST   /v1/games/{id}/dismiss             - Dismiss the consequence text
// POST   /v1/games/{id}/choices/{choiceId}  - Apply a choice
func (h *GamesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/games"), "/")
	var parts []string
	if path != "" {
		parts = strings.Split(path, "/")
	}

	if len(parts) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
			return
		}
		h.handleCreate(w, r)
		return
	}

	id, err := uuid.Parse(parts[0])
	if err != nil {
		h.logger.Warn("Invalid game ID", "id", parts[0], "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid game ID format")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleRead(w, r, id)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleDelete(w, r, id)
	case len(parts) == 1:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
	case r.Method != http.MethodPost:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
	case len(parts) == 2:
		h.handleAction(w, r, id, parts[1])
	case len(parts) == 3 && parts[1] == "choices" && parts[2] != "":
		h.handleChoice(w, r, id, parts[2])
	default:
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	}
}

func (h *GamesHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create(r.Context())
	if err != nil {
		h.logger.Error("Failed to create game", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to create game")
		return
	}
	h.logger.Info("Game created", "session_id", s.ID)
	writeJSON(w, h.logger, http.StatusCreated, response(s, s.Store.View(), nil))
}

func (h *GamesHandler) handleRead(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	s, ok := h.lookup(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, response(s, s.Store.View(), nil))
}

func (h *GamesHandler) handleDelete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Game not found")
			return
		}
		h.logger.Error("Failed to delete game", "session_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete game")
		return
	}
	if h.deleted != nil {
		if err := h.deleted.PublishSessionDeleted(r.Context(), id); err != nil {
			h.logger.Warn("Failed to publish session deletion", "session_id", id, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GamesHandler) handleAction(w http.ResponseWriter, r *http.Request, id uuid.UUID, action string) {
	var apply func(*engine.Store) (engine.View, error)
	switch action {
	case "start":
		apply = (*engine.Store).Start
	case "continue":
		apply = (*engine.Store).Continue
	case "advance":
		apply = (*engine.Store).AdvanceDialogue
	case "restart":
		apply = (*engine.Store).Restart
	case "dismiss":
		apply = (*engine.Store).DismissConsequence
	default:
		writeError(w, h.logger, http.StatusNotFound, "Unknown action: "+action)
		return
	}

	s, ok := h.lookup(w, r, id)
	if !ok {
		return
	}
	v, err := apply(s.Store)
	h.respond(w, s, v, err)
}

func (h *GamesHandler) handleChoice(w http.ResponseWriter, r *http.Request, id uuid.UUID, choiceID string) {
	s, ok := h.lookup(w, r, id)
	if !ok {
		return
	}
	v, err := s.Store.ApplyChoice(choiceID)
	h.respond(w, s, v, err)
}

func (h *GamesHandler) lookup(w http.ResponseWriter, r *http.Request, id uuid.UUID) (*session.Session, bool) {
	s, err := h.sessions.Get(r.Context(), id)
	if err == nil {
		return s, true
	}
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "Game not found")
		return nil, false
	}
	h.logger.Error("Failed to load game", "session_id", id, "error", err)
	writeError(w, h.logger, http.StatusInternalServerError, "Failed to load game")
	return nil, false
}

// respond maps store errors. Rejected events leave the game unchanged and
// return the current view so the client can resynchronise.
func (h *GamesHandler) respond(w http.ResponseWriter, s *session.Session, v engine.View, err error) {
	switch {
	case err == nil:
		writeJSON(w, h.logger, http.StatusOK, response(s, v, nil))
	case errors.Is(err, engine.ErrStaleChoice),
		errors.Is(err, engine.ErrDialogueExhausted),
		errors.Is(err, engine.ErrNotStarted),
		errors.Is(err, engine.ErrNoSave):
		writeJSON(w, h.logger, http.StatusConflict, response(s, v, err))
	default:
		h.logger.Error("Game event failed", "session_id", s.ID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Game event failed")
	}
}

func response(s *session.Session, v engine.View, err error) GameResponse {
	resp := GameResponse{ID: s.ID, View: v}
	if err != nil {
		resp.Error = err.Error()
	}
	if cd, ok := s.Timer.Active(); ok {
		resp.Timer = &cd
	}
	return resp
}
