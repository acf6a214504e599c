package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BTreeMap/shiftengine/internal/flow"
	"github.com/BTreeMap/shiftengine/internal/models"
	"github.com/BTreeMap/shiftengine/internal/store"
)

const maxBodyBytes = 64 << 10

// sessionsHandler dispatches everything under /sessions.
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.sessionsHandler: request", "method", r.Method, "path", r.URL.Path)

	path := strings.TrimPrefix(r.URL.Path, "/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		// /sessions
		switch r.Method {
		case http.MethodPost:
			s.startSessionHandler(w, r)
		default:
			w.Header().Set("Allow", http.MethodPost)
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
		return
	}

	segments := strings.Split(path, "/")
	sessionID := segments[0]

	switch {
	case len(segments) == 1:
		// /sessions/{id}
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
			return
		}
		s.getSessionHandler(w, r, sessionID)
	case len(segments) == 2 && segments[1] == "turns":
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
			return
		}
		s.turnHandler(w, r, sessionID)
	case len(segments) == 2 && segments[1] == "history":
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
			return
		}
		s.historyHandler(w, r, sessionID)
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown session endpoint"))
	}
}

// startSessionHandler handles POST /sessions
func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		slog.Warn("Server.startSessionHandler: invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	res, err := s.engine.StartSession(r.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, flow.ErrSessionExists) {
			writeJSONResponse(w, http.StatusConflict, models.Error("Session already exists"))
			return
		}
		slog.Error("Server.startSessionHandler: start failed", "session", req.SessionID, "error", err)
		writeTurnError(w, res, err)
		return
	}
	slog.Info("Server.startSessionHandler: session started", "session", res.SessionID)
	writeJSONResponse(w, http.StatusCreated, models.Success(res))
}

// turnHandler handles POST /sessions/{id}/turns
func (s *Server) turnHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req models.TurnRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		slog.Warn("Server.turnHandler: invalid JSON", "session", sessionID, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	res, err := s.engine.ContinueSession(r.Context(), sessionID, req.Input)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
			return
		}
		writeTurnError(w, res, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(res))
}

// getSessionHandler handles GET /sessions/{id}
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	c, err := s.engine.Snapshot(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
			return
		}
		slog.Error("Server.getSessionHandler: load failed", "session", sessionID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(c))
}

// historyHandler handles GET /sessions/{id}/history
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if _, err := s.engine.Snapshot(r.Context(), sessionID); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
			return
		}
		slog.Error("Server.historyHandler: load failed", "session", sessionID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	history, err := s.engine.History(r.Context(), sessionID)
	if err != nil {
		slog.Error("Server.historyHandler: list failed", "session", sessionID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load history"))
		return
	}
	if history == nil {
		history = []models.Interaction{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"interactions": history,
		"count":        len(history),
	}))
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// writeTurnError maps an engine error onto a status code. The engine's
// scripted failure message is passed through as the result.
func writeTurnError(w http.ResponseWriter, res models.TurnResult, err error) {
	var cfgErr *flow.ConfigurationError
	switch {
	case flow.IsRetryable(err):
		writeJSONResponse(w, http.StatusServiceUnavailable, models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusRetry).
			WithMessage("Turn was not saved; resend the same input").
			WithResult(res).
			Build())
	case errors.As(err, &cfgErr):
		writeJSONResponse(w, http.StatusInternalServerError, models.NewAPIResponseBuilder().
			WithStatus(models.APIStatusError).
			WithMessage("Internal flow error").
			WithResult(res).
			Build())
	default:
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}

// decodeOptionalJSON decodes the body into v, accepting an empty body.
func decodeOptionalJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
