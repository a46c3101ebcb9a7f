// Package api provides the HTTP handlers for the query desk REST API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"querydesk/internal/domain"
	"querydesk/internal/middleware"
	"querydesk/internal/service/connection"
	"querydesk/internal/service/history"
	"querydesk/internal/service/query"
)

// Submitter validates and submits a statement against a stored connection.
type Submitter interface {
	Submit(ctx context.Context, sessionID string, connectionID int64, statement string) (string, error)
}

// Handler serves the REST API.
type Handler struct {
	submitter    Submitter
	orchestrator *query.Orchestrator
	board        *query.Board
	connections  *connection.Service
	history      *history.Service
	logger       *slog.Logger
}

// NewHandler creates a Handler with all required service dependencies.
func NewHandler(
	submitter Submitter,
	orchestrator *query.Orchestrator,
	board *query.Board,
	connections *connection.Service,
	history *history.Service,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		submitter:    submitter,
		orchestrator: orchestrator,
		board:        board,
		connections:  connections,
		history:      history,
		logger:       logger,
	}
}

// Routes mounts the API under r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/query", h.SubmitQuery)
		r.Delete("/query", h.CancelQuery)
	})
	r.Route("/connections", func(r chi.Router) {
		r.Get("/", h.ListConnections)
		r.Post("/", h.CreateConnection)
		r.Route("/{connectionID}", func(r chi.Router) {
			r.Get("/", h.GetConnection)
			r.Delete("/", h.DeleteConnection)
			r.Get("/history", h.ListHistory)
			r.Delete("/history", h.ClearHistory)
		})
	})
	r.Delete("/history/{entryID}", h.DeleteHistoryEntry)
}

// === Queries ===

func (h *Handler) SubmitQuery(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var req SubmitQueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	executionID, err := h.submitter.Submit(r.Context(), sessionID, req.ConnectionID, req.Statement)
	if err != nil {
		writeError(w, err)
		return
	}
	principal, _ := middleware.PrincipalFromContext(r.Context())
	h.logger.Info("query accepted",
		"session", sessionID, "execution_id", executionID, "connection_id", req.ConnectionID, "principal", principal)
	writeJSON(w, http.StatusAccepted, SubmitQueryResponse{SessionID: sessionID, ExecutionID: executionID})
}

func (h *Handler) CancelQuery(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.Cancel(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	resp := Session{SessionID: sessionID}
	if snap, ok := h.orchestrator.Running(sessionID); ok {
		resp.Running = &snap
		resp.Status = query.ProgressStatus(snap.Elapsed)
	}
	if view, ok := h.board.Session(sessionID); ok {
		resp.Last = outcomeToAPI(view.Last)
		if resp.Running == nil {
			resp.Status = view.Status
		}
	}
	if resp.Running == nil && resp.Last == nil {
		writeError(w, domain.ErrNotFound("session %q has no activity", sessionID))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// === Connections ===

func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	list, err := h.connections.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]Connection, len(list))
	for i, d := range list {
		out[i] = connectionToAPI(d)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var req CreateConnectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.connections.Create(r.Context(), req.descriptor())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, connectionToAPI(*created))
}

func (h *Handler) GetConnection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "connectionID")
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := h.connections.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, connectionToAPI(*d))
}

func (h *Handler) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "connectionID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.connections.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// === History ===

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "connectionID")
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.history.List(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = historyEntryToAPI(e)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "connectionID")
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := h.history.DeleteAll(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handler) DeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "entryID")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.history.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// === helpers ===

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("invalid request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	return domain.ParseID(name, chi.URLParam(r, name))
}
