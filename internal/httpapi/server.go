// Package httpapi is the JSON transport over the service layer.
//
// It is deliberately thin: decode, delegate, encode. All state machine and
// validation semantics live in internal/service and below. State errors map
// to 409, bad input to 400; validation failures are 200s with an invalid
// verdict in the body, because an invalid payload is a recorded outcome,
// not a transport failure.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sluicehq/sluice/internal/mirror"
	"github.com/sluicehq/sluice/internal/registry"
	"github.com/sluicehq/sluice/internal/service"
)

// maxPayloadBytes bounds one ingested payload.
const maxPayloadBytes = 1 << 20

// Server handles the HTTP API.
type Server struct {
	svc *service.Service
	log *slog.Logger

	// mirror, when set, receives a copy of every ingest request.
	mirror *mirror.Mirror
}

// Option configures a Server.
type Option func(*Server)

// WithMirror attaches fire-and-forget traffic mirroring to ingest.
func WithMirror(m *mirror.Mirror) Option {
	return func(s *Server) { s.mirror = m }
}

// New creates a Server. A nil logger defaults to slog.Default().
func New(svc *service.Service, log *slog.Logger, opts ...Option) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{svc: svc, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/session", s.handleStartSession)
	mux.HandleFunc("DELETE /api/session", s.handleEndSession)
	mux.HandleFunc("POST /api/flow", s.handleStartFlow)
	mux.HandleFunc("DELETE /api/flow", s.handleEndFlow)
	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("GET /api/records", s.handleRecords)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	return mux
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	id := s.svc.StartSession()
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.EndSession(); err != nil {
		writeStateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

type startFlowRequest struct {
	FlowID string `json:"flow_id"`
	Name   string `json:"name"`
}

func (s *Server) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	var req startFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "request body must be JSON")
		return
	}
	if err := s.svc.StartFlow(req.FlowID, req.Name); err != nil {
		writeStateError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"flow_id": req.FlowID})
}

func (s *Server) handleEndFlow(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.EndFlow(); err != nil {
		writeStateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "could not read request body")
		return
	}

	if s.mirror != nil {
		s.mirror.Forward(r, body)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "payload must be JSON")
		return
	}

	res, err := s.svc.Ingest(r.Context(), payload)
	if err != nil {
		writeStateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.svc.ListSessions()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.svc.DeleteSession(r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	records := s.svc.FlattenRecords()
	if records == nil {
		records = []registry.FlatRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.svc.ClearAll()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": msg},
	})
}

// writeStateError maps registry state errors to 409 Conflict; anything
// else is a 500.
func writeStateError(w http.ResponseWriter, err error) {
	var se *registry.StateError
	if errors.As(err, &se) {
		writeError(w, http.StatusConflict, string(se.Code), se.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
}
