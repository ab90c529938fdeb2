// Package service is the orchestration surface consumed by transports.
//
// It owns the serialization contract from the concurrency model: all
// registry mutations and every full ingest (pointer resolution, verdict
// computation, append) run under one mutex, so no payload's verdict
// computation interleaves with another request's mutating operation. The
// routing identifiers are resolved once at ingest entry and used verbatim
// for the final append, so a StartFlow or StartSession racing a slow
// validation cannot misfile the record.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sluicehq/sluice/internal/engine"
	"github.com/sluicehq/sluice/internal/registry"
)

// RecordSink receives a copy of every appended payload record. Implemented
// by the archive store. Sink failures are logged, never surfaced: the
// in-memory registry remains the source of truth for the process lifetime.
type RecordSink interface {
	Append(ctx context.Context, rec registry.FlatRecord) error
}

// Service exposes the session/flow operations and payload ingest.
type Service struct {
	mu  sync.Mutex
	reg *registry.Registry
	eng *engine.Engine
	log *slog.Logger

	sink RecordSink // optional
}

// Option configures a Service.
type Option func(*Service)

// WithSink attaches an audit sink that records every appended verdict.
func WithSink(sink RecordSink) Option {
	return func(s *Service) { s.sink = sink }
}

// New creates a Service. A nil logger defaults to slog.Default().
func New(reg *registry.Registry, eng *engine.Engine, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{reg: reg, eng: eng, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestResult reports the recorded outcome of one ingested payload.
type IngestResult struct {
	RecordID string          `json:"record_id"`
	Status   registry.Status `json:"status"`
	Errors   []string        `json:"errors,omitempty"`
}

// StartSession starts a new session, auto-ending any current one, and
// returns its id.
func (s *Service) StartSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.reg.StartSession()
	s.log.Info("session started", "session", id)
	return id
}

// EndSession ends the current session.
func (s *Service) EndSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.EndSession()
}

// StartFlow makes flowID current in the current session, creating it on
// first use.
func (s *Service) StartFlow(flowID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.StartFlow(flowID, name); err != nil {
		return err
	}
	s.log.Info("flow started", "flow", flowID)
	return nil
}

// EndFlow ends the current flow.
func (s *Service) EndFlow() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.EndFlow()
}

// Ingest validates one payload against the current flow and appends the
// verdict to its history.
//
// The current (sessionID, flowID) pair is resolved exactly once, here at
// entry; the verdict is appended to those identifiers even if the current
// pointers move during validation.
func (s *Service) Ingest(ctx context.Context, payload any) (IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessionID, flowID := s.reg.Current()
	if sessionID == "" {
		return IngestResult{}, &registry.StateError{
			Code: registry.ErrCodeNoActiveSession, Message: "no session is active",
		}
	}
	if flowID == "" {
		return IngestResult{}, &registry.StateError{
			Code: registry.ErrCodeNoActiveFlow, Message: "no flow is active",
		}
	}

	qc := registry.NewQueryContext(s.reg, sessionID, flowID)
	verdict := s.eng.Validate(ctx, flowID, payload, qc)

	recordID, err := s.reg.RecordPayload(sessionID, flowID, payload, verdict.Status, verdict.Errors)
	if err != nil {
		// Only reachable if the session or flow was deleted mid-request.
		return IngestResult{}, err
	}

	s.log.Info("payload recorded",
		"session", sessionID, "flow", flowID,
		"record", recordID, "status", verdict.Status)

	if s.sink != nil {
		flow, _ := s.reg.LookupFlow(sessionID, flowID)
		rec := registry.FlatRecord{
			SessionID: sessionID,
			FlowID:    flowID,
			FlowName:  flow.Name,
			Record:    flow.History[len(flow.History)-1],
		}
		if err := s.sink.Append(ctx, rec); err != nil {
			s.log.Error("archive append failed", "record", recordID, "error", err)
		}
	}

	return IngestResult{RecordID: recordID, Status: verdict.Status, Errors: verdict.Errors}, nil
}

// DeleteSession removes a session and its history. Unknown ids are a no-op.
func (s *Service) DeleteSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.DeleteSession(id)
}

// ListSessions returns all sessions in creation order.
func (s *Service) ListSessions() []*registry.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.ListSessions()
}

// GetFlow returns the named flow.
func (s *Service) GetFlow(sessionID, flowID string) (*registry.Flow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.GetFlow(sessionID, flowID)
}

// Current returns the current (sessionID, flowID) pointers.
func (s *Service) Current() (sessionID, flowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Current()
}

// FlattenRecords returns every payload record across all sessions.
func (s *Service) FlattenRecords() []registry.FlatRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.FlattenRecords()
}

// ClearAll resets all session state.
func (s *Service) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.ClearAll()
	s.log.Info("registry cleared")
}
