package registry

import (
	"regexp"
	"time"

	"golang.org/x/text/unicode/norm"
)

// flowIDPattern is the only accepted shape for flow identifiers. Flow ids
// double as directory names under the validators root, so the pattern is
// deliberately narrower than what the filesystem would allow.
var flowIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Registry holds all sessions and the current-pointer state.
//
// INVARIANTS:
//   - At most one session is current; at most one flow within it is current.
//   - currentFlow is non-empty only if currentSession is non-empty and the
//     flow exists in that session.
//   - A session's or flow's EndedAt is set once and never cleared.
//
// Registry methods do not lock. The service layer serializes access.
type Registry struct {
	sessions map[string]*Session
	order    []string // session ids in creation order, for stable listings

	currentSession string
	currentFlow    string

	ids IDGenerator
	now func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithIDGenerator replaces the default UUIDv7 generator. Used by tests to
// obtain deterministic ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Registry) { r.ids = g }
}

// WithClock replaces the wall clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		ids:      UUIDv7Generator{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartSession creates a new session and makes it current.
//
// If a session is already current it is auto-ended first (EndedAt set if
// unset); its flows and history remain queryable. The current-flow pointer
// is cleared. StartSession always succeeds and returns the new session id.
func (r *Registry) StartSession() string {
	if cur, ok := r.sessions[r.currentSession]; ok {
		r.endSession(cur)
	}

	s := &Session{
		ID:        r.ids.Generate(),
		CreatedAt: r.now(),
		Flows:     make(map[string]*Flow),
	}
	r.sessions[s.ID] = s
	r.order = append(r.order, s.ID)
	r.currentSession = s.ID
	r.currentFlow = ""
	return s.ID
}

// EndSession ends the current session and clears both current pointers.
// Fails with NO_ACTIVE_SESSION if no session is current.
func (r *Registry) EndSession() error {
	cur, ok := r.sessions[r.currentSession]
	if !ok {
		return errNoActiveSession()
	}
	r.endSession(cur)
	r.currentSession = ""
	r.currentFlow = ""
	return nil
}

// endSession stamps EndedAt on the session and its current flow, if unset.
func (r *Registry) endSession(s *Session) {
	if f, ok := s.Flows[r.currentFlow]; ok {
		r.endFlow(f)
	}
	if s.EndedAt == nil {
		t := r.now()
		s.EndedAt = &t
	}
}

// StartFlow makes flowID the current flow in the current session, creating
// it if it does not exist yet.
//
// Starting an id that already exists in the session reuses the flow and its
// history; it does not reset anything. If another flow is current it is
// auto-ended first. The optional name is stored on first creation only and
// defaults to the flow id.
func (r *Registry) StartFlow(flowID, name string) error {
	s, ok := r.sessions[r.currentSession]
	if !ok {
		return errNoActiveSession()
	}
	if flowID == "" {
		return &StateError{Code: ErrCodeMissingFlowID, Message: "flow id is required"}
	}
	if !flowIDPattern.MatchString(flowID) {
		return &StateError{
			Code:    ErrCodeInvalidFlowID,
			Message: "flow id must match [A-Za-z0-9_]+",
			FlowID:  flowID,
		}
	}

	if cur, ok := s.Flows[r.currentFlow]; ok {
		r.endFlow(cur)
	}

	if _, ok := s.Flows[flowID]; !ok {
		if name == "" {
			name = flowID
		}
		s.Flows[flowID] = &Flow{
			ID:        flowID,
			Name:      norm.NFC.String(name),
			CreatedAt: r.now(),
		}
	}
	r.currentFlow = flowID
	return nil
}

// EndFlow ends the current flow and clears the current-flow pointer. The
// session stays current.
func (r *Registry) EndFlow() error {
	s, ok := r.sessions[r.currentSession]
	if !ok {
		return errNoActiveSession()
	}
	f, ok := s.Flows[r.currentFlow]
	if !ok {
		return errNoActiveFlow()
	}
	r.endFlow(f)
	r.currentFlow = ""
	return nil
}

func (r *Registry) endFlow(f *Flow) {
	if f.EndedAt == nil {
		t := r.now()
		f.EndedAt = &t
	}
}

// DeleteSession removes the session and all of its flows and history.
// Deleting the current session clears both current pointers. Deleting an
// unknown id is a silent no-op.
func (r *Registry) DeleteSession(id string) {
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	for i, sid := range r.order {
		if sid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.currentSession == id {
		r.currentSession = ""
		r.currentFlow = ""
	}
}

// RecordPayload appends a new PayloadRecord to the named flow and returns
// the generated record id.
//
// Callers are expected to have resolved (sessionID, flowID) from the
// current pointers at the start of payload processing and to pass those
// exact ids here, so a StartFlow or StartSession racing the validation
// cannot misfile the record. Unknown ids therefore indicate the session or
// flow was deleted mid-flight; they fail without touching anything.
func (r *Registry) RecordPayload(sessionID, flowID string, payload any, status Status, errs []string) (string, error) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return "", errUnknownSession(sessionID)
	}
	f, ok := s.Flows[flowID]
	if !ok {
		return "", errUnknownFlow(sessionID, flowID)
	}

	rec := PayloadRecord{
		ID:        r.ids.Generate(),
		Timestamp: r.now(),
		Status:    status,
		Errors:    errs,
		Payload:   payload,
	}
	f.History = append(f.History, rec)
	return rec.ID, nil
}

// Current returns the current (sessionID, flowID) pair. Either may be empty.
func (r *Registry) Current() (sessionID, flowID string) {
	return r.currentSession, r.currentFlow
}

// CurrentSession returns the current session, or nil if none.
func (r *Registry) CurrentSession() *Session {
	return r.sessions[r.currentSession]
}

// GetSession returns the named session or an UNKNOWN_SESSION error.
// Mutation paths use this hard-failure variant.
func (r *Registry) GetSession(id string) (*Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, errUnknownSession(id)
	}
	return s, nil
}

// LookupSession returns the named session, or false if it does not exist.
// Dashboard-style reads use this optional variant.
func (r *Registry) LookupSession(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// GetFlow returns the named flow or an UNKNOWN_SESSION/UNKNOWN_FLOW error.
func (r *Registry) GetFlow(sessionID, flowID string) (*Flow, error) {
	s, err := r.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	f, ok := s.Flows[flowID]
	if !ok {
		return nil, errUnknownFlow(sessionID, flowID)
	}
	return f, nil
}

// LookupFlow returns the named flow, or false if the session or flow does
// not exist.
func (r *Registry) LookupFlow(sessionID, flowID string) (*Flow, bool) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	f, ok := s.Flows[flowID]
	return f, ok
}

// ListSessions returns all sessions in creation order.
func (r *Registry) ListSessions() []*Session {
	out := make([]*Session, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id])
	}
	return out
}

// FlattenRecords returns every payload record across all sessions and
// flows, joined with its owning ids. Sessions appear in creation order;
// within a session, flows appear sorted by flow id and records in append
// order, so the result is deterministic.
func (r *Registry) FlattenRecords() []FlatRecord {
	var out []FlatRecord
	for _, sid := range r.order {
		s := r.sessions[sid]
		for _, fid := range sortedFlowIDs(s) {
			f := s.Flows[fid]
			for _, rec := range f.History {
				out = append(out, FlatRecord{
					SessionID: s.ID,
					FlowID:    f.ID,
					FlowName:  f.Name,
					Record:    rec,
				})
			}
		}
	}
	return out
}

// ClearAll resets the registry to its initial empty state.
func (r *Registry) ClearAll() {
	r.sessions = make(map[string]*Session)
	r.order = nil
	r.currentSession = ""
	r.currentFlow = ""
}
