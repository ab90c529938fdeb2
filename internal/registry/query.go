package registry

import "sort"

// Predicate selects payload records for FindPayloads. A nil Predicate
// matches every record.
type Predicate func(PayloadRecord) bool

// FindOptions restricts a FindPayloads query.
type FindOptions struct {
	// FlowID restricts the query to one flow. Empty means all flows in the
	// session.
	FlowID string

	// Predicate filters records. Nil matches all.
	Predicate Predicate
}

// QueryContext is the read-only view over one session that custom
// validation rules receive. It deliberately exposes no mutation: the only
// sanctioned write path for history is the engine's append after the
// verdict is computed, so a rule cannot corrupt the audit trail
// mid-validation.
type QueryContext struct {
	reg       *Registry
	sessionID string
	flowID    string
}

// NewQueryContext binds a read view to the given session and flow. The ids
// are captured at ingest entry and stay fixed for the lifetime of the
// context, even if the registry's current pointers move.
func NewQueryContext(reg *Registry, sessionID, flowID string) *QueryContext {
	return &QueryContext{reg: reg, sessionID: sessionID, flowID: flowID}
}

// SessionID returns the session this context is bound to.
func (q *QueryContext) SessionID() string { return q.sessionID }

// FlowID returns the flow this context is bound to.
func (q *QueryContext) FlowID() string { return q.flowID }

// Session returns the bound session, or false if it was deleted.
func (q *QueryContext) Session() (*Session, bool) {
	return q.reg.LookupSession(q.sessionID)
}

// Flow returns the bound flow, or false if it or its session was deleted.
func (q *QueryContext) Flow() (*Flow, bool) {
	return q.reg.LookupFlow(q.sessionID, q.flowID)
}

// FindPayloads returns the records in the bound session that match opts,
// in order: for a single flow, append order; across flows, flows sorted by
// id, then append order. A rule validating payload N sees exactly the
// records appended before N, never the payload currently being validated,
// because the engine appends only after all rules have run.
func (q *QueryContext) FindPayloads(opts FindOptions) []PayloadRecord {
	s, ok := q.reg.LookupSession(q.sessionID)
	if !ok {
		return nil
	}

	var flows []*Flow
	if opts.FlowID != "" {
		f, ok := s.Flows[opts.FlowID]
		if !ok {
			return nil
		}
		flows = []*Flow{f}
	} else {
		for _, fid := range sortedFlowIDs(s) {
			flows = append(flows, s.Flows[fid])
		}
	}

	var out []PayloadRecord
	for _, f := range flows {
		for _, rec := range f.History {
			if opts.Predicate == nil || opts.Predicate(rec) {
				out = append(out, rec)
			}
		}
	}
	return out
}

// FlowPayloads is shorthand for FindPayloads restricted to the bound flow.
func (q *QueryContext) FlowPayloads() []PayloadRecord {
	return q.FindPayloads(FindOptions{FlowID: q.flowID})
}

func sortedFlowIDs(s *Session) []string {
	ids := make([]string, 0, len(s.Flows))
	for id := range s.Flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
