// Package registry implements the sticky session/flow state machine.
//
// A Registry owns all sessions recorded during the process lifetime and a
// single pair of "current" pointers naming the session and flow that the
// next ingested payload is routed to. At most one session is current at a
// time; starting a new one auto-ends the prior. Within the current session
// at most one flow is current, with the same auto-end behavior.
//
// Payload history is append-only: a PayloadRecord is never mutated after it
// is appended to its flow. Read access for custom validation rules goes
// through QueryContext, a read-only view bound to one session, so rules can
// inspect prior payloads without a mutation path into the audit trail.
//
// The Registry performs no locking of its own. Callers (the service layer)
// serialize mutations; see internal/service.
package registry
