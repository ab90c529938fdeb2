package registry

import (
	"errors"
	"fmt"
)

// StateError represents a caller error against the session/flow state
// machine: an operation that requires state the registry is not in, or an
// identifier that does not name anything.
//
// These are non-retryable. The caller must perform an explicit state
// transition (e.g. start a session) before the operation can succeed.
type StateError struct {
	// Code identifies the error category.
	Code StateErrorCode

	// Message is a human-readable description.
	Message string

	// SessionID and FlowID identify the entity involved, when known.
	SessionID string
	FlowID    string
}

// StateErrorCode categorizes state machine errors.
type StateErrorCode string

const (
	// ErrCodeNoActiveSession indicates no session is current.
	ErrCodeNoActiveSession StateErrorCode = "NO_ACTIVE_SESSION"

	// ErrCodeNoActiveFlow indicates no flow is current in the current session.
	ErrCodeNoActiveFlow StateErrorCode = "NO_ACTIVE_FLOW"

	// ErrCodeMissingFlowID indicates a start-flow call with an empty flow id.
	ErrCodeMissingFlowID StateErrorCode = "MISSING_FLOW_ID"

	// ErrCodeInvalidFlowID indicates a flow id outside [A-Za-z0-9_]+.
	ErrCodeInvalidFlowID StateErrorCode = "INVALID_FLOW_ID"

	// ErrCodeUnknownSession indicates a session id that names no session.
	ErrCodeUnknownSession StateErrorCode = "UNKNOWN_SESSION"

	// ErrCodeUnknownFlow indicates a flow id that names no flow in its session.
	ErrCodeUnknownFlow StateErrorCode = "UNKNOWN_FLOW"
)

// Error implements the error interface.
func (e *StateError) Error() string {
	switch {
	case e.SessionID != "" && e.FlowID != "":
		return fmt.Sprintf("%s: %s (session=%s, flow=%s)", e.Code, e.Message, e.SessionID, e.FlowID)
	case e.SessionID != "":
		return fmt.Sprintf("%s: %s (session=%s)", e.Code, e.Message, e.SessionID)
	case e.FlowID != "":
		return fmt.Sprintf("%s: %s (flow=%s)", e.Code, e.Message, e.FlowID)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// CodeOf returns the StateErrorCode carried by err, or "" if err is not a
// StateError. Uses errors.As to handle wrapped errors.
func CodeOf(err error) StateErrorCode {
	var se *StateError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsNoActiveSession reports whether err is a NO_ACTIVE_SESSION state error.
func IsNoActiveSession(err error) bool { return CodeOf(err) == ErrCodeNoActiveSession }

// IsNoActiveFlow reports whether err is a NO_ACTIVE_FLOW state error.
func IsNoActiveFlow(err error) bool { return CodeOf(err) == ErrCodeNoActiveFlow }

func errNoActiveSession() *StateError {
	return &StateError{Code: ErrCodeNoActiveSession, Message: "no session is active"}
}

func errNoActiveFlow() *StateError {
	return &StateError{Code: ErrCodeNoActiveFlow, Message: "no flow is active"}
}

func errUnknownSession(id string) *StateError {
	return &StateError{Code: ErrCodeUnknownSession, Message: "session does not exist", SessionID: id}
}

func errUnknownFlow(sessionID, flowID string) *StateError {
	return &StateError{Code: ErrCodeUnknownFlow, Message: "flow does not exist in session", SessionID: sessionID, FlowID: flowID}
}
