package plugin

import (
	"errors"

	"github.com/sluicehq/sluice/internal/registry"
)

// Plugin is a loaded flow extension. Concrete values additionally implement
// SchemaSelector, CustomValidator, or both, depending on which capabilities
// the plugin file declares; callers type-assert for what they need.
type Plugin interface {
	FlowID() string
}

// SchemaSelector picks candidate schema references for a payload, overriding
// the engine's resolution heuristics. Returning no references means the
// selector abstains and the heuristics apply.
type SchemaSelector interface {
	SelectSchema(payload any, qc *registry.QueryContext) ([]string, error)
}

// CustomValidator runs flow-specific business rules after schema
// validation. The returned messages are appended to the verdict's error
// list; an empty slice means all rules passed.
//
// A returned RuleError is a validation-domain failure and becomes a single
// custom error with its message text. Any other error is an internal fault
// the engine downgrades to a generic message.
type CustomValidator interface {
	ValidateCustom(payload any, qc *registry.QueryContext) ([]string, error)
}

// RuleError is a validation-domain error raised by a custom rule, as
// opposed to an unexpected fault in rule execution.
type RuleError struct {
	Message string
}

// Error implements the error interface.
func (e *RuleError) Error() string { return e.Message }

// AsRuleError unwraps err to a RuleError, if it is one.
func AsRuleError(err error) (*RuleError, bool) {
	var re *RuleError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
