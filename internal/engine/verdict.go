package engine

import "github.com/sluicehq/sluice/internal/registry"

// NoSchemaFoundMessage is the sole error sentence of a verdict whose
// candidate set resolved empty.
const NoSchemaFoundMessage = "No schema found in flow or common schema directories"

// InternalErrorMessage is the generic custom error appended when plugin
// execution fails unexpectedly.
const InternalErrorMessage = "Internal validator error"

// Reason tags why a verdict came out Invalid.
type Reason string

const (
	// ReasonNone marks a Valid verdict.
	ReasonNone Reason = ""

	// ReasonValidationFailure marks schema or custom rule rejection.
	ReasonValidationFailure Reason = "validation_failure"

	// ReasonNoSchemaFound marks an empty candidate set.
	ReasonNoSchemaFound Reason = "no_schema_found"
)

// Verdict is the aggregated outcome of validating one payload.
type Verdict struct {
	Status registry.Status `json:"status"`
	Reason Reason          `json:"reason,omitempty"`

	// Errors holds the ordered error sentences: the representative schema
	// errors first, then custom rule errors. Empty when Status is valid.
	Errors []string `json:"errors,omitempty"`

	// Candidates holds the absolute schema paths that were validated
	// against, in enumeration order. Empty when no schema resolved.
	Candidates []string `json:"candidates,omitempty"`
}

// Valid reports whether the verdict is a pass.
func (v Verdict) Valid() bool { return v.Status == registry.StatusValid }
