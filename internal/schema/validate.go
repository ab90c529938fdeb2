package schema

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
)

// ValidatePayload validates a decoded JSON payload against the schema file
// at path.
//
// The returned slice holds one human-readable sentence per failing field,
// empty when the payload satisfies the schema. A non-nil error means the
// schema itself could not be read or compiled, which is an engine fault,
// not a validation failure.
func (s *Store) ValidatePayload(path string, payload any) ([]string, error) {
	schemaVal, err := s.Compile(path)
	if err != nil {
		return nil, err
	}

	dataVal := s.cuectx.Encode(payload)
	if err := dataVal.Err(); err != nil {
		return nil, fmt.Errorf("schema %s: encode payload: %w", path, err)
	}

	unified := schemaVal.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true), cue.Final(), cue.All()); err != nil {
		return fieldErrors(err), nil
	}
	return nil, nil
}

// fieldErrors flattens a CUE validation error into one sentence per field.
func fieldErrors(err error) []string {
	var out []string
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path := strings.Join(e.Path(), "."); path != "" {
			msg = path + ": " + msg
		}
		out = append(out, msg)
	}
	if len(out) == 0 {
		out = []string{err.Error()}
	}
	return out
}
