// Package engine orchestrates schema resolution and validation execution.
//
// Given a flow id and a decoded JSON payload, the engine picks a candidate
// set of schemas, validates the payload against every candidate
// independently (pass-if-any), runs the flow's custom rules, and aggregates
// one definite verdict.
//
// Candidate resolution precedence:
//
//  1. The flow plugin's select_schema, when it yields resolvable references.
//  2. The payload's "type" discriminant as "<type>.schema", flow dir first.
//  3. The flow directory's single schema, when there is exactly one.
//  4. The shared directory's single schema, when the flow dir is empty.
//  5. All schemas in the flow directory, or all shared schemas if none.
//  6. Nothing: the payload is Invalid with a no-schema-found error.
//
// Candidates are always ordered lexicographically by filename, so the
// fewest-errors tie-break on total failure is deterministic.
//
// Every payload gets a verdict. Validation failures are verdict content,
// never Go errors; plugin faults and unreadable schemas are logged and
// downgraded so they cannot leave a payload unrecorded.
package engine
