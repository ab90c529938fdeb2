// Package plugin loads per-flow validation extensions from disk.
//
// A flow may carry a plugin file at
//
//	<root>/flows/<flowId>/plugin.yaml
//
// declaring either or both capabilities:
//
//	select_schema: 'payload.type + ".schema"'
//	rules:
//	  - expr: 'payload.amount > 0'
//	    message: amount must be positive
//
// Expressions are expr-lang programs evaluated against the payload and a
// read-only query context over the session's prior payloads. The loaded
// plugin is polymorphic over its capability set: the returned value
// implements SchemaSelector, CustomValidator, or both, and callers type-
// assert for the capability they need.
//
// Loading re-stats the file on every call and reloads when it changed,
// discarding previously compiled programs, so plugin edits take effect
// without restarting the service. Absence of a plugin is not an error.
package plugin
