// Package schema loads, compiles, and caches CUE schema definitions from
// the validators directory tree.
//
// Layout on disk:
//
//	<root>/flows/<flowId>/*.schema   flow-local schemas (CUE source)
//	<root>/common/schemas/*.schema   shared schemas
//
// Compiled schemas are cached by absolute path for the process lifetime.
// Every resolution re-stats the file and recompiles when the modification
// time changed, so schema edits take effect without a restart; stale cache
// entries are silently replaced, never explicitly evicted.
//
// Reference strings resolve in this order: absolute paths are used as-is,
// "@common/<name>" resolves under the shared directory, and anything else
// resolves under the flow's own directory with a fallback to the shared
// directory. Enumeration is always sorted lexicographically by filename so
// candidate ordering does not depend on directory listing order.
package schema
