package archive

import "strings"

// Filter narrows a listing or export to matching records. Zero-value fields
// match everything.
type Filter struct {
	SessionID string
	FlowID    string
	Status    string
}

// compile renders the filter as a parameterized WHERE clause. Values are
// always bound, never interpolated, and the clause order is fixed so the
// same filter compiles to the same SQL.
func (f Filter) compile() (string, []any) {
	var clauses []string
	var params []any
	if f.SessionID != "" {
		clauses = append(clauses, "session_id = ?")
		params = append(params, f.SessionID)
	}
	if f.FlowID != "" {
		clauses = append(clauses, "flow_id = ?")
		params = append(params, f.FlowID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		params = append(params, f.Status)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), params
}
