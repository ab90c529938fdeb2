package plugin

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sluicehq/sluice/internal/registry"
)

func writePlugin(t *testing.T, root, flowID, src string) string {
	t.Helper()
	dir := filepath.Join(root, "flows", flowID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func emptyQueryContext() *registry.QueryContext {
	r := registry.New(registry.WithIDGenerator(registry.NewFixedGenerator("s1")))
	sid := r.StartSession()
	return registry.NewQueryContext(r, sid, "checkout")
}

func TestLoad_Absent(t *testing.T) {
	l := NewLoader(t.TempDir())
	p, err := l.Load("checkout")
	require.NoError(t, err)
	assert.Nil(t, p, "missing plugin file is not an error")
}

func TestLoad_CapabilityShapes(t *testing.T) {
	root := t.TempDir()
	l := NewLoader(root)

	writePlugin(t, root, "sel", "select_schema: '\"order.schema\"'\n")
	writePlugin(t, root, "val", "rules:\n  - expr: 'true'\n    message: never\n")
	writePlugin(t, root, "both", "select_schema: '\"order.schema\"'\nrules:\n  - expr: 'true'\n")

	p, err := l.Load("sel")
	require.NoError(t, err)
	_, isSel := p.(SchemaSelector)
	_, isVal := p.(CustomValidator)
	assert.True(t, isSel)
	assert.False(t, isVal, "selector-only plugin must not expose ValidateCustom")

	p, err = l.Load("val")
	require.NoError(t, err)
	_, isSel = p.(SchemaSelector)
	_, isVal = p.(CustomValidator)
	assert.False(t, isSel, "validator-only plugin must not expose SelectSchema")
	assert.True(t, isVal)

	p, err = l.Load("both")
	require.NoError(t, err)
	_, isSel = p.(SchemaSelector)
	_, isVal = p.(CustomValidator)
	assert.True(t, isSel)
	assert.True(t, isVal)
	assert.Equal(t, "both", p.FlowID())
}

func TestLoad_BadFile(t *testing.T) {
	root := t.TempDir()
	l := NewLoader(root)

	writePlugin(t, root, "empty", "# nothing declared\n")
	_, err := l.Load("empty")
	require.Error(t, err)

	writePlugin(t, root, "badexpr", "rules:\n  - expr: 'payload.amount >'\n")
	_, err = l.Load("badexpr")
	require.Error(t, err)

	writePlugin(t, root, "badyaml", "rules: [unclosed\n")
	_, err = l.Load("badyaml")
	require.Error(t, err)
}

func TestLoad_HotReload(t *testing.T) {
	root := t.TempDir()
	l := NewLoader(root)
	qc := emptyQueryContext()

	path := writePlugin(t, root, "checkout", "select_schema: '\"a.schema\"'\n")
	p, err := l.Load("checkout")
	require.NoError(t, err)
	refs, err := p.(SchemaSelector).SelectSchema(map[string]any{}, qc)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.schema"}, refs)

	// Edit the file; the next Load must discard the old program.
	require.NoError(t, os.WriteFile(path, []byte("select_schema: '\"b.schema\"'\n"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	p, err = l.Load("checkout")
	require.NoError(t, err)
	refs, err = p.(SchemaSelector).SelectSchema(map[string]any{}, qc)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.schema"}, refs)

	// Deleting the file makes the plugin absent again.
	require.NoError(t, os.Remove(path))
	p, err = l.Load("checkout")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestSelectSchema_ResultShapes(t *testing.T) {
	root := t.TempDir()
	l := NewLoader(root)
	qc := emptyQueryContext()

	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"single string", `select_schema: '"one.schema"'`, []string{"one.schema"}},
		{"list", `select_schema: '["a.schema", "b.schema"]'`, []string{"a.schema", "b.schema"}},
		{"nil abstains", `select_schema: 'nil'`, nil},
		{"empty string abstains", `select_schema: '""'`, nil},
		{"payload driven", `select_schema: 'payload.type + ".schema"'`, []string{"order.schema"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writePlugin(t, root, "f", tt.src+"\n")
			l.Invalidate("f")
			p, err := l.Load("f")
			require.NoError(t, err)
			refs, err := p.(SchemaSelector).SelectSchema(map[string]any{"type": "order"}, qc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, refs)
		})
	}

	writePlugin(t, root, "f", "select_schema: '42'\n")
	l.Invalidate("f")
	p, err := l.Load("f")
	require.NoError(t, err)
	_, err = p.(SchemaSelector).SelectSchema(map[string]any{}, qc)
	require.Error(t, err, "non-string selector result is a fault")
}

func TestValidateCustom_Rules(t *testing.T) {
	root := t.TempDir()
	l := NewLoader(root)
	qc := emptyQueryContext()

	writePlugin(t, root, "f", `rules:
  - expr: 'payload.amount > 0'
    message: amount must be positive
  - expr: 'payload.amount < 100 ? true : "amount exceeds limit"'
  - expr: 'nil'
`)
	p, err := l.Load("f")
	require.NoError(t, err)
	v := p.(CustomValidator)

	msgs, err := v.ValidateCustom(map[string]any{"amount": 10.0}, qc)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = v.ValidateCustom(map[string]any{"amount": -5.0}, qc)
	require.NoError(t, err)
	assert.Equal(t, []string{"amount must be positive"}, msgs)

	// A string result is a rule-raised domain error.
	_, err = v.ValidateCustom(map[string]any{"amount": 500.0}, qc)
	require.Error(t, err)
	re, ok := AsRuleError(err)
	require.True(t, ok)
	assert.Equal(t, "amount exceeds limit", re.Message)
}

func TestValidateCustom_HistoryAccess(t *testing.T) {
	root := t.TempDir()
	l := NewLoader(root)

	r := registry.New(registry.WithIDGenerator(registry.NewFixedGenerator("s1", "r1", "r2")))
	sid := r.StartSession()
	require.NoError(t, r.StartFlow("orders", ""))
	_, err := r.RecordPayload(sid, "orders", map[string]any{"id": "dup"}, registry.StatusValid, nil)
	require.NoError(t, err)
	_, err = r.RecordPayload(sid, "orders", map[string]any{"id": "other"}, registry.StatusValid, nil)
	require.NoError(t, err)
	qc := registry.NewQueryContext(r, sid, "orders")

	writePlugin(t, root, "orders", `rules:
  - expr: 'none(payloads(), .Payload.id == payload.id)'
    message: duplicate order id
`)
	p, err := l.Load("orders")
	require.NoError(t, err)
	v := p.(CustomValidator)

	msgs, err := v.ValidateCustom(map[string]any{"id": "fresh"}, qc)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = v.ValidateCustom(map[string]any{"id": "dup"}, qc)
	require.NoError(t, err)
	assert.Equal(t, []string{"duplicate order id"}, msgs)
}

func TestValidateCustom_UnexpectedFault(t *testing.T) {
	root := t.TempDir()
	l := NewLoader(root)
	qc := emptyQueryContext()

	writePlugin(t, root, "f", "rules:\n  - expr: 'payload.missing.deeply'\n")
	p, err := l.Load("f")
	require.NoError(t, err)

	_, err = p.(CustomValidator).ValidateCustom(map[string]any{}, qc)
	require.Error(t, err)
	_, ok := AsRuleError(err)
	assert.False(t, ok, "evaluation faults are not rule errors")
}
