package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSchemasFixture(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "validators")
	flowDir := filepath.Join(root, "flows", "checkout")
	commonDir := filepath.Join(root, "common", "schemas")
	require.NoError(t, os.MkdirAll(flowDir, 0o755))
	require.NoError(t, os.MkdirAll(commonDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(flowDir, "order.schema"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(flowDir, "refund.schema"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(commonDir, "envelope.schema"), []byte("{}"), 0o644))
	return root
}

func TestSchemas_ForFlow(t *testing.T) {
	root := writeSchemasFixture(t)

	out, err := runCLI(t, "schemas", "checkout", "--validators", root, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var listing SchemaListing
	require.NoError(t, json.Unmarshal(data, &listing))

	assert.Equal(t, "checkout", listing.FlowID)
	assert.Equal(t, []string{"order.schema", "refund.schema"}, listing.Flow)
	assert.Equal(t, []string{"envelope.schema"}, listing.Common)
}

func TestSchemas_CommonOnly(t *testing.T) {
	root := writeSchemasFixture(t)

	out, err := runCLI(t, "schemas", "--validators", root)
	require.NoError(t, err)
	assert.Contains(t, out, "envelope.schema")
	assert.NotContains(t, out, "order.schema")
}

func TestSchemas_UnknownFlowListsNothing(t *testing.T) {
	root := writeSchemasFixture(t)

	out, err := runCLI(t, "schemas", "ghost", "--validators", root)
	require.NoError(t, err)
	assert.Contains(t, out, "flow ghost: (none)")
}
