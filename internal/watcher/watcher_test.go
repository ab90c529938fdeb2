package watcher

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sluicehq/sluice/internal/plugin"
	"github.com/sluicehq/sluice/internal/schema"
)

func startWatcher(t *testing.T) (string, *schema.Store, *plugin.Loader) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "flows", "checkout"), 0o755))

	schemas := schema.NewStore(root)
	plugins := plugin.NewLoader(root)
	w, err := New(root, schemas, plugins, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return root, schemas, plugins
}

func TestWatcher_SchemaEditInvalidatesCache(t *testing.T) {
	root, schemas, _ := startWatcher(t)
	path := filepath.Join(root, "flows", "checkout", "order.schema")
	require.NoError(t, os.WriteFile(path, []byte(`{amount: >0}`), 0o644))

	_, err := schemas.Compile(path)
	require.NoError(t, err)

	// Rewrite with identical size and mtime, so only the watcher-driven
	// invalidation can make the change visible.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(`{amount: >9}`), 0o644))
	require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))

	assert.Eventually(t, func() bool {
		errs, err := schemas.ValidatePayload(path, map[string]any{"amount": 5.0})
		return err == nil && len(errs) > 0
	}, 5*time.Second, 50*time.Millisecond, "watcher should drop the stale compile")
}

func TestWatcher_NewDirectoryIsPickedUp(t *testing.T) {
	root, schemas, _ := startWatcher(t)

	// A flow directory created after the watcher started.
	dir := filepath.Join(root, "flows", "payments")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	time.Sleep(debounceInterval + 200*time.Millisecond)

	path := filepath.Join(dir, "refund.schema")
	require.NoError(t, os.WriteFile(path, []byte(`{amount: <99}`), 0o644))
	_, err := schemas.Compile(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(`{amount: <10}`), 0o644))
	require.NoError(t, os.Chtimes(path, info.ModTime(), info.ModTime()))

	assert.Eventually(t, func() bool {
		errs, err := schemas.ValidatePayload(path, map[string]any{"amount": 20.0})
		return err == nil && len(errs) > 0
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcher_MissingRoot(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "absent"), schema.NewStore("x"), plugin.NewLoader("x"), nil)
	require.NoError(t, err, "a not-yet-created validators dir is not an error")
	require.NoError(t, w.Close())
}
