package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Ext is the file extension for schema files. The contents are CUE source.
const Ext = ".schema"

// CommonPrefix marks a reference into the shared schema namespace.
const CommonPrefix = "@common/"

// Store compiles and caches schema files.
//
// The compile cache is guarded by a mutex so the fsnotify watcher can
// invalidate entries from its own goroutine; all other access is
// serialized by the service layer.
type Store struct {
	cuectx *cue.Context

	root      string // validators root
	flowsDir  string // <root>/flows
	commonDir string // <root>/common/schemas

	mu    sync.Mutex
	cache map[string]cacheEntry // absolute path -> compiled schema
}

type cacheEntry struct {
	modTime time.Time
	size    int64
	value   cue.Value
}

// NewStore creates a Store over the given validators root directory. The
// directory does not need to exist yet; missing directories enumerate as
// empty.
func NewStore(root string) *Store {
	return &Store{
		cuectx:    cuecontext.New(),
		root:      root,
		flowsDir:  filepath.Join(root, "flows"),
		commonDir: filepath.Join(root, "common", "schemas"),
		cache:     make(map[string]cacheEntry),
	}
}

// Root returns the validators root directory.
func (s *Store) Root() string { return s.root }

// FlowDir returns the directory holding a flow's schemas and plugin.
func (s *Store) FlowDir(flowID string) string {
	return filepath.Join(s.flowsDir, flowID)
}

// CommonDir returns the shared schema directory.
func (s *Store) CommonDir() string { return s.commonDir }

// ListFlowSchemas returns the absolute paths of all schema files in the
// flow's directory, sorted lexicographically by filename. A missing
// directory yields an empty list.
func (s *Store) ListFlowSchemas(flowID string) []string {
	return listSchemas(s.FlowDir(flowID))
}

// ListCommonSchemas returns the absolute paths of all shared schema files,
// sorted lexicographically by filename.
func (s *Store) ListCommonSchemas() []string {
	return listSchemas(s.commonDir)
}

func listSchemas(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out
}

// Resolve maps a schema reference to an absolute path, reporting whether
// the referenced file exists.
//
// Resolution order: absolute paths are used as-is; "@common/<name>"
// resolves under the shared directory; anything else resolves under the
// flow's directory, falling back to the shared directory. References may
// omit the ".schema" extension.
func (s *Store) Resolve(ref, flowID string) (string, bool) {
	if ref == "" {
		return "", false
	}
	if filepath.IsAbs(ref) {
		return ref, fileExists(ref)
	}
	if name, ok := strings.CutPrefix(ref, CommonPrefix); ok {
		p := filepath.Join(s.commonDir, withExt(name))
		return p, fileExists(p)
	}
	p := filepath.Join(s.FlowDir(flowID), withExt(ref))
	if fileExists(p) {
		return p, true
	}
	p = filepath.Join(s.commonDir, withExt(ref))
	return p, fileExists(p)
}

// DiscriminantSchema resolves "<name>.schema" for a payload discriminant
// value, trying the flow directory first and then the shared directory.
func (s *Store) DiscriminantSchema(flowID, name string) (string, bool) {
	p := filepath.Join(s.FlowDir(flowID), name+Ext)
	if fileExists(p) {
		return p, true
	}
	p = filepath.Join(s.commonDir, name+Ext)
	return p, fileExists(p)
}

// Compile returns the compiled CUE value for the schema file at path,
// recompiling if the file changed since it was cached.
func (s *Store) Compile(path string) (cue.Value, error) {
	info, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("schema %s: %w", filepath.Base(path), err)
	}

	s.mu.Lock()
	entry, ok := s.cache[path]
	s.mu.Unlock()
	if ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.value, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("schema %s: %w", filepath.Base(path), err)
	}
	v := s.cuectx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("schema %s: compile: %w", filepath.Base(path), err)
	}

	s.mu.Lock()
	s.cache[path] = cacheEntry{modTime: info.ModTime(), size: info.Size(), value: v}
	s.mu.Unlock()
	return v, nil
}

// Invalidate drops the cache entry for path, forcing a recompile on next
// use. Called by the directory watcher; mtime checks in Compile remain the
// correctness backstop when no watcher runs.
func (s *Store) Invalidate(path string) {
	s.mu.Lock()
	delete(s.cache, path)
	s.mu.Unlock()
}

func withExt(name string) string {
	if strings.HasSuffix(name, Ext) {
		return name
	}
	return name + Ext
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
