package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"
)

// FileName is the plugin file looked up inside a flow's directory.
const FileName = "plugin.yaml"

// Loader resolves flow plugins from disk.
//
// Compiled programs are cached per flow id, keyed by the plugin file's
// modification time: every Load re-stats the file and rebuilds the plugin
// when it changed, so the cache never serves stale bindings.
type Loader struct {
	flowsDir string

	mu    sync.Mutex
	cache map[string]loaded
}

type loaded struct {
	modTime time.Time
	size    int64
	plugin  Plugin
}

// NewLoader creates a Loader over the given validators root directory.
func NewLoader(root string) *Loader {
	return &Loader{
		flowsDir: filepath.Join(root, "flows"),
		cache:    make(map[string]loaded),
	}
}

// Path returns the plugin file path for a flow, whether or not it exists.
func (l *Loader) Path(flowID string) string {
	return filepath.Join(l.flowsDir, flowID, FileName)
}

// Load returns the plugin for flowID, or (nil, nil) if the flow has none.
// A plugin file that cannot be parsed or compiled yields an error; the
// engine treats that as an internal fault, not a missing plugin.
func (l *Loader) Load(flowID string) (Plugin, error) {
	path := l.Path(flowID)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		l.Invalidate(flowID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", flowID, err)
	}

	l.mu.Lock()
	entry, ok := l.cache[flowID]
	l.mu.Unlock()
	if ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.plugin, nil
	}

	p, err := l.build(flowID, path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[flowID] = loaded{modTime: info.ModTime(), size: info.Size(), plugin: p}
	l.mu.Unlock()
	return p, nil
}

// Invalidate drops the cached plugin for flowID. Called by the directory
// watcher; the mtime check in Load remains the correctness backstop.
func (l *Loader) Invalidate(flowID string) {
	l.mu.Lock()
	delete(l.cache, flowID)
	l.mu.Unlock()
}

// fileConfig is the on-disk shape of a plugin file.
type fileConfig struct {
	SelectSchema string       `yaml:"select_schema"`
	Rules        []ruleConfig `yaml:"rules"`
}

type ruleConfig struct {
	Expr    string `yaml:"expr"`
	Message string `yaml:"message"`
}

// build parses and compiles the plugin file, returning a value shaped to
// its capability set.
func (l *Loader) build(flowID, path string) (Plugin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", flowID, err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("plugin %s: parse: %w", flowID, err)
	}
	if cfg.SelectSchema == "" && len(cfg.Rules) == 0 {
		return nil, fmt.Errorf("plugin %s: declares neither select_schema nor rules", flowID)
	}

	p := &exprPlugin{flowID: flowID}

	if cfg.SelectSchema != "" {
		// Compiled without a typed env: the payload shape is unknown until
		// runtime.
		prog, err := expr.Compile(cfg.SelectSchema)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: select_schema: %w", flowID, err)
		}
		p.selector = prog
	}

	for i, rc := range cfg.Rules {
		if rc.Expr == "" {
			return nil, fmt.Errorf("plugin %s: rules[%d]: expr is required", flowID, i)
		}
		prog, err := expr.Compile(rc.Expr)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: rules[%d]: %w", flowID, i, err)
		}
		msg := rc.Message
		if msg == "" {
			msg = fmt.Sprintf("custom rule failed: %s", rc.Expr)
		}
		p.rules = append(p.rules, compiledRule{program: prog, message: msg})
	}

	// Expose only the declared capabilities, so callers can type-assert to
	// discover what the plugin supports.
	switch {
	case p.selector != nil && len(p.rules) > 0:
		return p, nil
	case p.selector != nil:
		return selectorOnly{p}, nil
	default:
		return validatorOnly{p}, nil
	}
}

type compiledRule struct {
	program *vm.Program
	message string
}
