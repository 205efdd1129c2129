// Package workspace manages the per-run directory that is bind-mounted
// into the execution environment: the user script, the generated
// entrypoint wrapper and the output/ directory the wrapper tees into.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrWorkspace wraps local filesystem failures during preparation so the
// orchestrator can distinguish them from environment failures. A
// preparation failure aborts the run before any environment exists.
var ErrWorkspace = errors.New("workspace error")

// Workspace describes a prepared run directory.
type Workspace struct {
	RunID  string
	Path   string // host path of the run directory
	Target Target
}

// ScriptPath returns the host path of the materialized user script.
func (w *Workspace) ScriptPath() string {
	return filepath.Join(w.Path, w.Target.ScriptName)
}

// OutputDir returns the host path of the captured-output directory.
func (w *Workspace) OutputDir() string {
	return filepath.Join(w.Path, "output")
}

// DurableLogPath returns the host path of the entrypoint's teed log, or
// "" for targets without an entrypoint wrapper.
func (w *Workspace) DurableLogPath() string {
	if w.Target.Entrypoint == "" {
		return ""
	}
	return filepath.Join(w.OutputDir(), LogName)
}

// Manager creates and tears down run workspaces under a single root.
type Manager struct {
	root string
}

// NewManager returns a Manager rooted at dir. The root itself is created
// lazily on the first Prepare.
func NewManager(dir string) *Manager {
	return &Manager{root: dir}
}

// Root returns the workspace root directory.
func (m *Manager) Root() string {
	return m.root
}

// Prepare creates a fresh workspace for the run: the directory itself,
// an output/ subdirectory, the script with execute permission, and (for
// posix targets) the entrypoint wrapper.
func (m *Manager) Prepare(runID, scriptContent, scriptExtension string, windows bool) (*Workspace, error) {
	target := ResolveTarget(windows, scriptExtension)

	dir := filepath.Join(m.root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating run directory: %v", ErrWorkspace, err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "output"), 0o777); err != nil {
		return nil, fmt.Errorf("%w: creating output directory: %v", ErrWorkspace, err)
	}

	ws := &Workspace{RunID: runID, Path: dir, Target: target}

	if err := os.WriteFile(ws.ScriptPath(), []byte(scriptContent), 0o755); err != nil {
		return nil, fmt.Errorf("%w: writing script: %v", ErrWorkspace, err)
	}

	if target.Entrypoint != "" {
		wrapper := renderEntrypoint(target)
		path := filepath.Join(dir, target.Entrypoint)
		if err := os.WriteFile(path, []byte(wrapper), 0o755); err != nil {
			return nil, fmt.Errorf("%w: writing entrypoint: %v", ErrWorkspace, err)
		}
	}

	return ws, nil
}

// Teardown removes a run's workspace directory. It is idempotent and
// best-effort: a missing directory is not an error, and the run outcome
// must never depend on cleanup succeeding.
func (m *Manager) Teardown(runID string) error {
	dir := filepath.Join(m.root, runID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: removing %s: %v", ErrWorkspace, dir, err)
	}
	return nil
}
