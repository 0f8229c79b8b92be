package gdsync

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workdir is the scratch space for in-flight assets. Each asset in a run is
// downloaded into its own scope directory beneath the root; scopes are
// removed as soon as their asset settles, and any scope left behind by an
// abnormal termination is purged at the start of the next run.
type Workdir struct {
	root string
}

// NewWorkdir returns a Workdir rooted at root, creating the directory if
// needed.
func NewWorkdir(root string) (*Workdir, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	return &Workdir{root: root}, nil
}

// Root returns the workdir root path.
func (w *Workdir) Root() string { return w.root }

// Purge removes every scope directory currently under the root. Call it
// before a run starts, never during one.
func (w *Workdir) Purge() error {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("reading work dir: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(w.root, entry.Name())); err != nil {
			return fmt.Errorf("removing stale scope %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// NewScope creates a fresh scratch directory named id.
func (w *Workdir) NewScope(id string) (*Scope, error) {
	dir := filepath.Join(w.root, id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating scope %s: %w", id, err)
	}
	return &Scope{dir: dir}, nil
}

// Scope is one asset's private scratch directory.
type Scope struct {
	dir string
}

// Path returns the absolute path for name inside the scope.
func (s *Scope) Path(name string) string { return filepath.Join(s.dir, name) }

// Remove deletes the scope and everything in it.
func (s *Scope) Remove() error { return os.RemoveAll(s.dir) }
