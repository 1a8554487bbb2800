// Package sentinel manages the BR2_EXTERNAL one-shot lock file: removed at
// the start of a run, atomically created the first time a priority-1 job
// runs (or whenever it's found missing), and removed again once the run
// finishes.
package sentinel

import (
	"os"
	"path/filepath"
)

// Coordinator owns the lifecycle of the sentinel file.
type Coordinator struct {
	path string
}

// New returns a Coordinator for the sentinel file named name inside dir.
func New(dir, name string) *Coordinator {
	return &Coordinator{path: filepath.Join(dir, name)}
}

// Reset removes any sentinel left over from a previous run. Missing is not
// an error.
func (c *Coordinator) Reset() error {
	err := os.Remove(c.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// EnsureCreated atomically creates the sentinel file if it does not already
// exist. Unlike a check-then-create sequence, O_EXCL makes this race-free
// under concurrent callers; "already exists" is not an error here.
func (c *Coordinator) EnsureCreated() error {
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	return f.Close()
}

// ShouldUpdate reports whether a job at the given priority should attempt to
// (re)create the sentinel: any priority-1 job always does, and any job does
// if the sentinel is currently missing.
func (c *Coordinator) ShouldUpdate(priority int) bool {
	if priority == 1 {
		return true
	}
	_, err := os.Stat(c.path)
	return os.IsNotExist(err)
}

// Remove deletes the sentinel file at the end of a run. Missing is not an
// error.
func (c *Coordinator) Remove() error {
	return c.Reset()
}
