// Package progress renders the per-package completion line and, in verbose
// mode, a per-priority-level stage tracker.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Tracker reports build progress to an io.Writer as packages complete.
type Tracker struct {
	mu      sync.Mutex
	out     io.Writer
	total   int
	done    int
	verbose bool
	levels  map[int]*levelProgress
}

type levelProgress struct {
	total     int
	completed int
}

// New creates a Tracker for a run with the given total package count.
func New(out io.Writer, total int, verbose bool) *Tracker {
	return &Tracker{out: out, total: total, verbose: verbose, levels: make(map[int]*levelProgress)}
}

// RegisterLevel records how many packages sit at a given priority level, for
// the verbose per-level display.
func (t *Tracker) RegisterLevel(priority int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	lp, ok := t.levels[priority]
	if !ok {
		lp = &levelProgress{}
		t.levels[priority] = lp
	}
	lp.total++
}

// PackageBuilt reports that a package finished building (successfully or
// not) after the given duration, and prints the standard progress line:
// "(done/total %) name built in Xs".
func (t *Tracker) PackageBuilt(name string, priority int, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.done++
	if lp, ok := t.levels[priority]; ok {
		lp.completed++
	}

	pct := 0.0
	if t.total > 0 {
		pct = float64(t.done) / float64(t.total) * 100.0
	}

	if t.out != nil {
		fmt.Fprintf(t.out, "(%d/%d %.1f%%) %s built in %.1fs\n", t.done, t.total, pct, name, elapsed.Seconds())
		if t.verbose {
			if lp, ok := t.levels[priority]; ok {
				fmt.Fprintf(t.out, "  level %d: %d/%d complete\n", priority, lp.completed, lp.total)
			}
		}
	}
}

// Done returns the number of packages reported complete so far.
func (t *Tracker) Done() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}
