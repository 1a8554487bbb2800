// Package scheduler drives the main build loop: once a second it scans the
// graph in priority order, dispatches every READY node it has spare worker
// capacity for, and lets in-flight jobs finish even after a failure halts
// new dispatch.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paguilar/br-pbuilder/internal/berrors"
	"github.com/paguilar/br-pbuilder/internal/config"
	"github.com/paguilar/br-pbuilder/internal/executor"
	"github.com/paguilar/br-pbuilder/internal/graph"
	"github.com/paguilar/br-pbuilder/internal/obslog"
	"github.com/paguilar/br-pbuilder/internal/pool"
	"github.com/paguilar/br-pbuilder/internal/priority"
	"github.com/paguilar/br-pbuilder/internal/progress"
	"github.com/paguilar/br-pbuilder/internal/sentinel"
	"github.com/paguilar/br-pbuilder/internal/stamp"
)

// pollInterval is how often the scheduler loop re-scans the graph.
const pollInterval = 1 * time.Second

// Scheduler drives one full build run over a graph.
type Scheduler struct {
	cfg     *config.Config
	g       *graph.Graph
	pool    *pool.Pool
	coord   *sentinel.Coordinator
	log     *obslog.Logger
	tracker *progress.Tracker
	stdout  io.Writer

	mu         sync.Mutex
	failed     []string
	globalErr  atomic.Bool
	dispatched map[*graph.Node]bool
}

// New creates a Scheduler for a single run.
func New(cfg *config.Config, g *graph.Graph, log *obslog.Logger, stdout io.Writer) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		g:          g,
		pool:       pool.New(cfg.CPUNum),
		coord:      sentinel.New(cfg.ConfigDir, cfg.SentinelName),
		log:        log,
		tracker:    progress.New(stdout, g.Len(), cfg.DebugLevel > 0),
		stdout:     stdout,
		dispatched: make(map[*graph.Node]bool),
	}
}

// Run executes the full build: resets the sentinel, polls until every node
// is DONE or new dispatch halts on error and every in-flight job has
// drained, then removes the sentinel again. It returns the list of packages
// that failed to build, and an error if the run as a whole failed.
func (s *Scheduler) Run(ctx context.Context) ([]string, error) {
	if err := s.coord.Reset(); err != nil {
		return nil, berrors.New(berrors.KindLogIO, "", "failed to reset sentinel", err)
	}

	ordered := priority.Reorder(s.g)
	for _, n := range ordered {
		s.tracker.RegisterLevel(n.Priority)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		allDone := s.tick(ctx, ordered)
		if allDone {
			break
		}
		if s.globalErr.Load() && s.pool.ActiveCount() == 0 {
			break
		}
		select {
		case <-ctx.Done():
			s.pool.Drain()
			if err := s.coord.Remove(); err != nil {
				s.log.Warn("scheduler", fmt.Sprintf("failed to remove sentinel: %v", err))
			}
			return s.failedPackages(), ctx.Err()
		case <-ticker.C:
		}
	}

	s.pool.Drain()

	if err := s.coord.Remove(); err != nil {
		s.log.Warn("scheduler", fmt.Sprintf("failed to remove sentinel: %v", err))
	}

	failed := s.failedPackages()
	if len(failed) > 0 {
		return failed, berrors.New(berrors.KindBuildExit, "", "one or more packages failed to build", nil)
	}
	return failed, nil
}

// tick scans the graph once in priority order, dispatching every READY node
// that isn't already dispatched and for which the pool has spare capacity.
// It returns true once every node has reached DONE.
func (s *Scheduler) tick(ctx context.Context, ordered []*graph.Node) bool {
	allDone := true

	for _, n := range ordered {
		status := s.g.GetStatus(n)
		if status == graph.StatusDone {
			continue
		}
		allDone = false

		if status != graph.StatusReady {
			continue
		}
		if s.isDispatched(n) {
			continue
		}
		if !s.g.ParentsReady(n) {
			continue
		}

		if stamp.AlreadyBuilt(s.cfg.BuildDir, n.Name, n.Version) {
			s.markDispatched(n)
			n.ElapsedSec = 0
			s.g.SetStatus(n, graph.StatusDone)
			s.tracker.PackageBuilt(n.Name, n.Priority, 0)
			continue
		}

		if s.globalErr.Load() {
			continue
		}
		if !s.pool.TryAcquire() {
			break
		}

		s.markDispatched(n)
		s.dispatch(ctx, n)
	}

	return allDone
}

func (s *Scheduler) isDispatched(n *graph.Node) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatched[n]
}

func (s *Scheduler) markDispatched(n *graph.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatched[n] = true
}

func (s *Scheduler) dispatch(ctx context.Context, n *graph.Node) {
	s.g.SetStatus(n, graph.StatusProcessing)

	submitErr := s.pool.Submit(ctx, func() {
		s.build(ctx, n)
	})
	if submitErr != nil {
		s.log.Error("scheduler", fmt.Sprintf("failed to submit %s", n.Name), submitErr)
		s.recordFailure(n)
	}
}

func (s *Scheduler) build(ctx context.Context, n *graph.Node) {
	res := executor.Run(ctx, executor.Job{
		Name:        n.Name,
		Priority:    n.Priority,
		BuildDir:    s.cfg.BuildDir,
		BR2External: s.cfg.BR2External,
		LogDir:      s.cfg.LogDir,
		Retry:       s.cfg.RetryNoRuleToMake,
	}, s.coord, s.stdout)

	n.ElapsedSec = res.Elapsed.Seconds()

	if res.Err != nil {
		n.BuildFailed = true
		s.log.Error("executor", fmt.Sprintf("package %s failed", n.Name), res.Err)
		s.recordFailure(n)
	} else {
		s.tracker.PackageBuilt(n.Name, n.Priority, res.Elapsed)
	}

	s.g.SetStatus(n, graph.StatusDone)
}

func (s *Scheduler) recordFailure(n *graph.Node) {
	s.mu.Lock()
	s.failed = append(s.failed, n.Name)
	s.mu.Unlock()
	s.globalErr.Store(true)
}

func (s *Scheduler) failedPackages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failed))
	copy(out, s.failed)
	return out
}
