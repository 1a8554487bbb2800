// Package report persists the result of a single run as a machine-readable
// summary, in addition to the progress lines printed as the run proceeds.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/paguilar/br-pbuilder/internal/berrors"
	"github.com/paguilar/br-pbuilder/internal/graph"
)

// NodeElapsed records the wall-clock time one package took, or zero if it
// was skipped via its build stamp.
type NodeElapsed struct {
	Name    string  `json:"name"`
	Seconds float64 `json:"seconds"`
	Skipped bool    `json:"skipped"`
}

// Summary is the full accounting of one run, persisted as summary.json and
// printed to stdout when the run finishes.
type Summary struct {
	TotalSeconds float64       `json:"total_seconds"`
	BuiltCount   int           `json:"built_count"`
	SkippedCount int           `json:"skipped_count"`
	Failed       []string      `json:"failed"`
	Nodes        []NodeElapsed `json:"nodes"`
}

// Build assembles a Summary from the final state of g, covering every node
// except the synthetic root.
func Build(g *graph.Graph, totalElapsed time.Duration, failed []string) Summary {
	s := Summary{
		TotalSeconds: totalElapsed.Seconds(),
		Failed:       failed,
	}

	for _, n := range g.InOrder() {
		if n == g.Root {
			continue
		}
		skipped := n.ElapsedSec == 0 && !n.BuildFailed
		if skipped {
			s.SkippedCount++
		} else {
			s.BuiltCount++
		}
		s.Nodes = append(s.Nodes, NodeElapsed{
			Name:    n.Name,
			Seconds: n.ElapsedSec,
			Skipped: skipped,
		})
	}

	return s
}

// WriteJSON writes s to <configDir>/pbuilder_logs/summary.json.
func WriteJSON(configDir string, s Summary) error {
	dir := filepath.Join(configDir, "pbuilder_logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return berrors.New(berrors.KindLogIO, "", "failed to create summary directory", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return berrors.New(berrors.KindLogIO, "", "failed to marshal summary", err)
	}

	path := filepath.Join(dir, "summary.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return berrors.New(berrors.KindLogIO, "", "failed to write summary", err)
	}
	return nil
}
