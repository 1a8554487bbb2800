// Package edgefile parses the package -> parent-package edge file and
// populates a graph.Graph. One line per package, fields separated by ':',
// comment lines starting with '#' and blank lines are skipped.
package edgefile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paguilar/br-pbuilder/internal/graph"
)

// Parse reads the edge file at path and returns a fully-linked graph: every
// node created, every parent edge wired, and every parentless node attached
// to the synthetic root.
func Parse(path string) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("edgefile: open %s: %w", path, err)
	}
	defer f.Close()
	return parseReader(f)
}

func parseReader(r io.Reader) (*graph.Graph, error) {
	g := graph.New()
	// pending holds parent-name lists keyed by child name until every node
	// exists, so a line can reference a parent declared later in the file.
	pending := make(map[string][]string)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.SplitN(line, ":", 3)
		name := strings.TrimSpace(fields[0])
		if name == "" {
			return nil, fmt.Errorf("edgefile: line %d: missing package name", lineNo)
		}

		// A repeated package name keeps its first declaration; the later
		// line, parents included, is ignored.
		if _, dup := g.Nodes[name]; dup {
			continue
		}

		var version string
		if len(fields) > 1 {
			version = strings.TrimSpace(fields[1])
		}

		node := g.GetOrCreate(name, version)

		if len(fields) > 2 {
			for _, p := range strings.Fields(fields[2]) {
				pending[node.Name] = append(pending[node.Name], p)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("edgefile: read: %w", err)
	}

	for childName, parentNames := range pending {
		child := g.Nodes[childName]
		for _, parentName := range parentNames {
			parent, ok := g.Nodes[parentName]
			if !ok {
				continue
			}
			graph.Link(parent, child)
		}
	}

	g.AttachOrphansToRoot()

	return g, nil
}
