// Package priority assigns build priorities to every node in a dependency
// graph via a depth-first relaxation walk from the synthetic root, then
// applies the designated-package tie-break.
package priority

import (
	"sort"

	"github.com/paguilar/br-pbuilder/internal/graph"
)

// DefaultDesignatedPackage is the package name whose priority collisions
// force every other node at the same level to shift up by one. Historically
// this was "uclibc" -- the C library every other package transitively
// depends on, so giving it an exclusive priority level keeps it from being
// scheduled alongside unrelated packages that happen to land on the same
// level.
const DefaultDesignatedPackage = "uclibc"

// Assign walks the graph from its root, relaxing each child's priority to
// max(current, parent.Priority+1) and marking it READY once every one of its
// parents has already been visited. The walk revisits children through every
// parent, so later edges can raise a priority set by an earlier one --
// priorities only grow and status only advances, never the reverse.
func Assign(g *graph.Graph) {
	visit(g.Root)
}

func visit(n *graph.Node) {
	for _, child := range n.Children {
		relax(n, child)
	}
	for _, child := range n.Children {
		visit(child)
	}
}

// relax raises child's priority if parent's priority is greater than or
// equal to it, and flips child to READY once all of its own parents are
// already READY or DONE.
func relax(parent, child *graph.Node) {
	if parent.Priority >= child.Priority {
		child.Priority = parent.Priority + 1
	}
	if child.Status == graph.StatusPending && allParentsReady(child) {
		child.Status = graph.StatusReady
	}
}

func allParentsReady(n *graph.Node) bool {
	for _, p := range n.Parents {
		if p.Status < graph.StatusReady {
			return false
		}
	}
	return true
}

// ApplyDesignatedTieBreak finds the designated package's priority level and,
// if any other node shares that exact level, increments every other node at
// or above that level by one. The designated package itself is left in
// place; only the others move, clearing a priority level just for it.
func ApplyDesignatedTieBreak(g *graph.Graph, designated string) {
	target, ok := g.Nodes[designated]
	if !ok {
		return
	}
	level := target.Priority

	collision := false
	for _, n := range g.InOrder() {
		if n.Name != designated && n.Priority == level {
			collision = true
			break
		}
	}
	if !collision {
		return
	}

	for _, n := range g.InOrder() {
		if n.Name == designated {
			continue
		}
		if n.Priority >= level {
			n.Priority++
		}
	}
}

// Reorder sorts the graph's node list by ascending priority using a stable
// sort, so nodes at the same priority keep the relative order they were
// discovered in.
func Reorder(g *graph.Graph) []*graph.Node {
	nodes := g.InOrder()
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Priority < nodes[j].Priority
	})
	return nodes
}
