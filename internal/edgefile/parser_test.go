package edgefile

import (
	"strings"
	"testing"
)

func TestParseBasicChain(t *testing.T) {
	src := `# comment
A:1.0:
B:1.0:A
C:1.0:B
`
	g, err := parseReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := g.Nodes["A"]
	b := g.Nodes["B"]
	c := g.Nodes["C"]
	if a == nil || b == nil || c == nil {
		t.Fatal("expected all three nodes to exist")
	}
	if len(b.Parents) != 1 || b.Parents[0] != a {
		t.Fatal("expected B's parent to be A")
	}
	if len(c.Parents) != 1 || c.Parents[0] != b {
		t.Fatal("expected C's parent to be B")
	}
	if len(a.Parents) != 1 || a.Parents[0] != g.Root {
		t.Fatal("expected A to be attached to the synthetic root")
	}
}

func TestParseMultipleWhitespaceSeparatedParents(t *testing.T) {
	src := `A:1.0:
B:1.0:
C:1.0:A   B
`
	g, err := parseReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := g.Nodes["C"]
	if len(c.Parents) != 2 {
		t.Fatalf("expected C to have 2 parents, got %d", len(c.Parents))
	}
}

func TestParseForwardParentReference(t *testing.T) {
	src := `B:1.0:A
A:1.0:
`
	g, err := parseReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := g.Nodes["B"]
	a := g.Nodes["A"]
	if len(b.Parents) != 1 || b.Parents[0] != a {
		t.Fatal("expected B's forward parent reference to A to resolve")
	}
}

func TestParseEmptyVersionAndParents(t *testing.T) {
	src := "A::\n"
	g, err := parseReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := g.Nodes["A"]
	if a.Version != "" {
		t.Fatalf("expected empty version, got %q", a.Version)
	}
	if len(a.Parents) != 1 || a.Parents[0] != g.Root {
		t.Fatal("expected parentless node attached to root")
	}
}

func TestParseMissingNameFails(t *testing.T) {
	src := ":1.0:\n"
	if _, err := parseReader(strings.NewReader(src)); err == nil {
		t.Fatal("expected error for missing package name")
	}
}

func TestParseDropsReferenceToUndeclaredParent(t *testing.T) {
	src := "B:1.0:ghost\n"
	g, err := parseReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("expected only the declared node to exist, got %d nodes", g.Len())
	}
	if _, ok := g.Nodes["ghost"]; ok {
		t.Fatal("expected undeclared parent name to not create a phantom node")
	}
	b := g.Nodes["B"]
	if len(b.Parents) != 1 || b.Parents[0] != g.Root {
		t.Fatal("expected B, with its only parent reference unresolved, to attach to the synthetic root")
	}
}

func TestParseSkipsCommentsAndBlankLines(t *testing.T) {
	src := "\n# nothing here\n\nA:1.0:\n"
	g, err := parseReader(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Len() != 1 {
		t.Fatalf("expected exactly one real node, got %d", g.Len())
	}
}
