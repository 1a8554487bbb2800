package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestPackageBuiltPrintsProgressLine(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, 2, false)
	tr.RegisterLevel(1)
	tr.RegisterLevel(1)

	tr.PackageBuilt("foo", 1, 2*time.Second)

	got := buf.String()
	if !strings.Contains(got, "(1/2 50.0%) foo built in 2.0s") {
		t.Fatalf("unexpected progress line: %q", got)
	}
}

func TestDoneTracksCompletionCount(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, 3, false)
	tr.PackageBuilt("a", 1, 0)
	tr.PackageBuilt("b", 1, 0)
	if tr.Done() != 2 {
		t.Fatalf("expected Done() 2, got %d", tr.Done())
	}
}

func TestVerboseModePrintsPerLevelLine(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, 1, true)
	tr.RegisterLevel(2)
	tr.PackageBuilt("pkg", 2, time.Second)

	got := buf.String()
	if !strings.Contains(got, "level 2: 1/1 complete") {
		t.Fatalf("expected verbose per-level line, got %q", got)
	}
}

func TestNonVerboseModeOmitsPerLevelLine(t *testing.T) {
	var buf bytes.Buffer
	tr := New(&buf, 1, false)
	tr.RegisterLevel(2)
	tr.PackageBuilt("pkg", 2, time.Second)

	if strings.Contains(buf.String(), "level 2") {
		t.Fatalf("expected no per-level line in non-verbose mode, got %q", buf.String())
	}
}
