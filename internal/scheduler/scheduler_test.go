package scheduler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paguilar/br-pbuilder/internal/config"
	"github.com/paguilar/br-pbuilder/internal/graph"
	"github.com/paguilar/br-pbuilder/internal/obslog"
	"github.com/paguilar/br-pbuilder/internal/priority"
	"github.com/paguilar/br-pbuilder/internal/stamp"
)

func fakeMake(t *testing.T, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "make")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func testConfig(t *testing.T, cpuNum int) *config.Config {
	t.Helper()
	configDir := t.TempDir()
	return &config.Config{
		BuildDir:          t.TempDir(),
		ConfigDir:         configDir,
		CPUNum:            cpuNum,
		SentinelName:      "lock",
		DesignatedPackage: "uclibc",
		FinalizeTargets:   config.DefaultFinalizeTargets,
		LogDir:            filepath.Join(configDir, "pbuilder_logs"),
	}
}

func TestRunBuildsEverySuccessfulNode(t *testing.T) {
	fakeMake(t, "#!/bin/sh\nexit 0\n")

	g := graph.New()
	a := g.GetOrCreate("A", "")
	b := g.GetOrCreate("B", "")
	graph.Link(a, b)
	g.AttachOrphansToRoot()
	priority.Assign(g)

	cfg := testConfig(t, 2)
	log := obslog.New("test", 0)
	var stdout bytes.Buffer

	sched := New(cfg, g, log, &stdout)
	failed, err := sched.Run(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("expected no failures, got %v", failed)
	}
	if g.GetStatus(a) != graph.StatusDone || g.GetStatus(b) != graph.StatusDone {
		t.Fatalf("expected both nodes DONE, got A=%s B=%s", g.GetStatus(a), g.GetStatus(b))
	}
}

func TestRunDoesNotDispatchChildBeforeParentActuallyDone(t *testing.T) {
	// "A" blocks until a marker file is removed (simulating a slow build);
	// "B" depends on "A" and records whether A's stamp existed when it ran.
	buildDir := t.TempDir()
	blockFile := filepath.Join(buildDir, "block")
	if err := os.WriteFile(blockFile, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	violationFile := filepath.Join(buildDir, "violation")

	script := "#!/bin/sh\n" +
		"if [ \"$1\" = \"A\" ]; then\n" +
		"  while [ -f \"" + blockFile + "\" ]; do sleep 0.05; done\n" +
		"  mkdir -p \"" + buildDir + "/A\" && touch \"" + buildDir + "/A/.stamp_installed\"\n" +
		"  exit 0\n" +
		"fi\n" +
		"if [ \"$1\" = \"B\" ]; then\n" +
		"  if [ ! -f \"" + buildDir + "/A/.stamp_installed\" ]; then\n" +
		"    touch \"" + violationFile + "\"\n" +
		"  fi\n" +
		"  exit 0\n" +
		"fi\n" +
		"exit 0\n"
	fakeMake(t, script)

	g := graph.New()
	a := g.GetOrCreate("A", "")
	b := g.GetOrCreate("B", "")
	graph.Link(a, b)
	g.AttachOrphansToRoot()
	priority.Assign(g)

	cfg := testConfig(t, 2)
	cfg.BuildDir = buildDir
	log := obslog.New("test", 0)
	var stdout bytes.Buffer

	sched := New(cfg, g, log, &stdout)

	go func() {
		time.Sleep(200 * time.Millisecond)
		os.Remove(blockFile)
	}()

	failed, err := sched.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("expected no failures, got %v", failed)
	}
	if _, err := os.Stat(violationFile); err == nil {
		t.Fatal("B ran before A's stamp was actually present: dependency ordering violated")
	}
}

func TestRunSkipsAlreadyStampedPackage(t *testing.T) {
	fakeMake(t, "#!/bin/sh\necho should-not-run >&2\nexit 1\n")

	g := graph.New()
	pkg := g.GetOrCreate("stamped", "")
	g.AttachOrphansToRoot()
	priority.Assign(g)

	cfg := testConfig(t, 1)
	pkgDir := filepath.Join(cfg.BuildDir, "stamped")
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pkgDir, stamp.FileName), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	log := obslog.New("test", 0)
	var stdout bytes.Buffer
	sched := New(cfg, g, log, &stdout)

	failed, err := sched.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failed) != 0 {
		t.Fatalf("expected no failures, got %v", failed)
	}
	if g.GetStatus(pkg) != graph.StatusDone {
		t.Fatalf("expected stamped node to be marked DONE, got %s", g.GetStatus(pkg))
	}
}

func TestRunHaltsNewDispatchAfterFailureButDrainsInFlight(t *testing.T) {
	fakeMake(t, "#!/bin/sh\nif [ \"$1\" = \"fails\" ]; then exit 1; fi\nexit 0\n")

	g := graph.New()
	fails := g.GetOrCreate("fails", "")
	sibling := g.GetOrCreate("sibling", "")
	dependent := g.GetOrCreate("dependent", "")
	graph.Link(fails, dependent)
	g.AttachOrphansToRoot()
	priority.Assign(g)

	cfg := testConfig(t, 2)
	log := obslog.New("test", 0)
	var stdout bytes.Buffer
	sched := New(cfg, g, log, &stdout)

	failed, err := sched.Run(context.Background())
	if err == nil {
		t.Fatal("expected an error when a node fails")
	}
	if g.GetStatus(dependent) != graph.StatusReady {
		t.Fatalf("expected no dispatch after the failure, but dependent reached %s", g.GetStatus(dependent))
	}
	if len(failed) != 1 || failed[0] != "fails" {
		t.Fatalf("expected exactly [\"fails\"], got %v", failed)
	}
	if g.GetStatus(sibling) != graph.StatusDone {
		t.Fatalf("expected the sibling job to still complete, got %s", g.GetStatus(sibling))
	}
	if g.GetStatus(fails) != graph.StatusDone {
		t.Fatalf("expected the failed node to still reach DONE, got %s", g.GetStatus(fails))
	}
	if !fails.BuildFailed {
		t.Fatal("expected the failed node to be marked BuildFailed")
	}
}
