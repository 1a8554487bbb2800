// Package executor runs the single job the scheduler ever submits: "make
// <package>" for one node, with its combined stdout/stderr tee'd to a
// per-package log file and echoed to the driver's own stdout whenever a line
// looks like a build-stage banner.
package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/paguilar/br-pbuilder/internal/berrors"
	"github.com/paguilar/br-pbuilder/internal/sentinel"
)

// bannerPrefix marks the reverse-video stage header lines buildroot itself
// emits (">>> package-version stage"); these are echoed to stdout in
// addition to being written to the per-package log.
const bannerPrefix = "\x1b[7m>>>"

// Job describes one package build for Run to execute.
type Job struct {
	Name        string
	Priority    int
	BuildDir    string
	BR2External string
	LogDir      string
	Retry       bool
}

// Result is what Run reports back to the scheduler.
type Result struct {
	ExitCode int
	Err      error
	Elapsed  time.Duration
}

// Run spawns "make <name>" (optionally with BR2_EXTERNAL set), streams its
// combined output to <LogDir>/<name>.log line by line, echoes banner lines to
// stdout, and updates the sentinel file per ShouldUpdate/EnsureCreated. It
// optionally retries once on a "no rule to make target" failure, matching the
// historical behavior of a stale generated Makefile fragment.
func Run(ctx context.Context, job Job, coord *sentinel.Coordinator, stdout io.Writer) Result {
	start := time.Now()

	exitCode, noRule, err := runOnce(ctx, job, stdout)
	if err != nil && job.Retry && noRule {
		exitCode, _, err = runOnce(ctx, job, stdout)
	}

	if coord.ShouldUpdate(job.Priority) {
		if sErr := coord.EnsureCreated(); sErr != nil && err == nil {
			err = berrors.New(berrors.KindLogIO, job.Name, "failed to create sentinel", sErr)
		}
	}

	return Result{ExitCode: exitCode, Err: err, Elapsed: time.Since(start)}
}

func runOnce(ctx context.Context, job Job, stdout io.Writer) (int, bool, error) {
	logFile, closeLog := openLog(job, stdout)
	defer closeLog()

	cmd := exec.CommandContext(ctx, "make", job.Name)
	cmd.Env = os.Environ()
	if job.BR2External != "" {
		cmd.Env = append(cmd.Env, "BR2_EXTERNAL="+job.BR2External)
	}

	pipeR, pipeW := io.Pipe()
	cmd.Stdout = pipeW
	cmd.Stderr = pipeW

	if err := cmd.Start(); err != nil {
		pipeW.Close()
		return -1, false, berrors.New(berrors.KindSpawn, job.Name, fmt.Sprintf("failed to start make %s", job.Name), err)
	}

	noRule := false
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pipeR)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			fmt.Fprintln(logFile, line)
			if strings.Contains(line, "No rule to make target") {
				noRule = true
			}
			if strings.HasPrefix(line, bannerPrefix) {
				fmt.Fprintln(stdout, line)
			}
		}
	}()

	waitErr := cmd.Wait()
	pipeW.Close()
	<-done

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
		return exitCode, noRule, berrors.New(berrors.KindBuildExit, job.Name, waitErr.Error(), waitErr)
	}

	return 0, false, nil
}

// openLog opens the per-package log file, creating LogDir if needed. A
// failure here is non-fatal: it warns to stdout and returns io.Discard so
// the build proceeds without a log for this package.
func openLog(job Job, stdout io.Writer) (io.Writer, func()) {
	if err := os.MkdirAll(job.LogDir, 0o700); err != nil {
		fmt.Fprintf(stdout, "warning: %s\n", berrors.New(berrors.KindLogIO, job.Name, "failed to create log directory", err))
		return io.Discard, func() {}
	}

	logPath := filepath.Join(job.LogDir, job.Name+".log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(stdout, "warning: %s\n", berrors.New(berrors.KindLogIO, job.Name, "failed to open log file", err))
		return io.Discard, func() {}
	}
	return f, func() { f.Close() }
}
