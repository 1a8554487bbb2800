// Package finalizer runs the serial tail of finalization targets after every
// package node has finished building.
package finalizer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/paguilar/br-pbuilder/internal/berrors"
)

// bannerPrefix matches the one in internal/executor: only stage-header lines
// are echoed to stdout, everything else goes to the log file only.
const bannerPrefix = "\x1b[7m>>>"

// Run executes each target in targets, in order, stopping at the first
// failure. Each target is built the same way a package node is: "make
// <target>" with BR2_EXTERNAL set if provided, output tee'd to its own log
// file under logDir.
func Run(ctx context.Context, targets []string, br2External, logDir string, stdout io.Writer) error {
	for _, target := range targets {
		if err := runTarget(ctx, target, br2External, logDir, stdout); err != nil {
			return berrors.New(berrors.KindFinalizerFailed, target, "finalize target failed", err)
		}
	}
	return nil
}

func runTarget(ctx context.Context, target, br2External, logDir string, stdout io.Writer) error {
	logFile, closeLog := openLog(target, logDir, stdout)
	defer closeLog()

	cmd := exec.CommandContext(ctx, "make", target)
	cmd.Env = os.Environ()
	if br2External != "" {
		cmd.Env = append(cmd.Env, "BR2_EXTERNAL="+br2External)
	}

	pipeR, pipeW := io.Pipe()
	cmd.Stdout = pipeW
	cmd.Stderr = pipeW

	if err := cmd.Start(); err != nil {
		pipeW.Close()
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pipeR)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			fmt.Fprintln(logFile, line)
			if strings.HasPrefix(line, bannerPrefix) {
				fmt.Fprintln(stdout, line)
			}
		}
	}()

	waitErr := cmd.Wait()
	pipeW.Close()
	<-done

	return waitErr
}

// openLog opens the per-target log file, creating logDir if needed. A
// failure here is non-fatal: it warns to stdout and returns io.Discard so
// the target still runs without a log.
func openLog(target, logDir string, stdout io.Writer) (io.Writer, func()) {
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		fmt.Fprintf(stdout, "warning: %s\n", berrors.New(berrors.KindLogIO, target, "failed to create log directory", err))
		return io.Discard, func() {}
	}

	logPath := filepath.Join(logDir, target+".log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(stdout, "warning: %s\n", berrors.New(berrors.KindLogIO, target, "failed to open log file", err))
		return io.Discard, func() {}
	}
	return f, func() { f.Close() }
}
