package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/paguilar/br-pbuilder/internal/config"
	"github.com/paguilar/br-pbuilder/internal/edgefile"
	"github.com/paguilar/br-pbuilder/internal/finalizer"
	"github.com/paguilar/br-pbuilder/internal/logs"
	"github.com/paguilar/br-pbuilder/internal/obslog"
	"github.com/paguilar/br-pbuilder/internal/priority"
	"github.com/paguilar/br-pbuilder/internal/report"
	"github.com/paguilar/br-pbuilder/internal/scheduler"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pbuilder",
		Short:   "Parallel package build driver",
		Long:    "pbuilder schedules a dependency-ordered set of package builds across a fixed worker pool, driving each one through make.",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
	}

	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newLogsCommand())

	return cmd
}

func newBuildCommand() *cobra.Command {
	var opts config.Options

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the full dependency-ordered build",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts)
		},
	}

	cmd.Flags().IntVarP(&opts.DebugLevel, "debug_level", "l", 0, "debug verbosity (0-3)")
	cmd.Flags().StringVarP(&opts.DebugModule, "debug_module", "m", "all", "module to trace (all|create|execute|none)")
	cmd.Flags().StringVarP(&opts.EdgeFile, "filename", "f", "", "path to the dependency edge file (required)")
	cmd.Flags().IntVarP(&opts.CPUNum, "cpu", "c", 0, "max worker count (<=0 or above detected cores uses detected core count)")
	cmd.MarkFlagRequired("filename")

	return cmd
}

func runBuild(opts config.Options) error {
	cfg, err := config.Load(opts)
	if err != nil {
		return err
	}

	buildID := fmt.Sprintf("pbuilder-%d", time.Now().Unix())
	log := obslog.New(buildID, cfg.DebugLevel)

	g, err := edgefile.Parse(cfg.EdgeFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pbuilder: %v\n", err)
		return err
	}

	priority.Assign(g)
	priority.ApplyDesignatedTieBreak(g, cfg.DesignatedPackage)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()

	sched := scheduler.New(cfg, g, log, os.Stdout)
	failed, runErr := sched.Run(ctx)

	finalErr := error(nil)
	if runErr == nil {
		finalErr = finalizer.Run(ctx, cfg.FinalizeTargets, cfg.BR2External, cfg.LogDir, os.Stdout)
	}

	summary := report.Build(g, time.Since(start), failed)
	if werr := report.WriteJSON(cfg.ConfigDir, summary); werr != nil {
		log.Warn("main", fmt.Sprintf("failed to write run summary: %v", werr))
	}
	printSummary(summary)

	if len(failed) > 0 {
		fmt.Fprintln(os.Stderr, "Build failed!!!")
		for _, name := range failed {
			fmt.Fprintf(os.Stderr, "  %s (see %s)\n", name, filepath.Join(cfg.LogDir, name+".log"))
		}
		return fmt.Errorf("pbuilder: %d package(s) failed to build", len(failed))
	}
	if runErr != nil {
		return runErr
	}
	if finalErr != nil {
		fmt.Fprintln(os.Stderr, "Build failed!!!")
		fmt.Fprintf(os.Stderr, "  finalizer: %v\n", finalErr)
		return finalErr
	}

	return nil
}

func printSummary(s report.Summary) {
	fmt.Printf("Built %d package(s), skipped %d (already built), in %.1fs\n",
		s.BuiltCount, s.SkippedCount, s.TotalSeconds)
}

func newLogsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect and prune per-package build logs",
	}

	cmd.AddCommand(newLogsInfoCommand())
	cmd.AddCommand(newLogsPruneCommand())

	return cmd
}

func newLogsInfoCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show log directory statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := resolveConfigDir(configDir)
			st, err := logs.Info(logDirOf(dir))
			if err != nil {
				return err
			}
			fmt.Println(logs.FormatStats(st))
			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "config directory (default: $CONFIG_DIR)")
	return cmd
}

func newLogsPruneCommand() *cobra.Command {
	var (
		configDir string
		olderThan time.Duration
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Compress logs older than a threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := resolveConfigDir(configDir)
			n, err := logs.Prune(logDirOf(dir), olderThan)
			if err != nil {
				return err
			}
			fmt.Printf("Compressed %d log file(s)\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "config directory (default: $CONFIG_DIR)")
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "compress logs older than this")
	return cmd
}

func resolveConfigDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("CONFIG_DIR")
}

func logDirOf(configDir string) string {
	return filepath.Join(configDir, "pbuilder_logs")
}
