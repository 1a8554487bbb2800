// Package config builds the immutable run configuration from CLI flags,
// environment variables, and an optional YAML overlay file, in that order of
// precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v2"
)

// Config is the fully-resolved, immutable configuration for one run.
type Config struct {
	EdgeFile          string
	BuildDir          string
	ConfigDir         string
	BR2External       string
	CPUNum            int
	DebugLevel        int
	DebugModule       string
	SentinelName      string
	DesignatedPackage string
	FinalizeTargets   []string
	RetryNoRuleToMake bool
	LogDir            string
}

// overlay is the shape of the optional pbuilder.yaml file.
type overlay struct {
	FinalizeTargets   []string `yaml:"finalize_targets"`
	SentinelName      string   `yaml:"sentinel_name"`
	DesignatedPackage string   `yaml:"designated_package"`
	RetryNoRuleToMake bool     `yaml:"retry_no_rule_to_make"`
}

// DefaultFinalizeTargets matches the sole target the current build driver
// runs at the end of a successful build.
var DefaultFinalizeTargets = []string{"target-post-image"}

// LegacyFinalizeTargets is the four-stage tail an older draft of this driver
// used. Load never selects it; an overlay's finalize_targets key can list
// these targets explicitly.
var LegacyFinalizeTargets = []string{
	"host-finalize",
	"staging-finalize",
	"target-finalize",
	"target-post-image",
}

const (
	defaultSentinelName      = "br2-external-built"
	defaultDesignatedPackage = "uclibc"
)

// Options carries the values parsed from CLI flags.
type Options struct {
	EdgeFile    string
	DebugLevel  int
	DebugModule string
	CPUNum      int
}

// Load resolves a Config from CLI options, environment variables, and the
// optional <config_dir>/pbuilder.yaml overlay. BUILD_DIR and CONFIG_DIR are
// required environment variables; BR2_EXTERNAL is optional.
func Load(opts Options) (*Config, error) {
	if opts.EdgeFile == "" {
		return nil, fmt.Errorf("config: edge file is required")
	}

	buildDir := os.Getenv("BUILD_DIR")
	if buildDir == "" {
		return nil, fmt.Errorf("config: BUILD_DIR environment variable is required")
	}
	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		return nil, fmt.Errorf("config: CONFIG_DIR environment variable is required")
	}
	br2External := os.Getenv("BR2_EXTERNAL")

	cpuNum := opts.CPUNum
	if cpuNum <= 0 || cpuNum > runtime.NumCPU() {
		cpuNum = runtime.NumCPU()
	}

	cfg := &Config{
		EdgeFile:          opts.EdgeFile,
		BuildDir:          buildDir,
		ConfigDir:         configDir,
		BR2External:       br2External,
		CPUNum:            cpuNum,
		DebugLevel:        opts.DebugLevel,
		DebugModule:       opts.DebugModule,
		SentinelName:      defaultSentinelName,
		DesignatedPackage: defaultDesignatedPackage,
		FinalizeTargets:   DefaultFinalizeTargets,
		LogDir:            filepath.Join(configDir, "pbuilder_logs"),
	}

	ov, err := loadOverlay(filepath.Join(configDir, "pbuilder.yaml"))
	if err != nil {
		return nil, err
	}
	if ov != nil {
		if len(ov.FinalizeTargets) > 0 {
			cfg.FinalizeTargets = ov.FinalizeTargets
		}
		if ov.SentinelName != "" {
			cfg.SentinelName = ov.SentinelName
		}
		if ov.DesignatedPackage != "" {
			cfg.DesignatedPackage = ov.DesignatedPackage
		}
		cfg.RetryNoRuleToMake = ov.RetryNoRuleToMake
	}

	return cfg, nil
}

func loadOverlay(path string) (*overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read overlay %s: %w", path, err)
	}

	var ov overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return nil, fmt.Errorf("config: parse overlay %s: %w", path, err)
	}
	return &ov, nil
}
