// Package berrors defines the error taxonomy used across the build driver:
// every failure that crosses a component boundary is wrapped in a BuildError
// carrying the kind of failure, its severity, and whether it is safe to
// retry.
package berrors

import (
	"fmt"
	"time"
)

// Kind categorizes a failure by the component that raised it.
type Kind string

const (
	KindEdgeFile        Kind = "edge_file"
	KindGraphBuild      Kind = "graph_build"
	KindPriority        Kind = "priority"
	KindSpawn           Kind = "spawn"
	KindBuildExit       Kind = "build_exit"
	KindLogIO           Kind = "log_io"
	KindFinalizerFailed Kind = "finalizer_failed"
)

// Severity indicates how a BuildError should affect the run as a whole.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityCritical Severity = "critical"
)

// BuildError is the error type every component returns on failure.
type BuildError struct {
	Kind      Kind
	Severity  Severity
	Package   string
	Message   string
	Cause     error
	Retryable bool
	Timestamp time.Time
}

func (e *BuildError) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Package, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}

// IsCritical reports whether the run should halt new dispatch because of
// this error.
func (e *BuildError) IsCritical() bool {
	return e.Severity == SeverityCritical
}

// New constructs a BuildError of the given kind.
func New(kind Kind, pkg, message string, cause error) *BuildError {
	return &BuildError{
		Kind:      kind,
		Severity:  defaultSeverity(kind),
		Package:   pkg,
		Message:   message,
		Cause:     cause,
		Retryable: defaultRetryable(kind),
		Timestamp: time.Now(),
	}
}

func defaultSeverity(kind Kind) Severity {
	switch kind {
	case KindEdgeFile, KindGraphBuild, KindPriority:
		return SeverityCritical
	case KindBuildExit, KindFinalizerFailed:
		return SeverityCritical
	case KindSpawn:
		return SeverityMedium
	case KindLogIO:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// defaultRetryable reports whether a failure of this kind is worth retrying
// on general principle. The one actual retry the driver performs (a stale
// generated Makefile fragment reporting "No rule to make target") is decided
// by internal/executor against the raw build output, not against this flag.
func defaultRetryable(kind Kind) bool {
	return kind == KindSpawn
}
