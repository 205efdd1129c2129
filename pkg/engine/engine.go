// Package engine is the adapter over the container runtime. It is the
// only package that talks to the external daemon; everything above it
// works in terms of opaque environment handles.
package engine

import (
	"context"
	"io"
)

// CreateSpec describes the environment to create for a run.
type CreateSpec struct {
	Image      string
	Name       string
	Command    []string
	WorkingDir string
	// Binds are host:container mount pairs in the runtime's bind syntax.
	Binds []string
	Env   map[string]string
}

// Engine is the environment driver contract. Every operation may fail
// with an *EnvironmentError; Destroy is the only one callers treat as
// best-effort.
type Engine interface {
	// CreateEnvironment creates (but does not start) an environment and
	// returns the runtime's handle for it.
	CreateEnvironment(ctx context.Context, spec CreateSpec) (string, error)

	// StartEnvironment starts a created environment. Starting an
	// already-started environment is an error surfaced upward.
	StartEnvironment(ctx context.Context, handle string) error

	// AttachOutput attaches to the environment's combined output channel.
	// The returned stream is unbounded and non-restartable; it terminates
	// when the output channel closes, normally at process exit but
	// possibly earlier on daemon-side errors.
	AttachOutput(ctx context.Context, handle string) (io.ReadCloser, error)

	// AwaitCompletion blocks until the environment's process terminates
	// and returns its exit code. This is the authoritative exit-code
	// source.
	AwaitCompletion(ctx context.Context, handle string) (int64, error)

	// FetchLogs retrieves the environment's buffered output after the
	// fact, independent of any attach stream.
	FetchLogs(ctx context.Context, handle string) (io.ReadCloser, error)

	// DestroyEnvironment force-removes the environment. Best-effort:
	// callers log failures and move on rather than leak a failure report.
	DestroyEnvironment(ctx context.Context, handle string) error
}
