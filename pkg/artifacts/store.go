// Package artifacts provides optional S3-compatible off-box storage for
// run outputs. When configured, the orchestrator uploads the durable
// log, the raw stream dump and the final record at terminal state; the
// local file store remains the source of truth either way.
package artifacts

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when no artifact exists for a key.
var ErrNotFound = errors.New("artifact not found")

// Artifact describes one stored object.
type Artifact struct {
	Key          string            `json:"key"`
	Bucket       string            `json:"bucket"`
	Size         int64             `json:"size"`
	ContentType  string            `json:"content_type"`
	LastModified time.Time         `json:"last_modified"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Store is the artifact storage contract.
type Store interface {
	// Upload stores data under key ("runs/{runID}/{filename}").
	Upload(ctx context.Context, key string, reader io.Reader, contentType string, metadata map[string]string) (*Artifact, error)

	// Download retrieves an artifact by key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// PresignedURL generates a time-limited download URL.
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	// List lists artifacts under a prefix ("runs/{runID}/").
	List(ctx context.Context, prefix string) ([]*Artifact, error)

	// DeletePrefix removes every artifact under a prefix. Used by the
	// explicit purge operation.
	DeletePrefix(ctx context.Context, prefix string) error

	// EnsureBucket creates the backing bucket if it does not exist.
	EnsureBucket(ctx context.Context) error
}

// RunPrefix returns the storage prefix for one run's artifacts.
func RunPrefix(runID string) string {
	return "runs/" + runID + "/"
}

// RunKey returns the full storage key for one run artifact.
func RunKey(runID, filename string) string {
	return RunPrefix(runID) + filename
}
