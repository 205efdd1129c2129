package engine

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/docker/docker/errdefs"
)

func TestWrapDockerErr_CodeMapping(t *testing.T) {
	base := errors.New("boom")

	cases := []struct {
		name     string
		err      error
		onCreate bool
		want     Code
	}{
		{"nil passes through", nil, false, ""},
		{"not found on create is the image", errdefs.NotFound(base), true, CodeImageNotFound},
		{"not found elsewhere is the container", errdefs.NotFound(base), false, CodeNotFound},
		{"conflict", errdefs.Conflict(base), false, CodeNameConflict},
		{"unauthorized", errdefs.Unauthorized(base), false, CodePermissionDenied},
		{"forbidden", errdefs.Forbidden(base), false, CodePermissionDenied},
		{"anything else", base, false, CodeUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := wrapDockerErr("op", tc.err, tc.onCreate)
			if tc.err == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !IsCode(got, tc.want) {
				t.Errorf("expected code %s, got %v", tc.want, got)
			}
		})
	}
}

func TestEnvironmentError_Unwrap(t *testing.T) {
	base := errors.New("underlying")
	err := newError("create", CodeUnknown, base)

	if !errors.Is(err, base) {
		t.Error("wrapped error should unwrap to the underlying one")
	}
	if !strings.Contains(err.Error(), "create") || !strings.Contains(err.Error(), "underlying") {
		t.Errorf("message should carry op and cause: %q", err.Error())
	}
}

func TestIsCode(t *testing.T) {
	err := newError("start", CodeNotFound, errors.New("no such container"))

	if !IsCode(err, CodeNotFound) {
		t.Error("expected CodeNotFound match")
	}
	if IsCode(err, CodeNameConflict) {
		t.Error("unexpected code match")
	}
	if IsCode(nil, CodeNotFound) {
		t.Error("nil error should never match")
	}
	if IsCode(errors.New("plain"), CodeUnknown) {
		t.Error("plain error should never match")
	}
}

// TestDockerEngine_Lifecycle exercises the full driver against a real
// daemon. It needs docker running locally and the alpine image pulled.
func TestDockerEngine_Lifecycle(t *testing.T) {
	if os.Getenv("OSBENCH_DOCKER_TESTS") == "" {
		t.Skip("set OSBENCH_DOCKER_TESTS=1 to run against a local docker daemon")
	}

	eng, err := NewDockerEngine()
	if err != nil {
		t.Fatalf("NewDockerEngine failed: %v", err)
	}
	defer eng.Close()

	ctx := context.Background()
	handle, err := eng.CreateEnvironment(ctx, CreateSpec{
		Image:   "alpine:3",
		Command: []string{"/bin/sh", "-c", "echo hello from the bench; exit 7"},
	})
	if err != nil {
		t.Fatalf("CreateEnvironment failed: %v", err)
	}
	defer eng.DestroyEnvironment(ctx, handle)

	stream, err := eng.AttachOutput(ctx, handle)
	if err != nil {
		t.Fatalf("AttachOutput failed: %v", err)
	}

	if err := eng.StartEnvironment(ctx, handle); err != nil {
		t.Fatalf("StartEnvironment failed: %v", err)
	}

	out, err := io.ReadAll(stream)
	if err != nil {
		t.Fatalf("reading output failed: %v", err)
	}
	if !strings.Contains(string(out), "hello from the bench") {
		t.Errorf("unexpected output: %q", out)
	}

	code, err := eng.AwaitCompletion(ctx, handle)
	if err != nil {
		t.Fatalf("AwaitCompletion failed: %v", err)
	}
	if code != 7 {
		t.Errorf("expected exit code 7, got %d", code)
	}

	if err := eng.DestroyEnvironment(ctx, handle); err != nil {
		t.Fatalf("DestroyEnvironment failed: %v", err)
	}
	// A second destroy of a gone container is a no-op.
	if err := eng.DestroyEnvironment(ctx, handle); err != nil {
		t.Errorf("destroy should tolerate a missing container: %v", err)
	}
}
