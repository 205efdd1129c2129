package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/osbench/osbench/pkg/artifacts"
	"github.com/osbench/osbench/pkg/engine"
	"github.com/osbench/osbench/pkg/notify"
	"github.com/osbench/osbench/pkg/runstore"
	"github.com/osbench/osbench/pkg/workspace"
)

// fakeEngine scripts the environment driver without a daemon.
type fakeEngine struct {
	mu        sync.Mutex
	nextID    int
	outputs   map[string]string
	outputFor func(spec engine.CreateSpec) string
	exitCode  int64

	createErr error
	startErr  error
	attachErr error
	waitErr   error

	created   []string
	started   []string
	destroyed []string
}

func newFakeEngine(output string, exitCode int64) *fakeEngine {
	return &fakeEngine{
		outputs:  make(map[string]string),
		outputFor: func(engine.CreateSpec) string { return output },
		exitCode: exitCode,
	}
}

func (e *fakeEngine) CreateEnvironment(_ context.Context, spec engine.CreateSpec) (string, error) {
	if e.createErr != nil {
		return "", e.createErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	h := fmt.Sprintf("env-%d", e.nextID)
	e.outputs[h] = e.outputFor(spec)
	e.created = append(e.created, h)
	return h, nil
}

func (e *fakeEngine) StartEnvironment(_ context.Context, handle string) error {
	if e.startErr != nil {
		return e.startErr
	}
	e.mu.Lock()
	e.started = append(e.started, handle)
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) AttachOutput(_ context.Context, handle string) (io.ReadCloser, error) {
	if e.attachErr != nil {
		return nil, e.attachErr
	}
	e.mu.Lock()
	out := e.outputs[handle]
	e.mu.Unlock()
	return io.NopCloser(strings.NewReader(out)), nil
}

func (e *fakeEngine) AwaitCompletion(_ context.Context, handle string) (int64, error) {
	if e.waitErr != nil {
		return 0, e.waitErr
	}
	return e.exitCode, nil
}

func (e *fakeEngine) FetchLogs(_ context.Context, handle string) (io.ReadCloser, error) {
	e.mu.Lock()
	out := e.outputs[handle]
	e.mu.Unlock()
	return io.NopCloser(strings.NewReader(out)), nil
}

func (e *fakeEngine) DestroyEnvironment(_ context.Context, handle string) error {
	e.mu.Lock()
	e.destroyed = append(e.destroyed, handle)
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) destroyCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.destroyed)
}

type fixture struct {
	orch       *Orchestrator
	store      *runstore.FileStore
	workspaces *workspace.Manager
	hub        *notify.Hub
	wsRoot     string
}

func newFixture(t *testing.T, eng engine.Engine, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := runstore.NewFileStore(filepath.Join(dir, "results"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	wsRoot := filepath.Join(dir, "workspaces")
	workspaces := workspace.NewManager(wsRoot)
	hub := notify.NewHub()
	orch := New(eng, store, workspaces, append([]Option{WithNotifier(hub)}, opts...)...)
	return &fixture{orch: orch, store: store, workspaces: workspaces, hub: hub, wsRoot: wsRoot}
}

func waitEvent(t *testing.T, sub *notify.Subscription, want notify.EventType, runID string) notify.Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-sub.C:
			if ev.Type == want && (runID == "" || ev.RunID == runID) {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func TestSubmit_ReturnsPendingRecord(t *testing.T) {
	fx := newFixture(t, newFakeEngine("=== Exit code: 0 ===\nall good", 0))

	run, err := fx.orch.Submit(context.Background(), SubmitRequest{
		Script:   "echo hi",
		TargetOS: "ubuntu-22.04",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if run.Status != runstore.StatusPending {
		t.Errorf("expected pending status, got %s", run.Status)
	}
	if run.Image != "ubuntu:22.04" {
		t.Errorf("expected resolved image, got %s", run.Image)
	}

	// The record must already be durable, even if the environment never
	// starts.
	if _, err := fx.store.Get(run.ID); err != nil {
		t.Errorf("pending record should be persisted: %v", err)
	}
}

func TestRun_CompletesSuccessfully(t *testing.T) {
	eng := newFakeEngine("=== Exit code: 0 ===\nall good", 0)
	fx := newFixture(t, eng)
	sub := fx.hub.Subscribe()
	defer sub.Close()

	run, err := fx.orch.Submit(context.Background(), SubmitRequest{
		Script:   "echo hi",
		TargetOS: "ubuntu-22.04",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	ev := waitEvent(t, sub, notify.EventRunCompleted, run.ID)

	final := ev.Run
	if final.Status != runstore.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", final.Status, final.FailureReason)
	}
	if final.ExitCode == nil || *final.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %v", final.ExitCode)
	}
	if final.Result == nil || !final.Result.Success {
		t.Errorf("expected successful verdict, got %+v", final.Result)
	}
	if final.EndedAt == nil {
		t.Error("terminal record should carry an end timestamp")
	}

	// Environment released, workspace gone, stream dump persisted.
	if eng.destroyCount() != 1 {
		t.Errorf("expected one destroy, got %d", eng.destroyCount())
	}
	if _, err := os.Stat(filepath.Join(fx.wsRoot, run.ID)); !os.IsNotExist(err) {
		t.Error("workspace should be torn down after completion")
	}
	logs, err := fx.store.Logs(run.ID)
	if err != nil {
		t.Fatalf("Logs failed: %v", err)
	}
	if !strings.Contains(logs, "all good") {
		t.Errorf("expected captured output, got %q", logs)
	}
}

func TestRun_WarningOutputClassifiesAsFailure(t *testing.T) {
	eng := newFakeEngine("=== Exit code: 0 ===\nWarning: deprecated flag", 0)
	fx := newFixture(t, eng)
	sub := fx.hub.Subscribe()
	defer sub.Close()

	run, err := fx.orch.Submit(context.Background(), SubmitRequest{
		Script:   "echo Warning: deprecated flag",
		TargetOS: "debian-12",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	ev := waitEvent(t, sub, notify.EventRunCompleted, run.ID)
	final := ev.Run

	// The run itself completed; the verdict is the conservative one.
	if final.Status != runstore.StatusCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}
	if final.Result == nil || final.Result.Success {
		t.Error("warning line must classify as unsuccessful")
	}
	if final.Result.ErrorCount != 1 {
		t.Errorf("expected 1 matching line, got %d", final.Result.ErrorCount)
	}
}

func TestRun_CreateFailure(t *testing.T) {
	eng := newFakeEngine("", 0)
	eng.createErr = errors.New("image not found")
	fx := newFixture(t, eng)
	sub := fx.hub.Subscribe()
	defer sub.Close()

	run, err := fx.orch.Submit(context.Background(), SubmitRequest{
		Script:   "echo hi",
		TargetOS: "ubuntu-22.04",
	})
	if err != nil {
		t.Fatalf("Submit should succeed even when the run will fail: %v", err)
	}

	waitEvent(t, sub, notify.EventRunFailed, run.ID)

	final, err := fx.store.Get(run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if final.Status != runstore.StatusFailed {
		t.Errorf("expected failed, got %s", final.Status)
	}
	if final.FailureReason == "" {
		t.Error("failed record should carry a failure reason")
	}
	if final.ContainerID != "" {
		t.Error("no environment handle should be recorded when create fails")
	}
	if eng.destroyCount() != 0 {
		t.Error("nothing to destroy when create never succeeded")
	}
	if _, err := os.Stat(filepath.Join(fx.wsRoot, run.ID)); !os.IsNotExist(err) {
		t.Error("workspace should be torn down on failure")
	}
}

func TestRun_StartFailureDestroysEnvironment(t *testing.T) {
	eng := newFakeEngine("", 0)
	eng.startErr = errors.New("already started")
	fx := newFixture(t, eng)
	sub := fx.hub.Subscribe()
	defer sub.Close()

	run, err := fx.orch.Submit(context.Background(), SubmitRequest{
		Script:   "echo hi",
		TargetOS: "ubuntu-22.04",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	waitEvent(t, sub, notify.EventRunFailed, run.ID)

	final, _ := fx.store.Get(run.ID)
	if final.Status != runstore.StatusFailed {
		t.Errorf("expected failed, got %s", final.Status)
	}
	if eng.destroyCount() != 1 {
		t.Errorf("expected best-effort destroy of the created environment, got %d", eng.destroyCount())
	}
}

func TestSubmit_ValidationRejectsBeforeRecordCreation(t *testing.T) {
	fx := newFixture(t, newFakeEngine("", 0))

	_, err := fx.orch.Submit(context.Background(), SubmitRequest{TargetOS: "ubuntu-22.04"})
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	_, err = fx.orch.Submit(context.Background(), SubmitRequest{Script: "echo hi"})
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	runs, _ := fx.store.List()
	if len(runs) != 0 {
		t.Errorf("no record should exist after a rejected submission, got %d", len(runs))
	}
}

func TestConcurrentRuns_NoCrossContamination(t *testing.T) {
	eng := newFakeEngine("", 0)
	eng.outputFor = func(spec engine.CreateSpec) string {
		return "=== Exit code: 0 ===\noutput for " + spec.Name
	}
	fx := newFixture(t, eng)
	sub := fx.hub.Subscribe()
	defer sub.Close()

	const n = 5
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		run, err := fx.orch.Submit(context.Background(), SubmitRequest{
			Script:   fmt.Sprintf("echo run %d", i),
			TargetOS: "ubuntu-22.04",
		})
		if err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
		ids = append(ids, run.ID)
	}

	chunks := make(map[string]string)
	completed := make(map[string]bool)
	timeout := time.After(10 * time.Second)
	for len(completed) < n {
		select {
		case ev := <-sub.C:
			switch ev.Type {
			case notify.EventLogChunk:
				chunks[ev.RunID] += ev.Chunk
			case notify.EventRunCompleted:
				completed[ev.RunID] = true
			case notify.EventRunFailed:
				t.Fatalf("run %s failed: %s", ev.RunID, ev.Error)
			}
		case <-timeout:
			t.Fatalf("only %d of %d runs completed", len(completed), n)
		}
	}

	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate run id %s", id)
		}
		seen[id] = true

		if !completed[id] {
			t.Errorf("run %s never completed", id)
		}

		// Each run's notification stream carries only its own output.
		want := "output for osbench-" + id
		if !strings.Contains(chunks[id], want) {
			t.Errorf("run %s chunks missing own output", id)
		}
		for other := range seen {
			if other != id && strings.Contains(chunks[id], "osbench-"+other) {
				t.Errorf("run %s chunks contain output of run %s", id, other)
			}
		}

		logs, err := fx.store.Logs(id)
		if err != nil {
			t.Errorf("Logs(%s) failed: %v", id, err)
		} else if !strings.Contains(logs, want) {
			t.Errorf("run %s persisted logs missing own output", id)
		}
	}
}

func TestRun_NonzeroExit(t *testing.T) {
	eng := newFakeEngine("=== Exit code: 3 ===\nError: disk full", 3)
	fx := newFixture(t, eng)
	sub := fx.hub.Subscribe()
	defer sub.Close()

	run, err := fx.orch.Submit(context.Background(), SubmitRequest{
		Script:   "exit 3",
		TargetOS: "centos-7",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	ev := waitEvent(t, sub, notify.EventRunCompleted, run.ID)
	final := ev.Run

	if final.Status != runstore.StatusCompleted {
		t.Fatalf("a nonzero exit is still a completed run, got %s", final.Status)
	}
	if final.ExitCode == nil || *final.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %v", final.ExitCode)
	}
	if final.Result == nil || final.Result.Success {
		t.Error("expected unsuccessful verdict")
	}
	if final.Result.ExitCode == nil || *final.Result.ExitCode != 3 {
		t.Errorf("expected marker-derived exit code 3, got %v", final.Result.ExitCode)
	}
}

func TestRun_EmptyStreamFallsBackToFetchLogs(t *testing.T) {
	eng := &fetchOnlyEngine{
		fakeEngine: newFakeEngine("", 0),
		logs:       "=== Exit code: 0 ===\nfetched output",
	}
	fx := newFixture(t, eng)
	sub := fx.hub.Subscribe()
	defer sub.Close()

	run, err := fx.orch.Submit(context.Background(), SubmitRequest{
		Script:   "echo hi",
		TargetOS: "ubuntu-22.04",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	ev := waitEvent(t, sub, notify.EventRunCompleted, run.ID)
	if ev.Run.Result == nil || !ev.Run.Result.Success {
		t.Errorf("expected verdict from fetched logs, got %+v", ev.Run.Result)
	}
}

// fetchOnlyEngine simulates a runtime whose attach stream races startup
// and delivers nothing, while the log channel still has the output.
type fetchOnlyEngine struct {
	*fakeEngine
	logs string
}

func (e *fetchOnlyEngine) AttachOutput(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (e *fetchOnlyEngine) FetchLogs(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(e.logs)), nil
}

func TestRun_WaitFailurePreservesCapturedOutput(t *testing.T) {
	eng := newFakeEngine("=== Exit code: 1 ===\nsome real output before the crash", 0)
	eng.waitErr = errors.New("daemon connection lost")
	fx := newFixture(t, eng)
	sub := fx.hub.Subscribe()
	defer sub.Close()

	run, err := fx.orch.Submit(context.Background(), SubmitRequest{
		Script:   "echo hi",
		TargetOS: "ubuntu-22.04",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	waitEvent(t, sub, notify.EventRunFailed, run.ID)

	final, err := fx.store.Get(run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if final.Status != runstore.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.FailureReason == "" {
		t.Error("failed record should carry a failure reason")
	}

	// The output streamed before the failure is the diagnostic; it must
	// survive workspace teardown.
	logs, err := fx.store.Logs(run.ID)
	if err != nil {
		t.Fatalf("Logs failed: %v", err)
	}
	if !strings.Contains(logs, "some real output before the crash") {
		t.Errorf("failed run should retain captured output, got %q", logs)
	}
	if _, err := os.Stat(filepath.Join(fx.wsRoot, run.ID)); !os.IsNotExist(err) {
		t.Error("workspace should still be torn down on failure")
	}
}

func TestSubmit_DefaultImageFallback(t *testing.T) {
	eng := newFakeEngine("=== Exit code: 0 ===\nok", 0)
	fx := newFixture(t, eng, WithDefaultImage("registry.test/bench:1"))

	run, err := fx.orch.Submit(context.Background(), SubmitRequest{
		Script:   "echo hi",
		TargetOS: "ubuntu-22.04",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if run.Image != "registry.test/bench:1" {
		t.Errorf("expected operator default image, got %s", run.Image)
	}

	run, err = fx.orch.Submit(context.Background(), SubmitRequest{
		Script:   "echo hi",
		TargetOS: "ubuntu-22.04",
		Image:    "explicit/image:2",
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if run.Image != "explicit/image:2" {
		t.Errorf("request image should win over the operator default, got %s", run.Image)
	}
}

func TestRun_UploadsArtifactsAtTerminalState(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		eng := newFakeEngine("=== Exit code: 0 ===\nall good", 0)
		art := newFakeArtifacts()
		fx := newFixture(t, eng, WithArtifacts(art))
		sub := fx.hub.Subscribe()
		defer sub.Close()

		run, err := fx.orch.Submit(context.Background(), SubmitRequest{
			Script:   "echo hi",
			TargetOS: "ubuntu-22.04",
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		waitEvent(t, sub, notify.EventRunCompleted, run.ID)

		if !art.has("runs/" + run.ID + "/stream.log") {
			t.Error("stream dump should be uploaded on completion")
		}
		if !art.has("runs/" + run.ID + "/run.json") {
			t.Error("run record should be uploaded on completion")
		}
	})

	t.Run("failed", func(t *testing.T) {
		eng := newFakeEngine("=== Exit code: 1 ===\npartial output", 0)
		eng.waitErr = errors.New("wait lost")
		art := newFakeArtifacts()
		fx := newFixture(t, eng, WithArtifacts(art))
		sub := fx.hub.Subscribe()
		defer sub.Close()

		run, err := fx.orch.Submit(context.Background(), SubmitRequest{
			Script:   "echo hi",
			TargetOS: "ubuntu-22.04",
		})
		if err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		waitEvent(t, sub, notify.EventRunFailed, run.ID)

		if !art.has("runs/" + run.ID + "/stream.log") {
			t.Error("stream dump should be uploaded on failure too")
		}
		if !art.has("runs/" + run.ID + "/run.json") {
			t.Error("run record should be uploaded on failure too")
		}
	})
}

// fakeArtifacts is an in-memory artifact store.
type fakeArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{objects: make(map[string][]byte)}
}

func (f *fakeArtifacts) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeArtifacts) Upload(_ context.Context, key string, reader io.Reader, contentType string, metadata map[string]string) (*artifacts.Artifact, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[key] = data
	f.mu.Unlock()
	return &artifacts.Artifact{Key: key, Size: int64(len(data)), ContentType: contentType, Metadata: metadata}, nil
}

func (f *fakeArtifacts) Download(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	data, ok := f.objects[key]
	f.mu.Unlock()
	if !ok {
		return nil, artifacts.ErrNotFound
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (f *fakeArtifacts) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if !f.has(key) {
		return "", artifacts.ErrNotFound
	}
	return "https://artifacts.test/" + key, nil
}

func (f *fakeArtifacts) List(_ context.Context, prefix string) ([]*artifacts.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*artifacts.Artifact
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, &artifacts.Artifact{Key: key, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (f *fakeArtifacts) DeletePrefix(_ context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			delete(f.objects, key)
		}
	}
	return nil
}

func (f *fakeArtifacts) EnsureBucket(context.Context) error { return nil }
