package runstore

import (
	"errors"
	"testing"
	"time"

	"github.com/osbench/osbench/pkg/classify"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)

	run := &Run{
		ID:        "run-1",
		TargetOS:  "ubuntu-22.04",
		Image:     "ubuntu:22.04",
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Save(run); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Get("run-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusPending || got.Image != "ubuntu:22.04" {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSave_TerminalStatusIsSticky(t *testing.T) {
	s := newTestStore(t)

	run := &Run{ID: "run-2", Status: StatusFailed, CreatedAt: time.Now().UTC(), FailureReason: "boom"}
	if err := s.Save(run); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	run.Status = StatusRunning
	if err := s.Save(run); err == nil {
		t.Error("expected terminal record to reject a status regression")
	}

	got, _ := s.Get("run-2")
	if got.Status != StatusFailed {
		t.Errorf("record should still be failed, got %s", got.Status)
	}
}

func TestSaveResult_WriteOnce(t *testing.T) {
	s := newTestStore(t)

	code := 0
	run := &Run{
		ID:        "run-3",
		Status:    StatusCompleted,
		CreatedAt: time.Now().UTC(),
		ExitCode:  &code,
		Result:    &classify.Result{Success: true, ExitCode: &code},
	}
	if err := s.Save(run); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.SaveResult(run); err != nil {
		t.Fatalf("first SaveResult failed: %v", err)
	}
	if err := s.SaveResult(run); err == nil {
		t.Error("second SaveResult should be rejected")
	}
}

func TestList_NewestFirst(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		run := &Run{ID: id, Status: StatusPending, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		if err := s.Save(run); err != nil {
			t.Fatalf("Save %s failed: %v", id, err)
		}
	}

	runs, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID != "c" || runs[2].ID != "a" {
		t.Errorf("expected newest first, got %s %s %s", runs[0].ID, runs[1].ID, runs[2].ID)
	}
}

func TestLogs_PrefersDurableLog(t *testing.T) {
	s := newTestStore(t)

	run := &Run{ID: "run-4", Status: StatusPending, CreatedAt: time.Now().UTC()}
	if err := s.Save(run); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := s.SaveOutput("run-4", StreamLogName, []byte("stream text")); err != nil {
		t.Fatalf("SaveOutput failed: %v", err)
	}
	logs, err := s.Logs("run-4")
	if err != nil {
		t.Fatalf("Logs failed: %v", err)
	}
	if logs != "stream text" {
		t.Errorf("expected stream fallback, got %q", logs)
	}

	if err := s.SaveOutput("run-4", DurableLogName, []byte("durable text")); err != nil {
		t.Fatalf("SaveOutput failed: %v", err)
	}
	logs, _ = s.Logs("run-4")
	if logs != "durable text" {
		t.Errorf("expected durable log preferred, got %q", logs)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)

	run := &Run{ID: "run-5", Status: StatusCompleted, CreatedAt: time.Now().UTC()}
	if err := s.Save(run); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Delete("run-5"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get("run-5"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	if err := s.Delete("run-5"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleting a missing run should report ErrNotFound, got %v", err)
	}
}
