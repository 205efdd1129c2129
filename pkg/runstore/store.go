package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrNotFound is returned when no record exists for a run id.
var ErrNotFound = errors.New("run not found")

const (
	recordFile = "run.json"
	resultFile = "result.json"
	outputDir  = "output"

	// DurableLogName is the entrypoint's teed log, copied into the
	// results tree before the workspace is torn down.
	DurableLogName = "run.log"

	// StreamLogName is the raw dump of whatever the attach stream
	// delivered.
	StreamLogName = "stream.log"
)

// FileStore persists one directory per run under a results root. Each
// run is written only by its owning orchestrator task, so no locking is
// needed beyond atomic-replace semantics on the record file to protect
// concurrent listers from partial reads.
type FileStore struct {
	root string
}

// NewFileStore returns a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating results root: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// Root returns the results root directory.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) runDir(id string) string {
	return filepath.Join(s.root, id)
}

// Save writes the run record, replacing it atomically. Terminal statuses
// are sticky: once a record is completed or failed, a write that would
// change its status is rejected so best-effort cleanup paths can never
// mask an already-determined outcome.
func (s *FileStore) Save(run *Run) error {
	existing, err := s.Get(run.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil && existing.Status.Terminal() && existing.Status != run.Status {
		return fmt.Errorf("run %s is already %s", run.ID, existing.Status)
	}

	dir := s.runDir(run.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run record: %w", err)
	}
	return atomicWrite(filepath.Join(dir, recordFile), data)
}

// SaveResult writes the classifier verdict file. It is written once, at
// the completed transition; a second write is rejected.
func (s *FileStore) SaveResult(run *Run) error {
	if run.Result == nil {
		return fmt.Errorf("run %s has no result", run.ID)
	}
	path := filepath.Join(s.runDir(run.ID), resultFile)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("result for run %s already written", run.ID)
	}
	data, err := json.MarshalIndent(run.Result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	return atomicWrite(path, data)
}

// SaveOutput stores a captured-output artifact (durable log or raw
// stream dump) under the run's output/ directory.
func (s *FileStore) SaveOutput(id, name string, data []byte) error {
	dir := filepath.Join(s.runDir(id), outputDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return atomicWrite(filepath.Join(dir, name), data)
}

// Get reads a run record by id.
func (s *FileStore) Get(id string) (*Run, error) {
	data, err := os.ReadFile(filepath.Join(s.runDir(id), recordFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading run record: %w", err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("parsing run record: %w", err)
	}
	return &run, nil
}

// List returns all run records, newest first.
func (s *FileStore) List() ([]*Run, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Run{}, nil
		}
		return nil, fmt.Errorf("reading results root: %w", err)
	}

	runs := make([]*Run, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		run, err := s.Get(entry.Name())
		if err != nil {
			// Skip records that can't be read; a concurrent writer may
			// still be initializing the directory.
			continue
		}
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

// Logs returns the captured output for a run, preferring the durable
// entrypoint log over the raw stream dump.
func (s *FileStore) Logs(id string) (string, error) {
	if _, err := s.Get(id); err != nil {
		return "", err
	}
	dir := filepath.Join(s.runDir(id), outputDir)
	for _, name := range []string{DurableLogName, StreamLogName} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil && len(data) > 0 {
			return string(data), nil
		}
	}
	return "", nil
}

// Delete removes a run's directory entirely. Records are never deleted
// automatically; this exists for the explicit purge operation.
func (s *FileStore) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	return os.RemoveAll(s.runDir(id))
}

// atomicWrite writes data to a temp file in the target directory and
// renames it into place, so concurrent readers never observe a partial
// record.
func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
