package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/flock"
)

// Checkpoint tracks which documents completed ingestion so an
// interrupted run can resume without re-embedding finished work.
// State is persisted as JSON next to a lock file guarding against
// concurrent ingestion runs over the same checkpoint.
//
// Checkpoint is safe for concurrent use by multiple goroutines.
type Checkpoint struct {
	path string
	lock *flock.Flock

	mu        sync.Mutex
	completed map[string]bool
}

// checkpointState is the on-disk representation.
type checkpointState struct {
	Completed []string `json:"completed"`
}

// OpenCheckpoint loads a checkpoint file, creating it if absent.
// The flock guard is held until Close; a second process opening the
// same checkpoint fails instead of corrupting state.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking checkpoint %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("checkpoint %s is locked by another ingestion run", path)
	}

	cp := &Checkpoint{
		path:      path,
		lock:      lock,
		completed: make(map[string]bool),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cp, nil
	}
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("reading checkpoint %s: %w", path, err)
	}

	var state checkpointState
	if err := json.Unmarshal(data, &state); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("parsing checkpoint %s: %w", path, err)
	}
	for _, ref := range state.Completed {
		cp.completed[ref] = true
	}
	return cp, nil
}

// Done reports whether a document reference has completed ingestion.
func (cp *Checkpoint) Done(ref string) bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return cp.completed[ref]
}

// MarkDone records a completed document and persists the state.
func (cp *Checkpoint) MarkDone(ref string) error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	cp.completed[ref] = true
	return cp.save()
}

// save writes the state atomically via a temp file rename.
// Caller must hold cp.mu.
func (cp *Checkpoint) save() error {
	state := checkpointState{Completed: make([]string, 0, len(cp.completed))}
	for ref := range cp.completed {
		state.Completed = append(state.Completed, ref)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}

	tmp := cp.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := os.Rename(tmp, cp.path); err != nil {
		return fmt.Errorf("replacing checkpoint: %w", err)
	}
	return nil
}

// Close releases the checkpoint lock.
func (cp *Checkpoint) Close() error {
	if err := cp.lock.Unlock(); err != nil {
		return fmt.Errorf("unlocking checkpoint: %w", err)
	}
	return nil
}
