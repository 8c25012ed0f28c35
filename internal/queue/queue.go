// Package queue persists jobs awaiting redelivery as a single JSON
// array on disk. Every mutation rewrites the file wholesale through a
// temp file and an atomic rename, so a crash leaves either the old or
// the new document, never a torn one.
package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bakebake-xr/printd/internal/core"
)

type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Load returns all persisted entries. A missing file is an empty queue.
func (s *Store) Load() ([]core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) Save(jobs []core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(jobs)
}

func (s *Store) Append(job core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.loadLocked()
	if err != nil {
		return err
	}
	return s.saveLocked(append(jobs, job))
}

// Upsert replaces the entry with the same id, or appends when none
// exists. The queue never holds two entries for one job.
func (s *Store) Upsert(job core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.loadLocked()
	if err != nil {
		return err
	}

	replaced := false
	for i := range jobs {
		if jobs[i].ID == job.ID {
			jobs[i] = job
			replaced = true
			break
		}
	}
	if !replaced {
		jobs = append(jobs, job)
	}

	return s.saveLocked(jobs)
}

func (s *Store) RemoveByID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs, err := s.loadLocked()
	if err != nil {
		return err
	}

	remaining := jobs[:0]
	for _, job := range jobs {
		if job.ID != id {
			remaining = append(remaining, job)
		}
	}
	if len(remaining) == len(jobs) {
		return nil
	}

	return s.saveLocked(remaining)
}

// Len reports the current queue depth. Errors count as empty; the
// status endpoint must not fail because the file is unreadable.
func (s *Store) Len() int {
	jobs, err := s.Load()
	if err != nil {
		return 0
	}
	return len(jobs)
}

func (s *Store) loadLocked() ([]core.Job, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}

	var jobs []core.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse queue file: %w", err)
	}
	return jobs, nil
}

func (s *Store) saveLocked(jobs []core.Job) error {
	if jobs == nil {
		jobs = []core.Job{}
	}

	data, err := json.Marshal(jobs)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create queue dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".print_queue-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp queue file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write queue file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync queue file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close queue file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace queue file: %w", err)
	}

	return nil
}
