// Package history keeps a durable record of terminal job outcomes. The
// status endpoint reads its recent completions; daily counters survive
// restarts, unlike the in-memory list the daemon otherwise relies on.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bakebake-xr/printd/internal/core"
)

const (
	OutcomeCompleted = "completed"
	OutcomeDiscarded = "discarded"
)

type JobSummary struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	CompletedAt time.Time `json:"completed_at"`
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS print_history (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT NOT NULL,
			label TEXT NOT NULL,
			source TEXT NOT NULL,
			outcome TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			completed_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS print_counters (
			date TEXT PRIMARY KEY,
			count INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create counters table: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RecordCompleted(job core.Job) error {
	now := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO print_history (job_id, label, source, outcome, completed_at)
		VALUES (?, ?, ?, ?, ?)
	`, job.ID, job.Label, string(job.Source), OutcomeCompleted, now)
	if err != nil {
		return fmt.Errorf("failed to insert history row: %w", err)
	}

	today := now.Format("2006-01-02")
	_, err = s.db.Exec(`
		INSERT INTO print_counters (date, count) VALUES (?, 1)
		ON CONFLICT(date) DO UPDATE SET count = count + 1
	`, today)
	if err != nil {
		return fmt.Errorf("failed to update print counter: %w", err)
	}

	return nil
}

func (s *Store) RecordDiscarded(job core.Job, reason string) error {
	_, err := s.db.Exec(`
		INSERT INTO print_history (job_id, label, source, outcome, detail, completed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, job.ID, job.Label, string(job.Source), OutcomeDiscarded, reason, time.Now())
	if err != nil {
		return fmt.Errorf("failed to insert history row: %w", err)
	}
	return nil
}

// Recent returns the latest n successful completions, newest first.
func (s *Store) Recent(n int) ([]JobSummary, error) {
	rows, err := s.db.Query(`
		SELECT job_id, label, completed_at FROM print_history
		WHERE outcome = ?
		ORDER BY seq DESC
		LIMIT ?
	`, OutcomeCompleted, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var summaries []JobSummary
	for rows.Next() {
		var sum JobSummary
		if err := rows.Scan(&sum.ID, &sum.Label, &sum.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		summaries = append(summaries, sum)
	}

	return summaries, rows.Err()
}

// CountOn returns how many jobs completed on the given day (2006-01-02).
func (s *Store) CountOn(date string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT count FROM print_counters WHERE date = ?", date).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query print counter: %w", err)
	}
	return count, nil
}
