// Package store keeps a local history of completed pipeline runs.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mikemuryn/VoiceNotes/internal/domain/pipeline"
)

// Run is one recorded pipeline run.
type Run struct {
	ID        string
	AudioPath string
	OutDir    string
	Model     string
	Device    string
	Language  string
	Stages    map[pipeline.Stage]pipeline.StageStatus
	Duration  time.Duration
	CreatedAt time.Time
}

// RunStore persists runs in a SQLite database.
type RunStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the run database at dbPath.
func Open(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening run database: %w", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		audio_path TEXT NOT NULL,
		out_dir TEXT NOT NULL,
		model TEXT NOT NULL,
		device TEXT NOT NULL,
		language TEXT,
		stages TEXT NOT NULL,
		duration_seconds REAL NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runs table: %w", err)
	}

	return &RunStore{db: db}, nil
}

// Save records a completed run.
func (s *RunStore) Save(run *Run) error {
	stages, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("encoding stage statuses: %w", err)
	}

	query := `
	INSERT INTO runs (id, audio_path, out_dir, model, device, language, stages, duration_seconds, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.Exec(query,
		run.ID, run.AudioPath, run.OutDir, run.Model, run.Device, run.Language,
		string(stages), run.Duration.Seconds(), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *RunStore) Recent(limit int) ([]Run, error) {
	query := `
	SELECT id, audio_path, out_dir, model, device, language, stages, duration_seconds, created_at
	FROM runs ORDER BY created_at DESC, id LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			language sql.NullString
			stages   string
			seconds  float64
		)
		if err := rows.Scan(&run.ID, &run.AudioPath, &run.OutDir, &run.Model, &run.Device,
			&language, &stages, &seconds, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.Language = language.String
		run.Duration = time.Duration(seconds * float64(time.Second))
		if err := json.Unmarshal([]byte(stages), &run.Stages); err != nil {
			return nil, fmt.Errorf("decoding stage statuses: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *RunStore) Close() error {
	return s.db.Close()
}
