package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// RunRecord is one persisted run.
type RunRecord struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Status      string `json:"status"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime,omitempty"`
	TotalSteps  int    `json:"totalSteps"`
	CurrentStep int    `json:"currentStep"`
	Succeeded   int    `json:"succeeded"`
	Failed      int    `json:"failed"`
	Degraded    int    `json:"degraded"`
	Attempts    int    `json:"attempts"`
	Retries     int    `json:"retries"`
	ArtifactDir string `json:"artifactDir,omitempty"`
}

// RunOutcome carries the terminal tallies for CompleteRun.
type RunOutcome struct {
	Status      string
	Succeeded   int
	Failed      int
	Degraded    int
	Attempts    int
	Retries     int
	ArtifactDir string
}

// Capture is one persisted artifact reference.
type Capture struct {
	RunID     string `json:"runId"`
	Kind      string `json:"kind"`
	Path      string `json:"path"`
	ByteCount int    `json:"byteCount"`
	CreatedAt string `json:"createdAt"`
}

// RunTotals aggregates across finished runs.
type RunTotals struct {
	TotalRuns     int `json:"totalRuns"`
	TotalSteps    int `json:"totalSteps"`
	TotalAttempts int `json:"totalAttempts"`
	TotalRetries  int `json:"totalRetries"`
	TotalCaptures int `json:"totalCaptures"`
	CaptureBytes  int `json:"captureBytes"`
}

// StartRun inserts a run in "running" state.
func (s *Store) StartRun(ctx context.Context, runID, url string, totalSteps int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, url, status, start_time, total_steps)
		VALUES (?, ?, 'running', ?, ?)`,
		runID, url, nowUTC(), totalSteps)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// Progress updates the current step counter.
func (s *Store) Progress(ctx context.Context, runID string, currentStep int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET current_step = ? WHERE id = ?`, currentStep, runID)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// CompleteRun finalizes a run with its terminal status and tallies.
func (s *Store) CompleteRun(ctx context.Context, runID string, out RunOutcome) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, end_time = ?, succeeded = ?, failed = ?, degraded = ?,
		    attempts = ?, retries = ?, artifact_dir = ?
		WHERE id = ?`,
		out.Status, nowUTC(), out.Succeeded, out.Failed, out.Degraded,
		out.Attempts, out.Retries, out.ArtifactDir, runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// GetRun returns one run, or (nil, nil) when unknown.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, status, start_time, COALESCE(end_time, ''),
		       total_steps, current_step, succeeded, failed, degraded,
		       attempts, retries, COALESCE(artifact_dir, '')
		FROM runs WHERE id = ?`, runID)

	var r RunRecord
	err := row.Scan(&r.ID, &r.URL, &r.Status, &r.StartTime, &r.EndTime,
		&r.TotalSteps, &r.CurrentStep, &r.Succeeded, &r.Failed, &r.Degraded,
		&r.Attempts, &r.Retries, &r.ArtifactDir)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

// ListRuns returns recent runs, newest first, optionally filtered by status.
func (s *Store) ListRuns(ctx context.Context, status string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, url, status, start_time, COALESCE(end_time, ''),
		       total_steps, current_step, succeeded, failed, degraded,
		       attempts, retries, COALESCE(artifact_dir, '')
		FROM runs`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY start_time DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.URL, &r.Status, &r.StartTime, &r.EndTime,
			&r.TotalSteps, &r.CurrentStep, &r.Succeeded, &r.Failed, &r.Degraded,
			&r.Attempts, &r.Retries, &r.ArtifactDir); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddCapture records one saved artifact for a run.
func (s *Store) AddCapture(ctx context.Context, runID, kind, path string, byteCount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO captures (run_id, kind, path, byte_count, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		runID, kind, path, byteCount, nowUTC())
	if err != nil {
		return fmt.Errorf("add capture: %w", err)
	}
	return nil
}

// RunCaptures lists the artifacts recorded for a run.
func (s *Store) RunCaptures(ctx context.Context, runID string) ([]Capture, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, kind, path, byte_count, created_at
		FROM captures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list captures: %w", err)
	}
	defer rows.Close()

	var out []Capture
	for rows.Next() {
		var c Capture
		if err := rows.Scan(&c.RunID, &c.Kind, &c.Path, &c.ByteCount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Aggregate totals finished runs and their captures.
func (s *Store) Aggregate(ctx context.Context) (*RunTotals, error) {
	var t RunTotals
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_steps), 0),
		       COALESCE(SUM(attempts), 0), COALESCE(SUM(retries), 0)
		FROM runs WHERE status != 'running'`)
	if err := row.Scan(&t.TotalRuns, &t.TotalSteps, &t.TotalAttempts, &t.TotalRetries); err != nil {
		return nil, fmt.Errorf("aggregate runs: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(byte_count), 0) FROM captures`)
	if err := row.Scan(&t.TotalCaptures, &t.CaptureBytes); err != nil {
		return nil, fmt.Errorf("aggregate captures: %w", err)
	}
	return &t, nil
}
