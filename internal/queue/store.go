package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"chorus/internal/config"
)

// Store manages render job persistence backed by SQLite. Persistence is
// write-through: every status transition and progress milestone is flushed,
// so a crash loses at most the in-flight batch.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the jobs database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewJobParams carries the validated submission payload.
type NewJobParams struct {
	SourcePath    string
	AudioPath     string
	SubtitlesJSON string
	WordsJSON     string
	OverlayJSON   string
	SettingsJSON  string
}

// NewJob inserts a queued render job and returns it.
func (s *Store) NewJob(ctx context.Context, params NewJobParams) (*Job, error) {
	if params.SourcePath == "" {
		return nil, errors.New("source path required")
	}
	id := uuid.NewString()
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO render_jobs (
            id, status, progress_percent, progress_message, source_path, audio_path,
            subtitles_json, words_json, overlay_json, settings_json,
            created_at, updated_at
        ) VALUES (?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		StatusQueued,
		"Queued",
		params.SourcePath,
		nullableString(params.AudioPath),
		params.SubtitlesJSON,
		params.WordsJSON,
		params.OverlayJSON,
		params.SettingsJSON,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier; nil when not found.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM render_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	baseQuery := `SELECT ` + jobColumns + ` FROM render_jobs`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// NextQueued returns the oldest queued job, or nil when the queue is empty.
// Admission order is strictly FIFO by creation time.
func (s *Store) NextQueued(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM render_jobs WHERE status = ? ORDER BY created_at LIMIT 1`,
		StatusQueued,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next queued job: %w", err)
	}
	return job, nil
}

// CountActive returns the number of jobs holding a scheduler slot (ready or
// processing).
func (s *Store) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM render_jobs WHERE status IN (?, ?)`,
		StatusReady,
		StatusProcessing,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// Transition moves a job from an expected status to a new one. It returns
// false when the job was not in the expected status, which keeps terminal
// states absorbing without racing concurrent writers.
func (s *Store) Transition(ctx context.Context, id string, from, to Status, message string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE render_jobs
         SET status = ?, progress_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		to,
		message,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		from,
	)
	if err != nil {
		return false, fmt.Errorf("transition job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateProgress persists a progress milestone for a processing job. The MAX
// guard keeps the persisted percentage non-decreasing even if updates arrive
// out of order; the MIN guard caps it at 99 so 100 is written only by
// Complete.
func (s *Store) UpdateProgress(ctx context.Context, id string, percent float64, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE render_jobs
         SET progress_percent = MAX(progress_percent, MIN(?, 99)), progress_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		percent,
		message,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// Complete marks a processing job completed with its output path. Progress
// reaches 100 only here.
func (s *Store) Complete(ctx context.Context, id, outputPath string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE render_jobs
         SET status = ?, progress_percent = 100, progress_message = 'Completed',
             output_path = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted,
		outputPath,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Fail moves a non-terminal job to failed with a human-readable reason.
func (s *Store) Fail(ctx context.Context, id, reason string) (bool, error) {
	return s.finish(ctx, id, StatusFailed, reason)
}

// MarkCancelled moves a non-terminal job to cancelled.
func (s *Store) MarkCancelled(ctx context.Context, id string) (bool, error) {
	return s.finish(ctx, id, StatusCancelled, "Cancelled")
}

func (s *Store) finish(ctx context.Context, id string, status Status, message string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE render_jobs
         SET status = ?, error_message = ?, progress_message = ?, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?, ?)`,
		status,
		errorMessageFor(status, message),
		message,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("finish job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func errorMessageFor(status Status, message string) any {
	if status == StatusFailed {
		return message
	}
	return nil
}

// RequestCancel flags a non-terminal job for cancellation. The pipeline
// observes the flag at the next batch boundary.
func (s *Store) RequestCancel(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE render_jobs
         SET cancel_requested = 1, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// CancelRequested reports whether a cancellation flag is set for the job.
func (s *Store) CancelRequested(ctx context.Context, id string) (bool, error) {
	var flag int
	err := s.db.QueryRowContext(ctx, `SELECT cancel_requested FROM render_jobs WHERE id = ?`, id).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag != 0, nil
}

// FailInterrupted reclassifies any job found ready or processing as failed.
// Called once at daemon startup: rendering is never resumed mid-pipeline.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE render_jobs
         SET status = ?, error_message = ?, progress_message = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		StatusFailed,
		InterruptedReason,
		InterruptedReason,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusReady,
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

// ReapTerminal deletes terminal jobs last updated before the cutoff.
func (s *Store) ReapTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM render_jobs WHERE status IN (?, ?, ?) AND updated_at < ?`,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reap terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM render_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const jobColumns = "id, status, progress_percent, progress_message, source_path, audio_path, subtitles_json, words_json, overlay_json, settings_json, output_path, error_message, cancel_requested, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              string
		statusStr       string
		progressPercent sql.NullFloat64
		progressMessage sql.NullString
		sourcePath      string
		audioPath       sql.NullString
		subtitlesJSON   string
		wordsJSON       string
		overlayJSON     string
		settingsJSON    string
		outputPath      sql.NullString
		errorMessage    sql.NullString
		cancelRequested sql.NullInt64
		createdRaw      string
		updatedRaw      string
	)

	if err := scanner.Scan(
		&id,
		&statusStr,
		&progressPercent,
		&progressMessage,
		&sourcePath,
		&audioPath,
		&subtitlesJSON,
		&wordsJSON,
		&overlayJSON,
		&settingsJSON,
		&outputPath,
		&errorMessage,
		&cancelRequested,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		Status:          Status(statusStr),
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		SourcePath:      sourcePath,
		AudioPath:       audioPath.String,
		SubtitlesJSON:   subtitlesJSON,
		WordsJSON:       wordsJSON,
		OverlayJSON:     overlayJSON,
		SettingsJSON:    settingsJSON,
		OutputPath:      outputPath.String,
		ErrorMessage:    errorMessage.String,
		CancelRequested: cancelRequested.Valid && cancelRequested.Int64 != 0,
	}

	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
