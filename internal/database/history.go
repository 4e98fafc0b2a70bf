package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/serialmirror/internal/event"
)

// FileName is the database file created inside the history directory.
const FileName = "history.db"

var (
	// ErrNotFound is returned when the history database does not exist and
	// Options.CreateIfNotExists is false.
	ErrNotFound = errors.New("history database not found")

	// ErrRunNotFound is returned when no run matches an id or id prefix.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRunID is returned when an id prefix matches several runs.
	ErrAmbiguousRunID = errors.New("run id prefix is ambiguous")
)

// RunStatus is the outcome of a recorded run.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunLimited   RunStatus = "limited"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// HistoryDB stores one row per CLI run and every crawl event emitted
// during it, so that a long crawl can be inspected after the fact.
// The database lives outside the work directory, in the XDG data dir.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	dsn += "&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &HistoryDB{db: db, dbPath: dbPath, now: time.Now}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := h.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return h, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string { return h.dbPath }

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		command TEXT NOT NULL,
		work_dir TEXT NOT NULL DEFAULT '',
		start_url TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		pages INTEGER NOT NULL DEFAULT 0,
		fetched INTEGER NOT NULL DEFAULT 0,
		cached INTEGER NOT NULL DEFAULT 0,
		formatted INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		page_id TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		attempt INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 0,
		bytes INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		delay_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
	`
	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// Run is one recorded CLI invocation.
type Run struct {
	ID         string
	Command    string
	WorkDir    string
	StartURL   string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     RunStatus
	Pages      int
	Fetched    int
	Cached     int
	Formatted  int
	Error      string
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunOutcome is what FinishRun stores for a run.
type RunOutcome struct {
	Status    RunStatus
	Pages     int
	Fetched   int
	Cached    int
	Formatted int
	Err       error
}

// StartRun inserts a running row and returns its generated id.
func (h *HistoryDB) StartRun(ctx context.Context, command, workDir, startURL string) (string, error) {
	id := uuid.NewString()
	query := `
	INSERT INTO runs (id, command, work_dir, start_url, started_at, status)
	VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := h.db.ExecContext(ctx, query,
		id, command, workDir, startURL, formatTimestamp(h.now()), string(RunRunning),
	); err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// FinishRun records the outcome of a run.
func (h *HistoryDB) FinishRun(ctx context.Context, runID string, out RunOutcome) error {
	errText := ""
	if out.Err != nil {
		errText = out.Err.Error()
	}
	query := `
	UPDATE runs SET finished_at = ?, status = ?, pages = ?, fetched = ?, cached = ?, formatted = ?, error = ?
	WHERE id = ?
	`
	res, err := h.db.ExecContext(ctx, query,
		formatTimestamp(h.now()), string(out.Status), out.Pages, out.Fetched, out.Cached, out.Formatted, errText, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// GetRun returns the run whose id equals or starts with idOrPrefix.
func (h *HistoryDB) GetRun(ctx context.Context, idOrPrefix string) (*Run, error) {
	if idOrPrefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	rows, err := h.db.QueryContext(ctx, selectRuns+` WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY started_at DESC LIMIT 2`,
		idOrPrefix, escapeLike(idOrPrefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}

	switch {
	case len(runs) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case len(runs) > 1:
		for i := range runs {
			if runs[i].ID == idOrPrefix {
				return &runs[i], nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, idOrPrefix)
	}
	return &runs[0], nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := selectRuns + ` ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return scanRuns(rows)
}

const selectRuns = `
	SELECT id, command, work_dir, start_url, started_at, finished_at, status,
		pages, fetched, cached, formatted, error
	FROM runs`

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		var finished sql.NullString
		var status string
		if err := rows.Scan(&r.ID, &r.Command, &r.WorkDir, &r.StartURL, &started, &finished, &status,
			&r.Pages, &r.Fetched, &r.Cached, &r.Formatted, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTimestamp(started)
		if finished.Valid {
			r.FinishedAt = parseTimestamp(finished.String)
		}
		r.Status = RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// EventRecord is one stored crawl event.
type EventRecord struct {
	ID          int64
	RunID       string
	Kind        event.Kind
	PageID      string
	URL         string
	Attempt     int
	MaxAttempts int
	Bytes       int
	Elapsed     time.Duration
	Delay       time.Duration
	Error       string
	Timestamp   time.Time
}

// RecordEvent stores e under runID.
func (h *HistoryDB) RecordEvent(ctx context.Context, runID string, e event.Event) error {
	e = event.Stamp(e)
	errText := ""
	if e.Err != nil {
		errText = e.Err.Error()
	}
	query := `
	INSERT INTO events (run_id, kind, page_id, url, attempt, max_attempts, bytes, elapsed_ms, delay_ms, error, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := h.db.ExecContext(ctx, query,
		runID, string(e.Kind), e.PageID, e.URL, e.Attempt, e.MaxAttempts, e.Bytes,
		e.Elapsed.Milliseconds(), e.Delay.Milliseconds(), errText, formatTimestamp(e.Time),
	); err != nil {
		return fmt.Errorf("failed to record %s event: %w", e.Kind, err)
	}
	return nil
}

// RunEvents returns the events of a run in the order they were recorded.
func (h *HistoryDB) RunEvents(ctx context.Context, runID string) ([]EventRecord, error) {
	query := `
	SELECT id, run_id, kind, page_id, url, attempt, max_attempts, bytes, elapsed_ms, delay_ms, error, timestamp
	FROM events
	WHERE run_id = ?
	ORDER BY id
	`
	rows, err := h.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		var kind, ts string
		var elapsedMS, delayMS int64
		if err := rows.Scan(&rec.ID, &rec.RunID, &kind, &rec.PageID, &rec.URL, &rec.Attempt, &rec.MaxAttempts,
			&rec.Bytes, &elapsedMS, &delayMS, &rec.Error, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		rec.Kind = event.Kind(kind)
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		rec.Delay = time.Duration(delayMS) * time.Millisecond
		rec.Timestamp = parseTimestamp(ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteRunsBefore removes runs started before t, with their events.
// It returns the number of runs removed.
func (h *HistoryDB) DeleteRunsBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, formatTimestamp(t))
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

// Observer returns an event.Observer that records every event under runID.
// Write failures are logged and do not interrupt the crawl.
func (h *HistoryDB) Observer(ctx context.Context, runID string, logger *slog.Logger) event.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return event.ObserverFunc(func(e event.Event) {
		if err := h.RecordEvent(context.WithoutCancel(ctx), runID, e); err != nil {
			logger.Warn("failed to record history event", "run", runID, "error", err)
		}
	})
}

// timestampLayout sorts lexically in chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05", // SQLite CURRENT_TIMESTAMP
	"2006-01-02T15:04:05Z",
}

// parseTimestamp tries each known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
