package runstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"postforge/internal/run"
)

// FileStore persists run state in a local SQLite database.
type FileStore struct {
	db   *sql.DB
	path string
}

const fileSchema = `
CREATE TABLE IF NOT EXISTS agent_runs (
    run_trace_id   TEXT PRIMARY KEY,
    current_phase  TEXT NOT NULL,
    status         TEXT NOT NULL,
    is_complete    INTEGER NOT NULL DEFAULT 0,
    brand_id       TEXT,
    post_plan_id   TEXT,
    summary_json   TEXT,
    events_json    TEXT,
    last_update_utc TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agent_runs_updated ON agent_runs(last_update_utc);
`

// OpenFile initializes or connects to the run state database under stateDir.
func OpenFile(stateDir string) (*FileStore, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, "runstate.db")
	// Pragmas go in the DSN so every pooled connection gets them; Exec-ing
	// them reaches only the one connection that runs the statement.
	// _txlock=immediate takes the write lock at BeginTx, so the read-then-
	// upsert transactions queue on busy_timeout instead of failing with
	// SQLITE_BUSY when a deferred transaction tries to upgrade to a write.
	dsn := "file:" + dbPath + "?_txlock=immediate&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
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

	if _, err := db.Exec(fileSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &FileStore{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *FileStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *FileStore) Path() string {
	return s.path
}

// SetStatus upserts the run record, merging with any existing row inside a
// transaction so the event log is never clobbered by a status write.
func (s *FileStore) SetStatus(ctx context.Context, update Update) error {
	if update.RunTraceID == "" {
		return errors.New("set status: run trace id required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set status: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := scanRunRow(tx.QueryRowContext(ctx, `SELECT `+runColumns+` FROM agent_runs WHERE run_trace_id = ?`, update.RunTraceID))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read existing run: %w", err)
	}

	merged := mergeUpdate(existing, update)
	if err := upsertRun(ctx, tx, merged); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set status: %w", err)
	}
	return nil
}

// GetStatus fetches a run record; (nil, nil) when the run is unknown.
func (s *FileStore) GetStatus(ctx context.Context, runTraceID string) (*run.RunState, error) {
	state, err := scanRunRow(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM agent_runs WHERE run_trace_id = ?`, runTraceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run state: %w", err)
	}
	return state, nil
}

// AddEvent appends to the event log, seeding a minimal in-progress record
// when the run has not been written yet.
func (s *FileStore) AddEvent(ctx context.Context, runTraceID string, event run.Event) error {
	if runTraceID == "" {
		return errors.New("add event: run trace id required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add event: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	state, err := scanRunRow(tx.QueryRowContext(ctx, `SELECT `+runColumns+` FROM agent_runs WHERE run_trace_id = ?`, runTraceID))
	if errors.Is(err, sql.ErrNoRows) {
		state = &run.RunState{
			RunTraceID:   runTraceID,
			CurrentPhase: event.Phase,
			Status:       run.StatusInProgress,
		}
		err = nil
	}
	if err != nil {
		return fmt.Errorf("read run for event: %w", err)
	}

	if event.TS.IsZero() {
		event.TS = time.Now().UTC()
	}
	state.Events = append(state.Events, event)
	state.LastUpdateUtc = time.Now().UTC()

	if err := upsertRun(ctx, tx, state); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add event: %w", err)
	}
	return nil
}

// List returns all runs ordered newest-first.
func (s *FileStore) List(ctx context.Context) ([]*run.RunState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM agent_runs ORDER BY last_update_utc DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var states []*run.RunState
	for rows.Next() {
		state, err := scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, rows.Err()
}

// mergeUpdate applies an update on top of an existing record (nil when the
// run is new). The phase never regresses; a stale update keeps the stored
// phase and status.
func mergeUpdate(existing *run.RunState, update Update) *run.RunState {
	state := &run.RunState{RunTraceID: update.RunTraceID}
	if existing != nil {
		*state = *existing
	}

	stale := existing != nil && update.Phase.Before(existing.CurrentPhase)
	if !stale {
		state.CurrentPhase = update.Phase
		state.Status = update.Status
		state.Summary = update.Summary
	}
	if update.BrandID != "" {
		state.BrandID = update.BrandID
	}
	if update.PostPlanID != "" {
		state.PostPlanID = update.PostPlanID
	}
	state.IsComplete = run.Complete(state.CurrentPhase, state.Status)
	state.LastUpdateUtc = time.Now().UTC()
	return state
}

const runColumns = "run_trace_id, current_phase, status, is_complete, brand_id, post_plan_id, summary_json, events_json, last_update_utc"

func upsertRun(ctx context.Context, tx *sql.Tx, state *run.RunState) error {
	summaryJSON, err := marshalNullable(state.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	eventsJSON, err := marshalNullable(state.Events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO agent_runs (`+runColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(run_trace_id) DO UPDATE SET
             current_phase = excluded.current_phase,
             status = excluded.status,
             is_complete = excluded.is_complete,
             brand_id = excluded.brand_id,
             post_plan_id = excluded.post_plan_id,
             summary_json = excluded.summary_json,
             events_json = excluded.events_json,
             last_update_utc = excluded.last_update_utc`,
		state.RunTraceID,
		string(state.CurrentPhase),
		string(state.Status),
		boolToInt(state.IsComplete),
		nullableString(state.BrandID),
		nullableString(state.PostPlanID),
		summaryJSON,
		eventsJSON,
		state.LastUpdateUtc.Format(storedTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

func scanRunRow(scanner interface{ Scan(dest ...any) error }) (*run.RunState, error) {
	var (
		runTraceID string
		phaseStr   string
		statusStr  string
		isComplete int
		brandID    sql.NullString
		postPlanID sql.NullString
		summary    sql.NullString
		events     sql.NullString
		updatedRaw string
	)
	if err := scanner.Scan(
		&runTraceID,
		&phaseStr,
		&statusStr,
		&isComplete,
		&brandID,
		&postPlanID,
		&summary,
		&events,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	state := &run.RunState{
		RunTraceID:   runTraceID,
		CurrentPhase: run.Phase(phaseStr),
		Status:       run.Status(statusStr),
		IsComplete:   isComplete != 0,
		BrandID:      brandID.String,
		PostPlanID:   postPlanID.String,
	}
	if summary.Valid && summary.String != "" {
		if err := json.Unmarshal([]byte(summary.String), &state.Summary); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
	}
	if events.Valid && events.String != "" {
		if err := json.Unmarshal([]byte(events.String), &state.Events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		state.LastUpdateUtc = updated
	}
	return state, nil
}

func marshalNullable(value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		if v == nil {
			return nil, nil
		}
	case []run.Event:
		if len(v) == 0 {
			return nil, nil
		}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
