package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/caiber/internal/model"
	"github.com/nao1215/caiber/internal/pipeline"
)

// FileName is the name of the database file inside the data directory.
const FileName = "caiber.db"

var (
	// ErrRunNotFound is returned when no archived run has the given id.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotTerminal is returned when saving a run that has not finished.
	ErrRunNotTerminal = errors.New("only finished runs can be archived")

	// ErrResultNotFound is returned when a run has no output for a stage.
	ErrResultNotFound = errors.New("stage result not found")

	// ErrDigestMismatch is returned when a stored output does not match
	// its digest.
	ErrDigestMismatch = errors.New("stage result digest mismatch")
)

// HistoryDB stores finished pipeline runs.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if needed.
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

// Open opens or creates the archive in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rwc"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("database not found at %s", dbPath)
			}
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		mode = "rw"
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := hdb.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

func (h *HistoryDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		status TEXT NOT NULL,
		failing_stage TEXT,
		error TEXT,
		error_kind TEXT,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		snapshot_json TEXT NOT NULL,
		archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_start ON runs(start_time);
	CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);

	CREATE TABLE IF NOT EXISTS stage_results (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		stage TEXT NOT NULL,
		output_json TEXT NOT NULL,
		digest TEXT NOT NULL,
		PRIMARY KEY (run_id, stage)
	);
	`
	_, err := h.db.ExecContext(ctx, schema)
	return err
}

// RunRecord is an archived run.
type RunRecord struct {
	RunID        string
	SessionID    string
	Status       pipeline.RunStatus
	FailingStage pipeline.StageID
	Error        string
	ErrorKind    pipeline.ErrorKind
	StartTime    time.Time
	EndTime      time.Time
	Elapsed      time.Duration
	Snapshot     pipeline.Snapshot
	ArchivedAt   time.Time
}

// StageResult is the archived output of one stage.
type StageResult struct {
	RunID  string
	Stage  pipeline.StageID
	Output json.RawMessage
	// Digest is the hex SHA3-256 of Output.
	Digest string
}

// Verify reports whether Output still matches Digest.
func (r *StageResult) Verify() error {
	if digest(r.Output) != r.Digest {
		return fmt.Errorf("%w: run %s stage %s", ErrDigestMismatch, r.RunID, r.Stage)
	}
	return nil
}

// Decode verifies the output and decodes it into the stage's record.
func (r *StageResult) Decode() (any, error) {
	if err := r.Verify(); err != nil {
		return nil, err
	}
	return decodeOutput(r.Stage, r.Output)
}

func digest(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SaveRun archives a finished run with the outputs of its completed
// stages. Saving the same run again replaces the earlier copy.
func (h *HistoryDB) SaveRun(ctx context.Context, sessionID string, snap pipeline.Snapshot, results map[pipeline.StageID]any) error {
	if !snap.Status.Terminal() {
		return fmt.Errorf("%w: run %s is %s", ErrRunNotTerminal, snap.RunID, snap.Status)
	}
	snapJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, session_id, status, failing_stage, error, error_kind, start_time, end_time, elapsed_ms, snapshot_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		session_id = excluded.session_id,
		status = excluded.status,
		failing_stage = excluded.failing_stage,
		error = excluded.error,
		error_kind = excluded.error_kind,
		start_time = excluded.start_time,
		end_time = excluded.end_time,
		elapsed_ms = excluded.elapsed_ms,
		snapshot_json = excluded.snapshot_json,
		archived_at = CURRENT_TIMESTAMP
	`,
		snap.RunID,
		sessionID,
		string(snap.Status),
		string(snap.FailingStage),
		snap.Error,
		string(snap.ErrorKind),
		formatTimestamp(snap.StartTime),
		formatTimestamp(snap.EndTime),
		snap.Elapsed(snap.EndTime).Milliseconds(),
		string(snapJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM stage_results WHERE run_id = ?`, snap.RunID); err != nil {
		return fmt.Errorf("failed to clear stage results: %w", err)
	}
	for i, st := range snap.Stages {
		out, ok := results[st.ID]
		if !ok || st.Status != pipeline.StageCompleted {
			continue
		}
		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to serialize %s output: %w", st.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO stage_results (run_id, position, stage, output_json, digest)
		VALUES (?, ?, ?, ?, ?)
		`, snap.RunID, i, string(st.ID), string(data), digest(data))
		if err != nil {
			return fmt.Errorf("failed to insert %s output: %w", st.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

const runColumns = `run_id, session_id, status, failing_stage, error, error_kind, start_time, end_time, elapsed_ms, snapshot_json, archived_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		rec                                        RunRecord
		status, failing, errMsg, kind              sql.NullString
		startTime, endTime, snapJSON, archivedTime string
		elapsedMS                                  int64
	)
	if err := row.Scan(&rec.RunID, &rec.SessionID, &status, &failing, &errMsg, &kind,
		&startTime, &endTime, &elapsedMS, &snapJSON, &archivedTime); err != nil {
		return nil, err
	}
	rec.Status = pipeline.RunStatus(status.String)
	rec.FailingStage = pipeline.StageID(failing.String)
	rec.Error = errMsg.String
	rec.ErrorKind = pipeline.ErrorKind(kind.String)
	rec.StartTime = parseTimestamp(startTime)
	rec.EndTime = parseTimestamp(endTime)
	rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	rec.ArchivedAt = parseTimestamp(archivedTime)
	if err := json.Unmarshal([]byte(snapJSON), &rec.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot of run %s: %w", rec.RunID, err)
	}
	return &rec, nil
}

// GetRun returns the archived run with id.
func (h *HistoryDB) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return rec, nil
}

// ListRuns returns up to limit runs, most recent first. A non-positive
// limit returns every run.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY start_time DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// GetStageResults returns the archived outputs of a run in stage order.
func (h *HistoryDB) GetStageResults(ctx context.Context, runID string) ([]StageResult, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT run_id, stage, output_json, digest
	FROM stage_results
	WHERE run_id = ?
	ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage results: %w", err)
	}
	defer rows.Close()

	var results []StageResult
	for rows.Next() {
		var (
			r      StageResult
			output string
		)
		if err := rows.Scan(&r.RunID, &r.Stage, &output, &r.Digest); err != nil {
			return nil, fmt.Errorf("failed to scan stage result: %w", err)
		}
		r.Output = json.RawMessage(output)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stage results: %w", err)
	}
	return results, nil
}

// GetStageResult returns the archived output of one stage.
func (h *HistoryDB) GetStageResult(ctx context.Context, runID string, stage pipeline.StageID) (*StageResult, error) {
	var (
		r      StageResult
		output string
	)
	err := h.db.QueryRowContext(ctx, `
	SELECT run_id, stage, output_json, digest
	FROM stage_results
	WHERE run_id = ? AND stage = ?
	`, runID, string(stage)).Scan(&r.RunID, &r.Stage, &output, &r.Digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s stage %s", ErrResultNotFound, runID, stage)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stage result: %w", err)
	}
	r.Output = json.RawMessage(output)
	return &r, nil
}

// LoadResults decodes every archived output of a run, verifying digests.
func (h *HistoryDB) LoadResults(ctx context.Context, runID string) (map[pipeline.StageID]any, error) {
	stored, err := h.GetStageResults(ctx, runID)
	if err != nil {
		return nil, err
	}
	results := make(map[pipeline.StageID]any, len(stored))
	for i := range stored {
		out, err := stored[i].Decode()
		if err != nil {
			return nil, err
		}
		results[stored[i].Stage] = out
	}
	return results, nil
}

// decodeOutput decodes stored JSON into the record type of stage. Unknown
// stages decode to generic JSON values.
func decodeOutput(stage pipeline.StageID, data []byte) (any, error) {
	var out any
	switch stage {
	case pipeline.StageRequirements:
		out = &model.Requirements{}
	case pipeline.StageCollection:
		out = &model.ThreatLandscape{}
	case pipeline.StageCorrelation:
		var assessments []model.RiskAssessment
		if err := json.Unmarshal(data, &assessments); err != nil {
			return nil, fmt.Errorf("failed to decode %s output: %w", stage, err)
		}
		return assessments, nil
	case pipeline.StageThreatModel:
		out = &model.ThreatModel{}
	default:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s output: %w", stage, err)
		}
		return v, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to decode %s output: %w", stage, err)
	}
	return out, nil
}

// timestampLayout has fixed width so stored values sort chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// timestampFormats lists the formats found in the database: the fixed
// layout for values written by this package, SQLite's own for
// CURRENT_TIMESTAMP.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
}

func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
