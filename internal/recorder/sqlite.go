package recorder

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists scan history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *zap.Logger) (*SQLiteRecorder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboard reads don't block scheduled writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
			id          TEXT PRIMARY KEY,
			timestamp   INTEGER NOT NULL,
			universe    TEXT NOT NULL,
			market      TEXT,
			range_      TEXT,
			interval_   TEXT,
			trigger_    TEXT,
			duration_ms INTEGER,
			row_count   INTEGER,
			failures    INTEGER,
			failed      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON scan_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS scan_rows (
			run_id        TEXT NOT NULL REFERENCES scan_runs(id),
			position      INTEGER NOT NULL,
			ticker        TEXT NOT NULL,
			price         REAL,
			change_pct    REAL,
			change_1m_pct REAL,
			volume        REAL,
			value         REAL,
			rsi14         REAL,
			streak        INTEGER,
			score         REAL,
			tier          TEXT,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rows_ticker ON scan_rows(ticker)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordScan stores the run and its rows in one transaction and returns the
// new run ID.
func (r *SQLiteRecorder) RecordScan(snap *ScanSnapshot) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	started := snap.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	failed := strings.Join(snap.Failed, ",")

	tx, err := r.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO scan_runs
		(id, timestamp, universe, market, range_, interval_, trigger_, duration_ms, row_count, failures, failed)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		id, started.UnixMilli(), snap.Universe, snap.Market, snap.Window.Range, snap.Window.Interval,
		snap.Trigger, snap.Duration.Milliseconds(), len(snap.Rows), len(snap.Failed), failed,
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO scan_rows
		(run_id, position, ticker, price, change_pct, change_1m_pct, volume, value, rsi14, streak, score, tier)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()
	for i, row := range snap.Rows {
		if _, err := stmt.Exec(id, i, row.Ticker, row.Price, row.ChangePct, row.Change1MPct,
			row.Volume, row.Value, row.RSI14, row.Streak, row.Score.Total, row.Score.Tier.Label); err != nil {
			return "", fmt.Errorf("insert row %s: %w", row.Ticker, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// RecentRuns returns the latest runs, newest first.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT id, timestamp, universe, market, range_, interval_, trigger_,
		duration_ms, row_count, failures FROM scan_runs ORDER BY timestamp DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var ts int64
		if err := rows.Scan(&run.ID, &ts, &run.Universe, &run.Market, &run.Range, &run.Interval,
			&run.Trigger, &run.DurationMS, &run.Rows, &run.Failures); err != nil {
			return nil, err
		}
		run.StartedAt = time.UnixMilli(ts)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunRows returns the rows of one run in their recorded order.
func (r *SQLiteRecorder) RunRows(runID string) ([]StoredRow, error) {
	var exists int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM scan_runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := r.db.Query(`SELECT position, ticker, price, change_pct, change_1m_pct, volume, value,
		rsi14, streak, score, tier FROM scan_rows WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StoredRow{}
	for rows.Next() {
		var s StoredRow
		if err := rows.Scan(&s.Position, &s.Ticker, &s.Price, &s.ChangePct, &s.Change1MPct,
			&s.Volume, &s.Value, &s.RSI14, &s.Streak, &s.Score, &s.Tier); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
