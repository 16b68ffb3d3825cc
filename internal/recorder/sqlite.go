package recorder

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id               TEXT PRIMARY KEY,
			created_at       INTEGER NOT NULL,
			symbol           TEXT NOT NULL,
			first_date       TEXT,
			last_date        TEXT,
			transaction_cost REAL,
			best_period      INTEGER,
			best_return      REAL,
			final_gross      REAL,
			final_net        REAL,
			trades           INTEGER,
			total_cost       REAL,
			report_path      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON backtest_runs(created_at)`,

		`CREATE TABLE IF NOT EXISTS optimization_rows (
			run_id     TEXT NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
			period     INTEGER NOT NULL,
			cum_gross  REAL,
			cum_net    REAL,
			PRIMARY KEY (run_id, period)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores the run and its sweep in one transaction. An empty ID is
// filled with a fresh UUID.
func (r *SQLiteRecorder) RecordRun(rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO backtest_runs
		(id, created_at, symbol, first_date, last_date, transaction_cost,
		 best_period, best_return, final_gross, final_net, trades, total_cost, report_path)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.CreatedAt.Unix(), rec.Symbol,
		rec.FirstDate.Format(time.DateOnly), rec.LastDate.Format(time.DateOnly),
		rec.TransactionCost, rec.BestPeriod, nullable(rec.BestReturn),
		nullable(rec.FinalGross), nullable(rec.FinalNet), rec.Trades, nullable(rec.TotalCost), rec.ReportPath,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO optimization_rows (run_id, period, cum_gross, cum_net) VALUES (?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare rows: %w", err)
	}
	defer stmt.Close()
	for _, row := range rec.Rows {
		if _, err := stmt.Exec(rec.ID, row.Period, nullable(row.CumulativeReturnGross), nullable(row.CumulativeReturnNet)); err != nil {
			return fmt.Errorf("insert row %d: %w", row.Period, err)
		}
	}
	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first, without their sweeps.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT id, created_at, symbol, first_date, last_date, transaction_cost,
		best_period, best_return, final_gross, final_net, trades, total_cost, report_path
		FROM backtest_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec                         RunRecord
			created                     int64
			first, last                 string
			best, gross, net, totalCost sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &created, &rec.Symbol, &first, &last, &rec.TransactionCost,
			&rec.BestPeriod, &best, &gross, &net, &rec.Trades, &totalCost, &rec.ReportPath); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.CreatedAt = time.Unix(created, 0)
		rec.FirstDate, _ = time.Parse(time.DateOnly, first)
		rec.LastDate, _ = time.Parse(time.DateOnly, last)
		rec.BestReturn = fromNull(best)
		rec.FinalGross = fromNull(gross)
		rec.FinalNet = fromNull(net)
		rec.TotalCost = fromNull(totalCost)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

// nullable maps NaN to NULL; SQLite has no NaN.
func nullable(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func fromNull(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
