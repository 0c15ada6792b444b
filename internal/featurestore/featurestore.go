// Package featurestore keeps raw daily bars, engineered feature tables and
// pipeline run history in SQLite.
package featurestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"nifty-signals/internal/dataset"
	"nifty-signals/internal/features"
	"nifty-signals/internal/types"
)

const tsLayout = time.RFC3339

type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// featureCols are the SQL names of features.Columns, in the same order.
var featureCols = []string{
	"open", "high", "low", "close", "volume",
	"sma_20", "sma_50", "ema_20", "ema_50",
	"macd", "macd_signal", "macd_hist",
	"rsi_14", "bb_middle", "bb_upper", "bb_lower",
	"atr_14",
}

func (s *Store) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var fcols strings.Builder
	for _, c := range featureCols {
		fcols.WriteString("  " + c + " REAL NOT NULL,\n")
	}

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS historical_daily (
  ticker TEXT NOT NULL,
  ts TEXT NOT NULL,
  open REAL NOT NULL,
  high REAL NOT NULL,
  low REAL NOT NULL,
  close REAL NOT NULL,
  volume REAL NOT NULL,
  PRIMARY KEY (ticker, ts)
);`,
		`
CREATE TABLE IF NOT EXISTS engineered_features (
  ticker TEXT NOT NULL,
  ts TEXT NOT NULL,
` + fcols.String() + `  open_target INTEGER NOT NULL,
  close_target INTEGER NOT NULL,
  PRIMARY KEY (ticker, ts)
);`,
		`
CREATE TABLE IF NOT EXISTS pipeline_runs (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL,
  instruments INTEGER NOT NULL,
  row_count INTEGER NOT NULL,
  failures INTEGER NOT NULL,
  error TEXT
);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SaveBars upserts bars into historical_daily.
func (s *Store) SaveBars(ctx context.Context, bars []types.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT OR REPLACE INTO historical_daily (ticker, ts, open, high, low, close, volume)
VALUES (?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Symbol, b.Time.UTC().Format(tsLayout), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("save bar %s %s: %w", b.Symbol, b.Time.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

// LoadRaw returns every stored bar as a canonical frame, grouped by ticker in
// insertion-independent (sorted) order.
func (s *Store) LoadRaw(ctx context.Context) (dataset.Frame, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT ticker, ts, open, high, low, close, volume
FROM historical_daily
ORDER BY ticker, ts`)
	if err != nil {
		return dataset.Frame{}, err
	}
	defer rows.Close()

	var bars []types.Bar
	for rows.Next() {
		var (
			b  types.Bar
			ts string
		)
		if err := rows.Scan(&b.Symbol, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return dataset.Frame{}, err
		}
		if b.Time, err = time.Parse(tsLayout, ts); err != nil {
			return dataset.Frame{}, fmt.Errorf("bad ts %q for %s: %w", ts, b.Symbol, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return dataset.Frame{}, err
	}
	return dataset.FromBars(bars), nil
}

// ReplaceFeatures swaps the whole engineered feature table for rows.
func (s *Store) ReplaceFeatures(ctx context.Context, rows []types.FeatureRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM engineered_features`); err != nil {
		return err
	}

	marks := strings.TrimSuffix(strings.Repeat("?,", len(featureCols)+4), ",")
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO engineered_features (ticker, ts, `+strings.Join(featureCols, ", ")+`, open_target, close_target)
VALUES (`+marks+`)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		args := make([]any, 0, len(featureCols)+4)
		args = append(args, r.Symbol, r.Time.UTC().Format(tsLayout))
		for _, v := range features.Vector(r) {
			args = append(args, v)
		}
		args = append(args, r.OpenTarget, r.CloseTarget)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert features %s: %w", r.Symbol, err)
		}
	}
	return tx.Commit()
}

const featureSelect = `SELECT ticker, ts, open, high, low, close, volume,
  sma_20, sma_50, ema_20, ema_50, macd, macd_signal, macd_hist,
  rsi_14, bb_middle, bb_upper, bb_lower, atr_14, open_target, close_target
FROM engineered_features`

func scanFeature(rows *sql.Rows) (types.FeatureRow, error) {
	var (
		r  types.FeatureRow
		ts string
	)
	err := rows.Scan(&r.Symbol, &ts, &r.Open, &r.High, &r.Low, &r.Close, &r.Volume,
		&r.SMA20, &r.SMA50, &r.EMA20, &r.EMA50, &r.MACD, &r.MACDSignal, &r.MACDHist,
		&r.RSI14, &r.BBMiddle, &r.BBUpper, &r.BBLower, &r.ATR14, &r.OpenTarget, &r.CloseTarget)
	if err != nil {
		return r, err
	}
	r.Time, err = time.Parse(tsLayout, ts)
	return r, err
}

func collect(rows *sql.Rows) ([]types.FeatureRow, error) {
	defer rows.Close()
	var out []types.FeatureRow
	for rows.Next() {
		r, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadFeatures returns symbol's feature rows in chronological order, or every
// instrument's rows when symbol is empty.
func (s *Store) LoadFeatures(ctx context.Context, symbol string) ([]types.FeatureRow, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if symbol == "" {
		rows, err = s.db.QueryContext(ctx, featureSelect+` ORDER BY ticker, ts`)
	} else {
		rows, err = s.db.QueryContext(ctx, featureSelect+` WHERE ticker=? ORDER BY ts`, symbol)
	}
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// LatestFeatures returns the most recent feature row of every instrument.
func (s *Store) LatestFeatures(ctx context.Context) (map[string]types.FeatureRow, error) {
	rows, err := s.db.QueryContext(ctx, featureSelect+` f
WHERE ts = (SELECT MAX(ts) FROM engineered_features WHERE ticker = f.ticker)`)
	if err != nil {
		return nil, err
	}
	list, err := collect(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]types.FeatureRow, len(list))
	for _, r := range list {
		out[r.Symbol] = r
	}
	return out, nil
}

// Run is one recorded pipeline pass.
type Run struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Instruments int       `json:"instruments"`
	Rows        int       `json:"rows"`
	Failures    int       `json:"failures"`
	Error       string    `json:"error,omitempty"`
}

// RecordRun stores r, assigning an ID when it has none.
func (s *Store) RecordRun(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	var errStr *string
	if r.Error != "" {
		errStr = &r.Error
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO pipeline_runs (id, kind, started_at, finished_at, instruments, row_count, failures, error)
VALUES (?,?,?,?,?,?,?,?)`,
		r.ID, r.Kind, r.StartedAt.UTC().Format(time.RFC3339Nano), r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Instruments, r.Rows, r.Failures, errStr)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// ListRuns returns the newest runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, kind, started_at, finished_at, instruments, row_count, failures, error
FROM pipeline_runs
ORDER BY started_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r         Run
			start     string
			finish    string
			errString sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Kind, &start, &finish, &r.Instruments, &r.Rows, &r.Failures, &errString); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, start)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finish)
		if errString.Valid {
			r.Error = errString.String
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
