package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/newthinker/tradesim/internal/backtest"
	"github.com/newthinker/tradesim/internal/core"
	"github.com/newthinker/tradesim/internal/ledger"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	strategy       TEXT NOT NULL,
	symbols        TEXT NOT NULL,
	start_date     TEXT NOT NULL,
	end_date       TEXT NOT NULL,
	seed           INTEGER NOT NULL,
	capital        REAL NOT NULL,
	ending_balance REAL,
	net_profit     REAL,
	total_return   REAL,
	max_drawdown   REAL,
	sharpe         REAL,
	total_trades   INTEGER NOT NULL,
	recorded_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_strategy ON runs(strategy);

CREATE TABLE IF NOT EXISTS fills (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	seq        INTEGER NOT NULL,
	date       TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	action     TEXT NOT NULL,
	direction  TEXT NOT NULL,
	price      REAL NOT NULL,
	shares     INTEGER NOT NULL,
	requested  INTEGER NOT NULL,
	commission REAL NOT NULL,
	pnl        REAL NOT NULL,
	cash       REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS trades (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	idx         INTEGER NOT NULL,
	round_trip  INTEGER NOT NULL,
	symbol      TEXT NOT NULL,
	direction   TEXT NOT NULL,
	entry_date  TEXT NOT NULL,
	entry_price REAL NOT NULL,
	exit_date   TEXT NOT NULL,
	exit_price  REAL NOT NULL,
	shares      INTEGER NOT NULL,
	pnl         REAL NOT NULL,
	pct_return  REAL,
	bars_held   INTEGER NOT NULL,
	PRIMARY KEY (run_id, idx)
);

CREATE TABLE IF NOT EXISTS equity (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	date     TEXT NOT NULL,
	high     REAL NOT NULL,
	low      REAL NOT NULL,
	equity   REAL NOT NULL,
	drawdown REAL NOT NULL,
	PRIMARY KEY (run_id, date)
);
`

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// OpenSQLite opens (creating if needed) the journal at path. Use ":memory:"
// for a throwaway journal.
func OpenSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("open journal %s: %w", path, err))
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("create schema: %w", err))
	}
	return &SQLite{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// RecordRun writes the run and its rows in one transaction.
func (s *SQLite) RecordRun(ctx context.Context, result *backtest.Result) error {
	run := runOf(result, s.now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, strategy, symbols, start_date, end_date, seed, capital,
			ending_balance, net_profit, total_return, max_drawdown, sharpe, total_trades, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, strings.Join(run.Symbols, ","),
		run.Start.Format(core.DateLayout), run.End.Format(core.DateLayout),
		int64(run.Seed), run.Capital,
		nullable(run.EndingBalance), nullable(run.NetProfit), nullable(run.TotalReturn),
		nullable(run.MaxDrawdown), nullable(run.Sharpe), run.TotalTrades,
		run.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return storageErr("insert run "+run.ID, err)
	}

	if err := insertFills(ctx, tx, run.ID, result.Raw); err != nil {
		return err
	}
	if err := insertTrades(ctx, tx, run.ID, result.Trades); err != nil {
		return err
	}
	if err := insertEquity(ctx, tx, run.ID, result.Equity); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	s.logger.Debug("run recorded",
		zap.String("run_id", run.ID),
		zap.Int("fills", len(result.Raw)),
		zap.Int("trades", len(result.Trades)),
	)
	return nil
}

func insertFills(ctx context.Context, tx *sql.Tx, id string, raw []ledger.RawEntry) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fills (run_id, seq, date, symbol, action, direction, price, shares,
			requested, commission, pnl, cash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return storageErr("prepare fills", err)
	}
	defer stmt.Close()

	for _, e := range raw {
		_, err := stmt.ExecContext(ctx, id, e.Seq, e.Date.Format(core.DateLayout), e.Symbol,
			string(e.Action), string(e.Direction), e.Price, e.Shares, e.Requested,
			e.Commission, e.PnL, e.Cash)
		if err != nil {
			return storageErr("insert fill", err)
		}
	}
	return nil
}

func insertTrades(ctx context.Context, tx *sql.Tx, id string, trades []ledger.Trade) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (run_id, idx, round_trip, symbol, direction, entry_date, entry_price,
			exit_date, exit_price, shares, pnl, pct_return, bars_held)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return storageErr("prepare trades", err)
	}
	defer stmt.Close()

	for i, t := range trades {
		_, err := stmt.ExecContext(ctx, id, i, t.RoundTrip, t.Symbol, string(t.Direction),
			t.EntryDate.Format(core.DateLayout), t.EntryPrice,
			t.ExitDate.Format(core.DateLayout), t.ExitPrice,
			t.Shares, t.PnL, nullable(t.PctReturn), t.BarsHeld)
		if err != nil {
			return storageErr("insert trade", err)
		}
	}
	return nil
}

func insertEquity(ctx context.Context, tx *sql.Tx, id string, rows []ledger.EquityRow) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO equity (run_id, date, high, low, equity, drawdown)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return storageErr("prepare equity", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx, id, r.Date.Format(core.DateLayout),
			r.High, r.Low, r.Equity, r.Drawdown)
		if err != nil {
			return storageErr("insert equity", err)
		}
	}
	return nil
}

const runColumns = `id, strategy, symbols, start_date, end_date, seed, capital,
	ending_balance, net_profit, total_return, max_drawdown, sharpe, total_trades, recorded_at`

// GetRun retrieves a run by ID.
func (s *SQLite) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.Errorf(core.ErrNoData, "run %s", id)
	}
	if err != nil {
		return nil, storageErr("get run "+id, err)
	}
	return &run, nil
}

// ListRuns returns runs matching the filter, newest first.
func (s *SQLite) ListRuns(ctx context.Context, filter ListFilter) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if filter.Strategy != "" {
		query += ` WHERE strategy = ?`
		args = append(args, filter.Strategy)
	}
	query += ` ORDER BY rowid DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	} else if filter.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list runs", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, storageErr("scan run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list runs", err)
	}
	return runs, nil
}

// Trades returns the trades recorded for a run in recorded order.
func (s *SQLite) Trades(ctx context.Context, id string) ([]ledger.Trade, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT round_trip, symbol, direction, entry_date, entry_price, exit_date, exit_price,
			shares, pnl, pct_return, bars_held
		FROM trades WHERE run_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, storageErr("query trades", err)
	}
	defer rows.Close()

	trades := []ledger.Trade{}
	for rows.Next() {
		var (
			t                 ledger.Trade
			direction         string
			entryDate, exitDt string
			pct               sql.NullFloat64
		)
		err := rows.Scan(&t.RoundTrip, &t.Symbol, &direction, &entryDate, &t.EntryPrice,
			&exitDt, &t.ExitPrice, &t.Shares, &t.PnL, &pct, &t.BarsHeld)
		if err != nil {
			return nil, storageErr("scan trade", err)
		}
		t.Direction = core.Direction(direction)
		t.PctReturn = floatOrNaN(pct)
		if t.EntryDate, err = time.Parse(core.DateLayout, entryDate); err != nil {
			return nil, storageErr("parse entry date", err)
		}
		if t.ExitDate, err = time.Parse(core.DateLayout, exitDt); err != nil {
			return nil, storageErr("parse exit date", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Count returns the number of matching runs.
func (s *SQLite) Count(ctx context.Context, filter ListFilter) (int, error) {
	query := `SELECT COUNT(*) FROM runs`
	var args []any
	if filter.Strategy != "" {
		query += ` WHERE strategy = ?`
		args = append(args, filter.Strategy)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, storageErr("count runs", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run                                  Run
		symbols, start, end, recorded        string
		seed                                 int64
		ending, net, total, drawdown, sharpe sql.NullFloat64
	)
	err := sc.Scan(&run.ID, &run.Strategy, &symbols, &start, &end, &seed, &run.Capital,
		&ending, &net, &total, &drawdown, &sharpe, &run.TotalTrades, &recorded)
	if err != nil {
		return Run{}, err
	}
	if symbols != "" {
		run.Symbols = strings.Split(symbols, ",")
	}
	run.Seed = uint64(seed)
	run.EndingBalance = floatOrNaN(ending)
	run.NetProfit = floatOrNaN(net)
	run.TotalReturn = floatOrNaN(total)
	run.MaxDrawdown = floatOrNaN(drawdown)
	run.Sharpe = floatOrNaN(sharpe)
	if run.Start, err = time.Parse(core.DateLayout, start); err != nil {
		return Run{}, err
	}
	if run.End, err = time.Parse(core.DateLayout, end); err != nil {
		return Run{}, err
	}
	if run.RecordedAt, err = time.Parse(time.RFC3339Nano, recorded); err != nil {
		return Run{}, err
	}
	return run, nil
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func storageErr(op string, err error) error {
	return core.WrapError(core.ErrStorageFailed, fmt.Errorf("%s: %w", op, err))
}
