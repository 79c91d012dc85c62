package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"option-pricer/internal/errors"
	"option-pricer/internal/models"
)

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.NewStoreError("open database", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, errors.NewStoreError("initialize schema", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	CREATE TABLE IF NOT EXISTS valuations (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		symbol TEXT,
		kind TEXT NOT NULL,
		style TEXT NOT NULL,
		strike REAL NOT NULL,
		maturity REAL NOT NULL,
		spot REAL NOT NULL,
		rate REAL NOT NULL,
		vol REAL NOT NULL,
		dividend_yield REAL NOT NULL DEFAULT 0,
		method TEXT NOT NULL,
		steps INTEGER NOT NULL DEFAULT 0,
		paths INTEGER NOT NULL DEFAULT 0,
		seed INTEGER NOT NULL DEFAULT 0,
		price REAL NOT NULL,
		stderr REAL NOT NULL DEFAULT 0,
		ci_low REAL NOT NULL DEFAULT 0,
		ci_high REAL NOT NULL DEFAULT 0,
		note TEXT
	);

	CREATE TABLE IF NOT EXISTS greeks (
		valuation_id TEXT PRIMARY KEY,
		delta REAL NOT NULL,
		gamma REAL NOT NULL,
		vega REAL NOT NULL,
		theta REAL NOT NULL,
		rho REAL NOT NULL,
		method TEXT NOT NULL,
		bump_spot REAL,
		bump_vol REAL,
		bump_time REAL,
		bump_rate REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (valuation_id) REFERENCES valuations(id)
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_timeframe ON candles(symbol, timeframe);
	CREATE INDEX IF NOT EXISTS idx_candles_timestamp ON candles(timestamp);
	CREATE INDEX IF NOT EXISTS idx_valuations_symbol ON valuations(symbol);
	CREATE INDEX IF NOT EXISTS idx_valuations_created ON valuations(created_at);
	CREATE INDEX IF NOT EXISTS idx_valuations_method ON valuations(method);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveCandles writes candles in one transaction. Re-imports of the same
// (symbol, timeframe, timestamp) replace the stored row.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewStoreError("prepare candle insert", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, timeframe, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return errors.NewStoreError("insert candle", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStoreError("commit candles", err)
	}

	return nil
}

// Candles retrieves candles in the given time range in chronological order.
func (s *SQLiteStore) Candles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, timeframe, from, to)
	if err != nil {
		return nil, errors.NewStoreError("query candles", err)
	}
	defer rows.Close()

	return scanCandles(rows)
}

// RecentCandles retrieves the newest limit candles in chronological order.
func (s *SQLiteStore) RecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	if limit <= 0 {
		return nil, errors.NewParameterError("limit", limit, "must be positive")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, symbol, timeframe, limit)
	if err != nil {
		return nil, errors.NewStoreError("query recent candles", err)
	}
	defer rows.Close()

	candles, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}

	// The query walks newest first; flip back to chronological.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// CandlesFreshness returns the timestamp of the most recent stored candle.
// A zero time means no candles exist for the pair.
func (s *SQLiteStore) CandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error) {
	var timestamp sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM candles WHERE symbol = ? AND timeframe = ?
	`, symbol, timeframe).Scan(&timestamp)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, errors.NewStoreError("query candle freshness", err)
	}
	if !timestamp.Valid {
		return time.Time{}, nil
	}
	return timestamp.Time, nil
}

func scanCandles(rows *sql.Rows) ([]models.Candle, error) {
	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, errors.NewStoreError("scan candle", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate candles", err)
	}
	return candles, nil
}

// SaveValuation journals one pricing run. A missing ID or creation time is
// filled in.
func (s *SQLiteStore) SaveValuation(ctx context.Context, v *models.Valuation) error {
	if v.ID == "" {
		v.ID = NewValuationID()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO valuations (id, created_at, symbol, kind, style, strike, maturity, spot, rate, vol, dividend_yield, method, steps, paths, seed, price, stderr, ci_low, ci_high, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.CreatedAt, v.Symbol, string(v.Contract.Kind), string(v.Contract.Style),
		v.Contract.Strike, v.Contract.Maturity, v.Market.Spot, v.Market.Rate, v.Market.Vol,
		v.Market.DividendYield, string(v.Method), v.Steps, v.Paths, v.Seed,
		v.Price, v.StdErr, v.CILow, v.CIHigh, v.Note)
	if err != nil {
		return errors.NewStoreError("insert valuation", err)
	}
	return nil
}

const valuationColumns = "id, created_at, symbol, kind, style, strike, maturity, spot, rate, vol, dividend_yield, method, steps, paths, seed, price, stderr, ci_low, ci_high, note"

// Valuations queries the journal, newest first.
func (s *SQLiteStore) Valuations(ctx context.Context, filter ValuationFilter) ([]models.Valuation, error) {
	query := "SELECT " + valuationColumns + " FROM valuations WHERE 1=1"
	args := []interface{}{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Method != "" {
		query += " AND method = ?"
		args = append(args, string(filter.Method))
	}
	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(filter.Kind))
	}
	if !filter.StartDate.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, filter.EndDate)
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStoreError("query valuations", err)
	}
	defer rows.Close()

	var valuations []models.Valuation
	for rows.Next() {
		v, err := scanValuation(rows.Scan)
		if err != nil {
			return nil, err
		}
		valuations = append(valuations, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("iterate valuations", err)
	}
	return valuations, nil
}

// ValuationByID fetches one journal entry.
func (s *SQLiteStore) ValuationByID(ctx context.Context, id string) (*models.Valuation, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+valuationColumns+" FROM valuations WHERE id = ?", id)
	v, err := scanValuation(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewStoreError("get valuation", errors.ErrDataNotFound)
		}
		return nil, err
	}
	return v, nil
}

// PruneValuations removes journal entries (and their Greeks) created before
// the cutoff, returning the number of valuations removed.
func (s *SQLiteStore) PruneValuations(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewStoreError("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM greeks WHERE valuation_id IN (SELECT id FROM valuations WHERE created_at < ?)
	`, before); err != nil {
		return 0, errors.NewStoreError("prune greeks", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM valuations WHERE created_at < ?", before)
	if err != nil {
		return 0, errors.NewStoreError("prune valuations", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewStoreError("count pruned valuations", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewStoreError("commit prune", err)
	}
	return removed, nil
}

func scanValuation(scan func(...interface{}) error) (*models.Valuation, error) {
	var v models.Valuation
	var kind, style, method string
	err := scan(&v.ID, &v.CreatedAt, &v.Symbol, &kind, &style,
		&v.Contract.Strike, &v.Contract.Maturity, &v.Market.Spot, &v.Market.Rate, &v.Market.Vol,
		&v.Market.DividendYield, &method, &v.Steps, &v.Paths, &v.Seed,
		&v.Price, &v.StdErr, &v.CILow, &v.CIHigh, &v.Note)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, errors.NewStoreError("scan valuation", err)
	}
	v.Contract.Kind = models.OptionKind(kind)
	v.Contract.Style = models.ExerciseStyle(style)
	v.Method = models.Method(method)
	return &v, nil
}

// SaveGreeks attaches a Greek set to a journaled valuation, replacing any
// earlier set.
func (s *SQLiteStore) SaveGreeks(ctx context.Context, valuationID string, g *models.GreeksResult) error {
	var bumpSpot, bumpVol, bumpTime, bumpRate interface{}
	if g.Bumps != nil {
		bumpSpot, bumpVol, bumpTime, bumpRate = g.Bumps.Spot, g.Bumps.Vol, g.Bumps.Time, g.Bumps.Rate
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO greeks (valuation_id, delta, gamma, vega, theta, rho, method, bump_spot, bump_vol, bump_time, bump_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, valuationID, g.Delta, g.Gamma, g.Vega, g.Theta, g.Rho, string(g.Method),
		bumpSpot, bumpVol, bumpTime, bumpRate)
	if err != nil {
		return errors.NewStoreError("insert greeks", err)
	}
	return nil
}

// GreeksFor fetches the Greek set attached to a valuation.
func (s *SQLiteStore) GreeksFor(ctx context.Context, valuationID string) (*models.GreeksResult, error) {
	var g models.GreeksResult
	var method string
	var bumpSpot, bumpVol, bumpTime, bumpRate sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT delta, gamma, vega, theta, rho, method, bump_spot, bump_vol, bump_time, bump_rate
		FROM greeks WHERE valuation_id = ?
	`, valuationID).Scan(&g.Delta, &g.Gamma, &g.Vega, &g.Theta, &g.Rho, &method,
		&bumpSpot, &bumpVol, &bumpTime, &bumpRate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewStoreError("get greeks", errors.ErrDataNotFound)
		}
		return nil, errors.NewStoreError("scan greeks", err)
	}

	g.Method = models.GreeksMethod(method)
	if bumpSpot.Valid {
		g.Bumps = &models.BumpSizes{
			Spot: bumpSpot.Float64,
			Vol:  bumpVol.Float64,
			Time: bumpTime.Float64,
			Rate: bumpRate.Float64,
		}
	}
	return &g, nil
}
