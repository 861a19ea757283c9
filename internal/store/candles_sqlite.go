package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"tradeduel/internal/market"

	_ "modernc.org/sqlite"
)

const candleSchema = `
CREATE TABLE IF NOT EXISTS candles (
	series      TEXT    NOT NULL,
	ts          INTEGER NOT NULL,
	open        REAL    NOT NULL,
	high        REAL    NOT NULL,
	low         REAL    NOT NULL,
	close       REAL    NOT NULL,
	volume      INTEGER NOT NULL,
	rsi         REAL    NOT NULL,
	sma20       REAL    NOT NULL,
	sma50       REAL    NOT NULL,
	macd        REAL    NOT NULL,
	macd_signal REAL    NOT NULL,
	macd_diff   REAL    NOT NULL,
	PRIMARY KEY (series, ts)
);`

// CandleDB exports annotated candle series into a SQLite file.
type CandleDB struct {
	db   *sql.DB
	path string
}

func OpenCandleDB(path string) (*CandleDB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("candle db: 路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(candleSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("candle db schema: %w", err)
	}
	return &CandleDB{db: db, path: path}, nil
}

func (c *CandleDB) Path() string { return c.path }

func (c *CandleDB) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// ReplaceSeries rewrites every row of name in one transaction.
func (c *CandleDB) ReplaceSeries(ctx context.Context, name string, series []market.Candle) (err error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM candles WHERE series = ?`, name); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO candles
		(series, ts, open, high, low, close, volume, rsi, sma20, sma50, macd, macd_signal, macd_diff)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, k := range series {
		if _, err = stmt.ExecContext(ctx, name, k.Timestamp, k.Open, k.High, k.Low, k.Close, k.Volume,
			k.RSI, k.SMA20, k.SMA50, k.MACD, k.MACDSignal, k.MACDDiff); err != nil {
			return fmt.Errorf("insert candle %d: %w", k.Timestamp, err)
		}
	}
	return tx.Commit()
}

// Series reads name back in timestamp order.
func (c *CandleDB) Series(ctx context.Context, name string) ([]market.Candle, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT ts, open, high, low, close, volume, rsi, sma20, sma50, macd, macd_signal, macd_diff
		FROM candles WHERE series = ? ORDER BY ts ASC`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []market.Candle
	for rows.Next() {
		var k market.Candle
		if err := rows.Scan(&k.Timestamp, &k.Open, &k.High, &k.Low, &k.Close, &k.Volume,
			&k.RSI, &k.SMA20, &k.SMA50, &k.MACD, &k.MACDSignal, &k.MACDDiff); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
