package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"backchart/internal/market"
)

// SQLiteStore 基于 sqlite 的持久化实现，K 线与交易各一张表。
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLite 打开（或创建）数据库并执行迁移。
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path 不能为空")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			open_time INTEGER NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			volume REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (symbol, interval, open_time)
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			interval TEXT NOT NULL,
			entry_time INTEGER NOT NULL,
			entry_price REAL NOT NULL,
			exit_time INTEGER,
			exit_price REAL,
			side TEXT NOT NULL,
			position_mode TEXT,
			pnl REAL,
			pnl_pct REAL,
			PRIMARY KEY (symbol, interval, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candles_series ON candles(symbol, interval, open_time)`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(context.Background(), q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close 关闭底层连接。
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()
	if db == nil {
		return nil
	}
	return db.Close()
}

func (s *SQLiteStore) handle() (*sql.DB, error) {
	s.mu.Lock()
	db := s.db
	s.mu.Unlock()
	if db == nil {
		return nil, fmt.Errorf("sqlite store 未初始化")
	}
	return db, nil
}

// Put 按 (symbol, interval, open_time) 幂等写入，再裁剪到最近 max 根。
func (s *SQLiteStore) Put(ctx context.Context, symbol, interval string, ks []market.Candle, max int) error {
	if symbol == "" || interval == "" {
		return fmt.Errorf("symbol/interval 不能为空")
	}
	if len(ks) == 0 {
		return nil
	}
	if max <= 0 {
		max = market.MaxRenderCandles
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, interval, open_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, interval, open_time) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low,
			close=excluded.close, volume=excluded.volume`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range ks {
		if _, err := stmt.ExecContext(ctx, symbol, interval, c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return err
		}
	}
	_, err = tx.ExecContext(ctx, `
		DELETE FROM candles
		WHERE symbol=? AND interval=? AND open_time NOT IN (
			SELECT open_time FROM candles WHERE symbol=? AND interval=?
			ORDER BY open_time DESC LIMIT ?
		)`, symbol, interval, symbol, interval, max)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Get 按时间升序返回整条序列。
func (s *SQLiteStore) Get(ctx context.Context, symbol, interval string) ([]market.Candle, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT open_time, open, high, low, close, volume FROM candles
		WHERE symbol=? AND interval=? ORDER BY open_time ASC`, symbol, interval)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []market.Candle
	for rows.Next() {
		var c market.Candle
		if err := rows.Scan(&c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Export 返回最近 limit 根 K 线（按时间升序）。
func (s *SQLiteStore) Export(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		return nil, nil
	}
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT open_time, open, high, low, close, volume FROM (
			SELECT * FROM candles WHERE symbol=? AND interval=?
			ORDER BY open_time DESC LIMIT ?
		) ORDER BY open_time ASC`, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []market.Candle
	for rows.Next() {
		var c market.Candle
		if err := rows.Scan(&c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveTrades 全量替换指定序列的交易记录。
func (s *SQLiteStore) SaveTrades(ctx context.Context, symbol, interval string, trades []market.Trade) error {
	if symbol == "" || interval == "" {
		return fmt.Errorf("symbol/interval 不能为空")
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM trades WHERE symbol=? AND interval=?`, symbol, interval); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (id, symbol, interval, entry_time, entry_price, exit_time, exit_price, side, position_mode, pnl, pnl_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, t := range trades {
		var exitTime, exitPrice any
		if t.HasExit() {
			exitTime, exitPrice = t.ExitTime, t.ExitPrice
		}
		var mode any
		if !t.Legacy() {
			mode = string(t.PositionMode)
		}
		if _, err := stmt.ExecContext(ctx, t.ID, symbol, interval,
			t.EntryTime, t.EntryPrice, exitTime, exitPrice,
			string(t.Side), mode, t.PnL, t.PnLPercentage); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadTrades 按入场时间升序返回交易记录；NULL 字段映射回零值/旧版形态。
func (s *SQLiteStore) LoadTrades(ctx context.Context, symbol, interval string) ([]market.Trade, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, entry_time, entry_price, exit_time, exit_price, side, position_mode, pnl, pnl_pct
		FROM trades WHERE symbol=? AND interval=? ORDER BY entry_time ASC`, symbol, interval)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []market.Trade
	for rows.Next() {
		var (
			t         market.Trade
			side      string
			exitTime  sql.NullInt64
			exitPrice sql.NullFloat64
			mode      sql.NullString
			pnl       sql.NullFloat64
			pnlPct    sql.NullFloat64
		)
		if err := rows.Scan(&t.ID, &t.EntryTime, &t.EntryPrice, &exitTime, &exitPrice, &side, &mode, &pnl, &pnlPct); err != nil {
			return nil, err
		}
		t.Side = market.TradeSide(side)
		if exitTime.Valid && exitPrice.Valid {
			t.ExitTime = exitTime.Int64
			t.ExitPrice = exitPrice.Float64
		}
		if mode.Valid {
			t.PositionMode = market.ParsePositionMode(mode.String)
		}
		if pnl.Valid {
			t.PnL = pnl.Float64
		}
		if pnlPct.Valid {
			t.PnLPercentage = pnlPct.Float64
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

var (
	_ KlineStore       = (*SQLiteStore)(nil)
	_ TradeStore       = (*SQLiteStore)(nil)
	_ SnapshotExporter = (*SQLiteStore)(nil)
	_ KlineStore       = (*MemoryStore)(nil)
	_ TradeStore       = (*MemoryStore)(nil)
	_ SnapshotExporter = (*MemoryStore)(nil)
)
