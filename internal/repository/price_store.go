package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"RiskDesk/internal/domain/models"
	domrepo "RiskDesk/internal/domain/repository"
	pkgch "RiskDesk/pkg/clickhouse"
	applogger "RiskDesk/pkg/logger"
)

// CHPriceStore implements PriceHistoryStore over ClickHouse candle tables
// named <prefix>_<timeframe>, e.g. market.candles_1d.
type CHPriceStore struct {
	db       *sql.DB
	database string
	prefix   string
	l        *applogger.Logger
}

var _ domrepo.PriceHistoryStore = (*CHPriceStore)(nil)

func NewCHPriceStore(ch *pkgch.Client, database, prefix string, l *applogger.Logger) *CHPriceStore {
	if prefix == "" {
		prefix = "candles"
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHPriceStore{db: ch.DB(), database: database, prefix: prefix, l: l}
}

func (s *CHPriceStore) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	table, err := s.tableFor(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, symbol, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `
	start := time.Now()
	out, err := s.query(ctx, fmt.Sprintf(qtpl, table), 256, symbol, from.UTC(), to.UTC())
	if err != nil {
		s.l.Error("clickhouse get_candles failed",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Error(err))
		return nil, fmt.Errorf("get candles: %w", err)
	}
	s.l.Debug("clickhouse get_candles ok",
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)))
	return out, nil
}

func (s *CHPriceStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	if n <= 0 {
		return nil, nil
	}
	table, err := s.tableFor(tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT bucket, symbol, open, high, low, close, volume
        FROM %s
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	out, err := s.query(ctx, fmt.Sprintf(qtpl, table), n, symbol, n)
	if err != nil {
		s.l.Error("clickhouse latest_candles failed",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Int("limit", n),
			applogger.Error(err))
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *CHPriceStore) query(ctx context.Context, q string, sizeHint int, args ...any) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Candle, 0, sizeHint)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Bucket = c.Bucket.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHPriceStore) tableFor(tf domrepo.Timeframe) (string, error) {
	if !domrepo.IsValidTimeframe(tf) {
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return tableName(s.database, s.prefix, tf), nil
}

func tableName(database, prefix string, tf domrepo.Timeframe) string {
	if database == "" {
		return fmt.Sprintf("%s_%s", prefix, tf)
	}
	return fmt.Sprintf("%s.%s_%s", database, prefix, tf)
}
