package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"delta-hedge-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

type ExposureRow struct {
	Time            time.Time
	TotalDelta      float64
	DeltaPercentage float64
	Notional        float64
	PositionCount   int
}

type TradeRow struct {
	Time        time.Time
	TradeID     string
	OrderID     string
	Side        string
	Size        float64
	DeltaBefore float64
	TotalTrades int64
}

type Writer struct {
	db          *sql.DB
	log         *zap.Logger
	schema      string
	exposures   chan ExposureRow
	trades      chan TradeRow
	started     atomic.Bool
	dropExposed atomic.Uint64
	dropTrade   atomic.Uint64
}

// New connects to the database and ensures the tables exist. It returns a
// nil Writer when timescale is disabled; a nil Writer ignores all calls.
func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	writer := newWriter(db, schema, cfg.QueueSize, log)
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func newWriter(db *sql.DB, schema string, queueSize int, log *zap.Logger) *Writer {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		db:        db,
		log:       log,
		schema:    schema,
		exposures: make(chan ExposureRow, queueSize),
		trades:    make(chan TradeRow, queueSize),
	}
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueExposure(row ExposureRow) {
	if w == nil {
		return
	}
	select {
	case w.exposures <- row:
	default:
		if w.dropExposed.Add(1) == 1 {
			w.log.Warn("timescale exposure queue full")
		}
	}
}

func (w *Writer) EnqueueTrade(row TradeRow) {
	if w == nil {
		return
	}
	select {
	case w.trades <- row:
	default:
		if w.dropTrade.Add(1) == 1 {
			w.log.Warn("timescale trade queue full")
		}
	}
}

// Dropped reports how many rows were discarded because a queue was full.
func (w *Writer) Dropped() uint64 {
	if w == nil {
		return 0
	}
	return w.dropExposed.Load() + w.dropTrade.Load()
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case row := <-w.exposures:
			w.writeExposure(ctx, row)
		case row := <-w.trades:
			w.writeTrade(ctx, row)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		total_delta DOUBLE PRECISION NOT NULL,
		delta_percentage DOUBLE PRECISION NOT NULL,
		notional DOUBLE PRECISION NOT NULL,
		position_count INTEGER NOT NULL
	)`, w.table("exposure_snapshots"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		trade_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		side TEXT NOT NULL,
		size DOUBLE PRECISION NOT NULL,
		delta_before DOUBLE PRECISION NOT NULL,
		total_trades BIGINT NOT NULL,
		PRIMARY KEY (ts, trade_id)
	)`, w.table("hedge_trades"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		w.log.Warn("timescale extension ensure failed", zap.Error(err))
		return nil
	}
	for _, name := range []string{"exposure_snapshots", "hedge_trades"} {
		if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table(name))); err != nil {
			w.log.Warn("timescale hypertable create failed", zap.String("table", name), zap.Error(err))
		}
	}
	return nil
}

func (w *Writer) writeExposure(ctx context.Context, row ExposureRow) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, total_delta, delta_percentage, notional, position_count
	) VALUES ($1,$2,$3,$4,$5)`, w.table("exposure_snapshots"))
	if _, err := w.db.ExecContext(ctx, query,
		row.Time,
		row.TotalDelta,
		row.DeltaPercentage,
		row.Notional,
		row.PositionCount,
	); err != nil {
		w.log.Warn("timescale exposure insert failed", zap.Error(err))
	}
}

func (w *Writer) writeTrade(ctx context.Context, row TradeRow) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, trade_id, order_id, side, size, delta_before, total_trades
	) VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (ts, trade_id) DO NOTHING`, w.table("hedge_trades"))
	if _, err := w.db.ExecContext(ctx, query,
		row.Time,
		row.TradeID,
		row.OrderID,
		row.Side,
		row.Size,
		row.DeltaBefore,
		row.TotalTrades,
	); err != nil {
		w.log.Warn("timescale trade insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
