package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"jlp-hedge-bot/internal/bot"
	"jlp-hedge-bot/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

type cycleRecord struct {
	at  time.Time
	res bot.CycleResult
}

// Writer persists cycle outcomes to Postgres for later analysis. Records are
// queued and written by a background goroutine so a slow database never
// blocks the scheduler; when the queue is full the record is dropped.
// A nil Writer is a valid no-op recorder.
type Writer struct {
	db      *sql.DB
	log     *zap.Logger
	schema  string
	cycles  chan cycleRecord
	started atomic.Bool
	dropped atomic.Uint64
}

func New(cfg config.HistoryConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("history dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:     db,
		log:    log,
		schema: schema,
		cycles: make(chan cycleRecord, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
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

// Record enqueues one cycle outcome. Satisfies the scheduler's Recorder.
func (w *Writer) Record(res bot.CycleResult) {
	if w == nil {
		return
	}
	select {
	case w.cycles <- cycleRecord{at: time.Now().UTC(), res: res}:
	default:
		if w.dropped.Add(1) == 1 && w.log != nil {
			w.log.Warn("history queue full, dropping cycle records")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-w.cycles:
			w.writeCycle(ctx, rec)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("history db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		bot_id TEXT NOT NULL,
		status TEXT NOT NULL,
		rebalanced BOOLEAN NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		elapsed_ms BIGINT NOT NULL
	)`, w.table("hedge_cycles"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		bot_id TEXT NOT NULL,
		asset TEXT NOT NULL,
		adjustment DOUBLE PRECISION NOT NULL,
		deviation_pct DOUBLE PRECISION NOT NULL,
		skipped BOOLEAN NOT NULL,
		skip_reason TEXT NOT NULL DEFAULT '',
		tx_id TEXT NOT NULL DEFAULT '',
		direction TEXT NOT NULL DEFAULT '',
		filled DOUBLE PRECISION NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	)`, w.table("hedge_adjustments"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	for _, table := range []string{"hedge_cycles", "hedge_adjustments"} {
		query := fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table(table))
		if err := w.exec(ctx, query); err != nil && w.log != nil {
			w.log.Warn("hypertable create failed", zap.String("table", table), zap.Error(err))
		}
	}
	return nil
}

func (w *Writer) writeCycle(ctx context.Context, rec cycleRecord) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, bot_id, status, rebalanced, error, elapsed_ms
	) VALUES ($1,$2,$3,$4,$5,$6)`, w.table("hedge_cycles"))
	if _, err := w.db.ExecContext(ctx, query,
		rec.at,
		rec.res.BotID,
		string(rec.res.Status),
		rec.res.Rebalanced,
		rec.res.Error,
		rec.res.Elapsed.Milliseconds(),
	); err != nil {
		if w.log != nil {
			w.log.Warn("history cycle insert failed", zap.Error(err))
		}
		return
	}
	for asset, outcome := range rec.res.Outcomes {
		w.writeAdjustment(ctx, rec, string(asset), outcome)
	}
}

func (w *Writer) writeAdjustment(ctx context.Context, rec cycleRecord, asset string, outcome bot.AssetOutcome) {
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, bot_id, asset, adjustment, deviation_pct, skipped, skip_reason,
		tx_id, direction, filled, error
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, w.table("hedge_adjustments"))
	var txID, direction string
	var filled float64
	if outcome.Order != nil {
		txID = outcome.Order.TxID
		direction = outcome.Order.Direction
		filled = outcome.Order.Filled
	}
	if _, err := w.db.ExecContext(ctx, query,
		rec.at,
		rec.res.BotID,
		asset,
		outcome.Adjustment,
		outcome.Deviation,
		outcome.Skipped,
		outcome.SkipReason,
		txID,
		direction,
		filled,
		outcome.Error,
	); err != nil && w.log != nil {
		w.log.Warn("history adjustment insert failed", zap.Error(err))
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
