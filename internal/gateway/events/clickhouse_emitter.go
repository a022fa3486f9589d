package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/edgelift/gateway/internal/common/configtypes"
)

const (
	defaultCHTable         = "rewrite_events"
	defaultCHBatchSize     = 100
	defaultCHFlushInterval = 5 * time.Second
	chFlushTimeout         = 10 * time.Second
)

// ClickHouseEmitter writes events to a ClickHouse table in batches. Events are
// buffered in memory and flushed when the batch fills or the flush interval
// elapses. The buffer is bounded; when ClickHouse falls behind, events are
// dropped rather than blocking request handling.
//
// Expected table layout (column order matters for the batch insert):
//
//	CREATE TABLE rewrite_events (
//	    created_at         DateTime64(3),
//	    rg_instance_id     String,
//	    request_id         String,
//	    host               String,
//	    host_id            Int32,
//	    url                String,
//	    event_type         LowCardinality(String),
//	    user_agent         String,
//	    client_ip          String,
//	    matched_rule       String,
//	    status_code        Int32,
//	    page_size          Int64,
//	    serve_time         Float64,
//	    origin_time        Float64,
//	    entitlement_source LowCardinality(String),
//	    error_type         LowCardinality(String),
//	    error_message      String,
//	    urls_rewritten     Int32,
//	    urls_skipped       Int32,
//	    unsafe_context     UInt8,
//	    script_injected    UInt8,
//	    rewrite_duration   Float64
//	) ENGINE = MergeTree ORDER BY (host, created_at)
type ClickHouseEmitter struct {
	conn          driver.Conn
	table         string
	batchSize     int
	flushInterval time.Duration
	events        chan *RequestEvent
	done          chan struct{}
	wg            sync.WaitGroup
	logger        *zap.Logger
}

// NewClickHouseEmitter connects to ClickHouse and starts the flush worker.
// A failed ping is logged but not fatal: inserts are retried on every flush,
// so a ClickHouse restart does not take the gateway down with it.
func NewClickHouseEmitter(config configtypes.EventClickHouseConfig, logger *zap.Logger) (*ClickHouseEmitter, error) {
	opts, err := clickhouse.ParseDSN(config.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid clickhouse dsn: %w", err)
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("clickhouse connection failed: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		logger.Warn("ClickHouse ping failed, will retry on flush", zap.Error(err))
	}

	table := config.Table
	if table == "" {
		table = defaultCHTable
	}

	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = defaultCHBatchSize
	}

	flushInterval := config.FlushInterval.ToDuration()
	if flushInterval <= 0 {
		flushInterval = defaultCHFlushInterval
	}

	bufferSize := batchSize * 4
	if bufferSize < 256 {
		bufferSize = 256
	}

	e := &ClickHouseEmitter{
		conn:          conn,
		table:         table,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		events:        make(chan *RequestEvent, bufferSize),
		done:          make(chan struct{}),
		logger:        logger,
	}

	e.wg.Add(1)
	go e.run()

	logger.Info("ClickHouse event emitter started",
		zap.String("table", table),
		zap.Int("batch_size", batchSize),
		zap.Duration("flush_interval", flushInterval))

	return e, nil
}

// Emit queues the event for the next batch. Never blocks: when the buffer is
// full the event is dropped and a warning logged.
func (e *ClickHouseEmitter) Emit(event *RequestEvent) {
	select {
	case e.events <- event:
	default:
		e.logger.Warn("ClickHouse event buffer full, dropping event",
			zap.String("request_id", event.RequestID))
	}
}

// Close stops the flush worker, flushes remaining events and closes the connection.
func (e *ClickHouseEmitter) Close() error {
	close(e.done)
	e.wg.Wait()
	return e.conn.Close()
}

func (e *ClickHouseEmitter) run() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.flushInterval)
	defer ticker.Stop()

	pending := make([]*RequestEvent, 0, e.batchSize)

	for {
		select {
		case event := <-e.events:
			pending = append(pending, event)
			if len(pending) >= e.batchSize {
				e.flush(pending)
				pending = pending[:0]
			}

		case <-ticker.C:
			if len(pending) > 0 {
				e.flush(pending)
				pending = pending[:0]
			}

		case <-e.done:
			// Drain whatever is buffered, then do a final flush
			for {
				select {
				case event := <-e.events:
					pending = append(pending, event)
				default:
					if len(pending) > 0 {
						e.flush(pending)
					}
					return
				}
			}
		}
	}
}

// flush inserts the pending events as one batch. Errors drop the batch: event
// logging must never back-pressure into request handling.
func (e *ClickHouseEmitter) flush(pending []*RequestEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), chFlushTimeout)
	defer cancel()

	batch, err := e.conn.PrepareBatch(ctx, "INSERT INTO "+e.table)
	if err != nil {
		e.logger.Warn("ClickHouse batch preparation failed, dropping events",
			zap.Error(err),
			zap.Int("dropped", len(pending)))
		return
	}

	for _, ev := range pending {
		var urlsRewritten, urlsSkipped int32
		var unsafeContext, scriptInjected uint8
		var rewriteDuration float64
		if ev.Rewrite != nil {
			urlsRewritten = int32(ev.Rewrite.URLsRewritten)
			urlsSkipped = int32(ev.Rewrite.URLsSkipped)
			unsafeContext = boolToUint8(ev.Rewrite.UnsafeContext)
			scriptInjected = boolToUint8(ev.Rewrite.ScriptInjected)
			rewriteDuration = ev.Rewrite.Duration
		}

		if err := batch.Append(
			ev.CreatedAt,
			ev.RgInstanceID,
			ev.RequestID,
			ev.Host,
			int32(ev.HostID),
			ev.URL,
			ev.EventType,
			ev.UserAgent,
			ev.ClientIP,
			ev.MatchedRule,
			int32(ev.StatusCode),
			ev.PageSize,
			ev.ServeTime,
			ev.OriginTime,
			ev.EntitlementSource,
			ev.ErrorType,
			ev.ErrorMessage,
			urlsRewritten,
			urlsSkipped,
			unsafeContext,
			scriptInjected,
			rewriteDuration,
		); err != nil {
			e.logger.Warn("ClickHouse batch append failed, skipping event",
				zap.Error(err),
				zap.String("request_id", ev.RequestID))
		}
	}

	if err := batch.Send(); err != nil {
		e.logger.Warn("ClickHouse batch insert failed, dropping events",
			zap.Error(err),
			zap.Int("dropped", len(pending)))
		return
	}

	e.logger.Debug("ClickHouse batch inserted", zap.Int("events", len(pending)))
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
