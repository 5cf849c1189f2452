// Package history maintains an append-only, deduplicated audit trail of
// raw BMP message bytes, independent of whatever the decoded fields turn
// into downstream. It is fed directly from each connection's session loop
// rather than from a Kafka topic, since this collector sits directly in
// front of the monitored routers.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/route-beacon/bmp-collector/internal/metrics"
)

var zstdEncoder, _ = zstd.NewWriter(nil)

type Writer struct {
	pool        *pgxpool.Pool
	logger      *zap.Logger
	compressRaw bool
}

func NewWriter(pool *pgxpool.Pool, logger *zap.Logger, compressRaw bool) *Writer {
	return &Writer{pool: pool, logger: logger, compressRaw: compressRaw}
}

// Row is a single raw message pending insertion into raw_messages.
type Row struct {
	EventID    []byte // 32-byte SHA256 of the raw BMP bytes
	RouterAddr string
	MsgType    uint8
	Raw        []byte
}

// FlushBatch inserts a batch of raw messages, deduplicating on
// (event_id, router_addr, ingest_day). Returns the number of rows
// actually inserted (after dedup).
func (w *Writer) FlushBatch(ctx context.Context, rows []*Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	start := time.Now()

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var totalInserted int64

	for _, row := range rows {
		raw := row.Raw
		if w.compressRaw {
			raw = zstdEncoder.EncodeAll(row.Raw, nil)
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO raw_messages (event_id, ingest_day, router_addr, msg_type, raw_bytes, ingested_at)
			VALUES ($1, date_trunc('day', now()), $2, $3, $4, now())
			ON CONFLICT (event_id, router_addr, ingest_day) DO NOTHING`,
			row.EventID, row.RouterAddr, row.MsgType, raw,
		)
		if err != nil {
			return 0, fmt.Errorf("insert raw_message: %w", err)
		}

		affected := tag.RowsAffected()
		totalInserted += affected
		if affected == 0 {
			metrics.HistoryDedupConflictsTotal.WithLabelValues(row.RouterAddr).Inc()
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	dur := time.Since(start).Seconds()
	metrics.DBWriteDuration.WithLabelValues("history_insert").Observe(dur)
	metrics.DBRowsAffectedTotal.WithLabelValues("raw_messages", "insert").Add(float64(totalInserted))
	metrics.HistoryBatchSize.WithLabelValues().Observe(float64(len(rows)))

	return totalInserted, nil
}
