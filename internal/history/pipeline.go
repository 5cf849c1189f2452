package history

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// flusher is the subset of *Writer the pipeline depends on, narrowed so
// tests can substitute a fake instead of a live Postgres connection.
type flusher interface {
	FlushBatch(ctx context.Context, rows []*Row) (int64, error)
}

// Pipeline batches Rows submitted from many concurrent connection
// sessions and flushes them to Postgres on a size or time trigger,
// mirroring the Kafka-fed batcher this package used to drive except that
// its input is an in-process channel instead of a partitioned topic.
type Pipeline struct {
	writer        flusher
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger

	submit chan *Row
}

func NewPipeline(writer *Writer, batchSize, flushIntervalMs int, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		writer:        writer,
		batchSize:     batchSize,
		flushInterval: time.Duration(flushIntervalMs) * time.Millisecond,
		logger:        logger,
		submit:        make(chan *Row, batchSize*4),
	}
}

// Submit enqueues one raw message for the audit trail. It never blocks
// the calling session for longer than it takes to enqueue; a full
// channel means history is falling behind and the row is dropped rather
// than stalling BMP decoding.
func (p *Pipeline) Submit(row *Row) {
	select {
	case p.submit <- row:
	default:
		p.logger.Warn("history pipeline backlogged, dropping raw message",
			zap.String("router_addr", row.RouterAddr))
	}
}

// Run drains submitted rows into batches until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	var batch []*Row
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if _, err := p.writer.FlushBatch(ctx, batch); err != nil {
			p.logger.Error("history batch flush failed", zap.Error(err))
			return
		}
		batch = nil
	}

	for {
		select {
		case <-ctx.Done():
			// Take in rows still queued, then flush on a context that is not
			// cancelled so the final write can reach the database.
			for drained := false; !drained; {
				select {
				case row, ok := <-p.submit:
					drained = !ok
					if ok {
						batch = append(batch, row)
					}
				default:
					drained = true
				}
			}
			ctx = context.WithoutCancel(ctx)
			flush()
			return

		case row, ok := <-p.submit:
			if !ok {
				flush()
				return
			}
			batch = append(batch, row)
			if len(batch) >= p.batchSize {
				flush()
			}
			// Cap memory: if repeated flush failures let the batch grow
			// beyond 10x the configured size, drop it rather than grow
			// without bound during a prolonged DB outage.
			if len(batch) >= p.batchSize*10 {
				p.logger.Error("dropping oversized history batch after repeated flush failures",
					zap.Int("dropped_rows", len(batch)))
				batch = nil
			}

		case <-ticker.C:
			flush()
		}
	}
}
