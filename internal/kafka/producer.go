// Package kafka publishes decoded BMP events to a Kafka topic. Unlike the
// consumer side of this stack, the collector is the producer of record:
// it is the process standing directly in front of the monitored routers,
// so there is no further upstream to consume from.
package kafka

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl"
	"go.uber.org/zap"
)

// EventProducer publishes JSON-encoded BMP events (Peer Up, Statistics
// Report, Termination) to a single topic, partitioned by router source
// address so per-router ordering is preserved.
type EventProducer struct {
	client  *kgo.Client
	topic   string
	timeout time.Duration
	logger  *zap.Logger
	healthy atomic.Bool
}

type ProducerConfig struct {
	Brokers  []string
	ClientID string
	Topic    string
	Timeout  time.Duration
	TLS      *tls.Config
	SASL     sasl.Mechanism
}

func NewEventProducer(cfg ProducerConfig, logger *zap.Logger) (*EventProducer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}
	if cfg.TLS != nil {
		opts = append(opts, kgo.DialTLSConfig(cfg.TLS))
	}
	if cfg.SASL != nil {
		opts = append(opts, kgo.SASL(cfg.SASL))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}

	p := &EventProducer{
		client:  client,
		topic:   cfg.Topic,
		timeout: cfg.Timeout,
		logger:  logger,
	}
	p.healthy.Store(true)
	return p, nil
}

// Event is the JSON envelope published for every Peer Up, Statistics
// Report, and Termination message the decoder completes.
type Event struct {
	Kind       string `json:"kind"` // "peer_up", "stats_report", "termination"
	RouterAddr string `json:"router_addr"`
	Timestamp  int64  `json:"timestamp"`
	Payload    any    `json:"payload"`
}

// Produce publishes one event, keyed by router address, and blocks until
// the broker acknowledges it or the configured timeout elapses.
func (p *EventProducer) Produce(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ev.RouterAddr),
		Value: body,
	}

	resultCh := make(chan error, 1)
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		resultCh <- err
	})

	select {
	case err := <-resultCh:
		if err != nil {
			p.healthy.Store(false)
			p.logger.Error("kafka: produce failed", zap.String("kind", ev.Kind), zap.Error(err))
			return err
		}
		p.healthy.Store(true)
		return nil
	case <-ctx.Done():
		p.healthy.Store(false)
		return ctx.Err()
	}
}

// IsHealthy reports whether the most recent produce attempt succeeded.
// It satisfies the readiness-check collaborator the HTTP server expects.
func (p *EventProducer) IsHealthy() bool {
	return p.healthy.Load()
}

func (p *EventProducer) Close() {
	p.client.Close()
}
