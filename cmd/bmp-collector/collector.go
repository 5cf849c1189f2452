package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/route-beacon/bmp-collector/internal/config"
	"github.com/route-beacon/bmp-collector/internal/history"
	ribhttp "github.com/route-beacon/bmp-collector/internal/http"
	"github.com/route-beacon/bmp-collector/internal/kafka"
	"github.com/route-beacon/bmp-collector/internal/metrics"
	"github.com/route-beacon/bmp-collector/internal/storage"
)

// collector owns every long-lived component the serve command starts:
// the TCP listener routers dial into, the Kafka producer, the history
// audit pipeline, and the HTTP status server.
type collector struct {
	cfg    *config.Config
	pool   *pgxpool.Pool
	logger *zap.Logger

	producer *kafka.EventProducer
	sink     *storage.Sink

	history     *history.Pipeline
	historyDone chan struct{}

	ln    net.Listener
	conns connCounter

	httpServer *ribhttp.Server

	wg sync.WaitGroup
}

func newCollector(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *zap.Logger) (*collector, error) {
	metrics.Register()

	tlsCfg, err := config.BuildTLSConfig(cfg.Kafka.TLS)
	if err != nil {
		return nil, fmt.Errorf("building kafka TLS config: %w", err)
	}
	saslMech := cfg.Kafka.BuildSASLMechanism()

	producer, err := kafka.NewEventProducer(kafka.ProducerConfig{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: cfg.Kafka.ClientID,
		Topic:    cfg.Kafka.Topic,
		Timeout:  time.Duration(cfg.Kafka.ProduceTimeoutMs) * time.Millisecond,
		TLS:      tlsCfg,
		SASL:     saslMech,
	}, logger.Named("kafka.producer"))
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	c := &collector{
		cfg:      cfg,
		pool:     pool,
		logger:   logger,
		producer: producer,
		sink:     storage.NewSink(pool, logger.Named("storage")),
	}

	if cfg.History.Enabled {
		writer := history.NewWriter(pool, logger.Named("history.writer"), cfg.History.Compress)
		c.history = history.NewPipeline(writer, cfg.History.BatchSize, cfg.History.FlushIntervalMs, logger.Named("history.pipeline"))
	}

	listenerTLS, err := config.BuildTLSConfig(cfg.Listener.TLS)
	if err != nil {
		return nil, fmt.Errorf("building listener TLS config: %w", err)
	}

	var ln net.Listener
	if listenerTLS != nil {
		ln, err = tls.Listen("tcp", cfg.Listener.Address, listenerTLS)
	} else {
		ln, err = net.Listen("tcp", cfg.Listener.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", cfg.Listener.Address, err)
	}
	c.ln = ln

	c.httpServer = ribhttp.NewServer(cfg.Service.HTTPListen, pool, producer, &c.conns, logger.Named("http"))

	return c, nil
}

func (c *collector) Start(ctx context.Context) error {
	if c.history != nil {
		c.historyDone = make(chan struct{})
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer close(c.historyDone)
			c.history.Run(ctx)
		}()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.acceptLoop(ctx)
	}()

	if err := c.httpServer.Start(); err != nil {
		return fmt.Errorf("starting http server: %w", err)
	}

	c.logger.Info("listening for router connections", zap.String("addr", c.cfg.Listener.Address))
	return nil
}

func (c *collector) acceptLoop(ctx context.Context) {
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				c.logger.Error("accept failed", zap.Error(err))
				return
			}
		}

		if c.conns.ActiveConnections() >= c.cfg.Listener.MaxConnections {
			metrics.ConnectionsTotal.WithLabelValues("rejected_max_connections").Inc()
			c.logger.Warn("rejecting connection, at max_connections", zap.String("remote", conn.RemoteAddr().String()))
			conn.Close()
			continue
		}

		metrics.ConnectionsTotal.WithLabelValues("accepted").Inc()
		c.conns.inc()

		h := &connHandler{
			conn:          conn,
			readTimeout:   time.Duration(c.cfg.Listener.ReadTimeoutSeconds) * time.Second,
			maxRouteBytes: c.cfg.Decode.MaxRouteMonitoringBytes,
			sink:          newEventSink(c.sink, c.producer, conn.RemoteAddr().String(), c.logger),
			history:       c.history,
			logger:        c.logger.Named("session").With(zap.String("remote", conn.RemoteAddr().String())),
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			defer c.conns.dec()
			h.run()
		}()
	}
}

func (c *collector) Shutdown(ctx context.Context) {
	if err := c.httpServer.Shutdown(ctx); err != nil {
		c.logger.Error("http server shutdown error", zap.Error(err))
	}

	if err := c.ln.Close(); err != nil {
		c.logger.Error("listener close error", zap.Error(err))
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("all connections and background loops stopped gracefully")
	case <-ctx.Done():
		c.logger.Warn("shutdown timeout reached, some connections may not have finished")
	}
}

func (c *collector) Close() {
	c.producer.Close()
}

// connCounter tracks active router connections for the HTTP readiness
// payload. The zero value is ready to use.
type connCounter struct {
	mu sync.Mutex
	n  int
}

func (c *connCounter) inc() {
	c.mu.Lock()
	c.n++
	metrics.ConnectionsActive.Set(float64(c.n))
	c.mu.Unlock()
}

func (c *connCounter) dec() {
	c.mu.Lock()
	c.n--
	metrics.ConnectionsActive.Set(float64(c.n))
	c.mu.Unlock()
}

func (c *connCounter) ActiveConnections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
