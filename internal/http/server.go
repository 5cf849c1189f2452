package http

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// DBChecker abstracts the database health check for testability.
type DBChecker interface {
	Ping(ctx context.Context) error
}

// ProducerStatus abstracts the Kafka producer liveness check.
type ProducerStatus interface {
	IsHealthy() bool
}

// ConnectionCounter reports the number of router TCP connections
// currently open, for the readiness payload.
type ConnectionCounter interface {
	ActiveConnections() int
}

type Server struct {
	srv       *http.Server
	dbChecker DBChecker
	producer  ProducerStatus
	conns     ConnectionCounter
	logger    *zap.Logger
}

func NewServer(addr string, pool *pgxpool.Pool, producer ProducerStatus, conns ConnectionCounter, logger *zap.Logger) *Server {
	s := &Server{
		producer: producer,
		conns:    conns,
		logger:   logger,
	}
	if pool != nil {
		s.dbChecker = pool
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	return s
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("HTTP server listening", zap.String("addr", s.srv.Addr))
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	allOK := true

	if s.dbChecker != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.dbChecker.Ping(ctx); err != nil {
			checks["postgres"] = "error"
			allOK = false
		} else {
			checks["postgres"] = "ok"
		}
	} else {
		checks["postgres"] = "error"
		allOK = false
	}

	if s.producer != nil && s.producer.IsHealthy() {
		checks["kafka_producer"] = "ok"
	} else {
		checks["kafka_producer"] = "unhealthy"
		allOK = false
	}

	payload := map[string]any{}
	if s.conns != nil {
		payload["active_connections"] = s.conns.ActiveConnections()
	}

	w.Header().Set("Content-Type", "application/json")
	status := "ready"
	httpStatus := http.StatusOK
	if !allOK {
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}
	payload["status"] = status
	payload["checks"] = checks

	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(payload)
}
