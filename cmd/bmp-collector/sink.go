package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/route-beacon/bmp-collector/internal/bmp"
	"github.com/route-beacon/bmp-collector/internal/kafka"
	"github.com/route-beacon/bmp-collector/internal/metrics"
)

// eventSink decorates a bmp.StorageSink: every call is passed to the inner
// sink, and Peer Up events, Statistics Reports, and router updates that
// carry a termination reason are then re-published as JSON events on the
// Kafka events topic for downstream consumers that want those
// notifications without polling Postgres.
type eventSink struct {
	inner      bmp.StorageSink
	producer   *kafka.EventProducer
	routerAddr string
	logger     *zap.Logger
}

func newEventSink(inner bmp.StorageSink, producer *kafka.EventProducer, routerAddr string, logger *zap.Logger) *eventSink {
	return &eventSink{inner: inner, producer: producer, routerAddr: routerAddr, logger: logger}
}

func (s *eventSink) UpdateRouter(router *bmp.RouterRecord) error {
	if err := s.inner.UpdateRouter(router); err != nil {
		return err
	}
	if router.TermReasonText != "" {
		s.publish("termination", router)
	}
	return nil
}

func (s *eventSink) IdentifyPeer(peer *bmp.PeerRecord) error {
	return s.inner.IdentifyPeer(peer)
}

func (s *eventSink) AddPeerUpEvent(event *bmp.PeerUpEvent) error {
	if err := s.inner.AddPeerUpEvent(event); err != nil {
		return err
	}
	s.publish("peer_up", event)
	return nil
}

func (s *eventSink) AddStatsReport(report *bmp.StatsReport) error {
	if err := s.inner.AddStatsReport(report); err != nil {
		return err
	}
	s.publish("stats_report", report)
	return nil
}

func (s *eventSink) publish(kind string, payload any) {
	ev := kafka.Event{
		Kind:       kind,
		RouterAddr: s.routerAddr,
		Timestamp:  time.Now().Unix(),
		Payload:    payload,
	}

	if err := s.producer.Produce(context.Background(), ev); err != nil {
		metrics.KafkaProduceTotal.WithLabelValues(kind, "error").Inc()
		s.logger.Error("kafka produce failed", zap.String("kind", kind), zap.Error(err))
		return
	}
	metrics.KafkaProduceTotal.WithLabelValues(kind, "ok").Inc()
}
