package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bmpcollector_connections_active",
			Help: "Number of currently open router TCP connections.",
		},
	)

	ConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmpcollector_connections_total",
			Help: "Router TCP connections, by result (accepted, rejected_max_connections).",
		},
		[]string{"result"},
	)

	MessagesDecodedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmpcollector_messages_decoded_total",
			Help: "BMP messages successfully dispatched by the decoder.",
		},
		[]string{"msg_type"},
	)

	DecodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmpcollector_decode_errors_total",
			Help: "Fatal decode failures, by kind (truncated, unsupported_version, other).",
		},
		[]string{"kind"},
	)

	DBWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bmpcollector_db_write_duration_seconds",
			Help:    "DB write latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"op"},
	)

	DBRowsAffectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmpcollector_db_rows_affected_total",
			Help: "DB rows written.",
		},
		[]string{"table", "op"},
	)

	HistoryDedupConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmpcollector_history_dedup_conflicts_total",
			Help: "Raw-message history dedup hits (ON CONFLICT DO NOTHING skips).",
		},
		[]string{"router_id"},
	)

	HistoryBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bmpcollector_history_batch_size",
			Help:    "Raw-message batch sizes flushed to the audit trail.",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
		},
		[]string{},
	)

	KafkaProduceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmpcollector_kafka_produce_total",
			Help: "Events produced to Kafka, by event kind and result.",
		},
		[]string{"event", "result"},
	)

	BGPAttributeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmpcollector_bgp_attribute_errors_total",
			Help: "Malformed BGP UPDATE attributes seen in Route Monitoring bodies.",
		},
		[]string{"reason"},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ConnectionsActive,
			ConnectionsTotal,
			MessagesDecodedTotal,
			DecodeErrorsTotal,
			DBWriteDuration,
			DBRowsAffectedTotal,
			HistoryDedupConflictsTotal,
			HistoryBatchSize,
			KafkaProduceTotal,
			BGPAttributeErrorsTotal,
		)
	})
}
