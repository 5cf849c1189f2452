package main

import (
	"bytes"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/route-beacon/bmp-collector/internal/bgp"
	"github.com/route-beacon/bmp-collector/internal/bmp"
	"github.com/route-beacon/bmp-collector/internal/history"
	"github.com/route-beacon/bmp-collector/internal/metrics"
)

// connHandler decodes one router's BMP stream end to end: it owns the
// session, forwards finished records to the storage/Kafka sink, and
// submits every message's raw bytes to the history pipeline.
type connHandler struct {
	conn          net.Conn
	readTimeout   time.Duration
	maxRouteBytes int

	sink    *eventSink
	history *history.Pipeline
	logger  *zap.Logger
}

func (h *connHandler) run() {
	defer h.conn.Close()

	router := &bmp.RouterRecord{SourceAddr: h.conn.RemoteAddr().String()}
	capture := &capturingSource{inner: bmp.NewByteSource(&deadlineReader{conn: h.conn, timeout: h.readTimeout})}
	session := bmp.NewSession(capture, router, h.sink, zapBMPLogger{h.logger})

	h.logger.Info("router connected")

	err := session.RunUntilClosed(func(outcome bmp.MessageOutcome) {
		h.onMessage(session, capture, router, outcome)
	})
	if err != nil {
		metrics.DecodeErrorsTotal.WithLabelValues(decodeErrorKind(err)).Inc()
		h.logger.Warn("session ended with error", zap.Error(err))
	} else {
		h.logger.Info("router disconnected")
	}
}

func (h *connHandler) onMessage(session *bmp.Session, capture *capturingSource, router *bmp.RouterRecord, outcome bmp.MessageOutcome) {
	metrics.MessagesDecodedTotal.WithLabelValues(msgTypeLabel(outcome.MsgType)).Inc()

	if outcome.RemainingLen > 0 {
		n := outcome.RemainingLen
		if n > h.maxRouteBytes {
			h.logger.Warn("declared body exceeds configured maximum, truncating read",
				zap.Int("declared", n), zap.Int("max", h.maxRouteBytes))
			n = h.maxRouteBytes
		}
		body, err := session.Source().ReadExact(n)
		if err != nil {
			h.logger.Error("reading message body", zap.Error(err))
			return
		}
		// Discard the rest of an over-limit body so the next message
		// starts on a header boundary.
		for rest := outcome.RemainingLen - n; rest > 0; {
			chunk := min(rest, h.maxRouteBytes)
			if _, err := session.Source().ReadExact(chunk); err != nil {
				h.logger.Error("discarding message body beyond maximum", zap.Error(err))
				return
			}
			rest -= chunk
		}

		switch outcome.MsgType {
		case bmp.MsgTypeRouteMonitoring:
			h.handleRouteMonitoring(body)
		case bmp.MsgTypePeerDown:
			h.logger.Debug("peer down", zap.Int("notification_bytes", len(body)))
		}
	}

	if h.history != nil {
		raw := capture.drain()
		if len(raw) > 0 {
			h.history.Submit(&history.Row{
				EventID:    history.ComputeEventID(raw),
				RouterAddr: router.SourceAddr,
				MsgType:    outcome.MsgType,
				Raw:        raw,
			})
		}
	} else {
		capture.drain()
	}
}

// handleRouteMonitoring parses the BGP UPDATE carried in a Route
// Monitoring body. No RIB is built or stored here; the collector only
// decodes far enough to count routes and surface malformed attributes.
func (h *connHandler) handleRouteMonitoring(body []byte) {
	events, err := bgp.ParseUpdate(body, false)
	if err != nil {
		metrics.BGPAttributeErrorsTotal.WithLabelValues("parse_update").Inc()
		h.logger.Debug("bgp update parse error", zap.Error(err))
		return
	}
	if len(events) == 0 {
		afi := bgp.DetectEORAFI(body)
		h.logger.Debug("end-of-rib marker", zap.Int("afi", afi))
		return
	}
	h.logger.Debug("bgp update decoded", zap.Int("routes", len(events)))
}

func msgTypeLabel(t uint8) string {
	switch t {
	case bmp.MsgTypeRouteMonitoring:
		return "route_monitoring"
	case bmp.MsgTypeStatsReport:
		return "stats_report"
	case bmp.MsgTypePeerDown:
		return "peer_down"
	case bmp.MsgTypePeerUp:
		return "peer_up"
	case bmp.MsgTypeInitiation:
		return "initiation"
	case bmp.MsgTypeTermination:
		return "termination"
	default:
		return "unknown"
	}
}

func decodeErrorKind(err error) string {
	switch {
	case errors.Is(err, bmp.ErrTruncated):
		return "truncated"
	case errors.Is(err, bmp.ErrUnsupportedVersion):
		return "unsupported_version"
	default:
		return "other"
	}
}

// capturingSource wraps a bmp.ByteSource and records every byte read
// through it, so the caller can recover the exact wire bytes of one
// decoded message (header, peer header, and body) for the history
// audit trail. drain must be called once per message.
type capturingSource struct {
	inner bmp.ByteSource
	buf   bytes.Buffer
}

func (c *capturingSource) ReadExact(n int) ([]byte, error) {
	b, err := c.inner.ReadExact(n)
	if err != nil {
		return nil, err
	}
	c.buf.Write(b)
	return b, nil
}

func (c *capturingSource) drain() []byte {
	if c.buf.Len() == 0 {
		return nil
	}
	b := make([]byte, c.buf.Len())
	copy(b, c.buf.Bytes())
	c.buf.Reset()
	return b
}

// deadlineReader pushes conn's read deadline forward before every Read,
// turning a configured idle timeout into per-read enforcement without
// the bmp package needing to know about net.Conn at all.
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	if r.timeout > 0 {
		r.conn.SetReadDeadline(time.Now().Add(r.timeout))
	}
	return r.conn.Read(p)
}

// zapBMPLogger adapts *zap.Logger to bmp.Logger.
type zapBMPLogger struct {
	l *zap.Logger
}

func (z zapBMPLogger) Debug(format string, args ...any)  { z.l.Sugar().Debugf(format, args...) }
func (z zapBMPLogger) Info(format string, args ...any)   { z.l.Sugar().Infof(format, args...) }
func (z zapBMPLogger) Notice(format string, args ...any) { z.l.Sugar().Infof(format, args...) }
func (z zapBMPLogger) Err(format string, args ...any)    { z.l.Sugar().Errorf(format, args...) }
