package bmp

import (
	"errors"
	"fmt"
)

// MessageOutcome describes one successfully dispatched message.
type MessageOutcome struct {
	MsgType uint8

	// RemainingLen is the number of body bytes the session deliberately
	// left unread, for the caller to consume before the next call to
	// ProcessNext:
	//
	//   > 0  Route Monitoring or Peer Down: the core never reads these
	//        bodies (BGP UPDATE / notification parsing is a separate
	//        collaborator's job, per spec.md §1).
	//   -1   v1/v2 message: no length field exists on the wire; the body,
	//        if any, is self-delimiting and entirely the caller's concern.
	//   0    every other message type: the session consumed the full
	//        declared body itself.
	RemainingLen int
}

// Session is a small per-connection state machine: it owns one
// ByteSource and the router/peer records for that connection, and
// decodes messages strictly in arrival order. It holds no concurrency
// primitives of its own — callers run one Session per TCP connection.
type Session struct {
	Router *RouterRecord
	Peer   *PeerRecord

	src    ByteSource
	sink   StorageSink
	logger Logger
}

// NewSession creates a session bound to one connection's ByteSource and
// router record. The router record's lifetime must exceed the session's.
func NewSession(src ByteSource, router *RouterRecord, sink StorageSink, logger Logger) *Session {
	return &Session{
		Router: router,
		Peer:   &PeerRecord{},
		src:    src,
		sink:   sink,
		logger: logger,
	}
}

// Source returns the session's ByteSource, so a caller handling a
// RemainingLen > 0 outcome (Route Monitoring, Peer Down) can read the
// declared body directly, or a RemainingLen == -1 outcome (v1/v2) can
// parse the self-delimited body that follows.
func (s *Session) Source() ByteSource { return s.src }

// ProcessNext decodes exactly one BMP message: a version probe, a common
// header, and — for the message types that need one — a peer header and
// body. It returns ErrClosed on an orderly close between messages, and
// ErrTruncated/ErrUnsupportedVersion on a fatal framing failure; both
// mean the caller must close the connection. Every other recoverable
// condition (MalformedField, UnknownMessageType) is handled internally
// and reported through Logger, never through the returned error.
func (s *Session) ProcessNext() (MessageOutcome, error) {
	version, err := probeVersion(s.src)
	if err != nil {
		return MessageOutcome{}, err
	}
	var outcome MessageOutcome
	if version == 3 {
		outcome, err = s.processV3()
	} else {
		outcome, err = s.processV1V2()
	}
	if errors.Is(err, ErrClosed) {
		// The version byte already arrived, so this close cut a message short.
		return MessageOutcome{}, fmt.Errorf("%w: stream closed inside a message", ErrTruncated)
	}
	return outcome, err
}

func (s *Session) processV1V2() (MessageOutcome, error) {
	msgType, err := readV1V2Header(s.src, s.Peer)
	if err != nil {
		return MessageOutcome{}, err
	}
	if err := s.sink.IdentifyPeer(s.Peer); err != nil {
		s.logger.Err("bmp: identifying peer: %v", err)
	}
	return MessageOutcome{MsgType: msgType, RemainingLen: -1}, nil
}

func (s *Session) processV3() (MessageOutcome, error) {
	hdr, err := readV3CommonHeader(s.src)
	if err != nil {
		return MessageOutcome{}, err
	}

	switch hdr.MsgType {
	case MsgTypeRouteMonitoring, MsgTypeStatsReport, MsgTypePeerUp, MsgTypePeerDown:
		if err := readPeerHeader(s.src, s.Peer); err != nil {
			return MessageOutcome{}, err
		}
		if err := s.sink.IdentifyPeer(s.Peer); err != nil {
			s.logger.Err("bmp: identifying peer: %v", err)
		}

		remaining := int(hdr.BMPLen) - PerPeerHeaderSize
		if remaining < 0 {
			return MessageOutcome{}, fmt.Errorf("%w: declared length %d shorter than peer header (%d)", ErrTruncated, hdr.BMPLen, PerPeerHeaderSize)
		}

		switch hdr.MsgType {
		case MsgTypeStatsReport:
			if err := s.decodeStatsReport(remaining); err != nil {
				return MessageOutcome{}, err
			}
			return MessageOutcome{MsgType: hdr.MsgType}, nil
		case MsgTypePeerUp:
			if err := s.decodePeerUp(remaining); err != nil {
				if !errors.Is(err, errPeerUpBodyTooShort) {
					return MessageOutcome{}, err
				}
			}
			return MessageOutcome{MsgType: hdr.MsgType}, nil
		default: // Route Monitoring, Peer Down: left to the caller.
			return MessageOutcome{MsgType: hdr.MsgType, RemainingLen: remaining}, nil
		}

	case MsgTypeInitiation:
		if err := s.decodeInitiation(int(hdr.BMPLen)); err != nil {
			return MessageOutcome{}, err
		}
		return MessageOutcome{MsgType: hdr.MsgType}, nil

	case MsgTypeTermination:
		if err := s.decodeTermination(int(hdr.BMPLen)); err != nil {
			return MessageOutcome{}, err
		}
		return MessageOutcome{MsgType: hdr.MsgType}, nil

	default:
		s.logger.Notice("bmp: unknown message type %d, draining %d bytes", hdr.MsgType, hdr.BMPLen)
		if err := s.drainBytes(int(hdr.BMPLen)); err != nil {
			return MessageOutcome{}, err
		}
		return MessageOutcome{MsgType: hdr.MsgType}, nil
	}
}

// RunUntilClosed repeatedly calls ProcessNext, invoking onMessage after
// each successfully dispatched message, until the connection closes in
// an orderly way (nil return) or a fatal error occurs. onMessage must
// read RemainingLen bytes from Source() itself before returning whenever
// the outcome carries one, or framing for the rest of the connection is
// lost.
func (s *Session) RunUntilClosed(onMessage func(MessageOutcome)) error {
	for {
		outcome, err := s.ProcessNext()
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		if onMessage != nil {
			onMessage(outcome)
		}
	}
}

// drainBytes discards n bytes from the session's ByteSource, used to
// realign the stream after a message the session chooses not to decode
// (an oversized Initiation/Termination body, an unrecognized v3 message
// type).
func (s *Session) drainBytes(n int) error {
	if n <= 0 {
		return nil
	}
	_, err := s.src.ReadExact(n)
	return err
}
