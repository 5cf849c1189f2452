// Package bmp decodes a BGP Monitoring Protocol (BMP) byte stream
// (draft-ietf-grow-bmp-04 through -07, versions 1-3) into typed records:
// router and peer metadata, Peer Up events, Statistics Reports, and
// Initiation/Termination TLVs. It does not open sockets, persist
// anything, or parse the BGP UPDATE payload carried inside Route
// Monitoring messages — those are left to the collaborators named in the
// StorageSink, Logger, and ByteSource interfaces.
package bmp

// BMP message type codes (v3, draft-ietf-grow-bmp-07 / RFC 7854 §4.1).
const (
	MsgTypeRouteMonitoring uint8 = 0
	MsgTypeStatsReport     uint8 = 1
	MsgTypePeerDown        uint8 = 2
	MsgTypePeerUp          uint8 = 3
	MsgTypeInitiation      uint8 = 4
	MsgTypeTermination     uint8 = 5
)

// Peer type field at offset 0 of the per-peer header. Any value other
// than PeerTypeL3VPN is treated as a non-VPN (global) peer.
const PeerTypeL3VPN uint8 = 1

// Stats Report TLV type codes (RFC 7854 §4.8).
const (
	StatsTypePrefixesRejected   uint16 = 0
	StatsTypeDuplicatePrefix    uint16 = 1
	StatsTypeDuplicateWithdraw  uint16 = 2
	StatsTypeInvalidClusterList uint16 = 3
	StatsTypeASPathLoop         uint16 = 4
	StatsTypeOriginatorID       uint16 = 5
	StatsTypeASConfedLoop       uint16 = 6
	StatsTypeRoutesAdjRIBIn     uint16 = 7
	StatsTypeRoutesLocRIB       uint16 = 8
)

// Initiation/Termination TLV type codes (RFC 7854 §4.3/§4.5).
const (
	InitTLVString   uint16 = 0
	InitTLVSysDescr uint16 = 1
	InitTLVSysName  uint16 = 2

	TermTLVString uint16 = 0
	TermTLVReason uint16 = 1
)

// Termination reason codes carried in a TermTLVReason value.
const (
	TermReasonUnspecified    uint16 = 0
	TermReasonAdminClose     uint16 = 1
	TermReasonOutOfResources uint16 = 2
	TermReasonRedundant      uint16 = 3
)

// Bounded-field capacities. The wire format places no limit on these
// TLV values; the session clamps them so one malicious or buggy router
// cannot grow a record without bound.
const (
	maxSysNameLen  = 64
	maxSysDescrLen = 255
	maxFreeformLen = 4096

	// maxInitTermBody is the declared-length ceiling for a single
	// Initiation or Termination message body. Anything larger is
	// drained but not decoded (see decodeInitiation/decodeTermination).
	maxInitTermBody = 40000
)

// RouterRecord describes the monitored router for the lifetime of one
// TCP connection. It is created when the connection is accepted, mutated
// by Initiation messages, and mutated then retired by Termination.
type RouterRecord struct {
	SourceAddr string // human-readable address of the monitored router

	SysName  string
	SysDescr string

	InitiateData []byte // free-form Initiation TLV payload, truncated to capacity
	TermData     []byte // free-form Termination TLV payload, truncated to capacity

	TermReasonCode uint16
	TermReasonText string
}

// PeerRecord describes one (router, BGP peer) pair. It is overwritten as
// each message's peer header is parsed; its identity is the
// (peer address, route distinguisher) pair, resolved to HashID by the
// StorageSink's IdentifyPeer hook.
type PeerRecord struct {
	HashID string // opaque identity, assigned by IdentifyPeer; opaque to this package

	Addr   string // textual peer address, IPv4 or IPv6
	IsIPv4 bool

	AS    int64  // widened from the wire's 4-byte field
	BGPID string // dotted-quad

	RD       string // textual route distinguisher
	IsL3VPN  bool
	IsPrePolicy bool // v3 only; always true for v1/v2 (no policy-phase flag exists)

	Timestamp int64 // seconds; wall-clock now() if the wire value was zero
}

// PeerUpEvent is emitted once per successfully decoded Peer Up message.
type PeerUpEvent struct {
	PeerHashID string
	Timestamp  int64

	LocalIP    string
	LocalPort  uint16
	RemotePort uint16
}

// StatsReport aggregates one Statistics Report message's counters.
type StatsReport struct {
	PeerHashID string

	PrefixesRejected   uint64
	DuplicatePrefixes  uint64
	DuplicateWithdraws uint64
	InvalidClusterList uint64
	ASPathLoop         uint64
	OriginatorID       uint64
	ASConfedLoop       uint64
	RoutesAdjRIBIn     uint64
	RoutesLocRIB       uint64
}

// StorageSink is the persistence collaborator the session hands completed
// records to. Implementations must be safe for concurrent use by multiple
// sessions and treat every method as idempotent.
type StorageSink interface {
	UpdateRouter(router *RouterRecord) error
	AddStatsReport(report *StatsReport) error
	AddPeerUpEvent(event *PeerUpEvent) error

	// IdentifyPeer fills peer.HashID (and may look up or create any
	// backing record) before the session uses it to stamp stats and
	// peer-up events. It is called once per message, right after a peer
	// header is decoded.
	IdentifyPeer(peer *PeerRecord) error
}

// Logger is a leveled sink for the session's diagnostic output.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Notice(format string, args ...any)
	Err(format string, args ...any)
}

func truncateBytes(b []byte, max int) []byte {
	if len(b) <= max {
		out := make([]byte, len(b))
		copy(out, b)
		return out
	}
	out := make([]byte, max)
	copy(out, b[:max])
	return out
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
