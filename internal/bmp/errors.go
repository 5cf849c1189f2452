package bmp

import "errors"

// Error kinds, per spec: Closed and UnsupportedVersion/Truncated are the
// only ones that must surface to the caller, who is responsible for
// closing the connection. UnknownMessageType and MalformedField-class
// failures (a too-short Peer Up body, a malformed TLV) are recovered
// locally and never returned from Session.ProcessNext.
var (
	// ErrClosed means the peer shut the stream down in an orderly way
	// before any byte of a new message arrived.
	ErrClosed = errors.New("bmp: connection closed")

	// ErrTruncated means a read inside a message came up short. Framing
	// is lost; the connection must be closed.
	ErrTruncated = errors.New("bmp: truncated read")

	// ErrUnsupportedVersion means the first byte of a message was not 1, 2, or 3.
	ErrUnsupportedVersion = errors.New("bmp: unsupported version")

	// errPeerUpBodyTooShort is returned internally by decodePeerUp when the
	// declared message body can't hold the fixed Peer Up fields; the
	// session recovers by draining the declared body and emitting no event.
	errPeerUpBodyTooShort = errors.New("bmp: peer-up body too short for fixed fields")
)
