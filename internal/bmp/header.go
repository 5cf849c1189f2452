package bmp

import (
	"encoding/binary"
	"fmt"
)

// v3CommonHeaderReadSize is the number of bytes read after the version
// probe for a v3 common header: total length (4) + message type (1).
const v3CommonHeaderReadSize = 5

// v1v2RemainingSize is the number of bytes read after the version probe
// for a v1/v2 message: message type (1) + the 42-byte fixed peer
// structure, per spec.md §6's v1/v2 wire layout.
const v1v2RemainingSize = 1 + PerPeerHeaderSize

// commonHeader is the decoded v3 common header.
type commonHeader struct {
	MsgType uint8

	// BMPLen is the number of bytes still to be read for the current
	// message: the wire's total length, minus the version byte and the
	// 5 bytes of this header. It does not include anything already
	// consumed by the caller.
	BMPLen uint32
}

// probeVersion reads the single version byte that begins every BMP
// message and fails with ErrUnsupportedVersion unless it is 1, 2, or 3.
func probeVersion(src ByteSource) (uint8, error) {
	b, err := src.ReadExact(1)
	if err != nil {
		return 0, err
	}
	v := b[0]
	if v != 1 && v != 2 && v != 3 {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	return v, nil
}

// readV3CommonHeader reads the 5 bytes following the version byte of a v3
// message — total length (4) then message type (1), per RFC 7854 §4.1 —
// and decrements the declared length by the version byte and this
// header, leaving BMPLen holding exactly the bytes still owed for the
// rest of the message.
func readV3CommonHeader(src ByteSource) (commonHeader, error) {
	b, err := src.ReadExact(v3CommonHeaderReadSize)
	if err != nil {
		return commonHeader{}, err
	}
	totalLen := binary.BigEndian.Uint32(b[0:4])
	msgType := b[4]

	const consumedSoFar = 1 + v3CommonHeaderReadSize // version + this header
	if totalLen < consumedSoFar {
		return commonHeader{}, fmt.Errorf("%w: declared length %d smaller than common header (%d)", ErrTruncated, totalLen, consumedSoFar)
	}
	return commonHeader{
		MsgType: msgType,
		BMPLen:  totalLen - consumedSoFar,
	}, nil
}

// readV1V2Header reads the single fixed v1/v2 structure (message type
// plus the embedded peer fields) and populates peer directly from it, as
// spec.md §4.3 describes. v1/v2 carries no explicit length field; the
// message body, if any, is self-delimiting (e.g. a BGP UPDATE's own
// length) and is left entirely to the caller.
func readV1V2Header(src ByteSource, peer *PeerRecord) (uint8, error) {
	b, err := src.ReadExact(v1v2RemainingSize)
	if err != nil {
		return 0, err
	}
	msgType := b[0]
	decodePeerHeaderBytes(b[1:], peer)
	peer.IsPrePolicy = true // v1/v2 carries no policy-phase flag
	return msgType, nil
}
