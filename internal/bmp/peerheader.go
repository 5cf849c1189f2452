package bmp

import (
	"encoding/binary"
	"time"
)

// PerPeerHeaderSize is the size, in bytes, of the v3 per-peer header and
// of the equivalent fixed block embedded in a v1/v2 message (everything
// from peer type through the microsecond timestamp).
const PerPeerHeaderSize = 42

// Peer flags (offset 1 of the per-peer header).
const (
	peerFlagV uint8 = 0x80 // 1 = IPv6 peer address
	peerFlagL uint8 = 0x40 // 1 = post-policy (or Loc-RIB, depending on context)
)

// readPeerHeader reads the fixed 42-byte v3 per-peer header and
// populates peer from it.
func readPeerHeader(src ByteSource, peer *PeerRecord) error {
	b, err := src.ReadExact(PerPeerHeaderSize)
	if err != nil {
		return err
	}
	decodePeerHeaderBytes(b, peer)
	return nil
}

// decodePeerHeaderBytes decodes the 42-byte peer structure shared by the
// v3 per-peer header and the v1/v2 common header's embedded peer fields.
//
//	offset  0: peer type      (1B)
//	offset  1: peer flags     (1B)
//	offset  2: distinguisher  (8B)
//	offset 10: peer address   (16B)
//	offset 26: peer AS        (4B)
//	offset 30: peer BGP ID    (4B)
//	offset 34: timestamp sec  (4B)
//	offset 38: timestamp usec (4B, unused)
func decodePeerHeaderBytes(b []byte, peer *PeerRecord) {
	peerType := b[0]
	flags := b[1]

	peer.IsL3VPN = peerType == PeerTypeL3VPN
	peer.IsIPv4 = flags&peerFlagV == 0
	peer.IsPrePolicy = flags&peerFlagL == 0

	peer.RD = formatRD(b[2:10])

	addr := b[10:26]
	if peer.IsIPv4 {
		peer.Addr = formatV4MappedSuffix(addr)
	} else {
		peer.Addr = formatIPv6(addr)
	}

	peer.AS = int64(binary.BigEndian.Uint32(b[26:30]))
	peer.BGPID = formatIPv4(b[30:34])

	tsSec := binary.BigEndian.Uint32(b[34:38])
	if tsSec == 0 {
		peer.Timestamp = time.Now().Unix()
	} else {
		peer.Timestamp = int64(tsSec)
	}
}
