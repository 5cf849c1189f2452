package bmp

import (
	"encoding/binary"
	"fmt"
	"net"
)

// reverseBytes reverses the n bytes of buf in place. It mirrors the
// byte-swap helper the historical C-derived decoders use to convert a
// network-order field to host order on a little-endian machine; Go's
// encoding/binary already handles that conversion host-independently, so
// nothing in this package's main decode path calls it. It is kept because
// it is one of the two components spec.md's endianness-utilities section
// names explicitly, and because a caller serializing a record back to
// wire order (tests, a future encoder) needs it.
func reverseBytes(buf []byte, n int) {
	for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
}

// formatIPv4 renders a 4-byte field as dotted-quad text.
func formatIPv4(b []byte) string {
	return net.IP(b[:4]).String()
}

// formatIPv6 renders a 16-byte field as RFC 5952-compatible text.
func formatIPv6(b []byte) string {
	return net.IP(b[:16]).String()
}

// formatV4MappedSuffix renders the trailing 4 bytes of a 16-byte peer
// address field as dotted-quad text. Used whenever the V-flag (IPv6) is
// unset: BMP always reserves the full 16 bytes for the peer address field
// and zero-pads an IPv4 address into the last 4.
func formatV4MappedSuffix(b []byte) string {
	return net.IP(b[12:16]).String()
}

// formatRD renders an 8-byte route distinguisher per its 2-byte type
// field (RFC 4364 §4.2):
//
//	type 1: 4-byte IPv4 administrator + 2-byte assigned number -> "A.B.C.D:N"
//	type 2: 4-byte ASN administrator + 2-byte assigned number  -> "ASN:N"
//	other:  2-byte administrator + 4-byte assigned number      -> "A:N"
//
// Type 0 (2-byte ASN + 4-byte number) falls through to the "other" case,
// which already reads the right offsets for it. spec.md §9 resolves an
// open question here: unlike the historical source, the "other" branch
// uses the same offsets (2 and 4) on every decode path instead of an
// inconsistent byte slicing between v1/v2 and v3.
func formatRD(b []byte) string {
	rdType := binary.BigEndian.Uint16(b[0:2])
	switch rdType {
	case 1:
		return fmt.Sprintf("%s:%d", net.IP(b[2:6]).String(), binary.BigEndian.Uint16(b[6:8]))
	case 2:
		return fmt.Sprintf("%d:%d", binary.BigEndian.Uint32(b[2:6]), binary.BigEndian.Uint16(b[6:8]))
	default:
		return fmt.Sprintf("%d:%d", binary.BigEndian.Uint16(b[2:4]), binary.BigEndian.Uint32(b[4:8]))
	}
}

// peerASHex renders a raw AS field the way the historical source did
// before parsing it back into an integer: a 0x-prefixed 8-hex-digit
// string. Nothing in the decode path uses this indirection (see
// decodePeerHeaderBytes, which reads the AS directly as a uint32); it
// exists only so a test can assert on the legacy rendering spec.md §9
// calls out as "observable only if tests assert on it."
func peerASHex(asn uint32) string {
	return fmt.Sprintf("0x%08x", asn)
}
