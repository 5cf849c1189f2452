package bmp

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildPeerHeader(peerType, flags uint8, rd [8]byte, addr [16]byte, as uint32, bgpID [4]byte, tsSec uint32) []byte {
	b := make([]byte, 42)
	b[0] = peerType
	b[1] = flags
	copy(b[2:10], rd[:])
	copy(b[10:26], addr[:])
	binary.BigEndian.PutUint32(b[26:30], as)
	copy(b[30:34], bgpID[:])
	binary.BigEndian.PutUint32(b[34:38], tsSec)
	return b
}

func TestReadPeerHeader_IPv4(t *testing.T) {
	var addr [16]byte
	copy(addr[12:], []byte{198, 51, 100, 7})
	var bgpID [4]byte
	copy(bgpID[:], []byte{1, 1, 1, 1})

	b := buildPeerHeader(0, 0, [8]byte{}, addr, 65001, bgpID, 1700000000)
	src := NewByteSource(bytes.NewReader(b))

	var peer PeerRecord
	if err := readPeerHeader(src, &peer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peer.Addr != "198.51.100.7" {
		t.Errorf("Addr = %q", peer.Addr)
	}
	if peer.AS != 65001 {
		t.Errorf("AS = %d", peer.AS)
	}
	if peer.BGPID != "1.1.1.1" {
		t.Errorf("BGPID = %q", peer.BGPID)
	}
	if peer.Timestamp != 1700000000 {
		t.Errorf("Timestamp = %d", peer.Timestamp)
	}
	if peer.IsL3VPN {
		t.Error("expected IsL3VPN = false for peer type 0")
	}
	if !peer.IsPrePolicy {
		t.Error("expected IsPrePolicy = true (L flag unset)")
	}
}

func TestReadPeerHeader_IPv6AndPostPolicy(t *testing.T) {
	var addr [16]byte
	copy(addr[:], []byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2})

	b := buildPeerHeader(0, peerFlagV|peerFlagL, [8]byte{}, addr, 65002, [4]byte{}, 0)
	src := NewByteSource(bytes.NewReader(b))

	var peer PeerRecord
	if err := readPeerHeader(src, &peer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peer.IsIPv4 {
		t.Error("expected IsIPv4 = false (V flag set)")
	}
	if peer.Addr != "2001:db8::2" {
		t.Errorf("Addr = %q", peer.Addr)
	}
	if peer.IsPrePolicy {
		t.Error("expected IsPrePolicy = false (L flag set)")
	}
	if peer.Timestamp == 0 {
		t.Error("expected a zero-timestamp field to be filled with wall-clock now()")
	}
}
