package bmp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestProbeVersion_Supported(t *testing.T) {
	for _, v := range []byte{1, 2, 3} {
		src := NewByteSource(bytes.NewReader([]byte{v}))
		got, err := probeVersion(src)
		if err != nil {
			t.Fatalf("version %d: unexpected error: %v", v, err)
		}
		if got != v {
			t.Errorf("version %d: got %d", v, got)
		}
	}
}

func TestProbeVersion_Unsupported(t *testing.T) {
	src := NewByteSource(bytes.NewReader([]byte{7}))
	_, err := probeVersion(src)
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestReadV3CommonHeader(t *testing.T) {
	buf := make([]byte, 5)
	binary.BigEndian.PutUint32(buf[0:4], 42) // total length, including version byte
	buf[4] = MsgTypeInitiation
	src := NewByteSource(bytes.NewReader(buf))

	hdr, err := readV3CommonHeader(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hdr.MsgType != MsgTypeInitiation {
		t.Errorf("MsgType = %d, want %d", hdr.MsgType, MsgTypeInitiation)
	}
	if hdr.BMPLen != 42-6 {
		t.Errorf("BMPLen = %d, want %d", hdr.BMPLen, 42-6)
	}
}

func TestReadV3CommonHeader_LengthTooSmall(t *testing.T) {
	buf := make([]byte, 5)
	binary.BigEndian.PutUint32(buf[0:4], 3)
	buf[4] = MsgTypeInitiation
	src := NewByteSource(bytes.NewReader(buf))

	_, err := readV3CommonHeader(src)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func buildV1V2PeerBlock(peerType, flags uint8) []byte {
	b := make([]byte, 42)
	b[0] = peerType
	b[1] = flags
	return b
}

func TestReadV1V2Header(t *testing.T) {
	body := buildV1V2PeerBlock(PeerTypeL3VPN, 0)
	full := append([]byte{MsgTypeRouteMonitoring}, body...)
	src := NewByteSource(bytes.NewReader(full))

	var peer PeerRecord
	msgType, err := readV1V2Header(src, &peer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != MsgTypeRouteMonitoring {
		t.Errorf("msgType = %d", msgType)
	}
	if !peer.IsL3VPN {
		t.Error("expected IsL3VPN = true")
	}
	if !peer.IsIPv4 {
		t.Error("expected IsIPv4 = true (V flag unset)")
	}
}
