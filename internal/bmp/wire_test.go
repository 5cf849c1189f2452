package bmp

import (
	"encoding/binary"
	"testing"
)

func TestReverseBytes(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	reverseBytes(buf, 4)
	want := []byte{4, 3, 2, 1}
	for i := range want {
		if buf[i] != want[i] {
			t.Errorf("reverseBytes: got %v, want %v", buf, want)
			break
		}
	}
}

func TestFormatIPv4(t *testing.T) {
	if got := formatIPv4([]byte{192, 0, 2, 1}); got != "192.0.2.1" {
		t.Errorf("got %q, want 192.0.2.1", got)
	}
}

func TestFormatIPv6(t *testing.T) {
	b := []byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	if got := formatIPv6(b); got != "2001:db8::1" {
		t.Errorf("got %q, want 2001:db8::1", got)
	}
}

func TestFormatV4MappedSuffix(t *testing.T) {
	b := make([]byte, 16)
	copy(b[12:], []byte{10, 1, 2, 3})
	if got := formatV4MappedSuffix(b); got != "10.1.2.3" {
		t.Errorf("got %q, want 10.1.2.3", got)
	}
}

func TestFormatRD_Type1(t *testing.T) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint16(b[0:2], 1)
	copy(b[2:6], []byte{192, 0, 2, 1})
	binary.BigEndian.PutUint16(b[6:8], 100)
	if got := formatRD(b); got != "192.0.2.1:100" {
		t.Errorf("got %q, want 192.0.2.1:100", got)
	}
}

func TestFormatRD_Type2(t *testing.T) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint16(b[0:2], 2)
	binary.BigEndian.PutUint32(b[2:6], 65000)
	binary.BigEndian.PutUint16(b[6:8], 42)
	if got := formatRD(b); got != "65000:42" {
		t.Errorf("got %q, want 65000:42", got)
	}
}

func TestFormatRD_Other(t *testing.T) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint16(b[0:2], 9)
	binary.BigEndian.PutUint16(b[2:4], 7)
	binary.BigEndian.PutUint32(b[4:8], 12345)
	if got := formatRD(b); got != "7:12345" {
		t.Errorf("got %q, want 7:12345", got)
	}
}

func TestFormatRD_TypeZero(t *testing.T) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint16(b[2:4], 3)
	binary.BigEndian.PutUint32(b[4:8], 7)
	if got := formatRD(b); got != "3:7" {
		t.Errorf("got %q, want 3:7", got)
	}
}

func TestPeerASHex(t *testing.T) {
	if got := peerASHex(65001); got != "0x0000fde9" {
		t.Errorf("got %q, want 0x0000fde9", got)
	}
}
