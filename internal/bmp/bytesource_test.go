package bmp

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestByteSource_ReadExact_Success(t *testing.T) {
	src := NewByteSource(bytes.NewReader([]byte{1, 2, 3, 4, 5}))

	b, err := src.ReadExact(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Errorf("got %v, want [1 2 3]", b)
	}

	b, err = src.ReadExact(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(b, []byte{4, 5}) {
		t.Errorf("got %v, want [4 5]", b)
	}
}

func TestByteSource_ReadExact_Zero(t *testing.T) {
	src := NewByteSource(bytes.NewReader(nil))
	b, err := src.ReadExact(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b) != 0 {
		t.Errorf("expected empty slice, got %v", b)
	}
}

func TestByteSource_ReadExact_OrderlyClose(t *testing.T) {
	src := NewByteSource(bytes.NewReader(nil))
	_, err := src.ReadExact(4)
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestByteSource_ReadExact_Truncated(t *testing.T) {
	src := NewByteSource(bytes.NewReader([]byte{1, 2}))
	_, err := src.ReadExact(5)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestByteSource_ReadExact_OtherError(t *testing.T) {
	src := NewByteSource(errReader{})
	_, err := src.ReadExact(4)
	if err == nil || errors.Is(err, ErrClosed) || errors.Is(err, ErrTruncated) {
		t.Fatalf("expected raw passthrough error, got %v", err)
	}
}
