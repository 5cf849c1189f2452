package bmp

import (
	"errors"
	"fmt"
	"io"
)

// ByteSource abstracts the underlying socket. ReadExact returns exactly n
// bytes or a non-nil error; a short read never propagates as a partial
// result. Every decoding operation in this package reads through a
// ByteSource, never directly from a net.Conn.
type ByteSource interface {
	ReadExact(n int) ([]byte, error)
}

type readerSource struct {
	r io.Reader
}

// NewByteSource adapts any io.Reader (typically a net.Conn) into a
// ByteSource.
func NewByteSource(r io.Reader) ByteSource {
	return &readerSource{r: r}
}

func (s *readerSource) ReadExact(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(s.r, buf)
	if err == nil {
		return buf, nil
	}
	if read == 0 && errors.Is(err, io.EOF) {
		return nil, ErrClosed
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: wanted %d bytes, got %d: %v", ErrTruncated, n, read, err)
	}
	return nil, err
}
