package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// preallocCap bounds how much a declared count may reserve up front, so a
// hostile count cannot force a huge allocation before the bytes arrive.
const preallocCap = 1024

// Reader decodes values from a byte source. On a stream every read blocks until
// the requested bytes are available; it never hands back a short read.
// The first error sticks and later reads return zero values.
type Reader struct {
	src     io.Reader
	scratch []byte
	err     error

	datagram *bytes.Reader
}

// NewReader buffers a stream transport, typically one connection.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{src: br, scratch: make([]byte, MaxStringLen)}
}

// NewDatagram reads from a single, already complete datagram. Call Finish after
// decoding to check that the payload was consumed exactly.
func NewDatagram(b []byte) *Reader {
	br := bytes.NewReader(b)
	return &Reader{src: br, scratch: make([]byte, MaxStringLen), datagram: br}
}

func (r *Reader) fill(n int) []byte {
	if r.err != nil {
		return nil
	}
	buf := r.scratch[:n]
	if _, err := io.ReadFull(r.src, buf); err != nil {
		r.err = err
		return nil
	}
	return buf
}

func (r *Reader) U8() uint8 {
	b := r.fill(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *Reader) U16() uint16 {
	b := r.fill(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *Reader) U32() uint32 {
	b := r.fill(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *Reader) String() string {
	n := r.U8()
	if r.err != nil || n == 0 {
		return ""
	}
	b := r.fill(int(n))
	if b == nil {
		return ""
	}
	return string(b)
}

func (r *Reader) Err() error {
	return r.err
}

// Finish reports whether a datagram decoded cleanly and left no trailing bytes.
// On a stream reader it only reports the sticky error.
func (r *Reader) Finish() error {
	if r.datagram == nil {
		return r.err
	}
	if r.err != nil {
		if r.err == io.EOF || r.err == io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: payload truncated", ErrLengthMismatch)
		}
		return r.err
	}
	if left := r.datagram.Len(); left != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrLengthMismatch, left)
	}
	return nil
}

// ReadSeq reads a count-prefixed sequence.
func ReadSeq[T any](r *Reader, get func(*Reader) T) []T {
	n := r.U32()
	if r.err != nil {
		return nil
	}
	items := make([]T, 0, min(int(n), preallocCap))
	for i := uint32(0); i < n; i++ {
		it := get(r)
		if r.err != nil {
			return nil
		}
		items = append(items, it)
	}
	return items
}

// ReadMap reads a count-prefixed mapping. A repeated key keeps the last value.
func ReadMap[K comparable, V any](r *Reader, get func(*Reader) (K, V)) map[K]V {
	n := r.U32()
	if r.err != nil {
		return nil
	}
	m := make(map[K]V, min(int(n), preallocCap))
	for i := uint32(0); i < n; i++ {
		k, v := get(r)
		if r.err != nil {
			return nil
		}
		m[k] = v
	}
	return m
}
