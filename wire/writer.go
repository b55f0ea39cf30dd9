// Package wire implements the binary framing shared by every message direction:
// big-endian integers, length-prefixed text, count-prefixed sequences and mappings.
package wire

import (
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
)

// MaxStringLen is the longest text a single length byte can describe.
const MaxStringLen = 255

var (
	ErrStringTooLong  = errors.New("wire: string longer than 255 bytes")
	ErrLengthMismatch = errors.New("wire: datagram length does not match its payload")
)

// Writer accumulates an encoded message. The first error sticks; later calls are no-ops.
type Writer struct {
	buf []byte
	err error
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

func (w *Writer) U8(v uint8) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, v)
}

func (w *Writer) U16(v uint16) {
	if w.err != nil {
		return
	}
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *Writer) U32(v uint32) {
	if w.err != nil {
		return
	}
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

// String writes one length byte followed by the raw bytes of s.
func (w *Writer) String(s string) {
	if w.err != nil {
		return
	}
	if len(s) > MaxStringLen {
		w.err = fmt.Errorf("%w: %d bytes", ErrStringTooLong, len(s))
		return
	}
	w.buf = append(w.buf, uint8(len(s)))
	w.buf = append(w.buf, s...)
}

// Count writes a sequence or mapping length prefix.
func (w *Writer) Count(n int) {
	w.U32(uint32(n))
}

// Bytes returns the encoded message, or the first error hit while building it.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

// PutSeq writes a count-prefixed sequence in slice order.
func PutSeq[T any](w *Writer, items []T, put func(*Writer, T)) {
	w.Count(len(items))
	for _, it := range items {
		put(w, it)
	}
}

// PutMap writes a count-prefixed mapping. Keys go out in ascending order so the
// same map always yields the same bytes; readers must not depend on it.
func PutMap[K cmp.Ordered, V any](w *Writer, m map[K]V, put func(*Writer, K, V)) {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	w.Count(len(keys))
	for _, k := range keys {
		put(w, k, m[k])
	}
}
