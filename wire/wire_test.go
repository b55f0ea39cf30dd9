package wire

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
)

func TestPrimitivesRoundTrip(t *testing.T) {
	w := NewWriter()
	w.U8(0)
	w.U8(255)
	w.U16(0)
	w.U16(0xBEEF)
	w.U32(0)
	w.U32(0xDEADBEEF)
	w.String("")
	w.String("robot")
	w.String(strings.Repeat("x", MaxStringLen))

	data, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes returned error: %v", err)
	}

	r := NewReader(bytes.NewReader(data))
	if got := r.U8(); got != 0 {
		t.Errorf("U8: expected 0, got %d", got)
	}
	if got := r.U8(); got != 255 {
		t.Errorf("U8: expected 255, got %d", got)
	}
	if got := r.U16(); got != 0 {
		t.Errorf("U16: expected 0, got %d", got)
	}
	if got := r.U16(); got != 0xBEEF {
		t.Errorf("U16: expected 0xBEEF, got %#x", got)
	}
	if got := r.U32(); got != 0 {
		t.Errorf("U32: expected 0, got %d", got)
	}
	if got := r.U32(); got != 0xDEADBEEF {
		t.Errorf("U32: expected 0xDEADBEEF, got %#x", got)
	}
	if got := r.String(); got != "" {
		t.Errorf("String: expected empty, got %q", got)
	}
	if got := r.String(); got != "robot" {
		t.Errorf("String: expected robot, got %q", got)
	}
	if got := r.String(); got != strings.Repeat("x", MaxStringLen) {
		t.Errorf("String: max length text did not survive, got %d bytes", len(got))
	}
	if err := r.Err(); err != nil {
		t.Fatalf("unexpected reader error: %v", err)
	}
}

func TestBigEndianLayout(t *testing.T) {
	w := NewWriter()
	w.U16(0x0102)
	w.U32(0x03040506)
	w.String("ab")
	data, _ := w.Bytes()

	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x02, 'a', 'b'}
	if !bytes.Equal(data, want) {
		t.Errorf("expected % x, got % x", want, data)
	}
}

func TestStringTooLongFailsFast(t *testing.T) {
	w := NewWriter()
	w.U8(7)
	w.String(strings.Repeat("y", MaxStringLen+1))
	w.U8(9)

	if _, err := w.Bytes(); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("expected ErrStringTooLong, got %v", err)
	}
}

func TestSequencesAndMappings(t *testing.T) {
	tests := []struct {
		name string
		seq  []uint16
		m    map[uint8]uint32
	}{
		{"empty", []uint16{}, map[uint8]uint32{}},
		{"one", []uint16{42}, map[uint8]uint32{3: 9}},
		{"many", []uint16{5, 4, 3, 2, 1}, map[uint8]uint32{0: 1, 1: 2, 200: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter()
			PutSeq(w, tt.seq, func(w *Writer, v uint16) { w.U16(v) })
			PutMap(w, tt.m, func(w *Writer, k uint8, v uint32) {
				w.U8(k)
				w.U32(v)
			})
			data, err := w.Bytes()
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}

			r := NewDatagram(data)
			seq := ReadSeq(r, func(r *Reader) uint16 { return r.U16() })
			m := ReadMap(r, func(r *Reader) (uint8, uint32) { return r.U8(), r.U32() })
			if err := r.Finish(); err != nil {
				t.Fatalf("decode failed: %v", err)
			}

			if !reflect.DeepEqual(seq, tt.seq) {
				t.Errorf("sequence: expected %v, got %v", tt.seq, seq)
			}
			if !reflect.DeepEqual(m, tt.m) {
				t.Errorf("mapping: expected %v, got %v", tt.m, m)
			}
		})
	}
}

func TestStreamToleratesPartialArrival(t *testing.T) {
	w := NewWriter()
	w.U32(123456)
	w.String("partial")
	data, _ := w.Bytes()

	r := NewReader(iotest.OneByteReader(bytes.NewReader(data)))
	if got := r.U32(); got != 123456 {
		t.Errorf("expected 123456, got %d", got)
	}
	if got := r.String(); got != "partial" {
		t.Errorf("expected partial, got %q", got)
	}
	if err := r.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStreamBlocksUntilBytesArrive(t *testing.T) {
	pr, pw := io.Pipe()
	r := NewReader(pr)

	done := make(chan uint16)
	go func() {
		done <- r.U16()
	}()

	pw.Write([]byte{0xAB})
	select {
	case v := <-done:
		t.Fatalf("read returned early with %#x", v)
	default:
	}
	pw.Write([]byte{0xCD})

	if got := <-done; got != 0xABCD {
		t.Errorf("expected 0xABCD, got %#x", got)
	}
	pw.Close()
}

func TestStreamReportsEOF(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	r.U8()
	if !errors.Is(r.Err(), io.EOF) {
		t.Errorf("expected io.EOF, got %v", r.Err())
	}
}

func TestDatagramLengthMismatch(t *testing.T) {
	t.Run("truncated", func(t *testing.T) {
		r := NewDatagram([]byte{0x00})
		r.U16()
		if err := r.Finish(); !errors.Is(err, ErrLengthMismatch) {
			t.Errorf("expected ErrLengthMismatch, got %v", err)
		}
	})

	t.Run("trailing", func(t *testing.T) {
		r := NewDatagram([]byte{0x00, 0x01, 0x02})
		r.U16()
		if err := r.Finish(); !errors.Is(err, ErrLengthMismatch) {
			t.Errorf("expected ErrLengthMismatch, got %v", err)
		}
	})

	t.Run("declared string longer than payload", func(t *testing.T) {
		r := NewDatagram([]byte{0x05, 'a', 'b'})
		r.String()
		if err := r.Finish(); !errors.Is(err, ErrLengthMismatch) {
			t.Errorf("expected ErrLengthMismatch, got %v", err)
		}
	})
}

func TestHugeCountDoesNotPreallocate(t *testing.T) {
	r := NewDatagram([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x01})
	seq := ReadSeq(r, func(r *Reader) uint8 { return r.U8() })
	if seq != nil {
		t.Errorf("expected nil sequence on truncated input, got %d items", len(seq))
	}
	if err := r.Finish(); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
}
