// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package wire provides the binary trace format for recorded simulation
// vectors.
//
// A trace record frames a dense (rows × cols) numeric matrix, such as the
// spike record captured by a recorder process, with a fixed header:
//
//	+----+----+------+------+-----------+-----------+----------------+
//	| 'L'| 'R'| vers | kind | rows (u32)| cols (u32)| elements ...   |
//	+----+----+------+------+-----------+-----------+----------------+
//
// All multi-byte values are big-endian. Element kind 'f' encodes float32
// values as IEEE-754 bits; kind 'i' encodes int32 values. Spike masks may
// alternatively be packed one byte per element with [Builder.Spike].
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/creachadair/lif"
	"github.com/creachadair/mds/value"
)

// Kind identifies the element encoding of a trace record.
type Kind byte

const (
	Float32 Kind = 'f' // IEEE-754 float32 bits
	Int32   Kind = 'i' // two's-complement int32
)

const version = 0

// KindOf reports the element kind used to encode type T.
func KindOf[T lif.Elem]() Kind {
	var zero T
	if _, ok := any(zero).(float32); ok {
		return Float32
	}
	return Int32
}

// A Builder is a buffer that accumulates binary trace data. The zero value
// is ready for use as an empty builder.
type Builder struct {
	buf []byte
}

// Uint32 appends v to b in big-endian order.
func (b *Builder) Uint32(v uint32) { b.buf = binary.BigEndian.AppendUint32(b.buf, v) }

// Int32 appends v to b in big-endian order.
func (b *Builder) Int32(v int32) { b.Uint32(uint32(v)) }

// Float32 appends the IEEE-754 bits of v to b in big-endian order.
func (b *Builder) Float32(v float32) { b.Uint32(math.Float32bits(v)) }

// Spike appends a spike mask element to b as a single 0 or 1 byte.
func (b *Builder) Spike(fired bool) { b.buf = append(b.buf, value.Cond[byte](fired, 1, 0)) }

// Elem appends v to b using the encoding of its kind.
func (b *Builder) Elem(v any) {
	switch t := v.(type) {
	case float32:
		b.Float32(t)
	case int32:
		b.Int32(t)
	default:
		panic(fmt.Sprintf("invalid element type %T", v))
	}
}

// Len reports the number of bytes currently in the buffer.
func (b *Builder) Len() int { return len(b.buf) }

// Bytes reports the current contents of the buffer. The builder retains
// ownership of the reported slice.
func (b *Builder) Bytes() []byte { return b.buf }

// Reset discards the contents of b and leaves it empty.
func (b *Builder) Reset() { b.buf = b.buf[:0] }

// A Scanner reads encoded values from trace data. Incomplete values report
// [io.ErrUnexpectedEOF].
type Scanner struct {
	rest []byte
}

// NewScanner constructs a Scanner that consumes data from input. The
// scanner does not modify the input, but retains slices into it.
func NewScanner(input []byte) *Scanner { return &Scanner{rest: input} }

// Len reports the number of unconsumed bytes remaining.
func (s *Scanner) Len() int { return len(s.rest) }

// Byte scans a single byte from the head of the input.
func (s *Scanner) Byte() (byte, error) {
	if len(s.rest) == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	out := s.rest[0]
	s.rest = s.rest[1:]
	return out, nil
}

// Uint32 scans a big-endian uint32 from the head of the input.
func (s *Scanner) Uint32() (uint32, error) {
	if len(s.rest) < 4 {
		return 0, io.ErrUnexpectedEOF
	}
	out := binary.BigEndian.Uint32(s.rest)
	s.rest = s.rest[4:]
	return out, nil
}

// Int32 scans a big-endian int32 from the head of the input.
func (s *Scanner) Int32() (int32, error) {
	v, err := s.Uint32()
	return int32(v), err
}

// Float32 scans a big-endian IEEE-754 float32 from the head of the input.
func (s *Scanner) Float32() (float32, error) {
	v, err := s.Uint32()
	return math.Float32frombits(v), err
}

// Spike scans a spike mask element from the head of the input.
func (s *Scanner) Spike() (bool, error) {
	b, err := s.Byte()
	return b != 0, err
}

// EncodeRecord encodes a (rows × cols) record of flat row-major data in
// binary trace format. It reports an error if the data length does not
// match the declared dimensions.
func EncodeRecord[T lif.Elem](rows, cols int, data []T) ([]byte, error) {
	if rows*cols != len(data) {
		return nil, fmt.Errorf("record %d×%d: %d elements, want %d", rows, cols, len(data), rows*cols)
	}
	var b Builder
	b.buf = append(b.buf, 'L', 'R', version, byte(KindOf[T]()))
	b.Uint32(uint32(rows))
	b.Uint32(uint32(cols))
	for _, v := range data {
		b.Elem(v)
	}
	return b.Bytes(), nil
}

// DecodeRecord decodes a binary trace record of element type T, returning
// its dimensions and flat row-major contents.
func DecodeRecord[T lif.Elem](input []byte) (rows, cols int, data []T, _ error) {
	if len(input) < 4 || input[0] != 'L' || input[1] != 'R' {
		return 0, 0, nil, fmt.Errorf("invalid record header")
	} else if input[2] != version {
		return 0, 0, nil, fmt.Errorf("invalid record version %d", input[2])
	} else if Kind(input[3]) != KindOf[T]() {
		return 0, 0, nil, fmt.Errorf("record kind %q, want %q", input[3], byte(KindOf[T]()))
	}
	s := NewScanner(input[4:])
	nr, err := s.Uint32()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("short record dimensions: %w", err)
	}
	nc, err := s.Uint32()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("short record dimensions: %w", err)
	}
	// The payload must match the declared dimensions exactly before
	// anything is allocated. The product is computed in uint64 so that
	// absurd declared dimensions cannot overflow the comparison.
	if s.Len()%4 != 0 || uint64(nr)*uint64(nc) != uint64(s.Len()/4) {
		return 0, 0, nil, fmt.Errorf("record %d×%d: %d payload bytes", nr, nc, s.Len())
	}
	rows, cols = int(nr), int(nc)

	data = make([]T, 0, rows*cols)
	for range rows * cols {
		var v T
		switch p := any(&v).(type) {
		case *float32:
			*p, _ = s.Float32() // cannot fail; length checked above
		case *int32:
			*p, _ = s.Int32()
		}
		data = append(data, v)
	}
	return rows, cols, data, nil
}
