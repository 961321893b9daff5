// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Reader is the primitive codec (C1): bounds-checked reads of fixed-width
// integers, floats, fixed-length byte arrays, magic tags and
// null-terminated ASCII strings against an in-memory buffer, with an
// explicit, switchable byte order. It mirrors the bounds-check-then-
// binary.Read shape of structUnpack, generalized to a cursor API so
// record parsers (C2) can seek freely for indirection fields.
type Reader struct {
	data  []byte
	pos   int64
	order binary.ByteOrder
}

// NewReader wraps data for little-endian reads by default; the older
// console revision's format is big-endian, selected with SetOrder.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, order: binary.LittleEndian}
}

// SetOrder switches the byte order used by subsequent fixed-width reads.
func (r *Reader) SetOrder(order binary.ByteOrder) { r.order = order }

// Order returns the reader's current byte order.
func (r *Reader) Order() binary.ByteOrder { return r.order }

// Len returns the total backing buffer size.
func (r *Reader) Len() int64 { return int64(len(r.data)) }

// Pos returns the current cursor position.
func (r *Reader) Pos() int64 { return r.pos }

// Seek moves the cursor to an absolute position.
func (r *Reader) Seek(pos int64) { r.pos = pos }

// Bytes returns the full backing buffer.
func (r *Reader) Bytes() []byte { return r.data }

// Slice returns the n bytes at offset without moving the cursor.
func (r *Reader) Slice(offset int64, n int64) ([]byte, error) {
	if offset < 0 || n < 0 || offset+n > int64(len(r.data)) {
		return nil, NewOutOfBoundsOffset(offset, int64(len(r.data)), r.pos)
	}
	return r.data[offset : offset+n], nil
}

func (r *Reader) readN(n int) ([]byte, error) {
	if r.pos < 0 || r.pos+int64(n) > int64(len(r.data)) {
		return nil, NewShortRead(n, int(int64(len(r.data))-r.pos), r.pos)
	}
	b := r.data[r.pos : r.pos+int64(n)]
	r.pos += int64(n)
	return b, nil
}

// ReadBytes reads and returns the next n bytes, advancing the cursor.
func (r *Reader) ReadBytes(n int) ([]byte, error) { return r.readN(n) }

// ReadU8 reads one unsigned byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.readN(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads one uint16 in the reader's byte order.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.readN(2)
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

// ReadU32 reads one uint32 in the reader's byte order.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.readN(4)
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

// ReadU64 reads one uint64 in the reader's byte order.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.readN(8)
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

// ReadI8 reads one signed byte.
func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

// ReadI16 reads one int16.
func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

// ReadI32 reads one int32.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadI64 reads one int64.
func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadF32 reads one IEEE-754 float32.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadF64 reads one IEEE-754 float64.
func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadMagic reads len(expected) bytes and fails with BadMagic unless they
// equal expected exactly.
func (r *Reader) ReadMagic(expected string) error {
	pos := r.pos
	b, err := r.readN(len(expected))
	if err != nil {
		return err
	}
	if string(b) != expected {
		return NewBadMagic(expected, string(b), pos)
	}
	return nil
}

// PeekMagic reports whether the next len(expected) bytes equal expected,
// without moving the cursor or failing on mismatch.
func (r *Reader) PeekMagic(expected string) bool {
	if r.pos+int64(len(expected)) > int64(len(r.data)) {
		return false
	}
	return string(r.data[r.pos:r.pos+int64(len(expected))]) == expected
}

// ReadFixedString reads n bytes and trims everything from the first NUL,
// the convention used by every ASCII name field in this format family.
func (r *Reader) ReadFixedString(n int) (string, error) {
	b, err := r.readN(n)
	if err != nil {
		return "", err
	}
	if idx := bytes.IndexByte(b, 0); idx >= 0 {
		return string(b[:idx]), nil
	}
	return string(b), nil
}

// ReadCString reads bytes until (and past) a NUL terminator, with no
// declared upper bound, used for shared string sections.
func (r *Reader) ReadCString() (string, error) {
	start := r.pos
	for {
		if r.pos >= int64(len(r.data)) {
			return "", NewShortRead(1, 0, r.pos)
		}
		if r.data[r.pos] == 0 {
			s := string(r.data[start:r.pos])
			r.pos++
			return s, nil
		}
		r.pos++
	}
}
