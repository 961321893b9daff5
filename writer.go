// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

import (
	"bytes"
	"encoding/binary"
	"math"
)

// ByteWriter is the primitive-codec half of the writer: append-only,
// fixed-width encoding with an explicit byte order. The pointer-placement
// machinery (OffsetWriter, in layout.go) embeds one of these as its byte
// sink.
type ByteWriter struct {
	buf   bytes.Buffer
	order binary.ByteOrder
}

// NewByteWriter returns a little-endian ByteWriter.
func NewByteWriter() *ByteWriter {
	return &ByteWriter{order: binary.LittleEndian}
}

// SetOrder switches the byte order used by subsequent fixed-width writes.
func (w *ByteWriter) SetOrder(order binary.ByteOrder) { w.order = order }

// Order returns the writer's current byte order.
func (w *ByteWriter) Order() binary.ByteOrder { return w.order }

// Pos returns the number of bytes written so far.
func (w *ByteWriter) Pos() int64 { return int64(w.buf.Len()) }

// Bytes returns the accumulated buffer.
func (w *ByteWriter) Bytes() []byte { return w.buf.Bytes() }

// WriteRaw appends b verbatim.
func (w *ByteWriter) WriteRaw(b []byte) { w.buf.Write(b) }

// WriteU8 appends one byte.
func (w *ByteWriter) WriteU8(v uint8) { w.buf.WriteByte(v) }

// WriteU16 appends one uint16.
func (w *ByteWriter) WriteU16(v uint16) {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// WriteU32 appends one uint32.
func (w *ByteWriter) WriteU32(v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteU64 appends one uint64.
func (w *ByteWriter) WriteU64(v uint64) {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteI8 appends one signed byte.
func (w *ByteWriter) WriteI8(v int8) { w.WriteU8(uint8(v)) }

// WriteI16 appends one int16.
func (w *ByteWriter) WriteI16(v int16) { w.WriteU16(uint16(v)) }

// WriteI32 appends one int32.
func (w *ByteWriter) WriteI32(v int32) { w.WriteU32(uint32(v)) }

// WriteI64 appends one int64.
func (w *ByteWriter) WriteI64(v int64) { w.WriteU64(uint64(v)) }

// WriteF32 appends one IEEE-754 float32.
func (w *ByteWriter) WriteF32(v float32) { w.WriteU32(math.Float32bits(v)) }

// WriteF64 appends one IEEE-754 float64.
func (w *ByteWriter) WriteF64(v float64) { w.WriteU64(math.Float64bits(v)) }

// WriteMagic appends the literal bytes of a magic tag.
func (w *ByteWriter) WriteMagic(magic string) { w.buf.WriteString(magic) }

// WriteFixedString writes s followed by NUL padding out to n bytes total;
// s longer than n is truncated, matching the teacher's bounds-first style
// of preferring a safe truncation over a panic on malformed input.
func (w *ByteWriter) WriteFixedString(s string, n int) {
	b := make([]byte, n)
	copy(b, s)
	w.buf.Write(b)
}

// WriteCString appends s followed by a single NUL terminator.
func (w *ByteWriter) WriteCString(s string) {
	w.buf.WriteString(s)
	w.buf.WriteByte(0)
}

// Align pads the buffer with fill bytes until Pos() is a multiple of n.
func (w *ByteWriter) Align(n int, fill byte) {
	if n <= 1 {
		return
	}
	for w.buf.Len()%n != 0 {
		w.buf.WriteByte(fill)
	}
}

// PadTo pads the buffer with fill bytes until Pos() == target. No-op if
// already past target.
func (w *ByteWriter) PadTo(target int64, fill byte) {
	for int64(w.buf.Len()) < target {
		w.buf.WriteByte(fill)
	}
}
