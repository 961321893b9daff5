// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

import (
	"encoding/binary"
	"testing"
)

func TestReaderFixedWidthRoundTrip(t *testing.T) {
	w := NewByteWriter()
	w.WriteU8(0xAB)
	w.WriteU16(0x1234)
	w.WriteU32(0xDEADBEEF)
	w.WriteU64(0x0102030405060708)
	w.WriteI32(-42)
	w.WriteF32(3.5)
	w.WriteF64(-2.25)

	r := NewReader(w.Bytes())
	if v, err := r.ReadU8(); err != nil || v != 0xAB {
		t.Fatalf("ReadU8 = %v, %v", v, err)
	}
	if v, err := r.ReadU16(); err != nil || v != 0x1234 {
		t.Fatalf("ReadU16 = %v, %v", v, err)
	}
	if v, err := r.ReadU32(); err != nil || v != 0xDEADBEEF {
		t.Fatalf("ReadU32 = %v, %v", v, err)
	}
	if v, err := r.ReadU64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("ReadU64 = %v, %v", v, err)
	}
	if v, err := r.ReadI32(); err != nil || v != -42 {
		t.Fatalf("ReadI32 = %v, %v", v, err)
	}
	if v, err := r.ReadF32(); err != nil || v != 3.5 {
		t.Fatalf("ReadF32 = %v, %v", v, err)
	}
	if v, err := r.ReadF64(); err != nil || v != -2.25 {
		t.Fatalf("ReadF64 = %v, %v", v, err)
	}
}

func TestReaderBigEndian(t *testing.T) {
	w := NewByteWriter()
	w.SetOrder(binary.BigEndian)
	w.WriteU32(0x01020304)

	r := NewReader(w.Bytes())
	r.SetOrder(binary.BigEndian)
	v, err := r.ReadU32()
	if err != nil || v != 0x01020304 {
		t.Fatalf("ReadU32 (big-endian) = %v, %v", v, err)
	}
}

func TestReaderMagic(t *testing.T) {
	r := NewReader([]byte("xbc1rest"))
	if err := r.ReadMagic("xbc1"); err != nil {
		t.Fatalf("ReadMagic: %v", err)
	}
	if r.Pos() != 4 {
		t.Fatalf("Pos = %d, want 4", r.Pos())
	}

	r2 := NewReader([]byte("nope"))
	err := r2.ReadMagic("xbc1")
	if err == nil {
		t.Fatal("expected BadMagic, got nil")
	}
	xerr, ok := err.(*Error)
	if !ok || xerr.Kind != BadMagic {
		t.Fatalf("err = %v, want BadMagic", err)
	}
}

func TestReaderShortRead(t *testing.T) {
	r := NewReader([]byte{1, 2})
	if _, err := r.ReadU32(); err == nil {
		t.Fatal("expected ShortRead, got nil")
	} else if xerr, ok := err.(*Error); !ok || xerr.Kind != ShortRead {
		t.Fatalf("err = %v, want ShortRead", err)
	}
}

func TestReaderFixedString(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		n    int
		want string
	}{
		{"nul-padded", append([]byte("abc"), make([]byte, 5)...), 8, "abc"},
		{"no-nul", []byte("abcd"), 4, "abcd"},
		{"empty", make([]byte, 4), 4, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.raw)
			got, err := r.ReadFixedString(tt.n)
			if err != nil {
				t.Fatalf("ReadFixedString: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ReadFixedString = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReaderCString(t *testing.T) {
	r := NewReader([]byte("first\x00second\x00"))
	s1, err := r.ReadCString()
	if err != nil || s1 != "first" {
		t.Fatalf("ReadCString #1 = %q, %v", s1, err)
	}
	s2, err := r.ReadCString()
	if err != nil || s2 != "second" {
		t.Fatalf("ReadCString #2 = %q, %v", s2, err)
	}
}

func TestReaderSliceOutOfBounds(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if _, err := r.Slice(2, 5); err == nil {
		t.Fatal("expected OutOfBoundsOffset, got nil")
	} else if xerr, ok := err.(*Error); !ok || xerr.Kind != OutOfBoundsOffset {
		t.Fatalf("err = %v, want OutOfBoundsOffset", err)
	}
}

func TestWriterFixedStringTruncates(t *testing.T) {
	w := NewByteWriter()
	w.WriteFixedString("this string is far too long", 4)
	if w.Pos() != 4 {
		t.Fatalf("Pos = %d, want 4", w.Pos())
	}
}

func TestWriterAlignAndPadTo(t *testing.T) {
	w := NewByteWriter()
	w.WriteU8(1)
	w.Align(16, 0xFF)
	if w.Pos() != 16 {
		t.Fatalf("Pos after Align = %d, want 16", w.Pos())
	}
	for _, b := range w.Bytes()[1:] {
		if b != 0xFF {
			t.Fatalf("padding byte = %#x, want 0xFF", b)
		}
	}

	w2 := NewByteWriter()
	w2.WriteU8(1)
	w2.PadTo(8, 0)
	if w2.Pos() != 8 {
		t.Fatalf("Pos after PadTo = %d, want 8", w2.Pos())
	}
}
