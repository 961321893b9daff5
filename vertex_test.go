// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

import (
	"bytes"
	"testing"
)

func interleavedLayout() VertexBufferLayout {
	return VertexBufferLayout{
		Stride: 12 + 4, // position (3xf32) + color (4xu8)
		Count:  3,
		Attributes: []AttributeDescriptor{
			{Tag: AttributePosition, Offset: 0},
			{Tag: AttributeColor, Offset: 12},
		},
	}
}

func TestVertexBufferParseWriteRoundTrip(t *testing.T) {
	layout := interleavedLayout()
	data := make([]byte, layout.Stride*layout.Count)
	for v := uint32(0); v < layout.Count; v++ {
		w := NewByteWriter()
		w.WriteF32(float32(v))
		w.WriteF32(float32(v) + 0.5)
		w.WriteF32(float32(v) * 2)
		w.WriteU8(byte(v))
		w.WriteU8(byte(v + 1))
		w.WriteU8(byte(v + 2))
		w.WriteU8(255)
		copy(data[v*layout.Stride:], w.Bytes())
	}

	vb, err := ParseInterleavedVertexBuffer(data, layout)
	if err != nil {
		t.Fatalf("ParseInterleavedVertexBuffer: %v", err)
	}
	if len(vb.Values[AttributePosition]) != 3 {
		t.Fatalf("len(Values[Position]) = %d, want 3", len(vb.Values[AttributePosition]))
	}

	out := vb.Write()
	if !bytes.Equal(out, data) {
		t.Fatal("Write() did not reproduce the original interleaved bytes")
	}
}

func TestVertexBufferShortRead(t *testing.T) {
	layout := interleavedLayout()
	_, err := ParseInterleavedVertexBuffer(make([]byte, 4), layout)
	if err == nil {
		t.Fatal("expected ShortRead, got nil")
	}
	if xerr, ok := err.(*Error); !ok || xerr.Kind != ShortRead {
		t.Fatalf("err = %v, want ShortRead", err)
	}
}

func TestMorphTargetApplyAndDiff(t *testing.T) {
	layout := VertexBufferLayout{Stride: 12, Count: 3, Attributes: []AttributeDescriptor{{Tag: AttributePosition, Offset: 0}}}
	data := make([]byte, layout.Stride*layout.Count)
	base, err := ParseInterleavedVertexBuffer(data, layout)
	if err != nil {
		t.Fatalf("ParseInterleavedVertexBuffer: %v", err)
	}

	current, err := ParseInterleavedVertexBuffer(append([]byte{}, data...), layout)
	if err != nil {
		t.Fatalf("ParseInterleavedVertexBuffer (copy): %v", err)
	}
	mt := MorphTarget{
		VertexIndices: []uint32{1},
		PositionDelta: [][3]float32{{1, 2, 3}},
	}
	if _, err := ApplyMorphTarget(current, mt); err != nil {
		t.Fatalf("ApplyMorphTarget: %v", err)
	}

	diffed, err := DiffMorphTarget(base, current)
	if err != nil {
		t.Fatalf("DiffMorphTarget: %v", err)
	}
	if len(diffed.VertexIndices) != 1 || diffed.VertexIndices[0] != 1 {
		t.Fatalf("VertexIndices = %v, want [1]", diffed.VertexIndices)
	}
	if diffed.PositionDelta[0] != [3]float32{1, 2, 3} {
		t.Fatalf("PositionDelta = %v, want [1 2 3]", diffed.PositionDelta[0])
	}
}

func TestMorphTargetOutOfRangeIndex(t *testing.T) {
	layout := VertexBufferLayout{Stride: 12, Count: 1, Attributes: []AttributeDescriptor{{Tag: AttributePosition, Offset: 0}}}
	base, err := ParseInterleavedVertexBuffer(make([]byte, 12), layout)
	if err != nil {
		t.Fatalf("ParseInterleavedVertexBuffer: %v", err)
	}
	_, err = ApplyMorphTarget(base, MorphTarget{VertexIndices: []uint32{5}, PositionDelta: [][3]float32{{1, 1, 1}}})
	if err == nil {
		t.Fatal("expected IndexOutOfRange, got nil")
	}
	if xerr, ok := err.(*Error); !ok || xerr.Kind != IndexOutOfRange {
		t.Fatalf("err = %v, want IndexOutOfRange", err)
	}
}

func TestAttributeSizeUnknownTag(t *testing.T) {
	if got := AttributeSize(AttributeTag(9999)); got != 0 {
		t.Fatalf("AttributeSize(unknown) = %d, want 0", got)
	}
	d := AttributeDescriptor{Tag: AttributeTag(9999), RawSize: 16}
	if d.size() != 16 {
		t.Fatalf("size() with RawSize override = %d, want 16", d.size())
	}
}
