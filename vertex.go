// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

import "fmt"

// AttributeTag enumerates the small integer vertex-attribute kinds named
// in spec.md 3 ("position, normals, tangents, up to nine UV sets, colors,
// skin weights, bone indices").
type AttributeTag uint16

const (
	AttributePosition AttributeTag = iota
	AttributeNormal
	AttributeTangent
	AttributeTexCoord0
	AttributeTexCoord1
	AttributeTexCoord2
	AttributeTexCoord3
	AttributeTexCoord4
	AttributeTexCoord5
	AttributeTexCoord6
	AttributeTexCoord7
	AttributeTexCoord8
	AttributeColor
	AttributeWeightIndex
	AttributeSkinWeight
	attributeTagCount
)

// attributeSizes is the canonical byte width per tag (spec.md 6: "a
// canonical byte size per tag").
var attributeSizes = [attributeTagCount]uint32{
	AttributePosition:    12, // 3 x float32
	AttributeNormal:      4,  // packed snorm8x4
	AttributeTangent:     4,  // packed snorm8x4
	AttributeTexCoord0:   8,
	AttributeTexCoord1:   8,
	AttributeTexCoord2:   8,
	AttributeTexCoord3:   8,
	AttributeTexCoord4:   8,
	AttributeTexCoord5:   8,
	AttributeTexCoord6:   8,
	AttributeTexCoord7:   8,
	AttributeTexCoord8:   8,
	AttributeColor:       4,
	AttributeWeightIndex: 4, // 4 x uint8
	AttributeSkinWeight:  8, // 4 x snorm16
}

// AttributeSize returns tag's canonical byte width, or 0 for an unknown
// tag value read from a file this codec doesn't recognize.
func AttributeSize(tag AttributeTag) uint32 {
	if tag < attributeTagCount {
		return attributeSizes[tag]
	}
	return 0
}

// AttributeDescriptor places one attribute at a byte offset within an
// interleaved vertex.
type AttributeDescriptor struct {
	Tag    AttributeTag
	Offset uint32
	// RawSize overrides AttributeSize(Tag) for an unrecognized tag so the
	// codec can still stride past it and preserve its bytes opaquely on
	// re-emission (spec.md 4.6: "unknown tags are preserved as opaque byte
	// payloads").
	RawSize uint32
}

func (d AttributeDescriptor) size() uint32 {
	if d.RawSize != 0 {
		return d.RawSize
	}
	return AttributeSize(d.Tag)
}

// VertexBufferLayout describes one interleaved buffer's stride and
// attribute placement.
type VertexBufferLayout struct {
	Stride     uint32
	Attributes []AttributeDescriptor
	Count      uint32
}

// VertexBuffer is one decoded interleaved buffer: raw per-attribute byte
// slices, one []byte per vertex per attribute.
type VertexBuffer struct {
	Layout VertexBufferLayout
	// Values maps attribute tag to Count-many raw attribute values of
	// Layout's declared size, in vertex order.
	Values map[AttributeTag][][]byte
}

// ParseInterleavedVertexBuffer strides data by Layout.Stride bytes per
// vertex and slices out each attribute at its declared offset (spec.md
// 4.6).
func ParseInterleavedVertexBuffer(data []byte, layout VertexBufferLayout) (*VertexBuffer, error) {
	need := int64(layout.Stride) * int64(layout.Count)
	if need > int64(len(data)) {
		return nil, NewShortRead(int(need), len(data), 0)
	}
	vb := &VertexBuffer{Layout: layout, Values: make(map[AttributeTag][][]byte, len(layout.Attributes))}
	for _, attr := range layout.Attributes {
		size := attr.size()
		values := make([][]byte, layout.Count)
		for v := uint32(0); v < layout.Count; v++ {
			start := int64(v)*int64(layout.Stride) + int64(attr.Offset)
			end := start + int64(size)
			if end > int64(len(data)) {
				return nil, NewEntryOutOfBounds(start, int64(size), int64(len(data)))
			}
			values[v] = data[start:end]
		}
		vb.Values[attr.Tag] = values
	}
	return vb, nil
}

// Write re-interleaves the buffer back into a single byte slice.
func (vb *VertexBuffer) Write() []byte {
	out := make([]byte, vb.Layout.Stride*vb.Layout.Count)
	for _, attr := range vb.Layout.Attributes {
		values := vb.Values[attr.Tag]
		for v := uint32(0); v < vb.Layout.Count && int(v) < len(values); v++ {
			start := v*vb.Layout.Stride + attr.Offset
			copy(out[start:start+attr.size()], values[v])
		}
	}
	return out
}

// MorphTarget is one sparse morph target (spec.md 4.6): only affected
// vertex indices carry deltas for position/normal/tangent.
type MorphTarget struct {
	VertexIndices []uint32
	PositionDelta [][3]float32
	NormalDelta   [][3]float32
	TangentDelta  [][3]float32
}

// ApplyMorphTarget returns base with mt's deltas added at its affected
// indices ("the base target is applied eagerly on parse"). Only
// PositionDelta is applied; NormalDelta and TangentDelta are ignored.
func ApplyMorphTarget(base *VertexBuffer, mt MorphTarget) (*VertexBuffer, error) {
	positions := base.Values[AttributePosition]
	for i, vi := range mt.VertexIndices {
		if int(vi) >= len(positions) {
			return nil, NewIndexOutOfRange(int(vi), len(positions))
		}
		if i < len(mt.PositionDelta) {
			applyDelta3(positions[vi], mt.PositionDelta[i])
		}
	}
	return base, nil
}

func applyDelta3(raw []byte, delta [3]float32) {
	if len(raw) < 12 {
		return
	}
	for axis := 0; axis < 3; axis++ {
		off := axis * 4
		v := Float32At(raw, off) + delta[axis]
		PutFloat32At(raw, off, v)
	}
}

// Float32At reads a little-endian float32 at byte offset off within raw.
func Float32At(raw []byte, off int) float32 {
	r := NewReader(raw)
	r.Seek(int64(off))
	v, err := r.ReadF32()
	if err != nil {
		return 0
	}
	return v
}

// PutFloat32At writes a little-endian float32 at byte offset off within raw.
func PutFloat32At(raw []byte, off int, v float32) {
	w := NewByteWriter()
	w.WriteF32(v)
	copy(raw[off:off+4], w.Bytes())
}

// DiffMorphTarget re-sparsifies a morph target by diffing current against
// base, the re-emission half of spec.md 4.6 ("re-emission re-sparsifies by
// diffing against the base"). Only positions are compared; the returned
// target's NormalDelta and TangentDelta are left empty.
func DiffMorphTarget(base, current *VertexBuffer) (MorphTarget, error) {
	basePos := base.Values[AttributePosition]
	curPos := current.Values[AttributePosition]
	if len(basePos) != len(curPos) {
		return MorphTarget{}, fmt.Errorf("vertex count mismatch: %d vs %d", len(basePos), len(curPos))
	}
	var mt MorphTarget
	for i := range basePos {
		delta := [3]float32{
			Float32At(curPos[i], 0) - Float32At(basePos[i], 0),
			Float32At(curPos[i], 4) - Float32At(basePos[i], 4),
			Float32At(curPos[i], 8) - Float32At(basePos[i], 8),
		}
		if delta != [3]float32{} {
			mt.VertexIndices = append(mt.VertexIndices, uint32(i))
			mt.PositionDelta = append(mt.PositionDelta, delta)
		}
	}
	return mt, nil
}
