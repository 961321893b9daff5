// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildDrsmContainer assembles a minimal but complete DRSM byte buffer by
// hand, patching offset placeholders only after every section has been
// written (mirroring the two-phase pointer-placement discipline the real
// writer follows, since bytes.Buffer slices returned mid-write are not
// stable across further appends).
func buildDrsmContainer(t *testing.T, vertex, shader, lowTex, texMid []byte) []byte {
	t.Helper()

	stream0 := append(append(append([]byte{}, vertex...), shader...), lowTex...)
	stream1 := append([]byte{}, texMid...)

	frame0, err := CompressXbc1("stream0", stream0)
	if err != nil {
		t.Fatalf("CompressXbc1 stream0: %v", err)
	}
	frame1, err := CompressXbc1("stream1", stream1)
	if err != nil {
		t.Fatalf("CompressXbc1 stream1: %v", err)
	}

	w := NewByteWriter()
	w.WriteMagic("DRSM")
	w.WriteU32(10094) // version
	w.WriteU32(0)     // header_size (unused by ParseDrsm)
	w.WriteU32(0)     // relOffset
	w.WriteU32(0)     // tag
	w.WriteU32(0)     // revision
	w.WriteU32(4)     // itemCount
	itemPtrPos := w.Pos()
	w.WriteU32(0) // itemPtr placeholder
	w.WriteU32(2) // tocCount
	tocPtrPos := w.Pos()
	w.WriteU32(0)                    // tocPtr placeholder
	w.WriteRaw(make([]byte, 28))     // unknown
	w.WriteU32(0)                    // texIDCount
	w.WriteU32(0)                    // texIDPtr
	w.WriteU32(0)                    // texNameTablePtr

	itemsPos := w.Pos()
	items := []DataItem{
		{Offset: 0, Size: uint32(len(vertex)), StreamIndex: 0, Kind: StreamEntryVertex},
		{Offset: uint32(len(vertex)), Size: uint32(len(shader)), StreamIndex: 0, Kind: StreamEntryShader},
		{Offset: uint32(len(vertex) + len(shader)), Size: uint32(len(lowTex)), StreamIndex: 0, Kind: StreamEntryLowTexture},
		{Offset: 0, Size: uint32(len(texMid)), StreamIndex: 1, Kind: StreamEntryTexture},
	}
	for _, it := range items {
		w.WriteU32(it.Offset)
		w.WriteU32(it.Size)
		w.WriteU16(it.StreamIndex)
		w.WriteU16(uint16(it.Kind))
		w.WriteRaw(make([]byte, 8))
	}

	tocPos := w.Pos()
	w.WriteU32(uint32(len(frame0.Compressed)))
	w.WriteU32(frame0.DecompressedSize)
	toc0XbcPtrPos := w.Pos()
	w.WriteU32(0)
	w.WriteU32(uint32(len(frame1.Compressed)))
	w.WriteU32(frame1.DecompressedSize)
	toc1XbcPtrPos := w.Pos()
	w.WriteU32(0)

	frame0Pos := w.Pos()
	frame0.Write(w)
	frame1Pos := w.Pos()
	frame1.Write(w)

	final := w.Bytes()
	binary.LittleEndian.PutUint32(final[itemPtrPos:], uint32(itemsPos))
	binary.LittleEndian.PutUint32(final[tocPtrPos:], uint32(tocPos-16))
	binary.LittleEndian.PutUint32(final[toc0XbcPtrPos:], uint32(frame0Pos))
	binary.LittleEndian.PutUint32(final[toc1XbcPtrPos:], uint32(frame1Pos))
	return final
}

// buildDrsmContainerWithTextureTable extends buildDrsmContainer's layout
// with a populated TextureIDs zip list and a one-row texture-resource
// table, so a single texture's low-mip slice (stream 0) and mid-resolution
// entry (stream 1) can both be addressed through the parsed Drsm, the way
// ModelRoot.Texture's facade needs (spec.md 8 scenario 4).
func buildDrsmContainerWithTextureTable(t *testing.T, vertex, shader, lowTex, texMid []byte, texName string) []byte {
	t.Helper()

	stream0 := append(append(append([]byte{}, vertex...), shader...), lowTex...)
	stream1 := append([]byte{}, texMid...)

	frame0, err := CompressXbc1("stream0", stream0)
	if err != nil {
		t.Fatalf("CompressXbc1 stream0: %v", err)
	}
	frame1, err := CompressXbc1("stream1", stream1)
	if err != nil {
		t.Fatalf("CompressXbc1 stream1: %v", err)
	}

	w := NewByteWriter()
	w.WriteMagic("DRSM")
	w.WriteU32(10094) // version
	w.WriteU32(0)     // header_size (unused by ParseDrsm)
	w.WriteU32(0)     // relOffset
	w.WriteU32(0)     // tag
	w.WriteU32(0)     // revision
	w.WriteU32(4)     // itemCount
	itemPtrPos := w.Pos()
	w.WriteU32(0) // itemPtr placeholder
	w.WriteU32(2) // tocCount
	tocPtrPos := w.Pos()
	w.WriteU32(0)                // tocPtr placeholder
	w.WriteRaw(make([]byte, 28)) // unknown
	w.WriteU32(1)                // texIDCount
	texIDPtrPos := w.Pos()
	w.WriteU32(0) // texIDPtr placeholder
	texNameTablePtrPos := w.Pos()
	w.WriteU32(0) // texNameTablePtr placeholder

	itemsPos := w.Pos()
	items := []DataItem{
		{Offset: 0, Size: uint32(len(vertex)), StreamIndex: 0, Kind: StreamEntryVertex},
		{Offset: uint32(len(vertex)), Size: uint32(len(shader)), StreamIndex: 0, Kind: StreamEntryShader},
		{Offset: uint32(len(vertex) + len(shader)), Size: uint32(len(lowTex)), StreamIndex: 0, Kind: StreamEntryLowTexture},
		{Offset: 0, Size: uint32(len(texMid)), StreamIndex: 1, Kind: StreamEntryTexture},
	}
	for _, it := range items {
		w.WriteU32(it.Offset)
		w.WriteU32(it.Size)
		w.WriteU16(it.StreamIndex)
		w.WriteU16(uint16(it.Kind))
		w.WriteRaw(make([]byte, 8))
	}

	tocPos := w.Pos()
	w.WriteU32(uint32(len(frame0.Compressed)))
	w.WriteU32(frame0.DecompressedSize)
	toc0XbcPtrPos := w.Pos()
	w.WriteU32(0)
	w.WriteU32(uint32(len(frame1.Compressed)))
	w.WriteU32(frame1.DecompressedSize)
	toc1XbcPtrPos := w.Pos()
	w.WriteU32(0)

	texIDTablePos := w.Pos()
	w.WriteU16(0) // TextureIDs[0] = texture index 0, zipped to the Texture-kind DataItem above

	texNameTablePos := w.Pos()
	w.WriteU32(1) // count
	w.WriteU32(0)
	w.WriteU32(0)
	w.WriteU32(0)
	w.WriteU16(0)                  // Unk1
	w.WriteU16(0)                  // Unk2
	w.WriteU32(uint32(len(lowTex))) // Size: low-mip length within stream 0
	w.WriteU32(0)                  // Offset: low-mip's start within the LowTexture blob
	namePtrPos := w.Pos()
	w.WriteU32(0) // name ptr placeholder

	namePos := w.Pos()
	w.WriteCString(texName)

	frame0Pos := w.Pos()
	frame0.Write(w)
	frame1Pos := w.Pos()
	frame1.Write(w)

	final := w.Bytes()
	binary.LittleEndian.PutUint32(final[itemPtrPos:], uint32(itemsPos))
	binary.LittleEndian.PutUint32(final[tocPtrPos:], uint32(tocPos-16))
	binary.LittleEndian.PutUint32(final[toc0XbcPtrPos:], uint32(frame0Pos))
	binary.LittleEndian.PutUint32(final[toc1XbcPtrPos:], uint32(frame1Pos))
	binary.LittleEndian.PutUint32(final[texIDPtrPos:], uint32(texIDTablePos-16))
	binary.LittleEndian.PutUint32(final[texNameTablePtrPos:], uint32(texNameTablePos-16))
	binary.LittleEndian.PutUint32(final[namePtrPos:], uint32(namePos-texNameTablePos))
	return final
}

// Model-resource extraction, spec.md 8 scenario 4.
func TestDrsmExtractModern(t *testing.T) {
	vertex := []byte("VERTEX-RESOURCE-BYTES")
	shader := []byte("SHADER-ARCHIVE-BYTES")
	lowTex := []byte("LOW-RES-TEXTURE-BYTES")
	texMid := []byte("MID-RESOLUTION-TEXTURE-BYTES")

	data := buildDrsmContainer(t, vertex, shader, lowTex, texMid)

	d, err := ParseDrsm(data)
	if err != nil {
		t.Fatalf("ParseDrsm: %v", err)
	}
	if len(d.DataItems) != 4 {
		t.Fatalf("len(DataItems) = %d, want 4", len(d.DataItems))
	}
	if len(d.Tocs) != 2 {
		t.Fatalf("len(Tocs) = %d, want 2", len(d.Tocs))
	}

	extracted, err := d.ExtractModern()
	if err != nil {
		t.Fatalf("ExtractModern: %v", err)
	}
	if !bytes.Equal(extracted.Vertex, vertex) {
		t.Fatalf("Vertex = %q, want %q", extracted.Vertex, vertex)
	}
	if !bytes.Equal(extracted.Shader, shader) {
		t.Fatalf("Shader = %q, want %q", extracted.Shader, shader)
	}
	if !bytes.Equal(extracted.LowTexture, lowTex) {
		t.Fatalf("LowTexture = %q, want %q", extracted.LowTexture, lowTex)
	}

	var texItem DataItem
	found := false
	for _, it := range d.DataItems {
		if it.Kind == StreamEntryTexture {
			texItem = it
			found = true
		}
	}
	if !found {
		t.Fatal("no Texture entry found in DataItems")
	}
	mid, err := d.ExtractTextureMid(texItem)
	if err != nil {
		t.Fatalf("ExtractTextureMid: %v", err)
	}
	if !bytes.Equal(mid, texMid) {
		t.Fatalf("mid texture = %q, want %q", mid, texMid)
	}
}

func TestDrsmStreamMissing(t *testing.T) {
	d := &Drsm{}
	if _, err := d.Stream(0); err == nil {
		t.Fatal("expected MissingStream, got nil")
	} else if xerr, ok := err.(*Error); !ok || xerr.Kind != MissingStream {
		t.Fatalf("err = %v, want MissingStream", err)
	}
}

func TestDrsmEntryOutOfBounds(t *testing.T) {
	_, err := sliceEntry([]byte{1, 2, 3}, DataItem{Offset: 2, Size: 10})
	if err == nil {
		t.Fatal("expected EntryOutOfBounds, got nil")
	}
	if xerr, ok := err.(*Error); !ok || xerr.Kind != EntryOutOfBounds {
		t.Fatalf("err = %v, want EntryOutOfBounds", err)
	}
}

func TestDrsmExtractTextureBaseMipAbsentIsZero(t *testing.T) {
	d := &Drsm{}
	got, err := d.ExtractTextureBaseMip(TextureInfo{BaseMipStreamIndex: 0})
	if err != nil || got != nil {
		t.Fatalf("got, err = %v, %v, want nil, nil for BaseMipStreamIndex == 0", got, err)
	}
}

func TestPadTo4096(t *testing.T) {
	buf := padTo4096([]byte{1, 2, 3})
	if len(buf)%4096 != 0 {
		t.Fatalf("len(buf) = %d, not a multiple of 4096", len(buf))
	}
	if !bytes.Equal(buf[:3], []byte{1, 2, 3}) {
		t.Fatalf("padTo4096 altered original bytes: %v", buf[:3])
	}
}
