// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

import (
	"fmt"
	"sort"
)

// StreamEntryKind tags one of the four resource kinds a model-archive
// stream entry can describe (spec.md 3).
type StreamEntryKind uint16

const (
	StreamEntryVertex StreamEntryKind = iota
	StreamEntryShader
	StreamEntryLowTexture
	StreamEntryTexture
)

func (k StreamEntryKind) String() string {
	switch k {
	case StreamEntryVertex:
		return "Vertex"
	case StreamEntryShader:
		return "Shader"
	case StreamEntryLowTexture:
		return "LowTexture"
	case StreamEntryTexture:
		return "Texture"
	default:
		return fmt.Sprintf("StreamEntryKind(%d)", uint16(k))
	}
}

// DataItem is one entry in the DRSM container's stream-entry table
// (spec.md 3, 6), grounded on original_source/src/drsm.rs's DataItem.
type DataItem struct {
	Offset      uint32
	Size        uint32
	StreamIndex uint16
	Kind        StreamEntryKind
	Unknown     [8]byte
}

// TocEntry points at one xbc1-compressed stream (original_source/src/drsm.rs
// Toc): its compressed/decompressed size plus an absolute pointer to the
// frame.
type TocEntry struct {
	CompressedSize   uint32
	DecompressedSize uint32
	Xbc1Ptr          uint32
}

// TextureInfo is one row of the texture-resource table (spec.md 3): name,
// low-mip slice within stream 0, and an optional base-mip stream reference
// (zero meaning absent, per spec.md 4.5's failure semantics).
// BaseMipStreamIndex holds the base-mip stream's index plus one, as
// PackModern sets it; ParseDrsm does not read it and writeDrsm does not
// write it, so it is zero for every parsed container.
type TextureInfo struct {
	Unk1               uint16
	Unk2               uint16
	Size               uint32
	Offset             uint32
	Name               string
	BaseMipStreamIndex uint32
}

// Drsm is the parsed model-resource container (magic "DRSM").
type Drsm struct {
	Version          uint32
	Tag              uint32
	Revision         uint32
	DataItems        []DataItem
	Tocs             []TocEntry
	TextureIDs       []uint16
	Textures         []TextureInfo
	Anomalies        []string

	raw []byte
}

// drsmFixedUnknownSize is the 28-byte opaque region between the toc
// pointer and the texture-id count (spec.md 6).
const drsmFixedUnknownSize = 28

// ParseDrsm parses a whole "DRSM" container from data.
func ParseDrsm(data []byte) (*Drsm, error) {
	r := NewReader(data)
	if err := r.ReadMagic("DRSM"); err != nil {
		return nil, err
	}
	d := &Drsm{raw: data}

	var err error
	if d.Version, err = r.ReadU32(); err != nil {
		return nil, err
	}
	headerSize, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	_ = headerSize
	relOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if d.Tag, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if d.Revision, err = r.ReadU32(); err != nil {
		return nil, err
	}
	itemCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	itemPtr, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	tocCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	tocPtr, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadBytes(drsmFixedUnknownSize); err != nil {
		return nil, err
	}
	texIDCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	texIDPtr, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	texNameTablePtr, err := r.ReadU32()
	if err != nil {
		return nil, err
	}

	// Data items, relative to relOffset.
	if itemCount > 0 {
		pos := int64(relOffset) + int64(itemPtr)
		if pos < 0 || pos > r.Len() {
			return nil, NewOutOfBoundsOffset(pos, r.Len(), r.Pos())
		}
		r.Seek(pos)
		for i := uint32(0); i < itemCount; i++ {
			item, err := parseDataItem(r)
			if err != nil {
				return nil, err
			}
			d.DataItems = append(d.DataItems, item)
		}
	}

	// TOC entries, relative to 16.
	if tocCount > 0 {
		pos := int64(16) + int64(tocPtr)
		if pos < 0 || pos > r.Len() {
			return nil, NewOutOfBoundsOffset(pos, r.Len(), r.Pos())
		}
		r.Seek(pos)
		for i := uint32(0); i < tocCount; i++ {
			toc := TocEntry{}
			if toc.CompressedSize, err = r.ReadU32(); err != nil {
				return nil, err
			}
			if toc.DecompressedSize, err = r.ReadU32(); err != nil {
				return nil, err
			}
			if toc.Xbc1Ptr, err = r.ReadU32(); err != nil {
				return nil, err
			}
			d.Tocs = append(d.Tocs, toc)
		}
	}

	if texIDCount > 0 {
		pos := int64(16) + int64(texIDPtr)
		if pos < 0 || pos > r.Len() {
			return nil, NewOutOfBoundsOffset(pos, r.Len(), r.Pos())
		}
		r.Seek(pos)
		for i := uint32(0); i < texIDCount; i++ {
			v, err := r.ReadU16()
			if err != nil {
				return nil, err
			}
			d.TextureIDs = append(d.TextureIDs, v)
		}
	}

	if texNameTablePtr != 0 {
		pos := int64(16) + int64(texNameTablePtr)
		if pos < 0 || pos > r.Len() {
			return nil, NewOutOfBoundsOffset(pos, r.Len(), r.Pos())
		}
		r.Seek(pos)
		textures, err := parseTextureNameTable(r, pos)
		if err != nil {
			return nil, err
		}
		d.Textures = textures
	}

	return d, nil
}

func parseDataItem(r *Reader) (DataItem, error) {
	item := DataItem{}
	var err error
	if item.Offset, err = r.ReadU32(); err != nil {
		return item, err
	}
	if item.Size, err = r.ReadU32(); err != nil {
		return item, err
	}
	if item.StreamIndex, err = r.ReadU16(); err != nil {
		return item, err
	}
	kind, err := r.ReadU16()
	if err != nil {
		return item, err
	}
	item.Kind = StreamEntryKind(kind)
	unk, err := r.ReadBytes(8)
	if err != nil {
		return item, err
	}
	copy(item.Unknown[:], unk)
	return item, nil
}

func parseTextureNameTable(r *Reader, base int64) ([]TextureInfo, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // unk0
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // unk1
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // unk2
		return nil, err
	}
	out := make([]TextureInfo, 0, count)
	for i := uint32(0); i < count; i++ {
		info := TextureInfo{}
		if info.Unk1, err = r.ReadU16(); err != nil {
			return nil, err
		}
		if info.Unk2, err = r.ReadU16(); err != nil {
			return nil, err
		}
		if info.Size, err = r.ReadU32(); err != nil {
			return nil, err
		}
		if info.Offset, err = r.ReadU32(); err != nil {
			return nil, err
		}
		namePtr, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		saved := r.Pos()
		namePos := base + int64(namePtr)
		if namePos < 0 || namePos > r.Len() {
			return nil, NewOutOfBoundsOffset(namePos, r.Len(), saved)
		}
		r.Seek(namePos)
		name, err := r.ReadCString()
		if err != nil {
			return nil, err
		}
		info.Name = name
		r.Seek(saved)
		out = append(out, info)
	}
	return out, nil
}

// Stream decompresses toc entry index and returns its payload.
func (d *Drsm) Stream(index int) ([]byte, error) {
	if index < 0 || index >= len(d.Tocs) {
		return nil, NewMissingStream(index)
	}
	toc := d.Tocs[index]
	frame, err := ReadXbc1At(d.raw, int64(toc.Xbc1Ptr))
	if err != nil {
		return nil, err
	}
	out, err := frame.Decompress()
	if err != nil {
		return nil, err
	}
	if uint32(len(out)) != toc.DecompressedSize {
		return nil, NewSizeMismatch(int64(toc.DecompressedSize), int64(len(out)), int64(toc.Xbc1Ptr))
	}
	return out, nil
}

// ExtractedModel is the result of extracting the modern streaming
// layout's stream 0: the concatenated vertex, shader and low-texture
// resources (spec.md 4.5 step 1).
type ExtractedModel struct {
	Vertex     []byte
	Shader     []byte
	LowTexture []byte
}

// fixed entry indices within stream 0, per
// original_source/xc3_lib/src/msrd/streaming.rs.
const (
	vertexDataEntryIndex   = 0
	shaderEntryIndex       = 1
	lowTexturesEntryIndex  = 2
)

func sliceEntry(stream []byte, item DataItem) ([]byte, error) {
	end := int64(item.Offset) + int64(item.Size)
	if item.Offset < 0 || end > int64(len(stream)) {
		return nil, NewEntryOutOfBounds(int64(item.Offset), int64(item.Size), int64(len(stream)))
	}
	return stream[item.Offset:end], nil
}

// ExtractModern implements spec.md 4.5's modern extraction procedure,
// step 1: it slices the vertex, shader and low-texture entries out of
// stream 0. Mid-resolution and base-mip data are read separately by
// ExtractTextureMid and ExtractTextureBaseMip, and chr-texture external
// streams by ExtractChrTexture.
func (d *Drsm) ExtractModern() (*ExtractedModel, error) {
	stream0, err := d.Stream(0)
	if err != nil {
		return nil, err
	}

	entriesByStream := make(map[uint16][]DataItem)
	for _, item := range d.DataItems {
		entriesByStream[item.StreamIndex] = append(entriesByStream[item.StreamIndex], item)
	}
	stream0Entries := entriesByStream[0]
	sort.Slice(stream0Entries, func(i, j int) bool { return stream0Entries[i].Offset < stream0Entries[j].Offset })

	result := &ExtractedModel{}
	for idx, item := range stream0Entries {
		slice, err := sliceEntry(stream0, item)
		if err != nil {
			return nil, err
		}
		switch idx {
		case vertexDataEntryIndex:
			result.Vertex = slice
		case shaderEntryIndex:
			result.Shader = slice
		case lowTexturesEntryIndex:
			result.LowTexture = slice
		}
	}
	return result, nil
}

// ExtractTextureMid returns a texture's mid-resolution slice from stream 1
// (spec.md 4.5 step 2), given the data item describing it.
func (d *Drsm) ExtractTextureMid(item DataItem) ([]byte, error) {
	stream, err := d.Stream(int(item.StreamIndex))
	if err != nil {
		return nil, err
	}
	return sliceEntry(stream, item)
}

// TextureMidDataItem returns the Texture-kind DataItem holding texIndex's
// mid-resolution entry, or ok=false when texIndex has none. It zips the
// container's Texture-kind DataItems, in table order, against TextureIDs,
// mirroring original_source/xc3_lib/src/msrd/streaming.rs's
// texture_resources.texture_indices zipped with the
// textures_stream_entry_start_index..+count range of stream_entries
// (spec.md 3's "optional high-resolution entry index in a later stream").
func (d *Drsm) TextureMidDataItem(texIndex int) (DataItem, bool) {
	var textureEntries []DataItem
	for _, item := range d.DataItems {
		if item.Kind == StreamEntryTexture {
			textureEntries = append(textureEntries, item)
		}
	}
	for i, id := range d.TextureIDs {
		if int(id) == texIndex && i < len(textureEntries) {
			return textureEntries[i], true
		}
	}
	return DataItem{}, false
}

// ExtractTextureBaseMip returns a texture's base mip level (spec.md 4.5
// step 3). A BaseMipStreamIndex of zero means no base mip is present.
func (d *Drsm) ExtractTextureBaseMip(info TextureInfo) ([]byte, error) {
	if info.BaseMipStreamIndex == 0 {
		return nil, nil
	}
	return d.Stream(int(info.BaseMipStreamIndex - 1))
}

// ChrTextureStreams is the pair of external files a "chr" texture's
// highest-quality data lives in (spec.md 4.5 step 4, 6's naming
// convention), grounded on
// original_source/xc3_lib/src/msrd/streaming.rs's ChrTextureStreams.
type ChrTextureStreams struct {
	Hash    uint32
	Mid     *Xbc1Frame
	BaseMip *Xbc1Frame
}

// ExtractChrTexture loads the sibling mid/base-mip files for an external
// "chr" texture named by hash, rooted at root (spec.md 6: "<root>/m/<hex
// hash>.wismt" and "<root>/h/<hex hash>.wismt").
func ExtractChrTexture(readFile func(path string) ([]byte, error), root string, hash uint32) (*ChrTextureStreams, error) {
	name := fmt.Sprintf("%08x", hash)
	midBytes, err := readFile(root + "/m/" + name + ".wismt")
	if err != nil {
		return nil, NewIoError(err)
	}
	mid, err := ReadXbc1At(midBytes, 0)
	if err != nil {
		return nil, err
	}
	baseBytes, err := readFile(root + "/h/" + name + ".wismt")
	if err != nil {
		return nil, NewIoError(err)
	}
	base, err := ReadXbc1At(baseBytes, 0)
	if err != nil {
		return nil, err
	}
	return &ChrTextureStreams{Hash: hash, Mid: mid, BaseMip: base}, nil
}

// PackOptions controls PackModern's output shape.
type PackOptions struct {
	// ExternalChrTextures, when true, omits high/base-mip streams from the
	// main container (spec.md 4.5 step 4). PackModern does not return or
	// write those payloads anywhere else: they are left out of its output.
	ExternalChrTextures bool
}

// PackedTexture is one texture's packed byte payloads, ready to be placed
// into stream 1 and an optional dedicated base-mip stream.
type PackedTexture struct {
	Name    string
	Low     []byte
	Mid     []byte // nil if the texture has no mid-resolution version
	BaseMip []byte // nil if the texture has no base mip
}

// PackModern implements spec.md 4.5's packing procedure (the inverse of
// ExtractModern): it builds stream 0 (vertex+shader+low-textures), an
// optional stream 1 holding one DataItem per mid-resolution texture (so
// ModelRoot.Texture can recover each texture's own entry, rather than one
// entry covering the whole stream), and one dedicated stream per texture
// with a base mip, aligning every sub-payload to 4096 bytes. It returns the
// xbc1 frames to place in the TOC, the DataItems describing every stream's
// layout, per-texture resource-table rows (Offset/Size addressing the
// low-mip slice within stream 0's LowTexture blob, per spec.md 3), and the
// texture-index zip list parallel to the Texture-kind DataItems — the Go
// analogue of original_source's texture_resources.texture_indices, meant to
// be stored as the container's TextureIDs table.
func PackModern(vertex, shader []byte, lowTextures [][]byte, textures []PackedTexture, opts PackOptions) ([]*Xbc1Frame, []DataItem, []TextureInfo, []uint16, error) {
	var stream0 []byte
	var items []DataItem

	appendAligned := func(buf []byte, payload []byte, kind StreamEntryKind) []byte {
		buf = padTo4096(buf)
		items = append(items, DataItem{
			Offset:      uint32(len(buf)),
			Size:        uint32(len(payload)),
			StreamIndex: 0,
			Kind:        kind,
		})
		return append(buf, payload...)
	}

	stream0 = appendAligned(stream0, vertex, StreamEntryVertex)
	stream0 = appendAligned(stream0, shader, StreamEntryShader)

	textureInfos := make([]TextureInfo, len(textures))
	var lowConcat []byte
	for i, low := range lowTextures {
		if i < len(textureInfos) {
			textureInfos[i].Offset = uint32(len(lowConcat))
			textureInfos[i].Size = uint32(len(low))
		}
		lowConcat = append(lowConcat, low...)
	}
	stream0 = appendAligned(stream0, lowConcat, StreamEntryLowTexture)
	for i, tex := range textures {
		textureInfos[i].Name = tex.Name
	}

	frame0, err := CompressXbc1("stream0", stream0)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	frames := []*Xbc1Frame{frame0}

	var stream1 []byte
	var midTextureIDs []uint16
	for i, tex := range textures {
		if tex.Mid == nil || opts.ExternalChrTextures {
			continue
		}
		stream1 = padTo4096(stream1)
		items = append(items, DataItem{
			Offset:      uint32(len(stream1)),
			Size:        uint32(len(tex.Mid)),
			StreamIndex: 1,
			Kind:        StreamEntryTexture,
		})
		midTextureIDs = append(midTextureIDs, uint16(i))
		stream1 = append(stream1, tex.Mid...)
	}
	if len(midTextureIDs) > 0 {
		frame1, err := CompressXbc1("stream1", stream1)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		frames = append(frames, frame1)
	}

	if !opts.ExternalChrTextures {
		for i, tex := range textures {
			if tex.BaseMip == nil {
				continue
			}
			frame, err := CompressXbc1(fmt.Sprintf("basemip%d", i), tex.BaseMip)
			if err != nil {
				return nil, nil, nil, nil, err
			}
			frames = append(frames, frame)
			textureInfos[i].BaseMipStreamIndex = uint32(len(frames))
		}
	}

	return frames, items, textureInfos, midTextureIDs, nil
}

func padTo4096(buf []byte) []byte {
	for len(buf)%4096 != 0 {
		buf = append(buf, 0)
	}
	return buf
}
