// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

import "github.com/xc3kit/xc3/shaderdb"

// ModelRoot is C10's high-level facade: it assembles a model-archive's
// material definitions (C7), vertex/texture/shader streams (C5, C6, C4),
// skeleton and animations (C8), and shader-dependency metadata (C9) into
// one object a renderer can walk without touching any container format
// directly (spec.md 4.10).
type ModelRoot struct {
	Mxmd      *Mxmd
	Drsm      *Drsm
	Extracted *ExtractedModel
	Skeleton  *Skeleton
	Bindings  map[string]*AnimationBinding

	textureCache map[int]*MiblTexture
}

// LoadModel parses a model-definition file and its paired model-resource
// archive and extracts stream 0 (spec.md 4.5 step 1), matching the load
// order original_source's xc3_model::load_model uses: Mxmd first, since
// its material/mesh tables are what stream 0's vertex and shader bytes are
// interpreted against.
func LoadModel(mxmdData, drsmData []byte) (*ModelRoot, error) {
	mxmd, err := ParseMxmd(mxmdData)
	if err != nil {
		return nil, err
	}
	drsm, err := ParseDrsm(drsmData)
	if err != nil {
		return nil, err
	}
	extracted, err := drsm.ExtractModern()
	if err != nil {
		return nil, err
	}
	return &ModelRoot{
		Mxmd:         mxmd,
		Drsm:         drsm,
		Extracted:    extracted,
		Bindings:     make(map[string]*AnimationBinding),
		textureCache: make(map[int]*MiblTexture),
	}, nil
}

// LoadSkeleton parses sarData (a "1RAS"/"SAR1" animation archive) and
// attaches its "SKEL" entry as the model's skeleton.
func (m *ModelRoot) LoadSkeleton(sarData []byte) error {
	sar, err := ParseSar1(sarData)
	if err != nil {
		return err
	}
	for _, entry := range sar.Entries {
		bc, err := ParseBcRecord(entry.Data)
		if err != nil {
			continue
		}
		if bc.InnerMagic == "SKEL" {
			skel, err := ParseSkeleton(bc.Inner)
			if err != nil {
				return err
			}
			m.Skeleton = skel
			return nil
		}
	}
	return nil
}

// LoadAnimations parses every "ASMB"-tagged entry in sarData and indexes
// the resulting bindings by their animation's name.
func (m *ModelRoot) LoadAnimations(sarData []byte) error {
	sar, err := ParseSar1(sarData)
	if err != nil {
		return err
	}
	for _, entry := range sar.Entries {
		bc, err := ParseBcRecord(entry.Data)
		if err != nil {
			continue
		}
		if bc.InnerMagic != "ASMB" {
			continue
		}
		binding, err := ParseAnimationBinding(bc.Inner)
		if err != nil {
			return err
		}
		name := entry.Name
		if binding.Animation != nil && binding.Animation.Name != "" {
			name = binding.Animation.Name
		}
		m.Bindings[name] = binding
	}
	return nil
}

// Texture lazily decodes and caches the index'th texture-resource-table
// entry, preferring its mid-resolution stream entry over the low-mip slice
// resident in stream 0, then layering a dedicated base mip on top when one
// is present — the "low < high/mid < high+base_mip" quality fallback order
// spec.md 4.5 and 4.9 describe, grounded on original_source's
// ExtractedTexture::mibl_final.
func (m *ModelRoot) Texture(index int) (*MiblTexture, error) {
	if cached, ok := m.textureCache[index]; ok {
		return cached, nil
	}
	if index < 0 || index >= len(m.Drsm.Textures) {
		return nil, NewIndexOutOfRange(index, len(m.Drsm.Textures))
	}
	info := m.Drsm.Textures[index]

	var raw []byte
	if item, ok := m.Drsm.TextureMidDataItem(index); ok {
		mid, err := m.Drsm.ExtractTextureMid(item)
		if err != nil {
			return nil, err
		}
		raw = mid
	} else {
		end := int64(info.Offset) + int64(info.Size)
		if end > int64(len(m.Extracted.LowTexture)) {
			return nil, NewEntryOutOfBounds(int64(info.Offset), int64(info.Size), int64(len(m.Extracted.LowTexture)))
		}
		raw = m.Extracted.LowTexture[info.Offset:end]
	}

	tex, err := ParseMiblTexture(raw)
	if err != nil {
		return nil, err
	}

	baseMip, err := m.Drsm.ExtractTextureBaseMip(info)
	if err != nil {
		return nil, err
	}
	if baseMip != nil {
		tex, err = tex.WithBaseMip(baseMip)
		if err != nil {
			return nil, err
		}
	}

	m.textureCache[index] = tex
	return tex, nil
}

// ShaderPrograms looks up this model's shader-dependency metadata from db
// by the model-resource file's name (the convention a shader database is
// keyed by, per spec.md 4.9), returning a zero ModelPrograms and false if
// the model isn't present.
func (m *ModelRoot) ShaderPrograms(db *shaderdb.Database, name string) (shaderdb.ModelPrograms, bool) {
	mp, ok := db.Models[name]
	return mp, ok
}

// ToContainer reassembles a DRSM byte stream from root's current
// Extracted stream and texture set, the reverse of LoadModel (spec.md
// 4.5's packing procedure run end to end). Skeleton and animation data are
// not part of the DRSM container and are unaffected. Use ToMxmdContainer
// alongside this to re-emit the paired model-definition container (spec.md
// 4.10's "to_container(original) → (container, stream_set)").
func (m *ModelRoot) ToContainer(packed []PackedTexture, opts PackOptions) ([]byte, error) {
	frames, items, textureInfos, midTextureIDs, err := PackModern(m.Extracted.Vertex, m.Extracted.Shader, splitLowTextures(m.Extracted.LowTexture, packed), packed, opts)
	if err != nil {
		return nil, err
	}
	return writeDrsm(m.Drsm, frames, items, textureInfos, midTextureIDs)
}

// ToMxmdContainer re-emits root's Mxmd (model-definition container, C7) as
// bytes using Mxmd.Write's two-phase pointer-placement layout.
func (m *ModelRoot) ToMxmdContainer() ([]byte, error) {
	w := NewOffsetWriter()
	if err := m.Mxmd.Write(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func splitLowTextures(concat []byte, packed []PackedTexture) [][]byte {
	// Splits the concatenated blob back into one slice per texture, in
	// order, using the length of each packed[i].Low; the DataItems and
	// TextureInfo offsets are not consulted. PackModern re-concatenates
	// the slices in the same order.
	out := make([][]byte, len(packed))
	offset := 0
	for i, tex := range packed {
		n := len(tex.Low)
		if offset+n > len(concat) {
			n = len(concat) - offset
			if n < 0 {
				n = 0
			}
		}
		out[i] = concat[offset : offset+n]
		offset += n
	}
	return out
}

// writeDrsm emits a DRSM container matching ParseDrsm's field layout: the
// fixed 80-byte header (relOffset held at zero, so the data-item pointer
// is a plain absolute file offset) followed by the item, toc, texture-id
// and texture-name tables in the same order ParseDrsm reads them, then the
// toc's xbc1 frames themselves. textureIDs is the texture-index zip list
// PackModern returns, parallel to items' Texture-kind entries in table
// order (spec.md 3's "optional high-resolution entry index").
func writeDrsm(src *Drsm, frames []*Xbc1Frame, items []DataItem, textures []TextureInfo, textureIDs []uint16) ([]byte, error) {
	const headerSize = 80
	const tagBase = 16 // ParseDrsm's toc/texID/texName pointers are "16 + ptr"

	w := NewByteWriter()
	w.WriteMagic("DRSM")
	w.WriteU32(src.Version)
	w.WriteU32(headerSize)
	w.WriteU32(0) // relOffset
	w.WriteU32(src.Tag)
	w.WriteU32(src.Revision)
	w.WriteU32(uint32(len(items)))
	itemPtrPos := w.Pos()
	w.WriteU32(0)
	w.WriteU32(uint32(len(frames)))
	tocPtrPos := w.Pos()
	w.WriteU32(0)
	w.WriteRaw(make([]byte, drsmFixedUnknownSize))
	w.WriteU32(uint32(len(textureIDs)))
	texIDPtrPos := w.Pos()
	w.WriteU32(0)
	texNameTablePtrPos := w.Pos()
	w.WriteU32(0)

	patchU32 := func(pos int64, value uint32) {
		w.Order().PutUint32(w.Bytes()[pos:pos+4], value)
	}

	itemTablePos := w.Pos()
	patchU32(itemPtrPos, uint32(itemTablePos))
	for _, item := range items {
		w.WriteU32(item.Offset)
		w.WriteU32(item.Size)
		w.WriteU16(item.StreamIndex)
		w.WriteU16(uint16(item.Kind))
		w.WriteRaw(item.Unknown[:])
	}

	tocTablePos := w.Pos()
	patchU32(tocPtrPos, uint32(tocTablePos)-tagBase)
	tocPtrFieldPos := make([]int64, len(frames))
	for i, f := range frames {
		w.WriteU32(xbc1TotalSize(f))
		w.WriteU32(f.DecompressedSize)
		tocPtrFieldPos[i] = w.Pos()
		w.WriteU32(0) // patched once frame positions are known below
	}

	texIDTablePos := w.Pos()
	patchU32(texIDPtrPos, uint32(texIDTablePos)-tagBase)
	for _, id := range textureIDs {
		w.WriteU16(id)
	}

	texNameTablePos := w.Pos()
	patchU32(texNameTablePtrPos, uint32(texNameTablePos)-tagBase)
	w.WriteU32(uint32(len(textures)))
	w.WriteU32(0)
	w.WriteU32(0)
	w.WriteU32(0)
	namePtrFieldPos := make([]int64, len(textures))
	for i, t := range textures {
		w.WriteU16(t.Unk1)
		w.WriteU16(t.Unk2)
		w.WriteU32(t.Size)
		w.WriteU32(t.Offset)
		namePtrFieldPos[i] = w.Pos()
		w.WriteU32(0)
	}
	for i, t := range textures {
		namePos := w.Pos()
		patchU32(namePtrFieldPos[i], uint32(namePos-texNameTablePos))
		w.WriteCString(t.Name)
	}

	for i, f := range frames {
		w.Align(16, 0)
		framePos := w.Pos()
		patchU32(tocPtrFieldPos[i], uint32(framePos))
		f.Write(w)
	}

	return w.Bytes(), nil
}

// xbc1TotalSize is the on-disk byte length of an xbc1 frame once written
// (header + name + compressed payload, 16-byte aligned), matching what
// Xbc1Frame.Write actually emits.
func xbc1TotalSize(f *Xbc1Frame) uint32 {
	const header = xbc1FrameHeaderSize + xbc1NameSize
	n := header + len(f.Compressed)
	if rem := n % xbc1Alignment; rem != 0 {
		n += xbc1Alignment - rem
	}
	return uint32(n)
}
