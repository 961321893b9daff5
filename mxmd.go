// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

// RenderStateFlags packs a material's blend/cull/stencil/depth state into
// one compact word (spec.md 4.7).
type RenderStateFlags uint32

const (
	RenderStateBlendEnable RenderStateFlags = 1 << iota
	RenderStateCullFront
	RenderStateCullBack
	RenderStateStencilEnable
	RenderStateDepthWrite
	RenderStateDepthTest
)

// Has reports whether every bit in mask is set.
func (f RenderStateFlags) Has(mask RenderStateFlags) bool { return f&mask == mask }

// Channel is a single-component selector into an RGBA texture, used by
// alpha-test lookups.
type Channel uint8

const (
	ChannelR Channel = iota
	ChannelG
	ChannelB
	ChannelA
)

// AlphaTest is the alpha-test hookup named in spec.md 4.7: one texture
// referenced by image-table index, a channel selector, and a threshold.
type AlphaTest struct {
	TextureIndex uint16
	Channel      Channel
	Threshold    float32
}

// MaterialTexture is one per-slot texture+sampler reference within a
// material, grounded on original_source/src/mxmd.rs's Texture struct.
type MaterialTexture struct {
	TextureIndex uint16
	SamplerIndex uint16
	Unk2         uint16
	Unk3         uint16
}

// Material is one material record (spec.md 3, 4.7): a technique
// reference, per-slot textures/samplers, and a render-state word.
type Material struct {
	Name          string
	TechniqueIndex uint16
	Unk2           uint16
	Unk3           uint16
	Unk4           uint16
	Params         [5]float32
	Textures       []MaterialTexture
	RenderState    RenderStateFlags
	AlphaTest      *AlphaTest
}

// SamplerFlags is the packed bit-field form of a sampler's filtering,
// per-axis addressing, LOD bias, and anisotropy (spec.md 4.7).
type SamplerFlags uint32

// AddressMode is the per-axis texture wrap/clamp/mirror mode.
type AddressMode uint8

const (
	AddressRepeat AddressMode = iota
	AddressMirror
	AddressClampToEdge
)

// Sampler is the semantic (unpacked) form SamplerFlags converts to/from.
type Sampler struct {
	MinFilterLinear bool
	MagFilterLinear bool
	MipFilterLinear bool
	AddressU        AddressMode
	AddressV        AddressMode
	LODBiasQ8       int16 // LOD bias, fixed-point Q8
	AnisotropyLog2  uint8
}

const (
	samplerFlagMinLinear = 1 << 0
	samplerFlagMagLinear = 1 << 1
	samplerFlagMipLinear = 1 << 2
	samplerAddressUShift = 3
	samplerAddressVShift = 5
	samplerAddressMask   = 0x3
	samplerAnisoShift    = 7
	samplerAnisoMask     = 0xF
	samplerLODBiasShift  = 11
)

// ToFlags packs s into its on-disk bit-field representation.
func (s Sampler) ToFlags() SamplerFlags {
	var f uint32
	if s.MinFilterLinear {
		f |= samplerFlagMinLinear
	}
	if s.MagFilterLinear {
		f |= samplerFlagMagLinear
	}
	if s.MipFilterLinear {
		f |= samplerFlagMipLinear
	}
	f |= uint32(s.AddressU&samplerAddressMask) << samplerAddressUShift
	f |= uint32(s.AddressV&samplerAddressMask) << samplerAddressVShift
	f |= uint32(s.AnisotropyLog2&samplerAnisoMask) << samplerAnisoShift
	f |= uint32(uint16(s.LODBiasQ8)) << samplerLODBiasShift
	return SamplerFlags(f)
}

// SamplerFromFlags unpacks the on-disk bit field into a Sampler.
func SamplerFromFlags(flags SamplerFlags) Sampler {
	f := uint32(flags)
	return Sampler{
		MinFilterLinear: f&samplerFlagMinLinear != 0,
		MagFilterLinear: f&samplerFlagMagLinear != 0,
		MipFilterLinear: f&samplerFlagMipLinear != 0,
		AddressU:        AddressMode((f >> samplerAddressUShift) & samplerAddressMask),
		AddressV:        AddressMode((f >> samplerAddressVShift) & samplerAddressMask),
		AnisotropyLog2:  uint8((f >> samplerAnisoShift) & samplerAnisoMask),
		LODBiasQ8:       int16(f >> samplerLODBiasShift),
	}
}

// Mxmd is the parsed model-definition container (magic "DMXM"/"MXMD",
// dialect by version), grounded on original_source/src/mxmd.rs.
type Mxmd struct {
	Magic      string
	Version    uint32
	MeshOffset uint32
	Materials  []Material
	Anomalies  []string
}

// ParseMxmd parses a whole "DMXM"/"MXMD" container.
func ParseMxmd(data []byte) (*Mxmd, error) {
	r := NewReader(data)
	pos := r.Pos()
	magic, err := r.ReadFixedString(4)
	if err != nil {
		return nil, err
	}
	if magic != "DMXM" && magic != "MXMD" {
		return nil, NewBadMagic("DMXM\" or \"MXMD", magic, pos)
	}
	m := &Mxmd{Magic: magic}
	if m.Version, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if m.MeshOffset, err = r.ReadU32(); err != nil {
		return nil, err
	}

	// Materials is a relative array (offset, count) read relative to the
	// stream position right before this field, per mxmd.rs's custom
	// BinRead on Mxmd.materials.
	materialsBase := r.Pos()
	matOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	matCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	materials, err := ReadRelativeArray32(r, materialsBase, RelativeArrayHeader{Offset: matOffset, Count: matCount}, func(r *Reader) (Material, error) {
		return parseMaterial(r, materialsBase+int64(matOffset))
	})
	if err != nil {
		return nil, err
	}
	m.Materials = materials
	return m, nil
}

func parseMaterial(r *Reader, base int64) (Material, error) {
	mat := Material{}
	entryStart := r.Pos()
	namePtr, err := r.ReadU32()
	if err != nil {
		return mat, err
	}
	if mat.TechniqueIndex, err = r.ReadU16(); err != nil {
		return mat, err
	}
	if mat.Unk2, err = r.ReadU16(); err != nil {
		return mat, err
	}
	if mat.Unk3, err = r.ReadU16(); err != nil {
		return mat, err
	}
	if mat.Unk4, err = r.ReadU16(); err != nil {
		return mat, err
	}
	for i := range mat.Params {
		if mat.Params[i], err = r.ReadF32(); err != nil {
			return mat, err
		}
	}
	texBase := r.Pos()
	texOffset, err := r.ReadU32()
	if err != nil {
		return mat, err
	}
	texCount, err := r.ReadU32()
	if err != nil {
		return mat, err
	}
	textures, err := ReadRelativeArray32(r, texBase, RelativeArrayHeader{Offset: texOffset, Count: texCount}, func(r *Reader) (MaterialTexture, error) {
		t := MaterialTexture{}
		var e error
		if t.TextureIndex, e = r.ReadU16(); e != nil {
			return t, e
		}
		if t.SamplerIndex, e = r.ReadU16(); e != nil {
			return t, e
		}
		if t.Unk2, e = r.ReadU16(); e != nil {
			return t, e
		}
		if t.Unk3, e = r.ReadU16(); e != nil {
			return t, e
		}
		return t, nil
	})
	if err != nil {
		return mat, err
	}
	mat.Textures = textures

	if namePtr != 0 {
		saved := r.Pos()
		namePos := base + int64(namePtr)
		if namePos < 0 || namePos > r.Len() {
			return mat, NewOutOfBoundsOffset(namePos, r.Len(), entryStart)
		}
		r.Seek(namePos)
		name, err := r.ReadCString()
		if err != nil {
			return mat, err
		}
		mat.Name = name
		r.Seek(saved)
	}
	return mat, nil
}

// Write emits a whole "DMXM"/"MXMD" container matching ParseMxmd's field
// layout: a single relative array of materials, each with a name pointer
// into a container-wide shared string section and its own nested per-slot
// texture array, mirroring sar.go's Skeleton.Write two-phase layout.
//
// Only the fields parseMaterial actually decodes round-trip: RenderState,
// AlphaTest and Sampler are never populated from a parsed container today,
// so Write does not serialize them either (spec.md 8's round-trip
// invariant binds what a codec's own Parse reads back, not fields no
// in-tree reader yet produces).
func (m *Mxmd) Write(w *OffsetWriter) error {
	magic := m.Magic
	if magic == "" {
		magic = "MXMD"
	}
	w.WriteMagic(magic)
	w.WriteU32(m.Version)
	w.WriteU32(m.MeshOffset)

	materialsBase := w.Pos()
	names := NewStringSection()
	w.WriteOffset(Offset32, materialsBase, 1, 0, func(w *OffsetWriter) error {
		arrayBase := w.Pos()
		for _, mat := range m.Materials {
			if err := writeMaterial(w, mat, arrayBase, names); err != nil {
				return err
			}
		}
		return names.Flush(w, 1, 0)
	})
	w.WriteU32(uint32(len(m.Materials)))
	return w.Flush()
}

func writeMaterial(w *OffsetWriter, mat Material, base int64, names *StringSection) error {
	if mat.Name != "" {
		names.Add(w, mat.Name, base, Offset32)
	} else {
		w.WriteU32(0)
	}
	w.WriteU16(mat.TechniqueIndex)
	w.WriteU16(mat.Unk2)
	w.WriteU16(mat.Unk3)
	w.WriteU16(mat.Unk4)
	for _, v := range mat.Params {
		w.WriteF32(v)
	}

	texBase := w.Pos()
	w.WriteOffset(Offset32, texBase, 1, 0, func(w *OffsetWriter) error {
		for _, t := range mat.Textures {
			w.WriteU16(t.TextureIndex)
			w.WriteU16(t.SamplerIndex)
			w.WriteU16(t.Unk2)
			w.WriteU16(t.Unk3)
		}
		return nil
	})
	w.WriteU32(uint32(len(mat.Textures)))
	return nil
}
