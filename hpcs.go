// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

// InputAttribute is one vertex-shader input slot declared by a shader
// program, grounded on original_source/src/hpcs.rs's InputAttribute.
type InputAttribute struct {
	Name     string
	Location uint32
}

// Nvsd is one shader stage's metadata sub-header (vertex/fragment/compute
// byte ranges into the archive's raw GPU bytecode region, plus its input
// attribute table). This codec stops at that boundary and never
// disassembles the bytecode itself (spec.md Non-goals).
type Nvsd struct {
	VertexOffset   uint32
	VertexSize     uint32
	FragmentOffset uint32
	FragmentSize   uint32
	ComputeOffset  uint32
	ComputeSize    uint32
	InputAttributes []InputAttribute
}

// Slct is one shader program's container record: a name and one Nvsd per
// compiled stage permutation.
type Slct struct {
	Name     string
	Programs []Nvsd
}

// ShaderProgram is one named entry in the archive's top-level program
// table, pointing at its Slct record.
type ShaderProgram struct {
	Name string
	Slct Slct
}

// Hpcs is the raw shader-archive container (magic "HCPS"/"SPCH"), grounded
// on original_source/src/hpcs.rs: a string section plus a table of
// per-program Slct/Nvsd sub-headers, with the GPU bytecode regions kept as
// opaque byte ranges.
type Hpcs struct {
	Version  uint32
	Programs []ShaderProgram
}

// ParseHpcs parses a whole "HCPS"/"SPCH" shader-archive file.
func ParseHpcs(data []byte) (*Hpcs, error) {
	r := NewReader(data)
	pos := r.Pos()
	magic, err := r.ReadFixedString(4)
	if err != nil {
		return nil, err
	}
	if magic != "HCPS" && magic != "SPCH" {
		return nil, NewBadMagic("HCPS\" or \"SPCH", magic, pos)
	}

	h := &Hpcs{}
	if h.Version, err = r.ReadU32(); err != nil {
		return nil, err
	}

	programBase := r.Pos()
	programOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	programCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}

	programs, err := ReadRelativeArray32(r, programBase, RelativeArrayHeader{Offset: programOffset, Count: programCount}, func(r *Reader) (ShaderProgram, error) {
		return parseShaderProgram(r, data)
	})
	if err != nil {
		return nil, err
	}
	h.Programs = programs
	return h, nil
}

func parseStringPtr(r *Reader, data []byte, entryStart int64) (string, error) {
	ptr, err := r.ReadU32()
	if err != nil {
		return "", err
	}
	if ptr == 0 {
		return "", nil
	}
	if int64(ptr) < 0 || int64(ptr) > int64(len(data)) {
		return "", NewOutOfBoundsOffset(int64(ptr), int64(len(data)), entryStart)
	}
	return NewReader(data[ptr:]).ReadCString()
}

func parseShaderProgram(r *Reader, data []byte) (ShaderProgram, error) {
	entryStart := r.Pos()
	sp := ShaderProgram{}
	name, err := parseStringPtr(r, data, entryStart)
	if err != nil {
		return sp, err
	}
	sp.Name = name

	slctOffset, err := r.ReadU32()
	if err != nil {
		return sp, err
	}
	if int64(slctOffset) < 0 || int64(slctOffset) > int64(len(data)) {
		return sp, NewOutOfBoundsOffset(int64(slctOffset), int64(len(data)), entryStart)
	}
	slct, err := parseSlct(data[slctOffset:], data)
	if err != nil {
		return sp, err
	}
	sp.Slct = slct
	return sp, nil
}

func parseSlct(section []byte, data []byte) (Slct, error) {
	r := NewReader(section)
	pos := r.Pos()
	if err := r.ReadMagic("SLCT"); err != nil {
		return Slct{}, NewBadMagic("SLCT", string(section[:min(4, len(section))]), pos)
	}
	slct := Slct{}
	nameEntryStart := r.Pos()
	name, err := parseStringPtr(r, data, nameEntryStart)
	if err != nil {
		return slct, err
	}
	slct.Name = name

	count, err := r.ReadU32()
	if err != nil {
		return slct, err
	}
	for i := uint32(0); i < count; i++ {
		nvsd, err := parseNvsd(r, data)
		if err != nil {
			return slct, err
		}
		slct.Programs = append(slct.Programs, nvsd)
	}
	return slct, nil
}

func parseNvsd(r *Reader, data []byte) (Nvsd, error) {
	nvsd := Nvsd{}
	if err := r.ReadMagic("NVSD"); err != nil {
		return nvsd, err
	}
	var err error
	if nvsd.VertexOffset, err = r.ReadU32(); err != nil {
		return nvsd, err
	}
	if nvsd.VertexSize, err = r.ReadU32(); err != nil {
		return nvsd, err
	}
	if nvsd.FragmentOffset, err = r.ReadU32(); err != nil {
		return nvsd, err
	}
	if nvsd.FragmentSize, err = r.ReadU32(); err != nil {
		return nvsd, err
	}
	if nvsd.ComputeOffset, err = r.ReadU32(); err != nil {
		return nvsd, err
	}
	if nvsd.ComputeSize, err = r.ReadU32(); err != nil {
		return nvsd, err
	}

	attrCount, err := r.ReadU32()
	if err != nil {
		return nvsd, err
	}
	for i := uint32(0); i < attrCount; i++ {
		entryStart := r.Pos()
		name, err := parseStringPtr(r, data, entryStart)
		if err != nil {
			return nvsd, err
		}
		loc, err := r.ReadU32()
		if err != nil {
			return nvsd, err
		}
		nvsd.InputAttributes = append(nvsd.InputAttributes, InputAttribute{Name: name, Location: loc})
	}
	return nvsd, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// VertexBytecode returns the raw, undisassembled vertex-stage bytecode
// region for nvsd within archive.
func (n Nvsd) VertexBytecode(archive []byte) ([]byte, error) {
	return sliceRange(archive, n.VertexOffset, n.VertexSize)
}

// FragmentBytecode returns the raw fragment-stage bytecode region.
func (n Nvsd) FragmentBytecode(archive []byte) ([]byte, error) {
	return sliceRange(archive, n.FragmentOffset, n.FragmentSize)
}

// ComputeBytecode returns the raw compute-stage bytecode region, or nil if
// this program has none (ComputeSize == 0).
func (n Nvsd) ComputeBytecode(archive []byte) ([]byte, error) {
	if n.ComputeSize == 0 {
		return nil, nil
	}
	return sliceRange(archive, n.ComputeOffset, n.ComputeSize)
}

func sliceRange(data []byte, offset, size uint32) ([]byte, error) {
	start := int64(offset)
	end := start + int64(size)
	if start < 0 || end > int64(len(data)) {
		return nil, NewOutOfBoundsOffset(start, int64(len(data)), 0)
	}
	return data[start:end], nil
}
