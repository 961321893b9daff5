// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

// Sar1Entry is one named sub-archive inside a "1RAS"/"SAR1" animation
// archive: a skeleton, an animation, or an assembly record, each framed by
// its own "BC\0\0" wrapper (spec.md 6).
type Sar1Entry struct {
	Name string
	Data []byte
}

// Sar1 is the parsed animation-archive container (magic "1RAS"/"SAR1",
// spec.md 6), grounded on original_source/xc3_lib's Sar1 entry-table shape:
// a count-prefixed table of {name, offset, size} triples, the name stored
// inline rather than through a shared section.
type Sar1 struct {
	Version uint32
	Unknown uint32
	Entries []Sar1Entry
}

const sar1EntryNameSize = 52

// ParseSar1 parses a whole "1RAS"/"SAR1" container.
func ParseSar1(data []byte) (*Sar1, error) {
	r := NewReader(data)
	pos := r.Pos()
	magic, err := r.ReadFixedString(4)
	if err != nil {
		return nil, err
	}
	if magic != "1RAS" && magic != "SAR1" {
		return nil, NewBadMagic("1RAS\" or \"SAR1", magic, pos)
	}

	s := &Sar1{}
	if s.Version, err = r.ReadU32(); err != nil {
		return nil, err
	}
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if s.Unknown, err = r.ReadU32(); err != nil {
		return nil, err
	}

	for i := uint32(0); i < count; i++ {
		entryStart := r.Pos()
		offset, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		size, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		if _, err := r.ReadU32(); err != nil { // unk
			return nil, err
		}
		name, err := r.ReadFixedString(sar1EntryNameSize)
		if err != nil {
			return nil, err
		}
		end := int64(offset) + int64(size)
		if offset == 0 || end > r.Len() {
			return nil, NewOutOfBoundsOffset(int64(offset), r.Len(), entryStart)
		}
		s.Entries = append(s.Entries, Sar1Entry{Name: name, Data: data[offset:end]})
	}
	return s, nil
}

// bcHeaderSize is the fixed "BC\0\0" wrapper preceding every skeleton or
// animation sub-record: magic(4), unknown(4), data_size(4), data_offset(4).
const bcHeaderSize = 16

// BcRecord is one "BC\0\0"-wrapped sub-record: its inner magic tag
// ("ANIM"/"ASMB"/"SKEL") identifies which parser to dispatch to.
type BcRecord struct {
	InnerMagic string
	DataSize   uint32
	Inner      []byte
}

// ParseBcRecord unwraps the common "BC\0\0" header and slices out the
// inner record's bytes without interpreting them (spec.md 6).
func ParseBcRecord(data []byte) (*BcRecord, error) {
	r := NewReader(data)
	pos := r.Pos()
	if err := r.ReadMagic("BC\x00\x00"); err != nil {
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // unknown
		return nil, err
	}
	dataSize, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	dataOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	start := int64(dataOffset)
	end := start + int64(dataSize)
	if start < 0 || end > r.Len() {
		return nil, NewOutOfBoundsOffset(start, r.Len(), pos)
	}
	inner := data[start:end]
	innerMagic, err := NewReader(inner).ReadFixedString(4)
	if err != nil {
		return nil, err
	}
	return &BcRecord{InnerMagic: innerMagic, DataSize: dataSize, Inner: inner}, nil
}

// Write re-emits the "BC\0\0" wrapper around inner, placing inner
// immediately after the 16-byte header (spec.md 4.2's pointer-placement
// writer, specialized to this fixed-shape record).
func (b *BcRecord) Write(w *ByteWriter) {
	w.WriteMagic("BC\x00\x00")
	w.WriteU32(0)
	w.WriteU32(uint32(len(b.Inner)))
	w.WriteU32(uint32(bcHeaderSize))
	w.WriteRaw(b.Inner)
}

// BoneConstraintKind tags which of the two optional per-bone constraint
// shapes (spec.md 3) a Bone carries.
type BoneConstraintKind uint8

const (
	BoneConstraintNone BoneConstraintKind = iota
	BoneConstraintFixedOffset
	BoneConstraintDistanceLimit
)

// BoneConstraint is a bone's optional fixed-offset or distance-limit
// constraint record.
type BoneConstraint struct {
	Kind           BoneConstraintKind
	FixedOffset    [3]float32
	DistanceLimit  float32
}

// BoneBounds is a bone's optional bounding-box extent.
type BoneBounds struct {
	Min [3]float32
	Max [3]float32
}

// Bone is one row of a Skeleton's ordered bone list (spec.md 3): name
// (drawn from a shared string section on disk), parent index (-1 for a
// root bone), an optional bounds box, an optional constraint, and the
// bind-pose inverse transform as a 4x4 row-major matrix.
type Bone struct {
	Name          string
	ParentIndex   int32
	Bounds        *BoneBounds
	Constraint    *BoneConstraint
	InverseBind   [16]float32
}

// Skeleton is an ordered bone list with parent indices and bind
// transforms (spec.md 3).
type Skeleton struct {
	Bones []Bone
}

// ParseSkeleton parses a "SKEL"-tagged Bc inner record.
func ParseSkeleton(data []byte) (*Skeleton, error) {
	r := NewReader(data)
	pos := r.Pos()
	if err := r.ReadMagic("SKEL"); err != nil {
		return nil, err
	}
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	bonesPtr, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	base := pos
	target := base + int64(bonesPtr)
	if bonesPtr != 0 {
		if target < 0 || target > r.Len() {
			return nil, NewOutOfBoundsOffset(target, r.Len(), pos)
		}
		r.Seek(target)
	}

	skel := &Skeleton{}
	for i := uint32(0); i < count; i++ {
		bone, err := parseBone(r, base)
		if err != nil {
			return nil, err
		}
		skel.Bones = append(skel.Bones, bone)
	}
	return skel, nil
}

func parseBone(r *Reader, base int64) (Bone, error) {
	bone := Bone{}
	entryStart := r.Pos()

	namePtr, err := r.ReadU32()
	if err != nil {
		return bone, err
	}
	parent, err := r.ReadI32()
	if err != nil {
		return bone, err
	}
	bone.ParentIndex = parent

	hasBounds, err := r.ReadU32()
	if err != nil {
		return bone, err
	}
	constraintKind, err := r.ReadU32()
	if err != nil {
		return bone, err
	}

	for i := range bone.InverseBind {
		if bone.InverseBind[i], err = r.ReadF32(); err != nil {
			return bone, err
		}
	}

	if hasBounds != 0 {
		bounds := &BoneBounds{}
		for i := range bounds.Min {
			if bounds.Min[i], err = r.ReadF32(); err != nil {
				return bone, err
			}
		}
		for i := range bounds.Max {
			if bounds.Max[i], err = r.ReadF32(); err != nil {
				return bone, err
			}
		}
		bone.Bounds = bounds
	}

	switch BoneConstraintKind(constraintKind) {
	case BoneConstraintFixedOffset:
		c := &BoneConstraint{Kind: BoneConstraintFixedOffset}
		for i := range c.FixedOffset {
			if c.FixedOffset[i], err = r.ReadF32(); err != nil {
				return bone, err
			}
		}
		bone.Constraint = c
	case BoneConstraintDistanceLimit:
		c := &BoneConstraint{Kind: BoneConstraintDistanceLimit}
		if c.DistanceLimit, err = r.ReadF32(); err != nil {
			return bone, err
		}
		bone.Constraint = c
	case BoneConstraintNone:
	default:
		return bone, NewUnknownDiscriminant(constraintKind, entryStart)
	}

	if namePtr != 0 {
		saved := r.Pos()
		namePos := base + int64(namePtr)
		if namePos < 0 || namePos > r.Len() {
			return bone, NewOutOfBoundsOffset(namePos, r.Len(), entryStart)
		}
		r.Seek(namePos)
		name, err := r.ReadCString()
		if err != nil {
			return bone, err
		}
		bone.Name = name
		r.Seek(saved)
	}

	return bone, nil
}

// Write emits a Skeleton using the two-phase pointer-placement writer: the
// bone table is an array of variable-size records (bounds and constraint
// are optional trailing fields), each with a deferred name
// pointer into a single shared string section, matching the "bone name"
// convention of every other string field in this format family.
func (s *Skeleton) Write(w *OffsetWriter) error {
	w.WriteMagic("SKEL")
	w.WriteU32(uint32(len(s.Bones)))
	base := w.Pos() - 8
	strings := NewStringSection()

	w.WriteOffset(Offset32, base, 1, 0, func(w *OffsetWriter) error {
		for _, bone := range s.Bones {
			if err := writeBone(w, bone, base, strings); err != nil {
				return err
			}
		}
		return strings.Flush(w, 1, 0)
	})
	return w.Flush()
}

func writeBone(w *OffsetWriter, bone Bone, base int64, strings *StringSection) error {
	if bone.Name != "" {
		strings.Add(w, bone.Name, base, Offset32)
	} else {
		w.WriteU32(0)
	}
	w.WriteI32(bone.ParentIndex)
	if bone.Bounds != nil {
		w.WriteU32(1)
	} else {
		w.WriteU32(0)
	}
	if bone.Constraint != nil {
		w.WriteU32(uint32(bone.Constraint.Kind))
	} else {
		w.WriteU32(uint32(BoneConstraintNone))
	}
	for _, v := range bone.InverseBind {
		w.WriteF32(v)
	}
	if bone.Bounds != nil {
		for _, v := range bone.Bounds.Min {
			w.WriteF32(v)
		}
		for _, v := range bone.Bounds.Max {
			w.WriteF32(v)
		}
	}
	if bone.Constraint != nil {
		switch bone.Constraint.Kind {
		case BoneConstraintFixedOffset:
			for _, v := range bone.Constraint.FixedOffset {
				w.WriteF32(v)
			}
		case BoneConstraintDistanceLimit:
			w.WriteF32(bone.Constraint.DistanceLimit)
		}
	}
	return nil
}

// BoneIndexByName returns the index of the bone named name, or -1.
func (s *Skeleton) BoneIndexByName(name string) int {
	for i, b := range s.Bones {
		if b.Name == name {
			return i
		}
	}
	return -1
}
