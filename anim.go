// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

// AnimationType discriminates the four track encodings a track pool can
// hold (spec.md 3, 4.8). Values match original_source/xc3_lib/src/bc/anim.rs
// so on-disk discriminants round-trip unchanged.
type AnimationType uint32

const (
	AnimationUncompressed AnimationType = iota
	AnimationCubic
	AnimationEmpty
	AnimationPackedCubic
)

// Transform is a bone-local translation/rotation/scale triple.
type Transform struct {
	Translation [3]float32
	Rotation    [4]float32 // quaternion, xyzw
	Scale       [3]float32
}

// UncompressedTrack stores one Transform per frame per bone track: a dense,
// uncompressed keyframe pool.
type UncompressedTrack struct {
	Transforms []Transform
}

// CubicKeyframe is one (frame, cubic-coefficients) sample of a CubicTrack's
// vector or quaternion channel: coefficients x,y,z[,w] evaluate as
// EvalCubic against (t - frame).
type CubicKeyframe struct {
	Frame        float32
	Coefficients [4][4]float32 // per-component [a,b,c,d]
}

// CubicTrack is one bone's translation/rotation/scale channel, each a
// sparse list of cubic keyframes (spec.md 4.8).
type CubicTrack struct {
	Translation []CubicKeyframe
	Rotation    []CubicKeyframe
	Scale       []CubicKeyframe
}

// EvalCubic evaluates a single cubic component a*t^3 + b*t^2 + c*t + d.
func EvalCubic(a, b, c, d, t float32) float32 {
	return ((a*t+b)*t+c)*t + d
}

// SubTrackRange indexes into PackedCubic's shared keyframe/vector/
// quaternion pools: [KeyframeStartIndex, KeyframeEndIndex) selects the
// keyframe-time slice, and the matching curve slice starts at
// CurvesStartIndex and spans Count() rows per curve component (see
// PackedCubic.Curves) (spec.md 4.8's "packed-cubic
// sub-tracks with shared keyframe-time/vector/quaternion pools").
type SubTrackRange struct {
	KeyframeStartIndex uint32
	KeyframeEndIndex   uint32
	CurvesStartIndex   uint32
}

// Count returns the number of keyframes this range covers.
func (r SubTrackRange) Count() uint32 {
	if r.KeyframeEndIndex <= r.KeyframeStartIndex {
		return 0
	}
	return r.KeyframeEndIndex - r.KeyframeStartIndex
}

// PackedCubicTrack is one bone's translation/rotation/scale sub-track
// ranges into the parent PackedCubic's shared pools.
type PackedCubicTrack struct {
	Translation SubTrackRange
	Rotation    SubTrackRange
	Scale       SubTrackRange
}

// PackedCubic is the densest of the four encodings: per-bone sub-track
// ranges sharing three flat pools (spec.md 4.8).
type PackedCubic struct {
	Tracks      []PackedCubicTrack
	Keyframes   []uint16 // shared frame-time pool, one entry per sample
	Vectors     [][4]float32 // shared translation/scale curve pool (a,b,c,d per axis group)
	Quaternions [][4]float32 // shared rotation curve pool
}

// Curves returns the components-many consecutive [a,b,c,d] coefficient
// rows covering rng, one row per axis per keyframe in rng's range, sliced
// out of pool (p.Vectors for translation/scale, p.Quaternions for
// rotation).
func (p *PackedCubic) Curves(rng SubTrackRange, components int, pool [][4]float32) ([][4]float32, error) {
	count := rng.Count()
	if count == 0 {
		return nil, nil
	}
	start := rng.CurvesStartIndex
	end := start + count*uint32(components)
	if int(end) > len(pool) {
		return nil, NewIndexOutOfRange(int(end), len(pool))
	}
	return pool[start:end], nil
}

// AnimationData is the tagged union of a track's four possible encodings.
// The one field matching Type is populated; for AnimationEmpty none is.
type AnimationData struct {
	Type          AnimationType
	Uncompressed  *UncompressedTrack
	Cubic         *Cubic
	PackedCubic   *PackedCubic
}

// Cubic holds one CubicTrack per bone.
type Cubic struct {
	Tracks []CubicTrack
}

// AnimationNotify is a named timeline event fired during playback.
type AnimationNotify struct {
	Time      float32
	Unknown   int32
	Reference string
}

// AnimationLocomotion is the optional root-motion curve carried alongside
// an animation's bone tracks.
type AnimationLocomotion struct {
	SecondsPerFrame float32
	Translation     [][4]float32
}

// Animation is one decoded animation clip (spec.md 3, 4.8): playback
// metadata plus one of the four track-pool encodings.
type Animation struct {
	Name             string
	SpaceMode        uint16
	PlayMode         uint16
	BlendMode        uint16
	FramesPerSecond  float32
	FrameCount       uint32
	Notifies         []AnimationNotify
	Locomotion       *AnimationLocomotion
	Data             AnimationData
}

// TrackHashes is the bone-name-hash side table (spec.md 4.8): hashing a
// bone name lets a binding reference a track without re-reading the
// skeleton's string table.
type TrackHashes struct {
	BoneNameHashes []uint32
}

// BoneNameHash is the 32-bit hash a TrackHashes entry is keyed by, grounded
// on the little-endian FNV-1a variant original_source uses for bone/track
// name hashing throughout this format family.
func BoneNameHash(name string) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	h := uint32(offset32)
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= prime32
	}
	return h
}

// AnimationBindingInnerKind discriminates AnimationBindingInner's four
// size-keyed variants (spec.md 4.8).
type AnimationBindingInnerKind int

const (
	BindingInner60 AnimationBindingInnerKind = iota
	BindingInner76
	BindingInner120
	BindingInner128
)

// bindingInnerSizes are the four variant byte sizes DiscriminantBySize
// resolves against, sorted ascending as layout.go requires.
var bindingInnerSizes = []int64{60, 76, 120, 128}

// ExtraTrackAnimation is a secondary animation referenced from an
// AnimationBindingInner variant wider than 60 bytes: an auxiliary morph or
// material-curve track bound to a subset of the skeleton.
type ExtraTrackAnimation struct {
	Name        string
	BlendMode   uint16
	TrackIndices []int16
}

// AnimationBindingInner is the size-discriminated tail of an
// AnimationBinding record (spec.md 4.8: "discriminated by a computed size,
// the distance between two recorded file positions"). Only the fields
// belonging to Kind are populated.
type AnimationBindingInner struct {
	Kind            AnimationBindingInnerKind
	Unknown1        uint64 // BindingInner128 only
	ExtraTrackAnims []ExtraTrackAnimation
}

// AnimationBinding binds an Animation to a specific skeleton's bone
// tracks: BoneTrackIndices[i] is the index into Animation's track pool for
// skeleton bone i, or -1 if bone i has no track.
type AnimationBinding struct {
	Animation        *Animation
	BoneTrackIndices []int16
	Hashes           *TrackHashes
	Inner            AnimationBindingInner
}

// ParseAnimation parses an "ANIM"-tagged Bc inner record.
func ParseAnimation(data []byte) (*Animation, error) {
	r := NewReader(data)
	if err := r.ReadMagic("ANIM"); err != nil {
		return nil, err
	}
	a := &Animation{}

	namePtr, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	base := int64(0)

	animType, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if a.SpaceMode, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if a.PlayMode, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if a.BlendMode, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if _, err = r.ReadU16(); err != nil { // pad
		return nil, err
	}
	if a.FramesPerSecond, err = r.ReadF32(); err != nil {
		return nil, err
	}
	if a.FrameCount, err = r.ReadU32(); err != nil {
		return nil, err
	}

	dataPtr, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	trackCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}

	data2, err := parseAnimationData(r, base+int64(dataPtr), AnimationType(animType), trackCount)
	if err != nil {
		return nil, err
	}
	a.Data = *data2

	if namePtr != 0 {
		namePos := base + int64(namePtr)
		if namePos < 0 || namePos > r.Len() {
			return nil, NewOutOfBoundsOffset(namePos, r.Len(), 0)
		}
		saved := r.Pos()
		r.Seek(namePos)
		name, err := r.ReadCString()
		if err != nil {
			return nil, err
		}
		a.Name = name
		r.Seek(saved)
	}

	return a, nil
}

func parseAnimationData(r *Reader, pos int64, typ AnimationType, trackCount uint32) (*AnimationData, error) {
	if pos < 0 || pos > r.Len() {
		return nil, NewOutOfBoundsOffset(pos, r.Len(), r.Pos())
	}
	saved := r.Pos()
	defer r.Seek(saved)
	r.Seek(pos)

	out := &AnimationData{Type: typ}
	switch typ {
	case AnimationEmpty:
		// no payload
	case AnimationUncompressed:
		track := &UncompressedTrack{Transforms: make([]Transform, trackCount)}
		for i := range track.Transforms {
			t, err := readTransform(r)
			if err != nil {
				return nil, err
			}
			track.Transforms[i] = t
		}
		out.Uncompressed = track
	case AnimationCubic:
		cubic := &Cubic{Tracks: make([]CubicTrack, trackCount)}
		for i := range cubic.Tracks {
			track, err := readCubicTrack(r)
			if err != nil {
				return nil, err
			}
			cubic.Tracks[i] = track
		}
		out.Cubic = cubic
	case AnimationPackedCubic:
		packed, err := readPackedCubic(r, trackCount)
		if err != nil {
			return nil, err
		}
		out.PackedCubic = packed
	default:
		return nil, NewUnknownDiscriminant(uint32(typ), pos)
	}
	return out, nil
}

func readTransform(r *Reader) (Transform, error) {
	var t Transform
	var err error
	for i := range t.Translation {
		if t.Translation[i], err = r.ReadF32(); err != nil {
			return t, err
		}
	}
	for i := range t.Rotation {
		if t.Rotation[i], err = r.ReadF32(); err != nil {
			return t, err
		}
	}
	for i := range t.Scale {
		if t.Scale[i], err = r.ReadF32(); err != nil {
			return t, err
		}
	}
	return t, nil
}

func readCubicKeyframeList(r *Reader, components int) ([]CubicKeyframe, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	out := make([]CubicKeyframe, count)
	for i := range out {
		if out[i].Frame, err = r.ReadF32(); err != nil {
			return nil, err
		}
		for c := 0; c < components; c++ {
			for k := 0; k < 4; k++ {
				if out[i].Coefficients[c][k], err = r.ReadF32(); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

func readCubicTrack(r *Reader) (CubicTrack, error) {
	var track CubicTrack
	var err error
	if track.Translation, err = readCubicKeyframeList(r, 3); err != nil {
		return track, err
	}
	if track.Rotation, err = readCubicKeyframeList(r, 4); err != nil {
		return track, err
	}
	if track.Scale, err = readCubicKeyframeList(r, 3); err != nil {
		return track, err
	}
	return track, nil
}

func readSubTrackRange(r *Reader) (SubTrackRange, error) {
	var rng SubTrackRange
	var err error
	if rng.KeyframeStartIndex, err = r.ReadU32(); err != nil {
		return rng, err
	}
	if rng.KeyframeEndIndex, err = r.ReadU32(); err != nil {
		return rng, err
	}
	if rng.CurvesStartIndex, err = r.ReadU32(); err != nil {
		return rng, err
	}
	return rng, nil
}

func readPackedCubic(r *Reader, trackCount uint32) (*PackedCubic, error) {
	p := &PackedCubic{Tracks: make([]PackedCubicTrack, trackCount)}
	for i := range p.Tracks {
		var err error
		if p.Tracks[i].Translation, err = readSubTrackRange(r); err != nil {
			return nil, err
		}
		if p.Tracks[i].Rotation, err = readSubTrackRange(r); err != nil {
			return nil, err
		}
		if p.Tracks[i].Scale, err = readSubTrackRange(r); err != nil {
			return nil, err
		}
	}

	keyframeCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	p.Keyframes = make([]uint16, keyframeCount)
	for i := range p.Keyframes {
		if p.Keyframes[i], err = r.ReadU16(); err != nil {
			return nil, err
		}
	}

	vectorCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	p.Vectors = make([][4]float32, vectorCount)
	for i := range p.Vectors {
		for k := 0; k < 4; k++ {
			if p.Vectors[i][k], err = r.ReadF32(); err != nil {
				return nil, err
			}
		}
	}

	quatCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	p.Quaternions = make([][4]float32, quatCount)
	for i := range p.Quaternions {
		for k := 0; k < 4; k++ {
			if p.Quaternions[i][k], err = r.ReadF32(); err != nil {
				return nil, err
			}
		}
	}

	return p, nil
}

// ParseAnimationBinding parses an "ASMB"-tagged Bc inner record: a binding
// header followed by its size-discriminated inner tail, with the animation
// block itself written earlier in the stream (spec.md 4.8's
// back-referencing traversal override).
func ParseAnimationBinding(data []byte) (*AnimationBinding, error) {
	r := NewReader(data)
	if err := r.ReadMagic("ASMB"); err != nil {
		return nil, err
	}
	b := &AnimationBinding{}

	animPtr, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if animPtr != 0 {
		anim, err := ParseAnimation(data[animPtr:])
		if err != nil {
			return nil, err
		}
		b.Animation = anim
	}

	trackBase := r.Pos()
	trackOffset, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	trackCount, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	indices, err := ReadRelativeArray32(r, trackBase, RelativeArrayHeader{Offset: trackOffset, Count: trackCount}, func(r *Reader) (int16, error) {
		return r.ReadI16()
	})
	if err != nil {
		return nil, err
	}
	b.BoneTrackIndices = indices

	innerStart := r.Pos()
	innerSize := r.Len() - innerStart
	kind, err := DiscriminantBySize(innerSize, bindingInnerSizes)
	if err != nil {
		return nil, err
	}
	b.Inner = AnimationBindingInner{Kind: AnimationBindingInnerKind(kind)}
	if b.Inner.Kind == BindingInner128 {
		if b.Inner.Unknown1, err = r.ReadU64(); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// Write emits an AnimationBinding using the back-referencing traversal
// override: the bound Animation is written immediately (before this
// record's own header) via WriteNow, matching original_source's
// AnimOffsets write-order override, then this record's offset field is
// patched against the position WriteNow returns.
func (b *AnimationBinding) Write(w *OffsetWriter) error {
	var animPos int64
	if b.Animation != nil {
		pos, err := WriteNow(w, 8, 0, func(w *OffsetWriter) error {
			return b.Animation.Write(w)
		})
		if err != nil {
			return err
		}
		animPos = pos
	}

	base := w.Pos()
	w.WriteMagic("ASMB")
	if b.Animation != nil {
		w.WriteU32(uint32(animPos - base))
	} else {
		w.WriteU32(0)
	}

	trackBase := w.Pos()
	w.WriteOffset(Offset32, trackBase, 4, 0, func(w *OffsetWriter) error {
		for _, idx := range b.BoneTrackIndices {
			w.WriteI16(idx)
		}
		return nil
	})
	w.WriteU32(uint32(len(b.BoneTrackIndices)))

	if b.Inner.Kind == BindingInner128 {
		w.WriteU64(b.Inner.Unknown1)
	}
	return w.Flush()
}

// Write emits an Animation record: metadata fields then its track pool at
// a deferred offset, with the name placed in the shared payload area.
func (a *Animation) Write(w *OffsetWriter) error {
	base := w.Pos()
	var trackCount uint32
	switch a.Data.Type {
	case AnimationUncompressed:
		if a.Data.Uncompressed != nil {
			trackCount = uint32(len(a.Data.Uncompressed.Transforms))
		}
	case AnimationCubic:
		if a.Data.Cubic != nil {
			trackCount = uint32(len(a.Data.Cubic.Tracks))
		}
	case AnimationPackedCubic:
		if a.Data.PackedCubic != nil {
			trackCount = uint32(len(a.Data.PackedCubic.Tracks))
		}
	}

	w.WriteMagic("ANIM")
	w.WriteOffset(Offset32, base, 1, 0, func(w *OffsetWriter) error {
		w.WriteCString(a.Name)
		return nil
	})
	w.WriteU32(uint32(a.Data.Type))
	w.WriteU16(a.SpaceMode)
	w.WriteU16(a.PlayMode)
	w.WriteU16(a.BlendMode)
	w.WriteU16(0)
	w.WriteF32(a.FramesPerSecond)
	w.WriteU32(a.FrameCount)

	w.WriteOffset(Offset32, base, 8, 0, func(w *OffsetWriter) error {
		return writeAnimationData(w, a.Data)
	})
	w.WriteU32(trackCount)
	return nil
}

func writeAnimationData(w *OffsetWriter, d AnimationData) error {
	switch d.Type {
	case AnimationEmpty:
	case AnimationUncompressed:
		if d.Uncompressed != nil {
			for _, t := range d.Uncompressed.Transforms {
				writeTransform(w, t)
			}
		}
	case AnimationCubic:
		if d.Cubic != nil {
			for _, track := range d.Cubic.Tracks {
				writeCubicTrack(w, track)
			}
		}
	case AnimationPackedCubic:
		if d.PackedCubic != nil {
			writePackedCubic(w, d.PackedCubic)
		}
	}
	return nil
}

func writeTransform(w *OffsetWriter, t Transform) {
	for _, v := range t.Translation {
		w.WriteF32(v)
	}
	for _, v := range t.Rotation {
		w.WriteF32(v)
	}
	for _, v := range t.Scale {
		w.WriteF32(v)
	}
}

func writeCubicKeyframeList(w *OffsetWriter, keyframes []CubicKeyframe, components int) {
	w.WriteU32(uint32(len(keyframes)))
	for _, kf := range keyframes {
		w.WriteF32(kf.Frame)
		for c := 0; c < components; c++ {
			for k := 0; k < 4; k++ {
				w.WriteF32(kf.Coefficients[c][k])
			}
		}
	}
}

func writeCubicTrack(w *OffsetWriter, track CubicTrack) {
	writeCubicKeyframeList(w, track.Translation, 3)
	writeCubicKeyframeList(w, track.Rotation, 4)
	writeCubicKeyframeList(w, track.Scale, 3)
}

func writeSubTrackRange(w *OffsetWriter, rng SubTrackRange) {
	w.WriteU32(rng.KeyframeStartIndex)
	w.WriteU32(rng.KeyframeEndIndex)
	w.WriteU32(rng.CurvesStartIndex)
}

func writePackedCubic(w *OffsetWriter, p *PackedCubic) {
	for _, t := range p.Tracks {
		writeSubTrackRange(w, t.Translation)
		writeSubTrackRange(w, t.Rotation)
		writeSubTrackRange(w, t.Scale)
	}
	w.WriteU32(uint32(len(p.Keyframes)))
	for _, v := range p.Keyframes {
		w.WriteU16(v)
	}
	w.WriteU32(uint32(len(p.Vectors)))
	for _, v := range p.Vectors {
		for _, c := range v {
			w.WriteF32(c)
		}
	}
	w.WriteU32(uint32(len(p.Quaternions)))
	for _, v := range p.Quaternions {
		for _, c := range v {
			w.WriteF32(c)
		}
	}
}
