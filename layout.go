// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

import "sort"

// OffsetWidth is the byte width of a pointer field.
type OffsetWidth int

const (
	Offset32 OffsetWidth = 4
	Offset64 OffsetWidth = 8
)

// OffsetWriter implements the two-phase pointer-placement writer described
// in spec.md 4.2: a header pass emits in-place fields and zero placeholders
// immediately, a payload pass later emits the pointed-to values in the
// declared traversal order and back-patches the placeholders. Every record
// type's Write method receives one of these (or a fresh one rooted through
// WriteNow) instead of rolling its own buffer, so offset tables and shared
// string sections compose across nested records.
type OffsetWriter struct {
	*ByteWriter
	queue []func(w *OffsetWriter) error
}

// NewOffsetWriter returns an OffsetWriter with an empty payload queue.
func NewOffsetWriter() *OffsetWriter {
	return &OffsetWriter{ByteWriter: NewByteWriter()}
}

// ReserveOffset writes a zero placeholder of the given width at the
// current position and returns that position, so it can be back-patched
// once the pointed-to value's position is known.
func (w *OffsetWriter) ReserveOffset(width OffsetWidth) int64 {
	pos := w.Pos()
	switch width {
	case Offset64:
		w.WriteU64(0)
	default:
		w.WriteU32(0)
	}
	return pos
}

// PatchOffset rewrites the placeholder at placeholderPos with
// target-base. It fails with OffsetOverflow if the result does not fit in
// width bytes.
func (w *OffsetWriter) PatchOffset(placeholderPos, target, base int64, width OffsetWidth) error {
	value := target - base
	if value < 0 {
		return NewOffsetOverflow(value, int(width))
	}
	if width == Offset32 && value > 0xFFFFFFFF {
		return NewOffsetOverflow(value, int(width))
	}
	b := w.Bytes()
	switch width {
	case Offset64:
		w.Order().PutUint64(b[placeholderPos:placeholderPos+8], uint64(value))
	default:
		w.Order().PutUint32(b[placeholderPos:placeholderPos+4], uint32(value))
	}
	return nil
}

// Defer enqueues fn onto the payload-pass queue. Queued functions run in
// FIFO order once Flush is called, and may themselves enqueue further
// work (e.g. a nested record's own offset fields), so the queue drains
// breadth-first over the declared traversal order.
func (w *OffsetWriter) Defer(fn func(w *OffsetWriter) error) {
	w.queue = append(w.queue, fn)
}

// Flush drains the payload-pass queue until empty.
func (w *OffsetWriter) Flush() error {
	for len(w.queue) > 0 {
		fn := w.queue[0]
		w.queue = w.queue[1:]
		if err := fn(w); err != nil {
			return err
		}
	}
	return nil
}

// WriteOffset is the common-case sugar for one pointer field: it reserves
// a placeholder now and defers writing + back-patching the pointed-to
// value until the payload pass, aligning to align (fill-padded) before
// recording the payload's position.
func (w *OffsetWriter) WriteOffset(width OffsetWidth, base int64, align int, fill byte, write func(w *OffsetWriter) error) int64 {
	ph := w.ReserveOffset(width)
	w.Defer(func(w *OffsetWriter) error {
		w.Align(align, fill)
		pos := w.Pos()
		if err := write(w); err != nil {
			return err
		}
		return w.PatchOffset(ph, pos, base, width)
	})
	return ph
}

// WriteOptionalOffset is WriteOffset, except when present reports false:
// the placeholder is left at zero (the "null pointer means absent"
// convention) and nothing is queued.
func (w *OffsetWriter) WriteOptionalOffset(width OffsetWidth, base int64, align int, fill byte, present bool, write func(w *OffsetWriter) error) int64 {
	ph := w.ReserveOffset(width)
	if !present {
		return ph
	}
	w.Defer(func(w *OffsetWriter) error {
		w.Align(align, fill)
		pos := w.Pos()
		if err := write(w); err != nil {
			return err
		}
		return w.PatchOffset(ph, pos, base, width)
	})
	return ph
}

// WriteNow writes value's payload immediately (synchronously, recursing
// its own nested offsets/flush) rather than deferring it, and returns the
// position it was written at. This is the back-referencing override from
// spec.md's "Traversal reordering": a record whose pointed-to value must
// precede it in the file (the animation-binding pattern, where the
// binding record's offset field points at an animation block that has to
// be emitted earlier in the stream) calls WriteNow for that value before
// it writes its own header, then patches its own placeholder against the
// returned position once it knows it.
func WriteNow(w *OffsetWriter, align int, fill byte, write func(w *OffsetWriter) error) (int64, error) {
	w.Align(align, fill)
	pos := w.Pos()
	if err := write(w); err != nil {
		return 0, err
	}
	if err := w.Flush(); err != nil {
		return 0, err
	}
	return pos, nil
}

// StringSection is the deduplicating, insertion-ordered shared string
// table described in spec.md 4.2: many sub-records contribute placeholders
// during the header pass; the section is flushed exactly once, writing
// each unique string one time, and every placeholder is back-patched to
// that string's position.
type StringSection struct {
	order        []string
	index        map[string]int
	placeholders []stringPlaceholder
}

type stringPlaceholder struct {
	pos   int64
	base  int64
	width OffsetWidth
	str   string
}

// NewStringSection returns an empty shared string section.
func NewStringSection() *StringSection {
	return &StringSection{index: make(map[string]int)}
}

// Add reserves a placeholder for str (deduplicated against any string
// already added) to be resolved when Flush runs.
func (s *StringSection) Add(w *OffsetWriter, str string, base int64, width OffsetWidth) {
	if _, ok := s.index[str]; !ok {
		s.index[str] = len(s.order)
		s.order = append(s.order, str)
	}
	ph := w.ReserveOffset(width)
	s.placeholders = append(s.placeholders, stringPlaceholder{pos: ph, base: base, width: width, str: str})
}

// Flush writes every unique added string once, aligned to align with the
// given fill byte before each one, then back-patches every placeholder
// added via Add against its string's position.
func (s *StringSection) Flush(w *OffsetWriter, align int, fill byte) error {
	positions := make(map[string]int64, len(s.order))
	for _, str := range s.order {
		w.Align(align, fill)
		positions[str] = w.Pos()
		w.WriteCString(str)
	}
	for _, ph := range s.placeholders {
		if err := w.PatchOffset(ph.pos, positions[ph.str], ph.base, ph.width); err != nil {
			return err
		}
	}
	return nil
}

// RelativeArrayHeader is the offset+count (or count+offset) pair used by
// relative-array fields (original_source's parse_relative_array pattern:
// mxmd.rs's Materials/Textures).
type RelativeArrayHeader struct {
	Offset uint32
	Count  uint32
}

// ReadRelativeArray32 reads a count-many array of fixed-size records at
// base+header.Offset, restoring the reader's cursor to its position
// before the call. decode is invoked once per element at the correct
// stride; it must advance r itself by exactly one element's width.
func ReadRelativeArray32[T any](r *Reader, base int64, header RelativeArrayHeader, decode func(r *Reader) (T, error)) ([]T, error) {
	saved := r.Pos()
	defer r.Seek(saved)

	if header.Count == 0 {
		return nil, nil
	}
	target := base + int64(header.Offset)
	if target < 0 || target > r.Len() {
		return nil, NewOutOfBoundsOffset(target, r.Len(), saved)
	}
	r.Seek(target)
	out := make([]T, 0, header.Count)
	for i := uint32(0); i < header.Count; i++ {
		v, err := decode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// DiscriminantBySize resolves a size-discriminated tagged union (spec.md
// 4.2: "a union field selects a variant ... by a computed size, the
// distance between two recorded file positions"), used by C8's
// AnimationBindingInner variants (60/76/120/128 bytes). sizes must be
// sorted ascending; returns the index of the matching size or
// UnknownDiscriminant.
func DiscriminantBySize(actual int64, sizes []int64) (int, error) {
	idx := sort.Search(len(sizes), func(i int) bool { return sizes[i] >= actual })
	if idx < len(sizes) && sizes[idx] == actual {
		return idx, nil
	}
	return 0, NewUnknownDiscriminant(actual, -1)
}
