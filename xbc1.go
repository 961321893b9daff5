// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

import (
	"bytes"
	"compress/flate"
	"hash/crc32"
	"io"
)

// xbc1FrameHeaderSize is the fixed header size from spec.md 6: magic(4),
// mode(4), decompressed_size(4), compressed_size(4), unknown(4), padding
// to 28, name(28).
const (
	xbc1FrameHeaderSize = 28
	xbc1NameSize        = 28
	xbc1Alignment       = 16
)

// Xbc1Frame is the C3 block codec's in-memory representation of one
// "xbc1" frame: a DEFLATE-compressed payload wrapped in a small fixed
// header. See SPEC_FULL.md 5 for why there is no stored hash field on
// disk despite spec.md's data-model description mentioning one.
type Xbc1Frame struct {
	Mode             uint32
	DecompressedSize uint32
	Name             string
	Compressed       []byte
}

// Hash derives the content fingerprint spec.md 3 describes ("a 32-bit
// hash ... computed over the compressed bytes with a fixed polynomial").
// It is never stored on disk; callers that want a dedup/cache key for a
// frame (for example, the external chr-texture naming convention) compute
// it on demand.
func (f *Xbc1Frame) Hash() uint32 {
	return crc32.Checksum(f.Compressed, crc32.IEEETable)
}

// Decompress inflates the frame's payload and validates it against the
// declared decompressed size.
func (f *Xbc1Frame) Decompress() ([]byte, error) {
	zr := flate.NewReader(bytes.NewReader(f.Compressed))
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, NewDeflateError(err, -1)
	}
	if uint32(len(out)) != f.DecompressedSize {
		return nil, NewSizeMismatch(int64(f.DecompressedSize), int64(len(out)), -1)
	}
	return out, nil
}

// CompressXbc1 builds a frame from a plain payload, named name (truncated
// to 28 bytes), using the stdlib flate implementation at its default
// compression level so output is deterministic for identical inputs.
func CompressXbc1(name string, payload []byte) (*Xbc1Frame, error) {
	var buf bytes.Buffer
	zw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, NewDeflateError(err, -1)
	}
	if _, err := zw.Write(payload); err != nil {
		return nil, NewDeflateError(err, -1)
	}
	if err := zw.Close(); err != nil {
		return nil, NewDeflateError(err, -1)
	}
	return &Xbc1Frame{
		Mode:             0,
		DecompressedSize: uint32(len(payload)),
		Name:             name,
		Compressed:       buf.Bytes(),
	}, nil
}

// ParseXbc1 reads one frame starting at the reader's current position.
func ParseXbc1(r *Reader) (*Xbc1Frame, error) {
	start := r.Pos()
	if err := r.ReadMagic("xbc1"); err != nil {
		return nil, err
	}
	mode, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	decompSize, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	compSize, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if _, err := r.ReadU32(); err != nil { // unknown
		return nil, err
	}
	r.Seek(start + xbc1FrameHeaderSize)
	name, err := r.ReadFixedString(xbc1NameSize)
	if err != nil {
		return nil, err
	}
	compressed, err := r.ReadBytes(int(compSize))
	if err != nil {
		return nil, err
	}
	return &Xbc1Frame{
		Mode:             mode,
		DecompressedSize: decompSize,
		Name:             name,
		Compressed:       compressed,
	}, nil
}

// Write emits the frame's on-disk byte layout: header, compressed bytes,
// zero-padded to a 16-byte boundary.
func (f *Xbc1Frame) Write(w *ByteWriter) {
	start := w.Pos()
	w.WriteMagic("xbc1")
	w.WriteU32(f.Mode)
	w.WriteU32(f.DecompressedSize)
	w.WriteU32(uint32(len(f.Compressed)))
	w.WriteU32(0) // unknown
	w.PadTo(start+xbc1FrameHeaderSize, 0)
	w.WriteFixedString(f.Name, xbc1NameSize)
	w.WriteRaw(f.Compressed)
	w.Align(xbc1Alignment, 0)
}

// ReadXbc1At reads one frame at an absolute offset in source, restoring
// nothing (callers that need the cursor preserved should save/restore it
// themselves, matching the C1 Reader's general contract).
func ReadXbc1At(source []byte, offset int64) (*Xbc1Frame, error) {
	r := NewReader(source)
	r.Seek(offset)
	return ParseXbc1(r)
}

// DecompressXbc1FromBytes parses and fully decompresses a frame found at
// offset 0 of source, the "read from bytes" convenience named in
// spec.md 4.3.
func DecompressXbc1FromBytes(source []byte) ([]byte, error) {
	frame, err := ReadXbc1At(source, 0)
	if err != nil {
		return nil, err
	}
	return frame.Decompress()
}
