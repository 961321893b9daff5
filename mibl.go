// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

// ImageFormat is the on-disk pixel-format tag from the Mibl/Lbim texture
// footer, grounded on original_source/src/lbim.rs's ImageFormat enum.
type ImageFormat uint32

const (
	ImageFormatR8Unorm         ImageFormat = 1
	ImageFormatR8G8B8A8Unorm   ImageFormat = 37
	ImageFormatR16G16B16A16Unorm ImageFormat = 41
	ImageFormatBc1Unorm        ImageFormat = 66
	ImageFormatBc3Unorm        ImageFormat = 68
	ImageFormatBc4Unorm        ImageFormat = 73
	ImageFormatBc5Unorm        ImageFormat = 75
	ImageFormatBc7Unorm        ImageFormat = 77
)

// BlockDim returns the format's compressed-block width/height.
func (f ImageFormat) BlockDim() (width, height uint32) {
	switch f {
	case ImageFormatBc1Unorm, ImageFormatBc3Unorm, ImageFormatBc4Unorm, ImageFormatBc5Unorm, ImageFormatBc7Unorm:
		return 4, 4
	default:
		return 1, 1
	}
}

// BytesPerBlock returns the byte size of one compressed block (or one
// texel, for uncompressed formats).
func (f ImageFormat) BytesPerBlock() uint32 {
	switch f {
	case ImageFormatR8Unorm:
		return 1
	case ImageFormatR8G8B8A8Unorm:
		return 4
	case ImageFormatR16G16B16A16Unorm:
		return 8
	case ImageFormatBc1Unorm, ImageFormatBc4Unorm:
		return 8
	case ImageFormatBc3Unorm, ImageFormatBc5Unorm, ImageFormatBc7Unorm:
		return 16
	default:
		return 0
	}
}

// ViewDimension is the Mibl footer's texture-kind tag.
type ViewDimension uint32

const (
	ViewDimensionD2   ViewDimension = 1
	ViewDimensionD3   ViewDimension = 2
	ViewDimensionCube ViewDimension = 8
)

// MiblFooterSize is the fixed 40-byte trailer at the end of a Mibl/Lbim
// texture file (spec.md 6).
const MiblFooterSize = 40

// MiblFooter is the texture container's trailing metadata block.
type MiblFooter struct {
	ImageSize     uint32
	Unknown       uint32
	Width         uint32
	Height        uint32
	Depth         uint32
	ViewDimension ViewDimension
	ImageFormat   ImageFormat
	MipmapCount   uint32
	Version       uint32
}

// ParseMiblFooter reads the 40-byte footer ending at the end of data.
func ParseMiblFooter(data []byte) (*MiblFooter, error) {
	if len(data) < MiblFooterSize {
		return nil, NewShortRead(MiblFooterSize, len(data), 0)
	}
	r := NewReader(data)
	r.Seek(int64(len(data)) - MiblFooterSize)

	footer := &MiblFooter{}
	var err error
	if footer.ImageSize, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if footer.Unknown, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if footer.Width, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if footer.Height, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if footer.Depth, err = r.ReadU32(); err != nil {
		return nil, err
	}
	view, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	footer.ViewDimension = ViewDimension(view)
	format, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	footer.ImageFormat = ImageFormat(format)
	if footer.MipmapCount, err = r.ReadU32(); err != nil {
		return nil, err
	}
	if footer.Version, err = r.ReadU32(); err != nil {
		return nil, err
	}
	magicPos := r.Pos()
	magic, err := r.ReadFixedString(4)
	if err != nil {
		return nil, err
	}
	if magic != "LBIM" && magic != "MIBL" {
		return nil, NewBadMagic("LBIM\" or \"MIBL", magic, magicPos)
	}
	return footer, nil
}

// Surface returns the Surface (C4) description implied by this footer,
// ready to pass to Deswizzle against the file's leading image_size bytes.
func (f *MiblFooter) Surface() Surface {
	bw, bh := f.ImageFormat.BlockDim()
	arrayLayers := uint32(1)
	if f.ViewDimension == ViewDimensionCube {
		arrayLayers = 6
	}
	return Surface{
		Width:         f.Width,
		Height:        f.Height,
		Depth:         f.Depth,
		MipCount:      f.MipmapCount,
		ArrayLayers:   arrayLayers,
		BlockWidth:    bw,
		BlockHeight:   bh,
		BytesPerBlock: f.ImageFormat.BytesPerBlock(),
	}
}

// Write appends the 40-byte footer.
func (f *MiblFooter) Write(w *ByteWriter) {
	w.WriteU32(f.ImageSize)
	w.WriteU32(f.Unknown)
	w.WriteU32(f.Width)
	w.WriteU32(f.Height)
	w.WriteU32(f.Depth)
	w.WriteU32(uint32(f.ViewDimension))
	w.WriteU32(uint32(f.ImageFormat))
	w.WriteU32(f.MipmapCount)
	w.WriteU32(f.Version)
	w.WriteMagic("LBIM")
}

// MiblTexture is a full parsed texture container: the swizzled image
// bytes plus its footer.
type MiblTexture struct {
	Footer *MiblFooter
	Image  []byte // swizzled bytes, length == Footer.ImageSize
}

// ParseMiblTexture parses a whole Mibl/Lbim file.
func ParseMiblTexture(data []byte) (*MiblTexture, error) {
	footer, err := ParseMiblFooter(data)
	if err != nil {
		return nil, err
	}
	if int64(footer.ImageSize) > int64(len(data))-MiblFooterSize {
		return nil, NewSizeMismatch(int64(footer.ImageSize), int64(len(data))-MiblFooterSize, 0)
	}
	return &MiblTexture{
		Footer: footer,
		Image:  data[:footer.ImageSize],
	}, nil
}

// Deswizzled decodes the texture's swizzled image into linear surface
// order.
func (t *MiblTexture) Deswizzled() ([]byte, error) {
	return t.Footer.Surface().Deswizzle(t.Image)
}

// Write re-emits the full Mibl/Lbim byte layout (image bytes then footer).
func (t *MiblTexture) Write(w *ByteWriter) {
	w.WriteRaw(t.Image)
	t.Footer.Write(w)
}

// WithBaseMip returns a copy of t with its swizzled mip level 0 (layer 0)
// replaced by base, the one-mip-level payload a dedicated base-mip stream
// carries (spec.md 4.5). It mirrors original_source's
// ExtractedTexture::mibl_final quality fallback (low < high/mid <
// high+base_mip): callers combine a texture's mid-resolution Mibl with its
// base-mip bytes this way once both have been extracted.
func (t *MiblTexture) WithBaseMip(base []byte) (*MiblTexture, error) {
	mip0Size := t.Footer.Surface().Mip0SwizzledSize()
	if int64(len(base)) != mip0Size {
		return nil, NewSurfaceSizeMismatch(mip0Size, int64(len(base)))
	}
	if int64(len(t.Image)) < mip0Size {
		return nil, NewSurfaceSizeMismatch(mip0Size, int64(len(t.Image)))
	}
	image := make([]byte, len(t.Image))
	copy(image, t.Image)
	copy(image, base)
	footer := *t.Footer
	return &MiblTexture{Footer: &footer, Image: image}, nil
}
