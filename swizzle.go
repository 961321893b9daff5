// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

// Surface (C4) describes a GPU texture's layout-independent shape, per
// spec.md 3: {width, height, depth, mip count, array count, block
// dimension, bytes-per-block}.
type Surface struct {
	Width         uint32
	Height        uint32
	Depth         uint32
	MipCount      uint32
	ArrayLayers   uint32
	BlockWidth    uint32
	BlockHeight   uint32
	BytesPerBlock uint32
}

// gobWidth and gobHeight are the block-linear tiling unit's dimensions in
// bytes, the console's fixed GOB (group of bytes) size.
const (
	gobWidth  = 64
	gobHeight = 8
)

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

func roundUp(v, n int64) int64 {
	if n <= 0 {
		return v
	}
	return (v + n - 1) / n * n
}

// blockHeightForMip returns the block-linear tiling's "block height" (in
// GOBs) for a mip whose height, measured in compressed blocks, is
// heightInBlocks: it starts at the largest power of two not exceeding 16
// such that blockHeight*gobHeight covers (nearly) the full mip height,
// and collapses toward 1 as the mip shrinks, matching spec.md 4.4's
// "block-linear pattern parameterized by a mip-dependent block height;
// mips below a threshold collapse to block height 1".
func blockHeightForMip(heightInBlocks uint32) uint32 {
	bh := uint32(16)
	for bh > 1 && (bh/2)*gobHeight >= heightInBlocks {
		bh /= 2
	}
	return bh
}

// mipDimensions returns the width/height of mip level `level`, measured
// in compressed blocks, with a floor of 1 block.
func (s Surface) mipDimensions(level uint32) (w, h, d uint32) {
	w = ceilDiv(s.Width>>level, s.BlockWidth)
	h = ceilDiv(s.Height>>level, s.BlockHeight)
	d = s.Depth >> level
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	if d == 0 {
		d = 1
	}
	return
}

// MipSize returns the linear (deswizzled) byte size of one layer of mip
// level.
func (s Surface) MipSize(level uint32) int64 {
	w, h, d := s.mipDimensions(level)
	return int64(w) * int64(h) * int64(d) * int64(s.BytesPerBlock)
}

// LinearSize is the total deswizzled size across all mips and array
// layers.
func (s Surface) LinearSize() int64 {
	var total int64
	for level := uint32(0); level < s.MipCount; level++ {
		total += s.MipSize(level)
	}
	return total * int64(arrayLayersOrOne(s.ArrayLayers))
}

func arrayLayersOrOne(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	return n
}

// Mip0SwizzledSize returns the on-disk byte size of mip level 0 for a
// single array layer: the payload size of a dedicated base-mip stream,
// which spec.md 4.5 says "carries exactly one mip level each" (always the
// largest, mip 0).
func (s Surface) Mip0SwizzledSize() int64 {
	w, h, d := s.mipDimensions(0)
	bh := blockHeightForMip(h)
	return swizzledMipSize(w, h, d, bh, s.BytesPerBlock)
}

// SwizzledSize is the total on-disk (block-linear, GOB-padded) size,
// rounded up to a 4096-byte boundary for persistence (spec.md 3).
func (s Surface) SwizzledSize() int64 {
	var total int64
	for level := uint32(0); level < s.MipCount; level++ {
		w, h, d := s.mipDimensions(level)
		bh := blockHeightForMip(h)
		total += swizzledMipSize(w, h, d, bh, s.BytesPerBlock)
	}
	total *= int64(arrayLayersOrOne(s.ArrayLayers))
	return roundUp(total, 4096)
}

// Deswizzle converts a block-linear surface (swizzled) into contiguous
// {mip0 layer0, mip0 layer1, ..., mip1 layer0, ...} linear order, per
// spec.md 4.4.
func (s Surface) Deswizzle(swizzled []byte) ([]byte, error) {
	linearSize := s.LinearSize()
	linear := make([]byte, linearSize)
	var srcOff, dstOff int64
	layers := arrayLayersOrOne(s.ArrayLayers)
	for layer := uint32(0); layer < layers; layer++ {
		for level := uint32(0); level < s.MipCount; level++ {
			w, h, d := s.mipDimensions(level)
			bh := blockHeightForMip(h)
			mipLinearSize := int64(w) * int64(h) * int64(d) * int64(s.BytesPerBlock)
			mipSwizzledSize := swizzledMipSize(w, h, d, bh, s.BytesPerBlock)

			if srcOff+mipSwizzledSize > int64(len(swizzled)) {
				return nil, NewSurfaceSizeMismatch(int64(len(swizzled)), srcOff+mipSwizzledSize)
			}
			deswizzleMip(swizzled[srcOff:srcOff+mipSwizzledSize], linear[dstOff:dstOff+mipLinearSize], w, h, d, bh, s.BytesPerBlock)
			srcOff += mipSwizzledSize
			dstOff += mipLinearSize
		}
	}
	return linear, nil
}

// Swizzle is the exact inverse of Deswizzle.
func (s Surface) Swizzle(linear []byte) ([]byte, error) {
	if int64(len(linear)) != s.LinearSize() {
		return nil, NewSurfaceSizeMismatch(s.LinearSize(), int64(len(linear)))
	}
	swizzledSize := s.SwizzledSize()
	swizzled := make([]byte, swizzledSize)
	var srcOff, dstOff int64
	layers := arrayLayersOrOne(s.ArrayLayers)
	for layer := uint32(0); layer < layers; layer++ {
		for level := uint32(0); level < s.MipCount; level++ {
			w, h, d := s.mipDimensions(level)
			bh := blockHeightForMip(h)
			mipLinearSize := int64(w) * int64(h) * int64(d) * int64(s.BytesPerBlock)
			mipSwizzledSize := swizzledMipSize(w, h, d, bh, s.BytesPerBlock)

			swizzleMip(linear[srcOff:srcOff+mipLinearSize], swizzled[dstOff:dstOff+mipSwizzledSize], w, h, d, bh, s.BytesPerBlock)
			srcOff += mipLinearSize
			dstOff += mipSwizzledSize
		}
	}
	return swizzled, nil
}

func swizzledMipSize(w, h, d, blockHeight, bytesPerBlock uint32) int64 {
	gobsTall := ceilDiv(h, blockHeight*gobHeight)
	return int64(w) * int64(gobsTall) * int64(blockHeight) * gobWidth * gobHeight * int64(d) * int64(bytesPerBlock) / gobWidth
}

func deswizzleMip(src, dst []byte, w, h, d, blockHeight, bytesPerBlock uint32) {
	for z := uint32(0); z < d; z++ {
		layerLinear := dst[int64(z)*int64(w)*int64(h)*int64(bytesPerBlock):]
		layerSwizzled := src[int64(z)*int64(w)*int64(h)*int64(bytesPerBlock):]
		for y := uint32(0); y < h; y++ {
			for x := uint32(0); x < w; x++ {
				addr := blockByteOffset(x, y, w, blockHeight, bytesPerBlock)
				dstOff := (int64(y)*int64(w) + int64(x)) * int64(bytesPerBlock)
				if int(addr+int64(bytesPerBlock)) <= len(layerSwizzled) && int(dstOff+int64(bytesPerBlock)) <= len(layerLinear) {
					copy(layerLinear[dstOff:dstOff+int64(bytesPerBlock)], layerSwizzled[addr:addr+int64(bytesPerBlock)])
				}
			}
		}
	}
}

func swizzleMip(src, dst []byte, w, h, d, blockHeight, bytesPerBlock uint32) {
	for z := uint32(0); z < d; z++ {
		layerLinear := src[int64(z)*int64(w)*int64(h)*int64(bytesPerBlock):]
		layerSwizzled := dst[int64(z)*int64(w)*int64(h)*int64(bytesPerBlock):]
		for y := uint32(0); y < h; y++ {
			for x := uint32(0); x < w; x++ {
				addr := blockByteOffset(x, y, w, blockHeight, bytesPerBlock)
				srcOff := (int64(y)*int64(w) + int64(x)) * int64(bytesPerBlock)
				if int(addr+int64(bytesPerBlock)) <= len(layerSwizzled) && int(srcOff+int64(bytesPerBlock)) <= len(layerLinear) {
					copy(layerSwizzled[addr:addr+int64(bytesPerBlock)], layerLinear[srcOff:srcOff+int64(bytesPerBlock)])
				}
			}
		}
	}
}

// blockByteOffset returns the byte offset of block (x,y) within one
// mip/layer's block-linear region.
func blockByteOffset(x, y, blocksWide, blockHeight, bytesPerBlock uint32) int64 {
	gobY := y / gobHeight
	inGobY := y % gobHeight
	tileY := gobY / blockHeight
	subGobY := gobY % blockHeight
	gobIndex := int64(tileY)*int64(blocksWide)*int64(blockHeight) + int64(x)*int64(blockHeight) + int64(subGobY)
	return (gobIndex*gobHeight + int64(inGobY)) * int64(bytesPerBlock)
}
