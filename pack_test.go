// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

import (
	"bytes"
	"fmt"
	"testing"
)

func TestStreamEntryKindString(t *testing.T) {
	tests := map[StreamEntryKind]string{
		StreamEntryVertex:     "Vertex",
		StreamEntryShader:     "Shader",
		StreamEntryLowTexture: "LowTexture",
		StreamEntryTexture:    "Texture",
		StreamEntryKind(99):   "StreamEntryKind(99)",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("StreamEntryKind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

// TestPackModernWithMidAndBaseMip exercises the full packing path: a
// texture with both a mid-resolution stream and a dedicated base-mip
// stream gets its own frame and a populated BaseMipStreamIndex.
func TestPackModernWithMidAndBaseMip(t *testing.T) {
	vertex := []byte("VTX")
	shader := []byte("SHD")
	low := [][]byte{[]byte("LOW0")}
	textures := []PackedTexture{
		{Name: "tex0", Low: low[0], Mid: []byte("MID-RES-BYTES"), BaseMip: []byte("BASE-MIP-BYTES")},
	}

	frames, items, infos, midTextureIDs, err := PackModern(vertex, shader, low, textures, PackOptions{})
	if err != nil {
		t.Fatalf("PackModern: %v", err)
	}
	// stream0 frame + stream1 (mid) frame + 1 base-mip frame.
	if len(frames) != 3 {
		t.Fatalf("len(frames) = %d, want 3", len(frames))
	}
	if len(items) != 4 {
		t.Fatalf("len(items) = %d, want 4 (vertex, shader, lowtex, stream1)", len(items))
	}
	if len(infos) != 1 || infos[0].Name != "tex0" {
		t.Fatalf("infos = %+v", infos)
	}
	if infos[0].Size != uint32(len("LOW0")) {
		t.Fatalf("infos[0].Size = %d, want low-mip length", infos[0].Size)
	}
	if infos[0].BaseMipStreamIndex == 0 {
		t.Fatal("BaseMipStreamIndex = 0, want the base-mip frame's index")
	}
	if len(midTextureIDs) != 1 || midTextureIDs[0] != 0 {
		t.Fatalf("midTextureIDs = %v, want [0]", midTextureIDs)
	}

	var midItem DataItem
	found := false
	for _, item := range items {
		if item.Kind == StreamEntryTexture {
			midItem = item
			found = true
		}
	}
	if !found {
		t.Fatal("no Texture-kind DataItem among items")
	}
	midFrame := frames[midItem.StreamIndex]
	midDecompressed, err := midFrame.Decompress()
	if err != nil {
		t.Fatalf("Decompress mid frame: %v", err)
	}
	midBytes := midDecompressed[midItem.Offset : int64(midItem.Offset)+int64(midItem.Size)]
	if !bytes.Equal(midBytes, []byte("MID-RES-BYTES")) {
		t.Fatalf("mid contents = %q, want %q", midBytes, "MID-RES-BYTES")
	}

	baseFrame := frames[infos[0].BaseMipStreamIndex-1]
	decompressed, err := baseFrame.Decompress()
	if err != nil {
		t.Fatalf("Decompress base-mip frame: %v", err)
	}
	if !bytes.Equal(decompressed, []byte("BASE-MIP-BYTES")) {
		t.Fatalf("base-mip contents = %q, want %q", decompressed, "BASE-MIP-BYTES")
	}
}

func TestPackModernExternalChrTexturesOmitsMidAndBase(t *testing.T) {
	textures := []PackedTexture{{Name: "tex0", Mid: []byte("MID"), BaseMip: []byte("BASE")}}
	frames, _, infos, midTextureIDs, err := PackModern([]byte("V"), []byte("S"), nil, textures, PackOptions{ExternalChrTextures: true})
	if err != nil {
		t.Fatalf("PackModern: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1 (stream0 only)", len(frames))
	}
	if infos[0].BaseMipStreamIndex != 0 {
		t.Fatalf("BaseMipStreamIndex = %d, want 0 when ExternalChrTextures", infos[0].BaseMipStreamIndex)
	}
	if len(midTextureIDs) != 0 {
		t.Fatalf("midTextureIDs = %v, want empty when ExternalChrTextures", midTextureIDs)
	}
}

// TestExtractChrTexture exercises the sibling mid/base-mip file convention
// (spec.md 6) with an in-memory readFile stub instead of touching disk.
func TestExtractChrTexture(t *testing.T) {
	mid, err := CompressXbc1("mid", []byte("MID-PAYLOAD"))
	if err != nil {
		t.Fatalf("CompressXbc1 mid: %v", err)
	}
	base, err := CompressXbc1("base", []byte("BASE-PAYLOAD"))
	if err != nil {
		t.Fatalf("CompressXbc1 base: %v", err)
	}
	midW := NewByteWriter()
	mid.Write(midW)
	baseW := NewByteWriter()
	base.Write(baseW)

	files := map[string][]byte{
		"root/m/000000ff.wismt": midW.Bytes(),
		"root/h/000000ff.wismt": baseW.Bytes(),
	}
	readFile := func(path string) ([]byte, error) {
		data, ok := files[path]
		if !ok {
			return nil, fmt.Errorf("no such file: %s", path)
		}
		return data, nil
	}

	streams, err := ExtractChrTexture(readFile, "root", 0xff)
	if err != nil {
		t.Fatalf("ExtractChrTexture: %v", err)
	}
	midOut, err := streams.Mid.Decompress()
	if err != nil {
		t.Fatalf("Mid.Decompress: %v", err)
	}
	if !bytes.Equal(midOut, []byte("MID-PAYLOAD")) {
		t.Fatalf("Mid payload = %q, want MID-PAYLOAD", midOut)
	}
	baseOut, err := streams.BaseMip.Decompress()
	if err != nil {
		t.Fatalf("BaseMip.Decompress: %v", err)
	}
	if !bytes.Equal(baseOut, []byte("BASE-PAYLOAD")) {
		t.Fatalf("BaseMip payload = %q, want BASE-PAYLOAD", baseOut)
	}
}

func TestExtractChrTextureMissingFile(t *testing.T) {
	readFile := func(path string) ([]byte, error) { return nil, fmt.Errorf("not found") }
	if _, err := ExtractChrTexture(readFile, "root", 1); err == nil {
		t.Fatal("expected an error, got nil")
	} else if xerr, ok := err.(*Error); !ok || xerr.Kind != IoError {
		t.Fatalf("err = %v, want IoError", err)
	}
}
