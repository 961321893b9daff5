// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

import "testing"

func buildMinimalMxmd(t *testing.T) []byte {
	t.Helper()
	w := NewByteWriter()
	w.WriteMagic("MXMD")
	w.WriteU32(10040) // version
	w.WriteU32(0)     // MeshOffset
	w.WriteU32(0)     // materials offset (unused, Count == 0 short-circuits)
	w.WriteU32(0)     // materials count
	return w.Bytes()
}

func TestOpenBytesAndClose(t *testing.T) {
	mxmdData := buildMinimalMxmd(t)
	drsmData := buildDrsmContainer(t, []byte("VERTEX"), []byte("SHADER"), []byte("LOWTEX"), []byte("MIDTEX"))

	c, err := OpenBytes(mxmdData, drsmData, nil)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	if c.Mxmd == nil || c.Drsm == nil {
		t.Fatal("Container did not attach a parsed Mxmd/Drsm")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close (no backing files): %v", err)
	}
}

func TestContainerChrTextureRequiresExternalRoot(t *testing.T) {
	mxmdData := buildMinimalMxmd(t)
	drsmData := buildDrsmContainer(t, []byte("V"), []byte("S"), []byte("L"), []byte("M"))

	c, err := OpenBytes(mxmdData, drsmData, &Options{})
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	if _, err := c.ChrTexture(123); err == nil {
		t.Fatal("expected an error with no ExternalTextureRoot set, got nil")
	}
}

func TestContainerLoadSkeletonMissingEntryWarnsNotFails(t *testing.T) {
	mxmdData := buildMinimalMxmd(t)
	drsmData := buildDrsmContainer(t, []byte("V"), []byte("S"), []byte("L"), []byte("M"))
	c, err := OpenBytes(mxmdData, drsmData, nil)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}

	w := NewByteWriter()
	w.WriteMagic("1RAS")
	w.WriteU32(1) // version
	w.WriteU32(0) // entry count
	w.WriteU32(0) // unknown
	sarData := w.Bytes()

	if err := c.LoadSkeleton(sarData); err != nil {
		t.Fatalf("LoadSkeleton with no SKEL entry should not fail: %v", err)
	}
	if c.Skeleton != nil {
		t.Fatalf("Skeleton = %+v, want nil", c.Skeleton)
	}
}
