// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package shaderdb

import "testing"

func TestDependencyKeyStableAndDistinguishing(t *testing.T) {
	a := Dependency{Kind: DependencyBuffer, Buffer: BufferDependency{Name: "U_Mate", Field: "gWrkCol", Index: 0, HasIndex: true, Channels: "xyz"}}
	b := Dependency{Kind: DependencyBuffer, Buffer: BufferDependency{Name: "U_Mate", Field: "gWrkCol", Index: 0, HasIndex: true, Channels: "xyz"}}
	c := Dependency{Kind: DependencyBuffer, Buffer: BufferDependency{Name: "U_Mate", Field: "gWrkCol", Index: 1, HasIndex: true, Channels: "xyz"}}

	if a.Key() != b.Key() {
		t.Fatalf("identical dependencies produced different keys: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() == c.Key() {
		t.Fatalf("dependencies differing only by index produced the same key: %q", a.Key())
	}
}

func TestDependencyKeyHasIndexMatters(t *testing.T) {
	withIndex := BufferDependency{Name: "b", HasIndex: true, Index: 0}
	withoutIndex := BufferDependency{Name: "b", HasIndex: false}
	if withIndex.key() == withoutIndex.key() {
		t.Fatal("index-0 and no-index keys collided")
	}
}

func TestShaderProgramAddOutputPreservesOrder(t *testing.T) {
	var p ShaderProgram
	p.AddOutput("o1.x", OutputDependencies{})
	p.AddOutput("o0.x", OutputDependencies{})
	p.AddOutput("o1.x", OutputDependencies{Dependencies: []Dependency{{Kind: DependencyConstant, Constant: 5}}})

	if len(p.OutputNames) != 2 {
		t.Fatalf("len(OutputNames) = %d, want 2 (re-adding o1.x must not duplicate)", len(p.OutputNames))
	}
	if p.OutputNames[0] != "o1.x" || p.OutputNames[1] != "o0.x" {
		t.Fatalf("OutputNames = %v, want first-seen order [o1.x o0.x]", p.OutputNames)
	}
	if len(p.OutputDependencies["o1.x"].Dependencies) != 1 {
		t.Fatal("re-adding o1.x did not overwrite its dependency set")
	}
}

func TestTexCoordKeyWithTransform(t *testing.T) {
	plain := TexCoord{Name: "vTex0", Channels: "xy"}
	scaled := TexCoord{Name: "vTex0", Channels: "xy", Params: &TexCoordParams{Kind: TexCoordParamsScale, Scale: BufferDependency{Name: "gTexScale"}}}
	if plain.key() == scaled.key() {
		t.Fatal("transformed and untransformed texcoords produced the same key")
	}
}
