// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package shaderdb

import "testing"

// Shader-database round-trip, spec.md 8 scenario 6: a model with one
// program whose o0.x depends on texture "s0" channel x at texcoord
// vTex0.xy must round-trip with identical name, channel and texcoord.
func TestDatabaseRoundTrip(t *testing.T) {
	db := NewDatabase(1, 6)

	dep := Dependency{
		Kind: DependencyTexture,
		Texture: TextureDependency{
			Name:     "s0",
			Channels: "x",
			TexCoords: []TexCoord{
				{Name: "vTex0", Channels: "xy"},
			},
		},
	}
	program := ShaderProgram{}
	program.AddOutput("o0.x", OutputDependencies{Dependencies: []Dependency{dep}})
	db.AddModel("ch01012000", ModelPrograms{Programs: []ShaderProgram{program}})

	data, err := db.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.MajorVersion != 1 || got.MinorVersion != 6 {
		t.Fatalf("version = %d.%d, want 1.6", got.MajorVersion, got.MinorVersion)
	}

	mp, ok := got.Models["ch01012000"]
	if !ok {
		t.Fatal("model \"ch01012000\" missing after round trip")
	}
	if len(mp.Programs) != 1 {
		t.Fatalf("len(Programs) = %d, want 1", len(mp.Programs))
	}
	p := mp.Programs[0]
	od, ok := p.OutputDependencies["o0.x"]
	if !ok {
		t.Fatal("output \"o0.x\" missing after round trip")
	}
	if len(od.Dependencies) != 1 {
		t.Fatalf("len(Dependencies) = %d, want 1", len(od.Dependencies))
	}
	got0 := od.Dependencies[0]
	if got0.Kind != DependencyTexture {
		t.Fatalf("Kind = %v, want DependencyTexture", got0.Kind)
	}
	if got0.Texture.Name != "s0" || got0.Texture.Channels != "x" {
		t.Fatalf("Texture = %+v, want name s0 channel x", got0.Texture)
	}
	if len(got0.Texture.TexCoords) != 1 || got0.Texture.TexCoords[0].Name != "vTex0" || got0.Texture.TexCoords[0].Channels != "xy" {
		t.Fatalf("TexCoords = %+v, want [{vTex0 xy}]", got0.Texture.TexCoords)
	}
}

func TestDatabaseDedupesSharedDependencies(t *testing.T) {
	db := NewDatabase(1, 0)
	dep := Dependency{Kind: DependencyBuffer, Buffer: BufferDependency{Name: "U_Mate", Field: "gWrkCol", Channels: "x"}}

	p1 := ShaderProgram{}
	p1.AddOutput("o0.x", OutputDependencies{Dependencies: []Dependency{dep}})
	p2 := ShaderProgram{}
	p2.AddOutput("o0.y", OutputDependencies{Dependencies: []Dependency{dep}})
	db.AddModel("m", ModelPrograms{Programs: []ShaderProgram{p1, p2}})

	data, err := db.Write()
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mp := got.Models["m"]
	d0 := mp.Programs[0].OutputDependencies["o0.x"].Dependencies[0]
	d1 := mp.Programs[1].OutputDependencies["o0.y"].Dependencies[0]
	if d0.Key() != d1.Key() {
		t.Fatalf("shared dependency did not round-trip identically: %+v vs %+v", d0, d1)
	}
}

func TestDatabaseBadMagic(t *testing.T) {
	if _, err := Parse([]byte("NOPE")); err == nil {
		t.Fatal("expected BadMagic, got nil")
	}
}

func TestDependencyKeyDistinguishesKinds(t *testing.T) {
	a := Dependency{Kind: DependencyConstant, Constant: 1}
	b := Dependency{Kind: DependencyBuffer, Buffer: BufferDependency{Name: "x"}}
	if a.Key() == b.Key() {
		t.Fatal("Key() collided across dependency kinds")
	}
}
