// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package shaderdb

import "testing"

func attrExpr(name, channels string) *Expr {
	return &Expr{Kind: ExprGlobal, Global: AttributeDependency{Name: name, Channels: channels}}
}

func paramExpr(name, field string) *Expr {
	return &Expr{Kind: ExprParameter, Param: BufferDependency{Name: name, Field: field}}
}

func TestScaleParameterBothOperandOrders(t *testing.T) {
	attr := attrExpr("vTex0", "xy")
	param := paramExpr("U_Mate", "gTexScale")

	e1 := &Expr{Kind: ExprMul, A: attr, B: param}
	a, b, ok := ScaleParameter(e1)
	if !ok || a != attr.Global || b != param.Param {
		t.Fatalf("ScaleParameter(attr*param) = %v, %v, %v", a, b, ok)
	}

	e2 := &Expr{Kind: ExprMul, A: param, B: attr}
	a, b, ok = ScaleParameter(e2)
	if !ok || a != attr.Global || b != param.Param {
		t.Fatalf("ScaleParameter(param*attr) = %v, %v, %v", a, b, ok)
	}
}

func TestScaleParameterRejectsNonMatch(t *testing.T) {
	e := &Expr{Kind: ExprAdd, A: attrExpr("a", "x"), B: paramExpr("b", "y")}
	if _, _, ok := ScaleParameter(e); ok {
		t.Fatal("ScaleParameter matched a non-Mul node")
	}
	e2 := &Expr{Kind: ExprMul, A: attrExpr("a", "x"), B: attrExpr("b", "y")}
	if _, _, ok := ScaleParameter(e2); ok {
		t.Fatal("ScaleParameter matched attribute*attribute")
	}
}

func TestTexMatrix(t *testing.T) {
	attr := attrExpr("vPos", "xyz")
	row := [4]*Expr{
		paramExpr("gTexMat", "row0"),
		paramExpr("gTexMat", "row1"),
		paramExpr("gTexMat", "row2"),
		paramExpr("gTexMat", "row3"),
	}
	a, cols, ok := TexMatrix(attr, row)
	if !ok {
		t.Fatal("TexMatrix did not match a well-formed candidate")
	}
	if a != attr.Global {
		t.Fatalf("attribute = %+v, want %+v", a, attr.Global)
	}
	for i, c := range cols {
		if c != row[i].Param {
			t.Fatalf("cols[%d] = %+v, want %+v", i, c, row[i].Param)
		}
	}
}

func TestTexMatrixRejectsNonBufferColumn(t *testing.T) {
	attr := attrExpr("vPos", "xyz")
	row := [4]*Expr{paramExpr("m", "r0"), paramExpr("m", "r1"), paramExpr("m", "r2"), attrExpr("not", "a param")}
	if _, _, ok := TexMatrix(attr, row); ok {
		t.Fatal("TexMatrix matched a row containing a non-buffer column")
	}
}

func TestNormalReconstructionZ(t *testing.T) {
	tex := &Expr{Kind: ExprTexture, TextureName: "s2", TextureChannels: "x"}
	fma := &Expr{
		Kind: ExprFma,
		A:    tex,
		B:    &Expr{Kind: ExprConstant, Constant: 2.0},
		C:    &Expr{Kind: ExprConstant, Constant: -1.0},
	}
	td, ok := NormalReconstructionZ(fma)
	if !ok {
		t.Fatal("NormalReconstructionZ did not match fma(tex, 2, -1)")
	}
	if td.Name != "s2" || td.Channels != "x" {
		t.Fatalf("td = %+v, want name s2 channel x", td)
	}
}

func TestNormalReconstructionZRejectsWrongConstants(t *testing.T) {
	tex := &Expr{Kind: ExprTexture, TextureName: "s2", TextureChannels: "x"}
	fma := &Expr{Kind: ExprFma, A: tex, B: &Expr{Kind: ExprConstant, Constant: 3.0}, C: &Expr{Kind: ExprConstant, Constant: -1.0}}
	if _, ok := NormalReconstructionZ(fma); ok {
		t.Fatal("NormalReconstructionZ matched fma with a wrong scale constant")
	}
}

func TestBlendLayer(t *testing.T) {
	toDep := func(e *Expr) (Dependency, bool) {
		if e == nil || e.Kind != ExprTexture {
			return Dependency{}, false
		}
		return Dependency{Kind: DependencyTexture, Texture: TextureDependency{Name: e.TextureName, Channels: e.TextureChannels}}, true
	}
	value := &Expr{Kind: ExprTexture, TextureName: "s0", TextureChannels: "rgb"}
	ratio := &Expr{Kind: ExprTexture, TextureName: "s1", TextureChannels: "x"}

	layer, ok := BlendLayer(value, ratio, BlendOverlay, true, toDep)
	if !ok {
		t.Fatal("BlendLayer failed to resolve a valid value/ratio pair")
	}
	if layer.Value.Texture.Name != "s0" || layer.BlendMode != BlendOverlay || !layer.IsFresnel {
		t.Fatalf("layer = %+v", layer)
	}
	if layer.Ratio == nil || layer.Ratio.Texture.Name != "s1" {
		t.Fatalf("layer.Ratio = %+v, want s1", layer.Ratio)
	}
}

func TestBlendLayerNilRatio(t *testing.T) {
	toDep := func(e *Expr) (Dependency, bool) {
		return Dependency{Kind: DependencyConstant, Constant: e.Constant}, true
	}
	value := &Expr{Kind: ExprConstant, Constant: 1}
	layer, ok := BlendLayer(value, nil, BlendMix, false, toDep)
	if !ok || layer.Ratio != nil {
		t.Fatalf("layer = %+v, ok = %v, want Ratio == nil", layer, ok)
	}
}
