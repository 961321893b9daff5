// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package shaderdb

// ExprKind tags a node of the small expression graph a shader-IR front
// end would hand this package, grounded on
// original_source/xc3_shader/src/dependencies.rs's Expr enum (Constant,
// Parameter, Global, function-call nodes). The declarative GLSL
// query-string matching original_source uses to locate these shapes
// inside a full translation unit is out of scope here: the functions
// below perform the same validating extraction the original applies once
// a candidate match's sub-expressions are already in hand.
type ExprKind int

const (
	ExprConstant ExprKind = iota
	ExprParameter
	ExprGlobal
	ExprTexture
	ExprAdd
	ExprMul
	ExprFma // A*B + C
	ExprNeg
)

// Expr is one node of that graph. Only the fields relevant to Kind are
// populated.
type Expr struct {
	Kind ExprKind

	Constant float32

	Param  BufferDependency
	Global AttributeDependency

	TextureName     string
	TextureChannels string
	TexCoordArgs    []*Expr

	A, B, C *Expr
}

// BufferDependencyOf extracts e's BufferDependency if e is a Parameter
// read, mirroring dependencies.rs's buffer_dependency.
func BufferDependencyOf(e *Expr) (BufferDependency, bool) {
	if e == nil || e.Kind != ExprParameter {
		return BufferDependency{}, false
	}
	return e.Param, true
}

// AttributeDependencyOf extracts e's AttributeDependency if e is a Global
// (vertex-attribute) read.
func AttributeDependencyOf(e *Expr) (AttributeDependency, bool) {
	if e == nil || e.Kind != ExprGlobal {
		return AttributeDependency{}, false
	}
	return e.Global, true
}

// TextureDependencyOf extracts e's TextureDependency if e is a texture
// sample, resolving each UV argument's own dependency chain via
// texCoordOf.
func TextureDependencyOf(e *Expr, texCoordOf func(arg *Expr) (TexCoord, bool)) (TextureDependency, bool) {
	if e == nil || e.Kind != ExprTexture {
		return TextureDependency{}, false
	}
	td := TextureDependency{Name: e.TextureName, Channels: e.TextureChannels}
	for _, arg := range e.TexCoordArgs {
		if tc, ok := texCoordOf(arg); ok {
			td.TexCoords = append(td.TexCoords, tc)
		}
	}
	return td, true
}

// ScaleParameter matches "attribute * buffer_parameter" in either operand
// order (dependencies.rs's scale_parameter), the pattern behind a UV scale
// transform.
func ScaleParameter(e *Expr) (AttributeDependency, BufferDependency, bool) {
	if e == nil || e.Kind != ExprMul {
		return AttributeDependency{}, BufferDependency{}, false
	}
	if a, ok := AttributeDependencyOf(e.A); ok {
		if b, ok2 := BufferDependencyOf(e.B); ok2 {
			return a, b, true
		}
	}
	if a, ok := AttributeDependencyOf(e.B); ok {
		if b, ok2 := BufferDependencyOf(e.A); ok2 {
			return a, b, true
		}
	}
	return AttributeDependency{}, BufferDependency{}, false
}

// TexMatrix validates a candidate texture-matrix transform: one attribute
// read multiplied against a row of four buffer-dependency columns
// (dependencies.rs's tex_matrix, grounded on the gTexMat row-vector
// pattern: u = dot(attr, row) + row.w).
func TexMatrix(attrExpr *Expr, row [4]*Expr) (AttributeDependency, [4]BufferDependency, bool) {
	attr, ok := AttributeDependencyOf(attrExpr)
	if !ok {
		return AttributeDependency{}, [4]BufferDependency{}, false
	}
	var cols [4]BufferDependency
	for i, e := range row {
		b, ok := BufferDependencyOf(e)
		if !ok {
			return AttributeDependency{}, [4]BufferDependency{}, false
		}
		cols[i] = b
	}
	return attr, cols, true
}

// TexParallax validates a candidate parallax-mapping triple: a texture
// read (the height mask), and the two buffer parameters scaling its
// offset (dependencies.rs's tex_parallax, matched against the game's two
// known coefficient-chain shapes before this extraction step runs).
func TexParallax(maskExpr *Expr, param, paramRatio *Expr, texCoordOf func(arg *Expr) (TexCoord, bool)) (TextureDependency, BufferDependency, BufferDependency, bool) {
	mask, ok := TextureDependencyOf(maskExpr, texCoordOf)
	if !ok {
		return TextureDependency{}, BufferDependency{}, BufferDependency{}, false
	}
	p, ok := BufferDependencyOf(param)
	if !ok {
		return TextureDependency{}, BufferDependency{}, BufferDependency{}, false
	}
	pr, ok := BufferDependencyOf(paramRatio)
	if !ok {
		return TextureDependency{}, BufferDependency{}, BufferDependency{}, false
	}
	return mask, p, pr, true
}

// NormalReconstructionZ matches the canonical "fma(x, 2, -1)" decode
// applied to a compressed two-channel normal map's x/y before solving for
// z = sqrt(1 - x*x - y*y) (dependencies.rs's normal-reconstruction
// pattern family, named in spec.md 4.9). It reports whether e is that
// decode applied to a texture channel read, returning the channel read.
func NormalReconstructionZ(e *Expr) (TextureDependency, bool) {
	if e == nil || e.Kind != ExprFma || e.A == nil || e.A.Kind != ExprTexture {
		return TextureDependency{}, false
	}
	if e.B == nil || e.B.Kind != ExprConstant || e.B.Constant != 2.0 {
		return TextureDependency{}, false
	}
	if e.C == nil || e.C.Kind != ExprConstant || e.C.Constant != -1.0 {
		return TextureDependency{}, false
	}
	return TextureDependencyOf(e.A, func(*Expr) (TexCoord, bool) { return TexCoord{}, false })
}

// SpecularAA matches the geometric specular anti-aliasing pattern: a
// roughness value widened by the screen-space variance of the
// reconstructed normal, named in spec.md 4.9's pattern library. Only the
// roughness buffer parameter is extracted; the normal-variance term is not
// itself a Dependency leaf.
func SpecularAA(roughnessExpr *Expr) (BufferDependency, bool) {
	return BufferDependencyOf(roughnessExpr)
}

// BlendLayer resolves one TextureLayer from its value/ratio expressions
// and blend mode, used while assembling OutputDependencies.Layers for a
// layered material output (spec.md 4.4).
func BlendLayer(value *Expr, ratio *Expr, mode LayerBlendMode, fresnel bool, toDependency func(*Expr) (Dependency, bool)) (TextureLayer, bool) {
	v, ok := toDependency(value)
	if !ok {
		return TextureLayer{}, false
	}
	layer := TextureLayer{Value: v, BlendMode: mode, IsFresnel: fresnel}
	if ratio != nil {
		if r, ok := toDependency(ratio); ok {
			layer.Ratio = &r
		}
	}
	return layer, true
}
