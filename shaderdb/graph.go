// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package shaderdb implements C9: the shader expression-dependency graph
// and its indexed on-disk database (spec.md 4.9, 6). A ShaderProgram's
// render-output channels are reduced to the set of buffer uniforms,
// textures and vertex attributes they actually read, so a model's
// materials can be driven without re-deriving that from raw GPU bytecode
// every load.
package shaderdb

import "fmt"

// DependencyKind discriminates the four leaf kinds an expression can
// bottom out at (spec.md 4.9).
type DependencyKind int

const (
	DependencyConstant DependencyKind = iota
	DependencyBuffer
	DependencyTexture
	DependencyAttribute
)

// BufferDependency is a uniform-buffer read: buffer name, optional struct
// field, optional array index, and the component channels read.
type BufferDependency struct {
	Name     string
	Field    string
	Index    int
	HasIndex bool
	Channels string
}

func (b BufferDependency) key() string {
	idx := "-"
	if b.HasIndex {
		idx = fmt.Sprint(b.Index)
	}
	return fmt.Sprintf("B:%s:%s:%s:%s", b.Name, b.Field, idx, b.Channels)
}

// AttributeDependency is a vertex-attribute read.
type AttributeDependency struct {
	Name     string
	Channels string
}

func (a AttributeDependency) key() string {
	return fmt.Sprintf("A:%s:%s", a.Name, a.Channels)
}

// TexCoordParamsKind discriminates TexCoord's optional transform.
type TexCoordParamsKind int

const (
	TexCoordParamsNone TexCoordParamsKind = iota
	TexCoordParamsScale
	TexCoordParamsMatrix
)

// TexCoordParams is the optional UV transform applied before a texture
// read: a uniform scale factor, or a 4-component matrix row (spec.md 4.9's
// "texture-matrix transforms, parallax mapping").
type TexCoordParams struct {
	Kind   TexCoordParamsKind
	Scale  BufferDependency
	Matrix [4]BufferDependency
}

// TexCoord is one input channel feeding a texture read's UV coordinate.
type TexCoord struct {
	Name     string
	Channels string
	Params   *TexCoordParams
}

func (t TexCoord) key() string {
	p := "-"
	if t.Params != nil {
		switch t.Params.Kind {
		case TexCoordParamsScale:
			p = "S:" + t.Params.Scale.key()
		case TexCoordParamsMatrix:
			p = "M"
			for _, m := range t.Params.Matrix {
				p += ":" + m.key()
			}
		}
	}
	return fmt.Sprintf("%s:%s:%s", t.Name, t.Channels, p)
}

// TextureDependency is a texture-sample read, with the chain of
// coordinate transforms that produced its UV.
type TextureDependency struct {
	Name      string
	Channels  string
	TexCoords []TexCoord
}

func (t TextureDependency) key() string {
	s := fmt.Sprintf("T:%s:%s", t.Name, t.Channels)
	for _, c := range t.TexCoords {
		s += "|" + c.key()
	}
	return s
}

// Dependency is one leaf in a shader output's dependency set.
type Dependency struct {
	Kind      DependencyKind
	Constant  float32
	Buffer    BufferDependency
	Texture   TextureDependency
	Attribute AttributeDependency
}

// Key returns a canonical string uniquely identifying d's value, used to
// deduplicate dependencies the way original_source's IndexMap<Dependency,
// usize> does by deriving Hash/Eq.
func (d Dependency) Key() string {
	switch d.Kind {
	case DependencyConstant:
		return fmt.Sprintf("C:%g", d.Constant)
	case DependencyBuffer:
		return d.Buffer.key()
	case DependencyTexture:
		return d.Texture.key()
	case DependencyAttribute:
		return d.Attribute.key()
	default:
		return "?"
	}
}

// LayerBlendMode is how a TextureLayer composites onto the layer below it
// (spec.md 4.4's supplemented texture-layering/blend-mode feature).
type LayerBlendMode int

const (
	BlendMix LayerBlendMode = iota
	BlendMixRatio
	BlendAdd
	BlendAddNormal
	BlendOverlay
	BlendOverlayRatio
)

// TextureLayer is one layer of a multi-layer material output: a value
// dependency, an optional blend-ratio dependency, a blend mode, and
// whether the layer is Fresnel-masked.
type TextureLayer struct {
	Value     Dependency
	Ratio     *Dependency
	BlendMode LayerBlendMode
	IsFresnel bool
}

// OutputDependencies is the full dependency set feeding one material
// render-output channel (e.g. "o0.x"): a flat dependency list plus any
// layered-texture structure over it.
type OutputDependencies struct {
	Dependencies []Dependency
	Layers       []TextureLayer
}

// ShaderProgram is one compiled program's per-output dependency map, plus
// an optional outline-width dependency (spec.md 4.9).
type ShaderProgram struct {
	// OutputNames preserves insertion order; OutputDependencies is keyed
	// by the same names.
	OutputNames        []string
	OutputDependencies map[string]OutputDependencies
	OutlineWidth        *Dependency
}

// AddOutput records dependencies for output, preserving first-seen order
// in OutputNames.
func (p *ShaderProgram) AddOutput(output string, deps OutputDependencies) {
	if p.OutputDependencies == nil {
		p.OutputDependencies = make(map[string]OutputDependencies)
	}
	if _, ok := p.OutputDependencies[output]; !ok {
		p.OutputNames = append(p.OutputNames, output)
	}
	p.OutputDependencies[output] = deps
}

// ModelPrograms is one model's (or map layer's) ordered list of shader
// programs, one per material/mesh-group draw call.
type ModelPrograms struct {
	Programs []ShaderProgram
}
