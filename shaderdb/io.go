// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package shaderdb

import (
	xc3 "github.com/xc3kit/xc3"
)

// Database is the indexed on-disk form of a batch of ModelPrograms,
// grounded on original_source/xc3_model/src/shader_database/io.rs's
// ShaderDatabaseIndexed: every program's dependency references are
// rewritten as indices into three shared, deduplicated tables
// (dependencies, strings, output names), so the same buffer/texture/
// attribute read appearing in many programs is stored once.
type Database struct {
	MajorVersion uint16
	MinorVersion uint16
	Models       map[string]ModelPrograms
	Maps         map[string]ModelPrograms
	// ModelNames and MapNames record insertion order, since Models/Maps
	// are unordered Go maps.
	ModelNames []string
	MapNames   []string
}

// NewDatabase returns an empty database at the given format version.
func NewDatabase(major, minor uint16) *Database {
	return &Database{
		MajorVersion: major,
		MinorVersion: minor,
		Models:       make(map[string]ModelPrograms),
		Maps:         make(map[string]ModelPrograms),
	}
}

// AddModel records programs under name, preserving insertion order in
// ModelNames.
func (d *Database) AddModel(name string, programs ModelPrograms) {
	if _, ok := d.Models[name]; !ok {
		d.ModelNames = append(d.ModelNames, name)
	}
	d.Models[name] = programs
}

// AddMap records programs under name in the map-file table.
func (d *Database) AddMap(name string, programs ModelPrograms) {
	if _, ok := d.Maps[name]; !ok {
		d.MapNames = append(d.MapNames, name)
	}
	d.Maps[name] = programs
}

// stringTable is the dedup/insertion-order table shared by Write and
// dependencyIndexer, mirroring original_source's
// IndexMap<SmolStr, usize>::entry_index and this module's own
// layout.StringSection dedup convention.
type stringTable struct {
	order []string
	index map[string]int
}

func newStringTable() *stringTable {
	return &stringTable{index: make(map[string]int)}
}

func (t *stringTable) entryIndex(s string) int {
	if i, ok := t.index[s]; ok {
		return i
	}
	i := len(t.order)
	t.index[s] = i
	t.order = append(t.order, s)
	return i
}

// dependencyTable dedups Dependency values by their canonical Key,
// independent of the shared string table (dependencies reference strings
// by index, not value).
type dependencyTable struct {
	order []Dependency
	index map[string]int
}

func newDependencyTable() *dependencyTable {
	return &dependencyTable{index: make(map[string]int)}
}

func (t *dependencyTable) entryIndex(d Dependency) int {
	k := d.Key()
	if i, ok := t.index[k]; ok {
		return i
	}
	i := len(t.order)
	t.index[k] = i
	t.order = append(t.order, d)
	return i
}

// Write serializes the database: magic "SHDB", version, the model/map
// tables (each entry holding indices into the shared tables below), then
// the three shared tables themselves (dependencies u16-indexed, strings
// and outputs u8-indexed, per spec.md 6).
func (d *Database) Write() ([]byte, error) {
	w := xc3.NewByteWriter()
	w.WriteMagic("SHDB")
	w.WriteU16(d.MajorVersion)
	w.WriteU16(d.MinorVersion)

	strs := newStringTable()
	outs := newStringTable()
	deps := newDependencyTable()

	writeModelTable := func(names []string, models map[string]ModelPrograms) {
		w.WriteU32(uint32(len(names)))
		for _, name := range names {
			strIdx := strs.entryIndex(name)
			w.WriteU8(uint8(strIdx))
			writeModelPrograms(w, models[name], deps, outs)
		}
	}
	writeModelTable(d.ModelNames, d.Models)
	writeModelTable(d.MapNames, d.Maps)

	w.WriteU16(uint16(len(deps.order)))
	for _, dep := range deps.order {
		writeDependency(w, dep, strs)
	}

	w.WriteU8(uint8(len(strs.order)))
	for _, s := range strs.order {
		w.WriteCString(s)
	}

	w.WriteU8(uint8(len(outs.order)))
	for _, s := range outs.order {
		w.WriteCString(s)
	}

	return w.Bytes(), nil
}

func writeModelPrograms(w *xc3.ByteWriter, mp ModelPrograms, deps *dependencyTable, outs *stringTable) {
	w.WriteU32(uint32(len(mp.Programs)))
	for _, p := range mp.Programs {
		w.WriteU32(uint32(len(p.OutputNames)))
		for _, name := range p.OutputNames {
			outIdx := outs.entryIndex(name)
			w.WriteU8(uint8(outIdx))
			od := p.OutputDependencies[name]
			w.WriteU16(uint16(len(od.Dependencies)))
			for _, dep := range od.Dependencies {
				w.WriteU16(uint16(deps.entryIndex(dep)))
			}
			w.WriteU16(uint16(len(od.Layers)))
			for _, layer := range od.Layers {
				w.WriteU16(uint16(deps.entryIndex(layer.Value)))
				if layer.Ratio != nil {
					w.WriteU16(uint16(deps.entryIndex(*layer.Ratio)))
				} else {
					w.WriteU16(0xFFFF)
				}
				w.WriteU8(uint8(layer.BlendMode))
				if layer.IsFresnel {
					w.WriteU8(1)
				} else {
					w.WriteU8(0)
				}
			}
		}
		if p.OutlineWidth != nil {
			w.WriteU8(1)
			w.WriteU16(uint16(deps.entryIndex(*p.OutlineWidth)))
		} else {
			w.WriteU8(0)
		}
	}
}

func writeDependency(w *xc3.ByteWriter, d Dependency, strs *stringTable) {
	w.WriteU8(uint8(d.Kind))
	switch d.Kind {
	case DependencyConstant:
		w.WriteF32(d.Constant)
	case DependencyBuffer:
		writeBufferDependency(w, d.Buffer, strs)
	case DependencyTexture:
		writeTextureDependency(w, d.Texture, strs)
	case DependencyAttribute:
		writeAttributeDependency(w, d.Attribute, strs)
	}
}

func writeBufferDependency(w *xc3.ByteWriter, b BufferDependency, strs *stringTable) {
	w.WriteU8(uint8(strs.entryIndex(b.Name)))
	w.WriteU8(uint8(strs.entryIndex(b.Field)))
	if b.HasIndex {
		w.WriteI32(int32(b.Index))
	} else {
		w.WriteI32(-1)
	}
	w.WriteU8(uint8(strs.entryIndex(b.Channels)))
}

func writeAttributeDependency(w *xc3.ByteWriter, a AttributeDependency, strs *stringTable) {
	w.WriteU8(uint8(strs.entryIndex(a.Name)))
	w.WriteU8(uint8(strs.entryIndex(a.Channels)))
}

func writeTextureDependency(w *xc3.ByteWriter, t TextureDependency, strs *stringTable) {
	w.WriteU8(uint8(strs.entryIndex(t.Name)))
	w.WriteU8(uint8(strs.entryIndex(t.Channels)))
	w.WriteU8(uint8(len(t.TexCoords)))
	for _, tc := range t.TexCoords {
		w.WriteU8(uint8(strs.entryIndex(tc.Name)))
		w.WriteU8(uint8(strs.entryIndex(tc.Channels)))
		if tc.Params == nil {
			w.WriteU8(uint8(TexCoordParamsNone))
			continue
		}
		w.WriteU8(uint8(tc.Params.Kind))
		switch tc.Params.Kind {
		case TexCoordParamsScale:
			writeBufferDependency(w, tc.Params.Scale, strs)
		case TexCoordParamsMatrix:
			for _, col := range tc.Params.Matrix {
				writeBufferDependency(w, col, strs)
			}
		}
	}
}

// Parse reads a Database back from its on-disk encoding.
func Parse(data []byte) (*Database, error) {
	r := xc3.NewReader(data)
	if err := r.ReadMagic("SHDB"); err != nil {
		return nil, err
	}
	d := &Database{Models: make(map[string]ModelPrograms), Maps: make(map[string]ModelPrograms)}
	var err error
	if d.MajorVersion, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if d.MinorVersion, err = r.ReadU16(); err != nil {
		return nil, err
	}

	type pendingModel struct {
		nameIdx uint8
		raw     rawModelPrograms
	}
	readModelTable := func() ([]pendingModel, error) {
		count, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		out := make([]pendingModel, count)
		for i := range out {
			nameIdx, err := r.ReadU8()
			if err != nil {
				return nil, err
			}
			raw, err := readRawModelPrograms(r)
			if err != nil {
				return nil, err
			}
			out[i] = pendingModel{nameIdx: nameIdx, raw: raw}
		}
		return out, nil
	}

	modelEntries, err := readModelTable()
	if err != nil {
		return nil, err
	}
	mapEntries, err := readModelTable()
	if err != nil {
		return nil, err
	}

	depCount, err := r.ReadU16()
	if err != nil {
		return nil, err
	}
	rawDeps := make([]rawDependency, depCount)
	for i := range rawDeps {
		rd, err := readRawDependency(r)
		if err != nil {
			return nil, err
		}
		rawDeps[i] = rd
	}

	strCount, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	strings := make([]string, strCount)
	for i := range strings {
		if strings[i], err = r.ReadCString(); err != nil {
			return nil, err
		}
	}

	outCount, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	outputs := make([]string, outCount)
	for i := range outputs {
		if outputs[i], err = r.ReadCString(); err != nil {
			return nil, err
		}
	}

	deps := make([]Dependency, len(rawDeps))
	for i, rd := range rawDeps {
		dep, err := rd.resolve(strings)
		if err != nil {
			return nil, err
		}
		deps[i] = dep
	}

	resolveEntries := func(entries []pendingModel) ([]string, map[string]ModelPrograms, error) {
		names := make([]string, len(entries))
		out := make(map[string]ModelPrograms, len(entries))
		for i, e := range entries {
			if int(e.nameIdx) >= len(strings) {
				return nil, nil, xc3.NewIndexOutOfRange(int(e.nameIdx), len(strings))
			}
			name := strings[e.nameIdx]
			names[i] = name
			mp, err := e.raw.resolve(deps, outputs)
			if err != nil {
				return nil, nil, err
			}
			out[name] = mp
		}
		return names, out, nil
	}

	d.ModelNames, d.Models, err = resolveEntries(modelEntries)
	if err != nil {
		return nil, err
	}
	d.MapNames, d.Maps, err = resolveEntries(mapEntries)
	if err != nil {
		return nil, err
	}
	return d, nil
}

type rawOutputEntry struct {
	outIdx   uint8
	depIdxs  []uint16
	layers   []rawLayer
}

type rawLayer struct {
	valueIdx uint16
	ratioIdx uint16
	hasRatio bool
	mode     LayerBlendMode
	fresnel  bool
}

type rawProgram struct {
	outputs      []rawOutputEntry
	hasOutline   bool
	outlineIdx   uint16
}

type rawModelPrograms struct {
	programs []rawProgram
}

func readRawModelPrograms(r *xc3.Reader) (rawModelPrograms, error) {
	count, err := r.ReadU32()
	if err != nil {
		return rawModelPrograms{}, err
	}
	mp := rawModelPrograms{programs: make([]rawProgram, count)}
	for i := range mp.programs {
		outCount, err := r.ReadU32()
		if err != nil {
			return mp, err
		}
		prog := rawProgram{outputs: make([]rawOutputEntry, outCount)}
		for j := range prog.outputs {
			outIdx, err := r.ReadU8()
			if err != nil {
				return mp, err
			}
			depCount, err := r.ReadU16()
			if err != nil {
				return mp, err
			}
			depIdxs := make([]uint16, depCount)
			for k := range depIdxs {
				if depIdxs[k], err = r.ReadU16(); err != nil {
					return mp, err
				}
			}
			layerCount, err := r.ReadU16()
			if err != nil {
				return mp, err
			}
			layers := make([]rawLayer, layerCount)
			for k := range layers {
				valueIdx, err := r.ReadU16()
				if err != nil {
					return mp, err
				}
				ratioIdx, err := r.ReadU16()
				if err != nil {
					return mp, err
				}
				mode, err := r.ReadU8()
				if err != nil {
					return mp, err
				}
				fresnel, err := r.ReadU8()
				if err != nil {
					return mp, err
				}
				layers[k] = rawLayer{
					valueIdx: valueIdx,
					ratioIdx: ratioIdx,
					hasRatio: ratioIdx != 0xFFFF,
					mode:     LayerBlendMode(mode),
					fresnel:  fresnel != 0,
				}
			}
			prog.outputs[j] = rawOutputEntry{outIdx: outIdx, depIdxs: depIdxs, layers: layers}
		}
		hasOutline, err := r.ReadU8()
		if err != nil {
			return mp, err
		}
		if hasOutline != 0 {
			prog.hasOutline = true
			if prog.outlineIdx, err = r.ReadU16(); err != nil {
				return mp, err
			}
		}
		mp.programs[i] = prog
	}
	return mp, nil
}

func (mp rawModelPrograms) resolve(deps []Dependency, outputs []string) (ModelPrograms, error) {
	out := ModelPrograms{Programs: make([]ShaderProgram, len(mp.programs))}
	for i, rp := range mp.programs {
		sp := ShaderProgram{OutputDependencies: make(map[string]OutputDependencies, len(rp.outputs))}
		for _, ro := range rp.outputs {
			if int(ro.outIdx) >= len(outputs) {
				return out, xc3.NewIndexOutOfRange(int(ro.outIdx), len(outputs))
			}
			name := outputs[ro.outIdx]
			od := OutputDependencies{}
			for _, di := range ro.depIdxs {
				if int(di) >= len(deps) {
					return out, xc3.NewIndexOutOfRange(int(di), len(deps))
				}
				od.Dependencies = append(od.Dependencies, deps[di])
			}
			for _, rl := range ro.layers {
				if int(rl.valueIdx) >= len(deps) {
					return out, xc3.NewIndexOutOfRange(int(rl.valueIdx), len(deps))
				}
				layer := TextureLayer{Value: deps[rl.valueIdx], BlendMode: rl.mode, IsFresnel: rl.fresnel}
				if rl.hasRatio {
					if int(rl.ratioIdx) >= len(deps) {
						return out, xc3.NewIndexOutOfRange(int(rl.ratioIdx), len(deps))
					}
					r := deps[rl.ratioIdx]
					layer.Ratio = &r
				}
				od.Layers = append(od.Layers, layer)
			}
			sp.AddOutput(name, od)
		}
		if rp.hasOutline {
			if int(rp.outlineIdx) >= len(deps) {
				return out, xc3.NewIndexOutOfRange(int(rp.outlineIdx), len(deps))
			}
			d := deps[rp.outlineIdx]
			sp.OutlineWidth = &d
		}
		out.Programs[i] = sp
	}
	return out, nil
}

type rawBufferDependency struct {
	nameIdx, fieldIdx, channelsIdx uint8
	index                          int32
}

type rawTexCoord struct {
	nameIdx, channelsIdx uint8
	paramsKind           TexCoordParamsKind
	scale                rawBufferDependency
	matrix               [4]rawBufferDependency
}

type rawTextureDependency struct {
	nameIdx, channelsIdx uint8
	texCoords            []rawTexCoord
}

type rawAttributeDependency struct {
	nameIdx, channelsIdx uint8
}

type rawDependency struct {
	kind      DependencyKind
	constant  float32
	buffer    rawBufferDependency
	texture   rawTextureDependency
	attribute rawAttributeDependency
}

func readRawBufferDependency(r *xc3.Reader) (rawBufferDependency, error) {
	var b rawBufferDependency
	var err error
	if b.nameIdx, err = r.ReadU8(); err != nil {
		return b, err
	}
	if b.fieldIdx, err = r.ReadU8(); err != nil {
		return b, err
	}
	if b.index, err = r.ReadI32(); err != nil {
		return b, err
	}
	if b.channelsIdx, err = r.ReadU8(); err != nil {
		return b, err
	}
	return b, nil
}

func (b rawBufferDependency) resolve(strings []string) (BufferDependency, error) {
	if int(b.nameIdx) >= len(strings) || int(b.fieldIdx) >= len(strings) || int(b.channelsIdx) >= len(strings) {
		return BufferDependency{}, xc3.NewIndexOutOfRange(int(b.nameIdx), len(strings))
	}
	bd := BufferDependency{
		Name:     strings[b.nameIdx],
		Field:    strings[b.fieldIdx],
		Channels: strings[b.channelsIdx],
	}
	if b.index >= 0 {
		bd.HasIndex = true
		bd.Index = int(b.index)
	}
	return bd, nil
}

func readRawDependency(r *xc3.Reader) (rawDependency, error) {
	var d rawDependency
	kind, err := r.ReadU8()
	if err != nil {
		return d, err
	}
	d.kind = DependencyKind(kind)
	switch d.kind {
	case DependencyConstant:
		if d.constant, err = r.ReadF32(); err != nil {
			return d, err
		}
	case DependencyBuffer:
		if d.buffer, err = readRawBufferDependency(r); err != nil {
			return d, err
		}
	case DependencyTexture:
		if d.texture, err = readRawTextureDependency(r); err != nil {
			return d, err
		}
	case DependencyAttribute:
		if d.attribute.nameIdx, err = r.ReadU8(); err != nil {
			return d, err
		}
		if d.attribute.channelsIdx, err = r.ReadU8(); err != nil {
			return d, err
		}
	default:
		return d, xc3.NewUnknownDiscriminant(kind, r.Pos())
	}
	return d, nil
}

func readRawTextureDependency(r *xc3.Reader) (rawTextureDependency, error) {
	var t rawTextureDependency
	var err error
	if t.nameIdx, err = r.ReadU8(); err != nil {
		return t, err
	}
	if t.channelsIdx, err = r.ReadU8(); err != nil {
		return t, err
	}
	count, err := r.ReadU8()
	if err != nil {
		return t, err
	}
	t.texCoords = make([]rawTexCoord, count)
	for i := range t.texCoords {
		tc := rawTexCoord{}
		if tc.nameIdx, err = r.ReadU8(); err != nil {
			return t, err
		}
		if tc.channelsIdx, err = r.ReadU8(); err != nil {
			return t, err
		}
		kind, err := r.ReadU8()
		if err != nil {
			return t, err
		}
		tc.paramsKind = TexCoordParamsKind(kind)
		switch tc.paramsKind {
		case TexCoordParamsScale:
			if tc.scale, err = readRawBufferDependency(r); err != nil {
				return t, err
			}
		case TexCoordParamsMatrix:
			for k := range tc.matrix {
				if tc.matrix[k], err = readRawBufferDependency(r); err != nil {
					return t, err
				}
			}
		}
		t.texCoords[i] = tc
	}
	return t, nil
}

func (rd rawDependency) resolve(strings []string) (Dependency, error) {
	switch rd.kind {
	case DependencyConstant:
		return Dependency{Kind: DependencyConstant, Constant: rd.constant}, nil
	case DependencyBuffer:
		b, err := rd.buffer.resolve(strings)
		if err != nil {
			return Dependency{}, err
		}
		return Dependency{Kind: DependencyBuffer, Buffer: b}, nil
	case DependencyTexture:
		if int(rd.texture.nameIdx) >= len(strings) || int(rd.texture.channelsIdx) >= len(strings) {
			return Dependency{}, xc3.NewIndexOutOfRange(int(rd.texture.nameIdx), len(strings))
		}
		td := TextureDependency{Name: strings[rd.texture.nameIdx], Channels: strings[rd.texture.channelsIdx]}
		for _, rtc := range rd.texture.texCoords {
			if int(rtc.nameIdx) >= len(strings) || int(rtc.channelsIdx) >= len(strings) {
				return Dependency{}, xc3.NewIndexOutOfRange(int(rtc.nameIdx), len(strings))
			}
			tc := TexCoord{Name: strings[rtc.nameIdx], Channels: strings[rtc.channelsIdx]}
			switch rtc.paramsKind {
			case TexCoordParamsScale:
				s, err := rtc.scale.resolve(strings)
				if err != nil {
					return Dependency{}, err
				}
				tc.Params = &TexCoordParams{Kind: TexCoordParamsScale, Scale: s}
			case TexCoordParamsMatrix:
				params := &TexCoordParams{Kind: TexCoordParamsMatrix}
				for i, m := range rtc.matrix {
					col, err := m.resolve(strings)
					if err != nil {
						return Dependency{}, err
					}
					params.Matrix[i] = col
				}
				tc.Params = params
			}
			td.TexCoords = append(td.TexCoords, tc)
		}
		return Dependency{Kind: DependencyTexture, Texture: td}, nil
	case DependencyAttribute:
		if int(rd.attribute.nameIdx) >= len(strings) || int(rd.attribute.channelsIdx) >= len(strings) {
			return Dependency{}, xc3.NewIndexOutOfRange(int(rd.attribute.nameIdx), len(strings))
		}
		return Dependency{Kind: DependencyAttribute, Attribute: AttributeDependency{
			Name:     strings[rd.attribute.nameIdx],
			Channels: strings[rd.attribute.channelsIdx],
		}}, nil
	default:
		return Dependency{}, xc3.NewUnknownDiscriminant(int(rd.kind), -1)
	}
}
