// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package xc3

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/xc3kit/xc3/internal/log"
)

// Options configures a container constructor, the same shape as the
// teacher's own pe.Options: an injectable Logger plus the one extra knob
// this domain's model archive needs.
type Options struct {
	// Logger receives warnings when an optional sub-archive (skeleton,
	// animation) fails to parse; nil falls back to log.Default().
	Logger log.Logger

	// ExternalTextureRoot is the directory external "chr" texture sibling
	// files are resolved against (spec.md 6's "<root>/m/<hash>.wismt" and
	// "<root>/h/<hash>.wismt"), used by Container.ChrTexture.
	ExternalTextureRoot string
}

// Container is a memory-mapped model archive: the .wimdo/.wismt file pair
// kept mapped for the returned ModelRoot's lifetime, mirroring the
// teacher's File holding its mmap.MMap in file.go's New.
type Container struct {
	*ModelRoot

	mxmdMap mmap.MMap
	drsmMap mmap.MMap
	mxmdF   *os.File
	drsmF   *os.File

	opts *Options
	log  *log.Helper
}

func newHelper(opts *Options) *log.Helper {
	if opts != nil && opts.Logger != nil {
		return log.NewHelper(opts.Logger)
	}
	return log.Default()
}

// Open memory-maps mxmdPath (the model definition) and drsmPath (its
// paired model-resource archive) and parses them into a ModelRoot, the
// memory-mapped analogue of LoadModel (mirrors mmap.Map(f, mmap.RDONLY, 0)
// in the teacher's file.go New).
func Open(mxmdPath, drsmPath string, opts *Options) (*Container, error) {
	if opts == nil {
		opts = &Options{}
	}
	helper := newHelper(opts)

	mxmdF, err := os.Open(mxmdPath)
	if err != nil {
		return nil, NewIoError(err)
	}
	mxmdMap, err := mmap.Map(mxmdF, mmap.RDONLY, 0)
	if err != nil {
		mxmdF.Close()
		return nil, NewIoError(err)
	}

	drsmF, err := os.Open(drsmPath)
	if err != nil {
		mxmdMap.Unmap()
		mxmdF.Close()
		return nil, NewIoError(err)
	}
	drsmMap, err := mmap.Map(drsmF, mmap.RDONLY, 0)
	if err != nil {
		drsmF.Close()
		mxmdMap.Unmap()
		mxmdF.Close()
		return nil, NewIoError(err)
	}

	root, err := LoadModel(mxmdMap, drsmMap)
	if err != nil {
		drsmMap.Unmap()
		drsmF.Close()
		mxmdMap.Unmap()
		mxmdF.Close()
		return nil, err
	}

	return &Container{
		ModelRoot: root,
		mxmdMap:   mxmdMap,
		drsmMap:   drsmMap,
		mxmdF:     mxmdF,
		drsmF:     drsmF,
		opts:      opts,
		log:       helper,
	}, nil
}

// OpenBytes parses an already in-memory .wimdo/.wismt pair, the buffer
// counterpart to Open (mirrors the teacher's File.NewBytes).
func OpenBytes(mxmdData, drsmData []byte, opts *Options) (*Container, error) {
	if opts == nil {
		opts = &Options{}
	}
	root, err := LoadModel(mxmdData, drsmData)
	if err != nil {
		return nil, err
	}
	return &Container{ModelRoot: root, opts: opts, log: newHelper(opts)}, nil
}

// LoadSkeleton parses sarData and attaches its skeleton, logging (rather
// than failing) a missing SKEL entry since a model archive without
// animation data is still a valid, fully usable container.
func (c *Container) LoadSkeleton(sarData []byte) error {
	if err := c.ModelRoot.LoadSkeleton(sarData); err != nil {
		c.log.Warnf("skeleton load failed: %v", err)
		return err
	}
	if c.ModelRoot.Skeleton == nil {
		c.log.Warnf("sar archive has no SKEL entry")
	}
	return nil
}

// LoadAnimations parses sarData's animation bindings. If any ASMB entry is
// malformed it logs a warning and returns that entry's error.
func (c *Container) LoadAnimations(sarData []byte) error {
	if err := c.ModelRoot.LoadAnimations(sarData); err != nil {
		c.log.Warnf("animation load failed: %v", err)
		return err
	}
	return nil
}

// ChrTexture resolves an external "chr" texture's highest-quality mid/base
// mip streams from disk, rooted at Options.ExternalTextureRoot.
func (c *Container) ChrTexture(hash uint32) (*ChrTextureStreams, error) {
	if c.opts.ExternalTextureRoot == "" {
		return nil, NewIoError(os.ErrNotExist)
	}
	return ExtractChrTexture(os.ReadFile, c.opts.ExternalTextureRoot, hash)
}

// Close unmaps and closes the backing files. A Container built with
// OpenBytes has nothing to unmap and Close is a no-op.
func (c *Container) Close() error {
	var firstErr error
	if c.drsmMap != nil {
		if err := c.drsmMap.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.drsmF != nil {
		if err := c.drsmF.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.mxmdMap != nil {
		if err := c.mxmdMap.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.mxmdF != nil {
		if err := c.mxmdF.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
