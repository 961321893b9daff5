// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	xc3 "github.com/xc3kit/xc3"
)

func newExtractCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "extract <model.wismt> <out-dir>",
		Short: "Extracts a model-resource archive's vertex/shader/low-texture streams to files",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			extractStreams(args[0], args[1])
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (unused; positional arg wins)")
	return cmd
}

func extractStreams(drsmPath, outDir string) {
	data, err := os.ReadFile(drsmPath)
	if err != nil {
		log.Fatalf("error reading %s: %v", drsmPath, err)
	}
	drsm, err := xc3.ParseDrsm(data)
	if err != nil {
		log.Fatalf("error parsing %s: %v", drsmPath, err)
	}
	extracted, err := drsm.ExtractModern()
	if err != nil {
		log.Fatalf("error extracting streams: %v", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("error creating %s: %v", outDir, err)
	}

	writeFile := func(name string, b []byte) {
		p := filepath.Join(outDir, name)
		if err := os.WriteFile(p, b, 0o644); err != nil {
			log.Printf("error writing %s: %v", p, err)
			return
		}
		fmt.Printf("wrote %s (%d bytes)\n", p, len(b))
	}

	writeFile("vertex.bin", extracted.Vertex)
	writeFile("shader.bin", extracted.Shader)
	writeFile("low_textures.bin", extracted.LowTexture)
}
