// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	xc3 "github.com/xc3kit/xc3"
)

func newConvertTextureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert-texture <model.wimdo> <model.wismt> <index> <out.bin>",
		Short: "Deswizzles one texture-resource-table entry and writes its raw block-compressed bytes plus a JSON footer sidecar",
		Args:  cobra.ExactArgs(4),
		Run: func(cmd *cobra.Command, args []string) {
			index, err := strconv.Atoi(args[2])
			if err != nil {
				log.Fatalf("invalid index %q: %v", args[2], err)
			}
			convertTexture(args[0], args[1], index, args[3])
		},
	}
	return cmd
}

func convertTexture(mxmdPath, drsmPath string, index int, outPath string) {
	mxmdData, err := os.ReadFile(mxmdPath)
	if err != nil {
		log.Fatalf("error reading %s: %v", mxmdPath, err)
	}
	drsmData, err := os.ReadFile(drsmPath)
	if err != nil {
		log.Fatalf("error reading %s: %v", drsmPath, err)
	}

	root, err := xc3.LoadModel(mxmdData, drsmData)
	if err != nil {
		log.Fatalf("error parsing model archive: %v", err)
	}

	tex, err := root.Texture(index)
	if err != nil {
		log.Fatalf("error decoding texture %d: %v", index, err)
	}

	raw, err := tex.Deswizzled()
	if err != nil {
		log.Fatalf("error deswizzling texture %d: %v", index, err)
	}

	if err := os.WriteFile(outPath, raw, 0o644); err != nil {
		log.Fatalf("error writing %s: %v", outPath, err)
	}

	footerJSON, _ := json.Marshal(tex.Footer)
	sidecar := outPath + ".json"
	if err := os.WriteFile(sidecar, footerJSON, 0o644); err != nil {
		log.Printf("error writing %s: %v", sidecar, err)
	}
	fmt.Printf("wrote %s (%d bytes), footer at %s\n", outPath, len(raw), sidecar)
}
