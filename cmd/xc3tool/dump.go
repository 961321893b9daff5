// Copyright 2024 The xc3 authors. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	xc3 "github.com/xc3kit/xc3"
)

func newDumpCmd() *cobra.Command {
	var wantMaterials, wantTextures, wantSkeleton, wantAll bool

	cmd := &cobra.Command{
		Use:   "dump <model.wimdo> <model.wismt>",
		Short: "Dumps a model archive's structure as JSON",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			dumpModel(args[0], args[1], wantMaterials, wantTextures, wantSkeleton, wantAll)
		},
	}

	cmd.Flags().BoolVar(&wantMaterials, "materials", false, "dump material/sampler table")
	cmd.Flags().BoolVar(&wantTextures, "textures", false, "dump texture-resource table")
	cmd.Flags().BoolVar(&wantSkeleton, "skeleton", false, "dump skeleton, if one is loaded (dump loads no animation archive, so none is)")
	cmd.Flags().BoolVar(&wantAll, "all", false, "dump everything")

	return cmd
}

func dumpModel(mxmdPath, drsmPath string, wantMaterials, wantTextures, wantSkeleton, wantAll bool) {
	log.Printf("loading %s + %s", mxmdPath, drsmPath)

	mxmdData, err := os.ReadFile(mxmdPath)
	if err != nil {
		log.Printf("error reading %s: %v", mxmdPath, err)
		return
	}
	drsmData, err := os.ReadFile(drsmPath)
	if err != nil {
		log.Printf("error reading %s: %v", drsmPath, err)
		return
	}

	root, err := xc3.LoadModel(mxmdData, drsmData)
	if err != nil {
		log.Printf("error parsing %s: %v", filepath.Base(mxmdPath), err)
		return
	}

	if wantMaterials || wantAll {
		b, _ := json.Marshal(root.Mxmd.Materials)
		fmt.Println(prettyPrint(b))
	}
	if wantTextures || wantAll {
		b, _ := json.Marshal(root.Drsm.Textures)
		fmt.Println(prettyPrint(b))
	}
	if (wantSkeleton || wantAll) && root.Skeleton != nil {
		b, _ := json.Marshal(root.Skeleton.Bones)
		fmt.Println(prettyPrint(b))
	}
}
