// Package shaders embeds the WGSL sources of the GPU pipeline.
package shaders

import (
	_ "embed"
)

//go:embed march.wgsl
var MarchWGSL string

//go:embed shade.wgsl
var ShadeWGSL string

//go:embed collect.wgsl
var CollectWGSL string

//go:embed fullscreen.wgsl
var FullscreenWGSL string
