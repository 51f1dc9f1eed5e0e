package app

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"github.com/luxmarch/luxmarch/rt/compile"
	"github.com/luxmarch/luxmarch/rt/core"
	"github.com/luxmarch/luxmarch/rt/render"
)

// HeadlessOptions drives a windowless CPU render to a PNG file.
type HeadlessOptions struct {
	Options
	Samples   int // per-pixel sample target
	OutPath   string
	OutWidth  int // 0 keeps the render resolution
	OutHeight int
}

// RenderHeadless runs the CPU pipeline until every pixel has the
// requested sample count, then tone-maps and writes a PNG. When an
// output size differing from the render size is requested the image is
// rescaled with Catmull-Rom.
func RenderHeadless(ctx context.Context, prog *compile.Program, opts HeadlessOptions, logger core.Logger) error {
	r := render.NewRenderer(prog, render.Config{
		Width:      opts.Width,
		Height:     opts.Height,
		NumWorkers: opts.Workers,
		Seed:       opts.Seed,
	}, logger)
	r.RenderSamples(ctx, opts.Samples)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("render: %w", err)
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	r.Accumulator().Snapshot(img.Pix)

	out := img
	if opts.OutWidth > 0 && opts.OutHeight > 0 &&
		(opts.OutWidth != opts.Width || opts.OutHeight != opts.Height) {
		out = image.NewRGBA(image.Rect(0, 0, opts.OutWidth, opts.OutHeight))
		draw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	}

	f, err := os.Create(opts.OutPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", opts.OutPath, err)
	}
	defer f.Close()
	if err := png.Encode(f, out); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	logger.Infof("wrote %s (%dx%d, %d samples/pixel)",
		opts.OutPath, out.Bounds().Dx(), out.Bounds().Dy(), opts.Samples)
	return nil
}
