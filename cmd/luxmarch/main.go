package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/google/uuid"

	"github.com/luxmarch/luxmarch/rt/app"
	"github.com/luxmarch/luxmarch/rt/compile"
	"github.com/luxmarch/luxmarch/rt/core"
	"github.com/luxmarch/luxmarch/rt/worldfile"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	scenePath := flag.String("scene", "", "Scene file (JSON); empty uses the built-in demo scene")
	useGPU := flag.Bool("gpu", false, "Render with the wgpu compute backend")
	width := flag.Int("width", 800, "Render width in pixels")
	height := flag.Int("height", 600, "Render height in pixels")
	workers := flag.Int("workers", 0, "CPU worker count, 0 uses all cores")
	seed := flag.Int64("seed", 1, "Random seed")
	depth := flag.Int("depth", 0, "Override the scene's max ray depth")
	debug := flag.Bool("debug", false, "Enable debug logging")
	samples := flag.Int("samples", 0, "Headless mode: render this many samples per pixel and exit")
	outPath := flag.String("out", "", "Headless mode: output PNG path; default is luxmarch-<session>.png")
	outWidth := flag.Int("out-width", 0, "Headless mode: output width, 0 keeps render size")
	outHeight := flag.Int("out-height", 0, "Headless mode: output height, 0 keeps render size")
	flag.Parse()

	logger := core.NewDefaultLogger("luxmarch", *debug)

	world, err := loadWorld(*scenePath)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if *depth > 0 {
		world.MaxRayDepth = *depth
	}
	prog, err := compile.Compile(world)
	if err != nil {
		logger.Errorf("compile scene: %v", err)
		os.Exit(1)
	}
	logger.Infof("scene: %d objects, %d materials, depth %d",
		len(prog.Objects), len(prog.Materials), prog.MaxRayDepth)

	if *samples > 0 {
		out := *outPath
		if out == "" {
			out = fmt.Sprintf("luxmarch-%s.png", uuid.New())
		}
		err := app.RenderHeadless(context.Background(), prog, app.HeadlessOptions{
			Options: app.Options{
				Width:   *width,
				Height:  *height,
				Workers: *workers,
				Seed:    *seed,
			},
			Samples:   *samples,
			OutPath:   out,
			OutWidth:  *outWidth,
			OutHeight: *outHeight,
		}, logger)
		if err != nil {
			logger.Errorf("%v", err)
			os.Exit(1)
		}
		return
	}

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(*width, *height, "luxmarch", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := app.New(window, prog, app.Options{
		Width:   *width,
		Height:  *height,
		UseGPU:  *useGPU,
		Workers: *workers,
		Seed:    *seed,
	}, logger)
	if err := application.Init(); err != nil {
		panic(err)
	}
	defer application.Close()

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})
	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		application.ScrollExposure(yoff)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Render()
	}
}

func loadWorld(path string) (*core.World, error) {
	if path == "" {
		return core.DefaultWorld(), nil
	}
	world, err := worldfile.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load scene %s: %w", path, err)
	}
	return world, nil
}
