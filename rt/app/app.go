// Package app is the interactive shell: it owns the window surface and
// runs one of the two backends, the multi-threaded CPU renderer with a
// blit presenter or the multi-pass GPU pipeline.
package app

import (
	"context"
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/google/uuid"

	"github.com/luxmarch/luxmarch/rt/compile"
	"github.com/luxmarch/luxmarch/rt/core"
	"github.com/luxmarch/luxmarch/rt/gpu"
	"github.com/luxmarch/luxmarch/rt/gpu/shaders"
	"github.com/luxmarch/luxmarch/rt/render"
)

type Options struct {
	Width   int // render resolution, independent of the window size
	Height  int
	UseGPU  bool
	Workers int // CPU backend, 0 = GOMAXPROCS
	Seed    int64
}

type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	Session uuid.UUID
	Logger  core.Logger

	prog *compile.Program
	opts Options

	gpuRenderer *gpu.Renderer

	cpuRenderer  *render.Renderer
	frame        []byte
	frameTexture *wgpu.Texture
	frameView    *wgpu.TextureView
	sampler      *wgpu.Sampler
	blitPipeline *wgpu.RenderPipeline
	blitGroup    *wgpu.BindGroup
}

func New(window *glfw.Window, prog *compile.Program, opts Options, logger core.Logger) *App {
	return &App{
		Window:  window,
		Session: uuid.New(),
		Logger:  logger,
		prog:    prog,
		opts:    opts,
	}
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("request adapter: %w", err)
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	a.Queue = a.Device.GetQueue()

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	format := caps.Formats[0]

	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)

	a.Logger.Infof("session %s: surface %dx%d, render %dx%d",
		a.Session, width, height, a.opts.Width, a.opts.Height)

	if a.opts.UseGPU {
		return a.initGPU(format)
	}
	return a.initCPU(format)
}

func (a *App) initGPU(format wgpu.TextureFormat) error {
	r, err := gpu.NewRenderer(a.Device, format, a.prog,
		uint32(a.opts.Width), uint32(a.opts.Height), a.opts.Seed, a.Logger)
	if err != nil {
		return err
	}
	a.gpuRenderer = r
	return nil
}

func (a *App) initCPU(format wgpu.TextureFormat) error {
	a.cpuRenderer = render.NewRenderer(a.prog, render.Config{
		Width:      a.opts.Width,
		Height:     a.opts.Height,
		NumWorkers: a.opts.Workers,
		Seed:       a.opts.Seed,
	}, a.Logger)
	a.cpuRenderer.Start(context.Background())

	a.frame = make([]byte, 4*a.opts.Width*a.opts.Height)

	var err error
	a.frameTexture, err = a.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Frame Tex",
		Size:          wgpu.Extent3D{Width: uint32(a.opts.Width), Height: uint32(a.opts.Height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		SampleCount:   1,
	})
	if err != nil {
		return fmt.Errorf("frame texture: %w", err)
	}
	a.frameView, err = a.frameTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("frame view: %w", err)
	}

	a.sampler, err = a.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return fmt.Errorf("sampler: %w", err)
	}

	blitModule, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Fullscreen VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.FullscreenWGSL},
	})
	if err != nil {
		return fmt.Errorf("fullscreen shader: %w", err)
	}

	a.blitPipeline, err = a.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     blitModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     blitModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("blit pipeline: %w", err)
	}

	a.blitGroup, err = a.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: a.blitPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: a.frameView},
			{Binding: 1, Sampler: a.sampler},
		},
	})
	if err != nil {
		return fmt.Errorf("blit bind group: %w", err)
	}
	return nil
}

func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	a.Config.Width = uint32(w)
	a.Config.Height = uint32(h)
	a.Surface.Configure(a.Adapter, a.Device, a.Config)
	if a.gpuRenderer != nil && (w != a.opts.Width || h != a.opts.Height) {
		a.Logger.Warnf("gpu backend renders at fixed %dx%d, window is %dx%d",
			a.opts.Width, a.opts.Height, w, h)
	}
}

// ScrollExposure applies a mouse-wheel delta as a multiplicative
// exposure change of 1.1 per notch.
func (a *App) ScrollExposure(delta float64) {
	factor := math.Pow(1.1, delta)
	var exposure float64
	if a.gpuRenderer != nil {
		exposure = a.gpuRenderer.ScaleExposure(factor)
	} else {
		exposure = a.cpuRenderer.Accumulator().ScaleExposure(factor)
	}
	a.Logger.Debugf("exposure %.4f", exposure)
}

// Render presents one frame.
func (a *App) Render() {
	surfaceTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		a.Logger.Errorf("get surface texture: %v", err)
		return
	}
	defer surfaceTexture.Release()

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		a.Logger.Errorf("surface view: %v", err)
		return
	}
	defer view.Release()

	if a.gpuRenderer != nil {
		if err := a.gpuRenderer.RenderFrame(view); err != nil {
			a.Logger.Errorf("gpu frame: %v", err)
			return
		}
	} else if err := a.presentCPU(view); err != nil {
		a.Logger.Errorf("cpu frame: %v", err)
		return
	}

	a.Surface.Present()
}

func (a *App) presentCPU(view *wgpu.TextureView) error {
	a.cpuRenderer.Accumulator().Snapshot(a.frame)
	a.Queue.WriteTexture(a.frameTexture.AsImageCopy(), a.frame, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(4 * a.opts.Width),
		RowsPerImage: uint32(a.opts.Height),
	}, &wgpu.Extent3D{
		Width:              uint32(a.opts.Width),
		Height:             uint32(a.opts.Height),
		DepthOrArrayLayers: 1,
	})

	encoder, err := a.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("command encoder: %w", err)
	}
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	pass.SetPipeline(a.blitPipeline)
	pass.SetBindGroup(0, a.blitGroup, nil)
	pass.Draw(3, 1, 0, 0)
	if err := pass.End(); err != nil {
		return fmt.Errorf("blit pass: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("encoder finish: %w", err)
	}
	a.Queue.Submit(cmd)
	return nil
}

// Close shuts the renderer down. The window and device are torn down by
// the caller.
func (a *App) Close() {
	if a.cpuRenderer != nil {
		a.cpuRenderer.Stop()
	}
	a.Logger.Infof("session %s: closed", a.Session)
}
