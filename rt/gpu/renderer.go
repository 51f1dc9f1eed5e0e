package gpu

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/luxmarch/luxmarch/rt/compile"
	"github.com/luxmarch/luxmarch/rt/core"
	"github.com/luxmarch/luxmarch/rt/gpu/shaders"
)

// Renderer runs one progressive frame per call: max_depth+1 march
// passes walking the paths forward, the same number of shade passes in
// reverse, then the collector blending into the accumulation buffer and
// the surface.
type Renderer struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	prog    *compile.Program
	manager *BufferManager
	logger  core.Logger

	marchPipeline   *wgpu.ComputePipeline
	shadePipeline   *wgpu.ComputePipeline
	collectPipeline *wgpu.RenderPipeline

	width  uint32
	height uint32

	mu          sync.Mutex
	renderCount uint32
	exposure    float64
	rng         *rand.Rand
}

// NewRenderer compiles the pipelines, uploads the scene and wires the
// per-depth bind groups. format is the surface format the collector
// renders into.
func NewRenderer(device *wgpu.Device, format wgpu.TextureFormat, prog *compile.Program, width, height uint32, seed int64, logger core.Logger) (*Renderer, error) {
	r := &Renderer{
		device:   device,
		queue:    device.GetQueue(),
		prog:     prog,
		manager:  NewBufferManager(device),
		logger:   logger,
		width:    width,
		height:   height,
		exposure: 1.0,
		rng:      rand.New(rand.NewSource(seed)),
	}

	marchModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "March CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.MarchWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("march shader: %w", err)
	}
	shadeModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Shade CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.ShadeWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("shade shader: %w", err)
	}
	collectModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Collect VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.CollectWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("collect shader: %w", err)
	}

	r.marchPipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "March Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     marchModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("march pipeline: %w", err)
	}
	r.shadePipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Shade Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shadeModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("shade pipeline: %w", err)
	}

	r.collectPipeline, err = device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Collect Pipeline",
		Vertex: wgpu.VertexState{
			Module:     collectModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     collectModule,
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
		return nil, fmt.Errorf("collect pipeline: %w", err)
	}

	if err := r.manager.UploadProgram(prog, width, height, seed); err != nil {
		return nil, err
	}
	r.manager.CreateBindGroups(r.marchPipeline, r.shadePipeline, r.collectPipeline)

	r.logger.Infof("gpu renderer: %dx%d, %d records, %d materials, depth %d",
		width, height, len(prog.Objects), len(prog.Materials), prog.MaxRayDepth)
	return r, nil
}

// SampleCount returns how many frames have been accumulated.
func (r *Renderer) SampleCount() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renderCount
}

// ScaleExposure multiplies the display exposure and returns the new
// value. The accumulated radiance is untouched.
func (r *Renderer) ScaleExposure(factor float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exposure *= factor
	return r.exposure
}

func (r *Renderer) Exposure() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exposure
}

// RenderFrame records and submits one full progressive frame targeting
// the given surface view.
func (r *Renderer) RenderFrame(view *wgpu.TextureView) error {
	r.mu.Lock()
	r.renderCount++
	count := r.renderCount
	exposure := float32(r.exposure)
	seed := r.rng.Uint32()
	r.mu.Unlock()

	r.manager.WriteGlobals(r.prog, r.width, r.height, seed, count, exposure)

	encoder, err := r.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("command encoder: %w", err)
	}

	depths := len(r.manager.MarchBindGroups)
	groups := (r.width*r.height + 63) / 64

	for d := 0; d < depths; d++ {
		pass := encoder.BeginComputePass(nil)
		pass.SetPipeline(r.marchPipeline)
		pass.SetBindGroup(0, r.manager.MarchBindGroups[d], nil)
		pass.DispatchWorkgroups(groups, 1, 1)
		if err := pass.End(); err != nil {
			return fmt.Errorf("march pass %d: %w", d, err)
		}
	}
	for d := depths - 1; d >= 0; d-- {
		pass := encoder.BeginComputePass(nil)
		pass.SetPipeline(r.shadePipeline)
		pass.SetBindGroup(0, r.manager.ShadeBindGroups[d], nil)
		pass.DispatchWorkgroups(groups, 1, 1)
		if err := pass.End(); err != nil {
			return fmt.Errorf("shade pass %d: %w", d, err)
		}
	}

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	rPass.SetPipeline(r.collectPipeline)
	rPass.SetBindGroup(0, r.manager.CollectBindGroup, nil)
	rPass.Draw(3, 1, 0, 0)
	if err := rPass.End(); err != nil {
		return fmt.Errorf("collect pass: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("encoder finish: %w", err)
	}
	r.queue.Submit(cmd)
	return nil
}
