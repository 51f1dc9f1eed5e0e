// Package gpu drives the multi-pass WebGPU pipeline: march passes walk
// the path forward one depth at a time, shade passes fold radiance back
// from the deepest bounce, and a collector pass blends the frame into
// the running per-pixel mean on its way to the surface.
package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/luxmarch/luxmarch/rt/compile"
	"github.com/luxmarch/luxmarch/rt/core"
)

// MaxRecords is the slot capacity of the WGSL evaluator. Scenes that
// compile to more records cannot be uploaded.
const MaxRecords = 256

const (
	rayStride      = 32 // origin vec4 + dir vec4
	hitStride      = 32 // pos vec4 + normal vec4
	colorStride    = 16 // radiance vec4
	globalsSize    = 112
	passParamsSize = 16
)

// BufferManager owns the GPU buffers and per-depth bind groups of the
// pipeline. Depth d's march reads ray buffer d and writes ray buffer
// d+1; shade d combines color buffer d+1 into color buffer d.
type BufferManager struct {
	Device *wgpu.Device

	ObjectsBuf   *wgpu.Buffer
	MaterialsBuf *wgpu.Buffer
	GlobalsBuf   *wgpu.Buffer

	PassParamBufs []*wgpu.Buffer
	RayBufs       []*wgpu.Buffer
	ColorBufs     []*wgpu.Buffer
	HitBufs       []*wgpu.Buffer
	RandomBufs    []*wgpu.Buffer
	AccumBuf      *wgpu.Buffer

	MarchBindGroups  []*wgpu.BindGroup
	ShadeBindGroups  []*wgpu.BindGroup
	CollectBindGroup *wgpu.BindGroup
}

func NewBufferManager(device *wgpu.Device) *BufferManager {
	return &BufferManager{Device: device}
}

func (m *BufferManager) ensureBuffer(name string, buf **wgpu.Buffer, data []byte, usage wgpu.BufferUsage) {
	neededSize := uint64(len(data))
	if neededSize%4 != 0 {
		neededSize += 4 - (neededSize % 4)
	}

	current := *buf
	if current == nil || current.GetSize() < neededSize {
		if current != nil {
			current.Release()
		}
		newBuf, err := m.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name,
			Size:  neededSize,
			Usage: usage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			panic(err)
		}
		*buf = newBuf
	}
	if len(data) > 0 {
		m.Device.GetQueue().WriteBuffer(*buf, 0, data)
	}
}

// UploadProgram uploads the compiled scene and allocates the per-depth
// buffer chains for a width x height image. The random buffers hold one
// u32 per pixel per depth, reseeded from the frame counter in-shader.
func (m *BufferManager) UploadProgram(prog *compile.Program, width, height uint32, seed int64) error {
	if len(prog.Objects) > MaxRecords {
		return fmt.Errorf("scene compiles to %d records, shader capacity is %d", len(prog.Objects), MaxRecords)
	}

	m.ensureBuffer("ObjectsBuf", &m.ObjectsBuf, prog.ObjectBytes(), wgpu.BufferUsageStorage)
	m.ensureBuffer("MaterialsBuf", &m.MaterialsBuf, prog.MaterialBytes(), wgpu.BufferUsageStorage)
	m.ensureBuffer("GlobalsBuf", &m.GlobalsBuf, make([]byte, globalsSize), wgpu.BufferUsageUniform)

	depth := prog.MaxRayDepth
	pixels := uint64(width) * uint64(height)

	newStorage := func(label string, size uint64) *wgpu.Buffer {
		buf, err := m.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: label,
			Size:  size,
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			panic(err)
		}
		return buf
	}

	m.RayBufs = make([]*wgpu.Buffer, depth+2)
	m.ColorBufs = make([]*wgpu.Buffer, depth+2)
	for i := range m.RayBufs {
		m.RayBufs[i] = newStorage(fmt.Sprintf("RayBuf%d", i), rayStride*pixels)
		m.ColorBufs[i] = newStorage(fmt.Sprintf("ColorBuf%d", i), colorStride*pixels)
	}

	rng := rand.New(rand.NewSource(seed))
	m.HitBufs = make([]*wgpu.Buffer, depth+1)
	m.RandomBufs = make([]*wgpu.Buffer, depth+1)
	m.PassParamBufs = make([]*wgpu.Buffer, depth+1)
	randomData := make([]byte, 4*pixels)
	for i := range m.HitBufs {
		m.HitBufs[i] = newStorage(fmt.Sprintf("HitBuf%d", i), hitStride*pixels)

		rng.Read(randomData)
		m.RandomBufs[i] = newStorage(fmt.Sprintf("RandomBuf%d", i), uint64(len(randomData)))
		m.Device.GetQueue().WriteBuffer(m.RandomBufs[i], 0, randomData)

		params := make([]byte, passParamsSize)
		binary.LittleEndian.PutUint32(params[0:4], uint32(i))
		buf, err := m.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("PassParams%d", i),
			Size:  passParamsSize,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			panic(err)
		}
		m.Device.GetQueue().WriteBuffer(buf, 0, params)
		m.PassParamBufs[i] = buf
	}

	m.AccumBuf = newStorage("AccumBuf", colorStride*pixels)
	return nil
}

// WriteGlobals refreshes the per-frame uniform.
func (m *BufferManager) WriteGlobals(prog *compile.Program, width, height, frameSeed, renderCount uint32, exposure float32) {
	data := packGlobals(&prog.Camera, prog.SkyColor, width, height,
		uint32(prog.MaxRayDepth), uint32(len(prog.Objects)), frameSeed, renderCount, exposure)
	m.Device.GetQueue().WriteBuffer(m.GlobalsBuf, 0, data)
}

// packGlobals serializes the Globals uniform exactly as the WGSL struct
// lays it out: five vec4s then eight 32-bit scalars.
func packGlobals(cam *core.Camera, sky [3]float64, width, height, maxDepth, objectCount, frameSeed, renderCount uint32, exposure float32) []byte {
	right, up, forward := cam.Basis()
	tx := math.Tan(mgl64.DegToRad(cam.FovX) / 2)
	ty := math.Tan(mgl64.DegToRad(cam.FovY) / 2)

	buf := make([]byte, globalsSize)
	writeVec4 := func(offset int, x, y, z, w float64) {
		binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(float32(x)))
		binary.LittleEndian.PutUint32(buf[offset+4:], math.Float32bits(float32(y)))
		binary.LittleEndian.PutUint32(buf[offset+8:], math.Float32bits(float32(z)))
		binary.LittleEndian.PutUint32(buf[offset+12:], math.Float32bits(float32(w)))
	}

	writeVec4(0, cam.Position[0], cam.Position[1], cam.Position[2], 0)
	writeVec4(16, right[0], right[1], right[2], tx)
	writeVec4(32, up[0], up[1], up[2], ty)
	writeVec4(48, forward[0], forward[1], forward[2], 0)
	writeVec4(64, sky[0], sky[1], sky[2], 0)

	binary.LittleEndian.PutUint32(buf[80:], width)
	binary.LittleEndian.PutUint32(buf[84:], height)
	binary.LittleEndian.PutUint32(buf[88:], maxDepth)
	binary.LittleEndian.PutUint32(buf[92:], objectCount)
	binary.LittleEndian.PutUint32(buf[96:], frameSeed)
	binary.LittleEndian.PutUint32(buf[100:], renderCount)
	binary.LittleEndian.PutUint32(buf[104:], math.Float32bits(exposure))
	return buf
}

// CreateBindGroups builds the per-depth bind groups against the
// pipelines' auto layouts. Must run after UploadProgram.
func (m *BufferManager) CreateBindGroups(march, shade *wgpu.ComputePipeline, collect *wgpu.RenderPipeline) {
	depths := len(m.HitBufs)

	m.MarchBindGroups = make([]*wgpu.BindGroup, depths)
	for d := 0; d < depths; d++ {
		bg, err := m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("MarchBG%d", d),
			Layout: march.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: m.GlobalsBuf, Size: wgpu.WholeSize},
				{Binding: 1, Buffer: m.PassParamBufs[d], Size: wgpu.WholeSize},
				{Binding: 2, Buffer: m.ObjectsBuf, Size: wgpu.WholeSize},
				{Binding: 3, Buffer: m.MaterialsBuf, Size: wgpu.WholeSize},
				{Binding: 4, Buffer: m.RayBufs[d], Size: wgpu.WholeSize},
				{Binding: 5, Buffer: m.RayBufs[d+1], Size: wgpu.WholeSize},
				{Binding: 6, Buffer: m.HitBufs[d], Size: wgpu.WholeSize},
				{Binding: 7, Buffer: m.RandomBufs[d], Size: wgpu.WholeSize},
			},
		})
		if err != nil {
			panic(err)
		}
		m.MarchBindGroups[d] = bg
	}

	m.ShadeBindGroups = make([]*wgpu.BindGroup, depths)
	for d := 0; d < depths; d++ {
		bg, err := m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("ShadeBG%d", d),
			Layout: shade.GetBindGroupLayout(0),
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: m.GlobalsBuf, Size: wgpu.WholeSize},
				{Binding: 1, Buffer: m.PassParamBufs[d], Size: wgpu.WholeSize},
				{Binding: 2, Buffer: m.MaterialsBuf, Size: wgpu.WholeSize},
				{Binding: 3, Buffer: m.RayBufs[d], Size: wgpu.WholeSize},
				{Binding: 4, Buffer: m.RayBufs[d+1], Size: wgpu.WholeSize},
				{Binding: 5, Buffer: m.HitBufs[d], Size: wgpu.WholeSize},
				{Binding: 6, Buffer: m.ColorBufs[d+1], Size: wgpu.WholeSize},
				{Binding: 7, Buffer: m.ColorBufs[d], Size: wgpu.WholeSize},
			},
		})
		if err != nil {
			panic(err)
		}
		m.ShadeBindGroups[d] = bg
	}

	bg, err := m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "CollectBG",
		Layout: collect.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: m.GlobalsBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: m.ColorBufs[0], Size: wgpu.WholeSize},
			{Binding: 2, Buffer: m.AccumBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		panic(err)
	}
	m.CollectBindGroup = bg
}
