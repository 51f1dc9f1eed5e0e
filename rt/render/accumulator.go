// Package render accumulates stochastic path samples into a progressive
// image and drives the CPU worker pipeline that produces them.
package render

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Accumulator keeps the per-pixel running mean radiance of a width x
// height image. Updates for one pixel must come from a single writer;
// the renderer's consumer goroutine is that writer. Snapshot and
// exposure changes may come from any goroutine.
type Accumulator struct {
	mu     sync.Mutex
	width  int
	height int

	mean   []mgl64.Vec3
	counts []uint64

	exposure float64
}

func NewAccumulator(width, height int) *Accumulator {
	return &Accumulator{
		width:    width,
		height:   height,
		mean:     make([]mgl64.Vec3, width*height),
		counts:   make([]uint64, width*height),
		exposure: 1.0,
	}
}

func (a *Accumulator) Width() int  { return a.width }
func (a *Accumulator) Height() int { return a.height }

// AddSample folds one radiance sample into the pixel's running mean.
// The incremental form is exact for the arithmetic mean, so samples may
// arrive in any order across pixels.
func (a *Accumulator) AddSample(pixel int, radiance mgl64.Vec3) {
	a.mu.Lock()
	a.counts[pixel]++
	k := float64(a.counts[pixel])
	m := a.mean[pixel]
	a.mean[pixel] = m.Add(radiance.Sub(m).Mul(1 / k))
	a.mu.Unlock()
}

// SampleCount returns how many samples pixel has received.
func (a *Accumulator) SampleCount(pixel int) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[pixel]
}

// MinSampleCount returns the smallest per-pixel sample count, i.e. how
// many full sweeps have definitely completed.
func (a *Accumulator) MinSampleCount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.counts) == 0 {
		return 0
	}
	minC := a.counts[0]
	for _, c := range a.counts[1:] {
		if c < minC {
			minC = c
		}
	}
	return minC
}

// Mean returns the current mean radiance of a pixel.
func (a *Accumulator) Mean(pixel int) mgl64.Vec3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mean[pixel]
}

// SetExposure replaces the exposure multiplier.
func (a *Accumulator) SetExposure(e float64) {
	a.mu.Lock()
	a.exposure = e
	a.mu.Unlock()
}

// ScaleExposure multiplies the exposure, e.g. by 1.1^delta for a scroll
// wheel delta.
func (a *Accumulator) ScaleExposure(factor float64) float64 {
	a.mu.Lock()
	a.exposure *= factor
	e := a.exposure
	a.mu.Unlock()
	return e
}

func (a *Accumulator) Exposure() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exposure
}

// ToneMap compresses a scalar radiance channel into [0,1) with the
// Reinhard curve v/(v+1).
func ToneMap(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return v / (v + 1)
}

// Snapshot tone-maps the current means into dst as tightly packed RGBA8,
// which must hold width*height*4 bytes. The lock is held only for the
// duration of the copy, mirroring the brief hold of the presentation
// path.
func (a *Accumulator) Snapshot(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, m := range a.mean {
		dst[i*4+0] = quantize(m[0] * a.exposure)
		dst[i*4+1] = quantize(m[1] * a.exposure)
		dst[i*4+2] = quantize(m[2] * a.exposure)
		dst[i*4+3] = 0xFF
	}
}

func quantize(v float64) byte {
	return byte(ToneMap(v) * 255.999)
}
