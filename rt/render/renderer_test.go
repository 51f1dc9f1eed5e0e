package render

import (
	"context"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/luxmarch/luxmarch/rt/compile"
	"github.com/luxmarch/luxmarch/rt/core"
)

func emptyProgram(t *testing.T, sky mgl64.Vec3) *compile.Program {
	t.Helper()
	w := core.NewWorld()
	w.SkyColor = sky
	prog, err := compile.Compile(w)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return prog
}

func TestEmptyWorldConvergesToSky(t *testing.T) {
	sky := mgl64.Vec3{0.2, 0.4, 0.6}
	prog := emptyProgram(t, sky)

	r := NewRenderer(prog, Config{Width: 8, Height: 6, NumWorkers: 2, Seed: 1}, core.NewNopLogger())
	r.RenderSamples(context.Background(), 2)

	acc := r.Accumulator()
	if acc.MinSampleCount() < 2 {
		t.Fatalf("min sample count = %d, want >= 2", acc.MinSampleCount())
	}
	for p := 0; p < 8*6; p++ {
		if got := acc.Mean(p); got != sky {
			t.Fatalf("pixel %d mean = %v, want %v", p, got, sky)
		}
	}
}

func TestStopDrainsCleanly(t *testing.T) {
	prog := emptyProgram(t, mgl64.Vec3{1, 1, 1})

	r := NewRenderer(prog, Config{Width: 16, Height: 16, NumWorkers: 4, Seed: 3}, core.NewNopLogger())
	r.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	r.Stop()

	// Stop again is a no-op, and Stop before Start never was one.
	r.Stop()
	NewRenderer(prog, Config{Width: 1, Height: 1}, core.NewNopLogger()).Stop()

	// No writers remain after Stop returns, so counts stay frozen.
	before := r.Accumulator().SampleCount(0)
	time.Sleep(20 * time.Millisecond)
	if after := r.Accumulator().SampleCount(0); after != before {
		t.Fatalf("samples kept arriving after Stop: %d -> %d", before, after)
	}
}

func TestRenderSamplesHonorsCancel(t *testing.T) {
	prog := emptyProgram(t, mgl64.Vec3{1, 1, 1})
	r := NewRenderer(prog, Config{Width: 64, Height: 64, NumWorkers: 1, Seed: 9}, core.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		r.RenderSamples(ctx, 1<<30)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RenderSamples did not return after cancellation")
	}
}
