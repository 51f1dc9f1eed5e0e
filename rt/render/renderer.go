package render

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/luxmarch/luxmarch/rt/compile"
	"github.com/luxmarch/luxmarch/rt/core"
	"github.com/luxmarch/luxmarch/rt/trace"
)

// sampleQueueDepth bounds the producer/consumer channel so producers
// block instead of growing an unbounded backlog.
const sampleQueueDepth = 4096

// Sample is one finished path sample for one pixel.
type Sample struct {
	Pixel    int
	Radiance mgl64.Vec3
}

// Config controls the CPU renderer.
type Config struct {
	Width      int
	Height     int
	NumWorkers int   // 0 = GOMAXPROCS
	Seed       int64 // base seed; worker i derives its own stream from it
}

// Renderer runs the CPU producer/consumer pipeline: worker goroutines
// sweep pixel indices round-robin and trace full paths, a single
// consumer folds their samples into the accumulator. The consumer being
// the only writer serializes per-pixel updates.
type Renderer struct {
	prog   *compile.Program
	config Config
	acc    *Accumulator
	logger core.Logger

	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewRenderer(prog *compile.Program, config Config, logger core.Logger) *Renderer {
	if config.NumWorkers <= 0 {
		config.NumWorkers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = core.NewNopLogger()
	}
	return &Renderer{
		prog:   prog,
		config: config,
		acc:    NewAccumulator(config.Width, config.Height),
		logger: logger,
	}
}

// Accumulator exposes the progressive image for presentation.
func (r *Renderer) Accumulator() *Accumulator { return r.acc }

// Start launches the workers and the consumer. Rendering continues until
// Stop (or the parent context) cancels it.
func (r *Renderer) Start(ctx context.Context) {
	if r.started {
		return
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	samples := make(chan Sample, sampleQueueDepth)
	var producers sync.WaitGroup

	r.logger.Infof("cpu renderer: %d workers, %dx%d", r.config.NumWorkers, r.config.Width, r.config.Height)

	for i := 0; i < r.config.NumWorkers; i++ {
		producers.Add(1)
		go r.produce(ctx, i, samples, &producers)
	}

	// Once every producer has exited the channel can close, which lets
	// the consumer drain the tail and observe end-of-stream.
	go func() {
		producers.Wait()
		close(samples)
	}()

	go r.consume(samples)
}

// Stop cancels rendering and blocks until the consumer has drained the
// sample queue.
func (r *Renderer) Stop() {
	if !r.started {
		return
	}
	r.cancel()
	<-r.done
	r.started = false
	r.logger.Infof("cpu renderer: stopped")
}

// RenderSamples runs the pipeline synchronously until every pixel has
// received at least samplesPerPixel samples. Used by the headless path.
func (r *Renderer) RenderSamples(ctx context.Context, samplesPerPixel int) {
	r.Start(ctx)
	defer r.Stop()

	target := uint64(samplesPerPixel)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if r.acc.MinSampleCount() >= target {
			return
		}
	}
}

// produce is one worker: sweep the image round-robin forever, tracing
// one full path per pixel visit.
func (r *Renderer) produce(ctx context.Context, worker int, out chan<- Sample, wg *sync.WaitGroup) {
	defer wg.Done()

	shader := trace.NewShader(r.prog)
	rng := rand.New(rand.NewSource(r.config.Seed + int64(worker)*0x9E3779B9))
	cam := r.prog.Camera
	pixels := r.config.Width * r.config.Height

	// Workers start at staggered offsets so early frames are not
	// dominated by the top rows.
	pixel := (worker * pixels) / r.config.NumWorkers

	for {
		x := pixel % r.config.Width
		y := pixel / r.config.Width

		origin, dir := cam.PrimaryRay(x, y, r.config.Width, r.config.Height, rng.Float64(), rng.Float64())
		radiance := shader.Radiance(origin, dir, 0, rng)

		select {
		case out <- Sample{Pixel: pixel, Radiance: radiance}:
		case <-ctx.Done():
			return
		}

		pixel++
		if pixel == pixels {
			pixel = 0
		}
	}
}

// consume is the single accumulating authority.
func (r *Renderer) consume(samples <-chan Sample) {
	defer close(r.done)
	for s := range samples {
		r.acc.AddSample(s.Pixel, s.Radiance)
	}
}
