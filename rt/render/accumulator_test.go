package render

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestIncrementalMeanExact(t *testing.T) {
	a := NewAccumulator(1, 1)

	samples := []float64{1, 3, 5}
	wantMeans := []float64{1, 2, 3}

	for i, s := range samples {
		a.AddSample(0, mgl64.Vec3{s, s, s})
		got := a.Mean(0)
		for ch := 0; ch < 3; ch++ {
			if got[ch] != wantMeans[i] {
				t.Errorf("after sample %d: mean = %v, want %v", i+1, got, wantMeans[i])
			}
		}
		if a.SampleCount(0) != uint64(i+1) {
			t.Errorf("after sample %d: count = %d", i+1, a.SampleCount(0))
		}
	}
}

func TestMeanIndependentOfPixelOrder(t *testing.T) {
	a := NewAccumulator(2, 1)
	b := NewAccumulator(2, 1)

	// Interleaved vs grouped delivery across pixels
	a.AddSample(0, mgl64.Vec3{1, 0, 0})
	a.AddSample(1, mgl64.Vec3{10, 0, 0})
	a.AddSample(0, mgl64.Vec3{3, 0, 0})
	a.AddSample(1, mgl64.Vec3{20, 0, 0})

	b.AddSample(0, mgl64.Vec3{1, 0, 0})
	b.AddSample(0, mgl64.Vec3{3, 0, 0})
	b.AddSample(1, mgl64.Vec3{10, 0, 0})
	b.AddSample(1, mgl64.Vec3{20, 0, 0})

	if a.Mean(0) != b.Mean(0) || a.Mean(1) != b.Mean(1) {
		t.Errorf("delivery order changed the means: %v/%v vs %v/%v",
			a.Mean(0), a.Mean(1), b.Mean(0), b.Mean(1))
	}
}

func TestToneMapProperties(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{1, 0.5},
		{3, 0.75},
	}
	for _, c := range cases {
		if got := ToneMap(c.in); math.Abs(got-c.want) > 1e-12 {
			t.Errorf("ToneMap(%v) = %v, want %v", c.in, got, c.want)
		}
	}

	// Monotonic and bounded in [0,1)
	prev := -1.0
	for v := 0.0; v < 1e6; v = v*3 + 0.25 {
		got := ToneMap(v)
		if got < 0 || got >= 1 {
			t.Fatalf("ToneMap(%v) = %v outside [0,1)", v, got)
		}
		if got <= prev && v > 0 {
			t.Fatalf("ToneMap not monotonic at %v", v)
		}
		prev = got
	}
	if got := ToneMap(1e12); got < 0.999999 {
		t.Errorf("ToneMap(1e12) = %v, want ~1", got)
	}
}

func TestSnapshotAppliesExposure(t *testing.T) {
	a := NewAccumulator(1, 1)
	a.AddSample(0, mgl64.Vec3{1, 1, 1})

	buf := make([]byte, 4)
	a.Snapshot(buf)
	// v=1, exposure=1 -> 0.5 -> 127
	if buf[0] != 127 {
		t.Errorf("channel = %d, want 127", buf[0])
	}
	if buf[3] != 0xFF {
		t.Errorf("alpha = %d, want 255", buf[3])
	}

	a.SetExposure(0)
	a.Snapshot(buf)
	if buf[0] != 0 {
		t.Errorf("zero exposure channel = %d, want 0", buf[0])
	}
}

func TestScaleExposure(t *testing.T) {
	a := NewAccumulator(1, 1)
	got := a.ScaleExposure(1.1)
	if math.Abs(got-1.1) > 1e-12 {
		t.Errorf("exposure = %v, want 1.1", got)
	}
	a.ScaleExposure(1 / 1.1)
	if math.Abs(a.Exposure()-1.0) > 1e-12 {
		t.Errorf("exposure = %v, want 1.0", a.Exposure())
	}
}
