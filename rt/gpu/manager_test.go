package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/luxmarch/luxmarch/rt/core"
)

func f32At(t *testing.T, buf []byte, offset int) float32 {
	t.Helper()
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[offset:]))
}

func TestPackGlobalsLayout(t *testing.T) {
	cam := core.DefaultCamera()
	buf := packGlobals(cam, [3]float64{0.25, 0.5, 0.75}, 640, 480, 4, 7, 0xDEAD, 3, 1.5)

	if len(buf) != globalsSize {
		t.Fatalf("len = %d, want %d", len(buf), globalsSize)
	}

	// cam_pos at 0, forward at 48 (default camera looks +Z)
	if f32At(t, buf, 0) != 0 || f32At(t, buf, 4) != 0 || f32At(t, buf, 8) != 0 {
		t.Error("cam_pos should be origin")
	}
	if f32At(t, buf, 56) != 1 {
		t.Errorf("forward.z = %v, want 1", f32At(t, buf, 56))
	}

	// fov tangents ride in the basis w components, tan(45 deg) = 1
	if got := f32At(t, buf, 28); math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("right.w = %v, want 1", got)
	}
	if got := f32At(t, buf, 44); math.Abs(float64(got)-1) > 1e-6 {
		t.Errorf("up.w = %v, want 1", got)
	}

	if f32At(t, buf, 64) != 0.25 || f32At(t, buf, 68) != 0.5 || f32At(t, buf, 72) != 0.75 {
		t.Error("sky_color misplaced")
	}

	scalars := []struct {
		offset int
		want   uint32
	}{
		{80, 640}, {84, 480}, {88, 4}, {92, 7}, {96, 0xDEAD}, {100, 3},
	}
	for _, s := range scalars {
		if got := binary.LittleEndian.Uint32(buf[s.offset:]); got != s.want {
			t.Errorf("offset %d = %d, want %d", s.offset, got, s.want)
		}
	}
	if got := f32At(t, buf, 104); got != 1.5 {
		t.Errorf("exposure = %v, want 1.5", got)
	}
}

func TestStridesMatchShaderStructs(t *testing.T) {
	// Each GPU struct is a whole number of vec4s.
	for name, stride := range map[string]int{
		"ray": rayStride, "hit": hitStride, "color": colorStride,
		"globals": globalsSize, "pass params": passParamsSize,
	} {
		if stride%16 != 0 {
			t.Errorf("%s stride %d is not vec4 aligned", name, stride)
		}
	}
}
