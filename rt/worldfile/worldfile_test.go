package worldfile

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxmarch/luxmarch/rt/core"
)

const demoScene = `{
  "max_ray_depth": 4,
  "sky_color": [0.529, 0.808, 0.98],
  "objects": [
    {"Sphere": {"center": [0, 0, 2], "radius": 0.5, "material": "sun"}},
    {"Min": [
      {"Box": {"lower_corner": [-1, -1, 3], "upper_corner": [1, 1, 3.2], "material": "wall"}},
      {"Inv": {"Sphere": {"center": [0, 0, 3], "radius": 0.4, "material": "wall"}}}
    ]},
    {"PosModulo": [
      {"Torus": {"major_radius": 1, "minor_radius": 0.2, "center": [0, 2, 0], "material": "wall"}},
      6.0
    ]},
    {"Smooth": {"alpha": 8, "children": [
      {"Cylinder": {"center": [2, 0, 2], "height": 1, "radius": 0.3, "material": "sun"}},
      {"Sphere": {"center": [2, 0.7, 2], "radius": 0.3, "material": "wall"}}
    ]}}
  ],
  "materials": {
    "sun": {"color": [1, 1, 0.8], "emitance": [50, 50, 40]},
    "wall": {"color": [0.2, 0.8, 0.2], "roughness": 0.7, "metalness": 0.1}
  },
  "camera": {
    "position": [0, 0, -1],
    "look_direction": [0, 0, 1],
    "fov_y": 60
  }
}`

func TestDecodeDemoScene(t *testing.T) {
	w, err := Decode(strings.NewReader(demoScene))
	require.NoError(t, err)

	assert.Equal(t, 4, w.MaxRayDepth)
	assert.Equal(t, mgl64.Vec3{0.529, 0.808, 0.98}, w.SkyColor)
	require.Len(t, w.Roots, 4)

	wantKinds := []core.NodeKind{core.KindSphere, core.KindMin, core.KindPosModulo, core.KindSmooth}
	for i, root := range w.Roots {
		assert.Equal(t, wantKinds[i], w.Tree.Node(root).Kind, "root %d", i)
	}

	mod := w.Tree.Node(w.Roots[2])
	assert.Equal(t, 6.0, mod.Period)
	assert.Equal(t, core.KindTorus, w.Tree.Node(mod.Left).Kind)

	sm := w.Tree.Node(w.Roots[3])
	assert.Equal(t, 8.0, sm.Alpha)
	assert.Len(t, sm.Children, 2)
}

func TestMaterialDefaults(t *testing.T) {
	w, err := Decode(strings.NewReader(demoScene))
	require.NoError(t, err)

	wall := w.Materials["wall"]
	assert.Equal(t, mgl64.Vec3{}, wall.Emitance, "emitance defaults to black")
	assert.False(t, wall.IsPortal)
	assert.Equal(t, core.IdentityRotation(), wall.Rotation)
	assert.Equal(t, mgl64.Vec3{}, wall.Translation)
	assert.Equal(t, mgl64.Vec3{}, wall.RotateAround)
}

func TestCameraDefaults(t *testing.T) {
	w, err := Decode(strings.NewReader(demoScene))
	require.NoError(t, err)
	require.NotNil(t, w.Camera)

	assert.Equal(t, mgl64.Vec3{0, -1, 0}, w.Camera.UpDirection)
	assert.Equal(t, 60.0, w.Camera.FovY)
	assert.Equal(t, 90.0, w.Camera.FovX)

	// No camera block at all leaves the world's camera unset.
	w2, err := Decode(strings.NewReader(`{"max_ray_depth":1,"sky_color":[0,0,0],"objects":[],"materials":{}}`))
	require.NoError(t, err)
	assert.Nil(t, w2.Camera)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"unknown variant": `{"max_ray_depth":1,"sky_color":[0,0,0],"materials":{},
			"objects":[{"Cone":{"radius":1}}]}`,
		"two tags": `{"max_ray_depth":1,"sky_color":[0,0,0],"materials":{},
			"objects":[{"Sphere":{"radius":1},"Box":{}}]}`,
		"short posmodulo": `{"max_ray_depth":1,"sky_color":[0,0,0],"materials":{},
			"objects":[{"PosModulo":[{"Sphere":{"radius":1,"material":"m","center":[0,0,0]}}]}]}`,
		"not json": `]`,
	}
	for name, in := range cases {
		_, err := Decode(strings.NewReader(in))
		assert.Error(t, err, name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("does-not-exist.json")
	require.Error(t, err)
}
