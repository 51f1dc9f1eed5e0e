// Package worldfile loads scene descriptions from JSON files.
//
// The on-disk format mirrors the in-memory scene model: a record with
// max_ray_depth, sky_color, an ordered object list, a named material
// map and an optional camera. Object variants are externally tagged,
// so an object is a one-key JSON object whose key names the variant:
//
//	{"Sphere": {"center": [0,0,2], "radius": 0.5, "material": "sun"}}
//	{"Min": [{"Sphere": ...}, {"Box": ...}]}
//	{"PosModulo": [{"Sphere": ...}, 4.0]}
package worldfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/luxmarch/luxmarch/rt/core"
)

type vec3 [3]float64

func (v vec3) vec() mgl64.Vec3 { return mgl64.Vec3{v[0], v[1], v[2]} }

type rotationSpec struct {
	From vec3 `json:"from"`
	To   vec3 `json:"to"`
}

type materialSpec struct {
	Color        vec3          `json:"color"`
	Emitance     vec3          `json:"emitance"`
	Metalness    float64       `json:"metalness"`
	Roughness    float64       `json:"roughness"`
	IsPortal     bool          `json:"is_portal"`
	Translation  vec3          `json:"translation"`
	RotateAround vec3          `json:"rotate_around"`
	Rotation     *rotationSpec `json:"rotation"`
}

type cameraSpec struct {
	Position      vec3     `json:"position"`
	LookDirection vec3     `json:"look_direction"`
	UpDirection   *vec3    `json:"up_direction"`
	FovY          *float64 `json:"fov_y"`
	FovX          *float64 `json:"fov_x"`
}

type worldSpec struct {
	MaxRayDepth int                     `json:"max_ray_depth"`
	SkyColor    vec3                    `json:"sky_color"`
	Objects     []objectSpec            `json:"objects"`
	Materials   map[string]materialSpec `json:"materials"`
	Camera      *cameraSpec             `json:"camera"`
}

type sphereSpec struct {
	Center   vec3    `json:"center"`
	Radius   float64 `json:"radius"`
	Material string  `json:"material"`
}

type boxSpec struct {
	LowerCorner vec3   `json:"lower_corner"`
	UpperCorner vec3   `json:"upper_corner"`
	Material    string `json:"material"`
}

type cylinderSpec struct {
	Center   vec3    `json:"center"`
	Height   float64 `json:"height"`
	Radius   float64 `json:"radius"`
	Material string  `json:"material"`
}

type torusSpec struct {
	MajorRadius float64 `json:"major_radius"`
	MinorRadius float64 `json:"minor_radius"`
	Center      vec3    `json:"center"`
	Material    string  `json:"material"`
}

type smoothSpec struct {
	Alpha    float64      `json:"alpha"`
	Children []objectSpec `json:"children"`
}

// objectSpec is one externally-tagged object variant.
type objectSpec struct {
	kind string

	sphere   *sphereSpec
	box      *boxSpec
	cylinder *cylinderSpec
	torus    *torusSpec
	smooth   *smoothSpec

	child  *objectSpec     // Inv
	pair   *[2]objectSpec  // Min, Max
	period float64         // PosModulo
}

func (o *objectSpec) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf("object must carry exactly one variant tag, got %d", len(tagged))
	}

	var tag string
	var raw json.RawMessage
	for tag, raw = range tagged {
	}
	o.kind = tag

	switch tag {
	case "Sphere":
		o.sphere = new(sphereSpec)
		return json.Unmarshal(raw, o.sphere)
	case "Box":
		o.box = new(boxSpec)
		return json.Unmarshal(raw, o.box)
	case "Cylinder":
		o.cylinder = new(cylinderSpec)
		return json.Unmarshal(raw, o.cylinder)
	case "Torus":
		o.torus = new(torusSpec)
		return json.Unmarshal(raw, o.torus)
	case "Smooth":
		o.smooth = new(smoothSpec)
		return json.Unmarshal(raw, o.smooth)
	case "Inv":
		o.child = new(objectSpec)
		return json.Unmarshal(raw, o.child)
	case "Min", "Max":
		o.pair = new([2]objectSpec)
		return json.Unmarshal(raw, o.pair)
	case "PosModulo":
		var tuple []json.RawMessage
		if err := json.Unmarshal(raw, &tuple); err != nil {
			return err
		}
		if len(tuple) != 2 {
			return fmt.Errorf("PosModulo wants [object, period], got %d elements", len(tuple))
		}
		o.child = new(objectSpec)
		if err := json.Unmarshal(tuple[0], o.child); err != nil {
			return err
		}
		return json.Unmarshal(tuple[1], &o.period)
	default:
		return fmt.Errorf("unknown object variant %q", tag)
	}
}

func (o *objectSpec) build(t *core.Tree) (core.NodeID, error) {
	switch o.kind {
	case "Sphere":
		return t.Sphere(o.sphere.Center.vec(), o.sphere.Radius, o.sphere.Material), nil
	case "Box":
		return t.Box(o.box.LowerCorner.vec(), o.box.UpperCorner.vec(), o.box.Material), nil
	case "Cylinder":
		return t.Cylinder(o.cylinder.Center.vec(), o.cylinder.Height, o.cylinder.Radius, o.cylinder.Material), nil
	case "Torus":
		return t.Torus(o.torus.MajorRadius, o.torus.MinorRadius, o.torus.Center.vec(), o.torus.Material), nil
	case "Inv":
		child, err := o.child.build(t)
		if err != nil {
			return 0, err
		}
		return t.Inv(child), nil
	case "Min", "Max":
		left, err := o.pair[0].build(t)
		if err != nil {
			return 0, err
		}
		right, err := o.pair[1].build(t)
		if err != nil {
			return 0, err
		}
		if o.kind == "Min" {
			return t.Min(left, right), nil
		}
		return t.Max(left, right), nil
	case "Smooth":
		children := make([]core.NodeID, 0, len(o.smooth.Children))
		for i := range o.smooth.Children {
			id, err := o.smooth.Children[i].build(t)
			if err != nil {
				return 0, err
			}
			children = append(children, id)
		}
		return t.Smooth(o.smooth.Alpha, children...), nil
	case "PosModulo":
		child, err := o.child.build(t)
		if err != nil {
			return 0, err
		}
		return t.PosModulo(child, o.period), nil
	default:
		return 0, fmt.Errorf("unknown object variant %q", o.kind)
	}
}

func (m materialSpec) material() core.Material {
	rot := core.IdentityRotation()
	if m.Rotation != nil {
		rot = core.Rotation{From: m.Rotation.From.vec(), To: m.Rotation.To.vec()}
	}
	return core.Material{
		Color:        m.Color.vec(),
		Emitance:     m.Emitance.vec(),
		Metalness:    m.Metalness,
		Roughness:    m.Roughness,
		IsPortal:     m.IsPortal,
		Translation:  m.Translation.vec(),
		RotateAround: m.RotateAround.vec(),
		Rotation:     rot,
	}
}

func (c *cameraSpec) camera() *core.Camera {
	cam := core.DefaultCamera()
	cam.Position = c.Position.vec()
	cam.LookDirection = c.LookDirection.vec()
	if c.UpDirection != nil {
		cam.UpDirection = c.UpDirection.vec()
	}
	if c.FovY != nil {
		cam.FovY = *c.FovY
	}
	if c.FovX != nil {
		cam.FovX = *c.FovX
	}
	return cam
}

// Decode reads one scene description and builds the world.
func Decode(r io.Reader) (*core.World, error) {
	var spec worldSpec
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}

	w := core.NewWorld()
	w.MaxRayDepth = spec.MaxRayDepth
	w.SkyColor = spec.SkyColor.vec()
	for name, m := range spec.Materials {
		w.Materials[name] = m.material()
	}
	for i := range spec.Objects {
		id, err := spec.Objects[i].build(&w.Tree)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		w.AddRoot(id)
	}
	if spec.Camera != nil {
		w.Camera = spec.Camera.camera()
	}
	return w, nil
}

// Load reads a scene description from a JSON file.
func Load(path string) (*core.World, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
