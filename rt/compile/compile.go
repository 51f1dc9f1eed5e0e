// Package compile flattens a world's CSG tree into the linear record
// buffer shared by the CPU evaluator and the GPU shaders. Combinator
// records are emitted after their children and reference them by buffer
// index, so a single forward pass over the buffer can resolve the whole
// tree without recursion.
package compile

import (
	"fmt"
	"sort"

	"github.com/luxmarch/luxmarch/rt/core"
)

// Operator kinds stored in ObjectRecord.Kind.
const (
	OpSphere uint32 = iota
	OpBox
	OpCylinder
	OpTorus
	OpInv
	OpMin
	OpMax
	OpSmooth
)

// ObjectRecord flags.
const (
	FlagRendered uint32 = 1 << iota // top-level record, unioned into the scene
	FlagReferred                    // some later combinator references this record
	FlagRepeat                      // leaf domain repetition, period in the args
)

// MaxSmoothChildren is the per-record fan-in limit of a smooth blend;
// wider blends must be expressed as nested Smooth nodes.
const MaxSmoothChildren = 4

// ObjectRecord is one fixed-size slot of the flattened scene.
// Combinators store child buffer indices in Args1 (as float32, the way
// the wire format defines them); leaves store geometry.
//
//	Sphere:   Args1 = cx cy cz radius      Args2 = period - - -
//	Box:      Args1 = lx ly lz period      Args2 = ux uy uz -
//	Cylinder: Args1 = cx cy cz radius      Args2 = height period - -
//	Torus:    Args1 = cx cy cz major       Args2 = minor period - -
//	Inv:      Args1 = child - - -
//	Min/Max:  Args1 = left right - -
//	Smooth:   Args1 = up to 4 children     Args2 = alpha count - -
type ObjectRecord struct {
	Kind     uint32
	Material uint32
	Flags    uint32
	Args1    [4]float32
	Args2    [4]float32
}

// MaterialRecord mirrors core.Material in dense float32 form. The W
// components are padding except Params = (metalness, roughness,
// is_portal, 0) and RotQuat = (x, y, z, w).
type MaterialRecord struct {
	Color        [4]float32
	Emitance     [4]float32
	Params       [4]float32
	Translation  [4]float32
	RotateAround [4]float32
	RotQuat      [4]float32
}

// Program is a compiled scene: flat object and material buffers plus the
// world parameters the render pipelines need.
type Program struct {
	Objects   []ObjectRecord
	Materials []MaterialRecord

	// MaterialNames holds the lexicographic name order used for index
	// assignment, for diagnostics.
	MaterialNames []string

	MaxRayDepth int
	SkyColor    [3]float64
	Camera      core.Camera
}

type compiler struct {
	world     *core.World
	matIndex  map[string]uint32
	records   []ObjectRecord
	blackUsed bool
}

// Compile flattens the world. Material names are assigned dense indices
// in lexicographic order so the output is reproducible; names referenced
// by objects but missing from the material set resolve to an implicit
// black material appended after the named ones.
func Compile(world *core.World) (*Program, error) {
	c := &compiler{
		world:    world,
		matIndex: map[string]uint32{},
	}

	names := make([]string, 0, len(world.Materials))
	for name := range world.Materials {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		c.matIndex[name] = uint32(i)
	}

	for _, root := range world.Roots {
		if _, err := c.encode(root, true, false, 0); err != nil {
			return nil, err
		}
	}

	materials := make([]MaterialRecord, 0, len(names)+1)
	for _, name := range names {
		materials = append(materials, packMaterial(world.Materials[name]))
	}
	if c.blackUsed {
		materials = append(materials, packMaterial(core.BlackMaterial()))
	}

	cam := core.DefaultCamera()
	if world.Camera != nil {
		cam = world.Camera
	}

	return &Program{
		Objects:       c.records,
		Materials:     materials,
		MaterialNames: names,
		MaxRayDepth:   world.MaxRayDepth,
		SkyColor:      [3]float64{world.SkyColor[0], world.SkyColor[1], world.SkyColor[2]},
		Camera:        *cam,
	}, nil
}

func (c *compiler) material(name string) uint32 {
	if idx, ok := c.matIndex[name]; ok {
		return idx
	}
	// Missing names all share one black material slot at the end.
	c.blackUsed = true
	return uint32(len(c.matIndex))
}

func flags(rendered, referred bool, repeat float64) uint32 {
	var f uint32
	if rendered {
		f |= FlagRendered
	}
	if referred {
		f |= FlagReferred
	}
	if repeat > 0 {
		f |= FlagRepeat
	}
	return f
}

// encode appends the records of the subtree rooted at id and returns how
// many buffer slots it consumed. The subtree's terminal record is always
// the last one appended, at index base+consumed-1.
func (c *compiler) encode(id core.NodeID, rendered, referred bool, period float64) (int, error) {
	n := c.world.Tree.Node(id)

	if period > 0 && !n.IsLeaf() {
		return 0, fmt.Errorf("compile: PosModulo over %s node %d: domain repetition is only supported on leaf primitives", n.Kind, id)
	}

	switch n.Kind {
	case core.KindSphere:
		c.records = append(c.records, ObjectRecord{
			Kind:     OpSphere,
			Material: c.material(n.Material),
			Flags:    flags(rendered, referred, period),
			Args1: [4]float32{
				float32(n.Center[0]), float32(n.Center[1]), float32(n.Center[2]),
				float32(n.Radius),
			},
			Args2: [4]float32{float32(period), 0, 0, 0},
		})
		return 1, nil

	case core.KindBox:
		c.records = append(c.records, ObjectRecord{
			Kind:     OpBox,
			Material: c.material(n.Material),
			Flags:    flags(rendered, referred, period),
			Args1: [4]float32{
				float32(n.Lower[0]), float32(n.Lower[1]), float32(n.Lower[2]),
				float32(period),
			},
			Args2: [4]float32{
				float32(n.Upper[0]), float32(n.Upper[1]), float32(n.Upper[2]), 0,
			},
		})
		return 1, nil

	case core.KindCylinder:
		c.records = append(c.records, ObjectRecord{
			Kind:     OpCylinder,
			Material: c.material(n.Material),
			Flags:    flags(rendered, referred, period),
			Args1: [4]float32{
				float32(n.Center[0]), float32(n.Center[1]), float32(n.Center[2]),
				float32(n.Radius),
			},
			Args2: [4]float32{float32(n.Height), float32(period), 0, 0},
		})
		return 1, nil

	case core.KindTorus:
		c.records = append(c.records, ObjectRecord{
			Kind:     OpTorus,
			Material: c.material(n.Material),
			Flags:    flags(rendered, referred, period),
			Args1: [4]float32{
				float32(n.Center[0]), float32(n.Center[1]), float32(n.Center[2]),
				float32(n.MajorRadius),
			},
			Args2: [4]float32{float32(n.MinorRadius), float32(period), 0, 0},
		})
		return 1, nil

	case core.KindInv:
		base := len(c.records)
		used, err := c.encode(n.Left, false, true, 0)
		if err != nil {
			return 0, err
		}
		c.records = append(c.records, ObjectRecord{
			Kind:  OpInv,
			Flags: flags(rendered, referred, 0),
			Args1: [4]float32{float32(base + used - 1), 0, 0, 0},
		})
		return used + 1, nil

	case core.KindMin, core.KindMax:
		base := len(c.records)
		usedLeft, err := c.encode(n.Left, false, true, 0)
		if err != nil {
			return 0, err
		}
		usedRight, err := c.encode(n.Right, false, true, 0)
		if err != nil {
			return 0, err
		}
		op := OpMin
		if n.Kind == core.KindMax {
			op = OpMax
		}
		c.records = append(c.records, ObjectRecord{
			Kind:  op,
			Flags: flags(rendered, referred, 0),
			Args1: [4]float32{
				float32(base + usedLeft - 1),
				float32(base + usedLeft + usedRight - 1),
				0, 0,
			},
		})
		return usedLeft + usedRight + 1, nil

	case core.KindSmooth:
		if len(n.Children) == 0 {
			return 0, fmt.Errorf("compile: Smooth node %d has no children", id)
		}
		if len(n.Children) > MaxSmoothChildren {
			return 0, fmt.Errorf("compile: Smooth node %d has %d children, records hold at most %d; nest Smooth nodes instead",
				id, len(n.Children), MaxSmoothChildren)
		}
		base := len(c.records)
		total := 0
		var refs [4]float32
		for i, child := range n.Children {
			used, err := c.encode(child, false, true, 0)
			if err != nil {
				return 0, err
			}
			total += used
			refs[i] = float32(base + total - 1)
		}
		c.records = append(c.records, ObjectRecord{
			Kind:  OpSmooth,
			Flags: flags(rendered, referred, 0),
			Args1: refs,
			Args2: [4]float32{float32(n.Alpha), float32(len(n.Children)), 0, 0},
		})
		return total + 1, nil

	case core.KindPosModulo:
		if period > 0 {
			return 0, fmt.Errorf("compile: nested PosModulo at node %d", id)
		}
		if n.Period <= 0 {
			return 0, fmt.Errorf("compile: PosModulo node %d has non-positive period %g", id, n.Period)
		}
		// The period is baked into the child leaf record; the modulo
		// node itself takes no buffer slot.
		return c.encode(n.Left, rendered, referred, n.Period)

	default:
		return 0, fmt.Errorf("compile: unknown node kind %d", n.Kind)
	}
}

func packMaterial(m core.Material) MaterialRecord {
	portal := float32(0)
	if m.IsPortal {
		portal = 1
	}
	q := m.Rotation.Quat()
	return MaterialRecord{
		Color:        [4]float32{float32(m.Color[0]), float32(m.Color[1]), float32(m.Color[2]), 0},
		Emitance:     [4]float32{float32(m.Emitance[0]), float32(m.Emitance[1]), float32(m.Emitance[2]), 0},
		Params:       [4]float32{float32(m.Metalness), float32(m.Roughness), portal, 0},
		Translation:  [4]float32{float32(m.Translation[0]), float32(m.Translation[1]), float32(m.Translation[2]), 0},
		RotateAround: [4]float32{float32(m.RotateAround[0]), float32(m.RotateAround[1]), float32(m.RotateAround[2]), 0},
		RotQuat:      [4]float32{float32(q.V[0]), float32(q.V[1]), float32(q.V[2]), float32(q.W)},
	}
}
