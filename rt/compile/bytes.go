package compile

import (
	"encoding/binary"
	"math"
)

// ObjectRecordSize is the GPU stride of one object record:
// vec4<u32> header + two vec4<f32> argument blocks.
const ObjectRecordSize = 48

// MaterialRecordSize is the GPU stride of one material record (6 vec4s).
const MaterialRecordSize = 96

// ObjectBytes serializes the object buffer for upload.
func (p *Program) ObjectBytes() []byte {
	buf := make([]byte, 0, len(p.Objects)*ObjectRecordSize)
	for _, rec := range p.Objects {
		hdr := make([]byte, 16)
		binary.LittleEndian.PutUint32(hdr[0:4], rec.Kind)
		binary.LittleEndian.PutUint32(hdr[4:8], rec.Material)
		binary.LittleEndian.PutUint32(hdr[8:12], rec.Flags)
		buf = append(buf, hdr...)
		buf = append(buf, vec4ToBytes(rec.Args1)...)
		buf = append(buf, vec4ToBytes(rec.Args2)...)
	}
	if len(buf) == 0 {
		// WebGPU rejects zero-size buffers
		buf = make([]byte, ObjectRecordSize)
	}
	return buf
}

// MaterialBytes serializes the material buffer for upload.
func (p *Program) MaterialBytes() []byte {
	buf := make([]byte, 0, len(p.Materials)*MaterialRecordSize)
	for _, m := range p.Materials {
		buf = append(buf, vec4ToBytes(m.Color)...)
		buf = append(buf, vec4ToBytes(m.Emitance)...)
		buf = append(buf, vec4ToBytes(m.Params)...)
		buf = append(buf, vec4ToBytes(m.Translation)...)
		buf = append(buf, vec4ToBytes(m.RotateAround)...)
		buf = append(buf, vec4ToBytes(m.RotQuat)...)
	}
	if len(buf) == 0 {
		buf = make([]byte, MaterialRecordSize)
	}
	return buf
}

func vec4ToBytes(v [4]float32) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v[2]))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(v[3]))
	return buf
}
