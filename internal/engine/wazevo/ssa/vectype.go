package ssa

// VecLane represents a lane interpretation of a 128-bit vector value, mirroring
// the six Wasm SIMD lane shapes. It is carried as an immediate on vector
// instructions so that a single Opcode (e.g. OpcodeVIadd) can cover every
// integer width.
type VecLane byte

const (
	VecLaneInvalid VecLane = iota
	VecLaneI8x16
	VecLaneI16x8
	VecLaneI32x4
	VecLaneI64x2
	VecLaneF32x4
	VecLaneF64x2
)

// String implements fmt.Stringer.
func (l VecLane) String() string {
	switch l {
	case VecLaneI8x16:
		return "I8x16"
	case VecLaneI16x8:
		return "I16x8"
	case VecLaneI32x4:
		return "I32x4"
	case VecLaneI64x2:
		return "I64x2"
	case VecLaneF32x4:
		return "F32x4"
	case VecLaneF64x2:
		return "F64x2"
	default:
		return "Invalid"
	}
}

// Type returns the vector Type whose lanes are shaped as l.
func (l VecLane) Type() Type {
	switch l {
	case VecLaneI8x16:
		return TypeVecI8x16
	case VecLaneI16x8:
		return TypeVecI16x8
	case VecLaneI32x4:
		return TypeVecI32x4
	case VecLaneI64x2:
		return TypeVecI64x2
	case VecLaneF32x4:
		return TypeVecF32x4
	case VecLaneF64x2:
		return TypeVecF64x2
	default:
		panic("invalid VecLane")
	}
}

// Lanes returns the number of lanes for this shape.
func (l VecLane) Lanes() int {
	switch l {
	case VecLaneI8x16:
		return 16
	case VecLaneI16x8:
		return 8
	case VecLaneI32x4, VecLaneF32x4:
		return 4
	case VecLaneI64x2, VecLaneF64x2:
		return 2
	default:
		panic("invalid VecLane")
	}
}

// VecLaneOf returns the VecLane corresponding to a vector Type. Panics if typ is not a vector type.
func VecLaneOf(typ Type) VecLane {
	switch typ {
	case TypeVecI8x16:
		return VecLaneI8x16
	case TypeVecI16x8:
		return VecLaneI16x8
	case TypeVecI32x4:
		return VecLaneI32x4
	case TypeVecI64x2:
		return VecLaneI64x2
	case TypeVecF32x4:
		return VecLaneF32x4
	case TypeVecF64x2:
		return VecLaneF64x2
	default:
		panic("not a vector type: " + typ.String())
	}
}
