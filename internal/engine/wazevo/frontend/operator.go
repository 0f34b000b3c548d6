package frontend

import "github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/ssa"

// OperatorKind identifies one variant of the validated Wasm operator stream the translator
// consumes. There is no pc, no LEB128 reading, and no misc-opcode-prefix dance here: a decoder
// upstream of this package (out of scope for this translator, see Environment) has already
// turned the function body into a slice of Operator values with their immediates fully decoded.
type OperatorKind int

const (
	OpUnreachable OperatorKind = iota
	OpNop
	OpBlock
	OpLoop
	OpIf
	OpElse
	OpEnd
	OpBr
	OpBrIf
	OpBrTable
	OpReturn
	OpCall
	OpCallIndirect

	OpDrop
	OpSelect
	OpTypedSelect

	OpLocalGet
	OpLocalSet
	OpLocalTee
	OpGlobalGet
	OpGlobalSet

	OpI32Load
	OpI64Load
	OpF32Load
	OpF64Load
	OpI32Load8S
	OpI32Load8U
	OpI32Load16S
	OpI32Load16U
	OpI64Load8S
	OpI64Load8U
	OpI64Load16S
	OpI64Load16U
	OpI64Load32S
	OpI64Load32U
	OpI32Store
	OpI64Store
	OpF32Store
	OpF64Store
	OpI32Store8
	OpI32Store16
	OpI64Store8
	OpI64Store16
	OpI64Store32
	OpMemorySize
	OpMemoryGrow
	OpMemoryCopy
	OpMemoryFill
	OpMemoryInit
	OpDataDrop

	OpTableGet
	OpTableSet
	OpTableSize
	OpTableGrow
	OpTableFill
	OpTableCopy
	OpTableInit
	OpElemDrop

	OpRefNull
	OpRefIsNull
	OpRefFunc

	OpI32Const
	OpI64Const
	OpF32Const
	OpF64Const

	OpI32Eqz
	OpI64Eqz
	OpI32Eq
	OpI64Eq
	OpI32Ne
	OpI64Ne
	OpI32LtS
	OpI64LtS
	OpI32LtU
	OpI64LtU
	OpI32GtS
	OpI64GtS
	OpI32GtU
	OpI64GtU
	OpI32LeS
	OpI64LeS
	OpI32LeU
	OpI64LeU
	OpI32GeS
	OpI64GeS
	OpI32GeU
	OpI64GeU

	OpI32Add
	OpI64Add
	OpI32Sub
	OpI64Sub
	OpI32Mul
	OpI64Mul
	OpI32DivS
	OpI64DivS
	OpI32DivU
	OpI64DivU
	OpI32RemS
	OpI64RemS
	OpI32RemU
	OpI64RemU
	OpI32And
	OpI64And
	OpI32Or
	OpI64Or
	OpI32Xor
	OpI64Xor
	OpI32Shl
	OpI64Shl
	OpI32ShrS
	OpI64ShrS
	OpI32ShrU
	OpI64ShrU
	OpI32Rotl
	OpI64Rotl
	OpI32Rotr
	OpI64Rotr
	OpI32Clz
	OpI64Clz
	OpI32Ctz
	OpI64Ctz
	OpI32Popcnt
	OpI64Popcnt

	OpF32Eq
	OpF64Eq
	OpF32Ne
	OpF64Ne
	OpF32Lt
	OpF64Lt
	OpF32Gt
	OpF64Gt
	OpF32Le
	OpF64Le
	OpF32Ge
	OpF64Ge
	OpF32Add
	OpF64Add
	OpF32Sub
	OpF64Sub
	OpF32Mul
	OpF64Mul
	OpF32Div
	OpF64Div
	OpF32Min
	OpF64Min
	OpF32Max
	OpF64Max
	OpF32Copysign
	OpF64Copysign
	OpF32Abs
	OpF64Abs
	OpF32Neg
	OpF64Neg
	OpF32Sqrt
	OpF64Sqrt
	OpF32Ceil
	OpF64Ceil
	OpF32Floor
	OpF64Floor
	OpF32Trunc
	OpF64Trunc
	OpF32Nearest
	OpF64Nearest

	OpI32WrapI64
	OpI64ExtendI32S
	OpI64ExtendI32U
	OpI32Extend8S
	OpI32Extend16S
	OpI64Extend8S
	OpI64Extend16S
	OpI64Extend32S
	OpI32TruncF32S
	OpI32TruncF32U
	OpI32TruncF64S
	OpI32TruncF64U
	OpI64TruncF32S
	OpI64TruncF32U
	OpI64TruncF64S
	OpI64TruncF64U
	OpI32TruncSatF32S
	OpI32TruncSatF32U
	OpI32TruncSatF64S
	OpI32TruncSatF64U
	OpI64TruncSatF32S
	OpI64TruncSatF32U
	OpI64TruncSatF64S
	OpI64TruncSatF64U
	OpF32ConvertI32S
	OpF32ConvertI32U
	OpF32ConvertI64S
	OpF32ConvertI64U
	OpF64ConvertI32S
	OpF64ConvertI32U
	OpF64ConvertI64S
	OpF64ConvertI64U
	OpF32DemoteF64
	OpF64PromoteF32
	OpI32ReinterpretF32
	OpI64ReinterpretF64
	OpF32ReinterpretI32
	OpF64ReinterpretI64

	// SIMD. Vector values are canonicalized to the single 16xi8 shape at storage sites and
	// branch joins; a lane op pushes its result typed by its own lane shape. Lane on these
	// operators names the interpretation the operator itself uses.
	OpV128Load
	OpV128Store
	OpV128Const
	OpV128Splat
	OpV128ExtractLane
	OpV128ReplaceLane
	OpV128Shuffle
	OpV128Swizzle
	OpV128Not
	OpV128And
	OpV128AndNot
	OpV128Or
	OpV128Xor
	OpV128Bitselect
	OpV128AnyTrue
	OpV128AllTrue
	OpV128Bitmask
	OpVIAbs
	OpVINeg
	OpVIPopcnt
	OpVIAdd
	OpVIAddSatS
	OpVIAddSatU
	OpVISub
	OpVISubSatS
	OpVISubSatU
	OpVIMinS
	OpVIMinU
	OpVIMaxS
	OpVIMaxU
	OpVIAvgrU
	OpVIMul

	// Atomic wait/notify (threads proposal).
	OpMemoryAtomicWait32
	OpMemoryAtomicWait64
	OpMemoryAtomicNotify

	// MemRef: spatial-safety metadata carried alongside ordinary memory accesses. See §3's
	// 4-lane encoding and §4.7/§4.8's lowering rules.
	OpMemrefNull
	OpMemrefAlloc
	OpMemrefField0
	OpMemrefField1
	OpMemrefField2
	OpMemrefField3
	OpMemrefAdd
	OpMemrefAnd
	OpMemrefNarrow
	OpMemrefEq
	OpMemrefNe
	OpMemrefSelect
	OpMemrefConst
	// OpMemrefMSLoad/OpMemrefMSStore are polymorphic in ValType (Operator.Block.Results[0],
	// reused here as the single result/value type since a block signature is otherwise unused
	// by these operators): ValTypeV128 selects the MemRef-typed load/store variant, any other
	// ValType selects the scalar (possibly narrowing, see Signed/Attr) variant.
	OpMemrefMSLoad
	OpMemrefMSStore
)

// MemrefValType returns the ValType an OpMemrefMSLoad/OpMemrefMSStore operator carries as its
// polymorphic result/value type.
func (op *Operator) MemrefValType() ValType {
	if len(op.Block.Results) == 0 {
		return ValTypeI32
	}
	return op.Block.Results[0]
}

// MemArg is the alignment/offset immediate pair carried by every Wasm memory instruction.
type MemArg struct {
	Offset uint32
	Align  uint32
	// MemoryIndex supports the multi-memory proposal; always 0 for single-memory modules.
	MemoryIndex uint32
}

// Operator is one decoded element of the validated instruction stream fed to the translator.
// Only the fields relevant to Kind are populated; which ones those are is documented next to
// each OperatorKind's handling in dispatch.go.
type Operator struct {
	Kind OperatorKind

	I32Value int32
	I64Value int64
	F32Value uint32 // raw bits, to round-trip NaN payloads exactly.
	F64Value uint64

	V128Lo, V128Hi uint64

	Index uint32 // local/global/func/type/table/memory/data/elem index, depending on Kind.
	Index2 uint32 // second index, e.g. table.copy's destination table.

	Mem MemArg

	Block BlockSignature

	BrTable BrTableData

	Lane    ssa.VecLane
	LaneIdx byte
	Signed  bool

	// ShuffleMask is v128.shuffle's 16-byte lane-select immediate: ShuffleMask[i] selects, for
	// result lane i, source byte ShuffleMask[i] of the 32-byte concatenation of the two operand
	// vectors (0-15 from the first operand, 16-31 from the second).
	ShuffleMask [16]byte

	// Attr is MemrefAlloc's attribute immediate (see memref.go's lane-3 encoding), and the
	// narrow access width in bytes (1/2/4/8) for OpMemrefMSLoad/OpMemrefMSStore's narrowing
	// scalar variants (0 means full-width, matching MemrefValType's natural size).
	Attr uint32
}

// BrTableData is the immediate payload of a br_table operator.
type BrTableData struct {
	Targets []uint32
	Default uint32
}
