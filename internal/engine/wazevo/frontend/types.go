package frontend

import "github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/ssa"

// ValType is a Wasm value type, as it appears in a validated operator stream's immediates
// (block types, local declarations, typed select). It is Wasm's own value type space, distinct
// from this compiler's ssa.Type space: the translation from one to the other is
// WasmTypeToSSAType, and is the only place that needs to know both.
type ValType byte

const (
	ValTypeI32 ValType = iota
	ValTypeI64
	ValTypeF32
	ValTypeF64
	ValTypeV128
	ValTypeFuncRef
	ValTypeExternRef
)

// String implements fmt.Stringer.
func (v ValType) String() string {
	switch v {
	case ValTypeI32:
		return "i32"
	case ValTypeI64:
		return "i64"
	case ValTypeF32:
		return "f32"
	case ValTypeF64:
		return "f64"
	case ValTypeV128:
		return "v128"
	case ValTypeFuncRef:
		return "funcref"
	case ValTypeExternRef:
		return "externref"
	default:
		return "unknown"
	}
}

// IsReference reports whether v is one of the Wasm reference types.
func (v ValType) IsReference() bool {
	return v == ValTypeFuncRef || v == ValTypeExternRef
}

// WasmTypeToSSAType converts a Wasm-level ValType, as read off the validated operator stream,
// to the ssa.Type this compiler lowers it to. Reference types are represented as opaque
// 64-bit pointers; the host runtime owns their actual representation.
func WasmTypeToSSAType(vt ValType) ssa.Type {
	switch vt {
	case ValTypeI32:
		return ssa.TypeI32
	case ValTypeI64:
		return ssa.TypeI64
	case ValTypeF32:
		return ssa.TypeF32
	case ValTypeF64:
		return ssa.TypeF64
	case ValTypeV128:
		return ssa.TypeVecCanonical
	case ValTypeFuncRef, ValTypeExternRef:
		return ssa.TypeI64
	default:
		panic("BUG: unknown ValType")
	}
}

// FunctionSignature is the Wasm-level signature of a function, as resolved by the Environment
// from a type index. It is the input to Compiler.signatureForWasmFunctionType, which prepends the two
// implicit ABI parameters (executionContext/moduleContext pointers) and converts to ssa.Signature.
type FunctionSignature struct {
	Params, Results []ValType
}

// BlockSignature is the signature of a structured control-flow block (block/loop/if), as
// resolved from a Wasm block type immediate: either an empty type, a single inline result
// type, or a reference to a FunctionSignature in the type section.
type BlockSignature struct {
	Params, Results []ValType
}

// MemoryType describes the bounds and addressing width of a single linear memory, as
// surfaced by Environment.Heaps. PageSize is always the Wasm-defined 64KiB unless the
// multi-memory/custom-page-size proposal is in play, but is carried explicitly so the
// translator never hardcodes it.
type MemoryType struct {
	MinPages, MaxPages uint64
	PageSizeLog2       uint32
	Is64               bool
	// Static indicates the heap's host representation reserves a fixed virtual region with a
	// trailing guard region of GuardPageBytes: accesses whose statically-known offset range
	// falls entirely within the guard region never need an explicit bounds check, since any
	// such access that would actually be out-of-bounds is provably still within the reserved
	// (if unmapped-for-guard) region. Dynamic heaps have no such guarantee and are always
	// checked.
	Static         bool
	GuardPageBytes uint64
}

// TableType describes a single table, as surfaced by Environment.Tables.
type TableType struct {
	ElemType           ValType
	MinElements         uint32
	MaxElements         uint32
	HasMax              bool
}

// GlobalType describes a single global variable.
type GlobalType struct {
	ValType ValType
	Mutable bool
	// HostOwned routes global.get/global.set for this global through
	// Environment.TranslateCustomGlobalGet/Set instead of the default direct load/store through
	// the module context. Used for globals whose storage or visibility the host runtime manages
	// itself, e.g. ones aliased into a shared cross-instance location.
	HostOwned bool
}
