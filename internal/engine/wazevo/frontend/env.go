package frontend

import "github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/ssa"

// Environment is the host-side collaborator the translator calls out to for everything that
// is not itself part of lowering a single function body: resolving signatures and globals,
// laying out the module's runtime context, and providing the handful of runtime entry points
// (memory.grow, table operations, atomic wait/notify) that can't be expressed as a pure SSA
// instruction sequence. Binary parsing, validation, the IR builder's own internals, and the
// host runtime's execution semantics all live behind this interface and are never this
// package's concern: Compiler only ever sees what Environment chooses to expose.
//
// A production embedder implements Environment once per module (sharing type/signature/global
// layout across all of the module's functions) and is expected to cache anything expensive
// to recompute; the translator calls these methods once per relevant operator, not speculatively.
type Environment interface {
	// Signature resolves a type-section index to the Wasm-level function signature.
	Signature(typeIndex uint32) *FunctionSignature

	// FunctionSignatureIndex returns the type index of the idx-th function (imported functions
	// are numbered first, as in the Wasm spec).
	FunctionSignatureIndex(funcIndex uint32) uint32

	// ImportedFunctionCount returns the number of function imports, i.e. the first N function
	// indices that must be resolved through the module context rather than called directly.
	ImportedFunctionCount() uint32

	// Heaps returns the memory types declared or imported by the module, in index order.
	Heaps() []MemoryType

	// Tables returns the table types declared or imported by the module, in index order.
	Tables() []TableType

	// Globals returns the global types declared or imported by the module, in index order.
	Globals() []GlobalType

	// TranslateLoopHeader is called exactly once per `loop` operator, immediately after the
	// loop header block has been created and sealed-pending, and before any of the loop's own
	// operators are translated. Embedders that need to inject per-iteration bookkeeping (e.g.
	// a fuel/interrupt check to guarantee termination of unbounded loops) do so here by
	// inserting instructions into the current block via builder.
	TranslateLoopHeader(builder ssa.Builder, execCtx ssa.Value)

	// IsWasmParamAt and IsWasmReturnAt let backends tell ABI-introduced values (the two leading
	// implicit pointer parameters every lowered function takes) apart from genuine Wasm-level
	// parameters/results, without hardcoding the frontend's own ABI convention.
	IsWasmParamAt(sig *FunctionSignature, index int) bool
	IsWasmReturnAt(sig *FunctionSignature, index int) bool

	// PointerType is the ssa.Type used for host pointers (module context, execution context,
	// and every address this translator ever computes). Always one of TypeI32/TypeI64, per the
	// embedder's target architecture.
	PointerType() ssa.Type

	// The Translate* methods below are one-shot callouts for operations this translator cannot
	// express as a self-contained SSA instruction sequence, because they require host-runtime
	// knowledge (table backing storage, data/elem segment bookkeeping, reference representation,
	// OS-level wait queues) that is deliberately kept out of this package. Each is called at the
	// point the corresponding operator is dispatched, with the already-popped operand Values and
	// the current builder/block; the callout inserts whatever instructions it needs (typically a
	// call to a host-provided builtin function) and returns the resulting Value(s) to push back.

	TranslateMemoryGrow(builder ssa.Builder, execCtx ssa.Value, memIndex uint32, delta ssa.Value) ssa.Value
	TranslateMemorySize(builder ssa.Builder, execCtx ssa.Value, memIndex uint32) ssa.Value
	TranslateMemoryCopy(builder ssa.Builder, execCtx ssa.Value, dstMemIndex, srcMemIndex uint32, dst, src, n ssa.Value)
	TranslateMemoryFill(builder ssa.Builder, execCtx ssa.Value, memIndex uint32, dst, val, n ssa.Value)
	TranslateMemoryInit(builder ssa.Builder, execCtx ssa.Value, memIndex, dataIndex uint32, dst, src, n ssa.Value)
	TranslateDataDrop(builder ssa.Builder, execCtx ssa.Value, dataIndex uint32)

	TranslateTableSize(builder ssa.Builder, execCtx ssa.Value, tableIndex uint32) ssa.Value
	TranslateTableGrow(builder ssa.Builder, execCtx ssa.Value, tableIndex uint32, delta, initValue ssa.Value) ssa.Value
	TranslateTableGet(builder ssa.Builder, execCtx ssa.Value, tableIndex uint32, idx ssa.Value) ssa.Value
	TranslateTableSet(builder ssa.Builder, execCtx ssa.Value, tableIndex uint32, idx, val ssa.Value)
	TranslateTableCopy(builder ssa.Builder, execCtx ssa.Value, dstTableIndex, srcTableIndex uint32, dst, src, n ssa.Value)
	TranslateTableFill(builder ssa.Builder, execCtx ssa.Value, tableIndex uint32, dst, val, n ssa.Value)
	TranslateTableInit(builder ssa.Builder, execCtx ssa.Value, tableIndex, elemIndex uint32, dst, src, n ssa.Value)
	TranslateElemDrop(builder ssa.Builder, execCtx ssa.Value, elemIndex uint32)

	TranslateRefNull(builder ssa.Builder, refType ValType) ssa.Value
	TranslateRefIsNull(builder ssa.Builder, ref ssa.Value) ssa.Value
	TranslateRefFunc(builder ssa.Builder, execCtx ssa.Value, funcIndex uint32) ssa.Value

	TranslateAtomicWait(builder ssa.Builder, execCtx ssa.Value, is64 bool, addr, expected, timeout ssa.Value) ssa.Value
	TranslateAtomicNotify(builder ssa.Builder, execCtx ssa.Value, addr, count ssa.Value) ssa.Value

	// TranslateCustomGlobalGet/Set are consulted only for globals whose GlobalType marks them as
	// host-owned (as opposed to the common case, which the translator lowers itself via a direct
	// load/store through the module context, see globals.go's getWasmGlobalValue/setWasmGlobalValue).
	TranslateCustomGlobalGet(builder ssa.Builder, execCtx ssa.Value, globalIndex uint32) ssa.Value
	TranslateCustomGlobalSet(builder ssa.Builder, execCtx ssa.Value, globalIndex uint32, v ssa.Value)

	// TranslateCall and TranslateCallIndirect let the embedder choose the calling convention
	// (direct ssa.Call vs. a table/type-check sequence around ssa.CallIndirect); the translator
	// itself only ever pops/pushes the Wasm-visible operands.
	TranslateCall(builder ssa.Builder, execCtx ssa.Value, funcIndex uint32, args []ssa.Value) []ssa.Value
	TranslateCallIndirect(builder ssa.Builder, execCtx ssa.Value, typeIndex, tableIndex uint32, tableIndexVal ssa.Value, args []ssa.Value) []ssa.Value

	// HostSetValueFuncIndex/HostGetValueFuncIndex are the optional shadow-metadata hooks a
	// MemRef-aware embedder registers to be notified whenever memref-tagged metadata is written
	// or read out-of-line (see memref.go's MemrefMSStore/MemrefMSLoad). The returned bool is
	// false (Option<u32>'s None) when the embedder declines the hook, in which case the
	// translator skips emitting the corresponding callout entirely.
	HostSetValueFuncIndex() (funcIndex uint32, ok bool)
	HostGetValueFuncIndex() (funcIndex uint32, ok bool)
}
