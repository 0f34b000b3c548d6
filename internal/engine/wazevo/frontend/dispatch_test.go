package frontend

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/ssa"
	"github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/wazevoapi"
)

func testOffsetData() wazevoapi.ModuleContextOffsetData {
	return wazevoapi.NewModuleContextOffsetData(wazevoapi.ModuleLayout{HasMemory: true})
}

// fakeEnv is a minimal Environment good enough to drive the translator end to end without a
// real host runtime behind it: every Translate* hook does the least work that lets the caller
// observe it happened (push a constant, or record the call).
type fakeEnv struct {
	sigs    []*FunctionSignature
	heaps   []MemoryType
	tables  []TableType
	globals []GlobalType
	ptrType ssa.Type

	importedFuncs uint32

	getValueFunc, setValueFunc       uint32
	hasGetValueFunc, hasSetValueFunc bool

	calls []uint32
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		ptrType: ssa.TypeI64,
		heaps: []MemoryType{{
			MinPages: 1, MaxPages: 65536, PageSizeLog2: 16,
			Static: true, GuardPageBytes: 1 << 32,
		}},
	}
}

func (e *fakeEnv) Signature(typeIndex uint32) *FunctionSignature {
	if int(typeIndex) >= len(e.sigs) {
		return nil
	}
	return e.sigs[typeIndex]
}

func (e *fakeEnv) FunctionSignatureIndex(funcIndex uint32) uint32 { return funcIndex }
func (e *fakeEnv) ImportedFunctionCount() uint32                  { return e.importedFuncs }
func (e *fakeEnv) Heaps() []MemoryType                            { return e.heaps }
func (e *fakeEnv) Tables() []TableType                            { return e.tables }
func (e *fakeEnv) Globals() []GlobalType                          { return e.globals }

func (e *fakeEnv) TranslateLoopHeader(ssa.Builder, ssa.Value) {}

func (e *fakeEnv) IsWasmParamAt(sig *FunctionSignature, index int) bool  { return index >= 2 }
func (e *fakeEnv) IsWasmReturnAt(sig *FunctionSignature, index int) bool { return true }

func (e *fakeEnv) PointerType() ssa.Type { return e.ptrType }

func (e *fakeEnv) TranslateMemoryGrow(b ssa.Builder, execCtx ssa.Value, memIndex uint32, delta ssa.Value) ssa.Value {
	return constI32Instr(b, 1)
}
func (e *fakeEnv) TranslateMemorySize(b ssa.Builder, execCtx ssa.Value, memIndex uint32) ssa.Value {
	return constI32Instr(b, 1)
}
func (e *fakeEnv) TranslateMemoryCopy(ssa.Builder, ssa.Value, uint32, uint32, ssa.Value, ssa.Value, ssa.Value) {
}
func (e *fakeEnv) TranslateMemoryFill(ssa.Builder, ssa.Value, uint32, ssa.Value, ssa.Value, ssa.Value) {
}
func (e *fakeEnv) TranslateMemoryInit(ssa.Builder, ssa.Value, uint32, uint32, ssa.Value, ssa.Value, ssa.Value) {
}
func (e *fakeEnv) TranslateDataDrop(ssa.Builder, ssa.Value, uint32) {}

func (e *fakeEnv) TranslateTableSize(b ssa.Builder, execCtx ssa.Value, tableIndex uint32) ssa.Value {
	return constI32Instr(b, 0)
}
func (e *fakeEnv) TranslateTableGrow(b ssa.Builder, execCtx ssa.Value, tableIndex uint32, delta, initValue ssa.Value) ssa.Value {
	return constI32Instr(b, 1)
}
func (e *fakeEnv) TranslateTableGet(b ssa.Builder, execCtx ssa.Value, tableIndex uint32, idx ssa.Value) ssa.Value {
	return constI64Instr(b, 0)
}
func (e *fakeEnv) TranslateTableSet(ssa.Builder, ssa.Value, uint32, ssa.Value, ssa.Value) {}
func (e *fakeEnv) TranslateTableCopy(ssa.Builder, ssa.Value, uint32, uint32, ssa.Value, ssa.Value, ssa.Value) {
}
func (e *fakeEnv) TranslateTableFill(ssa.Builder, ssa.Value, uint32, ssa.Value, ssa.Value, ssa.Value) {
}
func (e *fakeEnv) TranslateTableInit(ssa.Builder, ssa.Value, uint32, uint32, ssa.Value, ssa.Value, ssa.Value) {
}
func (e *fakeEnv) TranslateElemDrop(ssa.Builder, ssa.Value, uint32) {}

func (e *fakeEnv) TranslateRefNull(b ssa.Builder, refType ValType) ssa.Value {
	return constI64Instr(b, 0)
}
func (e *fakeEnv) TranslateRefIsNull(b ssa.Builder, ref ssa.Value) ssa.Value {
	return constI32Instr(b, 0)
}
func (e *fakeEnv) TranslateRefFunc(b ssa.Builder, execCtx ssa.Value, funcIndex uint32) ssa.Value {
	return constI64Instr(b, 0)
}

func (e *fakeEnv) TranslateAtomicWait(b ssa.Builder, execCtx ssa.Value, is64 bool, addr, expected, timeout ssa.Value) ssa.Value {
	return constI32Instr(b, 0)
}
func (e *fakeEnv) TranslateAtomicNotify(b ssa.Builder, execCtx ssa.Value, addr, count ssa.Value) ssa.Value {
	return constI32Instr(b, 0)
}

func (e *fakeEnv) TranslateCustomGlobalGet(b ssa.Builder, execCtx ssa.Value, globalIndex uint32) ssa.Value {
	return constI32Instr(b, 42)
}
func (e *fakeEnv) TranslateCustomGlobalSet(ssa.Builder, ssa.Value, uint32, ssa.Value) {}

func (e *fakeEnv) TranslateCall(b ssa.Builder, execCtx ssa.Value, funcIndex uint32, args []ssa.Value) []ssa.Value {
	e.calls = append(e.calls, funcIndex)
	sig := e.Signature(e.FunctionSignatureIndex(funcIndex))
	out := make([]ssa.Value, len(sig.Results))
	for i, rt := range sig.Results {
		out[i] = zeroOf(b, WasmTypeToSSAType(rt))
	}
	return out
}
func (e *fakeEnv) TranslateCallIndirect(b ssa.Builder, execCtx ssa.Value, typeIndex, tableIndex uint32, tableIndexVal ssa.Value, args []ssa.Value) []ssa.Value {
	sig := e.Signature(typeIndex)
	out := make([]ssa.Value, len(sig.Results))
	for i, rt := range sig.Results {
		out[i] = zeroOf(b, WasmTypeToSSAType(rt))
	}
	return out
}

func (e *fakeEnv) HostSetValueFuncIndex() (uint32, bool) { return e.setValueFunc, e.hasSetValueFunc }
func (e *fakeEnv) HostGetValueFuncIndex() (uint32, bool) { return e.getValueFunc, e.hasGetValueFunc }

func constI32Instr(b ssa.Builder, v uint32) ssa.Value {
	i := b.AllocateInstruction()
	i.AsIconst32(v)
	b.InsertInstruction(i)
	return i.Return()
}

func constI64Instr(b ssa.Builder, v uint64) ssa.Value {
	i := b.AllocateInstruction()
	i.AsIconst64(v)
	b.InsertInstruction(i)
	return i.Return()
}

func zeroOf(b ssa.Builder, t ssa.Type) ssa.Value {
	switch t {
	case ssa.TypeI32:
		return constI32Instr(b, 0)
	case ssa.TypeI64:
		return constI64Instr(b, 0)
	default:
		return constI32Instr(b, 0)
	}
}

// setUp builds a Compiler over a fresh ssa.Builder and fakeEnv, with a single void->void
// signature at type index 0 and the given declared locals, ready for LowerEntry.
func setUp(t *testing.T, env *fakeEnv, sig *FunctionSignature, locals []ValType) (*Compiler, ssa.Builder) {
	t.Helper()
	if sig == nil {
		sig = &FunctionSignature{}
	}
	env.sigs = []*FunctionSignature{sig}
	builder := ssa.NewBuilder()
	c := NewFrontendCompiler(env, builder, testOffsetData(), nil)
	require.NoError(t, c.Init(0, sig, locals))
	c.LowerEntry()
	return c, builder
}

func TestLowerOperator_ArithmeticAndReturn(t *testing.T) {
	env := newFakeEnv()
	c, b := setUp(t, env, &FunctionSignature{Results: []ValType{ValTypeI32}}, nil)

	require.NoError(t, c.LowerOperator(Operator{Kind: OpI32Const, I32Value: 1}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpI32Const, I32Value: 2}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpI32Add}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpReturn}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpEnd}))

	out := c.Format()
	assert.Contains(t, out, "Iadd")
	assert.Contains(t, out, "Return")
}

func TestLowerOperator_LocalGetSetTee(t *testing.T) {
	env := newFakeEnv()
	c, _ := setUp(t, env, &FunctionSignature{Params: []ValType{ValTypeI32}, Results: []ValType{ValTypeI32}}, nil)

	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalGet, Index: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpI32Const, I32Value: 1}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpI32Add}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalTee, Index: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpDrop}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalGet, Index: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpReturn}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpEnd}))

	assert.False(t, c.state.unreachable)
}

func TestLowerOperator_GlobalRoutesThroughHostHook(t *testing.T) {
	env := newFakeEnv()
	env.globals = []GlobalType{{ValType: ValTypeI32, Mutable: true, HostOwned: true}}
	c, _ := setUp(t, env, &FunctionSignature{Results: []ValType{ValTypeI32}}, nil)

	require.NoError(t, c.LowerOperator(Operator{Kind: OpGlobalGet, Index: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpReturn}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpEnd}))

	assert.True(t, c.isHostOwnedGlobal(0))
}

func TestLowerOperator_IfElseEndMergesStack(t *testing.T) {
	env := newFakeEnv()
	c, b := setUp(t, env, &FunctionSignature{Results: []ValType{ValTypeI32}}, nil)

	require.NoError(t, c.LowerOperator(Operator{Kind: OpI32Const, I32Value: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpIf, Block: BlockSignature{Results: []ValType{ValTypeI32}}}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpI32Const, I32Value: 10}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpElse}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpI32Const, I32Value: 20}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpEnd}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpReturn}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpEnd}))

	out := b.Format()
	assert.True(t, strings.Count(out, "Jump") >= 2)
}

func TestLowerOperator_BrIfLoop(t *testing.T) {
	env := newFakeEnv()
	c, _ := setUp(t, env, &FunctionSignature{}, []ValType{ValTypeI32})

	require.NoError(t, c.LowerOperator(Operator{Kind: OpLoop, Block: BlockSignature{}}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalGet, Index: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpBrIf, Index: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpEnd}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpReturn}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpEnd}))

	assert.False(t, c.state.unreachable)
}

func TestLowerOperator_MemoryLoadStoreFoldsBoundsCheck(t *testing.T) {
	env := newFakeEnv()
	c, b := setUp(t, env, &FunctionSignature{Params: []ValType{ValTypeI32, ValTypeI32}}, nil)

	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalGet, Index: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalGet, Index: 1}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpI32Store, Mem: MemArg{Offset: 0}}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpReturn}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpEnd}))

	out := b.Format()
	// A Static heap whose guard region already covers the access's ceiling folds away the
	// explicit length comparison entirely.
	assert.NotContains(t, out, "Icmp")
	assert.Contains(t, out, "Store")
}

func TestLowerOperator_UnreachableTrapsAndSkipsDeadCode(t *testing.T) {
	env := newFakeEnv()
	c, b := setUp(t, env, &FunctionSignature{}, nil)

	require.NoError(t, c.LowerOperator(Operator{Kind: OpUnreachable}))
	require.True(t, c.state.unreachable)
	require.NoError(t, c.LowerOperator(Operator{Kind: OpI32Const, I32Value: 1}))
	// Dead code after an unconditional trap does not push anything onto the operand stack.
	require.NoError(t, c.LowerOperator(Operator{Kind: OpEnd}))

	out := b.Format()
	assert.Contains(t, out, "unreachable")
}

func TestLowerOperator_UnsupportedOperatorReturnsStructuredError(t *testing.T) {
	env := newFakeEnv()
	c, _ := setUp(t, env, &FunctionSignature{}, nil)

	err := c.LowerOperator(Operator{Kind: OperatorKind(-1)})
	require.Error(t, err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, PhaseDispatch, fe.Phase)
	assert.Equal(t, KindUnsupportedOperator, fe.Kind)
}

func TestLowerOperator_CallPopsArgsAndPushesResults(t *testing.T) {
	env := newFakeEnv()
	callee := &FunctionSignature{Params: []ValType{ValTypeI32}, Results: []ValType{ValTypeI32}}
	env.sigs = []*FunctionSignature{{Results: []ValType{ValTypeI32}}, callee}
	builder := ssa.NewBuilder()
	c := NewFrontendCompiler(env, builder, testOffsetData(), nil)
	require.NoError(t, c.Init(0, env.sigs[0], nil))
	c.LowerEntry()

	require.NoError(t, c.LowerOperator(Operator{Kind: OpI32Const, I32Value: 7}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpCall, Index: 1}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpReturn}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpEnd}))

	assert.Equal(t, []uint32{1}, env.calls)
}

func TestLowerOperator_SimdSplatExtractLaneRoundTrip(t *testing.T) {
	env := newFakeEnv()
	c, b := setUp(t, env, &FunctionSignature{Params: []ValType{ValTypeI32}, Results: []ValType{ValTypeI32}}, nil)

	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalGet, Index: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpV128Splat, Lane: ssa.VecLaneI32x4}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpV128ExtractLane, Lane: ssa.VecLaneI32x4, LaneIdx: 2}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpReturn}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpEnd}))

	out := b.Format()
	assert.Contains(t, out, "Splat")
	assert.Contains(t, out, "Extractlane")
}

func TestLowerOperator_SimdShuffleUsesFullMask(t *testing.T) {
	env := newFakeEnv()
	c, b := setUp(t, env, &FunctionSignature{Results: []ValType{ValTypeI32}}, nil)

	var mask [16]byte
	for i := range mask {
		mask[i] = byte(15 - i)
	}
	require.NoError(t, c.LowerOperator(Operator{Kind: OpV128Const}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpV128Const}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpV128Shuffle, ShuffleMask: mask}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpV128ExtractLane, Lane: ssa.VecLaneI8x16, LaneIdx: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpReturn}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpEnd}))

	out := b.Format()
	assert.Contains(t, out, "Shuffle")
	assert.Contains(t, out, "[15 14 13 12 11 10 9 8 7 6 5 4 3 2 1 0]")
	assert.False(t, c.state.unreachable)
}

func TestLowerOperator_MemrefAllocNarrowLoadStore(t *testing.T) {
	env := newFakeEnv()
	c, b := setUp(t, env, &FunctionSignature{Params: []ValType{ValTypeI32, ValTypeI32, ValTypeI32}}, nil)

	// locals: 0=addr, 1=size, 2=store value
	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalGet, Index: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalGet, Index: 1}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpMemrefAlloc, Attr: 0}))

	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalGet, Index: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpI32Const, I32Value: 4}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpMemrefNarrow}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpDrop}))

	// Re-derive a fresh MemRef for the store half of the sequence: the translator has no
	// DupMemRef operator, so exercising both MemrefMSLoad and MemrefMSStore in one function
	// body re-allocates rather than trying to keep the narrowed value live across the drop above.
	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalGet, Index: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalGet, Index: 1}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpMemrefAlloc, Attr: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpMemrefMSLoad}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpDrop}))

	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalGet, Index: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalGet, Index: 1}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpMemrefAlloc, Attr: 0}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpLocalGet, Index: 2}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpMemrefMSStore}))

	require.NoError(t, c.LowerOperator(Operator{Kind: OpReturn}))
	require.NoError(t, c.LowerOperator(Operator{Kind: OpEnd}))

	out := b.Format()
	assert.Contains(t, out, "Load")
	assert.Contains(t, out, "Store")
	assert.False(t, c.state.unreachable)
}
