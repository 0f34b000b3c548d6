package frontend

import (
	"math"

	"github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/ssa"
)

func float32FromBits(bits uint32) float32 { return math.Float32frombits(bits) }
func float64FromBits(bits uint64) float64 { return math.Float64frombits(bits) }

// canonicalizeForStorage bitcasts v to the canonical vector shape before it is written into a
// local or global slot, mirroring the same rule canonicaliseV128Values applies at CFG joins:
// every value at rest (as opposed to mid-expression) is canonical.
func canonicalizeForStorage(builder ssa.Builder, v ssa.Value) ssa.Value {
	if v.Type().IsVector() {
		return optionallyBitcastVector(builder, v, ssa.TypeVecCanonical)
	}
	return v
}

func (c *Compiler) pushIcmp(builder ssa.Builder, x, y ssa.Value, cond ssa.IntegerCmpCond) {
	cmp := builder.AllocateInstruction()
	cmp.AsIcmp(x, y, cond)
	builder.InsertInstruction(cmp)
	c.state.push(cmp.Return())
}

func (c *Compiler) binIcmp(builder ssa.Builder, state *loweringState, cond ssa.IntegerCmpCond) {
	if state.unreachable {
		return
	}
	y, x := state.pop(), state.pop()
	c.pushIcmp(builder, x, y, cond)
}

func (c *Compiler) binFcmp(builder ssa.Builder, state *loweringState, cond ssa.FloatCmpCond) {
	if state.unreachable {
		return
	}
	y, x := state.pop(), state.pop()
	cmp := builder.AllocateInstruction()
	cmp.AsFcmp(x, y, cond)
	builder.InsertInstruction(cmp)
	state.push(cmp.Return())
}

func (c *Compiler) binOp(builder ssa.Builder, state *loweringState, f func(i *ssa.Instruction, x, y ssa.Value)) {
	if state.unreachable {
		return
	}
	y, x := state.pop(), state.pop()
	inst := builder.AllocateInstruction()
	f(inst, x, y)
	builder.InsertInstruction(inst)
	state.push(inst.Return())
}

func (c *Compiler) binOpCtx(builder ssa.Builder, execCtx ssa.Value, state *loweringState, f func(i *ssa.Instruction, x, y, ctx ssa.Value)) {
	if state.unreachable {
		return
	}
	y, x := state.pop(), state.pop()
	inst := builder.AllocateInstruction()
	f(inst, x, y, execCtx)
	builder.InsertInstruction(inst)
	state.push(inst.Return())
}

func (c *Compiler) unOp(builder ssa.Builder, state *loweringState, f func(i *ssa.Instruction, x ssa.Value)) {
	if state.unreachable {
		return
	}
	x := state.pop()
	inst := builder.AllocateInstruction()
	f(inst, x)
	builder.InsertInstruction(inst)
	state.push(inst.Return())
}

func (c *Compiler) binVOp(builder ssa.Builder, state *loweringState, f func(i *ssa.Instruction, x, y ssa.Value) *ssa.Instruction) {
	if state.unreachable {
		return
	}
	y, x := state.pop(), state.pop()
	inst := builder.AllocateInstruction()
	f(inst, x, y)
	builder.InsertInstruction(inst)
	state.push(inst.Return())
}

func (c *Compiler) binVLaneOp(builder ssa.Builder, state *loweringState, lane ssa.VecLane, f func(i *ssa.Instruction, x, y ssa.Value, lane ssa.VecLane) *ssa.Instruction) {
	if state.unreachable {
		return
	}
	y := optionallyBitcastVector(builder, state.pop(), lane.Type())
	x := optionallyBitcastVector(builder, state.pop(), lane.Type())
	inst := builder.AllocateInstruction()
	f(inst, x, y, lane)
	builder.InsertInstruction(inst)
	state.push(inst.Return())
}

func (c *Compiler) unVOp(builder ssa.Builder, state *loweringState, lane ssa.VecLane, f func(i *ssa.Instruction, x ssa.Value, lane ssa.VecLane) *ssa.Instruction) {
	if state.unreachable {
		return
	}
	x := optionallyBitcastVector(builder, state.pop(), lane.Type())
	inst := builder.AllocateInstruction()
	f(inst, x, lane)
	builder.InsertInstruction(inst)
	state.push(inst.Return())
}

// extend lowers a sign/zero-extension between two scalar widths (the i32->i64 extend family
// plus the sign-extension ops; i32.wrap_i64 is lowered separately via Ireduce). from==to never occurs in practice (no such Wasm operator exists).
func (c *Compiler) extend(builder ssa.Builder, state *loweringState, signed bool, from, to byte) {
	if state.unreachable {
		return
	}
	x := state.pop()
	inst := builder.AllocateInstruction()
	if signed {
		inst.AsSExtend(x, from, to)
	} else {
		inst.AsUExtend(x, from, to)
	}
	builder.InsertInstruction(inst)
	state.push(inst.Return())
}

func (c *Compiler) convertFromInt(builder ssa.Builder, state *loweringState, signed, dst32 bool) {
	if state.unreachable {
		return
	}
	x := state.pop()
	inst := builder.AllocateInstruction()
	inst.AsFcvtFromInt(x, signed, !dst32)
	builder.InsertInstruction(inst)
	state.push(inst.Return())
}

func (c *Compiler) bitcastScalar(builder ssa.Builder, state *loweringState, dst ssa.Type) {
	if state.unreachable {
		return
	}
	x := state.pop()
	inst := builder.AllocateInstruction()
	inst.AsBitcast(x, dst)
	builder.InsertInstruction(inst)
	state.push(inst.Return())
}

func (c *Compiler) memrefFieldOp(builder ssa.Builder, state *loweringState, f func(ssa.Builder, ssa.Value) ssa.Value) {
	if state.unreachable {
		return
	}
	mref := state.pop()
	state.push(f(builder, mref))
}

func canonicalForLane(lane ssa.VecLane) ssa.Type { return lane.Type() }

// lowerCall lowers a direct call operator: pops the callee's argument values (in reverse, since
// they were pushed left-to-right), hands them to the Environment, and pushes back its results.
func (c *Compiler) lowerCall(builder ssa.Builder, execCtx ssa.Value, op Operator) {
	if c.state.unreachable {
		return
	}
	sig := c.env.Signature(c.env.FunctionSignatureIndex(op.Index))
	args := make([]ssa.Value, len(sig.Params))
	c.state.nPopInto(len(args), args)
	results := c.env.TranslateCall(builder, execCtx, op.Index, args)
	for _, r := range results {
		c.state.push(r)
	}
}

// lowerCallIndirect lowers a call_indirect operator: pops the table index operand, then the
// callee's arguments, per the type index's signature.
func (c *Compiler) lowerCallIndirect(builder ssa.Builder, execCtx ssa.Value, op Operator) {
	if c.state.unreachable {
		return
	}
	sig := c.env.Signature(op.Index)
	tableIndexVal := c.state.pop()
	args := make([]ssa.Value, len(sig.Params))
	c.state.nPopInto(len(args), args)
	results := c.env.TranslateCallIndirect(builder, execCtx, op.Index, op.Index2, tableIndexVal, args)
	for _, r := range results {
		c.state.push(r)
	}
}

// loadShape describes one scalar Load operator variant: the natural access width, the result
// type it produces on the value stack, and (for narrowing loads) the extending opcode to use
// instead of a plain Load.
type loadShape struct {
	size    uint64
	typ     ssa.Type
	ext     ssa.Opcode
	useExt  bool
	dst64   bool
}

func loadShapeFor(kind OperatorKind) loadShape {
	switch kind {
	case OpI32Load:
		return loadShape{size: 4, typ: ssa.TypeI32}
	case OpI64Load:
		return loadShape{size: 8, typ: ssa.TypeI64}
	case OpF32Load:
		return loadShape{size: 4, typ: ssa.TypeF32}
	case OpF64Load:
		return loadShape{size: 8, typ: ssa.TypeF64}
	case OpI32Load8S:
		return loadShape{size: 1, typ: ssa.TypeI32, ext: ssa.OpcodeSload8, useExt: true}
	case OpI32Load8U:
		return loadShape{size: 1, typ: ssa.TypeI32, ext: ssa.OpcodeUload8, useExt: true}
	case OpI32Load16S:
		return loadShape{size: 2, typ: ssa.TypeI32, ext: ssa.OpcodeSload16, useExt: true}
	case OpI32Load16U:
		return loadShape{size: 2, typ: ssa.TypeI32, ext: ssa.OpcodeUload16, useExt: true}
	case OpI64Load8S:
		return loadShape{size: 1, typ: ssa.TypeI64, ext: ssa.OpcodeSload8, useExt: true, dst64: true}
	case OpI64Load8U:
		return loadShape{size: 1, typ: ssa.TypeI64, ext: ssa.OpcodeUload8, useExt: true, dst64: true}
	case OpI64Load16S:
		return loadShape{size: 2, typ: ssa.TypeI64, ext: ssa.OpcodeSload16, useExt: true, dst64: true}
	case OpI64Load16U:
		return loadShape{size: 2, typ: ssa.TypeI64, ext: ssa.OpcodeUload16, useExt: true, dst64: true}
	case OpI64Load32S:
		return loadShape{size: 4, typ: ssa.TypeI64, ext: ssa.OpcodeSload32, useExt: true, dst64: true}
	case OpI64Load32U:
		return loadShape{size: 4, typ: ssa.TypeI64, ext: ssa.OpcodeUload32, useExt: true, dst64: true}
	default:
		panic("BUG: not a load operator")
	}
}

func storeShapeFor(kind OperatorKind) (size uint64, op ssa.Opcode) {
	switch kind {
	case OpI32Store, OpF32Store:
		return 4, ssa.OpcodeStore
	case OpI64Store, OpF64Store:
		return 8, ssa.OpcodeStore
	case OpI32Store8, OpI64Store8:
		return 1, ssa.OpcodeIstore8
	case OpI32Store16, OpI64Store16:
		return 2, ssa.OpcodeIstore16
	case OpI64Store32:
		return 4, ssa.OpcodeIstore32
	default:
		panic("BUG: not a store operator")
	}
}

func (c *Compiler) lowerLoad(builder ssa.Builder, execCtx ssa.Value, op Operator) {
	state := &c.state
	if state.unreachable {
		return
	}
	index := state.pop()
	heap := c.env.Heaps()[op.Mem.MemoryIndex]
	shape := loadShapeFor(op.Kind)
	addr, ok := c.prepareAddr(builder, execCtx, heap, index, op.Mem, shape.size)
	if !ok {
		state.unreachable = true
		return
	}
	if shape.useExt {
		inst := builder.AllocateInstruction()
		inst.AsExtLoad(shape.ext, addr, 0, shape.dst64)
		builder.InsertInstruction(inst)
		state.push(inst.Return())
		return
	}
	load := builder.AllocateInstruction()
	load.AsLoad(addr, 0, shape.typ)
	builder.InsertInstruction(load)
	state.push(load.Return())
}

func (c *Compiler) lowerStore(builder ssa.Builder, execCtx ssa.Value, op Operator) {
	state := &c.state
	if state.unreachable {
		return
	}
	value := state.pop()
	index := state.pop()
	heap := c.env.Heaps()[op.Mem.MemoryIndex]
	size, storeOp := storeShapeFor(op.Kind)
	addr, ok := c.prepareAddr(builder, execCtx, heap, index, op.Mem, size)
	if !ok {
		state.unreachable = true
		return
	}
	store := builder.AllocateInstruction()
	store.AsStore(storeOp, value, addr, 0)
	builder.InsertInstruction(store)
}

func (c *Compiler) lowerSimdLoad(builder ssa.Builder, execCtx ssa.Value, op Operator) {
	state := &c.state
	if state.unreachable {
		return
	}
	index := state.pop()
	heap := c.env.Heaps()[op.Mem.MemoryIndex]
	addr, ok := c.prepareAddr(builder, execCtx, heap, index, op.Mem, 16)
	if !ok {
		state.unreachable = true
		return
	}
	load := builder.AllocateInstruction()
	load.AsLoad(addr, 0, ssa.TypeVecCanonical)
	builder.InsertInstruction(load)
	state.push(load.Return())
}

func (c *Compiler) lowerSimdStore(builder ssa.Builder, execCtx ssa.Value, op Operator) {
	state := &c.state
	if state.unreachable {
		return
	}
	value := optionallyBitcastVector(builder, state.pop(), ssa.TypeVecCanonical)
	index := state.pop()
	heap := c.env.Heaps()[op.Mem.MemoryIndex]
	addr, ok := c.prepareAddr(builder, execCtx, heap, index, op.Mem, 16)
	if !ok {
		state.unreachable = true
		return
	}
	store := builder.AllocateInstruction()
	store.AsStore(ssa.OpcodeStore, value, addr, 0)
	builder.InsertInstruction(store)
}

func atomicWaitAccessSize(kind OperatorKind) uint64 {
	if kind == OpMemoryAtomicWait64 {
		return 8
	}
	return 4
}

// narrowingSizeFor resolves OpMemrefMSLoad/OpMemrefMSStore's scalar access width: op.Attr
// overrides MemrefValType's natural size for the narrowing 8S/8U/16S/16U/32S/32U variants,
// exactly as Wasm's own narrowing load/store immediates do for ordinary memory accesses.
func narrowingSizeFor(vt ValType, attr uint32) uint64 {
	if attr != 0 {
		return uint64(attr)
	}
	switch vt {
	case ValTypeI32, ValTypeF32:
		return 4
	case ValTypeI64, ValTypeF64:
		return 8
	case ValTypeV128:
		return 16
	default:
		return 8
	}
}

func (c *Compiler) lowerMemrefMSLoad(builder ssa.Builder, execCtx ssa.Value, op Operator) {
	state := &c.state
	if state.unreachable {
		return
	}
	mref := state.pop()
	vt := op.MemrefValType()
	if vt == ValTypeV128 {
		state.push(c.memrefMSLoadMemref(builder, execCtx, mref, op.Mem))
		return
	}
	size := narrowingSizeFor(vt, op.Attr)
	typ := WasmTypeToSSAType(vt)
	if op.Attr != 0 && op.Attr < 8 {
		// Narrowing scalar load: reuse the ordinary extending-load opcode table keyed by width
		// and signedness, then widen to the value's natural type.
		ext := extOpcodeFor(op.Attr, op.Signed)
		addr := c.prepareMSAddr(builder, execCtx, mref, op.Mem, size)
		inst := builder.AllocateInstruction()
		inst.AsExtLoad(ext, addr, 0, typ == ssa.TypeI64)
		builder.InsertInstruction(inst)
		state.push(inst.Return())
		return
	}
	state.push(c.memrefMSLoad(builder, execCtx, mref, op.Mem, size, typ))
}

func (c *Compiler) lowerMemrefMSStore(builder ssa.Builder, execCtx ssa.Value, op Operator) {
	state := &c.state
	if state.unreachable {
		return
	}
	value := state.pop()
	mref := state.pop()
	vt := op.MemrefValType()
	if vt == ValTypeV128 {
		c.memrefMSStoreMemref(builder, execCtx, mref, value, op.Mem)
		return
	}
	size := narrowingSizeFor(vt, op.Attr)
	storeOp := ssa.OpcodeStore
	if op.Attr != 0 && op.Attr < 8 {
		storeOp = narrowStoreOpcodeFor(op.Attr)
	}
	c.memrefMSStore(builder, execCtx, mref, value, op.Mem, size, storeOp)
}

func extOpcodeFor(widthBytes uint32, signed bool) ssa.Opcode {
	switch widthBytes {
	case 1:
		if signed {
			return ssa.OpcodeSload8
		}
		return ssa.OpcodeUload8
	case 2:
		if signed {
			return ssa.OpcodeSload16
		}
		return ssa.OpcodeUload16
	case 4:
		if signed {
			return ssa.OpcodeSload32
		}
		return ssa.OpcodeUload32
	default:
		panic("BUG: invalid narrowing width")
	}
}

func narrowStoreOpcodeFor(widthBytes uint32) ssa.Opcode {
	switch widthBytes {
	case 1:
		return ssa.OpcodeIstore8
	case 2:
		return ssa.OpcodeIstore16
	case 4:
		return ssa.OpcodeIstore32
	default:
		panic("BUG: invalid narrowing width")
	}
}
