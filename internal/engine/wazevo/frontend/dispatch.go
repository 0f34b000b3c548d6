package frontend

import (
	"github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/ssa"
)

// LowerOperator dispatches a single decoded operator, advancing the translation state by
// exactly one step. Callers drive a whole function body by calling this once per element of the
// validated operator stream, after LowerEntry and before a final opEnd closes the function-body
// frame. The only failure mode is a static one (an operator this translator does not recognize,
// or a configured limit exceeded); a Wasm-level trap never surfaces here; it is lowered directly
// into the SSA IR as an ExitCode instruction instead.
func (c *Compiler) LowerOperator(op Operator) error {
	builder := c.ssaBuilder
	execCtx := c.execCtxValue
	state := &c.state

	if c.config.MaxControlDepth > 0 && len(state.controlFrames) > c.config.MaxControlDepth {
		return newError(PhaseDispatch, KindInvalidOperator, nil,
			"control nesting depth %d exceeds configured maximum %d", len(state.controlFrames), c.config.MaxControlDepth)
	}

	switch op.Kind {
	case OpUnreachable:
		c.opUnreachable(builder, execCtx)
	case OpNop:
		// No IR effect.

	case OpBlock:
		c.opBlock(builder, op.Block)
	case OpLoop:
		c.opLoop(builder, execCtx, op.Block)
	case OpIf:
		c.opIf(builder, op.Block)
	case OpElse:
		c.opElse(builder)
	case OpEnd:
		c.opEnd(builder)
	case OpBr:
		c.opBr(builder, op.Index)
	case OpBrIf:
		c.opBrIf(builder, op.Index)
	case OpBrTable:
		c.opBrTable(builder, op.BrTable.Targets, op.BrTable.Default)
	case OpReturn:
		c.opReturn(builder)
	case OpCall:
		c.lowerCall(builder, execCtx, op)
	case OpCallIndirect:
		c.lowerCallIndirect(builder, execCtx, op)

	case OpDrop:
		if !state.unreachable {
			state.pop()
		}
	case OpSelect, OpTypedSelect:
		if state.unreachable {
			break
		}
		cond := state.pop()
		y, x := state.pop(), state.pop()
		if x.Type().IsVector() {
			x = optionallyBitcastVector(builder, x, ssa.TypeVecCanonical)
			y = optionallyBitcastVector(builder, y, ssa.TypeVecCanonical)
		}
		sel := builder.AllocateInstruction()
		sel.AsSelect(cond, x, y)
		builder.InsertInstruction(sel)
		state.push(sel.Return())

	case OpLocalGet:
		if state.unreachable {
			break
		}
		state.push(builder.FindValue(c.localVariable(op.Index)))
	case OpLocalSet:
		if state.unreachable {
			break
		}
		v := state.pop()
		v = canonicalizeForStorage(builder, v)
		builder.DefineVariableInCurrentBB(c.localVariable(op.Index), v)
	case OpLocalTee:
		if state.unreachable {
			break
		}
		v := canonicalizeForStorage(builder, state.peek())
		builder.DefineVariableInCurrentBB(c.localVariable(op.Index), v)
	case OpGlobalGet:
		if state.unreachable {
			break
		}
		if c.isHostOwnedGlobal(op.Index) {
			state.push(c.env.TranslateCustomGlobalGet(builder, execCtx, op.Index))
		} else {
			state.push(c.getWasmGlobalValue(builder, op.Index))
		}
	case OpGlobalSet:
		if state.unreachable {
			break
		}
		v := canonicalizeForStorage(builder, state.pop())
		if c.isHostOwnedGlobal(op.Index) {
			c.env.TranslateCustomGlobalSet(builder, execCtx, op.Index, v)
		} else {
			c.setWasmGlobalValue(builder, op.Index, v)
		}

	case OpI32Load, OpI64Load, OpF32Load, OpF64Load,
		OpI32Load8S, OpI32Load8U, OpI32Load16S, OpI32Load16U,
		OpI64Load8S, OpI64Load8U, OpI64Load16S, OpI64Load16U, OpI64Load32S, OpI64Load32U:
		c.lowerLoad(builder, execCtx, op)
	case OpI32Store, OpI64Store, OpF32Store, OpF64Store,
		OpI32Store8, OpI32Store16, OpI64Store8, OpI64Store16, OpI64Store32:
		c.lowerStore(builder, execCtx, op)

	case OpMemorySize:
		if state.unreachable {
			break
		}
		state.push(c.env.TranslateMemorySize(builder, execCtx, op.Index))
	case OpMemoryGrow:
		if state.unreachable {
			break
		}
		delta := state.pop()
		state.push(c.env.TranslateMemoryGrow(builder, execCtx, op.Index, delta))
	case OpMemoryCopy:
		if state.unreachable {
			break
		}
		n, src, dst := state.pop(), state.pop(), state.pop()
		c.env.TranslateMemoryCopy(builder, execCtx, op.Index, op.Index2, dst, src, n)
	case OpMemoryFill:
		if state.unreachable {
			break
		}
		n, val, dst := state.pop(), state.pop(), state.pop()
		c.env.TranslateMemoryFill(builder, execCtx, op.Index, dst, val, n)
	case OpMemoryInit:
		if state.unreachable {
			break
		}
		n, src, dst := state.pop(), state.pop(), state.pop()
		c.env.TranslateMemoryInit(builder, execCtx, op.Index, op.Index2, dst, src, n)
	case OpDataDrop:
		if state.unreachable {
			break
		}
		c.env.TranslateDataDrop(builder, execCtx, op.Index)

	case OpTableGet:
		if state.unreachable {
			break
		}
		idx := state.pop()
		state.push(c.env.TranslateTableGet(builder, execCtx, op.Index, idx))
	case OpTableSet:
		if state.unreachable {
			break
		}
		val, idx := state.pop(), state.pop()
		c.env.TranslateTableSet(builder, execCtx, op.Index, idx, val)
	case OpTableSize:
		if state.unreachable {
			break
		}
		state.push(c.env.TranslateTableSize(builder, execCtx, op.Index))
	case OpTableGrow:
		if state.unreachable {
			break
		}
		delta, initVal := state.pop(), state.pop()
		state.push(c.env.TranslateTableGrow(builder, execCtx, op.Index, delta, initVal))
	case OpTableFill:
		if state.unreachable {
			break
		}
		n, val, dst := state.pop(), state.pop(), state.pop()
		c.env.TranslateTableFill(builder, execCtx, op.Index, dst, val, n)
	case OpTableCopy:
		if state.unreachable {
			break
		}
		n, src, dst := state.pop(), state.pop(), state.pop()
		c.env.TranslateTableCopy(builder, execCtx, op.Index, op.Index2, dst, src, n)
	case OpTableInit:
		if state.unreachable {
			break
		}
		n, src, dst := state.pop(), state.pop(), state.pop()
		c.env.TranslateTableInit(builder, execCtx, op.Index, op.Index2, dst, src, n)
	case OpElemDrop:
		if state.unreachable {
			break
		}
		c.env.TranslateElemDrop(builder, execCtx, op.Index)

	case OpRefNull:
		if state.unreachable {
			break
		}
		state.push(c.env.TranslateRefNull(builder, op.Block.Results[0]))
	case OpRefIsNull:
		if state.unreachable {
			break
		}
		state.push(c.env.TranslateRefIsNull(builder, state.pop()))
	case OpRefFunc:
		if state.unreachable {
			break
		}
		state.push(c.env.TranslateRefFunc(builder, execCtx, op.Index))

	case OpI32Const:
		if state.unreachable {
			break
		}
		state.push(c.constI32(builder, uint32(op.I32Value)))
	case OpI64Const:
		if state.unreachable {
			break
		}
		state.push(c.constI64(builder, uint64(op.I64Value)))
	case OpF32Const:
		if state.unreachable {
			break
		}
		inst := builder.AllocateInstruction()
		inst.AsF32const(float32FromBits(op.F32Value))
		builder.InsertInstruction(inst)
		state.push(inst.Return())
	case OpF64Const:
		if state.unreachable {
			break
		}
		inst := builder.AllocateInstruction()
		inst.AsF64const(float64FromBits(op.F64Value))
		builder.InsertInstruction(inst)
		state.push(inst.Return())

	case OpI32Eqz, OpI64Eqz:
		if state.unreachable {
			break
		}
		x := state.pop()
		var zero ssa.Value
		if op.Kind == OpI32Eqz {
			zero = c.constI32(builder, 0)
		} else {
			zero = c.constI64(builder, 0)
		}
		c.pushIcmp(builder, x, zero, ssa.IntegerCmpCondEqual)
	case OpI32Eq, OpI64Eq:
		c.binIcmp(builder, state, ssa.IntegerCmpCondEqual)
	case OpI32Ne, OpI64Ne:
		c.binIcmp(builder, state, ssa.IntegerCmpCondNotEqual)
	case OpI32LtS, OpI64LtS:
		c.binIcmp(builder, state, ssa.IntegerCmpCondSignedLessThan)
	case OpI32LtU, OpI64LtU:
		c.binIcmp(builder, state, ssa.IntegerCmpCondUnsignedLessThan)
	case OpI32GtS, OpI64GtS:
		c.binIcmp(builder, state, ssa.IntegerCmpCondSignedGreaterThan)
	case OpI32GtU, OpI64GtU:
		c.binIcmp(builder, state, ssa.IntegerCmpCondUnsignedGreaterThan)
	case OpI32LeS, OpI64LeS:
		c.binIcmp(builder, state, ssa.IntegerCmpCondSignedLessThanOrEqual)
	case OpI32LeU, OpI64LeU:
		c.binIcmp(builder, state, ssa.IntegerCmpCondUnsignedLessThanOrEqual)
	case OpI32GeS, OpI64GeS:
		c.binIcmp(builder, state, ssa.IntegerCmpCondSignedGreaterThanOrEqual)
	case OpI32GeU, OpI64GeU:
		c.binIcmp(builder, state, ssa.IntegerCmpCondUnsignedGreaterThanOrEqual)

	case OpF32Eq, OpF64Eq:
		c.binFcmp(builder, state, ssa.FloatCmpCondEqual)
	case OpF32Ne, OpF64Ne:
		c.binFcmp(builder, state, ssa.FloatCmpCondNotEqual)
	case OpF32Lt, OpF64Lt:
		c.binFcmp(builder, state, ssa.FloatCmpCondLessThan)
	case OpF32Gt, OpF64Gt:
		c.binFcmp(builder, state, ssa.FloatCmpCondGreaterThan)
	case OpF32Le, OpF64Le:
		c.binFcmp(builder, state, ssa.FloatCmpCondLessThanOrEqual)
	case OpF32Ge, OpF64Ge:
		c.binFcmp(builder, state, ssa.FloatCmpCondGreaterThanOrEqual)

	case OpI32Add, OpI64Add:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsIadd(x, y) })
	case OpI32Sub, OpI64Sub:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsIsub(x, y) })
	case OpI32Mul, OpI64Mul:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsImul(x, y) })
	case OpI32DivS, OpI64DivS:
		c.binOpCtx(builder, execCtx, state, func(i *ssa.Instruction, x, y, ctx ssa.Value) { i.AsSDiv(x, y, ctx) })
	case OpI32DivU, OpI64DivU:
		c.binOpCtx(builder, execCtx, state, func(i *ssa.Instruction, x, y, ctx ssa.Value) { i.AsUDiv(x, y, ctx) })
	case OpI32RemS, OpI64RemS:
		c.binOpCtx(builder, execCtx, state, func(i *ssa.Instruction, x, y, ctx ssa.Value) { i.AsSRem(x, y, ctx) })
	case OpI32RemU, OpI64RemU:
		c.binOpCtx(builder, execCtx, state, func(i *ssa.Instruction, x, y, ctx ssa.Value) { i.AsURem(x, y, ctx) })
	case OpI32And, OpI64And:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsBand(x, y) })
	case OpI32Or, OpI64Or:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsBor(x, y) })
	case OpI32Xor, OpI64Xor:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsBxor(x, y) })
	case OpI32Shl, OpI64Shl:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsIshl(x, y) })
	case OpI32ShrU, OpI64ShrU:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsUshr(x, y) })
	case OpI32ShrS, OpI64ShrS:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsSshr(x, y) })
	case OpI32Rotl, OpI64Rotl:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsRotl(x, y) })
	case OpI32Rotr, OpI64Rotr:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsRotr(x, y) })
	case OpI32Clz, OpI64Clz:
		c.unOp(builder, state, func(i *ssa.Instruction, x ssa.Value) { i.AsClz(x) })
	case OpI32Ctz, OpI64Ctz:
		c.unOp(builder, state, func(i *ssa.Instruction, x ssa.Value) { i.AsCtz(x) })
	case OpI32Popcnt, OpI64Popcnt:
		c.unOp(builder, state, func(i *ssa.Instruction, x ssa.Value) { i.AsPopcnt(x) })

	case OpF32Add, OpF64Add:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsFadd(x, y) })
	case OpF32Sub, OpF64Sub:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsFsub(x, y) })
	case OpF32Mul, OpF64Mul:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsFmul(x, y) })
	case OpF32Div, OpF64Div:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsFdiv(x, y) })
	case OpF32Min, OpF64Min:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsFmin(x, y) })
	case OpF32Max, OpF64Max:
		c.binOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) { i.AsFmax(x, y) })
	case OpF32Copysign, OpF64Copysign:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		state.push(builder.AllocateInstruction().AsFcopysign(x, y).Insert(builder).Return())
	case OpF32Neg, OpF64Neg:
		if state.unreachable {
			break
		}
		state.push(builder.AllocateInstruction().AsFneg(state.pop()).Insert(builder).Return())
	case OpF32Abs, OpF64Abs:
		if state.unreachable {
			break
		}
		state.push(builder.AllocateInstruction().AsFabs(state.pop()).Insert(builder).Return())
	case OpF32Sqrt, OpF64Sqrt:
		if state.unreachable {
			break
		}
		state.push(builder.AllocateInstruction().AsSqrt(state.pop()).Insert(builder).Return())
	case OpF32Ceil, OpF64Ceil:
		if state.unreachable {
			break
		}
		state.push(builder.AllocateInstruction().AsCeil(state.pop()).Insert(builder).Return())
	case OpF32Floor, OpF64Floor:
		if state.unreachable {
			break
		}
		state.push(builder.AllocateInstruction().AsFloor(state.pop()).Insert(builder).Return())
	case OpF32Trunc, OpF64Trunc:
		if state.unreachable {
			break
		}
		state.push(builder.AllocateInstruction().AsTrunc(state.pop()).Insert(builder).Return())
	case OpF32Nearest, OpF64Nearest:
		if state.unreachable {
			break
		}
		state.push(builder.AllocateInstruction().AsNearest(state.pop()).Insert(builder).Return())

	case OpI32WrapI64:
		if state.unreachable {
			break
		}
		state.push(builder.AllocateInstruction().AsIreduce(state.pop(), ssa.TypeI32).Insert(builder).Return())
	case OpI64ExtendI32S:
		c.extend(builder, state, true, 32, 64)
	case OpI64ExtendI32U:
		c.extend(builder, state, false, 32, 64)
	case OpI32Extend8S:
		c.extend(builder, state, true, 8, 32)
	case OpI32Extend16S:
		c.extend(builder, state, true, 16, 32)
	case OpI64Extend8S:
		c.extend(builder, state, true, 8, 64)
	case OpI64Extend16S:
		c.extend(builder, state, true, 16, 64)
	case OpI64Extend32S:
		c.extend(builder, state, true, 32, 64)

	case OpI32TruncF32S, OpI32TruncF64S, OpI32TruncF32U, OpI32TruncF64U,
		OpI64TruncF32S, OpI64TruncF64S, OpI64TruncF32U, OpI64TruncF64U:
		if state.unreachable {
			break
		}
		signed := op.Kind == OpI32TruncF32S || op.Kind == OpI32TruncF64S || op.Kind == OpI64TruncF32S || op.Kind == OpI64TruncF64S
		dst64 := op.Kind == OpI64TruncF32S || op.Kind == OpI64TruncF64S || op.Kind == OpI64TruncF32U || op.Kind == OpI64TruncF64U
		v := builder.AllocateInstruction().AsFcvtToInt(state.pop(), execCtx, signed, dst64, false).Insert(builder).Return()
		state.push(v)
	case OpI32TruncSatF32S, OpI32TruncSatF64S, OpI32TruncSatF32U, OpI32TruncSatF64U,
		OpI64TruncSatF32S, OpI64TruncSatF64S, OpI64TruncSatF32U, OpI64TruncSatF64U:
		if state.unreachable {
			break
		}
		signed := op.Kind == OpI32TruncSatF32S || op.Kind == OpI32TruncSatF64S || op.Kind == OpI64TruncSatF32S || op.Kind == OpI64TruncSatF64S
		dst64 := op.Kind == OpI64TruncSatF32S || op.Kind == OpI64TruncSatF64S || op.Kind == OpI64TruncSatF32U || op.Kind == OpI64TruncSatF64U
		v := builder.AllocateInstruction().AsFcvtToInt(state.pop(), execCtx, signed, dst64, true).Insert(builder).Return()
		state.push(v)

	case OpF32ConvertI32S, OpF32ConvertI64S, OpF64ConvertI32S, OpF64ConvertI64S:
		c.convertFromInt(builder, state, true, op.Kind == OpF32ConvertI32S || op.Kind == OpF32ConvertI64S)
	case OpF32ConvertI32U, OpF32ConvertI64U, OpF64ConvertI32U, OpF64ConvertI64U:
		c.convertFromInt(builder, state, false, op.Kind == OpF32ConvertI32U || op.Kind == OpF32ConvertI64U)
	case OpF32DemoteF64:
		if state.unreachable {
			break
		}
		inst := builder.AllocateInstruction()
		inst.AsFdemote(state.pop())
		builder.InsertInstruction(inst)
		state.push(inst.Return())
	case OpF64PromoteF32:
		if state.unreachable {
			break
		}
		inst := builder.AllocateInstruction()
		inst.AsFpromote(state.pop())
		builder.InsertInstruction(inst)
		state.push(inst.Return())

	case OpI32ReinterpretF32:
		c.bitcastScalar(builder, state, ssa.TypeI32)
	case OpI64ReinterpretF64:
		c.bitcastScalar(builder, state, ssa.TypeI64)
	case OpF32ReinterpretI32:
		c.bitcastScalar(builder, state, ssa.TypeF32)
	case OpF64ReinterpretI64:
		c.bitcastScalar(builder, state, ssa.TypeF64)

	case OpV128Const:
		if state.unreachable {
			break
		}
		inst := builder.AllocateInstruction()
		inst.AsVconst(op.V128Lo, op.V128Hi)
		builder.InsertInstruction(inst)
		state.push(inst.Return())
	case OpV128Load:
		c.lowerSimdLoad(builder, execCtx, op)
	case OpV128Store:
		c.lowerSimdStore(builder, execCtx, op)
	case OpV128Splat:
		if state.unreachable {
			break
		}
		inst := builder.AllocateInstruction()
		inst.AsSplat(state.pop(), op.Lane)
		builder.InsertInstruction(inst)
		state.push(inst.Return())
	case OpV128ExtractLane:
		if state.unreachable {
			break
		}
		v := optionallyBitcastVector(builder, state.pop(), canonicalForLane(op.Lane))
		inst := builder.AllocateInstruction()
		inst.AsExtractlane(v, op.LaneIdx, op.Lane, op.Signed)
		builder.InsertInstruction(inst)
		state.push(inst.Return())
	case OpV128ReplaceLane:
		if state.unreachable {
			break
		}
		x := state.pop()
		v := optionallyBitcastVector(builder, state.pop(), canonicalForLane(op.Lane))
		inst := builder.AllocateInstruction()
		inst.AsInsertlane(v, x, op.LaneIdx, op.Lane)
		builder.InsertInstruction(inst)
		state.push(inst.Return())
	case OpV128Shuffle:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		inst := builder.AllocateInstruction()
		inst.AsShuffle(x, y, op.ShuffleMask)
		builder.InsertInstruction(inst)
		state.push(inst.Return())
	case OpV128Swizzle:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		inst := builder.AllocateInstruction()
		inst.AsSwizzle(x, y)
		builder.InsertInstruction(inst)
		state.push(inst.Return())
	case OpV128Not:
		if state.unreachable {
			break
		}
		state.push(builder.AllocateInstruction().AsVbnot(state.pop()).Insert(builder).Return())
	case OpV128And:
		c.binVOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) *ssa.Instruction { return i.AsVband(x, y) })
	case OpV128AndNot:
		c.binVOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) *ssa.Instruction { return i.AsVbandnot(x, y) })
	case OpV128Or:
		c.binVOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) *ssa.Instruction { return i.AsVbor(x, y) })
	case OpV128Xor:
		c.binVOp(builder, state, func(i *ssa.Instruction, x, y ssa.Value) *ssa.Instruction { return i.AsVbxor(x, y) })
	case OpV128Bitselect:
		if state.unreachable {
			break
		}
		y, x, cond := state.pop(), state.pop(), state.pop()
		v := builder.AllocateInstruction().AsVbitselect(cond, x, y).Insert(builder).Return()
		state.push(v)
	case OpV128AnyTrue:
		if state.unreachable {
			break
		}
		v := builder.AllocateInstruction().AsVanyTrue(state.pop(), op.Lane).Insert(builder).Return()
		state.push(v)
	case OpV128AllTrue:
		if state.unreachable {
			break
		}
		v := builder.AllocateInstruction().AsVallTrue(state.pop(), op.Lane).Insert(builder).Return()
		state.push(v)
	case OpV128Bitmask:
		if state.unreachable {
			break
		}
		v := builder.AllocateInstruction().AsVhighBits(state.pop(), op.Lane).Insert(builder).Return()
		state.push(v)
	case OpVIAbs:
		c.unVOp(builder, state, op.Lane, func(i *ssa.Instruction, x ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVIabs(x, lane)
		})
	case OpVINeg:
		c.unVOp(builder, state, op.Lane, func(i *ssa.Instruction, x ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVIneg(x, lane)
		})
	case OpVIPopcnt:
		c.unVOp(builder, state, op.Lane, func(i *ssa.Instruction, x ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVIpopcnt(x, lane)
		})
	case OpVIAdd:
		c.binVLaneOp(builder, state, op.Lane, func(i *ssa.Instruction, x, y ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVIadd(x, y, lane)
		})
	case OpVIAddSatS:
		c.binVLaneOp(builder, state, op.Lane, func(i *ssa.Instruction, x, y ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVSaddSat(x, y, lane)
		})
	case OpVIAddSatU:
		c.binVLaneOp(builder, state, op.Lane, func(i *ssa.Instruction, x, y ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVUaddSat(x, y, lane)
		})
	case OpVISub:
		c.binVLaneOp(builder, state, op.Lane, func(i *ssa.Instruction, x, y ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVIsub(x, y, lane)
		})
	case OpVISubSatS:
		c.binVLaneOp(builder, state, op.Lane, func(i *ssa.Instruction, x, y ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVSsubSat(x, y, lane)
		})
	case OpVISubSatU:
		c.binVLaneOp(builder, state, op.Lane, func(i *ssa.Instruction, x, y ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVUsubSat(x, y, lane)
		})
	case OpVIMinS:
		c.binVLaneOp(builder, state, op.Lane, func(i *ssa.Instruction, x, y ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVImin(x, y, lane)
		})
	case OpVIMinU:
		c.binVLaneOp(builder, state, op.Lane, func(i *ssa.Instruction, x, y ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVUmin(x, y, lane)
		})
	case OpVIMaxS:
		c.binVLaneOp(builder, state, op.Lane, func(i *ssa.Instruction, x, y ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVImax(x, y, lane)
		})
	case OpVIMaxU:
		c.binVLaneOp(builder, state, op.Lane, func(i *ssa.Instruction, x, y ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVUmax(x, y, lane)
		})
	case OpVIAvgrU:
		c.binVLaneOp(builder, state, op.Lane, func(i *ssa.Instruction, x, y ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVAvgRound(x, y, lane)
		})
	case OpVIMul:
		c.binVLaneOp(builder, state, op.Lane, func(i *ssa.Instruction, x, y ssa.Value, lane ssa.VecLane) *ssa.Instruction {
			return i.AsVImul(x, y, lane)
		})

	case OpMemoryAtomicWait32, OpMemoryAtomicWait64:
		if state.unreachable {
			break
		}
		timeout, expected, addr := state.pop(), state.pop(), state.pop()
		heap := c.env.Heaps()[op.Mem.MemoryIndex]
		if resolved, ok := c.prepareAtomicAddr(builder, execCtx, heap, addr, op.Mem, atomicWaitAccessSize(op.Kind)); ok {
			v := c.env.TranslateAtomicWait(builder, execCtx, op.Kind == OpMemoryAtomicWait64, resolved, expected, timeout)
			state.push(v)
		} else {
			state.unreachable = true
		}
	case OpMemoryAtomicNotify:
		if state.unreachable {
			break
		}
		count, addr := state.pop(), state.pop()
		heap := c.env.Heaps()[op.Mem.MemoryIndex]
		if resolved, ok := c.prepareAtomicAddr(builder, execCtx, heap, addr, op.Mem, 4); ok {
			v := c.env.TranslateAtomicNotify(builder, execCtx, resolved, count)
			state.push(v)
		} else {
			state.unreachable = true
		}

	case OpMemrefNull:
		if state.unreachable {
			break
		}
		state.push(c.memrefNull(builder))
	case OpMemrefAlloc:
		if state.unreachable {
			break
		}
		size, addr := state.pop(), state.pop()
		state.push(c.memrefAlloc(builder, execCtx, addr, size, op.Attr))
	case OpMemrefField0:
		c.memrefFieldOp(builder, state, c.memrefField0)
	case OpMemrefField1:
		c.memrefFieldOp(builder, state, c.memrefField1)
	case OpMemrefField2:
		c.memrefFieldOp(builder, state, c.memrefField2)
	case OpMemrefField3:
		c.memrefFieldOp(builder, state, c.memrefField3)
	case OpMemrefAdd:
		if state.unreachable {
			break
		}
		val, mref := state.pop(), state.pop()
		state.push(c.memrefAdd(builder, mref, val))
	case OpMemrefAnd:
		if state.unreachable {
			break
		}
		val, mref := state.pop(), state.pop()
		state.push(c.memrefAnd(builder, mref, val))
	case OpMemrefNarrow:
		if state.unreachable {
			break
		}
		narrowSize, narrowBase, mref := state.pop(), state.pop(), state.pop()
		state.push(c.memrefNarrow(builder, execCtx, mref, narrowBase, narrowSize))
	case OpMemrefEq:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		state.push(c.memrefEq(builder, x, y))
	case OpMemrefNe:
		if state.unreachable {
			break
		}
		y, x := state.pop(), state.pop()
		state.push(c.memrefNe(builder, x, y))
	case OpMemrefSelect:
		if state.unreachable {
			break
		}
		y, x, cond := state.pop(), state.pop(), state.pop()
		state.push(c.memrefSelect(builder, cond, x, y))
	case OpMemrefConst:
		if state.unreachable {
			break
		}
		state.push(c.memrefConst(builder, execCtx))
	case OpMemrefMSLoad:
		c.lowerMemrefMSLoad(builder, execCtx, op)
	case OpMemrefMSStore:
		c.lowerMemrefMSStore(builder, execCtx, op)

	default:
		return newError(PhaseDispatch, KindUnsupportedOperator, nil, "unhandled operator kind %d", op.Kind)
	}
	return nil
}
