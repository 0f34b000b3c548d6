package frontend

import (
	"go.uber.org/zap"

	"github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/ssa"
	"github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/wazevoapi"
)

// newBlockWithParams allocates a block and immediately gives it one parameter per type, in
// order: every control-join block (a loop header, or a Block/If's following/else block) is
// built this way, so SSA block parameters always line up 1:1 with the Wasm block type they
// represent.
func (c *Compiler) newBlockWithParams(builder ssa.Builder, types []ValType) ssa.BasicBlock {
	blk := builder.AllocateBasicBlock()
	for _, t := range types {
		blk.AddParam(builder, WasmTypeToSSAType(t))
	}
	return blk
}

func blockParamValues(blk ssa.BasicBlock) []ssa.Value {
	n := blk.Params()
	if n == 0 {
		return nil
	}
	vs := make([]ssa.Value, n)
	for i := 0; i < n; i++ {
		vs[i] = blk.Param(i)
	}
	return vs
}

// opBlock lowers a `block` operator. See the unreachable-path note on loweringState.unreachable:
// a Block entered while already unreachable still gets a frame, just one with no real
// followingBlock, so the matching End always has a frame to pop.
func (c *Compiler) opBlock(builder ssa.Builder, sig BlockSignature) {
	if c.state.unreachable {
		c.state.ctrlPush(controlFrame{
			kind: controlFrameKindBlock, blockType: sig,
			originalStackLenWithoutParam: len(c.state.values),
		})
		return
	}
	next := c.newBlockWithParams(builder, sig.Results)
	c.state.ctrlPush(controlFrame{
		kind: controlFrameKindBlock, blockType: sig, followingBlock: next,
		originalStackLenWithoutParam: len(c.state.values) - len(sig.Params),
	})
}

// opLoop lowers a `loop` operator: unlike Block, a loop is entered immediately (its header is
// the current block's sole successor from here on), so its header block is created and jumped
// into right away, with the top-|params| stack values becoming its block parameters.
func (c *Compiler) opLoop(builder ssa.Builder, execCtx ssa.Value, sig BlockSignature) {
	if c.state.unreachable {
		c.state.ctrlPush(controlFrame{
			kind: controlFrameKindLoop, blockType: sig,
			originalStackLenWithoutParam: len(c.state.values),
		})
		return
	}
	header := c.newBlockWithParams(builder, sig.Params)
	next := c.newBlockWithParams(builder, sig.Results)

	args := make([]ssa.Value, len(sig.Params))
	c.state.nPopInto(len(args), args)
	canonicaliseThenJump(builder, args, header)

	c.state.ctrlPush(controlFrame{
		kind: controlFrameKindLoop, blockType: sig, blk: header, followingBlock: next,
		originalStackLenWithoutParam: len(c.state.values),
	})

	builder.SetCurrentBlock(header)
	c.env.TranslateLoopHeader(builder, execCtx)
	for _, v := range blockParamValues(header) {
		c.state.push(v)
	}
}

// opIf lowers an `if` operator, implementing the deferred-else design: when the block type
// admits an empty else (params == results), no else block is allocated up front at all — the
// `if`'s own Brz is recorded as pendingElseBranch and only retargeted if an `else` operator is
// later actually seen. Otherwise (params != results, an else is mandatory) the else block is
// allocated immediately, since there is no valid implicit-else encoding to fall back to.
func (c *Compiler) opIf(builder ssa.Builder, sig BlockSignature) {
	cond := c.state.pop()

	if c.state.unreachable {
		c.state.ctrlPush(controlFrame{
			kind: controlFrameKindIf, blockType: sig, headReachable: false,
			originalStackLenWithoutParam: len(c.state.values),
		})
		return
	}

	params := c.state.nPeekDup(len(sig.Params))
	next := c.newBlockWithParams(builder, sig.Results)

	frame := controlFrame{
		blockType: sig, followingBlock: next, headReachable: true,
		originalStackLenWithoutParam: len(c.state.values) - len(sig.Params),
	}

	if len(sig.Params) == len(sig.Results) {
		frame.kind = controlFrameKindIf
		frame.pendingElseBranch = canonicaliseThenBrz(builder, cond, params, next)
	} else {
		elseBlk := c.newBlockWithParams(builder, sig.Params)
		canonicaliseThenBrz(builder, cond, params, elseBlk)
		builder.Seal(elseBlk)
		frame.kind = controlFrameKindIfWithElse
		frame.blk = elseBlk
	}
	c.state.ctrlPush(frame)

	then := builder.AllocateBasicBlock()
	canonicaliseThenJump(builder, nil, then)
	builder.Seal(then)
	builder.SetCurrentBlock(then)
}

// opElse lowers an `else` operator. Per the unreachable-path rules, it only does anything if the
// enclosing If's head was reachable; otherwise the whole If (and its Else) is dead and Else is a
// no-op, matching every other operator's behavior in dead code.
func (c *Compiler) opElse(builder ssa.Builder) {
	frame := c.state.ctrlPeekAt(0)
	frame.consequentEndsReachableSet = true
	frame.consequentEndsReachable = !c.state.unreachable
	if !frame.headReachable {
		return
	}

	if !c.state.unreachable {
		results := make([]ssa.Value, len(frame.blockType.Results))
		c.state.nPopInto(len(results), results)
		canonicaliseThenJump(builder, results, frame.followingBlock)
	}
	c.state.unreachable = false
	c.state.values = c.state.values[:frame.originalStackLenWithoutParam]

	if frame.kind == controlFrameKindIf {
		elseBlk := c.newBlockWithParams(builder, frame.blockType.Params)
		builder.ChangeJumpTarget(frame.pendingElseBranch, elseBlk)
		builder.Seal(elseBlk)
		frame.blk = elseBlk
		frame.kind = controlFrameKindIfWithElse
	}

	builder.SetCurrentBlock(frame.blk)
	for _, v := range blockParamValues(frame.blk) {
		c.state.push(v)
	}
}

// opEnd lowers an `end` operator closing the innermost control frame. The function-body frame
// (index 0) has no followingBlock to jump to: its End is the function's implicit return.
func (c *Compiler) opEnd(builder ssa.Builder) {
	frame := c.state.ctrlPop()
	if c.config.EnableLogging {
		c.logger().Debug("closing control frame", zap.Stringer("kind", frame.kind), zap.Int("depth", len(c.state.controlFrames)))
	}
	if frame.kind == controlFrameKindFunction {
		c.emitReturn(builder, frame.blockType.Results)
		return
	}
	isPlaceholder := frame.followingBlock == nil

	if !c.state.unreachable {
		results := make([]ssa.Value, len(frame.blockType.Results))
		c.state.nPopInto(len(results), results)
		canonicaliseThenJump(builder, results, frame.followingBlock)
		c.reenterFollowing(builder, &frame)
		return
	}

	if isPlaceholder {
		c.state.unreachable = true
		return
	}

	becomesReachable := frame.branchedToExit
	switch frame.kind {
	case controlFrameKindIf:
		// An If with no else taken: its (identity) else is equivalent to always falling through.
		becomesReachable = becomesReachable || frame.headReachable
	case controlFrameKindIfWithElse:
		becomesReachable = becomesReachable ||
			(frame.headReachable && frame.consequentEndsReachableSet && frame.consequentEndsReachable)
	}

	if becomesReachable {
		c.reenterFollowing(builder, &frame)
		return
	}
	c.state.unreachable = true
}

// reenterFollowing switches emission to frame's following block, seals it (and the loop header,
// if any), truncates the operand stack to this frame's entry height, and pushes the following
// block's own parameters, leaving the caller in the reachable state.
func (c *Compiler) reenterFollowing(builder ssa.Builder, frame *controlFrame) {
	builder.Seal(frame.followingBlock)
	if frame.kind == controlFrameKindLoop {
		builder.Seal(frame.blk)
	}
	builder.SetCurrentBlock(frame.followingBlock)
	c.state.values = c.state.values[:frame.originalStackLenWithoutParam]
	for _, v := range blockParamValues(frame.followingBlock) {
		c.state.push(v)
	}
	c.state.unreachable = false
}

// opBr lowers an unconditional `br`.
func (c *Compiler) opBr(builder ssa.Builder, labelIndex uint32) {
	if c.state.unreachable {
		return
	}
	c.state.ctrlPeekAt(int(labelIndex)).branchedToExit = true
	target, argNum := c.state.brTargetArgNumFor(labelIndex)
	args := make([]ssa.Value, argNum)
	c.state.nPopInto(argNum, args)
	canonicaliseThenJump(builder, args, target)
	c.state.unreachable = true
}

// opBrIf lowers a conditional `br_if`: unlike Br, the operand stack's argument values are not
// consumed (they remain available to whatever follows, since control may fall through).
func (c *Compiler) opBrIf(builder ssa.Builder, labelIndex uint32) {
	if c.state.unreachable {
		return
	}
	cond := c.state.pop()
	c.state.ctrlPeekAt(int(labelIndex)).branchedToExit = true
	target, argNum := c.state.brTargetArgNumFor(labelIndex)
	args := c.state.nPeekDup(argNum)
	canonicaliseThenBrnz(builder, cond, args, target)

	next := builder.AllocateBasicBlock()
	canonicaliseThenJump(builder, nil, next)
	builder.Seal(next)
	builder.SetCurrentBlock(next)
}

// opBrTable lowers `br_table`. The native br_table instruction carries no per-target arguments,
// so when any target needs to carry values, one trampoline block per distinct target depth is
// synthesized, each forwarding the common (minimum-arity) argument set on to its true
// destination. Targets whose own arity exceeds that minimum receive only the leading
// minimum-arity values: the remaining Wasm-level stack polymorphism this implies is a known
// simplification for the rare case of targets with differing label arities.
func (c *Compiler) opBrTable(builder ssa.Builder, targets []uint32, defaultTarget uint32) {
	if c.state.unreachable {
		return
	}

	argNumFor := func(depth uint32) int {
		_, n := c.state.brTargetArgNumFor(depth)
		return n
	}
	minArgNum := argNumFor(defaultTarget)
	for _, t := range targets {
		if n := argNumFor(t); n < minArgNum {
			minArgNum = n
		}
	}

	index := c.state.pop()
	args := make([]ssa.Value, minArgNum)
	c.state.nPopInto(minArgNum, args)
	args = canonicaliseV128Values(builder, args)

	markBranched := func(depth uint32) {
		c.state.ctrlPeekAt(int(depth)).branchedToExit = true
	}

	if minArgNum == 0 {
		blockTargets := make([]ssa.BasicBlock, len(targets)+1)
		for i, t := range targets {
			bt, _ := c.state.brTargetArgNumFor(t)
			blockTargets[i] = bt
			markBranched(t)
		}
		defBlk, _ := c.state.brTargetArgNumFor(defaultTarget)
		blockTargets[len(targets)] = defBlk
		markBranched(defaultTarget)

		table := builder.AllocateInstruction()
		table.AsBrTable(index, blockTargets)
		builder.InsertInstruction(table)
		c.state.unreachable = true
		return
	}

	trampolines := make(map[uint32]ssa.BasicBlock)
	trampolineFor := func(depth uint32) ssa.BasicBlock {
		if b, ok := trampolines[depth]; ok {
			return b
		}
		dest, _ := c.state.brTargetArgNumFor(depth)
		markBranched(depth)

		cur := builder.CurrentBlock()
		tramp := builder.AllocateBasicBlock()
		builder.SetCurrentBlock(tramp)
		canonicaliseThenJump(builder, args, dest)
		builder.Seal(tramp)
		builder.SetCurrentBlock(cur)

		trampolines[depth] = tramp
		return tramp
	}

	blockTargets := make([]ssa.BasicBlock, len(targets)+1)
	for i, t := range targets {
		blockTargets[i] = trampolineFor(t)
	}
	blockTargets[len(targets)] = trampolineFor(defaultTarget)

	table := builder.AllocateInstruction()
	table.AsBrTable(index, blockTargets)
	builder.InsertInstruction(table)
	c.state.unreachable = true
}

// opReturn lowers a `return`, bitcasting any vector results to the function's declared result
// types before emitting the IR-level return.
func (c *Compiler) opReturn(builder ssa.Builder) {
	if c.state.unreachable {
		return
	}
	fn := c.state.ctrlPeekAt(len(c.state.controlFrames) - 1)
	c.emitReturn(builder, fn.blockType.Results)
}

// emitReturn pops len(resultTypes) values, bitcasting any vector ones to their declared result
// type, and emits the IR-level return. Used both by an explicit `return` operator and by the
// function body's implicit End.
func (c *Compiler) emitReturn(builder ssa.Builder, resultTypes []ValType) {
	if c.state.unreachable {
		return
	}
	n := len(resultTypes)
	results := make([]ssa.Value, n)
	c.state.nPopInto(n, results)
	for i, want := range resultTypes {
		if results[i].Type().IsVector() {
			results[i] = optionallyBitcastVector(builder, results[i], WasmTypeToSSAType(want))
		}
	}
	ret := builder.AllocateInstruction()
	ret.AsReturn(results)
	builder.InsertInstruction(ret)
	c.state.unreachable = true
}

// opUnreachable lowers an `unreachable` operator: an unconditional trap.
func (c *Compiler) opUnreachable(builder ssa.Builder, execCtx ssa.Value) {
	if c.state.unreachable {
		return
	}
	c.trap(builder, execCtx, wazevoapi.ExitCodeUnreachable)
	c.state.unreachable = true
}
