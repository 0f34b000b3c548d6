package frontend

import (
	"go.uber.org/zap"

	"github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/ssa"
	"github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/wazevoapi"
)

// memoryInstanceBufOffset and memoryInstanceBufSizeOffset are the offsets, within a single
// wazevo.memoryInstance record, of the buffer base pointer and its current length in bytes.
// Both the local-memory and imported-memory slots in the module context opaque area store a
// record of this shape; only the starting Offset differs.
const (
	memoryInstanceBufOffset     = 0
	memoryInstanceBufSizeOffset = 8
)

// getMemoryBaseValue returns the current base address of linear memory 0, loaded fresh from the
// module context on every call: the buffer can move (memory.grow, or a host-side resize of an
// imported memory) at any instruction that might call out of the function, so this is never
// cached across such a boundary. See reloadMemoryBaseLen for where the lowering invalidates any
// local caching a caller layers on top of this.
func (c *Compiler) getMemoryBaseValue(builder ssa.Builder) ssa.Value {
	return c.loadModuleCtxField(builder, c.memoryBaseOffset(), c.env.PointerType())
}

// getMemoryLenValue returns the current length, in bytes, of linear memory 0.
func (c *Compiler) getMemoryLenValue(builder ssa.Builder) ssa.Value {
	return c.loadModuleCtxField(builder, c.memoryBaseOffset()+memoryInstanceBufSizeOffset, ssa.TypeI64)
}

// memoryBaseOffset picks the imported-memory or local-memory record, whichever the module
// actually has. A module with neither never reaches here: the translator panics on any memory
// operator when Environment.Heaps() is empty, since that's a validation-level invariant this
// package trusts its caller to have already enforced.
func (c *Compiler) memoryBaseOffset() wazevoapi.Offset {
	if c.offset.LocalMemoryBegin >= 0 {
		return c.offset.LocalMemoryBegin
	}
	return c.offset.ImportedMemoryBegin
}

func (c *Compiler) loadModuleCtxField(builder ssa.Builder, offset wazevoapi.Offset, typ ssa.Type) ssa.Value {
	load := builder.AllocateInstruction()
	load.AsLoad(c.moduleCtxValue, offset.U32(), typ)
	builder.InsertInstruction(load)
	return load.Return()
}

// maxReservation is the largest byte address a Static heap's host-side reservation (including
// its trailing guard region) can ever back, beyond which any access is provably out of bounds
// regardless of the runtime index value.
func maxReservation(heap MemoryType) uint64 {
	pageSize := uint64(1) << heap.PageSizeLog2
	return heap.MaxPages*pageSize + heap.GuardPageBytes
}

// prepareAddr lowers a memory operator's dynamic index operand plus its static memarg.Offset
// immediate into a single effective address, folding the bounds check according to the heap's
// guard-page declaration:
//
//   - if the static ceiling (offset+accessSize) already exceeds everything a Static heap's
//     reservation could ever back, the access can never succeed for any runtime index: an
//     unconditional trap is emitted and ok is false (callers must not use addr and must mark
//     the rest of the current block unreachable).
//   - if the heap is Static and the ceiling falls within its guard region, the explicit
//     bounds-check comparison is omitted entirely: the reservation's guard pages make every
//     such access either genuinely in-bounds or safely caught without a software check.
//   - otherwise (Dynamic heap, or a ceiling that reaches past the guard region) an explicit
//     trapping comparison is folded in via AsExitIfTrueWithCode: trap if
//     memLen < zeroExtend(index) + ceiling.
func (c *Compiler) prepareAddr(builder ssa.Builder, execCtx ssa.Value, heap MemoryType, index ssa.Value, memarg MemArg, accessSizeInBytes uint64) (addr ssa.Value, ok bool) {
	ceil := uint64(memarg.Offset) + accessSizeInBytes

	if heap.Static && ceil > maxReservation(heap) {
		if c.config.EnableLogging {
			c.logger().Debug("static access ceiling exceeds reservation, folding to unconditional trap",
				zap.Uint64("ceiling", ceil), zap.Uint64("reservation", maxReservation(heap)))
		}
		c.trap(builder, execCtx, wazevoapi.ExitCodeMemoryOutOfBounds)
		return ssa.Value{}, false
	}

	extIndex := c.zeroExtendIndex(builder, heap, index)

	if !(heap.Static && ceil <= heap.GuardPageBytes) {
		memLen := c.getMemoryLenValue(builder)
		ceilConst := c.constI64(builder, ceil)
		addPlusCeil := builder.AllocateInstruction()
		addPlusCeil.AsIadd(extIndex, ceilConst)
		builder.InsertInstruction(addPlusCeil)

		cmp := builder.AllocateInstruction()
		cmp.AsIcmp(memLen, addPlusCeil.Return(), ssa.IntegerCmpCondUnsignedLessThan)
		builder.InsertInstruction(cmp)

		exit := builder.AllocateInstruction()
		exit.AsExitIfTrueWithCode(execCtx, cmp.Return(), wazevoapi.ExitCodeMemoryOutOfBounds)
		builder.InsertInstruction(exit)
	}

	memBase := c.getMemoryBaseValue(builder)
	addInst := builder.AllocateInstruction()
	addInst.AsIadd(memBase, extIndex)
	builder.InsertInstruction(addInst)
	return addInst.Return(), true
}

// prepareAtomicAddr is prepareAddr plus an alignment check that runs strictly before the bounds
// check: an unaligned atomic access must trap with MisalignedAtomic even when it would also be
// out of bounds, since alignment is a property of the immediate+index pair alone, independent of
// bounds. For a single-byte access every address is trivially aligned, so the check is skipped
// rather than folded in as a structurally-always-false comparison.
func (c *Compiler) prepareAtomicAddr(builder ssa.Builder, execCtx ssa.Value, heap MemoryType, index ssa.Value, memarg MemArg, accessSizeInBytes uint64) (addr ssa.Value, ok bool) {
	extIndex := c.zeroExtendIndex(builder, heap, index)

	if accessSizeInBytes > 1 {
		alignMask := accessSizeInBytes - 1
		sum := builder.AllocateInstruction()
		sum.AsIadd(extIndex, c.constI64(builder, uint64(memarg.Offset)))
		builder.InsertInstruction(sum)

		masked := builder.AllocateInstruction()
		masked.AsBand(sum.Return(), c.constI64(builder, alignMask))
		builder.InsertInstruction(masked)

		zero := c.constI64(builder, 0)
		cmp := builder.AllocateInstruction()
		cmp.AsIcmp(masked.Return(), zero, ssa.IntegerCmpCondNotEqual)
		builder.InsertInstruction(cmp)

		exit := builder.AllocateInstruction()
		exit.AsExitIfTrueWithCode(execCtx, cmp.Return(), wazevoapi.ExitCodeMisalignedAtomic)
		builder.InsertInstruction(exit)
	}

	return c.prepareAddr(builder, execCtx, heap, index, memarg, accessSizeInBytes)
}

// zeroExtendIndex widens a 32-bit Wasm memory index to the 64-bit address width this translator
// always computes in, leaving a memory64 index (already i64) untouched.
func (c *Compiler) zeroExtendIndex(builder ssa.Builder, heap MemoryType, index ssa.Value) ssa.Value {
	if heap.Is64 {
		return index
	}
	ext := builder.AllocateInstruction()
	ext.AsUExtend(index, 32, 64)
	builder.InsertInstruction(ext)
	return ext.Return()
}

func (c *Compiler) constI64(builder ssa.Builder, v uint64) ssa.Value {
	inst := builder.AllocateInstruction()
	inst.AsIconst64(v)
	builder.InsertInstruction(inst)
	return inst.Return()
}

func (c *Compiler) constI32(builder ssa.Builder, v uint32) ssa.Value {
	inst := builder.AllocateInstruction()
	inst.AsIconst32(v)
	builder.InsertInstruction(inst)
	return inst.Return()
}

// uaddTrap emits a trapping unsigned addition: x+y, trapping with code if it overflows the
// operands' width. Used wherever a bound is derived from a runtime base/size pair that must
// never be allowed to silently wrap (MemRef allocation and narrowing, most notably).
func (c *Compiler) uaddTrap(builder ssa.Builder, execCtx, x, y ssa.Value, code wazevoapi.ExitCode) ssa.Value {
	add := builder.AllocateInstruction()
	add.AsUaddOverflowTrap(execCtx, x, y, code)
	builder.InsertInstruction(add)
	return add.Return()
}

// boundsCheckOnly emits a standalone bounds check against linear memory 0's current length,
// trapping MemoryOutOfBounds if upper exceeds it, with no guard-page folding. MemRef allocation
// and every MemRef-checked access additionally validate against the enclosing linear memory this
// way, on top of (not instead of) their own region-relative bounds check: a MemRef's own
// [base, base+size) can never be trusted to stay within the heap's current size across a
// memory.grow that shrinks relative to a stale MemRef, so both checks run.
func (c *Compiler) boundsCheckOnly(builder ssa.Builder, execCtx ssa.Value, upper ssa.Value) {
	memLen := c.getMemoryLenValue(builder)
	upper64 := c.uextend32to64(builder, upper)
	cmp := builder.AllocateInstruction()
	cmp.AsIcmp(memLen, upper64, ssa.IntegerCmpCondUnsignedLessThan)
	builder.InsertInstruction(cmp)
	exit := builder.AllocateInstruction()
	exit.AsExitIfTrueWithCode(execCtx, cmp.Return(), wazevoapi.ExitCodeMemoryOutOfBounds)
	builder.InsertInstruction(exit)
}

// trap emits an unconditional exit with the given code. Callers must treat everything after it
// in the current block as dead: the caller is responsible for the unreachable bookkeeping
// (mirroring how an explicit `unreachable` operator is handled), since what "unreachable" means
// differs slightly between a mid-block trap and an actual control-frame boundary.
func (c *Compiler) trap(builder ssa.Builder, execCtx ssa.Value, code wazevoapi.ExitCode) {
	if c.config.EnableLogging {
		c.logger().Debug("emitting unconditional trap", zap.Stringer("code", code), zap.Uint32("func", c.funcIndex))
	}
	exit := builder.AllocateInstruction()
	exit.AsExitWithCode(execCtx, code)
	builder.InsertInstruction(exit)
}
