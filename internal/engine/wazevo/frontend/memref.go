package frontend

import (
	"github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/ssa"
	"github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/wazevoapi"
)

// A MemRef is carried as a literal 4-lane i32 vector (ssa.TypeVecI32x4), one lane per field:
//
//	lane 0 (addr): the live pointer value, valid to dereference right now.
//	lane 1 (base): the start address of the region addr was derived from.
//	lane 2 (size): the byte length of that region, when metadata is present; otherwise carries
//	               the attr constant as padding and must not be read as a size.
//	lane 3 (attr): attribute bits. Bit memrefAttrHasShadowMetadata marks that a host shadow
//	               metadata record exists for [base, base+size) and must be consulted on access;
//	               bit memrefAttrSubObject marks a MemRef narrowed from a larger allocation.
//
// This representation exists so a MemRef rides through the rest of the IR (phi nodes, spills,
// register allocation) as an ordinary vector value with no new ssa.Type needed: every operation
// below is built entirely out of Insertlane/Extractlane/Icmp on that one vector shape.
const (
	memrefLaneAddr = 0
	memrefLaneBase = 1
	memrefLaneSize = 2
	memrefLaneAttr = 3

	memrefAttrHasShadowMetadata = 0x20
	memrefAttrSubObject         = 0x04
)

func (c *Compiler) memrefField(builder ssa.Builder, mref ssa.Value, lane byte) ssa.Value {
	ext := builder.AllocateInstruction()
	ext.AsExtractlane(mref, lane, ssa.VecLaneI32x4, false)
	builder.InsertInstruction(ext)
	return ext.Return()
}

func (c *Compiler) memrefWithField(builder ssa.Builder, mref, v ssa.Value, lane byte) ssa.Value {
	ins := builder.AllocateInstruction()
	ins.AsInsertlane(mref, v, lane, ssa.VecLaneI32x4)
	builder.InsertInstruction(ins)
	return ins.Return()
}

// memrefNull returns the all-zero MemRef: a null pointer with an empty region and no metadata.
// Pushed typed as the canonical 16x8 shape; memrefField/memrefWithField apply their I32x4 lane
// ops to it directly, without a bitcast.
func (c *Compiler) memrefNull(builder ssa.Builder) ssa.Value {
	v := builder.AllocateInstruction()
	v.AsVconst(0, 0)
	builder.InsertInstruction(v)
	return v.Return()
}

// memrefAlloc lowers MemrefAlloc(attrImm): pops (addr, size), builds a MemRef with base := addr
// (allocation always starts a fresh region at its own address). attrImm is the operator's own
// immediate, a compile-time constant, so whether metadata is present is a translation-time
// decision, not a runtime branch. When set, the region's upper bound is range-checked against
// linear memory 0 and the host shadow-metadata callback (if the embedder registered one) is
// invoked with the freshly packed metadata word; lane 2 then holds size. Otherwise lane 2 holds
// attr itself as padding, per the encoding's documented quirk that lane 2 is never meaningful as
// a size without checking lane 3 first, and the callback is skipped entirely.
func (c *Compiler) memrefAlloc(builder ssa.Builder, execCtx, addr, size ssa.Value, attrImm uint32) ssa.Value {
	attr := c.constI32(builder, attrImm)

	v := c.memrefNull(builder)
	v = c.memrefWithField(builder, v, addr, memrefLaneAddr)
	v = c.memrefWithField(builder, v, addr, memrefLaneBase)
	v = c.memrefWithField(builder, v, attr, memrefLaneAttr)

	if attrImm&memrefAttrHasShadowMetadata == 0 {
		return c.memrefWithField(builder, v, attr, memrefLaneSize)
	}

	upper := c.uaddTrap(builder, execCtx, addr, size, wazevoapi.ExitCodeMemRefOutOfBounds)
	c.boundsCheckOnly(builder, execCtx, upper)
	v = c.memrefWithField(builder, v, size, memrefLaneSize)

	if funcIndex, ok := c.env.HostSetValueFuncIndex(); ok {
		meta := c.packShadowMetadata64(builder, addr, size, attr)
		c.env.TranslateCall(builder, execCtx, funcIndex, []ssa.Value{addr, meta})
	}
	return v
}

// memrefField0..3 expose the four lanes directly, for callers (e.g. the shadow-metadata
// callout) that need more than one field at once without re-deriving a MemRef.
func (c *Compiler) memrefField0(builder ssa.Builder, mref ssa.Value) ssa.Value {
	return c.memrefField(builder, mref, memrefLaneAddr)
}
func (c *Compiler) memrefField1(builder ssa.Builder, mref ssa.Value) ssa.Value {
	return c.memrefField(builder, mref, memrefLaneBase)
}
func (c *Compiler) memrefField2(builder ssa.Builder, mref ssa.Value) ssa.Value {
	return c.memrefField(builder, mref, memrefLaneSize)
}
func (c *Compiler) memrefField3(builder ssa.Builder, mref ssa.Value) ssa.Value {
	return c.memrefField(builder, mref, memrefLaneAttr)
}

// memrefAdd lowers MemrefAdd: pops (mref, val), advances addr by val. Never traps: a MemRef's
// spatial bounds are only ever enforced where it's actually dereferenced, by memrefMSLoad/Store.
func (c *Compiler) memrefAdd(builder ssa.Builder, mref, val ssa.Value) ssa.Value {
	addr := c.memrefField0(builder, mref)
	sum := builder.AllocateInstruction()
	sum.AsIadd(addr, val)
	builder.InsertInstruction(sum)
	return c.memrefWithField(builder, mref, sum.Return(), memrefLaneAddr)
}

// memrefAnd lowers MemrefAnd: pops (mref, val), computes `val & addr` (val is the left operand,
// addr the right, per the encoding's documented operand-order quirk), and reinserts into lane 0.
func (c *Compiler) memrefAnd(builder ssa.Builder, mref, val ssa.Value) ssa.Value {
	addr := c.memrefField0(builder, mref)
	and := builder.AllocateInstruction()
	and.AsBand(val, addr)
	builder.InsertInstruction(and)
	return c.memrefWithField(builder, mref, and.Return(), memrefLaneAddr)
}

// memrefNarrow lowers MemrefNarrow: pops (narrow_size, narrow_base, mref), narrow_size on top of
// the stack; the size is a runtime stack operand, not an operator immediate. When the region
// carries shadow metadata, the requested sub-region must fit within [base, base+size) or the
// access traps; when it doesn't, there is no real region to validate against and the new size is
// simply recorded as zero. Either way lane 3 gains the sub-object bit, marking this MemRef as
// narrowed from a larger allocation.
func (c *Compiler) memrefNarrow(builder ssa.Builder, execCtx ssa.Value, mref, narrowBase, narrowSize ssa.Value) ssa.Value {
	base := c.memrefField1(builder, mref)
	size := c.memrefField2(builder, mref)
	attr := c.memrefField3(builder, mref)

	hasMetadata := c.memrefHasShadowMetadata(builder, mref)

	narrowUpper := c.uaddTrap(builder, execCtx, narrowBase, narrowSize, wazevoapi.ExitCodeMemRefOutOfBounds)
	upper := c.uaddTrap(builder, execCtx, base, size, wazevoapi.ExitCodeMemRefOutOfBounds)

	tooBig := builder.AllocateInstruction()
	tooBig.AsIcmp(narrowUpper, upper, ssa.IntegerCmpCondUnsignedGreaterThan)
	builder.InsertInstruction(tooBig)

	shouldTrap := builder.AllocateInstruction()
	shouldTrap.AsBand(hasMetadata, tooBig.Return())
	builder.InsertInstruction(shouldTrap)

	exit := builder.AllocateInstruction()
	exit.AsExitIfTrueWithCode(execCtx, shouldTrap.Return(), wazevoapi.ExitCodeMemRefOutOfBounds)
	builder.InsertInstruction(exit)

	newSize := c.memrefSelectI32(builder, hasMetadata, narrowSize, c.constI32(builder, 0))

	attrWithSubObject := builder.AllocateInstruction()
	attrWithSubObject.AsBor(attr, c.constI32(builder, memrefAttrSubObject))
	builder.InsertInstruction(attrWithSubObject)

	v := c.memrefWithField(builder, mref, narrowBase, memrefLaneBase)
	v = c.memrefWithField(builder, v, newSize, memrefLaneSize)
	return c.memrefWithField(builder, v, attrWithSubObject.Return(), memrefLaneAttr)
}

// memrefSelectI32 is an ordinary scalar select, used where memrefSelect's whole-vector select
// does not apply (picking between two plain i32 lane values rather than two MemRefs).
func (c *Compiler) memrefSelectI32(builder ssa.Builder, cond, x, y ssa.Value) ssa.Value {
	sel := builder.AllocateInstruction()
	sel.AsSelect(cond, x, y)
	builder.InsertInstruction(sel)
	return sel.Return()
}

// memrefEq and memrefNe lower MemrefEq/MemrefNe: compare two MemRefs by addr lane identity, the
// result zero-extended to i32 (Icmp's i32 result already satisfies that).
func (c *Compiler) memrefEq(builder ssa.Builder, x, y ssa.Value) ssa.Value {
	return c.memrefCmp(builder, x, y, ssa.IntegerCmpCondEqual)
}

func (c *Compiler) memrefNe(builder ssa.Builder, x, y ssa.Value) ssa.Value {
	return c.memrefCmp(builder, x, y, ssa.IntegerCmpCondNotEqual)
}

func (c *Compiler) memrefCmp(builder ssa.Builder, x, y ssa.Value, cond ssa.IntegerCmpCond) ssa.Value {
	ax := c.memrefField0(builder, x)
	ay := c.memrefField0(builder, y)
	cmp := builder.AllocateInstruction()
	cmp.AsIcmp(ax, ay, cond)
	builder.InsertInstruction(cmp)
	return cmp.Return()
}

// memrefSelect lowers MemrefSelect: picks x or y wholesale according to cond, both sides first
// canonicalized to the 16x8 shape, since every Select on vector values operates on the canonical
// shape.
func (c *Compiler) memrefSelect(builder ssa.Builder, cond, x, y ssa.Value) ssa.Value {
	x = optionallyBitcastVector(builder, x, ssa.TypeVecCanonical)
	y = optionallyBitcastVector(builder, y, ssa.TypeVecCanonical)
	sel := builder.AllocateInstruction()
	sel.AsSelect(cond, x, y)
	builder.InsertInstruction(sel)
	return sel.Return()
}

// memrefConst always traps: a MemRef's addr/base are runtime allocation facts this translator
// has no way to know at lowering time, so a memref constant may never appear inside a function
// body. The only constant MemRef is memrefNull.
func (c *Compiler) memrefConst(builder ssa.Builder, execCtx ssa.Value) ssa.Value {
	c.trap(builder, execCtx, wazevoapi.ExitCodeMemRefOutOfBounds)
	return c.memrefNull(builder)
}

// packShadowMetadata64 builds the 64-bit word a host shadow-metadata callback receives:
// (base<<32) | size | (attr<<24).
func (c *Compiler) packShadowMetadata64(builder ssa.Builder, base, size, attr ssa.Value) ssa.Value {
	base64 := c.uextend32to64(builder, base)
	size64 := c.uextend32to64(builder, size)
	attr64 := c.uextend32to64(builder, attr)

	baseShifted := builder.AllocateInstruction()
	baseShifted.AsIshl(base64, c.constI64(builder, 32))
	builder.InsertInstruction(baseShifted)

	attrShifted := builder.AllocateInstruction()
	attrShifted.AsIshl(attr64, c.constI64(builder, 24))
	builder.InsertInstruction(attrShifted)

	lo := builder.AllocateInstruction()
	lo.AsBor(size64, attrShifted.Return())
	builder.InsertInstruction(lo)

	word := builder.AllocateInstruction()
	word.AsBor(baseShifted.Return(), lo.Return())
	builder.InsertInstruction(word)
	return word.Return()
}

// unpackShadowMetadata64 is packShadowMetadata64's inverse, used by memrefMSLoad's vector-result
// path to recover (base, size, attr) from a host metadata-get callback's 64-bit return value:
// size = word & 0x00FFFFFF, attr = (word >> 24) & 0xFF, base = word >> 32.
func (c *Compiler) unpackShadowMetadata64(builder ssa.Builder, word ssa.Value) (base, size, attr ssa.Value) {
	sizeMasked := builder.AllocateInstruction()
	sizeMasked.AsBand(word, c.constI64(builder, 0x00FFFFFF))
	builder.InsertInstruction(sizeMasked)
	size = c.ireduce32(builder, sizeMasked.Return())

	attrShift := builder.AllocateInstruction()
	attrShift.AsUshr(word, c.constI64(builder, 24))
	builder.InsertInstruction(attrShift)
	attrMasked := builder.AllocateInstruction()
	attrMasked.AsBand(attrShift.Return(), c.constI64(builder, 0xFF))
	builder.InsertInstruction(attrMasked)
	attr = c.ireduce32(builder, attrMasked.Return())

	baseShift := builder.AllocateInstruction()
	baseShift.AsUshr(word, c.constI64(builder, 32))
	builder.InsertInstruction(baseShift)
	base = c.ireduce32(builder, baseShift.Return())
	return
}

func (c *Compiler) ireduce32(builder ssa.Builder, v ssa.Value) ssa.Value {
	red := builder.AllocateInstruction()
	red.AsIreduce(v, ssa.TypeI32)
	builder.InsertInstruction(red)
	return red.Return()
}

func (c *Compiler) uextend32to64(builder ssa.Builder, v ssa.Value) ssa.Value {
	if v.Type() == ssa.TypeI64 {
		return v
	}
	ext := builder.AllocateInstruction()
	ext.AsUExtend(v, 32, 64)
	builder.InsertInstruction(ext)
	return ext.Return()
}

// memrefHasShadowMetadata tests attr's presence bit at runtime.
func (c *Compiler) memrefHasShadowMetadata(builder ssa.Builder, mref ssa.Value) ssa.Value {
	attr := c.memrefField3(builder, mref)
	masked := builder.AllocateInstruction()
	masked.AsBand(attr, c.constI32(builder, memrefAttrHasShadowMetadata))
	builder.InsertInstruction(masked)
	cmp := builder.AllocateInstruction()
	cmp.AsIcmp(masked.Return(), c.constI32(builder, 0), ssa.IntegerCmpCondNotEqual)
	builder.InsertInstruction(cmp)
	return cmp.Return()
}

// memrefMSLoad lowers a metadata-checked ("MS" = MemRef-Safe) scalar load through mref: it folds
// prepareMSAddr's bounds discipline, then, if the region carries shadow metadata, routes the raw
// load through Environment.HostGetValueFuncIndex's callback instead of emitting a plain Load, so
// the host can apply whatever interpretation (tainting, provenance, pointer-shadow bits) that
// metadata implies.
//
// This host round-trip is an addition on top of the bare "prepare address, load, push" recipe:
// a plain Load is always emitted too, and the two results are select()'d on whether metadata is
// present, rather than unconditionally trusting the callback. Callers relying on a pure,
// host-opaque scalar load should use an Environment with no HostGetValueFuncIndex registered.
func (c *Compiler) memrefMSLoad(builder ssa.Builder, execCtx, mref ssa.Value, offset MemArg, accessSizeInBytes uint64, typ ssa.Type) ssa.Value {
	addr := c.prepareMSAddr(builder, execCtx, mref, offset, accessSizeInBytes)

	if funcIndex, ok := c.env.HostGetValueFuncIndex(); ok {
		hasMeta := c.memrefHasShadowMetadata(builder, mref)
		base := c.memrefField1(builder, mref)
		size := c.memrefField2(builder, mref)
		attr := c.memrefField3(builder, mref)
		meta := c.packShadowMetadata64(builder, base, size, attr)

		plain := builder.AllocateInstruction()
		plain.AsLoad(addr, 0, typ)
		builder.InsertInstruction(plain)

		hosted := c.env.TranslateCall(builder, execCtx, funcIndex, []ssa.Value{addr, meta})
		var hostedVal ssa.Value
		if len(hosted) > 0 {
			hostedVal = hosted[0]
		}
		return c.memrefSelectI32(builder, hasMeta, hostedVal, plain.Return())
	}

	load := builder.AllocateInstruction()
	load.AsLoad(addr, 0, typ)
	builder.InsertInstruction(load)
	return load.Return()
}

// memrefMSLoadMemref lowers a MemRef-typed MemrefMSLoad: loads the raw i32 address at addr_base,
// then (if the host provides a metadata-get callback) asks it for the region's shadow metadata
// and reassembles a full 4-lane MemRef from the unpacked (base, size, attr). With no callback
// registered, the result is a MemRef with only lane 0 (addr) populated and attr=0.
func (c *Compiler) memrefMSLoadMemref(builder ssa.Builder, execCtx, mref ssa.Value, offset MemArg) ssa.Value {
	addr := c.prepareMSAddr(builder, execCtx, mref, offset, 4)

	load := builder.AllocateInstruction()
	load.AsLoad(addr, 0, ssa.TypeI32)
	builder.InsertInstruction(load)
	loadedAddr := load.Return()

	out := c.memrefNull(builder)
	out = c.memrefWithField(builder, out, loadedAddr, memrefLaneAddr)

	funcIndex, ok := c.env.HostGetValueFuncIndex()
	if !ok {
		return out
	}
	meta := c.env.TranslateCall(builder, execCtx, funcIndex, []ssa.Value{addr})
	if len(meta) == 0 {
		return out
	}
	base, size, attr := c.unpackShadowMetadata64(builder, meta[0])
	out = c.memrefWithField(builder, out, base, memrefLaneBase)
	out = c.memrefWithField(builder, out, size, memrefLaneSize)
	out = c.memrefWithField(builder, out, attr, memrefLaneAttr)
	return out
}

// memrefMSStore is memrefMSLoad's write-side counterpart: after the store it invokes
// Environment.HostSetValueFuncIndex's callback whenever one is registered, whether or not the
// region carries shadow metadata.
func (c *Compiler) memrefMSStore(builder ssa.Builder, execCtx, mref, value ssa.Value, offset MemArg, accessSizeInBytes uint64, storeOp ssa.Opcode) {
	addr := c.prepareMSAddr(builder, execCtx, mref, offset, accessSizeInBytes)

	store := builder.AllocateInstruction()
	store.AsStore(storeOp, value, addr, 0)
	builder.InsertInstruction(store)

	if funcIndex, ok := c.env.HostSetValueFuncIndex(); ok {
		base := c.memrefField1(builder, mref)
		size := c.memrefField2(builder, mref)
		attr := c.memrefField3(builder, mref)
		meta := c.packShadowMetadata64(builder, base, size, attr)
		c.env.TranslateCall(builder, execCtx, funcIndex, []ssa.Value{addr, meta})
	}
}

// memrefMSStoreMemref lowers a MemRef-typed MemrefMSStore: stores only the addr lane (lane 0) of
// the value mref at addr_base, then, if the host provides a metadata-set callback, packs the
// stored value's own (base, size, attr) and invokes it.
func (c *Compiler) memrefMSStoreMemref(builder ssa.Builder, execCtx, mref, value ssa.Value, offset MemArg) {
	addr := c.prepareMSAddr(builder, execCtx, mref, offset, 4)
	storedAddr := c.memrefField0(builder, value)

	store := builder.AllocateInstruction()
	store.AsStore(ssa.OpcodeStore, storedAddr, addr, 0)
	builder.InsertInstruction(store)

	if funcIndex, ok := c.env.HostSetValueFuncIndex(); ok {
		base := c.memrefField1(builder, value)
		size := c.memrefField2(builder, value)
		attr := c.memrefField3(builder, value)
		meta := c.packShadowMetadata64(builder, base, size, attr)
		c.env.TranslateCall(builder, execCtx, funcIndex, []ssa.Value{addr, meta})
	}
}

// prepareMSAddr extracts base/size/attr from a MemRef, folds the access's static ceiling against
// size when metadata is present, then performs a plain bounds-only check against linear memory 0
// regardless, and hands back the concrete host address the access should dereference.
func (c *Compiler) prepareMSAddr(builder ssa.Builder, execCtx, mref ssa.Value, offset MemArg, accessSizeInBytes uint64) ssa.Value {
	addr := c.memrefField0(builder, mref)
	base := c.memrefField1(builder, mref)
	size := c.memrefField2(builder, mref)

	addrBase := addr
	if offset.Offset != 0 {
		add := builder.AllocateInstruction()
		add.AsIadd(addr, c.constI32(builder, offset.Offset))
		builder.InsertInstruction(add)
		addrBase = add.Return()
	}

	addrUpper := builder.AllocateInstruction()
	addrUpper.AsIadd(addrBase, c.constI32(builder, uint32(accessSizeInBytes)))
	builder.InsertInstruction(addrUpper)

	upper := builder.AllocateInstruction()
	upper.AsIadd(base, size)
	builder.InsertInstruction(upper)

	pastUpper := builder.AllocateInstruction()
	pastUpper.AsIcmp(addrUpper.Return(), upper.Return(), ssa.IntegerCmpCondUnsignedGreaterThan)
	builder.InsertInstruction(pastUpper)

	belowBase := builder.AllocateInstruction()
	belowBase.AsIcmp(base, addrBase, ssa.IntegerCmpCondUnsignedGreaterThan)
	builder.InsertInstruction(belowBase)

	oob := builder.AllocateInstruction()
	oob.AsBor(pastUpper.Return(), belowBase.Return())
	builder.InsertInstruction(oob)

	hasMeta := c.memrefHasShadowMetadata(builder, mref)
	shouldTrap := builder.AllocateInstruction()
	shouldTrap.AsBand(hasMeta, oob.Return())
	builder.InsertInstruction(shouldTrap)

	exit := builder.AllocateInstruction()
	exit.AsExitIfTrueWithCode(execCtx, shouldTrap.Return(), wazevoapi.ExitCodeMemRefOutOfBounds)
	builder.InsertInstruction(exit)

	c.boundsCheckOnly(builder, execCtx, upper.Return())

	return addrBase
}
