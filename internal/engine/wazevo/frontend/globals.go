package frontend

import "github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/ssa"

// globalInstanceValueOffset is the offset, within a single global instance record, of its
// current value. The module context opaque area stores one pointer to such a record per global
// (see wazevoapi.ModuleContextOffsetData.GlobalInstanceOffset); the pointer itself sits at
// offset 0, and the value follows at offset 8 so that 64-bit values are naturally aligned.
const globalInstanceValueOffset = 8

// getWasmGlobalValue reads globalIndex's current value directly out of its backing instance
// record. Globals are shared, mutable, cross-call state: every read reloads rather than trusting
// an SSA-level cache, since a call in between two reads (direct or via a trap handler resuming
// elsewhere) can always have changed it.
func (c *Compiler) getWasmGlobalValue(builder ssa.Builder, globalIndex uint32) ssa.Value {
	ptr := c.loadModuleCtxField(builder, c.offset.GlobalInstanceOffset(globalIndex), c.pointerType())
	load := builder.AllocateInstruction()
	load.AsLoad(ptr, globalInstanceValueOffset, c.globalVariableTypes[globalIndex])
	builder.InsertInstruction(load)
	return load.Return()
}

// setWasmGlobalValue stores v as globalIndex's new value in its backing instance record.
func (c *Compiler) setWasmGlobalValue(builder ssa.Builder, globalIndex uint32, v ssa.Value) {
	ptr := c.loadModuleCtxField(builder, c.offset.GlobalInstanceOffset(globalIndex), c.pointerType())
	store := builder.AllocateInstruction()
	store.AsStore(storeOpcodeFor(c.globalVariableTypes[globalIndex]), v, ptr, globalInstanceValueOffset)
	builder.InsertInstruction(store)
}

// storeOpcodeFor returns the natural full-width store opcode for t: globals are always stored
// at their full declared width, unlike a Wasm narrowing store (i32.store8 and friends), which
// only ever applies to linear memory.
func storeOpcodeFor(t ssa.Type) ssa.Opcode {
	switch t {
	case ssa.TypeI32, ssa.TypeI64, ssa.TypeF32, ssa.TypeF64, ssa.TypeVecCanonical:
		return ssa.OpcodeStore
	default:
		panic("BUG: unhandled global type " + t.String())
	}
}
