// Package frontend implements the translation of a validated WebAssembly operator stream to
// this project's SSA IR.
package frontend

import (
	"go.uber.org/zap"

	"github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/ssa"
	"github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/wazevoapi"
)

// Compiler is in charge of lowering one Wasm function body at a time to SSA IR, driven one
// Operator at a time by LowerOperator. It owns no knowledge of how the operator stream was
// produced (decoding, validation) or what happens to the SSA IR afterwards (optimization,
// register allocation, machine code emission): both are strictly the caller's concern.
type Compiler struct {
	// Per-module state, shared across every function lowered with this Compiler.

	env        Environment
	config     *Config
	ssaBuilder ssa.Builder
	offset     wazevoapi.ModuleContextOffsetData
	signatures map[uint32]*ssa.Signature

	// Per-function state, reset by Init for each function body.

	funcIndex            uint32
	sig                  *FunctionSignature
	localTypes           []ValType // params followed by declared locals, in index order
	wasmLocalToVariable  map[uint32]ssa.Variable
	globalVariableTypes  []ssa.Type
	mutableGlobalIndexes []uint32
	hostOwnedGlobals     map[uint32]struct{}

	state loweringState

	execCtxValue, moduleCtxValue ssa.Value
}

// NewFrontendCompiler returns a Compiler ready to lower functions belonging to a single module,
// as described by env. config may be nil, in which case NewConfig()'s defaults apply.
func NewFrontendCompiler(env Environment, ssaBuilder ssa.Builder, offset wazevoapi.ModuleContextOffsetData, config *Config) *Compiler {
	if config == nil {
		config = NewConfig()
	}
	c := &Compiler{
		env:                 env,
		config:              config,
		ssaBuilder:          ssaBuilder,
		offset:              offset,
		wasmLocalToVariable: make(map[uint32]ssa.Variable),
		hostOwnedGlobals:    make(map[uint32]struct{}),
	}

	typeCount := 0
	for i := uint32(0); ; i++ {
		if s := env.Signature(i); s != nil {
			typeCount++
			continue
		}
		break
	}
	c.signatures = make(map[uint32]*ssa.Signature, typeCount)
	for i := uint32(0); i < uint32(typeCount); i++ {
		wasmSig := env.Signature(i)
		sig := c.signatureForWasmFunctionType(wasmSig)
		sig.ID = ssa.SignatureID(i)
		c.signatures[i] = &sig
		c.ssaBuilder.DeclareSignature(&sig)
	}

	return c
}

// pointerType is the ssa.Type used for every address/pointer this translator computes,
// including the two implicit ABI parameters every lowered function takes.
func (c *Compiler) pointerType() ssa.Type {
	return c.env.PointerType()
}

// signatureForWasmFunctionType converts a Wasm-level FunctionSignature to the ssa.Signature a
// lowered function actually has, prepending the two implicit ABI pointers (execution context,
// module context) every function takes regardless of its Wasm-level signature.
func (c *Compiler) signatureForWasmFunctionType(sig *FunctionSignature) ssa.Signature {
	out := ssa.Signature{
		Params:  make([]ssa.Type, len(sig.Params)+2),
		Results: make([]ssa.Type, len(sig.Results)),
	}
	out.Params[0] = c.pointerType()
	out.Params[1] = c.pointerType()
	for i, t := range sig.Params {
		out.Params[i+2] = WasmTypeToSSAType(t)
	}
	for i, t := range sig.Results {
		out.Results[i] = WasmTypeToSSAType(t)
	}
	return out
}

// signatureFor resolves a type index to the ssa.Signature declared for it in
// NewFrontendCompiler.
func (c *Compiler) signatureFor(typeIndex uint32) *ssa.Signature {
	sig, ok := c.signatures[typeIndex]
	if !ok {
		panic("BUG: signature requested for an undeclared type index")
	}
	return sig
}

// Init prepares the Compiler for lowering the funcIndex-th function, whose Wasm-level
// parameters are sig.Params and whose additionally-declared locals (beyond the parameters) are
// declaredLocals, in declaration order.
func (c *Compiler) Init(funcIndex uint32, sig *FunctionSignature, declaredLocals []ValType) error {
	localCount := len(sig.Params) + len(declaredLocals)
	if c.config.MaxLocals > 0 && localCount > c.config.MaxLocals {
		return newError(PhaseDispatch, KindInvalidOperator, nil,
			"function %d declares %d locals, exceeding configured maximum %d", funcIndex, localCount, c.config.MaxLocals)
	}

	typeIndex := c.env.FunctionSignatureIndex(funcIndex)
	c.ssaBuilder.Init(c.signatureFor(typeIndex))
	c.state.reset()

	c.funcIndex = funcIndex
	c.sig = sig
	c.localTypes = append(append([]ValType{}, sig.Params...), declaredLocals...)
	for k := range c.wasmLocalToVariable {
		delete(c.wasmLocalToVariable, k)
	}

	c.declareGlobals()
	return nil
}

// LowerEntry sets up the function's entry block: the two implicit ABI parameters, the
// Wasm-level parameters and locals as SSA variables, and the function-body control frame. Must
// be called once, before the first call to LowerOperator.
func (c *Compiler) LowerEntry() {
	builder := c.ssaBuilder
	entry := builder.AllocateBasicBlock()
	builder.SetCurrentBlock(entry)

	c.execCtxValue = entry.AddParam(builder, c.pointerType())
	c.moduleCtxValue = entry.AddParam(builder, c.pointerType())
	builder.AnnotateValue(c.execCtxValue, "exec_ctx")
	builder.AnnotateValue(c.moduleCtxValue, "module_ctx")

	for i, t := range c.sig.Params {
		st := WasmTypeToSSAType(t)
		v := builder.DeclareVariable(st)
		val := entry.AddParam(builder, st)
		builder.DefineVariable(v, val, entry)
		c.wasmLocalToVariable[uint32(i)] = v
	}
	c.declareDefaultInitializedLocals(entry)

	c.state.ctrlPush(controlFrame{
		kind:      controlFrameKindFunction,
		blockType: BlockSignature{Params: c.sig.Params, Results: c.sig.Results},
	})
}

// localVariable returns the SSA variable bound to Wasm local index.
func (c *Compiler) localVariable(index uint32) ssa.Variable {
	return c.wasmLocalToVariable[index]
}

// declareDefaultInitializedLocals declares the SSA variables for every local beyond the
// function's own parameters, each initialized to its type's zero value, per the Wasm spec.
func (c *Compiler) declareDefaultInitializedLocals(entry ssa.BasicBlock) {
	paramCount := uint32(len(c.sig.Params))
	for i := paramCount; i < uint32(len(c.localTypes)); i++ {
		t := c.localTypes[i]
		st := WasmTypeToSSAType(t)
		v := c.ssaBuilder.DeclareVariable(st)
		c.wasmLocalToVariable[i] = v

		zero := c.ssaBuilder.AllocateInstruction()
		switch st {
		case ssa.TypeI32:
			zero.AsIconst32(0)
		case ssa.TypeI64:
			zero.AsIconst64(0)
		case ssa.TypeF32:
			zero.AsF32const(0)
		case ssa.TypeF64:
			zero.AsF64const(0)
		case ssa.TypeVecCanonical:
			zero.AsVconst(0, 0)
		default:
			panic("BUG: unhandled local type " + st.String())
		}
		c.ssaBuilder.InsertInstruction(zero)
		c.ssaBuilder.DefineVariable(v, zero.Return(), entry)
	}
}

// declareGlobals records each module-level global's IR type, mirroring the module's global
// index space (imports first, then module-defined globals), for getWasmGlobalValue/
// setWasmGlobalValue to consult.
func (c *Compiler) declareGlobals() {
	globals := c.env.Globals()
	c.globalVariableTypes = c.globalVariableTypes[:0]
	c.mutableGlobalIndexes = c.mutableGlobalIndexes[:0]
	for k := range c.hostOwnedGlobals {
		delete(c.hostOwnedGlobals, k)
	}
	for i, g := range globals {
		c.globalVariableTypes = append(c.globalVariableTypes, WasmTypeToSSAType(g.ValType))
		if g.Mutable {
			c.mutableGlobalIndexes = append(c.mutableGlobalIndexes, uint32(i))
		}
		if g.HostOwned {
			c.hostOwnedGlobals[uint32(i)] = struct{}{}
		}
	}
}

// isHostOwnedGlobal reports whether globalIndex must be routed through
// Environment.TranslateCustomGlobalGet/Set rather than a direct module-context load/store.
func (c *Compiler) isHostOwnedGlobal(globalIndex uint32) bool {
	_, ok := c.hostOwnedGlobals[globalIndex]
	return ok
}

// Format outputs the constructed SSA function as a string, for debugging and tests.
func (c *Compiler) Format() string {
	return c.ssaBuilder.Format()
}

func (c *Compiler) logger() *zap.Logger {
	return c.config.logger()
}
