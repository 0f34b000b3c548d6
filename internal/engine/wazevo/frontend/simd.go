package frontend

import "github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/ssa"

// optionallyBitcastVector emits a no-op bitcast of v to want if v's IR type is a vector shape
// different from want, and returns v unchanged otherwise. Wasm only ever has one v128 value
// type; this is the primitive that reconciles that with the IR's several lane-typed vector
// types, both at operator-consumption sites (bitcast to the shape the operator expects) and
// at control-flow joins (bitcast to the canonical shape).
func optionallyBitcastVector(b ssa.Builder, v ssa.Value, want ssa.Type) ssa.Value {
	if v.Type() == want {
		return v
	}
	if !v.Type().IsVector() || !want.IsVector() {
		panic("BUG: optionallyBitcastVector called with a non-vector type")
	}
	return b.AllocateInstruction().AsBitcast(v, want).Insert(b).Return()
}

// canonicaliseV128Values returns a view of values in which every value whose IR type is a
// non-canonical vector shape has been bitcast to the canonical 16x8 shape. If every value is
// already canonical (the common case), the input slice is returned unmodified: no allocation.
func canonicaliseV128Values(b ssa.Builder, values []ssa.Value) []ssa.Value {
	needsCopy := false
	for _, v := range values {
		if v.Type().IsVector() && !v.Type().IsCanonicalVector() {
			needsCopy = true
			break
		}
	}
	if !needsCopy {
		return values
	}
	out := make([]ssa.Value, len(values))
	for i, v := range values {
		if v.Type().IsVector() {
			out[i] = optionallyBitcastVector(b, v, ssa.TypeVecCanonical)
		} else {
			out[i] = v
		}
	}
	return out
}

// canonicaliseThenJump emits an unconditional Jump to target, canonicalizing args first so
// that target's block parameters always observe canonical vector types, per the invariant
// that every inter-block transfer routes through one of these three helpers.
func canonicaliseThenJump(b ssa.Builder, args []ssa.Value, target ssa.BasicBlock) *ssa.Instruction {
	args = canonicaliseV128Values(b, args)
	jmp := b.AllocateInstruction()
	jmp.AsJump(args, target)
	b.InsertInstruction(jmp)
	return jmp
}

// canonicaliseThenBrz emits a conditional Brz (branch if zero) to target with canonicalized args.
func canonicaliseThenBrz(b ssa.Builder, cond ssa.Value, args []ssa.Value, target ssa.BasicBlock) *ssa.Instruction {
	args = canonicaliseV128Values(b, args)
	brz := b.AllocateInstruction()
	brz.AsBrz(cond, args, target)
	b.InsertInstruction(brz)
	return brz
}

// canonicaliseThenBrnz emits a conditional Brnz (branch if not zero) to target with
// canonicalized args.
func canonicaliseThenBrnz(b ssa.Builder, cond ssa.Value, args []ssa.Value, target ssa.BasicBlock) *ssa.Instruction {
	args = canonicaliseV128Values(b, args)
	brnz := b.AllocateInstruction()
	brnz.AsBrnz(cond, args, target)
	b.InsertInstruction(brnz)
	return brnz
}
