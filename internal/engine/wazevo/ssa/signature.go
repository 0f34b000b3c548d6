package ssa

import (
	"fmt"
	"strings"
)

// SignatureID is an ID for a Signature.
type SignatureID int

// FuncRef is a unique identifier of a function, referenced by Call instructions and
// by the indirect-call function-table lowering in the frontend.
type FuncRef uint32

// String implements fmt.Stringer.
func (r FuncRef) String() string {
	return fmt.Sprintf("f%d", uint32(r))
}

// String implements fmt.Stringer.
func (s SignatureID) String() string {
	return fmt.Sprintf("sig%d", s)
}

// Signature is a function signature known to the SSA builder, used to type-check
// and format Call/CallIndirect instructions. The frontend declares one Signature
// per distinct wasm function type plus any runtime-only calls it synthesizes
// (e.g. memory.grow trampolines), via Builder.DeclareSignature.
type Signature struct {
	// ID is the unique identifier of this Signature used to lookup this Signature.
	ID SignatureID
	// Params and Results are the types of parameters and results of the function.
	Params, Results []Type

	// used is true if this Signature is referenced by at least one Call/CallIndirect
	// instruction in the currently-compiled function. Set by AsCall/AsCallIndirect,
	// read by UsedSignatures so that backends only emit what's actually called.
	used bool
}

// String implements fmt.Stringer.
func (s *Signature) String() string {
	vs := make([]string, len(s.Params))
	for i, v := range s.Params {
		vs[i] = v.String()
	}
	rs := make([]string, len(s.Results))
	for i, v := range s.Results {
		rs[i] = v.String()
	}
	return fmt.Sprintf("%s: (%s)->(%s)", s.ID, strings.Join(vs, ","), strings.Join(rs, ","))
}
