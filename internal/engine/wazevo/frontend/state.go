package frontend

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/wazevo-clir/internal/engine/wazevo/ssa"
)

type (
	// loweringState is the per-function value/control stack driving the single-pass lowering.
	loweringState struct {
		// values holds the operand stack: SSA values corresponding to the Wasm value stack.
		values        []ssa.Value
		controlFrames []controlFrame
		// unreachable is the negation of the translation-state invariant `reachable`: once an
		// operator emits a trap or an unconditional branch, everything until the next structural
		// boundary (Else/End at the right nesting depth) is dead and is tracked, not skipped —
		// every Block/Loop/If still pushes a (placeholder) control frame even while unreachable,
		// so that the matching End always finds a frame to pop regardless of reachability.
		unreachable   bool
		tmpForBrTable []uint32
	}

	// controlFrame is one entry of the control-frame stack, one per open block/loop/if/function.
	controlFrame struct {
		kind controlFrameKind
		// originalStackLenWithoutParam is the operand stack depth when this frame was entered,
		// not counting the frame's own Wasm-level block parameters.
		originalStackLenWithoutParam int
		// blk is the loop header for a loop frame, or the else-block for an if-with-else frame.
		// Left unset (nil) for an if frame until (and unless) an `else` operator is actually
		// seen — this is the deferred-else design: no else block is allocated up front.
		blk ssa.BasicBlock
		// followingBlock is the block entered once this frame's `end` is reached.
		followingBlock ssa.BasicBlock
		blockType BlockSignature
		// pendingElseBranch is the Brz instruction emitted by `if`, still targeting
		// followingBlock (the "no else" destination). If `else` is later seen, this branch's
		// target is retargeted to a freshly allocated else block via ssa.Builder.ChangeJumpTarget
		// instead of eagerly allocating an (possibly unused) else block at `if` time.
		pendingElseBranch *ssa.Instruction
		// branchedToExit records whether any Br/BrIf/BrTable has targeted this frame's exit,
		// which End needs to decide whether control rejoins reachably after an unreachable body.
		branchedToExit bool
		// headReachable is an If frame's reachability at the point `if` itself was translated.
		headReachable bool
		// consequentEndsReachableSet/consequentEndsReachable together encode
		// Option<bool>: whether (and to what value) the Then branch's reachability at its `else`
		// or implicit-end boundary has been recorded yet.
		consequentEndsReachableSet bool
		consequentEndsReachable    bool
	}

	controlFrameKind byte
)

const (
	controlFrameKindFunction controlFrameKind = iota + 1
	controlFrameKindLoop
	controlFrameKindIf
	controlFrameKindIfWithElse
	controlFrameKindBlock
)

// String implements fmt.Stringer for debugging.
func (k controlFrameKind) String() string {
	switch k {
	case controlFrameKindFunction:
		return "function"
	case controlFrameKindLoop:
		return "loop"
	case controlFrameKindIf:
		return "if_pending_else"
	case controlFrameKindIfWithElse:
		return "if_with_else"
	case controlFrameKindBlock:
		return "block"
	default:
		panic(k)
	}
}

// isLoop returns true if this is a loop frame.
func (ctrl *controlFrame) isLoop() bool {
	return ctrl.kind == controlFrameKindLoop
}

// String implements fmt.Stringer for debugging.
func (l *loweringState) String() string {
	var vs []string
	for _, v := range l.values {
		vs = append(vs, fmt.Sprintf("v%v", v.ID()))
	}
	var frames []string
	for i := range l.controlFrames {
		frames = append(frames, l.controlFrames[i].kind.String())
	}
	return fmt.Sprintf("\n\tunreachable=%v\n\tstack: %s\n\tcontrol frames: %s",
		l.unreachable, strings.Join(vs, ", "), strings.Join(frames, ", "))
}

// reset resets the loweringState so the Compiler can be reused for the next function.
func (l *loweringState) reset() {
	l.values = l.values[:0]
	l.controlFrames = l.controlFrames[:0]
	l.unreachable = false
}

func (l *loweringState) peek() ssa.Value {
	return l.values[len(l.values)-1]
}

func (l *loweringState) pop() (ret ssa.Value) {
	tail := len(l.values) - 1
	ret = l.values[tail]
	l.values = l.values[:tail]
	return
}

func (l *loweringState) push(v ssa.Value) {
	l.values = append(l.values, v)
}

func (l *loweringState) nPopInto(n int, dst []ssa.Value) {
	if n == 0 {
		return
	}
	tail := len(l.values)
	begin := tail - n
	copy(dst, l.values[begin:tail])
	l.values = l.values[:begin]
}

func (l *loweringState) nPeekDup(n int) []ssa.Value {
	if n == 0 {
		return nil
	}
	tail := len(l.values)
	view := l.values[tail-n : tail]
	cp := make([]ssa.Value, len(view))
	copy(cp, view)
	return cp
}

func (l *loweringState) ctrlPop() (ret controlFrame) {
	tail := len(l.controlFrames) - 1
	ret = l.controlFrames[tail]
	l.controlFrames = l.controlFrames[:tail]
	return
}

func (l *loweringState) ctrlPush(ret controlFrame) {
	l.controlFrames = append(l.controlFrames, ret)
}

func (l *loweringState) ctrlPeekAt(n int) *controlFrame {
	tail := len(l.controlFrames) - 1
	return &l.controlFrames[tail-n]
}

// brTargetArgNumFor resolves the branch target block and the number of operand-stack values
// that must travel with a branch to the control frame `labelIndex` levels up (0 = innermost).
func (l *loweringState) brTargetArgNumFor(labelIndex uint32) (target ssa.BasicBlock, argNum int) {
	frame := l.ctrlPeekAt(int(labelIndex))
	if frame.isLoop() {
		// Branching to a loop re-enters at its header, carrying the loop's params.
		return frame.blk, len(frame.blockType.Params)
	}
	return frame.followingBlock, len(frame.blockType.Results)
}
