package module

import (
	"fmt"

	"github.com/lauf-lang/lauf/internal/lauf/arena"
	"github.com/lauf-lang/lauf/internal/lauf/value"
)

// VerifyError is returned by Builder when a module fails one of the
// checks in spec §4.B: out-of-range literal/function/jump references,
// or a signature that doesn't match the tracked net stack effect. The
// function's max_vstack_size is not checked but computed from the
// tracked peak. It carries enough to
// localize the problem: the function and instruction index involved.
type VerifyError struct {
	Function     string
	Instruction  int
	Reason       string
}

func (e *VerifyError) Error() string {
	if e.Instruction >= 0 {
		return fmt.Sprintf("module verification failed in function %q at instruction %d: %s",
			e.Function, e.Instruction, e.Reason)
	}
	return fmt.Sprintf("module verification failed in function %q: %s", e.Function, e.Reason)
}

// BuiltinSignature is the external built-in table entry a Builder consults
// when emitting call_builtin, so it can track that instruction's
// stack effect without the module package depending on the dispatch
// package (which itself depends on module for Function/Signature).
type BuiltinSignature struct {
	Name        string
	InputCount  uint8
	OutputCount uint8
}

// Builder assembles a Module instruction by instruction, performing
// the checks that let the engine trust the result without re-deriving
// them at execution time. It is the only legal way to obtain a
// *Module in this repository — lauf has no bytecode loader, only this
// in-process assembler (see SPEC_FULL.md §4.B).
type Builder struct {
	mod *Module
	cur *functionBuilder
	err error
}

type functionBuilder struct {
	name           string
	sig            Signature
	index          int
	instrs         []value.Instruction
	locations      []Location
	depth          int // current statically-tracked stack depth
	peak           int
	pendingLoc     Location
	localStackSize int
}

// NewBuilder starts assembling a module with the given diagnostic
// name and path.
func NewBuilder(name, path string) *Builder {
	return &Builder{mod: &Module{Name: name, Path: path, arena: arena.New(nil)}}
}

// Err returns the first error encountered by any Builder call, or nil.
// Callers may ignore return values of individual Emit* calls and check
// this once before Finish.
func (b *Builder) Err() error { return b.err }

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// DeclareLiteral appends a value to the module's literal pool and
// returns its index.
func (b *Builder) DeclareLiteral(w value.Word) uint32 {
	b.mod.Literals = append(b.mod.Literals, w)
	return uint32(len(b.mod.Literals) - 1)
}

// DeclareGlobal reserves a block in the static-data segment and
// returns it so later literals (e.g. local_addr-style base addresses
// for statics) can reference its offset.
func (b *Builder) DeclareGlobal(source GlobalSource, size, align int, init []byte) Global {
	if align <= 0 {
		align = 1
	}
	offset := (b.mod.StaticSize + align - 1) &^ (align - 1)
	g := Global{Source: source, Offset: offset, Size: size, Align: align}
	if source != GlobalZero {
		if len(init) != size {
			b.fail(fmt.Errorf("global init length %d does not match declared size %d", len(init), size))
		}
		g.Init = append([]byte(nil), init...)
	}
	b.mod.Globals = append(b.mod.Globals, g)
	b.mod.StaticSize = offset + size
	return g
}

// StartFunction begins assembling a new function. Only one function
// may be in progress at a time.
func (b *Builder) StartFunction(name string, sig Signature) {
	if b.cur != nil {
		b.fail(fmt.Errorf("StartFunction(%q) called while %q is still open", name, b.cur.name))
		return
	}
	b.cur = &functionBuilder{name: name, sig: sig, index: len(b.mod.Functions)}
}

// SetLocation sets the debug location to attach to the next emitted
// instruction (sticky until changed again).
func (b *Builder) SetLocation(loc Location) {
	if b.cur != nil {
		b.cur.pendingLoc = loc
	}
}

// SetLocalStackSize records the number of bytes of locals this
// function needs per call.
func (b *Builder) SetLocalStackSize(n int) {
	if b.cur != nil {
		b.cur.localStackSize = n
	}
}

// emit records an instruction and its static stack effect.
func (b *Builder) emit(instr value.Instruction, effect int) int {
	if b.cur == nil {
		b.fail(fmt.Errorf("instruction emitted with no open function"))
		return -1
	}
	idx := len(b.cur.instrs)
	b.cur.instrs = append(b.cur.instrs, instr)
	b.cur.locations = append(b.cur.locations, b.cur.pendingLoc)
	b.cur.depth += effect
	if b.cur.depth < 0 {
		b.fail(&VerifyError{Function: b.cur.name, Instruction: idx, Reason: "stack underflow tracked statically"})
	}
	if b.cur.depth > b.cur.peak {
		b.cur.peak = b.cur.depth
	}
	return idx
}

// Nop emits a no-op.
func (b *Builder) Nop() { b.emit(value.Encode(value.OpNop, 0), 0) }

// Return emits a return; verifies the tracked depth equals the
// function's declared output count.
func (b *Builder) Return() {
	if b.cur != nil && b.cur.depth != int(b.cur.sig.OutputCount) {
		b.fail(&VerifyError{
			Function:    b.cur.name,
			Instruction: len(b.cur.instrs),
			Reason: fmt.Sprintf("return with tracked depth %d, function declares %d outputs",
				b.cur.depth, b.cur.sig.OutputCount),
		})
	}
	b.emit(value.Encode(value.OpReturn, 0), 0)
}

// Panic emits an explicit panic; unreachable code after it is legal
// (the verifier does not require the block to balance past a panic).
func (b *Builder) Panic() { b.emit(value.Encode(value.OpPanic, 0), 0) }

// Jump emits an unconditional relative jump; offset counts from the
// instruction after the jump. If the target isn't known yet, emit 0
// and fix the offset later with PatchJump on the returned index.
func (b *Builder) Jump(offset int32) int {
	return b.emit(value.EncodeSigned(value.OpJump, offset), 0)
}

// JumpIf emits a conditional relative jump; pops the condition.
func (b *Builder) JumpIf(offset int32) int {
	return b.emit(value.EncodeSigned(value.OpJumpIf, offset), -1)
}

// PatchJump rewrites a previously emitted jump/jump_if at idx so its
// offset targets the current end of the instruction stream (relative
// to the instruction after idx), the usual pattern for "jump to the
// next thing I'm about to emit" forward references.
func (b *Builder) PatchJump(idx int) {
	if b.cur == nil || idx < 0 || idx >= len(b.cur.instrs) {
		b.fail(fmt.Errorf("PatchJump: index %d out of range", idx))
		return
	}
	target := len(b.cur.instrs)
	offset := int32(target - (idx + 1))
	op := b.cur.instrs[idx].Opcode()
	b.cur.instrs[idx] = value.EncodeSigned(op, offset)
}

// PushLiteral emits a push of the literal pool entry at idx.
func (b *Builder) PushLiteral(idx uint32) {
	if int(idx) >= len(b.mod.Literals) {
		b.fail(&VerifyError{Function: b.curName(), Instruction: b.curIdx(), Reason: "literal index out of range"})
	}
	b.emit(value.Encode(value.OpPushLiteral, idx), 1)
}

// PushZero emits a push of the zero word.
func (b *Builder) PushZero() { b.emit(value.Encode(value.OpPushZero, 0), 1) }

// PushSmallZext emits push of a small unsigned immediate.
func (b *Builder) PushSmallZext(imm uint32) {
	b.emit(value.Encode(value.OpPushSmallZext, imm), 1)
}

// PushSmallNeg emits push of -imm.
func (b *Builder) PushSmallNeg(imm uint32) {
	b.emit(value.Encode(value.OpPushSmallNeg, imm), 1)
}

// Pop emits a pop of n values.
func (b *Builder) Pop(n uint32) {
	if n == 0 {
		b.fail(&VerifyError{Function: b.curName(), Instruction: b.curIdx(), Reason: "pop(0) is meaningless, use nop"})
	}
	b.emit(value.Encode(value.OpPop, n), -int(n))
}

// PopOne emits a pop of exactly one value.
func (b *Builder) PopOne() { b.emit(value.Encode(value.OpPopOne, 0), -1) }

// Pick emits a duplicate of the nth-from-top value onto the top.
func (b *Builder) Pick(n uint32) { b.emit(value.Encode(value.OpPick, n), 1) }

// Roll emits a roll of the top n+1 values (net stack effect zero).
func (b *Builder) Roll(n uint32) { b.emit(value.Encode(value.OpRoll, n), 0) }

// LocalAddr emits a push of the address of a local slot.
func (b *Builder) LocalAddr(localIdx uint32) {
	b.emit(value.Encode(value.OpLocalAddr, localIdx), 1)
}

// Argument emits a push of the nth caller argument.
func (b *Builder) Argument(n uint32) {
	if b.cur != nil && n >= uint32(b.cur.sig.InputCount) {
		b.fail(&VerifyError{Function: b.curName(), Instruction: b.curIdx(), Reason: "argument index out of declared input range"})
	}
	b.emit(value.Encode(value.OpArgument, n), 1)
}

// Call emits a direct call to a function already added to the module
// (possibly this one, for recursion — Finish resolves the table once
// every function is known).
func (b *Builder) Call(target *Function) {
	if target == nil {
		b.fail(&VerifyError{Function: b.curName(), Instruction: b.curIdx(), Reason: "call to nil function"})
		return
	}
	if b.cur != nil && b.cur.depth < int(target.Signature.InputCount) {
		b.fail(&VerifyError{Function: b.curName(), Instruction: b.curIdx(), Reason: "call: insufficient arguments on tracked stack"})
	}
	effect := int(target.Signature.OutputCount) - int(target.Signature.InputCount)
	b.emit(value.Encode(value.OpCall, uint32(target.Index)), effect)
}

// CallIndirect emits a call through a function address value popped
// from the stack; the verifier cannot know the callee's effect
// statically (that's the whole point of indirection), so the caller
// supplies the signature it expects and the engine checks it against
// the address's embedded signature at runtime. The expected signature
// travels in the instruction's payload (input count in bits 0-7,
// output count in bits 8-15) so dispatch doesn't need a side table.
func (b *Builder) CallIndirect(expected Signature) {
	effect := int(expected.OutputCount) - int(expected.InputCount) - 1 // -1 for the popped address
	payload := uint32(expected.InputCount) | uint32(expected.OutputCount)<<8
	b.emit(value.Encode(value.OpCallIndirect, payload), effect)
}

// CallBuiltin emits a call_builtin referencing a built-in's
// registration index, using the caller-supplied signature for static
// stack tracking (the builder package doesn't depend on the built-in
// registry).
func (b *Builder) CallBuiltin(idx uint32, sig BuiltinSignature) {
	effect := int(sig.OutputCount) - int(sig.InputCount)
	b.emit(value.Encode(value.OpCallBuiltin, idx), effect)
}

func (b *Builder) curName() string {
	if b.cur == nil {
		return "<none>"
	}
	return b.cur.name
}

func (b *Builder) curIdx() int {
	if b.cur == nil {
		return -1
	}
	return len(b.cur.instrs)
}

// FinishFunction closes out the current function, computes
// max_vstack_size from the tracked peak, and appends it to the
// module's function table.
func (b *Builder) FinishFunction() *Function {
	if b.cur == nil {
		b.fail(fmt.Errorf("FinishFunction called with no open function"))
		return nil
	}
	fb := b.cur
	b.cur = nil

	fn := &Function{
		Name:           fb.name,
		Signature:      fb.sig,
		MaxVStackSize:  fb.peak,
		LocalStackSize: fb.localStackSize,
		Instructions:   fb.instrs,
		DebugLocations: fb.locations,
		Index:          fb.index,
	}
	b.mod.Functions = append(b.mod.Functions, fn)
	return fn
}

// Finish validates every jump offset lands within its own function's
// bytecode and returns the completed, immutable module. Matches the
// original's contract: "the engine refuses to execute a module that
// fails these checks."
func (b *Builder) Finish() (*Module, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.cur != nil {
		return nil, fmt.Errorf("Finish called with function %q still open", b.cur.name)
	}
	for _, fn := range b.mod.Functions {
		for i, instr := range fn.Instructions {
			switch instr.Opcode() {
			case value.OpJump, value.OpJumpIf:
				target := i + 1 + int(instr.PayloadSint())
				if target < 0 || target > len(fn.Instructions) {
					return nil, &VerifyError{Function: fn.Name, Instruction: i, Reason: "jump target out of range"}
				}
			case value.OpCall:
				if b.mod.FunctionByIndex(int(instr.PayloadUint())) == nil {
					return nil, &VerifyError{Function: fn.Name, Instruction: i, Reason: "call target out of range"}
				}
			case value.OpPushLiteral:
				if _, ok := b.mod.Literal(instr.PayloadUint()); !ok {
					return nil, &VerifyError{Function: fn.Name, Instruction: i, Reason: "literal index out of range"}
				}
			}
		}
	}
	b.mod.finished = true
	return b.mod, nil
}
