package runtime

import (
	"github.com/lauf-lang/lauf/internal/lauf/memory"
	"github.com/lauf-lang/lauf/internal/lauf/module"
	"github.com/lauf-lang/lauf/internal/lauf/stack"
	"github.com/lauf-lang/lauf/internal/lauf/value"
)

// localWordSize is the fixed slot width local_addr indexes by. lauf's
// locals are word-addressed, not byte-addressed with per-local size
// metadata, so a function's local_stack_size is always a multiple of
// this.
const localWordSize = 8

// Execute runs prog's entry function as the process's root fiber to
// completion, returning the escaping panic if one reached the root
// frame unrecovered (spec §2, §4.G). The root fiber has no parent, so
// it never suspends; Execute only returns once the process is done.
func Execute(p *Process, library *Library) *Panic {
	p.library = library
	root := p.fibers[p.current.Index]
	pnc := runCall(p, root, library, root.entry, nil)
	p.done = true
	if pnc != nil {
		p.panicked = pnc
		if p.opts.PanicHandler != nil {
			p.opts.PanicHandler(p, pnc)
		}
	}
	return pnc
}

// runFiber is the goroutine body for every non-root fiber: it blocks
// for its first resume/transfer, runs its entry function to
// completion or an unrecovered panic, and reports the outcome on its
// yield channel (spec §4.F).
func runFiber(p *Process, f *fiber, handle FiberHandle, library *Library) {
	msg := <-f.resumeCh
	if msg.destroy {
		f.yieldCh <- fiberYield{kind: yieldDone}
		return
	}
	pnc := runCall(p, f, library, f.entry, msg.inputs)
	if pnc != nil {
		f.yieldCh <- fiberYield{kind: yieldPanicked, panic: pnc}
		return
	}
	f.yieldCh <- fiberYield{kind: yieldDone, values: f.vstack.Snapshot()}
}

// runCall executes fn as a new activation on f's call stack: it pushes
// a frame with args as the callee's arguments, runs fn's instructions
// via runFrame, and verifies on return that exactly
// fn.Signature.OutputCount values were left above the entry baseline
// (spec §4.E "Call protocol"). On panic, the value stack is truncated
// back to that baseline and the local allocation is freed either way
// — the one piece of per-call cleanup that happens regardless of how
// the call ended.
func runCall(p *Process, f *fiber, library *Library, fn *module.Function, args []uint64) *Panic {
	vBase := f.vstack.Len()

	var localAddr value.Address
	if fn.LocalStackSize > 0 {
		localAddr = p.mem.Allocate(memory.SourceLocalFrame, make([]byte, fn.LocalStackSize))
	}

	frame, ferr := f.cstack.Push(stack.Frame{
		FunctionIndex: uint16(fn.Index),
		VStackBase:    vBase,
		LocalAddr:     localAddr,
		LocalsSize:    fn.LocalStackSize,
		Args:          args,
	})
	if ferr != nil {
		return newPanic(PanicStackOverflow, "%v", ferr)
	}

	// Consult the native-code cache before interpreting fn's bytecode
	// (spec §4.H). This build's Cache never returns a usable
	// translation, so this always falls through to the interpreter
	// below; a real backend would run compiled.page here instead.
	_, _ = p.jit.Translate(fn)

	pnc := runFrame(p, f, library, fn, frame)

	if fn.LocalStackSize > 0 {
		_ = p.mem.Free(localAddr, memory.SourceLocalFrame)
	}
	f.cstack.Pop()

	if pnc != nil {
		pnc.Stacktrace = append(pnc.Stacktrace, StackFrame{
			FunctionName: fn.Name,
			Instruction:  int(frame.IP),
			Fiber:        p.current,
		})
		f.vstack.TruncateTo(vBase)
		return pnc
	}

	if f.vstack.Len()-vBase != int(fn.Signature.OutputCount) {
		return newPanic(PanicTypeConfusion, "function %q returned %d values, declared %d outputs",
			fn.Name, f.vstack.Len()-vBase, fn.Signature.OutputCount)
	}
	if int(fn.Signature.OutputCount) > p.opts.MaxVStackElems && p.opts.MaxVStackElems != 0 {
		return newPanic(PanicStackOverflow, "function %q outputs exceed value stack capacity", fn.Name)
	}
	return nil
}

// runFrame decodes and executes fn's instructions starting at
// frame.IP until a return, an explicit panic, or a propagating panic
// from a nested call (spec §4.E). It mutates f.vstack and f.cstack in
// place; frame is a stable pointer into f.cstack's segment for the
// duration of this call.
func runFrame(p *Process, f *fiber, library *Library, fn *module.Function, frame *stack.Frame) *Panic {
	for {
		if int(frame.IP) >= len(fn.Instructions) {
			return newPanic(PanicTypeConfusion, "instruction pointer ran past the end of function %q", fn.Name)
		}
		instr := fn.Instructions[frame.IP]
		advance := true

		switch instr.Opcode() {
		case value.OpNop:
			// no-op

		case value.OpReturn:
			return nil

		case value.OpPanic:
			return newPanic(PanicExplicit, "explicit panic in %q", fn.Name)

		case value.OpJump:
			frame.IP = uint32(int(frame.IP) + 1 + int(instr.PayloadSint()))
			advance = false

		case value.OpJumpIf:
			cond, ok := f.vstack.Pop()
			if !ok {
				return newPanic(PanicTypeConfusion, "jump_if: value stack underflow")
			}
			if cond != 0 {
				frame.IP = uint32(int(frame.IP) + 1 + int(instr.PayloadSint()))
				advance = false
			}

		case value.OpCall:
			target := p.prog.Module.FunctionByIndex(int(instr.PayloadUint()))
			if target == nil {
				return newPanic(PanicTypeConfusion, "call: function index out of range")
			}
			args, pnc := popArgs(f, int(target.Signature.InputCount))
			if pnc != nil {
				return pnc
			}
			if pnc := runCall(p, f, library, target, args); pnc != nil {
				return pnc
			}

		case value.OpCallIndirect:
			w, ok := f.vstack.Pop()
			if !ok {
				return newPanic(PanicTypeConfusion, "call_indirect: value stack underflow")
			}
			fa := value.Word(w).FunctionAddress()
			if fa.IsNull() {
				return newPanic(PanicInvalidAddress, "call_indirect: null function address")
			}
			expectedInputs := uint8(instr.RawPayload() & 0xFF)
			expectedOutputs := uint8((instr.RawPayload() >> 8) & 0xFF)
			if fa.InputCount != expectedInputs || fa.OutputCount != expectedOutputs {
				return newPanic(PanicTypeConfusion, "call_indirect: signature mismatch")
			}
			target := p.prog.Module.FunctionByIndex(int(fa.Index))
			if target == nil {
				return newPanic(PanicTypeConfusion, "call_indirect: function index out of range")
			}
			args, pnc := popArgs(f, int(target.Signature.InputCount))
			if pnc != nil {
				return pnc
			}
			if pnc := runCall(p, f, library, target, args); pnc != nil {
				return pnc
			}

		case value.OpCallBuiltin:
			b, ok := library.At(instr.PayloadUint())
			if !ok {
				return newPanic(PanicTypeConfusion, "call_builtin: index out of range")
			}
			if pnc := b.Func(p); pnc != nil {
				return pnc
			}
			if p.forceExit {
				return newPanic(PanicTypeConfusion, "fiber destroyed")
			}

		case value.OpPushLiteral:
			w, ok := p.prog.Module.Literal(instr.PayloadUint())
			if !ok {
				return newPanic(PanicTypeConfusion, "push_literal: index out of range")
			}
			if err := f.vstack.Push(uint64(w)); err != nil {
				return newPanic(PanicStackOverflow, "%v", err)
			}

		case value.OpPushZero:
			if err := f.vstack.Push(0); err != nil {
				return newPanic(PanicStackOverflow, "%v", err)
			}

		case value.OpPushSmallZext:
			if err := f.vstack.Push(uint64(instr.PayloadUint())); err != nil {
				return newPanic(PanicStackOverflow, "%v", err)
			}

		case value.OpPushSmallNeg:
			if err := f.vstack.Push(uint64(value.FromSint(-int64(instr.PayloadUint())))); err != nil {
				return newPanic(PanicStackOverflow, "%v", err)
			}

		case value.OpPop:
			if !f.vstack.PopN(int(instr.PayloadUint())) {
				return newPanic(PanicTypeConfusion, "pop: value stack underflow")
			}

		case value.OpPopOne:
			if _, ok := f.vstack.Pop(); !ok {
				return newPanic(PanicTypeConfusion, "pop_one: value stack underflow")
			}

		case value.OpPick:
			w, ok := f.vstack.Peek(int(instr.PayloadUint()))
			if !ok {
				return newPanic(PanicTypeConfusion, "pick: index out of range")
			}
			if err := f.vstack.Push(w); err != nil {
				return newPanic(PanicStackOverflow, "%v", err)
			}

		case value.OpRoll:
			if !f.vstack.Roll(int(instr.PayloadUint())) {
				return newPanic(PanicTypeConfusion, "roll: index out of range")
			}

		case value.OpLocalAddr:
			addr := frame.LocalAddr.WithOffset(int64(instr.PayloadUint()) * localWordSize)
			if err := f.vstack.Push(uint64(value.FromAddress(addr))); err != nil {
				return newPanic(PanicStackOverflow, "%v", err)
			}

		case value.OpArgument:
			n := instr.PayloadUint()
			if int(n) >= len(frame.Args) {
				return newPanic(PanicTypeConfusion, "argument: index out of declared input range")
			}
			if err := f.vstack.Push(frame.Args[n]); err != nil {
				return newPanic(PanicStackOverflow, "%v", err)
			}

		default:
			return newPanic(PanicTypeConfusion, "unrecognized opcode %s", instr.Opcode())
		}

		if advance {
			frame.IP++
		}
	}
}

// popArgs pops n values off f.vstack, returning them in push order
// (bottom-most argument first) for storage as a callee frame's Args.
func popArgs(f *fiber, n int) ([]uint64, *Panic) {
	if n == 0 {
		return nil, nil
	}
	args := make([]uint64, n)
	for i := n - 1; i >= 0; i-- {
		w, ok := f.vstack.Pop()
		if !ok {
			return nil, newPanic(PanicTypeConfusion, "call: insufficient arguments on value stack")
		}
		args[i] = w
	}
	return args, nil
}
