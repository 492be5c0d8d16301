package runtime

// fiberHandleWord and its inverse pack a FiberHandle into the 64-bit
// value-word space so fiber handles can travel on the value stack
// like any other value. Fiber handles have no place in the wire
// formats spec §3 defines for addresses, so the encoding stays
// internal to this package rather than living in value.
func fiberHandleWord(h FiberHandle) uint64 {
	return uint64(h.Index) | uint64(h.Generation)<<32
}

func wordToFiberHandle(w uint64) FiberHandle {
	return FiberHandle{Index: uint32(w), Generation: uint8(w >> 32)}
}

// fiberBuiltins implements fiber_create, fiber_destroy, fiber_current,
// fiber_parent, fiber_done, fiber_resume, fiber_suspend, and
// fiber_transfer (spec §4.F), wiring the scheduler in scheduler.go to
// the built-in ABI. Resume/suspend/transfer move a single value
// between fibers rather than a variadic run — every call site in a
// compiled module declares its own static arity, so one scalar is
// enough to carry a result or a ping-pong payload (spec §8 "Fiber
// ping-pong" only ever moves one value at a time).
func fiberBuiltins() []Builtin {
	return []Builtin{
		{Name: "fiber_create", InputCount: 1, OutputCount: 1, Func: func(p *Process) *Panic {
			w, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			fa := w.FunctionAddress()
			if fa.IsNull() {
				return newPanic(PanicInvalidAddress, "fiber_create: null function address")
			}
			entry := p.prog.Module.FunctionByIndex(int(fa.Index))
			if entry == nil {
				return newPanic(PanicTypeConfusion, "fiber_create: function index out of range")
			}
			h := p.CreateFiber(entry)
			return pushResult(p, fiberHandleWord(h))
		}},
		{Name: "fiber_destroy", InputCount: 1, OutputCount: 0, Func: func(p *Process) *Panic {
			w, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			return p.DestroyFiber(wordToFiberHandle(w.Uint()), false)
		}},
		{Name: "fiber_current", InputCount: 0, OutputCount: 1, Func: func(p *Process) *Panic {
			return pushResult(p, fiberHandleWord(p.CurrentFiber()))
		}},
		{Name: "fiber_parent", InputCount: 0, OutputCount: 1, Func: func(p *Process) *Panic {
			return pushResult(p, fiberHandleWord(p.ParentFiber()))
		}},
		{Name: "fiber_done", InputCount: 1, OutputCount: 1, Func: func(p *Process) *Panic {
			w, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			done, ok := p.FiberDoneState(wordToFiberHandle(w.Uint()))
			if !ok {
				return newPanic(PanicTypeConfusion, "fiber_done: invalid fiber handle")
			}
			result := uint64(0)
			if done {
				result = 1
			}
			return pushResult(p, result)
		}},
		{Name: "fiber_resume", InputCount: 2, OutputCount: 1, Func: func(p *Process) *Panic {
			input, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			target, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			return p.ResumeFiber(wordToFiberHandle(target.Uint()), []uint64{input.Uint()})
		}},
		{Name: "fiber_suspend", InputCount: 1, OutputCount: 1, Flags: FlagVMOnly, Func: func(p *Process) *Panic {
			output, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			inputs, pnc := p.SuspendCurrent([]uint64{output.Uint()})
			if pnc != nil {
				return pnc
			}
			in := uint64(0)
			if len(inputs) > 0 {
				in = inputs[0]
			}
			return pushResult(p, in)
		}},
		{Name: "fiber_transfer", InputCount: 2, OutputCount: 1, Func: func(p *Process) *Panic {
			input, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			target, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			return p.TransferFiber(wordToFiberHandle(target.Uint()), []uint64{input.Uint()})
		}},
	}
}
