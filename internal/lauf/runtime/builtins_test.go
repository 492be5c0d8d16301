package runtime

import "fmt"

// testBuiltins implements the test-assertion library: unreachable,
// assert, and assert_eq are grounded directly on
// original_source/include/lauf/lib/test.h's signatures. assert_panic
// has no counterpart under that name in the original header (its test
// library only ever fails a process, it never recovers one) — it is
// this VM's own mechanism for spec §4.G's "catch scope", modeled as a
// built-in that calls a function address and reports whether the call
// panicked rather than letting the panic keep propagating. It reuses
// the same runCall the dispatch loop uses for call/call_indirect, so
// catching costs nothing beyond an ordinary nested call: runCall
// already restores the value stack to the pre-call baseline and frees
// the callee's locals when it returns a panic.
func testBuiltins() []Builtin {
	return []Builtin{
		{Name: "unreachable", InputCount: 0, OutputCount: 0, Func: func(p *Process) *Panic {
			return newPanic(PanicAssertionFailed, "reached code marked unreachable")
		}},
		{Name: "assert", InputCount: 1, OutputCount: 0, Func: func(p *Process) *Panic {
			w, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			if w.Uint() != 0 {
				return nil
			}
			if wr := p.Writer(); wr != nil {
				fmt.Fprintf(wr, "assertion failed: %d\n", w.Sint())
			}
			return newPanic(PanicAssertionFailed, "assertion failed: value is zero")
		}},
		{Name: "assert_eq", InputCount: 2, OutputCount: 0, Func: func(p *Process) *Panic {
			b, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			a, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			if a == b {
				return nil
			}
			if wr := p.Writer(); wr != nil {
				fmt.Fprintf(wr, "assertion failed: %d != %d\n", a.Sint(), b.Sint())
			}
			return newPanic(PanicAssertionFailed, "assertion failed: %d != %d", a.Sint(), b.Sint())
		}},
		{Name: "assert_panic", InputCount: 1, OutputCount: 1, Flags: FlagVMOnly, Func: func(p *Process) *Panic {
			w, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			fa := w.FunctionAddress()
			if fa.IsNull() {
				return newPanic(PanicInvalidAddress, "assert_panic: null function address")
			}
			target := p.prog.Module.FunctionByIndex(int(fa.Index))
			if target == nil {
				return newPanic(PanicTypeConfusion, "assert_panic: function index out of range")
			}
			if target.Signature.InputCount != 0 || target.Signature.OutputCount != 0 {
				return newPanic(PanicTypeConfusion, "assert_panic: protected function must take no arguments and return no values")
			}
			f := p.currentFiber()
			caught := uint64(0)
			if pnc := runCall(p, f, p.Library(), target, nil); pnc != nil {
				caught = 1
			}
			return pushResult(p, caught)
		}},
	}
}
