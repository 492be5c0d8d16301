package runtime

import (
	"github.com/lauf-lang/lauf/internal/lauf/memory"
	"github.com/lauf-lang/lauf/internal/lauf/module"
)

// CreateFiber allocates a new fiber in the ready state with entry as
// its entry function and the currently-running fiber as its parent
// (spec §4.F). Its goroutine doesn't start until the first resume or
// transfer into it.
func (p *Process) CreateFiber(entry *module.Function) FiberHandle {
	f := newFiber(entry, p.opts.InitialVStackElems, p.opts.MaxVStackElems, p.opts.MaxCStackBytes)
	f.parent = p.current
	f.hasParent = true

	for i, slot := range p.fibers {
		if slot.state == FiberDone && slot.reclaimed {
			gen := slot.generation + 1
			*slot = *f
			slot.generation = gen
			return FiberHandle{Index: uint32(i), Generation: gen}
		}
	}

	p.fibers = append(p.fibers, f)
	return FiberHandle{Index: uint32(len(p.fibers) - 1), Generation: f.generation}
}

// handoff starts target's goroutine if this is its first resume, then
// rendezvous-sends inputs and blocks for its next yield. Both
// ResumeFiber and TransferFiber share this; they differ only in
// whether the current fiber's parent linkage changes.
func (p *Process) handoff(target *fiber, targetHandle FiberHandle, inputs []uint64) (fiberYield, *Panic) {
	if !target.started {
		target.started = true
		go runFiber(p, target, targetHandle, p.library)
	}
	target.resumeCh <- resumeMsg{inputs: inputs}
	y := <-target.yieldCh
	return y, nil
}

// ResumeFiber transfers control to target (which must be ready or
// suspended), passing inputs onto its value stack and marking the
// current fiber suspended until target next suspends or completes,
// at which point target's outputs land on the current fiber's value
// stack (spec §4.F fiber_resume).
func (p *Process) ResumeFiber(target FiberHandle, inputs []uint64) *Panic {
	f, ok := p.fiberAt(target)
	if !ok {
		return newPanic(PanicTypeConfusion, "invalid fiber handle")
	}
	if f.state != FiberReady && f.state != FiberSuspended {
		return newPanic(PanicTypeConfusion, "cannot resume a fiber that is %s", f.state)
	}

	cur := p.currentFiber()
	curHandle := p.current
	cur.state = FiberSuspended
	f.state = FiberRunning
	p.current = target

	y, panicked := p.handoff(f, target, inputs)
	if panicked != nil {
		return panicked
	}

	p.current = curHandle
	cur.state = FiberRunning

	switch y.kind {
	case yieldPanicked:
		return y.panic
	case yieldDone:
		f.state = FiberDone
	default:
		f.state = FiberSuspended
	}
	for _, w := range y.values {
		if err := cur.vstack.Push(w); err != nil {
			return newPanic(PanicStackOverflow, "%v", err)
		}
	}
	return nil
}

// SuspendCurrent hands outputs to whichever fiber resumed or
// transferred into the current one, and blocks until it is resumed
// again (spec §4.F fiber_suspend). Only meaningful from inside a
// fiber's goroutine (runFiber); the root fiber never suspends this
// way.
func (p *Process) SuspendCurrent(outputs []uint64) ([]uint64, *Panic) {
	cur := p.currentFiber()
	if !cur.hasParent {
		return nil, newPanic(PanicTypeConfusion, "fiber has no parent to suspend to")
	}
	cur.yieldCh <- fiberYield{kind: yieldSuspended, values: outputs}
	msg := <-cur.resumeCh
	if msg.destroy {
		p.forceExit = true
		return nil, newPanic(PanicTypeConfusion, "fiber destroyed while suspended")
	}
	return msg.inputs, nil
}

// TransferFiber is ResumeFiber without reassigning the target's
// parent — symmetric coroutine hand-off (spec §4.F fiber_transfer).
func (p *Process) TransferFiber(target FiberHandle, inputs []uint64) *Panic {
	return p.ResumeFiber(target, inputs)
}

// DestroyFiber reclaims target's stacks, freeing any local
// allocations still owned by frames on its call stack (an unwind
// without executing user code), and bumps its generation so stale
// handles never alias the reused slot. Requires target to be Done, or
// force to be set and target not Running.
func (p *Process) DestroyFiber(target FiberHandle, force bool) *Panic {
	f, ok := p.fiberAt(target)
	if !ok {
		return newPanic(PanicTypeConfusion, "invalid fiber handle")
	}
	if f.state == FiberRunning {
		return newPanic(PanicTypeConfusion, "cannot destroy the running fiber")
	}
	if f.state != FiberDone && !force {
		return newPanic(PanicTypeConfusion, "fiber is not done")
	}

	if f.state == FiberSuspended && f.started {
		f.resumeCh <- resumeMsg{destroy: true}
		<-f.yieldCh
	}

	for _, fr := range f.cstack.Frames() {
		if fr.LocalsSize > 0 {
			_ = p.mem.Free(fr.LocalAddr, memory.SourceLocalFrame)
		}
	}

	f.state = FiberDone
	f.reclaimed = true
	f.generation++
	f.vstack = nil
	f.cstack = nil
	return nil
}

// CurrentFiber returns the handle of the fiber presently running.
func (p *Process) CurrentFiber() FiberHandle { return p.current }

// ParentFiber returns the parent of the current fiber, or the null
// handle if it has none (the root fiber).
func (p *Process) ParentFiber() FiberHandle {
	cur := p.currentFiber()
	if !cur.hasParent {
		return nullFiberHandle
	}
	return cur.parent
}

// FiberDoneState reports whether the given fiber handle refers to a
// fiber in the Done state; returns false (with ok=false) for an
// invalid handle.
func (p *Process) FiberDoneState(h FiberHandle) (done bool, ok bool) {
	f, ok := p.fiberAt(h)
	if !ok {
		return false, false
	}
	return f.state == FiberDone, true
}
