// Package runtime implements the dispatch loop and fiber scheduler
// (components F and G, spec §4.E-F). The original project keeps these
// under one "runtime" namespace because the built-in ABI needs a
// Process type the dispatch loop and the fiber scheduler both mutate;
// splitting them into separate packages would create a cyclic import.
package runtime

import (
	"github.com/lauf-lang/lauf/internal/lauf/jit"
	"github.com/lauf-lang/lauf/internal/lauf/memory"
	"github.com/lauf-lang/lauf/internal/lauf/module"
)

// Allocator is re-exported so callers configuring a Process don't need
// to import the memory package directly.
type Allocator = memory.Allocator

// Writer and Reader are the collaborator interfaces built-ins use for
// I/O (spec §6); they are deliberately narrow so a caller can wire a
// bytes.Buffer, os.Stdout/os.Stdin, or a test double.
type Writer interface {
	Write(p []byte) (n int, err error)
}

type Reader interface {
	Read(p []byte) (n int, err error)
}

// PanicHandler is invoked when a panic escapes the root frame
// unrecovered (spec §6, §4.G).
type PanicHandler func(p *Process, panic *Panic)

// Options configures a Process, mirroring the VM options table in
// spec §6.
type Options struct {
	PanicHandler          PanicHandler
	Allocator             Allocator
	InitialVStackElems    int
	MaxVStackElems        int
	InitialCStackBytes    int
	MaxCStackBytes        int
	StepLimit             uint64 // 0 = unlimited
	UserData              any
	Writer                Writer
	Reader                Reader
}

// DefaultOptions returns the option set used when a caller supplies a
// zero-value Options.
func DefaultOptions() Options {
	return Options{
		PanicHandler:       defaultPanicHandler,
		InitialVStackElems: 16,
		MaxVStackElems:     1 << 16,
		InitialCStackBytes: 4096,
		MaxCStackBytes:     1 << 20,
	}
}

// Process owns the allocation table, the fiber list, the currently
// running fiber, and the remaining step budget for one execution of a
// Program (spec §3 "Process").
type Process struct {
	opts Options
	mem  *memory.Manager

	fibers  []*fiber
	current FiberHandle

	stepBudget    uint64
	stepUnlimited bool

	prog    *module.Program
	library *Library

	// jit is consulted once per call, before a function's bytecode runs
	// (spec §4.H): on a cache miss it always reports translation
	// unavailable in this build, and the dispatch loop falls through to
	// the interpreter.
	jit *jit.Cache

	// outcome is set once the root fiber reaches FiberDone or an
	// unrecovered panic terminates the process.
	done     bool
	panicked *Panic

	// forceExit is set by SuspendCurrent when the blocked fiber was
	// force-destroyed rather than resumed; the dispatch loop checks
	// this immediately after any builtin call and, if set, unwinds
	// straight out of the fiber's goroutine without searching for an
	// assert_panic catch point.
	forceExit bool
}

// NewProcess creates a process ready to execute prog's entry
// function as the root fiber.
func NewProcess(prog *module.Program, opts Options) *Process {
	if opts.PanicHandler == nil {
		opts.PanicHandler = defaultPanicHandler
	}
	if opts.InitialVStackElems == 0 {
		opts.InitialVStackElems = DefaultOptions().InitialVStackElems
	}
	if opts.InitialCStackBytes == 0 {
		opts.InitialCStackBytes = DefaultOptions().InitialCStackBytes
	}
	if opts.MaxVStackElems == 0 {
		opts.MaxVStackElems = DefaultOptions().MaxVStackElems
	}
	if opts.MaxCStackBytes == 0 {
		opts.MaxCStackBytes = DefaultOptions().MaxCStackBytes
	}

	p := &Process{
		opts:          opts,
		mem:           memory.NewManager(opts.Allocator),
		prog:          prog,
		jit:           jit.NewCache(nil),
		stepUnlimited: opts.StepLimit == 0,
		stepBudget:    opts.StepLimit,
	}
	root := newFiber(prog.EntryFunction, opts.InitialVStackElems, opts.MaxVStackElems, opts.MaxCStackBytes)
	p.fibers = append(p.fibers, root)
	p.current = FiberHandle{Index: 0, Generation: 0}
	root.state = FiberRunning
	return p
}

// Memory exposes the process's allocation table to built-ins.
func (p *Process) Memory() *memory.Manager { return p.mem }

// Program returns the program this process executes.
func (p *Process) Program() *module.Program { return p.prog }

// Library returns the built-in table this process was started with, so
// a built-in itself (e.g. assert_panic) can invoke another function by
// address.
func (p *Process) Library() *Library { return p.library }

// UserData returns the opaque pointer configured in Options, for
// built-ins that need host context.
func (p *Process) UserData() any { return p.opts.UserData }

// Writer returns the configured debug writer, or nil.
func (p *Process) Writer() Writer { return p.opts.Writer }

// Reader returns the configured debug reader, or nil.
func (p *Process) Reader() Reader { return p.opts.Reader }

// Done reports whether the root fiber has completed.
func (p *Process) Done() bool { return p.done }

// Panicked returns the unrecovered panic that terminated the process,
// or nil if it hasn't (yet) terminated that way.
func (p *Process) Panicked() *Panic { return p.panicked }

// RootOutputs returns the root fiber's declared output values once the
// process is done without an unrecovered panic, in push order (the
// order the entry function's signature declares them) — not
// Snapshot's top-first order.
func (p *Process) RootOutputs() []uint64 {
	snap := p.fibers[0].vstack.Snapshot()
	out := make([]uint64, len(snap))
	for i, w := range snap {
		out[len(out)-1-i] = w
	}
	return out
}

func (p *Process) currentFiber() *fiber { return p.fibers[p.current.Index] }

func (p *Process) fiberAt(h FiberHandle) (*fiber, bool) {
	if h.IsNull() || int(h.Index) >= len(p.fibers) {
		return nil, false
	}
	f := p.fibers[h.Index]
	if f.generation != h.Generation {
		return nil, false
	}
	return f, true
}

func defaultPanicHandler(p *Process, panic *Panic) {
	_ = p
	_ = panic
}

// consumeStep decrements the step budget, returning a step-limit
// panic when it reaches zero under a bounded budget (spec invariant
// 6): with a budget of N, the Nth step panics. An unlimited budget
// (step_limit == 0) never panics here.
func (p *Process) consumeStep() *Panic {
	if p.stepUnlimited {
		return nil
	}
	if p.stepBudget <= 1 {
		p.stepBudget = 0
		return newPanic(PanicStepLimitExceeded, "step limit exceeded")
	}
	p.stepBudget--
	return nil
}

// setStepLimit lowers the step ceiling; spec §5 requires
// limits_set_step_limit to only decrease it relative to the current
// ceiling, never raise it.
func (p *Process) setStepLimit(n uint64) bool {
	if p.stepUnlimited {
		p.stepUnlimited = false
		p.stepBudget = n
		return true
	}
	if n > p.stepBudget {
		return false
	}
	p.stepBudget = n
	return true
}
