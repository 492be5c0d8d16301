package lauf

import (
	"github.com/lauf-lang/lauf/internal/lauf/runtime"
)

// Options configures a VM run: stack sizing, step budget, the heap
// allocator, host I/O, and what happens when a panic escapes the root
// fiber (spec §6's options table).
type Options = runtime.Options

// DefaultOptions returns the option set a zero-value Options falls
// back to.
func DefaultOptions() Options { return runtime.DefaultOptions() }

// Result is what a completed Execute call leaves behind: the root
// fiber's final output values, or the panic that terminated it
// unrecovered.
type Result struct {
	Outputs []uint64
	Panic   *Panic
}

// VM runs a Program to completion against a built-in Library. A VM is
// stateless between calls to Execute — each call creates its own
// Process, so concurrent Execute calls on the same VM with distinct
// Programs are safe.
type VM interface {
	// Execute runs prog's entry function as the root fiber until it
	// returns, panics unrecovered, or the fiber tree running under it
	// finishes. Nested fibers created by fiber_create and friends are
	// entirely a bytecode-level concern; Execute only reports the
	// outcome of the root.
	Execute(prog *Program) (*Result, error)
}

type vmImpl struct {
	library *Library
	opts    Options
}

// NewVM creates a VM bound to library (StandardLibrary() if nil) and
// opts (DefaultOptions() fields filled in for zero values).
func NewVM(library *Library, opts Options) VM {
	if library == nil {
		library = StandardLibrary()
	}
	return &vmImpl{library: library, opts: opts}
}

func (v *vmImpl) Execute(prog *Program) (*Result, error) {
	if prog == nil {
		return nil, &Error{Code: ErrInvalidProgram, Message: "Execute requires a non-nil program"}
	}
	p := runtime.NewProcess(prog, v.opts)
	pnc := runtime.Execute(p, v.library)
	if pnc != nil {
		return &Result{Panic: pnc}, nil
	}
	return &Result{Outputs: p.RootOutputs()}, nil
}
