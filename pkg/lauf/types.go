package lauf

import (
	"github.com/lauf-lang/lauf/internal/lauf/module"
	"github.com/lauf-lang/lauf/internal/lauf/runtime"
	"github.com/lauf-lang/lauf/internal/lauf/value"
)

// Signature is a function's declared arity: how many values it pops
// as arguments and how many it must leave behind on return.
type Signature = module.Signature

// BuiltinSignature is the arity a compiled call site declares for a
// call_builtin instruction, used for static stack-effect tracking.
type BuiltinSignature = module.BuiltinSignature

// Location is a source location attached to an instruction for
// diagnostics and stacktraces.
type Location = module.Location

// GlobalSource distinguishes a global's initial contents: zeroed,
// read-write, or read-only.
type GlobalSource = module.GlobalSource

const (
	GlobalZero  = module.GlobalZero
	GlobalConst = module.GlobalConst
	GlobalMut   = module.GlobalMut
)

// Module is a finished, immutable function table plus its literal
// pool and static-data layout (spec §4.B).
type Module = module.Module

// Program pairs a finished module with an entry function and its own
// private copy of the static-data segment.
type Program = module.Program

// Function is one assembled function: its signature, local storage
// requirement, and instruction stream.
type Function = module.Function

// VerifyError is returned when a module fails one of the checks the
// builder performs before handing back a usable module.
type VerifyError = module.VerifyError

// Word is the untagged 64-bit value every stack slot, literal, and
// local holds.
type Word = value.Word

// Address is the packed (allocation, generation, offset) triple
// bytecode uses to name a location in memory.
type Address = value.Address

// FunctionAddress names a callable function by table index plus its
// declared arity.
type FunctionAddress = value.FunctionAddress

// Panic is an unrecovered (or, inside assert_panic, caught) VM fault:
// a code, a message, and the stacktrace active when it was raised.
type Panic = runtime.Panic

// PanicCode classifies why a Panic was raised.
type PanicCode = runtime.PanicCode

const (
	PanicUnknown           = runtime.PanicUnknown
	PanicDivisionByZero    = runtime.PanicDivisionByZero
	PanicOverflow          = runtime.PanicOverflow
	PanicShiftOutOfRange   = runtime.PanicShiftOutOfRange
	PanicInvalidAddress    = runtime.PanicInvalidAddress
	PanicStackOverflow     = runtime.PanicStackOverflow
	PanicStepLimitExceeded = runtime.PanicStepLimitExceeded
	PanicAssertionFailed   = runtime.PanicAssertionFailed
	PanicExplicit          = runtime.PanicExplicit
	PanicTypeConfusion     = runtime.PanicTypeConfusion
)

// Allocator is the collaborator interface a caller can implement to
// back the heap with something other than Go's garbage collector
// (spec §6).
type Allocator = runtime.Allocator

// Writer and Reader are the narrow collaborator interfaces built-ins
// read and write through for host I/O.
type Writer = runtime.Writer
type Reader = runtime.Reader

// PanicHandler is invoked when a panic escapes the root fiber
// unrecovered.
type PanicHandler = runtime.PanicHandler

// Library is the addressable built-in table a Program's call_builtin
// instructions index into.
type Library = runtime.Library

// StandardLibrary returns the built-in table lauf ships: arithmetic,
// memory, fiber, step-limit, and test-assertion built-ins.
func StandardLibrary() *Library { return runtime.StandardLibrary() }

// NewProgram links a finished module with its entry function.
func NewProgram(mod *Module, entry *Function) (*Program, error) {
	return module.NewProgram(mod, entry)
}
