// Package module holds the immutable bytecode layout the dispatch
// loop consumes: functions, their literal pool, their debug locations,
// and the module's static-data segment. Everything here is produced
// by Builder (see builder.go) and is read-only afterward — the
// engine never mutates a finished Module.
package module

import (
	"fmt"

	"github.com/lauf-lang/lauf/internal/lauf/arena"
	"github.com/lauf-lang/lauf/internal/lauf/value"
)

// Signature is a function's declared arity.
type Signature struct {
	InputCount  uint8
	OutputCount uint8
}

func (s Signature) String() string { return fmt.Sprintf("%d->%d", s.InputCount, s.OutputCount) }

// Location is one entry of a function's debug-location side table,
// mapping an instruction index to the source position that produced
// it. Populated by whatever external frontend built the module;
// lauf's own Builder records the location last given to SetLocation,
// or the zero Location when the caller never supplied one.
type Location struct {
	File   string
	Line   int
	Column int
}

func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Function is immutable after the builder finishes it.
type Function struct {
	Name            string
	Signature       Signature
	MaxVStackSize   int // statically computed peak value-stack depth
	LocalStackSize  int // bytes of locals allocated per call
	Instructions    []value.Instruction
	DebugLocations  []Location // parallel to Instructions
	Index           int        // index into the owning module's function table
}

// LocationAt returns the debug location for instruction index ip, or
// the zero Location if none was recorded.
func (f *Function) LocationAt(ip int) Location {
	if ip < 0 || ip >= len(f.DebugLocations) {
		return Location{}
	}
	return f.DebugLocations[ip]
}

// GlobalSource distinguishes the three kinds of static data a module
// can declare.
type GlobalSource int

const (
	GlobalZero GlobalSource = iota
	GlobalConst
	GlobalMut
)

// Global describes one entry in the module's static-data segment: a
// zero-initialized, constant, or mutable block at a computed offset
// with computed alignment.
type Global struct {
	Source GlobalSource
	Offset int
	Size   int
	Align  int
	Init   []byte // nil for GlobalZero; len(Init) == Size for Const/Mut
}

// Module owns a name, an optional path, a literal pool, a function
// table, and a static-data segment — the concatenation of zero/const/
// mut globals at their computed offsets. Immutable after Builder
// calls Finish.
type Module struct {
	Name      string
	Path      string
	Literals  []value.Word
	Functions []*Function
	Globals   []Global
	StaticSize int

	arena    *arena.Arena
	finished bool
}

// IsFinished reports whether Builder.Finish has produced this module.
// A process refuses to execute a module for which this is false.
func (m *Module) IsFinished() bool { return m.finished }

// Arena returns the arena backing this module's metadata, retained
// for the lifetime of the module so an external embedder can account
// for its memory alongside program and VM arenas.
func (m *Module) Arena() *arena.Arena { return m.arena }

// FunctionByIndex returns the function at the given module-local
// index, or nil if out of range — used by call/call_indirect to
// resolve a target without panicking on malformed bytecode (the
// caller turns a nil result into a runtime panic).
func (m *Module) FunctionByIndex(idx int) *Function {
	if idx < 0 || idx >= len(m.Functions) {
		return nil
	}
	return m.Functions[idx]
}

// Literal returns the literal pool entry at idx, and whether idx was
// in range.
func (m *Module) Literal(idx uint32) (value.Word, bool) {
	if int(idx) >= len(m.Literals) {
		return 0, false
	}
	return m.Literals[idx], true
}
