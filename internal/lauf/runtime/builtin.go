package runtime

// BuiltinFlags mirrors the original's per-built-in flag set (spec
// §4.E, §6): no_panic promises the built-in never raises a Panic;
// no_process promises it never touches the Process (only the value
// stack), letting it run from a JIT-compiled context with no process
// pointer available; vm_only forbids exactly that context.
type BuiltinFlags uint8

const (
	FlagNone      BuiltinFlags = 0
	FlagNoPanic   BuiltinFlags = 1 << iota
	FlagNoProcess BuiltinFlags = 1 << iota
	FlagVMOnly    BuiltinFlags = 1 << iota
)

// BuiltinFunc is the built-in call ABI collapsed to what a Go
// function needs: the process (value stack, memory, fibers all reach
// through it) and the current fiber's value stack, which it reads and
// writes in place. It returns a Panic to signal the dispatch loop
// should begin unwinding instead of proceeding to the next
// instruction.
type BuiltinFunc func(p *Process) *Panic

// Builtin is one registered built-in: diagnostic name, declared
// arity, flags, and the function implementing it.
type Builtin struct {
	Name        string
	InputCount  uint8
	OutputCount uint8
	Flags       BuiltinFlags
	Func        BuiltinFunc
}

// Library is an ordered, immutable table of built-ins, addressed by
// call_builtin's payload index — matching the original's "linked list
// by construction order" registration model, flattened to a slice
// since a Go program assembles the whole table up front rather than
// registering libraries incrementally at link time.
type Library struct {
	builtins []Builtin
	byName   map[string]uint32
}

// NewLibrary packs builtins into an addressable table, recording each
// one's index for lookup by name (used by the module builder's
// caller, which needs an index to pass to CallBuiltin).
func NewLibrary(builtins ...Builtin) *Library {
	l := &Library{builtins: builtins, byName: make(map[string]uint32, len(builtins))}
	for i, b := range builtins {
		l.byName[b.Name] = uint32(i)
	}
	return l
}

// Index returns a builtin's call_builtin index by name.
func (l *Library) Index(name string) (uint32, bool) {
	idx, ok := l.byName[name]
	return idx, ok
}

// At returns the builtin at idx, or false if out of range.
func (l *Library) At(idx uint32) (Builtin, bool) {
	if int(idx) >= len(l.builtins) {
		return Builtin{}, false
	}
	return l.builtins[idx], true
}

// StandardLibrary returns the built-in table lauf ships: arithmetic,
// memory, fiber, step-limit, and test-assertion built-ins (spec §4.E,
// §4.F, §5, supplemented from original_source/include/lauf/lib).
func StandardLibrary() *Library {
	var all []Builtin
	all = append(all, arithmeticBuiltins()...)
	all = append(all, memoryBuiltins()...)
	all = append(all, fiberBuiltins()...)
	all = append(all, limitsBuiltins()...)
	all = append(all, testBuiltins()...)
	return NewLibrary(all...)
}
