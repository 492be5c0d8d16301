package module

import "fmt"

// Program pairs a finished module with an entry function and owns a
// private copy of the module's static-data segment, so that multiple
// concurrent programs built from the same module can mutate their
// globals independently.
type Program struct {
	Module        *Module
	EntryFunction *Function
	StaticMemory  []byte
}

// NewProgram creates a program from a single finished module, copying
// its static-data segment.
func NewProgram(mod *Module, entry *Function) (*Program, error) {
	if !mod.IsFinished() {
		return nil, fmt.Errorf("module %q has not been finished by its builder", mod.Name)
	}
	if entry == nil {
		return nil, fmt.Errorf("program requires a non-nil entry function")
	}
	owned := mod.FunctionByIndex(entry.Index)
	if owned != entry {
		return nil, fmt.Errorf("entry function %q does not belong to module %q", entry.Name, mod.Name)
	}

	static := make([]byte, mod.StaticSize)
	for _, g := range mod.Globals {
		if g.Source != GlobalZero {
			copy(static[g.Offset:g.Offset+g.Size], g.Init)
		}
	}

	return &Program{Module: mod, EntryFunction: entry, StaticMemory: static}, nil
}
