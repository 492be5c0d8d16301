package lauf

import "github.com/lauf-lang/lauf/internal/lauf/module"

// Builder assembles a Module instruction by instruction, performing
// the checks that let the engine trust the result without re-deriving
// them at execution time (spec §4.B). It is the only legal way to
// obtain a Module in this package — lauf has no bytecode loader, only
// this in-process assembler.
type Builder = module.Builder

// NewBuilder starts assembling a module with the given diagnostic
// name and path.
func NewBuilder(name, path string) *Builder { return module.NewBuilder(name, path) }
