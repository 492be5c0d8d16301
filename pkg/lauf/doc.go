// Package lauf is the public API for a stack-based bytecode virtual
// machine with cooperative multi-fiber scheduling and a generational,
// address-based memory model.
//
// # Building a program
//
//	b := lauf.NewBuilder("main", "main.lauf")
//	b.StartFunction("main", lauf.Signature{OutputCount: 1})
//	b.PushSmallZext(40)
//	b.PushSmallZext(2)
//	idx, _ := lauf.StandardLibrary().Index("sadd_panic")
//	b.CallBuiltin(idx, lauf.BuiltinSignature{Name: "sadd_panic", InputCount: 2, OutputCount: 1})
//	b.Return()
//	entry := b.FinishFunction()
//	mod, err := b.Finish()
//	if err != nil {
//		log.Fatal(err)
//	}
//	prog, err := lauf.NewProgram(mod, entry)
//
// # Running it
//
//	vm := lauf.NewVM(nil, lauf.DefaultOptions())
//	result, err := vm.Execute(prog)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if result.Panic != nil {
//		log.Fatal(result.Panic)
//	}
//	fmt.Println(result.Outputs) // [42]
//
// # Architecture
//
// - pkg/lauf/: public API (this package)
// - internal/lauf/value: the value word and packed address formats
// - internal/lauf/module: bytecode assembly and verification
// - internal/lauf/memory: the generational allocation table
// - internal/lauf/stack: the value stack and segmented call stack
// - internal/lauf/runtime: the dispatch loop, fiber scheduler, and
//   built-in library
// - internal/lauf/jit: the code cache and executable-page pool; it
//   emits no native code, so every function runs in the interpreter
package lauf
