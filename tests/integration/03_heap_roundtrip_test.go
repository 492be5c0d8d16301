package integration_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lauf-lang/lauf/internal/lauf/module"
	"github.com/lauf-lang/lauf/internal/lauf/runtime"
)

func callBuiltin(t *testing.T, b *module.Builder, library *runtime.Library, name string) {
	idx, ok := library.Index(name)
	require.True(t, ok, "missing built-in %q", name)
	bi, _ := library.At(idx)
	b.CallBuiltin(idx, module.BuiltinSignature{Name: bi.Name, InputCount: bi.InputCount, OutputCount: bi.OutputCount})
}

// Test03_HeapRoundtrip allocates 8 bytes, stores a value, loads it
// back, frees the allocation, and checks the round-tripped value.
func Test03_HeapRoundtrip(t *testing.T) {
	library := runtime.StandardLibrary()
	b := module.NewBuilder("heap_roundtrip", "tests/integration/03")

	b.StartFunction("main", module.Signature{OutputCount: 1})
	b.PushSmallZext(8)
	b.PushSmallZext(8)
	callBuiltin(t, b, library, "heap_alloc")

	b.PushSmallZext(99)
	b.Pick(1)
	callBuiltin(t, b, library, "store")

	b.Pick(0)
	callBuiltin(t, b, library, "load")

	b.Roll(1)
	callBuiltin(t, b, library, "heap_free")

	b.Return()
	entry := b.FinishFunction()

	mod, err := b.Finish()
	require.NoError(t, err)

	prog, err := module.NewProgram(mod, entry)
	require.NoError(t, err)

	p := runtime.NewProcess(prog, runtime.DefaultOptions())
	pnc := runtime.Execute(p, library)
	require.Nil(t, pnc, "unexpected panic: %v", pnc)
	require.Equal(t, []uint64{99}, p.RootOutputs())
}
