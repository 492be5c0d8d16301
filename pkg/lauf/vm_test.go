package lauf_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lauf-lang/lauf/pkg/lauf"
)

func TestVM_ExecuteReturnsDeclaredOutputs(t *testing.T) {
	library := lauf.StandardLibrary()
	b := lauf.NewBuilder("trivial_add", "pkg/lauf_test")

	b.StartFunction("main", lauf.Signature{OutputCount: 1})
	b.PushSmallZext(40)
	b.PushSmallZext(2)
	idx, ok := library.Index("sadd_panic")
	require.True(t, ok)
	b.CallBuiltin(idx, lauf.BuiltinSignature{Name: "sadd_panic", InputCount: 2, OutputCount: 1})
	b.Return()
	entry := b.FinishFunction()

	mod, err := b.Finish()
	require.NoError(t, err)
	prog, err := lauf.NewProgram(mod, entry)
	require.NoError(t, err)

	vm := lauf.NewVM(library, lauf.DefaultOptions())
	result, err := vm.Execute(prog)
	require.NoError(t, err)
	require.Nil(t, result.Panic)
	require.Equal(t, []uint64{42}, result.Outputs)
}

func TestVM_ExecuteReportsPanic(t *testing.T) {
	library := lauf.StandardLibrary()
	b := lauf.NewBuilder("always_panics", "pkg/lauf_test")

	b.StartFunction("main", lauf.Signature{OutputCount: 0})
	b.Panic()
	entry := b.FinishFunction()

	mod, err := b.Finish()
	require.NoError(t, err)
	prog, err := lauf.NewProgram(mod, entry)
	require.NoError(t, err)

	vm := lauf.NewVM(library, lauf.DefaultOptions())
	result, err := vm.Execute(prog)
	require.NoError(t, err)
	require.NotNil(t, result.Panic)
	require.Equal(t, lauf.PanicExplicit, result.Panic.Code)
}

func TestVM_ExecuteRejectsNilProgram(t *testing.T) {
	vm := lauf.NewVM(nil, lauf.DefaultOptions())
	result, err := vm.Execute(nil)
	require.Error(t, err)
	require.Nil(t, result)
}
