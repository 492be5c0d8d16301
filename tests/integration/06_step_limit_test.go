package integration_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lauf-lang/lauf/internal/lauf/module"
	"github.com/lauf-lang/lauf/internal/lauf/runtime"
)

// Test06_StepLimitExceeded runs a process with a step budget of 2 and
// charges it up to three times, expecting the second charge, which
// exhausts the budget, to panic.
func Test06_StepLimitExceeded(t *testing.T) {
	library := runtime.StandardLibrary()
	b := module.NewBuilder("step_limit", "tests/integration/06")

	idx, ok := library.Index("limits_step")
	require.True(t, ok)
	bi, _ := library.At(idx)
	sig := module.BuiltinSignature{Name: bi.Name, InputCount: bi.InputCount, OutputCount: bi.OutputCount}

	b.StartFunction("main", module.Signature{OutputCount: 0})
	b.CallBuiltin(idx, sig)
	b.CallBuiltin(idx, sig)
	b.CallBuiltin(idx, sig)
	b.Return()
	entry := b.FinishFunction()

	mod, err := b.Finish()
	require.NoError(t, err)

	prog, err := module.NewProgram(mod, entry)
	require.NoError(t, err)

	opts := runtime.DefaultOptions()
	opts.StepLimit = 2
	p := runtime.NewProcess(prog, opts)
	pnc := runtime.Execute(p, library)
	require.NotNil(t, pnc)
	require.Equal(t, runtime.PanicStepLimitExceeded, pnc.Code)
}
