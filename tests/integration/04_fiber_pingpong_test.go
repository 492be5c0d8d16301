package integration_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lauf-lang/lauf/internal/lauf/module"
	"github.com/lauf-lang/lauf/internal/lauf/runtime"
	"github.com/lauf-lang/lauf/internal/lauf/value"
)

// Test04_FiberPingPong resumes a child fiber twice: the first resume
// sends 10 and receives the child's suspended reply of 11; the second
// resume sends 11 and receives the child's final return of 12.
func Test04_FiberPingPong(t *testing.T) {
	library := runtime.StandardLibrary()
	b := module.NewBuilder("fiber_pingpong", "tests/integration/04")

	sadd, ok := library.Index("sadd_panic")
	require.True(t, ok)

	b.StartFunction("child", module.Signature{InputCount: 1, OutputCount: 1})
	b.Argument(0)
	b.PushSmallZext(1)
	b.CallBuiltin(sadd, module.BuiltinSignature{Name: "sadd_panic", InputCount: 2, OutputCount: 1})
	callBuiltin(t, b, library, "fiber_suspend")
	b.PushSmallZext(1)
	b.CallBuiltin(sadd, module.BuiltinSignature{Name: "sadd_panic", InputCount: 2, OutputCount: 1})
	b.Return()
	child := b.FinishFunction()

	childAddr := value.FromFunctionAddress(value.FunctionAddress{
		Index:       uint16(child.Index),
		InputCount:  child.Signature.InputCount,
		OutputCount: child.Signature.OutputCount,
	})
	litIdx := b.DeclareLiteral(childAddr)

	b.StartFunction("main", module.Signature{OutputCount: 1})
	b.PushLiteral(litIdx)
	callBuiltin(t, b, library, "fiber_create")
	b.Pick(0)
	b.PushSmallZext(10)
	callBuiltin(t, b, library, "fiber_resume")
	callBuiltin(t, b, library, "fiber_resume")
	b.Return()
	entry := b.FinishFunction()

	mod, err := b.Finish()
	require.NoError(t, err)

	prog, err := module.NewProgram(mod, entry)
	require.NoError(t, err)

	p := runtime.NewProcess(prog, runtime.DefaultOptions())
	pnc := runtime.Execute(p, library)
	require.Nil(t, pnc, "unexpected panic: %v", pnc)
	require.Equal(t, []uint64{12}, p.RootOutputs())
}
