package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lauf-lang/lauf/internal/lauf/module"
)

func TestMemory_HeapAllocStoreLoadFree(t *testing.T) {
	prog, library := buildEntry(t, func(b *module.Builder, library *Library) {
		alloc, ok := library.Index("heap_alloc")
		require.True(t, ok)
		store, ok := library.Index("store")
		require.True(t, ok)
		load, ok := library.Index("load")
		require.True(t, ok)
		free, ok := library.Index("heap_free")
		require.True(t, ok)

		b.StartFunction("main", module.Signature{OutputCount: 1})
		b.PushSmallZext(8)
		b.PushSmallZext(8)
		b.CallBuiltin(alloc, module.BuiltinSignature{Name: "heap_alloc", InputCount: 2, OutputCount: 1})
		b.PushSmallZext(123)
		b.Pick(1)
		b.CallBuiltin(store, module.BuiltinSignature{Name: "store", InputCount: 2, OutputCount: 0})
		b.Pick(0)
		b.CallBuiltin(load, module.BuiltinSignature{Name: "load", InputCount: 1, OutputCount: 1})
		b.Roll(1)
		b.CallBuiltin(free, module.BuiltinSignature{Name: "heap_free", InputCount: 1, OutputCount: 0})
		b.Return()
		b.FinishFunction()
	})
	p := NewProcess(prog, DefaultOptions())
	pnc := Execute(p, library)
	require.Nil(t, pnc, "unexpected panic: %v", pnc)
	require.Equal(t, []uint64{123}, p.RootOutputs())
	require.Zero(t, p.Memory().LiveBytes())
}

func TestMemory_DoubleFreePanics(t *testing.T) {
	prog, library := buildEntry(t, func(b *module.Builder, library *Library) {
		alloc, ok := library.Index("heap_alloc")
		require.True(t, ok)
		free, ok := library.Index("heap_free")
		require.True(t, ok)

		b.StartFunction("main", module.Signature{OutputCount: 0})
		b.PushSmallZext(8)
		b.PushSmallZext(8)
		b.CallBuiltin(alloc, module.BuiltinSignature{Name: "heap_alloc", InputCount: 2, OutputCount: 1})
		b.Pick(0)
		b.CallBuiltin(free, module.BuiltinSignature{Name: "heap_free", InputCount: 1, OutputCount: 0})
		b.CallBuiltin(free, module.BuiltinSignature{Name: "heap_free", InputCount: 1, OutputCount: 0})
		b.Return()
		b.FinishFunction()
	})
	p := NewProcess(prog, DefaultOptions())
	pnc := Execute(p, library)
	require.NotNil(t, pnc)
	require.Equal(t, PanicInvalidAddress, pnc.Code)
}

func TestMemory_AddrAddMovesWithinAllocation(t *testing.T) {
	prog, library := buildEntry(t, func(b *module.Builder, library *Library) {
		alloc, ok := library.Index("heap_alloc")
		require.True(t, ok)
		addrAdd, ok := library.Index("addr_add")
		require.True(t, ok)
		addrDistance, ok := library.Index("addr_distance")
		require.True(t, ok)

		b.StartFunction("main", module.Signature{OutputCount: 1})
		b.PushSmallZext(8)  // alignment
		b.PushSmallZext(16) // size
		b.CallBuiltin(alloc, module.BuiltinSignature{Name: "heap_alloc", InputCount: 2, OutputCount: 1})
		// stack: [base]
		b.PushSmallZext(8) // delta, pushed below the address addr_add expects on top
		b.Pick(1)          // duplicate base onto the top, above the delta
		b.CallBuiltin(addrAdd, module.BuiltinSignature{Name: "addr_add", InputCount: 2, OutputCount: 1})
		// stack: [base, base+8]
		b.CallBuiltin(addrDistance, module.BuiltinSignature{Name: "addr_distance", InputCount: 2, OutputCount: 1})
		b.Return()
		b.FinishFunction()
	})
	p := NewProcess(prog, DefaultOptions())
	pnc := Execute(p, library)
	require.Nil(t, pnc, "unexpected panic: %v", pnc)
	require.Equal(t, []uint64{8}, p.RootOutputs())
}
