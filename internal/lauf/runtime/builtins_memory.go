package runtime

import (
	"encoding/binary"

	"github.com/lauf-lang/lauf/internal/lauf/memory"
	"github.com/lauf-lang/lauf/internal/lauf/value"
)

func popWord(p *Process) (value.Word, *Panic) {
	w, ok := p.currentFiber().vstack.Pop()
	if !ok {
		return 0, newPanic(PanicTypeConfusion, "memory built-in: value stack underflow")
	}
	return value.Word(w), nil
}

func popAddress(p *Process) (value.Address, *Panic) {
	w, panicked := popWord(p)
	if panicked != nil {
		return value.Address{}, panicked
	}
	addr := w.Address()
	if addr.IsNull() {
		return addr, newPanic(PanicInvalidAddress, "invalid address: null")
	}
	return addr, nil
}

func resolveErrorPanic(err memory.ResolveError) *Panic {
	return newPanic(PanicInvalidAddress, "%s", err)
}

// memoryBuiltins implements heap_alloc, heap_free, heap_leak, load,
// store, addr_add, and addr_distance (spec §4.E).
func memoryBuiltins() []Builtin {
	return []Builtin{
		{Name: "heap_alloc", InputCount: 2, OutputCount: 1, Func: func(p *Process) *Panic {
			size, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			align, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			addr := p.mem.AllocateHeap(int(size.Uint()), int(align.Uint()))
			if addr.IsNull() {
				return newPanic(PanicInvalidAddress, "out of memory")
			}
			return pushResult(p, uint64(value.FromAddress(addr)))
		}},
		{Name: "heap_free", InputCount: 1, OutputCount: 0, Func: func(p *Process) *Panic {
			addr, panicked := popAddress(p)
			if panicked != nil {
				return panicked
			}
			switch p.mem.Free(addr, memory.SourceHeap) {
			case memory.FreeOK:
				return nil
			case memory.FreeDoubleFree:
				return newPanic(PanicInvalidAddress, "invalid heap address")
			default:
				return newPanic(PanicInvalidAddress, "invalid heap address")
			}
		}},
		{Name: "heap_leak", InputCount: 1, OutputCount: 0, Func: func(p *Process) *Panic {
			addr, panicked := popAddress(p)
			if panicked != nil {
				return panicked
			}
			if p.mem.Leak(addr, memory.SourceHeap) != memory.FreeOK {
				return newPanic(PanicInvalidAddress, "invalid heap address")
			}
			return nil
		}},
		{Name: "load", InputCount: 1, OutputCount: 1, Func: func(p *Process) *Panic {
			addr, panicked := popAddress(p)
			if panicked != nil {
				return panicked
			}
			bytes, err := p.mem.Resolve(addr, 8, 8, memory.AccessRead)
			if err != memory.ResolveOK {
				return resolveErrorPanic(err)
			}
			return pushResult(p, binary.LittleEndian.Uint64(bytes))
		}},
		{Name: "store", InputCount: 2, OutputCount: 0, Func: func(p *Process) *Panic {
			addr, panicked := popAddress(p)
			if panicked != nil {
				return panicked
			}
			val, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			bytes, err := p.mem.Resolve(addr, 8, 8, memory.AccessReadWrite)
			if err != memory.ResolveOK {
				return resolveErrorPanic(err)
			}
			binary.LittleEndian.PutUint64(bytes, val.Uint())
			return nil
		}},
		{Name: "addr_add", InputCount: 2, OutputCount: 1, Flags: FlagNoProcess, Func: func(p *Process) *Panic {
			addr, panicked := popAddress(p)
			if panicked != nil {
				return panicked
			}
			delta, panicked := popWord(p)
			if panicked != nil {
				return panicked
			}
			return pushResult(p, uint64(value.FromAddress(addr.WithOffset(delta.Sint()))))
		}},
		{Name: "addr_distance", InputCount: 2, OutputCount: 1, Flags: FlagNoProcess, Func: func(p *Process) *Panic {
			a, panicked := popAddress(p)
			if panicked != nil {
				return panicked
			}
			b, panicked := popAddress(p)
			if panicked != nil {
				return panicked
			}
			if a.Allocation != b.Allocation || a.Generation != b.Generation {
				return newPanic(PanicInvalidAddress, "addr_distance: addresses belong to different allocations")
			}
			return pushResult(p, uint64(value.FromSint(int64(a.Offset)-int64(b.Offset))))
		}},
	}
}
