// Package jit manages the infrastructure an ahead-of-time native
// translator would need — executable page allocation and a
// content-addressed code cache — without actually emitting machine
// code. Translating lauf bytecode to native instructions is
// architecture-specific codegen work that is out of scope here (spec
// §1 non-goals); what lives in this package is everything around that
// boundary, so a real backend could be dropped in later without
// touching the dispatch loop or the module format.
package jit

import (
	"fmt"
	"sync"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sys/unix"

	"github.com/lauf-lang/lauf/internal/lauf/module"
)

// pageSize is the allocation granularity for compiled code regions.
// Real page sizes vary by platform; 4KiB is the safe common
// denominator and every Pool.Allocate call rounds up to it.
const pageSize = 4096

// CodeKey identifies a function by name, signature and bytecode
// content, independent of where it lives in a module's function table
// — two same-named functions with identical signatures and
// instructions hash identically and can share a cache entry.
type CodeKey [32]byte

// KeyOf hashes a function's name, signature and instruction stream
// with SHA3-256. SHA3 rather than the FNV/CRC hashing a simple dedup table
// would use because a code cache doubles as a trust boundary once
// native code is involved: a collision here would let one function's
// machine code stand in for another's.
func KeyOf(fn *module.Function) CodeKey {
	h := sha3.New256()
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00", fn.Name, fn.Signature.InputCount, fn.Signature.OutputCount)
	for _, instr := range fn.Instructions {
		var buf [4]byte
		buf[0] = byte(instr)
		buf[1] = byte(instr >> 8)
		buf[2] = byte(instr >> 16)
		buf[3] = byte(instr >> 24)
		h.Write(buf[:])
	}
	var key CodeKey
	copy(key[:], h.Sum(nil))
	return key
}

// Compiled is a native translation of one function, backed by an
// executable memory mapping. Available is always false in this
// build — see Translate.
type Compiled struct {
	Key       CodeKey
	page      mmap.MMap
	Available bool
}

// Pool hands out page-aligned, initially read-write mappings and
// flips them to read-execute once code has been written into them,
// matching the W^X discipline any native-code cache needs: a page is
// never writable and executable at the same time.
type Pool struct {
	mu    sync.Mutex
	pages []mmap.MMap
}

// NewPool creates an empty page pool.
func NewPool() *Pool { return &Pool{} }

// Allocate reserves a read-write anonymous mapping of at least size
// bytes, rounded up to pageSize.
func (p *Pool) Allocate(size int) (mmap.MMap, error) {
	if size <= 0 {
		size = pageSize
	}
	rounded := (size + pageSize - 1) &^ (pageSize - 1)
	m, err := mmap.MapRegion(nil, rounded, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, fmt.Errorf("jit: allocate %d bytes: %w", rounded, err)
	}
	p.mu.Lock()
	p.pages = append(p.pages, m)
	p.mu.Unlock()
	return m, nil
}

// MakeExecutable flips a previously allocated page from read-write to
// read-execute. Callers must have finished writing to m before
// calling this; the kernel refuses W and X on the same page at once
// on platforms that enforce W^X.
func MakeExecutable(m mmap.MMap) error {
	if len(m) == 0 {
		return nil
	}
	return unix.Mprotect(m, unix.PROT_READ|unix.PROT_EXEC)
}

// Release unmaps every page this pool has handed out.
func (p *Pool) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, m := range p.pages {
		if err := m.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.pages = nil
	return firstErr
}

// Cache memoizes Translate results by CodeKey so the same function
// body is never compiled twice, even if it's reachable from multiple
// call sites or multiple fibers.
type Cache struct {
	mu      sync.RWMutex
	entries map[CodeKey]*Compiled
	pool    *Pool
}

// NewCache creates an empty cache backed by pool.
func NewCache(pool *Pool) *Cache {
	if pool == nil {
		pool = NewPool()
	}
	return &Cache{entries: make(map[CodeKey]*Compiled), pool: pool}
}

// Translate looks up or attempts to compile fn to native code. In
// this build it always returns a Panic-free error: codegen isn't
// implemented, so every call falls back to the bytecode dispatch loop
// (runtime.runFrame), which is correct for every function, just
// slower for hot ones.
func (c *Cache) Translate(fn *module.Function) (*Compiled, error) {
	key := KeyOf(fn)

	c.mu.RLock()
	if existing, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return existing, nil
	}
	c.mu.RUnlock()

	return nil, fmt.Errorf("jit: native translation for %q is not available; use the dispatch loop", fn.Name)
}
