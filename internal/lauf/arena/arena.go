// Package arena provides the bump-pointer block allocator that backs
// modules, programs, and VM-owned metadata. Nothing allocated from an
// Arena is ever freed individually; the whole arena is released at
// once when its owner is torn down. This mirrors the original's
// src/lauf/support/arena (and the page_allocator it sits on top of).
package arena

const defaultBlockSize = 64 * 1024

// Arena is a linked list of blocks served by a shared Pages
// allocator. Allocations are bump-pointer with per-request alignment,
// never individually freed.
type Arena struct {
	pages      *Pages
	blockSize  int
	head       *block
	liveBlocks int
}

type block struct {
	bytes []byte
	used  int
	next  *block
}

// New creates an arena drawing its blocks from the given page pool.
// A nil pool is legal and causes the arena to allocate its own blocks
// directly (useful for tests that don't care about page-cache reuse).
func New(pages *Pages) *Arena {
	if pages == nil {
		pages = NewPages()
	}
	return &Arena{pages: pages, blockSize: defaultBlockSize}
}

// Alloc returns size bytes aligned to align (which must be a power of
// two), bump-allocated from the current block, reaching into the page
// pool for a new block when the current one is exhausted.
func (a *Arena) Alloc(size, align int) []byte {
	if align <= 0 {
		align = 1
	}
	if a.head == nil {
		a.pushBlock(size, align)
	}
	for {
		start := alignUp(a.head.used, align)
		if start+size <= len(a.head.bytes) {
			a.head.used = start + size
			return a.head.bytes[start : start+size]
		}
		a.pushBlock(size, align)
	}
}

func (a *Arena) pushBlock(minSize, align int) {
	size := a.blockSize
	if minSize+align > size {
		size = minSize + align
	}
	b := &block{bytes: a.pages.Acquire(size)}
	b.next = a.head
	a.head = b
	a.liveBlocks++
}

// Release returns every block owned by this arena to the page pool's
// free list. The arena itself must not be used afterward.
func (a *Arena) Release() {
	for b := a.head; b != nil; {
		next := b.next
		a.pages.Release(b.bytes)
		b = next
	}
	a.head = nil
	a.liveBlocks = 0
}

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
