package runtime

import (
	"github.com/lauf-lang/lauf/internal/lauf/module"
	"github.com/lauf-lang/lauf/internal/lauf/stack"
)

// FiberState is a fiber's position in the cooperative scheduler (spec
// §4.F).
type FiberState int

const (
	FiberReady FiberState = iota
	FiberRunning
	FiberSuspended
	FiberDone
)

func (s FiberState) String() string {
	switch s {
	case FiberReady:
		return "ready"
	case FiberRunning:
		return "running"
	case FiberSuspended:
		return "suspended"
	case FiberDone:
		return "done"
	default:
		return "unknown"
	}
}

// FiberHandle is the bytecode-visible (index, generation) pair
// identifying a fiber. Like a runtime address, a stale handle is
// rejected by generation mismatch rather than aliasing a reused slot.
type FiberHandle struct {
	Index      uint32
	Generation uint8
}

var nullFiberHandle = FiberHandle{Index: ^uint32(0), Generation: 0xFF}

// IsNull reports whether h is the reserved null handle.
func (h FiberHandle) IsNull() bool { return h == nullFiberHandle }

// yieldKind distinguishes why a fiber's goroutine handed control back
// to whoever resumed or transferred into it.
type yieldKind int

const (
	yieldSuspended yieldKind = iota
	yieldDone
	yieldPanicked
)

// fiberYield is what a fiber's goroutine sends on its yield channel
// each time it hands control back.
type fiberYield struct {
	kind   yieldKind
	values []uint64
	panic  *Panic
}

// fiber owns one cooperatively-scheduled thread of execution: its own
// value stack, call stack, and scheduling state. Each fiber that has
// ever run backs onto exactly one goroutine, started lazily on its
// first resume; resumeCh/yieldCh form a synchronous rendezvous that
// guarantees only one fiber's goroutine is ever unblocked at a time,
// which is what makes this a cooperative scheduler rather than real
// concurrency — see scheduler.go.
type fiber struct {
	state      FiberState
	generation uint8
	parent     FiberHandle
	hasParent  bool
	reclaimed  bool // true once DestroyFiber has reclaimed this slot, making it eligible for CreateFiber reuse

	vstack *stack.Value
	cstack *stack.Call

	entry *module.Function

	started  bool
	resumeCh chan resumeMsg
	yieldCh  chan fiberYield
}

// resumeMsg carries either a normal resume (inputs to push) or a
// forced-destroy request into a blocked fiber's goroutine.
type resumeMsg struct {
	inputs  []uint64
	destroy bool
}

// approxFrameBytes estimates a call frame's footprint for converting
// the VM's byte-denominated max_cstack_size option into a frame count;
// the frame struct itself isn't laid out byte-for-byte like the
// original's C struct, so this is a budget, not an exact accounting.
const approxFrameBytes = 64

func newFiber(entry *module.Function, initialVElems, maxVElems, maxCBytes int) *fiber {
	maxFrames := 0
	if maxCBytes > 0 {
		maxFrames = maxCBytes / approxFrameBytes
	}
	return &fiber{
		state:    FiberReady,
		entry:    entry,
		vstack:   stack.NewValue(initialVElems, maxVElems),
		cstack:   stack.NewCall(maxFrames),
		resumeCh: make(chan resumeMsg),
		yieldCh:  make(chan fiberYield),
	}
}
