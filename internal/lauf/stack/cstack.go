package stack

import "github.com/lauf-lang/lauf/internal/lauf/value"

// Frame is one activation record on the call stack: which function is
// executing, its own instruction pointer, and the baseline the value
// stack must be restored to on return (the callee's inputs have
// already been consumed from it by the call site).
type Frame struct {
	FunctionIndex uint16
	IP            uint32 // this frame's own instruction pointer
	VStackBase    int    // value-stack depth, measured from the bottom, when this frame was entered
	LocalAddr     value.Address
	LocalsSize    int
	Args          []uint64 // the caller's top input_count values, removed from the shared value stack at call time
}

// Call is a segmented buffer of Frame, growing by appending new
// segments rather than reallocating and copying the whole history —
// call depth is bounded by maxFrames, so a
// single growable slice would work too, but segments keep a live
// *Frame (used while a frame is the current one) stable across growth,
// matching the original's frame-pointer-stability requirement.
type Call struct {
	segments  [][]Frame
	segSize   int
	len       int
	maxFrames int
}

const defaultCallSegSize = 64

// NewCall creates an empty call stack with the given hard depth
// bound.
func NewCall(maxFrames int) *Call {
	return &Call{segSize: defaultCallSegSize, maxFrames: maxFrames}
}

// Len returns the current call depth.
func (c *Call) Len() int { return c.len }

// Push appends a new frame and returns a pointer to it, stable until
// the matching Pop.
func (c *Call) Push(f Frame) (*Frame, error) {
	if c.maxFrames != 0 && c.len >= c.maxFrames {
		return nil, &ErrOverflow{Kind: "call", Max: c.maxFrames}
	}
	segIdx, offIdx := c.len/c.segSize, c.len%c.segSize
	if segIdx == len(c.segments) {
		c.segments = append(c.segments, make([]Frame, c.segSize))
	}
	c.segments[segIdx][offIdx] = f
	c.len++
	return &c.segments[segIdx][offIdx], nil
}

// Pop removes and returns the top frame.
func (c *Call) Pop() (Frame, bool) {
	if c.len == 0 {
		return Frame{}, false
	}
	c.len--
	segIdx, offIdx := c.len/c.segSize, c.len%c.segSize
	return c.segments[segIdx][offIdx], true
}

// Top returns a pointer to the current top frame, or nil if the call
// stack is empty.
func (c *Call) Top() *Frame {
	if c.len == 0 {
		return nil
	}
	segIdx, offIdx := (c.len-1)/c.segSize, (c.len-1)%c.segSize
	return &c.segments[segIdx][offIdx]
}

// At returns a pointer to the frame at depth n counted from the
// bottom (0 = the outermost frame), or nil if out of range. Used when
// unwinding to a catch point.
func (c *Call) At(n int) *Frame {
	if n < 0 || n >= c.len {
		return nil
	}
	segIdx, offIdx := n/c.segSize, n%c.segSize
	return &c.segments[segIdx][offIdx]
}

// TruncateTo discards frames above depth n, used when a caught panic
// unwinds the call stack back to its catch point.
func (c *Call) TruncateTo(n int) bool {
	if n < 0 || n > c.len {
		return false
	}
	c.len = n
	return true
}

// Frames returns the live frames, bottom-first, for stacktrace
// capture. It does not mutate the call stack.
func (c *Call) Frames() []Frame {
	out := make([]Frame, c.len)
	for i := 0; i < c.len; i++ {
		out[i] = *c.At(i)
	}
	return out
}
