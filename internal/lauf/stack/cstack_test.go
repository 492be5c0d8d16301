package stack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallPushPopOrder(t *testing.T) {
	c := NewCall(0)
	f1, err := c.Push(Frame{FunctionIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, uint16(1), f1.FunctionIndex)

	_, err = c.Push(Frame{FunctionIndex: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	top := c.Top()
	require.NotNil(t, top)
	assert.Equal(t, uint16(2), top.FunctionIndex)

	f, ok := c.Pop()
	require.True(t, ok)
	assert.Equal(t, uint16(2), f.FunctionIndex)
	f, ok = c.Pop()
	require.True(t, ok)
	assert.Equal(t, uint16(1), f.FunctionIndex)

	_, ok = c.Pop()
	assert.False(t, ok)
}

func TestCallOverflowsAtMaxFrames(t *testing.T) {
	c := NewCall(2)
	_, err := c.Push(Frame{})
	require.NoError(t, err)
	_, err = c.Push(Frame{})
	require.NoError(t, err)
	_, err = c.Push(Frame{})
	require.Error(t, err)
	var overflow *ErrOverflow
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, "call", overflow.Kind)
}

func TestCallGrowsAcrossSegments(t *testing.T) {
	c := NewCall(0)
	c.segSize = 4 // force multiple segments within the test
	for i := uint16(0); i < 10; i++ {
		_, err := c.Push(Frame{FunctionIndex: i})
		require.NoError(t, err)
	}
	assert.Equal(t, 10, c.Len())
	for i := uint16(0); i < 10; i++ {
		f := c.At(int(i))
		require.NotNil(t, f)
		assert.Equal(t, i, f.FunctionIndex)
	}
}

func TestCallFramePointerStableAcrossPush(t *testing.T) {
	c := NewCall(0)
	c.segSize = 2
	f0, err := c.Push(Frame{FunctionIndex: 100})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := c.Push(Frame{FunctionIndex: uint16(i)})
		require.NoError(t, err)
	}
	assert.Equal(t, uint16(100), f0.FunctionIndex)
}

func TestCallTruncateToUnwindsFrames(t *testing.T) {
	c := NewCall(0)
	_, _ = c.Push(Frame{FunctionIndex: 1})
	_, _ = c.Push(Frame{FunctionIndex: 2})
	_, _ = c.Push(Frame{FunctionIndex: 3})
	require.True(t, c.TruncateTo(1))
	assert.Equal(t, 1, c.Len())
	top := c.Top()
	require.NotNil(t, top)
	assert.Equal(t, uint16(1), top.FunctionIndex)
}

func TestCallFramesReturnsBottomFirst(t *testing.T) {
	c := NewCall(0)
	_, _ = c.Push(Frame{FunctionIndex: 1})
	_, _ = c.Push(Frame{FunctionIndex: 2})
	frames := c.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, uint16(1), frames[0].FunctionIndex)
	assert.Equal(t, uint16(2), frames[1].FunctionIndex)
}
