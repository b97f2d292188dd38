package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStack_Push(t *testing.T) {
	assert := assert.New(t)

	s := &Stack{}
	assert.True(s.Empty())
	assert.False(s.Full())

	assert.NoError(s.Push(0x0234))
	assert.False(s.Empty())
	assert.Equal(1, s.Pointer)
	assert.Equal(uint16(0x0234), s.Data[0])
}

func TestStack_Pop(t *testing.T) {
	assert := assert.New(t)

	s := &Stack{}
	assert.NoError(s.Push(0x0202))
	assert.NoError(s.Push(0x0E40))

	val, err := s.Pop()
	assert.NoError(err)
	assert.Equal(uint16(0x0E40), val)
	assert.Equal(1, s.Pointer)

	val, err = s.Pop()
	assert.NoError(err)
	assert.Equal(uint16(0x0202), val)
	assert.True(s.Empty())
}

func TestStack_Pop_Empty(t *testing.T) {
	assert := assert.New(t)

	s := &Stack{}
	val, err := s.Pop()
	assert.ErrorIs(err, ErrStackUnderflow)
	assert.Equal(uint16(0), val)
	assert.Equal(0, s.Pointer)
}

func TestStack_Peek(t *testing.T) {
	assert := assert.New(t)

	s := &Stack{}
	assert.NoError(s.Push(0x0300))
	assert.NoError(s.Push(0x0400))

	val, err := s.Peek()
	assert.NoError(err)
	assert.Equal(uint16(0x0400), val)
	assert.Equal(2, s.Pointer)
}

func TestStack_Overflow(t *testing.T) {
	assert := assert.New(t)

	s := &Stack{}
	for n := range STACK_LIMIT {
		assert.NoError(s.Push(uint16(n)))
	}
	assert.True(s.Full())

	err := s.Push(0xFFF)
	assert.ErrorIs(err, ErrStackOverflow)
	assert.Equal(STACK_LIMIT, s.Pointer)

	val, err := s.Peek()
	assert.NoError(err)
	assert.Equal(uint16(STACK_LIMIT-1), val)
}

func TestStack_Reset(t *testing.T) {
	assert := assert.New(t)

	s := &Stack{}
	assert.NoError(s.Push(0x0300))
	s.Reset()
	assert.True(s.Empty())
	assert.Equal(uint16(0), s.Data[0])
}
