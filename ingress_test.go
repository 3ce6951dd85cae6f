package taskqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncomingBufferFIFOOrder(t *testing.T) {
	var b incomingBuffer
	for i := 0; i < 5; i++ {
		b.push(newTask(func() {}, uint32(i), 0, false, true))
	}
	assert.Equal(t, 5, b.len())

	for i := 0; i < 5; i++ {
		task, ok := b.pop()
		assert.True(t, ok)
		assert.Equal(t, uint32(i), task.Sequence())
	}
	_, ok := b.pop()
	assert.False(t, ok)
}

func TestIncomingBufferSpansMultipleChunks(t *testing.T) {
	var b incomingBuffer
	total := incomingChunkSize*2 + 7
	for i := 0; i < total; i++ {
		b.push(newTask(func() {}, uint32(i), 0, false, true))
	}
	assert.Equal(t, total, b.len())

	drained := b.drainInto(nil)
	assert.Len(t, drained, total)
	for i, task := range drained {
		assert.Equal(t, uint32(i), task.Sequence())
	}
	assert.Equal(t, 0, b.len())
}

func TestIncomingBufferDrainIntoAppendsToExisting(t *testing.T) {
	var b incomingBuffer
	b.push(newTask(func() {}, 1, 0, false, true))

	dst := []Task{newTask(func() {}, 0, 0, false, true)}
	out := b.drainInto(dst)
	assert.Len(t, out, 2)
	assert.Equal(t, uint32(0), out[0].Sequence())
	assert.Equal(t, uint32(1), out[1].Sequence())
}
