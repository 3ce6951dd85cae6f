package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gotaskqueue/taskqueue"
)

type fakeQueue struct {
	index int
	empty bool
}

func (q *fakeQueue) Empty() bool    { return q.empty }
func (q *fakeQueue) Front() taskqueue.Task { return taskqueue.Task{} }
func (q *fakeQueue) Index() int     { return q.index }

func views(queues ...*fakeQueue) []taskqueue.WorkQueueView {
	out := make([]taskqueue.WorkQueueView, len(queues))
	for i, q := range queues {
		out[i] = q
	}
	return out
}

func TestRoundRobinSkipsEmptyAndRemembersCursor(t *testing.T) {
	q0 := &fakeQueue{index: 0, empty: true}
	q1 := &fakeQueue{index: 1, empty: false}
	q2 := &fakeQueue{index: 2, empty: false}

	s := NewRoundRobin()
	s.RegisterWorkQueues(views(q0, q1, q2))

	idx, ok := s.Select()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = s.Select()
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	// Cursor wraps back to 0, which is still empty, then lands on 1 again.
	idx, ok = s.Select()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestRoundRobinRefusesWhenAllEmpty(t *testing.T) {
	s := NewRoundRobin()
	s.RegisterWorkQueues(views(&fakeQueue{index: 0, empty: true}))

	_, ok := s.Select()
	assert.False(t, ok)
}

func TestPriorityPrefersLowestIndex(t *testing.T) {
	q0 := &fakeQueue{index: 0, empty: true}
	q1 := &fakeQueue{index: 1, empty: false}
	q2 := &fakeQueue{index: 2, empty: false}

	s := NewPriority()
	s.RegisterWorkQueues(views(q0, q1, q2))

	idx, ok := s.Select()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	q1.empty = true
	idx, ok = s.Select()
	assert.True(t, ok)
	assert.Equal(t, 2, idx)
}

func TestScriptedPlaysBackScheduleThenFallsBack(t *testing.T) {
	q0 := &fakeQueue{index: 0, empty: false}
	q1 := &fakeQueue{index: 1, empty: false}

	s := NewScripted(1, 0, 1)
	s.RegisterWorkQueues(views(q0, q1))

	idx, ok := s.Select()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = s.Select()
	assert.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = s.Select()
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	// Script exhausted, falls back to first non-empty.
	idx, ok = s.Select()
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestScriptedStrictRefusesOnEmptyTarget(t *testing.T) {
	q0 := &fakeQueue{index: 0, empty: true}
	q1 := &fakeQueue{index: 1, empty: false}

	s := NewScripted(0)
	s.Strict = true
	s.RegisterWorkQueues(views(q0, q1))

	_, ok := s.Select()
	assert.False(t, ok)
}
