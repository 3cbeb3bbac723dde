// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package terminal

// DefaultKeyQueueCapacity is the number of pending key presses kept
const DefaultKeyQueueCapacity = 16

// keyQueue is a bounded FIFO of pressed keys
type keyQueue struct {
	keys     []Key
	capacity int
}

func newKeyQueue(capacity int) *keyQueue {
	if capacity <= 0 {
		capacity = DefaultKeyQueueCapacity
	}
	return &keyQueue{keys: make([]Key, 0, capacity), capacity: capacity}
}

// push appends a key, reporting false when the queue is full
func (q *keyQueue) push(k Key) bool {
	if len(q.keys) >= q.capacity {
		return false
	}
	q.keys = append(q.keys, k)
	return true
}

// pop removes the oldest key
func (q *keyQueue) pop() (Key, bool) {
	if len(q.keys) == 0 {
		return 0, false
	}
	k := q.keys[0]
	copy(q.keys, q.keys[1:])
	q.keys = q.keys[:len(q.keys)-1]
	return k, true
}

func (q *keyQueue) len() int {
	return len(q.keys)
}

func (q *keyQueue) clear() {
	q.keys = q.keys[:0]
}
