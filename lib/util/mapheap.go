// Package util
//
// This file provides a keyed priority queue used to track activity deadlines.
//
// The implementation combines a binary heap with a hash map to provide both
// efficient priority-based operations and key-based access. Every item carries
// a value of type V, so callers can store the tracked object itself next to its
// priority instead of keeping a second lookup table.
//
// Key advantages of this implementation:
//
// 1. Time Complexity:
//   - O(log n) for priority operations (Push, Pop, Update)
//   - O(1) for key-based lookups and existence checks
//   - O(log n) for key-based removal
//
// 2. Timeout Tracking Benefits:
//   - Efficiently identifies the oldest items (the first candidates for a timeout)
//   - Supports direct removal when an item becomes active again
//   - Can update priorities when items are touched (LRU-like behaviour)
//
// 3. Concurrency Considerations:
//   - Note: This implementation is not thread-safe
//   - It is meant to be owned by a single goroutine (e.g. an event loop)
//
// Example usage:
//
//	// Create a new queue
//	q := NewMapHeap[string]()
//
//	// Add items with ids and timestamps
//	q.AddItem(1001, timestamp1, "a")
//	q.AddItem(1002, timestamp2, "b")
//
//	// Get the oldest item
//	oldest, exists := q.Peek()
//
//	// Remove a specific item
//	q.RemoveByKey(1001)
//
//	// Process items in priority order
//	for q.Len() > 0 {
//	    it, _ := q.PopItem()
//	    // Process it.Value
//	}
package util

import (
	"container/heap"
	"strconv"
)

// Item represents an item in the queue with a uint64 key for identification,
// a uint64 priority and an arbitrary value
type Item[V any] struct {
	Key      uint64 // Unique identifier for the item
	Priority uint64 // Priority used for ordering in the heap
	Value    V      // Payload stored with the item
	index    int    // Index in the heap, maintained by heap package
}

func (i *Item[V]) String() string {
	return "{Key: " + strconv.FormatUint(i.Key, 10) + ", Priority: " + strconv.FormatUint(i.Priority, 10) + "}"
}

// MapHeap implements a min priority queue with both heap operations and key-based access
type MapHeap[V any] struct {
	items    []*Item[V]          // The actual heap slice
	itemsMap map[uint64]*Item[V] // Map for O(1) access by key
}

// NewMapHeap creates a new empty queue
func NewMapHeap[V any]() *MapHeap[V] {
	return &MapHeap[V]{
		items:    make([]*Item[V], 0),
		itemsMap: make(map[uint64]*Item[V]),
	}
}

// Len returns the number of items in the queue (part of heap.Interface)
func (mh *MapHeap[V]) Len() int { return len(mh.items) }

// Less compares items by priority (part of heap.Interface)
// The lowest priority (e.g. the oldest timestamp) comes first
func (mh *MapHeap[V]) Less(i, j int) bool {
	return mh.items[i].Priority < mh.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (mh *MapHeap[V]) Swap(i, j int) {
	mh.items[i], mh.items[j] = mh.items[j], mh.items[i]
	mh.items[i].index = i
	mh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (mh *MapHeap[V]) Push(x interface{}) {
	n := len(mh.items)
	it := x.(*Item[V])
	it.index = n
	mh.items = append(mh.items, it)
	mh.itemsMap[it.Key] = it
}

// Pop removes and returns the minimum item (part of heap.Interface)
func (mh *MapHeap[V]) Pop() interface{} {
	old := mh.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1  // For safety
	mh.items = old[:n-1]
	delete(mh.itemsMap, it.Key)
	return it
}

// AddItem adds a new item to the queue or updates the priority and value of an existing one
func (mh *MapHeap[V]) AddItem(key, priority uint64, value V) {
	// Check if item already exists
	if it, exists := mh.itemsMap[key]; exists {
		// Update priority and fix heap
		it.Priority = priority
		it.Value = value
		heap.Fix(mh, it.index)
		return
	}

	heap.Push(mh, &Item[V]{
		Key:      key,
		Priority: priority,
		Value:    value,
	})
}

// PopItem removes and returns the item with the lowest priority
func (mh *MapHeap[V]) PopItem() (*Item[V], bool) {
	if len(mh.items) == 0 {
		return nil, false
	}
	return heap.Pop(mh).(*Item[V]), true
}

// RemoveByKey removes an item by its key and returns its priority
func (mh *MapHeap[V]) RemoveByKey(key uint64) (uint64, bool) {
	it, exists := mh.itemsMap[key]
	if !exists {
		return 0, false
	}

	// Remove from heap
	heap.Remove(mh, it.index)
	return it.Priority, true
}

// Peek returns the minimum priority item without removing it
func (mh *MapHeap[V]) Peek() (*Item[V], bool) {
	if len(mh.items) == 0 {
		return nil, false
	}
	return mh.items[0], true
}

// Contains checks if a key exists in the queue
func (mh *MapHeap[V]) Contains(key uint64) bool {
	_, exists := mh.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (mh *MapHeap[V]) GetByKey(key uint64) (*Item[V], bool) {
	it, exists := mh.itemsMap[key]
	return it, exists
}
