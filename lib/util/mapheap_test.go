package util

import (
	"sort"
	"testing"
)

// TestNewMapHeap tests the creation of a new MapHeap
func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap[string]()

	if mh == nil {
		t.Fatal("NewMapHeap() returned nil")
	}

	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}

	if len(mh.itemsMap) != 0 {
		t.Errorf("New heap's map should be empty, but has %d items", len(mh.itemsMap))
	}
}

// TestAddItem tests adding items to the heap
func TestAddItem(t *testing.T) {
	mh := NewMapHeap[string]()

	mh.AddItem(1, 100, "a")
	mh.AddItem(2, 200, "b")
	mh.AddItem(3, 50, "c")

	if mh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", mh.Len())
	}

	for _, key := range []uint64{1, 2, 3} {
		if !mh.Contains(key) {
			t.Errorf("Heap should contain key %d", key)
		}
	}

	// min heap, so the lowest priority should be first
	it, exists := mh.Peek()
	if !exists {
		t.Fatal("Peek() should return an item")
	}

	if it.Key != 3 || it.Priority != 50 || it.Value != "c" {
		t.Errorf("Expected min item to be (3,50,c), got (%d,%d,%s)", it.Key, it.Priority, it.Value)
	}
}

// TestUpdateItem tests updating existing items
func TestUpdateItem(t *testing.T) {
	mh := NewMapHeap[int]()

	mh.AddItem(1, 100, 10)
	mh.AddItem(2, 200, 20)

	// Increase priority of item 1 and replace its value
	mh.AddItem(1, 300, 11)

	it, exists := mh.GetByKey(1)
	if !exists {
		t.Fatal("Item with key 1 should exist")
	}

	if it.Priority != 300 || it.Value != 11 {
		t.Errorf("Item with key 1 should be (300,11), got (%d,%d)", it.Priority, it.Value)
	}

	if mh.Len() != 2 {
		t.Errorf("Updating must not add a new item, heap has %d items", mh.Len())
	}

	min, _ := mh.Peek()
	if min.Key != 2 {
		t.Errorf("Min item should now be key 2, got %d", min.Key)
	}

	// Update to lower value
	mh.AddItem(2, 50, 20)

	min, _ = mh.Peek()
	if min.Key != 2 || min.Priority != 50 {
		t.Errorf("Min item should now be (2,50), got (%d,%d)", min.Key, min.Priority)
	}
}

// TestRemoveByKey tests removing items by key
func TestRemoveByKey(t *testing.T) {
	mh := NewMapHeap[struct{}]()

	mh.AddItem(1, 100, struct{}{})
	mh.AddItem(2, 200, struct{}{})
	mh.AddItem(3, 300, struct{}{})

	value, exists := mh.RemoveByKey(2)

	if !exists {
		t.Fatal("RemoveByKey should return true for existing key")
	}

	if value != 200 {
		t.Errorf("RemoveByKey should return priority 200, got %d", value)
	}

	if mh.Len() != 2 {
		t.Errorf("Heap should have 2 items after removal, has %d", mh.Len())
	}

	if mh.Contains(2) {
		t.Error("Heap should not contain key 2 after removal")
	}

	// Try to remove non-existent key
	_, exists = mh.RemoveByKey(99)
	if exists {
		t.Error("RemoveByKey should return false for non-existent key")
	}
}

// TestPopOrder tests if items are popped in correct order
func TestPopOrder(t *testing.T) {
	mh := NewMapHeap[uint64]()

	items := []struct {
		key   uint64
		value uint64
	}{
		{5, 50},
		{3, 30},
		{1, 10},
		{4, 40},
		{2, 20},
	}

	for _, it := range items {
		mh.AddItem(it.key, it.value, it.key)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].value < items[j].value
	})

	for i, expected := range items {
		it, ok := mh.PopItem()
		if !ok {
			t.Fatalf("Heap empty after %d items, expected %d items", i, len(items))
		}

		if it.Key != expected.key || it.Priority != expected.value || it.Value != expected.key {
			t.Errorf("Pop %d: expected (%d,%d), got (%d,%d)",
				i, expected.key, expected.value, it.Key, it.Priority)
		}
	}

	if _, ok := mh.PopItem(); ok {
		t.Error("PopItem on empty heap should return false")
	}
}

// TestPeekEmptyHeap tests behavior when peeking an empty heap
func TestPeekEmptyHeap(t *testing.T) {
	mh := NewMapHeap[string]()

	_, exists := mh.Peek()
	if exists {
		t.Error("Peek on empty heap should return exists=false")
	}
}

// TestLargeNumberOfItems tests the heap invariant with many updates and removals
func TestLargeNumberOfItems(t *testing.T) {
	mh := NewMapHeap[int]()

	const n = 1000
	for i := 0; i < n; i++ {
		// spread priorities so that insertion order != priority order
		mh.AddItem(uint64(i), uint64((i*7919)%n), i)
	}

	// remove every third item
	for i := 0; i < n; i += 3 {
		if _, ok := mh.RemoveByKey(uint64(i)); !ok {
			t.Fatalf("Key %d should be removable", i)
		}
	}

	var last uint64
	count := 0
	for mh.Len() > 0 {
		it, _ := mh.PopItem()
		if count > 0 && it.Priority < last {
			t.Fatalf("Heap order violated: %d after %d", it.Priority, last)
		}
		if it.Key%3 == 0 {
			t.Fatalf("Removed key %d was popped", it.Key)
		}
		last = it.Priority
		count++
	}

	if count != n-(n+2)/3 {
		t.Errorf("Expected %d items, popped %d", n-(n+2)/3, count)
	}
}
