package history

import (
	"encoding/json"
	"slices"
)

// DefaultFragmentCapacity bounds how many fragments of each kind a supplier
// keeps.
const DefaultFragmentCapacity = 10

// Fragments is a fixed-capacity LRU set of strings. Adding an existing
// value moves it to the newest position; adding past capacity evicts the
// oldest. Values are immutable: Add returns a new Fragments.
type Fragments struct {
	items    []string // oldest first
	capacity int
}

// NewFragments returns an empty set with the given capacity. A capacity
// below one falls back to DefaultFragmentCapacity.
func NewFragments(capacity int) Fragments {
	if capacity < 1 {
		capacity = DefaultFragmentCapacity
	}
	return Fragments{capacity: capacity}
}

// Add returns a copy with value recorded as the most recent fragment.
// Empty values are ignored.
func (f Fragments) Add(value string) Fragments {
	if value == "" {
		return f
	}
	capacity := f.Capacity()

	items := make([]string, 0, min(len(f.items)+1, capacity))
	for _, existing := range f.items {
		if existing != value {
			items = append(items, existing)
		}
	}
	items = append(items, value)
	if len(items) > capacity {
		items = items[len(items)-capacity:]
	}

	return Fragments{items: items, capacity: capacity}
}

// Values returns the fragments, oldest first.
func (f Fragments) Values() []string {
	return slices.Clone(f.items)
}

// Contains reports whether value is recorded.
func (f Fragments) Contains(value string) bool {
	return slices.Contains(f.items, value)
}

// Len returns the number of fragments.
func (f Fragments) Len() int {
	return len(f.items)
}

// Capacity returns the eviction bound.
func (f Fragments) Capacity() int {
	if f.capacity < 1 {
		return DefaultFragmentCapacity
	}
	return f.capacity
}

// MarshalJSON encodes the fragments as a plain array, oldest first.
func (f Fragments) MarshalJSON() ([]byte, error) {
	if f.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f.items)
}

// UnmarshalJSON decodes a plain array, keeping the newest entries when the
// stored list is longer than the capacity.
func (f *Fragments) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	out := NewFragments(f.capacity)
	for _, item := range items {
		out = out.Add(item)
	}
	*f = out
	return nil
}
