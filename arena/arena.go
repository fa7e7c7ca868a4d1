package arena

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("arena closed")

// Handle is a generation-checked reference to an arena slot.
// The zero Handle is reserved and always invalid.
type Handle struct {
	Index      uint32
	Generation uint32
}

// Valid reports whether h could refer to a slot.
func (h Handle) Valid() bool {
	return h.Index != 0
}

// Arena stores values in reusable slots. Removing a value bumps the slot
// generation so handles taken before the removal go stale instead of
// resolving to whatever reuses the slot.
type Arena[T any] struct {
	entries  []entry[T]
	freeList []uint32
	live     int
	mu       sync.RWMutex
	closed   bool
}

type entry[T any] struct {
	value      T
	generation uint32
	valid      bool
}

// New creates an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{
		entries:  make([]entry[T], 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Insert stores a value and returns its handle.
func (a *Arena[T]) Insert(value T) (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return Handle{}, ErrClosed
	}

	a.live++

	if len(a.freeList) > 0 {
		idx := a.freeList[len(a.freeList)-1]
		a.freeList = a.freeList[:len(a.freeList)-1]
		e := &a.entries[idx-1]
		e.value = value
		e.valid = true
		return Handle{Index: idx, Generation: e.generation}, nil
	}

	a.entries = append(a.entries, entry[T]{value: value, generation: 1, valid: true})
	return Handle{Index: uint32(len(a.entries)), Generation: 1}, nil
}

// Get retrieves a value by handle. A stale generation reports false.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	var zero T
	if h.Index == 0 {
		return zero, false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	idx := h.Index - 1
	if int(idx) >= len(a.entries) {
		return zero, false
	}

	e := a.entries[idx]
	if !e.valid || e.generation != h.Generation {
		return zero, false
	}
	return e.value, true
}

// Remove evicts the value behind h and returns it.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	var zero T
	if h.Index == 0 {
		return zero, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	idx := h.Index - 1
	if int(idx) >= len(a.entries) {
		return zero, false
	}

	e := &a.entries[idx]
	if !e.valid || e.generation != h.Generation {
		return zero, false
	}

	value := e.value
	e.value = zero
	e.valid = false
	e.generation++
	a.live--
	a.freeList = append(a.freeList, h.Index)

	return value, true
}

// RemoveFunc evicts every value for which match returns true and reports
// how many were removed.
func (a *Arena[T]) RemoveFunc(match func(T) bool) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	removed := 0
	for i := range a.entries {
		e := &a.entries[i]
		if !e.valid || !match(e.value) {
			continue
		}
		e.value = zero
		e.valid = false
		e.generation++
		a.freeList = append(a.freeList, uint32(i+1))
		removed++
	}
	a.live -= removed
	return removed
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}

// Close releases all values and stops accepting inserts.
func (a *Arena[T]) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	a.entries = nil
	a.freeList = nil
	a.live = 0
	return nil
}
