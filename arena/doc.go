// Package arena provides an index-based slot store with generation counters.
//
// Metadata caches keyed by VM callables hold arena handles instead of
// pointers, so evicting metadata never depends on garbage-collector weak
// references:
//
//	methods := arena.New[*assembly.Member]()
//	h, _ := methods.Insert(member)
//
//	m, ok := methods.Get(h) // ok
//	methods.Remove(h)
//	_, ok = methods.Get(h)  // !ok, the generation moved on
//
// Slots are recycled through a free list; a recycled slot keeps its bumped
// generation so old handles stay stale.
package arena
