package engine

import (
	"sync/atomic"

	loomruntime "github.com/wippyai/loom-runtime"
)

var _ loomruntime.Allocator = (*Counter)(nil)

// Counter accounts the bytes attributed to one VM instance.
type Counter struct {
	allocated atomic.Int64
	peak      atomic.Int64
}

// Realloc records a resize from oldSize to newSize bytes. A fresh
// allocation has oldSize 0, a free has newSize 0.
func (c *Counter) Realloc(oldSize, newSize int) {
	n := c.allocated.Add(int64(newSize - oldSize))
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

// Allocated returns the bytes currently attributed to the instance.
func (c *Counter) Allocated() int64 { return c.allocated.Load() }

// Peak returns the high-water mark of Allocated.
func (c *Counter) Peak() int64 { return c.peak.Load() }

// reset releases everything still attributed to the instance.
func (c *Counter) reset() {
	c.allocated.Store(0)
}
