package runtime

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/loom-runtime/arena"
	"github.com/wippyai/loom-runtime/assembly"
)

type methodEntry struct {
	fn     *lua.LFunction
	class  *lua.LTable
	member *assembly.Member
	key    string
}

// methodCache maps installed VM functions to the members they implement.
// Entries live in an arena; a retired entry leaves a stale handle behind
// that lookups treat as evicted.
type methodCache struct {
	entries *arena.Arena[methodEntry]
	index   map[*lua.LFunction]arena.Handle
}

func newMethodCache() *methodCache {
	return &methodCache{
		entries: arena.New[methodEntry](),
		index:   make(map[*lua.LFunction]arena.Handle),
	}
}

// add records that fn is installed as class[key] for member.
func (c *methodCache) add(fn *lua.LFunction, class *lua.LTable, key string, m *assembly.Member) error {
	if old, ok := c.index[fn]; ok {
		c.entries.Remove(old)
	}
	h, err := c.entries.Insert(methodEntry{fn: fn, class: class, member: m, key: key})
	if err != nil {
		return err
	}
	c.index[fn] = h
	return nil
}

// lookup resolves a callable to its member. It satisfies trace.Lookup.
func (c *methodCache) lookup(callable any) (*assembly.Member, bool) {
	fn, ok := callable.(*lua.LFunction)
	if !ok || fn == nil {
		return nil, false
	}
	h, ok := c.index[fn]
	if !ok {
		return nil, false
	}
	e, ok := c.entries.Get(h)
	if !ok {
		delete(c.index, fn)
		return nil, false
	}
	return e.member, true
}

// sweep retires entries whose function is no longer installed on its
// class table and returns how many were retired.
func (c *methodCache) sweep() int {
	n := c.entries.RemoveFunc(func(e methodEntry) bool {
		return e.class.RawGetString(e.key) != e.fn
	})
	if n > 0 {
		for fn, h := range c.index {
			if _, ok := c.entries.Get(h); !ok {
				delete(c.index, fn)
			}
		}
	}
	return n
}

// retireType drops every entry of members owned by t.
func (c *methodCache) retireType(t *assembly.Type) int {
	return c.entries.RemoveFunc(func(e methodEntry) bool {
		return e.member.Owner() == t
	})
}

func (c *methodCache) len() int { return c.entries.Len() }

func (c *methodCache) close() {
	c.entries.Close()
	c.index = nil
}
