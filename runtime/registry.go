package runtime

import (
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/loom-runtime/errors"
)

// Registry maps raw VM handles to their owning State. Native callbacks
// receive only the *lua.LState and use it to recover the State.
//
// A process normally creates one Registry in its composition root and
// passes it to every State; tests create isolated ones.
type Registry struct {
	states map[*lua.LState]*State
	lastL  *lua.LState
	last   *State
	mu     sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{states: make(map[*lua.LState]*State)}
}

func (r *Registry) insert(L *lua.LState, s *State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.states[L]; ok {
		return errors.Precondition(errors.PhaseRegistry, "VM handle %p already registered", L)
	}
	r.states[L] = s
	return nil
}

func (r *Registry) remove(L *lua.LState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.states, L)
	if r.lastL == L {
		r.lastL = nil
		r.last = nil
	}
}

// Lookup returns the State owning L. Repeated lookups of the same handle
// hit the last-used entry.
func (r *Registry) Lookup(L *lua.LState) (*State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if L == r.lastL && r.last != nil {
		return r.last, true
	}
	s, ok := r.states[L]
	if ok {
		r.lastL = L
		r.last = s
	}
	return s, ok
}

// Len returns the number of open states.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
