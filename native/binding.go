package native

import (
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/loom-runtime/assembly"
	"github.com/wippyai/loom-runtime/errors"
)

// Func is one native callable installed on a script class.
type Func struct {
	Fn     lua.LGFunction
	Static bool
}

// Binding supplies the native implementation of one script type.
type Binding interface {
	// HostTypeName names the host-side type, for diagnostics.
	HostTypeName() string
	// Managed reports whether instances own a host value whose lifetime
	// is tied to the script object.
	Managed() bool
	// Validate checks the binding against the reflected script type.
	Validate(t *assembly.Type) error
	// Functions returns the native callables keyed by member name.
	Functions() map[string]Func
}

// Constructor is implemented by managed bindings that create a host value
// for each new script instance.
type Constructor interface {
	NewHost(L *lua.LState) (any, error)
}

// StateCloser is implemented by bindings holding per-VM resources.
type StateCloser interface {
	CloseState(L *lua.LState) error
}

// HostField is the instance table slot holding the userdata that wraps a
// managed instance's host value.
const HostField = "__host"

// HostOf returns the host value of a managed instance.
func HostOf(self lua.LValue) (any, bool) {
	tbl, ok := self.(*lua.LTable)
	if !ok {
		if ud, ok := self.(*lua.LUserData); ok {
			return ud.Value, ud.Value != nil
		}
		return nil, false
	}
	ud, ok := tbl.RawGetString(HostField).(*lua.LUserData)
	if !ok || ud.Value == nil {
		return nil, false
	}
	return ud.Value, true
}

// Table maps fully-qualified script type names to native bindings. It is
// populated before the first load and frozen afterwards.
type Table struct {
	bindings map[string]Binding
	mu       sync.RWMutex
	frozen   bool
}

func NewTable() *Table {
	return &Table{bindings: make(map[string]Binding)}
}

// Register adds the binding for typeName.
func (t *Table) Register(typeName string, b Binding) error {
	if typeName == "" {
		return errors.Registration(typeName, "type name cannot be empty")
	}
	if b == nil {
		return errors.Registration(typeName, "binding cannot be nil")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen {
		return errors.Registration(typeName, "binding table is frozen")
	}
	if _, ok := t.bindings[typeName]; ok {
		return errors.Registration(typeName, "binding already registered")
	}
	t.bindings[typeName] = b
	return nil
}

// MustRegister is Register that panics on error, for static setup code.
func (t *Table) MustRegister(typeName string, b Binding) {
	if err := t.Register(typeName, b); err != nil {
		panic(err)
	}
}

// Lookup returns the binding registered for typeName.
func (t *Table) Lookup(typeName string) (Binding, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.bindings[typeName]
	return b, ok
}

// Bind resolves the binding of typ and checks it against the reflected
// declaration: the managed flags must agree and the binding's own
// validation must pass. On success the host type name is stamped on typ.
func (t *Table) Bind(typ *assembly.Type) (Binding, error) {
	b, ok := t.Lookup(typ.FullName())
	if !ok {
		return nil, errors.BindingMissing(typ.FullName())
	}

	if err := CheckManaged(typ, b); err != nil {
		return nil, err
	}
	if err := b.Validate(typ); err != nil {
		return nil, errors.BindingInvalid(typ.FullName(), b.HostTypeName(), err)
	}

	typ.SetHostTypeName(b.HostTypeName())
	return b, nil
}

// CheckManaged reports a contract violation when the script declaration and
// the binding disagree on whether instances are managed.
func CheckManaged(typ *assembly.Type, b Binding) error {
	if typ.IsNativeManaged() != b.Managed() {
		return errors.ManagedMismatch(typ.FullName(), b.HostTypeName(), typ.IsNativeManaged())
	}
	return nil
}

// Freeze rejects further registrations.
func (t *Table) Freeze() {
	t.mu.Lock()
	t.frozen = true
	t.mu.Unlock()
}

func (t *Table) Frozen() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frozen
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.bindings)
}

// Each calls fn for every binding in type name order.
func (t *Table) Each(fn func(typeName string, b Binding)) {
	t.mu.RLock()
	names := sortedKeys(t.bindings)
	snapshot := make([]Binding, len(names))
	for i, name := range names {
		snapshot[i] = t.bindings[name]
	}
	t.mu.RUnlock()

	for i, name := range names {
		fn(name, snapshot[i])
	}
}
