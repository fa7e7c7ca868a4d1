package runtime

import (
	"fmt"
	"io"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/loom-runtime/assembly"
	"github.com/wippyai/loom-runtime/engine"
	"github.com/wippyai/loom-runtime/errors"
	"github.com/wippyai/loom-runtime/native"
)

// Reserved class slots.
const (
	fieldName         = "__name"
	fieldTypeID       = "__typeid"
	fieldAssembly     = "__assembly"
	fieldIndex        = "__index"
	fieldConstructor  = "constructor"
	fieldNew          = "new"
	fieldDeleteNative = "deleteNative"
)

// lifecycle performs the per-type steps of finalization. Each step runs
// for every type of the assembly before the next step starts.
type lifecycle interface {
	declare(t *assembly.Type) error
	link(t *assembly.Type) error
	initialize(t *assembly.Type) error
	staticInit(t *assembly.Type) error
}

// classBuilder materializes types as VM class tables.
type classBuilder struct {
	s *State
}

// declare creates the class table. No script code runs.
func (c *classBuilder) declare(t *assembly.Type) error {
	s := c.s
	L := s.engine.L

	class := L.CreateTable(0, 8)
	class.RawSetString(fieldName, lua.LString(t.FullName()))
	class.RawSetString(fieldTypeID, lua.LNumber(t.ID()))
	class.RawSetString(fieldAssembly, lua.LString(t.Assembly().Name()))
	class.RawSetString(fieldIndex, class)

	s.engine.Registry(engine.RegistryClasses).RawSetString(t.FullName(), class)
	s.classes[t] = class

	// The short alias never replaces a global that is not a class, such as
	// a standard library table.
	if prev := L.GetGlobal(t.Name()); prev != lua.LNil && !isClass(prev) {
		s.logger.Warn("class alias skipped, global in use",
			zap.String("type", t.FullName()),
			zap.String("global", t.Name()),
			zap.String("value", prev.Type().String()))
		return nil
	}
	L.SetGlobal(t.Name(), class)
	return nil
}

func isClass(v lua.LValue) bool {
	tbl, ok := v.(*lua.LTable)
	return ok && tbl.RawGetString(fieldName).Type() == lua.LTString
}

// link chains the class to its base and re-checks the managed contract
// now that every class of the assembly exists.
func (c *classBuilder) link(t *assembly.Type) error {
	s := c.s
	L := s.engine.L
	class := s.classes[t]

	if base := t.Base(); base != nil {
		baseClass, ok := s.classes[base]
		if !ok {
			return errors.New(errors.PhaseDeclare, errors.KindPrecondition).
				Type(t.FullName()).
				Detail("base type %s has no class", base.FullName()).
				Build()
		}
		mt := L.CreateTable(0, 1)
		mt.RawSetString(fieldIndex, baseClass)
		L.SetMetatable(class, mt)
	}

	if b, ok := s.natives[t]; ok {
		return native.CheckManaged(t, b)
	}
	return nil
}

// initialize installs methods, property accessors, natives and the
// constructor.
func (c *classBuilder) initialize(t *assembly.Type) error {
	s := c.s
	L := s.engine.L
	class := s.classes[t]

	var natives map[string]native.Func
	b, bound := s.natives[t]
	if bound {
		natives = b.Functions()
	}

	for _, m := range t.Members() {
		switch {
		case m.IsMethod() && m.IsNative():
			f, ok := natives[m.Name()]
			if !ok {
				host := ""
				if bound {
					host = b.HostTypeName()
				}
				return errors.New(errors.PhaseInitialize, errors.KindBindingInvalid).
					Type(t.FullName()).
					HostType(host).
					Path(m.Name()).
					Detail("no native implementation").
					Build()
			}
			if err := s.install(class, m.Name(), L.NewFunction(f.Fn), m); err != nil {
				return err
			}

		case m.IsMethod():
			params := m.Params()
			if !m.IsStatic() {
				params = append([]string{"self"}, params...)
			}
			fn, err := s.compileFunction(t, m, params, m.Body())
			if err != nil {
				return err
			}
			if err := s.install(class, m.Name(), fn, m); err != nil {
				return err
			}

		case m.IsProperty():
			if m.Getter() != "" {
				fn, err := s.compileFunction(t, m, []string{"self"}, m.Getter())
				if err != nil {
					return err
				}
				if err := s.install(class, "get_"+m.Name(), fn, m); err != nil {
					return err
				}
			}
			if m.Setter() != "" {
				fn, err := s.compileFunction(t, m, []string{"self", "value"}, m.Setter())
				if err != nil {
					return err
				}
				if err := s.install(class, "set_"+m.Name(), fn, m); err != nil {
					return err
				}
			}

		case m.IsField():
			if m.Default() == "" {
				continue
			}
			fn, err := s.compileFunction(t, m, []string{"self"}, "return ("+m.Default()+")")
			if err != nil {
				return err
			}
			s.defaults[m] = fn
		}
	}

	class.RawSetString(fieldNew, L.NewFunction(func(L *lua.LState) int {
		return s.construct(L, t)
	}))
	if bound && b.Managed() {
		class.RawSetString(fieldDeleteNative, L.NewFunction(s.deleteNative))
	}
	return nil
}

// staticInit assigns static field defaults, then runs the static
// initializer with the class as self.
func (c *classBuilder) staticInit(t *assembly.Type) error {
	s := c.s
	class := s.classes[t]

	for _, m := range t.Members() {
		if !m.IsField() || !m.IsStatic() {
			continue
		}
		def, ok := s.defaults[m]
		if !ok {
			continue
		}
		v, err := s.callInit(t, m.Name(), def, class)
		if err != nil {
			return err
		}
		class.RawSetString(m.Name(), v)
	}

	body := t.StaticInit()
	if body == "" {
		return nil
	}
	src := "return function(self)\n" + body + "\nend"
	fn, err := s.engine.Eval(src, t.Source())
	if err != nil {
		return errors.New(errors.PhaseInitialize, errors.KindScript).
			Type(t.FullName()).
			Path("static_init").
			Cause(err).
			Build()
	}
	_, err = s.callInit(t, "static_init", fn, class)
	return err
}

// compileFunction compiles body as a function of params. Blank lines pad
// the chunk so the body's first line lands on the member's source line.
func (s *State) compileFunction(t *assembly.Type, m *assembly.Member, params []string, body string) (*lua.LFunction, error) {
	pad := 0
	if m.Line() > 1 {
		pad = m.Line() - 1
	}
	src := fmt.Sprintf("%sreturn function(%s) %s\nend", strings.Repeat("\n", pad), strings.Join(params, ", "), body)

	v, err := s.engine.Eval(src, t.Source())
	if err != nil {
		return nil, errors.New(errors.PhaseInitialize, errors.KindScript).
			Type(t.FullName()).
			Path(m.Name()).
			Cause(err).
			Build()
	}
	fn, ok := v.(*lua.LFunction)
	if !ok {
		return nil, errors.New(errors.PhaseInitialize, errors.KindScript).
			Type(t.FullName()).
			Path(m.Name()).
			Detail("compiled to %s, function expected", v.Type()).
			Build()
	}
	return fn, nil
}

// callInit runs an initializer in protected mode and returns its result.
func (s *State) callInit(t *assembly.Type, what string, fn lua.LValue, self lua.LValue) (lua.LValue, error) {
	L := s.engine.L
	if err := s.engine.Call(fn, 1, s.handler, self); err != nil {
		s.reporter.Clear()
		return lua.LNil, errors.New(errors.PhaseInitialize, errors.KindScript).
			Type(t.FullName()).
			Path(what).
			Cause(err).
			Build()
	}
	v := L.Get(-1)
	L.Pop(1)
	return v, nil
}

func (s *State) install(class *lua.LTable, key string, fn *lua.LFunction, m *assembly.Member) error {
	class.RawSetString(key, fn)
	return s.methods.add(fn, class, key, m)
}

// construct implements Class.new(...).
func (s *State) construct(L *lua.LState, t *assembly.Type) int {
	nargs := L.GetTop()
	args := make([]lua.LValue, nargs)
	for i := range args {
		args[i] = L.Get(i + 1)
	}

	class := s.classes[t]
	self := L.CreateTable(0, 4)
	L.SetMetatable(self, class)

	for _, f := range t.FindMembers(true, assembly.MemberField) {
		if f.IsStatic() {
			continue
		}
		def, ok := s.defaults[f]
		if !ok {
			continue
		}
		L.Push(def)
		L.Push(self)
		L.Call(1, 1)
		self.RawSetString(f.Name(), L.Get(-1))
		L.Pop(1)
	}

	if b := s.managedBinding(t); b != nil {
		ctor, ok := b.(native.Constructor)
		if !ok {
			L.RaiseError("%s: managed binding %s cannot create host values", t.FullName(), b.HostTypeName())
			return 0
		}
		host, err := ctor.NewHost(L)
		if err != nil {
			L.RaiseError("%s: %v", t.FullName(), err)
			return 0
		}
		ud := L.NewUserData()
		ud.Value = host
		self.RawSetString(native.HostField, ud)

		s.managedVersion++
		s.engine.Registry(engine.RegistryManagedUserdata).RawSet(ud, self)
		s.engine.Registry(engine.RegistryNativeScript).RawSet(ud, lua.LString(t.FullName()))
		s.engine.Registry(engine.RegistryManagedVersion).RawSet(ud, lua.LNumber(s.managedVersion))
	}

	if ctor, ok := L.GetField(self, fieldConstructor).(*lua.LFunction); ok {
		L.Push(ctor)
		L.Push(self)
		for _, a := range args {
			L.Push(a)
		}
		L.Call(nargs+1, 0)
	}

	L.Push(self)
	return 1
}

// managedBinding returns the binding of the nearest managed type in t's
// inheritance chain.
func (s *State) managedBinding(t *assembly.Type) native.Binding {
	for search := t; search != nil; search = search.Base() {
		if b, ok := s.natives[search]; ok && b.Managed() {
			return b
		}
	}
	return nil
}

// deleteNative implements instance:deleteNative(). It releases the host
// value and drops the registry entries of the instance.
func (s *State) deleteNative(L *lua.LState) int {
	self := L.CheckTable(1)
	ud, ok := self.RawGetString(native.HostField).(*lua.LUserData)
	if !ok {
		return 0
	}

	for _, name := range []string{engine.RegistryManagedUserdata, engine.RegistryNativeScript, engine.RegistryManagedVersion} {
		s.engine.Registry(name).RawSet(ud, lua.LNil)
	}
	self.RawSetString(native.HostField, lua.LNil)

	if closer, ok := ud.Value.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn("managed native close failed", zap.Error(err))
		}
	}
	ud.Value = nil
	return 0
}

// validateType checks that the class table carries every member the
// reflected type declares.
func (s *State) validateType(t *assembly.Type) error {
	L := s.engine.L
	class, ok := s.classes[t]
	if !ok {
		return errors.Validation(t.FullName(), nil, "no class table")
	}

	isFunc := func(key string) bool {
		_, ok := L.GetField(class, key).(*lua.LFunction)
		return ok
	}

	for _, m := range t.FindMembers(true) {
		switch {
		case m.IsMethod():
			if !isFunc(m.Name()) {
				return errors.Validation(t.FullName(), []string{m.Name()}, "method is not a function")
			}
		case m.IsProperty():
			if m.Getter() != "" && !isFunc("get_"+m.Name()) {
				return errors.Validation(t.FullName(), []string{m.Name()}, "property getter is not a function")
			}
			if m.Setter() != "" && !isFunc("set_"+m.Name()) {
				return errors.Validation(t.FullName(), []string{m.Name()}, "property setter is not a function")
			}
		}
	}
	if !isFunc(fieldNew) {
		return errors.Validation(t.FullName(), []string{fieldNew}, "missing constructor")
	}
	return nil
}
