package native

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/loom-runtime/assembly"
)

// StructBinding exposes the exported methods of a Go type as native
// functions. Method names are converted from PascalCase to camelCase.
//
// A method may take *lua.LState as its first parameter. A trailing error
// result raises a script error when non-nil.
type StructBinding struct {
	funcs    map[string]Func
	factory  func() any
	hostType string
	managed  bool
}

// Static binds the methods of host as static natives of an unmanaged type.
func Static(host any) *StructBinding {
	rv := reflect.ValueOf(host)
	b := &StructBinding{
		funcs:    make(map[string]Func),
		hostType: rv.Type().String(),
	}

	rt := rv.Type()
	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Type.IsVariadic() {
			continue
		}
		name := toCamelCase(method.Name)
		b.funcs[name] = Func{
			Fn:     staticFunc(name, rv.Method(i)),
			Static: true,
		}
	}
	return b
}

// Managed binds the methods of T as instance natives of a managed type.
// factory creates the host value of each new script instance.
func Managed[T any](factory func() T) *StructBinding {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	b := &StructBinding{
		funcs:    make(map[string]Func),
		factory:  func() any { return factory() },
		hostType: rt.String(),
		managed:  true,
	}

	for i := 0; i < rt.NumMethod(); i++ {
		method := rt.Method(i)
		if !method.IsExported() || method.Type.IsVariadic() {
			continue
		}
		name := toCamelCase(method.Name)
		b.funcs[name] = Func{Fn: instanceFunc(name, method.Name)}
	}
	return b
}

// WithHostType overrides the host type name reported in diagnostics.
func (b *StructBinding) WithHostType(name string) *StructBinding {
	b.hostType = name
	return b
}

// WithStatic adds a static native to a binding.
func (b *StructBinding) WithStatic(name string, fn lua.LGFunction) *StructBinding {
	b.funcs[name] = Func{Fn: fn, Static: true}
	return b
}

func (b *StructBinding) HostTypeName() string { return b.hostType }
func (b *StructBinding) Managed() bool        { return b.managed }

func (b *StructBinding) Functions() map[string]Func {
	out := make(map[string]Func, len(b.funcs))
	for k, v := range b.funcs {
		out[k] = v
	}
	return out
}

// NewHost creates the host value for a managed instance.
func (b *StructBinding) NewHost(_ *lua.LState) (any, error) {
	if b.factory == nil {
		return nil, fmt.Errorf("%s is not a managed binding", b.hostType)
	}
	return b.factory(), nil
}

// Validate checks that every native member of t has an implementation of
// matching static-ness.
func (b *StructBinding) Validate(t *assembly.Type) error {
	for _, m := range t.Members() {
		if !m.IsNative() {
			continue
		}
		if !m.IsMethod() {
			return fmt.Errorf("native member %s must be a method", m.FullMemberName())
		}
		f, ok := b.funcs[m.Name()]
		if !ok {
			return fmt.Errorf("no native implementation for %s", m.FullMemberName())
		}
		if f.Static != m.IsStatic() {
			return fmt.Errorf("%s: static mismatch (script %v, native %v)", m.FullMemberName(), m.IsStatic(), f.Static)
		}
	}
	return nil
}

func staticFunc(name string, fn reflect.Value) lua.LGFunction {
	return func(L *lua.LState) int {
		return call(L, name, fn, 1)
	}
}

func instanceFunc(name, goName string) lua.LGFunction {
	return func(L *lua.LState) int {
		host, ok := HostOf(L.Get(1))
		if !ok {
			L.ArgError(1, fmt.Sprintf("%s: managed instance expected", name))
			return 0
		}
		method := reflect.ValueOf(host).MethodByName(goName)
		if !method.IsValid() {
			L.RaiseError("%s: host value %T has no method %s", name, host, goName)
			return 0
		}
		return call(L, name, method, 2)
	}
}

// call invokes fn with VM arguments starting at stack index first and
// pushes its results.
func call(L *lua.LState, name string, fn reflect.Value, first int) int {
	ft := fn.Type()
	args := make([]reflect.Value, 0, ft.NumIn())

	in := 0
	if ft.NumIn() > 0 && ft.In(0) == stateType {
		args = append(args, reflect.ValueOf(L))
		in++
	}

	for pos := first; in < ft.NumIn(); in, pos = in+1, pos+1 {
		v, err := toGo(L.Get(pos), ft.In(in))
		if err != nil {
			L.ArgError(pos, fmt.Sprintf("%s: %v", name, err))
			return 0
		}
		args = append(args, v)
	}

	results := fn.Call(args)

	if n := len(results); n > 0 && ft.Out(n-1) == errorType {
		if errv := results[n-1]; !errv.IsNil() {
			L.RaiseError("%s: %v", name, errv.Interface())
			return 0
		}
		results = results[:n-1]
	}

	for _, r := range results {
		L.Push(valueToLua(L, r))
	}
	return len(results)
}

// toCamelCase converts PascalCase to camelCase, lowering a leading acronym:
// ParseJSON -> parseJSON, HTTPGet -> httpGet, ID -> id.
func toCamelCase(s string) string {
	runes := []rune(s)
	if len(runes) == 0 {
		return ""
	}

	end := 0
	for end < len(runes) && unicode.IsUpper(runes[end]) {
		end++
	}
	switch {
	case end == 0:
		return s
	case end == 1 || end == len(runes):
	default:
		// Last uppercase before lowercase starts the next word
		if unicode.IsLower(runes[end]) {
			end--
		}
	}

	var b strings.Builder
	for i, r := range runes {
		if i < end {
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
