package native

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

var (
	lvalueType = reflect.TypeOf((*lua.LValue)(nil)).Elem()
	stateType  = reflect.TypeOf((*lua.LState)(nil))
	errorType  = reflect.TypeOf((*error)(nil)).Elem()
	tableType  = reflect.TypeOf((*lua.LTable)(nil))
	funcType   = reflect.TypeOf((*lua.LFunction)(nil))
)

// ToLua converts a Go value to a VM value. Structs and pointers that have no
// natural VM form are wrapped in userdata.
func ToLua(L *lua.LState, v any) lua.LValue {
	if v == nil {
		return lua.LNil
	}
	if lv, ok := v.(lua.LValue); ok {
		return lv
	}
	return valueToLua(L, reflect.ValueOf(v))
}

func valueToLua(L *lua.LState, rv reflect.Value) lua.LValue {
	if !rv.IsValid() {
		return lua.LNil
	}
	if rv.Type().Implements(lvalueType) {
		if rv.Kind() == reflect.Interface && rv.IsNil() {
			return lua.LNil
		}
		return rv.Interface().(lua.LValue)
	}

	switch rv.Kind() {
	case reflect.Bool:
		return lua.LBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return lua.LNumber(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return lua.LNumber(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float())
	case reflect.String:
		return lua.LString(rv.String())
	case reflect.Interface:
		if rv.IsNil() {
			return lua.LNil
		}
		return valueToLua(L, rv.Elem())
	case reflect.Slice:
		if rv.IsNil() {
			return lua.LNil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return lua.LString(rv.Bytes())
		}
		fallthrough
	case reflect.Array:
		tbl := L.CreateTable(rv.Len(), 0)
		for i := 0; i < rv.Len(); i++ {
			tbl.RawSetInt(i+1, valueToLua(L, rv.Index(i)))
		}
		return tbl
	case reflect.Map:
		if rv.IsNil() {
			return lua.LNil
		}
		tbl := L.CreateTable(0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			tbl.RawSet(valueToLua(L, iter.Key()), valueToLua(L, iter.Value()))
		}
		return tbl
	case reflect.Ptr:
		if rv.IsNil() {
			return lua.LNil
		}
	}

	ud := L.NewUserData()
	ud.Value = rv.Interface()
	return ud
}

// ToAny converts a VM value to plain Go data: nil, bool, float64, string,
// []any for sequences and map[string]any for other tables. Userdata yields
// its wrapped value.
func ToAny(v lua.LValue) any {
	return toAny(v, make(map[*lua.LTable]bool))
}

func toAny(v lua.LValue, seen map[*lua.LTable]bool) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LUserData:
		return val.Value
	case *lua.LTable:
		if seen[val] {
			return nil
		}
		seen[val] = true
		defer delete(seen, val)

		if n := val.MaxN(); n > 0 && n == countKeys(val) {
			arr := make([]any, n)
			for i := 1; i <= n; i++ {
				arr[i-1] = toAny(val.RawGetInt(i), seen)
			}
			return arr
		}
		m := make(map[string]any)
		val.ForEach(func(k, v lua.LValue) {
			m[keyString(k)] = toAny(v, seen)
		})
		return m
	default:
		return v
	}
}

func countKeys(t *lua.LTable) int {
	n := 0
	t.ForEach(func(_, _ lua.LValue) { n++ })
	return n
}

func keyString(k lua.LValue) string {
	if n, ok := k.(lua.LNumber); ok {
		return strconv.FormatFloat(float64(n), 'f', -1, 64)
	}
	return k.String()
}

// toGo converts a VM value to the Go type t.
func toGo(v lua.LValue, t reflect.Type) (reflect.Value, error) {
	switch {
	case t == lvalueType:
		return reflect.ValueOf(&v).Elem(), nil
	case t == tableType:
		if v == lua.LNil {
			return reflect.Zero(t), nil
		}
		tbl, ok := v.(*lua.LTable)
		if !ok {
			return reflect.Value{}, typeError("table", v)
		}
		return reflect.ValueOf(tbl), nil
	case t == funcType:
		if v == lua.LNil {
			return reflect.Zero(t), nil
		}
		fn, ok := v.(*lua.LFunction)
		if !ok {
			return reflect.Value{}, typeError("function", v)
		}
		return reflect.ValueOf(fn), nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return reflect.ValueOf(lua.LVAsBool(v)).Convert(t), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toNumber(v)
		if err != nil {
			return reflect.Value{}, err
		}
		out := reflect.New(t).Elem()
		out.SetInt(int64(n))
		return out, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := toNumber(v)
		if err != nil {
			return reflect.Value{}, err
		}
		if n < 0 {
			return reflect.Value{}, fmt.Errorf("number %v out of range for %s", n, t)
		}
		out := reflect.New(t).Elem()
		out.SetUint(uint64(n))
		return out, nil
	case reflect.Float32, reflect.Float64:
		n, err := toNumber(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(float64(n)).Convert(t), nil
	case reflect.String:
		switch s := v.(type) {
		case lua.LString:
			return reflect.ValueOf(string(s)).Convert(t), nil
		case lua.LNumber:
			return reflect.ValueOf(s.String()).Convert(t), nil
		}
		return reflect.Value{}, typeError("string", v)
	case reflect.Interface:
		if v == lua.LNil {
			return reflect.Zero(t), nil
		}
		if ud, ok := v.(*lua.LUserData); ok && ud.Value != nil && reflect.TypeOf(ud.Value).Implements(t) {
			return reflect.ValueOf(ud.Value), nil
		}
		if t.NumMethod() == 0 {
			out := reflect.New(t).Elem()
			if a := ToAny(v); a != nil {
				out.Set(reflect.ValueOf(a))
			}
			return out, nil
		}
		return reflect.Value{}, typeError(t.String(), v)
	case reflect.Slice:
		if v == lua.LNil {
			return reflect.Zero(t), nil
		}
		if t.Elem().Kind() == reflect.Uint8 {
			if s, ok := v.(lua.LString); ok {
				return reflect.ValueOf([]byte(s)).Convert(t), nil
			}
		}
		tbl, ok := v.(*lua.LTable)
		if !ok {
			return reflect.Value{}, typeError("table", v)
		}
		n := tbl.Len()
		out := reflect.MakeSlice(t, n, n)
		for i := 1; i <= n; i++ {
			elem, err := toGo(tbl.RawGetInt(i), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i - 1).Set(elem)
		}
		return out, nil
	case reflect.Map:
		if v == lua.LNil {
			return reflect.Zero(t), nil
		}
		tbl, ok := v.(*lua.LTable)
		if !ok {
			return reflect.Value{}, typeError("table", v)
		}
		out := reflect.MakeMapWithSize(t, 0)
		var convErr error
		tbl.ForEach(func(k, val lua.LValue) {
			if convErr != nil {
				return
			}
			kv, err := toGo(k, t.Key())
			if err != nil {
				convErr = fmt.Errorf("key %s: %w", k, err)
				return
			}
			vv, err := toGo(val, t.Elem())
			if err != nil {
				convErr = fmt.Errorf("field %s: %w", k, err)
				return
			}
			out.SetMapIndex(kv, vv)
		})
		if convErr != nil {
			return reflect.Value{}, convErr
		}
		return out, nil
	}

	if ud, ok := v.(*lua.LUserData); ok && ud.Value != nil {
		rv := reflect.ValueOf(ud.Value)
		if rv.Type().AssignableTo(t) {
			return rv, nil
		}
	}
	if v == lua.LNil && (t.Kind() == reflect.Ptr || t.Kind() == reflect.Func) {
		return reflect.Zero(t), nil
	}
	return reflect.Value{}, typeError(t.String(), v)
}

func toNumber(v lua.LValue) (lua.LNumber, error) {
	switch n := v.(type) {
	case lua.LNumber:
		return n, nil
	case lua.LString:
		f, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, typeError("number", v)
		}
		return lua.LNumber(f), nil
	}
	return 0, typeError("number", v)
}

func typeError(want string, got lua.LValue) error {
	return fmt.Errorf("%s expected, got %s", want, got.Type().String())
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
