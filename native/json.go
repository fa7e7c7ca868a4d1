package native

import (
	"github.com/goccy/go-json"
	lua "github.com/yuin/gopher-lua"
)

// JSONTypeName is the script type the JSON binding is registered under.
const JSONTypeName = "system.JSON"

type jsonHost struct{}

// Parse decodes text into VM values. Arrays become sequences, objects
// become tables and null becomes nil.
func (jsonHost) Parse(L *lua.LState, text string) (lua.LValue, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return lua.LNil, err
	}
	return ToLua(L, v), nil
}

// Stringify encodes a VM value. Tables with keys 1..n encode as arrays.
func (jsonHost) Stringify(v lua.LValue, pretty bool) (string, error) {
	var (
		out []byte
		err error
	)
	if pretty {
		out, err = json.MarshalIndent(ToAny(v), "", "  ")
	} else {
		out, err = json.Marshal(ToAny(v))
	}
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// JSON returns the unmanaged binding backing system.JSON.
func JSON() *StructBinding {
	return Static(jsonHost{}).WithHostType("native.JSON")
}
