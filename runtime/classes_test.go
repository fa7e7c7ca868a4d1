package runtime

import (
	"context"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestDeclare_AliasKeepsNonClassGlobals(t *testing.T) {
	const doc = `{"name": "Lib", "modules": [{"name": "lib", "types": [
  {"id": 1, "name": "string", "package": "lib",
   "members": [{"name": "hello", "static": true, "body": "return 'hi'", "line": 2}]},
  {"id": 2, "name": "Shape", "package": "lib"}
]}]}`

	h := newHarness(t, nil)
	h.loadSystem(t)
	if _, err := h.st.LoadAssemblyText([]byte(doc)); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	v, err := h.st.Engine().Eval("return string.upper('a')", "check")
	if err != nil {
		t.Fatalf("string library replaced: %v", err)
	}
	if v != lua.LString("A") {
		t.Errorf("string.upper returned %v", v)
	}

	if h.logs.FilterMessage("class alias skipped, global in use").Len() != 1 {
		t.Error("expected one skipped alias warning")
	}
	if h.st.VM().GetGlobal("Shape") != h.st.Class("lib.Shape") {
		t.Error("Shape alias not installed")
	}

	rets, err := h.st.InvokeStaticMethod(context.Background(), "lib.string", "hello")
	if err != nil {
		t.Fatal(err)
	}
	if rets[0] != lua.LString("hi") {
		t.Errorf("hello returned %v", rets)
	}
}
