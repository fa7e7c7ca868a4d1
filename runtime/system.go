package runtime

import (
	_ "embed"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/loom-runtime/assembly"
	"github.com/wippyai/loom-runtime/native"
)

//go:embed system.json
var systemAssembly []byte

// SystemAssembly returns the JSON form of the built-in system assembly.
func SystemAssembly() []byte {
	return append([]byte(nil), systemAssembly...)
}

// LoadSystem loads the built-in system assembly. It must be the first
// assembly loaded into a State.
func (s *State) LoadSystem() (*assembly.Assembly, error) {
	return s.LoadAssemblyText(systemAssembly)
}

// DefaultBindings returns a table with the natives the system assembly
// requires. reg resolves the owning State inside VM callbacks.
func DefaultBindings(reg *Registry) *native.Table {
	t := native.NewTable()
	t.MustRegister(native.JSONTypeName, native.JSON())
	t.MustRegister(vmTypeName, native.Static(vmHost{registry: reg}).WithHostType("runtime.VM"))
	return t
}

type vmHost struct {
	registry *Registry
}

func (h vmHost) AllocatedBytes(L *lua.LState) int64 {
	s, ok := h.registry.Lookup(L)
	if !ok {
		return 0
	}
	return s.AllocatedBytes()
}

func (h vmHost) DumpManagedNatives(L *lua.LState) {
	if s, ok := h.registry.Lookup(L); ok {
		s.DumpManagedNatives()
	}
}

func (h vmHost) GetCommandLine(L *lua.LState) []string {
	s, ok := h.registry.Lookup(L)
	if !ok {
		return []string{}
	}
	return s.CommandLine()
}
