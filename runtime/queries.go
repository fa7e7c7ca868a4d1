package runtime

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/loom-runtime/assembly"
	"github.com/wippyai/loom-runtime/engine"
)

// Assembly finds a loaded assembly by name. The executable extension is
// accepted: "Main" and "Main.loom" both find assembly Main.
func (s *State) Assembly(name string) *assembly.Assembly {
	for _, a := range s.assemblies {
		if a.Name() == name || a.Name()+s.cfg.Extension == name {
			return a
		}
	}
	return nil
}

// AssemblyByUID finds a loaded assembly by unique ID.
func (s *State) AssemblyByUID(uid string) *assembly.Assembly {
	for _, a := range s.assemblies {
		if a.UniqueID() == uid {
			return a
		}
	}
	return nil
}

// Assemblies returns the loaded assemblies in load order.
func (s *State) Assemblies() []*assembly.Assembly {
	return append([]*assembly.Assembly(nil), s.assemblies...)
}

// Type finds a live type by fully-qualified name.
func (s *State) Type(fullName string) *assembly.Type {
	return s.typeCache[fullName]
}

// PackageTypes returns the live types of pkg across all assemblies.
func (s *State) PackageTypes(pkg string) []*assembly.Type {
	var out []*assembly.Type
	for _, a := range s.assemblies {
		out = a.PackageTypes(pkg, out)
	}
	return out
}

// Builtin returns the cached well-known type of kind k.
func (s *State) Builtin(k assembly.BuiltinKind) *assembly.Type {
	return s.builtins.Get(k)
}

// Class returns the class table declared for fullName, or nil.
func (s *State) Class(fullName string) *lua.LTable {
	if s.engine == nil {
		return nil
	}
	class, _ := s.engine.Registry(engine.RegistryClasses).RawGetString(fullName).(*lua.LTable)
	return class
}
