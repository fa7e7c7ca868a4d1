package assembly

import (
	"fmt"
)

// TypeID is the 1-based ordinal of a type within its assembly.
type TypeID uint32

// MemberKind distinguishes methods, fields and properties.
type MemberKind uint8

const (
	MemberMethod MemberKind = iota
	MemberField
	MemberProperty
)

func (k MemberKind) String() string {
	switch k {
	case MemberMethod:
		return "method"
	case MemberField:
		return "field"
	case MemberProperty:
		return "property"
	default:
		return fmt.Sprintf("member(%d)", uint8(k))
	}
}

// Member is a method, field or property of exactly one Type.
type Member struct {
	owner  *Type
	name   string
	body   string
	def    string
	getter string
	setter string
	params []string
	line   int
	kind   MemberKind
	static bool
	native bool
}

func (m *Member) Name() string     { return m.name }
func (m *Member) Kind() MemberKind { return m.kind }
func (m *Member) IsMethod() bool   { return m.kind == MemberMethod }
func (m *Member) IsField() bool    { return m.kind == MemberField }
func (m *Member) IsProperty() bool { return m.kind == MemberProperty }
func (m *Member) IsStatic() bool   { return m.static }
func (m *Member) IsNative() bool   { return m.native }
func (m *Member) Body() string     { return m.body }
func (m *Member) Default() string  { return m.def }
func (m *Member) Getter() string   { return m.getter }
func (m *Member) Setter() string   { return m.setter }
func (m *Member) Line() int        { return m.line }
func (m *Member) Owner() *Type     { return m.owner }
func (m *Member) Params() []string { return append([]string(nil), m.params...) }
func (m *Member) ParamCount() int  { return len(m.params) }

// FullMemberName returns "pkg.Type:member".
func (m *Member) FullMemberName() string {
	if m.owner == nil {
		return m.name
	}
	return m.owner.fullName + ":" + m.name
}

// Type is the reflected descriptor of a script class.
type Type struct {
	assembly      *Assembly
	module        *Module
	base          *Type
	lookup        map[string]*Member
	name          string
	pkg           string
	fullName      string
	source        string
	baseName      string
	missingReason string
	hostTypeName  string
	staticInit    string
	importNames   []string
	imports       []*Type
	members       []*Member
	id            TypeID
	builtin       BuiltinKind
	native        bool
	managed       bool
	missing       bool
}

func (t *Type) ID() TypeID            { return t.id }
func (t *Type) Name() string          { return t.name }
func (t *Type) Package() string       { return t.pkg }
func (t *Type) FullName() string      { return t.fullName }
func (t *Type) Source() string        { return t.source }
func (t *Type) Base() *Type           { return t.base }
func (t *Type) BaseName() string      { return t.baseName }
func (t *Type) Module() *Module       { return t.module }
func (t *Type) Assembly() *Assembly   { return t.assembly }
func (t *Type) Builtin() BuiltinKind  { return t.builtin }
func (t *Type) IsNative() bool        { return t.native }
func (t *Type) IsNativeManaged() bool { return t.managed }
func (t *Type) Missing() bool         { return t.missing }
func (t *Type) MissingReason() string { return t.missingReason }
func (t *Type) HostTypeName() string  { return t.hostTypeName }
func (t *Type) StaticInit() string    { return t.staticInit }
func (t *Type) Members() []*Member    { return append([]*Member(nil), t.members...) }
func (t *Type) Imports() []*Type      { return append([]*Type(nil), t.imports...) }
func (t *Type) ImportNames() []string { return append([]string(nil), t.importNames...) }

func (t *Type) String() string { return t.fullName }

// SetMissing flags the type as missing. The first reason wins.
func (t *Type) SetMissing(format string, args ...any) {
	if t.missing {
		return
	}
	t.missing = true
	if len(args) > 0 {
		t.missingReason = fmt.Sprintf(format, args...)
	} else {
		t.missingReason = format
	}
}

// SetHostTypeName records the host-side type name of the native binding.
func (t *Type) SetHostTypeName(name string) { t.hostTypeName = name }

// HasStaticNativeMember reports whether any static member is native.
func (t *Type) HasStaticNativeMember() bool {
	for _, m := range t.members {
		if m.static && m.native {
			return true
		}
	}
	return false
}

// NeedsBinding reports whether the type must resolve a native binding.
func (t *Type) NeedsBinding() bool {
	return t.native || t.HasStaticNativeMember()
}

// IsSubclassOf reports whether other is t or one of its ancestors.
func (t *Type) IsSubclassOf(other *Type) bool {
	for search := t; search != nil; search = search.base {
		if search == other {
			return true
		}
	}
	return false
}

// Cache builds the member lookup table, own members shadowing inherited ones.
func (t *Type) Cache() {
	lookup := make(map[string]*Member)
	var chain []*Type
	for search := t; search != nil; search = search.base {
		chain = append(chain, search)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for _, m := range chain[i].members {
			lookup[m.name] = m
		}
	}
	t.lookup = lookup
}

// Cached reports whether Cache has run.
func (t *Type) Cached() bool { return t.lookup != nil }

// FindMember finds a member by name on t or its ancestors.
func (t *Type) FindMember(name string) *Member {
	if t.lookup != nil {
		return t.lookup[name]
	}
	for search := t; search != nil; search = search.base {
		for _, m := range search.members {
			if m.name == name {
				return m
			}
		}
	}
	return nil
}

// FindMembers returns own members of the requested kinds, optionally
// including inherited ones (base members first).
func (t *Type) FindMembers(inherited bool, kinds ...MemberKind) []*Member {
	want := func(k MemberKind) bool {
		if len(kinds) == 0 {
			return true
		}
		for _, w := range kinds {
			if w == k {
				return true
			}
		}
		return false
	}

	var out []*Member
	if inherited && t.base != nil {
		out = t.base.FindMembers(true, kinds...)
	}
	for _, m := range t.members {
		if want(m.kind) {
			out = append(out, m)
		}
	}
	return out
}

// Module groups the types declared in one source module of an assembly.
type Module struct {
	assembly *Assembly
	name     string
	types    []*Type
}

func (m *Module) Name() string        { return m.name }
func (m *Module) Assembly() *Assembly { return m.assembly }
func (m *Module) Types() []*Type      { return append([]*Type(nil), m.types...) }

// RemoveType unregisters t from the module.
func (m *Module) RemoveType(t *Type) {
	for i, mt := range m.types {
		if mt == t {
			m.types = append(m.types[:i], m.types[i+1:]...)
			t.module = nil
			return
		}
	}
}

// Assembly is a named, uniquely identified unit of loaded code.
type Assembly struct {
	byName      map[string]*Type
	byFullName  map[string]*Type
	name        string
	uid         string
	version     string
	entryType   string
	entryMethod string
	references  []string
	modules     []*Module
	types       []*Type
	ordinal     []*Type
}

func (a *Assembly) Name() string         { return a.name }
func (a *Assembly) UniqueID() string     { return a.uid }
func (a *Assembly) Version() string      { return a.version }
func (a *Assembly) References() []string { return append([]string(nil), a.references...) }
func (a *Assembly) Modules() []*Module   { return append([]*Module(nil), a.modules...) }
func (a *Assembly) Types() []*Type       { return append([]*Type(nil), a.types...) }
func (a *Assembly) TypeCount() int       { return len(a.types) }

// Entry returns the bootstrap type and static method, if any.
func (a *Assembly) Entry() (typeName, method string) {
	return a.entryType, a.entryMethod
}

// DeclaredTypeCount is the number of types the assembly was built with,
// the upper bound for ordinal IDs.
func (a *Assembly) DeclaredTypeCount() int {
	if a.ordinal == nil {
		return len(a.types)
	}
	return len(a.ordinal) - 1
}

// BuildOrdinals fills the ordinal table. IDs must cover 1..N exactly once.
func (a *Assembly) BuildOrdinals() error {
	if a.ordinal != nil {
		return errorsOrdinalRebuilt(a.name)
	}

	n := len(a.types)
	ordinal := make([]*Type, n+1)
	for _, t := range a.types {
		if t.id < 1 || int(t.id) > n {
			return ordinalError(t, n)
		}
		if ordinal[t.id] != nil {
			return duplicateIDError(t, ordinal[t.id])
		}
		ordinal[t.id] = t
	}
	a.ordinal = ordinal
	return nil
}

// OrdinalType returns the live type with the given ID, or nil.
func (a *Assembly) OrdinalType(id TypeID) *Type {
	if a.ordinal == nil || id == 0 || int(id) >= len(a.ordinal) {
		return nil
	}
	return a.ordinal[id]
}

// TypeByName finds a live type by its short name.
func (a *Assembly) TypeByName(name string) *Type {
	return a.byName[name]
}

// Type finds a live type by fully-qualified name.
func (a *Assembly) Type(fullName string) *Type {
	return a.byFullName[fullName]
}

// PackageTypes appends the live types of the given package to out.
func (a *Assembly) PackageTypes(pkg string, out []*Type) []*Type {
	for _, t := range a.types {
		if t.pkg == pkg {
			out = append(out, t)
		}
	}
	return out
}

// RemoveMissing excises every missing type, preserving the order of the
// survivors, and returns the removed types.
func (a *Assembly) RemoveMissing() []*Type {
	live, removed := Compact(a.types)
	for _, t := range removed {
		if t.module != nil {
			t.module.RemoveType(t)
		}
		if a.ordinal != nil && int(t.id) < len(a.ordinal) && a.ordinal[t.id] == t {
			a.ordinal[t.id] = nil
		}
		if a.byName[t.name] == t {
			delete(a.byName, t.name)
		}
		if a.byFullName[t.fullName] == t {
			delete(a.byFullName, t.fullName)
		}
	}
	a.types = live
	return removed
}
