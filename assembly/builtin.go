package assembly

// BuiltinKind tags the well-known runtime types. It is resolved once when an
// assembly's types are cached so later lookups never compare names.
type BuiltinKind uint8

const (
	BuiltinNone BuiltinKind = iota
	BuiltinObject
	BuiltinNull
	BuiltinBoolean
	BuiltinNumber
	BuiltinString
	BuiltinFunction
	BuiltinVector
	BuiltinType
	builtinCount
)

var builtinNames = [builtinCount]string{
	BuiltinNone:     "",
	BuiltinObject:   "system.Object",
	BuiltinNull:     "system.Null",
	BuiltinBoolean:  "system.Boolean",
	BuiltinNumber:   "system.Number",
	BuiltinString:   "system.String",
	BuiltinFunction: "system.Function",
	BuiltinVector:   "system.Vector",
	BuiltinType:     "system.reflection.Type",
}

var builtinByName = func() map[string]BuiltinKind {
	m := make(map[string]BuiltinKind, builtinCount)
	for k := BuiltinObject; k < builtinCount; k++ {
		m[builtinNames[k]] = k
	}
	return m
}()

// RequiredBuiltins must be present once the system assembly has loaded.
// system.Object is cached when present but not required.
var RequiredBuiltins = []BuiltinKind{
	BuiltinNull,
	BuiltinBoolean,
	BuiltinNumber,
	BuiltinString,
	BuiltinFunction,
	BuiltinType,
	BuiltinVector,
}

// FullName returns the fully-qualified script name of the kind.
func (k BuiltinKind) FullName() string {
	if k >= builtinCount {
		return ""
	}
	return builtinNames[k]
}

func (k BuiltinKind) String() string {
	if k == BuiltinNone {
		return "none"
	}
	return k.FullName()
}

// LookupBuiltin maps a fully-qualified name to its kind.
func LookupBuiltin(fullName string) BuiltinKind {
	return builtinByName[fullName]
}

// Builtins is the per-VM fast-access cache of well-known types.
type Builtins [builtinCount]*Type

// Record stores t if it is a well-known type and tags it. It reports
// whether t was well-known.
func (b *Builtins) Record(t *Type) bool {
	k := LookupBuiltin(t.fullName)
	if k == BuiltinNone {
		return false
	}
	t.builtin = k
	b[k] = t
	return true
}

// Get returns the cached type for k.
func (b *Builtins) Get(k BuiltinKind) *Type {
	if k >= builtinCount {
		return nil
	}
	return b[k]
}

// FirstMissing returns the first required kind not yet cached.
func (b *Builtins) FirstMissing() (BuiltinKind, bool) {
	for _, k := range RequiredBuiltins {
		if b[k] == nil {
			return k, true
		}
	}
	return BuiltinNone, false
}
