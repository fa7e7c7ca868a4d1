package assembly

import (
	"github.com/wippyai/loom-runtime/errors"
)

// Resolver finds types of previously loaded assemblies by full name.
type Resolver interface {
	LookupType(fullName string) *Type
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(fullName string) *Type

func (f ResolverFunc) LookupType(fullName string) *Type { return f(fullName) }

// Build turns a parsed document into an Assembly. Base and import names
// resolve first against the document's own types, then through resolve.
// A reference that cannot be resolved marks the referencing type missing;
// that is the only recoverable failure. Structural faults are fatal.
func Build(doc *Document, resolve Resolver) (*Assembly, error) {
	if doc == nil {
		return nil, errors.InvalidInput(errors.PhaseLoad, "nil assembly document")
	}
	if doc.Name == "" {
		return nil, errors.Format(errors.PhaseLoad, "assembly has no name")
	}

	a := &Assembly{
		name:        doc.Name,
		uid:         doc.UID,
		version:     doc.Version,
		references:  append([]string(nil), doc.References...),
		byName:      make(map[string]*Type),
		byFullName:  make(map[string]*Type),
		entryMethod: "main",
	}
	if a.uid == "" {
		a.uid = doc.Name
	}
	if doc.Entry != nil {
		a.entryType = doc.Entry.Type
		if doc.Entry.Method != "" {
			a.entryMethod = doc.Entry.Method
		}
	}

	for _, md := range doc.Modules {
		mod := &Module{assembly: a, name: md.Name}
		a.modules = append(a.modules, mod)

		for i := range md.Types {
			t, err := buildType(a, mod, &md.Types[i])
			if err != nil {
				return nil, err
			}
			if prev, ok := a.byFullName[t.fullName]; ok {
				return nil, errors.New(errors.PhaseLoad, errors.KindDuplicate).
					Type(t.fullName).
					Detail("declared twice (ids %d and %d)", prev.id, t.id).
					Build()
			}
			a.byFullName[t.fullName] = t
			a.byName[t.name] = t
			mod.types = append(mod.types, t)
			a.types = append(a.types, t)
		}
	}

	lookup := func(name string) *Type {
		if t, ok := a.byFullName[name]; ok {
			return t
		}
		if resolve != nil {
			return resolve.LookupType(name)
		}
		return nil
	}

	for _, t := range a.types {
		if t.baseName != "" {
			t.base = lookup(t.baseName)
			if t.base == nil {
				t.SetMissing("missing base type %s", t.baseName)
			}
		}
		for _, name := range t.importNames {
			imp := lookup(name)
			if imp == nil {
				t.SetMissing("missing import %s", name)
				continue
			}
			t.imports = append(t.imports, imp)
		}
	}

	if err := checkCycles(a.types); err != nil {
		return nil, err
	}

	return a, nil
}

func buildType(a *Assembly, mod *Module, td *TypeDoc) (*Type, error) {
	if td.Name == "" {
		return nil, errors.Format(errors.PhaseLoad, "type with id %d in module %q has no name", td.ID, mod.name)
	}

	t := &Type{
		assembly:    a,
		module:      mod,
		id:          TypeID(td.ID),
		name:        td.Name,
		pkg:         td.Package,
		fullName:    td.Name,
		source:      td.Source,
		baseName:    td.Base,
		importNames: append([]string(nil), td.Imports...),
		native:      td.Native,
		managed:     td.Managed,
		staticInit:  td.StaticInit,
	}
	if td.Package != "" {
		t.fullName = td.Package + "." + td.Name
	}
	if t.source == "" {
		t.source = t.fullName
	}
	if td.Missing != "" {
		t.SetMissing("%s", td.Missing)
	}

	seen := make(map[string]bool, len(td.Members))
	for _, md := range td.Members {
		kind, ok := parseMemberKind(md.Kind)
		if !ok {
			return nil, errors.New(errors.PhaseLoad, errors.KindFormat).
				Type(t.fullName).
				Path(md.Name).
				Detail("unknown member kind %q", md.Kind).
				Build()
		}
		if md.Name == "" {
			return nil, errors.New(errors.PhaseLoad, errors.KindFormat).
				Type(t.fullName).
				Detail("unnamed member").
				Build()
		}
		if seen[md.Name] {
			return nil, errors.New(errors.PhaseLoad, errors.KindDuplicate).
				Type(t.fullName).
				Path(md.Name).
				Detail("member declared twice").
				Build()
		}
		seen[md.Name] = true

		t.members = append(t.members, &Member{
			owner:  t,
			name:   md.Name,
			kind:   kind,
			static: md.Static,
			native: md.Native,
			params: append([]string(nil), md.Params...),
			body:   md.Body,
			line:   md.Line,
			def:    md.Default,
			getter: md.Getter,
			setter: md.Setter,
		})
	}

	return t, nil
}

// checkCycles rejects inheritance cycles, which no compiler should emit.
func checkCycles(types []*Type) error {
	for _, t := range types {
		steps := 0
		for search := t.base; search != nil; search = search.base {
			if search == t || steps > len(types) {
				return errors.New(errors.PhaseLoad, errors.KindFormat).
					Type(t.fullName).
					Detail("inheritance cycle").
					Build()
			}
			steps++
		}
	}
	return nil
}

func errorsOrdinalRebuilt(name string) error {
	return errors.Precondition(errors.PhaseResolve, "assembly %s types cache error, ordinal table already exists", name)
}

func ordinalError(t *Type, count int) error {
	return errors.Ordinal(t.fullName, uint32(t.id), uint32(count))
}

func duplicateIDError(t, prev *Type) error {
	return errors.New(errors.PhaseResolve, errors.KindOrdinal).
		Type(t.fullName).
		Value(uint32(t.id)).
		Detail("type id %d already used by %s", t.id, prev.fullName).
		Build()
}
