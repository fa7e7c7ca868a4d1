package runtime

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"golang.org/x/exp/mmap"

	loomruntime "github.com/wippyai/loom-runtime"
	"github.com/wippyai/loom-runtime/assembly"
	"github.com/wippyai/loom-runtime/container"
	"github.com/wippyai/loom-runtime/engine"
	"github.com/wippyai/loom-runtime/errors"
)

// LoadTypeAssembly loads the JSON form of an assembly for type queries
// only. No class is declared and no script runs.
func (s *State) LoadTypeAssembly(text []byte) (*assembly.Assembly, error) {
	doc, err := assembly.ParseText(text)
	if err != nil {
		return nil, s.fail(err)
	}
	return s.load(doc, false)
}

// LoadAssemblyText loads the JSON form of an assembly. It is finalized
// unless the State is compiling.
func (s *State) LoadAssemblyText(text []byte) (*assembly.Assembly, error) {
	doc, err := assembly.ParseText(text)
	if err != nil {
		return nil, s.fail(err)
	}
	return s.load(doc, !s.compiling)
}

// LoadAssemblyBinary loads the CBOR form of an assembly and finalizes it.
func (s *State) LoadAssemblyBinary(raw []byte) (*assembly.Assembly, error) {
	doc, err := assembly.ParseBinary(raw)
	if err != nil {
		return nil, s.fail(err)
	}
	return s.load(doc, true)
}

// LoadExecutableBinary decodes an executable container and loads the
// assembly it carries. The buffers are charged to the VM only while the
// load runs.
func (s *State) LoadExecutableBinary(buf []byte) (*assembly.Assembly, error) {
	s.requireUsable("load executable")
	return s.loadContainer(len(buf), func() ([]byte, error) {
		return container.Decode(buf)
	})
}

// LoadExecutable maps the named executable from the configured binary
// directory, or from name itself when abs is set, and loads it. The
// container is decoded straight from the mapping.
func (s *State) LoadExecutable(name string, abs bool) (*assembly.Assembly, error) {
	s.requireUsable("load executable")

	path := s.cfg.ExecutablePath(name, abs)
	r, err := mmap.Open(path)
	if err != nil {
		return nil, errors.New(errors.PhaseDecode, errors.KindNotFound).
			Detail("executable %s", path).
			Cause(err).
			Build()
	}
	defer r.Close()

	s.logger.Debug("loading executable", zap.String("path", path), zap.Int("size", r.Len()))
	return s.loadContainer(r.Len(), func() ([]byte, error) {
		return container.DecodeAt(r, int64(r.Len()))
	})
}

// LoadExecutableFrom loads the executable held by p and closes p.
func (s *State) LoadExecutableFrom(p loomruntime.ByteProvider) (*assembly.Assembly, error) {
	defer p.Close()
	return s.LoadExecutableBinary(p.Bytes())
}

func (s *State) loadContainer(size int, decode func() ([]byte, error)) (*assembly.Assembly, error) {
	alloc := s.engine.Allocator()
	alloc.Realloc(0, size)
	defer alloc.Realloc(size, 0)

	raw, err := decode()
	if err != nil {
		return nil, s.fail(err)
	}
	alloc.Realloc(0, len(raw))
	defer alloc.Realloc(len(raw), 0)

	return s.LoadAssemblyBinary(raw)
}

func (s *State) load(doc *assembly.Document, finalize bool) (*assembly.Assembly, error) {
	s.requireUsable("load")
	if s.poisoned != nil {
		return nil, s.poisoned
	}

	if s.engine.GCRunning() {
		s.engine.StopGC()
		defer s.engine.ResumeGC()
	}

	if prev := s.Assembly(doc.Name); prev != nil {
		return nil, s.fail(errors.New(errors.PhaseLoad, errors.KindDuplicate).
			Detail("assembly %s already loaded", doc.Name).
			Build())
	}

	a, err := assembly.Build(doc, assembly.ResolverFunc(s.lookupType))
	if err != nil {
		return nil, s.fail(err)
	}
	if err := s.cacheAssemblyTypes(a); err != nil {
		return nil, s.fail(err)
	}

	s.logger.Debug("assembly cached",
		zap.String("assembly", a.Name()),
		zap.String("uid", a.UniqueID()),
		zap.Int("types", a.TypeCount()))

	if !finalize {
		return a, nil
	}
	if err := s.FinalizeAssembly(a); err != nil {
		return a, err
	}
	return a, nil
}

// cacheAssemblyTypes registers a and its types with the State: ordinal
// table, well-known types, type lookup and interned member names.
func (s *State) cacheAssemblyTypes(a *assembly.Assembly) error {
	for _, t := range a.Types() {
		if prev, ok := s.typeCache[t.FullName()]; ok && prev.Assembly() != a {
			return errors.New(errors.PhaseLoad, errors.KindDuplicate).
				Type(t.FullName()).
				Detail("already declared by assembly %s", prev.Assembly().Name()).
				Build()
		}
	}
	if err := a.BuildOrdinals(); err != nil {
		return err
	}

	s.assemblies = append(s.assemblies, a)
	s.engine.Registry(engine.RegistryAssemblies).RawSetString(a.UniqueID(), lua.LString(a.Name()))

	names := s.engine.Registry(engine.RegistryMemberNames)
	for _, t := range a.Types() {
		s.builtins.Record(t)
		s.typeCache[t.FullName()] = t
		for _, m := range t.Members() {
			n := lua.LString(m.Name())
			s.names[m] = n
			names.RawSetString(m.Name(), n)
		}
	}

	if k, missing := s.builtins.FirstMissing(); missing {
		return errors.BuiltinMissing(k.FullName())
	}
	return nil
}

func (s *State) lookupType(fullName string) *assembly.Type {
	return s.typeCache[fullName]
}
