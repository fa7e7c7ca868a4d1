package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/loom-runtime/assembly"
	"github.com/wippyai/loom-runtime/errors"
)

// FinalizeAssembly runs the load pipeline for a cached assembly: native
// resolution, missing-type pruning, declaration, initialization, static
// initialization, optional validation and bootstrap. A fatal error leaves
// the State unusable.
func (s *State) FinalizeAssembly(a *assembly.Assembly) error {
	s.requireUsable("finalize")
	if s.poisoned != nil {
		return s.poisoned
	}
	if err := s.finalize(a); err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *State) finalize(a *assembly.Assembly) error {
	s.phase = PhaseLoading
	s.bindings.Freeze()

	if err := s.resolveNatives(a); err != nil {
		return err
	}
	if err := s.pruneMissing(a); err != nil {
		return err
	}

	types := a.Types()

	for _, t := range types {
		if err := s.life.declare(t); err != nil {
			return err
		}
	}
	for _, t := range types {
		if err := s.life.link(t); err != nil {
			return err
		}
	}
	s.phase = PhaseDeclared

	for _, t := range types {
		t.Cache()
	}
	for _, t := range types {
		if err := s.life.initialize(t); err != nil {
			return err
		}
	}
	for _, t := range types {
		if err := s.life.staticInit(t); err != nil {
			return err
		}
	}
	s.phase = PhaseInitialized

	if s.cfg.ValidateTypes {
		for _, t := range types {
			if err := s.validateType(t); err != nil {
				return err
			}
		}
	}

	s.phase = PhaseReady
	s.engine.ResumeGC()
	s.logger.Info("assembly loaded",
		zap.String("assembly", a.Name()),
		zap.Int("types", len(types)))

	return s.bootstrap(a)
}

// resolveNatives binds every live type that needs a native binding.
func (s *State) resolveNatives(a *assembly.Assembly) error {
	for _, t := range a.Types() {
		if t.Missing() || !t.NeedsBinding() {
			continue
		}
		b, err := s.bindings.Bind(t)
		if err != nil {
			return err
		}
		s.natives[t] = b
		s.logger.Debug("native binding resolved",
			zap.String("type", t.FullName()),
			zap.String("host", b.HostTypeName()),
			zap.Bool("managed", b.Managed()))
	}
	return nil
}

// pruneMissing closes the missing set over inheritance and imports and
// excises the missing types from a and from the State.
func (s *State) pruneMissing(a *assembly.Assembly) error {
	assembly.PropagateMissing(a.Types())

	removed := a.RemoveMissing()
	if len(removed) == 0 {
		return nil
	}

	pruned := &errors.PrunedTypesError{Assembly: a.Name()}
	for _, t := range removed {
		pruned.Types = append(pruned.Types, errors.Missing(t.FullName(), t.MissingReason()))
		s.logger.Warn("type pruned",
			zap.String("type", t.FullName()),
			zap.String("reason", t.MissingReason()))

		if s.typeCache[t.FullName()] == t {
			delete(s.typeCache, t.FullName())
		}
		if k := t.Builtin(); k != assembly.BuiltinNone && s.builtins.Get(k) == t {
			s.builtins[k] = nil
		}
		delete(s.natives, t)
		s.methods.retireType(t)
	}
	s.logger.Debug(pruned.Error())

	if k, missing := s.builtins.FirstMissing(); missing {
		return errors.BuiltinMissing(k.FullName())
	}
	return nil
}

// bootstrap runs the assembly's entry point, if it has one.
func (s *State) bootstrap(a *assembly.Assembly) error {
	typeName, method := a.Entry()
	if typeName == "" {
		return nil
	}
	s.logger.Debug("bootstrap", zap.String("type", typeName), zap.String("method", method))
	_, err := s.InvokeStaticMethod(context.Background(), typeName, method)
	return err
}
