package runtime

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/loom-runtime/engine"
	"github.com/wippyai/loom-runtime/errors"
	"github.com/wippyai/loom-runtime/trace"
)

const (
	vmTypeName = "system.VM"
	tickField  = "_tick"
)

// InvokeStaticMethod calls a static script method and returns its results.
// A script error is reported as a fatal runtime error before it is
// returned.
func (s *State) InvokeStaticMethod(ctx context.Context, typeName, method string, args ...lua.LValue) ([]lua.LValue, error) {
	s.requireUsable("invoke")
	if s.poisoned != nil {
		return nil, s.poisoned
	}

	t := s.typeCache[typeName]
	if t == nil {
		return nil, errors.New(errors.PhaseRuntime, errors.KindPrecondition).
			Type(typeName).
			Detail("unknown type").
			Build()
	}
	m := t.FindMember(method)
	switch {
	case m == nil:
		return nil, errors.New(errors.PhaseRuntime, errors.KindPrecondition).
			Type(typeName).
			Path(method).
			Detail("unknown member").
			Build()
	case !m.IsMethod():
		return nil, errors.New(errors.PhaseRuntime, errors.KindPrecondition).
			Type(typeName).
			Path(method).
			Detail("member is a %s, not a method", m.Kind()).
			Build()
	case !m.IsStatic():
		return nil, errors.New(errors.PhaseRuntime, errors.KindPrecondition).
			Type(typeName).
			Path(method).
			Detail("method is not static").
			Build()
	}

	class, ok := s.classes[t]
	if !ok {
		return nil, errors.New(errors.PhaseRuntime, errors.KindPrecondition).
			Type(typeName).
			Detail("type is not declared").
			Build()
	}
	fn := s.engine.L.GetField(class, method)
	return s.call(ctx, typeName+"."+method, fn, args...)
}

// Tick runs system.VM._tick when a script installed one.
func (s *State) Tick(ctx context.Context) error {
	s.requireUsable("tick")
	if s.poisoned != nil {
		return s.poisoned
	}

	class := s.Class(vmTypeName)
	if class == nil {
		return nil
	}
	fn, ok := class.RawGetString(tickField).(*lua.LFunction)
	if !ok {
		return nil
	}
	_, err := s.call(ctx, vmTypeName+"."+tickField, fn)
	return err
}

func (s *State) call(ctx context.Context, name string, fn lua.LValue, args ...lua.LValue) ([]lua.LValue, error) {
	L := s.engine.L

	if ctx != nil {
		prev := L.Context()
		L.SetContext(ctx)
		defer func() {
			if prev != nil {
				L.SetContext(prev)
			} else {
				L.RemoveContext()
			}
		}()
	}

	base := L.GetTop()
	if err := s.engine.Call(fn, lua.MultRet, s.handler, args...); err != nil {
		L.SetTop(base)
		s.reporter.Report("Failed to invoke %s", name)
		return nil, errors.New(errors.PhaseRuntime, errors.KindScript).
			Detail("invoke %s", name).
			Cause(err).
			Build()
	}

	n := L.GetTop() - base
	rets := make([]lua.LValue, n)
	for i := range rets {
		rets[i] = L.Get(base + 1 + i)
	}
	L.SetTop(base)
	return rets, nil
}

// traceback is the VM error handler. It records the failing call trace
// while the erroring frames are still live.
func (s *State) traceback(L *lua.LState) int {
	msg := L.Get(1)
	s.reporter.Record(lua.LVAsString(msg), s.captureTrace())
	if msg.Type() != lua.LTString {
		msg = lua.LString(msg.String())
	}
	L.Push(msg)
	return 1
}

func (s *State) captureTrace() []trace.Frame {
	return trace.Capture(s.engine.Frames(), s.methods.lookup)
}

// TriggerRuntimeError reports a fatal runtime error from host code and
// terminates the process.
func (s *State) TriggerRuntimeError(format string, args ...any) {
	s.reporter.Report(format, args...)
}

// DumpManagedNatives logs every live managed instance.
func (s *State) DumpManagedNatives() {
	s.requireUsable("dump managed natives")

	scripts := s.engine.Registry(engine.RegistryNativeScript)
	versions := s.engine.Registry(engine.RegistryManagedVersion)

	count := 0
	s.engine.Registry(engine.RegistryManagedUserdata).ForEach(func(k, _ lua.LValue) {
		ud, ok := k.(*lua.LUserData)
		if !ok {
			return
		}
		count++
		s.logger.Info("managed native",
			zap.String("type", lua.LVAsString(scripts.RawGet(ud))),
			zap.String("host", fmt.Sprintf("%T", ud.Value)),
			zap.Int("version", int(lua.LVAsNumber(versions.RawGet(ud)))))
	})
	s.logger.Info("managed natives", zap.Int("count", count))
}
