package wasmnative

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/loom-runtime/assembly"
	"github.com/wippyai/loom-runtime/native"
)

// NewRuntime creates a wazero runtime for native modules. memoryLimitPages
// caps instance memory in 64KB pages; 0 keeps the wazero default.
func NewRuntime(ctx context.Context, memoryLimitPages uint32) wazero.Runtime {
	cfg := wazero.NewRuntimeConfig()
	if memoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(memoryLimitPages)
	}
	return wazero.NewRuntimeWithConfig(ctx, cfg)
}

// Binding implements the static natives of a script type with the exported
// functions of a WebAssembly module. Only numeric parameters and results
// are supported.
type Binding struct {
	instance api.Module
	exports  map[string]api.FunctionDefinition
	funcs    map[string]native.Func
	hostType string
	mu       sync.Mutex
}

// Load compiles and instantiates wasm under hostTypeName.
func Load(ctx context.Context, rt wazero.Runtime, hostTypeName string, wasm []byte) (*Binding, error) {
	compiled, err := rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", hostTypeName, err)
	}

	instance, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(hostTypeName))
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", hostTypeName, err)
	}

	b := &Binding{
		instance: instance,
		exports:  compiled.ExportedFunctions(),
		funcs:    make(map[string]native.Func),
		hostType: hostTypeName,
	}

	for name, def := range b.exports {
		if err := checkSignature(def); err != nil {
			Logger().Debug("skipping export",
				zap.String("module", hostTypeName),
				zap.String("export", name),
				zap.Error(err))
			continue
		}
		b.funcs[name] = native.Func{Fn: b.wrap(name, def), Static: true}
	}

	Logger().Debug("loaded native module",
		zap.String("module", hostTypeName),
		zap.Int("functions", len(b.funcs)))
	return b, nil
}

func (b *Binding) HostTypeName() string { return b.hostType }
func (b *Binding) Managed() bool        { return false }

func (b *Binding) Functions() map[string]native.Func {
	out := make(map[string]native.Func, len(b.funcs))
	for k, v := range b.funcs {
		out[k] = v
	}
	return out
}

// Exports lists the callable exports in name order.
func (b *Binding) Exports() []string {
	names := make([]string, 0, len(b.funcs))
	for name := range b.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate requires every native member of t to be a static method backed
// by an export of the same arity.
func (b *Binding) Validate(t *assembly.Type) error {
	for _, m := range t.Members() {
		if !m.IsNative() {
			continue
		}
		if !m.IsStatic() || !m.IsMethod() {
			return fmt.Errorf("%s: wasm natives must be static methods", m.FullMemberName())
		}
		if _, ok := b.funcs[m.Name()]; !ok {
			return fmt.Errorf("%s: module does not export %q", m.FullMemberName(), m.Name())
		}
		if want := len(b.exports[m.Name()].ParamTypes()); m.ParamCount() != want {
			return fmt.Errorf("%s: declared %d parameters, export takes %d", m.FullMemberName(), m.ParamCount(), want)
		}
	}
	return nil
}

// Close releases the module instance.
func (b *Binding) Close(ctx context.Context) error {
	return b.instance.Close(ctx)
}

func checkSignature(def api.FunctionDefinition) error {
	for _, types := range [][]api.ValueType{def.ParamTypes(), def.ResultTypes()} {
		for _, vt := range types {
			switch vt {
			case api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64:
			default:
				return fmt.Errorf("unsupported value type %s", api.ValueTypeName(vt))
			}
		}
	}
	return nil
}

func (b *Binding) wrap(name string, def api.FunctionDefinition) lua.LGFunction {
	params := def.ParamTypes()
	results := def.ResultTypes()

	return func(L *lua.LState) int {
		stack := make([]uint64, len(params))
		for i, vt := range params {
			n := L.CheckNumber(i + 1)
			stack[i] = encode(vt, float64(n))
		}

		ctx := L.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		// Instances are not safe for concurrent calls.
		b.mu.Lock()
		out, err := b.instance.ExportedFunction(name).Call(ctx, stack...)
		b.mu.Unlock()
		if err != nil {
			L.RaiseError("%s.%s: %v", b.hostType, name, err)
			return 0
		}

		for i, vt := range results {
			L.Push(lua.LNumber(decode(vt, out[i])))
		}
		return len(results)
	}
}

func encode(vt api.ValueType, n float64) uint64 {
	switch vt {
	case api.ValueTypeI32:
		return api.EncodeI32(int32(n))
	case api.ValueTypeI64:
		return api.EncodeI64(int64(n))
	case api.ValueTypeF32:
		return api.EncodeF32(float32(n))
	default:
		return api.EncodeF64(n)
	}
}

func decode(vt api.ValueType, v uint64) float64 {
	switch vt {
	case api.ValueTypeI32:
		return float64(api.DecodeI32(v))
	case api.ValueTypeI64:
		return float64(int64(v))
	case api.ValueTypeF32:
		return float64(api.DecodeF32(v))
	default:
		return api.DecodeF64(v)
	}
}
