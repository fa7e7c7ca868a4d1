package engine

import (
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/loom-runtime/trace"
)

// Named registries created inside the VM registry table.
const (
	RegistryClasses         = "classes"
	RegistryManagedVersion  = "managed_version"
	RegistryManagedUserdata = "managed_userdata"
	RegistryNativeScript    = "native_script"
	RegistryNativeDelegates = "native_delegates"
	RegistryMemberNames     = "member_names"
	RegistryAssemblies      = "assemblies"
)

var registryNames = []string{
	RegistryClasses,
	RegistryManagedVersion,
	RegistryManagedUserdata,
	RegistryNativeScript,
	RegistryNativeDelegates,
	RegistryMemberNames,
	RegistryAssemblies,
}

// TracebackGlobal is the global holding the VM error handler.
const TracebackGlobal = "__ls_traceback"

// Config holds configuration for VM creation.
type Config struct {
	// CallStackSize bounds nested calls. 0 keeps the gopher-lua default.
	CallStackSize int
	// RegistrySize is the initial value stack size.
	RegistrySize int
	// RegistryMaxSize lets the value stack grow up to this size. 0 means fixed.
	RegistryMaxSize int
	// SkipStdlib leaves the standard libraries closed.
	SkipStdlib bool
}

// Engine owns one embedded VM. It is not safe for concurrent use.
type Engine struct {
	L          *lua.LState
	alloc      *Counter
	registries map[string]*lua.LTable
	onCollect  []func()
	profiler   *Profiler
	maxFrames  int
	gcRunning  bool
	closed     bool
}

// Open creates a VM with its named registries. The collector starts
// stopped; call ResumeGC once loading is done.
func Open(cfg Config) *Engine {
	opts := lua.Options{
		CallStackSize:   cfg.CallStackSize,
		RegistrySize:    cfg.RegistrySize,
		RegistryMaxSize: cfg.RegistryMaxSize,
		SkipOpenLibs:    true,
	}
	if opts.RegistryMaxSize > 0 && opts.RegistrySize > opts.RegistryMaxSize {
		opts.RegistrySize = opts.RegistryMaxSize
	}

	e := &Engine{
		L:          lua.NewState(opts),
		alloc:      &Counter{},
		registries: make(map[string]*lua.LTable, len(registryNames)),
		profiler:   newProfiler(),
		maxFrames:  cfg.CallStackSize,
	}
	if e.maxFrames <= 0 {
		e.maxFrames = lua.CallStackSize
	}

	if !cfg.SkipStdlib {
		e.L.OpenLibs()
	}
	e.L.SetGlobal("collectgarbage", e.L.NewFunction(e.collectGarbage))

	reg := e.L.G.Registry
	for _, name := range registryNames {
		tbl := e.L.NewTable()
		reg.RawSetString(name, tbl)
		e.registries[name] = tbl
	}

	debugf("engine opened (stack=%d registry=%d/%d)", cfg.CallStackSize, cfg.RegistrySize, cfg.RegistryMaxSize)
	return e
}

// State returns the underlying VM state.
func (e *Engine) State() *lua.LState { return e.L }

// Allocator returns the instance's byte counter.
func (e *Engine) Allocator() *Counter { return e.alloc }

// Profiler returns the call profiler.
func (e *Engine) Profiler() *Profiler { return e.profiler }

// Registry returns the named registry table, or nil.
func (e *Engine) Registry(name string) *lua.LTable {
	return e.registries[name]
}

// Closed reports whether Close has run.
func (e *Engine) Closed() bool { return e.closed }

// Close disables the profiler and releases the VM.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.profiler.Disable()
	e.L.Close()
	e.alloc.reset()
	e.onCollect = nil
}

// SetTraceback installs the VM error handler under TracebackGlobal and
// returns it for use with Call.
func (e *Engine) SetTraceback(fn lua.LGFunction) *lua.LFunction {
	f := e.L.NewFunction(fn)
	e.L.SetGlobal(TracebackGlobal, f)
	return f
}

// Traceback returns the installed error handler, or nil.
func (e *Engine) Traceback() *lua.LFunction {
	f, _ := e.L.GetGlobal(TracebackGlobal).(*lua.LFunction)
	return f
}

// Compile loads src as a chunk named chunk without running it. The source
// is charged to the allocator for the lifetime of the VM.
func (e *Engine) Compile(src, chunk string) (*lua.LFunction, error) {
	fn, err := e.L.Load(strings.NewReader(src), chunk)
	if err != nil {
		return nil, err
	}
	e.alloc.Realloc(0, len(src))
	return fn, nil
}

// Eval compiles src and returns its first result.
func (e *Engine) Eval(src, chunk string) (lua.LValue, error) {
	fn, err := e.Compile(src, chunk)
	if err != nil {
		return lua.LNil, err
	}
	if err := e.Call(fn, 1, nil); err != nil {
		return lua.LNil, err
	}
	ret := e.L.Get(-1)
	e.L.Pop(1)
	return ret, nil
}

// Call invokes fn in protected mode, leaving nret results on the stack.
// handler, when set, runs with the error value before the stack unwinds.
func (e *Engine) Call(fn lua.LValue, nret int, handler *lua.LFunction, args ...lua.LValue) error {
	start := time.Now()
	err := e.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    nret,
		Protect: true,
		Handler: handler,
	}, args...)
	e.profiler.record(fn, time.Since(start))
	return err
}

// Frames walks the active call frames, innermost first. The walk stops at
// the outermost frame: past a tail call GetStack keeps returning it.
func (e *Engine) Frames() []trace.RawFrame {
	var frames []trace.RawFrame
	for level := 0; level < e.maxFrames; level++ {
		dbg, ok := e.L.GetStack(level)
		if !ok {
			break
		}
		fn, err := e.L.GetInfo("fSl", dbg, lua.LNil)
		if err != nil {
			break
		}
		lf, _ := fn.(*lua.LFunction)
		frames = append(frames, trace.RawFrame{
			Callable: lf,
			Native:   lf != nil && lf.IsG,
			Source:   dbg.Source,
			Line:     dbg.CurrentLine,
		})
		if dbg.What == "main" {
			break
		}
	}
	return frames
}

// DumpStack logs every value on the VM stack, top first.
func (e *Engine) DumpStack(l *zap.Logger) {
	top := e.L.GetTop()
	l.Error(fmt.Sprintf("Lua stack (%d)", top))
	for i := top; i >= 1; i-- {
		v := e.L.Get(i)
		l.Error(fmt.Sprintf("  %d: %s %s", i, v.Type(), describe(v)))
	}
}

func describe(v lua.LValue) string {
	switch val := v.(type) {
	case lua.LString:
		s := string(val)
		if len(s) > 64 {
			s = s[:64] + "..."
		}
		return fmt.Sprintf("%q", s)
	case *lua.LTable:
		if name, ok := val.RawGetString("__name").(lua.LString); ok {
			return fmt.Sprintf("table (%s)", string(name))
		}
	}
	return v.String()
}
