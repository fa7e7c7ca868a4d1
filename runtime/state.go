package runtime

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wippyai/loom-runtime/assembly"
	"github.com/wippyai/loom-runtime/config"
	"github.com/wippyai/loom-runtime/engine"
	"github.com/wippyai/loom-runtime/errors"
	"github.com/wippyai/loom-runtime/native"
	"github.com/wippyai/loom-runtime/trace"
)

// Phase is the lifecycle position of a State.
type Phase uint8

const (
	PhaseUnopened Phase = iota
	PhaseOpen
	PhaseLoading
	PhaseDeclared
	PhaseInitialized
	PhaseReady
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseUnopened:
		return "unopened"
	case PhaseOpen:
		return "open"
	case PhaseLoading:
		return "loading"
	case PhaseDeclared:
		return "declared"
	case PhaseInitialized:
		return "initialized"
	case PhaseReady:
		return "ready"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Options configures a State.
type Options struct {
	// Config defaults to config.Default().
	Config *config.Config
	// Bindings is shared read-only between states once loading begins.
	Bindings *native.Table
	// Registry receives the State on Open. A private registry is created
	// when nil.
	Registry *Registry
	// Logger defaults to the package logger.
	Logger *zap.Logger
	// Exit terminates the process after a fatal runtime report.
	Exit func(int)
}

// State wraps one embedded VM and the assemblies loaded into it.
// It is not safe for concurrent use.
type State struct {
	cfg      *config.Config
	bindings *native.Table
	registry *Registry
	logger   *zap.Logger
	exit     func(int)

	engine   *engine.Engine
	reporter *trace.Reporter
	handler  *lua.LFunction
	methods  *methodCache
	life     lifecycle

	assemblies []*assembly.Assembly
	typeCache  map[string]*assembly.Type
	builtins   assembly.Builtins
	names      map[*assembly.Member]lua.LString
	classes    map[*assembly.Type]*lua.LTable
	natives    map[*assembly.Type]native.Binding
	defaults   map[*assembly.Member]*lua.LFunction

	commandLine []string

	poisoned       error
	managedVersion int
	phase          Phase
	compiling      bool
}

// NewState creates an unopened State.
func NewState(opts Options) *State {
	s := &State{
		cfg:      opts.Config,
		bindings: opts.Bindings,
		registry: opts.Registry,
		logger:   opts.Logger,
		exit:     opts.Exit,
	}
	if s.cfg == nil {
		s.cfg = config.Default()
	}
	if s.bindings == nil {
		s.bindings = native.NewTable()
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.logger == nil {
		s.logger = Logger()
	}
	s.logger = s.logger.Named("LuaState")
	s.life = &classBuilder{s: s}
	return s
}

// Open creates the VM. Opening a State twice is a precondition violation.
func (s *State) Open() {
	if s.phase != PhaseUnopened {
		panic(errors.Precondition(errors.PhaseRuntime, "open: state is %s", s.phase))
	}

	s.engine = engine.Open(engine.Config{
		CallStackSize:   s.cfg.VM.CallStackSize,
		RegistrySize:    s.cfg.VM.RegistrySize,
		RegistryMaxSize: s.cfg.VM.RegistryMaxSize,
		SkipStdlib:      s.cfg.VM.SkipStdlib,
	})
	if err := s.registry.insert(s.engine.L, s); err != nil {
		s.engine.Close()
		panic(err)
	}

	s.methods = newMethodCache()
	s.typeCache = make(map[string]*assembly.Type)
	s.names = make(map[*assembly.Member]lua.LString)
	s.classes = make(map[*assembly.Type]*lua.LTable)
	s.natives = make(map[*assembly.Type]native.Binding)
	s.defaults = make(map[*assembly.Member]*lua.LFunction)

	s.reporter = trace.NewReporter(trace.ReporterConfig{
		Logger:     s.logger,
		Capture:    s.captureTrace,
		DumpStack:  func() { s.engine.DumpStack(s.logger) },
		Exit:       s.exit,
		MessageCap: s.cfg.Trace.MessageCap,
	})
	s.handler = s.engine.SetTraceback(s.traceback)
	s.engine.OnCollect(func() {
		if n := s.methods.sweep(); n > 0 {
			s.logger.Debug("retired method metadata", zap.Int("count", n))
		}
	})

	s.phase = PhaseOpen
	s.logger.Debug("state opened")
}

// Close tears down the VM. Closing a State that is not open is a
// precondition violation.
func (s *State) Close() {
	if s.phase == PhaseUnopened || s.phase == PhaseClosed {
		panic(errors.Precondition(errors.PhaseRuntime, "close: state is %s", s.phase))
	}

	for t, b := range s.natives {
		if c, ok := b.(native.StateCloser); ok {
			if err := c.CloseState(s.engine.L); err != nil {
				s.logger.Warn("native binding teardown failed",
					zap.String("type", t.FullName()),
					zap.Error(err))
			}
		}
	}

	s.registry.remove(s.engine.L)
	s.methods.close()
	s.engine.Close()

	s.assemblies = nil
	s.typeCache = nil
	s.classes = nil
	s.natives = nil
	s.defaults = nil
	s.names = nil
	s.phase = PhaseClosed
	s.logger.Debug("state closed")
}

// Phase returns the lifecycle position.
func (s *State) Phase() Phase { return s.phase }

// Err returns the fatal load error that left the State unusable, if any.
func (s *State) Err() error { return s.poisoned }

// VM returns the raw VM handle.
func (s *State) VM() *lua.LState { return s.engine.L }

// Engine returns the VM wrapper.
func (s *State) Engine() *engine.Engine { return s.engine }

// Config returns the effective configuration.
func (s *State) Config() *config.Config { return s.cfg }

// SetCompiling marks the State as used by a compiler: text loads then
// stop after caching types.
func (s *State) SetCompiling(compiling bool) { s.compiling = compiling }

func (s *State) Compiling() bool { return s.compiling }

// SetCommandLine stores the process arguments scripts read through
// VM.getCommandLine.
func (s *State) SetCommandLine(args []string) {
	s.commandLine = append([]string(nil), args...)
}

// CommandLine returns a copy of the stored process arguments.
func (s *State) CommandLine() []string {
	return append([]string{}, s.commandLine...)
}

// AllocatedBytes returns the bytes attributed to the VM.
func (s *State) AllocatedBytes() int64 {
	if s.engine == nil {
		return 0
	}
	return s.engine.Allocator().Allocated()
}

// InternedName returns the pre-interned VM string of a member name.
func (s *State) InternedName(m *assembly.Member) lua.LString {
	if n, ok := s.names[m]; ok {
		return n
	}
	return lua.LString(m.Name())
}

// LookupMethod resolves a VM function to the member it implements.
func (s *State) LookupMethod(fn *lua.LFunction) (*assembly.Member, bool) {
	return s.methods.lookup(fn)
}

func (s *State) requireUsable(op string) {
	switch s.phase {
	case PhaseUnopened, PhaseClosed:
		panic(errors.Precondition(errors.PhaseRuntime, "%s: state is %s", op, s.phase))
	}
}

// fail records a fatal error so later calls refuse to run.
func (s *State) fail(err error) error {
	if errors.IsFatal(err) && s.poisoned == nil {
		s.poisoned = err
		s.logger.Error("fatal load error, state unusable", zap.Error(err))
	}
	return err
}
