// Package runtime hosts compiled script assemblies inside an embedded VM.
//
// # Quick Start
//
//	reg := runtime.NewRegistry()
//	st := runtime.NewState(runtime.Options{
//	    Config:   cfg,
//	    Bindings: runtime.DefaultBindings(reg),
//	    Registry: reg,
//	    Logger:   logger,
//	})
//	st.Open()
//	defer st.Close()
//
//	if _, err := st.LoadSystem(); err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := st.LoadExecutable("Main", false); err != nil {
//	    log.Fatal(err)
//	}
//
// # Loading
//
// An assembly moves through the pipeline
//
//	cache -> native resolution -> missing pruning -> declare -> initialize -> static init -> bootstrap
//
// Every type finishes a step before any type starts the next one, and
// each step visits the types in declaration order. Types that inherit from
// or import a missing type are pruned with a warning; the rest of the
// assembly still loads. Any other failure is fatal: the State refuses
// further loads and calls, and Err reports the cause.
//
// The system assembly (see SystemAssembly) must load first. It provides the
// well-known types every later assembly relies on.
//
// # Classes
//
// Each type becomes a class table registered in the VM under its full name
// and exposed as a global by its short name, unless that global already
// holds a value that is not a class, such as the string library. Instances
// are created with Class.new(...), which assigns field defaults base-first,
// creates the host value of managed natives and calls constructor. Static
// methods are called as Class.method(...), instance methods as
// obj:method(...).
//
// # Errors
//
// A script error escaping InvokeStaticMethod, Tick or an assembly's entry
// point is a fatal runtime error: it is logged with the VM stack and the
// script call trace, then the process exits. Options.Exit replaces the
// exit for embedding and tests.
package runtime
