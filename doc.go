// Package loomruntime loads compiled script assemblies into an embedded
// stack-based bytecode VM and binds host-implemented native types into the
// script-visible class graph.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	loomruntime/        Root package with Allocator and ByteProvider interfaces
//	├── container/      Executable container codec (magic, version, zlib payload)
//	├── assembly/       Reflected type graph: assemblies, types, members, pruning
//	├── native/         Native binding table and reflection-based bindings
//	├── wasmnative/     Native bindings implemented by WebAssembly exports
//	├── engine/         Embedded VM wrapper (gopher-lua) and its registries
//	├── arena/          Generation-checked handle arena for metadata caches
//	├── trace/          Traceback capture and fatal-error reporting
//	├── runtime/        VM state: load pipeline, declare/initialize/static-init
//	├── config/         Runtime configuration (TOML + environment)
//	├── errors/         Structured error types
//	└── cmd/loom/       Command line runner, packer and inspector
//
// # Quick Start
//
//	reg := runtime.NewRegistry()
//	st := runtime.NewState(runtime.Options{
//	    Registry: reg,
//	    Bindings: runtime.DefaultBindings(reg),
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
// # Load Pipeline
//
// Every assembly goes through the same stages: decode, cache (ordinal
// table and well-known types), native resolution, missing-type propagation
// and compaction, declare, initialize, static-init, validation and
// bootstrap. Declare, initialize and static-init each run across the whole
// type cohort of an assembly before the next stage starts.
//
// # Thread Safety
//
// A VM state is single-threaded. Separate states may run on separate
// goroutines; the process registry and the native binding table are the
// only shared structures and both are synchronized.
package loomruntime
