// Package engine wraps the embedded script VM.
//
// An Engine owns one gopher-lua state together with the bookkeeping the
// runtime keeps beside it:
//
//	Registries  - named tables inside the VM registry (classes, managed
//	              instance bookkeeping, interned member names, assemblies)
//	Counter     - bytes attributed to the instance, reported by collectgarbage("count")
//	Profiler    - wall time of top-level calls, disabled on Close
//
// # Collection
//
// The VM's memory is reclaimed by the Go collector. Engine keeps a separate
// collection flag that starts stopped: while it is stopped, the
// script-visible collectgarbage does nothing and registered OnCollect hooks
// (used to sweep retired method metadata) never run. The runtime resumes
// collection once the first assembly has been finalized.
//
// # Error handling
//
// Call runs functions in protected mode with an optional handler. The
// handler runs before the VM stack unwinds, so Frames still reports the
// failing call chain.
//
// # Thread Safety
//
// An Engine is NOT thread-safe and should be used by a single goroutine.
package engine
