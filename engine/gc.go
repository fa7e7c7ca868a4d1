package engine

import (
	"runtime"

	lua "github.com/yuin/gopher-lua"
)

// GCRunning reports whether script-visible collection is enabled.
func (e *Engine) GCRunning() bool { return e.gcRunning }

// ResumeGC enables collection. Loading runs with it stopped so retired
// metadata is never swept while a type cohort is half built.
func (e *Engine) ResumeGC() { e.gcRunning = true }

// StopGC disables collection.
func (e *Engine) StopGC() { e.gcRunning = false }

// OnCollect registers fn to run on every collection cycle.
func (e *Engine) OnCollect(fn func()) {
	e.onCollect = append(e.onCollect, fn)
}

// Collect runs a collection cycle if collection is enabled. It reports
// whether a cycle ran.
func (e *Engine) Collect() bool {
	if !e.gcRunning {
		return false
	}
	for _, fn := range e.onCollect {
		fn()
	}
	runtime.GC()
	return true
}

// collectGarbage implements the script-visible collectgarbage.
func (e *Engine) collectGarbage(L *lua.LState) int {
	opt := L.OptString(1, "collect")
	switch opt {
	case "collect", "step":
		L.Push(lua.LBool(e.Collect()))
		return 1
	case "count":
		kb := float64(e.alloc.Allocated()) / 1024
		L.Push(lua.LNumber(kb))
		return 1
	case "stop":
		e.StopGC()
		L.Push(lua.LNumber(0))
		return 1
	case "restart":
		e.ResumeGC()
		L.Push(lua.LNumber(0))
		return 1
	case "isrunning":
		L.Push(lua.LBool(e.gcRunning))
		return 1
	}
	L.ArgError(1, "invalid option '"+opt+"'")
	return 0
}
