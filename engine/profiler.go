package engine

import (
	"fmt"
	"sort"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Sample aggregates the top-level calls into one function.
type Sample struct {
	Name  string
	Calls int
	Total time.Duration
}

// Profiler aggregates the wall time of calls made through Engine.Call.
type Profiler struct {
	samples map[string]*Sample
	mu      sync.Mutex
	enabled bool
}

func newProfiler() *Profiler {
	return &Profiler{samples: make(map[string]*Sample)}
}

func (p *Profiler) Enable() {
	p.mu.Lock()
	p.enabled = true
	p.mu.Unlock()
}

func (p *Profiler) Disable() {
	p.mu.Lock()
	p.enabled = false
	p.mu.Unlock()
}

func (p *Profiler) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Reset drops all samples.
func (p *Profiler) Reset() {
	p.mu.Lock()
	p.samples = make(map[string]*Sample)
	p.mu.Unlock()
}

// Samples returns the samples ordered by total time, longest first.
func (p *Profiler) Samples() []Sample {
	p.mu.Lock()
	out := make([]Sample, 0, len(p.samples))
	for _, s := range p.samples {
		out = append(out, *s)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (p *Profiler) record(fn lua.LValue, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}

	name := functionName(fn)
	s, ok := p.samples[name]
	if !ok {
		s = &Sample{Name: name}
		p.samples[name] = s
	}
	s.Calls++
	s.Total += d
}

func functionName(fn lua.LValue) string {
	lf, ok := fn.(*lua.LFunction)
	if !ok {
		return fn.String()
	}
	if lf.IsG || lf.Proto == nil {
		return "[NATIVE]"
	}
	return fmt.Sprintf("%s:%d", lf.Proto.SourceName, lf.Proto.LineDefined)
}
