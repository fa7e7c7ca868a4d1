package trace

import (
	"fmt"

	"github.com/wippyai/loom-runtime/assembly"
)

const (
	// NativeSource is reported for frames of native members.
	NativeSource = "[NATIVE]"
	// UnknownLine is reported when the VM has no line information.
	UnknownLine = 0
)

// RawFrame is one VM call frame as walked from the innermost call outward.
type RawFrame struct {
	// Callable is the function object active in the frame.
	Callable any
	Source   string
	Line     int
	// Native is set for host functions.
	Native bool
}

// Lookup resolves a callable to the member it implements.
type Lookup func(callable any) (*assembly.Member, bool)

// Frame is a user-visible call frame.
type Frame struct {
	Member *assembly.Member
	Name   string
	Source string
	Line   int
}

func (f Frame) String() string {
	return fmt.Sprintf("%s : %s : %d", f.Name, f.Source, f.Line)
}

// Capture converts raw frames into a traceback, innermost first. Frames
// whose callable is unknown to lookup are VM machinery and are skipped. A
// native frame resolving to the same member as the previously kept frame
// is a trampoline for that call and is dropped.
func Capture(raw []RawFrame, lookup Lookup) []Frame {
	var (
		frames []Frame
		last   *assembly.Member
	)
	for _, rf := range raw {
		m, ok := lookup(rf.Callable)
		if !ok || m == nil {
			continue
		}
		if rf.Native && m == last {
			continue
		}
		last = m

		f := Frame{
			Member: m,
			Name:   m.FullMemberName(),
			Source: rf.Source,
			Line:   rf.Line,
		}
		if m.IsNative() {
			f.Source = NativeSource
		}
		if f.Line < 0 {
			f.Line = UnknownLine
		}
		frames = append(frames, f)
	}
	return frames
}
