package trace

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

const (
	// BufferSize is the size of the fixed report message buffer.
	BufferSize = 2048
	// DefaultMessageCap bounds the formatted report message.
	DefaultMessageCap = 2046
	// TraceMessageCap bounds the message recorded by the VM error handler.
	TraceMessageCap = 2040
)

// fixedBuffer is an io.Writer over a fixed array that silently drops
// bytes beyond its cap.
type fixedBuffer struct {
	buf   [BufferSize]byte
	n     int
	limit int
}

func (b *fixedBuffer) Write(p []byte) (int, error) {
	b.n += copy(b.buf[b.n:b.limit], p)
	return len(p), nil
}

func (b *fixedBuffer) String() string { return string(b.buf[:b.n]) }

func (b *fixedBuffer) reset(limit int) {
	b.n = 0
	b.limit = limit
}

// Reporter formats fatal runtime errors and terminates the process.
type Reporter struct {
	logger  *zap.Logger
	capture func() []Frame
	dump    func()
	exit    func(int)
	message string
	frames  []Frame
	buf     fixedBuffer
	limit   int
	mu      sync.Mutex
}

// ReporterConfig wires a Reporter to its VM.
type ReporterConfig struct {
	Logger *zap.Logger
	// Capture walks the live VM stack; used when no trace was recorded.
	Capture func() []Frame
	// DumpStack logs the VM value stack.
	DumpStack func()
	// Exit terminates the process. Defaults to os.Exit.
	Exit func(int)
	// MessageCap bounds the report message, at most BufferSize.
	MessageCap int
}

func NewReporter(cfg ReporterConfig) *Reporter {
	r := &Reporter{
		logger:  cfg.Logger,
		capture: cfg.Capture,
		dump:    cfg.DumpStack,
		exit:    cfg.Exit,
		limit:   cfg.MessageCap,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.exit == nil {
		r.exit = os.Exit
	}
	if r.limit <= 0 || r.limit > BufferSize {
		r.limit = DefaultMessageCap
	}
	return r
}

// Record stores the message and frames captured by the VM error handler.
func (r *Reporter) Record(message string, frames []Frame) {
	if len(message) > TraceMessageCap {
		message = message[:TraceMessageCap]
	}
	r.mu.Lock()
	r.message = message
	r.frames = frames
	r.mu.Unlock()
}

// Recorded returns the pending trace.
func (r *Reporter) Recorded() (string, []Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.message, append([]Frame(nil), r.frames...)
}

// Clear drops a pending trace after the error it describes was handled.
func (r *Reporter) Clear() {
	r.Record("", nil)
}

// Format renders the report message into the fixed buffer.
func (r *Reporter) Format(format string, args ...any) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.format(format, args...)
}

func (r *Reporter) format(format string, args ...any) string {
	r.buf.reset(r.limit)
	fmt.Fprintf(&r.buf, format, args...)
	return r.buf.String()
}

// Report logs a fatal runtime error with the VM stack and the call trace,
// then terminates with status 1. When no trace was recorded, the live
// stack is captured now.
func (r *Reporter) Report(format string, args ...any) {
	r.mu.Lock()

	r.logger.Error("=====================")
	r.logger.Error("=   RUNTIME ERROR   =")
	r.logger.Error("=====================")

	if r.dump != nil {
		r.dump()
	}

	if msg := r.format(format, args...); msg != "" {
		r.logger.Error(msg)
	}
	if r.message != "" {
		r.logger.Error(r.message)
	}
	r.message = ""

	frames := r.frames
	r.frames = nil
	if len(frames) == 0 && r.capture != nil {
		frames = r.capture()
	}

	r.logger.Error("Stacktrace:")
	for _, f := range frames {
		r.logger.Error(f.String())
	}
	r.logger.Error("Fatal Runtime Error")

	r.mu.Unlock()
	r.exit(1)
}
