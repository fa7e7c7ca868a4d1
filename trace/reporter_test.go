package trace

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func messages(logs *observer.ObservedLogs) []string {
	var out []string
	for _, e := range logs.All() {
		out = append(out, e.Message)
	}
	return out
}

func TestReporter_Report(t *testing.T) {
	logger, logs := newObserved()

	var exitCode = -1
	dumped := false
	r := NewReporter(ReporterConfig{
		Logger:    logger,
		DumpStack: func() { dumped = true },
		Exit:      func(code int) { exitCode = code },
	})

	r.Record("attempt to index a nil value", []Frame{
		{Name: "game.Player:jump", Source: "game.Player", Line: 12},
		{Name: "game.Player:update", Source: "game.Player", Line: 4},
	})
	r.Report("error calling %s", "game.Main:main")

	if exitCode != 1 {
		t.Errorf("expected exit code 1, got %d", exitCode)
	}
	if !dumped {
		t.Error("stack dump not called")
	}

	got := strings.Join(messages(logs), "\n")
	for _, want := range []string{
		"=   RUNTIME ERROR   =",
		"error calling game.Main:main",
		"attempt to index a nil value",
		"Stacktrace:",
		"game.Player:jump : game.Player : 12",
		"game.Player:update : game.Player : 4",
		"Fatal Runtime Error",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}

	for _, e := range logs.All() {
		if e.Level != zapcore.ErrorLevel {
			t.Errorf("expected error level, got %v for %q", e.Level, e.Message)
		}
	}

	if msg, frames := r.Recorded(); msg != "" || frames != nil {
		t.Error("report should consume the recorded trace")
	}
}

func TestReporter_LazyCapture(t *testing.T) {
	logger, logs := newObserved()

	captured := 0
	r := NewReporter(ReporterConfig{
		Logger: logger,
		Capture: func() []Frame {
			captured++
			return []Frame{{Name: "game.Physics:step", Source: NativeSource}}
		},
		Exit: func(int) {},
	})

	r.Report("assertion failed")
	if captured != 1 {
		t.Fatalf("expected lazy capture, got %d captures", captured)
	}
	if !strings.Contains(strings.Join(messages(logs), "\n"), "game.Physics:step : [NATIVE] : 0") {
		t.Error("lazily captured frame not reported")
	}

	r.Record("", []Frame{{Name: "x:y"}})
	r.Report("again")
	if captured != 1 {
		t.Error("recorded frames should suppress capture")
	}
}

func TestReporter_FixedBuffer(t *testing.T) {
	r := NewReporter(ReporterConfig{Exit: func(int) {}})

	long := strings.Repeat("x", 4000)
	if got := r.Format("%s", long); len(got) != DefaultMessageCap {
		t.Errorf("expected message capped at %d, got %d", DefaultMessageCap, len(got))
	}
	if got := r.Format("short %d", 1); got != "short 1" {
		t.Errorf("buffer not reset between uses: %q", got)
	}

	small := NewReporter(ReporterConfig{MessageCap: 8, Exit: func(int) {}})
	if got := small.Format("%s", "0123456789"); got != "01234567" {
		t.Errorf("unexpected capped message %q", got)
	}

	oversized := NewReporter(ReporterConfig{MessageCap: 1 << 20, Exit: func(int) {}})
	if got := oversized.Format("%s", long); len(got) != DefaultMessageCap {
		t.Errorf("cap above buffer size should fall back to default, got %d", len(got))
	}
}

func TestReporter_RecordCap(t *testing.T) {
	r := NewReporter(ReporterConfig{Exit: func(int) {}})
	r.Record(strings.Repeat("m", 3000), nil)
	if msg, _ := r.Recorded(); len(msg) != TraceMessageCap {
		t.Errorf("expected trace message capped at %d, got %d", TraceMessageCap, len(msg))
	}

	r.Clear()
	if msg, _ := r.Recorded(); msg != "" {
		t.Error("Clear should drop the message")
	}
}
