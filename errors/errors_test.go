package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:    PhaseBind,
				Kind:     KindBindingInvalid,
				Path:     []string{"Sprite", "draw"},
				Type:     "game.Sprite",
				HostType: "*gfx.Sprite",
				Detail:   "arity mismatch",
			},
			contains: []string{"[bind]", "binding_invalid", "Sprite.draw", "game.Sprite", "*gfx.Sprite", "arity mismatch"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindFormat,
			},
			contains: []string{"[decode]", "format"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseRuntime,
				Kind:   KindScript,
				Detail: "static init failed",
				Cause:  errors.New("attempt to index a nil value"),
			},
			contains: []string{"[runtime]", "script", "static init failed", "caused by", "attempt to index"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseLoad,
		Kind:  KindFormat,
		Cause: cause,
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := ManagedMismatch("game.Sprite", "*gfx.Sprite", true)

	if !errors.Is(err, &Error{Phase: PhaseBind, Kind: KindManagedMismatch}) {
		t.Error("expected match on phase and kind")
	}
	if errors.Is(err, &Error{Phase: PhaseBind, Kind: KindBindingMissing}) {
		t.Error("expected no match on different kind")
	}

	wrapped := fmt.Errorf("load: %w", err)
	if !errors.Is(wrapped, &Error{Phase: PhaseBind, Kind: KindManagedMismatch}) {
		t.Error("expected match through wrapping")
	}
}

func TestManagedMismatch_Detail(t *testing.T) {
	script := ManagedMismatch("a.B", "host", true)
	if !strings.Contains(script.Detail, "specifies managed while native bindings are unmanaged") {
		t.Errorf("unexpected detail %q", script.Detail)
	}

	native := ManagedMismatch("a.B", "host", false)
	if !strings.Contains(native.Detail, "specifies unmanaged while native bindings are managed") {
		t.Errorf("unexpected detail %q", native.Detail)
	}
}

func TestTiers(t *testing.T) {
	tests := []struct {
		err   error
		fatal bool
	}{
		{Format(PhaseDecode, "magic mismatch"), true},
		{BindingMissing("a.B"), true},
		{Ordinal("a.B", 5, 3), true},
		{BuiltinMissing("system.Null"), true},
		{Missing("a.B", "missing import a.C"), false},
		{InvalidInput(PhaseLoad, "empty"), false},
		{errors.New("plain"), false},
	}

	for _, tt := range tests {
		if got := IsFatal(tt.err); got != tt.fatal {
			t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.fatal)
		}
	}

	if !IsFormat(fmt.Errorf("wrap: %w", Format(PhaseDecode, "x"))) {
		t.Error("IsFormat should see through wrapping")
	}
	if IsFormat(BindingMissing("a.B")) {
		t.Error("binding error is not a format error")
	}
}

func TestPrunedTypesError(t *testing.T) {
	err := &PrunedTypesError{
		Assembly: "Main",
		Types: []*Error{
			Missing("game.A", "missing import game.B"),
			Missing("game.B", "incomplete"),
		},
	}

	msg := err.Error()
	for _, s := range []string{"pruned 2 type(s) from Main", "game.A: missing import game.B", "game.B: incomplete"} {
		if !strings.Contains(msg, s) {
			t.Errorf("message %q missing %q", msg, s)
		}
	}

	if !errors.Is(err, &PrunedTypesError{}) {
		t.Error("expected Is to match PrunedTypesError")
	}
}
