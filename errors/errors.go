package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in the load pipeline the error occurred
type Phase string

const (
	PhaseDecode     Phase = "decode"     // executable container
	PhaseLoad       Phase = "load"       // assembly document parsing
	PhaseResolve    Phase = "resolve"    // type graph resolution
	PhaseBind       Phase = "bind"       // native binding lookup/validation
	PhaseDeclare    Phase = "declare"    // class declaration
	PhaseInitialize Phase = "initialize" // class and static initialization
	PhaseValidate   Phase = "validate"   // runtime type validation
	PhaseRuntime    Phase = "runtime"    // script execution
	PhaseConfig     Phase = "config"     // configuration loading
	PhaseRegistry   Phase = "registry"   // binding registration
)

// Kind categorizes the error
type Kind string

const (
	KindFormat          Kind = "format"
	KindNotFound        Kind = "not_found"
	KindBindingMissing  Kind = "binding_missing"
	KindManagedMismatch Kind = "managed_mismatch"
	KindBindingInvalid  Kind = "binding_invalid"
	KindBuiltinMissing  Kind = "builtin_missing"
	KindOrdinal         Kind = "ordinal"
	KindDuplicate       Kind = "duplicate"
	KindPrecondition    Kind = "precondition"
	KindInvalidInput    Kind = "invalid_input"
	KindRegistration    Kind = "registration"
	KindScript          Kind = "script"
	KindMissing         Kind = "missing"
	KindValidation      Kind = "validation"
)

// Error is the structured error type used throughout the runtime
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Type     string // fully-qualified script type
	HostType string // host-side type name of a native binding
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Type != "" || e.HostType != "" {
		b.WriteString(": ")
		if e.Type != "" && e.HostType != "" {
			b.WriteString("type ")
			b.WriteString(e.Type)
			b.WriteString(", host type ")
			b.WriteString(e.HostType)
		} else if e.Type != "" {
			b.WriteString("type ")
			b.WriteString(e.Type)
		} else {
			b.WriteString("host type ")
			b.WriteString(e.HostType)
		}
	}

	if e.Detail != "" {
		if e.Type != "" || e.HostType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Fatal reports whether the error belongs to the fatal tier. Fatal errors
// leave the owning VM instance unusable.
func (e *Error) Fatal() bool {
	switch e.Kind {
	case KindMissing, KindInvalidInput, KindNotFound, KindRegistration:
		return false
	}
	return true
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the script type name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// HostType sets the native host type name
func (b *Builder) HostType(t string) *Builder {
	b.err.HostType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// IsFatal reports whether err carries a fatal-tier *Error.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Fatal()
	}
	return false
}

// IsFormat reports whether err is an executable or document format error.
func IsFormat(err error) bool {
	return KindOf(err) == KindFormat
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Convenience constructors for common error patterns

// Format creates a format error for a corrupt or incompatible artifact
func Format(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFormat,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// FormatCause creates a format error wrapping an underlying decode failure
func FormatCause(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindFormat,
		Detail: detail,
		Cause:  cause,
	}
}

// BindingMissing creates an error for a native type without a registered binding
func BindingMissing(typeName string) *Error {
	return &Error{
		Phase:  PhaseBind,
		Kind:   KindBindingMissing,
		Type:   typeName,
		Detail: "unable to get native descriptor",
	}
}

// ManagedMismatch creates an error for a managed/unmanaged contract violation.
// scriptManaged is the script declaration's claim; the binding claims the opposite.
func ManagedMismatch(typeName, hostType string, scriptManaged bool) *Error {
	detail := "script declaration specifies unmanaged while native bindings are managed"
	if scriptManaged {
		detail = "script declaration specifies managed while native bindings are unmanaged"
	}
	return &Error{
		Phase:    PhaseBind,
		Kind:     KindManagedMismatch,
		Type:     typeName,
		HostType: hostType,
		Detail:   detail,
	}
}

// BindingInvalid creates an error for a binding that rejected its script type
func BindingInvalid(typeName, hostType string, cause error) *Error {
	return &Error{
		Phase:    PhaseBind,
		Kind:     KindBindingInvalid,
		Type:     typeName,
		HostType: hostType,
		Detail:   "native binding validation failed",
		Cause:    cause,
	}
}

// BuiltinMissing creates an error for an absent well-known built-in type
func BuiltinMissing(typeName string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindBuiltinMissing,
		Type:   typeName,
		Detail: "well-known type not found",
	}
}

// Ordinal creates an ordinal type ID consistency error
func Ordinal(typeName string, id, count uint32) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindOrdinal,
		Type:   typeName,
		Value:  id,
		Detail: fmt.Sprintf("type id %d out of range 1..%d", id, count),
	}
}

// Precondition creates an assert-class error for API misuse
func Precondition(phase Phase, detail string, args ...any) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindPrecondition,
		Detail: fmt.Sprintf(detail, args...),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a binding registration error
func Registration(typeName string, detail string) *Error {
	return &Error{
		Phase:  PhaseRegistry,
		Kind:   KindRegistration,
		Type:   typeName,
		Detail: detail,
	}
}

// Script wraps an error raised by the embedded VM
func Script(phase Phase, typeName string, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindScript,
		Type:  typeName,
		Cause: cause,
	}
}

// Missing describes a type pruned from a load because it or a dependency is missing
func Missing(typeName, reason string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindMissing,
		Type:   typeName,
		Detail: reason,
	}
}

// Validation creates a runtime validation error for a type whose VM shape
// does not match its reflected metadata
func Validation(typeName string, path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindValidation,
		Type:   typeName,
		Path:   path,
		Detail: detail,
	}
}

// PrunedTypesError lists the types excised from an assembly during resolution.
// It is informational; loads that prune types still succeed.
type PrunedTypesError struct {
	Assembly string
	Types    []*Error
}

func (e *PrunedTypesError) Error() string {
	if len(e.Types) == 0 {
		return "[resolve] missing: no types pruned"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("pruned %d type(s) from %s:\n", len(e.Types), e.Assembly))
	for _, t := range e.Types {
		b.WriteString("  - ")
		b.WriteString(t.Type)
		if t.Detail != "" {
			b.WriteString(": ")
			b.WriteString(t.Detail)
		}
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *PrunedTypesError) Is(target error) bool {
	_, ok := target.(*PrunedTypesError)
	return ok
}
