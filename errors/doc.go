// Package errors provides structured error types for the loom runtime.
//
// Errors are categorized by Phase (where in the load pipeline the error
// occurred) and Kind (error category). The Error type carries the script
// type, the native host type, a member path and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBind, errors.KindBindingInvalid).
//		Type("game.Sprite").
//		HostType("*gfx.Sprite").
//		Detail("member %q has no native implementation", "draw").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ManagedMismatch("game.Sprite", "*gfx.Sprite", true)
//	err := errors.Ordinal("game.Sprite", 9, 4)
//
// Errors fall into tiers. Missing-type errors are recoverable: the type is
// pruned and the load continues. Everything in the fatal tier (see IsFatal)
// leaves the VM instance unusable.
package errors
