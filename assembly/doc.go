// Package assembly holds the reflected type graph of loaded script code.
//
// An Assembly owns an ordered list of Types, each with a 1-based ordinal
// ID, a base type, imported types and a member list. Assemblies are built
// from a Document, the compiler's structured output, in either its JSON or
// CBOR form:
//
//	doc, err := assembly.ParseBinary(raw)
//	asm, err := assembly.Build(doc, resolver)
//	if err := asm.BuildOrdinals(); err != nil { ... }
//
// Types whose base or imports cannot be resolved are flagged missing rather
// than failing the build. PropagateMissing spreads the flag to everything
// that depends on a missing type, and Assembly.RemoveMissing excises the
// result so later phases only ever see a consistent cohort.
package assembly
