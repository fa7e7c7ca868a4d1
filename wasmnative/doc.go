// Package wasmnative backs script native types with WebAssembly modules.
//
// A module's exported functions become static natives of the script type it
// is registered for:
//
//	rt := wasmnative.NewRuntime(ctx, 0)
//	mod, err := wasmnative.Load(ctx, rt, "wasm.mathx", wasmBytes)
//	bindings.MustRegister("game.MathX", mod)
//
// Parameters and results must be i32, i64, f32 or f64. Script numbers are
// truncated toward zero for integer parameters.
package wasmnative
