// Package config loads loom runtime settings.
//
// Settings come from built-in defaults, an optional TOML file and LOOM_*
// environment variables, in increasing precedence:
//
//	bin_dir = "./bin"
//	extension = ".loom"
//	validate_types = true
//
//	[vm]
//	call_stack_size = 256
//
//	[[wasm.modules]]
//	type = "game.MathX"
//	path = "natives/mathx.wasm"
//
// Nested keys map to environment variables with dots replaced by
// underscores, e.g. LOOM_VM_CALL_STACK_SIZE.
package config
