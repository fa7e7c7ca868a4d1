// Package container implements the executable container codec.
//
// An executable container is a size-prefixed, zlib-compressed assembly
// payload:
//
//	[u32 magic "LOOM"][u32 major][u32 minor][u32 uncompressed_size][payload]
//
// All integers are little-endian. Decode rejects any container whose magic
// or version fields differ from the compiled-in constants, and any payload
// that does not decompress to exactly the declared size. Failures are
// reported as format errors (see errors.IsFormat).
package container
