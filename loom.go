package loomruntime

// Allocator tracks bytes attributed to one VM instance. Realloc follows the
// embedded VM allocator contract: a fresh allocation has oldSize 0 and a free
// has newSize 0.
type Allocator interface {
	Realloc(oldSize, newSize int)
	Allocated() int64
}

// ByteProvider supplies the raw bytes of an executable assembly held in
// memory, such as an embedded asset. Close releases them.
type ByteProvider interface {
	Bytes() []byte
	Close() error
}
