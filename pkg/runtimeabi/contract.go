// Package runtimeabi documents the fixed set of external runtime symbols
// the code generator assumes exist at link time. Everything here is
// deliberately out of scope to implement (the C runtime itself is an
// external collaborator), but the names are collected in one place so the
// code generator and its tests reference a single source of truth instead
// of scattered string literals.
package runtimeabi

// MallocSymbol is the allocator the code generator calls from `new`:
// `__runtime_malloc(size) → pointer`.
const MallocSymbol = "__runtime_malloc"

// UnknownMethodSymbol is the vtable-fallback trampoline called when
// method dispatch cannot resolve a better target. The runtime must
// provide it as a no-op fallback.
const UnknownMethodSymbol = "unknown_method"

// StdoutSymbol and FflushSymbol back the "puts/printf flush" contract.
const (
	StdoutSymbol = "stdout"
	FflushSymbol = "fflush"
)

// StdlibAllowList is the fixed C standard-library surface the emitted
// assembly may call directly without a local definition. Membership is
// always tested against a symbol's base name, the substring before its
// first "__".
var StdlibAllowList = []string{
	"printf", "scanf", "malloc", "free",
	"fopen", "fclose", "fread", "fwrite",
	"read", "write", "atoi", "atol",
	"puts", "putchar", "gets", "getchar",
	"exit", "abort", "memcpy", "memset",
	"strlen", "strcmp", "fflush",
}

// ArrayAllocSymbol is the flat-array allocator the runtime provides for
// array types: a fixed 8-byte-per-element allocation, matching the 8-byte
// index stride the code generator assumes for index/assign_index
// addressing. It is a passthrough extern declaration only: the backend
// does not type-check array element types.
const ArrayAllocSymbol = "__alloc_array"

// FlushAfter reports whether a call to the allow-listed base name must be
// followed by fflush(stdout) to force immediate output.
func FlushAfter(baseName string) bool {
	return baseName == "puts" || baseName == "printf"
}
