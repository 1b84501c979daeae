package codegen

import (
	"strings"

	"github.com/ftagili/spo/pkg/runtimeabi"
)

// stdlibAllowList is the set of C runtime symbols this backend assumes are
// always available, plus the supplemented array allocator. Membership is
// tested against the base name (the substring before the first "__" of a
// mangled symbol), since a call inside a method body is otherwise
// indistinguishable in shape from a call to a user function.
var stdlibAllowList = buildAllowList()

func buildAllowList() map[string]bool {
	m := make(map[string]bool, len(runtimeabi.StdlibAllowList)+1)
	for _, s := range runtimeabi.StdlibAllowList {
		m[s] = true
	}
	m[runtimeabi.ArrayAllocSymbol] = true
	return m
}

// baseName returns the substring of name before its first "__", the
// unmangled symbol a call site's mangled form is derived from.
func baseName(name string) string {
	if idx := strings.Index(name, "__"); idx >= 0 {
		return name[:idx]
	}
	return name
}

// isStdlibCall reports whether name (mangled or not) refers to an
// allow-listed runtime function. The full name is tried first so runtime
// helpers whose real symbol starts with "__" (the array allocator) are not
// mistaken for a mangled user function with an empty base.
func isStdlibCall(name string) bool {
	return stdlibAllowList[name] || stdlibAllowList[baseName(name)]
}

// flushesOutput reports whether a call to name must be followed by a
// fflush(stdout) to force immediate output.
func flushesOutput(name string) bool {
	return runtimeabi.FlushAfter(baseName(name))
}
