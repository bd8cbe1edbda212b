// Package kfmt provides a minimal boot-style logger for the pfnalloc
// kernel packages. It mirrors the call shape of kernel/kfmt/early.Printf
// found across the gopher-os lineage, but writes to an io.Writer instead
// of a text-mode console since this module runs outside a real kernel.
package kfmt

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

// SetOutput redirects kfmt output, primarily for use by tests that want to
// assert on logged lines or silence them entirely (io.Discard).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Printf writes a formatted line. It never returns an error: a logging
// failure must not be allowed to interfere with allocator correctness.
func Printf(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(out, format, args...)
}

// Errorf is Printf with an "[error]" prefix, used for conditions the
// allocator recovers from on its own (e.g. a rejected reservation) but
// that are worth surfacing.
func Errorf(format string, args ...interface{}) {
	Printf("[error] "+format, args...)
}
