// fatal.go - print-and-abort conveniences for the point where an error is
// finally handled.
package ertrace

import (
	"io"
	"os"
	"runtime"

	"golang.org/x/term"
)

// FatalMessage is the panic value used by Fatal and Must.
const FatalMessage = "fatal error"

// Fprint writes err's trace to w. Errors without a live trace print the
// header and an empty list, so the output shape is always the same.
func Fprint(w io.Writer, err error, opts RenderOptions) error {
	werr := RenderWith(w, TraceOf(err), opts)
	// err owns the nodes being rendered; its cleanup must not run before
	// the walk is done.
	runtime.KeepAlive(err)
	return werr
}

// Eprint writes err's trace to stderr, colored when stderr is a terminal.
func Eprint(err error) {
	_ = Fprint(os.Stderr, err, RenderOptions{Color: isTerminal(os.Stderr)})
}

// Fatal prints err's trace to stderr and panics with FatalMessage.
func Fatal(err error) {
	Eprint(err)
	panic(FatalMessage)
}

// Must returns v, or calls Fatal when err is non-nil.
func Must[T any](v T, err error) T {
	if err != nil {
		Fatal(err)
	}
	return v
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
