// Package cos provides small low-level utilities shared by the engine and
// its ambient packages: error types, fatal-exit logging, ID generation,
// and checksums. Adapted from the teacher's cmn/cos package.
package cos

import (
	"fmt"
	"os"

	"github.com/nimbusd/nimbusd/pkg/nlog"
)

const fatalPrefix = "FATAL ERROR: "

// ExitLogf logs msg at error severity, flushes, and terminates the
// process with a non-zero status — the daemon's one sanctioned "this
// cannot be recovered from" exit point (startup config/log/db failures).
func ExitLogf(f string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+f, a...)
	nlog.Errorf(msg)
	nlog.Flush()
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

// ErrNotFound reports that the named thing does not exist. The engine's
// own lookups (ClientStreamSet.LookupByDataObject, audit.Log.Recent)
// report a miss without it.
type ErrNotFound struct{ what string }

func NewErrNotFound(format string, a ...any) *ErrNotFound {
	return &ErrNotFound{fmt.Sprintf(format, a...)}
}

func (e *ErrNotFound) Error() string { return e.what + " does not exist" }

func IsErrNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}
