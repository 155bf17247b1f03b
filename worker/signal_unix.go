//go:build unix

package worker

import (
	"os/signal"
	"syscall"
)

// IgnoreBrokenPipe keeps the process alive when the host closes the read end
// of its stdout or stderr. Writes to the closed pipe then fail with EPIPE.
func IgnoreBrokenPipe() {
	signal.Ignore(syscall.SIGPIPE)
}
