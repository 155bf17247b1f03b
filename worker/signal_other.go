//go:build !unix

package worker

// IgnoreBrokenPipe is a no-op on platforms without SIGPIPE.
func IgnoreBrokenPipe() {}
