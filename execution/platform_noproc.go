//go:build js || wasip1

package execution

// No subprocesses on these targets.
const isolationSupported = false
