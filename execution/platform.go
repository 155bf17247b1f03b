//go:build !js && !wasip1

package execution

const isolationSupported = true
