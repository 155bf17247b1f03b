// Package activator locates types in loaded modules and constructs them.
//
// A module publishes its types by filling a Registry, either through the
// exported RegisterTypes function of a Go plugin or as a builtin registered
// with a BuiltinLoader. Activation resolves a constructor overload against the
// supplied arguments, first by exact assignability and then by converting
// boundary-decoded values (JSON numbers, maps, slices) with mapstructure.
//
// Failures raised by a constructor are reported as *InvocationError; callers
// strip that wrapper with Unwrap to observe the constructor's own error.
//
// Usage:
//
//	domain := activator.NewDomain("/opt/mods/calc.so", activator.DefaultLoader())
//	obj, err := domain.Activate("", "Calculator", []any{10})
//	if err != nil {
//	    return activator.Unwrap(err)
//	}
package activator
