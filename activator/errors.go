package activator

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeNotFound reports that the module does not register the requested type.
	ErrTypeNotFound = errors.New("type not found")
	// ErrNoMatchingConstructor reports that no constructor accepts the supplied arguments.
	ErrNoMatchingConstructor = errors.New("no constructor matches the supplied arguments")
	// ErrMethodNotFound reports that the object has no exported method of that name.
	ErrMethodNotFound = errors.New("method not found")
	// ErrNoMatchingMethod reports that the method does not accept the supplied arguments.
	ErrNoMatchingMethod = errors.New("method does not match the supplied arguments")
	// ErrModuleLoad reports that the module could not be loaded.
	ErrModuleLoad = errors.New("module could not be loaded")
)

// ActivationError reports that a type or method could not be bound. It is
// never produced by the activated code itself.
type ActivationError struct {
	Module string
	Type   string
	Err    error
}

func (e *ActivationError) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("activate %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("activate %s from module %s: %v", e.Type, e.Module, e.Err)
}

func (e *ActivationError) Unwrap() error {
	return e.Err
}

// InvocationError is the generic wrapper around a failure raised by an
// activated constructor or method.
type InvocationError struct {
	// Target names the constructor or method that failed.
	Target string
	// Origin is the file:line of the invoked function.
	Origin string
	Cause  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("invocation of %s failed: %v", e.Target, e.Cause)
}

func (e *InvocationError) Unwrap() error {
	return e.Cause
}

// Unwrap returns the failure raised by activated code when err carries an
// InvocationError, and err unchanged otherwise.
func Unwrap(err error) error {
	var ie *InvocationError
	if errors.As(err, &ie) && ie.Cause != nil {
		return ie.Cause
	}
	return err
}
