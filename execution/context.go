package execution

import (
	"errors"
	"fmt"
)

var (
	// ErrArgument reports a missing or malformed argument.
	ErrArgument = errors.New("invalid argument")
	// ErrNotFound reports that a module or configuration file does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDisposed is returned by every operation on a disposed context.
	ErrDisposed = errors.New("execution context disposed")
)

// ExecutionContext hosts one module and creates objects from it.
type ExecutionContext interface {
	// ModulePath is the absolute path of the module the context was created for.
	ModulePath() string
	// ConfigPath is the absolute path of the module's configuration file, or "".
	ConfigPath() string
	// Isolated reports whether the module runs in a separate domain.
	Isolated() bool
	// CreateObject constructs typeName from module. An empty module selects
	// the context's own module; other names resolve next to it.
	CreateObject(module, typeName string, args ...any) (Object, error)
	// Dispose releases the context. It is safe to call more than once.
	Dispose()
}

// Object is an instance created inside an execution context.
type Object interface {
	TypeName() string
	// Call invokes an exported method and returns its results, without a
	// trailing error result.
	Call(method string, args ...any) ([]any, error)
	// Decode stores the object's state in target, which must be a pointer.
	Decode(target any) error
}

// CreateObject constructs typeName in ec and decodes it into a T.
func CreateObject[T any](ec ExecutionContext, module, typeName string, args ...any) (T, error) {
	var out T

	obj, err := ec.CreateObject(module, typeName, args...)
	if err != nil {
		return out, err
	}

	if err := obj.Decode(&out); err != nil {
		return out, fmt.Errorf("failed to decode %s: %w", obj.TypeName(), err)
	}
	return out, nil
}

// IsolationSupported reports whether this platform can host modules in a
// separate worker process.
func IsolationSupported() bool {
	return isolationSupported
}
