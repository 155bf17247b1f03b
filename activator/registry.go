package activator

import (
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Registry maps the type names of one module to their constructors.
type Registry struct {
	module string
	types  map[string][]reflect.Value
}

// NewRegistry creates an empty registry for module.
func NewRegistry(module string) *Registry {
	return &Registry{
		module: module,
		types:  make(map[string][]reflect.Value),
	}
}

// Module returns the name of the module the registry describes.
func (r *Registry) Module() string {
	return r.module
}

// Register adds constructors for typeName. Each constructor must be a func
// returning either the instance or the instance and an error. Overloads are
// tried in registration order.
func (r *Registry) Register(typeName string, constructors ...any) error {
	if typeName == "" {
		return fmt.Errorf("type name is required")
	}
	if len(constructors) == 0 {
		return fmt.Errorf("type %s: at least one constructor is required", typeName)
	}

	fns := make([]reflect.Value, 0, len(constructors))
	for _, c := range constructors {
		fn := reflect.ValueOf(c)
		if fn.Kind() != reflect.Func || fn.IsNil() {
			return fmt.Errorf("type %s: constructor must be a func, got %T", typeName, c)
		}
		if !validConstructor(fn.Type()) {
			return fmt.Errorf("type %s: constructor %s must return T or (T, error)", typeName, fn.Type())
		}
		fns = append(fns, fn)
	}

	r.types[typeName] = append(r.types[typeName], fns...)
	return nil
}

// MustRegister is like Register but panics on an invalid constructor.
func (r *Registry) MustRegister(typeName string, constructors ...any) *Registry {
	if err := r.Register(typeName, constructors...); err != nil {
		panic(err)
	}
	return r
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) constructors(typeName string) ([]reflect.Value, bool) {
	fns, ok := r.types[typeName]
	return fns, ok
}

func validConstructor(t reflect.Type) bool {
	switch t.NumOut() {
	case 1:
		return t.Out(0) != errorType
	case 2:
		return t.Out(0) != errorType && t.Out(1) == errorType
	default:
		return false
	}
}

// ModuleName derives a module name from its file path: the base name
// without extension.
func ModuleName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
