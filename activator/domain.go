package activator

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Domain loads modules from one application base directory and activates
// their types. The primary module is the one the domain was created for;
// other modules resolve to siblings sharing its file extension.
type Domain struct {
	primary string
	loader  Loader

	mu      sync.Mutex
	modules map[string]*Registry
}

// NewDomain creates a domain rooted at the directory containing primary.
func NewDomain(primary string, loader Loader) *Domain {
	return &Domain{
		primary: primary,
		loader:  loader,
		modules: make(map[string]*Registry),
	}
}

// Base returns the application base directory.
func (d *Domain) Base() string {
	return filepath.Dir(d.primary)
}

// ResolveModule maps a module name to the file it is loaded from. An empty
// name, or the primary module's own name, selects the primary module.
func (d *Domain) ResolveModule(name string) string {
	if name == "" || name == ModuleName(d.primary) {
		return d.primary
	}
	return filepath.Join(d.Base(), name+filepath.Ext(d.primary))
}

// Load returns the registry of the named module, loading it on first use.
func (d *Domain) Load(name string) (*Registry, error) {
	path := d.ResolveModule(name)

	d.mu.Lock()
	defer d.mu.Unlock()

	if reg, ok := d.modules[path]; ok {
		return reg, nil
	}

	reg, err := d.loader.Load(path)
	if err != nil {
		return nil, &ActivationError{
			Module: ModuleName(path),
			Err:    fmt.Errorf("%w: %w", ErrModuleLoad, err),
		}
	}

	d.modules[path] = reg
	return reg, nil
}

// Activate constructs typeName from the named module.
func (d *Domain) Activate(module, typeName string, args []any) (any, error) {
	reg, err := d.Load(module)
	if err != nil {
		if ae, ok := err.(*ActivationError); ok {
			ae.Type = typeName
		}
		return nil, err
	}
	return Activate(reg, typeName, args)
}
