package activator

import (
	"fmt"
	"os"
	"plugin"
	"sync"
)

// RegisterSymbol is the function a plugin module exports to publish its
// types. Its signature must be func(*activator.Registry).
const RegisterSymbol = "RegisterTypes"

// Loader loads the module stored at path and returns its registry.
type Loader interface {
	Load(path string) (*Registry, error)
}

// PluginLoader loads Go plugins built with -buildmode=plugin. A plugin
// cannot be unloaded once opened, so isolation requires a separate process.
type PluginLoader struct{}

// Load opens the plugin at path and calls its RegisterTypes function.
func (PluginLoader) Load(path string) (*Registry, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin %s: %w", path, err)
	}

	sym, err := p.Lookup(RegisterSymbol)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", path, err)
	}

	register, ok := sym.(func(*Registry))
	if !ok {
		return nil, fmt.Errorf("plugin %s: %s has type %T, want func(*activator.Registry)", path, RegisterSymbol, sym)
	}

	return populate(ModuleName(path), register)
}

// BuiltinLoader serves modules compiled into the binary. A builtin is matched
// by module name, but its file must still exist at the requested path so
// that loading follows the same on-disk layout as plugins. Unknown modules
// are delegated to the next loader, if any.
type BuiltinLoader struct {
	next Loader

	mu      sync.RWMutex
	modules map[string]func(*Registry)
}

// NewBuiltinLoader creates a BuiltinLoader delegating unknown modules to next,
// which may be nil.
func NewBuiltinLoader(next Loader) *BuiltinLoader {
	return &BuiltinLoader{
		next:    next,
		modules: make(map[string]func(*Registry)),
	}
}

// Register adds a builtin module.
func (b *BuiltinLoader) Register(module string, register func(*Registry)) *BuiltinLoader {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modules[module] = register
	return b
}

func (b *BuiltinLoader) Load(path string) (*Registry, error) {
	name := ModuleName(path)

	b.mu.RLock()
	register, ok := b.modules[name]
	b.mu.RUnlock()

	if !ok {
		if b.next != nil {
			return b.next.Load(path)
		}
		return nil, fmt.Errorf("module %s is not registered", name)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", name, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("module %s: %s is a directory", name, path)
	}

	return populate(name, register)
}

// DefaultLoader serves builtins first and falls back to Go plugins.
func DefaultLoader() *BuiltinLoader {
	return NewBuiltinLoader(PluginLoader{})
}

// populate runs a module's registration function, reporting a panic from an
// invalid registration as an error.
func populate(module string, register func(*Registry)) (reg *Registry, err error) {
	defer func() {
		if v := recover(); v != nil {
			reg = nil
			err = fmt.Errorf("module %s: registration failed: %v", module, v)
		}
	}()

	reg = NewRegistry(module)
	register(reg)
	return reg, nil
}
