// Package testmodule is a builtin module used by tests across the repository.
package testmodule

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/isdmx/modhost/activator"
	"github.com/isdmx/modhost/fault"
)

// Name is the module name; its file is Name + FileExt.
const Name = "fixture"

// FileExt is the extension used for fixture module files.
const FileExt = ".so"

// ErrBadSeed is raised by constructors and methods rejecting their input.
var ErrBadSeed = fault.Kind("fixture.BadSeed")

type Greeter struct {
	Prefix string `json:"prefix"`
	Count  int    `json:"count"`
}

func NewGreeter(prefix string, count int) *Greeter {
	return &Greeter{Prefix: prefix, Count: count}
}

func NewDefaultGreeter() *Greeter {
	return &Greeter{Prefix: "hello"}
}

func (g *Greeter) Greet(name string) string {
	g.Count++
	return fmt.Sprintf("%s, %s", g.Prefix, name)
}

func (g *Greeter) Reject(reason string) error {
	return ErrBadSeed.New("rejected: %s", reason)
}

type Counter struct {
	Seed  int   `json:"seed"`
	Steps []int `json:"steps"`
}

func NewCounter(seed int, steps ...int) (*Counter, error) {
	if seed < 0 {
		return nil, ErrBadSeed.New("seed %d is negative", seed)
	}
	return &Counter{Seed: seed, Steps: steps}, nil
}

type Options struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type Configured struct {
	Options Options `json:"options"`
}

func NewConfigured(opts Options) *Configured {
	return &Configured{Options: opts}
}

// Store reads entries from a directory.
type Store struct {
	Dir string `json:"dir"`
}

// NewStore fails with the os error when dir cannot be read.
func NewStore(dir string) (*Store, error) {
	if _, err := os.ReadDir(dir); err != nil {
		return nil, err
	}
	return &Store{Dir: dir}, nil
}

func (s *Store) Open(name string) (string, error) {
	return "", &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

type Box struct {
	V int64 `json:"v"`
}

func NewBox(v int64) *Box {
	return &Box{V: v}
}

func (b *Box) Value() int64 {
	return b.V
}

func (b *Box) Add(delta int64) int64 {
	b.V += delta
	return b.V
}

type Exploder struct{}

func NewExploder() *Exploder {
	panic("exploder cannot be built")
}

// Register publishes the fixture types.
func Register(r *activator.Registry) {
	r.MustRegister("Greeter", NewGreeter, NewDefaultGreeter)
	r.MustRegister("Counter", NewCounter)
	r.MustRegister("Configured", NewConfigured)
	r.MustRegister("Store", NewStore)
	r.MustRegister("Box", NewBox)
	r.MustRegister("Exploder", NewExploder)
}

// Loader returns a loader serving only the fixture module.
func Loader() *activator.BuiltinLoader {
	return activator.NewBuiltinLoader(nil).Register(Name, Register)
}

// WriteModule creates a fixture module file in dir and returns its path.
func WriteModule(tb testing.TB, dir string) string {
	tb.Helper()

	path := filepath.Join(dir, Name+FileExt)
	if err := os.WriteFile(path, []byte("fixture module"), 0o600); err != nil {
		tb.Fatalf("failed to write module: %v", err)
	}
	return path
}
