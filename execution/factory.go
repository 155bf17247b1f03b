package execution

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/modhost/activator"
	"github.com/isdmx/modhost/config"
)

// ConfigSuffix is appended to a module path to find its default
// configuration file.
const ConfigSuffix = ".config"

// DefaultShutdownGrace is how long a worker may take to exit on its own.
const DefaultShutdownGrace = 5 * time.Second

// Request describes the execution context to create.
type Request struct {
	ModulePath string
	// ConfigPath overrides the default ModulePath + ".config" lookup.
	ConfigPath string
	Isolate    bool
	// ShadowCopy loads the module from a private copy of its directory so
	// the original files stay replaceable while the context is alive.
	ShadowCopy bool
	// ShadowCopyDir is where the private copy is made; defaults to the
	// system temp directory. Only the context's own subdirectory is used.
	ShadowCopyDir string
}

type options struct {
	fs            FileSystem
	loader        activator.Loader
	workerCommand string
	workerArgs    []string
	workerEnv     []string
	grace         time.Duration
	excludes      []string
	isolation     bool
}

// Option configures New.
type Option func(*options)

// WithFileSystem sets the FileSystem used to check and stage files
func WithFileSystem(fs FileSystem) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithLoader sets the module loader used by direct contexts
func WithLoader(loader activator.Loader) Option {
	return func(o *options) {
		o.loader = loader
	}
}

// WithWorker sets the command that starts a worker process. env is appended
// to the host environment. By default the running executable is started with
// the "worker" argument.
func WithWorker(command string, args, env []string) Option {
	return func(o *options) {
		o.workerCommand = command
		o.workerArgs = args
		o.workerEnv = env
	}
}

// WithShutdownGrace sets how long Dispose waits for a worker before killing it
func WithShutdownGrace(grace time.Duration) Option {
	return func(o *options) {
		o.grace = grace
	}
}

// WithStagingExcludes sets doublestar patterns, relative to the module's
// directory, that are left out of a shadow copy
func WithStagingExcludes(patterns ...string) Option {
	return func(o *options) {
		o.excludes = patterns
	}
}

func withIsolationSupport(supported bool) Option {
	return func(o *options) {
		o.isolation = supported
	}
}

// FromConfig converts host configuration into options.
func FromConfig(cfg *config.ContextConfig) []Option {
	opts := []Option{
		WithShutdownGrace(cfg.GetShutdownGrace()),
		WithStagingExcludes(cfg.StagingExcludes...),
	}
	if cfg.WorkerCommand != "" {
		opts = append(opts, WithWorker(cfg.WorkerCommand, cfg.WorkerArgs, nil))
	}
	return opts
}

// New creates an execution context for req.ModulePath. An isolated context is
// returned when isolation is requested and supported; otherwise the module is
// hosted in this process.
func New(logger *zap.Logger, req Request, opts ...Option) (ExecutionContext, error) {
	o := options{
		fs:         &RealFileSystem{},
		loader:     activator.DefaultLoader(),
		workerArgs: []string{"worker"},
		grace:      DefaultShutdownGrace,
		isolation:  IsolationSupported(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	modulePath, configPath, err := resolvePaths(o.fs, req.ModulePath, req.ConfigPath)
	if err != nil {
		return nil, err
	}

	logger = logger.With(zap.String("module", modulePath))

	if req.Isolate && o.isolation {
		ic, err := newIsolatedContext(logger, req, modulePath, configPath, &o)
		if err != nil {
			return nil, err
		}
		return ic, nil
	}

	if req.Isolate {
		logger.Debug("isolation is not supported on this platform, hosting module directly")
	}
	return newDirectContext(logger, modulePath, configPath, o.loader), nil
}

func resolvePaths(fsys FileSystem, module, cfg string) (modulePath, configPath string, err error) {
	if module == "" {
		return "", "", fmt.Errorf("%w: module path is required", ErrArgument)
	}

	modulePath, err = filepath.Abs(module)
	if err != nil {
		return "", "", fmt.Errorf("%w: module path %s: %w", ErrArgument, module, err)
	}
	if err := mustExist(fsys, "module", modulePath); err != nil {
		return "", "", err
	}

	if cfg != "" {
		configPath, err = filepath.Abs(cfg)
		if err != nil {
			return "", "", fmt.Errorf("%w: config path %s: %w", ErrArgument, cfg, err)
		}
		if err := mustExist(fsys, "config file", configPath); err != nil {
			return "", "", err
		}
		return modulePath, configPath, nil
	}

	candidate := modulePath + ConfigSuffix
	exists, err := fsys.FileExists(candidate)
	if err != nil {
		return "", "", fmt.Errorf("failed to check config file %s: %w", candidate, err)
	}
	if exists {
		configPath = candidate
	}
	return modulePath, configPath, nil
}

func mustExist(fsys FileSystem, what, path string) error {
	exists, err := fsys.FileExists(path)
	if err != nil {
		return fmt.Errorf("failed to check %s %s: %w", what, path, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s %s: %w", ErrNotFound, what, path, fs.ErrNotExist)
	}
	return nil
}
