package execution

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/modhost/config"
	"github.com/isdmx/modhost/internal/testmodule"
)

// MockFileSystem wraps the real file system and can fail selected calls
type MockFileSystem struct {
	RealFileSystem
	existsErr error
	removeErr error
	removed   []string
}

func (m *MockFileSystem) FileExists(path string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.RealFileSystem.FileExists(path)
}

func (m *MockFileSystem) RemoveAll(path string) error {
	m.removed = append(m.removed, path)
	if m.removeErr != nil {
		return m.removeErr
	}
	return m.RealFileSystem.RemoveAll(path)
}

func TestNewArguments(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("EmptyModulePath", func(t *testing.T) {
		_, err := New(logger, Request{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrArgument)
	})

	t.Run("MissingModule", func(t *testing.T) {
		_, err := New(logger, Request{ModulePath: filepath.Join(t.TempDir(), "absent.so")})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("ModuleIsDirectory", func(t *testing.T) {
		_, err := New(logger, Request{ModulePath: t.TempDir()})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("MissingExplicitConfig", func(t *testing.T) {
		module := testmodule.WriteModule(t, t.TempDir())

		_, err := New(logger, Request{ModulePath: module, ConfigPath: module + ".missing"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Contains(t, err.Error(), "config file")
	})

	t.Run("FileSystemError", func(t *testing.T) {
		mockFS := &MockFileSystem{existsErr: errors.New("permission denied")}

		_, err := New(logger, Request{ModulePath: "/app/fixture.so"}, WithFileSystem(mockFS))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestNewPaths(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("RelativeModuleBecomesAbsolute", func(t *testing.T) {
		dir := t.TempDir()
		testmodule.WriteModule(t, dir)
		t.Chdir(dir)

		ec, err := New(logger, Request{ModulePath: testmodule.Name + testmodule.FileExt}, WithLoader(testmodule.Loader()))
		require.NoError(t, err)
		defer ec.Dispose()

		assert.True(t, filepath.IsAbs(ec.ModulePath()))
		assert.Equal(t, testmodule.Name+testmodule.FileExt, filepath.Base(ec.ModulePath()))
	})

	t.Run("DefaultConfigAbsent", func(t *testing.T) {
		module := testmodule.WriteModule(t, t.TempDir())

		ec, err := New(logger, Request{ModulePath: module}, WithLoader(testmodule.Loader()))
		require.NoError(t, err)
		defer ec.Dispose()

		assert.Empty(t, ec.ConfigPath())
	})

	t.Run("DefaultConfigPresent", func(t *testing.T) {
		module := testmodule.WriteModule(t, t.TempDir())
		require.NoError(t, os.WriteFile(module+ConfigSuffix, []byte("key=value"), 0o600))

		ec, err := New(logger, Request{ModulePath: module}, WithLoader(testmodule.Loader()))
		require.NoError(t, err)
		defer ec.Dispose()

		assert.Equal(t, module+ConfigSuffix, ec.ConfigPath())
	})

	t.Run("DefaultConfigDirectoryIgnored", func(t *testing.T) {
		module := testmodule.WriteModule(t, t.TempDir())
		require.NoError(t, os.Mkdir(module+ConfigSuffix, 0o755))

		ec, err := New(logger, Request{ModulePath: module}, WithLoader(testmodule.Loader()))
		require.NoError(t, err)
		defer ec.Dispose()

		assert.Empty(t, ec.ConfigPath())
	})

	t.Run("ExplicitConfig", func(t *testing.T) {
		dir := t.TempDir()
		module := testmodule.WriteModule(t, dir)
		cfg := filepath.Join(dir, "settings.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("a: 1"), 0o600))
		require.NoError(t, os.WriteFile(module+ConfigSuffix, []byte("ignored"), 0o600))

		ec, err := New(logger, Request{ModulePath: module, ConfigPath: cfg}, WithLoader(testmodule.Loader()))
		require.NoError(t, err)
		defer ec.Dispose()

		assert.Equal(t, cfg, ec.ConfigPath())
	})
}

func TestNewSelectsContext(t *testing.T) {
	logger := zaptest.NewLogger(t)
	module := testmodule.WriteModule(t, t.TempDir())

	t.Run("Direct", func(t *testing.T) {
		ec, err := New(logger, Request{ModulePath: module}, WithLoader(testmodule.Loader()))
		require.NoError(t, err)
		defer ec.Dispose()

		assert.IsType(t, &DirectContext{}, ec)
		assert.False(t, ec.Isolated())
	})

	t.Run("IsolationUnsupported", func(t *testing.T) {
		ec, err := New(logger, Request{ModulePath: module, Isolate: true},
			WithLoader(testmodule.Loader()),
			withIsolationSupport(false))
		require.NoError(t, err)
		defer ec.Dispose()

		assert.IsType(t, &DirectContext{}, ec)
	})

	t.Run("Isolated", func(t *testing.T) {
		ec, err := New(logger, Request{ModulePath: module, Isolate: true}, testWorker(t))
		require.NoError(t, err)
		defer ec.Dispose()

		assert.IsType(t, &IsolatedContext{}, ec)
		assert.True(t, ec.Isolated())
		assert.Equal(t, module, ec.ModulePath())
	})
}

func TestFromConfig(t *testing.T) {
	cfg := &config.ContextConfig{
		StagingExcludes:  []string{"*.log"},
		WorkerCommand:    "/usr/local/bin/modhost",
		WorkerArgs:       []string{"worker"},
		ShutdownGraceSec: 2,
	}

	var o options
	for _, opt := range FromConfig(cfg) {
		opt(&o)
	}

	assert.Equal(t, 2*time.Second, o.grace)
	assert.Equal(t, []string{"*.log"}, o.excludes)
	assert.Equal(t, "/usr/local/bin/modhost", o.workerCommand)
	assert.Equal(t, []string{"worker"}, o.workerArgs)

	t.Run("NoWorkerCommand", func(t *testing.T) {
		o := options{workerArgs: []string{"worker"}}
		for _, opt := range FromConfig(&config.ContextConfig{ShutdownGraceSec: 1}) {
			opt(&o)
		}
		assert.Empty(t, o.workerCommand)
		assert.Equal(t, []string{"worker"}, o.workerArgs)
	})
}

func TestIsolationSupported(t *testing.T) {
	assert.Equal(t, isolationSupported, IsolationSupported())
}
