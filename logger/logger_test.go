package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isdmx/modhost/config"
)

func TestBuildConfig(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		level    string
		expected zapcore.Level
		encoding string
	}{
		{"Production", "production", "info", zapcore.InfoLevel, "json"},
		{"ProductionDebug", "production", "debug", zapcore.DebugLevel, "json"},
		{"Development", "development", "warn", zapcore.WarnLevel, "console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := buildConfig(tt.mode, tt.level)
			require.NoError(t, err)

			assert.Equal(t, []string{"stderr"}, cfg.OutputPaths)
			assert.Equal(t, []string{"stderr"}, cfg.ErrorOutputPaths)
			assert.Equal(t, tt.expected, cfg.Level.Level())
			assert.Equal(t, tt.encoding, cfg.Encoding)
		})
	}

	t.Run("InvalidMode", func(t *testing.T) {
		_, err := buildConfig("verbose", "info")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging mode")
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, err := buildConfig("production", "loud")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging level")
	})
}

// redirect points os.Stdout and os.Stderr at files for the rest of the test.
func redirect(t *testing.T) (stdout, stderr string) {
	t.Helper()

	dir := t.TempDir()
	stdout = filepath.Join(dir, "stdout")
	stderr = filepath.Join(dir, "stderr")

	outFile, err := os.Create(stdout)
	require.NoError(t, err)
	errFile, err := os.Create(stderr)
	require.NoError(t, err)

	origOut, origErr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = outFile, errFile
	t.Cleanup(func() {
		os.Stdout, os.Stderr = origOut, origErr
		_ = outFile.Close()
		_ = errFile.Close()
	})
	return stdout, stderr
}

func TestNewWritesToStderrOnly(t *testing.T) {
	for _, mode := range []string{"production", "development"} {
		t.Run(mode, func(t *testing.T) {
			stdout, stderr := redirect(t)

			log, err := New(mode, "info")
			require.NoError(t, err)
			log.Info("domain serving", zap.String("domain", "d1"))
			log.Debug("hidden")
			_ = log.Sync()

			out, err := os.ReadFile(stdout)
			require.NoError(t, err)
			assert.Empty(t, out, "stdout is reserved for the worker protocol")

			logged, err := os.ReadFile(stderr)
			require.NoError(t, err)
			assert.Contains(t, string(logged), "domain serving")
			assert.Contains(t, string(logged), "d1")
			assert.NotContains(t, string(logged), "hidden")
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := config.New("")
		require.NoError(t, err)

		log, err := NewFromConfig(cfg)
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("File", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "modhost.yaml")
		require.NoError(t, os.WriteFile(file, []byte("logging:\n  mode: development\n  level: debug\ncontext:\n  isolate: false\n"), 0o600))

		cfg, err := config.New(file)
		require.NoError(t, err)

		log, err := NewFromConfig(cfg)
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("EnvOverride", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("MODHOST_LOGGING_LEVEL", "error")

		cfg, err := config.New("")
		require.NoError(t, err)

		log, err := NewFromConfig(cfg)
		require.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.WarnLevel))
		assert.True(t, log.Core().Enabled(zapcore.ErrorLevel))
	})

	t.Run("InvalidLevel", func(t *testing.T) {
		_, err := NewFromConfig(&config.Config{Logging: config.LoggingConfig{Mode: "production", Level: "loud"}})
		assert.Error(t, err)
	})
}
