package worker

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable read by the worker.
const EnvPrefix = "MODHOST"

// Options configures a worker process. The host passes them through the
// environment.
type Options struct {
	Module     string `envconfig:"MODULE" required:"true"`
	BaseDir    string `envconfig:"BASE_DIR"`
	ConfigFile string `envconfig:"CONFIG_FILE"`
	Domain     string `envconfig:"DOMAIN"`
	LogMode    string `envconfig:"LOG_MODE" default:"production"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
}

// ModulePath returns the module path, resolving a relative Module against
// BaseDir.
func (o Options) ModulePath() string {
	if o.BaseDir == "" || filepath.IsAbs(o.Module) {
		return o.Module
	}
	return filepath.Join(o.BaseDir, o.Module)
}

// LoadOptions reads Options from the environment.
func LoadOptions() (Options, error) {
	var opts Options
	if err := envconfig.Process(EnvPrefix, &opts); err != nil {
		return Options{}, fmt.Errorf("failed to load worker options: %w", err)
	}
	if strings.TrimSpace(opts.Module) == "" {
		return Options{}, fmt.Errorf("failed to load worker options: %s_MODULE must not be empty", EnvPrefix)
	}
	return opts, nil
}

// Environ renders the options as environment assignments for a child process.
func (o Options) Environ() []string {
	env := []string{
		EnvPrefix + "_MODULE=" + o.Module,
		EnvPrefix + "_DOMAIN=" + o.Domain,
	}
	if o.BaseDir != "" {
		env = append(env, EnvPrefix+"_BASE_DIR="+o.BaseDir)
	}
	if o.ConfigFile != "" {
		env = append(env, EnvPrefix+"_CONFIG_FILE="+o.ConfigFile)
	}
	if o.LogMode != "" {
		env = append(env, EnvPrefix+"_LOG_MODE="+o.LogMode)
	}
	if o.LogLevel != "" {
		env = append(env, EnvPrefix+"_LOG_LEVEL="+o.LogLevel)
	}
	return env
}
