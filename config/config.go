package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. MODHOST_CONTEXT_ISOLATE.
const EnvPrefix = "MODHOST"

// Config represents the host configuration
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Context ContextConfig `mapstructure:"context"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// ContextConfig holds the defaults applied to every execution context
type ContextConfig struct {
	Isolate          bool     `mapstructure:"isolate"`
	ShadowCopy       bool     `mapstructure:"shadow_copy"`
	ShadowCopyDir    string   `mapstructure:"shadow_copy_dir"`
	StagingExcludes  []string `mapstructure:"staging_excludes"`
	WorkerCommand    string   `mapstructure:"worker_command"`
	WorkerArgs       []string `mapstructure:"worker_args"`
	ShutdownGraceSec int      `mapstructure:"shutdown_grace_sec"`
}

// New loads and validates the host configuration. When file is empty,
// modhost.yaml is searched in the working directory and ./config.
func New(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("modhost")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
	v.SetDefault("context.isolate", true)
	v.SetDefault("context.shadow_copy", false)
	v.SetDefault("context.shadow_copy_dir", "")
	v.SetDefault("context.staging_excludes", []string{".git/**"})
	v.SetDefault("context.worker_command", "")
	v.SetDefault("context.worker_args", []string{"worker"})
	v.SetDefault("context.shutdown_grace_sec", 5)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	if c.Context.ShutdownGraceSec <= 0 {
		return fmt.Errorf("context.shutdown_grace_sec must be positive, got: %d", c.Context.ShutdownGraceSec)
	}

	if c.Context.ShadowCopyDir != "" && !c.Context.ShadowCopy {
		return fmt.Errorf("context.shadow_copy_dir requires context.shadow_copy")
	}

	for _, pattern := range c.Context.StagingExcludes {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("context.staging_excludes must not contain empty patterns")
		}
	}

	return nil
}

// GetShutdownGrace returns how long a worker may take to exit before it is killed
func (c *ContextConfig) GetShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSec) * time.Second
}
