package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/modhost/config"
	"github.com/isdmx/modhost/execution"
	"github.com/isdmx/modhost/logger"
	"github.com/isdmx/modhost/worker"
)

type activateFlags struct {
	hostConfig    string
	configFile    string
	moduleName    string
	isolate       bool
	shadowCopy    bool
	shadowCopyDir string
	call          string
	callArgs      string
	output        string
}

// activation is what the activate command prints.
type activation struct {
	Module   string `json:"module" yaml:"module"`
	Type     string `json:"type" yaml:"type"`
	Isolated bool   `json:"isolated" yaml:"isolated"`
	Config   string `json:"config,omitempty" yaml:"config,omitempty"`
	State    any    `json:"state" yaml:"state"`
	Method   string `json:"method,omitempty" yaml:"method,omitempty"`
	Results  []any  `json:"results,omitempty" yaml:"results,omitempty"`
}

func newActivateCmd() *cobra.Command {
	var flags activateFlags

	cmd := &cobra.Command{
		Use:   "activate MODULE TYPE [ARGS...]",
		Short: "Create an object from a module and print its state",
		Long: `Loads MODULE into a new execution context and constructs TYPE with ARGS.

Each argument is parsed as JSON when possible (42, true, {"size": 4}) and
passed as a string otherwise. The context is disposed before the command exits.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(flags.hostConfig)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("isolate") {
				flags.isolate = cfg.Context.Isolate
			}
			if !cmd.Flags().Changed("shadow-copy") {
				flags.shadowCopy = cfg.Context.ShadowCopy
			}
			if !cmd.Flags().Changed("shadow-copy-dir") {
				flags.shadowCopyDir = cfg.Context.ShadowCopyDir
			}

			log, err := logger.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			return runActivate(cmd.OutOrStdout(), log, cfg, &flags, args[0], args[1], parseArgs(args[2:]))
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.hostConfig, "host-config", "", "host configuration file (default: modhost.yaml in . or ./config)")
	f.StringVar(&flags.configFile, "config", "", "module configuration file (default: MODULE.config when present)")
	f.StringVar(&flags.moduleName, "module-name", "", "construct TYPE from this sibling module instead of MODULE")
	f.BoolVar(&flags.isolate, "isolate", true, "host the module in a worker process")
	f.BoolVar(&flags.shadowCopy, "shadow-copy", false, "load the module from a private copy of its directory")
	f.StringVar(&flags.shadowCopyDir, "shadow-copy-dir", "", "directory for shadow copies (default: system temp dir)")
	f.StringVar(&flags.call, "call", "", "method to call on the created object")
	f.StringVar(&flags.callArgs, "call-args", "[]", "JSON array of arguments for --call")
	f.StringVarP(&flags.output, "output", "o", "json", "output format: json or yaml")

	return cmd
}

func runActivate(out io.Writer, log *zap.Logger, cfg *config.Config, flags *activateFlags, module, typeName string, args []any) error {
	if flags.output != "json" && flags.output != "yaml" {
		return fmt.Errorf("unsupported output format: %s", flags.output)
	}

	var callArgs []any
	if flags.call != "" {
		v, err := worker.ParseJSON(flags.callArgs)
		if err != nil {
			return fmt.Errorf("invalid --call-args: %w", err)
		}
		var ok bool
		if callArgs, ok = v.([]any); !ok && v != nil {
			return fmt.Errorf("invalid --call-args: want a JSON array, got %T", v)
		}
	}

	ec, err := execution.New(log, execution.Request{
		ModulePath:    module,
		ConfigPath:    flags.configFile,
		Isolate:       flags.isolate,
		ShadowCopy:    flags.shadowCopy,
		ShadowCopyDir: flags.shadowCopyDir,
	}, execution.FromConfig(&cfg.Context)...)
	if err != nil {
		return err
	}
	defer ec.Dispose()

	obj, err := ec.CreateObject(flags.moduleName, typeName, args...)
	if err != nil {
		return err
	}

	result := activation{
		Module:   ec.ModulePath(),
		Type:     obj.TypeName(),
		Isolated: ec.Isolated(),
		Config:   ec.ConfigPath(),
	}

	if flags.call != "" {
		results, err := obj.Call(flags.call, callArgs...)
		if err != nil {
			return err
		}
		result.Method = flags.call
		result.Results = results
	}

	var raw json.RawMessage
	if err := obj.Decode(&raw); err != nil {
		return err
	}
	if result.State, err = worker.ParseJSON(string(raw)); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}

	return render(out, flags.output, result)
}

func render(out io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseArgs reads each argument as JSON, falling back to the raw string.
// Integers keep every digit.
func parseArgs(raw []string) []any {
	args := make([]any, 0, len(raw))
	for _, s := range raw {
		v, err := worker.ParseJSON(s)
		if err != nil {
			args = append(args, s)
			continue
		}
		args = append(args, v)
	}
	return args
}
