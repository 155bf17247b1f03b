// Package config provides host configuration management.
//
// The config package loads and validates the defaults used when creating
// execution contexts from a YAML file, with environment overrides prefixed
// by MODHOST_. It covers logging, isolation and shadow copy settings, and
// how the worker process is launched.
//
// Usage:
//
//	cfg, err := config.New("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Isolate by default: %v\n", cfg.Context.Isolate)
package config
