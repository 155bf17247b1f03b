// Package main is the entry point for the modhost command.
//
// modhost loads a module into an execution context and constructs one of its
// types, optionally calling a method on the result. With --isolate the module
// runs in a worker process, which is this same binary started with the hidden
// "worker" command and driven over stdio.
//
// The worker uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging. The host reads its defaults
// with viper from modhost.yaml.
package main
