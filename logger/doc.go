// Package logger provides structured logging capabilities.
//
// The logger package builds the zap loggers used by the host and by worker
// processes. Both write to stderr; the host drains a worker's stderr into
// its own logger.
//
// Usage:
//
//	log, err := logger.New("production", "info")
//	if err != nil {
//	    panic(err)
//	}
//	log.Info("context created", zap.String("module", path))
package logger
