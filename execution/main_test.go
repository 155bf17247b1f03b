package execution

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/isdmx/modhost/internal/testmodule"
	"github.com/isdmx/modhost/logger"
	"github.com/isdmx/modhost/worker"
)

const (
	testWorkerEnv     = "MODHOST_TEST_WORKER"
	testWorkerFailEnv = "MODHOST_TEST_WORKER_FAIL"
	testWorkerHangEnv = "MODHOST_TEST_WORKER_HANG"
)

// TestMain lets the test binary double as the worker process.
func TestMain(m *testing.M) {
	if os.Getenv(testWorkerEnv) == "1" {
		os.Exit(runTestWorker())
	}
	os.Exit(m.Run())
}

func runTestWorker() int {
	if os.Getenv(testWorkerFailEnv) == "1" {
		fmt.Fprintln(os.Stderr, "worker refusing to start")
		return 3
	}

	worker.IgnoreBrokenPipe()

	opts, err := worker.LoadOptions()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log, err := logger.New(opts.LogMode, opts.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	s, err := worker.New(log, opts, testmodule.Loader())
	if err != nil {
		log.Error("failed to create worker", zap.Error(err))
		return 1
	}

	if err := s.Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
		log.Error("worker stopped", zap.Error(err))
		return 1
	}

	// Keeps stderr open past the unload so only a kill ends the process.
	if os.Getenv(testWorkerHangEnv) == "1" {
		time.Sleep(time.Hour)
	}
	return 0
}

// testWorker runs this test binary as the worker.
func testWorker(t *testing.T, env ...string) Option {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)
	return WithWorker(exe, nil, append([]string{testWorkerEnv + "=1"}, env...))
}
