package execution

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isdmx/modhost/activator"
	"github.com/isdmx/modhost/worker"
)

var errWorkerExited = errors.New("worker process exited")

// IsolatedContext hosts a module in a dedicated worker process. Disposing it
// ends the process, which releases everything the module loaded.
type IsolatedContext struct {
	logger     *zap.Logger
	name       string
	modulePath string
	configPath string
	grace      time.Duration

	// ctx is cancelled once the worker's stderr closes, which fails any
	// call still waiting on a dead worker.
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu       sync.Mutex
	disposed bool
	client   *worker.Client
	mcp      *client.Client
	cmd      *exec.Cmd
	staging  *StagingArea
	drained  chan struct{}
}

func newIsolatedContext(logger *zap.Logger, req Request, modulePath, configPath string, o *options) (*IsolatedContext, error) {
	name := uuid.NewString()
	ctx, cancel := context.WithCancelCause(context.Background())

	c := &IsolatedContext{
		logger:     logger.With(zap.String("domain", name)),
		name:       name,
		modulePath: modulePath,
		configPath: configPath,
		grace:      o.grace,
		ctx:        ctx,
		cancel:     cancel,
	}

	workerModule := modulePath
	if req.ShadowCopy {
		staging, err := Stage(o.fs, req.ShadowCopyDir, name, filepath.Dir(modulePath), o.excludes)
		if err != nil {
			cancel(err)
			return nil, err
		}
		c.staging = staging
		workerModule = staging.Path(filepath.Base(modulePath))
		c.logger.Debug("module staged", zap.String("dir", staging.Dir()))
	}

	if err := c.start(workerModule, o); err != nil {
		c.release()
		return nil, err
	}

	c.logger.Info("isolated context created",
		zap.String("worker_module", workerModule),
		zap.String("config", configPath))

	return c, nil
}

func (c *IsolatedContext) start(workerModule string, o *options) error {
	command := o.workerCommand
	if command == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to locate worker executable: %w", err)
		}
		command = exe
	}

	opts := worker.Options{
		Module:     workerModule,
		BaseDir:    filepath.Dir(workerModule),
		ConfigFile: c.configPath,
		Domain:     c.name,
		LogMode:    "production",
		LogLevel:   workerLogLevel(c.logger),
	}
	env := append(opts.Environ(), o.workerEnv...)

	mc, err := client.NewStdioMCPClientWithOptions(command, env, o.workerArgs,
		transport.WithCommandFunc(func(_ context.Context, command string, env, args []string) (*exec.Cmd, error) {
			cmd := exec.Command(command, args...) //nolint:gosec // worker command comes from host configuration
			cmd.Env = append(os.Environ(), env...)
			cmd.Dir = opts.BaseDir
			c.cmd = cmd
			return cmd, nil
		}),
		transport.WithCommandLogger(c.logger.Sugar()),
	)
	if err != nil {
		return fmt.Errorf("failed to start worker %s: %w", command, err)
	}
	c.mcp = mc

	if stderr, ok := client.GetStderr(mc); ok {
		c.drained = make(chan struct{})
		go c.drain(stderr)
	}

	wc, err := worker.NewClient(c.ctx, mc)
	if err != nil {
		return c.channelError(err)
	}
	c.client = wc

	c.logger.Debug("worker started", zap.Int("pid", c.cmd.Process.Pid))
	return nil
}

// drain forwards worker log lines so the stderr pipe never fills.
func (c *IsolatedContext) drain(stderr io.Reader) {
	defer close(c.drained)
	defer c.cancel(errWorkerExited)

	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		c.logger.Debug("worker", zap.String("line", scanner.Text()))
	}
}

func workerLogLevel(logger *zap.Logger) string {
	for _, level := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel} {
		if logger.Core().Enabled(level) {
			return level.String()
		}
	}
	return zapcore.ErrorLevel.String()
}

func (c *IsolatedContext) ModulePath() string { return c.modulePath }

func (c *IsolatedContext) ConfigPath() string { return c.configPath }

func (*IsolatedContext) Isolated() bool { return true }

// Name returns the domain name, which also names the staging directory.
func (c *IsolatedContext) Name() string { return c.name }

// StagingDir returns the shadow copy directory, or "" without shadow copy.
func (c *IsolatedContext) StagingDir() string {
	if c.staging == nil {
		return ""
	}
	return c.staging.Dir()
}

func (c *IsolatedContext) CreateObject(module, typeName string, args ...any) (Object, error) {
	reply, err := c.do(func(wc *worker.Client) (*worker.Reply, error) {
		return wc.Activate(c.ctx, worker.ActivateArgs{Module: module, Type: typeName, Args: args})
	})
	if err != nil {
		return nil, err
	}
	return &remoteObject{owner: c, handle: reply.Handle, typeName: reply.TypeName}, nil
}

func (c *IsolatedContext) do(fn func(*worker.Client) (*worker.Reply, error)) (*worker.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return nil, ErrDisposed
	}

	reply, err := fn(c.client)
	if err != nil {
		return nil, activator.Unwrap(c.channelError(err))
	}
	return reply, nil
}

// channelError names a dead worker as the cause of a failed call.
func (c *IsolatedContext) channelError(err error) error {
	if cause := context.Cause(c.ctx); errors.Is(cause, errWorkerExited) && errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", worker.ErrDomain, errWorkerExited)
	}
	return err
}

// Dispose ends the worker process and removes the staging area. Failures
// are logged and dropped.
func (c *IsolatedContext) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disposed {
		return
	}
	c.disposed = true

	defer func() {
		if v := recover(); v != nil {
			c.logger.Warn("panic while disposing context", zap.Any("panic", v))
		}
	}()

	c.release()
	c.logger.Info("isolated context disposed")
}

func (c *IsolatedContext) release() {
	c.stopWorker()
	c.cancel(ErrDisposed)

	if c.staging != nil {
		c.staging.Remove(c.logger)
	}
}

// stopWorker asks the worker to unload and waits for its stderr to close so
// its shutdown lines are logged. A worker that outlives the grace period is
// killed.
func (c *IsolatedContext) stopWorker() {
	if c.mcp == nil {
		return
	}

	killed := false
	if c.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.grace)
		err := c.client.Unload(ctx)
		cancel()
		if err != nil {
			c.logger.Debug("unload notification not delivered", zap.Error(err))
		}
		if !c.waitDrained() {
			c.kill()
			killed = true
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- c.mcp.Close()
	}()

	select {
	case err := <-done:
		c.logExit(err, killed)
	case <-time.After(c.grace):
		if !killed {
			c.kill()
		}
		c.logExit(<-done, true)
	}

	if c.drained != nil {
		<-c.drained
	}
}

func (c *IsolatedContext) waitDrained() bool {
	if c.drained == nil {
		return true
	}

	select {
	case <-c.drained:
		return true
	case <-time.After(c.grace):
		return false
	}
}

func (c *IsolatedContext) kill() {
	c.logger.Warn("worker did not exit in time, killing it", zap.Duration("grace", c.grace))
	if c.cmd == nil || c.cmd.Process == nil {
		return
	}
	if err := c.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		c.logger.Warn("failed to kill worker", zap.Error(err))
	}
}

func (c *IsolatedContext) logExit(err error, killed bool) {
	switch {
	case err == nil:
		c.logger.Debug("worker exited")
	case killed:
		c.logger.Debug("killed worker exited", zap.Error(err))
	default:
		c.logger.Warn("worker exited with error", zap.Error(err))
	}
}

type remoteObject struct {
	owner    *IsolatedContext
	handle   string
	typeName string
}

func (o *remoteObject) TypeName() string {
	return o.typeName
}

func (o *remoteObject) Call(method string, args ...any) ([]any, error) {
	reply, err := o.owner.do(func(wc *worker.Client) (*worker.Reply, error) {
		return wc.Call(o.owner.ctx, worker.CallArgs{Handle: o.handle, Method: method, Args: args})
	})
	if err != nil {
		return nil, err
	}
	return reply.Results, nil
}

func (o *remoteObject) Decode(target any) error {
	reply, err := o.owner.do(func(wc *worker.Client) (*worker.Reply, error) {
		return wc.Snapshot(o.owner.ctx, worker.SnapshotArgs{Handle: o.handle})
	})
	if err != nil {
		return err
	}
	if reply.StateError != "" {
		return fmt.Errorf("%s cannot be decoded: %s", o.typeName, reply.StateError)
	}
	return json.Unmarshal(reply.State, target)
}
