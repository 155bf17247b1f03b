package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/modhost/activator"
)

// Version is reported to the host during the protocol handshake.
const Version = "1.0.0"

// Server serves one execution domain.
type Server struct {
	opts      Options
	logger    *zap.Logger
	domain    *activator.Domain
	mcpServer *server.MCPServer

	mu      sync.Mutex
	objects map[string]any
	// stop ends a running Serve; unloading is set once the host asked for it.
	stop      context.CancelFunc
	unloading bool
}

// New creates a Server for the module named in opts.
func New(logger *zap.Logger, opts Options, loader activator.Loader) (*Server, error) {
	if opts.Module == "" {
		return nil, fmt.Errorf("module path is required")
	}

	s := &Server{
		opts:    opts,
		logger:  logger.With(zap.String("domain", opts.Domain)),
		domain:  activator.NewDomain(opts.ModulePath(), loader),
		objects: make(map[string]any),
	}

	s.logger.Info("domain created",
		zap.String("module", opts.ModulePath()),
		zap.String("base", s.domain.Base()),
		zap.String("config_file", opts.ConfigFile),
	)

	s.mcpServer = server.NewMCPServer("modhost-worker", Version, server.WithToolCapabilities(false))
	s.registerTools()
	s.mcpServer.AddNotificationHandler(MethodUnload, s.handleUnload)

	return s, nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(ToolActivate,
		mcp.WithDescription("Construct a type from a module loaded in this domain"),
		mcp.WithString("module", mcp.Description("Module name; empty selects the domain's own module")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Registered type name")),
		mcp.WithString("args", mcp.Description("Constructor arguments as a JSON array")),
	), s.handleActivate)

	s.mcpServer.AddTool(mcp.NewTool(ToolCall,
		mcp.WithDescription("Call an exported method of an object created in this domain"),
		mcp.WithString("handle", mcp.Required(), mcp.Description("Object handle returned by activate")),
		mcp.WithString("method", mcp.Required(), mcp.Description("Method name")),
		mcp.WithString("args", mcp.Description("Method arguments as a JSON array")),
	), s.handleCall)

	s.mcpServer.AddTool(mcp.NewTool(ToolSnapshot,
		mcp.WithDescription("Return the JSON state of an object created in this domain"),
		mcp.WithString("handle", mcp.Required(), mcp.Description("Object handle returned by activate")),
	), s.handleSnapshot)
}

func (s *Server) handleActivate(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args ActivateArgs
	if err := request.BindArguments(&args); err != nil {
		return s.failure(fmt.Errorf("invalid %s arguments: %w", ToolActivate, err)), nil
	}

	obj, err := s.domain.Activate(args.Module, args.Type, args.Args)
	if err != nil {
		s.logger.Debug("activation failed",
			zap.String("module", args.Module),
			zap.String("type", args.Type),
			zap.Error(err))
		return s.failure(err), nil
	}

	handle := uuid.NewString()
	s.mu.Lock()
	s.objects[handle] = obj
	s.mu.Unlock()

	s.logger.Debug("object created",
		zap.String("type", args.Type),
		zap.String("handle", handle),
		zap.Int("args", len(args.Args)))

	reply := Reply{Handle: handle, TypeName: fmt.Sprintf("%T", obj)}
	reply.State, reply.StateError = snapshot(obj)
	return s.reply(reply), nil
}

func (s *Server) handleCall(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args CallArgs
	if err := request.BindArguments(&args); err != nil {
		return s.failure(fmt.Errorf("invalid %s arguments: %w", ToolCall, err)), nil
	}

	obj, err := s.lookup(args.Handle)
	if err != nil {
		return s.failure(err), nil
	}

	results, err := activator.Invoke(obj, args.Method, args.Args)
	if err != nil {
		s.logger.Debug("call failed",
			zap.String("handle", args.Handle),
			zap.String("method", args.Method),
			zap.Error(err))
		return s.failure(err), nil
	}

	return s.reply(Reply{Handle: args.Handle, Results: results}), nil
}

func (s *Server) handleSnapshot(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args SnapshotArgs
	if err := request.BindArguments(&args); err != nil {
		return s.failure(fmt.Errorf("invalid %s arguments: %w", ToolSnapshot, err)), nil
	}

	obj, err := s.lookup(args.Handle)
	if err != nil {
		return s.failure(err), nil
	}

	reply := Reply{Handle: args.Handle, TypeName: fmt.Sprintf("%T", obj)}
	reply.State, reply.StateError = snapshot(obj)
	return s.reply(reply), nil
}

func (s *Server) lookup(handle string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	obj, ok := s.objects[handle]
	if !ok {
		return nil, fmt.Errorf("unknown object handle %q", handle)
	}
	return obj, nil
}

func (s *Server) reply(reply Reply) *mcp.CallToolResult {
	data, err := json.Marshal(reply)
	if err != nil {
		return s.failure(fmt.Errorf("failed to encode reply: %w", err))
	}
	return mcp.NewToolResultText(string(data))
}

func (s *Server) failure(err error) *mcp.CallToolResult {
	data, encErr := json.Marshal(EncodeFailure(err))
	if encErr != nil {
		s.logger.Error("failed to encode failure", zap.Error(encErr), zap.NamedError("failure", err))
		data, _ = json.Marshal(&Failure{Class: ClassDomain, Message: err.Error()})
	}
	return mcp.NewToolResultError(string(data))
}

func snapshot(obj any) (json.RawMessage, string) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err.Error()
	}
	return data, ""
}

// handleUnload ends Serve while the host still reads the worker's stderr.
func (s *Server) handleUnload(context.Context, mcp.JSONRPCNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Debug("unload requested")
	s.unloading = true
	if s.stop != nil {
		s.stop()
	}
}

// Serve runs the protocol on in and out until in is closed, the host sends
// an unload notification or ctx is done. Only the last case is an error.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.stop = cancel
	unloading := s.unloading
	s.mu.Unlock()
	if unloading {
		cancel()
	}

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))

	s.logger.Info("domain serving")
	err := stdio.Listen(ctx, in, out)

	s.mu.Lock()
	live := len(s.objects)
	if s.unloading && errors.Is(err, context.Canceled) {
		err = nil
	}
	s.stop = nil
	s.mu.Unlock()
	s.logger.Info("domain unloading", zap.Int("objects", live))

	return err
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}
