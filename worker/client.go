package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// Client is the host side of the worker protocol.
type Client struct {
	mcp *client.Client
}

// NewClient starts c if it is not running yet and performs the protocol
// handshake.
func NewClient(ctx context.Context, c *client.Client) (*Client, error) {
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to start transport: %w", ErrDomain, err)
	}

	var init mcp.InitializeRequest
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{Name: "modhost", Version: Version}

	if _, err := c.Initialize(ctx, init); err != nil {
		return nil, fmt.Errorf("%w: handshake failed: %w", ErrDomain, err)
	}

	return &Client{mcp: c}, nil
}

// Activate constructs a type inside the worker.
func (c *Client) Activate(ctx context.Context, args ActivateArgs) (*Reply, error) {
	return c.call(ctx, ToolActivate, args)
}

// Call invokes a method on an object living in the worker.
func (c *Client) Call(ctx context.Context, args CallArgs) (*Reply, error) {
	return c.call(ctx, ToolCall, args)
}

// Snapshot fetches the current state of an object living in the worker.
func (c *Client) Snapshot(ctx context.Context, args SnapshotArgs) (*Reply, error) {
	return c.call(ctx, ToolSnapshot, args)
}

// Unload asks the worker to stop serving. It does not wait for the worker
// to exit.
func (c *Client) Unload(ctx context.Context) error {
	err := c.mcp.GetTransport().SendNotification(ctx, mcp.JSONRPCNotification{
		JSONRPC:      mcp.JSONRPC_VERSION,
		Notification: mcp.Notification{Method: MethodUnload},
	})
	if err != nil {
		return fmt.Errorf("%w: unload: %w", ErrDomain, err)
	}
	return nil
}

// Close closes the channel. For a stdio transport this closes the worker's
// stdin and waits for it to exit.
func (c *Client) Close() error {
	return c.mcp.Close()
}

func (c *Client) call(ctx context.Context, tool string, args any) (*Reply, error) {
	var req mcp.CallToolRequest
	req.Params.Name = tool
	req.Params.Arguments = args

	res, err := c.mcp.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDomain, tool, err)
	}

	text, ok := resultText(res)
	if !ok {
		return nil, fmt.Errorf("%w: %s: reply carries no text content", ErrDomain, tool)
	}

	if res.IsError {
		var f Failure
		if err := json.Unmarshal([]byte(text), &f); err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrDomain, tool, text)
		}
		return nil, f.Err()
	}

	var reply Reply
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("%w: %s: malformed reply: %w", ErrDomain, tool, err)
	}
	for i, v := range reply.Results {
		reply.Results[i] = exactNumbers(v)
	}
	return &reply, nil
}

func resultText(res *mcp.CallToolResult) (string, bool) {
	for _, content := range res.Content {
		if tc, ok := mcp.AsTextContent(content); ok {
			return tc.Text, true
		}
	}
	return "", false
}
