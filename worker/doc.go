// Package worker implements the isolated side of an execution context.
//
// A worker is a separate process that owns one activator.Domain. The host
// talks to it over stdio using the Model Context Protocol (mark3labs/mcp-go):
// each operation is a tool call ("activate", "call", "snapshot") whose reply
// is a JSON document. Stdout belongs to the protocol; the worker logs to
// stderr only.
//
// Failures raised by activated code are encoded as a Failure carrying a
// fault.Record, so the host can rebuild them with their original kind and
// origin. Closing the worker's stdin ends the process and releases every
// object it created.
package worker
