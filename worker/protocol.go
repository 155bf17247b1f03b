package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/isdmx/modhost/activator"
	"github.com/isdmx/modhost/fault"
)

// Tool names exposed by the worker.
const (
	ToolActivate = "activate"
	ToolCall     = "call"
	ToolSnapshot = "snapshot"
)

// MethodUnload is the notification asking a worker to stop serving. The
// worker finishes its in-flight calls, logs its shutdown and exits.
const MethodUnload = "notifications/modhost/unload"

// Failure classes.
const (
	ClassActivation = "activation"
	ClassInvocation = "invocation"
	ClassDomain     = "domain"
)

// ErrDomain reports a failure of the domain itself rather than of the
// activated code: a broken channel, an unknown handle, a malformed reply.
var ErrDomain = errors.New("domain failure")

// Args holds call arguments. On the wire it is a JSON array rendered as a
// string so integers reach the worker digit for digit.
type Args []any

func (a Args) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal([]any(a))
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(data))
}

func (a *Args) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("arguments must be a JSON array encoded as a string: %w", err)
	}
	if text == "" {
		*a = nil
		return nil
	}

	v, err := ParseJSON(text)
	if err != nil {
		return err
	}
	values, ok := v.([]any)
	if !ok && v != nil {
		return fmt.Errorf("arguments must be a JSON array, got %T", v)
	}
	*a = values
	return nil
}

// ParseJSON decodes a single JSON value. Integers come back as int64, or
// uint64 above the int64 range; other numbers as float64.
func ParseJSON(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return exactNumbers(v), nil
}

func exactNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
			return u
		}
		f, _ := v.Float64()
		return f
	case []any:
		for i := range v {
			v[i] = exactNumbers(v[i])
		}
	case map[string]any:
		for k, e := range v {
			v[k] = exactNumbers(e)
		}
	}
	return v
}

// ActivateArgs requests construction of a type.
type ActivateArgs struct {
	Module string `json:"module,omitempty"`
	Type   string `json:"type"`
	Args   Args   `json:"args,omitempty"`
}

// CallArgs requests a method call on a live object.
type CallArgs struct {
	Handle string `json:"handle"`
	Method string `json:"method"`
	Args   Args   `json:"args,omitempty"`
}

// SnapshotArgs requests the current state of a live object.
type SnapshotArgs struct {
	Handle string `json:"handle"`
}

// Reply is the successful result of a tool call.
type Reply struct {
	Handle   string `json:"handle,omitempty"`
	TypeName string `json:"type_name,omitempty"`
	// State is the JSON encoding of the object; StateError explains why it
	// is missing when the object cannot be encoded.
	State      json.RawMessage `json:"state,omitempty"`
	StateError string          `json:"state_error,omitempty"`
	Results    []any           `json:"results,omitempty"`
}

// Failure is the wire form of an error raised while serving a tool call.
type Failure struct {
	Class   string        `json:"class"`
	Message string        `json:"message"`
	Module  string        `json:"module,omitempty"`
	Type    string        `json:"type,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	Target  string        `json:"target,omitempty"`
	Origin  string        `json:"origin,omitempty"`
	Fault   *fault.Record `json:"fault,omitempty"`
}

var reasons = []struct {
	name string
	err  error
}{
	{"type_not_found", activator.ErrTypeNotFound},
	{"no_matching_constructor", activator.ErrNoMatchingConstructor},
	{"method_not_found", activator.ErrMethodNotFound},
	{"no_matching_method", activator.ErrNoMatchingMethod},
	{"module_load", activator.ErrModuleLoad},
}

// EncodeFailure converts err into its wire form.
func EncodeFailure(err error) *Failure {
	var ie *activator.InvocationError
	if errors.As(err, &ie) {
		return &Failure{
			Class:   ClassInvocation,
			Message: err.Error(),
			Target:  ie.Target,
			Origin:  ie.Origin,
			Fault:   fault.Capture(ie.Cause, ie.Origin),
		}
	}

	var ae *activator.ActivationError
	if errors.As(err, &ae) {
		f := &Failure{
			Class:  ClassActivation,
			Module: ae.Module,
			Type:   ae.Type,
		}
		if ae.Err != nil {
			f.Message = ae.Err.Error()
		}
		for _, r := range reasons {
			if errors.Is(ae.Err, r.err) {
				f.Reason = r.name
				break
			}
		}
		return f
	}

	return &Failure{Class: ClassDomain, Message: err.Error()}
}

// Err rebuilds the error described by f. Invocation failures come back as
// *activator.InvocationError around the rebuilt cause.
func (f *Failure) Err() error {
	switch f.Class {
	case ClassInvocation:
		return &activator.InvocationError{Target: f.Target, Origin: f.Origin, Cause: f.Fault.Err()}
	case ClassActivation:
		return &activator.ActivationError{Module: f.Module, Type: f.Type, Err: f.reasonErr()}
	default:
		return fmt.Errorf("%w: %s", ErrDomain, f.Message)
	}
}

func (f *Failure) reasonErr() error {
	for _, r := range reasons {
		if r.name != f.Reason {
			continue
		}
		rest, ok := strings.CutPrefix(f.Message, r.err.Error())
		if !ok {
			return fmt.Errorf("%w: %s", r.err, f.Message)
		}
		if rest == "" {
			return r.err
		}
		return fmt.Errorf("%w%s", r.err, rest)
	}
	return errors.New(f.Message)
}
