package fault

import (
	"fmt"
	"runtime"
	"strings"
)

// Kind identifies a class of failure. A Kind is itself an error and can be
// returned or compared directly.
type Kind string

// KindPanic classifies a recovered panic.
const KindPanic Kind = "panic"

func (k Kind) Error() string {
	return string(k)
}

// New creates an Error of this kind, recording the caller as its origin.
func (k Kind) New(format string, args ...any) *Error {
	return newError(k, fmt.Sprintf(format, args...), nil, 4)
}

// Wrap creates an Error of this kind around cause.
func (k Kind) Wrap(cause error, format string, args ...any) *Error {
	return newError(k, fmt.Sprintf(format, args...), cause, 4)
}

// Error is a classified failure with origin information and an explicit
// cause chain.
type Error struct {
	Kind    Kind
	Message string
	// Origin is the file:line where the failure was raised.
	Origin string
	// Stack holds one "function file:line" entry per frame, innermost first.
	Stack []string
	Cause error

	// text overrides the rendered message for errors rebuilt from a Record.
	text    string
	foreign bool
	matches []string
}

func newError(kind Kind, msg string, cause error, skip int) *Error {
	stack := callers(skip)
	e := &Error{Kind: kind, Message: msg, Stack: stack, Cause: cause}
	if len(stack) > 0 {
		e.Origin = frameLocation(stack[0])
	}
	return e
}

func (e *Error) Error() string {
	if e.text != "" {
		return e.text
	}

	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the same Kind, or an Error of the same Kind.
// An Error rebuilt from a foreign error also matches what the original did.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return t == e.Kind
	case *Error:
		return t.Kind == e.Kind
	}
	if !e.foreign || target == nil {
		return false
	}

	if fmt.Sprintf("%T", target) == string(e.Kind) && target.Error() == e.Error() {
		return true
	}
	for _, name := range e.matches {
		for _, s := range sentinels {
			if s.name == name && s.err == target {
				return true
			}
		}
	}
	return false
}

// Recovered converts a value obtained from recover into an Error of kind
// KindPanic. It must be called directly from the deferred function so the
// panicking frame becomes the origin.
func Recovered(v any) *Error {
	e := &Error{Kind: KindPanic, Message: fmt.Sprint(v), Stack: callers(4)}
	if err, ok := v.(error); ok {
		e.Cause = err
	}
	if len(e.Stack) > 0 {
		e.Origin = frameLocation(e.Stack[0])
	}
	return e
}

// callers returns the stack above skip frames, without runtime internals.
func callers(skip int) []string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") && frame.Function != "" {
			stack = append(stack, fmt.Sprintf("%s %s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}
	return stack
}

func frameLocation(frame string) string {
	if i := strings.LastIndexByte(frame, ' '); i >= 0 {
		return frame[i+1:]
	}
	return frame
}
