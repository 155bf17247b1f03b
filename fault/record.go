package fault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Record is the serializable form of an error chain.
type Record struct {
	Kind    string   `json:"kind"`
	Message string   `json:"message,omitempty"`
	Text    string   `json:"text"`
	Origin  string   `json:"origin,omitempty"`
	Stack   []string `json:"stack,omitempty"`
	Cause   *Record  `json:"cause,omitempty"`
	// Foreign marks an error not created by this package; its Kind is the
	// Go type name.
	Foreign bool `json:"foreign,omitempty"`
	// Matches names the well-known sentinels the error's own Is method
	// accepts, such as a syscall.Errno standing for fs.ErrNotExist.
	Matches []string `json:"matches,omitempty"`
}

var sentinels = []struct {
	name string
	err  error
}{
	{"fs.ErrInvalid", fs.ErrInvalid},
	{"fs.ErrPermission", fs.ErrPermission},
	{"fs.ErrExist", fs.ErrExist},
	{"fs.ErrNotExist", fs.ErrNotExist},
	{"fs.ErrClosed", fs.ErrClosed},
	{"io.EOF", io.EOF},
	{"io.ErrUnexpectedEOF", io.ErrUnexpectedEOF},
	{"io.ErrClosedPipe", io.ErrClosedPipe},
	{"os.ErrDeadlineExceeded", os.ErrDeadlineExceeded},
	{"os.ErrProcessDone", os.ErrProcessDone},
	{"context.Canceled", context.Canceled},
	{"context.DeadlineExceeded", context.DeadlineExceeded},
}

func sentinelMatches(err error) []string {
	x, ok := err.(interface{ Is(error) bool })
	if !ok {
		return nil
	}

	var names []string
	for _, s := range sentinels {
		if x.Is(s.err) {
			names = append(names, s.name)
		}
	}
	return names
}

// Capture converts err into a Record. Errors that are not classified by this
// package take their Go type name as kind and origin as their origin.
func Capture(err error, origin string) *Record {
	if err == nil {
		return nil
	}

	switch e := err.(type) {
	case *Error:
		return &Record{
			Kind:    string(e.Kind),
			Message: e.Message,
			Text:    e.Error(),
			Origin:  e.Origin,
			Stack:   e.Stack,
			Cause:   Capture(e.Cause, ""),
		}
	case Kind:
		return &Record{Kind: string(e), Text: e.Error(), Origin: origin}
	default:
		return &Record{
			Kind:    fmt.Sprintf("%T", err),
			Text:    err.Error(),
			Origin:  origin,
			Cause:   Capture(errors.Unwrap(err), ""),
			Foreign: true,
			Matches: sentinelMatches(err),
		}
	}
}

// Err rebuilds the error chain described by r. The rebuilt errors render the
// same text as the originals and match their kinds with errors.Is. A link
// rebuilt from a foreign error matches any target of the same Go type and
// text, so sentinels such as io.EOF or fs.ErrNotExist survive the trip.
func (r *Record) Err() error {
	if r == nil {
		return nil
	}

	return &Error{
		Kind:    Kind(r.Kind),
		Message: r.Message,
		Origin:  r.Origin,
		Stack:   r.Stack,
		Cause:   r.Cause.Err(),
		text:    r.Text,
		foreign: r.Foreign,
		matches: r.Matches,
	}
}
