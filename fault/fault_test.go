package fault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBadInput = Kind("test.BadInput")

func TestKindNew(t *testing.T) {
	err := errBadInput.New("value %d out of range", 3)

	assert.Equal(t, "test.BadInput: value 3 out of range", err.Error())
	assert.True(t, errors.Is(err, errBadInput))
	assert.False(t, errors.Is(err, Kind("test.Other")))
	assert.Contains(t, err.Origin, "fault_test.go:")
	require.NotEmpty(t, err.Stack)
	assert.Contains(t, err.Stack[0], "TestKindNew")
}

func TestKindWrap(t *testing.T) {
	err := errBadInput.Wrap(fs.ErrNotExist, "reading seed")

	assert.Equal(t, "test.BadInput: reading seed: file does not exist", err.Error())
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.True(t, errors.Is(err, errBadInput))
}

func TestRecovered(t *testing.T) {
	run := func() (err error) {
		defer func() {
			if v := recover(); v != nil {
				err = Recovered(v)
			}
		}()
		panic("boom")
	}

	err := run()
	require.Error(t, err)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, KindPanic, fe.Kind)
	assert.Equal(t, "panic: boom", fe.Error())
	assert.Contains(t, fe.Origin, "fault_test.go:")
}

func TestRecordRoundTrip(t *testing.T) {
	t.Run("ClassifiedChain", func(t *testing.T) {
		original := fmt.Errorf("constructor: %w", errBadInput.New("seed %d", -1))

		rec := Capture(original, "module.go:10")
		data, err := json.Marshal(rec)
		require.NoError(t, err)

		var decoded Record
		require.NoError(t, json.Unmarshal(data, &decoded))
		rebuilt := decoded.Err()

		assert.Equal(t, original.Error(), rebuilt.Error())
		assert.True(t, errors.Is(rebuilt, errBadInput))

		var top *Error
		require.True(t, errors.As(rebuilt, &top))
		assert.Equal(t, Kind("*fmt.wrapError"), top.Kind)
		assert.Equal(t, "module.go:10", top.Origin)

		var inner *Error
		require.True(t, errors.As(top.Unwrap(), &inner))
		assert.Equal(t, errBadInput, inner.Kind)
		assert.Contains(t, inner.Origin, "fault_test.go:")
	})

	t.Run("BareKind", func(t *testing.T) {
		rebuilt := Capture(errBadInput, "module.go:3").Err()
		assert.True(t, errors.Is(rebuilt, errBadInput))
		assert.Equal(t, "test.BadInput", rebuilt.Error())
	})

	t.Run("Nil", func(t *testing.T) {
		assert.Nil(t, Capture(nil, ""))
		var rec *Record
		assert.NoError(t, rec.Err())
	})
}

func TestRecordForeignErrors(t *testing.T) {
	rebuild := func(t *testing.T, err error) error {
		t.Helper()

		data, jsonErr := json.Marshal(Capture(err, "module.go:7"))
		require.NoError(t, jsonErr)
		var rec Record
		require.NoError(t, json.Unmarshal(data, &rec))
		return rec.Err()
	}

	t.Run("PathError", func(t *testing.T) {
		original := &fs.PathError{Op: "open", Path: "x", Err: fs.ErrNotExist}
		rebuilt := rebuild(t, original)

		assert.Equal(t, original.Error(), rebuilt.Error())
		assert.ErrorIs(t, rebuilt, fs.ErrNotExist)
		assert.NotErrorIs(t, rebuilt, fs.ErrExist)
		assert.NotErrorIs(t, rebuilt, io.EOF)
	})

	t.Run("Errno", func(t *testing.T) {
		_, original := os.Stat(filepath.Join(t.TempDir(), "absent"))
		require.ErrorIs(t, original, fs.ErrNotExist)

		rebuilt := rebuild(t, original)
		assert.ErrorIs(t, rebuilt, fs.ErrNotExist)
		assert.NotErrorIs(t, rebuilt, fs.ErrPermission)
	})

	t.Run("BareSentinels", func(t *testing.T) {
		for _, sentinel := range []error{io.EOF, io.ErrUnexpectedEOF, context.DeadlineExceeded, context.Canceled} {
			rebuilt := rebuild(t, fmt.Errorf("reading header: %w", sentinel))
			assert.ErrorIs(t, rebuilt, sentinel)
		}
	})

	t.Run("SameTextOtherType", func(t *testing.T) {
		rebuilt := rebuild(t, Kind("file does not exist"))
		assert.NotErrorIs(t, rebuilt, fs.ErrNotExist)
	})
}
