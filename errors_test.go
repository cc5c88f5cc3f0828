package srtgo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewErrorFormatting(t *testing.T) {
	err := NewError("open", CodeState, "socket not created")
	require.Equal(t, int32(-1), err.Fd)
	require.NotEmpty(t, err.Error())
}

func TestNewFdErrorIncludesFd(t *testing.T) {
	err := NewFdError("write", 7, CodeTransport, "connection broken")
	require.Contains(t, err.Error(), fmt.Sprintf("fd=%d", 7))
}

func TestWrapErrorPreservesCode(t *testing.T) {
	inner := NewFdError("read", 3, CodeDispatch, "unknown method")
	wrapped := WrapError("server.dispatch", CodeState, inner)
	require.Equal(t, CodeDispatch, wrapped.Code)
	require.ErrorIs(t, wrapped, inner)
}

func TestWrapErrorNilIsNil(t *testing.T) {
	require.Nil(t, WrapError("op", CodeState, nil))
}

func TestIsCode(t *testing.T) {
	err := NewError("dispose", CodeFatalWorker, "channel broken")
	require.True(t, IsCode(err, CodeFatalWorker))
	require.False(t, IsCode(err, CodeTimeout))
	require.False(t, IsCode(errors.New("plain"), CodeFatalWorker))
}
