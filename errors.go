// Package srtgo is a high-level, asynchronous wrapper around the SRT
// streaming protocol: it turns the native library's synchronous, blocking
// calls into a non-blocking, event-driven connection abstraction on top of
// a dedicated Task Runner goroutine.
package srtgo

import (
	"errors"
	"fmt"
)

// Code categorizes an Error by which part of the error-handling design in
// this package produced it.
type Code string

const (
	// CodeTransport marks a native call that returned ERROR. It is never
	// attached to an Error returned from a Future: per the facade's
	// contract, transport errors are delivered as ordinary results there.
	// It does appear on errors surfaced through the Error Slot.
	CodeTransport Code = "transport"
	// CodeDispatch marks an unknown method or malformed arguments caught
	// by the Task Runner.
	CodeDispatch Code = "dispatch"
	// CodeState marks lifecycle misuse: create-called-twice,
	// open-without-create, use-after-dispose.
	CodeState Code = "state"
	// CodeTimeout marks a Future that missed its deadline.
	CodeTimeout Code = "timeout"
	// CodeFatalWorker marks a broken request/reply channel.
	CodeFatalWorker Code = "fatal_worker"
)

// Error is the structured error type returned throughout this package.
type Error struct {
	Op    string // operation that failed, e.g. "open", "write", "accept"
	Fd    int32  // socket fd, -1 if not applicable
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	if e.Fd >= 0 {
		return fmt.Sprintf("srtgo: %s: %s (fd=%d, code=%s)", e.Op, e.Msg, e.Fd, e.Code)
	}
	return fmt.Sprintf("srtgo: %s: %s (code=%s)", e.Op, e.Msg, e.Code)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// NewError builds an Error not tied to any particular fd.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Fd: -1, Code: code, Msg: msg}
}

// NewFdError builds an Error for a specific socket fd.
func NewFdError(op string, fd int32, code Code, msg string) *Error {
	return &Error{Op: op, Fd: fd, Code: code, Msg: msg}
}

// WrapError wraps inner with dispatch-layer context, preserving its code if
// it is already a *Error.
func WrapError(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ce, ok := inner.(*Error); ok {
		return &Error{Op: op, Fd: ce.Fd, Code: ce.Code, Msg: ce.Msg, Inner: ce}
	}
	return &Error{Op: op, Fd: -1, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is an *Error with the given Code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

var (
	// ErrDisposed is returned (wrapped in a state Error) when an operation
	// is attempted on a disposed Socket Owner or Facade.
	ErrDisposed = errors.New("srtgo: disposed")
	// ErrAlreadyCreated is returned when create() is called on a Socket
	// Owner that is not in the None state.
	ErrAlreadyCreated = errors.New("srtgo: socket already created")
	// ErrNotCreated is returned when open() is called before create().
	ErrNotCreated = errors.New("srtgo: socket not created")
)
