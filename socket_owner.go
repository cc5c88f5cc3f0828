package srtgo

import (
	"sync"
	"time"

	"github.com/srtgo/srtgo/internal/events"
	"github.com/srtgo/srtgo/internal/logging"
	"github.com/srtgo/srtgo/internal/runner"
	"github.com/srtgo/srtgo/internal/srtnative"
)

// OwnerState is the lifecycle state of a Socket Owner. Transitions only
// ever move forward; Disposed is terminal.
type OwnerState int

const (
	StateNone OwnerState = iota
	StateCreated
	StateOpen
	StateDisposed
)

func (s OwnerState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateCreated:
		return "created"
	case StateOpen:
		return "open"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// opener performs the subclass-specific half of open(): listen for a
// Server, connect for a Dialer.
type opener interface {
	openSocket(fd int32) error
}

// socketOwner is the abstract base (C4) embedded by Server and Dialer. It
// owns exactly one socket fd end to end: creation, option application, and
// disposal. Exported wrapper types forward their emitter surface to
// Events.
type socketOwner struct {
	facade  *Facade
	logger  *logging.Logger
	Events  *events.Registry
	sender  bool

	mu    sync.Mutex
	state OwnerState
	fd    int32
}

func newSocketOwner(facade *Facade, logger *logging.Logger, sender bool) *socketOwner {
	return &socketOwner{
		facade: facade,
		logger: logger,
		Events: events.NewRegistry(logger),
		sender: sender,
		state:  StateNone,
		fd:     -1,
	}
}

// State reports the current lifecycle state.
func (o *socketOwner) State() OwnerState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Fd returns the owned socket fd, or -1 before creation or after disposal.
func (o *socketOwner) Fd() int32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fd
}

// create asks the facade for a socket and transitions None -> Created.
// Calling create twice is a caller error (State error).
func (o *socketOwner) create() error {
	o.mu.Lock()
	if o.state != StateNone {
		o.mu.Unlock()
		return NewError("create", CodeState, ErrAlreadyCreated.Error())
	}
	o.mu.Unlock()

	result, err := o.facade.Submit(runner.MethodCreateSocket, o.sender).Await(0)
	if err != nil {
		return WrapError("create", CodeState, err)
	}
	fd, ok := result.(int32)
	if !ok || fd == srtnative.ERROR {
		return NewError("create", CodeTransport, "create_socket failed")
	}

	o.mu.Lock()
	o.fd = fd
	o.state = StateCreated
	o.mu.Unlock()

	o.Events.Emit("created", fd)
	return nil
}

// sockOptResult pairs one option identifier with the outcome of applying
// it, per the "option batch" contract: all options are submitted in
// parallel before any result is awaited.
type sockOptResult struct {
	Opt srtnative.SockOpt
	Err error
}

// setSocketFlags applies opts in parallel: every Submit happens before
// any Await. Permitted only between Created and Open.
func (o *socketOwner) setSocketFlags(opts []srtnative.SockOpt, values []any) ([]sockOptResult, error) {
	o.mu.Lock()
	state := o.state
	fd := o.fd
	o.mu.Unlock()

	if state != StateCreated && state != StateOpen {
		return nil, NewError("set_socket_flags", CodeState, "socket must be created and not yet disposed")
	}
	if len(opts) != len(values) {
		return nil, NewError("set_socket_flags", CodeState, "opts and values length mismatch")
	}

	futures := make([]*Future, len(opts))
	for i, opt := range opts {
		futures[i] = o.facade.Submit(runner.MethodSetSockOpt, fd, opt, values[i])
	}

	results := make([]sockOptResult, len(opts))
	for i, opt := range opts {
		_, err := futures[i].Await(0)
		results[i] = sockOptResult{Opt: opt, Err: err}
	}
	return results, nil
}

// open requires Created, delegates to the embedding type's openSocket, and
// transitions to Open on success.
func (o *socketOwner) open(sub opener) error {
	o.mu.Lock()
	if o.state != StateCreated {
		o.mu.Unlock()
		return NewError("open", CodeState, ErrNotCreated.Error())
	}
	fd := o.fd
	o.mu.Unlock()

	if err := sub.openSocket(fd); err != nil {
		return err
	}

	o.mu.Lock()
	o.state = StateOpen
	o.mu.Unlock()

	o.Events.Emit("opened", fd)
	return nil
}

// dispose closes the socket if present, disposes the facade, emits
// disposed, and detaches observers. Idempotent.
func (o *socketOwner) dispose() {
	o.mu.Lock()
	if o.state == StateDisposed {
		o.mu.Unlock()
		return
	}
	fd := o.fd
	o.state = StateDisposed
	o.fd = -1
	o.mu.Unlock()

	if fd >= 0 {
		_, _ = o.facade.Submit(runner.MethodClose, fd).Await(2 * time.Second)
	}
	o.facade.Dispose()
	o.Events.Emit("disposed")
	o.Events.Dispose()
}
