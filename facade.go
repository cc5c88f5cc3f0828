package srtgo

import (
	"errors"
	"sync"
	"time"

	"github.com/srtgo/srtgo/internal/logging"
	"github.com/srtgo/srtgo/internal/runner"
	"github.com/srtgo/srtgo/internal/srtnative"
)

// Future is the handle returned by Facade.Submit. Await returns the native
// result (including a native ERROR sentinel), or an error for a disposed
// facade, a dispatch or worker failure, or its own timeout.
type Future struct {
	call   *call
	facade *Facade
}

// Await blocks until the reply arrives or timeout elapses (zero means wait
// forever). A timeout does not cancel the underlying native call: the
// worker still runs it to completion and, if OnComplete was registered,
// that callback still fires once the real reply lands.
func (f *Future) Await(timeout time.Duration) (any, error) {
	if timeout <= 0 {
		reply := <-f.call.settled
		return reply.Result, replyToError(reply)
	}
	select {
	case reply := <-f.call.settled:
		return reply.Result, replyToError(reply)
	case <-time.After(timeout):
		return nil, &Error{Op: string(f.call.method), Fd: -1, Code: CodeTimeout, Msg: "future timed out waiting for reply"}
	}
}

// OnComplete registers fn to run with the eventual Reply, even if Await
// already timed out. Registering it fires in submission order relative to
// every other OnComplete registered before its call's reply arrived;
// registering after the facade has already moved past this call's turn (its
// reply arrived with nobody listening yet) invokes fn immediately with the
// stored reply instead, since there is no later slot left to preserve order
// against. OnComplete is a no-op (never invoked) if the facade is disposed
// before the reply arrives, matching the disposal contract's "callback
// queue clears without invoking callbacks."
func (f *Future) OnComplete(fn func(result any, err error)) {
	f.call.mu.Lock()
	if f.call.passed {
		discarded := f.call.discarded
		reply := f.call.reply
		f.call.mu.Unlock()
		if !discarded {
			fn(reply.Result, replyToError(reply))
		}
		return
	}
	f.call.cb = fn
	f.call.mu.Unlock()
}

// replyToError classifies a Reply's dispatch-level error (Err, never
// TransportErr: a native ERROR return is delivered as an ordinary result,
// not a Future rejection) as a disposed-state error, a fatal-worker
// condition or an ordinary dispatch error.
func replyToError(reply runner.Reply) error {
	if reply.Err == nil {
		return nil
	}
	if errors.Is(reply.Err, ErrDisposed) {
		return WrapError(string(reply.Method), CodeState, reply.Err)
	}
	if errors.Is(reply.Err, runner.ErrWorkerClosed) {
		return WrapError(string(reply.Method), CodeFatalWorker, reply.Err)
	}
	return WrapError(string(reply.Method), CodeDispatch, reply.Err)
}

// call tracks one in-flight Submit from enqueue to settlement, independent
// of whether any Future for it is actually Awaited.
type call struct {
	method  runner.Method
	settled chan runner.Reply // buffered 1, written once, consumed by Await

	mu        sync.Mutex
	done      bool
	discarded bool // set once Dispose claims this reply: cb/OnComplete must not fire
	passed    bool // the callback loop has already reached (or skipped) this call's turn
	reply     runner.Reply
	cb        func(result any, err error)

	// ready closes once reply/discarded have been recorded, independent of
	// whether a callback has been registered yet; the callback loop blocks
	// on it to keep callback invocation in submission order.
	ready chan struct{}
}

// Facade is the host-thread API (C3) paired with exactly one Task Runner.
// It maintains the Error Slot and dispatches replies to registered
// callbacks strictly in submission order.
type Facade struct {
	runner *runner.Runner
	logger *logging.Logger

	workCh        chan *call
	callbackQueue chan *call
	stopCh        chan struct{}

	mu       sync.Mutex
	disposed bool
	lastErr  error
}

// NewFacade wires a Facade to a fresh Task Runner over binding and starts
// both the runner's worker goroutine and the facade's reply dispatcher. An
// optional cpuAffinity pins the worker's OS thread to that CPU (Linux only,
// ignored elsewhere); omit it to leave scheduling to the Go runtime.
func NewFacade(binding srtnative.Binding, logger *logging.Logger, cpuAffinity ...int) *Facade {
	if logger == nil {
		logger = logging.Default()
	}
	r := runner.New(binding, logger)
	if len(cpuAffinity) > 0 && cpuAffinity[0] >= 0 {
		r.SetCPUAffinity(cpuAffinity[0])
	}
	r.Start()
	f := &Facade{
		runner:        r,
		logger:        logger,
		workCh:        make(chan *call, 4096),
		callbackQueue: make(chan *call, 4096),
		stopCh:        make(chan struct{}),
	}
	go f.dispatchLoop()
	go f.callbackLoop()
	return f
}

// Submit enqueues a Request Envelope with the runner and returns a Future
// for its eventual Reply. Submit on a disposed Facade returns a Future
// that is already settled with a disposed-state error.
func (f *Facade) Submit(method runner.Method, args ...any) *Future {
	f.mu.Lock()
	disposed := f.disposed
	f.mu.Unlock()

	c := &call{method: method, settled: make(chan runner.Reply, 1), ready: make(chan struct{})}
	if disposed {
		reply := runner.Reply{Method: method, Args: args, Err: ErrDisposed}
		c.reply = reply
		c.done = true
		c.passed = true
		c.settled <- reply
		close(c.ready)
		return &Future{call: c, facade: f}
	}

	replyCh := f.runner.Submit(method, args...)
	select {
	case f.callbackQueue <- c:
	case <-f.stopCh:
	}
	go func() {
		reply := <-replyCh
		// Dispose sets disposed before it blocks on the Task Runner
		// draining or finishing this exact call, so if disposed is already
		// true here the reply belongs to a call the disposal contract says
		// to discard: deliver it to a still-blocked Await (so nobody hangs
		// forever) but never to OnComplete.
		c.deliver(reply, f.Disposed())
		select {
		case f.workCh <- c:
		case <-f.stopCh:
			// Facade disposed before the Error Slot could be updated for
			// this reply; Await delivery already happened in c.deliver,
			// which is all the disposal contract requires us to still do.
		}
	}()
	return &Future{call: c, facade: f}
}

// deliver records the settled reply and unblocks both Await and the
// callback loop. It never invokes a callback itself: that stays in
// callbackLoop so callback order tracks submission order rather than
// whichever call's native reply happens to land first.
func (c *call) deliver(reply runner.Reply, discard bool) {
	c.mu.Lock()
	c.reply = reply
	c.done = true
	c.discarded = discard
	c.mu.Unlock()
	c.settled <- reply
	close(c.ready)
}

// callbackLoop invokes registered OnComplete callbacks strictly in
// submission order: it drains calls from callbackQueue in the order Submit
// put them there and, for each, waits for that call's own reply before
// moving to the next. Because the Task Runner already serializes dispatch
// (call N+1 never even starts before call N's reply is produced), waiting
// for call N's turn here adds no delay beyond what dispatch already
// imposed. Await is unaffected: it reads call.settled directly in Submit's
// goroutine and never waits on this loop.
func (f *Facade) callbackLoop() {
	for {
		select {
		case c := <-f.callbackQueue:
			select {
			case <-c.ready:
			case <-f.stopCh:
				return
			}
			c.mu.Lock()
			cb := c.cb
			discarded := c.discarded
			reply := c.reply
			c.passed = true
			c.mu.Unlock()
			if cb != nil && !discarded {
				cb(reply.Result, replyToError(reply))
			}
		case <-f.stopCh:
			return
		}
	}
}

// dispatchLoop updates the Error Slot in submission order. A call lands
// here once its reply is fully settled, independent of callbackLoop; the
// Error Slot only ever needs last-write-wins semantics, so it doesn't need
// to wait its turn in the callback queue.
func (f *Facade) dispatchLoop() {
	for {
		select {
		case c := <-f.workCh:
			c.mu.Lock()
			reply := c.reply
			c.mu.Unlock()
			if reply.TransportErr != nil {
				f.mu.Lock()
				f.lastErr = WrapError(string(reply.Method), CodeTransport, reply.TransportErr)
				f.mu.Unlock()
			}
		case <-f.stopCh:
			return
		}
	}
}

// LastError returns the most recently observed non-fatal transport error,
// or nil if none has occurred.
func (f *Facade) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Disposed reports whether Dispose has been called.
func (f *Facade) Disposed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disposed
}

// Dispose marks the facade disposed and stops its Task Runner. In-flight
// native calls complete; their results are discarded rather than delivered
// to any waiting callback, per the disposal contract in the error-handling
// design.
func (f *Facade) Dispose() {
	f.mu.Lock()
	if f.disposed {
		f.mu.Unlock()
		return
	}
	f.disposed = true
	f.mu.Unlock()

	f.runner.Close()
	close(f.stopCh)
}
