// Package runner implements the Task Runner (C2): a single background
// goroutine that owns a Binding end to end and serializes every blocking
// SRT call onto it. One goroutine pinned with runtime.LockOSThread, pulling
// work off a channel and never running two native calls concurrently.
package runner

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/srtgo/srtgo/internal/constants"
	"github.com/srtgo/srtgo/internal/logging"
	"github.com/srtgo/srtgo/internal/srtnative"
)

// ErrWorkerClosed is the Err a Reply carries when the worker goroutine never
// ran the request at all: Submit returned it directly for a Runner already
// closed, or Close drained it from the queue unrun. The Facade classifies it
// as a fatal-worker condition rather than an ordinary dispatch error.
var ErrWorkerClosed = errors.New("runner: closed")

// dispatchErr marks an error the Runner itself raised while dispatching —
// unknown method, malformed arguments, a recovered panic — as distinct from
// an error the Binding call itself returned. Reply keeps the two in separate
// fields so the Facade can reject a Future for the former while delivering
// the latter as an ordinary result (see Reply.TransportErr).
type dispatchErr struct{ err error }

func (e *dispatchErr) Error() string { return e.err.Error() }
func (e *dispatchErr) Unwrap() error { return e.err }

// Method identifies which Binding call a Request dispatches to.
type Method string

const (
	MethodCreateSocket      Method = "create_socket"
	MethodBind              Method = "bind"
	MethodListen            Method = "listen"
	MethodConnect           Method = "connect"
	MethodAccept            Method = "accept"
	MethodClose             Method = "close"
	MethodRead              Method = "read"
	MethodWrite             Method = "write"
	MethodSetSockOpt        Method = "set_sockopt"
	MethodGetSockOpt        Method = "get_sockopt"
	MethodGetSockState      Method = "get_sock_state"
	MethodEpollCreate       Method = "epoll_create"
	MethodEpollAddUsock     Method = "epoll_add_usock"
	MethodEpollRemoveUsock  Method = "epoll_remove_usock"
	MethodEpollUwait        Method = "epoll_uwait"
	MethodEpollClose        Method = "epoll_close"
	MethodSetLogLevel       Method = "set_log_level"
	MethodStats             Method = "stats"
)

// Request Envelope: carries method, arguments and the submission time from
// the Async Facade to the Task Runner. Arguments are positional and
// method-specific; see dispatch in runner.go for the expected shape.
type Request struct {
	ID          uuid.UUID
	Method      Method
	Args        []any
	SubmittedAt time.Time

	// reply is where this request's Reply Envelope is delivered. It is
	// per-request (not the shared channel) purely so the Facade can match
	// a reply to its waiting callback without a side table; FIFO ordering
	// is still guaranteed because the Runner only ever has one request
	// in flight at a time and replies in submission order.
	reply chan Reply
}

// Reply Envelope: carries the result, optional error descriptors, and the
// echoed method+arguments for diagnostics, per spec. Err is a Runner-origin
// failure (unknown method, malformed arguments, a broken worker channel) and
// is the only field that rejects the Facade's Future. TransportErr is a
// Binding-origin failure — a native call returning ERROR — and is delivered
// to the Future as an ordinary result; the Facade only ever surfaces it
// through the Error Slot.
type Reply struct {
	Result       any
	Err          error
	TransportErr error
	Method       Method
	Args         []any
	EnqueuedAt   time.Time
	RequestID    uuid.UUID
}

// Runner owns one Binding and serves requests strictly in FIFO order on a
// single goroutine.
type Runner struct {
	binding srtnative.Binding
	logger  *logging.Logger
	reqCh   chan Request
	stopCh  chan struct{}
	done    chan struct{}

	// cpuAffinity, if non-empty, pins the worker goroutine's OS thread to
	// one of these CPUs (first entry only: a Runner owns a single
	// goroutine, not a pool).
	cpuAffinity []int

	mu     sync.Mutex
	closed bool
}

// New creates a Runner bound to the given native Binding. It does not
// start the worker goroutine; call Start for that.
func New(binding srtnative.Binding, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		binding: binding,
		logger:  logger,
		reqCh:   make(chan Request, constants.RequestQueueDepth),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// SetCPUAffinity pins the worker goroutine's OS thread to cpu once it next
// starts. Best effort: failures are logged, never fatal. Must be called
// before Start.
func (r *Runner) SetCPUAffinity(cpu int) {
	r.cpuAffinity = []int{cpu}
}

// Start launches the worker goroutine. Safe to call once per Runner.
func (r *Runner) Start() {
	go r.loop()
}

// Submit enqueues a Request Envelope and returns a channel that receives
// exactly one Reply Envelope. Submit never waits for its own native call;
// it blocks only while the request queue (constants.RequestQueueDepth
// entries) is full.
//
// Submit on a closed Runner does not panic or block: it returns a channel
// that immediately yields a fatal-worker Reply, so callers (the Async
// Facade) can treat it uniformly with any other reply.
func (r *Runner) Submit(method Method, args ...any) <-chan Reply {
	reply := make(chan Reply, 1)

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		reply <- Reply{
			Method: method,
			Args:   args,
			Err:    ErrWorkerClosed,
		}
		return reply
	}

	req := Request{
		ID:          uuid.New(),
		Method:      method,
		Args:        args,
		SubmittedAt: time.Now(),
		reply:       reply,
	}
	r.reqCh <- req
	return reply
}

// Close stops the worker goroutine and waits for it to exit. Any request
// already being dispatched completes; requests still sitting in the queue
// are discarded. After Close, Submit no longer reaches the Binding.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.done

	// Requests that were enqueued but never reached dispatch still have a
	// goroutine blocked reading their reply channel; reply with a fatal
	// error instead of leaving them hanging forever.
	for {
		select {
		case req := <-r.reqCh:
			req.reply <- Reply{
				Method: req.Method,
				Args:   req.Args,
				Err:    ErrWorkerClosed,
			}
		default:
			return
		}
	}
}

func (r *Runner) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(r.done)

	if len(r.cpuAffinity) > 0 {
		setWorkerAffinity(r.logger, r.cpuAffinity[0])
	}

	for {
		select {
		case <-r.stopCh:
			return
		case req := <-r.reqCh:
			// Once Close has run both cases can be ready, and select picks
			// between them at random: recheck stopCh so a queued request
			// is never dispatched after Close.
			select {
			case <-r.stopCh:
				req.reply <- Reply{Method: req.Method, Args: req.Args, Err: ErrWorkerClosed}
				return
			default:
			}
			result, err := r.dispatch(req.Method, req.Args)
			reply := Reply{
				Result:     result,
				Method:     req.Method,
				Args:       req.Args,
				EnqueuedAt: time.Now(),
				RequestID:  req.ID,
			}
			if err != nil {
				var de *dispatchErr
				if errors.As(err, &de) {
					reply.Err = de.err
				} else {
					reply.TransportErr = err
				}
			}
			req.reply <- reply
		}
	}
}

// dispatch runs one Request against the Binding. A malformed argument list
// (wrong count, wrong type) would otherwise panic on the type assertions
// below; recover turns that into a descriptive dispatch error instead of
// taking the worker goroutine down.
func (r *Runner) dispatch(method Method, args []any) (result any, err error) {
	log := r.logger.WithMethod(string(method))
	defer func() {
		if p := recover(); p != nil {
			log.Error("dispatch error: malformed arguments", "panic", p)
			result, err = nil, &dispatchErr{fmt.Errorf("runner: malformed arguments for %q: %v", method, p)}
		}
	}()
	switch method {
	case MethodCreateSocket:
		sender, _ := args[0].(bool)
		return r.binding.CreateSocket(sender)
	case MethodBind:
		fd := args[0].(int32)
		addr := args[1].(string)
		port := args[2].(uint16)
		return nil, r.binding.Bind(fd, addr, port)
	case MethodListen:
		fd := args[0].(int32)
		backlog := args[1].(int)
		return nil, r.binding.Listen(fd, backlog)
	case MethodConnect:
		fd := args[0].(int32)
		host := args[1].(string)
		port := args[2].(uint16)
		return nil, r.binding.Connect(fd, host, port)
	case MethodAccept:
		fd := args[0].(int32)
		return r.binding.Accept(fd)
	case MethodClose:
		fd := args[0].(int32)
		return nil, r.binding.Close(fd)
	case MethodRead:
		fd := args[0].(int32)
		maxBytes := args[1].(int)
		return r.binding.Read(fd, maxBytes)
	case MethodWrite:
		fd := args[0].(int32)
		payload := args[1].([]byte)
		return r.binding.Write(fd, payload)
	case MethodSetSockOpt:
		fd := args[0].(int32)
		opt := args[1].(srtnative.SockOpt)
		return nil, r.binding.SetSockOpt(fd, opt, args[2])
	case MethodGetSockOpt:
		fd := args[0].(int32)
		opt := args[1].(srtnative.SockOpt)
		return r.binding.GetSockOpt(fd, opt)
	case MethodGetSockState:
		fd := args[0].(int32)
		return r.binding.GetSockState(fd)
	case MethodEpollCreate:
		return r.binding.EpollCreate()
	case MethodEpollAddUsock:
		epid := args[0].(int32)
		fd := args[1].(int32)
		events := args[2].(srtnative.EpollFlags)
		return nil, r.binding.EpollAddUsock(epid, fd, events)
	case MethodEpollRemoveUsock:
		epid := args[0].(int32)
		fd := args[1].(int32)
		return nil, r.binding.EpollRemoveUsock(epid, fd)
	case MethodEpollUwait:
		epid := args[0].(int32)
		timeout := args[1].(time.Duration)
		return r.binding.EpollUwait(epid, timeout)
	case MethodEpollClose:
		epid := args[0].(int32)
		return nil, r.binding.EpollClose(epid)
	case MethodSetLogLevel:
		level := args[0].(int)
		r.binding.SetLogLevel(level)
		return nil, nil
	case MethodStats:
		fd := args[0].(int32)
		clear := args[1].(bool)
		return r.binding.Stats(fd, clear)
	default:
		log.Error("dispatch error: unknown method")
		return nil, &dispatchErr{fmt.Errorf("runner: unknown method %q", method)}
	}
}
