// Package srtnative is the thin synchronous facade over the SRT C library
// (C1 in the transport core design). Every method maps one-to-one onto a
// blocking SRT call; nothing here is safe to call concurrently from
// multiple goroutines against the same fd without external serialization,
// that serialization is the Task Runner's job (internal/runner), not this
// package's.
package srtnative

import "time"

// ERROR is the native sentinel returned by calls that fail. It mirrors
// SRT's own SRT_ERROR (-1) convention rather than a Go error, because the
// Async Facade must be able to deliver it as an ordinary result value
// (spec: transport errors are never turned into a future rejection).
const ERROR = -1

// SockState enumerates the socket states reported by GetSockState.
type SockState int

const (
	StateInit SockState = iota
	StateOpened
	StateListening
	StateConnecting
	StateConnected
	StateBroken
	StateClosing
	StateClosed
	StateNonExist
)

func (s SockState) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateOpened:
		return "OPENED"
	case StateListening:
		return "LISTENING"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateBroken:
		return "BROKEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	case StateNonExist:
		return "NONEXIST"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state means the fd will never produce more
// data and should be torn down by the Server Loop.
func (s SockState) Terminal() bool {
	switch s {
	case StateBroken, StateNonExist, StateClosed:
		return true
	default:
		return false
	}
}

// EpollFlags is a bitmask of readiness flags, matching SRT's own
// EPOLL_IN/EPOLL_OUT/EPOLL_ERR constants.
type EpollFlags uint32

const (
	EpollIn EpollFlags = 1 << iota
	EpollOut
	EpollErr
)

func (f EpollFlags) Has(bit EpollFlags) bool { return f&bit != 0 }

// SockOpt enumerates the subset of the SRT option-identifier enumeration
// this core needs to plumb through set_sockopt/get_sockopt.
type SockOpt int

const (
	OptMessageAPI SockOpt = iota
	OptRCVSYN
	OptSNDSYN
	OptPayloadSize
	OptPassphrase
	OptLatency
	OptStreamID
	OptTooLate // sentinel for an option this binding doesn't recognize
)

// Event is a single readiness notification returned by EpollUwait.
type Event struct {
	Fd    int32
	Flags EpollFlags
}

// Stats is a pass-through snapshot of native transport statistics. No
// aggregation happens above this layer (Non-goal: statistics aggregation
// beyond a pass-through).
type Stats struct {
	PktSent      uint64
	PktRecv      uint64
	PktSndLoss   uint64
	PktRcvLoss   uint64
	BytesSent    uint64
	BytesRecv    uint64
	MbpsSendRate float64
	MbpsRecvRate float64
	RTTMillisec  float64
}

// Binding is the synchronous SRT facade. A Task Runner owns exactly one
// Binding and calls its methods sequentially from a single goroutine;
// implementations need not be safe for concurrent use by multiple callers.
type Binding interface {
	CreateSocket(sender bool) (fd int32, err error)
	Bind(fd int32, address string, port uint16) error
	Listen(fd int32, backlog int) error
	Connect(fd int32, host string, port uint16) error
	Accept(fd int32) (newFd int32, err error)
	Close(fd int32) error

	// Read returns a nil slice and a non-nil error on failure, an empty
	// slice on EOF, or the bytes read (possibly fewer than maxBytes) on
	// success.
	Read(fd int32, maxBytes int) ([]byte, error)
	// Write returns the number of bytes written, or ERROR on failure.
	// The caller must treat payload as consumed after this call returns,
	// regardless of outcome (ownership-transfer semantics).
	Write(fd int32, payload []byte) (int, error)

	SetSockOpt(fd int32, opt SockOpt, value any) error
	GetSockOpt(fd int32, opt SockOpt) (any, error)
	GetSockState(fd int32) (SockState, error)

	EpollCreate() (epid int32, err error)
	EpollAddUsock(epid int32, fd int32, events EpollFlags) error
	EpollRemoveUsock(epid int32, fd int32) error
	EpollUwait(epid int32, timeout time.Duration) ([]Event, error)
	EpollClose(epid int32) error

	SetLogLevel(level int)
	Stats(fd int32, clear bool) (Stats, error)
}
