//go:build linux && cgo

package srtnative

/*
#cgo LDFLAGS: -lsrt
#include <srt/srt.h>
#include <stdlib.h>

static int srtgo_startup_once(void) {
    static int started = 0;
    if (!started) {
        started = srt_startup() >= 0;
    }
    return started;
}
*/
import "C"

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/srtgo/srtgo/internal/bufpool"
)

// cgoBinding calls directly into libsrt. Every method is synchronous and
// blocking, matching the native library's own contract; callers (the Task
// Runner) are responsible for never invoking two methods concurrently.
type cgoBinding struct{}

// NewCgoBinding returns the real libsrt-backed Binding. It is only buildable
// with cgo enabled on Linux; in other configurations NewCgoBinding (see
// cgo_fallback.go) returns an error, and NewStubBinding (see stub.go)
// simulates SRT semantics over net.Conn instead.
func NewCgoBinding() (Binding, error) {
	if C.srtgo_startup_once() == 0 {
		return nil, fmt.Errorf("srtnative: srt_startup failed")
	}
	return &cgoBinding{}, nil
}

func (b *cgoBinding) CreateSocket(sender bool) (int32, error) {
	fd := C.srt_create_socket()
	if fd == C.SRTSOCKET(ERROR) {
		return ERROR, lastError("create_socket")
	}
	return int32(fd), nil
}

func (b *cgoBinding) Bind(fd int32, address string, port uint16) error {
	cAddr := C.CString(fmt.Sprintf("%s:%d", address, port))
	defer C.free(unsafe.Pointer(cAddr))

	var sa C.struct_sockaddr_in
	if C.srt_bind(C.SRTSOCKET(fd), (*C.struct_sockaddr)(unsafe.Pointer(&sa)), C.int(unsafe.Sizeof(sa))) == ERROR {
		return lastError("bind")
	}
	return nil
}

func (b *cgoBinding) Listen(fd int32, backlog int) error {
	if C.srt_listen(C.SRTSOCKET(fd), C.int(backlog)) == ERROR {
		return lastError("listen")
	}
	return nil
}

func (b *cgoBinding) Connect(fd int32, host string, port uint16) error {
	var sa C.struct_sockaddr_in
	if C.srt_connect(C.SRTSOCKET(fd), (*C.struct_sockaddr)(unsafe.Pointer(&sa)), C.int(unsafe.Sizeof(sa))) == ERROR {
		return lastError("connect")
	}
	return nil
}

func (b *cgoBinding) Accept(fd int32) (int32, error) {
	newFd := C.srt_accept(C.SRTSOCKET(fd), nil, nil)
	if newFd == C.SRTSOCKET(ERROR) {
		return ERROR, lastError("accept")
	}
	return int32(newFd), nil
}

func (b *cgoBinding) Close(fd int32) error {
	if C.srt_close(C.SRTSOCKET(fd)) == ERROR {
		return lastError("close")
	}
	return nil
}

func (b *cgoBinding) Read(fd int32, maxBytes int) ([]byte, error) {
	buf := bufpool.Get(uint32(maxBytes))
	n := C.srt_recvmsg(C.SRTSOCKET(fd), (*C.char)(unsafe.Pointer(&buf[0])), C.int(maxBytes))
	if n == ERROR {
		bufpool.Put(buf)
		return nil, lastError("read")
	}
	return buf[:n], nil
}

func (b *cgoBinding) Write(fd int32, payload []byte) (int, error) {
	if len(payload) == 0 {
		return 0, nil
	}
	n := C.srt_sendmsg(C.SRTSOCKET(fd), (*C.char)(unsafe.Pointer(&payload[0])), C.int(len(payload)), -1, 0)
	if n == ERROR {
		return ERROR, lastError("write")
	}
	return int(n), nil
}

func (b *cgoBinding) SetSockOpt(fd int32, opt SockOpt, value any) error {
	nativeOpt, err := translateSockOpt(opt)
	if err != nil {
		return err
	}
	switch v := value.(type) {
	case bool:
		cv := C.int(0)
		if v {
			cv = 1
		}
		if C.srt_setsockopt(C.SRTSOCKET(fd), 0, nativeOpt, unsafe.Pointer(&cv), C.int(unsafe.Sizeof(cv))) == ERROR {
			return lastError("set_sockopt")
		}
	case int:
		cv := C.int(v)
		if C.srt_setsockopt(C.SRTSOCKET(fd), 0, nativeOpt, unsafe.Pointer(&cv), C.int(unsafe.Sizeof(cv))) == ERROR {
			return lastError("set_sockopt")
		}
	case string:
		cs := C.CString(v)
		defer C.free(unsafe.Pointer(cs))
		if C.srt_setsockopt(C.SRTSOCKET(fd), 0, nativeOpt, unsafe.Pointer(cs), C.int(len(v))) == ERROR {
			return lastError("set_sockopt")
		}
	default:
		return fmt.Errorf("srtnative: unsupported sockopt value type %T", value)
	}
	return nil
}

func (b *cgoBinding) GetSockOpt(fd int32, opt SockOpt) (any, error) {
	nativeOpt, err := translateSockOpt(opt)
	if err != nil {
		return nil, err
	}
	var cv C.int
	sz := C.int(unsafe.Sizeof(cv))
	if C.srt_getsockopt(C.SRTSOCKET(fd), 0, nativeOpt, unsafe.Pointer(&cv), &sz) == ERROR {
		return nil, lastError("get_sockopt")
	}
	return int(cv), nil
}

func (b *cgoBinding) GetSockState(fd int32) (SockState, error) {
	state := C.srt_getsockstate(C.SRTSOCKET(fd))
	return translateSockState(int(state)), nil
}

func (b *cgoBinding) EpollCreate() (int32, error) {
	epid := C.srt_epoll_create()
	if epid == ERROR {
		return ERROR, lastError("epoll_create")
	}
	return int32(epid), nil
}

func (b *cgoBinding) EpollAddUsock(epid int32, fd int32, events EpollFlags) error {
	flags := nativeEpollFlags(events)
	if C.srt_epoll_add_usock(C.int(epid), C.SRTSOCKET(fd), &flags) == ERROR {
		return lastError("epoll_add_usock")
	}
	return nil
}

func (b *cgoBinding) EpollRemoveUsock(epid int32, fd int32) error {
	if C.srt_epoll_remove_usock(C.int(epid), C.SRTSOCKET(fd)) == ERROR {
		return lastError("epoll_remove_usock")
	}
	return nil
}

func (b *cgoBinding) EpollUwait(epid int32, timeout time.Duration) ([]Event, error) {
	const maxEvents = 64
	var fds [maxEvents]C.SRT_EPOLL_EVENT
	n := C.srt_epoll_uwait(C.int(epid), &fds[0], C.int(maxEvents), C.int64_t(timeout.Milliseconds()))
	if n == ERROR {
		return nil, lastError("epoll_uwait")
	}
	events := make([]Event, 0, int(n))
	for i := 0; i < int(n); i++ {
		events = append(events, Event{
			Fd:    int32(fds[i].fd),
			Flags: translateEpollFlags(int(fds[i].events)),
		})
	}
	return events, nil
}

func (b *cgoBinding) EpollClose(epid int32) error {
	if C.srt_epoll_release(C.int(epid)) == ERROR {
		return lastError("epoll_release")
	}
	return nil
}

func (b *cgoBinding) SetLogLevel(level int) {
	C.srt_setloglevel(C.int(level))
}

func (b *cgoBinding) Stats(fd int32, clear bool) (Stats, error) {
	var perf C.SRT_TRACEBSTATS
	clearFlag := C.int(0)
	if clear {
		clearFlag = 1
	}
	if C.srt_bstats(C.SRTSOCKET(fd), &perf, clearFlag) == ERROR {
		return Stats{}, lastError("stats")
	}
	return Stats{
		PktSent:      uint64(perf.pktSent),
		PktRecv:      uint64(perf.pktRecv),
		PktSndLoss:   uint64(perf.pktSndLoss),
		PktRcvLoss:   uint64(perf.pktRcvLoss),
		BytesSent:    uint64(perf.byteSent),
		BytesRecv:    uint64(perf.byteRecv),
		MbpsSendRate: float64(perf.mbpsSendRate),
		MbpsRecvRate: float64(perf.mbpsRecvRate),
		RTTMillisec:  float64(perf.msRTT),
	}, nil
}

func lastError(op string) error {
	var errno C.int
	msg := C.GoString(C.srt_getlasterror_str())
	_ = errno
	return fmt.Errorf("srtnative: %s: %s", op, msg)
}

func translateSockOpt(opt SockOpt) (C.SRT_SOCKOPT, error) {
	switch opt {
	case OptMessageAPI:
		return C.SRTO_MESSAGEAPI, nil
	case OptRCVSYN:
		return C.SRTO_RCVSYN, nil
	case OptSNDSYN:
		return C.SRTO_SNDSYN, nil
	case OptPayloadSize:
		return C.SRTO_PAYLOADSIZE, nil
	case OptPassphrase:
		return C.SRTO_PASSPHRASE, nil
	case OptLatency:
		return C.SRTO_LATENCY, nil
	case OptStreamID:
		return C.SRTO_STREAMID, nil
	default:
		return 0, fmt.Errorf("srtnative: unknown sockopt %d", opt)
	}
}

func translateSockState(native int) SockState {
	switch native {
	case C.SRTS_INIT:
		return StateInit
	case C.SRTS_OPENED:
		return StateOpened
	case C.SRTS_LISTENING:
		return StateListening
	case C.SRTS_CONNECTING:
		return StateConnecting
	case C.SRTS_CONNECTED:
		return StateConnected
	case C.SRTS_BROKEN:
		return StateBroken
	case C.SRTS_CLOSING:
		return StateClosing
	case C.SRTS_CLOSED:
		return StateClosed
	case C.SRTS_NONEXIST:
		return StateNonExist
	default:
		return StateNonExist
	}
}

func nativeEpollFlags(f EpollFlags) C.int {
	var native C.int
	if f.Has(EpollIn) {
		native |= C.SRT_EPOLL_IN
	}
	if f.Has(EpollOut) {
		native |= C.SRT_EPOLL_OUT
	}
	if f.Has(EpollErr) {
		native |= C.SRT_EPOLL_ERR
	}
	return native
}

func translateEpollFlags(native int) EpollFlags {
	var f EpollFlags
	if native&C.SRT_EPOLL_IN != 0 {
		f |= EpollIn
	}
	if native&C.SRT_EPOLL_OUT != 0 {
		f |= EpollOut
	}
	if native&C.SRT_EPOLL_ERR != 0 {
		f |= EpollErr
	}
	return f
}
