// This file provides an in-memory SRT simulation used whenever the real
// libsrt binding isn't wanted (tests, non-Linux, or cgo-disabled builds).
// It mirrors the message-API semantics SRT guarantees well enough to
// exercise the Task Runner, Async Facade, Server Loop and Connection
// Handle end to end without a kernel SRT stack. Unlike the cgo binding, it
// has no platform build constraint; it is always compiled in, so tests run
// the same way on every platform.
package srtnative

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

const defaultPayloadSize = 1316

// stubSocket is one simulated SRT endpoint, backed by a real TCP
// connection or listener so chunked read/write actually moves bytes
// end-to-end over loopback during tests.
type stubSocket struct {
	mu sync.Mutex

	state   SockState
	address string
	port    uint16

	listener net.Listener
	accepted chan net.Conn

	conn        net.Conn
	recv        chan []byte
	recvClosed  bool
	payloadSize int
	opts        map[SockOpt]any
}

func newStubSocket() *stubSocket {
	return &stubSocket{
		state:       StateInit,
		payloadSize: defaultPayloadSize,
		opts:        make(map[SockOpt]any),
	}
}

// stubBinding implements Binding entirely in user space.
type stubBinding struct {
	mu      sync.Mutex
	sockets map[int32]*stubSocket
	epolls  map[int32]*stubEpoll
	nextFd  int32
	nextEp  int32
}

// NewStubBinding returns an in-process Binding for tests and non-cgo
// builds; see the package doc comment for what it does and doesn't model.
func NewStubBinding() Binding {
	return &stubBinding{
		sockets: make(map[int32]*stubSocket),
		epolls:  make(map[int32]*stubEpoll),
	}
}

func (b *stubBinding) get(fd int32) (*stubSocket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sockets[fd]
	if !ok {
		return nil, fmt.Errorf("srtnative: unknown fd %d", fd)
	}
	return s, nil
}

func (b *stubBinding) CreateSocket(sender bool) (int32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextFd++
	fd := b.nextFd
	b.sockets[fd] = newStubSocket()
	return fd, nil
}

func (b *stubBinding) Bind(fd int32, address string, port uint16) error {
	if port == 0 {
		return fmt.Errorf("srtnative: invalid port %d", port)
	}
	s, err := b.get(fd)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.address = address
	s.port = port
	s.state = StateOpened
	return nil
}

func (b *stubBinding) Listen(fd int32, backlog int) error {
	s, err := b.get(fd)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("srtnative: listen: %w", err)
	}
	if backlog <= 0 {
		backlog = 1
	}
	s.listener = ln
	s.accepted = make(chan net.Conn, backlog)
	s.state = StateListening

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.accepted <- conn
		}
	}()
	return nil
}

func (b *stubBinding) Connect(fd int32, host string, port uint16) error {
	s, err := b.get(fd)
	if err != nil {
		return err
	}
	conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("srtnative: connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.recv = make(chan []byte, 64)
	s.state = StateConnected
	s.mu.Unlock()
	go s.pumpFrames()
	return nil
}

func (b *stubBinding) Accept(fd int32) (int32, error) {
	s, err := b.get(fd)
	if err != nil {
		return ERROR, err
	}
	s.mu.Lock()
	accepted := s.accepted
	s.mu.Unlock()
	if accepted == nil {
		return ERROR, fmt.Errorf("srtnative: fd %d is not listening", fd)
	}
	conn, ok := <-accepted
	if !ok {
		return ERROR, fmt.Errorf("srtnative: listener closed")
	}

	b.mu.Lock()
	b.nextFd++
	newFd := b.nextFd
	newSock := newStubSocket()
	newSock.conn = conn
	newSock.recv = make(chan []byte, 64)
	newSock.state = StateConnected
	b.sockets[newFd] = newSock
	b.mu.Unlock()

	go newSock.pumpFrames()
	return newFd, nil
}

func (b *stubBinding) Close(fd int32) error {
	s, err := b.get(fd)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil
	}
	if s.listener != nil {
		s.listener.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.state = StateClosed
	return nil
}

// pumpFrames reads length-prefixed messages off the wire, preserving the
// atomic-message semantics message-API mode guarantees: one Write call on
// the peer becomes exactly one value delivered to one Read call here.
func (s *stubSocket) pumpFrames() {
	r := bufio.NewReader(s.conn)
	defer func() {
		s.mu.Lock()
		s.recvClosed = true
		s.mu.Unlock()
		close(s.recv)
	}()
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		msg := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(r, msg); err != nil {
				return
			}
		}
		s.recv <- msg
	}
}

func (b *stubBinding) Read(fd int32, maxBytes int) ([]byte, error) {
	s, err := b.get(fd)
	if err != nil {
		return nil, err
	}
	msg, ok := <-s.recv
	if !ok {
		return []byte{}, nil // EOF: empty buffer, not an error
	}
	if len(msg) > maxBytes {
		msg = msg[:maxBytes]
	}
	return msg, nil
}

func (b *stubBinding) Write(fd int32, payload []byte) (int, error) {
	s, err := b.get(fd)
	if err != nil {
		return ERROR, err
	}
	s.mu.Lock()
	limit := s.payloadSize
	conn := s.conn
	s.mu.Unlock()

	if len(payload) > limit {
		return ERROR, fmt.Errorf("srtnative: message of %d bytes exceeds payload size %d", len(payload), limit)
	}
	if conn == nil {
		return ERROR, fmt.Errorf("srtnative: fd %d is not connected", fd)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return ERROR, fmt.Errorf("srtnative: write: %w", err)
	}
	if len(payload) > 0 {
		if _, err := conn.Write(payload); err != nil {
			return ERROR, fmt.Errorf("srtnative: write: %w", err)
		}
	}
	return len(payload), nil
}

func (b *stubBinding) SetSockOpt(fd int32, opt SockOpt, value any) error {
	s, err := b.get(fd)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts[opt] = value
	if opt == OptPayloadSize {
		if n, ok := value.(int); ok {
			s.payloadSize = n
		}
	}
	return nil
}

func (b *stubBinding) GetSockOpt(fd int32, opt SockOpt) (any, error) {
	s, err := b.get(fd)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.opts[opt]
	if !ok {
		return nil, fmt.Errorf("srtnative: sockopt %d not set", opt)
	}
	return v, nil
}

func (b *stubBinding) GetSockState(fd int32) (SockState, error) {
	s, err := b.get(fd)
	if err != nil {
		return StateNonExist, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnected && s.conn != nil && s.recvClosed {
		return StateBroken, nil
	}
	return s.state, nil
}

func (b *stubBinding) EpollCreate() (int32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextEp++
	ep := b.nextEp
	b.epolls[ep] = newStubEpoll()
	return ep, nil
}

func (b *stubBinding) epoll(epid int32) (*stubEpoll, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.epolls[epid]
	if !ok {
		return nil, fmt.Errorf("srtnative: unknown epoll id %d", epid)
	}
	return e, nil
}

func (b *stubBinding) EpollAddUsock(epid int32, fd int32, events EpollFlags) error {
	e, err := b.epoll(epid)
	if err != nil {
		return err
	}
	e.add(fd, events)
	return nil
}

func (b *stubBinding) EpollRemoveUsock(epid int32, fd int32) error {
	e, err := b.epoll(epid)
	if err != nil {
		return err
	}
	e.remove(fd)
	return nil
}

func (b *stubBinding) EpollUwait(epid int32, timeout time.Duration) ([]Event, error) {
	e, err := b.epoll(epid)
	if err != nil {
		return nil, err
	}
	return e.wait(b, timeout), nil
}

func (b *stubBinding) EpollClose(epid int32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.epolls, epid)
	return nil
}

func (b *stubBinding) SetLogLevel(level int) {
	// No native log handle to configure in the stub; nothing to do.
}

func (b *stubBinding) Stats(fd int32, clear bool) (Stats, error) {
	if _, err := b.get(fd); err != nil {
		return Stats{}, err
	}
	return Stats{}, nil
}

// stubEpoll tracks per-fd registrations for one simulated epoll set and
// polls socket readiness by sampling the underlying channels.
type stubEpoll struct {
	mu   sync.Mutex
	regs map[int32]EpollFlags
}

func newStubEpoll() *stubEpoll {
	return &stubEpoll{regs: make(map[int32]EpollFlags)}
}

func (e *stubEpoll) add(fd int32, flags EpollFlags) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.regs[fd] = flags
}

func (e *stubEpoll) remove(fd int32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.regs, fd)
}

const stubPollInterval = time.Millisecond

func (e *stubEpoll) wait(b *stubBinding, timeout time.Duration) []Event {
	deadline := time.Now().Add(timeout)
	for {
		events := e.sweep(b)
		if len(events) > 0 {
			return events
		}
		if timeout <= 0 || time.Now().After(deadline) {
			return events
		}
		time.Sleep(stubPollInterval)
	}
}

func (e *stubEpoll) sweep(b *stubBinding) []Event {
	e.mu.Lock()
	regs := make(map[int32]EpollFlags, len(e.regs))
	for fd, f := range e.regs {
		regs[fd] = f
	}
	e.mu.Unlock()

	var events []Event
	for fd, want := range regs {
		s, err := b.get(fd)
		if err != nil {
			if want.Has(EpollErr) {
				events = append(events, Event{Fd: fd, Flags: EpollErr})
			}
			continue
		}
		s.mu.Lock()
		state := s.state
		var readable bool
		if s.accepted != nil {
			readable = len(s.accepted) > 0
		} else if s.recv != nil {
			readable = len(s.recv) > 0 || s.recvClosed
		}
		s.mu.Unlock()

		var flags EpollFlags
		if want.Has(EpollIn) && readable {
			flags |= EpollIn
		}
		if want.Has(EpollErr) && state.Terminal() {
			flags |= EpollErr
		}
		if flags != 0 {
			events = append(events, Event{Fd: fd, Flags: flags})
		}
	}
	return events
}
