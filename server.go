package srtgo

import (
	"sync"
	"time"

	"github.com/srtgo/srtgo/internal/runner"
	"github.com/srtgo/srtgo/internal/srtnative"
)

// Server is the Server Loop (C5): a Socket Owner specialized with listener
// semantics and an epoll-driven dispatch loop that accepts connections and
// routes readiness events to the right Connection Handle.
type Server struct {
	*socketOwner

	cfg        *Config
	epid       int32
	listenerFd int32

	connsMu sync.Mutex
	conns   map[int32]*Connection

	stopPoll chan struct{}
	pollDone chan struct{}

	disposeOnce sync.Once
}

// NewServer builds a Server bound to a fresh Facade over binding. It does
// not bind or listen yet; call Open for that.
func NewServer(binding srtnative.Binding, cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	facade := NewFacade(binding, cfg.logger(), cfg.CPUAffinity)
	return &Server{
		socketOwner: newSocketOwner(facade, cfg.logger(), false),
		cfg:         cfg,
		listenerFd:  -1,
		conns:       make(map[int32]*Connection),
	}
}

// Open runs the listener opening sequence: bind, listen, epoll_create,
// emit "opened", then register the listener fd and start the event loop.
// Each step awaits the previous one.
func (s *Server) Open() error {
	if err := s.create(); err != nil {
		return err
	}
	fd := s.Fd()

	if s.cfg.Port < 1 || s.cfg.Port > 65535 {
		return NewError("open", CodeState, "port must be in 1..65535")
	}

	if _, err := s.facade.Submit(runner.MethodBind, fd, s.cfg.Address, s.cfg.Port).Await(0); err != nil {
		return WrapError("bind", CodeState, err)
	}
	if _, err := s.facade.Submit(runner.MethodListen, fd, s.cfg.ListenBacklog).Await(0); err != nil {
		return WrapError("listen", CodeState, err)
	}
	epidResult, err := s.facade.Submit(runner.MethodEpollCreate).Await(0)
	if err != nil {
		return WrapError("epoll_create", CodeState, err)
	}
	s.epid = epidResult.(int32)
	s.listenerFd = fd

	s.mu.Lock()
	s.state = StateOpen
	s.mu.Unlock()
	s.Events.Emit("opened", fd)

	if _, err := s.facade.Submit(runner.MethodEpollAddUsock, s.epid, fd, srtnative.EpollIn|srtnative.EpollErr).Await(0); err != nil {
		return WrapError("epoll_add_usock", CodeState, err)
	}

	s.stopPoll = make(chan struct{})
	s.pollDone = make(chan struct{})
	go s.pollLoop()
	return nil
}

// pollLoop is the re-entrant-safe event loop: each iteration waits for the
// previous epoll_uwait reply before scheduling the next, using a timer for
// EpollPollingPeriod in place of the host runtime's own timer facility.
func (s *Server) pollLoop() {
	defer close(s.pollDone)
	for {
		select {
		case <-s.stopPoll:
			return
		default:
		}
		if s.facade.Disposed() {
			return
		}

		result, err := s.facade.Submit(runner.MethodEpollUwait, s.epid, s.cfg.EpollUwaitTimeout).Await(0)
		if err != nil {
			s.logger.WithError(err).Warn("epoll_uwait failed")
		} else if events, ok := result.([]srtnative.Event); ok {
			s.dispatchEvents(events)
		}

		if s.cfg.EpollPollingPeriod > 0 {
			timer := time.NewTimer(s.cfg.EpollPollingPeriod)
			select {
			case <-timer.C:
			case <-s.stopPoll:
				timer.Stop()
				return
			}
		}
	}
}

func (s *Server) dispatchEvents(evts []srtnative.Event) {
	for _, ev := range evts {
		if ev.Fd == s.listenerFd {
			state, _ := s.facade.Submit(runner.MethodGetSockState, ev.Fd).Await(0)
			if st, ok := state.(srtnative.SockState); ok && st == srtnative.StateListening {
				s.handleAccept()
				continue
			}
		}

		state, _ := s.facade.Submit(runner.MethodGetSockState, ev.Fd).Await(0)
		if st, ok := state.(srtnative.SockState); ok && st.Terminal() {
			s.handleDisconnect(ev.Fd)
			continue
		}

		s.handleDataReady(ev.Fd)
	}
}

func (s *Server) handleAccept() {
	result, err := s.facade.Submit(runner.MethodAccept, s.listenerFd).Await(0)
	if err != nil {
		s.logger.WithError(err).Warn("accept failed")
		return
	}
	newFd, ok := result.(int32)
	if !ok || newFd == srtnative.ERROR {
		s.logger.Warn("accept returned ERROR")
		return
	}

	// Fire-and-forget: a failed registration here silently loses the
	// connection's data events. Logged rather than retried.
	go func() {
		future := s.facade.Submit(runner.MethodEpollAddUsock, s.epid, newFd, srtnative.EpollIn|srtnative.EpollErr)
		_, err := future.Await(0)
		if err == nil {
			future.call.mu.Lock()
			err = future.call.reply.TransportErr
			future.call.mu.Unlock()
		}
		if err != nil {
			s.logger.WithFd(newFd).WithError(err).Error("epoll registration for accepted connection failed; it will never receive data events")
		}
	}()

	conn := newConnection(s.facade, s.logger, newFd)
	s.connsMu.Lock()
	s.conns[newFd] = conn
	s.connsMu.Unlock()

	s.Events.Emit("connection", conn)
}

func (s *Server) handleDisconnect(fd int32) {
	s.connsMu.Lock()
	conn, ok := s.conns[fd]
	delete(s.conns, fd)
	s.connsMu.Unlock()

	if ok {
		conn.close()
	}
	s.Events.Emit("disconnection", fd)
}

func (s *Server) handleDataReady(fd int32) {
	s.connsMu.Lock()
	conn, ok := s.conns[fd]
	s.connsMu.Unlock()

	if !ok {
		s.logger.WithFd(fd).Warn("data-ready event for unknown connection fd")
		return
	}
	conn.notifyDataReady()
}

// ConnectionCount reports how many connections are currently tracked.
func (s *Server) ConnectionCount() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

// Dispose stops the event loop, closes every tracked connection, closes
// the listener socket, and disposes the underlying facade. Idempotent;
// a second call is a no-op.
func (s *Server) Dispose() {
	s.disposeOnce.Do(func() {
		if s.stopPoll != nil {
			close(s.stopPoll)
			<-s.pollDone
		}

		s.connsMu.Lock()
		conns := make([]*Connection, 0, len(s.conns))
		for _, c := range s.conns {
			conns = append(conns, c)
		}
		s.conns = make(map[int32]*Connection)
		s.connsMu.Unlock()
		for _, c := range conns {
			c.close()
		}

		s.dispose()
	})
}
