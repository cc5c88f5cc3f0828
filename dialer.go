package srtgo

import (
	"github.com/srtgo/srtgo/internal/runner"
	"github.com/srtgo/srtgo/internal/srtnative"
)

// Dialer is the client-role Socket Owner: a sender-mode socket that
// connects outward instead of accepting. It shares the same Created -> Open
// -> Disposed lifecycle as Server, just with connect in place of
// bind/listen/accept, and hands back a single Connection once open rather
// than emitting "connection" per accept.
//
// A Dialer and a Server that talk to each other within the same process
// must use separate Facades (and therefore separate Task Runners): the
// spec's ordering guarantees are per Facade, not global, and one Runner's
// goroutine blocking on its own peer's reply would deadlock against itself.
type Dialer struct {
	*socketOwner

	cfg  *Config
	conn *Connection
}

// NewDialer builds a Dialer bound to a fresh Facade over binding. It does
// not connect yet; call Open for that.
func NewDialer(binding srtnative.Binding, cfg *Config) *Dialer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	facade := NewFacade(binding, cfg.logger(), cfg.CPUAffinity)
	return &Dialer{
		socketOwner: newSocketOwner(facade, cfg.logger(), true),
		cfg:         cfg,
	}
}

// openSocket implements opener for socketOwner.open: it connects to the
// configured address and port.
func (d *Dialer) openSocket(fd int32) error {
	_, err := d.facade.Submit(runner.MethodConnect, fd, d.cfg.Address, d.cfg.Port).Await(0)
	if err != nil {
		return WrapError("connect", CodeState, err)
	}
	return nil
}

// Open runs the connect sequence: create the socket, then connect it. On
// success the resulting Connection is available from Conn.
func (d *Dialer) Open() error {
	if d.cfg.Port < 1 || d.cfg.Port > 65535 {
		return NewError("open", CodeState, "port must be in 1..65535")
	}
	if err := d.create(); err != nil {
		return err
	}
	if err := d.open(d); err != nil {
		return err
	}

	d.conn = newConnection(d.facade, d.logger, d.Fd())
	return nil
}

// Conn returns the Connection wrapping the dialed fd, or nil before Open
// succeeds.
func (d *Dialer) Conn() *Connection {
	return d.conn
}

// Dispose closes the connection (if open) and the underlying facade.
func (d *Dialer) Dispose() {
	if d.conn != nil {
		d.conn.close()
	}
	d.dispose()
}
