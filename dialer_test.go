package srtgo

import (
	"testing"
	"time"

	"github.com/srtgo/srtgo/internal/chunkio"
	"github.com/srtgo/srtgo/internal/srtnative"
)

func TestDialerConnectsToServerAndExchangesData(t *testing.T) {
	srvCfg := DefaultConfig()
	srvCfg.Address = "127.0.0.1"
	srvCfg.Port = 19001

	srv := NewServer(srtnative.NewStubBinding(), srvCfg)
	if err := srv.Open(); err != nil {
		t.Fatalf("server Open: %v", err)
	}
	defer srv.Dispose()

	var accepted *Connection
	acceptedCh := make(chan struct{})
	srv.Events.On("connection", func(args ...any) {
		accepted = args[0].(*Connection)
		close(acceptedCh)
	})

	// The Dialer needs its own binding and Facade/Runner; sharing the
	// server's would deadlock the single worker goroutine against itself.
	dialerCfg := DefaultConfig()
	dialerCfg.Address = "127.0.0.1"
	dialerCfg.Port = 19001

	dialer := NewDialer(srtnative.NewStubBinding(), dialerCfg)
	if err := dialer.Open(); err != nil {
		t.Fatalf("dialer Open: %v", err)
	}
	defer dialer.Dispose()

	select {
	case <-acceptedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the incoming connection")
	}

	payload := chunkio.NewDetachedBuffer([]byte("hello"))
	if _, err := dialer.Conn().Write(payload); err != nil {
		t.Fatalf("dialer write: %v", err)
	}
	if payload.Len() != 0 {
		t.Fatalf("payload.Len() = %d after Write, want 0 (detached)", payload.Len())
	}

	deadline := time.Now().Add(2 * time.Second)
	var got []byte
	for time.Now().Before(deadline) {
		buf, err := accepted.Read(64)
		if err != nil {
			t.Fatalf("server read: %v", err)
		}
		if len(buf) > 0 {
			got = buf
			break
		}
		time.Sleep(time.Millisecond)
	}
	if string(got) != "hello" {
		t.Fatalf("server received %q, want %q", got, "hello")
	}
}

func TestDialerOpenRejectsPortOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 0

	d := NewDialer(srtnative.NewStubBinding(), cfg)
	defer d.Dispose()

	if err := d.Open(); err == nil {
		t.Fatal("expected a port-range error")
	}
}

func TestDialerDisposeClosesConnection(t *testing.T) {
	srvCfg := DefaultConfig()
	srvCfg.Address = "127.0.0.1"
	srvCfg.Port = 19002
	srv := NewServer(srtnative.NewStubBinding(), srvCfg)
	if err := srv.Open(); err != nil {
		t.Fatalf("server Open: %v", err)
	}
	defer srv.Dispose()

	dialerCfg := DefaultConfig()
	dialerCfg.Address = "127.0.0.1"
	dialerCfg.Port = 19002
	dialer := NewDialer(srtnative.NewStubBinding(), dialerCfg)
	if err := dialer.Open(); err != nil {
		t.Fatalf("dialer Open: %v", err)
	}

	conn := dialer.Conn()
	dialer.Dispose()

	if !conn.IsClosed() {
		t.Fatal("expected the dialed connection to be closed by Dispose")
	}
}
