package srtgo

import (
	"bytes"
	"testing"
	"time"

	"github.com/srtgo/srtgo/internal/chunkio"
	"github.com/srtgo/srtgo/internal/constants"
	"github.com/srtgo/srtgo/internal/runner"
	"github.com/srtgo/srtgo/internal/srtnative"
)

// randomPayload is a deterministic pseudo-random byte generator so the
// scenario tests don't depend on math/rand's global state.
func randomPayload(n int, seed uint32) []byte {
	buf := make([]byte, n)
	x := seed
	for i := range buf {
		x = x*1664525 + 1013904223
		buf[i] = byte(x >> 24)
	}
	return buf
}

func newLoopbackPair(t *testing.T, port uint16) (*Server, *Dialer, *Connection) {
	t.Helper()

	srvCfg := DefaultConfig()
	srvCfg.Address = "127.0.0.1"
	srvCfg.Port = port
	srv := NewServer(srtnative.NewStubBinding(), srvCfg)
	if err := srv.Open(); err != nil {
		t.Fatalf("server Open: %v", err)
	}
	t.Cleanup(srv.Dispose)

	acceptedCh := make(chan *Connection, 1)
	srv.Events.On("connection", func(args ...any) {
		acceptedCh <- args[0].(*Connection)
	})

	dialerCfg := DefaultConfig()
	dialerCfg.Address = "127.0.0.1"
	dialerCfg.Port = port
	dialer := NewDialer(srtnative.NewStubBinding(), dialerCfg)
	if err := dialer.Open(); err != nil {
		t.Fatalf("dialer Open: %v", err)
	}
	t.Cleanup(dialer.Dispose)

	var accepted *Connection
	select {
	case accepted = <-acceptedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the incoming connection")
	}

	return srv, dialer, accepted
}

// Scenario 1: loopback one-shot with the yielding-loop pacing strategy.
func TestScenarioLoopbackOneShotYielding(t *testing.T) {
	_, dialer, accepted := newLoopbackPair(t, 9000)

	payload := randomPayload(60000, 1)
	chunks := chunkio.Split(payload, constants.DefaultPayloadMTU)
	if len(chunks) != 46 {
		t.Fatalf("Split produced %d chunks, want 46", len(chunks))
	}

	yieldCount := 0
	writeDone := make(chan error, 1)
	go func() {
		writeDone <- chunkio.WriteChunksYielding(
			dialer.Conn().GetReaderWriter(), payload, constants.DefaultPayloadMTU,
			constants.DefaultWritesPerTick, func() { yieldCount++ })
	}()

	var received [][]byte
	deadline := time.After(5 * time.Second)
	total := 0
	for total < len(payload) {
		select {
		case err := <-writeDone:
			if err != nil {
				t.Fatalf("WriteChunksYielding: %v", err)
			}
		case <-deadline:
			t.Fatalf("timed out with %d of %d bytes received", total, len(payload))
		default:
		}
		buf, err := accepted.Read(constants.DefaultReadBufferSize)
		if err != nil {
			t.Fatalf("server read: %v", err)
		}
		if len(buf) == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		received = append(received, buf)
		total += len(buf)
	}

	got := bytes.Join(received, nil)
	if !bytes.Equal(got, payload) {
		t.Fatal("received bytes do not equal sent bytes")
	}
}

// Scenario 2: loopback one-shot with explicit-scheduling pacing.
func TestScenarioLoopbackOneShotExplicitScheduling(t *testing.T) {
	_, dialer, accepted := newLoopbackPair(t, 9001)

	payload := randomPayload(60000, 2)

	queue := &chunkio.TaskQueue{}
	resultPtr := chunkio.WriteChunksScheduled(
		dialer.Conn().GetReaderWriter(), payload, constants.DefaultPayloadMTU,
		constants.DefaultWritesPerTick, queue)
	queue.Run()
	if err := *resultPtr; err != nil {
		t.Fatalf("WriteChunksScheduled: %v", err)
	}

	collected := chunkio.ReadChunks(accepted.GetReaderWriter(), len(payload), constants.DefaultReadBufferSize, nil, nil)
	got := bytes.Join(collected, nil)
	if !bytes.Equal(got, payload) {
		t.Fatal("received bytes do not equal sent bytes")
	}
}

// Scenario 3: accept-then-disconnect leaves the connection table empty and
// fires connection then disconnection for the same fd.
func TestScenarioAcceptThenDisconnect(t *testing.T) {
	srvCfg := DefaultConfig()
	srvCfg.Address = "127.0.0.1"
	srvCfg.Port = 9002
	srv := NewServer(srtnative.NewStubBinding(), srvCfg)
	if err := srv.Open(); err != nil {
		t.Fatalf("server Open: %v", err)
	}
	defer srv.Dispose()

	var acceptedFd int32
	connectedCh := make(chan struct{})
	disconnectedCh := make(chan int32, 1)
	srv.Events.On("connection", func(args ...any) {
		acceptedFd = args[0].(*Connection).Fd()
		close(connectedCh)
	})
	srv.Events.On("disconnection", func(args ...any) {
		disconnectedCh <- args[0].(int32)
	})

	dialerCfg := DefaultConfig()
	dialerCfg.Address = "127.0.0.1"
	dialerCfg.Port = 9002
	dialer := NewDialer(srtnative.NewStubBinding(), dialerCfg)
	if err := dialer.Open(); err != nil {
		t.Fatalf("dialer Open: %v", err)
	}

	select {
	case <-connectedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("connection never accepted")
	}

	dialer.Dispose()

	select {
	case fd := <-disconnectedCh:
		if fd != acceptedFd {
			t.Fatalf("disconnection fd = %d, want %d", fd, acceptedFd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("disconnection never fired")
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.ConnectionCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := srv.ConnectionCount(); n != 0 {
		t.Fatalf("ConnectionCount = %d, want 0", n)
	}
}

// Scenario 4: a timed-out accept still lets later operations complete in
// order once a peer actually shows up.
func TestScenarioTimeoutWithoutLeak(t *testing.T) {
	srvCfg := DefaultConfig()
	srvCfg.Address = "127.0.0.1"
	srvCfg.Port = 9003
	srv := NewServer(srtnative.NewStubBinding(), srvCfg)
	if err := srv.Open(); err != nil {
		t.Fatalf("server Open: %v", err)
	}
	defer srv.Dispose()

	future := srv.facade.Submit(runner.MethodAccept, srv.Fd())
	_, err := future.Await(100 * time.Millisecond)
	if err == nil || !IsCode(err, CodeTimeout) {
		t.Fatalf("Await err = %v, want CodeTimeout", err)
	}

	// The underlying accept call is still blocked inside the worker
	// goroutine (the Future timing out never cancels it); queue a second
	// operation right behind it and only then let a peer show up, proving
	// the timed-out accept didn't wedge the runner and the second call
	// still completes once its turn comes, in order.
	second := srv.facade.Submit(runner.MethodEpollCreate)

	dialerCfg := DefaultConfig()
	dialerCfg.Address = "127.0.0.1"
	dialerCfg.Port = 9003
	dialer := NewDialer(srtnative.NewStubBinding(), dialerCfg)
	if err := dialer.Open(); err != nil {
		t.Fatalf("dialer Open: %v", err)
	}
	defer dialer.Dispose()

	epidResult, err := second.Await(2 * time.Second)
	if err != nil {
		t.Fatalf("epoll_create after timeout: %v", err)
	}
	if _, ok := epidResult.(int32); !ok {
		t.Fatalf("epoll_create result = %#v, want int32", epidResult)
	}
}

// Scenario 5: dispose during a pending call clears callbacks without firing
// them, and every subsequent submission fails with a disposed error.
func TestScenarioDisposeDuringPending(t *testing.T) {
	srvCfg := DefaultConfig()
	srvCfg.Address = "127.0.0.1"
	srvCfg.Port = 9004
	srv := NewServer(srtnative.NewStubBinding(), srvCfg)
	if err := srv.Open(); err != nil {
		t.Fatalf("server Open: %v", err)
	}

	future := srv.facade.Submit(runner.MethodEpollUwait, srv.epid, 300*time.Millisecond)

	fired := false
	future.OnComplete(func(result any, err error) { fired = true })

	srv.Dispose()

	time.Sleep(20 * time.Millisecond)
	if fired {
		t.Fatal("callback fired after dispose; disposal must clear pending callbacks silently")
	}

	if _, err := srv.facade.Submit(runner.MethodEpollCreate).Await(time.Second); err == nil {
		t.Fatal("expected a disposed-state error after Dispose")
	}
}

// Scenario 6: an option batch applies both options before open succeeds,
// with no error on either.
func TestScenarioOptionBatch(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = 9005
	srv := NewServer(srtnative.NewStubBinding(), cfg)
	if err := srv.create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	defer srv.Dispose()

	results, err := srv.setSocketFlags(
		[]srtnative.SockOpt{srtnative.OptMessageAPI, srtnative.OptPayloadSize},
		[]any{true, 1316})
	if err != nil {
		t.Fatalf("setSocketFlags: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("option %v failed: %v", r.Opt, r.Err)
		}
	}
}
