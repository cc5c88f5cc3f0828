package srtgo

import (
	"sync"
	"time"

	"github.com/srtgo/srtgo/internal/bufpool"
	"github.com/srtgo/srtgo/internal/chunkio"
	"github.com/srtgo/srtgo/internal/events"
	"github.com/srtgo/srtgo/internal/logging"
	"github.com/srtgo/srtgo/internal/runner"
)

// Connection wraps one accepted fd (C6) with per-connection state: whether
// any data has ever been observed, and whether close has already run.
type Connection struct {
	facade *Facade
	logger *logging.Logger
	Events *events.Registry

	mu                sync.Mutex
	fd                int32 // set to -1 the turn after "closed" fires, per the close-race open question
	firstDataObserved bool
	closeOnce         sync.Once
	closed            bool
	closeErr          error
}

func newConnection(facade *Facade, logger *logging.Logger, fd int32) *Connection {
	return &Connection{
		facade: facade,
		logger: logger.WithFd(fd),
		Events: events.NewRegistry(logger),
		fd:     fd,
	}
}

// Fd returns the connection's fd, or -1 once the deferred null-out from a
// prior close has run on the task queue.
func (c *Connection) Fd() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fd
}

// IsClosed reports whether close() has completed.
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Read delegates to the shared Server facade.
func (c *Connection) Read(maxBytes int) ([]byte, error) {
	fd := c.Fd()
	if fd < 0 {
		return nil, NewError("read", CodeState, "connection closed")
	}
	result, err := c.facade.Submit(runner.MethodRead, fd, maxBytes).Await(0)
	if err != nil {
		return nil, err
	}
	buf, _ := result.([]byte)
	return buf, nil
}

// Write delegates to the shared Server facade. payload is consumed by this
// call: Detach runs before the native write is even submitted, so
// payload.Len() is already 0 and payload.Bytes() already panics for any
// other holder of the same *DetachedBuffer by the time Write returns,
// regardless of how the native call itself turns out.
func (c *Connection) Write(payload *chunkio.DetachedBuffer) (int, error) {
	fd := c.Fd()
	if fd < 0 {
		return 0, NewError("write", CodeState, "connection closed")
	}
	buf := payload.Detach()
	result, err := c.facade.Submit(runner.MethodWrite, fd, buf).Await(0)
	if err != nil {
		return 0, err
	}
	n, _ := result.(int)
	return n, nil
}

// submitter adapts Connection to chunkio.Submitter so C7 helpers can drive
// it without depending on this package.
type submitter struct{ c *Connection }

func (s submitter) Write(payload *chunkio.DetachedBuffer) (int, error) { return s.c.Write(payload) }
func (s submitter) Read(maxBytes int) ([]byte, error)                  { return s.c.Read(maxBytes) }

// GetReaderWriter returns a chunkio.Submitter bound to this connection, for
// use with chunkio.WriteChunksYielding, WriteChunksScheduled, and
// ReadChunks.
func (c *Connection) GetReaderWriter() chunkio.Submitter {
	return submitter{c: c}
}

// notifyDataReady is called by the Server Loop when an epoll event
// indicates data is ready on this fd. It reads once, toggling
// firstDataObserved before the observer runs if this is the first call,
// then emits "data". The emitted buffer is only valid for the duration of
// the "data" handlers; it returns to the pool immediately after. With no
// "data" handler registered it reads nothing, leaving the data for the
// connection's own Read callers.
func (c *Connection) notifyDataReady() {
	if c.Events.ListenerCount("data") == 0 {
		return
	}
	buf, err := c.Read(constants64k)
	if err != nil {
		c.logger.WithError(err).Warn("read after data-ready event failed")
		return
	}
	if len(buf) == 0 {
		return
	}

	c.mu.Lock()
	c.firstDataObserved = true
	c.mu.Unlock()

	c.Events.Emit("data", buf)

	// "data" handlers only get to observe buf for the duration of Emit;
	// returning it to the pool afterward is a no-op if it didn't actually
	// come from a pooled bucket (e.g. the stub binding).
	bufpool.Put(buf)
}

const constants64k = 64 * 1024

// FirstDataObserved reports whether any data event has fired yet.
func (c *Connection) FirstDataObserved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstDataObserved
}

// Close runs at most once per Connection, no matter how many callers race
// to invoke it (including the Server Loop's own disconnection handling).
// It emits "closing" synchronously before the native close begins, awaits
// it through the facade, emits "closed" with the native result while the
// fd is still readable through Fd(), then schedules the fd null-out onto
// the next task-queue turn before detaching observers; IsClosed() is true
// as soon as Close() itself returns. A failing native close still
// completes the transition to closed; its error is cached and returned to
// every caller.
func (c *Connection) Close() error {
	return c.close()
}

// close is the unexported entry point shared by the exported Close and the
// Server Loop's disconnection handling.
func (c *Connection) close() error {
	var result error
	c.closeOnce.Do(func() {
		fd := c.Fd()
		c.Events.Emit("closing")

		if fd >= 0 {
			future := c.facade.Submit(runner.MethodClose, fd)
			_, err := future.Await(2 * time.Second)
			if err == nil {
				// A failing native close arrives as the reply's
				// TransportErr, which Await does not return.
				future.call.mu.Lock()
				if te := future.call.reply.TransportErr; te != nil {
					err = WrapError("close", CodeTransport, te)
				}
				future.call.mu.Unlock()
			}
			result = err
			c.mu.Lock()
			c.closeErr = err
			c.mu.Unlock()
		}

		// The fd stays readable through the "closed" emission itself;
		// synchronous observers see it intact. The null-out is scheduled
		// onto the next task-queue turn rather than running inline here,
		// per the preserved close-race behavior.
		c.Events.Emit("closed", result)

		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		time.AfterFunc(0, func() {
			c.mu.Lock()
			c.fd = -1
			c.mu.Unlock()
		})

		c.Events.Dispose()
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}
