// Package constants holds process-wide defaults for the SRT transport core.
package constants

import "time"

// Default configuration, mirroring the process-visible configuration table.
const (
	// DefaultAddress is the local interface a Server binds to when none is given.
	DefaultAddress = "0.0.0.0"

	// DefaultListenBacklog is the backlog passed to listen when none is given.
	DefaultListenBacklog = 65535

	// DefaultPayloadMTU is the SRT payload size in message-API mode.
	DefaultPayloadMTU = 1316

	// DefaultWritesPerTick bounds how many MTU chunks a chunked write submits
	// before yielding to the host runtime or scheduling the next batch.
	DefaultWritesPerTick = 16

	// DefaultReadBufferSize is a suggested per-call buffer size for
	// read_chunks; ReadChunks itself always uses the size its caller passes.
	DefaultReadBufferSize = 64 * 1024
)

// Timing defaults.
const (
	// DefaultEpollPollingPeriod is the delay between Server Loop polls.
	DefaultEpollPollingPeriod = 0 * time.Millisecond

	// DefaultEpollUwaitTimeout is the native timeout passed to epoll_uwait.
	DefaultEpollUwaitTimeout = 0 * time.Millisecond

	// DefaultCallTimeout is the value DefaultConfig puts in
	// Config.CallTimeout; see that field for how it is (not) applied.
	DefaultCallTimeout = 3000 * time.Millisecond

	// DefaultDisposeDrainTimeout is a drain-timeout default. Server.Dispose
	// does not use it: it waits for the poll goroutine to exit without a
	// bound.
	DefaultDisposeDrainTimeout = 2 * time.Second
)

// RequestQueueDepth sizes the channel between an Async Facade and its
// paired Task Runner; it is a buffering hint, not a correctness bound,
// the runner drains strictly in FIFO order regardless of depth.
const RequestQueueDepth = 256
