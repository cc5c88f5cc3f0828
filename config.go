package srtgo

import (
	"time"

	"github.com/srtgo/srtgo/internal/constants"
	"github.com/srtgo/srtgo/internal/logging"
)

// Config holds the process-visible configuration for a Server or Dialer.
type Config struct {
	// Address is the local interface to bind (Server) or the remote host to
	// connect to (Dialer).
	Address string
	// Port is the listener port (Server, required, 1..65535) or the
	// remote port to connect to (Dialer, required).
	Port uint16
	// EpollPollingPeriod is the delay between Server Loop polls.
	EpollPollingPeriod time.Duration
	// EpollUwaitTimeout is the native timeout passed to each epoll wait.
	EpollUwaitTimeout time.Duration
	// ListenBacklog is passed to listen().
	ListenBacklog int
	// CallTimeout holds a per-call Future timeout value. Server, Dialer and
	// Connection do not apply it: their calls pass their own timeout to
	// Await, most of them zero (wait indefinitely).
	CallTimeout time.Duration
	// LogLevel holds a native logging level. Server and Dialer do not
	// forward it; the native set_log_level call is reachable only by
	// submitting runner.MethodSetLogLevel to a Facade directly.
	LogLevel int
	// CPUAffinity, if >= 0, pins the Task Runner's worker goroutine to that
	// CPU (Linux only; a no-op elsewhere). Negative (the default) leaves
	// scheduling to the Go runtime.
	CPUAffinity int
	// Logger receives this package's own diagnostic messages. Defaults to
	// logging.Default() when nil.
	Logger *logging.Logger
}

// DefaultConfig returns a Config populated with this package's documented
// defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:            constants.DefaultAddress,
		EpollPollingPeriod: constants.DefaultEpollPollingPeriod,
		EpollUwaitTimeout:  constants.DefaultEpollUwaitTimeout,
		ListenBacklog:      constants.DefaultListenBacklog,
		CallTimeout:        constants.DefaultCallTimeout,
		CPUAffinity:        -1,
		Logger:             logging.Default(),
	}
}

func (c *Config) logger() *logging.Logger {
	if c == nil || c.Logger == nil {
		return logging.Default()
	}
	return c.Logger
}
