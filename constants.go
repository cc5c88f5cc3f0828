package srtgo

import "github.com/srtgo/srtgo/internal/constants"

// Re-exported defaults for the process-visible configuration table.
const (
	DefaultAddress             = constants.DefaultAddress
	DefaultListenBacklog       = constants.DefaultListenBacklog
	DefaultPayloadMTU          = constants.DefaultPayloadMTU
	DefaultWritesPerTick       = constants.DefaultWritesPerTick
	DefaultReadBufferSize      = constants.DefaultReadBufferSize
	DefaultEpollPollingPeriod  = constants.DefaultEpollPollingPeriod
	DefaultEpollUwaitTimeout   = constants.DefaultEpollUwaitTimeout
	DefaultCallTimeout         = constants.DefaultCallTimeout
	DefaultDisposeDrainTimeout = constants.DefaultDisposeDrainTimeout
)
