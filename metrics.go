package srtgo

import (
	"github.com/srtgo/srtgo/internal/runner"
	"github.com/srtgo/srtgo/internal/srtnative"
)

// Stats is a per-connection snapshot of native transport statistics,
// forwarded from the binding without any aggregation above it (Non-goal:
// statistics aggregation beyond a pass-through).
type Stats = srtnative.Stats

// Stats reports the current transport statistics for this connection. When
// clear is true the native counters reset after this read. There is no
// history kept above the binding; every call is an independent snapshot.
func (c *Connection) Stats(clear bool) (Stats, error) {
	fd := c.Fd()
	if fd < 0 || c.IsClosed() {
		return Stats{}, NewError("stats", CodeState, "connection closed")
	}
	result, err := c.facade.Submit(runner.MethodStats, fd, clear).Await(0)
	if err != nil {
		return Stats{}, err
	}
	stats, _ := result.(Stats)
	return stats, nil
}
