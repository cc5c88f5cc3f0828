//go:build !linux

package runner

import "github.com/srtgo/srtgo/internal/logging"

// setWorkerAffinity is a no-op outside Linux; CPU affinity pinning has no
// portable equivalent and SchedSetaffinity doesn't exist on other GOOS.
func setWorkerAffinity(logger *logging.Logger, cpu int) {
	logger.Debug("CPU affinity pinning is unavailable on this platform", "cpu", cpu)
}
