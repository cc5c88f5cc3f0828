//go:build linux

package runner

import (
	"golang.org/x/sys/unix"

	"github.com/srtgo/srtgo/internal/logging"
)

// setWorkerAffinity pins the calling OS thread to cpu. Best effort: a
// failure is logged and otherwise ignored; running without affinity is
// never fatal.
func setWorkerAffinity(logger *logging.Logger, cpu int) {
	var mask unix.CPUSet
	mask.Set(cpu)
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		logger.Warn("failed to set worker CPU affinity", "cpu", cpu, "error", err)
	}
}
