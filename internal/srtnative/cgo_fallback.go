//go:build !cgo || !linux

package srtnative

import "fmt"

// NewCgoBinding is unavailable without cgo enabled on Linux; build with
// cgo on Linux (and a reachable libsrt) to get the real binding, or use
// NewStubBinding for testing and non-Linux development.
func NewCgoBinding() (Binding, error) {
	return nil, fmt.Errorf("srtnative: not built with cgo+linux; use NewStubBinding")
}
