package chunkio

import "fmt"

// DetachedBuffer gives Go's non-aliasing slices the ownership-transfer
// semantics the write path expects: once a buffer has been handed to the
// Task Runner for submission, the caller must not read or mutate it again.
// Go has no move constructor to enforce that statically, so DetachedBuffer
// enforces it dynamically: Bytes panics after Detach, catching the
// "caller kept using the buffer after submission" bug at the call site
// that introduced it rather than as a data race three layers downstream.
type DetachedBuffer struct {
	data     []byte
	detached bool
}

// NewDetachedBuffer wraps data for a single ownership-transferring use.
func NewDetachedBuffer(data []byte) *DetachedBuffer {
	return &DetachedBuffer{data: data}
}

// Bytes returns the wrapped slice. It panics if Detach has already been
// called.
func (d *DetachedBuffer) Bytes() []byte {
	if d.detached {
		panic(fmt.Sprintf("chunkio: use of detached buffer (len=%d) after transfer", len(d.data)))
	}
	return d.data
}

// Detach marks the buffer as consumed and returns the underlying slice one
// final time. Callers pass the result onward (e.g. to Binding.Write). The
// buffer itself is left at length zero: Len() reports 0 and Bytes() panics
// for anyone still holding the *DetachedBuffer, which is the ownership
// transfer becoming observable rather than just documented.
func (d *DetachedBuffer) Detach() []byte {
	data := d.Bytes()
	d.detached = true
	d.data = nil
	return data
}

// Len reports the buffer's length: the full length before Detach, zero
// after.
func (d *DetachedBuffer) Len() int { return len(d.data) }
