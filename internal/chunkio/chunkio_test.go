package chunkio

import (
	"bytes"
	"errors"
	"testing"
)

// fakeSubmitter is an in-memory Submitter: writes append to sent, reads
// drain from a preloaded queue of responses.
type fakeSubmitter struct {
	sent      [][]byte
	received  []*DetachedBuffer
	readQueue [][]byte
	readErr   error
}

func (f *fakeSubmitter) Write(payload *DetachedBuffer) (int, error) {
	f.received = append(f.received, payload)
	n := payload.Len()
	cp := append([]byte(nil), payload.Detach()...)
	f.sent = append(f.sent, cp)
	return n, nil
}

func (f *fakeSubmitter) Read(maxBytes int) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if len(f.readQueue) == 0 {
		return nil, nil
	}
	next := f.readQueue[0]
	f.readQueue = f.readQueue[1:]
	return next, nil
}

func randomBytes(n int) []byte {
	buf := make([]byte, n)
	x := uint32(12345)
	for i := range buf {
		x = x*1664525 + 1013904223
		buf[i] = byte(x >> 24)
	}
	return buf
}

func TestSplitRoundTrip(t *testing.T) {
	buf := randomBytes(60000)
	for _, mtu := range []int{1, 7, 1316, 60000, 60001} {
		chunks := Split(buf, mtu)
		var rejoined []byte
		for _, c := range chunks {
			rejoined = append(rejoined, c.Bytes()...)
		}
		if !bytes.Equal(rejoined, buf) {
			t.Fatalf("mtu=%d: round-trip mismatch, got %d bytes want %d", mtu, len(rejoined), len(buf))
		}
	}
}

func TestSplitEmptyBuffer(t *testing.T) {
	if chunks := Split(nil, 100); chunks != nil {
		t.Fatalf("Split(nil, ...) = %v, want nil", chunks)
	}
}

func TestWriteChunksYieldingDeliversAllBytes(t *testing.T) {
	buf := randomBytes(60000)
	sub := &fakeSubmitter{}
	yieldCount := 0

	err := WriteChunksYielding(sub, buf, 1316, 16, func() { yieldCount++ })
	if err != nil {
		t.Fatalf("WriteChunksYielding: %v", err)
	}

	var got []byte
	for _, c := range sub.sent {
		got = append(got, c...)
	}
	if !bytes.Equal(got, buf) {
		t.Fatal("delivered bytes do not match input buffer")
	}

	wantChunks := (60000 + 1315) / 1316 // 46
	if len(sub.sent) != wantChunks {
		t.Fatalf("sent %d chunks, want %d", len(sub.sent), wantChunks)
	}
	wantYields := (len(sub.sent) - 1) / 16
	if yieldCount != wantYields {
		t.Fatalf("yieldCount = %d, want %d", yieldCount, wantYields)
	}
}

func TestWriteChunksYieldingPropagatesWriteError(t *testing.T) {
	sub := &fakeSubmitter{}
	boom := errors.New("boom")
	failing := &erroringSubmitter{after: 2, err: boom, inner: sub}

	err := WriteChunksYielding(failing, randomBytes(10000), 1316, 4, nil)
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapped %v", err, boom)
	}
}

type erroringSubmitter struct {
	after int
	err   error
	inner Submitter
	calls int
}

func (e *erroringSubmitter) Write(payload *DetachedBuffer) (int, error) {
	e.calls++
	if e.calls > e.after {
		payload.Detach() // still consumed even on failure: ownership transferred regardless of outcome
		return 0, e.err
	}
	return e.inner.Write(payload)
}

func (e *erroringSubmitter) Read(maxBytes int) ([]byte, error) { return e.inner.Read(maxBytes) }

func TestWriteChunksScheduledDeliversInBatchesAndAllBytes(t *testing.T) {
	buf := randomBytes(60000)
	sub := &fakeSubmitter{}
	queue := &TaskQueue{}

	errPtr := WriteChunksScheduled(sub, buf, 1316, 16, queue)
	queue.Run()

	if *errPtr != nil {
		t.Fatalf("WriteChunksScheduled: %v", *errPtr)
	}

	var got []byte
	for _, c := range sub.sent {
		got = append(got, c...)
	}
	if !bytes.Equal(got, buf) {
		t.Fatal("delivered bytes do not match input buffer")
	}

	wantChunks := (60000 + 1315) / 1316
	if len(sub.sent) != wantChunks {
		t.Fatalf("sent %d chunks, want %d", len(sub.sent), wantChunks)
	}
}

func TestWriteChunksScheduledStopsOnError(t *testing.T) {
	sub := &fakeSubmitter{}
	boom := errors.New("boom")
	failing := &erroringSubmitter{after: 1, err: boom, inner: sub}
	queue := &TaskQueue{}

	errPtr := WriteChunksScheduled(failing, randomBytes(10000), 1316, 4, queue)
	queue.Run()

	if *errPtr == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(*errPtr, boom) {
		t.Fatalf("error = %v, want wrapped %v", *errPtr, boom)
	}
}

func TestReadChunksAccumulatesUntilMinBytes(t *testing.T) {
	sub := &fakeSubmitter{readQueue: [][]byte{
		randomBytes(1316),
		randomBytes(1316),
		randomBytes(500),
	}}

	var delivered [][]byte
	result := ReadChunks(sub, 3000, 4096, func(buf []byte) { delivered = append(delivered, buf) }, nil)

	total := 0
	for _, b := range result {
		total += len(b)
	}
	if total < 3000 {
		t.Fatalf("accumulated %d bytes, want >= 3000", total)
	}
	if len(delivered) != len(result) {
		t.Fatalf("onRead called %d times, want %d", len(delivered), len(result))
	}
}

func TestReadChunksStopsOnEOF(t *testing.T) {
	sub := &fakeSubmitter{readQueue: [][]byte{randomBytes(100)}}
	var gotErr error
	called := false

	result := ReadChunks(sub, 10000, 4096, nil, func(err error) { called = true; gotErr = err })

	if !called {
		t.Fatal("onError was not called on EOF")
	}
	if gotErr != nil {
		t.Fatalf("onError err = %v, want nil for EOF", gotErr)
	}
	if len(result) != 1 {
		t.Fatalf("result has %d buffers, want 1 (the buffer received before EOF)", len(result))
	}
}

func TestReadChunksStopsOnTerminalError(t *testing.T) {
	boom := errors.New("boom")
	sub := &fakeSubmitter{readErr: boom}
	var gotErr error

	result := ReadChunks(sub, 100, 4096, nil, func(err error) { gotErr = err })

	if gotErr != boom {
		t.Fatalf("onError err = %v, want %v", gotErr, boom)
	}
	if result != nil {
		t.Fatalf("result = %v, want nil", result)
	}
}

// TestWriteChunksYieldingDetachesEveryChunk exercises the ownership-transfer
// invariant end to end through the real write path, not just DetachedBuffer
// in isolation: every chunk Split hands to WriteChunksYielding must come out
// the other side with observable length zero.
func TestWriteChunksYieldingDetachesEveryChunk(t *testing.T) {
	buf := randomBytes(5000)
	sub := &fakeSubmitter{}

	if err := WriteChunksYielding(sub, buf, 1316, 16, nil); err != nil {
		t.Fatalf("WriteChunksYielding: %v", err)
	}
	wantChunks := (5000 + 1315) / 1316 // 4
	if len(sub.received) != wantChunks {
		t.Fatalf("Submitter received %d chunks, want %d", len(sub.received), wantChunks)
	}

	for i, chunk := range sub.received {
		if chunk.Len() != 0 {
			t.Fatalf("chunk %d Len() = %d after Write, want 0", i, chunk.Len())
		}
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("chunk %d: expected Bytes() to panic after Write", i)
				}
			}()
			chunk.Bytes()
		}()
	}
}

func TestDetachedBufferPanicsAfterDetach(t *testing.T) {
	d := NewDetachedBuffer([]byte("payload"))
	if d.Len() != 7 {
		t.Fatalf("Len() = %d, want 7", d.Len())
	}
	data := d.Detach()
	if string(data) != "payload" {
		t.Fatalf("Detach() = %q", data)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic calling Bytes() after Detach")
		}
	}()
	d.Bytes()
}
