// Package chunkio implements the Async Reader/Writer (C7): the layer that
// translates between the SRT payload MTU and arbitrary-sized application
// buffers, cooperating with a single-threaded host runtime the way the
// worker pool cooperates with the OS scheduler, by yielding
// control at defined points instead of running one long uninterruptible
// loop.
package chunkio

import "fmt"

// Submitter is the subset of the Async Facade that chunked I/O needs. It is
// defined here, not imported from the facade package, so chunkio has no
// dependency on the rest of the core and can be tested against a fake.
// Write takes ownership of payload: the caller must not call Bytes() on it
// again once Write returns, and Len() will report zero.
type Submitter interface {
	Write(payload *DetachedBuffer) (int, error)
	Read(maxBytes int) ([]byte, error)
}

// Yielder is called between write batches under the yielding-loop pacing
// strategy to hand control back to the host runtime. A production caller
// passes something that reschedules onto a runtime loop with a
// minimum-delay timer; tests pass a counting stub.
type Yielder func()

// Split divides buffer into mtu-sized DetachedBuffers; the final one may be
// shorter than mtu. Split never copies: each chunk's underlying slice
// aliases buffer, so callers must not mutate buffer while the chunks are
// still unsubmitted.
func Split(buffer []byte, mtu int) []*DetachedBuffer {
	if mtu <= 0 {
		panic("chunkio: mtu must be positive")
	}
	if len(buffer) == 0 {
		return nil
	}
	chunks := make([]*DetachedBuffer, 0, (len(buffer)+mtu-1)/mtu)
	for offset := 0; offset < len(buffer); offset += mtu {
		end := offset + mtu
		if end > len(buffer) {
			end = len(buffer)
		}
		chunks = append(chunks, NewDetachedBuffer(buffer[offset:end]))
	}
	return chunks
}

// WriteChunksYielding splits buffer into mtu-sized chunks and submits them
// sequentially through w, each with ownership-transfer semantics: once a
// chunk has been handed to w.Write, it is consumed. After every
// writesPerTick submissions it calls yield before continuing, so a caller
// driving a single-threaded runtime never monopolizes it with one giant
// write.
func WriteChunksYielding(w Submitter, buffer []byte, mtu int, writesPerTick int, yield Yielder) error {
	if writesPerTick <= 0 {
		writesPerTick = 1
	}
	chunks := Split(buffer, mtu)
	for i, chunk := range chunks {
		chunkLen := chunk.Len()
		n, err := w.Write(chunk)
		if err != nil {
			return fmt.Errorf("chunkio: write chunk %d/%d: %w", i, len(chunks), err)
		}
		if n != chunkLen {
			return fmt.Errorf("chunkio: write chunk %d/%d: wrote %d of %d bytes", i, len(chunks), n, chunkLen)
		}
		if (i+1)%writesPerTick == 0 && i != len(chunks)-1 && yield != nil {
			yield()
		}
	}
	return nil
}

// TaskQueue is a minimal FIFO work queue standing in for "the host
// runtime's task queue" that explicit-scheduling pacing schedules onto.
// Run drains it to completion, invoking tasks in the order they were
// enqueued, including tasks enqueued by tasks already running, exactly
// the turn-by-turn behavior a single-threaded event loop provides.
type TaskQueue struct {
	tasks []func()
}

// Enqueue appends fn to the queue.
func (q *TaskQueue) Enqueue(fn func()) {
	q.tasks = append(q.tasks, fn)
}

// Run executes every queued task, including ones enqueued during the run,
// until the queue is empty.
func (q *TaskQueue) Run() {
	for len(q.tasks) > 0 {
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		fn()
	}
}

// WriteChunksScheduled splits buffer into mtu-sized chunks and schedules
// their submission onto queue in batches of exactly writesPerTick chunks
// per turn: one batch runs synchronously when queue.Run reaches it, then
// enqueues a continuation for the next batch before returning control to
// the queue. The caller must call queue.Run (or already be running it) for
// any work to happen; err receives the first write failure, if any, once
// the queue drains.
func WriteChunksScheduled(w Submitter, buffer []byte, mtu int, writesPerTick int, queue *TaskQueue) *error {
	if writesPerTick <= 0 {
		writesPerTick = 1
	}
	chunks := Split(buffer, mtu)
	result := new(error)

	var scheduleBatch func(start int)
	scheduleBatch = func(start int) {
		queue.Enqueue(func() {
			if *result != nil {
				return
			}
			end := start + writesPerTick
			if end > len(chunks) {
				end = len(chunks)
			}
			for i := start; i < end; i++ {
				chunkLen := chunks[i].Len()
				n, werr := w.Write(chunks[i])
				if werr != nil {
					*result = fmt.Errorf("chunkio: write chunk %d/%d: %w", i, len(chunks), werr)
					return
				}
				if n != chunkLen {
					*result = fmt.Errorf("chunkio: write chunk %d/%d: wrote %d of %d bytes", i, len(chunks), n, chunkLen)
					return
				}
			}
			if end < len(chunks) {
				scheduleBatch(end)
			}
		})
	}
	scheduleBatch(0)
	return result
}
