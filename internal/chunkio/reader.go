package chunkio

// OnRead is called once for every non-empty buffer ReadChunks receives.
type OnRead func(buf []byte)

// OnError is called once when ReadChunks stops before minBytes was
// satisfied: with the terminating error if the Submitter returned one, or
// with nil on EOF.
type OnError func(err error)

// ReadChunks repeatedly calls Read(readBufSize) through w, accumulating
// buffers until at least minBytes total have been observed or Read returns
// an error or EOF (a nil-error, empty-slice result). It invokes onRead for
// every non-empty buffer and onError exactly once if it stops on an error
// (with that error) or on EOF (with nil).
// It always returns the buffers it collected before stopping, even on
// error, so a caller can inspect partial progress.
func ReadChunks(w Submitter, minBytes int, readBufSize int, onRead OnRead, onError OnError) [][]byte {
	var collected [][]byte
	var total int

	for total < minBytes {
		buf, err := w.Read(readBufSize)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return collected
		}
		if len(buf) == 0 {
			// EOF: the peer closed before minBytes arrived.
			if onError != nil {
				onError(nil)
			}
			return collected
		}
		if onRead != nil {
			onRead(buf)
		}
		collected = append(collected, buf)
		total += len(buf)
	}
	return collected
}
