package util

import "sync"

// ReadBufSize is the largest single read an exchange or the echo
// listener performs (1 KiB).
const ReadBufSize = 1024

// BufPool provides reusable read buffers so the echo listener does not
// allocate per chunk.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, ReadBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	BufPool.Put(buf)
}
