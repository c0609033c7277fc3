package util

import "sync"

// ReadBufSize is the initial size of a line-reader buffer.  Frame
// lines are short, so one buffer normally covers many lines.
const ReadBufSize = 4 * 1024

// BufPool recycles line-reader buffers between source reconnects.
var BufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, ReadBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.  Buffers that grew
// past ReadBufSize are dropped.
func PutBuf(buf *[]byte) {
	if buf == nil || cap(*buf) != ReadBufSize {
		return
	}
	*buf = (*buf)[:ReadBufSize]
	BufPool.Put(buf)
}
