package heroparser

import "sync"

// Buffer pools backing the zero-allocation hot path. Every pool here
// follows the same contract as scanResultPool/emissionPool: Get, use,
// release — the returned slice is NOT cleared on return, only truncated to
// length 0 (clearing on Get would touch every pooled byte and defeat the
// point of pooling).

var rawBufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 64*1024)
		return &b
	},
}

func getRawBuffer() *[]byte { return rawBufferPool.Get().(*[]byte) }

func putRawBuffer(b *[]byte) {
	if b == nil {
		return
	}
	*b = (*b)[:0]
	rawBufferPool.Put(b)
}

// unquoteScratchPool backs the per-field scratch buffer used to unescape a
// doubled-quote field or normalize an embedded CRLF without mutating the
// source buffer.
var unquoteScratchPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 256)
		return &b
	},
}

func getUnquoteScratch() *[]byte { return unquoteScratchPool.Get().(*[]byte) }

func putUnquoteScratch(b *[]byte) {
	if b == nil {
		return
	}
	*b = (*b)[:0]
	unquoteScratchPool.Put(b)
}

// columnEndTablePool holds per-row slices of cumulative field end offsets.
// Reader does not draw from it: it answers Column/TryColumnSpan from the
// emitter's fieldInfo records.
var columnEndTablePool = sync.Pool{
	New: func() interface{} {
		s := make([]int, 0, 32)
		return &s
	},
}

func getColumnEndTable() *[]int { return columnEndTablePool.Get().(*[]int) }

func putColumnEndTable(s *[]int) {
	if s == nil {
		return
	}
	*s = (*s)[:0]
	columnEndTablePool.Put(s)
}

// outputBufferPool holds write-side byte buffers. Writer does not draw from
// it: it buffers output through a bufio.Writer.
var outputBufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 4096)
		return &b
	},
}

func getOutputBuffer() *[]byte { return outputBufferPool.Get().(*[]byte) }

func putOutputBuffer(b *[]byte) {
	if b == nil {
		return
	}
	*b = (*b)[:0]
	outputBufferPool.Put(b)
}
