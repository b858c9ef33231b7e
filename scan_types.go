package heroparser

import "sync"

// scanResult holds the structural bitmasks produced by a full pass over a
// byte buffer: one uint64 per chunk for each of quote/separator/newline
// positions, plus per-chunk bookkeeping needed to unescape doubled quotes
// and to resume quote state across buffer boundaries.
type scanResult struct {
	quoteMasks     []uint64
	separatorMasks []uint64
	newlineMasks   []uint64
	chunkHasEscape []bool
	hasQuotes      bool
	finalQuoted    bool
	chunkCount     int
	lastChunkBits  int
}

var scanResultPool = sync.Pool{
	New: func() interface{} {
		return &scanResult{
			quoteMasks:     make([]uint64, 0, scanPoolCapacity),
			separatorMasks: make([]uint64, 0, scanPoolCapacity),
			newlineMasks:   make([]uint64, 0, scanPoolCapacity),
			chunkHasEscape: make([]bool, 0, scanPoolCapacity),
		}
	},
}

func getScanResult() *scanResult {
	return scanResultPool.Get().(*scanResult)
}

// release returns sr to the pool. The caller must not touch sr afterward.
func (sr *scanResult) release() {
	if sr == nil {
		return
	}
	sr.quoteMasks = sr.quoteMasks[:0]
	sr.separatorMasks = sr.separatorMasks[:0]
	sr.newlineMasks = sr.newlineMasks[:0]
	sr.chunkHasEscape = sr.chunkHasEscape[:0]
	sr.hasQuotes = false
	sr.finalQuoted = false
	sr.chunkCount = 0
	sr.lastChunkBits = 0
	scanResultPool.Put(sr)
}

func growUint64(s []uint64, n int) []uint64 {
	if cap(s) >= n {
		return s[:n]
	}
	newCap := n
	if newCap < cap(s)*2 {
		newCap = cap(s) * 2
	}
	return make([]uint64, n, newCap)
}

func growBool(s []bool, n int) []bool {
	if cap(s) >= n {
		s = s[:n]
		for i := range s {
			s[i] = false
		}
		return s
	}
	newCap := n
	if newCap < cap(s)*2 {
		newCap = cap(s) * 2
	}
	return make([]bool, n, newCap)
}

// chunkMasks bundles the four raw masks produced for one chunk, before
// quote-state resolution and CRLF normalization are applied.
type chunkMasks struct {
	quote uint64
	sep   uint64
	cr    uint64
	nl    uint64
}
