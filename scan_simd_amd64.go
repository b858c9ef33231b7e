//go:build amd64 && goexperiment.simd

package heroparser

// Vector scanning via Go's experimental simd/archsimd package (GOEXPERIMENT=simd,
// see https://go.dev/doc/go1.26 and https://github.com/golang/go/issues/73787).
//
// archsimd.Int8x32.Equal().ToBits() lowers to VPMOVB2M, which requires
// AVX-512BW and SIGILLs on CPUs lacking it (including most CI runners), so
// this file gates use behind an explicit golang.org/x/sys/cpu feature check
// rather than trusting archsimd to refuse unsupported hardware itself.

import (
	"simd/archsimd"
	"unsafe"

	"golang.org/x/sys/cpu"
)

const vectorHalfChunk = chunkSizeBytes / 2

var useAVX512 bool

func init() {
	useAVX512 = cpu.X86.HasAVX512F && cpu.X86.HasAVX512BW && cpu.X86.HasAVX512VL
}

func platformHasVectorScan() bool {
	return useAVX512
}

func generateMasks(data []byte, separator byte) (quote, sep, cr, nl uint64) {
	if useAVX512 && len(data) >= chunkSizeBytes {
		return generateMasksVector(data, separator)
	}
	return scanChunkScalar(data, separator)
}

func generateMasksPadded(data []byte, separator byte) (quote, sep, cr, nl uint64, validBits int) {
	return scanChunkScalarPadded(data, separator)
}

// generateMasksVector computes the four structural masks for exactly
// chunkSizeBytes bytes using two 256-bit AVX-512 compares. The low half
// covers byte positions 0-31, the high half 32-63; ToBits() on each half
// yields a 32-bit lane mask, which are concatenated into the 64-bit result.
func generateMasksVector(data []byte, separator byte) (quote, sep, cr, nl uint64) {
	quoteCmp := archsimd.BroadcastInt8x32('"')
	sepCmp := archsimd.BroadcastInt8x32(int8(separator))
	crCmp := archsimd.BroadcastInt8x32('\r')
	nlCmp := archsimd.BroadcastInt8x32('\n')

	low := archsimd.LoadInt8x32((*[vectorHalfChunk]int8)(unsafe.Pointer(&data[0])))
	quoteLow := low.Equal(quoteCmp).ToBits()
	sepLow := low.Equal(sepCmp).ToBits()
	crLow := low.Equal(crCmp).ToBits()
	nlLow := low.Equal(nlCmp).ToBits()

	high := archsimd.LoadInt8x32((*[vectorHalfChunk]int8)(unsafe.Pointer(&data[vectorHalfChunk])))
	quoteHigh := high.Equal(quoteCmp).ToBits()
	sepHigh := high.Equal(sepCmp).ToBits()
	crHigh := high.Equal(crCmp).ToBits()
	nlHigh := high.Equal(nlCmp).ToBits()

	quote = uint64(quoteLow) | uint64(quoteHigh)<<32
	sep = uint64(sepLow) | uint64(sepHigh)<<32
	cr = uint64(crLow) | uint64(crHigh)<<32
	nl = uint64(nlLow) | uint64(nlHigh)<<32
	return
}

// vectorContainsSpecial is the writer's 32-byte-chunk quote-need probe. It
// trades the full four-mask scan for a single combined comparison since the
// writer only needs a yes/no answer, not byte positions.
func vectorContainsSpecial(data []byte, comma byte) bool {
	if !useAVX512 {
		return scalarContainsSpecial(data, comma)
	}
	commaCmp := archsimd.BroadcastInt8x32(int8(comma))
	nlCmp := archsimd.BroadcastInt8x32('\n')
	crCmp := archsimd.BroadcastInt8x32('\r')
	quoteCmp := archsimd.BroadcastInt8x32('"')

	i := 0
	for i+vectorHalfChunk <= len(data) {
		chunk := archsimd.LoadInt8x32((*[vectorHalfChunk]int8)(unsafe.Pointer(&data[i])))
		mask := chunk.Equal(commaCmp).ToBits() |
			chunk.Equal(nlCmp).ToBits() |
			chunk.Equal(crCmp).ToBits() |
			chunk.Equal(quoteCmp).ToBits()
		if mask != 0 {
			return true
		}
		i += vectorHalfChunk
	}
	return scalarContainsSpecial(data[i:], comma)
}
