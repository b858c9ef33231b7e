package heroparser

import (
	"math/bits"
	"sync"
)

// emitterState carries the two-state quote machine and the in-progress
// field's boundaries across chunk processing.
//
//	UNQUOTED --(quote)--> QUOTED
//	QUOTED   --(quote)--> UNQUOTED
//
// While QUOTED, separators and newlines are ordinary content bytes.
type emitterState struct {
	quoted           bool
	fieldStart       uint64
	quoteAdjust      uint64 // 0 or 1: bytes to skip past an opening quote
	lastClosingQuote int64  // -1 if none seen yet in the current field
	sawQuote         bool
}

func newEmitterState() emitterState {
	return emitterState{lastClosingQuote: -1}
}

func (s *emitterState) enterQuoted() {
	s.quoted = true
	s.quoteAdjust = 1
}

func (s *emitterState) exitQuoted(quotePos uint64) {
	s.quoted = false
	s.lastClosingQuote = int64(quotePos)
}

func (s *emitterState) resetForNextField(delimiterPos uint64) {
	s.fieldStart = delimiterPos + 1
	s.quoteAdjust = 0
	s.lastClosingQuote = -1
	s.sawQuote = false
}

// fieldInfo records one field's location within the source buffer.
type fieldInfo struct {
	start       uint32
	length      uint32
	rawEndDelta uint8
	flags       uint8
}

const (
	fieldFlagNeedsUnescape = 1 << 0
	fieldFlagIsQuoted      = 1 << 1
	fieldFlagContainsQuote = 1 << 2
)

func newFieldInfo(start, length uint64, rawEndDelta uint8, isQuoted, containsQuote bool) fieldInfo {
	var flags uint8
	if isQuoted {
		flags = fieldFlagIsQuoted
	}
	if containsQuote {
		flags |= fieldFlagContainsQuote
	}
	return fieldInfo{start: uint32(start), length: uint32(length), rawEndDelta: rawEndDelta, flags: flags}
}

func (f *fieldInfo) rawStart() uint32 {
	if f.flags&fieldFlagIsQuoted != 0 {
		return f.start - 1
	}
	return f.start
}

func (f *fieldInfo) rawEnd() uint32 { return f.start + f.length + uint32(f.rawEndDelta) }

func (f *fieldInfo) setNeedsUnescape(v bool) {
	if v {
		f.flags |= fieldFlagNeedsUnescape
	} else {
		f.flags &^= fieldFlagNeedsUnescape
	}
}

func (f *fieldInfo) needsUnescape() bool  { return f.flags&fieldFlagNeedsUnescape != 0 }
func (f *fieldInfo) isQuoted() bool       { return f.flags&fieldFlagIsQuoted != 0 }
func (f *fieldInfo) containsQuote() bool  { return f.flags&fieldFlagContainsQuote != 0 }

// rowInfo records one row's span over the fields slice.
type rowInfo struct {
	firstField int
	fieldCount int
	lineNum    int
}

// emission holds the fields and rows produced by emitBuffer. It is pooled
// since a Reader allocates one per internal refill.
type emission struct {
	fields []fieldInfo
	rows   []rowInfo
}

const (
	emissionPoolFieldCap = 1024
	emissionPoolRowCap   = 256
)

var emissionPool = sync.Pool{
	New: func() interface{} {
		return &emission{
			fields: make([]fieldInfo, 0, emissionPoolFieldCap),
			rows:   make([]rowInfo, 0, emissionPoolRowCap),
		}
	},
}

func getEmission() *emission {
	e := emissionPool.Get().(*emission)
	e.fields = e.fields[:0]
	e.rows = e.rows[:0]
	return e
}

func (e *emission) release() {
	if e == nil {
		return
	}
	emissionPool.Put(e)
}

func estimateCapacity(bufLen int, sr *scanResult) (fields, rows int) {
	fields = bufLen / avgFieldLenGuess
	rows = bufLen / avgRowLenGuess
	if sr == nil {
		return
	}
	if fields < sr.chunkCount {
		fields = sr.chunkCount * 4
	}
	return
}

func ensureEmissionCapacity(e *emission, bufLen int, sr *scanResult) {
	fields, rows := estimateCapacity(bufLen, sr)
	if cap(e.fields) < fields {
		e.fields = make([]fieldInfo, 0, fields)
	}
	if cap(e.rows) < rows {
		e.rows = make([]rowInfo, 0, rows)
	}
}

// limitViolation is returned by emitBuffer when a configured resource limit
// (column count, row count, field size, row size) is exceeded. Unlike a
// plain byte offset, lineNum/rowNumber/columnNumber are already resolved to
// the same (line, row, column) ordinals a ParseError reports elsewhere,
// since the emitter is the only place tracking them as it walks the buffer.
type limitViolation struct {
	code         ErrorCode
	lineNum      int
	rowNumber    int
	columnNumber int
}

func (limitViolation) Error() string { return "heroparser: resource limit exceeded" }

// emitBuffer walks a scanResult's masks in position order, turning
// structural-byte positions into field and row boundaries. limits of zero
// are treated as unbounded.
func emitBuffer(buf []byte, sr *scanResult, maxColumns, maxRows, maxFieldSize, maxRowSize int, skipEmptyRows bool) (*emission, error) {
	result := getEmission()
	if len(buf) == 0 || sr.chunkCount == 0 {
		return result, nil
	}
	ensureEmissionCapacity(result, len(buf), sr)

	state := newEmitterState()
	rowFirstField := 0
	lineNum := 1

	for chunkIdx := 0; chunkIdx < sr.chunkCount; chunkIdx++ {
		offset := uint64(chunkIdx * chunkSizeBytes)
		sepMask := sr.separatorMasks[chunkIdx]
		nlMask := sr.newlineMasks[chunkIdx]
		quoteMask := uint64(0)
		if chunkIdx < len(sr.quoteMasks) {
			quoteMask = sr.quoteMasks[chunkIdx]
		}

		if err := processChunk(buf, offset, sepMask, nlMask, quoteMask, &state, result, &rowFirstField, &lineNum, maxColumns, maxRows, maxFieldSize, maxRowSize, skipEmptyRows); err != nil {
			result.release()
			return nil, err
		}
	}

	if needsFinalField(buf, &state) {
		if err := finalizeField(buf, &state, result, rowFirstField, lineNum, maxFieldSize, maxColumns); err != nil {
			result.release()
			return nil, err
		}
	}

	if sr.hasQuotes {
		markEscapedFields(result, sr.chunkHasEscape)
	}

	return result, nil
}

func processChunk(buf []byte, offset uint64, sepMask, nlMask, quoteMask uint64, state *emitterState, result *emission, rowFirstField, lineNum *int, maxColumns, maxRows, maxFieldSize, maxRowSize int, skipEmptyRows bool) error {
	combined := sepMask | nlMask | quoteMask
	for combined != 0 {
		pos := bits.TrailingZeros64(combined)
		bit := uint64(1) << uint(pos)
		absPos := offset + uint64(pos)

		switch {
		case quoteMask&bit != 0:
			state.sawQuote = true
			if state.quoted {
				state.exitQuoted(absPos)
			} else {
				state.enterQuoted()
			}
			quoteMask &^= bit

		case sepMask&bit != 0:
			if !state.quoted {
				if err := recordField(buf, absPos, state, result, false, maxFieldSize, *lineNum, *rowFirstField); err != nil {
					return err
				}
				if maxColumns > 0 && len(result.fields)-*rowFirstField > maxColumns {
					return limitViolation{code: ErrCodeTooManyColumns, lineNum: *lineNum, rowNumber: len(result.rows) + 1, columnNumber: len(result.fields) - *rowFirstField}
				}
			}
			sepMask &^= bit

		default: // newline
			if !state.quoted {
				if isBlankLine(buf, *rowFirstField, len(result.fields), state.fieldStart, absPos) {
					if !skipEmptyRows {
						result.fields = append(result.fields, newFieldInfo(state.fieldStart, 0, 0, false, false))
						result.rows = append(result.rows, rowInfo{firstField: *rowFirstField, fieldCount: 1, lineNum: *lineNum})
						*rowFirstField = len(result.fields)
					}
					state.fieldStart = absPos + 1
					state.quoteAdjust = 0
					state.lastClosingQuote = -1
					state.sawQuote = false
					*lineNum++
					if !skipEmptyRows && maxRows > 0 && len(result.rows) > maxRows {
						return limitViolation{code: ErrCodeTooManyRows, lineNum: *lineNum - 1, rowNumber: len(result.rows)}
					}
				} else {
					if err := recordField(buf, absPos, state, result, true, maxFieldSize, *lineNum, *rowFirstField); err != nil {
						return err
					}
					if maxColumns > 0 && len(result.fields)-*rowFirstField > maxColumns {
						return limitViolation{code: ErrCodeTooManyColumns, lineNum: *lineNum, rowNumber: len(result.rows) + 1, columnNumber: len(result.fields) - *rowFirstField}
					}
					if maxRowSize > 0 {
						span := absPos - fieldStartOfRow(result, *rowFirstField)
						if int(span) > maxRowSize {
							return limitViolation{code: ErrCodeRowTooLarge, lineNum: *lineNum, rowNumber: len(result.rows) + 1, columnNumber: len(result.fields) - *rowFirstField}
						}
					}
					result.rows = append(result.rows, rowInfo{firstField: *rowFirstField, fieldCount: len(result.fields) - *rowFirstField, lineNum: *lineNum})
					*rowFirstField = len(result.fields)
					*lineNum++
					if maxRows > 0 && len(result.rows) > maxRows {
						return limitViolation{code: ErrCodeTooManyRows, lineNum: *lineNum - 1, rowNumber: len(result.rows)}
					}
				}
			}
			nlMask &^= bit
		}

		combined = sepMask | nlMask | quoteMask
	}
	return nil
}

func fieldStartOfRow(e *emission, firstField int) uint64 {
	if firstField >= len(e.fields) {
		return 0
	}
	return uint64(e.fields[firstField].rawStart())
}

func isBlankLine(buf []byte, rowFirstField, totalFields int, fieldStart, newlinePos uint64) bool {
	if rowFirstField != totalFields {
		return false
	}
	// A CRLF line ending carries its newline bit on the LF, so a blank CRLF
	// line has its lone CR sitting between fieldStart and the newline.
	return fieldStart == newlinePos || (fieldStart+1 == newlinePos && buf[fieldStart] == '\r')
}

func recordField(buf []byte, absPos uint64, state *emitterState, result *emission, isNewline bool, maxFieldSize int, lineNum, rowFirstField int) error {
	start := state.fieldStart + state.quoteAdjust
	endPos := absPos
	if isNewline && absPos > start && absPos > 0 && buf[absPos-1] == '\r' {
		endPos = absPos - 1
	}

	var length uint64
	if state.lastClosingQuote >= 0 && state.quoteAdjust > 0 {
		closeQuote := uint64(state.lastClosingQuote)
		if closeQuote > start {
			length = closeQuote - start
		}
	} else if endPos > start {
		length = endPos - start
	}

	var rawEndDelta uint8
	if absPos > start+length {
		rawEndDelta = uint8(absPos - start - length)
	}

	if maxFieldSize > 0 && int(length) > maxFieldSize {
		return limitViolation{code: ErrCodeFieldTooLarge, lineNum: lineNum, rowNumber: len(result.rows) + 1, columnNumber: len(result.fields) - rowFirstField + 1}
	}

	result.fields = append(result.fields, newFieldInfo(start, length, rawEndDelta, state.quoteAdjust > 0, state.sawQuote))
	state.resetForNextField(absPos)
	return nil
}

func needsFinalField(buf []byte, state *emitterState) bool {
	bufLen := uint64(len(buf))
	if bufLen == 0 {
		return false
	}
	if state.fieldStart < bufLen {
		return true
	}
	last := buf[bufLen-1]
	return state.fieldStart == bufLen && last != '\n' && last != '\r'
}

func finalizeField(buf []byte, state *emitterState, result *emission, rowFirstField, lineNum, maxFieldSize, maxColumns int) error {
	start := state.fieldStart + state.quoteAdjust
	bufLen := uint64(len(buf))

	var length uint64
	if state.lastClosingQuote >= 0 && state.quoteAdjust > 0 {
		closeQuote := uint64(state.lastClosingQuote)
		if closeQuote > start {
			length = closeQuote - start
		}
	} else if bufLen > start {
		length = bufLen - start
	}
	var rawEndDelta uint8
	if bufLen > start+length {
		rawEndDelta = uint8(bufLen - start - length)
	}
	if maxFieldSize > 0 && int(length) > maxFieldSize {
		return limitViolation{code: ErrCodeFieldTooLarge, lineNum: lineNum, rowNumber: len(result.rows) + 1, columnNumber: len(result.fields) - rowFirstField + 1}
	}

	if maxColumns > 0 && len(result.fields)-rowFirstField+1 > maxColumns {
		return limitViolation{code: ErrCodeTooManyColumns, lineNum: lineNum, rowNumber: len(result.rows) + 1, columnNumber: len(result.fields) - rowFirstField + 1}
	}

	result.fields = append(result.fields, newFieldInfo(start, length, rawEndDelta, state.quoteAdjust > 0, state.sawQuote))
	result.rows = append(result.rows, rowInfo{firstField: rowFirstField, fieldCount: len(result.fields) - rowFirstField, lineNum: lineNum})
	return nil
}

// markEscapedFields flags every field overlapping a chunk that contains a
// doubled "" sequence, so the binder knows it must run the unescape pass.
func markEscapedFields(result *emission, chunkHasEscape []bool) {
	if len(chunkHasEscape) == 0 {
		return
	}
	for i := range result.fields {
		f := &result.fields[i]
		startChunk := int(uint64(f.start) / chunkSizeBytes)
		overlap := startChunk < len(chunkHasEscape) && chunkHasEscape[startChunk]
		if !overlap && f.length > 0 {
			endChunk := int((uint64(f.start) + uint64(f.length) - 1) / chunkSizeBytes)
			for c := startChunk + 1; c <= endChunk && c < len(chunkHasEscape); c++ {
				if chunkHasEscape[c] {
					overlap = true
					break
				}
			}
		}
		if overlap {
			f.setNeedsUnescape(true)
		}
	}
}
