// Package heroparser provides a high-throughput, RFC 4180-compliant CSV
// tokenizer, a zero-allocation typed-record binder, and a symmetric CSV
// writer.
package heroparser

import "io"

// Reader tokenizes RFC 4180 CSV (or delimiter-separated) input into rows of
// byte-slice columns. As returned by NewReader it expects input conforming
// to RFC 4180; the exported fields may be changed before the first call to
// NextRow/Read/ReadAll.
type Reader struct {
	// Comma is the field delimiter (set to ',' by NewReader).
	Comma rune

	// Comment, if not 0, marks a line (with no preceding whitespace) as a
	// comment to be skipped entirely.
	Comment rune

	// FieldsPerRecord controls field-count validation.
	//   > 0: every record must have exactly this many fields.
	//   = 0: set from the first record, then enforced on later records.
	//   < 0: no check; rows may have variable field counts.
	FieldsPerRecord int

	// LazyQuotes relaxes RFC 4180 quote validation: a bare quote may appear
	// in an unquoted field, and a non-doubled quote may appear in a quoted
	// field.
	LazyQuotes bool

	// TrimLeadingSpace strips leading spaces/tabs from every field.
	TrimLeadingSpace bool

	source io.Reader
	opts   Options
	state  readerState
}

type readerState struct {
	rawBuffer   []byte
	scan        *scanResult
	emit        *emission
	currentRow  int
	initialized bool
	offset      int64

	fieldPositions []fieldPos
	lastLineNum    int

	scratch *[]byte
}

type fieldPos struct {
	line   int
	column int
}

// NewReader returns a Reader with default options reading from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{Comma: ',', source: r, opts: DefaultOptions()}
}

// NewReaderWithOptions returns a Reader configured with opts.
func NewReaderWithOptions(r io.Reader, opts Options) *Reader {
	rd := NewReader(r)
	rd.opts = opts
	return rd
}

// CurrentLineNumber returns the 1-indexed source line of the row most
// recently returned by NextRow.
func (r *Reader) CurrentLineNumber() int { return r.state.lastLineNum }

// InputOffset returns the byte offset of the end of the most recently read row.
func (r *Reader) InputOffset() int64 { return r.state.offset }

// FieldPos returns the 1-indexed line and column of field i in the row most
// recently returned. It panics if i is out of range.
func (r *Reader) FieldPos(i int) (line, column int) {
	if i < 0 || i >= len(r.state.fieldPositions) {
		panic("heroparser: field index out of range")
	}
	p := r.state.fieldPositions[i]
	return p.line, p.column
}

// ColumnCount returns the number of columns in the current row.
func (r *Reader) ColumnCount() int {
	if r.state.emit == nil || r.state.currentRow-1 < 0 || r.state.currentRow-1 >= len(r.state.emit.rows) {
		return 0
	}
	return r.state.emit.rows[r.state.currentRow-1].fieldCount
}

func (r *Reader) currentRowInfo() (rowInfo, bool) {
	idx := r.state.currentRow - 1
	if r.state.emit == nil || idx < 0 || idx >= len(r.state.emit.rows) {
		return rowInfo{}, false
	}
	return r.state.emit.rows[idx], true
}

func (r *Reader) fieldAt(i int) (fieldInfo, bool) {
	row, ok := r.currentRowInfo()
	if !ok || i < 0 || i >= row.fieldCount {
		return fieldInfo{}, false
	}
	return r.state.emit.fields[row.firstField+i], true
}

// TryColumnSpan returns the raw byte offsets (start, end) of column i in
// the source buffer, without unescaping or allocating. ok is false if i is
// out of range.
func (r *Reader) TryColumnSpan(i int) (start, end int, ok bool) {
	f, found := r.fieldAt(i)
	if !found {
		return 0, 0, false
	}
	return int(f.start), int(f.start + f.length), true
}

// TryColumnFirstByte returns the first content byte of column i without
// materializing the field, for cheap discriminator checks (e.g. the
// multi-schema dispatcher). ok is false if the column is empty or absent.
func (r *Reader) TryColumnFirstByte(i int) (b byte, ok bool) {
	start, end, found := r.TryColumnSpan(i)
	if !found || end <= start || start >= len(r.state.rawBuffer) {
		return 0, false
	}
	return r.state.rawBuffer[start], true
}

// Column returns the content of column i in the current row. The returned
// slice is zero-copy into the source buffer when the field needs no
// unescaping; otherwise it points into a reused scratch buffer valid only
// until the next call to Column or NextRow.
func (r *Reader) Column(i int) ([]byte, error) {
	f, ok := r.fieldAt(i)
	if !ok {
		return nil, ErrColumnOutOfRange
	}
	return r.materializeField(f)
}

// ErrColumnOutOfRange is returned by Column when the index exceeds the
// current row's field count.
var ErrColumnOutOfRange = &ParseError{Code: ErrCodeParseError, Err: errColumnOutOfRange}

func (r *Reader) materializeField(f fieldInfo) ([]byte, error) {
	content := r.fieldContent(f)

	if !r.state.scan.hasQuotesField() && !r.TrimLeadingSpace {
		return content, nil
	}

	if r.TrimLeadingSpace && !f.isQuoted() {
		content = trimLeadingSpaceBytes(content)
	}

	if !f.needsUnescape() && !containsCRLF(content) {
		return content, nil
	}

	scratch := r.scratchBuf()
	*scratch = (*scratch)[:0]
	for i := 0; i < len(content); i++ {
		b := content[i]
		if b == '"' && i+1 < len(content) && content[i+1] == '"' {
			*scratch = append(*scratch, '"')
			i++
		} else if b == '\r' && i+1 < len(content) && content[i+1] == '\n' {
			*scratch = append(*scratch, '\n')
			i++
		} else {
			*scratch = append(*scratch, b)
		}
	}
	return *scratch, nil
}

func (r *Reader) scratchBuf() *[]byte {
	if r.state.scratch == nil {
		r.state.scratch = getUnquoteScratch()
	}
	return r.state.scratch
}

func (r *Reader) fieldContent(f fieldInfo) []byte {
	bufLen := uint32(len(r.state.rawBuffer))
	start := f.start
	end := f.start + f.length
	if end > bufLen {
		end = bufLen
	}
	if start >= bufLen || start > end {
		return nil
	}
	return r.state.rawBuffer[start:end]
}

func trimLeadingSpaceBytes(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t') {
		b = b[1:]
	}
	return b
}

func containsCRLF(b []byte) bool {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return true
		}
	}
	return false
}

// hasQuotesField reports whether sr is non-nil and saw any quote byte. A
// nil scan (the empty-input case) never needs unescaping.
func (sr *scanResult) hasQuotesField() bool {
	return sr != nil && sr.hasQuotes
}

// NextRow advances to the next row. It returns (false, nil) at end of
// input, and (false, err) on a structural, resource, or I/O error.
func (r *Reader) NextRow() (bool, error) {
	if err := r.ensureInitialized(); err != nil {
		return false, err
	}
	for {
		if r.isAtEnd() {
			return false, nil
		}
		row := r.state.emit.rows[r.state.currentRow]
		r.state.currentRow++

		if r.Comment != 0 && r.isCommentRow(row) {
			continue
		}

		r.recordFieldPositions(row)
		if !r.LazyQuotes && r.state.scan.hasQuotesField() {
			if err := r.validateRowQuotes(row); err != nil {
				return false, err
			}
		}
		if r.opts.StrictMode && !r.opts.AllowNewlinesInQuotes && r.state.scan.hasQuotesField() {
			if err := r.checkLoneCRInQuotedFields(row); err != nil {
				return false, err
			}
		}
		if err := r.checkFieldCount(row); err != nil {
			return false, err
		}
		r.state.lastLineNum = row.lineNum
		end := int(r.state.emit.fields[row.firstField+row.fieldCount-1].rawEnd())
		if end < len(r.state.rawBuffer) && r.state.rawBuffer[end] == '\r' {
			end++
		}
		if end < len(r.state.rawBuffer) && r.state.rawBuffer[end] == '\n' {
			end++
		}
		r.state.offset = int64(end)
		return true, nil
	}
}

func (r *Reader) isAtEnd() bool {
	return r.state.emit == nil || r.state.currentRow >= len(r.state.emit.rows)
}

func (r *Reader) isCommentRow(row rowInfo) bool {
	if row.fieldCount == 0 {
		return false
	}
	first := r.state.emit.fields[row.firstField]
	content := r.fieldContent(first)
	if r.TrimLeadingSpace {
		content = trimLeadingSpaceBytes(content)
	}
	return len(content) > 0 && rune(content[0]) == r.Comment
}

func (r *Reader) recordFieldPositions(row rowInfo) {
	if cap(r.state.fieldPositions) < row.fieldCount {
		r.state.fieldPositions = make([]fieldPos, row.fieldCount)
	} else {
		r.state.fieldPositions = r.state.fieldPositions[:row.fieldCount]
	}
	for i := 0; i < row.fieldCount; i++ {
		f := r.state.emit.fields[row.firstField+i]
		r.state.fieldPositions[i] = fieldPos{line: row.lineNum, column: int(f.rawStart()) + 1}
	}
}

func (r *Reader) checkFieldCount(row rowInfo) error {
	if r.FieldsPerRecord < 0 {
		return nil
	}
	if r.FieldsPerRecord == 0 {
		r.FieldsPerRecord = row.fieldCount
		return nil
	}
	if row.fieldCount != r.FieldsPerRecord {
		return &ParseError{Code: ErrCodeParseError, SourceLineNumber: row.lineNum, Err: ErrFieldCount}
	}
	return nil
}

// validateRowQuotes re-checks RFC 4180 quote structure for every field in
// row, when LazyQuotes is off and the input contains at least one quote.
func (r *Reader) validateRowQuotes(row rowInfo) error {
	for i := 0; i < row.fieldCount; i++ {
		f := r.state.emit.fields[row.firstField+i]
		if !f.containsQuote() {
			continue
		}
		raw := r.rawSpan(f)
		if len(raw) == 0 {
			continue
		}
		if raw[0] == '"' {
			if err := r.validateQuotedRaw(raw, uint64(f.rawStart()), row.lineNum); err != nil {
				return err
			}
		} else if pos := indexByte(raw, '"'); pos >= 0 {
			return &ParseError{Code: ErrCodeUnexpectedQuote, ColumnNumber: int(f.rawStart()) + pos + 1, SourceLineNumber: row.lineNum, Err: ErrBareQuote}
		}
	}
	return nil
}

func (r *Reader) rawSpan(f fieldInfo) []byte {
	start := int(f.rawStart())
	end := int(f.rawEnd())
	if start < 0 || end > len(r.state.rawBuffer) || start > end {
		return nil
	}
	return r.state.rawBuffer[start:end]
}

func (r *Reader) validateQuotedRaw(raw []byte, rawStart uint64, lineNum int) error {
	closing := -1
	for i := 1; i < len(raw); i++ {
		if raw[i] != '"' {
			continue
		}
		if i+1 < len(raw) && raw[i+1] == '"' {
			i++
			continue
		}
		closing = i
		break
	}
	if closing == -1 {
		return &ParseError{Code: ErrCodeUnterminatedQuote, ColumnNumber: int(rawStart) + 1, SourceLineNumber: lineNum, QuoteStartPosition: int(rawStart), Err: ErrQuote}
	}
	after := closing + 1
	if after < len(raw) && !isFieldTerminatorByte(raw[after], r.Comma) {
		return &ParseError{Code: ErrCodeUnexpectedQuote, ColumnNumber: int(rawStart) + after + 1, SourceLineNumber: lineNum, Err: ErrQuote}
	}
	return nil
}

// checkLoneCRInQuotedFields rejects a carriage return that is not part of a
// CRLF pair inside a quoted field. Only reachable when StrictMode is on and
// AllowNewlinesInQuotes is off; by default a lone CR inside quotes is kept
// in the field as an ordinary data byte (only CRLF is folded to LF).
func (r *Reader) checkLoneCRInQuotedFields(row rowInfo) error {
	for i := 0; i < row.fieldCount; i++ {
		f := r.state.emit.fields[row.firstField+i]
		if !f.isQuoted() {
			continue
		}
		raw := r.rawSpan(f)
		for j := 0; j < len(raw); j++ {
			if raw[j] != '\r' {
				continue
			}
			if j+1 < len(raw) && raw[j+1] == '\n' {
				j++
				continue
			}
			return &ParseError{Code: ErrCodeUnexpectedQuote, ColumnNumber: int(f.rawStart()) + j + 1, SourceLineNumber: row.lineNum, Err: ErrLoneCRInQuotedField}
		}
	}
	return nil
}

func isFieldTerminatorByte(b byte, comma rune) bool {
	switch b {
	case '\n', '\r', ',':
		return true
	default:
		return b == byte(comma)
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// Read reads the current row as a []string convenience record and advances
// past it. It returns io.EOF when no more rows remain.
func (r *Reader) Read() ([]string, error) {
	ok, err := r.NextRow()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, io.EOF
	}
	n := r.ColumnCount()
	record := make([]string, n)
	for i := 0; i < n; i++ {
		col, err := r.Column(i)
		if err != nil {
			return record, err
		}
		record[i] = string(col)
	}
	return record, nil
}

// ReadAll reads every remaining row into a [][]string. A successful call
// returns err == nil, not io.EOF.
func (r *Reader) ReadAll() ([][]string, error) {
	var records [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
}

func (r *Reader) ensureInitialized() error {
	if r.state.initialized {
		return nil
	}
	r.state.initialized = true
	if err := r.opts.Validate(r.Comma, r.Comment); err != nil {
		return err
	}
	if err := r.readInput(); err != nil {
		return err
	}
	r.skipBOM()

	if len(r.state.rawBuffer) == 0 {
		r.state.emit = getEmission()
		return nil
	}

	r.state.scan = scanBuffer(r.state.rawBuffer, byte(r.Comma))
	emit, err := emitBuffer(r.state.rawBuffer, r.state.scan, r.opts.MaxColumnCount, r.opts.MaxRowCount, r.opts.MaxFieldSize, r.opts.MaxRowSize, r.opts.SkipEmptyRows)
	if err != nil {
		if lv, ok := err.(limitViolation); ok {
			return r.limitError(lv)
		}
		return err
	}
	r.state.emit = emit
	r.state.offset = int64(len(r.state.rawBuffer))
	return nil
}

func (r *Reader) limitError(lv limitViolation) error {
	return &ParseError{Code: lv.code, RowNumber: lv.rowNumber, ColumnNumber: lv.columnNumber, SourceLineNumber: lv.lineNum}
}

func (r *Reader) readInput() error {
	maxSize := r.opts.MaxInputSize
	if maxSize == 0 {
		maxSize = DefaultMaxInputSize
	}

	var initialCap int64
	if seeker, ok := r.source.(io.Seeker); ok {
		if size, err := seeker.Seek(0, io.SeekEnd); err == nil {
			initialCap = size
			_, _ = seeker.Seek(0, io.SeekStart)
		}
	}

	var err error
	if maxSize > 0 {
		limited := io.LimitReader(r.source, maxSize+1)
		r.state.rawBuffer, err = readAllSized(limited, initialCap)
		if err != nil {
			return err
		}
		if int64(len(r.state.rawBuffer)) > maxSize {
			return ErrInputTooLarge
		}
	} else {
		r.state.rawBuffer, err = readAllSized(r.source, initialCap)
	}
	return err
}

func readAllSized(r io.Reader, initialCap int64) ([]byte, error) {
	if initialCap == 0 {
		switch sr := r.(type) {
		case interface{ Len() int }:
			initialCap = int64(sr.Len())
		case interface{ Size() int64 }:
			initialCap = sr.Size()
		}
	}
	if initialCap > 0 {
		buf := make([]byte, initialCap)
		n, err := io.ReadFull(r, buf)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return buf[:n], nil
		}
		return buf[:n], err
	}
	return io.ReadAll(r)
}

func (r *Reader) skipBOM() {
	if !r.opts.SkipBOM || len(r.state.rawBuffer) < 3 {
		return
	}
	if r.state.rawBuffer[0] == 0xEF && r.state.rawBuffer[1] == 0xBB && r.state.rawBuffer[2] == 0xBF {
		r.state.rawBuffer = r.state.rawBuffer[3:]
	}
}

// Close releases pooled resources held by the Reader. Safe to call more
// than once.
func (r *Reader) Close() error {
	if r.state.scan != nil {
		r.state.scan.release()
		r.state.scan = nil
	}
	if r.state.emit != nil {
		r.state.emit.release()
		r.state.emit = nil
	}
	if r.state.scratch != nil {
		putUnquoteScratch(r.state.scratch)
		r.state.scratch = nil
	}
	return nil
}
