package heroparser

import (
	"bufio"
	"io"

	"github.com/klauspost/cpuid/v2"
)

// writerVectorThreshold is the field length, in bytes, above which the
// writer's quote-need probe dispatches to the vector path instead of the
// scalar loop. Short fields don't amortize the chunk setup cost.
const writerVectorThreshold = 64

// writerUseVector gates the writer's hot path independently of the reader's
// scanner gate: platformHasVectorScan reports whether this build even has a
// vector backend compiled in, and cpuid.CPU.Supports confirms the running
// CPU carries the AVX-512 feature set that backend requires. The two checks
// are deliberately separate probes (golang.org/x/sys/cpu on the scan side,
// klauspost/cpuid/v2 here) rather than one shared flag, since the reader and
// writer are independently dispatched hot loops.
var writerUseVector = platformHasVectorScan() && cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512BW, cpuid.AVX512VL)

// Writer serializes records as RFC 4180 CSV. It is the mirror of Reader:
// for each field it first probes whether quoting is required, then emits the
// bytes, doubling every internal quote byte when the field is quoted.
//
// As returned by NewWriter, a Writer terminates records with \n and uses ','
// as the field delimiter. Comma and UseCRLF may be changed before the first
// Write. Writes are buffered; call Flush when done and check Error.
type Writer struct {
	Comma   rune
	UseCRLF bool

	opts    WriterOptions
	w       *bufio.Writer
	err     error
	written int64

	fieldIndex int
}

// NewWriter returns a Writer with default WriterOptions.
func NewWriter(w io.Writer) *Writer {
	return NewWriterWithOptions(w, DefaultWriterOptions())
}

// NewWriterWithOptions returns a Writer configured by opts.
func NewWriterWithOptions(w io.Writer, opts WriterOptions) *Writer {
	return &Writer{
		Comma: ',',
		opts:  opts,
		w:     bufio.NewWriter(w),
	}
}

// Write writes a single record, quoting fields as the configured
// QuotePolicy and InjectionProtection require.
func (w *Writer) Write(record []string) error {
	if w.err != nil {
		return w.err
	}
	if err := w.opts.Validate(w.Comma); err != nil {
		w.err = err
		return err
	}

	for i, field := range record {
		w.fieldIndex = i
		if i > 0 {
			if err := w.writeRune(w.Comma); err != nil {
				return err
			}
		}
		if err := w.writeField(field); err != nil {
			return err
		}
	}
	return w.writeLineEnding()
}

// WriteNull writes a single record like Write, but any field whose index
// appears in nullIndexes is emitted verbatim as opts.NullRepresentation
// instead of being quote-analyzed.
func (w *Writer) WriteNull(record []string, nullIndexes map[int]bool) error {
	if w.err != nil {
		return w.err
	}
	if err := w.opts.Validate(w.Comma); err != nil {
		w.err = err
		return err
	}

	for i, field := range record {
		w.fieldIndex = i
		if i > 0 {
			if err := w.writeRune(w.Comma); err != nil {
				return err
			}
		}
		if nullIndexes[i] {
			if err := w.writeString(w.opts.NullRepresentation); err != nil {
				return err
			}
			continue
		}
		if err := w.writeField(field); err != nil {
			return err
		}
	}
	return w.writeLineEnding()
}

// writeField applies injection protection, decides whether quoting is
// needed, and emits the field.
func (w *Writer) writeField(field string) error {
	prefix, forceQuote := w.injectionPrefix(field)
	if prefix != "" {
		if err := w.writeString(prefix); err != nil {
			return err
		}
	}

	needsQuoting := w.needsQuoting(field) || forceQuote
	if needsQuoting {
		return w.writeQuotedField(field)
	}
	return w.writeString(field)
}

// injectionPrefix returns a neutralizing prefix to emit ahead of field, and
// whether InjectionProtectionEscapeWithQuote demands quoting regardless of
// QuotePolicy. A field only triggers protection when its first byte is one
// of the recognized spreadsheet formula leaders.
func (w *Writer) injectionPrefix(field string) (prefix string, forceQuote bool) {
	if w.opts.InjectionProtection == InjectionProtectionNone {
		return "", false
	}
	if len(field) == 0 || !isFormulaTrigger(field[0]) {
		return "", false
	}
	switch w.opts.InjectionProtection {
	case InjectionProtectionSanitize:
		return "'", false
	case InjectionProtectionEscapeWithTab:
		return "\t", false
	case InjectionProtectionEscapeWithQuote:
		return "", true
	default:
		return "", false
	}
}

// needsQuoting decides quoting per QuotePolicy. QuoteNever never quotes on
// its own account; a forced quote from InjectionProtectionEscapeWithQuote is
// applied by the caller regardless of this result.
func (w *Writer) needsQuoting(field string) bool {
	switch w.opts.QuotePolicy {
	case QuoteAlways:
		return true
	case QuoteNever:
		return false
	default: // QuoteWhenNeeded
		if len(field) == 0 {
			return false
		}
		if field[0] == ' ' || field[0] == '\t' {
			return true
		}
		return w.fieldContainsSpecial(field)
	}
}

// fieldContainsSpecial dispatches to the vector or scalar structural scan
// depending on field length and what the running CPU actually supports.
func (w *Writer) fieldContainsSpecial(field string) bool {
	if w.Comma > 127 {
		return scalarContainsSpecial([]byte(field), byte(w.Comma))
	}
	if writerUseVector && len(field) >= writerVectorThreshold {
		return vectorContainsSpecial([]byte(field), byte(w.Comma))
	}
	return scalarContainsSpecial([]byte(field), byte(w.Comma))
}

// writeQuotedField emits field wrapped in quotes, doubling every internal
// quote byte. The doubling pass itself stays scalar: the payoff of vector
// dispatch is in the yes/no quote-need probe above, not in a copy loop that
// must branch on every byte regardless of backend.
func (w *Writer) writeQuotedField(field string) error {
	if err := w.writeByte('"'); err != nil {
		return err
	}
	last := 0
	for i := 0; i < len(field); i++ {
		if field[i] == '"' {
			if err := w.writeString(field[last : i+1]); err != nil {
				return err
			}
			if err := w.writeByte('"'); err != nil {
				return err
			}
			last = i + 1
		}
	}
	if last < len(field) {
		if err := w.writeString(field[last:]); err != nil {
			return err
		}
	}
	return w.writeByte('"')
}

func (w *Writer) writeLineEnding() error {
	if w.UseCRLF {
		return w.writeString("\r\n")
	}
	return w.writeByte('\n')
}

// WriteAll writes every record via Write and then Flushes.
func (w *Writer) WriteAll(records [][]string) error {
	for _, record := range records {
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Flush writes any buffered data to the underlying io.Writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.w.Flush()
	return w.err
}

// Error reports any error recorded by a previous Write, WriteNull, or Flush.
func (w *Writer) Error() error {
	return w.err
}

// writeString, writeByte, and writeRune are the only paths that reach the
// underlying bufio.Writer, so MaxOutputSize enforcement lives in one place.
func (w *Writer) writeString(s string) error {
	if err := w.checkLimit(len(s)); err != nil {
		return err
	}
	n, err := w.w.WriteString(s)
	w.written += int64(n)
	if err != nil {
		w.err = err
	}
	return err
}

func (w *Writer) writeByte(b byte) error {
	if err := w.checkLimit(1); err != nil {
		return err
	}
	if err := w.w.WriteByte(b); err != nil {
		w.err = err
		return err
	}
	w.written++
	return nil
}

func (w *Writer) writeRune(r rune) error {
	if err := w.checkLimit(4); err != nil {
		return err
	}
	n, err := w.w.WriteRune(r)
	w.written += int64(n)
	if err != nil {
		w.err = err
	}
	return err
}

func (w *Writer) checkLimit(n int) error {
	if w.opts.MaxOutputSize > 0 && w.written+int64(n) > w.opts.MaxOutputSize {
		w.err = &WriteError{Code: ErrCodeOutputTooLarge, FieldIndex: w.fieldIndex, Err: ErrOutputTooLarge}
		return w.err
	}
	return nil
}
