package heroparser

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the category of a [ParseError] or [WriteError].
type ErrorCode int

const (
	// ErrCodeParseError is a generic, otherwise-unclassified parse failure.
	ErrCodeParseError ErrorCode = iota
	ErrCodeTooManyColumns
	ErrCodeTooManyRows
	ErrCodeFieldTooLarge
	ErrCodeRowTooLarge
	ErrCodeOutputTooLarge
	ErrCodeInvalidDelimiter
	ErrCodeInvalidOptions
	ErrCodeUnterminatedQuote
	ErrCodeUnexpectedQuote
	ErrCodeHeaderNotFound
	ErrCodeMissingColumn
	ErrCodeTypeConversionFailed
	ErrCodeInjectionDetected
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeParseError:
		return "ParseError"
	case ErrCodeTooManyColumns:
		return "TooManyColumns"
	case ErrCodeTooManyRows:
		return "TooManyRows"
	case ErrCodeFieldTooLarge:
		return "FieldTooLarge"
	case ErrCodeRowTooLarge:
		return "RowTooLarge"
	case ErrCodeOutputTooLarge:
		return "OutputTooLarge"
	case ErrCodeInvalidDelimiter:
		return "InvalidDelimiter"
	case ErrCodeInvalidOptions:
		return "InvalidOptions"
	case ErrCodeUnterminatedQuote:
		return "UnterminatedQuote"
	case ErrCodeUnexpectedQuote:
		return "UnexpectedQuote"
	case ErrCodeHeaderNotFound:
		return "HeaderNotFound"
	case ErrCodeMissingColumn:
		return "MissingColumn"
	case ErrCodeTypeConversionFailed:
		return "TypeConversionFailed"
	case ErrCodeInjectionDetected:
		return "InjectionDetected"
	default:
		return "Unknown"
	}
}

// maxTruncatedFieldValue bounds how much of a field's raw bytes are echoed
// into an error, to avoid log-poisoning via attacker-controlled input.
const maxTruncatedFieldValue = 100

// truncateFieldValue returns at most maxTruncatedFieldValue bytes of v,
// copied so the returned string never pins the caller's backing buffer.
func truncateFieldValue(v []byte) string {
	if len(v) > maxTruncatedFieldValue {
		v = v[:maxTruncatedFieldValue]
	}
	return string(v)
}

// ParseError reports a read-side structural, resource, or binding failure.
//
// FieldValue is truncated to 100 bytes; it is never the complete field when
// the field itself is the cause of an oversize error (FieldTooLarge).
type ParseError struct {
	Code               ErrorCode
	RowNumber          int
	ColumnNumber       int
	SourceLineNumber   int
	FieldValue         string
	QuoteStartPosition int // valid only for ErrCodeUnterminatedQuote; left at 0 otherwise
	Err                error
}

func (e *ParseError) Error() string {
	if e.FieldValue != "" {
		return fmt.Sprintf("heroparser: %s at line %d, row %d, column %d (field %q): %v",
			e.Code, e.SourceLineNumber, e.RowNumber, e.ColumnNumber, e.FieldValue, e.unwrapMsg())
	}
	return fmt.Sprintf("heroparser: %s at line %d, row %d, column %d: %v",
		e.Code, e.SourceLineNumber, e.RowNumber, e.ColumnNumber, e.unwrapMsg())
}

func (e *ParseError) unwrapMsg() error {
	if e.Err != nil {
		return e.Err
	}
	return errors.New(e.Code.String())
}

// Unwrap allows errors.Is/errors.As to reach the underlying sentinel, if any.
func (e *ParseError) Unwrap() error { return e.Err }

// WriteError reports a write-side failure. Writer returns it only when
// MaxOutputSize would be exceeded (ErrCodeOutputTooLarge); unquotable
// fields and formula-trigger fields never produce a WriteError.
type WriteError struct {
	Code       ErrorCode
	FieldIndex int
	FieldValue string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("heroparser: %s writing field %d (%q): %v", e.Code, e.FieldIndex, e.FieldValue, e.unwrapMsg())
}

func (e *WriteError) unwrapMsg() error {
	if e.Err != nil {
		return e.Err
	}
	return errors.New(e.Code.String())
}

func (e *WriteError) Unwrap() error { return e.Err }

// Sentinel errors, kept for errors.Is compatibility with encoding/csv-style callers.
var (
	ErrBareQuote     = errors.New("heroparser: bare quote in non-quoted field")
	ErrQuote         = errors.New("heroparser: extraneous or missing quote in quoted field")
	ErrFieldCount    = errors.New("heroparser: wrong number of fields")
	ErrInputTooLarge = errors.New("heroparser: input exceeds maximum allowed size")
	ErrClosed        = errors.New("heroparser: operation on a closed reader or writer")
	ErrNilBinder     = errors.New("heroparser: no binder resolved for row")
	ErrUnmatchedSkip = errors.New("heroparser: row skipped, no binder matched its discriminator")
	ErrOutputTooLarge = errors.New("heroparser: output exceeds maximum allowed size")

	errColumnOutOfRange        = errors.New("heroparser: column index out of range")
	ErrInvalidDelimiterZero    = errors.New("heroparser: delimiter must not be the zero rune")
	ErrInvalidDelimiterNewline = errors.New("heroparser: delimiter must not be a carriage return or newline")
	ErrCommentEqualsDelimiter  = errors.New("heroparser: comment rune must not equal the delimiter")
	ErrNegativeLimit           = errors.New("heroparser: size or count limit must not be negative")
	ErrLoneCRInQuotedField     = errors.New("heroparser: lone carriage return inside quoted field")
)

// DefaultMaxInputSize is the default maximum input size accepted by a Reader (2GB).
const DefaultMaxInputSize = 2 * 1024 * 1024 * 1024
