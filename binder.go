package heroparser

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// FieldErrorPolicy controls what a Binder does when a single column fails
// to convert to its bound field's type.
type FieldErrorPolicy int

const (
	// Throw aborts the row and returns the conversion error.
	Throw FieldErrorPolicy = iota
	// Skip leaves the row out of the result entirely, recording the error
	// for ReadAllInto's aggregate but not stopping the read.
	Skip
	// UseDefault leaves the field at its zero value and continues.
	UseDefault
)

// ColumnBinding maps one CSV column (by header name) to one struct field of
// T, with a pluggable FieldParser and an error policy.
type ColumnBinding struct {
	Header     string
	FieldIndex []int // reflect.Value.FieldByIndex path
	Parser     FieldParser
	OnError    FieldErrorPolicy
	Required   bool
}

// BinderDescriptor is the header-independent shape of a Binder: the set of
// column bindings a concrete type declares, resolved against an actual
// header row by NewHeaderIndexMap.
type BinderDescriptor struct {
	Columns []ColumnBinding
}

// HeaderIndexMap resolves declared column headers to positions in an actual
// header row, case-sensitively or not per Options.CaseSensitiveHeaders.
type HeaderIndexMap struct {
	indexOf map[string]int
	caseSensitive bool
}

// NewHeaderIndexMap builds a lookup table from a header row.
func NewHeaderIndexMap(header []string, caseSensitive bool) *HeaderIndexMap {
	m := &HeaderIndexMap{indexOf: make(map[string]int, len(header)), caseSensitive: caseSensitive}
	for i, h := range header {
		m.indexOf[m.normalize(h)] = i
	}
	return m
}

func (m *HeaderIndexMap) normalize(s string) string {
	if m.caseSensitive {
		return s
	}
	return lowerASCII(s)
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Lookup returns the column index bound to header, and whether it was found.
func (m *HeaderIndexMap) Lookup(header string) (int, bool) {
	i, ok := m.indexOf[m.normalize(header)]
	return i, ok
}

// Binder binds CSV rows from a Reader into values of type T, driven by a
// BinderDescriptor resolved against the Reader's header row.
type Binder[T any] struct {
	descriptor    BinderDescriptor
	headerMap     *HeaderIndexMap
	resolved      []resolvedBinding
	nullValues    map[string]struct{}
	allowMissing  bool
}

type resolvedBinding struct {
	ColumnBinding
	columnIndex int
	present     bool
}

// NewBinder builds a Binder[T] from desc, resolving it against the given
// header row. Missing required columns return MissingColumn immediately
// unless opts.AllowMissingColumns is set.
func NewBinder[T any](header []string, desc BinderDescriptor, opts Options) (*Binder[T], error) {
	hm := NewHeaderIndexMap(header, opts.CaseSensitiveHeaders)
	b := &Binder[T]{
		descriptor:   desc,
		headerMap:    hm,
		nullValues:   toNullSet(opts.NullValues),
		allowMissing: opts.AllowMissingColumns,
	}
	for _, col := range desc.Columns {
		idx, ok := hm.Lookup(col.Header)
		rb := resolvedBinding{ColumnBinding: col, columnIndex: idx, present: ok}
		if !ok && col.Required && !opts.AllowMissingColumns {
			return nil, &ParseError{Code: ErrCodeMissingColumn, FieldValue: col.Header, Err: fmt.Errorf("heroparser: required column %q not found in header", col.Header)}
		}
		b.resolved = append(b.resolved, rb)
	}
	return b, nil
}

func toNullSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	s := make(map[string]struct{}, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (b *Binder[T]) isNull(raw []byte) bool {
	if b.nullValues == nil {
		return false
	}
	_, ok := b.nullValues[string(raw)]
	return ok
}

// BindRow binds the Reader's current row into a new T.
func (b *Binder[T]) BindRow(r *Reader) (T, error) {
	var out T
	v := reflect.ValueOf(&out).Elem()

	for _, rb := range b.resolved {
		if !rb.present {
			continue
		}
		raw, err := r.Column(rb.columnIndex)
		if err != nil {
			if b.allowMissing {
				continue
			}
			return out, &ParseError{Code: ErrCodeMissingColumn, FieldValue: rb.Header, ColumnNumber: rb.columnIndex, Err: fmt.Errorf("heroparser: column %q (index %d) missing from a short row: %w", rb.Header, rb.columnIndex, err)}
		}
		field := v.FieldByIndex(rb.FieldIndex)

		if b.isNull(raw) {
			continue // leave zero value
		}

		parser := rb.Parser
		if parser == nil {
			parser = defaultParserFor(field.Kind())
		}
		if parser == nil {
			continue
		}
		if err := parser.ParseInto(raw, field); err != nil {
			switch rb.OnError {
			case Skip:
				return out, &rowSkipped{col: rb.Header, err: err}
			case UseDefault:
				field.Set(reflect.Zero(field.Type()))
			default:
				return out, &ParseError{Code: ErrCodeTypeConversionFailed, FieldValue: truncateFieldValue(raw), Err: err}
			}
		}
	}
	return out, nil
}

// rowSkipped is an internal sentinel carrying which column triggered a
// Skip policy; ReadAllInto filters these out of the result and aggregates
// them instead of propagating as a hard error.
type rowSkipped struct {
	col string
	err error
}

func (e *rowSkipped) Error() string { return fmt.Sprintf("column %q: %v", e.col, e.err) }
func (e *rowSkipped) Unwrap() error { return e.err }

// ReadAllInto binds every remaining row of r into []T using b, skipping
// rows whose Skip-policy columns failed and aggregating their errors with
// go-multierror instead of aborting the whole read.
func ReadAllInto[T any](r *Reader, b *Binder[T]) ([]T, error) {
	var out []T
	var agg *multierror.Error

	for {
		ok, err := r.NextRow()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		row, err := b.BindRow(r)
		var skipped *rowSkipped
		switch {
		case err == nil:
			out = append(out, row)
		case asRowSkipped(err, &skipped):
			agg = multierror.Append(agg, fmt.Errorf("line %d: %w", r.CurrentLineNumber(), skipped))
		default:
			return out, err
		}
	}
	if agg != nil {
		return out, agg.ErrorOrNil()
	}
	return out, nil
}

func asRowSkipped(err error, target **rowSkipped) bool {
	if rs, ok := err.(*rowSkipped); ok {
		*target = rs
		return true
	}
	return false
}

// BinderFactory constructs a type-erased binder for a given header row.
// The registry stores these so callers can resolve a binder for a type
// discovered only at runtime (e.g. the multi-schema dispatcher).
type BinderFactory func(header []string, opts Options) (interface{}, error)

var binderRegistry sync.Map // map[reflect.Type]BinderFactory

// RegisterBinderFactory installs f as the factory for values of type T.
// Only the first registration for a given T wins; later calls are no-ops,
// matching the registry's insert-or-get, no-deletion contract.
func RegisterBinderFactory[T any](f BinderFactory) {
	var zero T
	t := reflect.TypeOf(zero)
	binderRegistry.LoadOrStore(t, f)
}

// LookupBinderFactory returns the factory registered for T, if any.
func LookupBinderFactory[T any]() (BinderFactory, bool) {
	var zero T
	t := reflect.TypeOf(zero)
	v, ok := binderRegistry.Load(t)
	if !ok {
		return nil, false
	}
	return v.(BinderFactory), true
}

// defaultParserFor returns the built-in FieldParser for primitive kinds, so
// a ColumnBinding with no explicit Parser still works for common types.
func defaultParserFor(kind reflect.Kind) FieldParser {
	switch kind {
	case reflect.String:
		return StringParser{}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntParser{}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return UintParser{}
	case reflect.Float32, reflect.Float64:
		return FloatParser{}
	case reflect.Bool:
		return BoolParser{}
	default:
		return nil
	}
}
