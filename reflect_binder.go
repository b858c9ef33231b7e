package heroparser

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ReflectBinder binds rows into T purely via reflection and `csv:"..."`
// struct tags, with no ColumnBinding declarations required. Callers
// construct it directly; the binder registry does not fall back to it when
// no BinderFactory is registered for T. Slower than a declared Binder[T],
// but usable on any exported struct.
type ReflectBinder[T any] struct {
	headerMap *HeaderIndexMap
	tagByCol  []string // tagByCol[column index] = struct field csv tag, "" if unbound
}

// NewReflectBinder resolves T's `csv:"..."` tags against header.
func NewReflectBinder[T any](header []string, caseSensitive bool) *ReflectBinder[T] {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	tagToField := make(map[string]struct{}, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		tag := csvTagName(rt.Field(i))
		if tag != "" {
			tagToField[tag] = struct{}{}
		}
	}

	hm := NewHeaderIndexMap(header, caseSensitive)
	tagByCol := make([]string, len(header))
	for i, h := range header {
		name := h
		if !caseSensitive {
			name = lowerASCII(h)
		}
		if _, ok := tagToField[name]; ok {
			tagByCol[i] = name
		}
	}
	return &ReflectBinder[T]{headerMap: hm, tagByCol: tagByCol}
}

func csvTagName(f reflect.StructField) string {
	tag := f.Tag.Get("csv")
	if tag == "" || tag == "-" {
		return ""
	}
	name := strings.SplitN(tag, ",", 2)[0]
	return strings.ToLower(name)
}

// BindRow binds the Reader's current row into a new T via mapstructure,
// after building an intermediate map[string]interface{} keyed by csv tag
// name the same way the tagged-struct pattern this is grounded on does.
func (rb *ReflectBinder[T]) BindRow(r *Reader) (T, error) {
	var out T
	data := make(map[string]interface{}, len(rb.tagByCol))

	n := r.ColumnCount()
	for i := 0; i < n && i < len(rb.tagByCol); i++ {
		tag := rb.tagByCol[i]
		if tag == "" {
			continue
		}
		raw, err := r.Column(i)
		if err != nil {
			return out, err
		}
		data[tag] = reflectValueFor(string(raw))
	}

	cfg := &mapstructure.DecoderConfig{
		TagName:          "csv",
		WeaklyTypedInput: true,
		Result:           &out,
	}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return out, &ParseError{Code: ErrCodeTypeConversionFailed, Err: err}
	}
	if err := dec.Decode(data); err != nil {
		return out, &ParseError{Code: ErrCodeTypeConversionFailed, Err: err}
	}
	return out, nil
}

// reflectValueFor keeps numeric-looking strings as numbers so
// mapstructure's WeaklyTypedInput decode can land them on int/float fields
// without every struct needing string-typed columns.
func reflectValueFor(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
