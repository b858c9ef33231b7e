package heroparser

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// FieldParser converts a raw column's bytes into a reflect.Value field. It
// is the pluggable extension point a ColumnBinding uses instead of a fixed
// type switch, so callers can register parsers for their own scalar types
// (locale-aware numbers, custom enums) without touching the binder.
type FieldParser interface {
	ParseInto(raw []byte, dst reflect.Value) error
}

// StringParser assigns the raw bytes, copied, to a string field.
type StringParser struct{}

func (StringParser) ParseInto(raw []byte, dst reflect.Value) error {
	dst.SetString(string(raw))
	return nil
}

// IntParser parses a signed decimal integer.
type IntParser struct{ Base int }

func (p IntParser) ParseInto(raw []byte, dst reflect.Value) error {
	base := p.Base
	if base == 0 {
		base = 10
	}
	n, err := strconv.ParseInt(string(raw), base, dst.Type().Bits())
	if err != nil {
		return err
	}
	dst.SetInt(n)
	return nil
}

// UintParser parses an unsigned decimal integer.
type UintParser struct{ Base int }

func (p UintParser) ParseInto(raw []byte, dst reflect.Value) error {
	base := p.Base
	if base == 0 {
		base = 10
	}
	n, err := strconv.ParseUint(string(raw), base, dst.Type().Bits())
	if err != nil {
		return err
	}
	dst.SetUint(n)
	return nil
}

// FloatParser parses a decimal floating point number.
type FloatParser struct{}

func (FloatParser) ParseInto(raw []byte, dst reflect.Value) error {
	f, err := strconv.ParseFloat(string(raw), dst.Type().Bits())
	if err != nil {
		return err
	}
	dst.SetFloat(f)
	return nil
}

// BoolParser parses strconv.ParseBool's accepted spellings
// (1, t, T, TRUE, true, True, 0, f, F, FALSE, false, False).
type BoolParser struct{}

func (BoolParser) ParseInto(raw []byte, dst reflect.Value) error {
	b, err := strconv.ParseBool(string(raw))
	if err != nil {
		return err
	}
	dst.SetBool(b)
	return nil
}

// DateParser parses a field into a time.Time using Layout (defaulting to
// RFC 3339), assigning the result via dst.Set.
type DateParser struct {
	Layout string
}

func (p DateParser) ParseInto(raw []byte, dst reflect.Value) error {
	layout := p.Layout
	if layout == "" {
		layout = time.RFC3339
	}
	t, err := time.Parse(layout, string(raw))
	if err != nil {
		return err
	}
	dst.Set(reflect.ValueOf(t))
	return nil
}

// UUIDParser validates and assigns the canonical 8-4-4-4-12 hyphenated UUID
// textual form to a string field.
type UUIDParser struct{}

func (UUIDParser) ParseInto(raw []byte, dst reflect.Value) error {
	s := string(raw)
	if !isCanonicalUUID(s) {
		return fmt.Errorf("heroparser: %q is not a canonical UUID", s)
	}
	dst.SetString(s)
	return nil
}

func isCanonicalUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, c := range s {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			if !isHexDigit(byte(c)) {
				return false
			}
		}
	}
	return true
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// EnumParser maps raw text to one of a fixed set of int-backed values via
// Values (raw string -> ordinal). Fields bound with EnumParser must be an
// integer kind.
type EnumParser struct {
	Values map[string]int64
}

func (p EnumParser) ParseInto(raw []byte, dst reflect.Value) error {
	v, ok := p.Values[string(raw)]
	if !ok {
		return fmt.Errorf("heroparser: %q is not a recognized enum value", raw)
	}
	dst.SetInt(v)
	return nil
}
