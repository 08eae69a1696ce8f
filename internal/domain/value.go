package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
)

// Value is a dynamically typed cell: null, a finite number, or text.
type Value struct {
	kind Kind
	num  float64
	str  string
}

// Null returns the explicit empty value.
func Null() Value { return Value{} }

// Number wraps a float. Non-finite input is stored as null.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: KindNumber, num: f}
}

// Text wraps a string as-is.
func Text(s string) Value { return Value{kind: KindString, str: s} }

// ParseValue types a raw cell. Surrounding whitespace is ignored.
func ParseValue(raw string) Value {
	s := strings.TrimSpace(raw)
	if isNullLiteral(s) {
		return Null()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Number(f)
	}
	return Text(s)
}

func isNullLiteral(s string) bool {
	return s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null")
}

// Kind reports the dynamic type.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is the explicit empty value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the numeric value. Text is not coerced.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// String renders the value for text output. Null renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	default:
		return ""
	}
}

// Interface returns nil, float64 or string.
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	default:
		return nil
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = valueFromJSON(raw)
	return nil
}

// valueFromJSON maps a decoded JSON scalar onto a Value. Strings go through
// ParseValue so "12.5" and "nan" behave as they would in a CSV cell.
func valueFromJSON(raw any) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case float64:
		return Number(x)
	case json.Number:
		return ParseValue(x.String())
	case string:
		return ParseValue(x)
	case bool:
		return Text(strconv.FormatBool(x))
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return Null()
		}
		return Text(string(b))
	}
}
