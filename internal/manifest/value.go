package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a manifest scalar: either a number or a piece of text. Booleans
// are text that encodes back to a JSON boolean.
type Value struct {
	num    float64
	text   string
	isText bool
	isBool bool
}

// Number returns a numeric value.
func Number(v float64) Value { return Value{num: v} }

// Text returns a text value.
func Text(s string) Value { return Value{text: s, isText: true} }

// Bool returns a text value of "true" or "false".
func Bool(b bool) Value {
	return Value{text: strconv.FormatBool(b), isText: true, isBool: true}
}

// IsText reports whether the value holds text.
func (v Value) IsText() bool { return v.isText }

// Float returns the numeric value. ok is false for text values.
func (v Value) Float() (float64, bool) {
	if v.isText {
		return 0, false
	}
	return v.num, true
}

// Numeric returns text that reads as a finite number as a Number. Any other
// value is returned unchanged.
func (v Value) Numeric() Value {
	if !v.isText || v.isBool {
		return v
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return v
	}
	return Number(f)
}

// IsEmpty reports whether the value is zero or blank text.
func (v Value) IsEmpty() bool {
	if v.isText {
		return strings.TrimSpace(v.text) == ""
	}
	return v.num == 0
}

// String renders the value for reports.
func (v Value) String() string {
	if v.isText {
		return v.text
	}
	return strconv.FormatFloat(v.num, 'f', -1, 64)
}

// Equal reports exact equality of kind and content.
func (v Value) Equal(other Value) bool {
	if v.isText != other.isText {
		return false
	}
	if v.isText {
		return v.text == other.text
	}
	return v.num == other.num
}

// Round returns a numeric value rounded to places decimals. Text is returned
// unchanged.
func (v Value) Round(places int) Value {
	if v.isText {
		return v
	}
	return Number(Round(v.num, places))
}

// Round rounds half away from zero to places decimals. A negative places
// leaves value unchanged.
func Round(value float64, places int) float64 {
	if places < 0 {
		return value
	}
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.isBool {
		return json.Marshal(v.text == "true")
	}
	if v.isText {
		return json.Marshal(v.text)
	}
	if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return nil, fmt.Errorf("manifest value %v is not representable in JSON", v.num)
	}
	return json.Marshal(v.num)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty manifest value")
	}
	switch data[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("manifest value must be a number, string or boolean: %s", data)
		}
		*v = Bool(b)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("manifest value must be a number, string or boolean: %s", data)
		}
		*v = Number(f)
		return nil
	}
}

// ParseValue decodes a raw JSON value. ok is false for anything other than a
// number, a string or a boolean.
func ParseValue(raw json.RawMessage) (Value, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Value{}, false
	}
	switch c := raw[0]; {
	case c == '"', c == '-', c == 't', c == 'f', c >= '0' && c <= '9':
	default:
		return Value{}, false
	}
	var v Value
	if err := v.UnmarshalJSON(raw); err != nil {
		return Value{}, false
	}
	return v, true
}
