package schema

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind is the value kind of a field. Values assigned to a draft and values
// read back from the database are normalized to the Go type of their kind.
type Kind uint8

// List of field kinds.
const (
	KindAny    Kind = iota // any, stored as is
	KindString             // string
	KindInt                // int64
	KindFloat              // float64
	KindBool               // bool
	KindTime               // time.Time
	KindBytes              // []byte
)

var kindNames = [...]string{
	KindAny:    "any",
	KindString: "string",
	KindInt:    "int",
	KindFloat:  "float",
	KindBool:   "bool",
	KindTime:   "time",
	KindBytes:  "bytes",
}

// String returns the kind name.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind returns the kind for the given name.
func ParseKind(s string) (Kind, error) {
	if s == "" {
		return KindAny, nil
	}
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return KindAny, fmt.Errorf("schema: unknown field kind %q", s)
}

// TimeLayouts are the layouts accepted when converting strings to time values.
var TimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Convert normalizes v to the Go type of the kind. nil is always accepted.
func (k Kind) Convert(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case KindString:
		switch v := v.(type) {
		case string:
			return v, nil
		case []byte:
			return string(v), nil
		case fmt.Stringer:
			return v.String(), nil
		}
	case KindInt:
		switch v := v.(type) {
		case int:
			return int64(v), nil
		case int8:
			return int64(v), nil
		case int16:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		case uint:
			return int64(v), nil
		case uint8:
			return int64(v), nil
		case uint16:
			return int64(v), nil
		case uint32:
			return int64(v), nil
		case uint64:
			if v <= math.MaxInt64 {
				return int64(v), nil
			}
		case float64:
			if v == math.Trunc(v) {
				return int64(v), nil
			}
		case float32:
			if float64(v) == math.Trunc(float64(v)) {
				return int64(v), nil
			}
		case string:
			return strconv.ParseInt(v, 10, 64)
		case []byte:
			return strconv.ParseInt(string(v), 10, 64)
		}
	case KindFloat:
		switch v := v.(type) {
		case float64:
			return v, nil
		case float32:
			return float64(v), nil
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case string:
			return strconv.ParseFloat(v, 64)
		case []byte:
			return strconv.ParseFloat(string(v), 64)
		}
	case KindBool:
		switch v := v.(type) {
		case bool:
			return v, nil
		case int64:
			return v != 0, nil
		case int:
			return v != 0, nil
		case string:
			return strconv.ParseBool(v)
		case []byte:
			return strconv.ParseBool(string(v))
		}
	case KindTime:
		switch v := v.(type) {
		case time.Time:
			return v, nil
		case string:
			return parseTime(v)
		case []byte:
			return parseTime(string(v))
		}
	case KindBytes:
		switch v := v.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("schema: cannot convert %T to %s", v, k)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range TimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("schema: invalid time value %q", s)
}
