package wire

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// coerceToUint64 accepts the integer-like values a caller may hand the
// encoder: Go integer types, integral floats (JSON numbers decoded into
// interface{}), json.Number and numeric strings.
func coerceToUint64(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case uint64:
		return t, nil
	case uint32:
		return uint64(t), nil
	case uint16:
		return uint64(t), nil
	case uint8:
		return uint64(t), nil
	case uint:
		return uint64(t), nil
	case int64:
		return signedToUint64(t)
	case int32:
		return signedToUint64(int64(t))
	case int16:
		return signedToUint64(int64(t))
	case int8:
		return signedToUint64(int64(t))
	case int:
		return signedToUint64(int64(t))
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		return parseUnsigned(t.String())
	case float64:
		return floatToUint64(t)
	case float32:
		return floatToUint64(float64(t))
	case string:
		return parseUnsigned(t)
	default:
		return 0, fmt.Errorf("%w: expected integer-like, got %T", ErrInvalidValue, v)
	}
}

func signedToUint64(v int64) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("%w: negative value %d", ErrValueOutOfRange, v)
	}
	return uint64(v), nil
}

func floatToUint64(f float64) (uint64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: non-integer numeric %v for integer field", ErrInvalidValue, f)
	}
	if f < 0 || f >= math.MaxUint64 {
		return 0, fmt.Errorf("%w: %v", ErrValueOutOfRange, f)
	}
	return uint64(f), nil
}

func parseUnsigned(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	hex := strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
	if !hex && strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return floatToUint64(f)
	}
	if strings.HasPrefix(s, "-") {
		iv, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return signedToUint64(iv)
	}
	uv, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, fmt.Errorf("%w: %s", ErrValueOutOfRange, s)
		}
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return uv, nil
}
