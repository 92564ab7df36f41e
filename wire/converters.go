package wire

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/anirudhraja/tlv8/schema"
)

// DecodeFunc converts the reassembled value of one entry to its semantic value.
type DecodeFunc func(value []byte) (interface{}, error)

// EncodeFunc converts a semantic value to the payload of one entry.
type EncodeFunc func(value interface{}) ([]byte, error)

// ===== INTEGER =====

// DecodeInteger decodes a little-endian unsigned integer of any length. An
// empty value is 0. Values with more than 8 significant bytes do not fit.
func DecodeInteger(b []byte) (uint64, error) {
	if len(b) > 8 {
		for _, extra := range b[8:] {
			if extra != 0 {
				return 0, fmt.Errorf("%w: %d byte integer does not fit in 64 bits", ErrValueOutOfRange, len(b))
			}
		}
		b = b[:8]
	}

	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// EncodeInteger encodes v little-endian in exactly width bytes.
func EncodeInteger(v uint64, width int) ([]byte, error) {
	if width == 0 {
		width = schema.DefaultIntegerWidth
	}
	if !schema.IsValidWidth(width) {
		return nil, fmt.Errorf("%w: integer width %d", ErrUnsupportedType, width)
	}
	if width < 8 && v >= 1<<(8*uint(width)) {
		return nil, fmt.Errorf("%w: %d does not fit in %d byte(s)", ErrValueOutOfRange, v, width)
	}

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	out := make([]byte, width)
	copy(out, buf[:width])
	return out, nil
}

func integerDecoder() DecodeFunc {
	return func(value []byte) (interface{}, error) {
		return DecodeInteger(value)
	}
}

func integerEncoder(width int) EncodeFunc {
	return func(value interface{}) ([]byte, error) {
		v, err := coerceToUint64(value)
		if err != nil {
			return nil, err
		}
		return EncodeInteger(v, width)
	}
}

// ===== TEXT =====

// DecodeText decodes UTF-8 text.
func DecodeText(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: % x", ErrInvalidText, b)
	}
	return string(b), nil
}

// EncodeText encodes s as UTF-8. A string holding invalid UTF-8 is rejected.
func EncodeText(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidText, s)
	}
	return []byte(s), nil
}

func textDecoder() DecodeFunc {
	return func(value []byte) (interface{}, error) {
		return DecodeText(value)
	}
}

func textEncoder() EncodeFunc {
	return func(value interface{}) ([]byte, error) {
		switch t := value.(type) {
		case string:
			return EncodeText(t)
		case []byte:
			return EncodeText(string(t))
		case fmt.Stringer:
			return EncodeText(t.String())
		default:
			return nil, fmt.Errorf("%w: expected string, got %T", ErrInvalidValue, value)
		}
	}
}

// ===== BYTES =====

func bytesDecoder() DecodeFunc {
	return func(value []byte) (interface{}, error) {
		// Copy the data to avoid sharing the underlying buffer
		out := make([]byte, len(value))
		copy(out, value)
		return out, nil
	}
}

func bytesEncoder() EncodeFunc {
	return func(value interface{}) ([]byte, error) {
		switch t := value.(type) {
		case []byte:
			return t, nil
		case string:
			return []byte(t), nil
		default:
			return nil, fmt.Errorf("%w: expected []byte, got %T", ErrInvalidValue, value)
		}
	}
}

// ===== ENUM =====

func enumDecoder(en *schema.Enum, cfg Config) DecodeFunc {
	return func(value []byte) (interface{}, error) {
		n, err := DecodeInteger(value)
		if err != nil {
			return nil, err
		}
		if member := en.ByNumber(n); member != nil {
			return member.Name, nil
		}
		if cfg.AllowUnknownEnumNumberDecode {
			return n, nil
		}
		return nil, fmt.Errorf("%w: %d is not a member of %s", ErrUnknownEnumValue, n, en.Name)
	}
}

func enumEncoder(en *schema.Enum, width int, cfg Config) EncodeFunc {
	return func(value interface{}) ([]byte, error) {
		var n uint64
		if name, ok := value.(string); ok {
			if member := en.ByName(name); member != nil {
				return EncodeInteger(member.Number, width)
			}
			parsed, err := parseUnsigned(name)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a member of %s", ErrUnknownEnumValue, name, en.Name)
			}
			n = parsed
		} else {
			parsed, err := coerceToUint64(value)
			if err != nil {
				return nil, err
			}
			n = parsed
		}

		if en.ByNumber(n) == nil && !cfg.AllowUnknownEnumNumberDecode {
			return nil, fmt.Errorf("%w: %d is not a member of %s", ErrUnknownEnumValue, n, en.Name)
		}
		return EncodeInteger(n, width)
	}
}

// ===== NESTED RECORD =====

func recordDecoder(codec *RecordCodec) DecodeFunc {
	return func(value []byte) (interface{}, error) {
		return codec.Decode(value)
	}
}

func recordEncoder(codec *RecordCodec) EncodeFunc {
	return func(value interface{}) ([]byte, error) {
		switch t := value.(type) {
		case map[string]interface{}:
			return codec.Encode(t)
		case []byte:
			// already encoded record
			return t, nil
		default:
			return nil, fmt.Errorf("%w: expected map[string]interface{} for record %s, got %T",
				ErrInvalidValue, codec.Name(), value)
		}
	}
}

// ===== SEQUENCE OF RECORD =====

// DecodeSequence splits b on separator entries and decodes every item with
// codec. The bytes between two boundaries always form an item; the remainder
// after the last boundary forms one only when it is not empty.
func DecodeSequence(b []byte, codec *RecordCodec) ([]interface{}, error) {
	items := make([]interface{}, 0)
	start := 0

	it := NewIterator(b)
	for {
		entry, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if entry.Tag != SeparatorTag {
			continue
		}
		item, err := codec.Decode(b[start:entry.Offset])
		if err != nil {
			return nil, wrapWithIndex(err, len(items))
		}
		items = append(items, item)
		start = entry.End
	}

	if start < len(b) {
		item, err := codec.Decode(b[start:])
		if err != nil {
			return nil, wrapWithIndex(err, len(items))
		}
		items = append(items, item)
	}
	return items, nil
}

// EncodeSequence encodes items with codec, writing a separator entry between
// two items. An empty trailing item encodes to nothing after the last
// separator, so DecodeSequence does not return it.
func EncodeSequence(items []interface{}, codec *RecordCodec) ([]byte, error) {
	enc := NewEncoder()
	for i, item := range items {
		if i > 0 {
			enc.WriteSeparator()
		}
		data, err := recordEncoder(codec)(item)
		if err != nil {
			return nil, wrapWithIndex(err, i)
		}
		enc.WriteRaw(data)
	}
	return enc.Bytes(), nil
}

func sequenceDecoder(codec *RecordCodec) DecodeFunc {
	return func(value []byte) (interface{}, error) {
		return DecodeSequence(value, codec)
	}
}

func sequenceEncoder(codec *RecordCodec) EncodeFunc {
	return func(value interface{}) ([]byte, error) {
		switch t := value.(type) {
		case []interface{}:
			return EncodeSequence(t, codec)
		case []map[string]interface{}:
			items := make([]interface{}, len(t))
			for i, item := range t {
				items[i] = item
			}
			return EncodeSequence(items, codec)
		default:
			return nil, fmt.Errorf("%w: expected list for sequence of %s, got %T",
				ErrInvalidValue, codec.Name(), value)
		}
	}
}
