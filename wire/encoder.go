package wire

import "fmt"

// Encoder handles low-level TLV8 wire format encoding
type Encoder struct {
	buf []byte
}

// NewEncoder creates a new wire format encoder
func NewEncoder() *Encoder {
	return &Encoder{
		buf: make([]byte, 0),
	}
}

// Bytes returns the encoded bytes
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of encoded bytes
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Reset clears the encoder buffer
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// WriteEntry writes value under tag, split into chunks of at most
// MaxChunkLength bytes. An empty value is written as one zero-length entry.
func (e *Encoder) WriteEntry(tag uint8, value []byte) {
	if len(value) == 0 {
		e.buf = append(e.buf, tag, 0)
		return
	}

	for len(value) > 0 {
		n := min(len(value), MaxChunkLength)
		e.buf = append(e.buf, tag, uint8(n))
		e.buf = append(e.buf, value[:n]...)
		value = value[n:]
	}
}

// WriteSeparator writes the zero-length separator entry between sequence items.
func (e *Encoder) WriteSeparator() {
	e.buf = append(e.buf, SeparatorTag, 0)
}

// WriteRaw appends already encoded entries.
func (e *Encoder) WriteRaw(b []byte) {
	e.buf = append(e.buf, b...)
}

// EncodedLength returns the number of bytes WriteEntry emits for a value of
// n bytes.
func EncodedLength(n int) int {
	if n == 0 {
		return headerLength
	}
	chunks := (n + MaxChunkLength - 1) / MaxChunkLength
	return n + chunks*headerLength
}

// String returns the encoded bytes as hex, for debugging.
func (e *Encoder) String() string {
	return fmt.Sprintf("% x", e.buf)
}
