package wire

// ===== TLV8 WIRE FORMAT TYPES =====

const (
	// MaxChunkLength is the largest payload a single entry can carry. Longer
	// values continue in following entries with the same tag.
	MaxChunkLength = 255

	// SeparatorTag delimits items of an encoded sequence of records. A
	// separator is always written with length 0.
	SeparatorTag uint8 = 0

	// headerLength is the size of the tag and length bytes.
	headerLength = 2
)

// Entry is one logical TLV8 entry: a chunk run reassembled into one value.
type Entry struct {
	Offset int    // position of the first chunk's tag byte
	End    int    // position right after the last chunk
	Tag    uint8  // tag shared by every chunk of the run
	Length uint8  // length of the last chunk
	Value  []byte // concatenated payload of every chunk, owned by the entry
}

// Chunks returns the number of wire entries the logical entry was read from.
func (e Entry) Chunks() int {
	return (e.End - e.Offset - len(e.Value)) / headerLength
}
