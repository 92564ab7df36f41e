package wire

import (
	"fmt"
	"iter"
)

// Iterator walks a TLV8 buffer and yields logical entries. A chunk run of
// maximum-length entries sharing a tag is merged into one entry.
type Iterator struct {
	buf  []byte
	pos  int
	err  error
	done bool
}

// NewIterator creates an iterator over buf. The buffer is not modified.
func NewIterator(buf []byte) *Iterator {
	return &Iterator{buf: buf}
}

// Next returns the next logical entry. ok is false once the buffer is
// exhausted or an error was returned; the iterator stays finished afterwards.
func (it *Iterator) Next() (Entry, bool, error) {
	if it.done || it.pos >= len(it.buf) {
		it.done = true
		return Entry{}, false, nil
	}

	entry, err := it.readEntry()
	if err != nil {
		it.done = true
		it.err = err
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Err returns the error that stopped the iterator, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Offset returns the position of the next unread byte.
func (it *Iterator) Offset() int {
	return it.pos
}

func (it *Iterator) readEntry() (Entry, error) {
	entry := Entry{Offset: it.pos}

	tag, chunk, err := it.readChunk()
	if err != nil {
		return Entry{}, err
	}
	entry.Tag = tag
	entry.Value = append([]byte(nil), chunk...)
	last := len(chunk)

	for last == MaxChunkLength && it.pos < len(it.buf) && it.buf[it.pos] == tag {
		_, chunk, err = it.readChunk()
		if err != nil {
			return Entry{}, err
		}
		entry.Value = append(entry.Value, chunk...)
		last = len(chunk)
	}

	entry.Length = uint8(last)
	entry.End = it.pos
	return entry, nil
}

// readChunk reads one physical entry. The returned payload aliases buf.
func (it *Iterator) readChunk() (uint8, []byte, error) {
	if it.pos+headerLength > len(it.buf) {
		return 0, nil, fmt.Errorf("%w: entry header at offset %d needs %d bytes, have %d",
			ErrTruncatedBuffer, it.pos, headerLength, len(it.buf)-it.pos)
	}

	tag := it.buf[it.pos]
	length := int(it.buf[it.pos+1])
	start := it.pos + headerLength
	if start+length > len(it.buf) {
		return 0, nil, fmt.Errorf("%w: tag %d declares %d bytes at offset %d, have %d",
			ErrTruncatedBuffer, tag, length, start, len(it.buf)-start)
	}

	it.pos = start + length
	return tag, it.buf[start:it.pos], nil
}

// Entries returns a one-shot sequence over the logical entries of buf. The
// sequence ends after the first error.
func Entries(buf []byte) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		it := NewIterator(buf)
		for {
			entry, ok, err := it.Next()
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !ok {
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

// ReadAll collects every logical entry of buf.
func ReadAll(buf []byte) ([]Entry, error) {
	var entries []Entry
	for entry, err := range Entries(buf) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
