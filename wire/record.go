package wire

import (
	"fmt"

	"github.com/anirudhraja/tlv8/schema"
)

// boundField is a field descriptor with its converters resolved.
type boundField struct {
	field  *schema.Field
	decode DecodeFunc
	encode EncodeFunc
}

// RecordCodec encodes and decodes one record type. Fields are encoded in
// declaration order and decoded in wire order.
type RecordCodec struct {
	schema *schema.Record
	fields []*boundField
	byTag  [256]*boundField
}

func newRecordCodec(rec *schema.Record) *RecordCodec {
	return &RecordCodec{schema: rec}
}

func (c *RecordCodec) bind(d *Dispatcher) error {
	fields := make([]*boundField, 0, len(c.schema.Fields))
	for _, f := range c.schema.Fields {
		conv, err := d.resolve(f.Type)
		if err != nil {
			return wrapWithField(err, f.Name)
		}
		bf := &boundField{field: f, decode: conv.decode, encode: conv.encode}
		fields = append(fields, bf)
		c.byTag[f.Tag] = bf
	}
	c.fields = fields
	return nil
}

// Name returns the record type name.
func (c *RecordCodec) Name() string {
	return c.schema.Name
}

// Schema returns the record schema the codec was compiled from.
func (c *RecordCodec) Schema() *schema.Record {
	return c.schema
}

// Encode encodes data. Absent or nil optional fields are skipped and names
// that are not fields of the record are ignored.
func (c *RecordCodec) Encode(data map[string]interface{}) ([]byte, error) {
	enc := NewEncoder()
	if err := c.encodeTo(enc, data); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

func (c *RecordCodec) encodeTo(enc *Encoder, data map[string]interface{}) error {
	for _, bf := range c.fields {
		value, ok := data[bf.field.Name]
		if !ok || value == nil {
			if bf.field.Required {
				return wrapWithField(fmt.Errorf("%w in record %s", ErrMissingRequiredField, c.schema.Name), bf.field.Name)
			}
			continue
		}

		payload, err := bf.encode(value)
		if err != nil {
			return wrapWithField(err, bf.field.Name)
		}
		enc.WriteEntry(bf.field.Tag, payload)
	}
	return nil
}

// Decode decodes b. Every tag must belong to a field of the record; a tag
// seen twice keeps its last value. Nothing is returned on failure.
func (c *RecordCodec) Decode(b []byte) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(c.fields))

	it := NewIterator(b)
	for {
		entry, ok, err := it.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", c.schema.Name, err)
		}
		if !ok {
			break
		}

		bf := c.byTag[entry.Tag]
		if bf == nil {
			return nil, fmt.Errorf("%w %d at offset %d in record %s", ErrUnknownTag, entry.Tag, entry.Offset, c.schema.Name)
		}

		value, err := bf.decode(entry.Value)
		if err != nil {
			return nil, wrapWithField(err, bf.field.Name)
		}
		result[bf.field.Name] = value
	}

	for _, bf := range c.fields {
		if !bf.field.Required {
			continue
		}
		if _, ok := result[bf.field.Name]; !ok {
			return nil, wrapWithField(fmt.Errorf("%w in record %s", ErrMissingRequiredField, c.schema.Name), bf.field.Name)
		}
	}
	return result, nil
}

// EncodeRecord encodes data as the named record type - main entry point
func EncodeRecord(data map[string]interface{}, recordName string, d *Dispatcher) ([]byte, error) {
	codec, err := d.Record(recordName)
	if err != nil {
		return nil, err
	}
	return codec.Encode(data)
}

// DecodeRecord decodes TLV8 bytes as the named record type - main entry point
func DecodeRecord(data []byte, recordName string, d *Dispatcher) (map[string]interface{}, error) {
	codec, err := d.Record(recordName)
	if err != nil {
		return nil, err
	}
	return codec.Decode(data)
}
