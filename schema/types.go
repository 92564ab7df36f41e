package schema

import (
	"fmt"
	"strconv"
)

// Repo represents a collection of record and enum definitions, usually the
// content of one schema file.
type Repo struct {
	Source  string    `json:"source" yaml:"source"`   // file the definitions came from
	Records []*Record `json:"records" yaml:"records"` // record definitions
	Enums   []*Enum   `json:"enums" yaml:"enums"`     // enum definitions
}

// Record represents a TLV8 record type: an ordered list of tagged fields.
type Record struct {
	Name   string   `json:"name" yaml:"name"`     // "PairSetupM1"
	Fields []*Field `json:"fields" yaml:"fields"` // declaration order is encode order
}

// Field represents one tagged field of a record
type Field struct {
	Name     string    `json:"name" yaml:"name"`         // "public_key"
	Tag      uint8     `json:"tag" yaml:"tag"`           // 3
	Type     FieldType `json:"type" yaml:"type"`         // declared semantic type
	Required bool      `json:"required" yaml:"required"` // decode fails when absent
}

// FieldType represents the declared semantic type of a field
type FieldType struct {
	Kind   TypeKind `json:"kind" yaml:"kind"`                         // integer, text, bytes, enum, record, sequence
	Width  int      `json:"width,omitempty" yaml:"width,omitempty"`   // integer width in bytes, 0 means 1
	Enum   string   `json:"enum,omitempty" yaml:"enum,omitempty"`     // for enum types
	Record string   `json:"record,omitempty" yaml:"record,omitempty"` // for record and sequence types
}

// TypeKind represents the kind of field type
type TypeKind string

const (
	KindInteger  TypeKind = "integer"
	KindText     TypeKind = "text"
	KindBytes    TypeKind = "bytes"
	KindEnum     TypeKind = "enum"
	KindRecord   TypeKind = "record"
	KindSequence TypeKind = "sequence"
)

// DefaultIntegerWidth is the width used when an integer field declares none.
const DefaultIntegerWidth = 1

var integerWidths = map[int]struct{}{
	0: {},
	1: {},
	2: {},
	4: {},
	8: {},
}

// IsValidWidth reports whether w is an accepted integer width.
func IsValidWidth(w int) bool {
	_, ok := integerWidths[w]
	return ok
}

// IntegerWidth returns the effective byte width of an integer field.
func (ft FieldType) IntegerWidth() int {
	if ft.Width == 0 {
		return DefaultIntegerWidth
	}
	return ft.Width
}

// String returns a stable key for the declared type.
func (ft FieldType) String() string {
	switch ft.Kind {
	case KindInteger:
		return string(ft.Kind) + "/" + strconv.Itoa(ft.IntegerWidth())
	case KindEnum:
		return string(ft.Kind) + ":" + ft.Enum + "/" + strconv.Itoa(ft.IntegerWidth())
	case KindRecord, KindSequence:
		return string(ft.Kind) + ":" + ft.Record
	case "":
		// capability-only declarations
		if ft.Record != "" {
			return "?record:" + ft.Record
		}
		if ft.Enum != "" {
			return "?enum:" + ft.Enum + "/" + strconv.Itoa(ft.IntegerWidth())
		}
		return "?"
	default:
		return string(ft.Kind)
	}
}

// Integer returns an integer field type of the given width.
func Integer(width int) FieldType { return FieldType{Kind: KindInteger, Width: width} }

// Text returns a UTF-8 text field type.
func Text() FieldType { return FieldType{Kind: KindText} }

// Bytes returns a raw bytes field type.
func Bytes() FieldType { return FieldType{Kind: KindBytes} }

// EnumOf returns an enum field type backed by a one byte integer.
func EnumOf(name string) FieldType { return FieldType{Kind: KindEnum, Enum: name} }

// RecordOf returns a nested record field type.
func RecordOf(name string) FieldType { return FieldType{Kind: KindRecord, Record: name} }

// SequenceOf returns a sequence-of-record field type.
func SequenceOf(name string) FieldType { return FieldType{Kind: KindSequence, Record: name} }

// FieldByTag returns the field with the given tag, or nil.
func (r *Record) FieldByTag(tag uint8) *Field {
	for _, f := range r.Fields {
		if f.Tag == tag {
			return f
		}
	}
	return nil
}

// FieldByName returns the field with the given name, or nil.
func (r *Record) FieldByName(name string) *Field {
	for _, f := range r.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// UsesTag reports whether any field of the record is assigned tag.
func (r *Record) UsesTag(tag uint8) bool {
	return r.FieldByTag(tag) != nil
}

// Validate checks the record on its own: a name, unique field names and
// unique tags.
func (r *Record) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("record has no name")
	}
	names := make(map[string]struct{}, len(r.Fields))
	var tags [256]bool
	for i, f := range r.Fields {
		if f == nil {
			return fmt.Errorf("record %s: field %d is nil", r.Name, i)
		}
		if f.Name == "" {
			return fmt.Errorf("record %s: field %d has no name", r.Name, i)
		}
		if _, dup := names[f.Name]; dup {
			return fmt.Errorf("record %s: duplicate field name %q", r.Name, f.Name)
		}
		names[f.Name] = struct{}{}
		if tags[f.Tag] {
			return fmt.Errorf("record %s: duplicate tag %d on field %q", r.Name, f.Tag, f.Name)
		}
		tags[f.Tag] = true
		if !IsValidWidth(f.Type.Width) {
			return fmt.Errorf("record %s: field %q has invalid integer width %d", r.Name, f.Name, f.Type.Width)
		}
	}
	return nil
}

// Enum represents an integer-backed enumeration
type Enum struct {
	Name   string       `json:"name" yaml:"name"`     // "Method"
	Values []*EnumValue `json:"values" yaml:"values"` // enum members
}

// EnumValue represents an enum member
type EnumValue struct {
	Name   string `json:"name" yaml:"name"`   // "PairSetup"
	Number uint64 `json:"number" yaml:"value"` // 0
}

// ByNumber returns the member with the given number, or nil.
func (e *Enum) ByNumber(n uint64) *EnumValue {
	for _, v := range e.Values {
		if v.Number == n {
			return v
		}
	}
	return nil
}

// ByName returns the member with the given name, or nil.
func (e *Enum) ByName(name string) *EnumValue {
	for _, v := range e.Values {
		if v.Name == name {
			return v
		}
	}
	return nil
}
