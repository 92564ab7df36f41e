package tlv8

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/anirudhraja/tlv8/registry"
	"github.com/anirudhraja/tlv8/schema"
	"github.com/anirudhraja/tlv8/wire"
)

// ===== SCHEMA-AWARE API =====

// Codec provides schema-driven TLV8 operations without generated code. It is
// safe for concurrent use; loading schemas swaps in a freshly compiled
// dispatcher while in-flight calls keep the previous one.
type Codec struct {
	mu         sync.Mutex // serializes schema loads
	registry   *registry.Registry
	dispatcher atomic.Pointer[wire.Dispatcher]
	config     wire.Config
	logger     zerolog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithConfig sets the decoding behavior toggles.
func WithConfig(c wire.Config) Option {
	return func(cd *Codec) { cd.config = c }
}

// WithLogger sets the logger for schema loading and compilation.
func WithLogger(l zerolog.Logger) Option {
	return func(cd *Codec) { cd.logger = l }
}

// New creates a Codec with an empty registry.
func New(opts ...Option) *Codec {
	c := &Codec{
		config: wire.DefaultConfig(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.registry = registry.NewRegistry(registry.WithLogger(c.logger))

	// an empty registry always compiles
	d, _ := wire.NewDispatcher(c.registry, wire.WithConfig(c.config), wire.WithLogger(c.logger))
	c.dispatcher.Store(d)
	return c
}

// LoadRepo loads a collection of record and enum definitions.
func (c *Codec) LoadRepo(repo *schema.Repo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.LoadRepo(repo); err != nil {
		return err
	}
	return c.recompile()
}

// LoadSchema loads a schema file or every schema file below a directory.
func (c *Codec) LoadSchema(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.LoadPath(path); err != nil {
		return err
	}
	return c.recompile()
}

// RegisterEnum adds enums defined in code.
func (c *Codec) RegisterEnum(enums ...*schema.Enum) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.LoadRepo(&schema.Repo{Enums: enums}); err != nil {
		return err
	}
	return c.recompile()
}

// Register adds records defined in code. Enums they reference must be
// registered first. A failed call registers none of the records.
func (c *Codec) Register(records ...*schema.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.registry.LoadRepo(&schema.Repo{Records: records}); err != nil {
		return err
	}
	return c.recompile()
}

func (c *Codec) recompile() error {
	d, err := wire.NewDispatcher(c.registry, wire.WithConfig(c.config), wire.WithLogger(c.logger))
	if err != nil {
		return err
	}
	c.dispatcher.Store(d)
	return nil
}

// Parse decodes TLV8 bytes as the named record type
func (c *Codec) Parse(data []byte, recordType string) (map[string]interface{}, error) {
	return wire.DecodeRecord(data, recordType, c.dispatcher.Load())
}

// Marshal encodes a map as the named record type
func (c *Codec) Marshal(data map[string]interface{}, recordType string) ([]byte, error) {
	return wire.EncodeRecord(data, recordType, c.dispatcher.Load())
}

// Entries decodes the logical entries of data without a schema.
func Entries(data []byte) ([]wire.Entry, error) {
	return wire.ReadAll(data)
}

// ===== STRUCT MAPPING =====

// RecordNamer lets a struct name its record type when it differs from the Go
// type name.
type RecordNamer interface {
	RecordName() string
}

// Unmarshal decodes TLV8 bytes into a Go struct using reflection. The record
// type is the struct's RecordName() or its type name.
func (c *Codec) Unmarshal(data []byte, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("unmarshal target must be a pointer to struct")
	}

	result, err := c.Parse(data, recordName(rv))
	if err != nil {
		return err
	}

	return c.mapToStruct(result, rv.Elem())
}

// MarshalStruct encodes a struct, or a pointer to one, using reflection.
func (c *Codec) MarshalStruct(v interface{}) ([]byte, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("marshal source is a nil pointer")
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("marshal source must be a struct, got %s", rv.Kind())
	}

	data, err := c.structToMap(rv)
	if err != nil {
		return nil, err
	}
	return c.Marshal(data, recordName(reflect.ValueOf(v)))
}

func recordName(rv reflect.Value) string {
	if namer, ok := rv.Interface().(RecordNamer); ok {
		return namer.RecordName()
	}
	return reflect.Indirect(rv).Type().Name()
}

// structField describes how a struct field maps to a record field.
type structField struct {
	index     int
	name      string // record field name
	omitEmpty bool
}

// structFields lists the exported fields of rt. A `tlv8:"name,omitempty"` tag
// names the record field; without one the snake_case Go name is used.
// `tlv8:"-"` skips the field.
func structFields(rt reflect.Type) []structField {
	fields := make([]structField, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}

		name := toSnakeCase(sf.Name)
		omitEmpty := false
		if tag, ok := sf.Tag.Lookup("tlv8"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitEmpty = true
				}
			}
		}
		fields = append(fields, structField{index: i, name: name, omitEmpty: omitEmpty})
	}
	return fields
}

// mapToStruct maps parsed result to struct fields
func (c *Codec) mapToStruct(data map[string]interface{}, rv reflect.Value) error {
	if rv.Kind() != reflect.Struct {
		return fmt.Errorf("target must be a struct, got %s", rv.Kind())
	}

	for _, sf := range structFields(rv.Type()) {
		value, ok := data[sf.name]
		if !ok {
			continue
		}
		if err := c.setFieldValue(rv.Field(sf.index), value); err != nil {
			return fmt.Errorf("failed to set field %s: %w", sf.name, err)
		}
	}
	return nil
}

// setFieldValue sets a struct field with type conversion
func (c *Codec) setFieldValue(fieldValue reflect.Value, value interface{}) error {
	if value == nil {
		return nil
	}

	sourceValue := reflect.ValueOf(value)
	if sourceValue.Type().AssignableTo(fieldValue.Type()) {
		fieldValue.Set(sourceValue)
		return nil
	}

	switch fieldValue.Kind() {
	case reflect.Ptr:
		elem := reflect.New(fieldValue.Type().Elem())
		if err := c.setFieldValue(elem.Elem(), value); err != nil {
			return err
		}
		fieldValue.Set(elem)
		return nil
	case reflect.Struct:
		nested, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("cannot convert %T to %s", value, fieldValue.Type())
		}
		return c.mapToStruct(nested, fieldValue)
	case reflect.Slice:
		items, ok := value.([]interface{})
		if !ok {
			break
		}
		slice := reflect.MakeSlice(fieldValue.Type(), len(items), len(items))
		for i, item := range items {
			if err := c.setFieldValue(slice.Index(i), item); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		fieldValue.Set(slice)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		u, ok := value.(uint64)
		if !ok {
			break
		}
		if u > 1<<63-1 || fieldValue.OverflowInt(int64(u)) {
			return fmt.Errorf("value %d overflows %s", u, fieldValue.Type())
		}
		fieldValue.SetInt(int64(u))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, ok := value.(uint64)
		if !ok {
			break
		}
		if fieldValue.OverflowUint(u) {
			return fmt.Errorf("value %d overflows %s", u, fieldValue.Type())
		}
		fieldValue.SetUint(u)
		return nil
	case reflect.Bool:
		if u, ok := value.(uint64); ok {
			fieldValue.SetBool(u != 0)
			return nil
		}
	case reflect.String:
		// numbers must not turn into runes
		if s, ok := value.(string); ok {
			fieldValue.SetString(s)
			return nil
		}
		return fmt.Errorf("cannot convert %T to %s", value, fieldValue.Type())
	}

	if sourceValue.Type().ConvertibleTo(fieldValue.Type()) {
		fieldValue.Set(sourceValue.Convert(fieldValue.Type()))
		return nil
	}

	return fmt.Errorf("cannot convert %T to %s", value, fieldValue.Type())
}

// structToMap is the reverse of mapToStruct
func (c *Codec) structToMap(rv reflect.Value) (map[string]interface{}, error) {
	result := make(map[string]interface{})
	for _, sf := range structFields(rv.Type()) {
		fv := rv.Field(sf.index)
		if sf.omitEmpty && fv.IsZero() {
			continue
		}
		value, present, err := c.fieldToValue(fv)
		if err != nil {
			return nil, fmt.Errorf("failed to read field %s: %w", sf.name, err)
		}
		if present {
			result[sf.name] = value
		}
	}
	return result, nil
}

// fieldToValue converts a struct field to the representation the encoders
// accept. Nil pointers, slices and maps are absent.
func (c *Codec) fieldToValue(fv reflect.Value) (interface{}, bool, error) {
	switch fv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if fv.IsNil() {
			return nil, false, nil
		}
		return c.fieldToValue(fv.Elem())
	case reflect.Struct:
		m, err := c.structToMap(fv)
		return m, err == nil, err
	case reflect.Slice:
		if fv.IsNil() {
			return nil, false, nil
		}
		if fv.Type().Elem().Kind() == reflect.Uint8 {
			return fv.Bytes(), true, nil
		}
		items := make([]interface{}, 0, fv.Len())
		for i := 0; i < fv.Len(); i++ {
			item, _, err := c.fieldToValue(fv.Index(i))
			if err != nil {
				return nil, false, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, item)
		}
		return items, true, nil
	case reflect.Map:
		if fv.IsNil() {
			return nil, false, nil
		}
		return fv.Interface(), true, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fv.Int(), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fv.Uint(), true, nil
	case reflect.String:
		return fv.String(), true, nil
	case reflect.Bool:
		return fv.Bool(), true, nil
	default:
		return nil, false, fmt.Errorf("unsupported field kind %s", fv.Kind())
	}
}

// toSnakeCase converts a Go field name to a record field name: PublicKey ->
// public_key, UserID -> user_id, XMLParser -> xml_parser.
func toSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ===== REGISTRY ACCESS =====

func (c *Codec) Registry() *registry.Registry { return c.registry }
func (c *Codec) ListRecords() []string        { return c.registry.ListRecords() }
func (c *Codec) ListEnums() []string          { return c.registry.ListEnums() }
