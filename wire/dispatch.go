package wire

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/anirudhraja/tlv8/registry"
	"github.com/anirudhraja/tlv8/schema"
)

// converter pairs the two directions of one declared type.
type converter struct {
	decode DecodeFunc
	encode EncodeFunc
}

// Dispatcher resolves declared field types to converters. It compiles every
// record of the registry once; after construction only the memo cache
// changes. Safe for concurrent use.
type Dispatcher struct {
	registry *registry.Registry
	config   Config
	logger   zerolog.Logger
	records  map[string]*RecordCodec // fully qualified name -> compiled codec
	cache    sync.Map                // FieldType.String() -> *converter
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithConfig sets the decoding behavior toggles.
func WithConfig(c Config) DispatcherOption {
	return func(d *Dispatcher) { d.config = c }
}

// WithLogger sets the logger used while compiling.
func WithLogger(l zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher compiles every record registered in reg. A nil registry
// yields a dispatcher that only knows the primitive types.
func NewDispatcher(reg *registry.Registry, opts ...DispatcherOption) (*Dispatcher, error) {
	d := &Dispatcher{
		registry: reg,
		config:   DefaultConfig(),
		logger:   zerolog.Nop(),
		records:  make(map[string]*RecordCodec),
	}
	for _, opt := range opts {
		opt(d)
	}
	if reg == nil {
		return d, nil
	}

	// First pass creates every codec so that record and sequence fields can
	// point at codecs not yet bound, including their own.
	names := reg.ListRecords()
	for _, name := range names {
		rec, err := reg.GetRecord(name)
		if err != nil {
			return nil, err
		}
		d.records[name] = newRecordCodec(rec)
	}

	for _, name := range names {
		if err := d.records[name].bind(d); err != nil {
			return nil, fmt.Errorf("failed to compile record %s: %w", name, err)
		}
	}

	d.logger.Debug().Int("records", len(d.records)).Msg("record codecs compiled")
	return d, nil
}

// Config returns the behavior toggles the dispatcher was built with.
func (d *Dispatcher) Config() Config {
	return d.config
}

// Record returns the compiled codec of a record type. Short names are
// resolved like registry lookups.
func (d *Dispatcher) Record(name string) (*RecordCodec, error) {
	if codec, ok := d.records[name]; ok {
		return codec, nil
	}
	if d.registry != nil {
		if rec, err := d.registry.GetRecord(name); err == nil {
			if codec, ok := d.records[rec.Name]; ok {
				return codec, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownRecord, name)
}

// ResolveDecoder returns the decode converter of a declared type.
func (d *Dispatcher) ResolveDecoder(ft schema.FieldType) (DecodeFunc, error) {
	c, err := d.resolve(ft)
	if err != nil {
		return nil, err
	}
	return c.decode, nil
}

// ResolveEncoder returns the encode converter of a declared type.
func (d *Dispatcher) ResolveEncoder(ft schema.FieldType) (EncodeFunc, error) {
	c, err := d.resolve(ft)
	if err != nil {
		return nil, err
	}
	return c.encode, nil
}

func (d *Dispatcher) resolve(ft schema.FieldType) (*converter, error) {
	key := ft.String()
	if c, ok := d.cache.Load(key); ok {
		return c.(*converter), nil
	}

	c, err := d.build(ft)
	if err != nil {
		return nil, err
	}
	// Concurrent builds of the same type are equivalent; keep whichever landed first.
	actual, _ := d.cache.LoadOrStore(key, c)
	return actual.(*converter), nil
}

// build resolves exact primitive kinds first, then the record, enum and
// sequence categories, then types that only name a record or an enum.
func (d *Dispatcher) build(ft schema.FieldType) (*converter, error) {
	if c, ok := primitiveConverter(ft); ok {
		return c, nil
	}

	switch ft.Kind {
	case schema.KindRecord, schema.KindSequence, schema.KindEnum:
		return d.categoryConverter(ft.Kind, ft)
	case "":
		if ft.Record != "" {
			return d.categoryConverter(schema.KindRecord, ft)
		}
		if ft.Enum != "" {
			return d.categoryConverter(schema.KindEnum, ft)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ft)
}

func primitiveConverter(ft schema.FieldType) (*converter, bool) {
	switch ft.Kind {
	case schema.KindInteger:
		if !schema.IsValidWidth(ft.Width) {
			return nil, false
		}
		return &converter{decode: integerDecoder(), encode: integerEncoder(ft.IntegerWidth())}, true
	case schema.KindText:
		return &converter{decode: textDecoder(), encode: textEncoder()}, true
	case schema.KindBytes:
		return &converter{decode: bytesDecoder(), encode: bytesEncoder()}, true
	default:
		return nil, false
	}
}

func (d *Dispatcher) categoryConverter(kind schema.TypeKind, ft schema.FieldType) (*converter, error) {
	switch kind {
	case schema.KindRecord, schema.KindSequence:
		if ft.Record == "" {
			return nil, fmt.Errorf("%w: %s has no record name", ErrUnsupportedType, ft)
		}
		codec, err := d.Record(ft.Record)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedType, err)
		}
		if kind == schema.KindSequence {
			return &converter{decode: sequenceDecoder(codec), encode: sequenceEncoder(codec)}, nil
		}
		return &converter{decode: recordDecoder(codec), encode: recordEncoder(codec)}, nil
	default:
		if ft.Enum == "" || d.registry == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ft)
		}
		if !schema.IsValidWidth(ft.Width) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ft)
		}
		en, err := d.registry.GetEnum(ft.Enum)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedType, err)
		}
		return &converter{
			decode: enumDecoder(en, d.config),
			encode: enumEncoder(en, ft.IntegerWidth(), d.config),
		}, nil
	}
}
