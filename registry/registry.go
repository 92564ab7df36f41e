package registry

import (
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/anirudhraja/tlv8/schema"
)

// Registry stores the record and enum schemas. The codec looks them up by
// name when it needs to encode or decode a record.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*schema.Record // fully qualified name -> record
	enums   map[string]*schema.Enum   // fully qualified name -> enum
	sources []string                  // loaded files, in load order
	logger  zerolog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for schema loading events.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		records: make(map[string]*schema.Record),
		enums:   make(map[string]*schema.Enum),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadPath loads a schema file, or every schema file below a directory.
// Files are dispatched on their extension: .proto, .yaml/.yml and compiled
// descriptor sets (.pb, .binpb, .desc). Other files are ignored when walking
// a directory and rejected when named directly.
// A path that fails to load or validate leaves the registry as it was.
func (r *Registry) LoadPath(path string) error {
	return r.atomically(func() error { return r.loadPath(path) })
}

func (r *Registry) loadPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	if !info.IsDir() {
		loader := loaderFor(path)
		if loader == nil {
			return fmt.Errorf("file %s is not a schema file", path)
		}
		if err := r.loadFile(path, loader); err != nil {
			return fmt.Errorf("failed to load schema file: %w", err)
		}
		return r.Validate()
	}

	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		loader := loaderFor(p)
		if loader == nil {
			return nil
		}
		if err := r.loadFile(p, loader); err != nil {
			return fmt.Errorf("failed to load schema file %s: %w", p, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk directory: %w", err)
	}

	return r.Validate()
}

type fileLoader func(path string) (*schema.Repo, error)

func loaderFor(path string) fileLoader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".proto":
		return LoadProtoFile
	case ".yaml", ".yml":
		return LoadYAMLFile
	case ".pb", ".binpb", ".desc":
		return LoadDescriptorSet
	default:
		return nil
	}
}

func (r *Registry) loadFile(path string, loader fileLoader) error {
	repo, err := loader(path)
	if err != nil {
		return err
	}
	if err := r.add(repo); err != nil {
		return err
	}
	r.logger.Debug().
		Str("file", path).
		Int("records", len(repo.Records)).
		Int("enums", len(repo.Enums)).
		Msg("schema file loaded")
	return nil
}

// LoadRepo registers every definition of repo and validates the result. On
// failure none of the definitions stay registered.
func (r *Registry) LoadRepo(repo *schema.Repo) error {
	if repo == nil {
		return fmt.Errorf("repo is nil")
	}
	return r.atomically(func() error {
		if err := r.add(repo); err != nil {
			return err
		}
		return r.Validate()
	})
}

type checkpoint struct {
	records map[string]*schema.Record
	enums   map[string]*schema.Enum
	sources int
}

// atomically runs fn and restores the registered definitions if it fails.
// Concurrent writers must be serialized by the caller.
func (r *Registry) atomically(fn func() error) error {
	r.mu.RLock()
	cp := checkpoint{
		records: maps.Clone(r.records),
		enums:   maps.Clone(r.enums),
		sources: len(r.sources),
	}
	r.mu.RUnlock()

	if err := fn(); err != nil {
		r.mu.Lock()
		r.records = cp.records
		r.enums = cp.enums
		r.sources = r.sources[:cp.sources]
		r.mu.Unlock()
		r.logger.Debug().Err(err).Msg("schema load rolled back")
		return err
	}
	return nil
}

// Register adds records to the registry without cross-reference validation.
// Call Validate once the full set is registered.
func (r *Registry) Register(records ...*schema.Record) error {
	return r.add(&schema.Repo{Records: records})
}

// RegisterEnum adds enums to the registry.
func (r *Registry) RegisterEnum(enums ...*schema.Enum) error {
	return r.add(&schema.Repo{Enums: enums})
}

func (r *Registry) add(repo *schema.Repo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range repo.Records {
		if err := rec.Validate(); err != nil {
			return err
		}
		if _, exists := r.records[rec.Name]; exists {
			return fmt.Errorf("record %s already registered", rec.Name)
		}
	}
	for _, en := range repo.Enums {
		if en == nil || en.Name == "" {
			return fmt.Errorf("enum has no name")
		}
		if _, exists := r.enums[en.Name]; exists {
			return fmt.Errorf("enum %s already registered", en.Name)
		}
	}

	for _, rec := range repo.Records {
		r.records[rec.Name] = rec
		r.logger.Debug().Str("record", rec.Name).Int("fields", len(rec.Fields)).Msg("record registered")
	}
	for _, en := range repo.Enums {
		r.enums[en.Name] = en
	}
	if repo.Source != "" {
		r.sources = append(r.sources, repo.Source)
	}
	return nil
}

// Validate checks cross references between the registered schemas: every
// field kind is known, referenced records and enums exist, records used as
// sequence items do not use the separator tag.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range sortedKeys(r.records) {
		rec := r.records[name]
		for _, f := range rec.Fields {
			if err := r.validateField(rec, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) validateField(rec *schema.Record, f *schema.Field) error {
	switch f.Type.Kind {
	case schema.KindInteger, schema.KindText, schema.KindBytes:
		return nil
	case schema.KindEnum:
		if _, err := r.lookupEnum(f.Type.Enum); err != nil {
			return fmt.Errorf("record %s field %s: %w", rec.Name, f.Name, err)
		}
		return nil
	case schema.KindRecord:
		if _, err := r.lookupRecord(f.Type.Record); err != nil {
			return fmt.Errorf("record %s field %s: %w", rec.Name, f.Name, err)
		}
		return nil
	case schema.KindSequence:
		item, err := r.lookupRecord(f.Type.Record)
		if err != nil {
			return fmt.Errorf("record %s field %s: %w", rec.Name, f.Name, err)
		}
		if item.UsesTag(0) {
			return fmt.Errorf("record %s field %s: sequence item %s uses separator tag 0", rec.Name, f.Name, item.Name)
		}
		return nil
	case "":
		// capability-only declaration, resolved by reference
		if f.Type.Record != "" {
			if _, err := r.lookupRecord(f.Type.Record); err != nil {
				return fmt.Errorf("record %s field %s: %w", rec.Name, f.Name, err)
			}
			return nil
		}
		if f.Type.Enum != "" {
			if _, err := r.lookupEnum(f.Type.Enum); err != nil {
				return fmt.Errorf("record %s field %s: %w", rec.Name, f.Name, err)
			}
			return nil
		}
		return fmt.Errorf("record %s field %s: no type declared", rec.Name, f.Name)
	default:
		return fmt.Errorf("record %s field %s: unknown kind %q", rec.Name, f.Name, f.Type.Kind)
	}
}

// GetRecord retrieves a record definition by name
func (r *Registry) GetRecord(name string) (*schema.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupRecord(name)
}

func (r *Registry) lookupRecord(name string) (*schema.Record, error) {
	if rec, exists := r.records[name]; exists {
		return rec, nil
	}

	// Try without package prefix
	for _, fullName := range sortedKeys(r.records) {
		if strings.HasSuffix(fullName, "."+name) {
			return r.records[fullName], nil
		}
	}

	return nil, fmt.Errorf("record not found: %s", name)
}

// GetEnum retrieves an enum definition by name
func (r *Registry) GetEnum(name string) (*schema.Enum, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookupEnum(name)
}

func (r *Registry) lookupEnum(name string) (*schema.Enum, error) {
	if enum, exists := r.enums[name]; exists {
		return enum, nil
	}

	// Try without package prefix
	for _, fullName := range sortedKeys(r.enums) {
		if strings.HasSuffix(fullName, "."+name) {
			return r.enums[fullName], nil
		}
	}

	return nil, fmt.Errorf("enum not found: %s", name)
}

// ListRecords returns all registered record names, sorted
func (r *Registry) ListRecords() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.records)
}

// ListEnums returns all registered enum names, sorted
func (r *Registry) ListEnums() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.enums)
}

// Sources returns the schema files loaded so far.
func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.sources...)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
