package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/anirudhraja/tlv8/schema"
)

// RawSchemaFile is the YAML layout of a schema file.
type RawSchemaFile struct {
	Package string         `yaml:"package"`
	Enums   []RawEnumDef   `yaml:"enums"`
	Records []RawRecordDef `yaml:"records"`
}

// RawEnumDef represents an enum type definition.
type RawEnumDef struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Values      []RawEnumValue `yaml:"values"`
}

// RawEnumValue represents a single enum value.
type RawEnumValue struct {
	Name  string `yaml:"name"`
	Value uint64 `yaml:"value"`
}

// RawRecordDef represents a record definition.
type RawRecordDef struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Fields      []RawFieldDef `yaml:"fields"`
}

// RawFieldDef represents one field of a record definition.
type RawFieldDef struct {
	Name     string `yaml:"name"`
	Tag      *int   `yaml:"tag"`
	Type     string `yaml:"type"`   // "integer", "text", "bytes", "enum", "record", "sequence"
	Width    int    `yaml:"width"`  // integer and enum width in bytes
	Enum     string `yaml:"enum"`   // for enum fields
	Record   string `yaml:"record"` // for record and sequence fields
	Required bool   `yaml:"required"`
}

// ParseYAML parses record and enum definitions from YAML bytes.
func ParseYAML(data []byte) (*schema.Repo, error) {
	var raw RawSchemaFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing schema yaml: %w", err)
	}

	repo := &schema.Repo{}
	for _, re := range raw.Enums {
		if re.Name == "" {
			return nil, fmt.Errorf("enum definition missing name")
		}
		en := &schema.Enum{Name: joinName(raw.Package, re.Name)}
		for _, v := range re.Values {
			en.Values = append(en.Values, &schema.EnumValue{Name: v.Name, Number: v.Value})
		}
		repo.Enums = append(repo.Enums, en)
	}

	for _, rr := range raw.Records {
		if rr.Name == "" {
			return nil, fmt.Errorf("record definition missing name")
		}
		rec := &schema.Record{Name: joinName(raw.Package, rr.Name)}
		for _, rf := range rr.Fields {
			f, err := rf.toField()
			if err != nil {
				return nil, fmt.Errorf("record %s: %w", rec.Name, err)
			}
			rec.Fields = append(rec.Fields, f)
		}
		repo.Records = append(repo.Records, rec)
	}

	return repo, nil
}

func (rf RawFieldDef) toField() (*schema.Field, error) {
	if rf.Tag == nil {
		return nil, fmt.Errorf("field %q missing tag", rf.Name)
	}
	if *rf.Tag < 0 || *rf.Tag > 255 {
		return nil, fmt.Errorf("field %q: tag %d out of range", rf.Name, *rf.Tag)
	}

	kind := schema.TypeKind(rf.Type)
	switch kind {
	case schema.KindInteger, schema.KindText, schema.KindBytes,
		schema.KindEnum, schema.KindRecord, schema.KindSequence, "":
	default:
		return nil, fmt.Errorf("field %q: unknown type %q", rf.Name, rf.Type)
	}

	return &schema.Field{
		Name: rf.Name,
		Tag:  uint8(*rf.Tag),
		Type: schema.FieldType{
			Kind:   kind,
			Width:  rf.Width,
			Enum:   rf.Enum,
			Record: rf.Record,
		},
		Required: rf.Required,
	}, nil
}

// LoadYAMLFile loads and parses a YAML schema file.
func LoadYAMLFile(path string) (*schema.Repo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	repo, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	repo.Source = path
	return repo, nil
}
