package registry

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	protoparser "github.com/yoheimuta/go-protoparser/v4"
	protoparserparser "github.com/yoheimuta/go-protoparser/v4/parser"

	"github.com/anirudhraja/tlv8/schema"
)

// Scalar proto types and the TLV8 field type they map to. Variable length
// integers default to one byte on the wire; fixed types keep their width.
var protoScalars = map[string]schema.FieldType{
	"bool":     schema.Integer(1),
	"int32":    schema.Integer(1),
	"int64":    schema.Integer(1),
	"uint32":   schema.Integer(1),
	"uint64":   schema.Integer(1),
	"sint32":   schema.Integer(1),
	"sint64":   schema.Integer(1),
	"fixed32":  schema.Integer(4),
	"sfixed32": schema.Integer(4),
	"fixed64":  schema.Integer(8),
	"sfixed64": schema.Integer(8),
	"string":   schema.Text(),
	"bytes":    schema.Bytes(),
}

// LoadProtoFile parses a .proto file into a schema repo.
func LoadProtoFile(path string) (*schema.Repo, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	repo, err := ParseProto(bytes.NewReader(content), filepath.Base(path))
	if err != nil {
		return nil, err
	}
	repo.Source = path
	return repo, nil
}

// ParseProto converts a .proto definition into TLV8 record schemas.
//
// Every message becomes a record named after its fully qualified name and
// every field number becomes the field's tag, so numbers must fit in a byte.
// Message typed fields become nested records, repeated message fields become
// sequences. Integer widths can be overridden with a `[(width) = N]` field
// option; `required` (proto2 label or `[(required) = true]`) marks the field
// as required on decode.
func ParseProto(r io.Reader, filename string) (*schema.Repo, error) {
	parsed, err := protoparser.Parse(r, protoparser.WithFilename(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	pkg := ""
	for _, body := range parsed.ProtoBody {
		if p, ok := body.(*protoparserparser.Package); ok {
			pkg = p.Name
		}
	}

	b := &protoBuilder{
		pkg:      pkg,
		entities: make(map[string]struct{}),
		enums:    make(map[string]struct{}),
		repo:     &schema.Repo{},
	}

	// Pass 1: register all message and enum names
	for _, body := range parsed.ProtoBody {
		b.registerNames(body, pkg)
	}

	// Pass 2: build definitions with resolved references
	for _, body := range parsed.ProtoBody {
		if err := b.build(body, pkg); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	}

	return b.repo, nil
}

type protoBuilder struct {
	pkg      string
	entities map[string]struct{} // every message and enum full name
	enums    map[string]struct{} // enum full names only
	repo     *schema.Repo
}

func joinName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func (b *protoBuilder) registerNames(body protoparserparser.Visitee, prefix string) {
	switch v := body.(type) {
	case *protoparserparser.Message:
		full := joinName(prefix, v.MessageName)
		b.entities[full] = struct{}{}
		for _, nested := range v.MessageBody {
			b.registerNames(nested, full)
		}
	case *protoparserparser.Enum:
		full := joinName(prefix, v.EnumName)
		b.entities[full] = struct{}{}
		b.enums[full] = struct{}{}
	}
}

func (b *protoBuilder) build(body protoparserparser.Visitee, prefix string) error {
	switch v := body.(type) {
	case *protoparserparser.Message:
		full := joinName(prefix, v.MessageName)
		rec := &schema.Record{Name: full}
		for _, item := range v.MessageBody {
			switch item := item.(type) {
			case *protoparserparser.Field:
				f, err := b.buildField(item, full)
				if err != nil {
					return fmt.Errorf("message %s: %w", full, err)
				}
				rec.Fields = append(rec.Fields, f)
			case *protoparserparser.Message, *protoparserparser.Enum:
				if err := b.build(item, full); err != nil {
					return err
				}
			}
		}
		b.repo.Records = append(b.repo.Records, rec)
	case *protoparserparser.Enum:
		en, err := buildEnum(v, joinName(prefix, v.EnumName))
		if err != nil {
			return err
		}
		b.repo.Enums = append(b.repo.Enums, en)
	}
	return nil
}

func (b *protoBuilder) buildField(pf *protoparserparser.Field, scope string) (*schema.Field, error) {
	number, err := strconv.Atoi(pf.FieldNumber)
	if err != nil {
		return nil, fmt.Errorf("field %s: invalid number %q", pf.FieldName, pf.FieldNumber)
	}
	if number < 0 || number > 255 {
		return nil, fmt.Errorf("field %s: number %d does not fit a TLV8 tag", pf.FieldName, number)
	}

	field := &schema.Field{
		Name:     pf.FieldName,
		Tag:      uint8(number),
		Required: pf.IsRequired,
	}

	if ft, ok := protoScalars[pf.Type]; ok {
		if pf.IsRepeated {
			return nil, fmt.Errorf("field %s: repeated scalars are not supported", pf.FieldName)
		}
		field.Type = ft
	} else {
		ref, err := getReferencedType(pf.Type, scope, b.entities)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", pf.FieldName, err)
		}
		switch _, isEnum := b.enums[ref]; {
		case isEnum && pf.IsRepeated:
			return nil, fmt.Errorf("field %s: repeated enums are not supported", pf.FieldName)
		case isEnum:
			field.Type = schema.EnumOf(ref)
		case pf.IsRepeated:
			field.Type = schema.SequenceOf(ref)
		default:
			field.Type = schema.RecordOf(ref)
		}
	}

	for _, opt := range pf.FieldOptions {
		switch optionName(opt.OptionName) {
		case "width":
			w, err := strconv.Atoi(opt.Constant)
			if err != nil || !schema.IsValidWidth(w) {
				return nil, fmt.Errorf("field %s: invalid width %q", pf.FieldName, opt.Constant)
			}
			field.Type.Width = w
		case "required":
			field.Required = opt.Constant == "true"
		}
	}

	return field, nil
}

// optionName strips the parentheses and package of a custom option name.
func optionName(name string) string {
	name = strings.Trim(name, "()")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func buildEnum(pe *protoparserparser.Enum, fullName string) (*schema.Enum, error) {
	en := &schema.Enum{Name: fullName}
	for _, item := range pe.EnumBody {
		ef, ok := item.(*protoparserparser.EnumField)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(ef.Number, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("enum %s: invalid value %s = %q", fullName, ef.Ident, ef.Number)
		}
		en.Values = append(en.Values, &schema.EnumValue{Name: ef.Ident, Number: n})
	}
	return en, nil
}

/*
getReferencedType returns the entity for any referenced type,
be it top level, nested or from the same package. If not found it returns an error.
Ref - https://github.com/protocolbuffers/protobuf/blob/b7a5772caf08d62a20fd1bca258f501fa4db022c/src/google/protobuf/descriptor.proto#L186-L191
*/
func getReferencedType(typeName, prefix string, allResolvedEntities map[string]struct{}) (string, error) {
	// check if fully qualifed prefixed by dot
	if strings.HasPrefix(typeName, ".") {
		return getFullyQualifiedType(typeName, allResolvedEntities)
	}
	// try resolving from inner entities up till the parent package
	if result, ok := splitNameAndCheck(typeName, prefix, allResolvedEntities); ok {
		return result, nil
	}
	//  check if the entity is referenced with its full name
	if _, ok := allResolvedEntities[typeName]; ok {
		return typeName, nil
	}
	return "", fmt.Errorf("unable to resolve type name: %s", typeName)
}

// splitNameAndCheck splits the prefixName and tries to append the typeName and find the entity for resolution
// it also tries the find the entities defined using relative path
func splitNameAndCheck(typeName, prefix string, allResolvedEntities map[string]struct{}) (string, bool) {
	prefixSplit := strings.Split(prefix, ".")

	for len(prefixSplit) > 0 && prefixSplit[0] != "" {
		entityName := strings.Join(prefixSplit, ".") + "." + typeName
		if _, ok := allResolvedEntities[entityName]; ok {
			return entityName, true
		}
		// Omit the last element in each iteration as we go level above to outer entity
		prefixSplit = prefixSplit[:len(prefixSplit)-1]
	}
	return "", false
}

func getFullyQualifiedType(typeName string, allResolvedEntities map[string]struct{}) (string, error) {
	typeName = strings.TrimPrefix(typeName, ".")
	if _, ok := allResolvedEntities[typeName]; ok {
		return typeName, nil
	}
	return "", fmt.Errorf("unable to resolve fully qualified type name: %s", typeName)
}
