package registry

import (
	"fmt"
	"os"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/anirudhraja/tlv8/schema"
)

// LoadDescriptorSet loads a compiled FileDescriptorSet, as written by
// `protoc --descriptor_set_out`, and converts every message and enum it
// contains. Field mapping follows ParseProto.
func LoadDescriptorSet(path string) (*schema.Repo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to unmarshal descriptor set %s: %w", path, err)
	}

	repo, err := FromDescriptorSet(&set)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	repo.Source = path
	return repo, nil
}

// FromDescriptorSet converts an in-memory FileDescriptorSet.
func FromDescriptorSet(set *descriptorpb.FileDescriptorSet) (*schema.Repo, error) {
	files, err := protodesc.NewFiles(set)
	if err != nil {
		return nil, fmt.Errorf("failed to build descriptors: %w", err)
	}

	repo := &schema.Repo{}
	var convErr error
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		part, err := FromFileDescriptor(fd)
		if err != nil {
			convErr = err
			return false
		}
		repo.Records = append(repo.Records, part.Records...)
		repo.Enums = append(repo.Enums, part.Enums...)
		return true
	})
	if convErr != nil {
		return nil, convErr
	}
	return repo, nil
}

// FromFileDescriptor converts the messages and enums of one file, which may
// come from generated code (`File_xxx_proto`).
func FromFileDescriptor(fd protoreflect.FileDescriptor) (*schema.Repo, error) {
	repo := &schema.Repo{Source: fd.Path()}
	addEnums(repo, fd.Enums())
	if err := addMessages(repo, fd.Messages()); err != nil {
		return nil, err
	}
	return repo, nil
}

func addEnums(repo *schema.Repo, enums protoreflect.EnumDescriptors) {
	for i := 0; i < enums.Len(); i++ {
		ed := enums.Get(i)
		en := &schema.Enum{Name: string(ed.FullName())}
		values := ed.Values()
		for j := 0; j < values.Len(); j++ {
			v := values.Get(j)
			if v.Number() < 0 {
				continue
			}
			en.Values = append(en.Values, &schema.EnumValue{
				Name:   string(v.Name()),
				Number: uint64(v.Number()),
			})
		}
		repo.Enums = append(repo.Enums, en)
	}
}

func addMessages(repo *schema.Repo, msgs protoreflect.MessageDescriptors) error {
	for i := 0; i < msgs.Len(); i++ {
		md := msgs.Get(i)
		if md.IsMapEntry() {
			continue
		}
		rec := &schema.Record{Name: string(md.FullName())}
		fields := md.Fields()
		for j := 0; j < fields.Len(); j++ {
			f, err := descriptorField(fields.Get(j))
			if err != nil {
				return fmt.Errorf("message %s: %w", md.FullName(), err)
			}
			rec.Fields = append(rec.Fields, f)
		}
		repo.Records = append(repo.Records, rec)

		addEnums(repo, md.Enums())
		if err := addMessages(repo, md.Messages()); err != nil {
			return err
		}
	}
	return nil
}

func descriptorField(fd protoreflect.FieldDescriptor) (*schema.Field, error) {
	if fd.Number() > 255 {
		return nil, fmt.Errorf("field %s: number %d does not fit a TLV8 tag", fd.Name(), fd.Number())
	}
	if fd.IsMap() {
		return nil, fmt.Errorf("field %s: map fields are not supported", fd.Name())
	}

	field := &schema.Field{
		Name:     string(fd.Name()),
		Tag:      uint8(fd.Number()),
		Required: fd.Cardinality() == protoreflect.Required,
	}

	switch fd.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		if fd.IsList() {
			field.Type = schema.SequenceOf(string(fd.Message().FullName()))
		} else {
			field.Type = schema.RecordOf(string(fd.Message().FullName()))
		}
		return field, nil
	case protoreflect.EnumKind:
		if fd.IsList() {
			return nil, fmt.Errorf("field %s: repeated enums are not supported", fd.Name())
		}
		field.Type = schema.EnumOf(string(fd.Enum().FullName()))
		return field, nil
	}

	if fd.IsList() {
		return nil, fmt.Errorf("field %s: repeated scalars are not supported", fd.Name())
	}
	ft, ok := protoScalars[fd.Kind().String()]
	if !ok {
		return nil, fmt.Errorf("field %s: unsupported kind %s", fd.Name(), fd.Kind())
	}
	field.Type = ft
	return field, nil
}
