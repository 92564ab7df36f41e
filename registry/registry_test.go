package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anirudhraja/tlv8/schema"
)

func TestNewRegistry(t *testing.T) {
	registry := NewRegistry()

	require.NotNil(t, registry)
	assert.Empty(t, registry.ListRecords())
	assert.Empty(t, registry.ListEnums())
	assert.Empty(t, registry.Sources())
}

func TestLoadPath_NonExistentPath(t *testing.T) {
	registry := NewRegistry()

	err := registry.LoadPath("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path does not exist")
}

func TestLoadPath_NonSchemaFile(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "test.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("not a schema"), 0o644))

	registry := NewRegistry()
	err := registry.LoadPath(tmpFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a schema file")
}

func TestLoadPath_Directory(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.LoadPath("../testdata/hap"))

	assert.Equal(t, []string{
		"hap.ListPairingsResponse",
		"hap.PairSetupM1",
		"hap.PairSetupM2",
		"hap.Pairing",
		"hap.camera.StreamingStatus",
		"hap.camera.SupportedVideoStreamConfiguration",
		"hap.camera.VideoAttributes",
		"hap.camera.VideoCodecConfiguration",
		"hap.camera.VideoCodecParameters",
	}, registry.ListRecords())
	assert.Equal(t, []string{
		"hap.Method",
		"hap.PairingError",
		"hap.camera.StreamingStatusValue",
	}, registry.ListEnums())
	assert.Len(t, registry.Sources(), 2)
}

func TestLoadPath_IgnoresOtherFilesInDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yml"), []byte(`
records:
  - name: A
    fields:
      - {name: x, tag: 1, type: integer}
`), 0o644))

	registry := NewRegistry()
	require.NoError(t, registry.LoadPath(dir))
	assert.Equal(t, []string{"A"}, registry.ListRecords())
}

func TestLoadPath_FailureLeavesRegistryUnchanged(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.LoadPath("../testdata/hap/pairing.yaml"))
	before := registry.ListRecords()

	tests := []struct {
		name  string
		files map[string]string
	}{
		{
			name: "parse error after a good file",
			files: map[string]string{
				"a.yml": "records: [{name: A, fields: [{name: x, tag: 1, type: integer}]}]",
				"b.yml": "records: [{name: B, fields: [{name: x, tag: 300, type: integer}]}]",
			},
		},
		{
			name: "dangling reference",
			files: map[string]string{
				"a.yml": "records: [{name: A, fields: [{name: kind, tag: 1, type: enum, enum: Missing}]}]",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, data := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
			}

			require.Error(t, registry.LoadPath(dir))
			assert.Equal(t, before, registry.ListRecords())
			assert.Len(t, registry.Sources(), 1)
			require.NoError(t, registry.Validate())
		})
	}
}

func TestLoadRepo_FailureLeavesRegistryUnchanged(t *testing.T) {
	registry := NewRegistry()
	bad := &schema.Record{
		Name:   "p.Bad",
		Fields: []*schema.Field{{Name: "kind", Tag: 1, Type: schema.EnumOf("p.Missing")}},
	}
	err := registry.LoadRepo(&schema.Repo{Records: []*schema.Record{bad}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enum not found: p.Missing")
	assert.Empty(t, registry.ListRecords())

	// the same name can be registered once the definition is fixed
	good := &schema.Record{
		Name:   "p.Bad",
		Fields: []*schema.Field{{Name: "kind", Tag: 1, Type: schema.Integer(1)}},
	}
	require.NoError(t, registry.LoadRepo(&schema.Repo{Records: []*schema.Record{good}}))
	assert.Equal(t, []string{"p.Bad"}, registry.ListRecords())
}

func TestJoinName(t *testing.T) {
	tests := []struct {
		pkg      string
		name     string
		expected string
	}{
		{"", "Record", "Record"},
		{"hap", "Record", "hap.Record"},
		{"hap.camera", "Record", "hap.camera.Record"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, joinName(test.pkg, test.name))
	}
}

func TestGetRecord(t *testing.T) {
	registry := NewRegistry()
	rec := &schema.Record{
		Name:   "hap.Pairing",
		Fields: []*schema.Field{{Name: "identifier", Tag: 1, Type: schema.Text()}},
	}
	require.NoError(t, registry.Register(rec))

	got, err := registry.GetRecord("hap.Pairing")
	require.NoError(t, err)
	assert.Same(t, rec, got)

	// suffix match
	got, err = registry.GetRecord("Pairing")
	require.NoError(t, err)
	assert.Same(t, rec, got)

	_, err = registry.GetRecord("Missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record not found")

	// a partial name is not a suffix match
	_, err = registry.GetRecord("airing")
	assert.Error(t, err)
}

func TestGetEnum(t *testing.T) {
	registry := NewRegistry()
	en := &schema.Enum{Name: "hap.Method", Values: []*schema.EnumValue{{Name: "PairSetup", Number: 0}}}
	require.NoError(t, registry.RegisterEnum(en))

	got, err := registry.GetEnum("Method")
	require.NoError(t, err)
	assert.Same(t, en, got)

	_, err = registry.GetEnum("Other")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enum not found")
}

func TestRegister_Duplicates(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&schema.Record{Name: "R"}))

	err := registry.Register(&schema.Record{Name: "R"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	require.NoError(t, registry.RegisterEnum(&schema.Enum{Name: "E"}))
	err = registry.RegisterEnum(&schema.Enum{Name: "E"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	err = registry.RegisterEnum(&schema.Enum{})
	assert.Error(t, err)
}

func TestRegister_InvalidRecord(t *testing.T) {
	registry := NewRegistry()
	err := registry.Register(&schema.Record{Name: "R", Fields: []*schema.Field{
		{Name: "a", Tag: 1, Type: schema.Text()},
		{Name: "b", Tag: 1, Type: schema.Text()},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate tag")
	assert.Empty(t, registry.ListRecords())
}

func TestValidate(t *testing.T) {
	item := &schema.Record{Name: "Item", Fields: []*schema.Field{
		{Name: "id", Tag: 1, Type: schema.Integer(1)},
	}}
	separatorItem := &schema.Record{Name: "BadItem", Fields: []*schema.Field{
		{Name: "id", Tag: 0, Type: schema.Integer(1)},
	}}
	method := &schema.Enum{Name: "Method"}

	tests := []struct {
		name    string
		field   *schema.Field
		wantErr string
	}{
		{name: "integer", field: &schema.Field{Name: "f", Tag: 1, Type: schema.Integer(2)}},
		{name: "enum", field: &schema.Field{Name: "f", Tag: 1, Type: schema.EnumOf("Method")}},
		{name: "record", field: &schema.Field{Name: "f", Tag: 1, Type: schema.RecordOf("Item")}},
		{name: "sequence", field: &schema.Field{Name: "f", Tag: 1, Type: schema.SequenceOf("Item")}},
		{name: "capability record", field: &schema.Field{Name: "f", Tag: 1, Type: schema.FieldType{Record: "Item"}}},
		{name: "capability enum", field: &schema.Field{Name: "f", Tag: 1, Type: schema.FieldType{Enum: "Method"}}},
		{
			name:    "missing enum",
			field:   &schema.Field{Name: "f", Tag: 1, Type: schema.EnumOf("Nope")},
			wantErr: "enum not found: Nope",
		},
		{
			name:    "missing record",
			field:   &schema.Field{Name: "f", Tag: 1, Type: schema.RecordOf("Nope")},
			wantErr: "record not found: Nope",
		},
		{
			name:    "sequence item uses separator tag",
			field:   &schema.Field{Name: "f", Tag: 1, Type: schema.SequenceOf("BadItem")},
			wantErr: "uses separator tag 0",
		},
		{
			name:    "unknown kind",
			field:   &schema.Field{Name: "f", Tag: 1, Type: schema.FieldType{Kind: "float"}},
			wantErr: `unknown kind "float"`,
		},
		{
			name:    "no type",
			field:   &schema.Field{Name: "f", Tag: 1},
			wantErr: "no type declared",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry()
			require.NoError(t, registry.Register(item, separatorItem))
			require.NoError(t, registry.RegisterEnum(method))
			require.NoError(t, registry.Register(&schema.Record{Name: "Outer", Fields: []*schema.Field{tt.field}}))

			err := registry.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRepo(t *testing.T) {
	registry := NewRegistry()
	require.Error(t, registry.LoadRepo(nil))

	err := registry.LoadRepo(&schema.Repo{Records: []*schema.Record{
		{Name: "Outer", Fields: []*schema.Field{{Name: "inner", Tag: 1, Type: schema.RecordOf("Inner")}}},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record not found: Inner")
}
