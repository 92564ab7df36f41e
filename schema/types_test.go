package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pairingRecord() *Record {
	return &Record{
		Name: "Pairing",
		Fields: []*Field{
			{Name: "identifier", Tag: 1, Type: Text(), Required: true},
			{Name: "public_key", Tag: 3, Type: Bytes()},
			{Name: "permissions", Tag: 11, Type: Integer(1)},
		},
	}
}

func TestRecordLookup(t *testing.T) {
	r := pairingRecord()

	require.NotNil(t, r.FieldByTag(3))
	assert.Equal(t, "public_key", r.FieldByTag(3).Name)
	assert.Nil(t, r.FieldByTag(4))

	require.NotNil(t, r.FieldByName("permissions"))
	assert.Equal(t, uint8(11), r.FieldByName("permissions").Tag)
	assert.Nil(t, r.FieldByName("missing"))

	assert.True(t, r.UsesTag(1))
	assert.False(t, r.UsesTag(0))
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  *Record
		wantErr string
	}{
		{name: "valid", record: pairingRecord()},
		{
			name:    "no name",
			record:  &Record{},
			wantErr: "record has no name",
		},
		{
			name: "duplicate tag",
			record: &Record{Name: "R", Fields: []*Field{
				{Name: "a", Tag: 1, Type: Text()},
				{Name: "b", Tag: 1, Type: Text()},
			}},
			wantErr: "duplicate tag 1",
		},
		{
			name: "duplicate name",
			record: &Record{Name: "R", Fields: []*Field{
				{Name: "a", Tag: 1, Type: Text()},
				{Name: "a", Tag: 2, Type: Text()},
			}},
			wantErr: `duplicate field name "a"`,
		},
		{
			name: "bad width",
			record: &Record{Name: "R", Fields: []*Field{
				{Name: "a", Tag: 1, Type: Integer(3)},
			}},
			wantErr: "invalid integer width 3",
		},
		{
			name: "unnamed field",
			record: &Record{Name: "R", Fields: []*Field{
				{Tag: 1, Type: Text()},
			}},
			wantErr: "field 0 has no name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFieldTypeString(t *testing.T) {
	assert.Equal(t, "integer/1", Integer(0).String())
	assert.Equal(t, "integer/4", Integer(4).String())
	assert.Equal(t, "text", Text().String())
	assert.Equal(t, "enum:Method/1", EnumOf("Method").String())
	assert.Equal(t, "record:Pairing", RecordOf("Pairing").String())
	assert.Equal(t, "sequence:Pairing", SequenceOf("Pairing").String())
	assert.Equal(t, "?record:Pairing", FieldType{Record: "Pairing"}.String())
	assert.Equal(t, "?", FieldType{}.String())
}

func TestEnumLookup(t *testing.T) {
	e := &Enum{Name: "Method", Values: []*EnumValue{
		{Name: "PairSetup", Number: 0},
		{Name: "PairVerify", Number: 2},
	}}

	require.NotNil(t, e.ByNumber(2))
	assert.Equal(t, "PairVerify", e.ByNumber(2).Name)
	assert.Nil(t, e.ByNumber(1))
	require.NotNil(t, e.ByName("PairSetup"))
	assert.Equal(t, uint64(0), e.ByName("PairSetup").Number)
	assert.Nil(t, e.ByName("Nope"))
}
