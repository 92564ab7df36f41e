package tlv8

import (
	"bytes"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anirudhraja/tlv8/schema"
	"github.com/anirudhraja/tlv8/wire"
)

type PairSetupM1 struct {
	Method string
	State  int
}

type Pairing struct {
	Identifier  string
	PublicKey   []byte `tlv8:"public_key,omitempty"`
	Permissions uint8  `tlv8:",omitempty"`
	Note        string `tlv8:"-"`
}

type ListPairingsResponse struct {
	State    uint8
	Pairings []Pairing
}

type videoAttributes struct {
	ImageWidth  uint16
	ImageHeight uint16
	FrameRate   uint8
}

func (videoAttributes) RecordName() string { return "hap.camera.VideoAttributes" }

func newTestCodec(t *testing.T) *Codec {
	t.Helper()

	codec := New()
	require.NoError(t, codec.LoadSchema("testdata/hap"))
	return codec
}

func TestCodec_ParseAndMarshal(t *testing.T) {
	codec := newTestCodec(t)

	t.Run("integer_field", func(t *testing.T) {
		data, err := codec.Marshal(map[string]interface{}{"method": "PairSetup", "state": 1}, "hap.PairSetupM1")
		require.NoError(t, err)
		assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x06, 0x01, 0x01}, data)

		result, err := codec.Parse(data, "PairSetupM1")
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"method": "PairSetup", "state": uint64(1)}, result)
	})

	t.Run("unknown_record", func(t *testing.T) {
		_, err := codec.Parse([]byte{}, "hap.Nope")
		assert.ErrorIs(t, err, wire.ErrUnknownRecord)

		_, err = codec.Marshal(map[string]interface{}{}, "hap.Nope")
		assert.ErrorIs(t, err, wire.ErrUnknownRecord)
	})

	t.Run("unknown_tag", func(t *testing.T) {
		_, err := codec.Parse([]byte{0x06, 0x01, 0x02, 0x09, 0x00}, "hap.PairSetupM2")
		assert.ErrorIs(t, err, wire.ErrUnknownTag)
	})
}

func TestCodec_SchemaRequired(t *testing.T) {
	codec := New()
	assert.Empty(t, codec.ListRecords())
	assert.Empty(t, codec.ListEnums())

	_, err := codec.Parse([]byte{0x01, 0x01, 0x09}, "Counter")
	assert.ErrorIs(t, err, wire.ErrUnknownRecord)

	require.Error(t, codec.LoadSchema("testdata/missing"))
	require.Error(t, codec.LoadRepo(nil))
}

func TestCodec_RegisterInCode(t *testing.T) {
	codec := New(WithConfig(wire.Config{AllowUnknownEnumNumberDecode: true}))

	require.NoError(t, codec.RegisterEnum(&schema.Enum{
		Name:   "demo.Color",
		Values: []*schema.EnumValue{{Name: "Red", Number: 1}},
	}))
	require.NoError(t, codec.Register(&schema.Record{
		Name: "demo.Lamp",
		Fields: []*schema.Field{
			{Name: "color", Tag: 1, Type: schema.EnumOf("demo.Color")},
			{Name: "level", Tag: 2, Type: schema.Integer(2)},
		},
	}))
	assert.Equal(t, []string{"demo.Lamp"}, codec.ListRecords())
	assert.Equal(t, []string{"demo.Color"}, codec.ListEnums())
	assert.NotNil(t, codec.Registry())

	result, err := codec.Parse([]byte{0x01, 0x01, 0x05, 0x02, 0x02, 0xe8, 0x03}, "Lamp")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"color": uint64(5), "level": uint64(1000)}, result)

	err = codec.Register(&schema.Record{
		Name:   "demo.Broken",
		Fields: []*schema.Field{{Name: "x", Tag: 1, Type: schema.RecordOf("demo.Missing")}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record not found: demo.Missing")
}

func TestCodec_RegisterAfterFailure(t *testing.T) {
	codec := New()

	err := codec.Register(&schema.Record{
		Name:   "p.Bad",
		Fields: []*schema.Field{{Name: "kind", Tag: 1, Type: schema.EnumOf("p.Missing")}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enum not found: p.Missing")
	assert.Empty(t, codec.ListRecords())

	require.NoError(t, codec.Register(&schema.Record{
		Name:   "p.Good",
		Fields: []*schema.Field{{Name: "value", Tag: 1, Type: schema.Integer(1)}},
	}))
	assert.Equal(t, []string{"p.Good"}, codec.ListRecords())

	data, err := codec.Marshal(map[string]interface{}{"value": 7}, "p.Good")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x01, 0x07}, data)

	// a failed directory load keeps the codec usable too
	require.Error(t, codec.LoadSchema("/nonexistent/path"))
	_, err = codec.Parse(data, "p.Good")
	require.NoError(t, err)
}

func TestCodec_LoadRepo(t *testing.T) {
	codec := New()
	require.NoError(t, codec.LoadRepo(&schema.Repo{
		Records: []*schema.Record{{
			Name:   "demo.Counter",
			Fields: []*schema.Field{{Name: "value", Tag: 1, Type: schema.Integer(1)}},
		}},
	}))

	data, err := codec.Marshal(map[string]interface{}{"value": 9}, "demo.Counter")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x01, 0x09}, data)
}

func TestCodec_UnmarshalToStruct(t *testing.T) {
	codec := newTestCodec(t)

	t.Run("simple_struct", func(t *testing.T) {
		var m1 PairSetupM1
		require.NoError(t, codec.Unmarshal([]byte{0x00, 0x01, 0x02, 0x06, 0x01, 0x01}, &m1))
		assert.Equal(t, PairSetupM1{Method: "PairVerify", State: 1}, m1)
	})

	t.Run("nested_sequence", func(t *testing.T) {
		in := map[string]interface{}{
			"state": 2,
			"pairings": []interface{}{
				map[string]interface{}{"identifier": "a", "public_key": []byte{1, 2}, "permissions": 1},
				map[string]interface{}{"identifier": "b"},
			},
		}
		data, err := codec.Marshal(in, "hap.ListPairingsResponse")
		require.NoError(t, err)

		var resp ListPairingsResponse
		require.NoError(t, codec.Unmarshal(data, &resp))
		assert.Equal(t, ListPairingsResponse{
			State: 2,
			Pairings: []Pairing{
				{Identifier: "a", PublicKey: []byte{1, 2}, Permissions: 1},
				{Identifier: "b"},
			},
		}, resp)
	})

	t.Run("record_name_method", func(t *testing.T) {
		var attrs videoAttributes
		require.NoError(t, codec.Unmarshal([]byte{0x01, 0x02, 0x80, 0x07, 0x02, 0x02, 0x38, 0x04, 0x03, 0x01, 0x1e}, &attrs))
		assert.Equal(t, videoAttributes{ImageWidth: 1920, ImageHeight: 1080, FrameRate: 30}, attrs)
	})

	t.Run("invalid_targets", func(t *testing.T) {
		var m1 PairSetupM1
		assert.Error(t, codec.Unmarshal(nil, m1))
		assert.Error(t, codec.Unmarshal(nil, (*PairSetupM1)(nil)))
		n := 5
		assert.Error(t, codec.Unmarshal(nil, &n))
	})

	t.Run("overflow", func(t *testing.T) {
		type Narrow struct {
			Value int8
		}
		var n Narrow
		err := codec.mapToStruct(map[string]interface{}{"value": uint64(200)}, reflect.ValueOf(&n).Elem())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "overflows")
	})
}

func TestCodec_MarshalStruct(t *testing.T) {
	codec := newTestCodec(t)

	data, err := codec.MarshalStruct(PairSetupM1{Method: "PairSetup", State: 1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x01, 0x00, 0x06, 0x01, 0x01}, data)

	resp := &ListPairingsResponse{
		State: 2,
		Pairings: []Pairing{
			{Identifier: "a", PublicKey: bytes.Repeat([]byte{7}, 300), Note: "skipped"},
			{Identifier: "b", Permissions: 1},
		},
	}
	data, err = codec.MarshalStruct(resp)
	require.NoError(t, err)

	var back ListPairingsResponse
	require.NoError(t, codec.Unmarshal(data, &back))
	resp.Pairings[0].Note = ""
	assert.Equal(t, *resp, back)

	attrs, err := codec.MarshalStruct(videoAttributes{ImageWidth: 1280, ImageHeight: 720, FrameRate: 30})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x00, 0x05, 0x02, 0x02, 0xd0, 0x02, 0x03, 0x01, 0x1e}, attrs)

	_, err = codec.MarshalStruct((*PairSetupM1)(nil))
	assert.Error(t, err)
	_, err = codec.MarshalStruct(42)
	assert.Error(t, err)
}

func TestCodec_setFieldValue(t *testing.T) {
	codec := &Codec{}

	type Target struct {
		Name    string
		Count   uint32
		Signed  int64
		Flag    bool
		Ptr     *uint8
		Payload []byte
	}
	var s Target
	rv := reflect.ValueOf(&s).Elem()

	require.NoError(t, codec.setFieldValue(rv.Field(0), "lamp"))
	require.NoError(t, codec.setFieldValue(rv.Field(1), uint64(7)))
	require.NoError(t, codec.setFieldValue(rv.Field(2), uint64(9)))
	require.NoError(t, codec.setFieldValue(rv.Field(3), uint64(1)))
	require.NoError(t, codec.setFieldValue(rv.Field(4), uint64(3)))
	require.NoError(t, codec.setFieldValue(rv.Field(5), []byte{1}))
	require.NoError(t, codec.setFieldValue(rv.Field(0), nil))

	three := uint8(3)
	assert.Equal(t, Target{Name: "lamp", Count: 7, Signed: 9, Flag: true, Ptr: &three, Payload: []byte{1}}, s)

	assert.Error(t, codec.setFieldValue(rv.Field(0), uint64(65)))
	assert.Error(t, codec.setFieldValue(rv.Field(1), "seven"))
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"ID", "id"},
		{"UserID", "user_id"},
		{"PublicKey", "public_key"},
		{"XMLParser", "xml_parser"},
		{"HTTPSConnection", "https_connection"},
		{"alreadySnake", "already_snake"},
		{"State", "state"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, toSnakeCase(tt.input), "toSnakeCase(%q)", tt.input)
	}
}

func TestEntries(t *testing.T) {
	entries, err := Entries([]byte{0x01, 0x01, 0x09, 0x00, 0x00})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, uint8(1), entries[0].Tag)
	assert.Equal(t, uint8(0), entries[1].Tag)

	_, err = Entries([]byte{0x01})
	assert.ErrorIs(t, err, wire.ErrTruncatedBuffer)
}

func TestCodec_ConcurrentParseDuringLoad(t *testing.T) {
	codec := New()
	require.NoError(t, codec.LoadSchema("testdata/hap/pairing.yaml"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				result, err := codec.Parse([]byte{0x06, 0x01, 0x02}, "hap.PairSetupM2")
				if assert.NoError(t, err) {
					assert.Equal(t, uint64(2), result["state"])
				}
			}
		}()
	}

	require.NoError(t, codec.LoadSchema("testdata/hap/streaming.proto"))
	wg.Wait()

	assert.Contains(t, codec.ListRecords(), "hap.camera.VideoAttributes")
}
