package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anirudhraja/tlv8/registry"
	"github.com/anirudhraja/tlv8/schema"
)

// testRecords are small schemas used next to the HAP testdata.
var testRecords = []*schema.Record{
	{
		Name: "test.Counter",
		Fields: []*schema.Field{
			{Name: "value", Tag: 1, Type: schema.Integer(1)},
		},
	},
	{
		Name: "test.Note",
		Fields: []*schema.Field{
			{Name: "text", Tag: 1, Type: schema.Text(), Required: true},
			{Name: "author", Tag: 2, Type: schema.Text()},
		},
	},
	{
		Name: "test.Item",
		Fields: []*schema.Field{
			{Name: "id", Tag: 1, Type: schema.Integer(1), Required: true},
			{Name: "label", Tag: 2, Type: schema.Text()},
		},
	},
	{
		Name: "test.Basket",
		Fields: []*schema.Field{
			{Name: "items", Tag: 1, Type: schema.SequenceOf("test.Item")},
			{Name: "owner", Tag: 2, Type: schema.FieldType{Record: "test.Note"}},
			{Name: "kind", Tag: 3, Type: schema.FieldType{Enum: "test.Kind"}},
			{Name: "wide", Tag: 4, Type: schema.Integer(4)},
		},
	},
	{
		Name: "test.Tree",
		Fields: []*schema.Field{
			{Name: "name", Tag: 1, Type: schema.Text()},
			{Name: "children", Tag: 2, Type: schema.SequenceOf("test.Tree")},
		},
	},
}

var testEnums = []*schema.Enum{
	{
		Name: "test.Kind",
		Values: []*schema.EnumValue{
			{Name: "Fruit", Number: 1},
			{Name: "Vegetable", Number: 2},
		},
	},
}

func newTestRegistry(t testing.TB) *registry.Registry {
	t.Helper()

	reg := registry.NewRegistry()
	require.NoError(t, reg.LoadPath("../testdata/hap"))
	require.NoError(t, reg.RegisterEnum(testEnums...))
	require.NoError(t, reg.Register(testRecords...))
	require.NoError(t, reg.Validate())
	return reg
}

func newTestDispatcher(t testing.TB, opts ...DispatcherOption) *Dispatcher {
	t.Helper()

	d, err := NewDispatcher(newTestRegistry(t), opts...)
	require.NoError(t, err)
	return d
}

func mustRecord(t testing.TB, d *Dispatcher, name string) *RecordCodec {
	t.Helper()

	codec, err := d.Record(name)
	require.NoError(t, err)
	return codec
}
