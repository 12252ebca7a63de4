package serialize_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/serialize"
)

const displayField = "name"

func sampleForest(t *testing.T) []*node.Node {
	t.Helper()

	forest, err := node.FromRecords([]node.Record{
		{"id": "a", "name": "Alpha, first", "children": []any{
			map[string]any{"id": "b", "name": "Beta"},
			map[string]any{"name": "Gamma", "tags": []any{"x", "y"}},
		}},
		{"id": "c", "name": "Charlie"},
	})
	require.NoError(t, err)

	forest[0].InternalID = "iid-a"

	return forest
}

func TestExportIsDeepCopy(t *testing.T) {
	t.Parallel()

	forest := sampleForest(t)
	records := serialize.Export(forest, serialize.Options{})

	children, ok := records[0]["children"].([]any)
	require.True(t, ok)

	gamma, ok := children[1].(node.Record)
	require.True(t, ok)

	tags, ok := gamma["tags"].([]any)
	require.True(t, ok)
	tags[0] = "mutated"
	records[0]["name"] = "changed"

	assert.Equal(t, "Alpha, first", forest[0].Fields["name"])
	assert.Equal(t, []any{"x", "y"}, forest[0].Children[1].Fields["tags"])
}

func TestExportInternalIDs(t *testing.T) {
	t.Parallel()

	forest := sampleForest(t)

	with := serialize.Export(forest, serialize.Options{IncludeInternalIDs: true})
	assert.Equal(t, "iid-a", with[0][node.FieldInternalID])

	without := serialize.Export(forest, serialize.Options{})
	assert.NotContains(t, without[0], node.FieldInternalID)
}

func TestImportRejectsBadShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    any
		wantErr error
	}{
		{name: "object", data: map[string]any{"id": "a"}, wantErr: serialize.ErrNotSequence},
		{name: "string", data: "nope", wantErr: serialize.ErrNotSequence},
		{name: "nil", data: nil, wantErr: serialize.ErrNotSequence},
		{name: "scalar item", data: []any{1}, wantErr: serialize.ErrInvalidRecord},
		{name: "bad children", data: []any{map[string]any{"children": "x"}}, wantErr: serialize.ErrInvalidRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := serialize.Import(tt.data)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	forest := sampleForest(t)

	var buf bytes.Buffer
	require.NoError(t, serialize.EncodeJSON(&buf, serialize.Export(forest, serialize.Options{})))

	data, err := serialize.DecodeJSON(&buf)
	require.NoError(t, err)

	imported, err := serialize.Import(data)
	require.NoError(t, err)

	assert.Equal(t, serialize.CSV(forest, displayField), serialize.CSV(imported, displayField))
	assert.Equal(t,
		serialize.Export(forest, serialize.Options{}),
		serialize.Export(imported, serialize.Options{}),
	)
}

func TestDecodeJSONKeepsIntegerDigits(t *testing.T) {
	t.Parallel()

	const doc = `[{"id": 9007199254740993, "name": "big", "weight": 1.5, "serial": 123456789012345678901234567890}]`

	data, err := serialize.DecodeJSON(strings.NewReader(doc))
	require.NoError(t, err)

	items, ok := data.([]any)
	require.True(t, ok)
	require.Len(t, items, 1)

	fields, ok := items[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, int64(9007199254740993), fields["id"])
	assert.InDelta(t, 1.5, fields["weight"], 0)
	assert.Equal(t, json.Number("123456789012345678901234567890"), fields["serial"])

	imported, err := serialize.Import(data)
	require.NoError(t, err)
	require.Len(t, imported, 1)
	assert.Equal(t, "9007199254740993", imported[0].Key)

	var buf bytes.Buffer
	require.NoError(t, serialize.EncodeJSON(&buf, serialize.Export(imported, serialize.Options{})))
	assert.Contains(t, buf.String(), "9007199254740993")
	assert.Contains(t, buf.String(), "123456789012345678901234567890")
}

func TestYAMLRoundTrip(t *testing.T) {
	t.Parallel()

	forest := sampleForest(t)

	var buf bytes.Buffer
	require.NoError(t, serialize.EncodeYAML(&buf, serialize.Export(forest, serialize.Options{})))
	assert.Contains(t, buf.String(), "name: Beta")

	data, err := serialize.DecodeYAML(&buf)
	require.NoError(t, err)

	imported, err := serialize.Import(data)
	require.NoError(t, err)

	assert.Equal(t, serialize.CSV(forest, displayField), serialize.CSV(imported, displayField))
}

func TestCSV(t *testing.T) {
	t.Parallel()

	want := strings.Join([]string{
		serialize.CSVHeader,
		"0,,Alpha first,true,2",
		"1,Alpha first,Beta,false,0",
		"1,Alpha first,Gamma,false,0",
		"0,,Charlie,false,0",
	}, "\n") + "\n"

	assert.Equal(t, want, serialize.CSV(sampleForest(t), displayField))
	assert.Equal(t, serialize.CSVHeader+"\n", serialize.CSV(nil, displayField))
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    serialize.Format
		wantErr bool
	}{
		{in: "", want: serialize.FormatJSON},
		{in: "JSON", want: serialize.FormatJSON},
		{in: "yml", want: serialize.FormatYAML},
		{in: "csv", want: serialize.FormatCSV},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := serialize.ParseFormat(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, serialize.ErrUnknownFormat)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	t.Parallel()

	tests := map[string]serialize.Format{
		"tree.json":     serialize.FormatJSON,
		"tree.YAML":     serialize.FormatYAML,
		"tree.yml.lz4":  serialize.FormatYAML,
		"tree.csv":      serialize.FormatCSV,
		"tree":          serialize.FormatJSON,
		"tree.json.lz4": serialize.FormatJSON,
	}

	for path, want := range tests {
		assert.Equal(t, want, serialize.FormatFromPath(path), path)
	}
}

func TestDecodeRejectsCSV(t *testing.T) {
	t.Parallel()

	_, err := serialize.Decode(strings.NewReader("x"), serialize.FormatCSV)
	require.ErrorIs(t, err, serialize.ErrUnknownFormat)
}

func TestReadLimited(t *testing.T) {
	t.Parallel()

	data, err := serialize.ReadLimited(strings.NewReader("12345"), 5)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(data))

	_, err = serialize.ReadLimited(strings.NewReader("123456"), 5)
	require.ErrorIs(t, err, serialize.ErrTooLarge)

	data, err = serialize.ReadLimited(strings.NewReader("123456"), 0)
	require.NoError(t, err)
	assert.Len(t, data, 6)
}
