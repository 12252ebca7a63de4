package serialize_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/serialize"
)

func TestCompressRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "repetitive", data: []byte(strings.Repeat(`{"name":"node"},`, 500))},
		{name: "tiny", data: []byte("ab")},
		{name: "empty", data: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			packed, err := serialize.Compress(tt.data)
			require.NoError(t, err)
			assert.True(t, serialize.IsCompressed(packed))

			unpacked, err := serialize.Decompress(packed, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.data, unpacked)
		})
	}
}

func TestCompressShrinksRepetitiveInput(t *testing.T) {
	t.Parallel()

	data := []byte(strings.Repeat("abcdefgh", 1000))

	packed, err := serialize.Compress(data)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(data)/4)
}

func TestDecompressRejectsGarbage(t *testing.T) {
	t.Parallel()

	assert.False(t, serialize.IsCompressed([]byte(`[{"id":"a"}]`)))

	_, err := serialize.Decompress([]byte("plain"), 0)
	require.ErrorIs(t, err, serialize.ErrCorruptPayload)

	packed, err := serialize.Compress([]byte(strings.Repeat("z", 256)))
	require.NoError(t, err)

	packed[5]++

	_, err = serialize.Decompress(packed, 0)
	require.ErrorIs(t, err, serialize.ErrCorruptPayload)
}

func TestDecompressEnforcesLimit(t *testing.T) {
	t.Parallel()

	data := []byte(strings.Repeat(`{"name":"n"},`, 2000))

	packed, err := serialize.Compress(data)
	require.NoError(t, err)

	_, err = serialize.Decompress(packed, int64(len(data)-1))
	require.ErrorIs(t, err, serialize.ErrTooLarge)

	unpacked, err := serialize.Decompress(packed, int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, unpacked)
}

func TestDecompressRejectsForgedLength(t *testing.T) {
	t.Parallel()

	forged := []byte("TSZ4\x01\xff\xff\xff\x3f\x00")

	_, err := serialize.Decompress(forged, 1024)
	require.ErrorIs(t, err, serialize.ErrTooLarge)

	_, err = serialize.Decompress(forged, 0)
	require.ErrorIs(t, err, serialize.ErrCorruptPayload)
}
