// Package persist saves and restores forest snapshots on disk.
package persist

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/serialize"
)

// File extensions for supported codecs.
const (
	jsonExtension = ".json"
	yamlExtension = ".yaml"
	lz4Extension  = ".lz4"
)

// Codec defines how a snapshot is serialized and deserialized.
type Codec interface {
	// Encode writes the records to the writer.
	Encode(w io.Writer, records []node.Record) error
	// Decode reads plain forest data from the reader.
	Decode(r io.Reader) (any, error)
	// Extension returns the file extension for this codec (e.g., ".json").
	Extension() string
}

// JSONCodec stores snapshots as indented JSON.
type JSONCodec struct{}

// Encode implements Codec.Encode.
func (JSONCodec) Encode(w io.Writer, records []node.Record) error {
	return serialize.EncodeJSON(w, records)
}

// Decode implements Codec.Decode.
func (JSONCodec) Decode(r io.Reader) (any, error) {
	return serialize.DecodeJSON(r)
}

// Extension implements Codec.Extension.
func (JSONCodec) Extension() string {
	return jsonExtension
}

// YAMLCodec stores snapshots as YAML.
type YAMLCodec struct{}

// Encode implements Codec.Encode.
func (YAMLCodec) Encode(w io.Writer, records []node.Record) error {
	return serialize.EncodeYAML(w, records)
}

// Decode implements Codec.Decode.
func (YAMLCodec) Decode(r io.Reader) (any, error) {
	return serialize.DecodeYAML(r)
}

// Extension implements Codec.Extension.
func (YAMLCodec) Extension() string {
	return yamlExtension
}

// CompressedCodec wraps another codec in LZ4 compression. A positive Limit
// caps the decompressed size accepted by Decode.
type CompressedCodec struct {
	Inner Codec
	Limit int64
}

// Encode implements Codec.Encode.
func (c CompressedCodec) Encode(w io.Writer, records []node.Record) error {
	var buf bytes.Buffer

	err := c.Inner.Encode(&buf, records)
	if err != nil {
		return err
	}

	packed, err := serialize.Compress(buf.Bytes())
	if err != nil {
		return err
	}

	_, err = w.Write(packed)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	return nil
}

// Decode implements Codec.Decode. Uncompressed input is decoded directly.
func (c CompressedCodec) Decode(r io.Reader) (any, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	if serialize.IsCompressed(raw) {
		raw, err = serialize.Decompress(raw, c.Limit)
		if err != nil {
			return nil, err
		}
	}

	return c.Inner.Decode(bytes.NewReader(raw))
}

// Extension implements Codec.Extension.
func (c CompressedCodec) Extension() string {
	return c.Inner.Extension() + lz4Extension
}

// CodecFor picks a codec from a snapshot path: YAML for .yaml and .yml, JSON
// otherwise, compressed when the path ends in .lz4.
func CodecFor(path string) Codec {
	var codec Codec = JSONCodec{}

	if serialize.FormatFromPath(path) == serialize.FormatYAML {
		codec = YAMLCodec{}
	}

	if strings.HasSuffix(strings.ToLower(path), lz4Extension) {
		return CompressedCodec{Inner: codec}
	}

	return codec
}
