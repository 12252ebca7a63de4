package serialize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
)

// Format names an export encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// ErrUnknownFormat is returned for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown format")

// ErrTooLarge is returned when an input exceeds the configured size limit.
var ErrTooLarge = errors.New("input exceeds size limit")

// ParseFormat resolves a format name. "yml" is accepted as YAML; the empty
// name means JSON.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// FormatFromPath guesses a format from a file extension, ignoring a trailing
// ".lz4". Unknown extensions read as JSON.
func FormatFromPath(path string) Format {
	base := strings.TrimSuffix(strings.ToLower(path), compressedExt)

	switch filepath.Ext(base) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".csv":
		return FormatCSV
	default:
		return FormatJSON
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/json"
	}
}

// EncodeJSON writes records as indented JSON.
func EncodeJSON(w io.Writer, records []node.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	err := enc.Encode(records)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

// DecodeJSON parses JSON text into plain data suitable for Import. Integers
// become int64, or stay json.Number when they overflow it, so large ids keep
// every digit. Other numbers become float64.
func DecodeJSON(r io.Reader) (any, error) {
	var data any

	dec := json.NewDecoder(r)
	dec.UseNumber()

	err := dec.Decode(&data)
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}

	return normalizeNumbers(data), nil
}

func normalizeNumbers(value any) any {
	switch typed := value.(type) {
	case json.Number:
		if integer, err := typed.Int64(); err == nil {
			return integer
		}

		if strings.ContainsAny(typed.String(), ".eE") {
			if float, err := typed.Float64(); err == nil {
				return float
			}
		}

		return typed
	case map[string]any:
		for field, nested := range typed {
			typed[field] = normalizeNumbers(nested)
		}

		return typed
	case []any:
		for idx, nested := range typed {
			typed[idx] = normalizeNumbers(nested)
		}

		return typed
	default:
		return value
	}
}

// EncodeYAML writes records as YAML.
func EncodeYAML(w io.Writer, records []node.Record) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	err := enc.Encode(records)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	err = enc.Close()
	if err != nil {
		return fmt.Errorf("close yaml encoder: %w", err)
	}

	return nil
}

// DecodeYAML parses YAML text into plain data suitable for Import.
func DecodeYAML(r io.Reader) (any, error) {
	var data any

	err := yaml.NewDecoder(r).Decode(&data)
	if err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	return data, nil
}

// Decode parses text in the given format. CSV is export-only.
func Decode(r io.Reader, format Format) (any, error) {
	switch format {
	case FormatJSON:
		return DecodeJSON(r)
	case FormatYAML:
		return DecodeYAML(r)
	default:
		return nil, fmt.Errorf("%w: cannot import %s", ErrUnknownFormat, format)
	}
}

// Encode writes forest in the given format.
func Encode(w io.Writer, forest []*node.Node, format Format, displayField string, opts Options) error {
	switch format {
	case FormatJSON:
		return EncodeJSON(w, Export(forest, opts))
	case FormatYAML:
		return EncodeYAML(w, Export(forest, opts))
	case FormatCSV:
		_, err := io.WriteString(w, CSV(forest, displayField))
		if err != nil {
			return fmt.Errorf("write csv: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// ReadLimited reads all of r, failing with ErrTooLarge past limit bytes.
// A non-positive limit disables the check.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}

		return data, nil
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}

	return data, nil
}
