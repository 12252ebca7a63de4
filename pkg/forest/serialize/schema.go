package serialize

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed forest-schema.json
var forestSchema []byte

// ShapeIssue is one schema violation found by ValidateShape.
type ShapeIssue struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

// String formats the issue for display.
func (issue ShapeIssue) String() string {
	return issue.Field + ": " + issue.Description
}

// Schema returns the JSON schema of an importable forest.
func Schema() []byte {
	return append([]byte(nil), forestSchema...)
}

// ValidateShape checks raw JSON against the forest schema: an array of
// objects whose children, when present, are arrays of the same. It returns
// the violations found; the error is reserved for unparsable input.
func ValidateShape(raw []byte) ([]ShapeIssue, error) {
	var data any

	err := json.Unmarshal(raw, &data)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	return ValidateData(data)
}

// ValidateData checks already parsed data against the forest schema.
func ValidateData(data any) ([]ShapeIssue, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(forestSchema), gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, fmt.Errorf("schema validation: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	issues := make([]ShapeIssue, 0, len(result.Errors()))

	for _, resultErr := range result.Errors() {
		issues = append(issues, ShapeIssue{Field: resultErr.Field(), Description: resultErr.Description()})
	}

	return issues, nil
}
