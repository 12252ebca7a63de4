package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool name constants.
const (
	ToolNameSearch = "tree_search"
	ToolNamePage   = "tree_page"
	ToolNameGet    = "tree_get"
	ToolNameInsert = "tree_insert"
	ToolNameUpdate = "tree_update"
	ToolNameRemove = "tree_remove"
	ToolNameMove   = "tree_move"
	ToolNameToggle = "tree_toggle"
	ToolNameExport = "tree_export"
)

// MaxExportBytes caps the size of an export returned inline (4 MB).
const MaxExportBytes = 4 << 20

// Sentinel errors for tool input validation.
var (
	// ErrEmptyRef indicates the ref parameter is empty.
	ErrEmptyRef = errors.New("ref parameter is required and must not be empty")
	// ErrEmptyRecord indicates the record parameter is missing.
	ErrEmptyRecord = errors.New("record parameter is required")
	// ErrEmptyFields indicates the fields parameter is missing.
	ErrEmptyFields = errors.New("fields parameter is required")
	// ErrExportTooLarge indicates the encoded forest exceeds MaxExportBytes.
	ErrExportTooLarge = errors.New("export exceeds maximum inline size")
)

// Input types (auto-generate JSON schemas via struct tags).

// SearchInput is the input schema for the tree_search tool.
type SearchInput struct {
	Term string `json:"term" jsonschema:"substring to match against the display field; empty clears the filter"`
}

// PageInput is the input schema for the tree_page tool.
type PageInput struct {
	Page int `json:"page,omitempty" jsonschema:"1-based page number (default: current page)"`
	Size int `json:"size,omitempty" jsonschema:"optional new page size"`
}

// RefInput is the input schema for tools addressing a single node.
type RefInput struct {
	Ref string `json:"ref" jsonschema:"internal id or natural key of the node"`
}

// InsertInput is the input schema for the tree_insert tool.
type InsertInput struct {
	Anchor   string         `json:"anchor,omitempty"   jsonschema:"reference node for before and after"`
	Parent   string         `json:"parent,omitempty"   jsonschema:"parent node; empty inserts a root"`
	Position string         `json:"position,omitempty" jsonschema:"first, last, before or after (default: last)"`
	Record   map[string]any `json:"record,omitempty"    jsonschema:"fields of the new node, optionally with children"`
}

// UpdateInput is the input schema for the tree_update tool.
type UpdateInput struct {
	Fields map[string]any `json:"fields,omitempty" jsonschema:"fields to merge into the node"`
	Ref    string         `json:"ref"              jsonschema:"internal id or natural key of the node"`
}

// MoveInput is the input schema for the tree_move tool.
type MoveInput struct {
	Anchor   string `json:"anchor,omitempty"   jsonschema:"reference node for before and after"`
	Parent   string `json:"parent,omitempty"   jsonschema:"new parent; empty moves to the roots"`
	Position string `json:"position,omitempty" jsonschema:"first, last, before or after (default: last)"`
	Ref      string `json:"ref"                jsonschema:"internal id or natural key of the node to move"`
}

// ExportInput is the input schema for the tree_export tool.
type ExportInput struct {
	Format      string `json:"format,omitempty"       jsonschema:"json, yaml or csv (default: json)"`
	InternalIDs bool   `json:"internal_ids,omitempty" jsonschema:"include internal ids in the output"`
}

// Output type (used as structured output for generic AddTool).

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// Result helpers.

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}

// textResult builds a CallToolResult carrying raw text.
func textResult(text string) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: text},
		},
	}, ToolOutput{Data: text}, nil
}
