// Package node provides the tree node model shared by every forest component:
// the node structure, conversion from and to plain records, and iterative
// traversal helpers.
package node

import (
	"errors"
	"fmt"
	"maps"
)

// Reserved record fields.
const (
	// FieldID is the caller-supplied identifier field. When present and non-empty
	// it becomes the node's natural key.
	FieldID = "id"
	// FieldChildren holds the ordered child records.
	FieldChildren = "children"
	// FieldInternalID carries the system-assigned identifier in exported records.
	FieldInternalID = "_iid"
)

// Sentinel errors for record conversion.
var (
	ErrInvalidRecord   = errors.New("record is not an object")
	ErrInvalidChildren = errors.New("children is not a sequence")
)

// Record is a plain nested record as supplied by callers or produced by export.
type Record = map[string]any

// Node is a single element of a forest.
//
// Fields:
//
//	Key: natural key (caller "id" or a derived fallback, see NaturalKey).
//	InternalID: registry-assigned identifier, immutable once set.
//	Fields: caller fields except children and the internal id, passed through unchanged.
//	Children: ordered child nodes; nil and empty both mean leaf.
type Node struct {
	Key        string         `json:"key"`
	InternalID string         `json:"internal_id,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	Children   []*Node        `json:"children,omitempty"`
}

// Allocation constants.
const (
	defaultStackCap = 64
	stackCapGrowth  = 32
)

// IsLeaf reports whether the node has no children.
func (targetNode *Node) IsLeaf() bool {
	return len(targetNode.Children) == 0
}

// Display returns the configured display field rendered as a string.
func (targetNode *Node) Display(field string) string {
	if targetNode == nil {
		return ""
	}

	value, ok := targetNode.Fields[field]
	if !ok || value == nil {
		return ""
	}

	if str, isStr := value.(string); isStr {
		return str
	}

	return fmt.Sprint(value)
}

// ShallowCopy returns a node with the same key, internal id and fields but a
// fresh, empty children list. The copy has its own identity.
func (targetNode *Node) ShallowCopy() *Node {
	return &Node{
		Key:        targetNode.Key,
		InternalID: targetNode.InternalID,
		Fields:     targetNode.Fields,
	}
}

// Merge copies fields from partial onto the node, skipping children and the
// internal id. The natural key is re-derived afterwards.
func (targetNode *Node) Merge(partial Record) {
	if targetNode.Fields == nil {
		targetNode.Fields = make(map[string]any, len(partial))
	}

	for field, value := range partial {
		if field == FieldChildren || field == FieldInternalID {
			continue
		}

		targetNode.Fields[field] = cloneValue(value)
	}

	targetNode.Key = NaturalKey(targetNode.Fields)
}

// String returns a compact description of the node.
func (targetNode *Node) String() string {
	if targetNode == nil {
		return "nil"
	}

	return fmt.Sprintf("Node{Key:%s,IID:%s,Children:%d}", targetNode.Key, targetNode.InternalID, len(targetNode.Children))
}

type buildFrame struct {
	record Record
	target *Node
}

// FromRecord converts a record and all nested child records into nodes. The
// record is copied: later changes to rec never reach the returned tree.
func FromRecord(rec Record) (*Node, error) {
	root := newFromRecord(rec)
	stack := make([]buildFrame, 0, defaultStackCap)
	stack = append(stack, buildFrame{record: rec, target: root})

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := childRecords(top.record[FieldChildren])
		if err != nil {
			return nil, err
		}

		if len(children) == 0 {
			continue
		}

		top.target.Children = make([]*Node, len(children))

		for idx, childRec := range children {
			child := newFromRecord(childRec)
			top.target.Children[idx] = child
			stack = append(stack, buildFrame{record: childRec, target: child})
		}
	}

	return root, nil
}

// FromRecords converts a sequence of root records.
func FromRecords(records []Record) ([]*Node, error) {
	roots := make([]*Node, 0, len(records))

	for idx, rec := range records {
		root, err := FromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", idx, err)
		}

		roots = append(roots, root)
	}

	return roots, nil
}

func newFromRecord(rec Record) *Node {
	fields := make(map[string]any, len(rec))

	for field, value := range rec {
		if field == FieldChildren || field == FieldInternalID {
			continue
		}

		fields[field] = cloneValue(value)
	}

	created := &Node{Fields: fields, Key: NaturalKey(fields)}

	if iid, ok := rec[FieldInternalID].(string); ok {
		created.InternalID = iid
	}

	return created
}

// childRecords normalizes the children value of a record.
func childRecords(value any) ([]Record, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case []Record:
		return typed, nil
	case []any:
		out := make([]Record, 0, len(typed))

		for idx, item := range typed {
			rec, ok := item.(Record)
			if !ok {
				return nil, fmt.Errorf("%w: child %d has type %T", ErrInvalidRecord, idx, item)
			}

			out = append(out, rec)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidChildren, value)
	}
}

type exportFrame struct {
	source *Node
	target Record
}

// ToRecord converts a node and its subtree into a deep-copied record. The
// internal id is included only when includeInternalID is set.
func ToRecord(targetNode *Node, includeInternalID bool) Record {
	root := recordOf(targetNode, includeInternalID)
	stack := make([]exportFrame, 0, defaultStackCap)
	stack = append(stack, exportFrame{source: targetNode, target: root})

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.source.IsLeaf() {
			continue
		}

		children := make([]any, len(top.source.Children))

		for idx, child := range top.source.Children {
			childRec := recordOf(child, includeInternalID)
			children[idx] = childRec
			stack = append(stack, exportFrame{source: child, target: childRec})
		}

		top.target[FieldChildren] = children
	}

	return root
}

func recordOf(targetNode *Node, includeInternalID bool) Record {
	rec := make(Record, len(targetNode.Fields)+1)

	for field, value := range targetNode.Fields {
		rec[field] = cloneValue(value)
	}

	if includeInternalID && targetNode.InternalID != "" {
		rec[FieldInternalID] = targetNode.InternalID
	}

	return rec
}

// cloneValue deep-copies the JSON-like containers a record may hold. Scalars
// and unknown types are returned as is.
func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := maps.Clone(typed)
		for key, inner := range out {
			out[key] = cloneValue(inner)
		}

		return out
	case []any:
		out := make([]any, len(typed))
		for idx, inner := range typed {
			out[idx] = cloneValue(inner)
		}

		return out
	default:
		return value
	}
}
