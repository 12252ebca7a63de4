// Package serialize converts forests to and from plain records and their
// JSON, YAML, CSV and compressed encodings.
package serialize

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
)

// Sentinel errors for import failures.
var (
	ErrNotSequence   = errors.New("top level is not a sequence")
	ErrInvalidRecord = errors.New("invalid record")
)

// Options controls Export.
type Options struct {
	// IncludeInternalIDs emits the internal id of every node under "_iid".
	IncludeInternalIDs bool
}

// Export returns a deep copy of forest as plain records.
func Export(forest []*node.Node, opts Options) []node.Record {
	records := make([]node.Record, 0, len(forest))

	for _, root := range forest {
		if root == nil {
			continue
		}

		records = append(records, node.ToRecord(root, opts.IncludeInternalIDs))
	}

	return records
}

// Import converts parsed plain data into a new forest. The top level must be
// a sequence of objects; nested "children" must be sequences of objects too.
// Internal ids found under "_iid" are carried onto the nodes; the caller's
// registry decides whether they are kept.
func Import(data any) ([]*node.Node, error) {
	items, err := sequence(data)
	if err != nil {
		return nil, err
	}

	forest := make([]*node.Node, 0, len(items))

	for idx, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: item %d is %T, not an object", ErrInvalidRecord, idx, item)
		}

		root, buildErr := node.FromRecord(rec)
		if buildErr != nil {
			return nil, fmt.Errorf("%w: item %d: %w", ErrInvalidRecord, idx, buildErr)
		}

		forest = append(forest, root)
	}

	return forest, nil
}

func sequence(data any) ([]any, error) {
	switch typed := data.(type) {
	case []any:
		return typed, nil
	case []node.Record:
		items := make([]any, len(typed))
		for idx, rec := range typed {
			items[idx] = rec
		}

		return items, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrNotSequence, data)
	}
}
