package forest

import (
	"io"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/serialize"
)

// PathEntry describes one ancestor of a node.
type PathEntry struct {
	InternalID string `json:"iid"`
	Key        string `json:"key"`
	Display    string `json:"display"`
}

// Get returns a copy of a node and its subtree, including internal ids.
func (s *Store) Get(internalID string) (node.Record, error) {
	target, err := s.lookup(internalID)
	if err != nil {
		return nil, err
	}

	return node.ToRecord(target, true), nil
}

// Path returns the ancestors of a node from its root down to its parent.
// The path of a root node is empty.
func (s *Store) Path(internalID string) ([]PathEntry, error) {
	target, err := s.lookup(internalID)
	if err != nil {
		return nil, err
	}

	ancestors := node.Ancestors(s.roots, target)
	path := make([]PathEntry, 0, len(ancestors))

	for _, ancestor := range ancestors {
		path = append(path, PathEntry{
			InternalID: ancestor.InternalID,
			Key:        ancestor.Key,
			Display:    ancestor.Display(s.displayField),
		})
	}

	return path, nil
}

// Export returns a deep copy of the whole forest.
func (s *Store) Export(opts serialize.Options) []node.Record {
	return serialize.Export(s.roots, opts)
}

// Encode writes the whole forest in format.
func (s *Store) Encode(w io.Writer, format serialize.Format, opts serialize.Options) error {
	return serialize.Encode(w, s.roots, format, s.displayField, opts)
}

// CSV renders the whole forest as CSV.
func (s *Store) CSV() string {
	return serialize.CSV(s.roots, s.displayField)
}
