package forest

import (
	"fmt"
	"slices"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/serialize"
)

// Insert copies rec into the forest under parentID (RootID for the root
// sequence) and returns the internal id of the new node. Nested children of
// rec become nodes too.
func (s *Store) Insert(parentID string, rec node.Record, placement Placement) (string, error) {
	if rec == nil {
		return "", s.reject(OpInsert, fmt.Errorf("%w: nil record", ErrInvalidArgument))
	}

	parent, err := s.parentOf(parentID)
	if err != nil {
		return "", s.reject(OpInsert, fmt.Errorf("insert parent: %w", err))
	}

	created, err := node.FromRecord(rec)
	if err != nil {
		return "", s.reject(OpInsert, fmt.Errorf("%w: %w", ErrInvalidArgument, err))
	}

	destParent, index := s.destination(parent, placement)

	err = s.registry.Register(created)
	if err != nil {
		return "", s.reject(OpInsert, err)
	}

	s.setChildren(destParent, node.InsertAt(s.childrenOf(destParent), index, created))
	s.registry.RepairKeys(s.roots, created.Subtree(), nil)
	s.commit(OpInsert, created.InternalID)

	return created.InternalID, nil
}

// Remove excises a node and its subtree. Their ids are dropped and never
// issued again. Selection entries and expansion markers are keyed by natural
// key, so they are dropped only for keys no surviving node still carries.
func (s *Store) Remove(internalID string) error {
	target, err := s.lookup(internalID)
	if err != nil {
		return s.reject(OpRemove, err)
	}

	parent, index, _ := node.Locate(s.roots, target)

	removedKeys := make([]string, 0, 1)
	target.VisitPreOrder(func(current *node.Node) {
		removedKeys = append(removedKeys, current.Key)
	})

	s.setChildren(parent, node.RemoveAt(s.childrenOf(parent), index))
	s.registry.Forget(target)
	s.registry.ReindexKeys(s.roots)

	removedKeys = slices.DeleteFunc(removedKeys, func(key string) bool {
		_, survives := s.registry.LookupByKey(key)

		return survives
	})

	s.selection.Purge(removedKeys)

	for _, key := range removedKeys {
		delete(s.expanded, key)
	}

	s.commit(OpRemove, internalID)

	return nil
}

// Update merges partial into a node's fields. The children and internal id
// fields of partial are ignored; use Insert, Remove or Move to restructure.
func (s *Store) Update(internalID string, partial node.Record) error {
	if partial == nil {
		return s.reject(OpUpdate, fmt.Errorf("%w: nil record", ErrInvalidArgument))
	}

	target, err := s.lookup(internalID)
	if err != nil {
		return s.reject(OpUpdate, err)
	}

	oldKey := target.Key
	target.Merge(partial)
	s.registry.RepairKeys(s.roots, []*node.Node{target}, map[*node.Node]string{target: oldKey})

	if oldKey != target.Key {
		s.selection.Rename(oldKey, target.Key)

		if _, ok := s.expanded[oldKey]; ok {
			delete(s.expanded, oldKey)
			s.expanded[target.Key] = struct{}{}
		}
	}

	s.commit(OpUpdate, internalID)

	return nil
}

// Move relocates a node with its subtree under parentID at placement, as a
// single step. Moving a node into its own subtree or relative to itself is
// rejected with ErrInvalidArgument.
func (s *Store) Move(internalID, parentID string, placement Placement) error {
	target, err := s.lookup(internalID)
	if err != nil {
		return s.reject(OpMove, err)
	}

	parent, err := s.parentOf(parentID)
	if err != nil {
		return s.reject(OpMove, fmt.Errorf("move parent: %w", err))
	}

	if parent != nil && target.Contains(parent) {
		return s.reject(OpMove, fmt.Errorf("%w: cannot move %q into its own subtree", ErrInvalidArgument, internalID))
	}

	if placement.relative() {
		if placement.Ref == internalID {
			return s.reject(OpMove, fmt.Errorf("%w: cannot move %q relative to itself", ErrInvalidArgument, internalID))
		}

		if ref, ok := s.registry.LookupByInternalID(placement.Ref); ok && target.Contains(ref) {
			return s.reject(OpMove, fmt.Errorf("%w: reference %q is inside the moved subtree", ErrInvalidArgument, placement.Ref))
		}
	}

	oldParent, oldIndex, _ := node.Locate(s.roots, target)
	s.setChildren(oldParent, node.RemoveAt(s.childrenOf(oldParent), oldIndex))

	destParent, index := s.destination(parent, placement)
	s.setChildren(destParent, node.InsertAt(s.childrenOf(destParent), index, target))

	s.registry.ReindexKeys(s.roots)
	s.commit(OpMove, internalID)

	return nil
}

// Replace swaps the whole forest for records and reindexes it. Selection
// and expansion entries whose keys no longer exist are dropped.
func (s *Store) Replace(records []node.Record) error {
	roots, err := node.FromRecords(records)
	if err != nil {
		return s.reject(OpReplace, fmt.Errorf("%w: %w", ErrInvalidArgument, err))
	}

	return s.replace(roots)
}

// Import replaces the forest with parsed plain data. Internal ids carried in
// the data are kept when they were never issued by this store.
func (s *Store) Import(data any) error {
	roots, err := serialize.Import(data)
	if err != nil {
		return s.reject(OpReplace, fmt.Errorf("%w: %w", ErrInvalidArgument, err))
	}

	return s.replace(roots)
}

func (s *Store) replace(roots []*node.Node) error {
	err := s.registry.Rebuild(roots)
	if err != nil {
		return s.reject(OpReplace, err)
	}

	s.roots = roots

	var stale []string

	for _, key := range s.selection.Selected() {
		if _, ok := s.registry.LookupByKey(key); !ok {
			stale = append(stale, key)
		}
	}

	s.selection.Purge(stale)

	for key := range s.expanded {
		if _, ok := s.registry.LookupByKey(key); !ok {
			delete(s.expanded, key)
		}
	}

	s.commit(OpReplace, "")

	return nil
}

//nolint:nilnil // a nil parent addresses the root sequence.
func (s *Store) parentOf(parentID string) (*node.Node, error) {
	if parentID == RootID {
		return nil, nil
	}

	return s.lookup(parentID)
}

// destination resolves placement against parent. Before and After use the
// reference node's own parent list; an unresolvable reference appends.
func (s *Store) destination(parent *node.Node, placement Placement) (*node.Node, int) {
	switch placement.Where {
	case First:
		return parent, 0
	case Before, After:
		ref, ok := s.registry.LookupByInternalID(placement.Ref)
		if ok {
			refParent, index, located := node.Locate(s.roots, ref)
			if located {
				if placement.Where == After {
					index++
				}

				return refParent, index
			}
		}

		s.logger.Warn("placement reference not found, appending",
			"ref", placement.Ref, "position", placement.Where.String())

		return parent, len(s.childrenOf(parent))
	default:
		return parent, len(s.childrenOf(parent))
	}
}

func (s *Store) childrenOf(parent *node.Node) []*node.Node {
	if parent == nil {
		return s.roots
	}

	return parent.Children
}

func (s *Store) setChildren(parent *node.Node, children []*node.Node) {
	if parent == nil {
		s.roots = children

		return
	}

	parent.Children = children
}
