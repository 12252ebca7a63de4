package forest

import "sort"

// Toggle flips the selection of a node and reports whether it is now
// selected. With cascade on the whole subtree follows.
func (s *Store) Toggle(internalID string) (bool, error) {
	target, err := s.lookup(internalID)
	if err != nil {
		s.logger.Warn("toggle target not found", "iid", internalID)

		return false, err
	}

	return s.selection.Toggle(target), nil
}

// Select selects a node.
func (s *Store) Select(internalID string) error {
	target, err := s.lookup(internalID)
	if err != nil {
		return err
	}

	s.selection.Select(target)

	return nil
}

// Deselect deselects a node.
func (s *Store) Deselect(internalID string) error {
	target, err := s.lookup(internalID)
	if err != nil {
		return err
	}

	s.selection.Deselect(target)

	return nil
}

// IsSelected reports whether the node's natural key is selected.
func (s *Store) IsSelected(internalID string) bool {
	target, ok := s.registry.LookupByInternalID(internalID)

	return ok && s.selection.IsSelected(target.Key)
}

// Selected returns the selected natural keys, sorted.
func (s *Store) Selected() []string {
	return s.selection.Selected()
}

// ClearSelection deselects everything.
func (s *Store) ClearSelection() {
	s.selection.Clear()
}

// SelectionCounts returns how many descendants of a node are selected and
// how many it has.
//
//nolint:nonamedreturns // the pair reads ambiguously unnamed.
func (s *Store) SelectionCounts(internalID string) (selected, total int, err error) {
	target, err := s.lookup(internalID)
	if err != nil {
		return 0, 0, err
	}

	selected, total = s.selection.Counts(target)

	return selected, total, nil
}

// Expand marks a node as expanded.
func (s *Store) Expand(internalID string) error {
	target, err := s.lookup(internalID)
	if err != nil {
		return err
	}

	s.expanded[target.Key] = struct{}{}

	return nil
}

// Collapse removes the expanded marker of a node.
func (s *Store) Collapse(internalID string) error {
	target, err := s.lookup(internalID)
	if err != nil {
		return err
	}

	delete(s.expanded, target.Key)

	return nil
}

// CollapseAll removes every expanded marker.
func (s *Store) CollapseAll() {
	clear(s.expanded)
}

// IsExpanded reports whether a node is marked expanded.
func (s *Store) IsExpanded(internalID string) bool {
	target, ok := s.registry.LookupByInternalID(internalID)
	if !ok {
		return false
	}

	_, expanded := s.expanded[target.Key]

	return expanded
}

// Expanded returns the expanded natural keys, sorted.
func (s *Store) Expanded() []string {
	keys := make([]string, 0, len(s.expanded))

	for key := range s.expanded {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
