// Package selection tracks the set of selected nodes by natural key.
package selection

import (
	"sort"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
)

// Tracker holds the selected natural keys of a forest.
// Not safe for concurrent use.
type Tracker struct {
	selected    map[string]struct{}
	multiSelect bool
	cascade     bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMultiSelect allows more than one selected entry. When off, selecting
// clears the previous selection first.
func WithMultiSelect(enabled bool) Option {
	return func(t *Tracker) {
		t.multiSelect = enabled
	}
}

// WithCascade makes Toggle, Select and Deselect apply to the whole subtree.
func WithCascade(enabled bool) Option {
	return func(t *Tracker) {
		t.cascade = enabled
	}
}

// NewTracker creates an empty Tracker. By default multi-select and cascade
// are both on.
func NewTracker(opts ...Option) *Tracker {
	tracker := &Tracker{
		selected:    make(map[string]struct{}),
		multiSelect: true,
		cascade:     true,
	}

	for _, opt := range opts {
		opt(tracker)
	}

	return tracker
}

// Toggle flips the selection of target and reports whether it is selected
// afterwards.
func (t *Tracker) Toggle(target *node.Node) bool {
	if t.IsSelected(target.Key) {
		t.Deselect(target)

		return false
	}

	t.Select(target)

	return true
}

// Select adds target, and its descendants when cascading.
func (t *Tracker) Select(target *node.Node) {
	if !t.multiSelect {
		clear(t.selected)
	}

	t.apply(target, func(key string) {
		t.selected[key] = struct{}{}
	})
}

// Deselect removes target, and its descendants when cascading.
func (t *Tracker) Deselect(target *node.Node) {
	t.apply(target, func(key string) {
		delete(t.selected, key)
	})
}

func (t *Tracker) apply(target *node.Node, fn func(key string)) {
	if target == nil {
		return
	}

	if !t.cascade {
		fn(target.Key)

		return
	}

	target.VisitPreOrder(func(current *node.Node) {
		fn(current.Key)
	})
}

// IsSelected reports whether key is selected.
func (t *Tracker) IsSelected(key string) bool {
	_, ok := t.selected[key]

	return ok
}

// Selected returns the selected keys, sorted.
func (t *Tracker) Selected() []string {
	keys := make([]string, 0, len(t.selected))

	for key := range t.selected {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// Len returns the number of selected keys.
func (t *Tracker) Len() int {
	return len(t.selected)
}

// Clear empties the selection.
func (t *Tracker) Clear() {
	clear(t.selected)
}

// Purge drops the given keys from the selection.
func (t *Tracker) Purge(keys []string) {
	for _, key := range keys {
		delete(t.selected, key)
	}
}

// Rename moves a selection entry from oldKey to newKey after a node was
// re-keyed. It is a no-op when oldKey was not selected.
func (t *Tracker) Rename(oldKey, newKey string) {
	if oldKey == newKey || !t.IsSelected(oldKey) {
		return
	}

	delete(t.selected, oldKey)
	t.selected[newKey] = struct{}{}
}

// Counts returns how many descendants of target are selected and how many
// descendants it has. Presentation layers derive tri-state checkboxes from it.
func (t *Tracker) Counts(target *node.Node) (selected, total int) {
	if target == nil {
		return 0, 0
	}

	node.Walk(target.Children, func(current, _ *node.Node, _ int) bool {
		total++

		if t.IsSelected(current.Key) {
			selected++
		}

		return true
	})

	return selected, total
}
