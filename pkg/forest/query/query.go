// Package query computes search-filtered views of a forest.
package query

import (
	"strings"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
)

// filterFrame tracks one node of the post-order filter walk together with the
// retained versions of the children processed so far.
type filterFrame struct {
	source *node.Node
	next   int
	kept   []*node.Node
}

// Filter returns the nodes of forest whose display field contains term,
// case-insensitively, together with every ancestor of a match. Sibling order
// is preserved. A retained node whose children were pruned is replaced by a
// shallow copy carrying the surviving children; untouched nodes are shared
// with forest. An empty term returns forest itself.
func Filter(forest []*node.Node, term, displayField string) []*node.Node {
	if term == "" {
		return forest
	}

	needle := strings.ToLower(term)
	result := make([]*node.Node, 0, len(forest))

	for _, root := range forest {
		if root == nil {
			continue
		}

		if kept := filterTree(root, needle, displayField); kept != nil {
			result = append(result, kept)
		}
	}

	return result
}

// filterTree filters a single tree iteratively and returns the retained root,
// or nil when nothing in the tree matches.
func filterTree(root *node.Node, needle, displayField string) *node.Node {
	stack := []*filterFrame{{source: root}}

	var retainedRoot *node.Node

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if top.next < len(top.source.Children) {
			child := top.source.Children[top.next]
			top.next++

			if child != nil {
				stack = append(stack, &filterFrame{source: child})
			}

			continue
		}

		stack = stack[:len(stack)-1]

		retained := retain(top, needle, displayField)
		if retained == nil {
			continue
		}

		if len(stack) == 0 {
			retainedRoot = retained

			break
		}

		parent := stack[len(stack)-1]
		parent.kept = append(parent.kept, retained)
	}

	return retainedRoot
}

func retain(frame *filterFrame, needle, displayField string) *node.Node {
	if len(frame.kept) == 0 && !matches(frame.source, needle, displayField) {
		return nil
	}

	if sameChildren(frame.source.Children, frame.kept) {
		return frame.source
	}

	pruned := frame.source.ShallowCopy()
	pruned.Children = frame.kept

	return pruned
}

func sameChildren(original, kept []*node.Node) bool {
	if len(original) != len(kept) {
		return false
	}

	for idx := range original {
		if original[idx] != kept[idx] {
			return false
		}
	}

	return true
}

func matches(target *node.Node, needle, displayField string) bool {
	return strings.Contains(strings.ToLower(target.Display(displayField)), needle)
}

// IsMatch reports whether the node's display field contains term,
// case-insensitively. An empty term matches nothing.
func IsMatch(target *node.Node, term, displayField string) bool {
	if term == "" || target == nil {
		return false
	}

	return matches(target, strings.ToLower(term), displayField)
}

// Matches returns the direct hits for term in pre-order, without ancestors.
func Matches(forest []*node.Node, term, displayField string) []*node.Node {
	if term == "" {
		return nil
	}

	needle := strings.ToLower(term)

	var hits []*node.Node

	node.Walk(forest, func(current, _ *node.Node, _ int) bool {
		if matches(current, needle, displayField) {
			hits = append(hits, current)
		}

		return true
	})

	return hits
}

// ExpansionSet returns the natural key of every node in a filtered forest, so
// that a presentation layer can reveal all hits. Callers apply it only for
// non-empty search terms.
func ExpansionSet(filtered []*node.Node) map[string]struct{} {
	expanded := make(map[string]struct{})

	node.Walk(filtered, func(current, _ *node.Node, _ int) bool {
		expanded[current.Key] = struct{}{}

		return true
	})

	return expanded
}
