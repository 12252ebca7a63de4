package node

// Visitor is called for every node of a walk. Returning false skips the
// node's children.
type Visitor func(current, parent *Node, depth int) bool

type walkFrame struct {
	node   *Node
	parent *Node
	depth  int
}

// Walk visits roots and their descendants in pre-order using an explicit
// stack, so arbitrarily deep trees never grow the goroutine stack.
func Walk(roots []*Node, visit Visitor) {
	stack := make([]walkFrame, 0, defaultStackCap)
	stack = pushFramesReversed(stack, roots, nil, 0)

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.node == nil {
			continue
		}

		if !visit(top.node, top.parent, top.depth) {
			continue
		}

		stack = pushFramesReversed(stack, top.node.Children, top.node, top.depth+1)
	}
}

func pushFramesReversed(stack []walkFrame, children []*Node, parent *Node, depth int) []walkFrame {
	if cap(stack) < len(stack)+len(children) {
		grown := make([]walkFrame, len(stack), len(stack)+len(children)+stackCapGrowth)
		copy(grown, stack)
		stack = grown
	}

	for idx := len(children) - 1; idx >= 0; idx-- {
		stack = append(stack, walkFrame{node: children[idx], parent: parent, depth: depth})
	}

	return stack
}

// VisitPreOrder visits the node and all its descendants, root first.
func (targetNode *Node) VisitPreOrder(fn func(*Node)) {
	if targetNode == nil {
		return
	}

	Walk([]*Node{targetNode}, func(current, _ *Node, _ int) bool {
		fn(current)

		return true
	})
}

// Find returns every node in the subtree (including the node itself) for
// which predicate holds, in pre-order.
func (targetNode *Node) Find(predicate func(*Node) bool) []*Node {
	var result []*Node

	targetNode.VisitPreOrder(func(current *Node) {
		if predicate(current) {
			result = append(result, current)
		}
	})

	return result
}

// Subtree returns the node followed by all of its descendants in pre-order.
func (targetNode *Node) Subtree() []*Node {
	return targetNode.Find(func(*Node) bool { return true })
}

// Contains reports whether target is the node itself or one of its descendants.
func (targetNode *Node) Contains(target *Node) bool {
	found := false

	Walk([]*Node{targetNode}, func(current, _ *Node, _ int) bool {
		if current == target {
			found = true
		}

		return !found
	})

	return found
}

// Count returns the number of nodes in the forest.
func Count(roots []*Node) int {
	total := 0

	Walk(roots, func(_, _ *Node, _ int) bool {
		total++

		return true
	})

	return total
}

// Locate finds target by identity and returns its parent (nil for a root) and
// its index within the parent's children or the root sequence.
//
//nolint:gocritic // unnamedResult: three-value lookup reads clearer unnamed.
func Locate(roots []*Node, target *Node) (*Node, int, bool) {
	for idx, root := range roots {
		if root == target {
			return nil, idx, true
		}
	}

	var (
		parent *Node
		index  = -1
	)

	Walk(roots, func(current, _ *Node, _ int) bool {
		if index >= 0 {
			return false
		}

		for idx, child := range current.Children {
			if child == target {
				parent, index = current, idx

				return false
			}
		}

		return true
	})

	if index < 0 {
		return nil, -1, false
	}

	return parent, index, true
}

type ancestorFrame struct {
	node *Node
	path []*Node
}

// Ancestors returns the chain of nodes from a root down to the parent of
// target. The result is empty for a root and nil when target is absent.
func Ancestors(roots []*Node, target *Node) []*Node {
	stack := make([]ancestorFrame, 0, defaultStackCap)

	for idx := len(roots) - 1; idx >= 0; idx-- {
		stack = append(stack, ancestorFrame{node: roots[idx], path: []*Node{}})
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if top.node == target {
			return top.path
		}

		childPath := append(append(make([]*Node, 0, len(top.path)+1), top.path...), top.node)

		for idx := len(top.node.Children) - 1; idx >= 0; idx-- {
			stack = append(stack, ancestorFrame{node: top.node.Children[idx], path: childPath})
		}
	}

	return nil
}

// InsertAt returns list with item inserted at index. Out-of-range indexes
// are clamped to the ends.
func InsertAt(list []*Node, index int, item *Node) []*Node {
	index = max(0, min(index, len(list)))

	list = append(list, nil)
	copy(list[index+1:], list[index:])
	list[index] = item

	return list
}

// RemoveAt returns list without the element at index.
func RemoveAt(list []*Node, index int) []*Node {
	return append(list[:index], list[index+1:]...)
}

// IndexOf returns the position of item in list by identity, or -1.
func IndexOf(list []*Node, item *Node) int {
	for idx, candidate := range list {
		if candidate == item {
			return idx
		}
	}

	return -1
}
