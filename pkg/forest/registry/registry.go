// Package registry maintains the three forest indexes: natural key to node,
// internal id to node, and node to internal id.
package registry

import (
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/identity"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
)

// maxSuggestDistance is the largest edit distance Suggest still reports.
const maxSuggestDistance = 3

// Registry owns the index set of a forest. It is a single aggregate with one
// repair contract: after any public method returns, Rebuild over the same
// forest would not change a single index entry.
// Not safe for concurrent use.
type Registry struct {
	alloc  *identity.Allocator
	byKey  map[string]*node.Node
	byID   map[string]*node.Node
	byNode map[*node.Node]string
}

// New creates an empty Registry backed by alloc. A nil alloc gets a fresh
// default allocator.
func New(alloc *identity.Allocator) *Registry {
	if alloc == nil {
		alloc = identity.NewAllocator()
	}

	return &Registry{
		alloc:  alloc,
		byKey:  make(map[string]*node.Node),
		byID:   make(map[string]*node.Node),
		byNode: make(map[*node.Node]string),
	}
}

type pendingID struct {
	target *node.Node
	id     string
}

// Rebuild reindexes the whole forest in depth-first pre-order. A node keeps
// its internal id when it was already indexed under that id, or when the id
// came from outside and was never issued. Every other node gets a fresh id.
//
// The new indexes are built off to the side and swapped in only on success,
// so a failed allocation leaves the previous indexes and ids untouched.
func (r *Registry) Rebuild(forest []*node.Node) error {
	byKey := make(map[string]*node.Node, len(r.byKey))
	byID := make(map[string]*node.Node, len(r.byID))
	byNode := make(map[*node.Node]string, len(r.byNode))

	var (
		pending  []pendingID
		allocErr error
	)

	node.Walk(forest, func(current, _ *node.Node, _ int) bool {
		if allocErr != nil {
			return false
		}

		current.Key = node.NaturalKey(current.Fields)
		byKey[current.Key] = current

		id, keep := r.reusableID(current, byID)
		if !keep {
			fresh, err := r.alloc.Allocate()
			if err != nil {
				allocErr = err

				return false
			}

			id = fresh
			pending = append(pending, pendingID{target: current, id: id})
		}

		byID[id] = current
		byNode[current] = id

		return true
	})

	if allocErr != nil {
		return fmt.Errorf("rebuild registry: %w", allocErr)
	}

	for _, assign := range pending {
		assign.target.InternalID = assign.id
	}

	r.byKey, r.byID, r.byNode = byKey, byID, byNode

	return nil
}

// reusableID decides whether current may keep the id it carries.
func (r *Registry) reusableID(current *node.Node, byID map[string]*node.Node) (string, bool) {
	id := current.InternalID
	if id == "" {
		return "", false
	}

	if owner, taken := byID[id]; taken && owner != current {
		return "", false
	}

	if prior, indexed := r.byNode[current]; indexed && prior == id {
		return id, true
	}

	return id, r.alloc.Reserve(id)
}

// Register indexes a freshly inserted subtree, allocating ids for all of its
// nodes. On failure nothing is indexed and no node is modified.
func (r *Registry) Register(subtree *node.Node) error {
	nodes := subtree.Subtree()
	ids := make([]string, len(nodes))

	for idx := range nodes {
		id, err := r.alloc.Allocate()
		if err != nil {
			return fmt.Errorf("register subtree: %w", err)
		}

		ids[idx] = id
	}

	for idx, current := range nodes {
		current.InternalID = ids[idx]
		current.Key = node.NaturalKey(current.Fields)
		r.byID[ids[idx]] = current
		r.byNode[current] = ids[idx]
	}

	return nil
}

// Forget drops every node of a removed subtree from the id indexes and from
// the key index where the key still points at that node. Forgotten ids stay
// issued in the allocator and are never reused.
func (r *Registry) Forget(subtree *node.Node) {
	subtree.VisitPreOrder(func(current *node.Node) {
		if id, ok := r.byNode[current]; ok {
			delete(r.byID, id)
			delete(r.byNode, current)
		}

		if r.byKey[current.Key] == current {
			delete(r.byKey, current.Key)
		}
	})
}

// RepairKeys updates the key index after changed nodes were inserted or had
// their keys re-derived; previous holds the former key of each re-keyed node.
// Additions that cannot disturb last-write-wins order are applied in place.
// Anything else (a collision with another node, or a vacated key another node
// may share) falls back to ReindexKeys.
func (r *Registry) RepairKeys(forest, changed []*node.Node, previous map[*node.Node]string) {
	members := make(map[*node.Node]struct{}, len(changed))
	for _, current := range changed {
		members[current] = struct{}{}
	}

	for _, current := range changed {
		if old, rekeyed := previous[current]; rekeyed && old != current.Key && r.byKey[old] == current {
			r.ReindexKeys(forest)

			return
		}

		if holder, taken := r.byKey[current.Key]; taken {
			if _, own := members[holder]; !own {
				r.ReindexKeys(forest)

				return
			}
		}
	}

	for _, current := range changed {
		r.byKey[current.Key] = current
	}
}

// ReindexKeys recomputes the key index from the forest without touching ids.
func (r *Registry) ReindexKeys(forest []*node.Node) {
	byKey := make(map[string]*node.Node, len(r.byKey))

	node.Walk(forest, func(current, _ *node.Node, _ int) bool {
		byKey[current.Key] = current

		return true
	})

	r.byKey = byKey
}

// LookupByKey returns the node indexed under a natural key.
func (r *Registry) LookupByKey(key string) (*node.Node, bool) {
	found, ok := r.byKey[key]

	return found, ok
}

// LookupByInternalID returns the node carrying an internal id.
func (r *Registry) LookupByInternalID(id string) (*node.Node, bool) {
	found, ok := r.byID[id]

	return found, ok
}

// InternalIDOf returns the internal id indexed for a node. Pruned copies made
// by filtering are distinct nodes and are not indexed.
func (r *Registry) InternalIDOf(target *node.Node) (string, bool) {
	id, ok := r.byNode[target]

	return id, ok
}

// Len returns the number of indexed nodes.
func (r *Registry) Len() int {
	return len(r.byID)
}

// Keys returns all indexed natural keys, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.byKey))

	for key := range r.byKey {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// InternalIDs returns all indexed internal ids, sorted.
func (r *Registry) InternalIDs() []string {
	ids := make([]string, 0, len(r.byID))

	for id := range r.byID {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// Issued reports whether the allocator ever handed out id.
func (r *Registry) Issued(id string) bool {
	return r.alloc.Issued(id)
}

// Suggest returns the indexed natural key closest to key by edit distance,
// for "did you mean" diagnostics. It returns false when nothing is close.
func (r *Registry) Suggest(key string) (string, bool) {
	best := ""
	bestDist := maxSuggestDistance + 1

	for _, candidate := range r.Keys() {
		dist := levenshtein.ComputeDistance(key, candidate)
		if dist < bestDist {
			best, bestDist = candidate, dist
		}
	}

	return best, bestDist <= maxSuggestDistance
}
