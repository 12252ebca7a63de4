package registry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/identity"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/registry"
)

func buildForest(t *testing.T, records ...node.Record) []*node.Node {
	t.Helper()

	forest, err := node.FromRecords(records)
	require.NoError(t, err)

	return forest
}

func sampleForest(t *testing.T) []*node.Node {
	t.Helper()

	return buildForest(t,
		node.Record{"id": "a", "name": "A", "children": []any{
			map[string]any{"id": "b", "name": "B"},
			map[string]any{"name": "keyless"},
		}},
		node.Record{"id": "c", "name": "C"},
	)
}

type snapshot struct {
	keys map[string]*node.Node
	ids  map[string]*node.Node
}

func takeSnapshot(reg *registry.Registry) snapshot {
	snap := snapshot{keys: map[string]*node.Node{}, ids: map[string]*node.Node{}}

	for _, key := range reg.Keys() {
		snap.keys[key], _ = reg.LookupByKey(key)
	}

	for _, id := range reg.InternalIDs() {
		snap.ids[id], _ = reg.LookupByInternalID(id)
	}

	return snap
}

func TestRebuildIndexesEveryNode(t *testing.T) {
	t.Parallel()

	forest := sampleForest(t)
	reg := registry.New(nil)

	require.NoError(t, reg.Rebuild(forest))
	assert.Equal(t, 4, reg.Len())

	b, ok := reg.LookupByKey("b")
	require.True(t, ok)
	assert.Equal(t, "B", b.Fields["name"])

	keyless, ok := reg.LookupByKey("namekeyless")
	require.True(t, ok)

	node.Walk(forest, func(current, _ *node.Node, _ int) bool {
		id, found := reg.InternalIDOf(current)
		require.True(t, found)
		assert.Equal(t, current.InternalID, id)

		back, found := reg.LookupByInternalID(id)
		require.True(t, found)
		assert.Same(t, current, back)

		return true
	})

	assert.NotEmpty(t, keyless.InternalID)
}

func TestRebuildIdempotent(t *testing.T) {
	t.Parallel()

	forest := sampleForest(t)
	reg := registry.New(nil)

	require.NoError(t, reg.Rebuild(forest))
	first := takeSnapshot(reg)

	require.NoError(t, reg.Rebuild(forest))
	second := takeSnapshot(reg)

	assert.Equal(t, first, second)
}

func TestRebuildReservesExternalIDs(t *testing.T) {
	t.Parallel()

	forest := buildForest(t,
		node.Record{"id": "a", "_iid": "ext-1"},
		node.Record{"id": "b", "_iid": "ext-1"},
	)
	reg := registry.New(nil)

	require.NoError(t, reg.Rebuild(forest))

	assert.Equal(t, "ext-1", forest[0].InternalID)
	assert.NotEqual(t, "ext-1", forest[1].InternalID)
	assert.True(t, reg.Issued("ext-1"))
}

func TestRebuildNeverReassignsIssuedID(t *testing.T) {
	t.Parallel()

	reg := registry.New(nil)
	original := sampleForest(t)
	require.NoError(t, reg.Rebuild(original))

	stolenID := original[1].InternalID

	impostor := buildForest(t, node.Record{"id": "z", "_iid": stolenID})
	require.NoError(t, reg.Rebuild(impostor))

	assert.NotEqual(t, stolenID, impostor[0].InternalID)

	_, ok := reg.LookupByInternalID(stolenID)
	assert.False(t, ok)
}

func TestRebuildAtomicOnExhaustion(t *testing.T) {
	t.Parallel()

	frozen := time.Unix(0, 0)
	alloc := identity.NewAllocator(
		identity.WithEntropy(func() string { return "x" }),
		identity.WithClock(func() time.Time { return frozen }),
		identity.WithMaxAttempts(1),
	)
	reg := registry.New(alloc)

	forest := buildForest(t, node.Record{"id": "a"})
	require.NoError(t, reg.Rebuild(forest))

	before := takeSnapshot(reg)

	// Block the next candidate so the new root cannot be given an id.
	require.True(t, alloc.Reserve("n2-0-x"))

	grown := append(forest, buildForest(t, node.Record{"id": "b"})...)
	err := reg.Rebuild(grown)
	require.ErrorIs(t, err, identity.ErrAllocationExhausted)

	assert.Equal(t, before, takeSnapshot(reg))
	assert.Empty(t, grown[1].InternalID)
}

func TestKeyCollisionLastWriteWins(t *testing.T) {
	t.Parallel()

	forest := buildForest(t,
		node.Record{"id": "dup", "name": "first"},
		node.Record{"id": "dup", "name": "second"},
	)
	reg := registry.New(nil)
	require.NoError(t, reg.Rebuild(forest))

	found, ok := reg.LookupByKey("dup")
	require.True(t, ok)
	assert.Same(t, forest[1], found)
	assert.Equal(t, 2, reg.Len())
}

func TestRegisterAndForget(t *testing.T) {
	t.Parallel()

	forest := sampleForest(t)
	reg := registry.New(nil)
	require.NoError(t, reg.Rebuild(forest))

	added, err := node.FromRecord(node.Record{"id": "x", "children": []any{map[string]any{"id": "y"}}})
	require.NoError(t, err)

	forest = append(forest, added)
	require.NoError(t, reg.Register(added))
	reg.RepairKeys(forest, added.Subtree(), nil)

	assert.Equal(t, 6, reg.Len())

	y, ok := reg.LookupByKey("y")
	require.True(t, ok)

	yID := y.InternalID

	reg.Forget(added)
	forest = forest[:len(forest)-1]

	_, ok = reg.LookupByInternalID(yID)
	assert.False(t, ok)

	_, ok = reg.LookupByKey("x")
	assert.False(t, ok)

	_, ok = reg.InternalIDOf(added)
	assert.False(t, ok)

	assert.True(t, reg.Issued(yID))
	assert.Equal(t, 4, reg.Len())

	// The registry is already where a full rebuild would put it.
	before := takeSnapshot(reg)
	require.NoError(t, reg.Rebuild(forest))
	assert.Equal(t, before, takeSnapshot(reg))
}

func TestRepairKeysFallsBackOnCollision(t *testing.T) {
	t.Parallel()

	forest := buildForest(t, node.Record{"id": "k", "name": "first"})
	reg := registry.New(nil)
	require.NoError(t, reg.Rebuild(forest))

	// Inserted at the front: pre-order puts the existing node last.
	added, err := node.FromRecord(node.Record{"id": "k", "name": "front"})
	require.NoError(t, err)

	forest = append([]*node.Node{added}, forest...)
	require.NoError(t, reg.Register(added))
	reg.RepairKeys(forest, []*node.Node{added}, nil)

	holder, ok := reg.LookupByKey("k")
	require.True(t, ok)
	assert.Same(t, forest[1], holder)
}

func TestRepairKeysAfterRekey(t *testing.T) {
	t.Parallel()

	forest := buildForest(t,
		node.Record{"name": "same"},
		node.Record{"name": "same"},
	)
	reg := registry.New(nil)
	require.NoError(t, reg.Rebuild(forest))

	oldKey := forest[1].Key
	forest[1].Merge(node.Record{"name": "renamed"})
	reg.RepairKeys(forest, []*node.Node{forest[1]}, map[*node.Node]string{forest[1]: oldKey})

	held, ok := reg.LookupByKey(oldKey)
	require.True(t, ok)
	assert.Same(t, forest[0], held)

	renamed, ok := reg.LookupByKey("namerenamed")
	require.True(t, ok)
	assert.Same(t, forest[1], renamed)
}

func TestLookupsNotFound(t *testing.T) {
	t.Parallel()

	reg := registry.New(nil)

	_, ok := reg.LookupByKey("missing")
	assert.False(t, ok)

	_, ok = reg.LookupByInternalID("missing")
	assert.False(t, ok)

	_, ok = reg.InternalIDOf(&node.Node{})
	assert.False(t, ok)
}

func TestSuggest(t *testing.T) {
	t.Parallel()

	reg := registry.New(nil)
	require.NoError(t, reg.Rebuild(buildForest(t,
		node.Record{"id": "alpha"},
		node.Record{"id": "beta"},
	)))

	got, ok := reg.Suggest("alpah")
	require.True(t, ok)
	assert.Equal(t, "alpha", got)

	_, ok = reg.Suggest("completely-different")
	assert.False(t, ok)
}
