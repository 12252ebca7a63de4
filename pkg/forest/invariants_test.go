package forest //nolint:testpackage // inspects the registry behind the store.

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
)

type indexSnapshot struct {
	keys map[string]*node.Node
	ids  map[string]*node.Node
}

func snapshotIndexes(s *Store) indexSnapshot {
	snap := indexSnapshot{keys: map[string]*node.Node{}, ids: map[string]*node.Node{}}

	for _, key := range s.registry.Keys() {
		snap.keys[key], _ = s.registry.LookupByKey(key)
	}

	for _, id := range s.registry.InternalIDs() {
		snap.ids[id], _ = s.registry.LookupByInternalID(id)
	}

	return snap
}

// requireRebuildNoop checks that the indexes already match a full rebuild.
func requireRebuildNoop(t *testing.T, s *Store) {
	t.Helper()

	before := snapshotIndexes(s)

	require.NoError(t, s.registry.Rebuild(s.roots))
	assert.Equal(t, before, snapshotIndexes(s))
	assert.Equal(t, node.Count(s.roots), s.registry.Len())
}

func TestMutationsLeaveRebuildNoop(t *testing.T) {
	t.Parallel()

	store, err := New([]node.Record{
		{"id": "dup", "name": "one", "children": []any{
			map[string]any{"id": "dup", "name": "nested"},
			map[string]any{"name": "plain"},
		}},
		{"name": "plain"},
	}, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	requireRebuildNoop(t, store)

	firstID := store.roots[0].InternalID
	plainRootID := store.roots[1].InternalID

	inserted, err := store.Insert(RootID, node.Record{"id": "dup", "name": "front"}, AtFirst())
	require.NoError(t, err)
	requireRebuildNoop(t, store)

	_, err = store.Insert(firstID, node.Record{"name": "plain"}, AtLast())
	require.NoError(t, err)
	requireRebuildNoop(t, store)

	require.NoError(t, store.Update(plainRootID, node.Record{"name": "renamed"}))
	requireRebuildNoop(t, store)

	require.NoError(t, store.Update(plainRootID, node.Record{"name": "plain"}))
	requireRebuildNoop(t, store)

	require.NoError(t, store.Move(inserted, RootID, AtLast()))
	requireRebuildNoop(t, store)

	require.NoError(t, store.Move(plainRootID, firstID, BeforeNode(store.roots[0].Children[0].InternalID)))
	requireRebuildNoop(t, store)

	require.NoError(t, store.Remove(inserted))
	requireRebuildNoop(t, store)

	require.NoError(t, store.Remove(firstID))
	requireRebuildNoop(t, store)

	assert.Empty(t, store.roots)
}
