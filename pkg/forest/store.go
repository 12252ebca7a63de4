// Package forest owns a mutable forest of records together with its identity
// indexes, search view, pagination, selection and expansion state.
package forest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/treestore/pkg/forest/identity"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/paginate"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/registry"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/selection"
)

// RootID addresses the root sequence wherever a parent id is expected.
const RootID = ""

// DefaultDisplayField is the field searched and shown when none is configured.
const DefaultDisplayField = "name"

// Sentinel errors returned by Store operations.
var (
	ErrNotFound        = errors.New("node not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Metrics receives mutation outcomes. Implementations must be cheap; they are
// called while the store is held.
type Metrics interface {
	RecordMutation(op string, err error)
	SetNodeCount(count int)
}

type nopMetrics struct{}

func (nopMetrics) RecordMutation(string, error) {}
func (nopMetrics) SetNodeCount(int)             {}

// Options configures a Store.
type Options struct {
	// DisplayField is searched by Search and used for CSV output.
	DisplayField string

	// PageSize is the number of top-level nodes per page.
	PageSize int

	// MultiSelect allows more than one selected node.
	MultiSelect bool

	// Cascade applies selection changes to whole subtrees.
	Cascade bool

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics receives mutation outcomes. Optional.
	Metrics Metrics

	// Allocator issues internal ids. Defaults to a fresh allocator.
	Allocator *identity.Allocator
}

// Op names a structural change.
type Op string

// Structural change kinds reported to listeners.
const (
	OpInsert  Op = "insert"
	OpRemove  Op = "remove"
	OpUpdate  Op = "update"
	OpMove    Op = "move"
	OpReplace Op = "replace"
)

// Change describes a committed mutation.
type Change struct {
	Op         Op
	InternalID string
}

// Store is the single owner of a forest and its indexes. Every mutation
// either commits completely or leaves the previous state in place.
// Not safe for concurrent use; see Guarded.
type Store struct {
	logger       *slog.Logger
	metrics      Metrics
	registry     *registry.Registry
	selection    *selection.Tracker
	pager        *paginate.Paginator
	expanded     map[string]struct{}
	listeners    []func(Change)
	roots        []*node.Node
	view         []*node.Node
	term         string
	displayField string
}

// New builds a Store over records. The records are copied.
func New(records []node.Record, opts Options) (*Store, error) {
	if opts.DisplayField == "" {
		opts.DisplayField = DefaultDisplayField
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}

	roots, err := node.FromRecords(records)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	store := &Store{
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		registry: registry.New(opts.Allocator),
		selection: selection.NewTracker(
			selection.WithMultiSelect(opts.MultiSelect),
			selection.WithCascade(opts.Cascade),
		),
		pager:        paginate.New(opts.PageSize),
		expanded:     make(map[string]struct{}),
		displayField: opts.DisplayField,
	}

	err = store.registry.Rebuild(roots)
	if err != nil {
		return nil, fmt.Errorf("index forest: %w", err)
	}

	store.roots = roots
	store.refresh()

	return store, nil
}

// OnChange registers fn to be called after every committed mutation.
func (s *Store) OnChange(fn func(Change)) {
	s.listeners = append(s.listeners, fn)
}

// DisplayField returns the configured display field.
func (s *Store) DisplayField() string {
	return s.displayField
}

// Len returns the number of nodes in the forest.
func (s *Store) Len() int {
	return s.registry.Len()
}

// Roots returns the number of top-level nodes.
func (s *Store) Roots() int {
	return len(s.roots)
}

// Resolve returns the internal id for ref, which may be an internal id or a
// natural key. Internal ids win.
func (s *Store) Resolve(ref string) (string, error) {
	if _, ok := s.registry.LookupByInternalID(ref); ok {
		return ref, nil
	}

	if found, ok := s.registry.LookupByKey(ref); ok {
		return found.InternalID, nil
	}

	return "", s.notFound(ref)
}

func (s *Store) lookup(internalID string) (*node.Node, error) {
	found, ok := s.registry.LookupByInternalID(internalID)
	if !ok {
		return nil, s.notFound(internalID)
	}

	return found, nil
}

func (s *Store) notFound(ref string) error {
	if suggestion, ok := s.registry.Suggest(ref); ok {
		return fmt.Errorf("%w: %q (did you mean %q?)", ErrNotFound, ref, suggestion)
	}

	return fmt.Errorf("%w: %q", ErrNotFound, ref)
}

// commit finishes a successful mutation.
func (s *Store) commit(op Op, internalID string) {
	s.refresh()
	s.metrics.RecordMutation(string(op), nil)
	s.metrics.SetNodeCount(s.registry.Len())
	s.logger.Debug("forest mutated", "op", op, "iid", internalID, "nodes", s.registry.Len())

	change := Change{Op: op, InternalID: internalID}
	for _, fn := range s.listeners {
		fn(change)
	}
}

// reject reports a failed mutation. Soft failures are logged at Warn.
func (s *Store) reject(op Op, err error) error {
	s.metrics.RecordMutation(string(op), err)

	level := slog.LevelWarn
	if errors.Is(err, identity.ErrAllocationExhausted) {
		level = slog.LevelError
	}

	s.logger.Log(context.Background(), level, "forest mutation rejected", "op", op, "error", err)

	return err
}

// refresh recomputes the filtered view and clamps the current page.
func (s *Store) refresh() {
	s.view = s.filtered()
	s.pager.Clamp(len(s.view))
}
