package mcp

import (
	"bytes"
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/treestore/pkg/forest"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/serialize"
)

// NodeView is a node with its ancestry, as returned by tree_get.
type NodeView struct {
	Record   node.Record        `json:"record"`
	Path     []forest.PathEntry `json:"path"`
	Selected bool               `json:"selected"`
	Expanded bool               `json:"expanded"`
}

// ToggleView is the selection state of a node after tree_toggle.
type ToggleView struct {
	InternalID string `json:"iid"`
	Selected   bool   `json:"selected"`
	Count      int    `json:"selected_descendants"`
	Total      int    `json:"descendants"`
}

func (s *Server) handleSearch(
	_ context.Context, _ *mcpsdk.CallToolRequest, input SearchInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	var view forest.PageView

	_ = s.forest.Do(func(store *forest.Store) error {
		view = store.Search(input.Term)
		if input.Term != "" {
			store.ExpandMatches()
		}

		return nil
	})

	return jsonResult(view)
}

func (s *Server) handlePage(
	_ context.Context, _ *mcpsdk.CallToolRequest, input PageInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	var view forest.PageView

	err := s.forest.Do(func(store *forest.Store) error {
		if input.Size != 0 {
			sizeErr := store.SetPageSize(input.Size)
			if sizeErr != nil {
				return sizeErr
			}
		}

		if input.Page > 0 {
			view = store.GoToPage(input.Page)
		} else {
			view = store.CurrentPage()
		}

		return nil
	})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(view)
}

func (s *Server) handleGet(
	_ context.Context, _ *mcpsdk.CallToolRequest, input RefInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Ref == "" {
		return errorResult(ErrEmptyRef)
	}

	var view NodeView

	err := s.forest.Do(func(store *forest.Store) error {
		internalID, err := store.Resolve(input.Ref)
		if err != nil {
			return err
		}

		record, err := store.Get(internalID)
		if err != nil {
			return err
		}

		path, err := store.Path(internalID)
		if err != nil {
			return err
		}

		view = NodeView{
			Record:   record,
			Path:     path,
			Selected: store.IsSelected(internalID),
			Expanded: store.IsExpanded(internalID),
		}

		return nil
	})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(view)
}

func (s *Server) handleInsert(
	_ context.Context, _ *mcpsdk.CallToolRequest, input InsertInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Record == nil {
		return errorResult(ErrEmptyRecord)
	}

	var internalID string

	err := s.forest.Do(func(store *forest.Store) error {
		parent, placement, err := store.ResolvePlacement(input.Parent, input.Position, input.Anchor)
		if err != nil {
			return err
		}

		internalID, err = store.Insert(parent, input.Record, placement)

		return err
	})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]string{"iid": internalID})
}

func (s *Server) handleUpdate(
	_ context.Context, _ *mcpsdk.CallToolRequest, input UpdateInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Ref == "" {
		return errorResult(ErrEmptyRef)
	}

	if input.Fields == nil {
		return errorResult(ErrEmptyFields)
	}

	var record node.Record

	err := s.forest.Do(func(store *forest.Store) error {
		internalID, err := store.Resolve(input.Ref)
		if err != nil {
			return err
		}

		err = store.Update(internalID, input.Fields)
		if err != nil {
			return err
		}

		record, err = store.Get(internalID)

		return err
	})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(record)
}

func (s *Server) handleRemove(
	_ context.Context, _ *mcpsdk.CallToolRequest, input RefInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Ref == "" {
		return errorResult(ErrEmptyRef)
	}

	var remaining int

	err := s.forest.Do(func(store *forest.Store) error {
		internalID, err := store.Resolve(input.Ref)
		if err != nil {
			return err
		}

		err = store.Remove(internalID)
		remaining = store.Len()

		return err
	})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]int{"nodes": remaining})
}

func (s *Server) handleMove(
	_ context.Context, _ *mcpsdk.CallToolRequest, input MoveInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Ref == "" {
		return errorResult(ErrEmptyRef)
	}

	var path []forest.PathEntry

	err := s.forest.Do(func(store *forest.Store) error {
		internalID, err := store.Resolve(input.Ref)
		if err != nil {
			return err
		}

		parent, placement, err := store.ResolvePlacement(input.Parent, input.Position, input.Anchor)
		if err != nil {
			return err
		}

		err = store.Move(internalID, parent, placement)
		if err != nil {
			return err
		}

		path, err = store.Path(internalID)

		return err
	})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]any{"path": path})
}

func (s *Server) handleToggle(
	_ context.Context, _ *mcpsdk.CallToolRequest, input RefInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.Ref == "" {
		return errorResult(ErrEmptyRef)
	}

	var view ToggleView

	err := s.forest.Do(func(store *forest.Store) error {
		internalID, err := store.Resolve(input.Ref)
		if err != nil {
			return err
		}

		selected, err := store.Toggle(internalID)
		if err != nil {
			return err
		}

		count, total, err := store.SelectionCounts(internalID)
		if err != nil {
			return err
		}

		view = ToggleView{InternalID: internalID, Selected: selected, Count: count, Total: total}

		return nil
	})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(view)
}

func (s *Server) handleExport(
	_ context.Context, _ *mcpsdk.CallToolRequest, input ExportInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	format, err := serialize.ParseFormat(input.Format)
	if err != nil {
		return errorResult(err)
	}

	var buf bytes.Buffer

	err = s.forest.Do(func(store *forest.Store) error {
		return store.Encode(&buf, format, serialize.Options{IncludeInternalIDs: input.InternalIDs})
	})
	if err != nil {
		return errorResult(err)
	}

	if buf.Len() > MaxExportBytes {
		return errorResult(fmt.Errorf("%w: %d bytes (max %d)", ErrExportTooLarge, buf.Len(), MaxExportBytes))
	}

	return textResult(buf.String())
}
