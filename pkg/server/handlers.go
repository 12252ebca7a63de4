package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Sumatoshi-tech/treestore/pkg/forest"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/serialize"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SearchRequest sets the search term.
type SearchRequest struct {
	Term string `json:"term"`
}

// InsertRequest adds a record under Parent. Parent and Ref accept internal
// ids or natural keys; an empty Parent addresses the roots.
type InsertRequest struct {
	Parent   string      `json:"parent"`
	Record   node.Record `json:"record"`
	Position string      `json:"position"`
	Ref      string      `json:"ref"`
}

// InsertResponse carries the internal id of an inserted node.
type InsertResponse struct {
	InternalID string `json:"iid"`
}

// MoveRequest relocates a node.
type MoveRequest struct {
	Parent   string `json:"parent"`
	Position string `json:"position"`
	Ref      string `json:"ref"`
}

// NodeResponse is a node with its ancestry.
type NodeResponse struct {
	Record   node.Record        `json:"record"`
	Path     []forest.PathEntry `json:"path"`
	Selected bool               `json:"selected"`
	Expanded bool               `json:"expanded"`
}

// ToggleResponse reports the selection state after a toggle.
type ToggleResponse struct {
	Selected bool `json:"selected"`
	Count    int  `json:"count"`
	Total    int  `json:"total"`
}

// SelectionResponse lists the selected natural keys.
type SelectionResponse struct {
	Keys []string `json:"keys"`
}

// ImportResponse reports the size of an imported forest.
type ImportResponse struct {
	Nodes int `json:"nodes"`
	Roots int `json:"roots"`
}

// writeJSON encodes value as the response body.
func writeJSON(ctx context.Context, rw http.ResponseWriter, status int, value any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	encodeErr := json.NewEncoder(rw).Encode(value)
	if encodeErr != nil {
		slog.Default().ErrorContext(ctx, "failed to encode JSON response", "error", encodeErr)
	}
}

func (s *Server) writeError(ctx context.Context, rw http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(ctx, "request failed", "error", err)
	}

	writeJSON(ctx, rw, status, ErrorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, forest.ErrNotFound), errors.Is(err, errNoSnapshotter):
		return http.StatusNotFound
	case errors.Is(err, serialize.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, forest.ErrInvalidArgument),
		errors.Is(err, serialize.ErrUnknownFormat),
		errors.Is(err, serialize.ErrNotSequence),
		errors.Is(err, serialize.ErrInvalidRecord),
		errors.Is(err, serialize.ErrCorruptPayload),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var (
	errBadRequest    = errors.New("bad request")
	errNoSnapshotter = errors.New("snapshots are not configured")
)

func decodeBody(hr *http.Request, into any) error {
	decodeErr := json.NewDecoder(hr.Body).Decode(into)
	if decodeErr != nil {
		return errors.Join(errBadRequest, decodeErr)
	}

	return nil
}

func (s *Server) handleHealth(rw http.ResponseWriter, hr *http.Request) {
	var nodes int

	_ = s.forest.Do(func(store *forest.Store) error {
		nodes = store.Len()

		return nil
	})

	writeJSON(hr.Context(), rw, http.StatusOK, map[string]any{"status": "ok", "nodes": nodes})
}

func (s *Server) handlePage(rw http.ResponseWriter, hr *http.Request) {
	query := hr.URL.Query()

	var view forest.PageView

	err := s.forest.Do(func(store *forest.Store) error {
		if raw := query.Get("size"); raw != "" {
			size, convErr := strconv.Atoi(raw)
			if convErr != nil {
				return errors.Join(errBadRequest, convErr)
			}

			sizeErr := store.SetPageSize(size)
			if sizeErr != nil {
				return sizeErr
			}
		}

		view = store.CurrentPage()

		if raw := query.Get("page"); raw != "" {
			number, convErr := strconv.Atoi(raw)
			if convErr != nil {
				return errors.Join(errBadRequest, convErr)
			}

			view = store.GoToPage(number)
		}

		return nil
	})
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	writeJSON(hr.Context(), rw, http.StatusOK, view)
}

func (s *Server) handleSearch(rw http.ResponseWriter, hr *http.Request) {
	var req SearchRequest

	err := decodeBody(hr, &req)
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	var view forest.PageView

	_ = s.forest.Do(func(store *forest.Store) error {
		view = store.Search(req.Term)
		if req.Term != "" {
			store.ExpandMatches()
		}

		return nil
	})

	writeJSON(hr.Context(), rw, http.StatusOK, view)
}

func (s *Server) handleInsert(rw http.ResponseWriter, hr *http.Request) {
	var req InsertRequest

	err := decodeBody(hr, &req)
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	var internalID string

	err = s.forest.Do(func(store *forest.Store) error {
		parent, placement, resolveErr := store.ResolvePlacement(req.Parent, req.Position, req.Ref)
		if resolveErr != nil {
			return resolveErr
		}

		var insertErr error

		internalID, insertErr = store.Insert(parent, req.Record, placement)

		return insertErr
	})
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	writeJSON(hr.Context(), rw, http.StatusCreated, InsertResponse{InternalID: internalID})
}

func (s *Server) handleGet(rw http.ResponseWriter, hr *http.Request) {
	var resp NodeResponse

	err := s.forest.Do(func(store *forest.Store) error {
		internalID, resolveErr := store.Resolve(hr.PathValue("id"))
		if resolveErr != nil {
			return resolveErr
		}

		record, getErr := store.Get(internalID)
		if getErr != nil {
			return getErr
		}

		path, pathErr := store.Path(internalID)
		if pathErr != nil {
			return pathErr
		}

		resp = NodeResponse{
			Record:   record,
			Path:     path,
			Selected: store.IsSelected(internalID),
			Expanded: store.IsExpanded(internalID),
		}

		return nil
	})
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	writeJSON(hr.Context(), rw, http.StatusOK, resp)
}

func (s *Server) handleUpdate(rw http.ResponseWriter, hr *http.Request) {
	var partial node.Record

	err := decodeBody(hr, &partial)
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	var record node.Record

	err = s.forest.Do(func(store *forest.Store) error {
		internalID, resolveErr := store.Resolve(hr.PathValue("id"))
		if resolveErr != nil {
			return resolveErr
		}

		updateErr := store.Update(internalID, partial)
		if updateErr != nil {
			return updateErr
		}

		var getErr error

		record, getErr = store.Get(internalID)

		return getErr
	})
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	writeJSON(hr.Context(), rw, http.StatusOK, record)
}

func (s *Server) handleRemove(rw http.ResponseWriter, hr *http.Request) {
	err := s.forest.Do(func(store *forest.Store) error {
		internalID, resolveErr := store.Resolve(hr.PathValue("id"))
		if resolveErr != nil {
			return resolveErr
		}

		return store.Remove(internalID)
	})
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMove(rw http.ResponseWriter, hr *http.Request) {
	var req MoveRequest

	err := decodeBody(hr, &req)
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	var path []forest.PathEntry

	err = s.forest.Do(func(store *forest.Store) error {
		internalID, resolveErr := store.Resolve(hr.PathValue("id"))
		if resolveErr != nil {
			return resolveErr
		}

		parent, placement, placeErr := store.ResolvePlacement(req.Parent, req.Position, req.Ref)
		if placeErr != nil {
			return placeErr
		}

		moveErr := store.Move(internalID, parent, placement)
		if moveErr != nil {
			return moveErr
		}

		var pathErr error

		path, pathErr = store.Path(internalID)

		return pathErr
	})
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	writeJSON(hr.Context(), rw, http.StatusOK, map[string]any{"path": path})
}

func (s *Server) handleToggle(rw http.ResponseWriter, hr *http.Request) {
	var resp ToggleResponse

	err := s.forest.Do(func(store *forest.Store) error {
		internalID, resolveErr := store.Resolve(hr.PathValue("id"))
		if resolveErr != nil {
			return resolveErr
		}

		selected, toggleErr := store.Toggle(internalID)
		if toggleErr != nil {
			return toggleErr
		}

		count, total, countErr := store.SelectionCounts(internalID)
		if countErr != nil {
			return countErr
		}

		resp = ToggleResponse{Selected: selected, Count: count, Total: total}

		return nil
	})
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	writeJSON(hr.Context(), rw, http.StatusOK, resp)
}

func (s *Server) handleSelection(rw http.ResponseWriter, hr *http.Request) {
	var keys []string

	_ = s.forest.Do(func(store *forest.Store) error {
		keys = store.Selected()

		return nil
	})

	if keys == nil {
		keys = []string{}
	}

	writeJSON(hr.Context(), rw, http.StatusOK, SelectionResponse{Keys: keys})
}

func (s *Server) handleClearSelection(rw http.ResponseWriter, _ *http.Request) {
	_ = s.forest.Do(func(store *forest.Store) error {
		store.ClearSelection()

		return nil
	})

	rw.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(rw http.ResponseWriter, hr *http.Request) {
	query := hr.URL.Query()

	format, err := serialize.ParseFormat(query.Get("format"))
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	opts := serialize.Options{IncludeInternalIDs: query.Get("ids") == "true"}

	var buf bytes.Buffer

	err = s.forest.Do(func(store *forest.Store) error {
		return store.Encode(&buf, format, opts)
	})
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	body := buf.Bytes()
	contentType := format.ContentType()

	if query.Get("compress") == "true" {
		body, err = serialize.Compress(body)
		if err != nil {
			s.writeError(hr.Context(), rw, err)

			return
		}

		contentType = "application/octet-stream"
	}

	rw.Header().Set("Content-Type", contentType)
	rw.WriteHeader(http.StatusOK)

	_, writeErr := rw.Write(body)
	if writeErr != nil {
		s.logger.ErrorContext(hr.Context(), "failed to write export", "error", writeErr)
	}
}

func (s *Server) handleImport(rw http.ResponseWriter, hr *http.Request) {
	format, err := serialize.ParseFormat(hr.URL.Query().Get("format"))
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	raw, err := serialize.ReadLimited(hr.Body, s.maxImport)
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	if serialize.IsCompressed(raw) {
		raw, err = serialize.Decompress(raw, s.maxImport)
		if err != nil {
			s.writeError(hr.Context(), rw, err)

			return
		}
	}

	data, err := serialize.Decode(bytes.NewReader(raw), format)
	if err != nil {
		s.writeError(hr.Context(), rw, errors.Join(errBadRequest, err))

		return
	}

	var resp ImportResponse

	err = s.forest.Do(func(store *forest.Store) error {
		importErr := store.Import(data)
		if importErr != nil {
			return importErr
		}

		resp = ImportResponse{Nodes: store.Len(), Roots: store.Roots()}

		return nil
	})
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	writeJSON(hr.Context(), rw, http.StatusOK, resp)
}

func (s *Server) handleSnapshot(rw http.ResponseWriter, hr *http.Request) {
	if s.snapshot == nil {
		s.writeError(hr.Context(), rw, errNoSnapshotter)

		return
	}

	var nodes int

	err := s.forest.Do(func(store *forest.Store) error {
		nodes = store.Len()

		return s.snapshot.Save(store)
	})
	if err != nil {
		s.writeError(hr.Context(), rw, err)

		return
	}

	s.logger.InfoContext(hr.Context(), "snapshot saved", "nodes", nodes)
	writeJSON(hr.Context(), rw, http.StatusOK, map[string]int{"nodes": nodes})
}
