package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treestore/pkg/config"
	"github.com/Sumatoshi-tech/treestore/pkg/forest"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/node"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/serialize"
	"github.com/Sumatoshi-tech/treestore/pkg/server"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, opts server.Options) (*httptest.Server, *forest.Guarded) {
	t.Helper()

	store, err := forest.New([]node.Record{
		{"id": "alpha", "name": "alpha", "children": []any{
			map[string]any{"id": "beta", "name": "beta"},
			map[string]any{"id": "gamma", "name": "gamma"},
		}},
		{"id": "delta", "name": "delta"},
	}, forest.Options{MultiSelect: true, Cascade: true, Logger: quietLogger()})
	require.NoError(t, err)

	guarded := forest.NewGuarded(store)

	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}

	ts := httptest.NewServer(server.New(guarded, opts).Handler())
	t.Cleanup(ts.Close)

	return ts, guarded
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, server.Options{})

	resp := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
	assert.InDelta(t, 4, body["nodes"], 0)
}

func TestPage(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, server.Options{})

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/page?size=1&page=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decode[forest.PageView](t, resp)
	assert.Equal(t, 2, view.Page.Number)
	assert.Equal(t, 2, view.Page.Total)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "delta", view.Items[0]["name"])
}

func TestPageRejectsBadSize(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, server.Options{})

	for _, query := range []string{"size=0", "size=abc", "page=x"} {
		resp := doJSON(t, http.MethodGet, ts.URL+"/api/page?"+query, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
	}
}

func TestSearchExpandsMatches(t *testing.T) {
	t.Parallel()

	ts, guarded := newTestServer(t, server.Options{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/search", server.SearchRequest{Term: "gam"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	view := decode[forest.PageView](t, resp)
	assert.Equal(t, "gam", view.Term)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "alpha", view.Items[0]["name"])

	require.NoError(t, guarded.Do(func(store *forest.Store) error {
		id, err := store.Resolve("alpha")
		require.NoError(t, err)
		assert.True(t, store.IsExpanded(id))

		return nil
	}))
}

func TestInsertGetUpdateRemove(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, server.Options{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/nodes", server.InsertRequest{
		Parent:   "alpha",
		Record:   node.Record{"name": "epsilon"},
		Position: "before",
		Ref:      "gamma",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	inserted := decode[server.InsertResponse](t, resp)
	require.NotEmpty(t, inserted.InternalID)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/nodes/alpha", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	parent := decode[server.NodeResponse](t, resp)
	children, ok := parent.Record["children"].([]any)
	require.True(t, ok)
	require.Len(t, children, 3)

	names := make([]string, 0, len(children))
	for _, child := range children {
		names = append(names, child.(map[string]any)["name"].(string))
	}

	assert.Equal(t, []string{"beta", "epsilon", "gamma"}, names)

	resp = doJSON(t, http.MethodPatch, ts.URL+"/api/nodes/"+inserted.InternalID, node.Record{"color": "red"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := decode[node.Record](t, resp)
	assert.Equal(t, "red", updated["color"])
	assert.Equal(t, "epsilon", updated["name"])

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/nodes/"+inserted.InternalID, nil)
	got := decode[server.NodeResponse](t, resp)
	require.Len(t, got.Path, 1)
	assert.Equal(t, "alpha", got.Path[0].Display)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/nodes/"+inserted.InternalID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/nodes/"+inserted.InternalID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestErrorsMapToStatus(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, server.Options{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown node", http.MethodGet, "/api/nodes/nope", nil, http.StatusNotFound},
		{"unknown parent", http.MethodPost, "/api/nodes",
			server.InsertRequest{Parent: "nope", Record: node.Record{"name": "x"}}, http.StatusNotFound},
		{"nil record", http.MethodPost, "/api/nodes", server.InsertRequest{}, http.StatusBadRequest},
		{"bad position", http.MethodPost, "/api/nodes",
			server.InsertRequest{Record: node.Record{"name": "x"}, Position: "sideways"}, http.StatusBadRequest},
		{"move into own subtree", http.MethodPost, "/api/nodes/alpha/move",
			server.MoveRequest{Parent: "beta"}, http.StatusBadRequest},
		{"bad export format", http.MethodGet, "/api/export?format=xml", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		resp := doJSON(t, tt.method, ts.URL+tt.path, tt.body)
		assert.Equal(t, tt.status, resp.StatusCode, tt.name)

		body := decode[server.ErrorResponse](t, resp)
		assert.NotEmpty(t, body.Error, tt.name)
	}
}

func TestNotFoundSuggestsKey(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, server.Options{})

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/nodes/alpah", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	body := decode[server.ErrorResponse](t, resp)
	assert.Contains(t, body.Error, `did you mean "alpha"?`)
}

func TestMove(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, server.Options{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/nodes/gamma/move",
		server.MoveRequest{Parent: "delta", Position: "first"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/nodes/gamma", nil)
	got := decode[server.NodeResponse](t, resp)
	require.Len(t, got.Path, 1)
	assert.Equal(t, "delta", got.Path[0].Display)
}

func TestToggleAndSelection(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, server.Options{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/nodes/alpha/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	toggled := decode[server.ToggleResponse](t, resp)
	assert.True(t, toggled.Selected)
	assert.Equal(t, 2, toggled.Count)
	assert.Equal(t, 2, toggled.Total)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/selection", nil)
	selection := decode[server.SelectionResponse](t, resp)
	assert.Len(t, selection.Keys, 3)

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/selection", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, http.MethodGet, ts.URL+"/api/selection", nil)
	selection = decode[server.SelectionResponse](t, resp)
	assert.Empty(t, selection.Keys)
}

func TestExportImportRoundTrip(t *testing.T) {
	t.Parallel()

	source, _ := newTestServer(t, server.Options{})
	target, guarded := newTestServer(t, server.Options{})

	resp := doJSON(t, http.MethodGet, source.URL+"/api/export?format=yaml&compress=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, serialize.IsCompressed(payload))

	require.NoError(t, guarded.Do(func(store *forest.Store) error {
		return store.Replace(nil)
	}))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPut,
		target.URL+"/api/import?format=yaml", bytes.NewReader(payload))
	require.NoError(t, err)

	importResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer importResp.Body.Close()

	require.Equal(t, http.StatusOK, importResp.StatusCode)

	imported := decode[server.ImportResponse](t, importResp)
	assert.Equal(t, 4, imported.Nodes)
	assert.Equal(t, 2, imported.Roots)
}

func TestExportCSV(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, server.Options{})

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/export?format=csv", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), serialize.CSVHeader))
	assert.Contains(t, string(body), "beta")
}

func TestImportRejectsOversizeAndInvalid(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, server.Options{MaxImportBytes: 16})

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/import",
		[]node.Record{{"name": "a long enough name to overflow"}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp = doJSON(t, http.MethodPut, ts.URL+"/api/import", map[string]any{"a": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func putImport(t *testing.T, url string, payload []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPut, url, bytes.NewReader(payload))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestImportLimitsDecompressedSize(t *testing.T) {
	t.Parallel()

	ts, guarded := newTestServer(t, server.Options{MaxImportBytes: 1024})

	doc := "[" + strings.TrimSuffix(strings.Repeat(`{"name":"n"},`, 2000), ",") + "]"

	packed, err := serialize.Compress([]byte(doc))
	require.NoError(t, err)
	require.Less(t, len(packed), 1024)

	resp := putImport(t, ts.URL+"/api/import?format=json", packed)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	forged := []byte("TSZ4\x01\xff\xff\xff\x3f\x00")
	resp = putImport(t, ts.URL+"/api/import?format=json", forged)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	require.NoError(t, guarded.Do(func(store *forest.Store) error {
		assert.Equal(t, 4, store.Len())

		return nil
	}))
}

type recordingSnapshot struct {
	saved atomic.Int64
}

func (r *recordingSnapshot) Save(store *forest.Store) error {
	r.saved.Store(int64(store.Len()))

	return nil
}

func TestSnapshotRoute(t *testing.T) {
	t.Parallel()

	bare, _ := newTestServer(t, server.Options{})

	resp := doJSON(t, http.MethodPost, bare.URL+"/api/snapshot", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	snapshot := &recordingSnapshot{}
	ts, _ := newTestServer(t, server.Options{Snapshot: snapshot})

	resp = doJSON(t, http.MethodPost, ts.URL+"/api/snapshot", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(4), snapshot.saved.Load())
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(rw, "# metrics\n")
	})

	ts, _ := newTestServer(t, server.Options{MetricsHandler: metrics})

	resp := doJSON(t, http.MethodGet, ts.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "# metrics\n", string(body))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	t.Parallel()

	store, err := forest.New(nil, forest.Options{Logger: quietLogger()})
	require.NoError(t, err)

	srv := server.New(forest.NewGuarded(store), server.Options{Logger: quietLogger()})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- srv.Serve(ctx, listener, config.ServerConfig{ShutdownTimeout: time.Second})
	}()

	require.Eventually(t, func() bool {
		resp, getErr := http.Get("http://" + listener.Addr().String() + "/healthz") //nolint:noctx // test probe
		if getErr != nil {
			return false
		}

		resp.Body.Close()

		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()

	select {
	case serveErr := <-done:
		require.NoError(t, serveErr)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
