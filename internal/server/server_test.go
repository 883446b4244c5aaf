package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/USA-RedDragon/rpc-tester/internal/config"
	"github.com/USA-RedDragon/rpc-tester/internal/db"
	"github.com/USA-RedDragon/rpc-tester/internal/events"
	"github.com/USA-RedDragon/rpc-tester/internal/metrics"
	"github.com/USA-RedDragon/rpc-tester/internal/scripts"
	"github.com/USA-RedDragon/rpc-tester/internal/storage"
	"github.com/USA-RedDragon/rpc-tester/internal/tester"
	gorillaWebsocket "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	*httptest.Server
	mu       sync.Mutex
	received int
	hold     chan struct{}
}

func newNode(t *testing.T) *node {
	t.Helper()
	n := &node{}
	n.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n.mu.Lock()
		n.received++
		hold := n.hold
		n.mu.Unlock()
		if hold != nil {
			<-hold
		}
		if req["method"] == "eth_blockNumber" {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%v,"result":"0x10"}`, req["id"])
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%v,"error":{"code":-32601,"message":"method not found"}}`, req["id"])
	}))
	t.Cleanup(n.Close)
	return n
}

func (n *node) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.received
}

type harness struct {
	router *Router
	tester *tester.Tester
	node   *node
}

func newHarness(t *testing.T, sandboxEnabled bool) *harness {
	t.Helper()
	n := newNode(t)
	cfg := &config.Config{
		Tester: config.Tester{
			DefaultEndpoint:    n.URL,
			Sandbox:            config.Sandbox{Enabled: sandboxEnabled},
			SessionIdleTimeout: time.Minute,
		},
	}
	cfg.Persistence.Database = config.Database{
		Driver:   config.DatabaseDriverSQLite,
		Database: filepath.Join(t.TempDir(), "history.db"),
	}
	gormDB, err := db.MakeDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	store, err := storage.NewStorage(context.Background(), &config.Config{
		Persistence: config.Persistence{Scripts: config.Scripts{
			Driver:    config.ScriptsDriverFilesystem,
			Directory: t.TempDir(),
		}},
	})
	require.NoError(t, err)
	library := scripts.NewLibrary(store)
	t.Cleanup(func() { _ = library.Close() })

	m := metrics.NewMetrics()
	bus := events.NewEventBus()
	tst, err := tester.New(cfg, m, bus, db.NewHistoryRecorder(gormDB))
	require.NoError(t, err)
	return &harness{router: newRouter(cfg, tst, m, bus, gormDB, library), tester: tst, node: n}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) newSession(t *testing.T) string {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		ID       string `json:"id"`
		Endpoint string `json:"endpoint"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, h.node.URL, resp.Endpoint)
	return resp.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthAndNotFound(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)

	w := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	w = h.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Trailing slashes are cleaned instead of redirected
	w = h.do(t, http.MethodGet, "/health/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMethods(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)

	w := h.do(t, http.MethodGet, "/api/v1/methods", nil)
	require.Equal(t, http.StatusOK, w.Code)
	methods, ok := decode(t, w)["methods"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, methods)
	first, ok := methods[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "blockNumber", first["key"])
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)
	id := h.newSession(t)

	w := h.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decode(t, w)
	assert.Equal(t, id, snap["id"])
	assert.Equal(t, false, snap["busy"])
	assert.Equal(t, true, snap["sandboxEnabled"])

	w = h.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/endpoint", map[string]string{"endpoint": "http://other:8545"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://other:8545", decode(t, w)["endpoint"])

	w = h.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/endpoint", map[string]string{"endpoint": "foo"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = h.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/endpoint", map[string]string{"endpoint": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/endpoint/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, h.node.URL, decode(t, w)["endpoint"])

	w = h.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, h.tester.SessionCount())

	w = h.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = h.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendAndLast(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)
	id := h.newSession(t)

	w := h.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/last", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/send", map[string]any{"method": "blockNumber"})
	require.Equal(t, http.StatusOK, w.Code)
	result := decode(t, w)
	assert.Equal(t, "structured", result["source"])
	assert.Equal(t, "eth_blockNumber", result["method"])
	assert.EqualValues(t, 200, result["statusCode"])
	assert.Equal(t, map[string]any{"jsonrpc": "2.0", "id": float64(1), "result": "0x10"}, result["response"])

	w = h.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/last?mode=readable", nil)
	require.Equal(t, http.StatusOK, w.Code)
	presentation, ok := decode(t, w)["presentation"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "readable", presentation["mode"])
	assert.Contains(t, presentation["text"], "16")

	w = h.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/last?mode=fancy", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/copy", nil)
	require.Equal(t, http.StatusOK, w.Code)
	note := decode(t, w)
	assert.Equal(t, "info", note["level"])
	assert.Contains(t, note["text"], `"eth_blockNumber"`)
}

func TestSendErrors(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)
	id := h.newSession(t)

	w := h.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/send", map[string]any{"method": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/send", map[string]any{"method": "eth_foo", "custom": true, "params": "[1,"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, h.node.count())

	w = h.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/send", map[string]any{"method": "eth_foo", "custom": true, "params": "[1]"})
	require.Equal(t, http.StatusOK, w.Code)
	result := decode(t, w)
	assert.Equal(t, "custom", result["source"])
	rpcErr, ok := result["rpcError"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, -32601, rpcErr["code"])

	w = h.do(t, http.MethodPost, "/api/v1/sessions/missing/send", map[string]any{"method": "blockNumber"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendWhileBusy(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)
	id := h.newSession(t)

	hold := make(chan struct{})
	h.node.mu.Lock()
	h.node.hold = hold
	h.node.mu.Unlock()

	first := make(chan int, 1)
	go func() {
		w := h.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/send", map[string]any{"method": "blockNumber"})
		first <- w.Code
	}()
	require.Eventually(t, func() bool { return h.node.count() == 1 }, 5*time.Second, 10*time.Millisecond)

	w := h.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/send", map[string]any{"method": "blockNumber"})
	assert.Equal(t, http.StatusConflict, w.Code)

	close(hold)
	assert.Equal(t, http.StatusOK, <-first)
	assert.Equal(t, 1, h.node.count())
}

func TestSandboxRoutes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)
	id := h.newSession(t)
	base := "/api/v1/sessions/" + id + "/sandbox"

	w := h.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Contains(t, body["script"], "let payload")
	assert.NotEmpty(t, body["examples"])

	w = h.do(t, http.MethodPost, base+"/examples/blockNumber", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["script"], "eth_blockNumber")

	w = h.do(t, http.MethodPost, base+"/examples/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodPost, base+"/run", map[string]string{"script": "let x = 1;"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "script did not define payload", decode(t, w)["error"])
	assert.Equal(t, 0, h.node.count())

	w = h.do(t, http.MethodPost, base+"/run", map[string]string{
		"script": `let payload = {"jsonrpc": "2.0", "id": 7, "method": "eth_blockNumber", "params": []}`,
	})
	require.Equal(t, http.StatusOK, w.Code)
	result := decode(t, w)
	assert.Equal(t, "sandbox", result["source"])
	assert.Equal(t, "eth_blockNumber", result["method"])
	assert.Equal(t, 1, h.node.count())

	w = h.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = h.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, false, decode(t, w)["sandboxOpen"])
}

func TestSandboxDisabled(t *testing.T) {
	t.Parallel()
	h := newHarness(t, false)
	id := h.newSession(t)

	w := h.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/sandbox", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = h.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/sandbox/run", map[string]string{"script": "let payload = {}"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMetricsRouter(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Tester: config.Tester{DefaultEndpoint: "http://127.0.0.1:1", SessionIdleTimeout: time.Minute}}
	m := metrics.NewMetrics()
	tst, err := tester.New(cfg, m, events.NewEventBus(), nil)
	require.NoError(t, err)
	tst.NewSession()

	w := httptest.NewRecorder()
	newMetricsRouter(cfg, tst, m).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rpc_tester_active_sessions 1")
}

type wsEnvelope struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func TestEventsWebsocket(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)
	id := h.newSession(t)

	srv := httptest.NewServer(h.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/sessions/"

	_, resp, err := gorillaWebsocket.DefaultDialer.Dial(wsURL+"missing", nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		_ = resp.Body.Close()
	}

	conn, resp, err := gorillaWebsocket.DefaultDialer.Dial(wsURL+id, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer conn.Close()

	// The PONG arrives after the subscription is in place
	require.NoError(t, conn.WriteMessage(gorillaWebsocket.TextMessage, []byte("ping")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "PONG", string(msg))

	w := h.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/send", map[string]any{"method": "blockNumber"})
	require.Equal(t, http.StatusOK, w.Code)

	var got []wsEnvelope
	for len(got) < 2 {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var env wsEnvelope
		require.NoError(t, conn.ReadJSON(&env))
		got = append(got, env)
	}
	assert.Equal(t, string(events.EventTypeRequestSent), got[0].Type)
	assert.Equal(t, id, got[0].Data["sessionId"])
	assert.Equal(t, "eth_blockNumber", got[0].Data["method"])
	assert.Equal(t, string(events.EventTypeResponseReceived), got[1].Type)
	assert.EqualValues(t, 200, got[1].Data["statusCode"])

	// Closing the session ends the stream
	w = h.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestScriptRoutes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)

	w := h.do(t, http.MethodGet, "/api/v1/scripts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w)["scripts"])

	script := `let payload = {"jsonrpc": "2.0", "id": 7, "method": "eth_blockNumber", "params": []}`
	w = h.do(t, http.MethodPut, "/api/v1/scripts/head", map[string]string{"script": script})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/scripts", nil)
	assert.Equal(t, []any{"head"}, decode(t, w)["scripts"])
	w = h.do(t, http.MethodGet, "/api/v1/scripts/head", nil)
	assert.Equal(t, script, decode(t, w)["script"])

	w = h.do(t, http.MethodPut, "/api/v1/scripts/bad.name", map[string]string{"script": script})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = h.do(t, http.MethodPut, "/api/v1/scripts/empty", map[string]string{"script": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = h.do(t, http.MethodGet, "/api/v1/scripts/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	id := h.newSession(t)
	w = h.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/sandbox/scripts/head", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, script, decode(t, w)["script"])
	w = h.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	body := decode(t, w)
	assert.Equal(t, true, body["sandboxOpen"])
	assert.Equal(t, script, body["script"])
	w = h.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/sandbox/scripts/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(t, http.MethodDelete, "/api/v1/scripts/head", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = h.do(t, http.MethodDelete, "/api/v1/scripts/head", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryRoutes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)
	first := h.newSession(t)
	second := h.newSession(t)

	w := h.do(t, http.MethodPost, "/api/v1/sessions/"+first+"/send", map[string]any{"method": "blockNumber"})
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodPost, "/api/v1/sessions/"+second+"/send", map[string]any{"method": "eth_nope", "custom": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries, ok := decode(t, w)["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 2)
	newest, ok := entries[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, second, newest["sessionId"])
	assert.Equal(t, "eth_nope", newest["method"])

	w = h.do(t, http.MethodGet, "/api/v1/history?session="+first, nil)
	entries, ok = decode(t, w)["entries"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
	entry, ok := entries[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "eth_blockNumber", entry["method"])

	w = h.do(t, http.MethodGet, fmt.Sprintf("/api/v1/history/%v", entry["id"]), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first, decode(t, w)["sessionId"])

	w = h.do(t, http.MethodGet, "/api/v1/history?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = h.do(t, http.MethodGet, "/api/v1/history/99999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = h.do(t, http.MethodGet, "/api/v1/history/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompressedResponses(t *testing.T) {
	t.Parallel()
	h := newHarness(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/methods", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	reader, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	raw, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "blockNumber")
}
