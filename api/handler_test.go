package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gavinwade12/canLogger/monitor"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingTransport struct {
	mu    sync.Mutex
	lines []string
	err   error
}

func (t *recordingTransport) Send(_ context.Context, line string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.lines = append(t.lines, line)
	return nil
}

func (t *recordingTransport) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

func newTestHandler(t *testing.T, cfg monitor.Config) (*Handler, *monitor.Session, *recordingTransport) {
	t.Helper()
	require.NoError(t, cfg.Normalize())

	tr := &recordingTransport{}
	s, err := monitor.NewSession(tr, cfg)
	require.NoError(t, err)
	s.Open()
	t.Cleanup(s.Close)
	return NewHandler(s, nil), s, tr
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandler(t, monitor.Config{})
	w := do(t, h.InitRoutes(), http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["session"])
	assert.Equal(t, false, body["busOpen"])
}

func TestMessagesAndLog(t *testing.T) {
	h, s, _ := newTestHandler(t, monitor.Config{})
	r := h.InitRoutes()
	s.HandleChunk(context.Background(), "t2001AA\rt1002BBCC\rt2001AB\r")

	w := do(t, r, http.MethodGet, "/api/v1/messages", "")
	require.Equal(t, http.StatusOK, w.Code)
	var msgs struct {
		Count    int                     `json:"count"`
		Messages []monitor.CachedMessage `json:"messages"`
	}
	decode(t, w, &msgs)
	assert.Equal(t, 2, msgs.Count)
	require.Len(t, msgs.Messages, 2)
	assert.Equal(t, "100", msgs.Messages[0].ID)
	assert.Equal(t, "AB", msgs.Messages[1].Data)
	assert.Equal(t, 2, msgs.Messages[1].Count)

	type logBody struct {
		Active bool     `json:"active"`
		Paused bool     `json:"paused"`
		Count  int      `json:"count"`
		Lines  []string `json:"lines"`
	}
	var lb logBody
	decode(t, do(t, r, http.MethodGet, "/api/v1/log", ""), &lb)
	assert.True(t, lb.Active)
	assert.Equal(t, []string{"200 AA", "100 BB CC", "200 AB"}, lb.Lines)

	w = do(t, r, http.MethodPut, "/api/v1/log/state", `{"paused":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	s.HandleChunk(context.Background(), "t3000\r")
	decode(t, do(t, r, http.MethodGet, "/api/v1/log", ""), &lb)
	assert.True(t, lb.Paused)
	assert.Equal(t, 3, lb.Count)

	w = do(t, r, http.MethodPut, "/api/v1/log", `{"lines":["7E8 41 0C","","7E8 41 0D"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":2}`, w.Body.String())
	assert.Equal(t, []string{"7E8 41 0C", "7E8 41 0D"}, s.History())

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPut, "/api/v1/log", `{}`).Code)

	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/api/v1/log", "").Code)
	assert.Empty(t, s.History())
}

func TestConsole(t *testing.T) {
	h, s, _ := newTestHandler(t, monitor.Config{})
	r := h.InitRoutes()
	s.HandleChunk(context.Background(), "V1013\r")

	var body struct {
		Lines []string `json:"lines"`
	}
	decode(t, do(t, r, http.MethodGet, "/api/v1/console", ""), &body)
	require.Len(t, body.Lines, 1)
	assert.True(t, strings.HasSuffix(body.Lines[0], "RX ← V1013"))

	assert.Equal(t, http.StatusNoContent, do(t, r, http.MethodDelete, "/api/v1/console", "").Code)
	assert.Empty(t, s.ConsoleLines())
}

func TestSend(t *testing.T) {
	h, s, tr := newTestHandler(t, monitor.Config{})
	r := h.InitRoutes()

	w := do(t, r, http.MethodPost, "/api/v1/send", `{"line":"V"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/api/v1/send", `{"id":"7df","data":"02 01 0c"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"sent","line":"t7DF302010C"}`, w.Body.String())
	assert.Equal(t, []string{"V", "t7DF302010C"}, tr.Lines())

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/v1/send", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/v1/send", `{"id":"xyz"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/v1/send", `not json`).Code)

	tr.mu.Lock()
	tr.err = errors.New("unplugged")
	tr.mu.Unlock()
	assert.Equal(t, http.StatusBadGateway, do(t, r, http.MethodPost, "/api/v1/send", `{"line":"V"}`).Code)

	s.Close()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, r, http.MethodPost, "/api/v1/send", `{"line":"V"}`).Code)
}

func TestTransmitToggle(t *testing.T) {
	h, _, tr := newTestHandler(t, monitor.Config{
		Commands: []monitor.SavedCommand{{Key: "keepalive", ID: "7DF", Data: "023E00", PeriodMs: 60000}},
	})
	r := h.InitRoutes()

	w := do(t, r, http.MethodPost, "/api/v1/tx/keepalive/toggle", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"started","key":"keepalive","active":["keepalive"]}`, w.Body.String())
	assert.Equal(t, []string{"t7DF3023E00"}, tr.Lines())

	var list struct {
		Active   []string               `json:"active"`
		Commands []monitor.SavedCommand `json:"commands"`
	}
	decode(t, do(t, r, http.MethodGet, "/api/v1/tx", ""), &list)
	assert.Equal(t, []string{"keepalive"}, list.Active)
	require.Len(t, list.Commands, 1)
	assert.Equal(t, "7DF", list.Commands[0].ID)

	w = do(t, r, http.MethodPost, "/api/v1/tx/keepalive/toggle", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"stopped","key":"keepalive","active":[]}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/api/v1/tx/nope/toggle", "").Code)
}

func TestPressMacro(t *testing.T) {
	h, _, tr := newTestHandler(t, monitor.Config{})
	r := h.InitRoutes()

	var list struct {
		Macros []monitor.Macro `json:"macros"`
	}
	decode(t, do(t, r, http.MethodGet, "/api/v1/macros", ""), &list)
	require.Len(t, list.Macros, 6)
	assert.Equal(t, "VER", list.Macros[0].Name)

	w := do(t, r, http.MethodPost, "/api/v1/macros/1/press", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"V"}, tr.Lines())

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodPost, "/api/v1/macros/99/press", "").Code)
}

func TestBus(t *testing.T) {
	h, s, tr := newTestHandler(t, monitor.Config{BusSpeed: 500})
	r := h.InitRoutes()

	w := do(t, r, http.MethodPost, "/api/v1/bus/open", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"busOpen":true,"speed":500}`, w.Body.String())
	assert.Equal(t, []string{"C", "S6", "O"}, tr.Lines())
	assert.True(t, s.BusOpen())

	w = do(t, r, http.MethodPost, "/api/v1/bus/close", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, s.BusOpen())

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodPost, "/api/v1/bus/open", `{"speed":42}`).Code)
}

func TestGraph(t *testing.T) {
	h, s, _ := newTestHandler(t, monitor.Config{
		Graphs: []monitor.GraphSeries{{ID: "rpm", SourceCanID: "7E8", BitOffset: 16, BitLength: 16, MaxVal: 0x2000, Label: "RPM"}},
	})
	r := h.InitRoutes()

	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/api/v1/graphs/nope", "").Code)

	w := do(t, r, http.MethodGet, "/api/v1/graphs/rpm", "")
	require.Equal(t, http.StatusOK, w.Code)
	var empty map[string]interface{}
	decode(t, w, &empty)
	assert.NotContains(t, empty, "value")

	s.HandleChunk(context.Background(), "t7E84410C1000\r")
	s.SampleGraphs()

	var body struct {
		Value   uint64   `json:"value"`
		Scaled  float64  `json:"scaled"`
		Samples []uint64 `json:"samples"`
	}
	decode(t, do(t, r, http.MethodGet, "/api/v1/graphs/rpm", ""), &body)
	assert.Equal(t, uint64(0x1000), body.Value)
	assert.Equal(t, 0.5, body.Scaled)
	assert.Equal(t, []uint64{0x1000}, body.Samples)
}

func TestMetricsEndpoint(t *testing.T) {
	h, s, _ := newTestHandler(t, monitor.Config{})
	s.HandleChunk(context.Background(), "t1000\rt1000\r")

	w := do(t, h.InitRoutes(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "canlogger_frames_decoded_total 2")
}

func TestServerShutdown(t *testing.T) {
	h, _, _ := newTestHandler(t, monitor.Config{})
	srv := NewServer("127.0.0.1:0", h.InitRoutes())
	assert.Equal(t, "127.0.0.1:0", srv.Addr())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe() }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}
