package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/typetrace/internal/change"
	"github.com/fakeyudi/typetrace/internal/export"
	"github.com/fakeyudi/typetrace/internal/history"
	"github.com/fakeyudi/typetrace/internal/metrics"
	"github.com/fakeyudi/typetrace/internal/poller"
	"github.com/fakeyudi/typetrace/internal/source"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type fixture struct {
	srv    *httptest.Server
	poller *poller.Poller
	push   *source.Push
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	push := &source.Push{}
	rec := metrics.New()
	p := poller.New(push, poller.WithInterval(5*time.Millisecond), poller.WithMetrics(rec))
	t.Cleanup(p.Stop)

	opts = append([]Option{
		WithPush(push),
		WithMetrics(rec),
		WithAuthor("Ada"),
		WithClock(func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }),
	}, opts...)
	srv := httptest.NewServer(New(p, opts...).Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, poller: p, push: push}
}

func (f *fixture) do(t *testing.T, method, path, contentType, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

var pollsLine = regexp.MustCompile(`(?m)^typetrace_polls_total (\S+)$`)

// getJSON fetches path into v without failing the test, for use inside
// Eventually conditions.
func (f *fixture) getJSON(path string, v any) error {
	resp, err := f.srv.Client().Get(f.srv.URL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// polled reports whether /metrics shows at least one completed poll.
func (f *fixture) polled() bool {
	resp, err := f.srv.Client().Get(f.srv.URL + "/metrics")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false
	}
	m := pollsLine.FindSubmatch(body)
	if m == nil {
		return false
	}
	v, err := strconv.ParseFloat(string(m[1]), 64)
	return err == nil && v >= 1
}

// started pushes an initial document, starts logging and waits until the
// baseline has been captured.
func (f *fixture) started(t *testing.T, text string) {
	t.Helper()
	resp := f.do(t, http.MethodPut, "/api/document", "text/plain", text)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/start", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[Status](t, resp)
	require.True(t, st.IsLogging)
	require.NotEmpty(t, st.RunID)

	require.Eventually(t, f.polled, waitFor, tick)
}

func (f *fixture) waitChanges(t *testing.T, n int) []change.Record {
	t.Helper()
	var got []change.Record
	require.Eventually(t, func() bool {
		var recs []change.Record
		if err := f.getJSON("/api/changes", &recs); err != nil {
			return false
		}
		got = recs
		return len(recs) >= n
	}, waitFor, tick)
	return got
}

func TestStartWithoutDocumentIsUnavailable(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/start", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, resp).Error, "unavailable")
	assert.False(t, f.poller.IsActive())
}

func TestStatusReportsLastPush(t *testing.T) {
	f := newFixture(t)

	var st Status
	require.NoError(t, f.getJSON("/api/status", &st))
	assert.Nil(t, st.LastPushAt)

	before := time.Now()
	resp := f.do(t, http.MethodPut, "/api/document", "text/plain", "hello")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.NoError(t, f.getJSON("/api/status", &st))
	require.NotNil(t, st.LastPushAt)
	assert.False(t, st.LastPushAt.Before(before.Truncate(time.Second)))
}

func TestPushedEditsBecomeChanges(t *testing.T) {
	f := newFixture(t)
	f.started(t, "hello")

	f.do(t, http.MethodPut, "/api/document", "text/plain", "hello world")
	got := f.waitChanges(t, 1)
	assert.Equal(t, change.Addition, got[0].ChangeType)
	assert.Equal(t, 6, got[0].ChangeLength)
	assert.Equal(t, 5, got[0].ChangeIndex)

	stats := decode[history.Stats](t, f.do(t, http.MethodGet, "/api/stats", "", ""))
	assert.Equal(t, 1, stats.TotalChanges)
	assert.Equal(t, 1, stats.Additions)
	assert.True(t, stats.IsLogging)

	cps := decode[[]history.CPSSample](t, f.do(t, http.MethodGet, "/api/cps", "", ""))
	assert.Len(t, cps, 1)
}

func TestDocumentAcceptsJSONBody(t *testing.T) {
	f := newFixture(t)
	f.started(t, "draft")

	resp := f.do(t, http.MethodPost, "/api/document", "application/json", `{"text": "drafty"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	got := f.waitChanges(t, 1)
	assert.Equal(t, "drafty", got[0].CurrentText)

	resp = f.do(t, http.MethodPost, "/api/document", "application/json", `{"text": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDocumentWithoutPushSource(t *testing.T) {
	p := poller.New(source.Func(func(context.Context) (string, error) { return "x", nil }))
	srv := httptest.NewServer(New(p).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/document", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode, "/metrics is only mounted with a recorder")
}

func TestChangesLastParam(t *testing.T) {
	f := newFixture(t)
	f.started(t, "a")

	for _, text := range []string{"ab", "abc", "abcd"} {
		f.do(t, http.MethodPut, "/api/document", "text/plain", text)
		f.waitChanges(t, len(text)-1)
	}

	last := decode[[]change.Record](t, f.do(t, http.MethodGet, "/api/changes?last=2", "", ""))
	require.Len(t, last, 2)
	assert.Equal(t, "abcd", last[1].CurrentText)

	none := decode[[]change.Record](t, f.do(t, http.MethodGet, "/api/changes?last=0", "", ""))
	assert.Empty(t, none)

	resp := f.do(t, http.MethodGet, "/api/changes?last=-1", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = f.do(t, http.MethodGet, "/api/cps?last=many", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStopAndClear(t *testing.T) {
	f := newFixture(t)
	f.started(t, "x")
	f.do(t, http.MethodPut, "/api/document", "text/plain", "xy")
	f.waitChanges(t, 1)

	st := decode[Status](t, f.do(t, http.MethodPost, "/api/stop", "", ""))
	assert.False(t, st.IsLogging)
	assert.Equal(t, 1, st.Changes, "stop keeps history")

	st = decode[Status](t, f.do(t, http.MethodPost, "/api/clear", "", ""))
	assert.Equal(t, 0, st.Changes)

	st = decode[Status](t, f.do(t, http.MethodGet, "/api/status", "", ""))
	assert.False(t, st.IsLogging)
}

func TestExportJSON(t *testing.T) {
	f := newFixture(t)
	f.started(t, "cat")
	f.do(t, http.MethodPut, "/api/document", "text/plain", "bat")
	f.waitChanges(t, 1)

	resp := f.do(t, http.MethodGet, "/api/export", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "typetrace-data-2024-03-01T09-30-00Z.json")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, export.Validate(data))

	doc, err := (&export.JSONParser{}).Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.Author)
	assert.Equal(t, f.poller.RunID(), doc.RunID)
	assert.Equal(t, 1, doc.TotalChangesRecorded)
	assert.Equal(t, change.Modification, doc.Changes[0].ChangeType)
}

func TestExportMarkdown(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/export?format=markdown", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/markdown"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	doc, err := (&export.MarkdownParser{}).Parse(data)
	require.NoError(t, err)
	assert.Empty(t, doc.Changes)

	resp = f.do(t, http.MethodGet, "/api/export?format=pdf", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTextRoute(t *testing.T) {
	f := newFixture(t)

	body := decode[textBody](t, f.do(t, http.MethodGet, "/api/text", "", ""))
	assert.Equal(t, poller.UnreadableText, body.Text)

	f.push.Set("visible")
	body = decode[textBody](t, f.do(t, http.MethodGet, "/api/text", "", ""))
	assert.Equal(t, "visible", body.Text)
}

func TestWebSocketStreamsStats(t *testing.T) {
	f := newFixture(t, WithRefreshInterval(10*time.Millisecond))

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	var first history.Stats
	require.NoError(t, conn.ReadJSON(&first))
	assert.False(t, first.IsLogging)

	f.started(t, "q")
	require.Eventually(t, func() bool {
		var s history.Stats
		if err := conn.ReadJSON(&s); err != nil {
			return false
		}
		return s.IsLogging
	}, waitFor, tick)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := poller.New(&source.Push{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(p).Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/status")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, waitFor, tick)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestRequestLoggingKeepsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	s := New(poller.New(&source.Push{}))
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/start", &bytes.Buffer{}))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
