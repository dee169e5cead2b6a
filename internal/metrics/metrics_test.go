package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/fakeyudi/typetrace/internal/change"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.Poll()
	r.Poll()
	r.FetchFailed()
	r.Change(change.Record{ChangeType: change.Addition, ChangeLength: 4, CPS: 2}, 1)
	r.Change(change.Record{ChangeType: change.Deletion, ChangeLength: 1, CPS: 0.5}, 2)
	r.Logging(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.polls))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.changes.WithLabelValues("addition")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.charsChanged))
	assert.Equal(t, 0.5, testutil.ToFloat64(r.lastCPS))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.historySize))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.logging))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.Poll()
	r.FetchFailed()
	r.Change(change.Record{}, 0)
	r.HistorySize(3)
	r.Logging(true)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestHandlerServesMetrics(t *testing.T) {
	r := New()
	r.Poll()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "typetrace_polls_total 1"))
}
