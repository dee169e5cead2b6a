package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/typetrace/internal/export"
	"github.com/fakeyudi/typetrace/internal/poller"
	"github.com/fakeyudi/typetrace/internal/server"
	"github.com/fakeyudi/typetrace/internal/source"
)

func newDaemon(t *testing.T) *Client {
	t.Helper()
	push := &source.Push{}
	p := poller.New(push, poller.WithInterval(5*time.Millisecond))
	t.Cleanup(p.Stop)

	srv := httptest.NewServer(server.New(p, server.WithPush(push)).Handler())
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", srv.Client())
	require.NoError(t, err)
	return c
}

func TestStartUnavailable(t *testing.T) {
	c := newDaemon(t)

	_, err := c.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestLifecycle(t *testing.T) {
	c := newDaemon(t)
	ctx := context.Background()

	require.NoError(t, c.PushDocument(ctx, "one"))
	st, err := c.Start(ctx)
	require.NoError(t, err)
	assert.True(t, st.IsLogging)

	// Let the asynchronous baseline capture "one" before editing.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, c.PushDocument(ctx, "one two"))

	require.Eventually(t, func() bool {
		recs, err := c.Changes(ctx, -1)
		return err == nil && len(recs) == 1
	}, 2*time.Second, 5*time.Millisecond)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Additions)

	samples, err := c.CPSHistory(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, samples, 1)

	last, err := c.Changes(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, last)

	data, err := c.Export(ctx, "json")
	require.NoError(t, err)
	assert.NoError(t, export.Validate(data))

	st, err = c.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, st.IsLogging)

	st, err = c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Changes)

	st, err = c.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.IsLogging)
}

func TestAPIError(t *testing.T) {
	c := newDaemon(t)

	_, err := c.Export(context.Background(), "pdf")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "unknown format")
}

func TestDaemonDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, nil)
	require.NoError(t, err)
	_, err = c.Status(context.Background())
	assert.ErrorContains(t, err, "contacting daemon")
}
