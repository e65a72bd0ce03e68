package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/atomdb/atom"
	"github.com/teranos/atomdb/errors"
	"github.com/teranos/atomdb/hasher"
	"github.com/teranos/atomdb/internal/testutil"
	"github.com/teranos/atomdb/logger"
	"github.com/teranos/atomdb/server"
	"github.com/teranos/atomdb/storage"
	"github.com/teranos/atomdb/storage/memory"
	"github.com/teranos/atomdb/storage/storagetest"
)

func testConfig(url string) Config {
	return Config{URL: url, RetryMax: 2, RetryWait: 5 * time.Millisecond, Timeout: 5 * time.Second}
}

// setupRemote serves a fresh memory backend and returns a client of it.
func setupRemote(t *testing.T, opts ...memory.Option) *Client {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()
	srv := server.New(memory.New(opts...), server.WithLogger(log))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	c, err := Open(context.Background(), testConfig(ts.URL), WithLogger(log))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRemoteBackendContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return setupRemote(t)
	})
}

func TestOpenFetchesSchema(t *testing.T) {
	c := setupRemote(t, memory.WithSchema(atom.NewSchema("Pair", "Set")))

	assert.True(t, c.Schema().IsUnordered("Pair"))
	assert.True(t, c.Schema().IsUnordered("Set"))
	assert.False(t, c.Schema().IsUnordered("Inheritance"))
}

func TestNewRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8877", "ftp://host", "http://"} {
		_, err := New(Config{URL: u})
		assert.True(t, errors.IsInvalidRequestError(err), "url %q: %v", u, err)
	}
}

func TestConnectionFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := Open(context.Background(), testConfig(url))
	require.Error(t, err)
	assert.True(t, errors.IsConnectionError(err), "got %v", err)
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"node_count":3,"link_count":4}`))
	}))
	defer ts.Close()

	c, err := New(testConfig(ts.URL))
	require.NoError(t, err)

	counts, err := c.CountAtoms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Nodes: 3, Links: 4}, counts)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c, err := New(testConfig(ts.URL))
	require.NoError(t, err)

	_, err = c.CountAtoms(context.Background())
	assert.True(t, errors.IsConnectionError(err), "got %v", err)
	assert.Equal(t, int32(3), attempts.Load(), "one call plus two retries")
}

// slowServer answers after d unless the client gives up first.
func slowServer(t *testing.T, d time.Duration) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(d):
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"node_count":0,"link_count":0}`))
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestClientTimeout(t *testing.T) {
	ts := slowServer(t, 2*time.Second)
	c, err := New(Config{URL: ts.URL, RetryMax: 0, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.CountAtoms(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTimeout), "got %v", err)
	assert.False(t, errors.IsConnectionError(err))
}

func TestContextDeadline(t *testing.T) {
	ts := slowServer(t, 2*time.Second)
	c, err := New(testConfig(ts.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.CountAtoms(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrTimeout), "got %v", err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	_, err = c.CountAtoms(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, errors.ErrTimeout))
}

func TestServerErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"disk full","code":"internal"}`))
	}))
	defer ts.Close()

	c, err := New(testConfig(ts.URL))
	require.NoError(t, err)

	_, err = c.AddNode(context.Background(), storage.Node("Concept", "human"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, errors.IsConnectionError(err))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestRequestIDPropagated(t *testing.T) {
	var seen atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get(server.RequestIDHeader))
		w.Write([]byte(`{"node_count":0,"link_count":0}`))
	}))
	defer ts.Close()

	c, err := New(testConfig(ts.URL))
	require.NoError(t, err)

	ctx := logger.WithRequestID(context.Background(), "req-abc")
	_, err = c.CountAtoms(ctx)
	require.NoError(t, err)
	assert.Equal(t, "req-abc", seen.Load())

	_, err = c.CountAtoms(context.Background())
	require.NoError(t, err)
	assert.Len(t, seen.Load(), 36, "fresh uuid when the context carries none")
}

func TestMatchedLinksPage(t *testing.T) {
	c := setupRemote(t)
	ctx := context.Background()
	testutil.LoadAnimals(t, c)

	var got []hasher.Handle
	req := storage.PageRequest{ChunkSize: 2}
	pages := 0
	for {
		page, err := c.MatchedLinksPage(ctx, "Inheritance", []hasher.Handle{hasher.Wildcard, hasher.Wildcard}, storage.MatchOptions{}, req)
		require.NoError(t, err)
		pages++
		for _, m := range page.Items {
			got = append(got, m.Handle)
		}
		if page.Done() {
			break
		}
		req.Cursor = page.Cursor
	}
	assert.Len(t, got, len(testutil.AnimalInheritance))
	assert.Equal(t, len(testutil.AnimalInheritance)/2, pages)
}

func TestClosedClient(t *testing.T) {
	c := setupRemote(t)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.CountAtoms(context.Background())
	assert.True(t, errors.Is(err, errors.ErrClosed), "got %v", err)
}
