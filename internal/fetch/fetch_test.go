package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tess-ida-etl/internal/domain"
	"github.com/couchcryptid/tess-ida-etl/internal/observability"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, baseURL string, concurrent int) *Client {
	t.Helper()
	c, err := NewClient(baseURL, t.TempDir(), 5*time.Second, concurrent,
		testLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	return c
}

func month(t *testing.T, s string) domain.Month {
	t.Helper()
	m, err := domain.ParseMonth(s)
	require.NoError(t, err)
	return m
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("", t.TempDir(), time.Second, 4,
		testLogger(), observability.NewMetricsForTesting())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDA_URL")
}

func TestFetchMonthWritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/download", r.URL.Path)
		assert.Equal(t, "/stars1", r.URL.Query().Get("path"))
		assert.Equal(t, "stars1_2023-06.dat", r.URL.Query().Get("files"))
		io.WriteString(w, "monthly file body")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1)
	res, err := c.FetchMonth(context.Background(), "stars1", month(t, "2023-06"))
	require.NoError(t, err)
	assert.Equal(t, Written, res)

	body, err := os.ReadFile(filepath.Join(c.baseDir, "stars1", "stars1_2023-06.dat"))
	require.NoError(t, err)
	assert.Equal(t, "monthly file body", string(body))

	// No temporary leftovers.
	entries, err := os.ReadDir(filepath.Join(c.baseDir, "stars1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFetchMonthMissingIsSkip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1)
	res, err := c.FetchMonth(context.Background(), "stars1", month(t, "2023-06"))
	require.NoError(t, err)
	assert.Equal(t, Skipped, res)

	_, statErr := os.Stat(filepath.Join(c.baseDir, "stars1", "stars1_2023-06.dat"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetchMonthServerErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1)
	_, err := c.FetchMonth(context.Background(), "stars1", month(t, "2023-06"))
	require.Error(t, err)

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusForbidden, serr.Code)
}

func TestFetchExact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "stars1_2022-12.dat", r.URL.Query().Get("files"))
		io.WriteString(w, "x")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1)
	res, err := c.FetchExact(context.Background(), "stars1", "stars1_2022-12.dat")
	require.NoError(t, err)
	assert.Equal(t, Written, res)
}

func TestFetchRangeCountsAndConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)

		if r.URL.Query().Get("files") == "stars1_2023-03.dat" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, "body")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	written, skipped, err := c.FetchRange(context.Background(), "stars1",
		month(t, "2023-01"), month(t, "2023-06"))
	require.NoError(t, err)
	assert.Equal(t, 5, written)
	assert.Equal(t, 1, skipped)
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestFetchRangeStopsAfterFailedWave(t *testing.T) {
	var mu sync.Mutex
	requested := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file := r.URL.Query().Get("files")
		mu.Lock()
		requested[file] = true
		mu.Unlock()

		if file == "stars1_2023-02.dat" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, "body")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	_, _, err := c.FetchRange(context.Background(), "stars1",
		month(t, "2023-01"), month(t, "2023-06"))

	var serr *StatusError
	require.ErrorAs(t, err, &serr)

	mu.Lock()
	defer mu.Unlock()
	// Both months of the failing wave were attempted; later waves never ran.
	assert.True(t, requested["stars1_2023-01.dat"])
	assert.True(t, requested["stars1_2023-02.dat"])
	assert.False(t, requested["stars1_2023-03.dat"])
	assert.False(t, requested["stars1_2023-05.dat"])
}

func TestFetchRangeInvertedIsNoOp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	written, skipped, err := c.FetchRange(context.Background(), "stars1",
		month(t, "2023-06"), month(t, "2023-01"))
	require.NoError(t, err)
	assert.Zero(t, written)
	assert.Zero(t, skipped)
}
