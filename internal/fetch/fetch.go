// Package fetch downloads monthly instrument files from the IDA archive
// server. Downloads run in bounded-concurrency waves; a month the archive
// does not have is a logged skip, any other failure is fatal.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/tess-ida-etl/internal/domain"
	"github.com/couchcryptid/tess-ida-etl/internal/observability"
)

// StatusError is a fatal download failure: any response status other than
// success or not-found.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.Code, e.URL)
}

// Result classifies the outcome of a single download.
type Result int

const (
	// Written means the file body landed on disk.
	Written Result = iota
	// Skipped means the archive has no such file (HTTP 404). Instruments
	// come and go; a missing month is routine, not an error.
	Skipped
)

// Client talks to the archive server and writes monthly files under
// baseDir/<station>/.
type Client struct {
	base       string
	baseDir    string
	concurrent int
	http       *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient builds a download client. The base URL is the archive share
// root; it must be set.
func NewClient(base, baseDir string, timeout time.Duration, concurrent int,
	logger *slog.Logger, metrics *observability.Metrics) (*Client, error) {
	if base == "" {
		return nil, errors.New("fetch: IDA_URL is not set")
	}
	if concurrent < 1 {
		concurrent = 1
	}
	return &Client{
		base:       base,
		baseDir:    baseDir,
		concurrent: concurrent,
		http:       &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// FetchMonth downloads one station's file for one month.
func (c *Client) FetchMonth(ctx context.Context, station string, month domain.Month) (Result, error) {
	return c.fetchFile(ctx, station, domain.MonthlyFileName(station, month))
}

// FetchExact downloads a file by its exact archive name.
func (c *Client) FetchExact(ctx context.Context, station, filename string) (Result, error) {
	return c.fetchFile(ctx, station, filename)
}

// FetchRange downloads every month in the inclusive [since, until] sequence.
// Months are processed in waves of the configured concurrency: all downloads
// of a wave run to completion before the next wave starts, and the first
// fatal error stops the remaining waves.
func (c *Client) FetchRange(ctx context.Context, station string, since, until domain.Month) (written, skipped int, err error) {
	months := domain.MonthRange(since, until)
	if len(months) == 0 {
		c.logger.Warn("empty month range", "station", station, "since", since, "until", until)
		return 0, 0, nil
	}

	var nWritten, nSkipped atomic.Int64
	for start := 0; start < len(months); start += c.concurrent {
		end := min(start+c.concurrent, len(months))

		var g errgroup.Group
		for _, month := range months[start:end] {
			month := month
			g.Go(func() error {
				res, err := c.FetchMonth(ctx, station, month)
				if err != nil {
					return err
				}
				if res == Written {
					nWritten.Add(1)
				} else {
					nSkipped.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return int(nWritten.Load()), int(nSkipped.Load()), err
		}
	}
	return int(nWritten.Load()), int(nSkipped.Load()), nil
}

func (c *Client) fetchFile(ctx context.Context, station, target string) (Result, error) {
	q := url.Values{}
	q.Set("path", "/"+station)
	q.Set("files", target)
	u := c.base + "/download?" + q.Encode()

	started := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Skipped, fmt.Errorf("fetch: building request for %s: %w", target, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.FilesFetched.WithLabelValues("failed").Inc()
		return Skipped, fmt.Errorf("fetch: %s: %w", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.metrics.FilesFetched.WithLabelValues("skipped").Inc()
		c.logger.Warn("file not in archive", "station", station, "file", target)
		return Skipped, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.metrics.FilesFetched.WithLabelValues("failed").Inc()
		return Skipped, &StatusError{URL: u, Code: resp.StatusCode}
	}

	n, err := c.writeFile(station, target, resp.Body)
	if err != nil {
		c.metrics.FilesFetched.WithLabelValues("failed").Inc()
		return Skipped, err
	}
	c.metrics.FilesFetched.WithLabelValues("written").Inc()
	c.metrics.FetchDuration.Observe(time.Since(started).Seconds())
	c.logger.Info("downloaded", "station", station, "file", target, "bytes", n)
	return Written, nil
}

// writeFile streams the body to baseDir/<station>/<target>, landing under a
// temporary name first so a partial download never looks like a monthly file.
func (c *Client) writeFile(station, target string, body io.Reader) (int64, error) {
	dir := domain.StationDir(c.baseDir, station)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, target+".tmp*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("fetch: writing %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	return n, os.Rename(tmp.Name(), filepath.Join(dir, target))
}
