package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/tess-ida-etl/internal/domain"
	"github.com/couchcryptid/tess-ida-etl/internal/ecsv"
	"github.com/couchcryptid/tess-ida-etl/internal/ida"
	"github.com/couchcryptid/tess-ida-etl/internal/observability"
	"github.com/couchcryptid/tess-ida-etl/internal/store"
)

// TransformResult classifies the outcome of a single transform.
type TransformResult int

const (
	// TransformWritten means a fresh artifact landed on disk.
	TransformWritten TransformResult = iota
	// TransformSkipped means content and artifact were already current.
	TransformSkipped
)

// Transformer turns raw monthly files into derived artifacts, at most once
// per distinct file content. The fallback flag enables substituting reference
// coordinates from the store when a file's own position is unresolved.
type Transformer struct {
	store    *store.Store
	ephem    domain.Ephemeris
	fallback bool
	logger   *slog.Logger
	metrics  *observability.Metrics
}

func NewTransformer(st *store.Store, eph domain.Ephemeris, fallback bool,
	logger *slog.Logger, metrics *observability.Metrics) *Transformer {
	return &Transformer{
		store:    st,
		ephem:    eph,
		fallback: fallback,
		logger:   logger,
		metrics:  metrics,
	}
}

// TransformOne transforms rawPath into the artifact at outPath unless the
// content hash says the existing artifact is already current. The cache
// entry is only written after a successful transform, so a failed parse
// never poisons change detection.
func (t *Transformer) TransformOne(ctx context.Context, rawPath, outPath string) (TransformResult, error) {
	digest, err := Digest(rawPath)
	if err != nil {
		return TransformSkipped, err
	}
	filename := filepath.Base(rawPath)

	cached, ok, err := t.store.LookupHash(ctx, filename)
	if err != nil {
		return TransformSkipped, err
	}

	if ok && cached == digest {
		t.metrics.CacheLookups.WithLabelValues("hit").Inc()
		if _, err := os.Stat(outPath); err == nil {
			t.metrics.TransformsSkipped.Inc()
			t.logger.Debug("artifact up to date", "file", filename)
			return TransformSkipped, nil
		}
		// The artifact vanished although the content is unchanged.
		// Rebuild it without touching the cache entry.
		if err := t.transform(ctx, rawPath, outPath); err != nil {
			return TransformSkipped, err
		}
		return TransformWritten, nil
	}

	t.metrics.CacheLookups.WithLabelValues("miss").Inc()
	if err := t.transform(ctx, rawPath, outPath); err != nil {
		return TransformSkipped, err
	}
	if err := t.store.SaveHash(ctx, filename, digest); err != nil {
		return TransformSkipped, err
	}
	return TransformWritten, nil
}

// TransformRange transforms every raw file of the station whose embedded
// period falls in the inclusive [since, until] window, in sorted period
// order. Files without usable coordinates are logged and skipped; other
// per-file failures are collected and reported together after the whole
// range has been attempted.
func (t *Transformer) TransformRange(ctx context.Context, idaDir, ecsvDir, station string,
	since, until domain.Month) (written, skipped int, err error) {
	rawDir := domain.StationDir(idaDir, station)
	names, err := rawFilesInRange(rawDir, since, until)
	if err != nil {
		return 0, 0, err
	}
	if len(names) == 0 {
		t.logger.Warn("no raw files in range", "station", station, "since", since, "until", until)
		return 0, 0, nil
	}

	var failures []error
	for _, name := range names {
		rawPath := filepath.Join(rawDir, name)
		outPath := filepath.Join(domain.StationDir(ecsvDir, station), domain.ArtifactName(name))

		res, err := t.TransformOne(ctx, rawPath, outPath)
		var noCoords *domain.NoCoordinatesError
		switch {
		case errors.As(err, &noCoords):
			t.logger.Warn("skipping file without coordinates", "file", name, "error", err)
			continue
		case err != nil:
			t.logger.Error("transform failed", "file", name, "error", err)
			failures = append(failures, err)
			continue
		}
		if res == TransformWritten {
			written++
		} else {
			skipped++
		}
	}
	return written, skipped, errors.Join(failures...)
}

func (t *Transformer) transform(ctx context.Context, rawPath, outPath string) error {
	raw, err := os.ReadFile(rawPath)
	if err != nil {
		return err
	}
	header, err := ida.ParseHeader(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(rawPath), err)
	}

	station, period := domain.NameAndPeriod(rawPath)
	if !header.Position.Resolved {
		pos, err := t.fallbackPosition(ctx, station, period)
		if err != nil {
			return err
		}
		header.Position = pos
	}

	rows, err := ida.ParseRows(raw, header)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(rawPath), err)
	}
	t.metrics.RowsPerFile.Observe(float64(len(rows)))

	times := make([]time.Time, len(rows))
	for i, row := range rows {
		times[i] = row.Time
	}
	samples, err := t.ephem.Sample(header.Position.Latitude, header.Position.Longitude,
		header.Position.Height, times)
	if err != nil {
		return fmt.Errorf("ephemeris for %s: %w", filepath.Base(rawPath), err)
	}

	table := &domain.Table{
		Header:    header,
		Rows:      rows,
		Ephem:     samples,
		Processed: domain.Now(),
	}
	if err := ecsv.WriteFile(outPath, table); err != nil {
		return err
	}
	t.metrics.TransformsRun.Inc()
	t.logger.Info("artifact written", "station", station, "period", period,
		"rows", len(rows), "out", outPath)
	return nil
}

// fallbackPosition resolves coordinates for a file whose header carries
// none. It only consults the store when fallback mode is on.
func (t *Transformer) fallbackPosition(ctx context.Context, station, period string) (domain.Position, error) {
	if !t.fallback {
		return domain.Position{}, &domain.NoCoordinatesError{Station: station, Period: period}
	}
	pos, ok, err := t.store.LookupCoords(ctx, station)
	if err != nil {
		return domain.Position{}, err
	}
	if !ok {
		return domain.Position{}, &domain.NoCoordinatesError{Station: station, Period: period}
	}
	t.metrics.CoordinateFallbacks.Inc()
	t.logger.Warn("substituted reference coordinates; ephemeris columns in earlier artifacts for this station are stale until regenerated",
		"station", station, "period", period,
		"latitude", pos.Latitude, "longitude", pos.Longitude, "height", pos.Height)
	return pos, nil
}

// rawFilesInRange lists the station's raw file names whose period token lies
// in [since, until], sorted. Period strings compare lexicographically, which
// is time order for the YYYY-MM form; tokens that are not a plain month
// (combined artifacts, strays) never qualify.
func rawFilesInRange(dir string, since, until domain.Month) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".dat") {
			continue
		}
		_, period := domain.NameAndPeriod(entry.Name())
		if _, err := domain.ParseMonth(period); err != nil {
			continue
		}
		if period >= since.String() && period <= until.String() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
