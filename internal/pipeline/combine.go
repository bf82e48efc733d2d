package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/tess-ida-etl/internal/domain"
	"github.com/couchcryptid/tess-ida-etl/internal/ecsv"
	"github.com/couchcryptid/tess-ida-etl/internal/observability"
)

// Combiner concatenates a station's monthly artifacts over a period range
// into one combined artifact with provenance metadata.
type Combiner struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewCombiner(logger *slog.Logger, metrics *observability.Metrics) *Combiner {
	return &Combiner{logger: logger, metrics: metrics}
}

// Combine merges every monthly artifact of the station whose period lies in
// [since, until], in period order, and writes the result next to its
// constituents. outName overrides the default <station>_<YYYYMM>-<YYYYMM>
// name when non-empty. An empty range is a logged no-op and returns "".
func (c *Combiner) Combine(ecsvDir, station string, since, until domain.Month, outName string) (string, error) {
	dir := domain.StationDir(ecsvDir, station)
	names, err := artifactsInRange(dir, since, until)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		c.logger.Warn("no artifacts to combine", "station", station, "since", since, "until", until)
		return "", nil
	}

	acc, err := ecsv.ReadFile(filepath.Join(dir, names[0]))
	if err != nil {
		return "", fmt.Errorf("combine: %s: %w", names[0], err)
	}
	for _, name := range names[1:] {
		part, err := ecsv.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return "", fmt.Errorf("combine: %s: %w", name, err)
		}
		if part.Header.Variant != acc.Header.Variant {
			return "", fmt.Errorf("combine: %s is %s, earlier constituents are %s",
				name, part.Header.Variant, acc.Header.Variant)
		}
		acc.Rows = append(acc.Rows, part.Rows...)
		acc.Ephem = append(acc.Ephem, part.Ephem...)
	}
	acc.Combined = names
	acc.Processed = domain.Now()

	if outName == "" {
		outName = domain.CombinedName(station, since, until)
	}
	outPath := filepath.Join(dir, outName)
	if err := ecsv.WriteFile(outPath, acc); err != nil {
		return "", err
	}
	c.metrics.CombinesRun.Inc()
	c.logger.Info("combined artifact written", "station", station,
		"constituents", len(names), "rows", len(acc.Rows), "out", outPath)
	return outPath, nil
}

// artifactsInRange lists monthly artifact names with a period token in
// [since, until], sorted. Combined artifacts carry a YYYYMM-YYYYMM token and
// never match a plain month, so they are not re-combined.
func artifactsInRange(dir string, since, until domain.Month) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".ecsv") {
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
