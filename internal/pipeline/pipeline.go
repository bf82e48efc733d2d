// Package pipeline implements the batch stages that turn raw monthly
// instrument files into derived artifacts: content hashing, the incremental
// transform with its change-detection cache, range combining, and the
// end-to-end chain used by the pipeline subcommands.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/couchcryptid/tess-ida-etl/internal/domain"
	"github.com/couchcryptid/tess-ida-etl/internal/fetch"
	"github.com/couchcryptid/tess-ida-etl/internal/observability"
)

// Pipeline chains download, transform, and combine for one station. A nil
// fetcher skips the download stage.
type Pipeline struct {
	fetcher     *fetch.Client
	transformer *Transformer
	combiner    *Combiner
	idaDir      string
	ecsvDir     string
	logger      *slog.Logger
	metrics     *observability.Metrics
}

func New(fetcher *fetch.Client, transformer *Transformer, combiner *Combiner,
	idaDir, ecsvDir string, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:     fetcher,
		transformer: transformer,
		combiner:    combiner,
		idaDir:      idaDir,
		ecsvDir:     ecsvDir,
		logger:      logger,
		metrics:     metrics,
	}
}

// RunSingle downloads and transforms one station month.
func (p *Pipeline) RunSingle(ctx context.Context, station string, m domain.Month) error {
	if p.fetcher != nil {
		if _, err := p.fetcher.FetchMonth(ctx, station, m); err != nil {
			return err
		}
	}

	name := domain.MonthlyFileName(station, m)
	rawPath := filepath.Join(domain.StationDir(p.idaDir, station), name)
	outPath := filepath.Join(domain.StationDir(p.ecsvDir, station), domain.ArtifactName(name))
	_, err := p.transformer.TransformOne(ctx, rawPath, outPath)
	var noCoords *domain.NoCoordinatesError
	if errors.As(err, &noCoords) {
		p.logger.Warn("skipping file without coordinates", "file", name, "error", err)
		return nil
	}
	return err
}

// RunRange downloads and transforms the inclusive month range, then
// optionally combines the resulting artifacts.
func (p *Pipeline) RunRange(ctx context.Context, station string, since, until domain.Month, combine bool) error {
	if p.fetcher != nil {
		written, skipped, err := p.fetcher.FetchRange(ctx, station, since, until)
		if err != nil {
			return err
		}
		p.logger.Info("download stage done", "station", station,
			"written", written, "skipped", skipped)
	}

	written, skipped, err := p.transformer.TransformRange(ctx, p.idaDir, p.ecsvDir, station, since, until)
	if err != nil {
		return err
	}
	p.logger.Info("transform stage done", "station", station,
		"written", written, "skipped", skipped)

	if combine {
		if _, err := p.combiner.Combine(p.ecsvDir, station, since, until, ""); err != nil {
			return err
		}
	}
	return nil
}
