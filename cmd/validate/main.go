// Command validate cross-checks a raw IDA tree against its derived artifacts.
// For every artifact it verifies that the file parses, that every row carries
// an ephemeris annotation, that monthly artifacts have the same row count as
// their raw counterpart, and that combined artifacts can resolve every
// constituent named in their provenance. Problems are reported one per line;
// the exit status reflects whether any were found.
//
// Usage:
//
//	go run ./cmd/validate -ida-dir ida -ecsv-dir ecsv
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/tess-ida-etl/internal/domain"
	"github.com/couchcryptid/tess-ida-etl/internal/ecsv"
	"github.com/couchcryptid/tess-ida-etl/internal/ida"
)

func main() {
	problems, err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, p := range problems {
		fmt.Println(p)
	}
	if len(problems) > 0 {
		fmt.Printf("%d problem(s) found\n", len(problems))
		os.Exit(1)
	}
	fmt.Println("OK")
}

func run(args []string) ([]string, error) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	idaDir := fs.String("ida-dir", "ida", "base directory of raw IDA files")
	ecsvDir := fs.String("ecsv-dir", "ecsv", "base directory of derived artifacts")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	stations, err := stationDirs(*ecsvDir)
	if err != nil {
		return nil, err
	}

	var problems []string
	for _, station := range stations {
		p, err := checkStation(*idaDir, *ecsvDir, station)
		if err != nil {
			return nil, err
		}
		problems = append(problems, p...)
	}
	return problems, nil
}

func stationDirs(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	var stations []string
	for _, e := range entries {
		if e.IsDir() {
			stations = append(stations, e.Name())
		}
	}
	sort.Strings(stations)
	return stations, nil
}

func checkStation(idaDir, ecsvDir, station string) ([]string, error) {
	dir := domain.StationDir(ecsvDir, station)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var problems []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".ecsv") {
			continue
		}
		problems = append(problems, checkArtifact(idaDir, dir, station, e.Name())...)
	}
	return problems, nil
}

func checkArtifact(idaDir, artifactDir, station, name string) []string {
	path := filepath.Join(artifactDir, name)
	t, err := ecsv.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", path, err)}
	}

	var problems []string
	if len(t.Ephem) != len(t.Rows) {
		problems = append(problems, fmt.Sprintf("%s: %d rows but %d ephemeris annotations", path, len(t.Rows), len(t.Ephem)))
	}

	_, period := domain.NameAndPeriod(path)
	if _, err := domain.ParseMonth(period); err == nil {
		problems = append(problems, checkAgainstRaw(idaDir, station, name, path, t)...)
	} else if len(t.Combined) > 0 {
		problems = append(problems, checkProvenance(artifactDir, path, t)...)
	}
	return problems
}

// checkAgainstRaw compares a monthly artifact's row count with its raw file.
// A missing raw file is not a problem: raw trees are routinely pruned after
// transformation.
func checkAgainstRaw(idaDir, station, name, path string, t *domain.Table) []string {
	rawName := strings.TrimSuffix(name, ".ecsv") + ".dat"
	rawPath := filepath.Join(domain.StationDir(idaDir, station), rawName)
	raw, err := os.ReadFile(rawPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return []string{fmt.Sprintf("%s: %v", rawPath, err)}
	}

	_, rows, err := ida.Parse(raw)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", rawPath, err)}
	}
	if len(rows) != len(t.Rows) {
		return []string{fmt.Sprintf("%s: %d rows, raw file has %d", path, len(t.Rows), len(rows))}
	}
	return nil
}

// checkProvenance verifies that each constituent named by a combined artifact
// still exists alongside it and that the constituent row counts sum to the
// combined total.
func checkProvenance(artifactDir, path string, t *domain.Table) []string {
	var problems []string
	total := 0
	for _, name := range t.Combined {
		part, err := ecsv.ReadFile(filepath.Join(artifactDir, name))
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: constituent %s: %v", path, name, err))
			continue
		}
		total += len(part.Rows)
	}
	if len(problems) == 0 && total != len(t.Rows) {
		problems = append(problems, fmt.Sprintf("%s: %d rows, constituents sum to %d", path, len(t.Rows), total))
	}
	return problems
}
