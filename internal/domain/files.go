package domain

import (
	"path/filepath"
	"strings"
)

// MonthlyFileName builds the canonical raw file name for a station and month,
// e.g. "stars289_2023-06.dat".
func MonthlyFileName(station string, m Month) string {
	return station + "_" + m.String() + ".dat"
}

// ArtifactName swaps a raw file name's extension for the derived artifact
// extension: "stars289_2023-06.dat" -> "stars289_2023-06.ecsv".
func ArtifactName(rawName string) string {
	return strings.TrimSuffix(rawName, filepath.Ext(rawName)) + ".ecsv"
}

// CombinedName builds the default combined artifact name for a station and
// period boundary, e.g. "stars289_202306-202309.ecsv".
func CombinedName(station string, since, until Month) string {
	return station + "_" + since.Compact() + "-" + until.Compact() + ".ecsv"
}

// StationDir joins the per-station subdirectory under a base directory.
func StationDir(baseDir, station string) string {
	return filepath.Join(baseDir, station)
}

// NameAndPeriod extracts the station name and embedded period token from a
// monthly file path. The station is the parent directory's base name; the
// period is the token after the underscore in the file name ("" when the
// name does not follow the <station>_<period> convention).
func NameAndPeriod(path string) (station, period string) {
	station = filepath.Base(filepath.Dir(path))
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if _, after, ok := strings.Cut(stem, "_"); ok {
		period = after
	}
	return station, period
}
