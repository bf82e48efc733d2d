package domain

import (
	"fmt"
	"time"
)

// RowTimeLayout is the UTC timestamp format used in IDA data rows and kept
// in derived artifacts.
const RowTimeLayout = "2006-01-02T15:04:05.000"

// Data column names as they appear in IDA files and derived artifacts.
// Order matters: it is the column order on disk.
const (
	ColTime      = "time" // canonical time column name in artifacts
	ColLocalTime = "Local Date & Time"
	ColBoxTemp   = "Enclosure Temperature"
	ColSkyTemp   = "Sky Temperature"
	ColFreq      = "Frequency"
	ColMag       = "MSAS"
	ColZP        = "ZP"
	ColSeqNum    = "Sequence Number"

	ColSunAlt    = "Sun Alt"
	ColSunAz     = "Sun Az"
	ColMoonAlt   = "Moon Alt"
	ColMoonAz    = "Moon Az"
	ColMoonIllum = "Moon Illumination"
)

// FourChannelCol renders a per-channel column name for the TESS-4C layout,
// e.g. FourChannelCol("Freq", 1) == "Freq1".
func FourChannelCol(base string, channel int) string {
	return fmt.Sprintf("%s%d", base, channel)
}

// Reading is one channel's measurement within a row.
type Reading struct {
	Freq float64
	Mag  float64
	ZP   float64
}

// Row is one photometer reading. The raw file's local-time column is parsed
// for validation but never stored. Readings holds one entry per channel.
type Row struct {
	Time     time.Time
	BoxTemp  float64
	SkyTemp  float64
	Readings []Reading
	Seq      int64
}

// EphemSample holds the ephemeris annotation for one row, at full precision.
// Artifact serialization fixes the printed precision per column.
type EphemSample struct {
	SunAlt    float64
	SunAz     float64
	MoonAlt   float64
	MoonAz    float64
	MoonIllum float64
}

// Table is the unit of serialization: a parsed header, the row sequence, and
// the per-row ephemeris annotations added by the transform step. Combined
// holds provenance (constituent artifact base names, in concatenation order)
// when the table is the result of a range combine.
type Table struct {
	Header    IDAHeader
	Rows      []Row
	Ephem     []EphemSample // len == len(Rows) once augmented
	Combined  []string
	Processed time.Time
}

// WithAzimuth reports whether the artifact carries Sun Az / Moon Az columns.
// Azimuth is only meaningful for tilted instruments (first-channel zenital
// angle not zero).
func (t *Table) WithAzimuth() bool {
	return len(t.Header.Aims) > 0 && t.Header.Aims[0].Zenital != 0
}

// ColumnNames returns the artifact column order for this table's variant.
func (t *Table) ColumnNames() []string {
	names := []string{ColTime, ColBoxTemp, ColSkyTemp}
	if t.Header.Variant == FourChannel {
		for ch := 1; ch <= 4; ch++ {
			names = append(names,
				FourChannelCol("Freq", ch),
				FourChannelCol("MSAS", ch),
				FourChannelCol("ZP", ch),
			)
		}
	} else {
		names = append(names, ColFreq, ColMag, ColZP)
	}
	names = append(names, ColSeqNum, ColSunAlt)
	if t.WithAzimuth() {
		names = append(names, ColSunAz)
	}
	names = append(names, ColMoonAlt)
	if t.WithAzimuth() {
		names = append(names, ColMoonAz)
	}
	names = append(names, ColMoonIllum)
	return names
}
