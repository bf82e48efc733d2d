package ecsv

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/tess-ida-etl/internal/domain"
)

func flatSingleChannelTable() *domain.Table {
	return &domain.Table{
		Header: domain.IDAHeader{
			Variant:     domain.SingleChannel,
			License:     "ODbL 1.0",
			NumHeaders:  35,
			NumChannels: 1,
			NumColumns:  8,
			Instrument:  "stars1",
			Supplier:    domain.Supplier{Observer: "Cristobal Garcia", Affiliation: "UCM"},
			Site:        domain.Site{Place: "Obs. Site", Town: "Coslada", Region: "Madrid", Country: "Spain"},
			Timezone:    "Europe/Madrid",
			Position:    domain.Position{Latitude: 40.4238, Longitude: -3.561, Height: 650, Resolved: true},
			FOV:         17,
			ZeroPoints:  []float64{20.44},
			Aims:        []domain.Aim{{Azimuth: 0, Zenital: 0}},
		},
		Rows: []domain.Row{
			{
				Time:     time.Date(2023, time.June, 1, 0, 0, 5, 0, time.UTC),
				BoxTemp:  21.4,
				SkyTemp:  10.2,
				Readings: []domain.Reading{{Freq: 4.42, Mag: 18.86, ZP: 20.44}},
				Seq:      1234,
			},
			{
				Time:     time.Date(2023, time.June, 1, 0, 1, 5, 0, time.UTC),
				BoxTemp:  21.3,
				SkyTemp:  10.1,
				Readings: []domain.Reading{{Freq: 4.4, Mag: 18.87, ZP: 20.44}},
				Seq:      1235,
			},
		},
		// Azimuth samples stay zero: a flat instrument never serializes them.
		Ephem: []domain.EphemSample{
			{SunAlt: -32.25, MoonAlt: 42, MoonIllum: 0.872},
			{SunAlt: -32.31, MoonAlt: 42, MoonIllum: 0.875},
		},
		Processed: time.Date(2023, time.July, 1, 12, 0, 0, 0, time.UTC),
	}
}

func tiltedFourChannelTable() *domain.Table {
	t := flatSingleChannelTable()
	t.Header.Variant = domain.FourChannel
	t.Header.NumChannels = 4
	t.Header.NumColumns = 17
	t.Header.Instrument = "stars2000"
	t.Header.ZeroPoints = []float64{20.44, 20.5, 20.39, 20.41}
	t.Header.Aims = []domain.Aim{
		{Azimuth: 0, Zenital: 10},
		{Azimuth: 90, Zenital: 45},
		{Azimuth: 180, Zenital: 45},
		{Azimuth: 270, Zenital: 45},
	}
	t.Header.Filters = []string{"UV/IR-740", "RG-630", "BG-39", "GG-495"}
	for i := range t.Rows {
		r := t.Rows[i].Readings[0]
		t.Rows[i].Readings = []domain.Reading{r, r, r, r}
	}
	t.Ephem = []domain.EphemSample{
		{SunAlt: -32.25, SunAz: 310.19, MoonAlt: 42, MoonAz: 170.04, MoonIllum: 0.872},
		{SunAlt: -32.31, SunAz: 310.44, MoonAlt: 42, MoonAz: 170.3, MoonIllum: 0.875},
	}
	return t
}

func TestRoundTripSingleChannel(t *testing.T) {
	table := flatSingleChannelTable()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, table))

	got, err := Read(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(table, got); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripFourChannelTilted(t *testing.T) {
	table := tiltedFourChannelTable()
	require.True(t, table.WithAzimuth())

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, table))

	got, err := Read(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(table, got); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteLayout(t *testing.T) {
	table := flatSingleChannelTable()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, table))
	lines := strings.Split(buf.String(), "\n")

	assert.Equal(t, "# %ECSV 1.0", lines[0])
	assert.Equal(t, "# ---", lines[1])

	var header string
	for _, line := range lines {
		if !strings.HasPrefix(line, "#") {
			header = line
			break
		}
	}
	// A flat instrument carries no azimuth columns.
	assert.Equal(t,
		"time,Enclosure Temperature,Sky Temperature,Frequency,MSAS,ZP,"+
			"Sequence Number,Sun Alt,Moon Alt,Moon Illumination", header)
	assert.Contains(t, buf.String(), "# - {name: MSAS, datatype: float64}")
	assert.Contains(t, buf.String(), "instrument: stars1")
	// Ephemeris precision is fixed at two, zero, and three decimals.
	assert.Contains(t, buf.String(), "2023-06-01T00:00:05.000,21.4,10.2,4.42,18.86,20.44,1234,-32.25,42,0.872")
}

func TestWriteCombinedProvenance(t *testing.T) {
	table := flatSingleChannelTable()
	table.Combined = []string{"stars1_2023-06.ecsv", "stars1_2023-07.ecsv"}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, table))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, table.Combined, got.Combined)
}

func TestWriteRejectsUnaugmentedTable(t *testing.T) {
	table := flatSingleChannelTable()
	table.Ephem = table.Ephem[:1]

	err := Write(&bytes.Buffer{}, table)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ephemeris samples")
}

func TestReadRejectsMismatchedColumns(t *testing.T) {
	table := flatSingleChannelTable()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, table))
	mangled := strings.Replace(buf.String(), "Sky Temperature", "Sky Temp", 1)

	_, err := Read(strings.NewReader(mangled))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column names")
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stars1", "stars1_2023-06.ecsv")
	table := flatSingleChannelTable()

	require.NoError(t, WriteFile(path, table))

	got, err := ReadFile(path)
	require.NoError(t, err)
	if diff := cmp.Diff(table, got); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}

	// No temporary leftovers next to the artifact.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stars1_2023-06.ecsv", entries[0].Name())
}
