// Package ecsv serializes tables as enhanced CSV: a "# "-commented YAML
// metadata block describing the columns and the originating instrument
// header, followed by comma-separated data rows. Files written and read here
// are self-describing; nothing about a table needs to be rediscovered from
// its filename.
package ecsv

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/tess-ida-etl/internal/domain"
)

const versionLine = "%ECSV 1.0"

// column is one entry of the datatype list, rendered in YAML flow style so
// the header block stays one line per column.
type column struct {
	Name     string `yaml:"name"`
	Datatype string `yaml:"datatype"`
}

func (c column) MarshalYAML() (any, error) {
	type plain column
	node := &yaml.Node{}
	if err := node.Encode(plain(c)); err != nil {
		return nil, err
	}
	node.Style = yaml.FlowStyle
	return node, nil
}

type meta struct {
	IDA       domain.IDAHeader `yaml:"ida"`
	Combined  []string         `yaml:"combined,omitempty"`
	Processed time.Time        `yaml:"processed"`
}

type document struct {
	Datatype  []column `yaml:"datatype"`
	Delimiter string   `yaml:"delimiter"`
	Meta      meta     `yaml:"meta"`
}

// Write serializes a table. The row count must match the ephemeris sample
// count; a table that was never augmented is not a valid artifact.
func Write(w io.Writer, t *domain.Table) error {
	if len(t.Ephem) != len(t.Rows) {
		return fmt.Errorf("ecsv: table has %d rows but %d ephemeris samples", len(t.Rows), len(t.Ephem))
	}

	names := t.ColumnNames()
	doc := document{
		Delimiter: ",",
		Meta: meta{
			IDA:       t.Header,
			Combined:  t.Combined,
			Processed: t.Processed,
		},
	}
	for _, name := range names {
		doc.Datatype = append(doc.Datatype, column{Name: name, Datatype: columnDatatype(name)})
	}
	head, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("ecsv: encoding metadata: %w", err)
	}

	buf := bufio.NewWriter(w)
	fmt.Fprintf(buf, "# %s\n# ---\n", versionLine)
	for _, line := range strings.Split(strings.TrimRight(string(head), "\n"), "\n") {
		fmt.Fprintf(buf, "# %s\n", line)
	}

	cw := csv.NewWriter(buf)
	if err := cw.Write(names); err != nil {
		return fmt.Errorf("ecsv: writing column names: %w", err)
	}
	for i := range t.Rows {
		rec := encodeRow(t, i)
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("ecsv: writing row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("ecsv: flushing rows: %w", err)
	}
	return buf.Flush()
}

// WriteFile writes the table to path atomically: the content lands under a
// temporary name first and is renamed into place, so readers never observe a
// partially written artifact.
func WriteFile(path string, t *domain.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, t); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Read parses a serialized table back into its in-memory form.
func Read(r io.Reader) (*domain.Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var yamlLines, dataLines []string
	for _, line := range strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "#"):
			text := strings.TrimPrefix(strings.TrimPrefix(line, "#"), " ")
			if strings.HasPrefix(text, "%") {
				continue
			}
			yamlLines = append(yamlLines, text)
		case strings.TrimSpace(line) != "":
			dataLines = append(dataLines, line)
		}
	}

	var doc document
	if err := yaml.Unmarshal([]byte(strings.Join(yamlLines, "\n")), &doc); err != nil {
		return nil, fmt.Errorf("ecsv: decoding metadata: %w", err)
	}
	t := &domain.Table{
		Header:    doc.Meta.IDA,
		Combined:  doc.Meta.Combined,
		Processed: doc.Meta.Processed,
	}

	cr := csv.NewReader(strings.NewReader(strings.Join(dataLines, "\n")))
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ecsv: reading rows: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("ecsv: missing column header row")
	}
	want := t.ColumnNames()
	if !equalNames(records[0], want) {
		return nil, fmt.Errorf("ecsv: column names %v do not match %s layout", records[0], t.Header.Variant)
	}
	for i, rec := range records[1:] {
		if err := decodeRow(t, rec); err != nil {
			return nil, fmt.Errorf("ecsv: row %d: %w", i+1, err)
		}
	}
	return t, nil
}

// ReadFile parses the artifact at path.
func ReadFile(path string) (*domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func columnDatatype(name string) string {
	switch name {
	case domain.ColTime:
		return "string"
	case domain.ColSeqNum:
		return "int64"
	default:
		return "float64"
	}
}

// encodeRow renders row i in ColumnNames order. Ephemeris columns carry a
// fixed printed precision; measurement columns keep their shortest exact
// decimal form.
func encodeRow(t *domain.Table, i int) []string {
	row := t.Rows[i]
	rec := []string{
		row.Time.UTC().Format(domain.RowTimeLayout),
		floatCell(row.BoxTemp),
		floatCell(row.SkyTemp),
	}
	for _, r := range row.Readings {
		rec = append(rec, floatCell(r.Freq), floatCell(r.Mag), floatCell(r.ZP))
	}
	rec = append(rec, strconv.FormatInt(row.Seq, 10))

	e := t.Ephem[i]
	rec = append(rec, fixedCell(e.SunAlt, 2))
	if t.WithAzimuth() {
		rec = append(rec, fixedCell(e.SunAz, 2))
	}
	rec = append(rec, fixedCell(e.MoonAlt, 0))
	if t.WithAzimuth() {
		rec = append(rec, fixedCell(e.MoonAz, 2))
	}
	rec = append(rec, fixedCell(e.MoonIllum, 3))
	return rec
}

func decodeRow(t *domain.Table, rec []string) error {
	next := fieldCursor(rec)

	ts, err := time.Parse(domain.RowTimeLayout, next())
	if err != nil {
		return fmt.Errorf("bad timestamp: %w", err)
	}
	row := domain.Row{Time: ts}
	if row.BoxTemp, err = floatValue(next()); err != nil {
		return err
	}
	if row.SkyTemp, err = floatValue(next()); err != nil {
		return err
	}
	for ch := 0; ch < t.Header.Variant.Channels(); ch++ {
		var r domain.Reading
		if r.Freq, err = floatValue(next()); err != nil {
			return err
		}
		if r.Mag, err = floatValue(next()); err != nil {
			return err
		}
		if r.ZP, err = floatValue(next()); err != nil {
			return err
		}
		row.Readings = append(row.Readings, r)
	}
	if row.Seq, err = strconv.ParseInt(next(), 10, 64); err != nil {
		return fmt.Errorf("bad sequence number: %w", err)
	}

	var e domain.EphemSample
	if e.SunAlt, err = floatValue(next()); err != nil {
		return err
	}
	if t.WithAzimuth() {
		if e.SunAz, err = floatValue(next()); err != nil {
			return err
		}
	}
	if e.MoonAlt, err = floatValue(next()); err != nil {
		return err
	}
	if t.WithAzimuth() {
		if e.MoonAz, err = floatValue(next()); err != nil {
			return err
		}
	}
	if e.MoonIllum, err = floatValue(next()); err != nil {
		return err
	}

	t.Rows = append(t.Rows, row)
	t.Ephem = append(t.Ephem, e)
	return nil
}

func fieldCursor(rec []string) func() string {
	i := 0
	return func() string {
		v := rec[i]
		i++
		return v
	}
}

func floatCell(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func fixedCell(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func floatValue(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return f, nil
}

func equalNames(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
