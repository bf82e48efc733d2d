package ida

import (
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/tess-ida-etl/internal/domain"
)

// rowDelimiter separates columns within an IDA data row.
const rowDelimiter = ";"

// Parse decodes a complete IDA file: header block first, then data rows.
func Parse(raw []byte) (domain.IDAHeader, []domain.Row, error) {
	header, err := ParseHeader(raw)
	if err != nil {
		return domain.IDAHeader{}, nil, err
	}
	rows, err := ParseRows(raw, header)
	if err != nil {
		return domain.IDAHeader{}, nil, err
	}
	return header, rows, nil
}

// ParseRows decodes the data rows of a raw IDA file according to the
// header's schema variant. The local-time column is validated but discarded.
// Any malformed row is fatal for the whole file.
func ParseRows(raw []byte, header domain.IDAHeader) ([]domain.Row, error) {
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")

	var rows []domain.Row
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		row, err := parseRow(line, i+1, header.Variant)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRow(line string, lineNo int, variant domain.Variant) (domain.Row, error) {
	fields := strings.Split(line, rowDelimiter)
	if len(fields) != variant.Columns() {
		return domain.Row{}, formatErrf(lineNo, "row has %d columns, %s wants %d",
			len(fields), variant, variant.Columns())
	}

	utc, err := parseRowTime(fields[0])
	if err != nil {
		return domain.Row{}, formatErrf(lineNo, "bad UTC timestamp %q", fields[0])
	}
	// The local time column is part of the schema but never kept.
	if _, err := parseRowTime(fields[1]); err != nil {
		return domain.Row{}, formatErrf(lineNo, "bad local timestamp %q", fields[1])
	}

	boxTemp, err := rowFloat(fields[2])
	if err != nil {
		return domain.Row{}, formatErrf(lineNo, "bad enclosure temperature %q", fields[2])
	}
	skyTemp, err := rowFloat(fields[3])
	if err != nil {
		return domain.Row{}, formatErrf(lineNo, "bad sky temperature %q", fields[3])
	}

	channels := variant.Channels()
	readings := make([]domain.Reading, channels)
	for ch := 0; ch < channels; ch++ {
		base := 4 + 3*ch
		freq, err := rowFloat(fields[base])
		if err != nil {
			return domain.Row{}, formatErrf(lineNo, "channel %d: bad frequency %q", ch+1, fields[base])
		}
		mag, err := rowFloat(fields[base+1])
		if err != nil {
			return domain.Row{}, formatErrf(lineNo, "channel %d: bad magnitude %q", ch+1, fields[base+1])
		}
		zp, err := rowFloat(fields[base+2])
		if err != nil {
			return domain.Row{}, formatErrf(lineNo, "channel %d: bad zero point %q", ch+1, fields[base+2])
		}
		readings[ch] = domain.Reading{Freq: freq, Mag: mag, ZP: zp}
	}

	seqField := fields[len(fields)-1]
	seq, err := strconv.ParseInt(strings.TrimSpace(seqField), 10, 64)
	if err != nil {
		return domain.Row{}, formatErrf(lineNo, "bad sequence number %q", seqField)
	}

	return domain.Row{
		Time:     utc,
		BoxTemp:  boxTemp,
		SkyTemp:  skyTemp,
		Readings: readings,
		Seq:      seq,
	}, nil
}

// parseRowTime accepts row timestamps with or without a fractional-second
// part; both spellings occur in the wild.
func parseRowTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(domain.RowTimeLayout, s)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02T15:04:05", s)
}

func rowFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
