// Package ida decodes the IDA monthly file format: a fixed 35-line comment
// header of "key: value" pairs followed by semicolon-separated data rows.
package ida

import "fmt"

// Header geometry of the IDA format. The header is exactly HeaderLines
// comment lines; the last TrailerLines of those are free-form commentary
// with no key/value structure.
const (
	HeaderLines  = 35
	TrailerLines = 13
)

// Header keywords as spelled in IDA files.
const (
	KeyLicense     = "License"
	KeyNumHeaders  = "Number of header lines"
	KeyNumChannels = "Number of channels"
	KeyObserver    = "Data supplier"
	KeyLocation    = "Location name"
	KeyTimezone    = "Local timezone"
	KeyPosition    = "Position"
	KeyFOV         = "Field of view"
	KeyCoverOffset = "TESS cover offset value"
	KeyNumCols     = "Number of fields per line"
	KeyZP          = "TESS zero point"
	KeyAim         = "Measurement direction per channel"
	KeyFilters     = "Filters per channel"
	KeyInstrument  = "Instrument ID"
)

// licenseLineIndex is the 0-based header line carrying the license entry.
// Its printed key is the full license statement rather than the short
// "License" keyword, a known irregularity of the source format; the parser
// remaps it to KeyLicense by line position.
const licenseLineIndex = 3

// FormatError is a fatal decoding failure: a malformed header, a violated
// schema invariant, or a malformed data row. There is no row-skip tolerance;
// the whole file is rejected.
type FormatError struct {
	Line   int // 1-based line number when known, 0 for file-level failures
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("ida format: line %d: %s", e.Line, e.Reason)
	}
	return "ida format: " + e.Reason
}

func formatErrf(line int, format string, args ...any) error {
	return &FormatError{Line: line, Reason: fmt.Sprintf(format, args...)}
}
