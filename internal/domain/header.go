package domain

import "fmt"

// Variant tags the two IDA schema layouts. It is fixed at header-parse time
// and selects the row column schema.
type Variant int

const (
	SingleChannel Variant = iota + 1
	FourChannel
)

func (v Variant) String() string {
	switch v {
	case SingleChannel:
		return "TESS-W"
	case FourChannel:
		return "TESS-4C"
	default:
		return fmt.Sprintf("Variant(%d)", int(v))
	}
}

// Channels returns the number of measurement channels for the variant.
func (v Variant) Channels() int {
	if v == FourChannel {
		return 4
	}
	return 1
}

// Columns returns the number of data columns per row for the variant.
func (v Variant) Columns() int {
	if v == FourChannel {
		return 17
	}
	return 8
}

// Supplier identifies who contributed the data. Empty fields mean the header
// carried a "no value" sentinel.
type Supplier struct {
	Observer    string `yaml:"observer"`
	Affiliation string `yaml:"affiliation"`
}

// Site is the five-part location description from the header.
type Site struct {
	Place     string `yaml:"place"`
	Town      string `yaml:"town"`
	SubRegion string `yaml:"sub_region"`
	Region    string `yaml:"region"`
	Country   string `yaml:"country"`
}

// Position is a station geolocation. Resolved is false when the header's
// position field held sentinels instead of numbers; the coordinate values
// are meaningless in that case.
type Position struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Height    float64 `yaml:"height"`
	Resolved  bool    `yaml:"resolved"`
}

// Aim is a per-channel measurement direction.
type Aim struct {
	Azimuth float64 `yaml:"azimuth"`
	Zenital float64 `yaml:"zenital"`
}

// IDAHeader is the typed form of an IDA file's fixed metadata block.
type IDAHeader struct {
	Variant     Variant   `yaml:"variant"`
	License     string    `yaml:"license"`
	NumHeaders  int       `yaml:"num_headers"`
	NumChannels int       `yaml:"num_channels"`
	NumColumns  int       `yaml:"num_columns"`
	Instrument  string    `yaml:"instrument"`
	Supplier    Supplier  `yaml:"supplier"`
	Site        Site      `yaml:"site"`
	Timezone    string    `yaml:"timezone"`
	Position    Position  `yaml:"position"`
	FOV         float64   `yaml:"fov"`
	CoverOffset float64   `yaml:"cover_offset"`
	ZeroPoints  []float64 `yaml:"zero_points"`         // one per channel
	Aims        []Aim     `yaml:"aims"`                // one per channel
	Filters     []string  `yaml:"filters,omitempty"`   // four-channel only
}

// Validate checks the channel/column invariants that bind the two schema
// variants. It fails closed: any mismatch means the file cannot be trusted.
func (h *IDAHeader) Validate() error {
	switch h.NumChannels {
	case 1:
		h.Variant = SingleChannel
	case 4:
		h.Variant = FourChannel
	default:
		return fmt.Errorf("unsupported channel count %d (want 1 or 4)", h.NumChannels)
	}
	if h.NumColumns != h.Variant.Columns() {
		return fmt.Errorf("%s header declares %d columns, want %d",
			h.Variant, h.NumColumns, h.Variant.Columns())
	}
	if len(h.ZeroPoints) != h.Variant.Channels() {
		return fmt.Errorf("%s header carries %d zero points, want %d",
			h.Variant, len(h.ZeroPoints), h.Variant.Channels())
	}
	if len(h.Aims) != h.Variant.Channels() {
		return fmt.Errorf("%s header carries %d aim directions, want %d",
			h.Variant, len(h.Aims), h.Variant.Channels())
	}
	if h.Variant == FourChannel && len(h.Filters) != 4 {
		return fmt.Errorf("TESS-4C header carries %d filters, want 4", len(h.Filters))
	}
	return nil
}
