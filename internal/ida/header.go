package ida

import (
	"strconv"
	"strings"

	"github.com/couchcryptid/tess-ida-etl/internal/domain"
)

// ParseHeader decodes the fixed metadata block of a raw IDA file and
// validates the schema-variant invariants. An unresolved station position is
// not an error here: Position.Resolved is left false and the caller decides
// between fallback coordinates and a skip.
func ParseHeader(raw []byte) (domain.IDAHeader, error) {
	var h domain.IDAHeader

	pairs, err := headerPairs(raw)
	if err != nil {
		return h, err
	}
	kv := make(map[string]string, len(pairs))
	for _, p := range pairs {
		kv[p.key] = p.value
	}

	h.License = kv[KeyLicense]
	h.Timezone = kv[KeyTimezone]
	h.Instrument = kv[KeyInstrument]

	if h.NumHeaders, err = intField(kv, KeyNumHeaders); err != nil {
		return h, err
	}
	if h.NumChannels, err = intField(kv, KeyNumChannels); err != nil {
		return h, err
	}
	if h.NumColumns, err = intField(kv, KeyNumCols); err != nil {
		return h, err
	}
	if h.FOV, err = floatField(kv, KeyFOV); err != nil {
		return h, err
	}
	if h.CoverOffset, err = floatField(kv, KeyCoverOffset); err != nil {
		return h, err
	}

	if h.Supplier, err = parseSupplier(kv); err != nil {
		return h, err
	}
	if h.Site, err = parseSite(kv); err != nil {
		return h, err
	}
	h.Position = parsePosition(kv[KeyPosition])

	if h.NumChannels == 4 {
		if h.ZeroPoints, err = parseFloatList(kv, KeyZP, 4); err != nil {
			return h, err
		}
		if h.Aims, err = parseAims(kv[KeyAim], 4); err != nil {
			return h, err
		}
		h.Filters = parseFilters(kv[KeyFilters])
	} else {
		zp, err := floatField(kv, KeyZP)
		if err != nil {
			return h, err
		}
		h.ZeroPoints = []float64{zp}
		if h.Aims, err = parseAims(kv[KeyAim], 1); err != nil {
			return h, err
		}
	}

	if err := h.Validate(); err != nil {
		return h, &FormatError{Reason: err.Error()}
	}
	return h, nil
}

type pair struct {
	key   string
	value string
}

// headerPairs extracts the structured key/value lines from the header block:
// the first HeaderLines lines minus the trailing TrailerLines commentary,
// comment prefix stripped, split on ": ". Lines without exactly one
// separator carry no key/value structure and are dropped. The license line's
// key is remapped to its canonical keyword by line position.
func headerPairs(raw []byte) ([]pair, error) {
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")
	if len(lines) < HeaderLines {
		return nil, formatErrf(0, "file has %d lines, want at least %d header lines", len(lines), HeaderLines)
	}

	var pairs []pair
	for i, line := range lines[:HeaderLines-TrailerLines] {
		text, ok := strings.CutPrefix(line, "# ")
		if !ok {
			return nil, formatErrf(i+1, "header line missing %q comment prefix", "# ")
		}
		parts := strings.Split(text, ": ")
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]
		if i == licenseLineIndex {
			key = KeyLicense
		}
		pairs = append(pairs, pair{key: strings.TrimSpace(key), value: strings.TrimSpace(value)})
	}
	return pairs, nil
}

// valueOrEmpty normalizes the "no value" sentinels to the empty string.
func valueOrEmpty(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "none", "unknown", "":
		return ""
	}
	return s
}

func requireField(kv map[string]string, key string) (string, error) {
	v, ok := kv[key]
	if !ok {
		return "", formatErrf(0, "missing required header keyword %q", key)
	}
	return v, nil
}

func intField(kv map[string]string, key string) (int, error) {
	v, err := requireField(kv, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, formatErrf(0, "header keyword %q: %q is not an integer", key, v)
	}
	return n, nil
}

func floatField(kv map[string]string, key string) (float64, error) {
	v, err := requireField(kv, key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, formatErrf(0, "header keyword %q: %q is not a number", key, v)
	}
	return f, nil
}

func parseSupplier(kv map[string]string) (domain.Supplier, error) {
	v, err := requireField(kv, KeyObserver)
	if err != nil {
		return domain.Supplier{}, err
	}
	observer, affiliation, ok := strings.Cut(v, "/")
	if !ok {
		return domain.Supplier{}, formatErrf(0, "header keyword %q: want observer/affiliation, got %q", KeyObserver, v)
	}
	return domain.Supplier{
		Observer:    valueOrEmpty(observer),
		Affiliation: valueOrEmpty(affiliation),
	}, nil
}

func parseSite(kv map[string]string) (domain.Site, error) {
	v, err := requireField(kv, KeyLocation)
	if err != nil {
		return domain.Site{}, err
	}
	parts := strings.Split(v, "/")
	if len(parts) != 5 {
		return domain.Site{}, formatErrf(0, "header keyword %q: want 5 location parts, got %d", KeyLocation, len(parts))
	}
	return domain.Site{
		Place:     valueOrEmpty(parts[0]),
		Town:      valueOrEmpty(parts[1]),
		SubRegion: valueOrEmpty(parts[2]),
		Region:    valueOrEmpty(parts[3]),
		Country:   valueOrEmpty(parts[4]),
	}, nil
}

// parsePosition decodes "lat, lon, height". Sentinel or non-numeric tokens
// yield an unresolved position rather than an error.
func parsePosition(v string) domain.Position {
	parts := strings.Split(v, ",")
	if len(parts) != 3 {
		return domain.Position{}
	}
	var nums [3]float64
	for i, part := range parts {
		token := valueOrEmpty(part)
		if token == "" {
			return domain.Position{}
		}
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return domain.Position{}
		}
		nums[i] = f
	}
	return domain.Position{Latitude: nums[0], Longitude: nums[1], Height: nums[2], Resolved: true}
}

// stripParens removes one pair of surrounding parentheses.
func stripParens(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return "", false
	}
	return s[1 : len(s)-1], true
}

func parseFloatList(kv map[string]string, key string, want int) ([]float64, error) {
	v, err := requireField(kv, key)
	if err != nil {
		return nil, err
	}
	inner, ok := stripParens(v)
	if !ok {
		return nil, formatErrf(0, "header keyword %q: want parenthesized list, got %q", key, v)
	}
	parts := strings.Split(inner, ",")
	if len(parts) != want {
		return nil, formatErrf(0, "header keyword %q: want %d values, got %d", key, want, len(parts))
	}
	out := make([]float64, want)
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, formatErrf(0, "header keyword %q: %q is not a number", key, part)
		}
		out[i] = f
	}
	return out, nil
}

// parseAims decodes "(az, zen)" for one channel or "(az1, zen1, ..., az4,
// zen4)" for four.
func parseAims(v string, channels int) ([]domain.Aim, error) {
	inner, ok := stripParens(v)
	if !ok {
		return nil, formatErrf(0, "header keyword %q: want parenthesized pairs, got %q", KeyAim, v)
	}
	parts := strings.Split(inner, ",")
	if len(parts) != 2*channels {
		return nil, formatErrf(0, "header keyword %q: want %d values, got %d", KeyAim, 2*channels, len(parts))
	}
	aims := make([]domain.Aim, channels)
	for i := range aims {
		az, err := strconv.ParseFloat(strings.TrimSpace(parts[2*i]), 64)
		if err != nil {
			return nil, formatErrf(0, "header keyword %q: bad azimuth %q", KeyAim, parts[2*i])
		}
		zen, err := strconv.ParseFloat(strings.TrimSpace(parts[2*i+1]), 64)
		if err != nil {
			return nil, formatErrf(0, "header keyword %q: bad zenital %q", KeyAim, parts[2*i+1])
		}
		aims[i] = domain.Aim{Azimuth: az, Zenital: zen}
	}
	return aims, nil
}

// parseFilters decodes the four-channel filter list "('UV', 'B', 'G', 'R')".
// Each element is stripped of whitespace and one pair of surrounding quotes.
func parseFilters(v string) []string {
	inner, ok := stripParens(v)
	if !ok {
		return nil
	}
	parts := strings.Split(inner, ",")
	filters := make([]string, 0, len(parts))
	for _, part := range parts {
		f := strings.TrimSpace(part)
		f = strings.Trim(f, `'"`)
		filters = append(filters, f)
	}
	return filters
}
