package fetch

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/couchcryptid/tess-ida-etl/internal/domain"
)

// locationsFile is the archive's published station listing: a CSV of
// name,longitude,latitude served next to the share root.
const locationsFile = "stars_locations.csv"

const earthRadiusMeters = 6371000.0

// A Selector resolves to the set of station names a bulk fetch covers.
type Selector interface {
	Stations(ctx context.Context, c *Client) ([]string, error)
}

// IDRange selects stars<From> through stars<To>, inclusive.
type IDRange struct {
	From, To int
}

func (r IDRange) Stations(_ context.Context, _ *Client) ([]string, error) {
	if r.To < r.From {
		return nil, fmt.Errorf("fetch: inverted station range %d..%d", r.From, r.To)
	}
	var names []string
	for id := r.From; id <= r.To; id++ {
		names = append(names, starsName(id))
	}
	return names, nil
}

// IDList selects an explicit set of station numbers.
type IDList []int

func (l IDList) Stations(_ context.Context, _ *Client) ([]string, error) {
	var names []string
	for _, id := range l {
		names = append(names, starsName(id))
	}
	return names, nil
}

// Near selects every listed station within RadiusKm of a reference point.
// Distance uses a planar small-angle approximation, adequate for the
// regional radii this is meant for; the radius boundary is inclusive.
type Near struct {
	Longitude float64
	Latitude  float64
	RadiusKm  float64
}

func (n Near) Stations(ctx context.Context, c *Client) ([]string, error) {
	locs, err := c.fetchLocations(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, loc := range locs {
		d := planarDistanceMeters(n.Latitude, n.Longitude, loc.latitude, loc.longitude)
		if d <= n.RadiusKm*1000 {
			names = append(names, loc.name)
		}
	}
	return names, nil
}

// FetchSet downloads the month range for every station the selector
// resolves, one station at a time.
func (c *Client) FetchSet(ctx context.Context, sel Selector, since, until domain.Month) (written, skipped int, err error) {
	stations, err := sel.Stations(ctx, c)
	if err != nil {
		return 0, 0, err
	}
	for _, station := range stations {
		w, s, err := c.FetchRange(ctx, station, since, until)
		written += w
		skipped += s
		if err != nil {
			return written, skipped, err
		}
	}
	return written, skipped, nil
}

type stationLocation struct {
	name      string
	longitude float64
	latitude  float64
}

// fetchLocations downloads and parses the station listing.
func (c *Client) fetchLocations(ctx context.Context) ([]stationLocation, error) {
	u := c.base + "/" + locationsFile
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: station listing: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: u, Code: resp.StatusCode}
	}

	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("fetch: station listing: %w", err)
	}
	var locs []stationLocation
	for i, rec := range records {
		if i == 0 {
			continue // header row
		}
		if len(rec) != 3 {
			return nil, fmt.Errorf("fetch: station listing row %d has %d fields, want 3", i+1, len(rec))
		}
		lon, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("fetch: station listing row %d: bad longitude %q", i+1, rec[1])
		}
		lat, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("fetch: station listing row %d: bad latitude %q", i+1, rec[2])
		}
		locs = append(locs, stationLocation{name: rec[0], longitude: lon, latitude: lat})
	}
	return locs, nil
}

// planarDistanceMeters is the small-angle flat-earth distance between two
// coordinates. It degrades on continental scales but holds well for the
// tens-of-kilometers radii used to group neighboring instruments.
func planarDistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := math.Pi / 180
	midLat := (lat1 + lat2) / 2 * toRad
	dx := (lon2 - lon1) * toRad * math.Cos(midLat) * earthRadiusMeters
	dy := (lat2 - lat1) * toRad * earthRadiusMeters
	return math.Hypot(dx, dy)
}

func starsName(id int) string {
	return "stars" + strconv.Itoa(id)
}
