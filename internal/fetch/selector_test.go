package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testListing = `name,longitude,latitude
stars10,-3.0,40.0
stars11,-2.99,40.0
stars12,-3.0,40.02
`

func TestIDRangeStations(t *testing.T) {
	names, err := IDRange{From: 3, To: 5}.Stations(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"stars3", "stars4", "stars5"}, names)

	_, err = IDRange{From: 5, To: 3}.Stations(context.Background(), nil)
	require.Error(t, err)
}

func TestIDListStations(t *testing.T) {
	names, err := IDList{7, 289, 1}.Stations(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"stars7", "stars289", "stars1"}, names)
}

func TestNearStations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stars_locations.csv", r.URL.Path)
		io.WriteString(w, testListing)
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL, 1)

	// stars10 sits on the reference point, stars11 about 850 m east,
	// stars12 about 2.2 km north.
	names, err := Near{Longitude: -3.0, Latitude: 40.0, RadiusKm: 1}.Stations(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, []string{"stars10", "stars11"}, names)

	names, err = Near{Longitude: -3.0, Latitude: 40.0, RadiusKm: 3}.Stations(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, []string{"stars10", "stars11", "stars12"}, names)

	names, err = Near{Longitude: -3.0, Latitude: 40.0, RadiusKm: 0.5}.Stations(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, []string{"stars10"}, names)
}

func TestNearListingUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL, 1)

	_, err := Near{RadiusKm: 1}.Stations(context.Background(), c)
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
}

func TestFetchSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("path") == "/stars4" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		io.WriteString(w, "body")
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL, 2)

	written, skipped, err := c.FetchSet(context.Background(), IDList{3, 4},
		month(t, "2023-01"), month(t, "2023-02"))
	require.NoError(t, err)
	assert.Equal(t, 2, written)
	assert.Equal(t, 2, skipped)
}

func TestNearBoundaryIsInclusive(t *testing.T) {
	// One degree of latitude is about 111.2 km with the spherical radius
	// used here.
	assert.InDelta(t, 111195, planarDistanceMeters(40.0, -3.0, 41.0, -3.0), 10)

	// stars20 sits exactly on the radius boundary (about 1112 m due
	// north), stars21 roughly 11 m beyond it. The boundary itself is part
	// of the selection.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "name,longitude,latitude\nstars20,-3.0,40.01\nstars21,-3.0,40.0101\n")
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL, 1)

	d := planarDistanceMeters(40.0, -3.0, 40.01, -3.0)
	names, err := Near{Longitude: -3.0, Latitude: 40.0, RadiusKm: d / 1000}.Stations(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, []string{"stars20"}, names)
}
