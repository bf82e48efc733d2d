// Package ephem computes the solar and lunar annotations attached to each
// photometer reading: altitude and azimuth of both bodies at the station,
// and the illuminated fraction of the lunar disk.
//
// Positions come from the soniakeys/meeus implementation of the algorithms
// in Meeus, Astronomical Algorithms: apparent solar coordinates, the lunar
// position series, and apparent sidereal time. Accuracy is far beyond what
// tagging night-sky brightness readings needs.
package ephem

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/moonillum"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/parallax"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"

	"github.com/couchcryptid/tess-ida-etl/internal/domain"
)

// Calculator implements domain.Ephemeris.
type Calculator struct{}

func New() *Calculator {
	return &Calculator{}
}

// Sample computes one annotation per timestamp for a station at the given
// geodetic coordinates. The height above sea level shifts the apparent
// horizon by far less than the annotation precision and is not used.
func (c *Calculator) Sample(lat, lon, _ float64, times []time.Time) ([]domain.EphemSample, error) {
	out := make([]domain.EphemSample, len(times))
	for i, t := range times {
		out[i] = sampleAt(lat, lon, t.UTC())
	}
	return out, nil
}

func sampleAt(lat, lon float64, t time.Time) domain.EphemSample {
	jd := julian.TimeToJD(t)
	st := sidereal.Apparent(jd)
	obsLat := unit.AngleFromDeg(lat)
	// Meeus measures geographic longitude positive westward.
	obsLon := unit.AngleFromDeg(-lon)

	sunRA, sunDec := solar.ApparentEquatorial(jd)
	sunAz, sunAlt := coord.EqToHz(sunRA, sunDec, obsLat, obsLon, st)

	mlon, mlat, dist := moonposition.Position(jd)
	obl := nutation.MeanObliquity(jd)
	sObl, cObl := math.Sincos(obl.Rad())
	moonRA, moonDec := coord.EclToEq(mlon, mlat, sObl, cObl)
	moonAz, moonAlt := coord.EqToHz(moonRA, moonDec, obsLat, obsLon, st)
	// The series is geocentric and the Moon is close enough that the
	// altitude needs a first-order topocentric parallax correction.
	hp := parallax.Horizontal(dist / base.AU)
	moonAlt -= unit.Angle(hp.Rad() * math.Cos(moonAlt.Rad()))

	slon := solar.ApparentLongitude(base.J2000Century(jd))
	illum := base.Illuminated(moonillum.PhaseAngleEcl2(mlon, mlat, slon))

	return domain.EphemSample{
		SunAlt:    sunAlt.Deg(),
		SunAz:     azimuthFromNorth(sunAz),
		MoonAlt:   moonAlt.Deg(),
		MoonAz:    azimuthFromNorth(moonAz),
		MoonIllum: illum,
	}
}

// azimuthFromNorth converts a Meeus azimuth, measured westward from South,
// to the compass convention: degrees clockwise from North in [0, 360).
func azimuthFromNorth(a unit.Angle) float64 {
	d := math.Mod(a.Deg()+180, 360)
	if d < 0 {
		d += 360
	}
	return d
}
