package ephem

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Madrid, roughly where the reference instruments sit.
const (
	testLat = 40.45
	testLon = -3.73
)

func sampleOne(t *testing.T, at time.Time) (alt, az, moonAlt, moonAz, illum float64) {
	t.Helper()
	samples, err := New().Sample(testLat, testLon, 670, []time.Time{at})
	require.NoError(t, err)
	require.Len(t, samples, 1)
	s := samples[0]
	return s.SunAlt, s.SunAz, s.MoonAlt, s.MoonAz, s.MoonIllum
}

func TestSunAltitudeAtSolsticeNoon(t *testing.T) {
	// Solar noon in Madrid on the June solstice: the Sun culminates near
	// 90 - latitude + obliquity degrees, due south.
	alt, az, _, _, _ := sampleOne(t, time.Date(2023, time.June, 21, 12, 15, 0, 0, time.UTC))
	assert.InDelta(t, 73.0, alt, 1.5)
	assert.InDelta(t, 180.0, az, 10.0)
}

func TestSunBelowHorizonAtMidnight(t *testing.T) {
	alt, _, _, _, _ := sampleOne(t, time.Date(2023, time.June, 21, 0, 0, 0, 0, time.UTC))
	assert.Less(t, alt, -15.0)
}

func TestSunInEastDuringMorning(t *testing.T) {
	_, az, _, _, _ := sampleOne(t, time.Date(2023, time.June, 21, 8, 0, 0, 0, time.UTC))
	assert.Greater(t, az, 80.0)
	assert.Less(t, az, 170.0)
}

func TestMoonIlluminationAtSyzygies(t *testing.T) {
	// Full moon: 2023-07-03 11:39 UTC. New moon: 2023-07-17 18:32 UTC.
	_, _, _, _, full := sampleOne(t, time.Date(2023, time.July, 3, 11, 39, 0, 0, time.UTC))
	assert.Greater(t, full, 0.95)

	_, _, _, _, dark := sampleOne(t, time.Date(2023, time.July, 17, 18, 32, 0, 0, time.UTC))
	assert.Less(t, dark, 0.05)
}

func TestSampleRanges(t *testing.T) {
	start := time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC)
	var times []time.Time
	for i := 0; i < 48; i++ {
		times = append(times, start.Add(time.Duration(i)*time.Hour))
	}

	samples, err := New().Sample(testLat, testLon, 670, times)
	require.NoError(t, err)
	require.Len(t, samples, len(times))

	for i, s := range samples {
		assert.GreaterOrEqual(t, s.SunAlt, -90.0, "sample %d", i)
		assert.LessOrEqual(t, s.SunAlt, 90.0, "sample %d", i)
		assert.GreaterOrEqual(t, s.MoonAlt, -91.0, "sample %d", i)
		assert.LessOrEqual(t, s.MoonAlt, 91.0, "sample %d", i)
		assert.GreaterOrEqual(t, s.SunAz, 0.0, "sample %d", i)
		assert.Less(t, s.SunAz, 360.0, "sample %d", i)
		assert.GreaterOrEqual(t, s.MoonAz, 0.0, "sample %d", i)
		assert.Less(t, s.MoonAz, 360.0, "sample %d", i)
		assert.GreaterOrEqual(t, s.MoonIllum, 0.0, "sample %d", i)
		assert.LessOrEqual(t, s.MoonIllum, 1.0, "sample %d", i)
	}
}

func TestSampleEmptyTimes(t *testing.T) {
	samples, err := New().Sample(testLat, testLon, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, samples)
}
