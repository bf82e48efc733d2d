package domain

import "time"

// Ephemeris computes solar/lunar annotation samples for an ordered timestamp
// sequence observed from a fixed position. Implementations are pure functions
// of their inputs; the pipeline treats the computation itself as an external
// concern.
type Ephemeris interface {
	// Sample returns one EphemSample per timestamp, unrounded, in input order.
	Sample(lat, lon, height float64, times []time.Time) ([]EphemSample, error)
}
