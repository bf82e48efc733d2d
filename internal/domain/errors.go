package domain

import "fmt"

// NoCoordinatesError signals that a raw file's position could not be resolved
// from its header and no fallback coordinates were available (or fallback was
// disabled). It is a per-file skip signal: orchestration loops log it and move
// on to the next unit of work.
type NoCoordinatesError struct {
	Station string
	Period  string
}

func (e *NoCoordinatesError) Error() string {
	return fmt.Sprintf("[%s] [%s] no station coordinates: add an entry to the coordinates table and re-run with fix mode", e.Station, e.Period)
}
