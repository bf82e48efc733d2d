// Package domain models TESS photometer IDA monthly files and their derived
// time-series artifacts.
//
// # Data Source
//
// TESS-W and TESS-4C photometers are night sky brightness monitors of the
// STARS4ALL network. Each station ("stars<N>") publishes one IDA-format file
// per calendar month on a NextCloud-style file server, under a virtual
// directory named after the station: /stars289/stars289_2023-06.dat.
//
// # IDA File Conventions
//
// An IDA file opens with a fixed block of 35 comment lines ("# key: value"),
// followed by data rows separated by semicolons. The last 13 header lines are
// free-form commentary and carry no structure. One known irregularity: the
// third header line spells out the full license statement instead of the
// short "License" keyword, and is remapped during parsing.
//
// Channel layout:
//
//	TESS-W  (1 channel):  8 columns, holding UTC time, local time, enclosure
//	        temperature, sky temperature, frequency, MSAS magnitude, zero
//	        point, sequence number.
//	TESS-4C (4 channels): 17 columns, holding UTC time, local time, enclosure
//	        temperature, sky temperature, then (frequency, MSAS, zero point)
//	        for each of the four channels, sequence number.
//
// A header whose channel count and column count disagree with this table is
// rejected outright; there is no partial recovery.
//
// Values "none", "unknown" and the empty string are sentinels for "no value"
// in supplier, location and position fields. A station position that cannot
// be resolved from the header is not a parse failure: downstream processing
// either substitutes operator-maintained fallback coordinates or skips the
// file with [NoCoordinatesError].
//
// # Derived Artifacts
//
// The transform step appends per-row solar/lunar ephemeris columns (Sun Alt,
// Moon Alt, Moon Illumination, plus Sun Az / Moon Az for tilted instruments)
// and writes an ECSV-style table, one per raw monthly file. Range combination
// concatenates monthly artifacts and records provenance in the "combined"
// metadata list.
package domain
