// Package domain models oceanographic sensor readings and the transformations
// that turn delimited text into map- and chart-ready data.
//
// # Data Sources
//
// Readings arrive as CSV (or JSON) exports from moored buoys, CTD casts and
// current profilers. Column names differ between instruments and vendors, so
// every header is normalized before use:
//
//	"Temperature (°C)"  →  "temperature_c"
//	" Current Speed "   →  "current_speed"
//	"SSH-m"             →  "ssh_m"
//
// Values are typed dynamically. Numeric-looking text becomes a number and the
// literals "", "nan" and "null" (any case) become an explicit null. Everything
// else is kept as text.
//
// # Field Aliases
//
// Instruments use different names for the same quantity. [Record] resolves
// each typed field from a ranked alias list (see [FieldAliases]): the first
// non-null column wins, e.g. current speed is read from "speed", then
// "current_speed", then "currentspeed".
//
// # Quality Tags
//
// Each record carries a coarse completeness tag:
//
//	poor       latitude, longitude or time missing
//	fair       required fields present, fewer than 2 of {speed, temperature, salinity, pressure}
//	good       required fields present, 2 of the optional measurements
//	excellent  required fields present, 3 or more optional measurements
//
// # Stations
//
// Stations are derived, never loaded. Records are grouped by latitude and
// longitude rounded to 4 decimal places (about 11 m at the equator). A
// station is rebuilt wholesale from the full dataset on every load. See
// [BuildStations].
//
// # Time Series
//
// Chart series keep records within ±10 depth units of a target depth (records
// without depth always pass), sorted by time, windowed to the most recent 48
// points. See [BuildTimeSeries].
package domain
