package domain

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Format is an export serialization.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat validates a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatGeoJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", ErrValidation, s)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatGeoJSON:
		return "application/geo+json"
	default:
		return "application/json"
	}
}

// Export writes the dataset in the given format.
func Export(w io.Writer, ds Dataset, f Format) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, ds)
	case FormatJSON:
		return WriteJSON(w, ds)
	case FormatGeoJSON:
		return WriteGeoJSON(w, ds)
	default:
		return fmt.Errorf("%w: unknown export format %q", ErrValidation, f)
	}
}

// WriteCSV writes the dataset columns plus source and quality metadata.
// Fields containing the delimiter or quotes are quoted.
func WriteCSV(w io.Writer, ds Dataset) error {
	cw := csv.NewWriter(w)
	header := append(append([]string{}, ds.Columns...), MetaSource, MetaQuality)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, len(header))
	for _, rec := range ds.Records {
		for i, col := range ds.Columns {
			row[i] = rec.Fields[col].String()
		}
		row[len(ds.Columns)] = rec.Source
		row[len(ds.Columns)+1] = string(rec.Quality)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the records as a pretty-printed JSON array.
func WriteJSON(w io.Writer, ds Dataset) error {
	records := ds.Records
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// ToFeatureCollection builds a FeatureCollection with one Point per record
// with valid coordinates. Coordinate columns are left out of properties.
func ToFeatureCollection(ds Dataset) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, rec := range ds.Records {
		if !rec.HasValidCoordinates() {
			continue
		}
		f := geojson.NewFeature(orb.Point{*rec.Longitude, *rec.Latitude})
		for k, v := range rec.Properties() {
			if isCoordinateColumn(k) {
				continue
			}
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes ToFeatureCollection as indented JSON.
func WriteGeoJSON(w io.Writer, ds Dataset) error {
	data, err := json.MarshalIndent(ToFeatureCollection(ds), "", "  ")
	if err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write geojson: %w", err)
	}
	return nil
}

func isCoordinateColumn(name string) bool {
	for _, field := range []string{FieldLatitude, FieldLongitude} {
		for _, alias := range aliasNames(field) {
			if name == alias {
				return true
			}
		}
	}
	return false
}
