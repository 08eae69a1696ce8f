// Command validate performs end-to-end integrity checks on a directory of
// oceanographic data files. It runs the files through the same parse,
// normalize, aggregate and export steps as the service and reports each step
// as a pass/fail phase.
//
// Usage:
//
//	go run ./cmd/validate -dir data
//	go run ./cmd/validate -dir data -strict -depth 10
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/ocean-data-service/internal/domain"
	"github.com/couchcryptid/ocean-data-service/internal/observability"
	"github.com/couchcryptid/ocean-data-service/internal/source"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "directory containing CSV/JSON data files")
	strict := flag.Bool("strict", false, "treat validation warnings as failures")
	depth := flag.Float64("depth", 0, "target depth for the time-series check")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dir, *strict, *depth); code != 0 {
		os.Exit(code)
	}
}

func run(dir string, strict bool, depth float64) int {
	// Fixed ingestion time so repeated runs print identical exports.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	fmt.Println("=== Ocean Data Integrity Validation ===")
	fmt.Println()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loader := source.NewLoader(
		[]source.Provider{source.NewOSDirProvider(dir)},
		time.Minute, logger, observability.NewMetrics(),
	)
	res, err := loader.Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load %s: %v\n", dir, err)
		for _, pe := range res.Errors {
			fmt.Fprintf(os.Stderr, "  %s\n", pe.Error())
		}
		return 1
	}
	records := res.Dataset.Records

	stations := domain.BuildStations(records)
	phases := []*phase{
		validateParsing(res),
		validateRanges(records, strict),
		validateStations(records, stations),
		validateTimeSeries(records, depth),
		validateExport(res.Dataset),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	q := domain.SummarizeQuality(records)
	fmt.Println()
	fmt.Printf("Files: %d, records: %d, columns: %d, stations: %d\n",
		len(res.Files), len(records), len(res.Dataset.Columns), len(stations.Stations))
	fmt.Printf("Quality: %d excellent, %d good, %d fair, %d poor (score %.1f)\n",
		q.Excellent, q.Good, q.Fair, q.Poor, q.Score)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Parsing ──

func validateParsing(res source.Result) *phase {
	p := &phase{name: "Phase 1: Parsing (CSV/JSON files)"}
	for _, pe := range res.Errors {
		p.errorf("%s", pe.Error())
	}
	for _, f := range res.Files {
		if f.Rows == 0 {
			p.errorf("%s: no data rows", f.Name)
		}
	}
	return p
}

// ── Phase 2: Measurement ranges ──
// Out-of-range values are warnings; they only fail the phase in strict mode.

func validateRanges(records []domain.Record, strict bool) *phase {
	p := &phase{name: "Phase 2: Measurement Ranges"}
	warnings := domain.Validate(records)
	if len(warnings) > 0 && !strict {
		fmt.Printf("  Note: %d validation warning(s); rerun with -strict to fail on them\n", len(warnings))
		return p
	}
	for _, w := range warnings {
		p.errorf("%s row %d: %s", w.Source, w.Row, w.Message)
	}
	return p
}

// ── Phase 3: Station aggregation ──
// Every record with valid coordinates lands in exactly one station.

func validateStations(records []domain.Record, res domain.StationResult) *phase {
	p := &phase{name: "Phase 3: Station Aggregation"}
	if !res.Success {
		p.errorf("aggregation failed: %s", res.Error)
		return p
	}

	placeable := 0
	for _, rec := range records {
		if rec.HasValidCoordinates() {
			placeable++
		}
	}
	total := 0
	seen := make(map[string]bool, len(res.Stations))
	for _, s := range res.Stations {
		total += s.Count
		if seen[s.ID] {
			p.errorf("duplicate station id %s", s.ID)
		}
		seen[s.ID] = true
		if len(s.Sources) == 0 {
			p.errorf("station %s has no sources", s.ID)
		}
	}
	if total != placeable {
		p.errorf("stations hold %d records, %d records have valid coordinates", total, placeable)
	}
	if placeable == 0 {
		p.errorf("no record has valid coordinates")
	}
	return p
}

// ── Phase 4: Time series ──

func validateTimeSeries(records []domain.Record, depth float64) *phase {
	p := &phase{name: "Phase 4: Time Series Ordering"}
	points := domain.BuildTimeSeries(records, domain.SeriesOptions{TargetDepth: depth})
	if len(points) > domain.DefaultSeriesPoints {
		p.errorf("series has %d points, limit is %d", len(points), domain.DefaultSeriesPoints)
	}
	var prev *time.Time
	for i, pt := range points {
		if pt.Timestamp == nil {
			continue
		}
		if prev != nil && pt.Timestamp.Before(*prev) {
			p.errorf("point %d (%s) is earlier than its predecessor", i, pt.Time)
		}
		prev = pt.Timestamp
	}
	return p
}

// ── Phase 5: Export round trip ──
// Exported CSV must parse back into the same number of rows and columns.

func validateExport(ds domain.Dataset) *phase {
	p := &phase{name: "Phase 5: Export Round Trip (CSV)"}
	var buf bytes.Buffer
	if err := domain.Export(&buf, ds, domain.FormatCSV); err != nil {
		p.errorf("export: %v", err)
		return p
	}

	parsed := domain.ParseCSV(buf.Bytes())
	for _, pe := range parsed.Errors {
		p.errorf("re-parse: %s", pe.Error())
	}
	if len(parsed.Rows) != ds.Len() {
		p.errorf("exported %d records, re-parsed %d rows", ds.Len(), len(parsed.Rows))
	}
	// Export appends source and quality metadata columns.
	if want := len(ds.Columns) + 2; len(parsed.Columns) != want {
		p.errorf("exported %d columns, re-parsed %d", want, len(parsed.Columns))
	}
	return p
}
