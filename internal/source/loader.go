package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/couchcryptid/ocean-data-service/internal/domain"
	"github.com/couchcryptid/ocean-data-service/internal/observability"
)

// Result is the aggregated output of one load.
type Result struct {
	Provider string
	Files    []FileMeta
	Dataset  domain.Dataset
	Errors   []domain.ParseError
}

// Loader tries providers in rank order and returns the records of the first
// one that yields any.
type Loader struct {
	providers    []Provider
	fetchTimeout time.Duration
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewLoader creates a Loader. A zero fetchTimeout disables the per-file deadline.
func NewLoader(providers []Provider, fetchTimeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{
		providers:    providers,
		fetchTimeout: fetchTimeout,
		logger:       logger,
		metrics:      metrics,
	}
}

// Providers returns the provider names in rank order.
func (l *Loader) Providers() []string {
	names := make([]string, len(l.providers))
	for i, p := range l.providers {
		names[i] = p.Name()
	}
	return names
}

// Load runs the providers in order. A failing file never aborts its siblings;
// its error is recorded in Result.Errors. When no provider yields records the
// returned error wraps domain.ErrCSV if files were read but none of them
// parsed into rows, and domain.ErrNoData otherwise. The Result carries the
// collected errors. Cancellation of ctx is returned as-is.
func (l *Loader) Load(ctx context.Context) (Result, error) {
	var collected []domain.ParseError
	unparsed := 0

	for _, p := range l.providers {
		res, err := l.loadProvider(ctx, p)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{Errors: collected}, ctxErr
		}
		collected = append(collected, res.Errors...)
		if err != nil {
			l.logger.Warn("data source unavailable", "provider", p.Name(), "error", err)
			continue
		}
		if res.Dataset.Len() > 0 {
			res.Errors = collected
			l.logger.Info("data loaded",
				"provider", p.Name(),
				"files", len(res.Files),
				"records", res.Dataset.Len(),
				"errors", len(res.Errors),
			)
			return res, nil
		}
		unparsed += unparsedFiles(res.Files)
		l.logger.Info("data source yielded no records", "provider", p.Name())
	}

	if unparsed > 0 {
		return Result{Errors: collected}, fmt.Errorf("%w: %d data files could not be parsed", domain.ErrCSV, unparsed)
	}
	return Result{Errors: collected}, fmt.Errorf("%w: no records from %d data sources", domain.ErrNoData, len(l.providers))
}

// unparsedFiles counts files that were read but produced only errors.
func unparsedFiles(files []FileMeta) int {
	n := 0
	for _, f := range files {
		if f.Rows == 0 && f.Errors > 0 {
			n++
		}
	}
	return n
}

func (l *Loader) loadProvider(ctx context.Context, p Provider) (Result, error) {
	names, err := p.ListFiles(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Provider: p.Name()}
	for _, name := range names {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		data, err := l.fetch(ctx, p, name)
		if errors.Is(err, ErrNotFound) {
			l.logger.Debug("data file not found", "provider", p.Name(), "file", name)
			continue
		}
		if err != nil {
			l.metrics.FilesLoaded.WithLabelValues(p.Name(), "error").Inc()
			l.logger.Warn("data file fetch failed", "provider", p.Name(), "file", name, "error", err)
			res.Errors = append(res.Errors, domain.ParseError{File: name, Message: "fetch failed: " + err.Error()})
			continue
		}

		parsed := Parse(name, data)
		records := domain.NormalizeRows(parsed.Rows, name)

		l.metrics.FilesLoaded.WithLabelValues(p.Name(), "success").Inc()
		l.metrics.RecordsLoaded.Add(float64(len(records)))
		l.metrics.ParseErrors.Add(float64(len(parsed.Errors)))

		res.Files = append(res.Files, FileMeta{
			Name:     name,
			Provider: p.Name(),
			Rows:     len(records),
			Errors:   len(parsed.Errors),
			Bytes:    len(data),
		})
		res.Dataset.Records = append(res.Dataset.Records, records...)
		res.Dataset.Columns = domain.MergeColumns(res.Dataset.Columns, parsed.Columns)
		res.Errors = append(res.Errors, parsed.Errors...)
	}
	return res, nil
}

func (l *Loader) fetch(ctx context.Context, p Provider, name string) ([]byte, error) {
	if l.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.fetchTimeout)
		defer cancel()
	}
	return p.FetchFile(ctx, name)
}

// Parse decodes a file by extension: .json as JSON records, anything else
// as delimited text. Errors are stamped with the file name.
func Parse(name string, data []byte) domain.ParseResult {
	if strings.EqualFold(path.Ext(name), ".json") {
		return domain.ParseJSON(data).WithFile(name)
	}
	return domain.ParseCSV(data).WithFile(name)
}
