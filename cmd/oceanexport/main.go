// Command oceanexport loads oceanographic data files through the same
// providers as the service and writes the normalized dataset as CSV, JSON or
// GeoJSON.
//
// Usage:
//
//	go run ./cmd/oceanexport -dir data -format geojson -out stations.geojson
//	go run ./cmd/oceanexport -base-url https://data.example.com -format csv
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/couchcryptid/ocean-data-service/internal/adapter/httpclient"
	"github.com/couchcryptid/ocean-data-service/internal/config"
	"github.com/couchcryptid/ocean-data-service/internal/domain"
	"github.com/couchcryptid/ocean-data-service/internal/observability"
	"github.com/couchcryptid/ocean-data-service/internal/source"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dir := flag.String("dir", "", "directory containing CSV/JSON data files")
	baseURL := flag.String("base-url", "", "base URL serving a manifest or conventional data files")
	manifest := flag.String("manifest", "/csv-manifest.json", "manifest path under -base-url")
	apiURL := flag.String("api-url", "", "base URL of the oceanographic data API")
	apiToken := flag.String("api-token", os.Getenv("API_TOKEN"), "bearer token for -api-url")
	format := flag.String("format", "csv", "output format: csv, json or geojson")
	out := flag.String("out", "", "output file (default stdout)")
	timeout := flag.Duration("timeout", time.Minute, "overall load timeout")
	flag.Parse()

	if *dir == "" && *baseURL == "" && *apiURL == "" {
		flag.Usage()
		return errors.New("one of -dir, -base-url or -api-url is required")
	}
	f, err := domain.ParseFormat(*format)
	if err != nil {
		return err
	}

	cfg := &config.Config{
		DataDir:      *dir,
		DataBaseURL:  strings.TrimRight(*baseURL, "/"),
		ManifestPath: *manifest,
		ProbeFiles:   config.DefaultProbeFiles,
		APIBaseURL:   strings.TrimRight(*apiURL, "/"),
		APIToken:     *apiToken,
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	metrics := observability.NewMetrics()
	clientCfg := httpclient.DefaultConfig("export")
	client := httpclient.New(clientCfg, logger, metrics)
	loader := source.NewLoader(source.NewProviders(cfg, client), clientCfg.Timeout, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	res, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	for _, pe := range res.Errors {
		log.Printf("warning: %s", pe.Error())
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		file, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		w = file
	}

	bw := bufio.NewWriter(w)
	if err := domain.Export(bw, res.Dataset, f); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	log.Printf("exported %d records from %d files (%s provider) as %s",
		res.Dataset.Len(), len(res.Files), res.Provider, f)
	return nil
}
