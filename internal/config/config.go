package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/ocean-data-service/internal/animation"
)

// DefaultProbeFiles are the conventional data filenames tried when no
// manifest is published next to the data.
var DefaultProbeFiles = []string{
	"sample_data.csv",
	"ocean_data.csv",
	"oceanographic_data.csv",
	"data.csv",
	"stations.csv",
	"measurements.csv",
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Data sources, tried in rank order: directory, manifest, probe, API.
	DataDir      string
	DataBaseURL  string
	ManifestPath string
	ProbeFiles   []string
	APIBaseURL   string
	APIToken     string
	StreamURL    string

	// Network policy for remote sources.
	FetchTimeout    time.Duration
	LoadTimeout     time.Duration
	FetchRetries    int
	RefreshSchedule string

	// Derived view defaults.
	TargetDepth     float64
	SeriesMaxPoints int
	AnimationSpeed  float64
	AnimationLoop   animation.LoopMode

	// Mapbox station labelling configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	RedisAddr string

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory seeds variables that are not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	loadTimeout, err := parseDuration("LOAD_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	mapboxTimeout, err := parseDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	fetchRetries, err := parseInt("FETCH_RETRIES", 2, 0, 10)
	if err != nil {
		return nil, err
	}
	seriesMaxPoints, err := parseInt("SERIES_MAX_POINTS", 48, 1, 10000)
	if err != nil {
		return nil, err
	}

	targetDepth, err := parseFloat("TARGET_DEPTH", 0)
	if err != nil {
		return nil, err
	}
	speed, err := parseFloat("ANIMATION_SPEED", 1)
	if err != nil {
		return nil, err
	}
	if speed < animation.MinSpeed || speed > animation.MaxSpeed {
		return nil, fmt.Errorf("ANIMATION_SPEED must be between %g and %g", animation.MinSpeed, animation.MaxSpeed)
	}

	loop, err := animation.ParseLoopMode(envOrDefault("ANIMATION_LOOP", string(animation.LoopRepeat)))
	if err != nil {
		return nil, fmt.Errorf("invalid ANIMATION_LOOP: %w", err)
	}

	refresh := strings.TrimSpace(os.Getenv("REFRESH_SCHEDULE"))
	if refresh != "" {
		if _, err := cron.ParseStandard(refresh); err != nil {
			return nil, fmt.Errorf("invalid REFRESH_SCHEDULE: %w", err)
		}
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	dataDir := "./data"
	if v, ok := os.LookupEnv("DATA_DIR"); ok {
		dataDir = strings.TrimSpace(v)
	}

	probeFiles := DefaultProbeFiles
	if v := os.Getenv("PROBE_FILES"); v != "" {
		probeFiles = splitList(v)
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataDir:      dataDir,
		DataBaseURL:  strings.TrimRight(os.Getenv("DATA_BASE_URL"), "/"),
		ManifestPath: envOrDefault("MANIFEST_PATH", "/csv-manifest.json"),
		ProbeFiles:   probeFiles,
		APIBaseURL:   strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		APIToken:     os.Getenv("API_TOKEN"),
		StreamURL:    os.Getenv("STREAM_URL"),

		FetchTimeout:    fetchTimeout,
		LoadTimeout:     loadTimeout,
		FetchRetries:    fetchRetries,
		RefreshSchedule: refresh,

		TargetDepth:     targetDepth,
		SeriesMaxPoints: seriesMaxPoints,
		AnimationSpeed:  speed,
		AnimationLoop:   loop,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parseMapboxCacheSize(),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "ocean-records"),
	}

	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
	}
	if cfg.DataDir == "" && cfg.DataBaseURL == "" && cfg.APIBaseURL == "" {
		return nil, errors.New("no data source configured: set DATA_DIR, DATA_BASE_URL or API_BASE_URL")
	}

	return cfg, nil
}

// Warnings lists configured endpoints that use an unencrypted scheme.
func (c *Config) Warnings() []string {
	var out []string
	check := func(name, value string) {
		lower := strings.ToLower(value)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "ws://") {
			out = append(out, fmt.Sprintf("%s uses an insecure scheme: %s", name, value))
		}
	}
	check("DATA_BASE_URL", c.DataBaseURL)
	check("API_BASE_URL", c.APIBaseURL)
	check("STREAM_URL", c.StreamURL)
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", key, lo, hi)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return f, nil
}

func parseMapboxCacheSize() int {
	if s := os.Getenv("MAPBOX_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
