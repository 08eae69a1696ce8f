// Package source discovers and fetches raw data files. Providers are tried
// in rank order by the Loader until one of them yields records.
package source

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strings"
)

// ErrNotFound marks a file a provider listed or probed but could not find.
// The Loader skips such files without recording a parse error.
var ErrNotFound = errors.New("file not found")

// Provider is one file discovery strategy.
type Provider interface {
	Name() string
	ListFiles(ctx context.Context) ([]string, error)
	FetchFile(ctx context.Context, name string) ([]byte, error)
}

// Getter fetches a URL. *httpclient.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, url string, header http.Header) ([]byte, error)
}

// FileMeta describes one file that contributed to a load.
type FileMeta struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Rows     int    `json:"rows"`
	Errors   int    `json:"errors"`
	Bytes    int    `json:"bytes"`
}

// IsDataFile reports whether name has a supported extension.
func IsDataFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv", ".json":
		return true
	default:
		return false
	}
}
