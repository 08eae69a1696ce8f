package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/couchcryptid/ocean-data-service/internal/adapter/httpclient"
	"github.com/couchcryptid/ocean-data-service/internal/domain"
)

// ManifestProvider reads {"files": [...]} from a manifest URL and fetches
// each entry from <base>/data/<name>.
type ManifestProvider struct {
	client       Getter
	baseURL      string
	manifestPath string
}

// NewManifestProvider creates a manifest-driven provider.
func NewManifestProvider(client Getter, baseURL, manifestPath string) *ManifestProvider {
	if !strings.HasPrefix(manifestPath, "/") {
		manifestPath = "/" + manifestPath
	}
	return &ManifestProvider{
		client:       client,
		baseURL:      strings.TrimRight(baseURL, "/"),
		manifestPath: manifestPath,
	}
}

func (p *ManifestProvider) Name() string { return "manifest" }

type manifest struct {
	Files []string `json:"files"`
}

func (p *ManifestProvider) ListFiles(ctx context.Context) ([]string, error) {
	body, err := p.client.Get(ctx, p.baseURL+p.manifestPath, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %w", domain.ErrValidation, err)
	}
	var names []string
	for _, f := range m.Files {
		if f = strings.TrimSpace(f); f != "" && IsDataFile(f) {
			names = append(names, f)
		}
	}
	return names, nil
}

func (p *ManifestProvider) FetchFile(ctx context.Context, name string) ([]byte, error) {
	return fetchDataFile(ctx, p.client, p.baseURL, name)
}

// ProbeProvider tries a fixed list of conventional file names under
// <base>/data/. Missing files are skipped.
type ProbeProvider struct {
	client  Getter
	baseURL string
	names   []string
}

// NewProbeProvider creates a provider over the given candidate names.
func NewProbeProvider(client Getter, baseURL string, names []string) *ProbeProvider {
	return &ProbeProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		names:   names,
	}
}

func (p *ProbeProvider) Name() string { return "probe" }

func (p *ProbeProvider) ListFiles(context.Context) ([]string, error) {
	return append([]string(nil), p.names...), nil
}

func (p *ProbeProvider) FetchFile(ctx context.Context, name string) ([]byte, error) {
	return fetchDataFile(ctx, p.client, p.baseURL, name)
}

func fetchDataFile(ctx context.Context, client Getter, baseURL, name string) ([]byte, error) {
	body, err := client.Get(ctx, baseURL+"/data/"+url.PathEscape(name), nil)
	if httpclient.IsNotFound(err) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// APIFileName is the pseudo file name under which API records are reported.
const APIFileName = "oceanographic-data.json"

// APIProvider loads records from the authenticated /api/oceanographic-data
// endpoint, which returns {"data": [...]}.
type APIProvider struct {
	client  Getter
	baseURL string
	token   string
}

// NewAPIProvider creates a provider for the data API.
func NewAPIProvider(client Getter, baseURL, token string) *APIProvider {
	return &APIProvider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

func (p *APIProvider) Name() string { return "api" }

func (p *APIProvider) ListFiles(context.Context) ([]string, error) {
	return []string{APIFileName}, nil
}

func (p *APIProvider) FetchFile(ctx context.Context, name string) ([]byte, error) {
	if name != APIFileName {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	header := http.Header{}
	if p.token != "" {
		header.Set("Authorization", "Bearer "+p.token)
	}
	body, err := p.client.Get(ctx, p.baseURL+"/api/oceanographic-data", header)
	if err != nil {
		return nil, fmt.Errorf("fetch api data: %w", err)
	}
	return body, nil
}
