package source

import "github.com/couchcryptid/ocean-data-service/internal/config"

// NewProviders builds the configured providers in rank order: directory,
// manifest, probe, API. Sources without configuration are left out.
func NewProviders(cfg *config.Config, client Getter) []Provider {
	var providers []Provider
	if cfg.DataDir != "" {
		providers = append(providers, NewOSDirProvider(cfg.DataDir))
	}
	if cfg.DataBaseURL != "" {
		providers = append(providers,
			NewManifestProvider(client, cfg.DataBaseURL, cfg.ManifestPath),
			NewProbeProvider(client, cfg.DataBaseURL, cfg.ProbeFiles),
		)
	}
	if cfg.APIBaseURL != "" {
		providers = append(providers, NewAPIProvider(client, cfg.APIBaseURL, cfg.APIToken))
	}
	return providers
}
