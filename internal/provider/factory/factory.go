package factory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"poe-router/internal/config"
	"poe-router/internal/provider"
	poeProvider "poe-router/internal/provider/poe"
)

// ProviderName is the registry name of the Poe backend.
const ProviderName = "poe"

const (
	defaultDialTimeout     = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultIdleConnTimeout = 90 * time.Second
)

// RegisterConfiguredProviders constructs the Poe provider from configuration,
// stores it in the registry, and returns it for bot passthrough.
func RegisterConfiguredProviders(ctx context.Context, cfg config.Config, registry *provider.Registry) (provider.Provider, error) {
	if registry == nil {
		return nil, errors.New("registry must not be nil")
	}

	client, err := newHTTPClient(cfg.Poe)
	if err != nil {
		return nil, fmt.Errorf("initialise poe http client: %w", err)
	}

	poe, err := poeProvider.New(ProviderName, cfg.Poe, client)
	if err != nil {
		return nil, fmt.Errorf("initialise poe provider: %w", err)
	}
	if err := registry.RegisterProvider(ctx, poe, cfg.Poe.Aliases); err != nil {
		return nil, fmt.Errorf("register poe provider: %w", err)
	}
	return poe, nil
}

// newHTTPClient returns a client without an overall timeout: bot streams
// stay open as long as the inbound request does. Only connection setup is
// bounded.
func newHTTPClient(cfg config.PoeConfig) (*http.Client, error) {
	dialTimeout := cfg.ConnectTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	proxy := http.ProxyFromEnvironment
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url: %w", err)
		}
		proxy = http.ProxyURL(proxyURL)
	}

	transport := &http.Transport{
		Proxy:                 proxy,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: defaultKeepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          50,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{Transport: transport}, nil
}
