// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocoding turns postal addresses into coordinates and keeps the
// outcome of every lookup in a persistent cache.
package geocoding

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/starburger/foodcart/spatial"
	"github.com/starburger/foodcart/utils/httputils"
)

// Supported providers.
const (
	ProviderYandex = "yandex"
	ProviderGoogle = "google"
)

// Resolver asks an external provider for the coordinate of an address.
//
// A found address returns (coord, nil). When the provider answered but has no
// match the result is (nil, nil). Any other failure is a *ProviderError.
// Implementations never retry: retry policy belongs to the caller.
type Resolver interface {
	Resolve(ctx context.Context, address Address) (*spatial.Coordinate, error)
}

// Options configures a Resolver.
type Options struct {
	// Provider is one of ProviderYandex (default) or ProviderGoogle
	Provider string

	// APIKey is sent on every request
	APIKey string

	// BaseURL overrides the provider endpoint, mostly for tests
	BaseURL string

	// Timeout bounds a single HTTP request
	Timeout time.Duration

	// UserAgent is the User-Agent header to use in HTTP requests
	UserAgent string

	// Enables light tracing of HTTP requests and responses
	EnableHTTPTrace bool

	// Enables full HTTP body tracing
	EnableHTTPBodyTrace bool
}

// NewResolver builds the resolver selected by options.Provider.
func NewResolver(options *Options) (Resolver, error) {
	if options == nil {
		options = &Options{}
	}

	switch options.Provider {
	case "", ProviderYandex:
		return NewYandexGeocoder(options), nil
	case ProviderGoogle:
		return NewGoogleMapsGeocoder(options), nil
	default:
		return nil, fmt.Errorf("unknown geocoding provider %q", options.Provider)
	}
}

func newHTTPClient(options *Options) *http.Client {
	var httpLogWriter io.Writer
	if options.EnableHTTPTrace {
		httpLogWriter = os.Stderr
	}

	transport := &http.Transport{
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	loggingTransport := &httputils.LoggingRoundTripper{
		Writer:    httpLogWriter,
		DumpBody:  options.EnableHTTPBodyTrace,
		Transport: transport,
	}

	userAgent := "foodcart/unknown"
	if options.UserAgent != "" {
		userAgent = options.UserAgent
	}

	headerTransport := &httputils.AppendRequestHeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/json",
		},
		Transport: loggingTransport,
	}

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: headerTransport,
	}
}
