// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func yandexBody(positions ...string) string {
	members := ""
	for i, pos := range positions {
		if i > 0 {
			members += ","
		}

		members += fmt.Sprintf(`{"GeoObject":{"name":"result %d","Point":{"pos":%q}}}`, i, pos)
	}

	return `{"response":{"GeoObjectCollection":{"metaDataProperty":{},"featureMember":[` + members + `]}}}`
}

type recordedRequest struct {
	URL    *url.URL
	Header http.Header
}

func newProviderTestServer(t *testing.T, status int, body string) (*httptest.Server, *recordedRequest) {
	t.Helper()

	last := &recordedRequest{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last.URL = r.URL
		last.Header = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, last
}

func TestYandexGeocoderFound(t *testing.T) {
	srv, last := newProviderTestServer(t, http.StatusOK, yandexBody("37.6173 55.7558", "30.315868 59.939095"))

	g := NewYandexGeocoder(&Options{APIKey: "k", BaseURL: srv.URL})

	coord, err := g.Resolve(context.Background(), NormalizeAddress("Moscow"))
	require.NoError(t, err)
	require.NotNil(t, coord)

	// first result wins
	assert.True(t, coord.Lng.Sub(decimal.RequireFromString("37.6173")).Abs().LessThan(decimal.RequireFromString("0.00001")))
	assert.True(t, coord.Lat.Sub(decimal.RequireFromString("55.7558")).Abs().LessThan(decimal.RequireFromString("0.00001")))

	assert.Equal(t, "/1.x", last.URL.Path)
	assert.Equal(t, "moscow", last.URL.Query().Get("geocode"))
	assert.Equal(t, "k", last.URL.Query().Get("apikey"))
	assert.Equal(t, "json", last.URL.Query().Get("format"))
	assert.Equal(t, "foodcart/unknown", last.Header.Get("User-Agent"))
}

func TestYandexGeocoderNotFound(t *testing.T) {
	srv, _ := newProviderTestServer(t, http.StatusOK, yandexBody())

	coord, err := NewYandexGeocoder(&Options{BaseURL: srv.URL}).Resolve(context.Background(), "nowhere")
	assert.NoError(t, err)
	assert.Nil(t, coord)
}

func TestYandexGeocoderFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{name: "forbidden", status: http.StatusForbidden, body: `{"statusCode":403,"error":"Forbidden","message":"Invalid key"}`, wantKind: ErrorKindQuotaExceeded},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{}`, wantKind: ErrorKindRateLimit},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, wantKind: ErrorKindUnknown},
		{name: "bad json", status: http.StatusOK, body: `{"response":`, wantKind: ErrorKindMalformedResponse},
		{name: "bad position", status: http.StatusOK, body: yandexBody("37.6173"), wantKind: ErrorKindMalformedResponse},
		{name: "out of range", status: http.StatusOK, body: yandexBody("37.6173 155.7558"), wantKind: ErrorKindInvalidCoordinate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newProviderTestServer(t, tt.status, tt.body)

			coord, err := NewYandexGeocoder(&Options{BaseURL: srv.URL}).Resolve(context.Background(), "moscow")
			assert.Nil(t, coord)
			require.Error(t, err)

			var provErr *ProviderError
			require.True(t, errors.As(err, &provErr), "got %T: %v", err, err)
			assert.Equal(t, tt.wantKind, provErr.Kind)
		})
	}
}

func TestYandexGeocoderErrorMessage(t *testing.T) {
	srv, _ := newProviderTestServer(t, http.StatusForbidden, `{"statusCode":403,"error":"Forbidden","message":"Invalid key"}`)

	_, err := NewYandexGeocoder(&Options{BaseURL: srv.URL}).Resolve(context.Background(), "moscow")
	assert.ErrorContains(t, err, "Invalid key")
}

func TestYandexGeocoderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	g := NewYandexGeocoder(&Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := g.Resolve(context.Background(), "moscow")
	require.Error(t, err)
	assert.True(t, IsTimeoutError(err), "got %v", err)
}

func TestNewResolver(t *testing.T) {
	r, err := NewResolver(&Options{})
	require.NoError(t, err)
	assert.IsType(t, &YandexGeocoder{}, r)

	r, err = NewResolver(&Options{Provider: ProviderGoogle})
	require.NoError(t, err)
	assert.IsType(t, &GoogleMapsGeocoder{}, r)

	_, err = NewResolver(&Options{Provider: "osm"})
	assert.Error(t, err)
}
