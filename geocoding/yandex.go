// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/starburger/foodcart/spatial"
)

const yandexBaseURL = "https://geocode-maps.yandex.ru"

// YandexGeocoder uses the Yandex HTTP Geocoder API.
type YandexGeocoder struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewYandexGeocoder creates a new Yandex geocoder.
func NewYandexGeocoder(options *Options) *YandexGeocoder {
	baseURL := yandexBaseURL
	if options.BaseURL != "" {
		baseURL = strings.TrimSuffix(options.BaseURL, "/")
	}

	return &YandexGeocoder{
		apiKey:     options.APIKey,
		baseURL:    baseURL,
		httpClient: newHTTPClient(options),
	}
}

type yandexResponse struct {
	Response struct {
		GeoObjectCollection struct {
			FeatureMember []struct {
				GeoObject struct {
					Name  string `json:"name"`
					Point struct {
						Pos string `json:"pos"` // "lon lat"
					} `json:"Point"`
				} `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

type yandexErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// Resolve implements Resolver.
func (g *YandexGeocoder) Resolve(ctx context.Context, address Address) (*spatial.Coordinate, error) {
	params := url.Values{}
	params.Set("geocode", address.String())
	params.Set("apikey", g.apiKey)
	params.Set("format", "json")

	reqURL := g.baseURL + "/1.x?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &ProviderError{
			Kind:     ErrorKindInvalidRequest,
			Provider: ProviderYandex,
			Message:  "building request",
			Err:      err,
		}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ProviderYandex, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		provErr := ClassifyHTTPError(ProviderYandex, resp.StatusCode)

		var body yandexErrorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body) == nil && body.Message != "" {
			provErr.Err = errors.New(body.Message)
		}

		return nil, provErr
	}

	var yResp yandexResponse
	if err := json.NewDecoder(resp.Body).Decode(&yResp); err != nil {
		return nil, malformed(ProviderYandex, err)
	}

	members := yResp.Response.GeoObjectCollection.FeatureMember
	if len(members) == 0 {
		return nil, nil
	}

	coord, err := spatial.ParsePosition(members[0].GeoObject.Point.Pos)
	if err != nil {
		return nil, malformed(ProviderYandex, fmt.Errorf("first result for %q: %w", address, err))
	}

	return validated(ProviderYandex, coord)
}
