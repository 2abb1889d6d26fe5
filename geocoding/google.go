// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/starburger/foodcart/spatial"
)

const googleBaseURL = "https://maps.googleapis.com"

// GoogleMapsGeocoder uses Google Maps Geocoding API.
type GoogleMapsGeocoder struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGoogleMapsGeocoder creates a new Google Maps geocoder.
func NewGoogleMapsGeocoder(options *Options) *GoogleMapsGeocoder {
	baseURL := googleBaseURL
	if options.BaseURL != "" {
		baseURL = strings.TrimSuffix(options.BaseURL, "/")
	}

	return &GoogleMapsGeocoder{
		apiKey:     options.APIKey,
		baseURL:    baseURL,
		httpClient: newHTTPClient(options),
	}
}

type googleMapsResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"` // OK, ZERO_RESULTS, OVER_QUERY_LIMIT, etc.
	ErrorMessage string `json:"error_message"`
}

// Resolve implements Resolver.
func (g *GoogleMapsGeocoder) Resolve(ctx context.Context, address Address) (*spatial.Coordinate, error) {
	params := url.Values{}
	params.Set("address", address.String())
	params.Set("key", g.apiKey)

	reqURL := g.baseURL + "/maps/api/geocode/json?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &ProviderError{
			Kind:     ErrorKindInvalidRequest,
			Provider: ProviderGoogle,
			Message:  "building request",
			Err:      err,
		}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(ProviderGoogle, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(ProviderGoogle, resp.StatusCode)
	}

	var gmResp googleMapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
		return nil, malformed(ProviderGoogle, err)
	}

	switch gmResp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, classifyGoogleStatus(gmResp.Status, gmResp.ErrorMessage)
	}

	if len(gmResp.Results) == 0 {
		return nil, nil
	}

	location := gmResp.Results[0].Geometry.Location

	return validated(ProviderGoogle, spatial.FromFloat(location.Lng, location.Lat))
}

func classifyGoogleStatus(status, message string) *ProviderError {
	e := &ProviderError{
		Provider: ProviderGoogle,
		Message:  fmt.Sprintf("google maps status: %s", status),
	}

	if message != "" {
		e.Message += " (" + message + ")"
	}

	switch status {
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		e.Kind = ErrorKindQuotaExceeded
	case "REQUEST_DENIED":
		e.Kind = ErrorKindAuth
	case "INVALID_REQUEST":
		e.Kind = ErrorKindInvalidRequest
	default:
		e.Kind = ErrorKindUnknown
	}

	return e
}
