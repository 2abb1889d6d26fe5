// Copyright 2025 The StarBurger Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/starburger/foodcart/spatial"
)

// ErrInvalidCoordinate is wrapped by provider errors reporting a coordinate
// out of range.
var ErrInvalidCoordinate = spatial.ErrInvalidCoordinate

// ProviderError reports that the geocoding provider could not be queried or
// returned something unusable. It is never cached.
type ProviderError struct {
	Kind     ErrorKind
	Provider string
	Message  string
	Err      error
}

// ErrorKind classifies provider failures.
type ErrorKind int

const (
	// ErrorKindUnknown unclassified failure.
	ErrorKindUnknown ErrorKind = iota
	// ErrorKindRateLimit too many requests.
	ErrorKindRateLimit
	// ErrorKindQuotaExceeded quota exhausted or access denied.
	ErrorKindQuotaExceeded
	// ErrorKindTimeout request timed out.
	ErrorKindTimeout
	// ErrorKindInvalidRequest the provider rejected the request.
	ErrorKindInvalidRequest
	// ErrorKindNetworkError transport failure or unavailable service.
	ErrorKindNetworkError
	// ErrorKindAuth missing or rejected API key.
	ErrorKindAuth
	// ErrorKindMalformedResponse the body could not be understood.
	ErrorKindMalformedResponse
	// ErrorKindInvalidCoordinate the provider answered with an out of range coordinate.
	ErrorKindInvalidCoordinate
)

var kindNames = map[ErrorKind]string{
	ErrorKindUnknown:           "unknown",
	ErrorKindRateLimit:         "rate_limit",
	ErrorKindQuotaExceeded:     "quota_exceeded",
	ErrorKindTimeout:           "timeout",
	ErrorKindInvalidRequest:    "invalid_request",
	ErrorKindNetworkError:      "network_error",
	ErrorKindAuth:              "auth",
	ErrorKindMalformedResponse: "malformed_response",
	ErrorKindInvalidCoordinate: "invalid_coordinate",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}

	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}

	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err carries a ProviderError.
func IsProviderError(err error) bool {
	var provErr *ProviderError

	return errors.As(err, &provErr)
}

// IsRateLimitError reports whether err carries a rate limit ProviderError.
func IsRateLimitError(err error) bool {
	return hasKind(err, ErrorKindRateLimit)
}

// IsQuotaExceededError reports whether err carries a quota ProviderError.
func IsQuotaExceededError(err error) bool {
	return hasKind(err, ErrorKindQuotaExceeded)
}

// IsTimeoutError reports whether err is a provider timeout or a deadline
// exceeded before reaching the provider.
func IsTimeoutError(err error) bool {
	return hasKind(err, ErrorKindTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// hasKind matches ProviderErrors only; messages of other errors may quote
// addresses and are never inspected.
func hasKind(err error, kind ErrorKind) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Kind == kind
	}

	return false
}

// ClassifyHTTPError maps a non 200 provider response into a ProviderError.
func ClassifyHTTPError(provider string, statusCode int) *ProviderError {
	e := &ProviderError{Provider: provider}

	switch statusCode {
	case http.StatusTooManyRequests:
		e.Kind, e.Message = ErrorKindRateLimit, "rate limit reached"
	case http.StatusUnauthorized:
		e.Kind, e.Message = ErrorKindAuth, "API key missing or rejected"
	case http.StatusForbidden:
		e.Kind, e.Message = ErrorKindQuotaExceeded, "quota exceeded or access denied"
	case http.StatusBadRequest, http.StatusNotFound:
		e.Kind, e.Message = ErrorKindInvalidRequest, fmt.Sprintf("invalid request (status %d)", statusCode)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		e.Kind, e.Message = ErrorKindNetworkError, fmt.Sprintf("service unavailable (status %d)", statusCode)
	default:
		e.Kind, e.Message = ErrorKindUnknown, fmt.Sprintf("HTTP error %d", statusCode)
	}

	return e
}

// classifyTransportError wraps an error returned by the HTTP client.
func classifyTransportError(provider string, err error) *ProviderError {
	kind := ErrorKindNetworkError

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = ErrorKindTimeout
	}

	return &ProviderError{
		Kind:     kind,
		Provider: provider,
		Message:  "geocoding request failed",
		Err:      err,
	}
}

func malformed(provider string, err error) *ProviderError {
	return &ProviderError{
		Kind:     ErrorKindMalformedResponse,
		Provider: provider,
		Message:  "decoding response",
		Err:      err,
	}
}

// validated returns coord when it is inside the valid range, or a
// ProviderError wrapping ErrInvalidCoordinate.
func validated(provider string, coord spatial.Coordinate) (*spatial.Coordinate, error) {
	if err := coord.Validate(); err != nil {
		return nil, &ProviderError{
			Kind:     ErrorKindInvalidCoordinate,
			Provider: provider,
			Message:  "provider returned an unusable coordinate",
			Err:      err,
		}
	}

	return &coord, nil
}
