// SPDX-License-Identifier: Apache-2.0

// Package catalog talks to the hosted parts-catalog service. The matcher
// only depends on the Searcher interface; the HTTP client here is the one
// production implementation.
package catalog

import (
	"context"
	"errors"
)

// Part is one catalog record with its declared attributes.
type Part struct {
	ID           string `json:"id"`
	MPN          string `json:"mpn"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Value        string `json:"value,omitempty"`
	Footprint    string `json:"footprint,omitempty"`
	Description  string `json:"description,omitempty"`
}

// ErrUnavailable wraps any network, auth or server-side failure from the
// catalog service. Callers treat it as a degraded lookup, not a fatal error.
var ErrUnavailable = errors.New("parts catalog unavailable")

// Searcher is the catalog lookup surface the matcher consumes: the three
// logical request types of the catalog service boundary.
type Searcher interface {
	LookupMPN(ctx context.Context, mpn string) ([]Part, error)
	LookupValueFootprint(ctx context.Context, value, footprint string) ([]Part, error)
	LookupDescription(ctx context.Context, query string) ([]Part, error)
}
