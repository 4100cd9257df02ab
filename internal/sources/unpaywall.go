// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/marginalia/internal/ratelimit"
)

// unpaywallAPIBase is the Unpaywall DOI endpoint. Declared as a var so
// tests can substitute an httptest server.
var unpaywallAPIBase = "https://api.unpaywall.org/v2/"

// unpaywallResponse captures the open-access locations of a work.
type unpaywallResponse struct {
	BestOALocation *unpaywallLocation  `json:"best_oa_location"`
	OALocations    []unpaywallLocation `json:"oa_locations"`
}

type unpaywallLocation struct {
	URLForPDF string `json:"url_for_pdf"`
}

// Unpaywall resolves DOIs to open-access PDF locations. The email
// identifies the caller per Unpaywall's terms of use.
type Unpaywall struct {
	Client    *http.Client
	Limiter   *ratelimit.Limiter
	Email     string
	UserAgent string
}

// Name returns the source identifier.
func (u *Unpaywall) Name() string { return "unpaywall" }

// FindPDFByDOI queries Unpaywall for doi. It prefers best_oa_location and
// falls back to the first oa_locations entry carrying a PDF URL.
func (u *Unpaywall) FindPDFByDOI(ctx context.Context, doi string) (string, bool) {
	apiURL := unpaywallAPIBase + doi + "?email=" + url.QueryEscape(u.Email)

	var data unpaywallResponse
	if err := fetchJSON(ctx, u.Client, u.Limiter, u.Name(), apiURL, u.UserAgent, nil, &data); err != nil {
		log.Debug().Str("source", u.Name()).Str("doi", doi).Err(err).Msg("lookup failed")
		return "", false
	}

	if loc := data.BestOALocation; loc != nil && loc.URLForPDF != "" {
		return loc.URLForPDF, true
	}
	for _, loc := range data.OALocations {
		if loc.URLForPDF != "" {
			return loc.URLForPDF, true
		}
	}
	return "", false
}
