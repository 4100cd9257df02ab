// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/marginalia/internal/ratelimit"
)

// semanticAPIBase is the Semantic Scholar graph endpoint. Declared as a var
// so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/"

// semanticPaper carries the one field we ask for.
type semanticPaper struct {
	OpenAccessPDF *semanticOpenAccessPDF `json:"openAccessPdf"`
}

type semanticOpenAccessPDF struct {
	URL string `json:"url"`
}

type semanticSearchResponse struct {
	Data []semanticPaper `json:"data"`
}

// SemanticScholar queries the Semantic Scholar academic graph by DOI or
// title. The API key is optional; without one the shared public quota
// applies, which the limiter respects.
type SemanticScholar struct {
	Client    *http.Client
	Limiter   *ratelimit.Limiter
	APIKey    string
	UserAgent string
}

// Name returns the source identifier.
func (s *SemanticScholar) Name() string { return "semantic_scholar" }

func (s *SemanticScholar) headers() map[string]string {
	if s.APIKey == "" {
		return nil
	}
	return map[string]string{"x-api-key": s.APIKey}
}

// FindPDFByDOI looks up a single work by DOI and returns its open-access
// PDF URL when the graph knows one.
func (s *SemanticScholar) FindPDFByDOI(ctx context.Context, doi string) (string, bool) {
	apiURL := semanticAPIBase + "DOI:" + doi + "?fields=openAccessPdf"

	var paper semanticPaper
	if err := fetchJSON(ctx, s.Client, s.Limiter, s.Name(), apiURL, s.UserAgent, s.headers(), &paper); err != nil {
		log.Debug().Str("source", s.Name()).Str("doi", doi).Err(err).Msg("lookup failed")
		return "", false
	}

	if paper.OpenAccessPDF != nil && paper.OpenAccessPDF.URL != "" {
		return paper.OpenAccessPDF.URL, true
	}
	return "", false
}

// FindPDFByTitle free-text searches the graph and takes the first match's
// open-access PDF field.
func (s *SemanticScholar) FindPDFByTitle(ctx context.Context, title string) (string, bool) {
	apiURL := semanticAPIBase + "search?query=" + url.QueryEscape(title) + "&fields=openAccessPdf&limit=1"

	var sr semanticSearchResponse
	if err := fetchJSON(ctx, s.Client, s.Limiter, s.Name(), apiURL, s.UserAgent, s.headers(), &sr); err != nil {
		log.Debug().Str("source", s.Name()).Str("title", title).Err(err).Msg("search failed")
		return "", false
	}

	if len(sr.Data) == 0 {
		return "", false
	}
	first := sr.Data[0]
	if first.OpenAccessPDF != nil && first.OpenAccessPDF.URL != "" {
		return first.OpenAccessPDF.URL, true
	}
	return "", false
}
