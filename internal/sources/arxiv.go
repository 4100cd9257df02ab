// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/marginalia/internal/httputil"
	"github.com/pdiddy/marginalia/internal/ratelimit"
)

// Base URLs for the arXiv API and PDF mirror. Declared as vars so tests can
// substitute httptest servers.
var (
	arxivAPIBase = "https://export.arxiv.org/api/query"
	arxivPDFBase = "https://arxiv.org/pdf/"
)

// arXiv identifier patterns. New format: "2301.12345" with optional
// version suffix. Old format: "hep-th/9901001", category plus seven digits.
var (
	arxivNewPattern = regexp.MustCompile(`(\d{4}\.\d{4,5}(?:v\d+)?)`)
	arxivOldPattern = regexp.MustCompile(`([a-z-]+/\d{7}(?:v\d+)?)`)
)

// ExtractArxivID pulls an arXiv identifier out of a DOI, URL, or bare
// string. Returns "" when input contains no recognizable identifier.
func ExtractArxivID(input string) string {
	if m := arxivNewPattern.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	if m := arxivOldPattern.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	return ""
}

// Arxiv confirms preprint identifiers against the arXiv query API and
// builds the deterministic PDF URL. The API never returns the PDF location
// itself; once the identifier is known to exist, the URL is a pure
// transform of it.
type Arxiv struct {
	Client    *http.Client
	Limiter   *ratelimit.Limiter
	UserAgent string
}

// Name returns the source identifier.
func (a *Arxiv) Name() string { return "arxiv" }

// PDFURL is the deterministic download location for an arXiv identifier.
func PDFURL(arxivID string) string {
	return arxivPDFBase + arxivID + ".pdf"
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID string `xml:"id"`
}

// FindPDFByDOI recognizes arXiv DOIs (10.48550/arXiv.XXXX.XXXXX) and
// resolves them through the identifier path. Non-arXiv DOIs yield nothing.
func (a *Arxiv) FindPDFByDOI(ctx context.Context, doi string) (string, bool) {
	if !strings.HasPrefix(doi, "10.48550/arXiv.") && !strings.Contains(doi, "arXiv") {
		return "", false
	}
	id := ExtractArxivID(doi)
	if id == "" {
		return "", false
	}
	return a.findPDFByID(ctx, id)
}

// FindPDFByTitle searches arXiv by title and returns the PDF URL of the
// first hit.
func (a *Arxiv) FindPDFByTitle(ctx context.Context, title string) (string, bool) {
	apiURL := arxivAPIBase + "?search_query=ti:" + url.QueryEscape(title) + "&start=0&max_results=1"

	feed, ok := a.queryFeed(ctx, apiURL)
	if !ok || len(feed.Entries) == 0 {
		return "", false
	}

	id := extractIDFromEntryURL(feed.Entries[0].ID)
	if id == "" {
		return "", false
	}
	return PDFURL(id), true
}

// findPDFByID confirms the identifier exists, then constructs the PDF URL.
func (a *Arxiv) findPDFByID(ctx context.Context, arxivID string) (string, bool) {
	apiURL := arxivAPIBase + "?id_list=" + url.QueryEscape(arxivID)

	feed, ok := a.queryFeed(ctx, apiURL)
	if !ok || len(feed.Entries) == 0 {
		log.Debug().Str("source", a.Name()).Str("id", arxivID).Msg("not found on arxiv")
		return "", false
	}

	return PDFURL(arxivID), true
}

// queryFeed performs a rate-limited, retried GET against the query API and
// decodes the Atom feed.
func (a *Arxiv) queryFeed(ctx context.Context, apiURL string) (*arxivFeed, bool) {
	if err := a.Limiter.AwaitSlot(ctx, a.Name()); err != nil {
		return nil, false
	}

	// arXiv asks for 3-second spacing, so the backoff starts there.
	cfg := httputil.RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 3 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}

	body, err := httputil.Do(ctx, cfg, a.Name(),
		func(ctx context.Context) ([]byte, error) {
			return fetchOnce(ctx, a.Client, a.Name(), apiURL, a.UserAgent, nil)
		},
		httputil.Retryable,
	)
	if err != nil {
		log.Debug().Str("source", a.Name()).Err(err).Msg("query failed")
		return nil, false
	}

	var feed arxivFeed
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&feed); err != nil {
		log.Debug().Str("source", a.Name()).Err(err).Msg("parsing feed failed")
		return nil, false
	}
	return &feed, true
}

// extractIDFromEntryURL pulls the identifier from an entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041v1").
func extractIDFromEntryURL(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	return idURL[idx+len(prefix):]
}
