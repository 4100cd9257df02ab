// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sources implements the external lookup adapters consulted by the
// PDF finder: Unpaywall, Semantic Scholar, arXiv, and the claude CLI
// fallback. Adapters report candidates as (url, true) and swallow their own
// errors; a failed source is indistinguishable from an empty one.
package sources

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pdiddy/marginalia/internal/httputil"
	"github.com/pdiddy/marginalia/internal/ratelimit"
)

// DOIFinder locates an open-access PDF URL for a DOI.
type DOIFinder interface {
	Name() string
	FindPDFByDOI(ctx context.Context, doi string) (string, bool)
}

// TitleFinder locates an open-access PDF URL by free-text title.
type TitleFinder interface {
	Name() string
	FindPDFByTitle(ctx context.Context, title string) (string, bool)
}

// fetchJSON performs a rate-limited, retried GET and decodes the JSON body
// into out. Errors are classified per the httputil taxonomy so the retry
// predicate can branch on kind.
func fetchJSON(ctx context.Context, client *http.Client, limiter *ratelimit.Limiter, endpoint, url, userAgent string, headers map[string]string, out any) error {
	if err := limiter.AwaitSlot(ctx, endpoint); err != nil {
		return err
	}

	body, err := httputil.Do(ctx, httputil.DefaultRetryConfig(), endpoint,
		func(ctx context.Context) ([]byte, error) {
			return fetchOnce(ctx, client, endpoint, url, userAgent, headers)
		},
		httputil.Retryable,
	)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return httputil.Errorf(httputil.KindParse, "parsing %s response: %w", endpoint, err)
	}
	return nil
}

// fetchOnce is a single GET attempt returning the raw body.
func fetchOnce(ctx context.Context, client *http.Client, endpoint, url, userAgent string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, httputil.Errorf(httputil.KindClient, "creating %s request: %w", endpoint, err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, httputil.Errorf(httputil.KindTransport, "%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, httputil.StatusError(resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, httputil.Errorf(httputil.KindTransport, "reading %s response: %w", endpoint, err)
	}
	return body, nil
}
