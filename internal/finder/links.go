// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package finder

import (
	"net/url"

	"github.com/pdiddy/marginalia/pkg/types"
)

// ManualSearchLinks builds the fallback search URLs handed to the user when
// every automated source comes up empty.
func ManualSearchLinks(paper *types.Paper) []string {
	encodedTitle := url.QueryEscape(paper.Title)

	links := []string{
		"https://scholar.google.com/scholar?q=" + encodedTitle,
		"https://www.semanticscholar.org/search?q=" + encodedTitle,
	}

	if paper.DOI != "" {
		links = append(links, "https://doi.org/"+paper.DOI)
	}

	links = append(links, "https://papers.ssrn.com/sol3/results.cfm?txtKey_Words="+encodedTitle)

	if len(paper.Authors) > 0 && paper.Authors[0] != "" {
		author := url.QueryEscape(paper.Authors[0])
		links = append(links, "https://scholar.google.com/scholar?q=author:"+author+"+"+encodedTitle)
	}

	return links
}
