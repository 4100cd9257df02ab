// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data structures shared across marginalia stages.
package types

import "time"

// PaperStatus tracks a paper through the vault workflow.
type PaperStatus string

const (
	StatusDiscovered PaperStatus = "discovered"
	StatusWanted     PaperStatus = "wanted"
	StatusQueued     PaperStatus = "queued"
	StatusDownloaded PaperStatus = "downloaded"
	StatusSummarized PaperStatus = "summarized"
	StatusFailed     PaperStatus = "failed"
)

// Paper is a bibliographic record in the vault. The citekey is assigned at
// import and never changes; everything else is mutable through the repos.
type Paper struct {
	Citekey  string   `json:"citekey" yaml:"citekey"`
	Title    string   `json:"title" yaml:"title"`
	Authors  []string `json:"authors" yaml:"authors"`
	Year     int      `json:"year,omitempty" yaml:"year,omitempty"`
	Journal  string   `json:"journal,omitempty" yaml:"journal,omitempty"`
	DOI      string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	URL      string   `json:"url,omitempty" yaml:"url,omitempty"`
	Abstract string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	Status PaperStatus `json:"status" yaml:"status"`

	PDFPath     string `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`
	SummaryPath string `json:"summary_path,omitempty" yaml:"summary_path,omitempty"`

	AddedAt      time.Time  `json:"added_at" yaml:"added_at"`
	DownloadedAt *time.Time `json:"downloaded_at,omitempty" yaml:"downloaded_at,omitempty"`

	// SearchAttempts counts failed find-pdf runs; ManualLinks holds the
	// fallback search URLs generated when every source came up empty.
	SearchAttempts  int      `json:"search_attempts" yaml:"search_attempts"`
	LastSearchError string   `json:"last_search_error,omitempty" yaml:"last_search_error,omitempty"`
	ManualLinks     []string `json:"manual_links,omitempty" yaml:"manual_links,omitempty"`
}

// NewPaper returns a discovered paper with the added timestamp set.
func NewPaper(citekey, title string) *Paper {
	return &Paper{
		Citekey: citekey,
		Title:   title,
		Status:  StatusDiscovered,
		AddedAt: time.Now().UTC(),
	}
}

// AuthorsStr joins the author list for display.
func (p *Paper) AuthorsStr() string {
	s := ""
	for i, a := range p.Authors {
		if i > 0 {
			s += ", "
		}
		s += a
	}
	return s
}

// Connection is a citation edge between two vault papers.
type Connection struct {
	Source    string    `json:"source" yaml:"source"`
	Target    string    `json:"target" yaml:"target"`
	Reason    string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}
