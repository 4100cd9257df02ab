// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package finder locates and downloads open-access PDFs for vault papers,
// working through a fixed waterfall of sources and validating everything
// it fetches before it touches the vault.
package finder

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/marginalia/internal/httputil"
	"github.com/pdiddy/marginalia/internal/jobs"
	"github.com/pdiddy/marginalia/internal/ratelimit"
	"github.com/pdiddy/marginalia/internal/sources"
	"github.com/pdiddy/marginalia/internal/vault"
	"github.com/pdiddy/marginalia/pkg/types"
)

// Result reports one find-pdf run. Not finding a PDF is a normal outcome:
// Success is false and ManualLinks carries the fallback searches, but the
// job itself completed.
type Result struct {
	Success     bool     `json:"success"`
	PDFPath     string   `json:"pdf_path,omitempty"`
	Source      string   `json:"source,omitempty"`
	ManualLinks []string `json:"manual_links,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// fullSource is a lookup adapter that answers both by DOI and by title.
type fullSource interface {
	sources.DOIFinder
	sources.TitleFinder
}

// llmSource is the last-resort adapter backed by a local LLM CLI.
type llmSource interface {
	FindPDFURL(ctx context.Context, paper *types.Paper) (string, bool)
}

// Finder orchestrates the source waterfall, the download, and the outcome
// persistence for one vault.
type Finder struct {
	cfg     types.FinderConfig
	papers  *vault.PaperRepo
	tracker *jobs.Tracker

	arxiv     fullSource
	unpaywall sources.DOIFinder
	semantic  fullSource
	llm       llmSource

	downloadClient *http.Client
}

// New wires a finder over the vault with its own rate limiter registry and
// HTTP clients. The download client gets the longer timeout; metadata
// lookups use the regular one.
func New(cfg types.FinderConfig, v *vault.Vault, tracker *jobs.Tracker) *Finder {
	apiClient := &http.Client{Timeout: cfg.Timeout}
	limits := ratelimit.NewRegistry()

	return &Finder{
		cfg:     cfg,
		papers:  v.Papers(),
		tracker: tracker,
		arxiv: &sources.Arxiv{
			Client:    apiClient,
			Limiter:   limits.Arxiv,
			UserAgent: cfg.UserAgent,
		},
		unpaywall: &sources.Unpaywall{
			Client:    apiClient,
			Limiter:   limits.Unpaywall,
			Email:     cfg.UnpaywallEmail,
			UserAgent: cfg.UserAgent,
		},
		semantic: &sources.SemanticScholar{
			Client:    apiClient,
			Limiter:   limits.SemanticScholar,
			APIKey:    cfg.SemanticScholarAPIKey,
			UserAgent: cfg.UserAgent,
		},
		llm:            sources.NewLLMCLI(),
		downloadClient: &http.Client{Timeout: cfg.DownloadTimeout},
	}
}

// waterfallStep is one source consultation in priority order.
type waterfallStep struct {
	source   string
	progress int
	lookup   func(ctx context.Context, p *types.Paper) (string, bool)
}

func (f *Finder) waterfall() []waterfallStep {
	steps := []waterfallStep{
		{"arxiv", 10, func(ctx context.Context, p *types.Paper) (string, bool) {
			if p.DOI == "" {
				return "", false
			}
			return f.arxiv.FindPDFByDOI(ctx, p.DOI)
		}},
		{"unpaywall", 25, func(ctx context.Context, p *types.Paper) (string, bool) {
			if p.DOI == "" {
				return "", false
			}
			return f.unpaywall.FindPDFByDOI(ctx, p.DOI)
		}},
		{"semantic_scholar", 40, func(ctx context.Context, p *types.Paper) (string, bool) {
			if p.DOI == "" {
				return "", false
			}
			return f.semantic.FindPDFByDOI(ctx, p.DOI)
		}},
		{"semantic_scholar", 55, func(ctx context.Context, p *types.Paper) (string, bool) {
			return f.semantic.FindPDFByTitle(ctx, p.Title)
		}},
		{"arxiv", 70, func(ctx context.Context, p *types.Paper) (string, bool) {
			return f.arxiv.FindPDFByTitle(ctx, p.Title)
		}},
	}

	if f.cfg.EnableLLM {
		steps = append(steps, waterfallStep{"llm", 85,
			func(ctx context.Context, p *types.Paper) (string, bool) {
				return f.llm.FindPDFURL(ctx, p)
			}})
	}
	return steps
}

// FindPDF runs the acquisition waterfall for one paper under the given job.
// The job ends completed for both found and not-found outcomes; it fails
// only when the vault itself cannot record the result.
func (f *Finder) FindPDF(ctx context.Context, citekey, jobID string) (*Result, error) {
	if err := f.startJob(ctx, jobID); err != nil {
		return nil, err
	}

	paper, err := f.papers.Get(ctx, citekey)
	if err != nil {
		f.tracker.Fail(ctx, jobID, err)
		return nil, err
	}
	if paper == nil {
		err := fmt.Errorf("paper not found: %s", citekey)
		f.tracker.Fail(ctx, jobID, err)
		return nil, err
	}

	pdfURL, source := f.locate(ctx, jobID, paper)

	if pdfURL != "" {
		f.tracker.Progress(ctx, jobID, 95, source, "downloading pdf")

		path, dlErr := f.downloadPDF(ctx, citekey, pdfURL)
		if dlErr == nil {
			if err := f.papers.RecordDownload(ctx, citekey, path); err != nil {
				infra := httputil.Errorf(httputil.KindInfrastructure, "recording download: %v", err)
				f.tracker.Fail(ctx, jobID, infra)
				return nil, infra
			}
			f.writeMetadata(paper, source, pdfURL)
			if err := f.tracker.Complete(ctx, jobID); err != nil {
				return nil, err
			}

			log.Info().Str("citekey", citekey).Str("source", source).Msg("pdf acquired")
			return &Result{Success: true, PDFPath: path, Source: source}, nil
		}

		// A candidate that fails download or validation does not reopen
		// the waterfall; the paper goes to manual fallback.
		log.Warn().Str("citekey", citekey).Str("url", pdfURL).Err(dlErr).Msg("download failed")
	}

	links := ManualSearchLinks(paper)
	if err := f.papers.RecordSearchFailure(ctx, citekey, "no open access pdf found", links); err != nil {
		infra := httputil.Errorf(httputil.KindInfrastructure, "recording search failure: %v", err)
		f.tracker.Fail(ctx, jobID, infra)
		return nil, infra
	}
	if err := f.tracker.Complete(ctx, jobID); err != nil {
		return nil, err
	}

	return &Result{
		Success:     false,
		ManualLinks: links,
		Error:       "no open access pdf found",
	}, nil
}

// Fetch downloads a known PDF URL directly, bypassing the waterfall but
// keeping the validation and persistence path identical to FindPDF.
func (f *Finder) Fetch(ctx context.Context, citekey, pdfURL, jobID string) (*Result, error) {
	if err := f.startJob(ctx, jobID); err != nil {
		return nil, err
	}

	paper, err := f.papers.Get(ctx, citekey)
	if err != nil {
		f.tracker.Fail(ctx, jobID, err)
		return nil, err
	}
	if paper == nil {
		err := fmt.Errorf("paper not found: %s", citekey)
		f.tracker.Fail(ctx, jobID, err)
		return nil, err
	}

	f.tracker.Progress(ctx, jobID, 50, "direct", "downloading pdf")

	path, err := f.downloadPDF(ctx, citekey, pdfURL)
	if err != nil {
		f.tracker.Fail(ctx, jobID, err)
		return nil, err
	}

	if err := f.papers.RecordDownload(ctx, citekey, path); err != nil {
		infra := httputil.Errorf(httputil.KindInfrastructure, "recording download: %v", err)
		f.tracker.Fail(ctx, jobID, infra)
		return nil, infra
	}
	f.writeMetadata(paper, "direct", pdfURL)
	if err := f.tracker.Complete(ctx, jobID); err != nil {
		return nil, err
	}

	return &Result{Success: true, PDFPath: path, Source: "direct"}, nil
}

// startJob claims the job before any work happens. A job cancelled while
// pending (or already picked up elsewhere) is not startable, and the paper
// record must stay untouched in that case.
func (f *Finder) startJob(ctx context.Context, jobID string) error {
	ok, err := f.tracker.Start(ctx, jobID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("job %s is not startable (cancelled or already claimed)", jobID)
	}
	return nil
}

// locate walks the waterfall and returns the first candidate URL with its
// source name, or ("", "") when every source comes up empty.
func (f *Finder) locate(ctx context.Context, jobID string, paper *types.Paper) (string, string) {
	for _, step := range f.waterfall() {
		if ctx.Err() != nil {
			return "", ""
		}

		f.tracker.Progress(ctx, jobID, step.progress, step.source, "querying "+step.source)

		if url, ok := step.lookup(ctx, paper); ok {
			log.Debug().Str("citekey", paper.Citekey).Str("source", step.source).
				Str("url", url).Msg("candidate found")
			return url, step.source
		}
	}
	return "", ""
}
