// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package finder

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/marginalia/internal/httputil"
	"github.com/pdiddy/marginalia/pkg/types"
)

const (
	papersDir   = "papers"
	pdfFileName = "paper.pdf"
	metaName    = "paper.yaml"
)

// downloadRetryConfig spaces out transient download failures. Validation
// failures (paywall page, bad magic bytes) are terminal and never retried.
var downloadRetryConfig = httputil.RetryConfig{
	MaxRetries:     3,
	InitialBackoff: time.Second,
	MaxBackoff:     30 * time.Second,
	Multiplier:     2.0,
}

// PaperDir returns the per-paper directory inside the vault.
func PaperDir(vaultDir, citekey string) string {
	return filepath.Join(vaultDir, papersDir, citekey)
}

// PDFPath returns the vault-relative location a downloaded PDF lands at.
func PDFPath(citekey string) string {
	return filepath.Join(papersDir, citekey, pdfFileName)
}

// downloadPDF fetches the candidate URL, validates the payload, and writes
// it into the vault through a temp file so a crashed download never leaves
// a half-written paper.pdf behind. Returns the vault-relative path.
func (f *Finder) downloadPDF(ctx context.Context, citekey, pdfURL string) (string, error) {
	body, err := httputil.Do(ctx, downloadRetryConfig, "download",
		func(ctx context.Context) ([]byte, error) {
			return f.fetchAndValidate(ctx, pdfURL)
		},
		httputil.Retryable,
	)
	if err != nil {
		return "", err
	}

	dir := PaperDir(f.cfg.VaultDir, citekey)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", httputil.Errorf(httputil.KindInfrastructure, "creating paper dir: %v", err)
	}

	tmp, err := os.CreateTemp(dir, pdfFileName+".tmp*")
	if err != nil {
		return "", httputil.Errorf(httputil.KindInfrastructure, "creating temp file: %v", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", httputil.Errorf(httputil.KindInfrastructure, "writing pdf: %v", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", httputil.Errorf(httputil.KindInfrastructure, "closing pdf: %v", err)
	}

	finalPath := filepath.Join(dir, pdfFileName)
	if err := os.Rename(tmpName, finalPath); err != nil {
		os.Remove(tmpName)
		return "", httputil.Errorf(httputil.KindInfrastructure, "placing pdf: %v", err)
	}

	log.Info().Str("citekey", citekey).Int("bytes", len(body)).Msg("pdf downloaded")
	return PDFPath(citekey), nil
}

// fetchAndValidate performs one download attempt and rejects anything that
// is not a real PDF.
func (f *Finder) fetchAndValidate(ctx context.Context, pdfURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil, httputil.Errorf(httputil.KindClient, "building request: %v", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.downloadClient.Do(req)
	if err != nil {
		return nil, httputil.Errorf(httputil.KindTransport, "download request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httputil.StatusError(resp.StatusCode, "download")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, httputil.Errorf(httputil.KindTransport, "reading download body: %v", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if IsLikelyLoginPage(contentType, body) {
		return nil, httputil.Errorf(httputil.KindValidation, "response looks like a login or paywall page")
	}
	if !IsValidPDF(body) {
		return nil, httputil.Errorf(httputil.KindValidation, "response is not a pdf")
	}
	return body, nil
}

// pdfMetadata is the sidecar written next to every downloaded PDF so the
// artifact stays self-describing outside the database.
type pdfMetadata struct {
	Citekey      string    `yaml:"citekey"`
	Title        string    `yaml:"title"`
	Authors      []string  `yaml:"authors,omitempty"`
	DOI          string    `yaml:"doi,omitempty"`
	Source       string    `yaml:"source"`
	URL          string    `yaml:"url"`
	DownloadedAt time.Time `yaml:"downloaded_at"`
}

// writeMetadata persists the acquisition provenance as YAML. A failed
// sidecar write is logged, not fatal: the PDF is already in place.
func (f *Finder) writeMetadata(paper *types.Paper, source, pdfURL string) {
	meta := pdfMetadata{
		Citekey:      paper.Citekey,
		Title:        paper.Title,
		Authors:      paper.Authors,
		DOI:          paper.DOI,
		Source:       source,
		URL:          pdfURL,
		DownloadedAt: time.Now().UTC(),
	}

	data, err := yaml.Marshal(&meta)
	if err != nil {
		log.Warn().Str("citekey", paper.Citekey).Err(err).Msg("marshalling pdf metadata")
		return
	}

	path := filepath.Join(PaperDir(f.cfg.VaultDir, paper.Citekey), metaName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn().Str("citekey", paper.Citekey).Err(err).Msg("writing pdf metadata")
	}
}
