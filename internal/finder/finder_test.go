// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package finder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/marginalia/internal/jobs"
	"github.com/pdiddy/marginalia/internal/vault"
	"github.com/pdiddy/marginalia/pkg/types"
)

// stubSource scripts lookup answers and records the order of consultations
// into a shared call log.
type stubSource struct {
	name    string
	byDOI   map[string]string
	byTitle map[string]string
	calls   *[]string
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FindPDFByDOI(ctx context.Context, doi string) (string, bool) {
	*s.calls = append(*s.calls, s.name+":doi")
	url, ok := s.byDOI[doi]
	return url, ok
}

func (s *stubSource) FindPDFByTitle(ctx context.Context, title string) (string, bool) {
	*s.calls = append(*s.calls, s.name+":title")
	url, ok := s.byTitle[title]
	return url, ok
}

type stubLLM struct {
	url   string
	calls *[]string
}

func (s *stubLLM) FindPDFURL(ctx context.Context, paper *types.Paper) (string, bool) {
	*s.calls = append(*s.calls, "llm")
	return s.url, s.url != ""
}

type testHarness struct {
	finder  *Finder
	vault   *vault.Vault
	tracker *jobs.Tracker
	calls   *[]string
	dir     string
}

// newHarness builds a finder over a real vault with every source stubbed.
func newHarness(t *testing.T, configure func(h *testHarness)) *testHarness {
	t.Helper()

	dir := t.TempDir()
	v, err := vault.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { v.Close() })

	calls := &[]string{}
	tracker := jobs.New(v.Jobs(), nil)

	h := &testHarness{
		vault:   v,
		tracker: tracker,
		calls:   calls,
		dir:     dir,
	}
	h.finder = &Finder{
		cfg: types.FinderConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   5 * time.Second,
				UserAgent: "marginalia-test/0.1",
			},
			VaultDir:        dir,
			DownloadTimeout: 5 * time.Second,
		},
		papers:         v.Papers(),
		tracker:        tracker,
		arxiv:          &stubSource{name: "arxiv", calls: calls},
		unpaywall:      &stubSource{name: "unpaywall", calls: calls},
		semantic:       &stubSource{name: "semantic_scholar", calls: calls},
		llm:            &stubLLM{calls: calls},
		downloadClient: http.DefaultClient,
	}

	if configure != nil {
		configure(h)
	}
	return h
}

func (h *testHarness) addPaper(t *testing.T, citekey, title, doi string) {
	t.Helper()
	p := types.NewPaper(citekey, title)
	p.DOI = doi
	require.NoError(t, h.vault.Papers().Create(context.Background(), p))
}

func (h *testHarness) submitJob(t *testing.T, kind types.JobKind, citekey string) string {
	t.Helper()
	job, err := h.tracker.Submit(context.Background(), kind, citekey)
	require.NoError(t, err)
	return job.ID
}

// pdfServer serves a minimal valid PDF payload.
func pdfServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7\nfake body\n%%EOF"))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestFindPDFWaterfallOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.addPaper(t, "key1", "Some Title", "10.1234/abc")
	jobID := h.submitJob(t, types.JobFindPDF, "key1")

	result, err := h.finder.FindPDF(context.Background(), "key1", jobID)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, []string{
		"arxiv:doi",
		"unpaywall:doi",
		"semantic_scholar:doi",
		"semantic_scholar:title",
		"arxiv:title",
	}, *h.calls, "sources are consulted in fixed priority order, llm disabled")
}

func TestFindPDFSuccessStopsWaterfall(t *testing.T) {
	ts := pdfServer(t)

	h := newHarness(t, func(h *testHarness) {
		h.finder.unpaywall = &stubSource{
			name:  "unpaywall",
			byDOI: map[string]string{"10.1234/abc": ts.URL + "/paper.pdf"},
			calls: h.calls,
		}
	})
	h.addPaper(t, "key1", "Some Title", "10.1234/abc")
	jobID := h.submitJob(t, types.JobFindPDF, "key1")

	ctx := context.Background()
	result, err := h.finder.FindPDF(ctx, "key1", jobID)
	require.NoError(t, err)

	require.True(t, result.Success)
	assert.Equal(t, "unpaywall", result.Source)
	assert.Equal(t, filepath.Join("papers", "key1", "paper.pdf"), result.PDFPath)

	// Earlier sources ran, later ones never did.
	assert.Equal(t, []string{"arxiv:doi", "unpaywall:doi"}, *h.calls)

	// The artifact and its sidecar landed in the vault.
	data, err := os.ReadFile(filepath.Join(h.dir, "papers", "key1", "paper.pdf"))
	require.NoError(t, err)
	assert.True(t, IsValidPDF(data))
	assert.FileExists(t, filepath.Join(h.dir, "papers", "key1", "paper.yaml"))

	// The record and the job both reflect the download.
	paper, err := h.vault.Papers().Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDownloaded, paper.Status)
	assert.Equal(t, result.PDFPath, paper.PDFPath)
	require.NotNil(t, paper.DownloadedAt)

	job, err := h.tracker.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
}

func TestFindPDFNotFoundRecordsManualLinks(t *testing.T) {
	h := newHarness(t, nil)
	h.addPaper(t, "key1", "Obscure Paper", "10.1234/abc")
	jobID := h.submitJob(t, types.JobFindPDF, "key1")

	ctx := context.Background()
	result, err := h.finder.FindPDF(ctx, "key1", jobID)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.NotEmpty(t, result.ManualLinks)

	paper, err := h.vault.Papers().Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, 1, paper.SearchAttempts)
	assert.Equal(t, result.ManualLinks, paper.ManualLinks)
	assert.NotEmpty(t, paper.LastSearchError)

	// Not-found is a completed job, not a failed one.
	job, err := h.tracker.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, job.Status)
}

func TestFindPDFPaywallFallsToManualLinks(t *testing.T) {
	paywall := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>Please log in</body></html>"))
	}))
	t.Cleanup(paywall.Close)

	h := newHarness(t, func(h *testHarness) {
		h.finder.arxiv = &stubSource{
			name:  "arxiv",
			byDOI: map[string]string{"10.1234/abc": paywall.URL + "/paper.pdf"},
			calls: h.calls,
		}
	})
	h.addPaper(t, "key1", "Paywalled Paper", "10.1234/abc")
	jobID := h.submitJob(t, types.JobFindPDF, "key1")

	ctx := context.Background()
	result, err := h.finder.FindPDF(ctx, "key1", jobID)
	require.NoError(t, err)

	// A candidate that fails validation does not reopen the waterfall.
	assert.False(t, result.Success)
	assert.Equal(t, []string{"arxiv:doi"}, *h.calls)
	assert.NoFileExists(t, filepath.Join(h.dir, "papers", "key1", "paper.pdf"))

	paper, err := h.vault.Papers().Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, 1, paper.SearchAttempts)
}

func TestFindPDFNoDOISkipsDOISources(t *testing.T) {
	h := newHarness(t, nil)
	h.addPaper(t, "key1", "Preprint Without DOI", "")
	jobID := h.submitJob(t, types.JobFindPDF, "key1")

	_, err := h.finder.FindPDF(context.Background(), "key1", jobID)
	require.NoError(t, err)

	assert.Equal(t, []string{"semantic_scholar:title", "arxiv:title"}, *h.calls,
		"DOI lookups are skipped entirely when the record has no DOI")
}

func TestFindPDFConsultsLLMLast(t *testing.T) {
	ts := pdfServer(t)

	h := newHarness(t, func(h *testHarness) {
		h.finder.cfg.EnableLLM = true
		h.finder.llm = &stubLLM{url: ts.URL + "/found.pdf", calls: h.calls}
	})
	h.addPaper(t, "key1", "Hard To Find", "10.1234/abc")
	jobID := h.submitJob(t, types.JobFindPDF, "key1")

	result, err := h.finder.FindPDF(context.Background(), "key1", jobID)
	require.NoError(t, err)

	require.True(t, result.Success)
	assert.Equal(t, "llm", result.Source)
	assert.Equal(t, "llm", (*h.calls)[len(*h.calls)-1])
}

func TestFindPDFSkipsCancelledJob(t *testing.T) {
	h := newHarness(t, nil)
	h.addPaper(t, "key1", "Some Title", "10.1234/abc")
	jobID := h.submitJob(t, types.JobFindPDF, "key1")

	ctx := context.Background()
	ok, err := h.tracker.Cancel(ctx, jobID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.finder.FindPDF(ctx, "key1", jobID)
	require.Error(t, err)

	// No source was consulted and the record carries no failure bookkeeping.
	assert.Empty(t, *h.calls)
	paper, err := h.vault.Papers().Get(ctx, "key1")
	require.NoError(t, err)
	assert.Zero(t, paper.SearchAttempts)
	assert.Empty(t, paper.ManualLinks)

	job, err := h.tracker.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobCancelled, job.Status)
}

func TestFetchSkipsCancelledJob(t *testing.T) {
	ts := pdfServer(t)

	h := newHarness(t, nil)
	h.addPaper(t, "key1", "Known Location", "")
	jobID := h.submitJob(t, types.JobDownloadPDF, "key1")

	ctx := context.Background()
	ok, err := h.tracker.Cancel(ctx, jobID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.finder.Fetch(ctx, "key1", ts.URL+"/paper.pdf", jobID)
	require.Error(t, err)

	assert.NoFileExists(t, filepath.Join(h.dir, "papers", "key1", "paper.pdf"))
	paper, err := h.vault.Papers().Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDiscovered, paper.Status)
}

func TestFindPDFUnknownPaperFailsJob(t *testing.T) {
	h := newHarness(t, nil)
	jobID := h.submitJob(t, types.JobFindPDF, "ghost")

	_, err := h.finder.FindPDF(context.Background(), "ghost", jobID)
	require.Error(t, err)

	job, err := h.tracker.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, job.Status)
}

func TestFetchDirectDownload(t *testing.T) {
	ts := pdfServer(t)

	h := newHarness(t, nil)
	h.addPaper(t, "key1", "Known Location", "")
	jobID := h.submitJob(t, types.JobDownloadPDF, "key1")

	ctx := context.Background()
	result, err := h.finder.Fetch(ctx, "key1", ts.URL+"/paper.pdf", jobID)
	require.NoError(t, err)

	require.True(t, result.Success)
	assert.Equal(t, "direct", result.Source)
	assert.FileExists(t, filepath.Join(h.dir, "papers", "key1", "paper.pdf"))

	paper, err := h.vault.Papers().Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDownloaded, paper.Status)
	assert.Empty(t, *h.calls, "fetch bypasses the waterfall")
}

func TestFetchRejectsNonPDF(t *testing.T) {
	junk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("this is not a pdf"))
	}))
	t.Cleanup(junk.Close)

	h := newHarness(t, nil)
	h.addPaper(t, "key1", "Bad Link", "")
	jobID := h.submitJob(t, types.JobDownloadPDF, "key1")

	ctx := context.Background()
	_, err := h.finder.Fetch(ctx, "key1", junk.URL+"/paper.pdf", jobID)
	require.Error(t, err)

	job, err := h.tracker.Get(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, job.Status)

	paper, err := h.vault.Papers().Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDiscovered, paper.Status)
	assert.Empty(t, paper.PDFPath)
}
