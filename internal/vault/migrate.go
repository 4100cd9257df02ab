// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pdiddy/marginalia/pkg/types"
)

// legacyIndex mirrors the pre-SQLite JSON index layout: papers keyed by
// citekey plus a flat list of citation connections.
type legacyIndex struct {
	Papers      map[string]legacyPaper `json:"papers"`
	Connections []legacyConnection     `json:"connections"`
}

type legacyPaper struct {
	Citekey             string     `json:"citekey"`
	Title               string     `json:"title"`
	Authors             []string   `json:"authors"`
	Year                int        `json:"year"`
	Journal             string     `json:"journal"`
	DOI                 string     `json:"doi"`
	URL                 string     `json:"url"`
	Abstract            string     `json:"abstract"`
	Status              string     `json:"status"`
	PDFPath             string     `json:"pdf_path"`
	SummaryPath         string     `json:"summary_path"`
	AddedAt             time.Time  `json:"added_at"`
	DownloadedAt        *time.Time `json:"downloaded_at"`
	SearchAttempts      int        `json:"search_attempts"`
	LastSearchError     string     `json:"last_search_error"`
	ManualDownloadLinks []string   `json:"manual_download_links"`
}

type legacyConnection struct {
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// migrateLegacyIndex imports the legacy JSON index into the freshly created
// database and renames the file to its .bak name so the migration never
// runs twice.
func (v *Vault) migrateLegacyIndex() error {
	indexPath := LegacyIndexPath(v.dir)

	data, err := os.ReadFile(indexPath)
	if err != nil {
		return fmt.Errorf("reading legacy index: %w", err)
	}

	var index legacyIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return fmt.Errorf("parsing legacy index: %w", err)
	}

	ctx := context.Background()
	papers := v.Papers()

	for citekey, lp := range index.Papers {
		p := legacyToPaper(citekey, lp)
		if err := papers.Upsert(ctx, p); err != nil {
			return fmt.Errorf("importing paper %s: %w", citekey, err)
		}
	}

	for _, lc := range index.Connections {
		c := &types.Connection{
			Source:    lc.Source,
			Target:    lc.Target,
			Reason:    lc.Reason,
			CreatedAt: lc.CreatedAt,
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		if err := papers.AddConnection(ctx, c); err != nil {
			// Connections referencing papers outside the index are skipped,
			// not fatal; the paper rows are the data that matters.
			log.Warn().Str("source", lc.Source).Str("target", lc.Target).
				Err(err).Msg("skipping unimportable connection")
		}
	}

	if err := os.Rename(indexPath, LegacyBackupPath(v.dir)); err != nil {
		return fmt.Errorf("backing up legacy index: %w", err)
	}

	log.Info().Int("papers", len(index.Papers)).
		Int("connections", len(index.Connections)).
		Msg("legacy index migrated")
	return nil
}

func legacyToPaper(citekey string, lp legacyPaper) *types.Paper {
	if lp.Citekey == "" {
		lp.Citekey = citekey
	}

	status := types.PaperStatus(lp.Status)
	switch status {
	case types.StatusDiscovered, types.StatusWanted, types.StatusQueued,
		types.StatusDownloaded, types.StatusSummarized, types.StatusFailed:
	default:
		status = types.StatusDiscovered
	}

	addedAt := lp.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}

	return &types.Paper{
		Citekey:         lp.Citekey,
		Title:           lp.Title,
		Authors:         lp.Authors,
		Year:            lp.Year,
		Journal:         lp.Journal,
		DOI:             lp.DOI,
		URL:             lp.URL,
		Abstract:        lp.Abstract,
		Status:          status,
		PDFPath:         lp.PDFPath,
		SummaryPath:     lp.SummaryPath,
		AddedAt:         addedAt,
		DownloadedAt:    lp.DownloadedAt,
		SearchAttempts:  lp.SearchAttempts,
		LastSearchError: lp.LastSearchError,
		ManualLinks:     lp.ManualDownloadLinks,
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
