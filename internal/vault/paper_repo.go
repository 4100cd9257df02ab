// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vault

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/marginalia/pkg/types"
)

// PaperRepo reads and writes bibliographic records.
type PaperRepo struct {
	v *Vault
}

const paperColumns = `citekey, title, authors_json, year, journal, doi, url, abstract,
	status, pdf_path, summary_path, added_at, downloaded_at,
	search_attempts, last_search_error, manual_links_json`

// Create inserts a new paper. The citekey must not already exist.
func (r *PaperRepo) Create(ctx context.Context, p *types.Paper) error {
	db, err := r.v.conn()
	if err != nil {
		return err
	}

	authorsJSON, _ := json.Marshal(p.Authors)
	linksJSON, _ := json.Marshal(p.ManualLinks)

	_, err = db.ExecContext(ctx,
		`INSERT INTO papers (`+paperColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Citekey, p.Title, string(authorsJSON), nullableInt(p.Year), nullableStr(p.Journal),
		nullableStr(p.DOI), nullableStr(p.URL), nullableStr(p.Abstract),
		string(p.Status), nullableStr(p.PDFPath), nullableStr(p.SummaryPath),
		p.AddedAt.UTC().Format(time.RFC3339), nullableTime(p.DownloadedAt),
		p.SearchAttempts, nullableStr(p.LastSearchError), string(linksJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting paper %s: %w", p.Citekey, err)
	}
	return nil
}

// Upsert inserts or replaces a paper record; used by the legacy migration.
func (r *PaperRepo) Upsert(ctx context.Context, p *types.Paper) error {
	db, err := r.v.conn()
	if err != nil {
		return err
	}

	authorsJSON, _ := json.Marshal(p.Authors)
	linksJSON, _ := json.Marshal(p.ManualLinks)

	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO papers (`+paperColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Citekey, p.Title, string(authorsJSON), nullableInt(p.Year), nullableStr(p.Journal),
		nullableStr(p.DOI), nullableStr(p.URL), nullableStr(p.Abstract),
		string(p.Status), nullableStr(p.PDFPath), nullableStr(p.SummaryPath),
		p.AddedAt.UTC().Format(time.RFC3339), nullableTime(p.DownloadedAt),
		p.SearchAttempts, nullableStr(p.LastSearchError), string(linksJSON),
	)
	if err != nil {
		return fmt.Errorf("upserting paper %s: %w", p.Citekey, err)
	}
	return nil
}

// Get returns the paper for citekey, or (nil, nil) when absent.
func (r *PaperRepo) Get(ctx context.Context, citekey string) (*types.Paper, error) {
	db, err := r.v.conn()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx,
		`SELECT `+paperColumns+` FROM papers WHERE citekey = ?`, citekey)

	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading paper %s: %w", citekey, err)
	}
	return p, nil
}

// List returns all papers ordered by citekey.
func (r *PaperRepo) List(ctx context.Context) ([]*types.Paper, error) {
	db, err := r.v.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+paperColumns+` FROM papers ORDER BY citekey`)
	if err != nil {
		return nil, fmt.Errorf("listing papers: %w", err)
	}
	defer rows.Close()

	var papers []*types.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning paper row: %w", err)
		}
		papers = append(papers, p)
	}
	return papers, rows.Err()
}

// Update rewrites every mutable field of the record.
func (r *PaperRepo) Update(ctx context.Context, p *types.Paper) error {
	db, err := r.v.conn()
	if err != nil {
		return err
	}

	authorsJSON, _ := json.Marshal(p.Authors)
	linksJSON, _ := json.Marshal(p.ManualLinks)

	res, err := db.ExecContext(ctx,
		`UPDATE papers SET title = ?, authors_json = ?, year = ?, journal = ?, doi = ?,
			url = ?, abstract = ?, status = ?, pdf_path = ?, summary_path = ?,
			downloaded_at = ?, search_attempts = ?, last_search_error = ?, manual_links_json = ?
		 WHERE citekey = ?`,
		p.Title, string(authorsJSON), nullableInt(p.Year), nullableStr(p.Journal), nullableStr(p.DOI),
		nullableStr(p.URL), nullableStr(p.Abstract), string(p.Status), nullableStr(p.PDFPath),
		nullableStr(p.SummaryPath), nullableTime(p.DownloadedAt), p.SearchAttempts,
		nullableStr(p.LastSearchError), string(linksJSON), p.Citekey,
	)
	if err != nil {
		return fmt.Errorf("updating paper %s: %w", p.Citekey, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("paper not found: %s", p.Citekey)
	}
	return nil
}

// RecordDownload marks a successful acquisition: downloaded status, the
// artifact path, and the download timestamp, clearing any stale error.
func (r *PaperRepo) RecordDownload(ctx context.Context, citekey, pdfPath string) error {
	db, err := r.v.conn()
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE papers SET status = ?, pdf_path = ?, downloaded_at = ?, last_search_error = NULL
		 WHERE citekey = ?`,
		string(types.StatusDownloaded), pdfPath, time.Now().UTC().Format(time.RFC3339), citekey,
	)
	if err != nil {
		return fmt.Errorf("recording download for %s: %w", citekey, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("paper not found: %s", citekey)
	}
	return nil
}

// RecordSearchFailure increments the attempt counter and stores the manual
// fallback links and the aggregate error message.
func (r *PaperRepo) RecordSearchFailure(ctx context.Context, citekey, lastError string, manualLinks []string) error {
	db, err := r.v.conn()
	if err != nil {
		return err
	}

	linksJSON, _ := json.Marshal(manualLinks)
	res, err := db.ExecContext(ctx,
		`UPDATE papers SET search_attempts = search_attempts + 1,
			last_search_error = ?, manual_links_json = ?
		 WHERE citekey = ?`,
		lastError, string(linksJSON), citekey,
	)
	if err != nil {
		return fmt.Errorf("recording search failure for %s: %w", citekey, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("paper not found: %s", citekey)
	}
	return nil
}

// Delete removes a paper and, via cascade, its connections.
func (r *PaperRepo) Delete(ctx context.Context, citekey string) error {
	db, err := r.v.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `DELETE FROM papers WHERE citekey = ?`, citekey)
	if err != nil {
		return fmt.Errorf("deleting paper %s: %w", citekey, err)
	}
	return nil
}

// AddConnection inserts a citation edge, ignoring duplicates.
func (r *PaperRepo) AddConnection(ctx context.Context, c *types.Connection) error {
	db, err := r.v.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT OR IGNORE INTO connections (source, target, reason, created_at)
		 VALUES (?, ?, ?, ?)`,
		c.Source, c.Target, nullableStr(c.Reason), c.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting connection %s -> %s: %w", c.Source, c.Target, err)
	}
	return nil
}

// Connections returns all citation edges originating at citekey.
func (r *PaperRepo) Connections(ctx context.Context, citekey string) ([]*types.Connection, error) {
	db, err := r.v.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT source, target, reason, created_at FROM connections
		 WHERE source = ? ORDER BY target`, citekey)
	if err != nil {
		return nil, fmt.Errorf("listing connections for %s: %w", citekey, err)
	}
	defer rows.Close()

	var conns []*types.Connection
	for rows.Next() {
		var c types.Connection
		var reason sql.NullString
		var created string
		if err := rows.Scan(&c.Source, &c.Target, &reason, &created); err != nil {
			return nil, fmt.Errorf("scanning connection row: %w", err)
		}
		c.Reason = reason.String
		if t, parseErr := time.Parse(time.RFC3339, created); parseErr == nil {
			c.CreatedAt = t
		}
		conns = append(conns, &c)
	}
	return conns, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPaper(s scanner) (*types.Paper, error) {
	var p types.Paper
	var authorsJSON, linksJSON, addedAt string
	var year sql.NullInt64
	var journal, doi, url, abstract, pdfPath, summaryPath, lastErr, downloadedAt sql.NullString

	err := s.Scan(
		&p.Citekey, &p.Title, &authorsJSON, &year, &journal, &doi, &url, &abstract,
		(*string)(&p.Status), &pdfPath, &summaryPath, &addedAt, &downloadedAt,
		&p.SearchAttempts, &lastErr, &linksJSON,
	)
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(authorsJSON), &p.Authors)
	json.Unmarshal([]byte(linksJSON), &p.ManualLinks)
	p.Year = int(year.Int64)
	p.Journal = journal.String
	p.DOI = doi.String
	p.URL = url.String
	p.Abstract = abstract.String
	p.PDFPath = pdfPath.String
	p.SummaryPath = summaryPath.String
	p.LastSearchError = lastErr.String

	if t, parseErr := time.Parse(time.RFC3339, addedAt); parseErr == nil {
		p.AddedAt = t
	}
	if downloadedAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, downloadedAt.String); parseErr == nil {
			p.DownloadedAt = &t
		}
	}
	return &p, nil
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
