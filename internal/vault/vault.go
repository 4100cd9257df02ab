// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package vault persists papers, jobs, and citation connections in a
// SQLite database inside the vault directory.
package vault

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const (
	dbFile         = ".marginalia.sqlite"
	legacyFile     = ".marginalia_index.json"
	legacyBakSuffx = ".bak"
)

// ErrNotOpen is returned by repo operations after Close or before Open.
var ErrNotOpen = errors.New("vault is not open")

// Vault is the single-owner handle to the vault database. The connection
// is serialized: one logical writer at a time, guarded by the mutex, and
// explicitly absent after Close rather than poisoned.
type Vault struct {
	mu  sync.Mutex
	db  *sql.DB
	dir string
}

// DBPath returns the database file path for a vault directory.
func DBPath(dir string) string { return filepath.Join(dir, dbFile) }

// LegacyIndexPath returns the pre-SQLite JSON index path.
func LegacyIndexPath(dir string) string { return filepath.Join(dir, legacyFile) }

// LegacyBackupPath returns where the JSON index lands after migration.
func LegacyBackupPath(dir string) string { return LegacyIndexPath(dir) + legacyBakSuffx }

// Open opens or creates the vault database, applies the schema, and runs
// the one-shot legacy JSON migration when the database is new but a legacy
// index exists.
func Open(dir string) (*Vault, error) {
	dbPath := DBPath(dir)
	needsMigration := !fileExists(dbPath) && fileExists(LegacyIndexPath(dir))

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One serialized connection; repos never contend with themselves.
	db.SetMaxOpenConns(1)

	v := &Vault{db: db, dir: dir}
	if err := v.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if needsMigration {
		log.Info().Str("vault", dir).Msg("migrating legacy json index")
		if err := v.migrateLegacyIndex(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating legacy index: %w", err)
		}
	}

	return v, nil
}

// Close releases the database connection. Further repo calls return
// ErrNotOpen. Safe to call twice.
func (v *Vault) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.db == nil {
		return nil
	}
	err := v.db.Close()
	v.db = nil
	return err
}

// Dir returns the vault directory.
func (v *Vault) Dir() string { return v.dir }

// conn returns the live handle or ErrNotOpen.
func (v *Vault) conn() (*sql.DB, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.db == nil {
		return nil, ErrNotOpen
	}
	return v.db, nil
}

// Papers returns the paper repository bound to this vault.
func (v *Vault) Papers() *PaperRepo { return &PaperRepo{v: v} }

// Jobs returns the job repository bound to this vault.
func (v *Vault) Jobs() *JobRepo { return &JobRepo{v: v} }

func (v *Vault) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS papers (
			citekey TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			authors_json TEXT NOT NULL DEFAULT '[]',
			year INTEGER,
			journal TEXT,
			doi TEXT,
			url TEXT,
			abstract TEXT,
			status TEXT NOT NULL DEFAULT 'discovered',
			pdf_path TEXT,
			summary_path TEXT,
			added_at TEXT NOT NULL,
			downloaded_at TEXT,
			search_attempts INTEGER NOT NULL DEFAULT 0,
			last_search_error TEXT,
			manual_links_json TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			citekey TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			progress INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			started_at TEXT,
			finished_at TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_citekey ON jobs(citekey)`,
		`CREATE TABLE IF NOT EXISTS connections (
			source TEXT NOT NULL REFERENCES papers(citekey) ON DELETE CASCADE,
			target TEXT NOT NULL,
			reason TEXT,
			created_at TEXT NOT NULL,
			PRIMARY KEY (source, target)
		)`,
		`INSERT OR IGNORE INTO schema_version (version) VALUES (1)`,
	}

	for _, stmt := range statements {
		if _, err := v.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}
