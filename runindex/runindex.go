// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package runindex

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/penny-vault/pv-optimizer/common"
	"github.com/penny-vault/pv-optimizer/report"
)

const (
	// JSONLName is the file name of the plain-text mirror kept next to the
	// sqlite database
	JSONLName = "runs_index.jsonl"

	// fixed width so stored timestamps sort lexically
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Entry is one (run, portfolio) record in the index
type Entry struct {
	RunID            string    `json:"run_id"`
	Tag              string    `json:"tag"`
	Portfolio        string    `json:"portfolio"`
	Created          time.Time `json:"created"`
	Tickers          []string  `json:"tickers"`
	BestModel        string    `json:"best_model"`
	BestSharpe       float64   `json:"best_sharpe"`
	ReportPath       string    `json:"report_path"`
	PriceFingerprint string    `json:"price_fingerprint"`
}

// Index stores run summaries in sqlite with the full report document
// lz4-compressed alongside, and mirrors every summary to a JSONL file
type Index struct {
	mu        sync.Mutex
	sql       *sql.DB
	jsonlPath string
}

// NewRunID returns a fresh identifier for a pipeline run
func NewRunID() string {
	return uuid.New().String()
}

// Open opens (or creates) the sqlite database at path and runs migrations.
// When jsonlPath is empty the mirror is written next to the database; pass
// "-" to disable it.
func Open(path, jsonlPath string) (*Index, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		if jsonlPath == "" {
			jsonlPath = filepath.Join(filepath.Dir(path), JSONLName)
		}
	}
	if jsonlPath == "-" {
		jsonlPath = ""
	}

	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// a single connection keeps ":memory:" databases coherent and serializes
	// writers
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	idx := &Index{sql: sqlDB, jsonlPath: jsonlPath}
	if err := idx.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	log.Debug().Str("Path", path).Str("JSONL", jsonlPath).Msg("opened run index")
	return idx, nil
}

// Close closes the database connection
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.sql == nil {
		return nil
	}
	err := idx.sql.Close()
	idx.sql = nil
	return err
}

// JSONLPath returns the location of the JSONL mirror, empty when disabled
func (idx *Index) JSONLPath() string {
	return idx.jsonlPath
}

func (idx *Index) migrate() error {
	version := 0
	// a fresh database has no schema_version table yet
	_ = idx.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := idx.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS runs (
				run_id            TEXT NOT NULL,
				portfolio         TEXT NOT NULL,
				tag               TEXT NOT NULL,
				created           TEXT NOT NULL,
				tickers           TEXT NOT NULL DEFAULT '',
				best_model        TEXT NOT NULL DEFAULT '',
				best_sharpe       REAL NOT NULL DEFAULT 0,
				report_path       TEXT NOT NULL DEFAULT '',
				price_fingerprint TEXT NOT NULL DEFAULT '',
				report            BLOB,
				PRIMARY KEY (run_id, portfolio)
			);

			CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created DESC);
			CREATE INDEX IF NOT EXISTS idx_runs_tag ON runs(tag);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return err
		}
	}

	return nil
}

// EntryFor builds the index summary of doc
func EntryFor(doc *report.Document, reportPath string) *Entry {
	entry := &Entry{
		RunID:            doc.Metadata.RunID,
		Tag:              doc.Metadata.Tag,
		Portfolio:        doc.Portfolio,
		Created:          doc.Metadata.Created,
		Tickers:          append([]string(nil), doc.Tickers...),
		BestModel:        doc.BestModel,
		ReportPath:       reportPath,
		PriceFingerprint: doc.Metadata.PriceFingerprint,
	}
	for _, row := range doc.Models {
		if row.Model == doc.BestModel && row.Metrics != nil {
			entry.BestSharpe = row.Metrics.Sharpe
			break
		}
	}
	return entry
}

// Append records doc under its run id and portfolio. Re-appending the same
// pair replaces the earlier record.
func (idx *Index) Append(ctx context.Context, doc *report.Document, reportPath string) (*Entry, error) {
	if doc == nil {
		return nil, ErrNoDocument
	}
	if doc.Metadata.RunID == "" {
		return nil, ErrEmptyRunID
	}

	entry := EntryFor(doc, reportPath)

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	blob, err := common.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("compress report: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.sql == nil {
		return nil, ErrIndexNotOpen
	}

	_, err = idx.sql.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(run_id, portfolio, tag, created, tickers, best_model, best_sharpe, report_path, price_fingerprint, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID, entry.Portfolio, entry.Tag, entry.Created.UTC().Format(timeLayout),
		strings.Join(entry.Tickers, ","), entry.BestModel, entry.BestSharpe,
		entry.ReportPath, entry.PriceFingerprint, blob)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	if err := idx.mirror(entry); err != nil {
		return nil, err
	}

	log.Info().Object("Run", entry).Msg("run indexed")
	return entry, nil
}

func (idx *Index) mirror(entry *Entry) error {
	if idx.jsonlPath == "" {
		return nil
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode jsonl entry: %w", err)
	}

	fh, err := os.OpenFile(idx.jsonlPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", idx.jsonlPath, err)
	}
	if _, err := fh.Write(append(line, '\n')); err != nil {
		fh.Close()
		return fmt.Errorf("write %s: %w", idx.jsonlPath, err)
	}
	return fh.Close()
}

// List returns the most recent entries first. A limit <= 0 returns every
// entry; a non-empty tag restricts the result to that tag.
func (idx *Index) List(ctx context.Context, limit int, tag string) ([]*Entry, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.sql == nil {
		return nil, ErrIndexNotOpen
	}

	query := `SELECT run_id, portfolio, tag, created, tickers, best_model, best_sharpe, report_path, price_fingerprint FROM runs`
	args := []any{}
	if tag != "" {
		query += " WHERE tag = ?"
		args = append(args, tag)
	}
	query += " ORDER BY created DESC, run_id, portfolio"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := idx.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get returns every portfolio entry recorded under runID
func (idx *Index) Get(ctx context.Context, runID string) ([]*Entry, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.sql == nil {
		return nil, ErrIndexNotOpen
	}

	rows, err := idx.sql.QueryContext(ctx, `
		SELECT run_id, portfolio, tag, created, tickers, best_model, best_sharpe, report_path, price_fingerprint
		FROM runs WHERE run_id = ? ORDER BY portfolio`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return entries, nil
}

// Purge deletes the entries created before cutoff, restricted to tag when
// it is not empty, and returns them. The JSONL mirror is an append-only log
// and keeps its lines.
func (idx *Index) Purge(ctx context.Context, cutoff time.Time, tag string) ([]*Entry, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.sql == nil {
		return nil, ErrIndexNotOpen
	}

	where := " WHERE created < ?"
	args := []any{cutoff.UTC().Format(timeLayout)}
	if tag != "" {
		where += " AND tag = ?"
		args = append(args, tag)
	}

	tx, err := idx.sql.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin purge: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT run_id, portfolio, tag, created, tickers, best_model, best_sharpe, report_path, price_fingerprint FROM runs`+where+` ORDER BY created`, args...)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("query expired runs: %w", err)
	}

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			_ = tx.Rollback()
			return nil, err
		}
		entries = append(entries, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs`+where, args...); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("delete expired runs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit purge: %w", err)
	}

	log.Info().Int("NumPurged", len(entries)).Time("Cutoff", cutoff).Str("Tag", tag).Msg("purged run index")
	return entries, nil
}

// Report decodes the stored document for (runID, portfolio)
func (idx *Index) Report(ctx context.Context, runID, portfolio string) (*report.Document, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.sql == nil {
		return nil, ErrIndexNotOpen
	}

	var blob []byte
	err := idx.sql.QueryRowContext(ctx, `SELECT report FROM runs WHERE run_id = ? AND portfolio = ?`,
		runID, portfolio).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", ErrRunNotFound, runID, portfolio)
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}

	raw, err := common.Decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("decompress report: %w", err)
	}

	doc := &report.Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return doc, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	entry := &Entry{}
	var created, tickers string
	if err := row.Scan(&entry.RunID, &entry.Portfolio, &entry.Tag, &created, &tickers,
		&entry.BestModel, &entry.BestSharpe, &entry.ReportPath, &entry.PriceFingerprint); err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	ts, err := time.Parse(timeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("parse created %q: %w", created, err)
	}
	entry.Created = ts
	if tickers != "" {
		entry.Tickers = strings.Split(tickers, ",")
	}
	return entry, nil
}
