// Package cache keeps recently fetched message summaries in a local
// SQLite database so repeated listings do not always pay a round trip
// to the backend. Rows are advisory: the backend stays the source of
// truth and mutating operations invalidate the affected folder.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailbridge/internal/model"
)

// Store is the summary cache over a local SQLite database.
type Store struct {
	db *sqlx.DB
}

// NewStore opens (or creates) a SQLite database at dbPath, enables WAL
// mode, and runs any pending schema migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *Store) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// summaryRow is the database shape of one cached summary.
type summaryRow struct {
	ID         string    `db:"id"`
	Account    string    `db:"account"`
	Folder     string    `db:"folder"`
	MessageKey string    `db:"message_key"`
	Subject    string    `db:"subject"`
	Sender     string    `db:"sender"`
	Recipients string    `db:"recipients"`
	Date       time.Time `db:"date"`
	Snippet    string    `db:"snippet"`
	Unread     bool      `db:"unread"`
	Flagged    bool      `db:"flagged"`
	FetchedAt  time.Time `db:"fetched_at"`
}

// messageKey derives the per-folder unique key for a summary: the
// opaque provider id when present, else the UID in decimal.
func messageKey(ref model.MessageRef) string {
	if ref.ID != "" {
		return ref.ID
	}
	return strconv.FormatUint(uint64(ref.UID), 10)
}

// PutSummaries inserts or replaces a batch of summaries for one
// account.
func (s *Store) PutSummaries(
	ctx context.Context, accountEmail string, summaries []model.EmailSummary,
) error {
	if len(summaries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT OR REPLACE INTO summaries (
			id, account, folder, message_key,
			subject, sender, recipients,
			date, snippet, unread, flagged, fetched_at
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?, ?
		)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, summary := range summaries {
		recipients, err := json.Marshal(summary.To)
		if err != nil {
			return fmt.Errorf("marshaling recipients: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			uuid.NewString(), accountEmail, summary.Ref.Folder, messageKey(summary.Ref),
			summary.Subject, summary.From, string(recipients),
			summary.Date.UTC(), summary.Snippet, summary.Unread, summary.Flagged, now,
		)
		if err != nil {
			return fmt.Errorf("upserting summary %s: %w", messageKey(summary.Ref), err)
		}
	}

	return tx.Commit()
}

// Summaries returns cached summaries for one account folder, newest
// first.
func (s *Store) Summaries(
	ctx context.Context, accountEmail, folder string, limit int,
) ([]model.EmailSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []summaryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM summaries
		WHERE account = ? AND folder = ?
		ORDER BY date DESC
		LIMIT ?`,
		accountEmail, folder, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting summaries: %w", err)
	}

	summaries := make([]model.EmailSummary, 0, len(rows))
	for _, row := range rows {
		summary := model.EmailSummary{
			Ref:     model.MessageRef{Folder: row.Folder},
			Subject: row.Subject,
			From:    row.Sender,
			Date:    row.Date,
			Snippet: row.Snippet,
			Unread:  row.Unread,
			Flagged: row.Flagged,
		}
		if uid, err := strconv.ParseUint(row.MessageKey, 10, 32); err == nil {
			summary.Ref.UID = uint32(uid)
		} else {
			summary.Ref.ID = row.MessageKey
		}
		if err := json.Unmarshal([]byte(row.Recipients), &summary.To); err != nil {
			summary.To = nil
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// Invalidate drops cached rows for one folder, or for the whole
// account when folder is empty.
func (s *Store) Invalidate(ctx context.Context, accountEmail, folder string) error {
	var err error
	if folder == "" {
		_, err = s.db.ExecContext(ctx,
			"DELETE FROM summaries WHERE account = ?", accountEmail)
	} else {
		_, err = s.db.ExecContext(ctx,
			"DELETE FROM summaries WHERE account = ? AND folder = ?",
			accountEmail, folder)
	}
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	return nil
}

// AccountStats is the per-account slice of cache statistics.
type AccountStats struct {
	Account     string    `db:"account" json:"account"`
	Rows        int64     `db:"rows" json:"rows"`
	NewestFetch time.Time `db:"newest_fetch" json:"newest_fetch"`
}

// Stats summarizes cache contents for the cache_stats operation.
type Stats struct {
	TotalRows int64          `json:"total_rows"`
	Accounts  []AccountStats `json:"accounts,omitempty"`
}

// Stats reports row counts overall and per account.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := s.db.GetContext(ctx, &stats.TotalRows,
		"SELECT COUNT(*) FROM summaries"); err != nil {
		return nil, fmt.Errorf("counting summaries: %w", err)
	}

	err := s.db.SelectContext(ctx, &stats.Accounts, `
		SELECT account, COUNT(*) AS rows, MAX(fetched_at) AS newest_fetch
		FROM summaries
		GROUP BY account
		ORDER BY account`)
	if err != nil {
		return nil, fmt.Errorf("grouping summaries: %w", err)
	}

	return stats, nil
}
