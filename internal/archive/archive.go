// Package archive persists every notification the client has seen to a
// local SQLite database, so history survives restarts and the in-memory
// display cap. The live store stays authoritative for the session; the
// archive is a write-behind record.
package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/notification-center/internal/model"
)

// Archive is a local SQLite-backed notification history.
type Archive struct {
	db *sqlx.DB
}

// Open opens (or creates) the archive database at dbPath, enables WAL
// mode, and runs any pending schema migrations.
func Open(dbPath string) (*Archive, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening archive db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	a := &Archive{db: db}
	if err := a.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return a, nil
}

// Close closes the underlying database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (a *Archive) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := a.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = a.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := a.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration %d: %w", m.version, err)
		}
	}

	return nil
}

// Upsert inserts or replaces a batch of notifications by id.
func (a *Archive) Upsert(ctx context.Context, notifications []model.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning archive transaction: %w", err)
	}
	defer tx.Rollback()

	for _, n := range notifications {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (
				id, type, priority, title, content,
				action_url, action_text, is_read,
				created_at, updated_at, expires_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				type = excluded.type,
				priority = excluded.priority,
				title = excluded.title,
				content = excluded.content,
				action_url = excluded.action_url,
				action_text = excluded.action_text,
				is_read = excluded.is_read,
				updated_at = excluded.updated_at,
				expires_at = excluded.expires_at`,
			n.ID, n.Type, n.Priority, n.Title, n.Content,
			n.ActionURL, n.ActionText, n.Read,
			n.CreatedAt, n.UpdatedAt, n.ExpiresAt,
		)
		if err != nil {
			return fmt.Errorf("archiving notification %s: %w", n.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing archive transaction: %w", err)
	}
	return nil
}

// Recent returns up to limit archived notifications, newest first.
// Used for the startup back-fill before the first fetch lands.
func (a *Archive) Recent(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	var out []model.Notification
	err := a.db.SelectContext(ctx, &out, `
		SELECT id, type, priority, title, content,
		       action_url, action_text, is_read,
		       created_at, updated_at, expires_at
		FROM notifications
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing archived notifications: %w", err)
	}
	return out, nil
}

// MarkRead flags the given ids as read in the archive.
func (a *Archive) MarkRead(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(
		"UPDATE notifications SET is_read = 1 WHERE id IN (?)", ids,
	)
	if err != nil {
		return fmt.Errorf("building mark-read query: %w", err)
	}

	if _, err := a.db.ExecContext(ctx, a.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("marking archived notifications read: %w", err)
	}
	return nil
}

// MarkAllRead flags every archived notification as read.
func (a *Archive) MarkAllRead(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, "UPDATE notifications SET is_read = 1"); err != nil {
		return fmt.Errorf("marking archive read: %w", err)
	}
	return nil
}

// Delete removes the given ids from the archive.
func (a *Archive) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(
		"DELETE FROM notifications WHERE id IN (?)", ids,
	)
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}

	if _, err := a.db.ExecContext(ctx, a.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("deleting archived notifications: %w", err)
	}
	return nil
}

// Clear empties the archive.
func (a *Archive) Clear(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, "DELETE FROM notifications"); err != nil {
		return fmt.Errorf("clearing archive: %w", err)
	}
	return nil
}

// Prune drops archived notifications older than maxAge and, if keep > 0,
// trims the table down to the keep most recent rows.
func (a *Archive) Prune(ctx context.Context, maxAge time.Duration, keep int) error {
	if maxAge > 0 {
		cutoff := time.Now().Add(-maxAge)
		if _, err := a.db.ExecContext(ctx,
			"DELETE FROM notifications WHERE created_at < ?", cutoff,
		); err != nil {
			return fmt.Errorf("pruning archive by age: %w", err)
		}
	}

	if keep > 0 {
		if _, err := a.db.ExecContext(ctx, strings.TrimSpace(`
			DELETE FROM notifications WHERE id NOT IN (
				SELECT id FROM notifications
				ORDER BY created_at DESC
				LIMIT ?
			)`), keep,
		); err != nil {
			return fmt.Errorf("pruning archive by count: %w", err)
		}
	}

	return nil
}
