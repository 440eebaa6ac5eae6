// Package repository persists the escalation audit log. Chat sessions
// themselves live only in memory.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/livechat/internal/domain"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// SQLiteStore stores escalation records in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS escalations (
			escalation_id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			message_index INTEGER NOT NULL,
			channel TEXT NOT NULL,
			text TEXT NOT NULL,
			ok INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			dispatched_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_escalations_chat ON escalations(chat_id, dispatched_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordEscalation stores one channel outcome.
func (s *SQLiteStore) RecordEscalation(ctx context.Context, e *domain.Escalation) error {
	var errText sql.NullString
	if e.Error != "" {
		errText = sql.NullString{String: e.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO escalations (escalation_id, chat_id, message_index, channel, text, ok, skipped, error, duration_ms, dispatched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EscalationID, e.ChatID, e.MessageIndex, e.Channel, e.Text, e.OK, e.Skipped, errText, e.DurationMs, e.DispatchedAt)
	if err != nil {
		return fmt.Errorf("failed to insert escalation: %w", err)
	}
	return nil
}

// ListEscalations returns the newest escalation records first. An empty
// chatID lists every chat.
func (s *SQLiteStore) ListEscalations(ctx context.Context, chatID string, limit int) ([]domain.Escalation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `SELECT escalation_id, chat_id, message_index, channel, text, ok, skipped, error, duration_ms, dispatched_at FROM escalations`
	args := []interface{}{}
	if chatID != "" {
		query += ` WHERE chat_id = ?`
		args = append(args, chatID)
	}
	query += ` ORDER BY dispatched_at DESC, escalation_id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalations: %w", err)
	}
	defer rows.Close()

	escalations := []domain.Escalation{}
	for rows.Next() {
		var e domain.Escalation
		var errText sql.NullString
		if err := rows.Scan(&e.EscalationID, &e.ChatID, &e.MessageIndex, &e.Channel, &e.Text,
			&e.OK, &e.Skipped, &errText, &e.DurationMs, &e.DispatchedAt); err != nil {
			return nil, err
		}
		e.Error = errText.String
		escalations = append(escalations, e)
	}
	return escalations, rows.Err()
}
