package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLite implements Store over a database/sql connection to a SQLite file.
// Timestamps are written from Go in UTC so both drivers agree on what a
// stored time means.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an already-opened and migrated SQLite database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error) {
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

func (s *SQLite) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE email = ?`, email))
}

func (s *SQLite) UserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (s *SQLite) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

func (s *SQLite) CreateConversation(ctx context.Context, userID, title string) (*Conversation, error) {
	now := time.Now().UTC()
	c := &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		IsNew:     true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title, is_new, is_title_changed, created_at, updated_at)
		 VALUES (?, ?, ?, 1, 0, ?, ?)`,
		c.ID, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return c, nil
}

func (s *SQLite) FindNewConversation(ctx context.Context, userID string) (*Conversation, error) {
	return s.scanConversation(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, is_new, is_title_changed, created_at, updated_at
		 FROM conversations WHERE user_id = ? AND is_new = 1 LIMIT 1`, userID))
}

func (s *SQLite) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, is_new, is_title_changed, created_at, updated_at
		 FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.IsNew, &c.IsTitleChanged, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) GetConversation(ctx context.Context, id, userID string) (*Conversation, error) {
	return s.scanConversation(s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, is_new, is_title_changed, created_at, updated_at
		 FROM conversations WHERE id = ? AND user_id = ?`, id, userID))
}

func (s *SQLite) scanConversation(row *sql.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.IsNew, &c.IsTitleChanged, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	return &c, nil
}

func (s *SQLite) MarkConversationUsed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET is_new = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking conversation used: %w", err)
	}
	return nil
}

func (s *SQLite) SetConversationTitle(ctx context.Context, id, title string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, is_title_changed = 1, updated_at = ? WHERE id = ?`,
		title, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("setting conversation title: %w", err)
	}
	return nil
}

func (s *SQLite) AddMessage(ctx context.Context, conversationID string, isUser bool, content string) (*Message, error) {
	m := &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		IsUser:         isUser,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, is_user, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ConversationID, m.IsUser, m.Content, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("adding message: %w", err)
	}
	return m, nil
}

func (s *SQLite) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, conversation_id, is_user, content, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at DESC`, conversationID)
}

func (s *SQLite) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, conversation_id, is_user, content, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at ASC LIMIT ?`, conversationID, limit)
}

func (s *SQLite) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.IsUser, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// isUniqueViolation matches SQLite's unique-constraint error text. The
// modernc driver exposes no typed error for it.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
