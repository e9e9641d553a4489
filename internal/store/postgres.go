package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique-constraint errors.
const uniqueViolation = "23505"

// Postgres implements Store over a pgx connection pool. Row ids are
// generated by the database (gen_random_uuid), timestamps by now().
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already-opened and migrated connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3)
		 RETURNING id, username, email, password_hash, created_at`,
		username, email, passwordHash).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &u, nil
}

func (s *Postgres) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE email = $1`, email))
}

func (s *Postgres) UserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = $1`, id))
}

func (s *Postgres) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

func (s *Postgres) CreateConversation(ctx context.Context, userID, title string) (*Conversation, error) {
	var c Conversation
	err := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (user_id, title, is_new) VALUES ($1, $2, TRUE)
		 RETURNING id, user_id, title, is_new, is_title_changed, created_at, updated_at`,
		userID, title).
		Scan(&c.ID, &c.UserID, &c.Title, &c.IsNew, &c.IsTitleChanged, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return &c, nil
}

func (s *Postgres) FindNewConversation(ctx context.Context, userID string) (*Conversation, error) {
	return s.scanConversation(s.pool.QueryRow(ctx,
		`SELECT id, user_id, title, is_new, is_title_changed, created_at, updated_at
		 FROM conversations WHERE user_id = $1 AND is_new = TRUE LIMIT 1`, userID))
}

func (s *Postgres) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, title, is_new, is_title_changed, created_at, updated_at
		 FROM conversations WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
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

func (s *Postgres) GetConversation(ctx context.Context, id, userID string) (*Conversation, error) {
	return s.scanConversation(s.pool.QueryRow(ctx,
		`SELECT id, user_id, title, is_new, is_title_changed, created_at, updated_at
		 FROM conversations WHERE id = $1 AND user_id = $2`, id, userID))
}

func (s *Postgres) scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.IsNew, &c.IsTitleChanged, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	return &c, nil
}

func (s *Postgres) MarkConversationUsed(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE conversations SET is_new = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("marking conversation used: %w", err)
	}
	return nil
}

func (s *Postgres) SetConversationTitle(ctx context.Context, id, title string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE conversations SET title = $1, is_title_changed = TRUE, updated_at = now() WHERE id = $2`,
		title, id)
	if err != nil {
		return fmt.Errorf("setting conversation title: %w", err)
	}
	return nil
}

func (s *Postgres) AddMessage(ctx context.Context, conversationID string, isUser bool, content string) (*Message, error) {
	var m Message
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, is_user, content) VALUES ($1, $2, $3)
		 RETURNING id, conversation_id, is_user, content, created_at`,
		conversationID, isUser, content).
		Scan(&m.ID, &m.ConversationID, &m.IsUser, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("adding message: %w", err)
	}
	return &m, nil
}

func (s *Postgres) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, conversation_id, is_user, content, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at DESC`, conversationID)
}

func (s *Postgres) RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	return s.queryMessages(ctx,
		`SELECT id, conversation_id, is_user, content, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC LIMIT $2`, conversationID, limit)
}

func (s *Postgres) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
