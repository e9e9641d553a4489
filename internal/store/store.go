// Package store persists users, conversations, and messages. Two drivers
// implement the same contract: SQLite for single-node deployments and
// PostgreSQL for everything else.
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by all drivers, checked with errors.Is.
var (
	// ErrNotFound indicates the requested row does not exist or is not
	// visible to the requesting user.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken indicates a signup with an already-registered email.
	ErrEmailTaken = errors.New("email already registered")
)

// User is a registered account. PasswordHash is a bcrypt hash, never the
// plaintext password.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Conversation is a chat thread owned by one user.
//
// IsNew marks a conversation that has not received its first message yet;
// creating a conversation reuses an existing new one instead of piling up
// empty threads. IsTitleChanged marks that the title was set from message
// content and should not be overwritten again.
type Conversation struct {
	ID             string    `json:"id"`
	UserID         string    `json:"-"`
	Title          string    `json:"title"`
	IsNew          bool      `json:"is_new"`
	IsTitleChanged bool      `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Message is one turn in a conversation. IsUser distinguishes user turns
// from assistant turns.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"-"`
	IsUser         bool      `json:"is_user"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store is the persistence contract the API server depends on.
type Store interface {
	// CreateUser registers a new account. Returns ErrEmailTaken when the
	// email is already in use.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)
	// UserByEmail returns the user with the given email, or ErrNotFound.
	UserByEmail(ctx context.Context, email string) (*User, error)
	// UserByID returns the user with the given id, or ErrNotFound.
	UserByID(ctx context.Context, id string) (*User, error)

	// CreateConversation creates a new conversation marked as new.
	CreateConversation(ctx context.Context, userID, title string) (*Conversation, error)
	// FindNewConversation returns the user's existing conversation still
	// marked as new, or ErrNotFound when there is none.
	FindNewConversation(ctx context.Context, userID string) (*Conversation, error)
	// ListConversations returns the user's conversations, most recently
	// updated first.
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)
	// GetConversation returns the conversation only when it belongs to the
	// given user, otherwise ErrNotFound.
	GetConversation(ctx context.Context, id, userID string) (*Conversation, error)
	// MarkConversationUsed clears the is_new flag and bumps updated_at.
	MarkConversationUsed(ctx context.Context, id string) error
	// SetConversationTitle sets the title and marks it changed.
	SetConversationTitle(ctx context.Context, id, title string) error

	// AddMessage appends a message to a conversation.
	AddMessage(ctx context.Context, conversationID string, isUser bool, content string) (*Message, error)
	// ListMessages returns a conversation's messages, newest first.
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
	// RecentMessages returns up to limit of the conversation's earliest
	// messages in chronological order, for prompt history.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]Message, error)

	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error
	// Close releases the underlying connections.
	Close() error
}
