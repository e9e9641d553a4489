package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daleelapp/daleel/internal/store"
	"github.com/daleelapp/daleel/internal/testutil"
)

// The contract suite runs against both drivers; postgres is exercised only
// when DALEEL_TEST_DATABASE_URL is set.

// email builds a unique address so suite runs against a shared postgres
// database never collide on the unique constraint.
func email(name string) string {
	return name + "-" + uuid.NewString() + "@example.com"
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()
	runStoreSuite(t, func(t *testing.T) store.Store {
		return testutil.NewSQLiteStore(t)
	})
}

func TestPostgresStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) store.Store {
		return testutil.PostgresStore(t)
	})
}

func runStoreSuite(t *testing.T, open func(t *testing.T) store.Store) {
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		st := open(t)
		addr := email("layla")

		u, err := st.CreateUser(ctx, "layla", addr, "hash1")
		require.NoError(t, err)
		assert.NotEmpty(t, u.ID)
		assert.Equal(t, "layla", u.Username)
		assert.WithinDuration(t, time.Now(), u.CreatedAt, time.Minute)

		byEmail, err := st.UserByEmail(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
		assert.Equal(t, "hash1", byEmail.PasswordHash)

		byID, err := st.UserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, addr, byID.Email)

		_, err = st.UserByEmail(ctx, email("nobody"))
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = st.CreateUser(ctx, "other", addr, "hash2")
		assert.ErrorIs(t, err, store.ErrEmailTaken)
	})

	t.Run("conversations", func(t *testing.T) {
		st := open(t)
		u, err := st.CreateUser(ctx, "omar", email("omar"), "h")
		require.NoError(t, err)

		c, err := st.CreateConversation(ctx, u.ID, "New Conversation")
		require.NoError(t, err)
		assert.True(t, c.IsNew)
		assert.False(t, c.IsTitleChanged)

		found, err := st.FindNewConversation(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, c.ID, found.ID)

		require.NoError(t, st.MarkConversationUsed(ctx, c.ID))
		_, err = st.FindNewConversation(ctx, u.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, st.SetConversationTitle(ctx, c.ID, "نظام الدرجات"))
		got, err := st.GetConversation(ctx, c.ID, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "نظام الدرجات", got.Title)
		assert.True(t, got.IsTitleChanged)
		assert.False(t, got.IsNew)
	})

	t.Run("conversation ownership", func(t *testing.T) {
		st := open(t)
		owner, err := st.CreateUser(ctx, "owner", email("owner"), "h")
		require.NoError(t, err)
		intruder, err := st.CreateUser(ctx, "intruder", email("intruder"), "h")
		require.NoError(t, err)

		c, err := st.CreateConversation(ctx, owner.ID, "private")
		require.NoError(t, err)

		_, err = st.GetConversation(ctx, c.ID, intruder.ID)
		assert.ErrorIs(t, err, store.ErrNotFound, "another user's conversation must be invisible")
	})

	t.Run("listing order", func(t *testing.T) {
		st := open(t)
		u, err := st.CreateUser(ctx, "sara", email("sara"), "h")
		require.NoError(t, err)

		first, err := st.CreateConversation(ctx, u.ID, "first")
		require.NoError(t, err)
		second, err := st.CreateConversation(ctx, u.ID, "second")
		require.NoError(t, err)

		// Touching the older conversation moves it to the front.
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, st.MarkConversationUsed(ctx, first.ID))

		list, err := st.ListConversations(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, first.ID, list[0].ID)
		assert.Equal(t, second.ID, list[1].ID)
	})

	t.Run("messages", func(t *testing.T) {
		st := open(t)
		u, err := st.CreateUser(ctx, "noor", email("noor"), "h")
		require.NoError(t, err)
		c, err := st.CreateConversation(ctx, u.ID, "t")
		require.NoError(t, err)

		texts := []string{"q1", "a1", "q2", "a2"}
		for i, text := range texts {
			_, err := st.AddMessage(ctx, c.ID, i%2 == 0, text)
			require.NoError(t, err)
			time.Sleep(5 * time.Millisecond) // distinct created_at ordering
		}

		newestFirst, err := st.ListMessages(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, newestFirst, 4)
		assert.Equal(t, "a2", newestFirst[0].Content)
		assert.Equal(t, "q1", newestFirst[3].Content)
		assert.False(t, newestFirst[0].IsUser)
		assert.True(t, newestFirst[3].IsUser)

		oldestFirst, err := st.RecentMessages(ctx, c.ID, 2)
		require.NoError(t, err)
		require.Len(t, oldestFirst, 2)
		assert.Equal(t, "q1", oldestFirst[0].Content)
		assert.Equal(t, "a1", oldestFirst[1].Content)
	})

	t.Run("ping", func(t *testing.T) {
		st := open(t)
		assert.NoError(t, st.Ping(ctx))
	})
}
