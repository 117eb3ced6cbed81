// ABOUTME: Tests for the facade: schema lifecycle and coarse chat operations
// ABOUTME: Covers idempotent init, integrity failures, and composite transactions

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupFactory creates a factory over a fresh temporary database with the
// schema initialized.
func setupFactory(t *testing.T) *Factory {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	provider, err := NewSQLiteProvider(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })

	factory, err := NewFactory(provider, DefaultRetryPolicy())
	require.NoError(t, err)
	require.NoError(t, factory.InitSchema(context.Background()))

	return factory
}

func TestNewFactory_RejectsInvalidPolicy(t *testing.T) {
	provider := setupProvider(t)

	_, err := NewFactory(provider, RetryPolicy{MaxAttempts: 0})
	assert.Error(t, err)
}

func TestFactory_InitSchemaIdempotent(t *testing.T) {
	factory := setupFactory(t)
	ctx := context.Background()

	// Second init must not fail or duplicate structures.
	require.NoError(t, factory.InitSchema(ctx))
	require.NoError(t, factory.VerifySchema(ctx))
}

func TestFactory_VerifySchemaBeforeInit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	provider, err := NewSQLiteProvider(dbPath)
	require.NoError(t, err)
	defer provider.Close()

	factory, err := NewFactory(provider, DefaultRetryPolicy())
	require.NoError(t, err)

	assert.ErrorIs(t, factory.VerifySchema(context.Background()), ErrSchemaMissing)
}

func TestFactory_CreateUser(t *testing.T) {
	factory := setupFactory(t)
	ctx := context.Background()

	id, err := factory.CreateUser(ctx, "alice", "h1", "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	got, err := factory.GetUserID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestFactory_CreateUser_DuplicateUsername(t *testing.T) {
	factory := setupFactory(t)
	ctx := context.Background()

	_, err := factory.CreateUser(ctx, "alice", "h1", "a@x.com")
	require.NoError(t, err)

	_, err = factory.CreateUser(ctx, "alice", "h2", "other@x.com")
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestFactory_GetUserID_NotFound(t *testing.T) {
	factory := setupFactory(t)

	_, err := factory.GetUserID(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFactory_AddChatMessage_UnknownUser(t *testing.T) {
	factory := setupFactory(t)

	_, err := factory.AddChatMessage(context.Background(), 42, "s1", "user", "hi")
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestFactory_ChatHistoryRoundTrip(t *testing.T) {
	factory := setupFactory(t)
	ctx := context.Background()

	userID, err := factory.CreateUser(ctx, "alice", "h1", "a@x.com")
	require.NoError(t, err)

	msgID, err := factory.AddChatMessage(ctx, userID, "s1", "user", "hi")
	require.NoError(t, err)
	assert.Equal(t, int64(1), msgID)

	_, err = factory.AddChatMessage(ctx, userID, "s1", "model", "hello back")
	require.NoError(t, err)

	history, err := factory.GetChatHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hi", history[0]["text"])
	assert.Equal(t, "user", history[0]["role"])
	assert.Equal(t, "hello back", history[1]["text"])

	roleText, err := factory.GetUserChatHistory(ctx, userID, "s1")
	require.NoError(t, err)
	require.Len(t, roleText, 2)
	assert.Equal(t, "hi", roleText[0]["text"])
}

func TestFactory_ListChatSessions(t *testing.T) {
	factory := setupFactory(t)
	ctx := context.Background()

	userID, err := factory.CreateUser(ctx, "alice", "h1", "a@x.com")
	require.NoError(t, err)

	for _, m := range []struct{ session, text string }{
		{"s1", "first"},
		{"s2", "second"},
		{"s1", "third"},
	} {
		_, err := factory.AddChatMessage(ctx, userID, m.session, "user", m.text)
		require.NoError(t, err)
	}

	sessions, err := factory.ListChatSessions(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, sessions)

	all, err := factory.ListAllChatHistory(ctx, userID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Ordered by session, then insertion.
	assert.Equal(t, "first", all[0]["text"])
	assert.Equal(t, "third", all[1]["text"])
	assert.Equal(t, "second", all[2]["text"])
}

func TestFactory_DeleteChatHistory(t *testing.T) {
	factory := setupFactory(t)
	ctx := context.Background()

	userID, err := factory.CreateUser(ctx, "alice", "h1", "a@x.com")
	require.NoError(t, err)
	_, err = factory.AddChatMessage(ctx, userID, "s1", "user", "hi")
	require.NoError(t, err)

	require.NoError(t, factory.DeleteChatHistory(ctx, userID, "s1"))

	history, err := factory.GetChatHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history)

	// Nothing left to delete.
	assert.ErrorIs(t, factory.DeleteChatHistory(ctx, userID, "s1"), ErrNotFound)
}

func TestFactory_DeleteUser_CascadesHistory(t *testing.T) {
	factory := setupFactory(t)
	ctx := context.Background()

	userID, err := factory.CreateUser(ctx, "alice", "h1", "a@x.com")
	require.NoError(t, err)
	_, err = factory.AddChatMessage(ctx, userID, "s1", "user", "hi")
	require.NoError(t, err)

	require.NoError(t, factory.DeleteUser(ctx, userID))

	history, err := factory.GetChatHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history, "deleting the user must cascade to chat history")

	assert.ErrorIs(t, factory.DeleteUser(ctx, userID), ErrNotFound)
}

func TestFactory_RegisterUserWithMessage(t *testing.T) {
	factory := setupFactory(t)
	ctx := context.Background()

	userID, err := factory.RegisterUserWithMessage(ctx, "alice", "h1", "a@x.com", "s1", "user", "hi")
	require.NoError(t, err)
	assert.Equal(t, int64(1), userID)

	history, err := factory.GetChatHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0]["text"])
}

func TestFactory_RegisterUserWithMessage_GeneratesSession(t *testing.T) {
	factory := setupFactory(t)
	ctx := context.Background()

	userID, err := factory.RegisterUserWithMessage(ctx, "alice", "h1", "a@x.com", "", "user", "hi")
	require.NoError(t, err)

	sessions, err := factory.ListChatSessions(ctx, userID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.NotEmpty(t, sessions[0])
}

func TestFactory_RegisterUserWithMessage_Atomic(t *testing.T) {
	factory := setupFactory(t)
	ctx := context.Background()

	_, err := factory.CreateUser(ctx, "alice", "h1", "a@x.com")
	require.NoError(t, err)

	// The duplicate username makes the first write fail; the message write
	// must not survive on its own.
	_, err = factory.RegisterUserWithMessage(ctx, "alice", "h2", "other@x.com", "s-orphan", "user", "hi")
	assert.ErrorIs(t, err, ErrIntegrity)

	history, err := factory.GetChatHistory(ctx, "s-orphan")
	require.NoError(t, err)
	assert.Empty(t, history, "half-applied composite operation")
}

func TestFactory_UserAndMessageLifecycle(t *testing.T) {
	factory := setupFactory(t)
	ctx := context.Background()

	userID, err := factory.CreateUser(ctx, "alice", "h1", "a@x.com")
	require.NoError(t, err)
	require.Equal(t, int64(1), userID)

	msgID, err := factory.AddChatMessage(ctx, userID, "s1", "user", "hi")
	require.NoError(t, err)
	require.Equal(t, int64(1), msgID)

	history, err := factory.GetChatHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0]["text"])

	require.NoError(t, factory.DeleteUser(ctx, userID))

	conn, err := factory.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Close()

	_, err = factory.UserRepository(conn).GetByID(ctx, userID)
	assert.ErrorIs(t, err, ErrNotFound)
}
