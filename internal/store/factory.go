// ABOUTME: Facade owning the connection provider, schema setup, and coarse chat operations
// ABOUTME: Each operation acquires its own connection; composites run as one transaction

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

const (
	usersTable       = "users"
	chatHistoryTable = "chat_history"
)

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT,
		email TEXT UNIQUE NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chat_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chat_history_user
		ON chat_history(user_id);

	CREATE INDEX IF NOT EXISTS idx_chat_history_session
		ON chat_history(user_id, session_id);
`

// Factory is the single entry point for schema setup and coarse business
// operations over users and chat history. It owns a ConnectionProvider but
// not the provider's lifetime; construct, InitSchema once, use, Close the
// provider when done.
type Factory struct {
	provider ConnectionProvider
	policy   RetryPolicy
	logger   *slog.Logger
}

// NewFactory wires a facade over the given provider. The retry policy applies
// to every write the factory issues.
func NewFactory(provider ConnectionProvider, policy RetryPolicy) (*Factory, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Factory{
		provider: provider,
		policy:   policy,
		logger:   slog.Default().With("component", "factory"),
	}, nil
}

// Acquire exposes a connection for callers that want direct DataAccess usage.
// The caller must Close it on every exit path.
func (f *Factory) Acquire(ctx context.Context) (*sql.Conn, error) {
	return f.provider.Acquire(ctx)
}

// Access binds a retrying DataAccess to an already-acquired connection.
func (f *Factory) Access(conn *sql.Conn) *Access {
	return NewSQLiteAccess(conn, f.policy)
}

// UserRepository returns a typed user repository bound to conn.
func (f *Factory) UserRepository(conn *sql.Conn) *UserRepository {
	return NewUserRepository(f.Access(conn))
}

// ChatRepository returns a typed chat message repository bound to conn.
func (f *Factory) ChatRepository(conn *sql.Conn) *ChatRepository {
	return NewChatRepository(f.Access(conn))
}

// InitSchema creates all required tables and indexes if absent. Safe to call
// on every startup.
func (f *Factory) InitSchema(ctx context.Context) error {
	conn, err := f.provider.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := f.Access(conn).WithRetry(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, schema)
		return err
	}); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	f.logger.Info("schema initialized")
	return nil
}

// VerifySchema fails with ErrSchemaMissing if any required table is absent.
func (f *Factory) VerifySchema(ctx context.Context) error {
	conn, err := f.provider.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	access := f.Access(conn)
	for _, table := range []string{usersTable, chatHistoryTable} {
		exists, err := access.TableExists(ctx, table)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrSchemaMissing, table)
		}
	}
	return nil
}

// CreateUser inserts a new account and returns the store-assigned ID.
// A duplicate username or email fails with ErrIntegrity.
func (f *Factory) CreateUser(ctx context.Context, username, passwordHash, email string) (int64, error) {
	conn, err := f.provider.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var id int64
	err = f.Access(conn).WithRetry(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, password_hash, email) VALUES (?, ?, ?)`,
			username, passwordHash, email)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("creating user %q: %w", username, err)
	}

	f.logger.Debug("created user", "id", id, "username", username)
	return id, nil
}

// GetUserID looks up an account ID by username. Returns ErrNotFound if no
// such user exists.
func (f *Factory) GetUserID(ctx context.Context, username string) (int64, error) {
	conn, err := f.provider.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var id int64
	err = conn.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, username).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("querying user %q: %w", username, err)
	}
	return id, nil
}

// DeleteUser removes an account. Chat history cascades. Returns ErrNotFound
// if the ID does not exist.
func (f *Factory) DeleteUser(ctx context.Context, id int64) error {
	conn, err := f.provider.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	affected, err := f.Access(conn).ExecWithRetry(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	f.logger.Debug("deleted user", "id", id)
	return nil
}

// AddChatMessage appends a message to a session's history and returns the
// store-assigned message ID. A nonexistent user fails with ErrIntegrity.
func (f *Factory) AddChatMessage(ctx context.Context, userID int64, sessionID, role, text string) (int64, error) {
	conn, err := f.provider.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var id int64
	err = f.Access(conn).WithRetry(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO chat_history (user_id, session_id, role, text) VALUES (?, ?, ?, ?)`,
			userID, sessionID, role, text)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("adding chat message: %w", err)
	}

	f.logger.Debug("added chat message", "id", id, "user_id", userID, "session_id", sessionID)
	return id, nil
}

// GetChatHistory returns all messages of a session in insertion order, as
// column-name keyed rows.
func (f *Factory) GetChatHistory(ctx context.Context, sessionID string) ([]map[string]any, error) {
	conn, err := f.provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return f.Access(conn).Query(ctx,
		`SELECT id, user_id, session_id, role, text, created_at
		 FROM chat_history
		 WHERE session_id = ?
		 ORDER BY id`, sessionID)
}

// GetUserChatHistory returns one user's messages in a session, role and text
// only, in insertion order.
func (f *Factory) GetUserChatHistory(ctx context.Context, userID int64, sessionID string) ([]map[string]any, error) {
	conn, err := f.provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return f.Access(conn).Query(ctx,
		`SELECT role, text
		 FROM chat_history
		 WHERE user_id = ? AND session_id = ?
		 ORDER BY id`, userID, sessionID)
}

// ListChatSessions returns the distinct session IDs a user has messages in.
func (f *Factory) ListChatSessions(ctx context.Context, userID int64) ([]string, error) {
	conn, err := f.provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := f.Access(conn).Query(ctx,
		`SELECT DISTINCT session_id FROM chat_history WHERE user_id = ? ORDER BY session_id`, userID)
	if err != nil {
		return nil, err
	}

	sessions := make([]string, 0, len(rows))
	for _, row := range rows {
		if s, ok := row["session_id"].(string); ok {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

// ListAllChatHistory returns every message of a user across sessions, ordered
// by session then insertion.
func (f *Factory) ListAllChatHistory(ctx context.Context, userID int64) ([]map[string]any, error) {
	conn, err := f.provider.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return f.Access(conn).Query(ctx,
		`SELECT session_id, role, text
		 FROM chat_history
		 WHERE user_id = ?
		 ORDER BY session_id, id`, userID)
}

// DeleteChatHistory removes all of a user's messages in a session. Returns
// ErrNotFound if there was nothing to delete.
func (f *Factory) DeleteChatHistory(ctx context.Context, userID int64, sessionID string) error {
	conn, err := f.provider.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	affected, err := f.Access(conn).ExecWithRetry(ctx,
		`DELETE FROM chat_history WHERE user_id = ? AND session_id = ?`, userID, sessionID)
	if err != nil {
		return fmt.Errorf("deleting chat history: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	f.logger.Debug("deleted chat history", "user_id", userID, "session_id", sessionID)
	return nil
}

// RegisterUserWithMessage creates an account and its first chat message in a
// single transaction: both rows commit or neither does. If the engine reports
// contention mid-transaction the whole unit is retried. An empty sessionID
// gets a generated one. Returns the new user's ID.
func (f *Factory) RegisterUserWithMessage(ctx context.Context, username, passwordHash, email, sessionID, role, text string) (int64, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	conn, err := f.provider.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var userID int64
	err = f.Access(conn).WithRetry(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, password_hash, email) VALUES (?, ?, ?)`,
			username, passwordHash, email)
		if err != nil {
			return err
		}
		userID, err = res.LastInsertId()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chat_history (user_id, session_id, role, text) VALUES (?, ?, ?, ?)`,
			userID, sessionID, role, text)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("registering user %q with initial message: %w", username, err)
	}

	f.logger.Debug("registered user with initial message", "id", userID, "username", username, "session_id", sessionID)
	return userID, nil
}
