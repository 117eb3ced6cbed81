// ABOUTME: Typed CRUD over user accounts, delegating storage to a DataAccess
// ABOUTME: Maps rows to the User model and back

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UserRepository implements Repository[User] over a bound DataAccess.
type UserRepository struct {
	access DataAccess
}

// NewUserRepository wires a user repository over the given access. The access
// stays bound to its connection; the caller controls that lifetime.
func NewUserRepository(access DataAccess) *UserRepository {
	return &UserRepository{access: access}
}

const userColumns = `id, username, password_hash, email, created_at`

// Add inserts the user and returns the store-assigned ID. The entity's own ID
// field is ignored.
func (r *UserRepository) Add(ctx context.Context, user User) (int64, error) {
	var id int64
	err := r.access.WithRetry(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (username, password_hash, email) VALUES (?, ?, ?)`,
			user.Username, user.PasswordHash, user.Email)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("adding user %q: %w", user.Username, err)
	}
	return id, nil
}

// GetByID returns the user with the given ID, or ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (User, error) {
	rows, err := r.access.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return User{}, err
	}
	if len(rows) == 0 {
		return User{}, ErrNotFound
	}
	return userFromRow(rows[0])
}

// GetByUsername returns the user with the given username, or ErrNotFound.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (User, error) {
	rows, err := r.access.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	if err != nil {
		return User{}, err
	}
	if len(rows) == 0 {
		return User{}, ErrNotFound
	}
	return userFromRow(rows[0])
}

// Update replaces all mutable fields of the row matching the entity's ID.
// Returns ErrNotFound if no such row exists.
func (r *UserRepository) Update(ctx context.Context, user User) error {
	affected, err := r.access.ExecWithRetry(ctx,
		`UPDATE users SET username = ?, password_hash = ?, email = ? WHERE id = ?`,
		user.Username, user.PasswordHash, user.Email, user.ID)
	if err != nil {
		return fmt.Errorf("updating user %d: %w", user.ID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the user with the given ID. Returns ErrNotFound if the row
// is already gone; an absent key is never a silent no-op.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	affected, err := r.access.ExecWithRetry(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAll returns every user, ordered by ID.
func (r *UserRepository) GetAll(ctx context.Context) ([]User, error) {
	rows, err := r.access.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}

	users := make([]User, 0, len(rows))
	for _, row := range rows {
		user, err := userFromRow(row)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func userFromRow(row map[string]any) (User, error) {
	var user User
	var err error

	user.ID, _ = row["id"].(int64)
	user.Username, _ = row["username"].(string)
	user.PasswordHash, _ = row["password_hash"].(string)
	user.Email, _ = row["email"].(string)

	if raw, ok := row["created_at"].(string); ok {
		user.CreatedAt, err = time.Parse(sqliteTimeLayout, raw)
		if err != nil {
			return User{}, fmt.Errorf("parsing user created_at: %w", err)
		}
	}
	return user, nil
}

var _ Repository[User] = (*UserRepository)(nil)
