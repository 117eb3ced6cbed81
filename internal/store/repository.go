// ABOUTME: Generic CRUD contract over a domain entity
// ABOUTME: Hides row shape from callers; storage is delegated to a DataAccess

package store

import "context"

// Repository exposes typed CRUD over one entity type. Implementations map
// between domain objects and rows; callers never see column names.
//
// Error contract:
//   - GetByID, Update, and Delete fail with ErrNotFound when no row matches
//     the key. Repeated Delete on a missing ID surfaces ErrNotFound rather
//     than succeeding silently.
//   - Add returns the store-assigned ID; constraint failures map to
//     ErrIntegrity.
//   - GetAll returns a finite, restartable slice, not a live cursor.
type Repository[E any] interface {
	Add(ctx context.Context, entity E) (int64, error)
	GetByID(ctx context.Context, id int64) (E, error)
	Update(ctx context.Context, entity E) error
	Delete(ctx context.Context, id int64) error
	GetAll(ctx context.Context) ([]E, error)
}
