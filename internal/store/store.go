package store

import (
	"context"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/model"
)

// UserStore defines an interface for persisting and retrieving users.
//
// Implementations may use different backends (e.g. in-memory for tests,
// Redis for production).  The user service depends on this abstraction
// rather than a concrete data store.
//
// A UserStore is a generic keyed store: it does not enforce email
// uniqueness.  That invariant belongs to the service layer.
//
// Lookups return a nil *model.User and a nil error when nothing
// matches.  Returned users are copies; mutating them does not affect
// stored state until they are passed back to Save.
type UserStore interface {
	// FindByID returns the user identified by id or nil.
	FindByID(ctx context.Context, id int64) (*model.User, error)
	// FindByEmail returns the user owning email or nil.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// ExistsByEmail reports whether any stored user owns email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Save upserts u by ID.  A zero ID is replaced with a freshly
	// assigned one.  The persisted user is returned.
	Save(ctx context.Context, u *model.User) (*model.User, error)
	// Delete removes u.  Deleting a user that is not stored is a no-op.
	Delete(ctx context.Context, u *model.User) error
	// FindAll returns every stored user.  No ordering is guaranteed.
	FindAll(ctx context.Context) ([]*model.User, error)
}
