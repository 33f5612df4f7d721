// Package service implements the user business rules on top of a
// store.UserStore: input validation, email uniqueness and the error
// taxonomy consumed by the transports.
package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/model"
	"github.com/afoley587/coding-challenges-2025/usersvc/internal/store"
)

// Service orchestrates store calls for the user entity.  It is safe for
// concurrent use.
//
// The store has no uniqueness constraint, so Service holds a per-email
// lock around every existence check and the save that depends on it.
// Updates and deletes also hold the lock of the record's current email,
// so a stale read can never resurrect a deleted record or re-claim a
// released address.  This closes the check-then-act window for writers
// sharing one Service.  Separate processes writing to one shared store are not
// covered.
type Service struct {
	store  store.UserStore
	locks  emailLocks
	logger *zap.Logger
}

// New returns a Service backed by st.  A nil logger disables logging.
func New(st store.UserStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, logger: logger}
}

// Create validates candidate and persists it.  Checks run in a fixed
// order and stop at the first failure: name, email format, age, then
// email uniqueness.  Any id already set on candidate is ignored.
func (s *Service) Create(ctx context.Context, candidate model.User) (*model.User, error) {
	if err := validate(candidate.Name, candidate.Email, candidate.Age); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(candidate.Email)
	defer unlock()

	exists, err := s.store.ExistsByEmail(ctx, candidate.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	candidate.ID = 0
	created, err := s.store.Save(ctx, &candidate)
	if err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	s.logger.Debug("user created", zap.Int64("id", created.ID), zap.String("email", created.Email))
	return created, nil
}

// GetByID returns the user identified by id, or nil when there is none.
func (s *Service) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// GetByEmail returns the user owning email, or nil when there is none.
func (s *Service) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Update overwrites name, email and age of the user identified by id.
// The uniqueness check only runs when the email actually changes; the
// record trivially owns its current address.  Fields are not
// re-validated.
func (s *Service) Update(ctx context.Context, id int64, f model.Fields) (*model.User, error) {
	current, unlock, err := s.lockRecord(ctx, id, f.Email)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}
	defer unlock()

	if current.Email != f.Email {
		exists, err := s.store.ExistsByEmail(ctx, f.Email)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if exists {
			return nil, ErrDuplicateEmail
		}
	}

	current.Apply(f)
	updated, err := s.store.Save(ctx, current)
	if err != nil {
		return nil, fmt.Errorf("save user: %w", err)
	}
	s.logger.Debug("user updated", zap.Int64("id", updated.ID))
	return updated, nil
}

// Delete removes the user identified by id.  The zero id never
// resolves.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id == 0 {
		return ErrNotFound
	}
	u, unlock, err := s.lockRecord(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrNotFound
	}
	defer unlock()

	if err := s.store.Delete(ctx, u); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Debug("user deleted", zap.Int64("id", id))
	return nil
}

// lockRecord loads the user identified by id while holding the stripe of
// its email plus the stripes of extra.  Every write that touches an
// address holds that address's stripe, so the record cannot be deleted
// or moved off its email until unlock is called.  The read is repeated
// under the lock and retried if the email moved in between.  A nil user
// means id does not resolve and nothing is held.
func (s *Service) lockRecord(ctx context.Context, id int64, extra ...string) (*model.User, func(), error) {
	for {
		seen, err := s.store.FindByID(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("find user: %w", err)
		}
		if seen == nil {
			return nil, nil, nil
		}

		unlock := s.locks.lock(append([]string{seen.Email}, extra...)...)
		u, err := s.store.FindByID(ctx, id)
		switch {
		case err != nil:
			unlock()
			return nil, nil, fmt.Errorf("find user: %w", err)
		case u == nil:
			unlock()
			return nil, nil, nil
		case u.Email == seen.Email:
			return u, unlock, nil
		}
		unlock()
	}
}

func validate(name, email string, age int) error {
	switch {
	case strings.TrimSpace(name) == "":
		return &ValidationError{Field: FieldName}
	case !strings.Contains(email, "@"):
		return &ValidationError{Field: FieldEmail}
	case age <= 0:
		return &ValidationError{Field: FieldAge}
	}
	return nil
}
