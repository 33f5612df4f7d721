package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/model"
	"github.com/afoley587/coding-challenges-2025/usersvc/internal/service"
	"github.com/afoley587/coding-challenges-2025/usersvc/internal/store"
)

// countingStore wraps a UserStore and counts writes.  An optional delay
// between the existence check and its return widens race windows.
type countingStore struct {
	store.UserStore
	saves       atomic.Int64
	existsDelay time.Duration
}

func (c *countingStore) Save(ctx context.Context, u *model.User) (*model.User, error) {
	c.saves.Add(1)
	return c.UserStore.Save(ctx, u)
}

func (c *countingStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	ok, err := c.UserStore.ExistsByEmail(ctx, email)
	if c.existsDelay > 0 {
		time.Sleep(c.existsDelay)
	}
	return ok, err
}

// failingStore returns err from every method.
type failingStore struct {
	store.UserStore
	err error
}

func (f failingStore) ExistsByEmail(context.Context, string) (bool, error) { return false, f.err }
func (f failingStore) FindByID(context.Context, int64) (*model.User, error) { return nil, f.err }

// gateStore parks the first FindByID issued after arm until release is
// closed, holding a caller between its read and anything that follows.
type gateStore struct {
	store.UserStore
	armed   atomic.Bool
	parked  chan struct{}
	release chan struct{}
}

func newGateStore() *gateStore {
	return &gateStore{
		UserStore: store.NewInMemoryStore(),
		parked:    make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (g *gateStore) FindByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := g.UserStore.FindByID(ctx, id)
	if g.armed.CompareAndSwap(true, false) {
		close(g.parked)
		<-g.release
	}
	return u, err
}

func countEmail(t *testing.T, svc *service.Service, email string) int {
	t.Helper()
	users, err := svc.List(context.Background())
	require.NoError(t, err)
	n := 0
	for _, u := range users {
		if u.Email == email {
			n++
		}
	}
	return n
}

func newService(t *testing.T) (*service.Service, *countingStore) {
	t.Helper()
	cs := &countingStore{UserStore: store.NewInMemoryStore()}
	return service.New(cs, zaptest.NewLogger(t)), cs
}

func validUser(n int) model.User {
	return model.User{Name: fmt.Sprintf("User %d", n), Email: fmt.Sprintf("user%d@example.com", n), Age: 20 + n}
}

func TestCreateReturnsStoredUser(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	in := model.User{Name: "Test User", Email: "test@example.com", Age: 25}
	created, err := svc.Create(ctx, in)
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.Equal(t, in.Name, created.Name)
	assert.Equal(t, in.Email, created.Email)
	assert.Equal(t, in.Age, created.Age)

	byID, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, byID)

	byEmail, err := svc.GetByEmail(ctx, created.Email)
	require.NoError(t, err)
	assert.Equal(t, created, byEmail)
}

func TestCreateIgnoresCallerID(t *testing.T) {
	svc, _ := newService(t)
	in := validUser(1)
	in.ID = 777

	created, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, int64(777), created.ID)
}

func TestCreateDuplicateEmail(t *testing.T) {
	svc, cs := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, model.User{Name: "First", Email: "duplicate@example.com", Age: 25})
	require.NoError(t, err)

	_, err = svc.Create(ctx, model.User{Name: "Second", Email: "duplicate@example.com", Age: 30})
	require.ErrorIs(t, err, service.ErrDuplicateEmail)
	assert.Equal(t, "email already exists", err.Error())
	assert.Equal(t, int64(1), cs.saves.Load())
}

func TestCreateValidationOrder(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, model.User{Name: "Taken", Email: "taken@example.com", Age: 30})
	require.NoError(t, err)

	tests := []struct {
		name  string
		in    model.User
		field service.Field
		msg   string
	}{
		{"empty name beats everything", model.User{Name: "", Email: "bad", Age: -1}, service.FieldName, "name cannot be empty"},
		{"blank name", model.User{Name: "   ", Email: "ok@example.com", Age: 30}, service.FieldName, "name cannot be empty"},
		{"email before age", model.User{Name: "Bob", Email: "invalid-email", Age: 0}, service.FieldEmail, "invalid email format"},
		{"missing email", model.User{Name: "Bob", Age: 30}, service.FieldEmail, "invalid email format"},
		{"zero age", model.User{Name: "Bob", Email: "bob@example.com", Age: 0}, service.FieldAge, "age must be positive"},
		{"negative age before uniqueness", model.User{Name: "Bob", Email: "taken@example.com", Age: -5}, service.FieldAge, "age must be positive"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.in)
			require.ErrorIs(t, err, service.ErrValidation)

			var verr *service.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, tc.msg, err.Error())
			assert.NotErrorIs(t, err, service.ErrDuplicateEmail)
		})
	}
}

func TestDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validUser(1))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))
	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	// The email is free again.
	_, err = svc.Create(ctx, validUser(1))
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.Delete(ctx, 0), service.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, 9999), service.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, created.ID), service.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("changed email", func(t *testing.T) {
		svc, _ := newService(t)
		u, err := svc.Create(ctx, validUser(1))
		require.NoError(t, err)

		updated, err := svc.Update(ctx, u.ID, model.Fields{Name: "Renamed", Email: "renamed@example.com", Age: 99})
		require.NoError(t, err)
		assert.Equal(t, u.ID, updated.ID)
		assert.Equal(t, "Renamed", updated.Name)
		assert.Equal(t, "renamed@example.com", updated.Email)
		assert.Equal(t, 99, updated.Age)

		got, err := svc.GetByEmail(ctx, "renamed@example.com")
		require.NoError(t, err)
		assert.Equal(t, updated, got)

		old, err := svc.GetByEmail(ctx, u.Email)
		require.NoError(t, err)
		assert.Nil(t, old)
	})

	t.Run("email owned by another user", func(t *testing.T) {
		svc, _ := newService(t)
		a, err := svc.Create(ctx, validUser(1))
		require.NoError(t, err)
		b, err := svc.Create(ctx, validUser(2))
		require.NoError(t, err)

		_, err = svc.Update(ctx, a.ID, model.Fields{Name: "A", Email: b.Email, Age: 30})
		require.ErrorIs(t, err, service.ErrDuplicateEmail)

		got, err := svc.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a, got)
	})

	t.Run("unchanged email", func(t *testing.T) {
		svc, _ := newService(t)
		u, err := svc.Create(ctx, validUser(1))
		require.NoError(t, err)

		updated, err := svc.Update(ctx, u.ID, model.Fields{Name: "Same Email", Email: u.Email, Age: 50})
		require.NoError(t, err)
		assert.Equal(t, "Same Email", updated.Name)
		assert.Equal(t, 50, updated.Age)
	})

	t.Run("unknown id", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Update(ctx, 42, model.Fields{Name: "X", Email: "x@example.com", Age: 1})
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestList(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	users, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, validUser(i))
		require.NoError(t, err)
	}
	users, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	boom := errors.New("connection reset")
	svc := service.New(failingStore{err: boom}, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, validUser(1))
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, service.ErrDuplicateEmail)

	_, err = svc.Update(ctx, 1, model.Fields{})
	assert.ErrorIs(t, err, boom)

	assert.ErrorIs(t, svc.Delete(ctx, 1), boom)
}

// TestConcurrentCreateSameEmail races many creators on one address.
// The store sleeps after every existence check, which would let every
// caller through without the per-email lock.
func TestConcurrentCreateSameEmail(t *testing.T) {
	cs := &countingStore{UserStore: store.NewInMemoryStore(), existsDelay: 2 * time.Millisecond}
	svc := service.New(cs, nil)

	const callers = 20
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		dupes     atomic.Int64
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Create(context.Background(), model.User{Name: fmt.Sprintf("racer-%d", i), Email: "race@example.com", Age: 30})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, service.ErrDuplicateEmail):
				dupes.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), succeeded.Load())
	assert.Equal(t, int64(callers-1), dupes.Load())
	assert.Equal(t, int64(1), cs.saves.Load())
}

// TestConcurrentUpdateAndCreate races an email-changing update against a
// create for the same target address.  Exactly one may claim it.
func TestConcurrentUpdateAndCreate(t *testing.T) {
	for i := 0; i < 20; i++ {
		cs := &countingStore{UserStore: store.NewInMemoryStore(), existsDelay: time.Millisecond}
		svc := service.New(cs, nil)
		ctx := context.Background()

		u, err := svc.Create(ctx, validUser(1))
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = svc.Update(ctx, u.ID, model.Fields{Name: "moved", Email: "contested@example.com", Age: 1})
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = svc.Create(ctx, model.User{Name: "new", Email: "contested@example.com", Age: 1})
		}()
		wg.Wait()

		failures := 0
		for _, err := range errs {
			if err != nil {
				require.ErrorIs(t, err, service.ErrDuplicateEmail)
				failures++
			}
		}
		assert.Equal(t, 1, failures)
	}
}

// TestUpdateDoesNotResurrectDeletedUser holds an update between its first
// read and its save while the record is deleted and its address reused.
func TestUpdateDoesNotResurrectDeletedUser(t *testing.T) {
	gs := newGateStore()
	svc := service.New(gs, zaptest.NewLogger(t))
	ctx := context.Background()

	a, err := svc.Create(ctx, model.User{Name: "A", Email: "shared@example.com", Age: 30})
	require.NoError(t, err)

	gs.armed.Store(true)
	done := make(chan error, 1)
	go func() {
		_, err := svc.Update(ctx, a.ID, model.Fields{Name: "A renamed", Email: "shared@example.com", Age: 31})
		done <- err
	}()
	<-gs.parked

	require.NoError(t, svc.Delete(ctx, a.ID))
	b, err := svc.Create(ctx, model.User{Name: "B", Email: "shared@example.com", Age: 40})
	require.NoError(t, err)
	close(gs.release)

	require.ErrorIs(t, <-done, service.ErrNotFound)

	got, err := svc.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	owner, err := svc.GetByEmail(ctx, "shared@example.com")
	require.NoError(t, err)
	assert.Equal(t, b, owner)
	assert.Equal(t, 1, countEmail(t, svc, "shared@example.com"))
}

// TestStaleUpdateCannotReclaimAddress holds a same-email update while the
// record moves to another address and a new user takes the old one.
func TestStaleUpdateCannotReclaimAddress(t *testing.T) {
	gs := newGateStore()
	svc := service.New(gs, zaptest.NewLogger(t))
	ctx := context.Background()

	a, err := svc.Create(ctx, model.User{Name: "A", Email: "old@example.com", Age: 30})
	require.NoError(t, err)

	gs.armed.Store(true)
	done := make(chan error, 1)
	go func() {
		_, err := svc.Update(ctx, a.ID, model.Fields{Name: "A renamed", Email: "old@example.com", Age: 31})
		done <- err
	}()
	<-gs.parked

	_, err = svc.Update(ctx, a.ID, model.Fields{Name: "A", Email: "new@example.com", Age: 30})
	require.NoError(t, err)
	_, err = svc.Create(ctx, model.User{Name: "C", Email: "old@example.com", Age: 50})
	require.NoError(t, err)
	close(gs.release)

	require.ErrorIs(t, <-done, service.ErrDuplicateEmail)
	assert.Equal(t, 1, countEmail(t, svc, "old@example.com"))

	got, err := svc.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email)
}

// TestConcurrentUpdateDeleteCreate hammers one address with updates,
// deletes and creates.  The address never ends up with two owners and a
// deleted id never comes back.
func TestConcurrentUpdateDeleteCreate(t *testing.T) {
	const email = "busy@example.com"
	for i := 0; i < 20; i++ {
		cs := &countingStore{UserStore: store.NewInMemoryStore(), existsDelay: time.Millisecond}
		svc := service.New(cs, nil)
		ctx := context.Background()

		a, err := svc.Create(ctx, model.User{Name: "A", Email: email, Age: 30})
		require.NoError(t, err)

		var wg sync.WaitGroup
		var deleted atomic.Bool
		for g := 0; g < 4; g++ {
			wg.Add(3)
			go func() {
				defer wg.Done()
				_, _ = svc.Update(ctx, a.ID, model.Fields{Name: "A renamed", Email: email, Age: 31})
			}()
			go func() {
				defer wg.Done()
				if svc.Delete(ctx, a.ID) == nil {
					deleted.Store(true)
				}
			}()
			go func() {
				defer wg.Done()
				_, _ = svc.Create(ctx, model.User{Name: "B", Email: email, Age: 40})
			}()
		}
		wg.Wait()

		assert.LessOrEqual(t, countEmail(t, svc, email), 1)
		if deleted.Load() {
			got, err := svc.GetByID(ctx, a.ID)
			require.NoError(t, err)
			assert.Nil(t, got)
		}
	}
}

func BenchmarkCreate(b *testing.B) {
	svc := service.New(store.NewInMemoryStore(), nil)
	ctx := context.Background()
	var n atomic.Int64

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := n.Add(1)
			_, err := svc.Create(ctx, model.User{Name: "bench", Email: fmt.Sprintf("bench%d@example.com", i), Age: 30})
			if err != nil {
				b.Error(err)
			}
		}
	})
}
