package store

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/model"
	redis "github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultKeyPrefix = "users"
	maxTxRetries     = 16
)

// RedisStore is an implementation of UserStore backed by Redis.  Each
// user is a msgpack document under "<prefix>:<id>".  Three auxiliary
// keys are maintained alongside:
//
//	<prefix>:seq            INCR counter used to assign ids
//	<prefix>:ids            set of every stored id
//	<prefix>:email:<email>  id of the user owning <email>
//
// Writes that touch an existing record run inside WATCH/MULTI so that a
// concurrent writer forces a retry instead of corrupting the email
// index.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOption customizes a RedisStore.
type RedisOption func(*redisSettings)

type redisSettings struct {
	db     int
	prefix string
}

// WithDB selects the logical Redis database.
func WithDB(db int) RedisOption {
	return func(s *redisSettings) { s.db = db }
}

// WithKeyPrefix namespaces every key written by the store.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *redisSettings) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewRedisStore connects to a Redis instance at the provided address.
// A ping is performed to verify connectivity.
func NewRedisStore(addr string, password string, tls *tls.Config, opts ...RedisOption) (*RedisStore, error) {
	settings := redisSettings{prefix: defaultKeyPrefix}
	for _, o := range opts {
		o(&settings)
	}

	ropts := &redis.Options{
		Addr:     addr,
		Password: password, // empty string means no auth
		DB:       settings.db,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	if tls != nil {
		ropts.TLSConfig = tls
	}

	client := redis.NewClient(ropts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{client: client, prefix: settings.prefix}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// FindByID retrieves a user by id from Redis.  It returns (nil, nil) if
// the user does not exist.
func (s *RedisStore) FindByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := decodeUser(s.client.Get(ctx, s.userKey(id)))
	if err != nil {
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return u, nil
}

// FindByEmail resolves email through the index key.  A dangling index
// entry is treated as absence.
func (s *RedisStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	id, err := s.client.Get(ctx, s.emailKey(email)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return s.FindByID(ctx, id)
}

func (s *RedisStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := s.client.Exists(ctx, s.emailKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

// Save upserts u.  New users get their id from the sequence key.  When
// an existing user changes email the old index entry is removed, but
// only if it still points at this user.
func (s *RedisStore) Save(ctx context.Context, u *model.User) (*model.User, error) {
	stored := u.Clone()
	if stored.ID == 0 {
		id, err := s.client.Incr(ctx, s.seqKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis incr failed: %w", err)
		}
		stored.ID = id
	}
	data, err := msgpack.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal user: %w", err)
	}

	key := s.userKey(stored.ID)
	txf := func(tx *redis.Tx) error {
		prev, err := decodeUser(tx.Get(ctx, key))
		if err != nil {
			return err
		}
		dropOld, err := s.ownsEmail(ctx, tx, prev, stored.Email)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if dropOld {
				pipe.Del(ctx, s.emailKey(prev.Email))
			}
			pipe.Set(ctx, key, data, 0)
			pipe.Set(ctx, s.emailKey(stored.Email), stored.ID, 0)
			pipe.SAdd(ctx, s.idsKey(), stored.ID)
			return nil
		})
		return err
	}
	if err := s.watch(ctx, txf, key); err != nil {
		return nil, fmt.Errorf("save user %d: %w", stored.ID, err)
	}
	return stored, nil
}

// Delete removes u together with its id set membership and, if it
// still points at u, its email index entry.
func (s *RedisStore) Delete(ctx context.Context, u *model.User) error {
	key := s.userKey(u.ID)
	txf := func(tx *redis.Tx) error {
		prev, err := decodeUser(tx.Get(ctx, key))
		if err != nil || prev == nil {
			return err
		}
		dropEmail, err := s.ownsEmail(ctx, tx, prev, "")
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.idsKey(), prev.ID)
			if dropEmail {
				pipe.Del(ctx, s.emailKey(prev.Email))
			}
			return nil
		})
		return err
	}
	if err := s.watch(ctx, txf, key); err != nil {
		return fmt.Errorf("delete user %d: %w", u.ID, err)
	}
	return nil
}

// FindAll returns all users stored in Redis.  On a fresh store an empty
// slice and nil error are returned.
func (s *RedisStore) FindAll(ctx context.Context) ([]*model.User, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}
	users := make([]*model.User, 0, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.prefix + ":" + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget failed: %w", err)
	}
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// removed between SMEMBERS and MGET
			continue
		}
		var u model.User
		if err := msgpack.Unmarshal([]byte(raw), &u); err != nil {
			return nil, fmt.Errorf("failed to unmarshal user: %w", err)
		}
		users = append(users, &u)
	}
	return users, nil
}

// ownsEmail reports whether the index entry for prev's email should be
// dropped because prev is moving to next (or being deleted when next is
// empty).  The index key is watched so a concurrent claim aborts the
// transaction.
func (s *RedisStore) ownsEmail(ctx context.Context, tx *redis.Tx, prev *model.User, next string) (bool, error) {
	if prev == nil || prev.Email == next {
		return false, nil
	}
	ekey := s.emailKey(prev.Email)
	if err := tx.Watch(ctx, ekey).Err(); err != nil {
		return false, err
	}
	owner, err := tx.Get(ctx, ekey).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner == prev.ID, nil
}

// watch runs txf under WATCH on keys, retrying when another client
// modified a watched key before EXEC.
func (s *RedisStore) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < maxTxRetries; i++ {
		err = s.client.Watch(ctx, txf, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func decodeUser(cmd *redis.StringCmd) (*model.User, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var u model.User
	if err := msgpack.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	return &u, nil
}

func (s *RedisStore) userKey(id int64) string {
	return s.prefix + ":" + strconv.FormatInt(id, 10)
}

func (s *RedisStore) emailKey(email string) string {
	return s.prefix + ":email:" + email
}

func (s *RedisStore) idsKey() string {
	return s.prefix + ":ids"
}

func (s *RedisStore) seqKey() string {
	return s.prefix + ":seq"
}
