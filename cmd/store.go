package cmd

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/afoley587/coding-challenges-2025/usersvc/internal/config"
	"github.com/afoley587/coding-challenges-2025/usersvc/internal/store"
)

// addStoreFlags registers the store selection flags on fs.
func addStoreFlags(fs *pflag.FlagSet) {
	fs.String("store", config.BackendMemory, "Store backend (memory or redis)")
	fs.StringP("redis-address", "r", "127.0.0.1:6379", "Redis address")
	fs.StringP("redis-password", "p", "", "Redis password")
	fs.Int("redis-db", 0, "Redis logical database")
	fs.String("key-prefix", "users", "Prefix for every Redis key")

	bindFlag(fs, "store", "store.backend")
	bindFlag(fs, "redis-address", "store.redis_addr")
	bindFlag(fs, "redis-password", "store.redis_password")
	bindFlag(fs, "redis-db", "store.redis_db")
	bindFlag(fs, "key-prefix", "store.key_prefix")
}

// openStore builds the configured backend.  The returned func releases
// its resources.
func openStore(sc config.StoreConfig) (store.UserStore, func() error, error) {
	switch sc.Backend {
	case config.BackendRedis:
		st, err := store.NewRedisStore(sc.RedisAddr, sc.RedisPassword, nil,
			store.WithDB(sc.RedisDB), store.WithKeyPrefix(sc.KeyPrefix))
		if err != nil {
			return nil, nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return st, st.Close, nil
	case config.BackendMemory:
		return store.NewInMemoryStore(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}
