// Package config builds orchestrator options from STRATACACHE_* environment
// variables for applications that wire the cache at process start.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/stratacache/layer"
	"github.com/unkn0wn-root/stratacache/layer/flatfile"
	"github.com/unkn0wn-root/stratacache/layer/memory"
	redislayer "github.com/unkn0wn-root/stratacache/layer/redis"
	"github.com/unkn0wn-root/stratacache/layer/sqlite"
)

// Env is the environment-variable surface. Layers lists the tiers to build,
// fastest first; valid values are memory, durable-structured, durable-flat
// and remote.
type Env struct {
	Layers             []string      `env:"STRATACACHE_LAYERS" envSeparator:"," envDefault:"memory"`
	Strategy           string        `env:"STRATACACHE_STRATEGY" envDefault:"cache-aside"`
	ConflictResolution string        `env:"STRATACACHE_CONFLICT_RESOLUTION" envDefault:"version-based"`
	SyncInterval       time.Duration `env:"STRATACACHE_SYNC_INTERVAL" envDefault:"30s"`
	LayerTimeout       time.Duration `env:"STRATACACHE_LAYER_TIMEOUT" envDefault:"2s"`
	LockTTL            time.Duration `env:"STRATACACHE_LOCK_TTL" envDefault:"30s"`

	MemoryCapacity int `env:"STRATACACHE_MEMORY_CAPACITY" envDefault:"1024"`

	SQLitePath       string `env:"STRATACACHE_SQLITE_PATH" envDefault:"stratacache.db"`
	SQLiteMaxEntries int    `env:"STRATACACHE_SQLITE_MAX_ENTRIES" envDefault:"10000"`

	FlatDir        string `env:"STRATACACHE_FLAT_DIR" envDefault:"stratacache-flat"`
	FlatPrefix     string `env:"STRATACACHE_FLAT_PREFIX" envDefault:"strata"`
	FlatMaxEntries int    `env:"STRATACACHE_FLAT_MAX_ENTRIES" envDefault:"1000"`

	RedisAddr      string        `env:"STRATACACHE_REDIS_ADDR"`
	RedisPassword  string        `env:"STRATACACHE_REDIS_PASSWORD"`
	RedisDB        int           `env:"STRATACACHE_REDIS_DB" envDefault:"0"`
	RedisNamespace string        `env:"STRATACACHE_REDIS_NAMESPACE" envDefault:"stratacache"`
	RedisTTL       time.Duration `env:"STRATACACHE_REDIS_TTL" envDefault:"10m"`
}

// Parse loads Env from the process environment.
func Parse() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// BuildLayers constructs the configured tiers in order. The remote tier
// owns its client and closes it with the layer.
func BuildLayers(e Env) ([]layer.Layer, error) {
	out := make([]layer.Layer, 0, len(e.Layers))
	for _, name := range e.Layers {
		switch layer.Kind(name) {
		case layer.Memory:
			l, err := memory.New(memory.Config{Capacity: e.MemoryCapacity})
			if err != nil {
				return nil, fmt.Errorf("memory layer: %w", err)
			}
			out = append(out, l)
		case layer.DurableStructured:
			l, err := sqlite.New(sqlite.Config{Path: e.SQLitePath, MaxEntries: e.SQLiteMaxEntries})
			if err != nil {
				return nil, fmt.Errorf("sqlite layer: %w", err)
			}
			out = append(out, l)
		case layer.DurableFlat:
			l, err := flatfile.New(flatfile.Config{Dir: e.FlatDir, Prefix: e.FlatPrefix, MaxEntries: e.FlatMaxEntries})
			if err != nil {
				return nil, fmt.Errorf("flatfile layer: %w", err)
			}
			out = append(out, l)
		case layer.Remote:
			if e.RedisAddr == "" {
				return nil, fmt.Errorf("remote layer requires STRATACACHE_REDIS_ADDR")
			}
			client := goredis.NewClient(&goredis.Options{
				Addr:     e.RedisAddr,
				Password: e.RedisPassword,
				DB:       e.RedisDB,
			})
			l, err := redislayer.New(redislayer.Config{
				Client:      client,
				Namespace:   e.RedisNamespace,
				DefaultTTL:  e.RedisTTL,
				CloseClient: true,
			})
			if err != nil {
				return nil, fmt.Errorf("redis layer: %w", err)
			}
			out = append(out, l)
		default:
			return nil, fmt.Errorf("unknown layer kind %q", name)
		}
	}
	return out, nil
}
