package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once

	mu    sync.RWMutex
	cache = make(map[reflect.Type]any)
)

// Load parses environment variables into cfg based on its `env` struct
// tags. Each configuration type is loaded once per process; subsequent
// calls for the same type return the cached value. A .env file in the
// working directory is applied on first use if present.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return ErrNilConfig
	}

	dotenvOnce.Do(func() {
		// Missing .env is the normal production case, not an error.
		_ = godotenv.Load()
	})

	typ := reflect.TypeOf(*cfg)

	mu.RLock()
	cached, ok := cache[typ]
	mu.RUnlock()
	if ok {
		*cfg = cached.(T)
		return nil
	}

	mu.Lock()
	defer mu.Unlock()

	// Another goroutine may have loaded the type while we waited.
	if cached, ok := cache[typ]; ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrParseFailed, typ, err)
	}

	cache[typ] = *cfg
	return nil
}

// MustLoad is Load that panics on failure. Useful during startup where
// a missing required variable should stop the process.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
