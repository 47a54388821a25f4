// Package persistence implements the two-level write-behind Persistence
// Adapter from spec/4.3: a SQL tier (sqlite, preferred), a KV tier
// (Redis-or-memory, adapted from the teacher's pkg/cache), hash-guarded
// idempotent writes, and cold-start rehydrate. It satisfies both
// catalog.Persister and config.OverlayStore, so both components share the
// same underlying store without importing each other.
package persistence

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"sync"

	"danmakuproxy/internal/config"
	"danmakuproxy/pkg/logger"
)

// cacheDataNames enumerates the names spec/4.3 recognizes for cache_data.
var cacheDataNames = map[string]bool{
	"animes": true, "episodeIds": true, "episodeNum": true,
	"lastSelectMap": true, "searchCache": true, "commentCache": true,
}

// Adapter is the process-wide Persistence Adapter. The SQL tier is
// consulted exactly once per process lifetime (storageChecked latch);
// after that, Save/Load use whichever tier is configured.
type Adapter struct {
	mu    sync.Mutex
	sql   *sqlStore
	kv    kvStore
	hashes map[string]string

	checked bool
}

// New builds an Adapter from a Config snapshot. DatabaseURL is treated as
// the local sqlite file path (the teacher's driver, mattn/go-sqlite3, is
// file-based); RedisAddr configures the KV tier the same way the teacher's
// NewCache does.
func New(cfg *config.Config) *Adapter {
	a := &Adapter{hashes: make(map[string]string)}
	a.check(cfg)
	return a
}

func (a *Adapter) check(cfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.checked {
		return
	}
	a.checked = true

	if cfg.DatabaseURL != "" {
		store, err := openSQLStore(cfg.DatabaseURL)
		if err != nil {
			logger.Warnf("persistence: sql tier unavailable (%v), falling back to kv tier", err)
		} else {
			a.sql = store
		}
	}
	a.kv = newKVTier(cfg.RedisAddr, cfg.RedisDB)
}

// Save writes value under name to whichever tiers are configured. It is
// hash-guarded (skips unchanged values) and fire-and-forget: the caller
// never blocks on I/O. If both tiers are configured, it succeeds as long
// as at least one write succeeds.
func (a *Adapter) Save(name string, value []byte) {
	sum := fmt.Sprintf("%x", md5.Sum(value))

	a.mu.Lock()
	if a.hashes[name] == sum {
		a.mu.Unlock()
		return
	}
	a.hashes[name] = sum
	sqlTier, kvTier := a.sql, a.kv
	a.mu.Unlock()

	go func() {
		var sqlOK, kvOK bool
		if sqlTier != nil {
			if err := sqlTier.setCache(name, value); err != nil {
				logger.Warnf("persistence: sql write for %s failed: %v", name, err)
			} else {
				sqlOK = true
			}
		}
		if kvTier != nil {
			kvTier.set(cacheKey(name), value)
			kvOK = true
		}
		if !sqlOK && !kvOK {
			logger.Warnf("persistence: write for %s failed on every tier", name)
		}
	}()
}

// Load reads name back for cold-start rehydrate, preferring the SQL tier.
func (a *Adapter) Load(name string) ([]byte, bool, error) {
	a.mu.Lock()
	sqlTier, kvTier := a.sql, a.kv
	a.mu.Unlock()

	if sqlTier != nil {
		if v, ok := sqlTier.getCache(name); ok {
			return v, true, nil
		}
	}
	if kvTier != nil {
		if v, ok := kvTier.get(cacheKey(name)); ok {
			return v, true, nil
		}
	}
	return nil, false, nil
}

// LoadOverlay implements config.OverlayStore: it returns the persisted
// admin config patch, from the SQL tier's env_configs table or, absent a
// SQL tier, a JSON blob kept under a fixed KV key.
func (a *Adapter) LoadOverlay() (map[string]string, error) {
	a.mu.Lock()
	sqlTier, kvTier := a.sql, a.kv
	a.mu.Unlock()

	if sqlTier != nil {
		return sqlTier.getAllConfig()
	}
	if kvTier != nil {
		if v, ok := kvTier.get("env_configs"); ok {
			var out map[string]string
			if err := json.Unmarshal(v, &out); err == nil {
				return out, nil
			}
		}
	}
	return nil, nil
}

// SaveOverlay implements config.OverlayStore.
func (a *Adapter) SaveOverlay(patch map[string]string) error {
	a.mu.Lock()
	sqlTier, kvTier := a.sql, a.kv
	a.mu.Unlock()

	if sqlTier != nil {
		for k, v := range patch {
			if err := sqlTier.setConfig(k, v); err != nil {
				return err
			}
		}
		return nil
	}
	if kvTier != nil {
		merged := patch
		if existing, ok := kvTier.get("env_configs"); ok {
			var m map[string]string
			if json.Unmarshal(existing, &m) == nil {
				for k, v := range patch {
					m[k] = v
				}
				merged = m
			}
		}
		data, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		kvTier.set("env_configs", data)
	}
	return nil
}

func cacheKey(name string) string {
	return "cache_data:" + name
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sql != nil {
		return a.sql.close()
	}
	return nil
}
