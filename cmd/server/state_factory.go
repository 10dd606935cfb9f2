package main

import (
	"github.com/matst80/mediabroker/internal/obs"
	"github.com/matst80/mediabroker/internal/store"
)

// newStore creates either an in-memory or Redis-backed session store based on configuration.
func newStore(c *Config) (store.Store, error) {
	if c.RedisAddr == "" {
		obs.Info("store.backend", obs.Fields{"type": "in-memory", "entries": c.MemoryEntries})
		return store.NewMemoryStore(c.MemoryEntries, nil)
	}
	obs.Info("store.backend", obs.Fields{"type": "redis", "addr": c.RedisAddr, "db": c.RedisDB})
	return store.NewRedisStore(c.RedisAddr, c.RedisPassword, c.RedisDB, c.RedisPrefix)
}
