package shader

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/logger"
)

type cacheEntry struct {
	program gpu.Program
	err     error
}

// Cache builds each program variant once. Failures are cached as well, so a broken
// variant is reported a single time until Forget is called.
type Cache struct {
	dev     gpu.Device
	lib     *Library
	log     *zap.Logger
	entries map[string]*cacheEntry
}

// NewCache creates a cache building programs on dev from lib.
func NewCache(dev gpu.Device, lib *Library) *Cache {
	return &Cache{
		dev:     dev,
		lib:     lib,
		log:     logger.Named("shader"),
		entries: map[string]*cacheEntry{},
	}
}

// Library returns the source library.
func (c *Cache) Library() *Library { return c.lib }

// Cached reports whether the variant was already built or already failed.
func (c *Cache) Cached(name string, defines map[string]string) bool {
	_, ok := c.entries[Key(name, defines)]
	return ok
}

// Program returns the program variant, building it on first use.
func (c *Cache) Program(name string, defines map[string]string) (gpu.Program, error) {
	key := Key(name, defines)
	if e, ok := c.entries[key]; ok {
		return e.program, e.err
	}

	e := &cacheEntry{}
	c.entries[key] = e
	src, err := c.lib.Source(name, defines)
	if err != nil {
		e.err = fmt.Errorf("program %s: %w", key, err)
		return nil, e.err
	}
	p, err := c.dev.CreateProgram(src)
	if err != nil {
		e.err = fmt.Errorf("program %s: %w", key, err)
		c.log.Warn("program build failed", zap.String("program", key), zap.Error(err))
		return nil, e.err
	}
	c.log.Debug("program built", zap.String("program", key))
	e.program = p
	return p, nil
}

// Forget drops a variant so the next request rebuilds it.
func (c *Cache) Forget(name string, defines map[string]string) {
	key := Key(name, defines)
	if e, ok := c.entries[key]; ok {
		if e.program != nil {
			e.program.Release()
		}
		delete(c.entries, key)
	}
}

// Len returns the number of cached variants, failed ones included.
func (c *Cache) Len() int { return len(c.entries) }

// Release frees every program.
func (c *Cache) Release() {
	for key, e := range c.entries {
		if e.program != nil {
			e.program.Release()
		}
		delete(c.entries, key)
	}
}
