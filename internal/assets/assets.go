// Package assets loads textures and glTF models from a set of search roots.
package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/helix/internal/engine/gpu"
	"github.com/Faultbox/helix/internal/engine/texture"
	"github.com/Faultbox/helix/internal/logger"
)

// ErrNotFound is returned when no root contains the requested file.
var ErrNotFound = errors.New("asset not found")

// Manager resolves asset paths against its roots and caches file contents and
// uploaded textures. Textures belong to the manager and are released by Close.
type Manager struct {
	dev      gpu.Device
	roots    []string
	cache    *Cache
	textures map[string]gpu.Texture
	mu       sync.RWMutex
	log      *zap.Logger
}

// NewManager creates a manager uploading to dev.
func NewManager(dev gpu.Device) *Manager {
	return &Manager{
		dev:      dev,
		cache:    NewCache(),
		textures: make(map[string]gpu.Texture),
		log:      logger.Named("assets"),
	}
}

// AddRoot adds a search directory. Roots are searched in reverse order (last added =
// highest priority).
func (m *Manager) AddRoot(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("adding root %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("adding root %s: not a directory", dir)
	}

	m.mu.Lock()
	m.roots = append(m.roots, dir)
	m.mu.Unlock()
	return nil
}

// Resolve returns the file system path of an asset. Absolute paths and paths
// relative to the working directory are used as they are when no root has them.
func (m *Manager) Resolve(path string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !filepath.IsAbs(path) {
		for i := len(m.roots) - 1; i >= 0; i-- {
			full := filepath.Join(m.roots[i], path)
			if _, err := os.Stat(full); err == nil {
				return full, nil
			}
		}
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrNotFound)
}

// Load returns the contents of an asset.
func (m *Manager) Load(path string) ([]byte, error) {
	full, err := m.Resolve(path)
	if err != nil {
		return nil, err
	}
	if data, ok := m.cache.Get(full); ok {
		return data, nil
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", full, err)
	}
	m.cache.Set(full, data)
	return data, nil
}

// Texture loads and uploads an image file, or returns the texture uploaded earlier.
func (m *Manager) Texture(path string) (gpu.Texture, error) {
	full, err := m.Resolve(path)
	if err != nil {
		return nil, err
	}
	if tex, ok := m.texture(full); ok {
		return tex, nil
	}
	data, err := m.Load(full)
	if err != nil {
		return nil, err
	}
	return m.uploadTexture(full, data)
}

func (m *Manager) texture(key string) (gpu.Texture, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tex, ok := m.textures[key]
	return tex, ok
}

// uploadTexture decodes data (named by key) and caches the texture under key.
func (m *Manager) uploadTexture(key string, data []byte) (gpu.Texture, error) {
	img, err := texture.Decode(key, data)
	if err != nil {
		return nil, err
	}
	tex, err := texture.Upload(m.dev, img, texture.Options{Linear: true, Repeat: true})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}

	m.mu.Lock()
	m.textures[key] = tex
	m.mu.Unlock()

	m.log.Debug("texture loaded",
		zap.String("key", key),
		zap.Int("width", tex.Width()),
		zap.Int("height", tex.Height()))
	return tex, nil
}

// Close releases all textures and clears the cache.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tex := range m.textures {
		tex.Release()
	}
	m.textures = make(map[string]gpu.Texture)
	m.cache.Clear()
}

// Cache is an in-memory cache of file contents.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	hits   int
	misses int
}

func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item and counts the lookup.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear drops all items and resets the statistics.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns the lookup statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
