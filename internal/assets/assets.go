// Package assets handles game file loading and caching.
package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/gbhdata/pkg/formats"
)

// Manager loads game files from a data directory.
type Manager struct {
	root  string
	cache *Cache
	log   *zap.Logger
	opts  []formats.Option
}

// NewManager creates a manager rooted at dir. Decoder options are applied to
// every style and map it parses.
func NewManager(dir string, log *zap.Logger, opts ...formats.Option) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		root:  dir,
		cache: NewCache(),
		log:   log,
		opts:  append([]formats.Option{formats.WithLogger(log)}, opts...),
	}
}

// Root returns the data directory.
func (m *Manager) Root() string {
	return m.root
}

// Load reads a file relative to the data directory.
func (m *Manager) Load(name string) ([]byte, error) {
	if data, ok := m.cache.Get(name); ok {
		return data, nil
	}

	data, err := os.ReadFile(filepath.Join(m.root, name))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}

	m.cache.Set(name, data)
	m.log.Debug("loaded file", zap.String("name", name), zap.Int("bytes", len(data)))
	return data, nil
}

// LoadStyle loads and parses a style file.
func (m *Manager) LoadStyle(name string) (*formats.Style, error) {
	data, err := m.Load(name)
	if err != nil {
		return nil, err
	}
	style, err := formats.ParseSTY(data, m.opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return style, nil
}

// LoadMap loads and parses a map file.
func (m *Manager) LoadMap(name string) (*formats.Map, error) {
	data, err := m.Load(name)
	if err != nil {
		return nil, err
	}
	gmp, err := formats.ParseGMP(data, m.opts...)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return gmp, nil
}

// Level is a decoded map together with its style.
type Level struct {
	Map   *formats.Map
	Style *formats.Style
}

// LoadLevel decodes a map and its style concurrently. The first failure
// cancels ctx for the other decode.
func (m *Manager) LoadLevel(ctx context.Context, mapName, styleName string) (*Level, error) {
	g, ctx := errgroup.WithContext(ctx)
	level := &Level{}

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		gmp, err := m.LoadMap(mapName)
		if err != nil {
			return err
		}
		level.Map = gmp
		return nil
	})

	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		style, err := m.LoadStyle(styleName)
		if err != nil {
			return err
		}
		level.Style = style
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	m.log.Info("level loaded",
		zap.String("map", mapName),
		zap.String("style", styleName),
		zap.Int("tiles", len(level.Style.Tiles)))
	return level, nil
}

// Close drops cached file data.
func (m *Manager) Close() {
	m.cache.Clear()
}

// Cache is a simple in-memory cache for loaded files.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
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

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
