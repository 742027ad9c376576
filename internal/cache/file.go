package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/claudecoder/internal/util"
)

type fileEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	Record    SummaryRecord `json:"record"`
}

// File keeps one JSON file per key in a directory, fronted by an in-memory map.
type File struct {
	dir string
	ttl time.Duration
	now func() time.Time

	mu  sync.RWMutex
	mem map[string]fileEntry
}

// NewFile creates dir if needed. A leading ~ is expanded to the home directory.
func NewFile(dir string, ttl time.Duration) (*File, error) {
	if len(dir) > 0 && dir[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, dir[1:])
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &File{dir: dir, ttl: ttl, now: time.Now, mem: make(map[string]fileEntry)}, nil
}

// Dir returns the cache directory.
func (c *File) Dir() string {
	return c.dir
}

func (c *File) Get(_ context.Context, key string) (SummaryRecord, bool) {
	c.mu.RLock()
	e, ok := c.mem[key]
	c.mu.RUnlock()

	if !ok {
		var err error
		e, ok, err = c.load(key)
		if err != nil {
			log.Debugf("summary cache: %v", err)
			return SummaryRecord{}, false
		}
		if !ok {
			return SummaryRecord{}, false
		}
	}
	if c.expired(e) {
		return SummaryRecord{}, false
	}

	c.mu.Lock()
	c.mem[key] = e
	c.mu.Unlock()
	return e.Record, true
}

func (c *File) Set(_ context.Context, key string, rec SummaryRecord) error {
	e := fileEntry{Timestamp: c.now(), Record: rec}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[key] = e
	return util.SecureWriteJSON(c.path(key), e, &util.SecureWriteOptions{Permissions: 0o600})
}

// Prune removes expired entries from disk and memory.
func (c *File) Prune() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.mem {
		if c.expired(e) {
			delete(c.mem, k)
		}
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, de := range entries {
		if filepath.Ext(de.Name()) != ".json" {
			continue
		}
		key := de.Name()[:len(de.Name())-len(".json")]
		e, ok, err := c.load(key)
		if err != nil || (ok && c.expired(e)) {
			if rmErr := os.Remove(c.path(key)); rmErr != nil && !os.IsNotExist(rmErr) {
				return fmt.Errorf("failed to remove cache file %s: %w", de.Name(), rmErr)
			}
		}
	}
	return nil
}

func (c *File) expired(e fileEntry) bool {
	return c.now().Sub(e.Timestamp) > c.ttl
}

func (c *File) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func (c *File) load(key string) (fileEntry, bool, error) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fileEntry{}, false, nil
		}
		return fileEntry{}, false, fmt.Errorf("failed to read cache file: %w", err)
	}

	var e fileEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return fileEntry{}, false, fmt.Errorf("failed to parse cache file: %w", err)
	}
	return e, true, nil
}
