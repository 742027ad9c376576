// Package cache stores generated file summaries keyed by a hash of the file
// and the request that produced them. A miss is never an error.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultTTL is how long a summary stays valid.
const DefaultTTL = 24 * time.Hour

// SummaryRecord is a cached summary of one file.
type SummaryRecord struct {
	FilePath       string `json:"filePath"`
	Summary        string `json:"summary"`
	OriginalTokens int    `json:"originalTokens"`
	SummaryTokens  int    `json:"summaryTokens"`
	Priority       int    `json:"priority"`
}

// Store gets and sets summaries by key.
type Store interface {
	Get(ctx context.Context, key string) (SummaryRecord, bool)
	Set(ctx context.Context, key string, rec SummaryRecord) error
}

// Key hashes the inputs a summary depends on.
func Key(filePath, content, prompt string) string {
	sum := md5.Sum([]byte(filePath + content + prompt))
	return hex.EncodeToString(sum[:])
}

// Nop is a Store that never holds anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (SummaryRecord, bool) { return SummaryRecord{}, false }

func (Nop) Set(context.Context, string, SummaryRecord) error { return nil }

type memEntry struct {
	rec     SummaryRecord
	savedAt time.Time
}

// Memory is an in-process Store.
type Memory struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time
	m   map[string]memEntry
}

// NewMemory returns an empty Memory store. ttl <= 0 selects DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{ttl: ttl, now: time.Now, m: make(map[string]memEntry)}
}

func (c *Memory) Get(_ context.Context, key string) (SummaryRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.m[key]
	if !ok || c.now().Sub(e.savedAt) > c.ttl {
		return SummaryRecord{}, false
	}
	return e.rec, true
}

func (c *Memory) Set(_ context.Context, key string, rec SummaryRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = memEntry{rec: rec, savedAt: c.now()}
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
