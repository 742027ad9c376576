package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/claudecoder/internal/util"
)

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// DefaultDir is where summaries are kept when no directory is configured.
func DefaultDir() string {
	return filepath.Join(os.TempDir(), "claudecoder-summaries")
}

// Open builds the Store for backend. dir is used by the file and sqlite
// backends; empty selects DefaultDir and a leading "~" is the home directory.
func Open(ctx context.Context, backend, dir string, ttl time.Duration) (Store, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, dir[1:])
	}

	var (
		store Store
		err   error
	)
	switch backend {
	case "", BackendNone:
		return Nop{}, nil
	case BackendMemory:
		return NewMemory(ttl), nil
	case BackendFile:
		store, err = NewFile(dir, ttl)
	case BackendSQLite:
		store, err = OpenSQLite(ctx, filepath.Join(dir, "summaries.db"), ttl)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
	if err != nil {
		return nil, err
	}

	// Summaries quote repository content.
	if err := util.HardenPermissions(dir); err != nil {
		log.Warnf("Failed to restrict cache permissions: %v", err)
	}
	return store, nil
}
