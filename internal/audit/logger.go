// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package audit records model fallback decisions, content optimizations and
// applied repository changes as JSON lines in a rotating file.
package audit

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Action names.
const (
	ActionModelTransition = "model_transition"
	ActionModelSwitch     = "model_switch"
	ActionEmergencyReset  = "emergency_reset"
	ActionOptimization    = "content_optimization"
	ActionChangesApplied  = "changes_applied"
)

// Entry is one JSON line of the audit log.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	Action    string         `json:"action"`
	Provider  string         `json:"provider,omitempty"`
	Model     string         `json:"model,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Outcome   string         `json:"outcome,omitempty"`
}

// Config holds configuration for the audit logger.
type Config struct {
	Enabled bool
	Path    string

	// MaxSizeMB is the size that triggers rotation. Default: 20 MB.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept. Default: 5.
	MaxBackups int
}

// Logger writes audit entries. A nil or disabled Logger drops every entry.
type Logger struct {
	mu        *sync.Mutex
	encoder   *json.Encoder
	file      *lumberjack.Logger
	enabled   bool
	path      string
	sessionID string
}

// NewLogger opens the audit log described by cfg.
func NewLogger(cfg Config) (*Logger, error) {
	if !cfg.Enabled {
		return &Logger{}, nil
	}

	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 20
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	file := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	return &Logger{
		mu:      &sync.Mutex{},
		encoder: json.NewEncoder(file),
		file:    file,
		enabled: true,
		path:    cfg.Path,
	}, nil
}

// WithSession returns a logger that stamps entries with sessionID.
// The returned logger shares the underlying file.
func (l *Logger) WithSession(sessionID string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{
		mu:        l.mu,
		encoder:   l.encoder,
		file:      l.file,
		enabled:   l.enabled,
		path:      l.path,
		sessionID: sessionID,
	}
}

// Enabled reports whether entries are written.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// Log writes entry. It is safe for concurrent use.
func (l *Logger) Log(entry Entry) {
	if !l.Enabled() {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.SessionID == "" {
		entry.SessionID = l.sessionID
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.encoder.Encode(entry); err != nil {
		log.WithFields(log.Fields{
			"error":  err.Error(),
			"action": entry.Action,
			"model":  entry.Model,
		}).Error("failed to write audit entry")
	}
}

// LogTransition records a model status change.
func (l *Logger) LogTransition(provider, model, from, to, reason string) {
	l.Log(Entry{
		Action:   ActionModelTransition,
		Provider: provider,
		Model:    model,
		Details: map[string]any{
			"from":   from,
			"to":     to,
			"reason": reason,
		},
		Outcome: to,
	})
}

// LogSwitch records a change of the current model.
func (l *Logger) LogSwitch(from, to string) {
	l.Log(Entry{
		Action:  ActionModelSwitch,
		Model:   to,
		Details: map[string]any{"previous_model": from},
		Outcome: "switched",
	})
}

// LogEmergencyReset records that failed models were reset because none was usable.
func (l *Logger) LogEmergencyReset(models []string) {
	l.Log(Entry{
		Action:  ActionEmergencyReset,
		Details: map[string]any{"models": models},
		Outcome: "reset",
	})
}

// LogOptimization records the result of a content optimization run.
func (l *Logger) LogOptimization(model string, originalTokens, optimizedTokens, files int, outcome string) {
	l.Log(Entry{
		Action: ActionOptimization,
		Model:  model,
		Details: map[string]any{
			"original_tokens":  originalTokens,
			"optimized_tokens": optimizedTokens,
			"tokens_saved":     originalTokens - optimizedTokens,
			"files":            files,
		},
		Outcome: outcome,
	})
}

// LogChangesApplied records the repository commands that were applied.
func (l *Logger) LogChangesApplied(files []string, dryRun bool) {
	outcome := "applied"
	if dryRun {
		outcome = "dry_run"
	}
	l.Log(Entry{
		Action:  ActionChangesApplied,
		Details: map[string]any{"files": files},
		Outcome: outcome,
	})
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if !l.Enabled() || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
