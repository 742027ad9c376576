// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package util holds small filesystem helpers shared by the cache and the
// repository writer.
package util

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// SecureWriteOptions configures SecureWrite.
type SecureWriteOptions struct {
	// CreateBackup copies an existing target to <path>.bak before replacing it.
	CreateBackup bool
	// Permissions of a newly created file. An existing file keeps its mode.
	// Default: 0644.
	Permissions os.FileMode
}

// SecureWrite replaces path with data through a uniquely named temp file that is
// synced and renamed over the target, so readers never see a partial file.
// Missing parent directories are created.
func SecureWrite(path string, data []byte, opts *SecureWriteOptions) error {
	if opts == nil {
		opts = &SecureWriteOptions{}
	}
	perm := opts.Permissions
	if perm == 0 {
		perm = 0o644
	}
	existing, statErr := os.Stat(path)
	if statErr == nil {
		perm = existing.Mode().Perm()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tempPath := fmt.Sprintf("%s.tmp.%s", path, uuid.New().String())
	tempFile, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file %s: %w", tempPath, err)
	}

	cleanupTemp := true
	defer func() {
		if cleanupTemp {
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if opts.CreateBackup && statErr == nil {
		backupPath := path + ".bak"
		if err := copyFile(path, backupPath, perm); err != nil {
			log.Warnf("failed to create backup %s: %v", backupPath, err)
		}
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to target: %w", err)
	}
	cleanupTemp = false

	if err := syncDir(dir); err != nil {
		log.Debugf("failed to sync directory %s: %v", dir, err)
	}
	return nil
}

// SecureWriteJSON writes v as indented JSON with SecureWrite.
func SecureWriteJSON(path string, v any, opts *SecureWriteOptions) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return SecureWrite(path, append(data, '\n'), opts)
}

func copyFile(src, dst string, perm os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return fmt.Errorf("failed to copy file content: %w", err)
	}
	return dstFile.Sync()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
