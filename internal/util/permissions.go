// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package util

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Modes required under a private directory such as the summary cache.
const (
	PrivateDirMode  os.FileMode = 0o700
	PrivateFileMode os.FileMode = 0o600
)

// AuditResult is the permission check of a single file or directory.
type AuditResult struct {
	Path         string
	CurrentMode  os.FileMode
	RequiredMode os.FileMode
	WasCorrected bool
	Error        error
}

// NeedsCorrection reports whether the entry's mode differs from the required one.
func (r AuditResult) NeedsCorrection() bool {
	return r.Error == nil && r.CurrentMode != r.RequiredMode
}

// AuditPermissions walks root without modifying anything. Directories must be
// 0700 and cache data files (.db, .json) 0600; other files are not reported.
func AuditPermissions(root string) ([]AuditResult, error) {
	var results []AuditResult
	err := walkPrivate(root, func(path string, current, required os.FileMode, err error) {
		if err != nil {
			results = append(results, AuditResult{Path: path, Error: err})
			return
		}
		if current != required {
			log.Debugf("permission audit: %s has mode %04o, requires %04o", path, current, required)
		}
		results = append(results, AuditResult{Path: path, CurrentMode: current, RequiredMode: required})
	})
	return results, err
}

// HardenPermissions corrects the modes AuditPermissions would report.
// A missing root is not an error. Individual chmod failures are logged and
// counted; only a failed walk is returned.
func HardenPermissions(root string) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		log.Debugf("permission hardening: %s does not exist", root)
		return nil
	}

	corrected, failed := 0, 0
	err := walkPrivate(root, func(path string, current, required os.FileMode, err error) {
		if err != nil {
			failed++
			return
		}
		if current == required {
			return
		}
		if chmodErr := os.Chmod(path, required); chmodErr != nil {
			log.Warnf("permission hardening: failed to chmod %s from %04o to %04o: %v", path, current, required, chmodErr)
			failed++
			return
		}
		log.Debugf("permission hardening: corrected %s from %04o to %04o", path, current, required)
		corrected++
	})
	if err != nil {
		return err
	}

	if corrected > 0 {
		log.Infof("permission hardening: corrected %d permissions under %s", corrected, root)
	}
	if failed > 0 {
		log.Warnf("permission hardening: %d errors under %s", failed, root)
	}
	return nil
}

func walkPrivate(root string, visit func(path string, current, required os.FileMode, err error)) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warnf("permission audit: failed to access %s: %v", path, err)
			visit(path, 0, 0, err)
			return nil
		}

		var required os.FileMode
		switch {
		case d.IsDir():
			required = PrivateDirMode
		case isSensitiveFile(path):
			required = PrivateFileMode
		default:
			return nil
		}

		info, err := d.Info()
		if err != nil {
			visit(path, 0, 0, err)
			return nil
		}
		visit(path, info.Mode().Perm(), required, nil)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return nil
}

// isSensitiveFile reports whether path holds cache data.
func isSensitiveFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".db" || ext == ".json"
}
