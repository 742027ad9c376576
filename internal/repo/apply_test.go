package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/claudecoder/internal/audit"
	"github.com/traylinx/claudecoder/internal/processor"
)

func TestApplier_Apply(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"src/a.js": "old"})

	auditPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := audit.NewLogger(audit.Config{Enabled: true, Path: auditPath})
	require.NoError(t, err)

	results := NewApplier(root, false, logger).Apply([]processor.Change{
		{FilePath: "src/a.js", Content: "new"},
		{FilePath: "src/deep/b.js", Content: "created"},
		{FilePath: "../escape.js", Content: "nope"},
		{FilePath: "/etc/passwd", Content: "nope"},
	})
	require.NoError(t, logger.Close())

	require.Len(t, results, 4)
	assert.Equal(t, Result{FilePath: "src/a.js", Status: StatusUpdated, ContentLength: 3}, results[0])
	assert.Equal(t, StatusUpdated, results[1].Status)
	assert.Equal(t, StatusError, results[2].Status)
	assert.Contains(t, results[2].Error, "outside the repository")
	assert.Equal(t, StatusError, results[3].Status)

	data, err := os.ReadFile(filepath.Join(root, "src", "a.js"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	data, err = os.ReadFile(filepath.Join(root, "src", "deep", "b.js"))
	require.NoError(t, err)
	assert.Equal(t, "created", string(data))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(root), "escape.js"))

	entries, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(entries), "\n"))
	assert.Contains(t, string(entries), "src/deep/b.js")
}

func TestApplier_DryRun(t *testing.T) {
	root := t.TempDir()
	results := NewApplier(root, true, nil).Apply([]processor.Change{{FilePath: "a.js", Content: "hello"}})

	assert.Equal(t, []Result{{FilePath: "a.js", Status: StatusWouldUpdate, ContentLength: 5}}, results)
	assert.NoFileExists(t, filepath.Join(root, "a.js"))
}
