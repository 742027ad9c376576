package repo

import (
	"fmt"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/claudecoder/internal/audit"
	"github.com/traylinx/claudecoder/internal/processor"
	"github.com/traylinx/claudecoder/internal/util"
)

// Status is the outcome of applying one change.
type Status string

const (
	StatusUpdated     Status = "updated"
	StatusWouldUpdate Status = "would-update"
	StatusError       Status = "error"
)

// Result reports what happened to one change.
type Result struct {
	FilePath      string `json:"filePath"`
	Status        Status `json:"status"`
	ContentLength int    `json:"contentLength,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Applier writes changes under a repository root.
type Applier struct {
	root   string
	dryRun bool
	audit  *audit.Logger
}

// NewApplier returns an Applier for root. With dryRun set nothing is written.
func NewApplier(root string, dryRun bool, auditLogger *audit.Logger) *Applier {
	return &Applier{root: root, dryRun: dryRun, audit: auditLogger}
}

// Apply writes every change atomically. A change whose path leaves the root
// is refused. Failures are reported per change and do not stop the others.
func (a *Applier) Apply(changes []processor.Change) []Result {
	results := make([]Result, 0, len(changes))
	var written []string

	for _, c := range changes {
		res := Result{FilePath: c.FilePath, ContentLength: len(c.Content)}

		full, err := a.resolve(c.FilePath)
		switch {
		case err != nil:
			res.Status = StatusError
			res.Error = err.Error()
			log.Errorf("Refusing to write %s: %v", c.FilePath, err)
		case a.dryRun:
			res.Status = StatusWouldUpdate
			log.Infof("Would update: %s (%d characters)", c.FilePath, len(c.Content))
			written = append(written, c.FilePath)
		default:
			if err := util.SecureWrite(full, []byte(c.Content), nil); err != nil {
				res.Status = StatusError
				res.Error = err.Error()
				log.Errorf("Failed to write %s: %v", c.FilePath, err)
				break
			}
			res.Status = StatusUpdated
			log.Infof("Updated: %s", c.FilePath)
			written = append(written, c.FilePath)
		}
		results = append(results, res)
	}

	a.audit.LogChangesApplied(written, a.dryRun)
	return results
}

func (a *Applier) resolve(rel string) (string, error) {
	native := filepath.FromSlash(rel)
	if !filepath.IsLocal(native) {
		return "", fmt.Errorf("path %q is outside the repository", rel)
	}
	return filepath.Join(a.root, native), nil
}
