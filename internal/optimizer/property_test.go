package optimizer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var (
	propertyDirs = []string{"src/", "test/", "docs/", "coverage/", ""}
	propertyExts = []string{".js", ".md", ".csv", ".html", ".json"}
)

func propertySnapshot(sizes []int) map[string]string {
	snapshot := make(map[string]string, len(sizes))
	for i, size := range sizes {
		p := fmt.Sprintf("%sfile%d%s", propertyDirs[i%len(propertyDirs)], i, propertyExts[(i*3)%len(propertyExts)])
		snapshot[p] = strings.Repeat("word\n", size)
	}
	return snapshot
}

func TestProperty_SelectionStaysWithinBudget(t *testing.T) {
	const model = "gpt-3.5-turbo"

	properties := gopter.NewProperties(nil)
	properties.Property("optimized snapshots fit the budget and only contain known files", prop.ForAll(
		func(sizes []int) bool {
			snapshot := propertySnapshot(sizes)
			res := New(Options{}).Optimize(context.Background(), snapshot, "update docs", model)

			for p := range res.Files {
				if _, ok := snapshot[p]; !ok {
					return false
				}
			}
			if !res.Optimized {
				return res.OriginalTokens <= res.Budget && len(res.Files) == len(snapshot)
			}
			if totalTokens(model, res.Files) > res.Budget {
				return false
			}
			if len(snapshot) > 1 {
				return len(res.Files) < len(snapshot)
			}
			for p, content := range res.Files {
				if content == snapshot[p] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 2000)),
	))

	properties.TestingRun(t)
}
