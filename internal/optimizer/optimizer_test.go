package optimizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/claudecoder/internal/cache"
	"github.com/traylinx/claudecoder/internal/tokenizer"
)

type fakeInvoker struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeInvoker) Invoke(_ context.Context, prompt, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeInvoker) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func totalTokens(model string, files map[string]string) int {
	te := tokenizer.NewTokenEstimator(model, tokenizer.MethodSimple)
	n := 0
	for _, c := range files {
		n += te.EstimateTokens(c)
	}
	return n
}

func TestProcessWithTokenization_EmptySnapshot(t *testing.T) {
	inv := &fakeInvoker{reply: `{"critical":[]}`}
	o := New(Options{}, WithClassifier(NewAIClassifier(inv)))

	got := o.ProcessWithTokenization(context.Background(), map[string]string{}, "anything", "")
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Zero(t, inv.calls())
}

func TestProcessWithTokenization_FitsReturnsSnapshotUnchanged(t *testing.T) {
	inv := &fakeInvoker{}
	o := New(Options{}, WithClassifier(NewAIClassifier(inv)))

	snapshot := map[string]string{
		"index.js":  "console.log('hi')",
		"README.md": "# Title",
		"logo.png":  "\x89PNG\x00\x00binary",
	}
	res := o.Optimize(context.Background(), snapshot, "update readme", "moonshotai/kimi-k2:free")

	assert.False(t, res.Optimized)
	assert.Equal(t, snapshot, res.Files)
	assert.Contains(t, res.Files, "logo.png")
	assert.Zero(t, inv.calls())
}

func hundredFiles() map[string]string {
	snapshot := make(map[string]string, 100)
	for i := 0; i < 100; i++ {
		snapshot[fmt.Sprintf("src/module%02d.js", i)] = strings.Repeat("a", 2500)
	}
	return snapshot
}

func TestProcessWithTokenization_AIClassification(t *testing.T) {
	var skip []string
	for i := 5; i < 100; i++ {
		skip = append(skip, fmt.Sprintf("%q", fmt.Sprintf("src/module%02d.js", i)))
	}
	inv := &fakeInvoker{reply: fmt.Sprintf(`{
		"critical": ["src/module00.js", "module01.js"],
		"important": ["src/module02.js", "src/module03.js", "src/module04.js"],
		"skip": [%s],
		"reasoning": "modules 0-4 implement the feature"
	}`, strings.Join(skip, ","))}
	o := New(Options{}, WithClassifier(NewAIClassifier(inv)))

	res := o.Optimize(context.Background(), hundredFiles(), "add a feature", "moonshotai/kimi-k2:free")

	assert.True(t, res.Optimized)
	assert.Equal(t, ClassifierAI, res.Classifier)
	assert.Equal(t, "modules 0-4 implement the feature", res.Reasoning)
	assert.Equal(t, 26214, res.Budget)
	assert.Equal(t, 62500, res.OriginalTokens)

	assert.Less(t, len(res.Files), 100)
	assert.Len(t, res.Files, 41)
	assert.LessOrEqual(t, totalTokens(res.Model, res.Files), 26214)
	for i := 0; i < 5; i++ {
		assert.Contains(t, res.Files, fmt.Sprintf("src/module%02d.js", i))
	}
	assert.Len(t, res.Omitted, 59)
	assert.Equal(t, 1, inv.calls())
}

func TestProcessWithTokenization_FallsBackToHeuristics(t *testing.T) {
	tests := []struct {
		name string
		inv  *fakeInvoker
	}{
		{"malformed json", &fakeInvoker{reply: "Sure! Here are the files: critical, important"}},
		{"wrong shape", &fakeInvoker{reply: `{"files": ["a.js"]}`}},
		{"provider error", &fakeInvoker{err: errors.New("rate limit exceeded")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(Options{}, WithClassifier(NewAIClassifier(tt.inv)))
			res := o.Optimize(context.Background(), hundredFiles(), "add a feature", "")

			assert.Equal(t, ClassifierHeuristic, res.Classifier)
			assert.NotEmpty(t, res.Files)
			assert.Less(t, len(res.Files), 100)
			assert.LessOrEqual(t, totalTokens(res.Model, res.Files), res.Budget)
		})
	}
}

func TestProcessWithTokenization_NoClassifier(t *testing.T) {
	o := New(Options{})
	res := o.Optimize(context.Background(), hundredFiles(), "add a feature", "unknown/model")

	assert.Equal(t, ClassifierHeuristic, res.Classifier)
	assert.Equal(t, 25600, res.Budget)
	assert.LessOrEqual(t, totalTokens(res.Model, res.Files), 25600)
}

func bigJS() string {
	var b strings.Builder
	b.WriteString("import fs from 'fs';\n")
	b.WriteString("function main() {\n")
	b.WriteString(strings.Repeat("const x = 1;\n", 9300))
	b.WriteString("}\n")
	b.WriteString("export default main;\n")
	return b.String()
}

func summarySnapshot() map[string]string {
	return map[string]string{
		"src/app.js":         bigJS(),
		"src/small.js":       "function small() { return 1 }",
		"README.md":          "# Project\n\nUsage notes.",
		"coverage/lcov.html": strings.Repeat("x", 120000),
	}
}

const summaryReply = "```json\n" + `{"critical":["src/small.js"],"important":["src/app.js"],"skip":["coverage/lcov.html"],"reasoning":"app"}` + "\n```"

func TestProcessWithTokenization_SummarizesLargeImportantFile(t *testing.T) {
	o := New(Options{}, WithClassifier(NewAIClassifier(&fakeInvoker{reply: summaryReply})))

	res := o.Optimize(context.Background(), summarySnapshot(), "change main", "")

	require.Len(t, res.Files, 3)
	assert.Equal(t, []string{"src/app.js"}, res.Summarized)
	assert.Equal(t, []string{"coverage/lcov.html"}, res.Omitted)
	assert.True(t, strings.HasPrefix(res.Files["src/app.js"], "# src/app.js ("))
	assert.Contains(t, res.Files["src/app.js"], "## Imports:\nimport fs from 'fs';")
	assert.Equal(t, "function small() { return 1 }", res.Files["src/small.js"])
	assert.Contains(t, res.Files, "README.md")
	assert.LessOrEqual(t, totalTokens(res.Model, res.Files), res.Budget)
}

func TestProcessWithTokenization_UsesSummaryCache(t *testing.T) {
	store := cache.NewMemory(0)
	snapshot := summarySnapshot()
	prompt := "change main"

	key := cache.Key("src/app.js", snapshot["src/app.js"], prompt)
	require.NoError(t, store.Set(context.Background(), key, cache.SummaryRecord{FilePath: "src/app.js", Summary: "CACHED SUMMARY"}))

	o := New(Options{}, WithCache(store), WithClassifier(NewAIClassifier(&fakeInvoker{reply: summaryReply})))
	res := o.Optimize(context.Background(), snapshot, prompt, "")

	assert.Equal(t, "CACHED SUMMARY", res.Files["src/app.js"])
	assert.Equal(t, 1, store.Len())
}

func TestProcessWithTokenization_WritesSummaryCache(t *testing.T) {
	store := cache.NewMemory(0)
	o := New(Options{}, WithCache(store), WithClassifier(NewAIClassifier(&fakeInvoker{reply: summaryReply})))

	first := o.ProcessWithTokenization(context.Background(), summarySnapshot(), "change main", "")
	require.Equal(t, 1, store.Len())

	second := o.ProcessWithTokenization(context.Background(), summarySnapshot(), "change main", "")
	assert.Equal(t, first, second)
}

func TestProcessWithTokenization_NothingFitsUsesSummary(t *testing.T) {
	lines := strings.Repeat("line of data\n", 10000)
	snapshot := map[string]string{
		"tests/fixtures/a.csv": lines,
		"tests/fixtures/b.csv": lines,
	}
	o := New(Options{})
	res := o.Optimize(context.Background(), snapshot, "fix fixtures", "")

	require.Len(t, res.Files, 1)
	assert.Len(t, res.Summarized, 1)
	for _, content := range res.Files {
		assert.Contains(t, content, "...[truncated]")
	}
	assert.LessOrEqual(t, totalTokens(res.Model, res.Files), res.Budget)
}

func TestProcessWithTokenization_StrictSubsetWhenEverythingSummarized(t *testing.T) {
	snapshot := map[string]string{
		"src/app.js":   bigJS(),
		"src/other.js": bigJS(),
	}
	reply := `{"critical":[],"important":["src/app.js","src/other.js"],"skip":[]}`
	o := New(Options{}, WithClassifier(NewAIClassifier(&fakeInvoker{reply: reply})))

	res := o.Optimize(context.Background(), snapshot, "change", "")

	assert.Len(t, res.Files, 1)
	assert.LessOrEqual(t, totalTokens(res.Model, res.Files), res.Budget)
}

func TestProcessWithTokenization_DropsBinaryWhenOptimizing(t *testing.T) {
	snapshot := hundredFiles()
	snapshot["assets/logo.png"] = "\x89PNG\x00\x00"

	o := New(Options{})
	res := o.Optimize(context.Background(), snapshot, "x", "")

	assert.NotContains(t, res.Files, "assets/logo.png")
	assert.NotContains(t, res.Omitted, "assets/logo.png")
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{SummaryRatio: 3}.withDefaults()
	assert.Equal(t, Options{
		ListingLimit:     50,
		SummaryThreshold: 2000,
		SummaryRatio:     0.3,
		BatchSize:        3,
		ClassifyTimeout:  DefaultClassifyTimeout,
		EstimatorMethod:  tokenizer.MethodSimple,
	}, o)
}
