package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectFileType(t *testing.T) {
	tests := []struct {
		path string
		want FileType
	}{
		{"src/app.js", TypeJavaScript},
		{"src/app.TS", TypeJavaScript},
		{"components/Button.tsx", TypeJavaScript},
		{"lib/tool.py", TypePython},
		{"README.md", TypeDocumentation},
		{"notes.txt", TypeDocumentation},
		{"package.json", TypeConfiguration},
		{".github/workflows/ci.yml", TypeConfiguration},
		{"config.yaml", TypeConfiguration},
		{"public/index.html", TypeMarkup},
		{"main.go", TypeUnknown},
		{"Makefile", TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFileType(tt.path))
		})
	}
}

func TestCalculateFilePriority(t *testing.T) {
	tests := []struct {
		name string
		path string
		want int
	}{
		{"coverage report", "coverage/lcov-report/app.js.html", PriorityArtifact},
		{"test results", "test-results/output.json", PriorityArtifact},
		{"playwright report", "playwright-report/data.json", PriorityArtifact},
		{"test directory", "test/helpers.js", PriorityTest},
		{"jest test", "src/app.test.js", PriorityTest},
		{"spec file", "src/app.spec.ts", PriorityTest},
		{"index inside test dir is still a test", "test/index.js", PriorityTest},
		{"html report", "reports/summary.html", PriorityArtifact},
		{"package manifest", "package.json", PriorityCore},
		{"main entry", "src/main.py", PriorityCore},
		{"index js", "src/index.js", PriorityCore},
		{"index ts", "index.ts", PriorityCore},
		{"index html", "public/index.html", PriorityCore},
		{"index html under report dir", "report/index.html", PriorityDefault},
		{"javascript source", "src/utils.js", PriorityCode},
		{"python source", "app/models.py", PriorityCode},
		{"typescript source", "src/api.ts", PriorityCode},
		{"markdown", "docs/guide.md", PriorityDocs},
		{"readme without extension", "README", PriorityDocs},
		{"everything else", "Dockerfile", PriorityDefault},
		{"case insensitive", "SRC/INDEX.JS", PriorityCore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateFilePriority(tt.path))
		})
	}
}

func TestIsBinary(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"plain text", "hello world", false},
		{"utf8 text", "héllo wörld", false},
		{"empty", "", false},
		{"nul byte", "PNG\x00\x01", true},
		{"invalid utf8", "\xff\xfe\xfd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBinary(tt.content); got != tt.want {
				t.Errorf("IsBinary(%q) = %v, want %v", tt.content, got, tt.want)
			}
		})
	}
}
