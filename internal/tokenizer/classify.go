package tokenizer

import (
	"path"
	"strings"
	"unicode/utf8"
)

// FileType is a coarse content category derived from a file extension.
type FileType string

const (
	TypeJavaScript    FileType = "javascript"
	TypePython        FileType = "python"
	TypeDocumentation FileType = "documentation"
	TypeConfiguration FileType = "configuration"
	TypeMarkup        FileType = "markup"
	TypeUnknown       FileType = "unknown"
)

var extensionTypes = map[string]FileType{
	".js":   TypeJavaScript,
	".ts":   TypeJavaScript,
	".jsx":  TypeJavaScript,
	".tsx":  TypeJavaScript,
	".py":   TypePython,
	".md":   TypeDocumentation,
	".txt":  TypeDocumentation,
	".json": TypeConfiguration,
	".yml":  TypeConfiguration,
	".yaml": TypeConfiguration,
	".html": TypeMarkup,
}

// DetectFileType maps a path's extension to a FileType.
func DetectFileType(filePath string) FileType {
	if t, ok := extensionTypes[strings.ToLower(path.Ext(filePath))]; ok {
		return t
	}
	return TypeUnknown
}

// Priority tiers, highest first.
const (
	PriorityCore     = 100
	PriorityCode     = 80
	PriorityDocs     = 60
	PriorityDefault  = 50
	PriorityTest     = 30
	PriorityArtifact = 10
)

// CalculateFilePriority ranks a path by how useful it usually is as model context.
// Exclusion rules run before inclusion rules, so test/index.js is still a test file.
func CalculateFilePriority(filePath string) int {
	p := strings.ToLower(filePath)

	if strings.Contains(p, "coverage") || strings.Contains(p, "test-results") || strings.Contains(p, "playwright-report") {
		return PriorityArtifact
	}
	if strings.Contains(p, "test") || strings.Contains(p, ".test.") || strings.Contains(p, ".spec.") {
		return PriorityTest
	}
	if strings.HasSuffix(p, ".html") && !strings.Contains(p, "index.html") {
		return PriorityArtifact
	}

	if strings.Contains(p, "package.json") || strings.Contains(p, "main.") ||
		strings.HasSuffix(p, "index.js") || strings.HasSuffix(p, "index.ts") {
		return PriorityCore
	}
	if strings.HasSuffix(p, "index.html") && !strings.Contains(p, "report") {
		return PriorityCore
	}

	if IsCodeFile(p) {
		return PriorityCode
	}
	if strings.HasSuffix(p, ".md") || strings.Contains(p, "readme") {
		return PriorityDocs
	}
	return PriorityDefault
}

// IsCodeFile reports whether the path has one of the source extensions the
// classifiers treat as code.
func IsCodeFile(filePath string) bool {
	p := strings.ToLower(filePath)
	return strings.HasSuffix(p, ".js") || strings.HasSuffix(p, ".py") || strings.HasSuffix(p, ".ts")
}

// IsBinary reports whether content is not text: invalid UTF-8 or containing NUL bytes.
// Binary content is excluded from token accounting.
func IsBinary(content string) bool {
	return !utf8.ValidString(content) || strings.IndexByte(content, 0) >= 0
}
