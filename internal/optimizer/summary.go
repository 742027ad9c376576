package optimizer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/traylinx/claudecoder/internal/tokenizer"
)

const (
	summarySectionCap = 10
	previewLines      = 20
)

var (
	jsFunctionPattern = regexp.MustCompile(`^(function|const|let|var).+=>|^(function|async function)`)
	jsExportPattern   = regexp.MustCompile(`^(export|module\.exports)`)
	jsImportPattern   = regexp.MustCompile(`^(import|require)`)
)

// CreateSimpleSummary extracts the outline of a file without calling a model.
// JavaScript keeps imports, functions and exports, documentation keeps its
// headings, and anything else keeps its first lines.
func CreateSimpleSummary(file tokenizer.FileEstimate) string {
	lines := strings.Split(file.Content, "\n")
	out := []string{fmt.Sprintf("# %s (%d tokens → summary)", file.FilePath, file.Tokens)}

	switch file.Type {
	case tokenizer.TypeJavaScript:
		var imports, functions, exports []string
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if jsFunctionPattern.MatchString(trimmed) {
				functions = append(functions, line)
			}
			if jsExportPattern.MatchString(trimmed) {
				exports = append(exports, line)
			}
			if jsImportPattern.MatchString(trimmed) {
				imports = append(imports, line)
			}
		}
		out = appendSection(out, "Imports", imports)
		out = appendSection(out, "Functions", functions)
		out = appendSection(out, "Exports", exports)

	case tokenizer.TypeDocumentation:
		var headings []string
		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "#") {
				headings = append(headings, line)
			}
		}
		out = append(out, "\n## Structure:")
		out = append(out, capLines(headings)...)

	default:
		out = append(out, "\n## Content Preview:")
		if len(lines) > previewLines {
			out = append(out, lines[:previewLines]...)
			out = append(out, "...[truncated]")
		} else {
			out = append(out, lines...)
		}
	}
	return strings.Join(out, "\n")
}

func appendSection(out []string, title string, lines []string) []string {
	if len(lines) == 0 {
		return out
	}
	out = append(out, "\n## "+title+":")
	return append(out, capLines(lines)...)
}

func capLines(lines []string) []string {
	if len(lines) > summarySectionCap {
		return lines[:summarySectionCap]
	}
	return lines
}
