package processor

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// Change is a file rewrite suggested by the model.
type Change struct {
	Command  string `json:"command"`
	FilePath string `json:"filePath"`
	Content  string `json:"content"`
}

type contentMarker struct {
	start, end string
}

// Markers are tried in order; the first with both ends after the command wins.
var contentMarkers = []contentMarker{
	{"<<<EOF", "EOF>>>"},
	{"<<EOF", "EOF>>"},
	{"<<EOF", "EOF"},
	{"```", "```"},
}

// ParseCommands extracts the `git add <path>` commands of response together
// with the file content that follows each of them. Commands without content
// markers are logged and skipped.
func ParseCommands(response string) []Change {
	var changes []Change

	offset := 0
	for _, line := range strings.SplitAfter(response, "\n") {
		lineStart := offset
		offset += len(line)

		command := strings.TrimSuffix(line, "\n")
		if !strings.HasPrefix(command, "git add") {
			continue
		}

		filePath := commandPath(command)
		content, ok := markedContent(response, lineStart)
		if !ok || filePath == "" {
			log.Errorf("Invalid content markers for file: %s", filePath)
			continue
		}
		changes = append(changes, Change{Command: command, FilePath: filePath, Content: content})
	}
	return changes
}

// commandPath returns the first argument of a git add command, cut before any
// marker written on the same line.
func commandPath(command string) string {
	parts := strings.Split(command, " ")
	if len(parts) < 3 {
		return ""
	}
	p := parts[2]
	if i := strings.Index(p, "<<"); i >= 0 {
		p = p[:i]
	}
	if i := strings.Index(p, "```"); i >= 0 {
		p = p[:i]
	}
	return strings.TrimSpace(p)
}

func markedContent(response string, from int) (string, bool) {
	for _, m := range contentMarkers {
		start := strings.Index(response[from:], m.start)
		if start < 0 {
			continue
		}
		bodyStart := from + start + len(m.start)
		end := strings.Index(response[bodyStart:], m.end)
		if end < 0 {
			continue
		}
		body := response[bodyStart : bodyStart+end]
		if m.start == "```" {
			body = stripInfoString(body)
		}
		return strings.TrimSpace(body), true
	}
	return "", false
}

// stripInfoString drops a fence language tag such as "js" from the first line.
func stripInfoString(body string) string {
	first, rest, found := strings.Cut(body, "\n")
	if !found || first == "" || strings.ContainsAny(first, " \t") {
		return body
	}
	return rest
}
