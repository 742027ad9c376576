package optimizer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/traylinx/claudecoder/internal/tokenizer"
)

// Classification buckets files by relevance to a request. Paths may be missing
// from the repository or repeated; consumers tolerate both.
type Classification struct {
	Critical  []string `json:"critical"`
	Important []string `json:"important"`
	Skip      []string `json:"skip"`
	Reasoning string   `json:"reasoning"`
}

// Listing is the lightweight description of a file sent to the classifier.
type Listing struct {
	Path    string
	Size    int
	Type    tokenizer.FileType
	Preview string
}

// Classifier buckets the listed files for prompt.
type Classifier interface {
	Classify(ctx context.Context, listings []Listing, prompt string) (Classification, error)
}

// Invoker is the single call the AI classifier needs from a model client.
type Invoker interface {
	Invoke(ctx context.Context, prompt, imageBase64 string) (string, error)
}

// ErrUnusableClassification is returned when a model reply has no usable buckets.
var ErrUnusableClassification = errors.New("classification response is not usable JSON")

// FilePreview returns at most maxChars characters and five lines of content.
func FilePreview(content string, maxChars int) string {
	r := []rune(content)
	if len(r) > maxChars {
		r = r[:maxChars]
	}
	lines := strings.Split(string(r), "\n")
	if len(lines) > 5 {
		lines = lines[:5]
	}
	return strings.Join(lines, "\n")
}

// AIClassifier asks a model to classify files.
type AIClassifier struct {
	client Invoker
}

// NewAIClassifier returns a classifier backed by client.
func NewAIClassifier(client Invoker) *AIClassifier {
	return &AIClassifier{client: client}
}

func (c *AIClassifier) Classify(ctx context.Context, listings []Listing, prompt string) (Classification, error) {
	if c == nil || c.client == nil {
		return Classification{}, errors.New("AI provider not available for prioritization")
	}

	request, err := classificationPrompt(listings, prompt)
	if err != nil {
		return Classification{}, err
	}
	reply, err := c.client.Invoke(ctx, request, "")
	if err != nil {
		return Classification{}, fmt.Errorf("classification request failed: %w", err)
	}
	return ParseClassification(reply)
}

func classificationPrompt(listings []Listing, prompt string) (string, error) {
	files := "[]"
	for _, l := range listings {
		item := "{}"
		var err error
		for _, kv := range []struct {
			key string
			val any
		}{
			{"path", l.Path},
			{"size", l.Size},
			{"type", string(l.Type)},
			{"preview", l.Preview},
		} {
			if item, err = sjson.Set(item, kv.key, kv.val); err != nil {
				return "", fmt.Errorf("build file listing: %w", err)
			}
		}
		if files, err = sjson.SetRaw(files, "-1", item); err != nil {
			return "", fmt.Errorf("build file listing: %w", err)
		}
	}

	var b strings.Builder
	b.WriteString("You are a code analysis expert. Return only valid JSON.\n\n")
	fmt.Fprintf(&b, "Given this user request: %q\n\n", prompt)
	b.WriteString("Analyze these repository files and identify which are most relevant:\n\n")
	for _, l := range listings {
		fmt.Fprintf(&b, "- %s (%d tokens, %s)\n", l.Path, l.Size, l.Type)
	}
	b.WriteString("\nFile details (path, size in tokens, type, preview):\n")
	b.WriteString(files)
	b.WriteString(`

Return JSON with files categorized by relevance:
{
  "critical": ["most_important_file1.js", "key_file2.py"],
  "important": ["supporting_file1.js", "config.json"],
  "skip": ["test_file.js", "coverage.html"],
  "reasoning": "Brief explanation"
}

Focus on files directly related to: `)
	b.WriteString(prompt)
	return b.String(), nil
}

// ParseClassification reads a classification out of a model reply. Surrounding
// prose and code fences are ignored, non-string entries are dropped and missing
// buckets are empty. A reply without any bucket is unusable.
func ParseClassification(reply string) (Classification, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Classification{}, ErrUnusableClassification
	}
	body := reply[start : end+1]
	if !gjson.Valid(body) {
		return Classification{}, ErrUnusableClassification
	}

	root := gjson.Parse(body)
	if !root.IsObject() {
		return Classification{}, ErrUnusableClassification
	}

	var c Classification
	found := false
	for _, bucket := range []struct {
		key string
		dst *[]string
	}{
		{"critical", &c.Critical},
		{"important", &c.Important},
		{"skip", &c.Skip},
	} {
		v := root.Get(bucket.key)
		if !v.IsArray() {
			continue
		}
		found = true
		for _, item := range v.Array() {
			if item.Type == gjson.String && item.Str != "" {
				*bucket.dst = append(*bucket.dst, item.Str)
			}
		}
	}
	if !found {
		return Classification{}, ErrUnusableClassification
	}
	if r := root.Get("reasoning"); r.Type == gjson.String {
		c.Reasoning = r.Str
	}
	return c, nil
}

// HeuristicClassifier buckets files by path patterns and prompt keywords.
type HeuristicClassifier struct{}

func (HeuristicClassifier) Classify(_ context.Context, listings []Listing, prompt string) (Classification, error) {
	return HeuristicClassification(listings, prompt), nil
}

// HeuristicClassification never fails. Unknown files default to important.
func HeuristicClassification(listings []Listing, prompt string) Classification {
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(prompt)) {
		if len([]rune(w)) > 3 {
			keywords = append(keywords, w)
		}
	}

	c := Classification{Reasoning: "Heuristic-based prioritization fallback"}
	for _, l := range listings {
		p := strings.ToLower(l.Path)
		code := tokenizer.IsCodeFile(p)
		switch {
		case code && mentionsAny(p, keywords):
			c.Critical = append(c.Critical, l.Path)
		case isCoreMarker(p):
			c.Critical = append(c.Critical, l.Path)
		case code:
			c.Important = append(c.Important, l.Path)
		case isSkippable(p):
			c.Skip = append(c.Skip, l.Path)
		default:
			c.Important = append(c.Important, l.Path)
		}
	}
	return c
}

func mentionsAny(p string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(p, k) {
			return true
		}
	}
	return false
}

func isCoreMarker(p string) bool {
	name := path.Base(p)
	return name == "package.json" || strings.HasPrefix(name, "main.") || strings.HasPrefix(name, "index.")
}

func isSkippable(p string) bool {
	if strings.Contains(p, "test") || strings.Contains(p, "coverage") || strings.Contains(p, "report") {
		return true
	}
	return strings.HasSuffix(p, ".html") && path.Base(p) != "index.html"
}
