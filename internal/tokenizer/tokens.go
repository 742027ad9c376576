// Package tokenizer estimates token costs for repository content and classifies files
// by type and relevance priority. It also knows the context window of the models the
// fallback list can select and splits a model's window into an input budget.
package tokenizer

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
	tiktoken "github.com/tiktoken-go/tokenizer"
)

const (
	// MethodSimple approximates one token per four characters.
	MethodSimple = "simple"
	// MethodTiktoken counts tokens with the cl100k_base encoding.
	MethodTiktoken = "tiktoken"

	// DefaultModelLimit is returned for unknown or malformed model identifiers.
	DefaultModelLimit = 32000

	// responseReservePercent of the context window is kept free for the model's answer.
	responseReservePercent = 20
)

// TokenEstimator approximates token counts for a given model.
type TokenEstimator struct {
	model  string
	method string
	codec  tiktoken.Codec
}

var (
	codecOnce sync.Once
	codec     tiktoken.Codec
	codecErr  error
)

func sharedCodec() (tiktoken.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tiktoken.Get(tiktoken.Cl100kBase)
	})
	return codec, codecErr
}

// NewTokenEstimator creates an estimator for model using method.
// Unknown methods, and a tiktoken method whose encoding cannot be loaded, fall back to "simple".
func NewTokenEstimator(model, method string) *TokenEstimator {
	te := &TokenEstimator{model: model, method: MethodSimple}
	if method != MethodTiktoken {
		return te
	}

	c, err := sharedCodec()
	if err != nil {
		log.WithError(err).Warn("tiktoken encoding unavailable, using character approximation")
		return te
	}
	te.method = MethodTiktoken
	te.codec = c
	return te
}

// Model returns the model identifier the estimator was created for.
func (te *TokenEstimator) Model() string {
	return te.model
}

// Method returns the estimation method being used.
func (te *TokenEstimator) Method() string {
	return te.method
}

// EstimateTokens returns the approximate token count of content. Empty content costs 0.
func (te *TokenEstimator) EstimateTokens(content string) int {
	if content == "" {
		return 0
	}
	if te.codec != nil {
		n, err := te.codec.Count(content)
		if err == nil {
			return n
		}
		log.WithError(err).Debug("tiktoken count failed, using character approximation")
	}
	return approximate(content)
}

// approximate is ceil(characters / 4).
func approximate(content string) int {
	chars := utf8.RuneCountInString(content)
	return int(math.Ceil(float64(chars) / 4))
}

// FileEstimate is the per-file analysis record used by the optimizer.
type FileEstimate struct {
	FilePath string
	Content  string
	Tokens   int
	Size     int
	Priority int
	Type     FileType
}

// EstimateFile analyses a single repository file.
func (te *TokenEstimator) EstimateFile(filePath, content string) FileEstimate {
	return FileEstimate{
		FilePath: filePath,
		Content:  content,
		Tokens:   te.EstimateTokens(content),
		Size:     len(content),
		Priority: CalculateFilePriority(filePath),
		Type:     DetectFileType(filePath),
	}
}

// ModelContextLimits maps model identifiers to their context window sizes in tokens.
var ModelContextLimits = map[string]int{
	"moonshotai/kimi-k2:free":          32768,
	"google/gemini-2.0-flash-exp:free": 1048576,
	"us.anthropic.claude-3-7-sonnet":   200000,
	"us.anthropic.claude-sonnet-4":     200000,
	"gpt-4":                            8192,
	"gpt-4-32k":                        32768,
	"gpt-3.5-turbo":                    4096,
	"gpt-3.5-turbo-16k":                16384,
}

// knownPrefixes holds the table keys sorted longest first so versioned identifiers
// resolve to the most specific entry.
var knownPrefixes = func() []string {
	keys := make([]string, 0, len(ModelContextLimits))
	for k := range ModelContextLimits {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// GetModelLimit returns the context window of model.
// Exact matches win; otherwise a versioned identifier such as
// "us.anthropic.claude-3-7-sonnet-20250219-v1:0" matches its base entry.
// Anything else, including the empty string, returns DefaultModelLimit.
func GetModelLimit(model string) int {
	model = strings.TrimSpace(model)
	if model == "" {
		return DefaultModelLimit
	}
	if limit, ok := ModelContextLimits[model]; ok {
		return limit
	}
	for _, prefix := range knownPrefixes {
		if matchesVersioned(model, prefix) {
			return ModelContextLimits[prefix]
		}
	}
	return DefaultModelLimit
}

// GetModelLimit returns the context window of the estimator's model.
func (te *TokenEstimator) GetModelLimit() int {
	return GetModelLimit(te.model)
}

// matchesVersioned reports whether model is prefix followed by a version or tag suffix,
// e.g. "-20250219-v1:0" or ":beta". "gpt-4-turbo" is not a version of "gpt-4".
func matchesVersioned(model, prefix string) bool {
	if !strings.HasPrefix(model, prefix) || len(model) == len(prefix) {
		return false
	}
	rest := model[len(prefix)+1:]
	switch model[len(prefix)] {
	case ':':
		return true
	case '-':
		return rest != "" && unicode.IsDigit(rune(rest[0]))
	}
	return false
}

// BudgetAllocation splits the usable part of a context window.
type BudgetAllocation struct {
	CoreFiles     int `json:"coreFiles"`
	Documentation int `json:"documentation"`
	TestsConfig   int `json:"testsConfig"`
	Total         int `json:"total"`
}

// CalculateBudgetAllocation reserves 20% of modelLimit for the response and splits the
// rest 50/30/20 between core files, documentation and tests/config. Every part is floored,
// so the parts never sum past Total.
func CalculateBudgetAllocation(estimatedTotalTokens, modelLimit int) BudgetAllocation {
	total := InputBudget(modelLimit)
	return BudgetAllocation{
		CoreFiles:     total * 50 / 100,
		Documentation: total * 30 / 100,
		TestsConfig:   total * 20 / 100,
		Total:         total,
	}
}

// InputBudget returns floor(modelLimit * 0.8), the tokens available for request content.
func InputBudget(modelLimit int) int {
	if modelLimit <= 0 {
		return 0
	}
	return modelLimit * (100 - responseReservePercent) / 100
}
