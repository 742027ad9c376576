// Package optimizer fits a repository snapshot into a model's input budget.
//
// When the snapshot is larger than the budget, files are bucketed into
// critical, important and skip (by a model, or by path heuristics when the
// model cannot help) and then selected greedily: critical files in full,
// important files in full or as an outline summary, and everything else by
// priority while budget remains. The token total of the returned snapshot
// never exceeds the budget.
package optimizer

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/traylinx/claudecoder/internal/audit"
	"github.com/traylinx/claudecoder/internal/cache"
	"github.com/traylinx/claudecoder/internal/metrics"
	"github.com/traylinx/claudecoder/internal/models"
	"github.com/traylinx/claudecoder/internal/tokenizer"
)

const (
	DefaultListingLimit     = 50
	DefaultSummaryThreshold = 2000
	DefaultSummaryRatio     = 0.3
	DefaultBatchSize        = 3
	DefaultClassifyTimeout  = 2 * time.Minute
	previewChars            = 100
)

// Classifier names reported in Result.
const (
	ClassifierAI        = "ai"
	ClassifierHeuristic = "heuristic"
)

// Options tune the optimizer. Zero values select the defaults.
type Options struct {
	// ListingLimit bounds the number of files described to the AI classifier.
	ListingLimit int
	// SummaryThreshold is the token size above which an important file that
	// does not fit is summarized instead of deferred.
	SummaryThreshold int
	// SummaryRatio is the fraction of the original size a summary is charged at, at least.
	SummaryRatio float64
	// BatchSize is the number of summaries produced concurrently.
	BatchSize int
	// ClassifyTimeout bounds the AI classification call.
	ClassifyTimeout time.Duration
	// EstimatorMethod is "simple" or "tiktoken".
	EstimatorMethod string
}

func (o Options) withDefaults() Options {
	if o.ListingLimit <= 0 {
		o.ListingLimit = DefaultListingLimit
	}
	if o.SummaryThreshold <= 0 {
		o.SummaryThreshold = DefaultSummaryThreshold
	}
	if o.SummaryRatio <= 0 || o.SummaryRatio > 1 {
		o.SummaryRatio = DefaultSummaryRatio
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.ClassifyTimeout <= 0 {
		o.ClassifyTimeout = DefaultClassifyTimeout
	}
	if o.EstimatorMethod == "" {
		o.EstimatorMethod = tokenizer.MethodSimple
	}
	return o
}

// Option configures optional collaborators.
type Option func(*Optimizer)

// WithClassifier sets the AI classifier. Without one the heuristic is used.
func WithClassifier(c Classifier) Option {
	return func(o *Optimizer) {
		o.classifier = c
	}
}

// WithCache sets the summary cache.
func WithCache(s cache.Store) Option {
	return func(o *Optimizer) {
		if s != nil {
			o.cache = s
		}
	}
}

// WithAuditLogger records optimization runs in the audit log.
func WithAuditLogger(l *audit.Logger) Option {
	return func(o *Optimizer) {
		o.audit = l
	}
}

// Optimizer selects repository content under a token budget.
type Optimizer struct {
	opts       Options
	classifier Classifier
	cache      cache.Store
	audit      *audit.Logger
}

// New returns an Optimizer.
func New(opts Options, extra ...Option) *Optimizer {
	o := &Optimizer{
		opts:  opts.withDefaults(),
		cache: cache.Nop{},
	}
	for _, fn := range extra {
		fn(o)
	}
	return o
}

// Result describes one optimization run.
type Result struct {
	Files map[string]string

	// Optimized is false when the snapshot already fit and was returned as is.
	Optimized  bool
	Classifier string
	Reasoning  string

	Model           string
	ModelLimit      int
	Budget          int
	OriginalTokens  int
	OptimizedTokens int

	Included   []string
	Summarized []string
	Omitted    []string
}

// ProcessWithTokenization returns snapshot reduced to fit modelID's input budget.
// A snapshot that already fits is returned unchanged, binary entries included.
// Otherwise binary entries are dropped and omitted files are absent from the result.
func (o *Optimizer) ProcessWithTokenization(ctx context.Context, snapshot map[string]string, prompt, modelID string) map[string]string {
	return o.Optimize(ctx, snapshot, prompt, modelID).Files
}

// Optimize is ProcessWithTokenization with a report of what was selected.
func (o *Optimizer) Optimize(ctx context.Context, snapshot map[string]string, prompt, modelID string) Result {
	modelID = strings.TrimSpace(modelID)
	if modelID == "" {
		modelID = models.DefaultModel
	}
	te := tokenizer.NewTokenEstimator(modelID, o.opts.EstimatorMethod)
	limit := te.GetModelLimit()
	res := Result{
		Model:      modelID,
		ModelLimit: limit,
		Budget:     tokenizer.InputBudget(limit),
	}

	files := make([]tokenizer.FileEstimate, 0, len(snapshot))
	for p, content := range snapshot {
		if tokenizer.IsBinary(content) {
			log.Debugf("Skipping binary content for %s", p)
			continue
		}
		f := te.EstimateFile(p, content)
		files = append(files, f)
		res.OriginalTokens += f.Tokens
	}
	sort.Slice(files, func(i, j int) bool { return files[i].FilePath < files[j].FilePath })

	log.Infof("Found %d files totaling ~%d tokens (model %s limit %d, budget %d)", len(files), res.OriginalTokens, modelID, limit, res.Budget)

	if res.OriginalTokens <= res.Budget {
		log.Info("Repository fits within model limits, proceeding without optimization")
		res.Files = snapshot
		res.OptimizedTokens = res.OriginalTokens
		if len(snapshot) == 0 {
			metrics.Optimization(metrics.OptimizationSkipped)
		} else {
			metrics.Optimization(metrics.OptimizationFits)
		}
		return res
	}

	class, classifier := o.classify(ctx, files, prompt)
	res.Classifier = classifier
	res.Reasoning = class.Reasoning
	metrics.Classification(classifier)
	if class.Reasoning != "" {
		log.Infof("File analysis (%s): %s", classifier, class.Reasoning)
	}

	sel := newSelection(te, files, res.Budget, o.opts)
	sel.summaries = o.summarize(ctx, sel.oversizedImportant(class.Important), prompt)
	sel.run(class)
	sel.ensureNonEmpty(func(f tokenizer.FileEstimate) string {
		return o.summarize(ctx, []tokenizer.FileEstimate{f}, prompt)[f.FilePath]
	})
	sel.ensureStrictSubset(len(snapshot))

	res.Optimized = true
	res.Files = make(map[string]string, len(sel.chosen))
	for _, c := range sel.chosen {
		res.Files[c.file.FilePath] = c.content
		res.OptimizedTokens += te.EstimateTokens(c.content)
		if c.summarized {
			res.Summarized = append(res.Summarized, c.file.FilePath)
		} else {
			res.Included = append(res.Included, c.file.FilePath)
		}
	}
	for _, f := range files {
		if _, ok := res.Files[f.FilePath]; !ok {
			res.Omitted = append(res.Omitted, f.FilePath)
		}
	}

	log.Infof("Selected %d files (%d summarized), omitted %d, optimized context ~%d tokens",
		len(res.Files), len(res.Summarized), len(res.Omitted), res.OptimizedTokens)
	metrics.Optimization(metrics.OptimizationOptimized)
	o.audit.LogOptimization(modelID, res.OriginalTokens, res.OptimizedTokens, len(res.Files), metrics.OptimizationOptimized)
	return res
}

// classify asks the AI classifier about the highest priority files and falls
// back to the heuristic over every file when that is impossible.
func (o *Optimizer) classify(ctx context.Context, files []tokenizer.FileEstimate, prompt string) (Classification, string) {
	if o.classifier != nil {
		ranked := append([]tokenizer.FileEstimate(nil), files...)
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Priority > ranked[j].Priority })
		if len(ranked) > o.opts.ListingLimit {
			ranked = ranked[:o.opts.ListingLimit]
		}

		cctx, cancel := context.WithTimeout(ctx, o.opts.ClassifyTimeout)
		class, err := o.classifier.Classify(cctx, listingsFor(ranked), prompt)
		cancel()
		if err == nil {
			return class, ClassifierAI
		}
		log.Warnf("AI prioritization failed, falling back to heuristics: %v", err)
	}
	return HeuristicClassification(listingsFor(files), prompt), ClassifierHeuristic
}

func listingsFor(files []tokenizer.FileEstimate) []Listing {
	out := make([]Listing, len(files))
	for i, f := range files {
		out[i] = Listing{
			Path:    f.FilePath,
			Size:    f.Tokens,
			Type:    f.Type,
			Preview: FilePreview(f.Content, previewChars),
		}
	}
	return out
}

// summarize produces summaries in batches of BatchSize, consulting the cache.
// Each batch completes before the next starts.
func (o *Optimizer) summarize(ctx context.Context, files []tokenizer.FileEstimate, prompt string) map[string]string {
	out := make(map[string]string, len(files))
	var mu sync.Mutex

	for start := 0; start < len(files); start += o.opts.BatchSize {
		end := min(start+o.opts.BatchSize, len(files))
		g, gctx := errgroup.WithContext(ctx)
		for _, f := range files[start:end] {
			g.Go(func() error {
				s := o.summaryFor(gctx, f, prompt)
				mu.Lock()
				out[f.FilePath] = s
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}
	return out
}

func (o *Optimizer) summaryFor(ctx context.Context, f tokenizer.FileEstimate, prompt string) string {
	key := cache.Key(f.FilePath, f.Content, prompt)
	if rec, ok := o.cache.Get(ctx, key); ok {
		metrics.SummaryCacheHit()
		return rec.Summary
	}
	metrics.SummaryCacheMiss()

	s := CreateSimpleSummary(f)
	rec := cache.SummaryRecord{
		FilePath:       f.FilePath,
		Summary:        s,
		OriginalTokens: f.Tokens,
		Priority:       f.Priority,
		SummaryTokens:  int(math.Ceil(float64(f.Tokens) * o.opts.SummaryRatio)),
	}
	if err := o.cache.Set(ctx, key, rec); err != nil {
		log.Debugf("failed to cache summary for %s: %v", f.FilePath, err)
	}
	return s
}
