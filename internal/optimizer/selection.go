package optimizer

import (
	"math"
	"sort"
	"strings"

	"github.com/traylinx/claudecoder/internal/tokenizer"
)

type chosenFile struct {
	file       tokenizer.FileEstimate
	content    string
	cost       int
	summarized bool
}

// selection walks a classification and keeps the charged token total within budget.
type selection struct {
	te     *tokenizer.TokenEstimator
	files  []tokenizer.FileEstimate
	byPath map[string]int
	budget int
	used   int
	opts   Options

	summaries map[string]string
	taken     map[string]bool
	chosen    []chosenFile
}

func newSelection(te *tokenizer.TokenEstimator, files []tokenizer.FileEstimate, budget int, opts Options) *selection {
	byPath := make(map[string]int, len(files))
	for i, f := range files {
		byPath[f.FilePath] = i
	}
	return &selection{
		te:        te,
		files:     files,
		byPath:    byPath,
		budget:    budget,
		opts:      opts,
		summaries: map[string]string{},
		taken:     map[string]bool{},
	}
}

// resolve finds the file a classified path refers to: an exact match, or a
// file whose path ends with it on a directory boundary.
func (s *selection) resolve(p string) (tokenizer.FileEstimate, bool) {
	p = strings.TrimPrefix(strings.TrimSpace(p), "./")
	if p == "" {
		return tokenizer.FileEstimate{}, false
	}
	if i, ok := s.byPath[p]; ok {
		return s.files[i], true
	}
	for _, f := range s.files {
		if strings.HasSuffix(f.FilePath, "/"+p) {
			return f, true
		}
	}
	return tokenizer.FileEstimate{}, false
}

// oversizedImportant lists the important files that may need a summary,
// highest priority first.
func (s *selection) oversizedImportant(paths []string) []tokenizer.FileEstimate {
	seen := map[string]bool{}
	var out []tokenizer.FileEstimate
	for _, p := range paths {
		f, ok := s.resolve(p)
		if !ok || seen[f.FilePath] || f.Tokens <= s.opts.SummaryThreshold {
			continue
		}
		seen[f.FilePath] = true
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// summaryCost charges at least the nominal compression ratio and never less
// than the summary's real size.
func (s *selection) summaryCost(f tokenizer.FileEstimate, summary string) int {
	nominal := int(math.Ceil(float64(f.Tokens) * s.opts.SummaryRatio))
	return max(nominal, s.te.EstimateTokens(summary))
}

func (s *selection) fits(cost int) bool {
	return s.used+cost <= s.budget
}

func (s *selection) add(f tokenizer.FileEstimate, content string, cost int, summarized bool) {
	s.chosen = append(s.chosen, chosenFile{file: f, content: content, cost: cost, summarized: summarized})
	s.used += cost
	s.taken[f.FilePath] = true
}

func (s *selection) run(c Classification) {
	for _, p := range c.Critical {
		f, ok := s.resolve(p)
		if !ok || s.taken[f.FilePath] {
			continue
		}
		if s.fits(f.Tokens) {
			s.add(f, f.Content, f.Tokens, false)
		}
	}

	for _, p := range c.Important {
		f, ok := s.resolve(p)
		if !ok || s.taken[f.FilePath] {
			continue
		}
		if s.fits(f.Tokens) {
			s.add(f, f.Content, f.Tokens, false)
			continue
		}
		if f.Tokens <= s.opts.SummaryThreshold {
			continue
		}
		if summary, ok := s.summaries[f.FilePath]; ok {
			if cost := s.summaryCost(f, summary); s.fits(cost) {
				s.add(f, summary, cost, true)
			}
		}
	}

	// Skipped, unmentioned and deferred files compete for what is left.
	var rest []tokenizer.FileEstimate
	for _, f := range s.files {
		if !s.taken[f.FilePath] {
			rest = append(rest, f)
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		if rest[i].Priority != rest[j].Priority {
			return rest[i].Priority > rest[j].Priority
		}
		return rest[i].Tokens < rest[j].Tokens
	})
	for _, f := range rest {
		if s.fits(f.Tokens) {
			s.add(f, f.Content, f.Tokens, false)
		}
	}
}

// ensureNonEmpty adds the first summary that fits when nothing was selected.
func (s *selection) ensureNonEmpty(summarize func(tokenizer.FileEstimate) string) {
	if len(s.chosen) > 0 {
		return
	}
	ranked := append([]tokenizer.FileEstimate(nil), s.files...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Priority > ranked[j].Priority })
	for _, f := range ranked {
		summary := summarize(f)
		if cost := s.summaryCost(f, summary); s.fits(cost) {
			s.add(f, summary, cost, true)
			return
		}
	}
}

// ensureStrictSubset drops the lowest priority summary when summaries let every
// entry of an over-budget snapshot through.
func (s *selection) ensureStrictSubset(snapshotSize int) {
	if len(s.chosen) < snapshotSize || len(s.chosen) <= 1 {
		return
	}
	drop := -1
	for i, c := range s.chosen {
		if !c.summarized {
			continue
		}
		if drop < 0 || c.file.Priority <= s.chosen[drop].file.Priority {
			drop = i
		}
	}
	if drop < 0 {
		drop = len(s.chosen) - 1
	}
	s.used -= s.chosen[drop].cost
	delete(s.taken, s.chosen[drop].file.FilePath)
	s.chosen = append(s.chosen[:drop], s.chosen[drop+1:]...)
}
