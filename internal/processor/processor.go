// Package processor runs one change-suggestion session: it picks a model
// through the fallback manager, fits the repository into that model's budget,
// collects the model's git-formatted answer and parses it into file changes.
package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/claudecoder/internal/assembler"
	"github.com/traylinx/claudecoder/internal/audit"
	"github.com/traylinx/claudecoder/internal/cache"
	"github.com/traylinx/claudecoder/internal/fallback"
	"github.com/traylinx/claudecoder/internal/models"
	"github.com/traylinx/claudecoder/internal/optimizer"
	"github.com/traylinx/claudecoder/internal/provider"
)

// ProviderAuto lets each model use its own provider.
const ProviderAuto = "auto"

// DefaultBaseBranch is mentioned in the prompt when none is given.
const DefaultBaseBranch = "main"

// ErrNotInitialized is returned by ProcessChanges before Initialize.
var ErrNotInitialized = errors.New("processor not initialized, call Initialize first")

// SessionFallbackOptions are the fallback settings a session starts with.
var SessionFallbackOptions = fallback.Options{
	RetryInterval:     5,
	RateLimitCooldown: fallback.DefaultRateLimitCooldown,
	MaxRetries:        2,
}

// Options configure a Processor.
type Options struct {
	// Provider is "auto", "aws" or "openrouter". A fixed provider serves every model.
	Provider    string
	Models      string
	MaxRequests int
	// DisableTokenization sends the repository as is.
	DisableTokenization bool
	Fallback            fallback.Options
	Optimizer           optimizer.Options
}

// Option configures optional collaborators.
type Option func(*Processor)

// WithCache sets the summary cache used by the optimizer.
func WithCache(s cache.Store) Option {
	return func(p *Processor) {
		p.cache = s
	}
}

// WithAuditLogger records model transitions, optimizations and applied changes.
func WithAuditLogger(l *audit.Logger) Option {
	return func(p *Processor) {
		p.audit = l
	}
}

// Processor owns the fallback manager and the client of the current model.
type Processor struct {
	opts    Options
	factory provider.Factory
	cache   cache.Store
	audit   *audit.Logger
	log     *log.Entry

	fallback *fallback.Manager
	client   provider.Client
}

// New returns a Processor that builds clients with factory.
func New(opts Options, factory provider.Factory, extra ...Option) *Processor {
	if opts.Provider == "" {
		opts.Provider = ProviderAuto
	}
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = assembler.DefaultMaxRequests
	}
	if opts.Fallback == (fallback.Options{}) {
		opts.Fallback = SessionFallbackOptions
	}
	p := &Processor{
		opts:    opts,
		factory: factory,
		log:     log.WithField("request_id", uuid.NewString()[:8]),
	}
	for _, fn := range extra {
		fn(p)
	}
	p.audit = p.audit.WithSession(p.SessionID())
	return p
}

// SessionID identifies the session in logs and the audit trail.
func (p *Processor) SessionID() string {
	id, _ := p.log.Data["request_id"].(string)
	return id
}

// Initialize sets up the fallback manager and a client for the first usable model.
func (p *Processor) Initialize(ctx context.Context) (models.Model, error) {
	selector := models.NewSelector(p.opts.Models)
	selector.LogPriority()

	list := selector.All()
	if p.opts.Provider != ProviderAuto {
		forced := models.Provider(p.opts.Provider)
		for i := range list {
			list[i].Provider = forced
		}
	}

	m, err := fallback.NewManager(list, p.opts.Fallback,
		fallback.WithAuditLogger(p.audit),
		fallback.WithLogger(p.log))
	if err != nil {
		return models.Model{}, err
	}
	p.fallback = m

	if err := p.syncClient(ctx); err != nil {
		return models.Model{}, err
	}
	p.log.Infof("Using %s via %s", p.client.Model().DisplayName, p.client.Model().Provider)
	return p.client.Model(), nil
}

// Fallback exposes the session's fallback manager.
func (p *Processor) Fallback() *fallback.Manager {
	return p.fallback
}

// CurrentModel returns the model the current client talks to.
func (p *Processor) CurrentModel() models.Model {
	if p.client == nil {
		return models.Model{}
	}
	return p.client.Model()
}

// syncClient makes sure the client serves the fallback manager's current
// model. A model whose client cannot be built is marked failed and skipped.
func (p *Processor) syncClient(ctx context.Context) error {
	var lastErr error
	for range p.fallback.Models() {
		model := p.fallback.CurrentModel()
		if p.client != nil && p.client.Model().Name == model.Name {
			return nil
		}
		c, err := p.factory(ctx, model)
		if err == nil {
			if p.client != nil {
				p.log.Infof("Switching client from %s to %s", p.client.Model().Name, model.Name)
			}
			p.client = c
			return nil
		}
		p.log.Warnf("Cannot create client for %s: %v", model.Name, err)
		lastErr = err
		p.fallback.HandleModelResult(model, false, &provider.Error{
			Kind:     provider.KindNotAuthorized,
			Provider: string(model.Provider),
			Model:    model.Name,
			Err:      err,
		})
	}
	return fmt.Errorf("no usable model: %w", lastErr)
}

// ProcessChanges asks the current model for changes to snapshot that satisfy
// prompt. When the model fails before answering at all, the session moves on
// to the next model the fallback manager selects.
func (p *Processor) ProcessChanges(ctx context.Context, prompt, baseBranch string, snapshot map[string]string) (string, error) {
	if p.fallback == nil {
		return "", ErrNotInitialized
	}
	if baseBranch == "" {
		baseBranch = DefaultBaseBranch
	}

	var lastErr error
	for attempt := range p.fallback.Models() {
		if err := p.syncClient(ctx); err != nil {
			return "", err
		}
		model := p.client.Model()
		if attempt > 0 {
			p.log.Infof("Retrying with %s", model.DisplayName)
		}

		content := snapshot
		if !p.opts.DisableTokenization {
			content = p.optimizer(model).ProcessWithTokenization(ctx, snapshot, prompt, model.ID())
		}

		var answered bool
		a := assembler.New(p.client,
			assembler.WithMaxRequests(p.opts.MaxRequests),
			assembler.WithResultHook(func(err error) {
				if err == nil {
					answered = true
				} else {
					lastErr = err
				}
				p.fallback.HandleModelResult(model, err == nil, err)
			}))

		response, err := a.Assemble(ctx, BuildPrompt(content, prompt, baseBranch), "")
		if err != nil || answered || ctx.Err() != nil {
			return response, err
		}
	}
	return "", fmt.Errorf("every model failed: %w", lastErr)
}

func (p *Processor) optimizer(model models.Model) *optimizer.Optimizer {
	report := func(err error) {
		p.fallback.HandleModelResult(model, err == nil, err)
	}
	extra := []optimizer.Option{
		optimizer.WithClassifier(optimizer.NewAIClassifier(reportingInvoker{p.client, report})),
		optimizer.WithAuditLogger(p.audit),
	}
	if p.cache != nil {
		extra = append(extra, optimizer.WithCache(p.cache))
	}
	return optimizer.New(p.opts.Optimizer, extra...)
}

// reportingInvoker forwards every call outcome of the classification request.
type reportingInvoker struct {
	client provider.Client
	report func(error)
}

func (r reportingInvoker) Invoke(ctx context.Context, prompt, image string) (string, error) {
	reply, err := r.client.Invoke(ctx, prompt, image)
	r.report(err)
	return reply, err
}

// MinifyContent collapses every whitespace run into one space.
func MinifyContent(content string) string {
	return strings.Join(strings.Fields(content), " ")
}

// BuildPrompt renders the repository, the request and the answer format.
// Files are listed in path order.
func BuildPrompt(snapshot map[string]string, request, baseBranch string) string {
	paths := make([]string, 0, len(snapshot))
	for path := range snapshot {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	sections := make([]string, len(paths))
	for i, path := range paths {
		sections[i] = "File: " + path + "\n\n" + MinifyContent(snapshot[path])
	}

	var b strings.Builder
	b.WriteString(`
You are an AI assistant tasked with suggesting changes to a GitHub repository based on a pull request comment or description.
Below is the current structure and content of the repository, followed by the latest comment or pull request description.
Please analyze the repository content and the provided text, then suggest appropriate changes.

Repository content (minified):
`)
	b.WriteString(strings.Join(sections, "\n\n---\n\n"))
	b.WriteString("\n\nDescription/Comment:\n")
	b.WriteString(request)
	b.WriteString(`

<instructions>
Based on the repository content and the provided text, suggest changes to the codebase.
Format your response as a series of git commands that can be executed to make the changes.
Each command should be on a new line and start with 'git'.
For file content changes, use 'git add' followed by the file path, then provide the new content between <<<EOF and EOF>>> markers.
Ensure all file paths are valid and use forward slashes.
Consider the overall architecture and coding style of the existing codebase when suggesting changes.
If not directly related to the requested changes, don't make code changes to those parts. we want to keep consistency and stability with each iteration
If the provided text is vague, don't make any changes.
If no changes are necessary or if the request is unclear, state so explicitly.
When you have finished suggesting all changes, end your response with the line `)
	b.WriteString(assembler.EndOfSuggestions)
	b.WriteString(".\n</instructions>\n\nBase branch: ")
	b.WriteString(baseBranch)
	b.WriteString("\n")
	return b.String()
}
