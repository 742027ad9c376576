// Package fallback keeps the per-model availability state of a session and
// decides which model serves the next request.
package fallback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/claudecoder/internal/audit"
	"github.com/traylinx/claudecoder/internal/metrics"
	"github.com/traylinx/claudecoder/internal/models"
)

const (
	DefaultRetryInterval     = 5
	DefaultRateLimitCooldown = 5 * time.Minute
	DefaultMaxRetries        = 3
)

// ErrNoModels is returned when a Manager is built without models.
var ErrNoModels = errors.New("fallback: at least one model is required")

// Options tune the Manager. Zero values select the defaults.
type Options struct {
	// RetryInterval is the number of requests between checks for cooled down models.
	RetryInterval int
	// RateLimitCooldown is how long a throttled model is skipped.
	RateLimitCooldown time.Duration
	// MaxRetries is the number of generic failures that mark a model failed.
	MaxRetries int
}

func (o Options) withDefaults() Options {
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.RateLimitCooldown <= 0 {
		o.RateLimitCooldown = DefaultRateLimitCooldown
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	return o
}

// Option configures optional collaborators of a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithAuditLogger records transitions in the audit log.
func WithAuditLogger(l *audit.Logger) Option {
	return func(m *Manager) {
		m.audit = l
	}
}

// WithLogger sets the log entry used for messages.
func WithLogger(entry *log.Entry) Option {
	return func(m *Manager) {
		m.log = entry
	}
}

// Stats is a point in time copy of the Manager's state.
type Stats struct {
	TotalRequests int                   `json:"totalRequests"`
	CurrentModel  models.Model          `json:"currentModel"`
	ModelStates   map[string]ModelState `json:"modelStates"`
}

// Manager rotates through a prioritized model list. It is safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	models       []models.Model
	states       map[string]ModelState
	current       int
	requestCount  int
	totalRequests int
	opts          Options

	now   func() time.Time
	audit *audit.Logger
	log   *log.Entry
}

// NewManager returns a Manager positioned on the first model.
func NewManager(list []models.Model, opts Options, extra ...Option) (*Manager, error) {
	if len(list) == 0 {
		return nil, ErrNoModels
	}

	m := &Manager{
		models: append([]models.Model(nil), list...),
		states: make(map[string]ModelState, len(list)),
		opts:   opts.withDefaults(),
		now:    time.Now,
		log:    log.NewEntry(log.StandardLogger()),
	}
	for _, model := range list {
		m.states[model.Name] = newModelState()
	}
	for _, o := range extra {
		o(m)
	}
	return m, nil
}

// Options returns the effective options.
func (m *Manager) Options() Options {
	return m.opts
}

// CurrentModel returns the model that should serve the next request.
// Every RetryInterval reported outcomes it first brings cooled down models back.
// When no model is available, failed models are reset and the first model is returned.
func (m *Manager) CurrentModel() models.Model {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkRateLimitedLocked()

	model := m.models[m.current]
	if m.states[model.Name].Status == StatusAvailable {
		return model
	}

	if !m.moveToNextLocked() {
		m.log.Warn("All models failed, resetting failed models")
		m.resetFailedLocked()
		m.setCurrentLocked(0)
		metrics.EmergencyReset()
		names := make([]string, len(m.models))
		for i, md := range m.models {
			names[i] = md.Name
		}
		m.audit.LogEmergencyReset(names)
	}
	return m.models[m.current]
}

// HandleModelResult records the outcome of a call made with model. err is
// ignored when success is true.
func (m *Manager) HandleModelResult(model models.Model, success bool, err error) {
	outcome := OutcomeSuccess
	if !success {
		outcome = Classify(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestCount++
	m.totalRequests++
	metrics.ModelOutcome(model.Name, outcome.String())

	prev, ok := m.states[model.Name]
	if !ok {
		m.log.Warnf("Result reported for unknown model %s", model.Name)
		return
	}

	next := prev.Apply(outcome, m.now(), m.opts.MaxRetries)
	m.states[model.Name] = next
	m.recordTransitionLocked(model, prev.Status, next.Status, outcome)

	switch outcome {
	case OutcomeSuccess:
		m.log.Debugf("Model %s succeeded", model.DisplayName)
	case OutcomeNotAuthorized:
		m.log.Warnf("Model %s is not authorized, marking as failed", model.DisplayName)
		if model.Provider == models.ProviderAWS {
			m.logAuthorizationGuidance(model)
		}
	case OutcomeUnavailable:
		m.log.Warnf("Model %s is unavailable, marking as failed", model.DisplayName)
	case OutcomeRateLimited:
		m.log.Warnf("Model %s is rate limited, cooling down for %s", model.DisplayName, m.opts.RateLimitCooldown)
	default:
		m.log.Warnf("Model %s failed (%d/%d): %v", model.DisplayName, next.Failures, m.opts.MaxRetries, err)
		if next.Status == StatusFailed {
			m.log.Warnf("Model %s reached max retries, marking as failed", model.DisplayName)
		}
	}

	if shouldRotate(outcome, next) && !m.moveToNextLocked() {
		m.log.Warn("No available models to switch to")
	}
	m.logStatusLocked()
}

// Reset makes the named model available again.
func (m *Manager) Reset(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.states[name]
	if !ok {
		return false
	}
	m.states[name] = prev.Reset()
	m.log.Infof("Model %s reset", name)
	return true
}

// Stats returns a copy of the Manager's state. Changing it has no effect on the Manager.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make(map[string]ModelState, len(m.states))
	for k, v := range m.states {
		states[k] = v
	}
	return Stats{
		TotalRequests: m.totalRequests,
		CurrentModel:  m.models[m.current],
		ModelStates:   states,
	}
}

// Models returns the model list in priority order.
func (m *Manager) Models() []models.Model {
	return append([]models.Model(nil), m.models...)
}

// moveToNextLocked scans forward from the current position, wrapping around,
// for an available model. It reports whether one was found.
func (m *Manager) moveToNextLocked() bool {
	n := len(m.models)
	for i := 1; i <= n; i++ {
		idx := (m.current + i) % n
		if m.states[m.models[idx].Name].Status == StatusAvailable {
			m.setCurrentLocked(idx)
			return true
		}
	}
	return false
}

func (m *Manager) setCurrentLocked(idx int) {
	if idx == m.current {
		return
	}
	from := m.models[m.current]
	to := m.models[idx]
	m.current = idx
	m.log.Infof("Switching to model %s", to.DisplayName)
	metrics.FallbackSwitch()
	m.audit.LogSwitch(from.Name, to.Name)
}

// checkRateLimitedLocked runs once every RetryInterval reported outcomes. Cooldowns
// are therefore only re-evaluated when calls keep coming.
func (m *Manager) checkRateLimitedLocked() {
	if m.requestCount < m.opts.RetryInterval {
		return
	}
	m.requestCount = 0

	now := m.now()
	for _, model := range m.models {
		prev := m.states[model.Name]
		next, changed := prev.CoolDown(now, m.opts.RateLimitCooldown)
		if !changed {
			continue
		}
		m.states[model.Name] = next
		m.log.Infof("Model %s cooldown expired, available again", model.DisplayName)
		m.recordTransitionLocked(model, prev.Status, next.Status, OutcomeSuccess)
	}
}

func (m *Manager) resetFailedLocked() {
	for _, model := range m.models {
		prev := m.states[model.Name]
		if prev.Status != StatusFailed {
			continue
		}
		next := prev.Reset()
		m.states[model.Name] = next
		m.recordTransitionLocked(model, prev.Status, next.Status, OutcomeSuccess)
	}
}

func (m *Manager) recordTransitionLocked(model models.Model, from, to Status, outcome Outcome) {
	if from == to {
		return
	}
	metrics.ModelTransition(model.Name, string(from), string(to))
	m.audit.LogTransition(string(model.Provider), model.Name, string(from), string(to), outcome.String())
}

func (m *Manager) logAuthorizationGuidance(model models.Model) {
	m.log.Warnf("Model access required for %s (%s)", model.Name, models.Family(model.Name))
	m.log.Warn("To enable access:")
	m.log.Warn("  1. Open the AWS Bedrock console: https://console.aws.amazon.com/bedrock/")
	m.log.Warn("  2. Go to 'Model access' in the left sidebar")
	m.log.Warn("  3. Click 'Enable specific models' or 'Modify model access'")
	m.log.Warnf("  4. Enable access for: %s", models.Family(model.Name))
	m.log.Warn("  5. Wait for approval (usually instant for most models)")
}

func (m *Manager) logStatusLocked() {
	if !m.log.Logger.IsLevelEnabled(log.DebugLevel) {
		return
	}
	now := m.now()
	m.log.Debug("Model status:")
	for i, model := range m.models {
		state := m.states[model.Name]
		marker := " "
		if i == m.current {
			marker = ">"
		}
		line := fmt.Sprintf("%s %s: %s", marker, model.DisplayName, state.Status)
		if state.Status == StatusRateLimited {
			remaining := m.opts.RateLimitCooldown - now.Sub(state.RateLimitedAt)
			if remaining < 0 {
				remaining = 0
			}
			line += fmt.Sprintf(" (cooldown %s left)", remaining.Round(time.Second))
		}
		if state.Failures > 0 {
			line += fmt.Sprintf(" [%d failures]", state.Failures)
		}
		m.log.Debug(line)
	}
}
