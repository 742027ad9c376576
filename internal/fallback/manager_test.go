package fallback

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/claudecoder/internal/models"
	"github.com/traylinx/claudecoder/internal/provider"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func threeModels() []models.Model {
	return []models.Model{
		{Name: "A", Provider: models.ProviderOpenRouter, DisplayName: "Model A"},
		{Name: "B", Provider: models.ProviderOpenRouter, DisplayName: "Model B"},
		{Name: "C", Provider: models.ProviderAWS, DisplayName: "Model C"},
	}
}

func newTestManager(t *testing.T, list []models.Model, opts Options) (*Manager, *fakeClock) {
	t.Helper()
	clock := newClock()
	m, err := NewManager(list, opts, WithClock(clock.Now))
	require.NoError(t, err)
	return m, clock
}

func TestNewManager_NoModels(t *testing.T) {
	_, err := NewManager(nil, Options{})
	assert.ErrorIs(t, err, ErrNoModels)
}

func TestNewManager_Defaults(t *testing.T) {
	m, _ := newTestManager(t, threeModels(), Options{})

	assert.Equal(t, Options{RetryInterval: 5, RateLimitCooldown: 5 * time.Minute, MaxRetries: 3}, m.Options())

	stats := m.Stats()
	assert.Equal(t, 0, stats.TotalRequests)
	assert.Equal(t, "A", stats.CurrentModel.Name)
	require.Len(t, stats.ModelStates, 3)
	for name, st := range stats.ModelStates {
		assert.Equal(t, StatusAvailable, st.Status, name)
		assert.Zero(t, st.Failures, name)
		assert.True(t, st.LastAttempt.IsZero(), name)
		assert.True(t, st.RateLimitedAt.IsZero(), name)
	}
}

func TestScenario_GenericFailureThenRateLimit(t *testing.T) {
	list := threeModels()
	m, _ := newTestManager(t, list, Options{MaxRetries: 1})

	m.HandleModelResult(list[0], false, errors.New("server error"))
	assert.Equal(t, "B", m.CurrentModel().Name)
	assert.Equal(t, StatusFailed, m.Stats().ModelStates["A"].Status)

	m.HandleModelResult(list[1], false, errors.New("rate limit exceeded"))
	stats := m.Stats()
	assert.Equal(t, StatusRateLimited, stats.ModelStates["B"].Status)
	assert.False(t, stats.ModelStates["B"].RateLimitedAt.IsZero())
	assert.Equal(t, "C", m.CurrentModel().Name)
	assert.Equal(t, 2, stats.TotalRequests)
}

func TestGenericFailuresBelowThresholdKeepModel(t *testing.T) {
	list := threeModels()
	m, _ := newTestManager(t, list, Options{MaxRetries: 3})

	m.HandleModelResult(list[0], false, errors.New("connection reset"))
	m.HandleModelResult(list[0], false, errors.New("connection reset"))

	assert.Equal(t, "A", m.CurrentModel().Name)
	st := m.Stats().ModelStates["A"]
	assert.Equal(t, StatusAvailable, st.Status)
	assert.Equal(t, 2, st.Failures)

	m.HandleModelResult(list[0], false, errors.New("connection reset"))
	assert.Equal(t, StatusFailed, m.Stats().ModelStates["A"].Status)
	assert.Equal(t, "B", m.CurrentModel().Name)
}

func TestSuccessResetsFailures(t *testing.T) {
	list := threeModels()
	m, clock := newTestManager(t, list, Options{})

	m.HandleModelResult(list[0], false, errors.New("boom"))
	m.HandleModelResult(list[0], false, errors.New("boom"))
	clock.Advance(time.Second)
	m.HandleModelResult(list[0], true, nil)

	st := m.Stats().ModelStates["A"]
	assert.Equal(t, StatusAvailable, st.Status)
	assert.Zero(t, st.Failures)
	assert.Equal(t, clock.now, st.LastAttempt)
}

func TestNotAuthorizedFailsImmediately(t *testing.T) {
	list := threeModels()
	m, _ := newTestManager(t, list, Options{MaxRetries: 10})

	m.HandleModelResult(list[2], false, errors.New("ValidationException: You don't have access to the model"))
	st := m.Stats().ModelStates["C"]
	assert.Equal(t, StatusFailed, st.Status)
	assert.Equal(t, 1, st.Failures)
}

func TestTaggedErrorsDriveTransitions(t *testing.T) {
	list := threeModels()
	m, _ := newTestManager(t, list, Options{MaxRetries: 10})

	m.HandleModelResult(list[0], false, &provider.Error{Kind: provider.KindUnavailable, Provider: "openrouter", Err: errors.New("upstream says no")})
	assert.Equal(t, StatusFailed, m.Stats().ModelStates["A"].Status)
	assert.Equal(t, "B", m.CurrentModel().Name)

	m.HandleModelResult(list[1], false, &provider.Error{Kind: provider.KindRateLimited, Provider: "openrouter", Err: errors.New("slow down")})
	assert.Equal(t, StatusRateLimited, m.Stats().ModelStates["B"].Status)
	assert.Equal(t, "C", m.CurrentModel().Name)
}

func TestRateLimitIgnoresPriorFailureCount(t *testing.T) {
	list := threeModels()
	m, _ := newTestManager(t, list, Options{MaxRetries: 3})

	m.HandleModelResult(list[0], false, errors.New("boom"))
	m.HandleModelResult(list[0], false, errors.New("boom"))
	m.HandleModelResult(list[0], false, errors.New("429 Too Many Requests"))

	st := m.Stats().ModelStates["A"]
	assert.Equal(t, StatusRateLimited, st.Status)
	assert.Equal(t, 3, st.Failures)
	assert.False(t, st.RateLimitedAt.IsZero())
}

func TestFailedModelNeverBecomesRateLimited(t *testing.T) {
	list := []models.Model{{Name: "A"}}
	m, _ := newTestManager(t, list, Options{MaxRetries: 1})

	m.HandleModelResult(list[0], false, errors.New("boom"))
	m.HandleModelResult(list[0], false, errors.New("rate limit"))

	st := m.Stats().ModelStates["A"]
	assert.Equal(t, StatusFailed, st.Status)
	assert.True(t, st.RateLimitedAt.IsZero())
}

func TestEmergencyReset(t *testing.T) {
	list := threeModels()
	m, _ := newTestManager(t, list, Options{})

	m.HandleModelResult(list[0], false, errors.New("403 forbidden"))
	m.HandleModelResult(list[1], false, errors.New("model not available in this region"))
	m.HandleModelResult(list[2], false, errors.New("Access denied"))

	for _, st := range m.Stats().ModelStates {
		require.Equal(t, StatusFailed, st.Status)
	}

	got := m.CurrentModel()
	assert.Equal(t, "A", got.Name)
	for name, st := range m.Stats().ModelStates {
		assert.Equal(t, StatusAvailable, st.Status, name)
		assert.Zero(t, st.Failures, name)
	}
}

func TestCooldownIsRequestCounted(t *testing.T) {
	list := threeModels()[:2]
	m, clock := newTestManager(t, list, Options{RetryInterval: 2, RateLimitCooldown: time.Minute})

	m.HandleModelResult(list[0], false, errors.New("rate_limit_error"))
	assert.Equal(t, "B", m.CurrentModel().Name)

	clock.Advance(2 * time.Minute)
	// Only one outcome reported so far: the cooldown is not re-evaluated yet.
	assert.Equal(t, "B", m.CurrentModel().Name)
	assert.Equal(t, StatusRateLimited, m.Stats().ModelStates["A"].Status)

	m.HandleModelResult(list[1], true, nil)
	assert.Equal(t, "B", m.CurrentModel().Name)

	st := m.Stats().ModelStates["A"]
	assert.Equal(t, StatusAvailable, st.Status)
	assert.Zero(t, st.Failures)
	assert.True(t, st.RateLimitedAt.IsZero())
}

func TestCooldownNotElapsed(t *testing.T) {
	list := threeModels()[:2]
	m, clock := newTestManager(t, list, Options{RetryInterval: 1, RateLimitCooldown: time.Minute})

	m.HandleModelResult(list[0], false, errors.New("throttled"))
	clock.Advance(30 * time.Second)
	m.CurrentModel()

	assert.Equal(t, StatusRateLimited, m.Stats().ModelStates["A"].Status)
}

func TestAllRateLimitedReturnsFirstModel(t *testing.T) {
	list := threeModels()[:2]
	m, _ := newTestManager(t, list, Options{})

	m.HandleModelResult(list[0], false, errors.New("quota exceeded"))
	m.HandleModelResult(list[1], false, errors.New("quota exceeded"))

	assert.Equal(t, "A", m.CurrentModel().Name)
	assert.Equal(t, StatusRateLimited, m.Stats().ModelStates["A"].Status)
}

func TestStatsIsACopy(t *testing.T) {
	list := threeModels()
	m, _ := newTestManager(t, list, Options{})

	stats := m.Stats()
	stats.ModelStates["A"] = ModelState{Status: StatusFailed, Failures: 99}
	delete(stats.ModelStates, "B")

	fresh := m.Stats()
	assert.Equal(t, StatusAvailable, fresh.ModelStates["A"].Status)
	assert.Zero(t, fresh.ModelStates["A"].Failures)
	assert.Contains(t, fresh.ModelStates, "B")
}

func TestReset(t *testing.T) {
	list := threeModels()
	m, _ := newTestManager(t, list, Options{})

	m.HandleModelResult(list[0], false, errors.New("not enabled"))
	require.Equal(t, StatusFailed, m.Stats().ModelStates["A"].Status)

	assert.True(t, m.Reset("A"))
	assert.Equal(t, StatusAvailable, m.Stats().ModelStates["A"].Status)
	assert.False(t, m.Reset("missing"))
}

func TestUnknownModelOnlyCounts(t *testing.T) {
	m, _ := newTestManager(t, threeModels(), Options{})

	m.HandleModelResult(models.Model{Name: "ghost"}, false, errors.New("boom"))

	stats := m.Stats()
	assert.Equal(t, 1, stats.TotalRequests)
	assert.NotContains(t, stats.ModelStates, "ghost")
	assert.Equal(t, "A", stats.CurrentModel.Name)
}

func TestInstancesAreIndependent(t *testing.T) {
	list := threeModels()
	m1, _ := newTestManager(t, list, Options{MaxRetries: 1})
	m2, _ := newTestManager(t, list, Options{MaxRetries: 1})

	m1.HandleModelResult(list[0], false, errors.New("boom"))

	assert.Equal(t, StatusFailed, m1.Stats().ModelStates["A"].Status)
	assert.Equal(t, StatusAvailable, m2.Stats().ModelStates["A"].Status)
}
