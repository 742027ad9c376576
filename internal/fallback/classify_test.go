package fallback

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/traylinx/claudecoder/internal/provider"
)

func TestClassifiersNilError(t *testing.T) {
	assert.False(t, IsRateLimitError(nil))
	assert.False(t, IsModelNotAuthorizedError(nil))
	assert.False(t, IsModelUnavailableError(nil))
}

func TestIsRateLimitError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"Rate limit exceeded", true},
		{"rate_limit_error: slow down", true},
		{"HTTP 429", true},
		{"Too Many Requests", true},
		{"Quota exceeded for today", true},
		{"usage limit reached", true},
		{"request throttled", true},
		{"internal server error", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRateLimitError(errors.New(tt.msg)))
		})
	}
}

func TestIsModelNotAuthorizedError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"You are not authorized to perform this action", true},
		{"AccessDeniedException: Access denied", true},
		{"403 Forbidden", true},
		{"model not enabled", true},
		{"Model not found", true},
		{"invalid model identifier", true},
		{"ValidationException: bad input", true},
		{"insufficient permissions", true},
		{"timeout", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, IsModelNotAuthorizedError(errors.New(tt.msg)))
		})
	}
}

func TestIsModelUnavailableError(t *testing.T) {
	assert.True(t, IsModelUnavailableError(errors.New("Model not available")))
	assert.True(t, IsModelUnavailableError(errors.New("Service Unavailable")))
	assert.True(t, IsModelUnavailableError(errors.New("region not supported")))
	assert.True(t, IsModelUnavailableError(errors.New("temporarily unavailable")))
	assert.False(t, IsModelUnavailableError(errors.New("rate limit")))
}

func TestClassifyPrecedence(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"auth beats rate limit", errors.New("403 rate limit"), OutcomeNotAuthorized},
		{"auth beats unavailable", errors.New("access denied: service unavailable"), OutcomeNotAuthorized},
		{"unavailable beats rate limit", errors.New("model unavailable, too many requests"), OutcomeUnavailable},
		{"rate limit", errors.New("throttled"), OutcomeRateLimited},
		{"generic", errors.New("EOF"), OutcomeFailure},
		{"nil", nil, OutcomeFailure},
		{"tag wins over text", &provider.Error{Kind: provider.KindRateLimited, Err: errors.New("forbidden")}, OutcomeRateLimited},
		{"wrapped tag", fmt.Errorf("invoke: %w", &provider.Error{Kind: provider.KindNotAuthorized}), OutcomeNotAuthorized},
		{"other tag falls back to text", &provider.Error{Kind: provider.KindOther, Err: errors.New("429")}, OutcomeRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
