package fallback

import (
	"strings"

	"github.com/traylinx/claudecoder/internal/provider"
)

var (
	rateLimitIndicators = []string{
		"rate limit",
		"rate_limit",
		"too many requests",
		"429",
		"quota exceeded",
		"usage limit",
		"throttled",
	}

	notAuthorizedIndicators = []string{
		"not authorized",
		"access denied",
		"forbidden",
		"403",
		"not enabled",
		"model not found",
		"invalid model",
		"model access",
		"insufficient permissions",
		"validationexception",
	}

	unavailableIndicators = []string{
		"model not available",
		"model unavailable",
		"service unavailable",
		"region not supported",
		"model not supported",
		"temporarily unavailable",
	}
)

func matchesAny(err error, indicators []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, ind := range indicators {
		if strings.Contains(msg, ind) {
			return true
		}
	}
	return false
}

// IsRateLimitError reports whether the error message signals throttling.
func IsRateLimitError(err error) bool {
	return matchesAny(err, rateLimitIndicators)
}

// IsModelNotAuthorizedError reports whether the error message signals missing model access.
func IsModelNotAuthorizedError(err error) bool {
	return matchesAny(err, notAuthorizedIndicators)
}

// IsModelUnavailableError reports whether the error message signals that the model is not served.
func IsModelUnavailableError(err error) bool {
	return matchesAny(err, unavailableIndicators)
}

// Classify turns a failed call's error into an Outcome. Errors tagged by a provider
// adapter are trusted; untagged errors are matched by message with the precedence
// authorization > unavailability > rate limit.
func Classify(err error) Outcome {
	switch provider.KindOf(err) {
	case provider.KindNotAuthorized:
		return OutcomeNotAuthorized
	case provider.KindUnavailable:
		return OutcomeUnavailable
	case provider.KindRateLimited:
		return OutcomeRateLimited
	}

	switch {
	case IsModelNotAuthorizedError(err):
		return OutcomeNotAuthorized
	case IsModelUnavailableError(err):
		return OutcomeUnavailable
	case IsRateLimitError(err):
		return OutcomeRateLimited
	}
	return OutcomeFailure
}
