package provider

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tags a provider failure by what the caller can do about it.
type Kind int

const (
	// KindOther is a generic, possibly transient failure.
	KindOther Kind = iota
	// KindRateLimited means the provider throttled the request; retry after a cooldown.
	KindRateLimited
	// KindNotAuthorized means the account cannot use the model until someone enables it.
	KindNotAuthorized
	// KindUnavailable means the model is not served right now or not in this region.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindNotAuthorized:
		return "not_authorized"
	case KindUnavailable:
		return "unavailable"
	default:
		return "other"
	}
}

// ErrTokenLimit is wrapped when the prompt exceeds the model's context window.
var ErrTokenLimit = errors.New("token limit exceeded")

// Error is a provider failure translated into a Kind.
type Error struct {
	Kind       Kind
	Provider   string
	Model      string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Model != "" {
		b.WriteString(" (")
		b.WriteString(e.Model)
		b.WriteString(")")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or KindOther.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindOther
}

// kindForStatus maps an HTTP status code to a Kind.
func kindForStatus(status int) Kind {
	switch status {
	case 429, 529:
		return KindRateLimited
	case 401, 403, 404:
		return KindNotAuthorized
	case 503:
		return KindUnavailable
	}
	return KindOther
}
