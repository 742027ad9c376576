package provider

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/traylinx/claudecoder/internal/models"
)

// WithRetry retries generic failures of c up to retries times, waiting delay
// between attempts. Rate limits, authorization and availability failures and
// token limit errors are returned at once so the fallback manager can react.
func WithRetry(c Client, retries int, delay time.Duration) Client {
	if retries <= 0 {
		return c
	}
	return &retryingClient{next: c, retries: retries, delay: delay}
}

type retryingClient struct {
	next    Client
	retries int
	delay   time.Duration
}

func (r *retryingClient) Model() models.Model {
	return r.next.Model()
}

func (r *retryingClient) Invoke(ctx context.Context, prompt, imageBase64 string) (string, error) {
	for attempt := 0; ; attempt++ {
		out, err := r.next.Invoke(ctx, prompt, imageBase64)
		if err == nil {
			return out, nil
		}
		if attempt >= r.retries || !retryable(err) || ctx.Err() != nil {
			return "", err
		}

		log.Warnf("%s call failed, retrying in %s (%d/%d): %v", r.next.Model().Provider, r.delay, attempt+1, r.retries, err)
		timer := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", err
		case <-timer.C:
		}
	}
}

func retryable(err error) bool {
	if errors.Is(err, ErrTokenLimit) || errors.Is(err, context.Canceled) {
		return false
	}
	return KindOf(err) == KindOther
}
