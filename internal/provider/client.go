// Package provider adapts the OpenRouter and AWS Bedrock SDKs to a single
// turn-based Client and translates their failures into tagged errors.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/traylinx/claudecoder/internal/models"
)

const (
	DefaultMaxTokens      = 64000
	DefaultRequestTimeout = time.Hour
	DefaultRetries        = 3
	DefaultRetryDelay     = 5 * time.Second
	DefaultAWSRegion      = "us-east-1"
)

// ErrNoCredentials is returned when no provider can be configured.
var ErrNoCredentials = errors.New("no provider credentials configured: set OPENROUTER_API_KEY or AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")

// Client sends one prompt to one model and returns the text of the reply.
// imageBase64 is an optional JPEG attachment.
type Client interface {
	Invoke(ctx context.Context, prompt, imageBase64 string) (string, error)
	Model() models.Model
}

// Factory builds a Client for a model. The processor uses it to switch models.
type Factory func(ctx context.Context, model models.Model) (Client, error)

// Credentials holds the secrets for every supported provider.
type Credentials struct {
	OpenRouterAPIKey   string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
}

// CredentialsFromEnv reads credentials from the process environment.
func CredentialsFromEnv() Credentials {
	c := Credentials{
		OpenRouterAPIKey:   os.Getenv("OPENROUTER_API_KEY"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSRegion:          os.Getenv("AWS_REGION"),
	}
	if c.AWSRegion == "" {
		c.AWSRegion = DefaultAWSRegion
	}
	return c
}

// Has reports whether credentials for p are present.
func (c Credentials) Has(p models.Provider) bool {
	switch p {
	case models.ProviderOpenRouter:
		return c.OpenRouterAPIKey != ""
	case models.ProviderAWS:
		return c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != ""
	}
	return false
}

// DetectProvider picks the provider to use when none is configured.
// OpenRouter is preferred over AWS.
func DetectProvider(c Credentials) (models.Provider, error) {
	switch {
	case c.Has(models.ProviderOpenRouter):
		return models.ProviderOpenRouter, nil
	case c.Has(models.ProviderAWS):
		return models.ProviderAWS, nil
	}
	return "", ErrNoCredentials
}

// Options configure the adapters. Zero values select the defaults.
type Options struct {
	MaxTokens      int
	RequestTimeout time.Duration
	Retries        int
	RetryDelay     time.Duration

	// BaseURL overrides the OpenRouter endpoint.
	BaseURL    string
	HTTPClient *http.Client
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	return o
}

// New builds a retrying Client for model.
func New(ctx context.Context, model models.Model, creds Credentials, opts Options) (Client, error) {
	opts = opts.withDefaults()
	if !creds.Has(model.Provider) {
		return nil, fmt.Errorf("missing %s credentials for model %s", model.Provider, model.Name)
	}

	var (
		c   Client
		err error
	)
	switch model.Provider {
	case models.ProviderOpenRouter:
		c = NewOpenRouter(model, creds.OpenRouterAPIKey, opts)
	case models.ProviderAWS:
		c, err = NewBedrock(ctx, model, creds, opts)
	default:
		return nil, fmt.Errorf("unsupported provider %q", model.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithRetry(c, opts.Retries, opts.RetryDelay), nil
}

// NewFactory returns a Factory bound to creds and opts.
func NewFactory(creds Credentials, opts Options) Factory {
	return func(ctx context.Context, model models.Model) (Client, error) {
		return New(ctx, model, creds, opts)
	}
}

// wrapPrompt frames the request the way both providers were prompted historically.
func wrapPrompt(prompt string) string {
	return "Human: " + prompt + "\nAssistant:"
}

// classifyStatus tags err with the Kind that matches status.
func classifyStatus(providerName, model string, status int, err error) *Error {
	wrapped := err
	if status == http.StatusBadRequest && strings.Contains(strings.ToLower(err.Error()), "token") {
		wrapped = fmt.Errorf("%w: %w", ErrTokenLimit, err)
	}
	return &Error{
		Kind:       kindForStatus(status),
		Provider:   providerName,
		Model:      model,
		StatusCode: status,
		Err:        wrapped,
	}
}
