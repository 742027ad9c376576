package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traylinx/claudecoder/internal/models"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		want    models.Provider
		wantErr bool
	}{
		{"openrouter preferred", Credentials{OpenRouterAPIKey: "k", AWSAccessKeyID: "a", AWSSecretAccessKey: "s"}, models.ProviderOpenRouter, false},
		{"aws only", Credentials{AWSAccessKeyID: "a", AWSSecretAccessKey: "s"}, models.ProviderAWS, false},
		{"aws without secret", Credentials{AWSAccessKeyID: "a"}, "", true},
		{"nothing", Credentials{}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectProvider(tt.creds)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoCredentials)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_REGION", "")

	c := CredentialsFromEnv()
	assert.Equal(t, "or-key", c.OpenRouterAPIKey)
	assert.Equal(t, DefaultAWSRegion, c.AWSRegion)
	assert.True(t, c.Has(models.ProviderOpenRouter))
	assert.False(t, c.Has(models.ProviderAWS))
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), models.New("us.anthropic.claude-3-7-sonnet-20250219-v1:0"), Credentials{OpenRouterAPIKey: "k"}, Options{})
	assert.ErrorContains(t, err, "missing aws credentials")
}

func TestNew_OpenRouterIsRetrying(t *testing.T) {
	c, err := New(context.Background(), models.New("qwen/qwen3-coder:free"), Credentials{OpenRouterAPIKey: "k"}, Options{})
	require.NoError(t, err)
	assert.IsType(t, &retryingClient{}, c)
	assert.Equal(t, "qwen/qwen3-coder:free", c.Model().Name)
}

func TestNew_NoRetries(t *testing.T) {
	c, err := New(context.Background(), models.New("qwen/qwen3-coder:free"), Credentials{OpenRouterAPIKey: "k"}, Options{Retries: -1})
	require.NoError(t, err)
	assert.IsType(t, &OpenRouter{}, c)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultMaxTokens, o.MaxTokens)
	assert.Equal(t, DefaultRequestTimeout, o.RequestTimeout)
	assert.Equal(t, DefaultRetryDelay, o.RetryDelay)
}
