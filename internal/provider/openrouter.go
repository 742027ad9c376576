package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/claudecoder/internal/models"
)

const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	openRouterName    = "openrouter"
	openRouterReferer = "https://github.com/EndemicMedia/claudecoder"
	openRouterTitle   = "ClaudeCoder"
)

// OpenRouter talks to the OpenAI compatible OpenRouter API.
type OpenRouter struct {
	client    openai.Client
	model     models.Model
	maxTokens int
}

// NewOpenRouter builds an OpenRouter client for model.
func NewOpenRouter(model models.Model, apiKey string, opts Options) *OpenRouter {
	opts = opts.withDefaults()
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = OpenRouterBaseURL
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHeader("HTTP-Referer", openRouterReferer),
		option.WithHeader("X-Title", openRouterTitle),
		option.WithRequestTimeout(opts.RequestTimeout),
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	return &OpenRouter{
		client:    openai.NewClient(reqOpts...),
		model:     model,
		maxTokens: opts.MaxTokens,
	}
}

func (o *OpenRouter) Model() models.Model {
	return o.model
}

// Invoke sends prompt as a single user message.
func (o *OpenRouter) Invoke(ctx context.Context, prompt, imageBase64 string) (string, error) {
	var parts []openai.ChatCompletionContentPartUnionParam
	if imageBase64 != "" {
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: "data:image/jpeg;base64," + imageBase64,
		}))
	}
	parts = append(parts, openai.TextContentPart(wrapPrompt(prompt)))

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model.ID()),
		Messages: []openai.ChatCompletionMessageParamUnion{{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: parts,
				},
			},
		}},
		MaxTokens:   openai.Int(int64(o.maxTokens)),
		Temperature: openai.Float(0.1),
	}

	log.Debugf("OpenRouter request: model=%s prompt_chars=%d image=%t", o.model.ID(), len(prompt), imageBase64 != "")
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", o.translate(err)
	}
	if len(resp.Choices) == 0 {
		return "", &Error{Kind: KindOther, Provider: openRouterName, Model: o.model.ID(), Err: errors.New("invalid response format: no choices")}
	}

	content := resp.Choices[0].Message.Content
	log.Debugf("OpenRouter response: model=%s content_chars=%d", o.model.ID(), len(content))
	return content, nil
}

func (o *OpenRouter) translate(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(openRouterName, o.model.ID(), apiErr.StatusCode, err)
	}
	return &Error{Kind: KindOther, Provider: openRouterName, Model: o.model.ID(), Err: fmt.Errorf("connection failed: %w", err)}
}
