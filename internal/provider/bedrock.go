package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/claudecoder/internal/models"
)

const bedrockName = "aws"

// Bedrock invokes Anthropic models hosted on AWS Bedrock.
type Bedrock struct {
	client    anthropic.Client
	model     models.Model
	maxTokens int
}

// NewBedrock builds a Bedrock client that signs requests with the static
// credentials in creds.
func NewBedrock(ctx context.Context, model models.Model, creds Credentials, opts Options) (*Bedrock, error) {
	opts = opts.withDefaults()
	cfg, err := awsConfig(ctx, creds)
	if err != nil {
		return nil, err
	}

	reqOpts := []option.RequestOption{
		bedrock.WithConfig(cfg),
		option.WithRequestTimeout(opts.RequestTimeout),
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	return &Bedrock{
		client:    anthropic.NewClient(reqOpts...),
		model:     model,
		maxTokens: opts.MaxTokens,
	}, nil
}

func awsConfig(ctx context.Context, creds Credentials) (aws.Config, error) {
	region := creds.AWSRegion
	if region == "" {
		region = DefaultAWSRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(creds.AWSAccessKeyID, creds.AWSSecretAccessKey, "")),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

func (b *Bedrock) Model() models.Model {
	return b.model
}

// Invoke sends prompt as a single user message.
func (b *Bedrock) Invoke(ctx context.Context, prompt, imageBase64 string) (string, error) {
	params := bedrockParams(b.model.ID(), b.maxTokens, prompt, imageBase64)

	log.Debugf("Bedrock request: model=%s prompt_chars=%d image=%t", b.model.ID(), len(prompt), imageBase64 != "")
	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", b.translate(err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	log.Debugf("Bedrock response: model=%s content_chars=%d stop=%s", b.model.ID(), out.Len(), msg.StopReason)
	return out.String(), nil
}

func bedrockParams(model string, maxTokens int, prompt, imageBase64 string) anthropic.MessageNewParams {
	var blocks []anthropic.ContentBlockParamUnion
	if imageBase64 != "" {
		blocks = append(blocks, anthropic.NewImageBlockBase64("image/jpeg", imageBase64))
	}
	blocks = append(blocks, anthropic.NewTextBlock(wrapPrompt(prompt)))

	return anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
}

func (b *Bedrock) translate(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(bedrockName, b.model.ID(), apiErr.StatusCode, err)
	}
	return &Error{Kind: KindOther, Provider: bedrockName, Model: b.model.ID(), Err: fmt.Errorf("connection failed: %w", err)}
}
