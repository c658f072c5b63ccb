// Package openaiapi implements the guide's text and image services on the
// OpenAI API.
package openaiapi

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/diogo/muralguide/internal/backend"
	"github.com/diogo/muralguide/internal/config"
	"github.com/diogo/muralguide/internal/conversation"
	apierrors "github.com/diogo/muralguide/internal/errors"
	"github.com/diogo/muralguide/internal/guide"
)

// Name identifies this backend in errors and logs.
const Name = "openai"

// api is the part of openai.Client the backend uses.
type api interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateImage(ctx context.Context, req openai.ImageRequest) (openai.ImageResponse, error)
}

// Client talks to the OpenAI API.
type Client struct {
	api        api
	textModel  string
	imageModel string
	imageSize  string
	maxTokens  int
	timeout    time.Duration
	logger     *zap.SugaredLogger
}

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithTimeout bounds every request
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxTokens caps the reply length
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// WithLogger sets the client logger
func WithLogger(logger *zap.SugaredLogger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func withAPI(a api) ClientOption {
	return func(c *Client) {
		c.api = a
	}
}

// NewClient creates a Client from cfg
func NewClient(cfg config.OpenAIConfig, opts ...ClientOption) (*Client, error) {
	c := &Client{
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		imageSize:  cfg.ImageSize,
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.api == nil {
		if cfg.APIKey == "" {
			return nil, apierrors.NewAuthError("OPENAI_API_KEY is not set")
		}
		clientCfg := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
		c.api = openai.NewClientWithConfig(clientCfg)
	}

	return c, nil
}

// Services returns the client as a conversation service pair
func (c *Client) Services() *backend.Services {
	return &backend.Services{
		Name:  Name,
		Text:  conversation.TextFunc(c.GenerateText),
		Image: conversation.ImageFunc(c.GenerateImage),
	}
}

// GenerateText answers userText as the art guide
func (c *Client) GenerateText(ctx context.Context, userText string) (string, error) {
	ctx, cancel := backend.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               c.textModel,
		MaxCompletionTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: guide.SystemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: userText},
		},
	})
	if err != nil {
		return "", c.wrap(ctx, "generate text", err)
	}

	if len(resp.Choices) == 0 {
		return "", apierrors.NewBackendError(Name, "generate text", apierrors.ErrNoContent)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", apierrors.NewBlockedError("the reply was removed by the content filter")
	}

	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return "", apierrors.NewBackendError(Name, "generate text", apierrors.ErrNoContent)
	}
	return text, nil
}

// GenerateImage renders prompt and returns a data URI, or the hosted URL
// when the API answers with one.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if err := backend.RequirePrompt(prompt); err != nil {
		return "", err
	}

	ctx, cancel := backend.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Prompt:         guide.ImagePrompt(prompt),
		Model:          c.imageModel,
		N:              1,
		Size:           c.imageSize,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return "", c.wrap(ctx, "generate image", err)
	}
	if len(resp.Data) == 0 {
		return "", apierrors.NewBackendError(Name, "generate image", apierrors.ErrNoContent)
	}

	img := resp.Data[0]
	if img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return "", apierrors.NewParseError("invalid base64 image: "+err.Error(), "data.0.b64_json")
		}
		if img.RevisedPrompt != "" {
			c.logger.Debugw("image prompt revised", "revised_prompt", img.RevisedPrompt)
		}
		return backend.DataURI("image/png", data), nil
	}
	if img.URL != "" {
		return img.URL, nil
	}
	return "", apierrors.NewBackendError(Name, "generate image", apierrors.ErrNoContent)
}

// wrap maps go-openai failures onto the shared error types.
func (c *Client) wrap(ctx context.Context, operation string, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return backend.CheckTimeout(ctx, operation, err)
	}

	status, message := 0, err.Error()
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, message = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			message = reqErr.Err.Error()
		}
	default:
		return apierrors.NewBackendError(Name, operation, err)
	}

	switch status {
	case 401, 403:
		e := apierrors.NewAuthError(message)
		e.HTTPStatus = status
		e.Operation = operation
		return e
	case 429:
		e := apierrors.NewUsageLimitError(message)
		e.HTTPStatus = status
		e.Operation = operation
		return e
	case 400:
		if apiErr != nil && apiErr.Code == "content_policy_violation" {
			return apierrors.NewBlockedError(message)
		}
	}
	return apierrors.NewAPIError(status, Name+" "+operation, message)
}
