// Package geminiapi implements the guide's text and image services on the
// Gemini API through google.golang.org/genai.
package geminiapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/diogo/muralguide/internal/backend"
	"github.com/diogo/muralguide/internal/config"
	"github.com/diogo/muralguide/internal/conversation"
	apierrors "github.com/diogo/muralguide/internal/errors"
	"github.com/diogo/muralguide/internal/guide"
)

// Name identifies this backend in errors and logs.
const Name = "genai"

// contentGenerator is the part of genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client talks to the Gemini API.
type Client struct {
	models     contentGenerator
	textModel  string
	imageModel string
	maxTokens  int32
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

// WithLogger sets the client logger
func WithLogger(logger *zap.SugaredLogger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// withGenerator replaces the genai client, for tests
func withGenerator(gen contentGenerator) ClientOption {
	return func(c *Client) {
		c.models = gen
	}
}

// NewClient creates a Client from cfg
func NewClient(ctx context.Context, cfg config.GenAIConfig, opts ...ClientOption) (*Client, error) {
	c := &Client{
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		maxTokens:  cfg.MaxOutputTokens,
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.models == nil {
		if cfg.APIKey == "" {
			return nil, apierrors.NewAuthError("GEMINI_API_KEY is not set")
		}
		gc, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		c.models = gc.Models
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

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.textModel, genai.Text(userText), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(guide.SystemInstruction, genai.RoleUser),
		MaxOutputTokens:   c.maxTokens,
	})
	if err != nil {
		return "", c.wrap(ctx, "generate text", err)
	}
	if err := blockedPrompt(resp); err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", apierrors.NewBackendError(Name, "generate text", apierrors.ErrNoContent)
	}

	c.logger.Debugw("text generated", "model", c.textModel, "elapsed", time.Since(start), "chars", len(text))
	return text, nil
}

// GenerateImage renders prompt with the image model and returns a data URI
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if err := backend.RequirePrompt(prompt); err != nil {
		return "", err
	}

	ctx, cancel := backend.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, c.imageModel, genai.Text(guide.ImagePrompt(prompt)), nil)
	if err != nil {
		return "", c.wrap(ctx, "generate image", err)
	}
	if err := blockedPrompt(resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", apierrors.NewBackendError(Name, "generate image", apierrors.ErrNoContent)
	}

	cand := resp.Candidates[0]
	var said []string
	for _, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			c.logger.Debugw("image generated", "model", c.imageModel, "elapsed", time.Since(start), "bytes", len(part.InlineData.Data))
			return backend.DataURI(part.InlineData.MIMEType, part.InlineData.Data), nil
		}
		if part.Text != "" {
			said = append(said, strings.TrimSpace(part.Text))
		}
	}

	if cand.FinishReason == genai.FinishReasonSafety || cand.FinishReason == genai.FinishReasonProhibitedContent {
		return "", apierrors.NewBlockedError("the image prompt was rejected by the safety filter")
	}
	if len(said) > 0 {
		return "", apierrors.NewModelError("no image returned: " + strings.Join(said, " "))
	}
	return "", apierrors.NewBackendError(Name, "generate image", apierrors.ErrNoContent)
}

func blockedPrompt(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return apierrors.NewBackendError(Name, "generate", apierrors.ErrNoContent)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return apierrors.NewBlockedError(fmt.Sprintf("prompt blocked (%s)", resp.PromptFeedback.BlockReason))
	}
	return nil
}

// wrap maps genai failures onto the shared error types.
func (c *Client) wrap(ctx context.Context, operation string, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return backend.CheckTimeout(ctx, operation, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403:
			e := apierrors.NewAuthError(apiErr.Message)
			e.HTTPStatus = apiErr.Code
			e.Operation = operation
			return e
		case 429:
			e := apierrors.NewUsageLimitError(apiErr.Message)
			e.HTTPStatus = apiErr.Code
			e.Operation = operation
			return e
		default:
			return apierrors.NewAPIError(apiErr.Code, Name+" "+operation, apiErr.Message)
		}
	}

	return apierrors.NewBackendError(Name, operation, err)
}
