package geminiapi

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/diogo/muralguide/internal/backend"
	"github.com/diogo/muralguide/internal/config"
	apierrors "github.com/diogo/muralguide/internal/errors"
	"github.com/diogo/muralguide/internal/guide"
)

type fakeGenerator struct {
	resp *genai.GenerateContentResponse
	err  error
	// block waits for ctx to end before returning err
	block bool

	calls      int
	lastModel  string
	lastPrompt string
	lastConfig *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.lastModel = model
	f.lastConfig = cfg
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.lastPrompt = contents[0].Parts[0].Text
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func newTestClient(t *testing.T, gen *fakeGenerator, opts ...ClientOption) *Client {
	t.Helper()
	cfg := config.DefaultConfig().GenAI
	c, err := NewClient(context.Background(), cfg, append(opts, withGenerator(gen))...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), config.GenAIConfig{TextModel: "m", ImageModel: "i"})
	if !apierrors.IsAuthError(err) {
		t.Errorf("NewClient() error = %v, want auth error", err)
	}
}

func TestGenerateText(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("  Chittara uses natural pigments. [PROMPT]: a Chittara wall  ")}
	c := newTestClient(t, gen)

	got, err := c.GenerateText(context.Background(), "tell me about Chittara")
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if got != "Chittara uses natural pigments. [PROMPT]: a Chittara wall" {
		t.Errorf("GenerateText() = %q", got)
	}
	if gen.lastModel != "gemini-2.5-flash" {
		t.Errorf("model = %q", gen.lastModel)
	}
	if gen.lastPrompt != "tell me about Chittara" {
		t.Errorf("prompt = %q", gen.lastPrompt)
	}
	if gen.lastConfig == nil || gen.lastConfig.SystemInstruction == nil {
		t.Fatal("system instruction not sent")
	}
	if gen.lastConfig.SystemInstruction.Parts[0].Text != guide.SystemInstruction {
		t.Error("system instruction text mismatch")
	}
	if gen.lastConfig.MaxOutputTokens != 1024 {
		t.Errorf("MaxOutputTokens = %d", gen.lastConfig.MaxOutputTokens)
	}
}

func TestGenerateText_Errors(t *testing.T) {
	tests := []struct {
		name  string
		gen   *fakeGenerator
		check func(error) bool
	}{
		{
			name:  "empty reply",
			gen:   &fakeGenerator{resp: textResponse("   ")},
			check: func(err error) bool { return errors.Is(err, apierrors.ErrNoContent) },
		},
		{
			name:  "quota",
			gen:   &fakeGenerator{err: genai.APIError{Code: 429, Message: "quota exceeded"}},
			check: apierrors.IsRateLimitError,
		},
		{
			name:  "bad key",
			gen:   &fakeGenerator{err: genai.APIError{Code: 403, Message: "API key not valid"}},
			check: apierrors.IsAuthError,
		},
		{
			name: "server error",
			gen:  &fakeGenerator{err: genai.APIError{Code: 500, Message: "internal"}},
			check: func(err error) bool {
				return apierrors.GetHTTPStatus(err) == 500 && strings.Contains(err.Error(), "internal")
			},
		},
		{
			name: "transport",
			gen:  &fakeGenerator{err: errors.New("dial tcp: refused")},
			check: func(err error) bool {
				return strings.Contains(err.Error(), "genai: generate text: dial tcp: refused")
			},
		},
		{
			name: "blocked prompt",
			gen: &fakeGenerator{resp: &genai.GenerateContentResponse{
				PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
			}},
			check: func(err error) bool {
				var b *apierrors.BlockedError
				return errors.As(err, &b)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.gen)
			_, err := c.GenerateText(context.Background(), "hi")
			if err == nil {
				t.Fatal("GenerateText() expected error")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error %T: %v", err, err)
			}
		})
	}
}

func TestGenerateText_Timeout(t *testing.T) {
	gen := &fakeGenerator{block: true}
	c := newTestClient(t, gen, WithTimeout(10*time.Millisecond))

	_, err := c.GenerateText(context.Background(), "hi")
	if !apierrors.IsTimeoutError(err) {
		t.Errorf("GenerateText() error = %v, want timeout", err)
	}
}

func TestGenerateImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Here is your mural."},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: png}},
			}},
		}},
	}}
	c := newTestClient(t, gen)

	ref, err := c.GenerateImage(context.Background(), "a Chittara wall painting")
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if ref != backend.DataURI("image/png", png) {
		t.Errorf("GenerateImage() = %q", ref)
	}
	if gen.lastModel != "gemini-2.5-flash-image" {
		t.Errorf("model = %q", gen.lastModel)
	}
	if gen.lastPrompt != guide.ImagePrompt("a Chittara wall painting") {
		t.Errorf("prompt = %q, want the styled prompt", gen.lastPrompt)
	}
}

func TestGenerateImage_Errors(t *testing.T) {
	tests := []struct {
		name  string
		resp  *genai.GenerateContentResponse
		check func(error) bool
	}{
		{
			name:  "no candidates",
			resp:  &genai.GenerateContentResponse{},
			check: func(err error) bool { return errors.Is(err, apierrors.ErrNoContent) },
		},
		{
			name: "text only",
			resp: textResponse("I cannot draw that."),
			check: func(err error) bool {
				var m *apierrors.ModelError
				return errors.As(err, &m) && strings.Contains(err.Error(), "I cannot draw that.")
			},
		},
		{
			name: "safety",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content:      &genai.Content{},
				FinishReason: genai.FinishReasonSafety,
			}}},
			check: func(err error) bool {
				var b *apierrors.BlockedError
				return errors.As(err, &b)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, &fakeGenerator{resp: tt.resp})
			_, err := c.GenerateImage(context.Background(), "Hampi")
			if err == nil {
				t.Fatal("GenerateImage() expected error")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error %T: %v", err, err)
			}
		})
	}
}

func TestGenerateImage_EmptyPrompt(t *testing.T) {
	gen := &fakeGenerator{}
	c := newTestClient(t, gen)

	if _, err := c.GenerateImage(context.Background(), " "); !errors.Is(err, apierrors.ErrEmptyPrompt) {
		t.Errorf("GenerateImage() error = %v, want ErrEmptyPrompt", err)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times for empty prompt", gen.calls)
	}
}

func TestServices(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse("namaskara")}
	s := newTestClient(t, gen).Services()

	if s.Name != Name {
		t.Errorf("Name = %q", s.Name)
	}
	got, err := s.Text.Generate(context.Background(), "hi")
	if err != nil || got != "namaskara" {
		t.Errorf("Text.Generate() = %q, %v", got, err)
	}
	s.Close()
}
