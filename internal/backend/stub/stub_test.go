package stub

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/diogo/muralguide/internal/backend"
	"github.com/diogo/muralguide/internal/directive"
	apierrors "github.com/diogo/muralguide/internal/errors"
)

func TestGenerateText(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantWord  string
		wantImage bool
	}{
		{"chittara fact", "Tell me about Chittara", "Deewaru", false},
		{"hampi fact", "what is painted at hampi?", "Virupaksha", false},
		{"general fallback", "hello there", "Karnataka", false},
		{"show triggers image", "Show me a Chittara wall", "Chittara", true},
		{"draw triggers image", "can you DRAW Lepakshi", "Lepakshi", true},
		{"substring does not trigger", "the showroom at the palace", "Mysore", false},
	}

	c := NewClient()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := c.GenerateText(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("GenerateText() error = %v", err)
			}
			got := directive.Parse(reply)
			if !strings.Contains(got.Text, tt.wantWord) {
				t.Errorf("text %q should mention %q", got.Text, tt.wantWord)
			}
			if got.HasImage != tt.wantImage {
				t.Errorf("HasImage = %v, want %v", got.HasImage, tt.wantImage)
			}
			if got.HasImage && got.ImagePrompt == "" {
				t.Error("image directive should carry a prompt")
			}
		})
	}
}

func TestGenerateImage(t *testing.T) {
	c := NewClient()

	ref, err := c.GenerateImage(context.Background(), "a <Chittara> wall & border")
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	mimeType, data, err := backend.ParseDataURI(ref)
	if err != nil {
		t.Fatalf("ParseDataURI() error = %v", err)
	}
	if mimeType != "image/svg+xml" {
		t.Errorf("mime = %q", mimeType)
	}
	svg := string(data)
	if !strings.Contains(svg, `width="512" height="512"`) {
		t.Error("placeholder should be square")
	}
	if !strings.Contains(svg, "&lt;Chittara&gt;") || !strings.Contains(svg, "&amp;") {
		t.Errorf("prompt not escaped: %s", svg)
	}

	if _, err := c.GenerateImage(context.Background(), "  "); !errors.Is(err, apierrors.ErrEmptyPrompt) {
		t.Errorf("GenerateImage(blank) error = %v", err)
	}
}

func TestDelay(t *testing.T) {
	c := NewClient(WithDelay(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.GenerateText(ctx, "hi"); !apierrors.IsTimeoutError(err) {
		t.Errorf("GenerateText() error = %v, want timeout", err)
	}

	ctx2, cancel2 := context.WithCancel(context.Background())
	cancel2()
	if _, err := c.GenerateImage(ctx2, "Hampi"); !errors.Is(err, context.Canceled) {
		t.Errorf("GenerateImage() error = %v, want context.Canceled", err)
	}
}

func TestWrap(t *testing.T) {
	lines := wrap("one two three four five six seven", 9, 2)
	if len(lines) != 2 {
		t.Fatalf("wrap() = %q", lines)
	}
	if lines[0] != "one two" || !strings.HasSuffix(lines[1], "...") {
		t.Errorf("wrap() = %q", lines)
	}
	if got := wrap("", 10, 3); len(got) != 0 {
		t.Errorf("wrap(\"\") = %q", got)
	}
}

func TestServices(t *testing.T) {
	s := NewClient().Services()
	if s.Name != Name || s.Text == nil || s.Image == nil {
		t.Errorf("Services() = %+v", s)
	}
	s.Close()
}
