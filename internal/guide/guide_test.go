package guide

import (
	"strings"
	"testing"

	"github.com/diogo/muralguide/internal/directive"
)

func TestSystemInstruction_MentionsMarker(t *testing.T) {
	if !strings.Contains(SystemInstruction, directive.Marker) {
		t.Errorf("system instruction must teach the model the %s marker", directive.Marker)
	}
	if strings.Count(SystemInstruction, directive.Marker) != 1 {
		t.Error("system instruction should mention the marker exactly once")
	}
}

func TestImagePrompt(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{"blank stays blank", "   ", ""},
		{"empty stays empty", "", ""},
		{"styled", " a Chittara wall painting ", "a Chittara wall painting, " + imageStyle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ImagePrompt(tt.prompt); got != tt.want {
				t.Errorf("ImagePrompt(%q) = %q, want %q", tt.prompt, got, tt.want)
			}
		})
	}
}
