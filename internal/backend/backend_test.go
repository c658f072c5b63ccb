package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	apierrors "github.com/diogo/muralguide/internal/errors"
)

func TestDataURI_RoundTrip(t *testing.T) {
	data := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}

	ref := DataURI("image/png", data)
	if !IsDataURI(ref) {
		t.Fatalf("IsDataURI(%q) = false", ref)
	}

	mimeType, got, err := ParseDataURI(ref)
	if err != nil {
		t.Fatalf("ParseDataURI() error = %v", err)
	}
	if mimeType != "image/png" || string(got) != string(data) {
		t.Errorf("ParseDataURI() = %q, %v", mimeType, got)
	}
}

func TestDataURI_DefaultMIME(t *testing.T) {
	mimeType, _, err := ParseDataURI(DataURI("", []byte("x")))
	if err != nil {
		t.Fatalf("ParseDataURI() error = %v", err)
	}
	if mimeType != "image/png" {
		t.Errorf("mime = %q, want image/png", mimeType)
	}
}

func TestParseDataURI_Invalid(t *testing.T) {
	tests := []string{
		"https://example.test/a.png",
		"data:image/png;base64",
		"data:image/png,plain",
		"data:image/png;base64,!!!",
	}
	for _, ref := range tests {
		if _, _, err := ParseDataURI(ref); err == nil {
			t.Errorf("ParseDataURI(%q) expected error", ref)
		}
	}
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), 0)
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Error("zero timeout should not set a deadline")
	}

	ctx2, cancel2 := WithTimeout(context.Background(), time.Minute)
	defer cancel2()
	if _, ok := ctx2.Deadline(); !ok {
		t.Error("positive timeout should set a deadline")
	}
}

func TestCheckTimeout(t *testing.T) {
	if CheckTimeout(context.Background(), "op", nil) != nil {
		t.Error("nil error should stay nil")
	}

	plain := errors.New("boom")
	if got := CheckTimeout(context.Background(), "op", plain); got != plain {
		t.Errorf("CheckTimeout() = %v, want the original error", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	got := CheckTimeout(ctx, "generate text", plain)
	if !apierrors.IsTimeoutError(got) {
		t.Errorf("CheckTimeout() = %v, want a timeout error", got)
	}
	if !errors.Is(got, plain) {
		t.Error("timeout error should wrap the cause")
	}
}

func TestRequirePrompt(t *testing.T) {
	if !errors.Is(RequirePrompt("  "), apierrors.ErrEmptyPrompt) {
		t.Error("blank prompt should be rejected")
	}
	if RequirePrompt("Hampi") != nil {
		t.Error("non-blank prompt should be accepted")
	}
}

func TestServices_Close(t *testing.T) {
	var nilServices *Services
	nilServices.Close()

	closed := false
	s := &Services{Closer: func() { closed = true }}
	s.Close()
	if !closed {
		t.Error("Close() did not call Closer")
	}
}
