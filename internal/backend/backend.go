// Package backend contains what the text and image backends share: the
// service pair handed to the conversation and image reference helpers.
package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/diogo/muralguide/internal/conversation"
	apierrors "github.com/diogo/muralguide/internal/errors"
)

// Services is the text and image service pair built from one backend.
type Services struct {
	Name  string
	Text  conversation.TextService
	Image conversation.ImageService
	// Closer releases backend resources; nil when there are none.
	Closer func()
}

// Close releases the backend.
func (s *Services) Close() {
	if s != nil && s.Closer != nil {
		s.Closer()
	}
}

// DataURI encodes image bytes as a data URI usable as an image reference.
func DataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// ParseDataURI decodes a base64 data URI produced by DataURI.
func ParseDataURI(ref string) (mimeType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data URI has no payload")
	}
	mimeType, ok = strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("data URI is not base64 encoded")
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid data URI payload: %w", err)
	}
	return mimeType, data, nil
}

// IsDataURI reports whether ref is an inline data URI rather than a URL.
func IsDataURI(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// WithTimeout bounds ctx by timeout; zero leaves it unbounded.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// CheckTimeout converts a deadline hit by ctx into a TimeoutError.
func CheckTimeout(ctx context.Context, operation string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		e := apierrors.NewTimeoutError(operation)
		e.Cause = err
		return e
	}
	return err
}

// RequirePrompt rejects blank image prompts.
func RequirePrompt(prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return apierrors.ErrEmptyPrompt
	}
	return nil
}
