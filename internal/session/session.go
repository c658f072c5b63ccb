// Package session holds the welcome/chat screen toggle and the conversation
// that lives while the chat screen is shown.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/diogo/muralguide/internal/conversation"
	"github.com/diogo/muralguide/internal/models"
)

// ErrNotChatting is returned by Submit while the welcome screen is shown.
var ErrNotChatting = errors.New("session: chat has not been started")

// Screen is the screen currently shown to the user.
type Screen int

// Screens
const (
	ScreenWelcome Screen = iota
	ScreenChat
)

func (s Screen) String() string {
	if s == ScreenChat {
		return "chat"
	}
	return "welcome"
}

// Session is one user's view of the guide: a screen plus, in chat, the
// current conversation.
type Session struct {
	text     conversation.TextService
	image    conversation.ImageService
	convOpts []conversation.Option
	logger   *zap.SugaredLogger
	now      func() time.Time

	mu         sync.Mutex
	screen     Screen
	conv       *conversation.Conversation
	lastActive time.Time
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger; conversations inherit it
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConversationOptions passes options to every conversation the session starts
func WithConversationOptions(opts ...conversation.Option) Option {
	return func(s *Session) {
		s.convOpts = append(s.convOpts, opts...)
	}
}

// WithClock sets the time source used for activity tracking
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a session showing the welcome screen.
func New(text conversation.TextService, image conversation.ImageService, opts ...Option) *Session {
	s := &Session{
		text:   text,
		image:  image,
		logger: zap.NewNop().Sugar(),
		now:    time.Now,
		screen: ScreenWelcome,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastActive = s.now()
	return s
}

// Start switches to the chat screen with a freshly seeded conversation.
// Starting while already chatting keeps the current conversation.
func (s *Session) Start() (*conversation.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = s.now()
	if s.screen == ScreenChat && s.conv != nil {
		return s.conv, nil
	}

	opts := append([]conversation.Option{conversation.WithLogger(s.logger)}, s.convOpts...)
	conv, err := conversation.New(s.text, s.image, opts...)
	if err != nil {
		return nil, err
	}

	s.conv = conv
	s.screen = ScreenChat
	s.logger.Infow("chat started")
	return conv, nil
}

// Exit discards the conversation and returns to the welcome screen.
func (s *Session) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = s.now()
	if s.conv != nil {
		s.conv.Close()
		s.conv = nil
	}
	if s.screen == ScreenChat {
		s.logger.Infow("chat exited")
	}
	s.screen = ScreenWelcome
}

// Submit forwards text to the current conversation.
func (s *Session) Submit(ctx context.Context, text string) (<-chan struct{}, error) {
	conv := s.touch()
	if conv == nil {
		return nil, ErrNotChatting
	}
	return conv.Submit(ctx, text)
}

// Snapshot returns the current conversation state; it is empty on the
// welcome screen.
func (s *Session) Snapshot() models.Snapshot {
	s.mu.Lock()
	conv := s.conv
	s.mu.Unlock()

	if conv == nil {
		return models.Snapshot{}
	}
	return conv.Snapshot()
}

// Screen returns the screen currently shown.
func (s *Session) Screen() Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen
}

// Conversation returns the current conversation, or nil on the welcome screen.
func (s *Session) Conversation() *conversation.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv
}

// IdleSince reports how long the session has gone without a user intent.
// A session with a submission in flight is never idle.
func (s *Session) IdleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv != nil && s.conv.InFlight() {
		return 0
	}
	return s.now().Sub(s.lastActive)
}

func (s *Session) touch() *conversation.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()
	return s.conv
}
