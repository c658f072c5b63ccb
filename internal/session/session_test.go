package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diogo/muralguide/internal/conversation"
	"github.com/diogo/muralguide/internal/models"
)

func echoText() conversation.TextFunc {
	return func(_ context.Context, userText string) (string, error) {
		return "You asked about " + userText, nil
	}
}

func noImage() conversation.ImageFunc {
	return func(context.Context, string) (string, error) {
		return "", errors.New("no images in tests")
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNew_StartsOnWelcome(t *testing.T) {
	s := New(echoText(), noImage())

	if s.Screen() != ScreenWelcome {
		t.Errorf("Screen() = %v, want welcome", s.Screen())
	}
	if s.Conversation() != nil {
		t.Error("welcome screen should have no conversation")
	}
	if snap := s.Snapshot(); len(snap.Messages) != 0 || snap.InFlight {
		t.Errorf("Snapshot() = %+v, want empty", snap)
	}
}

func TestSubmit_BeforeStart(t *testing.T) {
	s := New(echoText(), noImage())

	if _, err := s.Submit(context.Background(), "hello"); !errors.Is(err, ErrNotChatting) {
		t.Errorf("Submit() error = %v, want ErrNotChatting", err)
	}
}

func TestStart_SeedsGreeting(t *testing.T) {
	s := New(echoText(), noImage())

	conv, err := s.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Exit()

	if s.Screen() != ScreenChat {
		t.Errorf("Screen() = %v, want chat", s.Screen())
	}
	snap := s.Snapshot()
	if len(snap.Messages) != 1 || snap.Messages[0].Text != models.GreetingText {
		t.Errorf("Snapshot() = %+v, want greeting only", snap)
	}

	again, err := s.Start()
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if again != conv {
		t.Error("Start() while chatting should keep the conversation")
	}
}

func TestSubmitAndExit(t *testing.T) {
	s := New(echoText(), noImage())
	if _, err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	done, err := s.Submit(context.Background(), "Chittara")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("submission did not complete")
	}

	snap := s.Snapshot()
	if len(snap.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(snap.Messages))
	}
	if snap.Messages[2].Text != "You asked about Chittara" {
		t.Errorf("reply = %q", snap.Messages[2].Text)
	}

	old := s.Conversation()
	s.Exit()

	if s.Screen() != ScreenWelcome {
		t.Errorf("Screen() = %v, want welcome", s.Screen())
	}
	if !old.Closed() {
		t.Error("Exit() should close the conversation")
	}
	if len(s.Snapshot().Messages) != 0 {
		t.Error("Exit() should discard the messages")
	}

	// a new chat starts fresh
	if _, err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Exit()
	if n := len(s.Snapshot().Messages); n != 1 {
		t.Errorf("restarted chat has %d messages, want 1", n)
	}
}

func TestExit_OnWelcomeIsNoop(t *testing.T) {
	s := New(echoText(), noImage())
	s.Exit()
	if s.Screen() != ScreenWelcome {
		t.Errorf("Screen() = %v, want welcome", s.Screen())
	}
}

func TestStart_PropagatesConversationError(t *testing.T) {
	s := New(nil, noImage())
	if _, err := s.Start(); err == nil {
		t.Fatal("Start() with no text service should fail")
	}
	if s.Screen() != ScreenWelcome {
		t.Errorf("Screen() = %v, want welcome after failed start", s.Screen())
	}
}

func TestWithConversationOptions(t *testing.T) {
	s := New(echoText(), noImage(), WithConversationOptions(conversation.WithGreeting("Swagatha!")))
	if _, err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Exit()

	if got := s.Snapshot().Messages[0].Text; got != "Swagatha!" {
		t.Errorf("greeting = %q, want Swagatha!", got)
	}
}

func TestIdleSince(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := New(echoText(), noImage(), WithClock(clock.Now))

	clock.Advance(5 * time.Minute)
	if got := s.IdleSince(); got != 5*time.Minute {
		t.Errorf("IdleSince() = %v, want 5m", got)
	}

	if _, err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Exit()
	if got := s.IdleSince(); got != 0 {
		t.Errorf("IdleSince() after Start = %v, want 0", got)
	}
}

func TestScreen_String(t *testing.T) {
	if ScreenWelcome.String() != "welcome" || ScreenChat.String() != "chat" {
		t.Errorf("unexpected screen names %q %q", ScreenWelcome, ScreenChat)
	}
}
