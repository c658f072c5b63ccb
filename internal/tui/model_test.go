package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/diogo/muralguide/internal/backend"
	"github.com/diogo/muralguide/internal/conversation"
	apierrors "github.com/diogo/muralguide/internal/errors"
	"github.com/diogo/muralguide/internal/guide"
	"github.com/diogo/muralguide/internal/models"
	"github.com/diogo/muralguide/internal/render"
	"github.com/diogo/muralguide/internal/session"
)

func replyWith(reply string) conversation.TextFunc {
	return func(context.Context, string) (string, error) {
		return reply, nil
	}
}

func imageWith(ref string, err error) conversation.ImageFunc {
	return func(context.Context, string) (string, error) {
		return ref, err
	}
}

func newTestModel(t *testing.T, text conversation.TextService, image conversation.ImageService, opts ...Option) Model {
	t.Helper()
	sess := session.New(text, image)
	t.Cleanup(sess.Exit)

	opts = append([]Option{WithRenderOptions(render.DefaultOptions().WithStyle(render.StylePlain))}, opts...)
	m := NewModel(sess, opts...)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 60})
	return updated.(Model)
}

func press(t *testing.T, m Model, key tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(tea.KeyMsg{Type: key})
	return updated.(Model), cmd
}

// pump feeds subscription snapshots into the model until done reports true
func pump(t *testing.T, m Model, done func(models.Snapshot) bool) Model {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		msgs := make(chan tea.Msg, 1)
		go func(cmd tea.Cmd) { msgs <- cmd() }(waitForSnapshot(m.updates, m.gen))

		select {
		case msg := <-msgs:
			updated, _ := m.Update(msg)
			m = updated.(Model)
		case <-deadline:
			t.Fatalf("timed out waiting for snapshot, last = %+v", m.snap)
		}
		if done(m.snap) {
			return m
		}
	}
}

func idle(s models.Snapshot) bool { return !s.InFlight }

func startChat(t *testing.T, m Model) Model {
	t.Helper()
	m, cmd := press(t, m, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("starting a chat should return a subscription command")
	}
	updated, _ := m.Update(cmd())
	return updated.(Model)
}

func submit(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.textarea.SetValue(text)
	m, _ = press(t, m, tea.KeyEnter)
	return m
}

func TestView_Welcome(t *testing.T) {
	m := newTestModel(t, replyWith("hi"), imageWith("", nil))

	view := m.View()
	for _, want := range []string{guide.AppTitle, guide.WelcomeHeading, guide.BeginLabel} {
		if !strings.Contains(view, want) {
			t.Errorf("welcome view missing %q", want)
		}
	}
}

func TestView_NotReady(t *testing.T) {
	m := NewModel(session.New(replyWith("hi"), imageWith("", nil)))
	if !strings.Contains(m.View(), "Initializing") {
		t.Errorf("View() before sizing = %q", m.View())
	}
}

func TestStartChat_ShowsGreeting(t *testing.T) {
	m := newTestModel(t, replyWith("hi"), imageWith("", nil))
	m = startChat(t, m)

	if m.sess.Screen() != session.ScreenChat {
		t.Fatalf("Screen() = %v, want chat", m.sess.Screen())
	}
	if len(m.snap.Messages) != 1 || m.snap.Messages[0].Text != models.GreetingText {
		t.Fatalf("snapshot = %+v, want the greeting", m.snap)
	}
	if !strings.Contains(m.View(), guide.ChatHeader) {
		t.Error("chat view should show the guide header")
	}
	if !m.textarea.Focused() {
		t.Error("input should be focused on the chat screen")
	}
}

func TestSubmit_TextOnly(t *testing.T) {
	m := newTestModel(t, replyWith("**Chittara** uses red earth."), imageWith("", nil))
	m = startChat(t, m)
	m = submit(t, m, "  what is chittara?  ")

	if m.textarea.Value() != "" {
		t.Error("input should be cleared after a submission")
	}
	m = pump(t, m, func(s models.Snapshot) bool { return len(s.Messages) == 3 && idle(s) })

	if got := m.snap.Messages[1]; got.Role != models.RoleUser || got.Text != "what is chittara?" {
		t.Errorf("user message = %+v", got)
	}
	if got := m.snap.Messages[2]; got.Role != models.RoleModel || got.ImagePending {
		t.Errorf("guide message = %+v", got)
	}
	if !strings.Contains(m.viewport.View(), "red earth") {
		t.Error("viewport should show the guide reply")
	}
}

func TestSubmit_Blank(t *testing.T) {
	m := newTestModel(t, replyWith("hi"), imageWith("", nil))
	m = startChat(t, m)
	m = submit(t, m, "   ")

	if m.err != nil {
		t.Errorf("blank input should be ignored quietly, got %v", m.err)
	}
	if len(m.sess.Snapshot().Messages) != 1 {
		t.Error("blank input should not add messages")
	}
}

func TestSubmit_ImageFlow(t *testing.T) {
	gate := make(chan struct{})
	image := conversation.ImageFunc(func(context.Context, string) (string, error) {
		<-gate
		return backend.DataURI("image/png", []byte("png")), nil
	})

	m := newTestModel(t, replyWith("Here it is. "+"[PROMPT]: a peacock on a wall"), image)
	m = startChat(t, m)
	m = submit(t, m, "show me a peacock")

	m = pump(t, m, func(s models.Snapshot) bool { return s.PendingImage() })
	if !strings.Contains(m.View(), guide.GeneratingImage) {
		t.Error("pending image should show the generating notice")
	}
	if !m.snap.InFlight {
		t.Error("submission should stay in flight during the image stage")
	}

	// Input is disabled while in flight
	m = submit(t, m, "another question")
	if m.err != nil {
		t.Errorf("enter while in flight should be ignored, got %v", m.err)
	}
	m, _ = press(t, m, tea.KeySpace)
	if m.textarea.Value() != "another question" {
		t.Errorf("typing while in flight should be ignored, value = %q", m.textarea.Value())
	}

	close(gate)
	m = pump(t, m, idle)

	last, _ := m.snap.Last()
	if !last.HasImage() {
		t.Fatalf("last message = %+v, want an image", last)
	}
	if !strings.Contains(m.viewport.View(), "image/png, 3 B") {
		t.Errorf("viewport should describe the image, got %q", m.viewport.View())
	}
}

func TestSubmit_ImageFailure(t *testing.T) {
	m := newTestModel(t,
		replyWith("Imagine this. [PROMPT]: kinnala toys"),
		imageWith("", apierrors.NewBlockedError("prompt rejected by safety filter")),
	)
	m = startChat(t, m)
	m = submit(t, m, "draw kinnala toys")
	m = pump(t, m, func(s models.Snapshot) bool { return len(s.Messages) == 3 && idle(s) })

	view := m.viewport.View()
	if !strings.Contains(view, guide.ImageFailedTitle) {
		t.Error("failed image should show the failure title")
	}
	if !strings.Contains(view, "Imagine this.") {
		t.Error("display text should stay visible after an image failure")
	}
}

func TestSubmit_TextFailure(t *testing.T) {
	text := conversation.TextFunc(func(context.Context, string) (string, error) {
		return "", errors.New("quota exhausted")
	})
	m := newTestModel(t, text, imageWith("", nil))
	m = startChat(t, m)
	m = submit(t, m, "hello")
	m = pump(t, m, func(s models.Snapshot) bool { return len(s.Messages) == 3 && idle(s) })

	view := m.viewport.View()
	if !strings.Contains(view, models.ApologyText) {
		t.Error("text failure should show the apology")
	}
	if strings.Contains(view, guide.ImageFailedTitle) {
		t.Error("text failure should not use the image failure box")
	}
}

func TestExit_ReturnsToWelcome(t *testing.T) {
	m := newTestModel(t, replyWith("hi"), imageWith("", nil))
	m = startChat(t, m)
	oldGen := m.gen

	m, _ = press(t, m, tea.KeyEsc)
	if m.sess.Screen() != session.ScreenWelcome {
		t.Fatalf("Screen() = %v, want welcome", m.sess.Screen())
	}
	if len(m.snap.Messages) != 0 {
		t.Error("exit should clear the shown messages")
	}

	// A late update from the old conversation is dropped
	stale := snapshotMsg{gen: oldGen, ok: true, snap: models.Snapshot{Messages: []models.Message{{Text: "late"}}}}
	updated, _ := m.Update(stale)
	if got := updated.(Model); len(got.snap.Messages) != 0 {
		t.Error("stale snapshot should be ignored")
	}

	// Starting again gives a fresh conversation
	m = startChat(t, m)
	if len(m.snap.Messages) != 1 {
		t.Errorf("restarted chat has %d messages, want 1", len(m.snap.Messages))
	}
}

func TestSlashCommands(t *testing.T) {
	m := newTestModel(t, replyWith("hi"), imageWith("", nil))
	m = startChat(t, m)
	m = submit(t, m, "/exit")
	if m.sess.Screen() != session.ScreenWelcome {
		t.Error("/exit should return to the welcome screen")
	}

	m = startChat(t, m)
	m.textarea.SetValue("/quit")
	_, cmd := press(t, m, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("/quit should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("/quit should quit")
	}
}

func TestCtrlC_Quits(t *testing.T) {
	m := newTestModel(t, replyWith("hi"), imageWith("", nil))
	m = startChat(t, m)

	m, cmd := press(t, m, tea.KeyCtrlC)
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit")
	}
	if m.sess.Screen() != session.ScreenWelcome {
		t.Error("quitting should exit the chat")
	}
}

func TestCopyLatestImage(t *testing.T) {
	var copied string
	clip := WithClipboard(func(s string) error {
		copied = s
		return nil
	})

	m := newTestModel(t, replyWith("Look. [PROMPT]: hampi"), imageWith("https://example.com/hampi.png", nil), clip)
	m = startChat(t, m)

	m, _ = press(t, m, tea.KeyCtrlY)
	if m.notice != "No image to copy yet" || copied != "" {
		t.Errorf("notice = %q, copied = %q", m.notice, copied)
	}

	m = submit(t, m, "show me hampi")
	m = pump(t, m, func(s models.Snapshot) bool { return len(s.Messages) == 3 && idle(s) })

	m, _ = press(t, m, tea.KeyCtrlY)
	if copied != "https://example.com/hampi.png" {
		t.Errorf("copied = %q", copied)
	}
	if !strings.Contains(m.View(), "copied to clipboard") {
		t.Error("view should confirm the copy")
	}
}

func TestCopyLatestImage_Error(t *testing.T) {
	m := newTestModel(t, replyWith("hi"), imageWith("", nil), WithClipboard(func(string) error {
		return errors.New("no clipboard utility")
	}))
	m.snap = models.Snapshot{Messages: []models.Message{{Role: models.RoleModel, ImageRef: "https://x/y.png"}}}

	m.copyLatestImage()
	if m.err == nil || !strings.Contains(m.err.Error(), "no clipboard utility") {
		t.Errorf("err = %v", m.err)
	}
}

func TestDescribeImage(t *testing.T) {
	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"url", "https://example.com/a.png", "https://example.com/a.png"},
		{"data uri", backend.DataURI("image/jpeg", make([]byte, 2048)), "image/jpeg, 2.0 KB"},
		{"broken data uri", "data:image/png;base64,@@@", "inline image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeImage(tt.ref); !strings.Contains(got, tt.want) {
				t.Errorf("describeImage() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestFormatSize(t *testing.T) {
	tests := map[int]string{
		12:      "12 B",
		1536:    "1.5 KB",
		3 << 20: "3.0 MB",
	}
	for n, want := range tests {
		if got := formatSize(n); got != want {
			t.Errorf("formatSize(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatError(t *testing.T) {
	if FormatError(nil) != "" {
		t.Error("FormatError(nil) should be empty")
	}

	tests := []struct {
		name string
		err  error
		want []string
	}{
		{"auth", apierrors.NewAuthError("cookies expired"), []string{"cookies expired", "auto-login"}},
		{"api status", apierrors.NewAPIError(503, "https://example.com/gen", "unavailable"), []string{"HTTP Status: 503", "Endpoint: https://example.com/gen"}},
		{"with body", apierrors.NewAPIErrorWithBody(400, "e", "bad", "detail body"), []string{"detail body"}},
		{"timeout", apierrors.NewTimeoutError("generate"), []string{"timed out"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatError(tt.err)
			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("FormatError() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestUpdateTheme(t *testing.T) {
	defer func() {
		render.SetTUITheme(render.LateriteTheme.Name)
		UpdateTheme()
	}()

	render.SetTUITheme(render.TokyoNightTheme.Name)
	UpdateTheme()
	if colorPrimary != render.TokyoNightTheme.Primary {
		t.Errorf("colorPrimary = %v, want %v", colorPrimary, render.TokyoNightTheme.Primary)
	}
}
