package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/muralguide/internal/backend"
	"github.com/diogo/muralguide/internal/guide"
	"github.com/diogo/muralguide/internal/models"
	"github.com/diogo/muralguide/internal/render"
	"github.com/diogo/muralguide/internal/session"
)

// Animation tick message
type animationTickMsg time.Time

// snapshotMsg carries a conversation update into the Bubble Tea loop. gen
// ties it to the subscription that produced it so updates from a
// conversation the user already left are dropped.
type snapshotMsg struct {
	gen  int
	snap models.Snapshot
	ok   bool
}

// Model represents the TUI state
type Model struct {
	sess        *session.Session
	ctx         context.Context
	backendName string
	renderOpts  render.Options
	copyFn      func(string) error

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// Conversation state
	snap        models.Snapshot
	updates     <-chan models.Snapshot
	unsubscribe func()
	gen         int

	ready          bool
	animating      bool
	animationFrame int
	err            error
	notice         string

	// Dimensions
	width  int
	height int
}

// Option configures the TUI model
type Option func(*Model)

// WithBackendName shows the active backend in the chat header
func WithBackendName(name string) Option {
	return func(m *Model) {
		m.backendName = name
	}
}

// WithRenderOptions sets the markdown options used for guide replies
func WithRenderOptions(opts render.Options) Option {
	return func(m *Model) {
		m.renderOpts = opts
	}
}

// WithClipboard replaces the function used by the copy-image shortcut
func WithClipboard(copyFn func(string) error) Option {
	return func(m *Model) {
		if copyFn != nil {
			m.copyFn = copyFn
		}
	}
}

// WithContext sets the context passed along with every submission
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// NewModel creates the TUI model for sess, starting on the welcome screen
func NewModel(sess *session.Session, opts ...Option) Model {
	ta := textarea.New()
	ta.Placeholder = guide.InputPlaceholder
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	m := Model{
		sess:       sess,
		ctx:        context.Background(),
		renderOpts: render.DefaultOptions(),
		copyFn:     clipboard.WriteAll,
		textarea:   ta,
		spinner:    s,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
	)
}

// animationTick returns a command that sends animation tick messages
func animationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// waitForSnapshot blocks on the subscription and turns the next snapshot
// into a message
func waitForSnapshot(ch <-chan models.Snapshot, gen int) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		return snapshotMsg{gen: gen, snap: snap, ok: ok}
	}
}

func (m Model) chatting() bool {
	return m.sess.Screen() == session.ScreenChat
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4
		inputHeight := 6
		statusHeight := 1
		padding := 2

		vpHeight := m.height - headerHeight - inputHeight - statusHeight - padding
		if vpHeight < 5 {
			vpHeight = 5
		}

		contentWidth := m.width - 4

		if !m.ready {
			m.viewport = viewport.New(contentWidth, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(contentWidth - 4)
		m.updateViewport()

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.leaveChat()
			return m, tea.Quit
		}
		if !m.chatting() {
			return m.updateWelcome(msg)
		}
		return m.updateChat(msg)

	case snapshotMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		if !msg.ok {
			m.updates = nil
			return m, nil
		}
		m.snap = msg.snap
		m.updateViewport()
		m.viewport.GotoBottom()
		cmds = append(cmds, waitForSnapshot(m.updates, m.gen))
		if m.snap.InFlight && !m.animating {
			m.animating = true
			cmds = append(cmds, m.spinner.Tick, animationTick())
		}

	case spinner.TickMsg:
		if m.snap.InFlight {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
			if m.snap.PendingImage() {
				m.updateViewport()
			}
		}

	case animationTickMsg:
		if m.snap.InFlight {
			m.animationFrame++
			cmds = append(cmds, animationTick())
		} else {
			m.animating = false
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) updateWelcome(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m.startChat()
	case "esc", "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.leaveChat()
		return m, nil

	case "ctrl+y":
		m.copyLatestImage()
		return m, nil

	case "enter":
		if m.snap.InFlight {
			return m, nil
		}
		return m.submit()
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd

	// Input is disabled while a submission is in flight
	if !m.snap.InFlight {
		m.textarea, cmd = m.textarea.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// startChat switches to the chat screen and subscribes to the new
// conversation
func (m Model) startChat() (tea.Model, tea.Cmd) {
	conv, err := m.sess.Start()
	if err != nil {
		m.err = err
		return m, nil
	}

	ch, cancel := conv.Subscribe()
	m.gen++
	m.updates = ch
	m.unsubscribe = cancel
	m.err = nil
	m.notice = ""
	m.textarea.Reset()
	m.textarea.Focus()
	return m, waitForSnapshot(m.updates, m.gen)
}

// leaveChat drops the conversation and returns to the welcome screen
func (m *Model) leaveChat() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.updates = nil
	m.gen++
	m.sess.Exit()

	m.snap = models.Snapshot{}
	m.err = nil
	m.notice = ""
	m.animating = false
	m.textarea.Reset()
	m.textarea.Blur()
	m.updateViewport()
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	switch input {
	case "":
		return m, nil
	case "/exit":
		m.leaveChat()
		return m, nil
	case "/quit":
		m.leaveChat()
		return m, tea.Quit
	}

	if _, err := m.sess.Submit(m.ctx, input); err != nil {
		m.err = err
		return m, nil
	}

	m.err = nil
	m.notice = ""
	m.animationFrame = 0
	m.textarea.Reset()
	return m, nil
}

func (m *Model) copyLatestImage() {
	ref, ok := m.snap.LatestImage()
	if !ok {
		m.notice = "No image to copy yet"
		return
	}
	if err := m.copyFn(ref); err != nil {
		m.err = fmt.Errorf("copy image: %w", err)
		return
	}
	m.notice = "Image reference copied to clipboard"
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}
	if !m.chatting() {
		return m.renderWelcome()
	}

	var sections []string
	contentWidth := m.width - 4

	// Header
	headerParts := []string{
		titleStyle.Render("✦ " + guide.AppTitle),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(guide.ChatHeader),
	}
	if m.backendName != "" {
		headerParts = append(headerParts,
			hintStyle.Render("  •  "),
			subtitleStyle.Render(m.backendName),
		)
	}
	headerContent := lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Center, headerParts...),
		hintStyle.Render(guide.ChatSubtitle),
	)
	sections = append(sections, headerStyle.Width(contentWidth).Render(headerContent))

	// Messages
	messagesPanel := messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(m.viewport.View())
	sections = append(sections, messagesPanel)

	// Input
	var inputContent string
	if m.snap.InFlight {
		inputContent = m.renderLoadingAnimation()
	} else {
		inputContent = lipgloss.JoinVertical(
			lipgloss.Left,
			inputLabelStyle.Render("You"),
			m.textarea.View(),
		)
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(inputContent))

	sections = append(sections, m.renderStatusBar(contentWidth))

	if m.notice != "" {
		sections = append(sections, noticeStyle.Render("  "+m.notice))
	}
	if m.err != nil {
		sections = append(sections, errorStyle.Render(fmt.Sprintf("⚠ %v", m.err)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderWelcome renders the landing screen shown before a chat starts
func (m Model) renderWelcome() string {
	width := m.width - 8
	if width < 40 {
		width = 40
	}

	icon := welcomeIconStyle.Width(width).Align(lipgloss.Center).Render("✦")
	title := welcomeTitleStyle.Width(width).Align(lipgloss.Center).Render(guide.AppTitle)
	subtitle := subtitleStyle.Width(width).Align(lipgloss.Center).Render(guide.WelcomeSubtitle)
	body := welcomeStyle.Width(width).Render(lipgloss.JoinVertical(
		lipgloss.Center,
		welcomeHeadingStyle.Render(guide.WelcomeHeading),
		"",
		lipgloss.NewStyle().Foreground(colorText).Width(width-6).Align(lipgloss.Center).Render(guide.WelcomeBody),
		"",
		beginButtonStyle.Render(guide.BeginLabel),
	))
	hint := hintStyle.Width(width).Align(lipgloss.Center).Render("Enter to begin  │  Esc to quit")

	sections := []string{"", icon, title, subtitle, "", body, hint}
	if m.err != nil {
		sections = append(sections, errorStyle.Width(width).Align(lipgloss.Center).Render(fmt.Sprintf("⚠ %v", m.err)))
	}
	content := lipgloss.JoinVertical(lipgloss.Center, sections...)

	topPadding := (m.height - lipgloss.Height(content)) / 2
	if topPadding < 0 {
		topPadding = 0
	}
	return strings.Repeat("\n", topPadding) + content
}

// renderLoadingAnimation renders a colorful animated loading indicator
func (m Model) renderLoadingAnimation() string {
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}
	barChars := []string{"█", "█", "█", "█", "█", "█", "█", "█", "▓", "▒", "░"}

	frame := m.animationFrame

	spinIdx := frame % len(chars)
	spinColor := gradientColors[frame%len(gradientColors)]
	spin := lipgloss.NewStyle().Foreground(spinColor).Bold(true).Render(chars[spinIdx])

	barWidth := 20
	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		colorIdx := (i + frame) % len(gradientColors)
		charIdx := (i + frame/2) % len(barChars)
		style := lipgloss.NewStyle().Foreground(gradientColors[colorIdx])
		bar.WriteString(style.Render(barChars[charIdx]))
	}

	dots := ""
	numDots := (frame / 3) % 4
	for i := 0; i < numDots; i++ {
		dotColor := gradientColors[(frame+i)%len(gradientColors)]
		dots += lipgloss.NewStyle().Foreground(dotColor).Render("●")
	}
	for i := numDots; i < 3; i++ {
		dots += lipgloss.NewStyle().Foreground(colorTextMute).Render("○")
	}

	label := " The guide is thinking "
	if m.snap.PendingImage() {
		label = " " + guide.GeneratingImage + " "
	}
	text := lipgloss.NewStyle().Foreground(colorText).Render(label)

	return fmt.Sprintf("%s %s %s %s", spin, bar.String(), text, dots)
}

// renderStatusBar renders the bottom status bar with shortcuts
func (m Model) renderStatusBar(width int) string {
	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"Esc", "Back"},
		{"Ctrl+Y", "Copy image"},
		{"↑↓", "Scroll"},
		{"Ctrl+C", "Quit"},
	}

	var items []string
	for _, s := range shortcuts {
		items = append(items, lipgloss.JoinHorizontal(
			lipgloss.Center,
			statusKeyStyle.Render(s.key),
			statusDescStyle.Render(" "+s.desc),
		))
	}

	bar := lipgloss.JoinHorizontal(lipgloss.Center, strings.Join(items, "  │  "))
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(bar)
}

// updateViewport refreshes the viewport content with styled messages
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}

	var content strings.Builder
	bubbleWidth := m.viewport.Width - 6

	for i, msg := range m.snap.Messages {
		if i > 0 {
			content.WriteString("\n")
		}

		if msg.Role == models.RoleUser {
			label := userLabelStyle.Render("⬤ You")
			bubble := userBubbleStyle.Width(bubbleWidth).Render(msg.Text)
			content.WriteString(label + "\n" + bubble + "\n")
			continue
		}

		content.WriteString(guideLabelStyle.Render("✦ "+guide.ChatHeader) + "\n")
		if msg.Text != "" {
			rendered := render.MarkdownOrPlain(msg.Text, m.renderOpts.WithWidth(bubbleWidth-4))
			content.WriteString(guideBubbleStyle.Width(bubbleWidth).Render(rendered) + "\n")
		}
		if section := m.renderImageSection(msg, bubbleWidth); section != "" {
			content.WriteString(section + "\n")
		}
	}

	m.viewport.SetContent(content.String())
}

// renderImageSection renders the image state attached to a guide message
func (m Model) renderImageSection(msg models.Message, width int) string {
	switch {
	case msg.ImagePending:
		return imageSectionStyle.Render(m.spinner.View() + " " + imagePendingStyle.Render(guide.GeneratingImage))
	case msg.HasImage():
		return imageSectionStyle.Render(describeImage(msg.ImageRef))
	case msg.Failed() && msg.Text == models.ApologyText:
		return apologyDetailStyle.Render(msg.Error)
	case msg.Failed():
		return imageFailedStyle.Width(width).Render(
			imageFailedTitle.Render(guide.ImageFailedTitle) + "\n" + msg.Error,
		)
	}
	return ""
}

// describeImage summarizes an image reference; inline data is far too long
// to print
func describeImage(ref string) string {
	if !backend.IsDataURI(ref) {
		return "🖼 " + imageRefStyle.Render(ref)
	}
	mimeType, data, err := backend.ParseDataURI(ref)
	if err != nil {
		return "🖼 inline image " + hintStyle.Render("(Ctrl+Y to copy)")
	}
	return fmt.Sprintf("🖼 %s %s", imageRefStyle.Render(fmt.Sprintf("%s, %s", mimeType, formatSize(len(data)))),
		hintStyle.Render("(Ctrl+Y to copy)"))
}

func formatSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

// Run starts the TUI for sess and blocks until the user quits
func Run(sess *session.Session, opts ...Option) error {
	p := tea.NewProgram(
		NewModel(sess, opts...),
		tea.WithAltScreen(),
	)

	_, err := p.Run()
	sess.Exit()
	return err
}
