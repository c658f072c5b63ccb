// Package stub is an offline backend. It answers from a small set of facts
// and draws placeholder images, so the guide can run without credentials.
package stub

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/diogo/muralguide/internal/backend"
	"github.com/diogo/muralguide/internal/conversation"
	"github.com/diogo/muralguide/internal/directive"
)

// Name identifies this backend in errors and logs.
const Name = "stub"

// topic is one tradition the stub can talk about
type topic struct {
	keywords []string
	fact     string
	subject  string
}

var topics = []topic{
	{
		keywords: []string{"chittara", "deewaru"},
		fact:     "Chittara is painted by women of the Deewaru community in the Malnad region. Rice-paste white, red earth, and black from burnt rice are laid on mud walls in tight geometric grids that mark weddings and harvests.",
		subject:  "a Chittara wall painting with rice-paste white geometric grids on red earth",
	},
	{
		keywords: []string{"hampi", "vijayanagara", "virupaksha"},
		fact:     "The ceiling of the Virupaksha temple at Hampi carries Vijayanagara murals of the 16th century: processions, the wedding of Shiva and Pampa, and scenes from the epics, outlined in black over ochre and green.",
		subject:  "a Vijayanagara ceiling mural from the Virupaksha temple at Hampi showing a royal procession",
	},
	{
		keywords: []string{"lepakshi", "veerabhadra"},
		fact:     "The Veerabhadra temple at Lepakshi holds one of the largest painted ceilings of the Vijayanagara era, with long-eyed figures in profile and textiles rendered in fine detail.",
		subject:  "a Lepakshi ceiling mural with long-eyed figures in profile and patterned textiles",
	},
	{
		keywords: []string{"mysore", "mysuru", "jaganmohan", "palace"},
		fact:     "Mysore painting grew under the Wodeyar court. Gesso work raised in relief and covered in gold leaf gives its gods and court scenes a soft glow, and the Jaganmohan Palace walls still show the style at full scale.",
		subject:  "a Mysore painting of a court scene with gold leaf gesso work",
	},
	{
		keywords: []string{"kasuti", "embroidery", "dharwad"},
		fact:     "Kasuti is a counted-thread embroidery from the Dharwad region. Its gopura towers, chariots and lotus motifs are stitched so the back matches the front, and painters borrow its motifs for borders.",
		subject:  "a mural border of Kasuti motifs with temple towers, chariots and lotuses",
	},
	{
		keywords: []string{"kinnala", "kavadi", "toy"},
		fact:     "Kinnala craftsmen carve light wood, coat it in tamarind-seed paste and paint it with bright natural colours. The same families once painted temple chariots and the Kavadi shrines carried by storytellers.",
		subject:  "a painted Kinnala wooden shrine with bright natural colours",
	},
}

var general = topic{
	fact:    "Karnataka's walls carry many traditions: Chittara in the Malnad villages, Vijayanagara temple ceilings at Hampi and Lepakshi, and the gilded Mysore style of the Wodeyar court. Ask about any of them, or ask me to show you one.",
	subject: "a traditional Karnataka mural with temple figures in ochre, red and green",
}

var wantsImage = regexp.MustCompile(`(?i)\b(see|show|draw|paint|picture|visuali[sz]e|imagine|illustrate)\b`)

// Client is the offline backend
type Client struct {
	delay  time.Duration
	logger *zap.SugaredLogger
}

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithDelay makes every call wait d first, to mimic a remote model
func WithDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.delay = d
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

// NewClient creates the offline backend
func NewClient(opts ...ClientOption) *Client {
	c := &Client{logger: zap.NewNop().Sugar()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Services returns the client as a conversation service pair
func (c *Client) Services() *backend.Services {
	return &backend.Services{
		Name:  Name,
		Text:  conversation.TextFunc(c.GenerateText),
		Image: conversation.ImageFunc(c.GenerateImage),
	}
}

// GenerateText answers with the fact for the first tradition named in
// userText, and adds an image directive when the visitor asks to see it
func (c *Client) GenerateText(ctx context.Context, userText string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	t := match(userText)
	if !wantsImage.MatchString(userText) {
		return t.fact, nil
	}
	c.logger.Debugw("stub reply with image", "subject", t.subject)
	return directive.Format("Here is how that might look. "+t.fact, t.subject), nil
}

// GenerateImage draws a square placeholder captioned with prompt
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if err := backend.RequirePrompt(prompt); err != nil {
		return "", err
	}
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	return backend.DataURI("image/svg+xml", []byte(placeholderSVG(prompt))), nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return backend.CheckTimeout(ctx, "stub", ctx.Err())
	}
}

func match(text string) topic {
	lower := strings.ToLower(text)
	for _, t := range topics {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				return t
			}
		}
	}
	return general
}

// placeholderSVG renders a square earth-toned frame with the prompt wrapped
// inside it
func placeholderSVG(prompt string) string {
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="512" height="512" viewBox="0 0 512 512">`)
	b.WriteString(`<rect width="512" height="512" fill="#8b3a1a"/>`)
	b.WriteString(`<rect x="24" y="24" width="464" height="464" fill="#e9d8b4" stroke="#1f1a17" stroke-width="6"/>`)
	b.WriteString(`<rect x="44" y="44" width="424" height="424" fill="none" stroke="#b5651d" stroke-width="3" stroke-dasharray="12 6"/>`)
	for i, line := range wrap(prompt, 32, 8) {
		fmt.Fprintf(&b, `<text x="256" y="%d" font-family="serif" font-size="20" fill="#1f1a17" text-anchor="middle">%s</text>`,
			170+i*28, html.EscapeString(line))
	}
	b.WriteString(`</svg>`)
	return b.String()
}

// wrap splits s into at most maxLines lines of roughly width characters
func wrap(s string, width, maxLines int) []string {
	var lines []string
	var cur strings.Builder
	for _, word := range strings.Fields(s) {
		if cur.Len() > 0 && cur.Len()+1+len(word) > width {
			lines = append(lines, cur.String())
			cur.Reset()
			if len(lines) == maxLines {
				lines[maxLines-1] += "..."
				return lines
			}
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
