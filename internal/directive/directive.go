// Package directive splits a guide reply into display text and an optional
// image prompt.
//
// A reply asks for an illustration by embedding the marker followed by the
// image description:
//
//	A Chittara painting uses rice-paste white on red earth. [PROMPT]: a Chittara wall painting
package directive

import "strings"

// Marker introduces the image prompt inside a reply.
const Marker = "[PROMPT]:"

// Result is the outcome of parsing one reply.
type Result struct {
	// Text is the portion shown to the user.
	Text string
	// ImagePrompt is the description sent to the image service.
	ImagePrompt string
	// HasImage is true whenever the marker was present, even with an empty prompt.
	HasImage bool
}

// Parse splits reply at the first occurrence of Marker. Both halves are
// trimmed; later markers stay verbatim inside the prompt.
func Parse(reply string) Result {
	head, tail, found := strings.Cut(reply, Marker)
	if !found {
		return Result{Text: strings.TrimSpace(reply)}
	}
	return Result{
		Text:        strings.TrimSpace(head),
		ImagePrompt: strings.TrimSpace(tail),
		HasImage:    true,
	}
}

// Format builds a reply carrying an image prompt. It is the inverse of Parse
// for replies whose text does not contain Marker.
func Format(text, prompt string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return Marker + " " + prompt
	}
	return text + " " + Marker + " " + prompt
}
