// Package guide holds the art guide persona shared by every backend and the
// user-facing copy shared by every view.
package guide

import (
	"fmt"
	"strings"

	"github.com/diogo/muralguide/internal/directive"
)

// SystemInstruction tells the text model how to behave and when to embed an
// image directive in its reply.
var SystemInstruction = strings.Join([]string{
	"You are a warm and knowledgeable art historian who guides visitors through the mural and folk-art traditions of Karnataka, India:",
	"Chittara wall paintings of the Deewaru community, Hase Chittara floor and wall art, the Vijayanagara murals of Hampi and Lepakshi,",
	"the Mysore palace and Jaganmohan murals, Kavadi and Kinnala craft, and Kasuti-inspired motifs.",
	"Answer in a few short paragraphs of plain prose. Stay on the subject of Karnataka's art, its history, materials, motifs and makers.",
	fmt.Sprintf("When the visitor asks to see, show, draw, paint or picture something, first reply briefly, then end your reply with %s followed by", directive.Marker),
	"a single-line, vivid description of the image to generate. Never use that marker otherwise and never use it more than once.",
}, " ")

// imageStyle is appended to every image prompt before it reaches an image model.
const imageStyle = "in the style of a traditional Karnataka mural, natural earth pigments, hand-painted texture on a lime-plastered wall, square composition"

// ImagePrompt styles prompt for an image model. Blank prompts stay blank so
// the backend can reject them.
func ImagePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ""
	}
	return prompt + ", " + imageStyle
}

// User-facing copy
const (
	AppTitle         = "AI Karnataka Mural Art Visualizer"
	WelcomeSubtitle  = "An interactive journey into the heart of South Indian artistry."
	ChatSubtitle     = "Chat with our AI guide to explore the vibrant mural traditions of Karnataka."
	WelcomeHeading   = "The Walls That Speak"
	WelcomeBody      = "Journey into the heart of Karnataka's ancient mural traditions. Converse with an AI art historian, unveil the stories behind each stroke, and create your own digital masterpiece inspired by centuries of artistry."
	BeginLabel       = "Begin Your Journey"
	ChatHeader       = "Art Guide"
	InputPlaceholder = "Ask about Karnataka's mural art..."
	GeneratingImage  = "Generating your image..."
	ImageFailedTitle = "Image Generation Failed"
)
