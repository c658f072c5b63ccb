package webgemini

import (
	"fmt"
	"sort"
)

// Endpoints for the Gemini Web API
const (
	EndpointInit          = "https://gemini.google.com/app"
	EndpointGenerate      = "https://gemini.google.com/_/BardChatUi/data/assistant.lamda.BardFrontendService/StreamGenerate"
	EndpointRotateCookies = "https://accounts.google.com/RotateCookies"
)

const modelHeader = "x-goog-ext-525001261-jspb"

// Model is a Gemini Web model and the headers that select it
type Model struct {
	Name   string
	Header map[string]string
}

var (
	// ModelUnspecified lets the server pick its default model
	ModelUnspecified = Model{Name: "unspecified"}

	Model25Flash = Model{
		Name: "gemini-2.5-flash",
		Header: map[string]string{
			modelHeader: `[1,null,null,null,"71c2d248d3b102ff",null,null,0,[4],null,null,2]`,
		},
	}

	Model30Pro = Model{
		Name: "gemini-3.0-pro",
		Header: map[string]string{
			modelHeader: `[1,null,null,null,"e6fa609c3fa255c0",null,null,0,[4],null,null,2]`,
		},
	}
)

var knownModels = map[string]Model{
	ModelUnspecified.Name: ModelUnspecified,
	Model25Flash.Name:     Model25Flash,
	Model30Pro.Name:       Model30Pro,
}

// ModelNames lists the selectable model names
func ModelNames() []string {
	names := make([]string, 0, len(knownModels))
	for name := range knownModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ModelFromName resolves a model name. An empty name selects Model25Flash.
func ModelFromName(name string) (Model, error) {
	if name == "" {
		return Model25Flash, nil
	}
	m, ok := knownModels[name]
	if !ok {
		return Model{}, fmt.Errorf("unknown Gemini Web model %q (available: %v)", name, ModelNames())
	}
	return m, nil
}

// defaultHeaders returns the browser-like headers sent with every request
func defaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type":              "application/x-www-form-urlencoded;charset=utf-8",
		"Host":                      "gemini.google.com",
		"Origin":                    "https://gemini.google.com",
		"Referer":                   "https://gemini.google.com/",
		"User-Agent":                "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
		"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		"Accept-Language":           "en-US,en;q=0.9",
		"Sec-CH-UA":                 `"Google Chrome";v="133", "Chromium";v="133", "Not_A Brand";v="24"`,
		"Sec-CH-UA-Mobile":          "?0",
		"Sec-CH-UA-Platform":        `"Linux"`,
		"Sec-Fetch-Site":            "same-origin",
		"Sec-Fetch-Mode":            "navigate",
		"Sec-Fetch-Dest":            "document",
		"Upgrade-Insecure-Requests": "1",
		"X-Same-Domain":             "1",
		"x-goog-ext-73010989-jspb":  "[0]",
	}
}

// GJSON paths into the StreamGenerate response.
const (
	PathBody      = "2"
	PathCandList  = "4"
	PathMetadata  = "1"
	PathErrorCode = "0.5.2.0.1.0"

	// simple error frames carry the code at [0][5][0]
	PathAltErrorCode = "0.5.0"

	// relative to a candidate
	PathCandRCID      = "0"
	PathCandText      = "1.0"
	PathCandTextAlt   = "22.0"
	PathCandGenImages = "12.7.0"

	// relative to a generated image
	PathGenImgURL  = "0.3.3"
	PathGenImgNum  = "3.6"
	PathGenImgAlts = "3.5"
)

// generatedImage is an image produced by the model
type generatedImage struct {
	URL   string
	Title string
	Alt   string
}

type candidate struct {
	RCID   string
	Text   string
	Images []generatedImage
}

// output is a parsed StreamGenerate reply
type output struct {
	Metadata   []string
	Candidates []candidate
}

// chosen returns the first candidate
func (o *output) chosen() *candidate {
	if o == nil || len(o.Candidates) == 0 {
		return nil
	}
	return &o.Candidates[0]
}
