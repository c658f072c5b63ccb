package render

import "strings"

// Style names understood by Markdown besides JSON style paths.
const (
	StyleDark       = "dark"
	StyleLight      = "light"
	StyleTokyoNight = "tokyonight"
	StyleDracula    = "dracula"
	StylePlain      = "notty"
	StyleASCII      = "ascii"
)

// glamourStyle maps our style names onto glamour's standard style names.
func glamourStyle(style string) string {
	switch style {
	case "":
		return StyleDark
	case StyleTokyoNight:
		return "tokyo-night"
	default:
		return style
	}
}

// Styles returns the built-in style names.
func Styles() []string {
	return []string{StyleDark, StyleLight, StyleTokyoNight, StyleDracula, StylePlain, StyleASCII}
}

// Markdown renders markdown content for terminal display.
func Markdown(content string, opts Options) (string, error) {
	renderer, err := globalPool.get(opts)
	if err != nil {
		return "", err
	}
	defer globalPool.put(opts, renderer)

	out, err := renderer.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// MarkdownOrPlain renders content, falling back to the raw text when the
// renderer fails.
func MarkdownOrPlain(content string, opts Options) string {
	out, err := Markdown(content, opts)
	if err != nil {
		return content
	}
	return out
}
