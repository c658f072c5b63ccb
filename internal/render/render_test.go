package render

import (
	"strings"
	"sync"
	"testing"

	"github.com/diogo/muralguide/internal/config"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts.Width != 80 {
		t.Errorf("expected Width=80, got %d", opts.Width)
	}
	if opts.Style != StyleDark {
		t.Errorf("expected Style=%q, got %q", StyleDark, opts.Style)
	}
	if !opts.EnableEmoji || !opts.PreserveNewLines || !opts.TableWrap {
		t.Errorf("unexpected defaults: %+v", opts)
	}
	if opts.InlineTableLinks {
		t.Error("expected InlineTableLinks=false")
	}
}

func TestOptionsChaining(t *testing.T) {
	opts := DefaultOptions().WithWidth(100).WithStyle(StyleLight)
	if opts.Width != 100 || opts.Style != StyleLight {
		t.Errorf("chained options = %+v", opts)
	}
	if DefaultOptions().Width != 80 {
		t.Error("With* should not modify the receiver")
	}
}

func TestFromConfig(t *testing.T) {
	t.Setenv("GLAMOUR_STYLE", "")
	md := config.MarkdownConfig{Style: StyleDracula, EnableEmoji: false, InlineTableLinks: true}

	opts := FromConfig(md)
	if opts.Style != StyleDracula || opts.EnableEmoji || !opts.InlineTableLinks || opts.TableWrap {
		t.Errorf("FromConfig() = %+v", opts)
	}

	if got := FromConfig(config.MarkdownConfig{}).Style; got != StyleDark {
		t.Errorf("empty style should keep the default, got %q", got)
	}

	t.Setenv("GLAMOUR_STYLE", StyleASCII)
	if got := FromConfig(md).Style; got != StyleASCII {
		t.Errorf("GLAMOUR_STYLE should win, got %q", got)
	}
}

func TestGlamourStyle(t *testing.T) {
	tests := map[string]string{
		"":              StyleDark,
		StyleTokyoNight: "tokyo-night",
		StyleLight:      StyleLight,
		"/tmp/x.json":   "/tmp/x.json",
	}
	for in, want := range tests {
		if got := glamourStyle(in); got != want {
			t.Errorf("glamourStyle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMarkdown(t *testing.T) {
	for _, style := range Styles() {
		t.Run(style, func(t *testing.T) {
			out, err := Markdown("# Chittara\n\nRice paste on **red earth**.", DefaultOptions().WithStyle(style))
			if err != nil {
				t.Fatalf("Markdown() error = %v", err)
			}
			if !strings.Contains(out, "Chittara") || !strings.Contains(out, "red earth") {
				t.Errorf("Markdown() = %q", out)
			}
			if strings.HasSuffix(out, "\n") {
				t.Error("trailing newlines should be trimmed")
			}
		})
	}
}

func TestMarkdownOrPlain(t *testing.T) {
	content := "plain *text*"
	if got := MarkdownOrPlain(content, DefaultOptions().WithStyle("/nonexistent/style.json")); got != content {
		t.Errorf("MarkdownOrPlain() = %q, want the raw text", got)
	}
}

func TestCacheKey(t *testing.T) {
	a := DefaultOptions()
	if cacheKey(a) != cacheKey(DefaultOptions()) {
		t.Error("same options should produce the same key")
	}
	if cacheKey(a) == cacheKey(a.WithWidth(100)) {
		t.Error("different widths should produce different keys")
	}
	if cacheKey(a) == cacheKey(a.WithStyle(StyleLight)) {
		t.Error("different styles should produce different keys")
	}
}

func TestPoolReuse(t *testing.T) {
	ClearCache()
	defer ClearCache()

	opts := DefaultOptions().WithStyle(StylePlain)
	r, err := globalPool.get(opts)
	if err != nil || r == nil {
		t.Fatalf("get() = %v, %v", r, err)
	}
	globalPool.put(opts, r)
	globalPool.put(opts, nil)

	if CacheSize() != 1 {
		t.Errorf("CacheSize() = %d, want 1", CacheSize())
	}
}

func TestMarkdown_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Markdown("**Hampi**", DefaultOptions().WithStyle(StylePlain)); err != nil {
				t.Errorf("Markdown() error = %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestTUIThemes(t *testing.T) {
	defer SetTUITheme(LateriteTheme.Name)

	if GetTUITheme().Name != LateriteTheme.Name {
		t.Errorf("default theme = %q", GetTUITheme().Name)
	}
	if !SetTUITheme("tokyonight") || GetTUITheme().Name != "tokyonight" {
		t.Error("SetTUITheme(tokyonight) failed")
	}
	if SetTUITheme("nope") {
		t.Error("SetTUITheme(nope) should fail")
	}
	if GetTUITheme().Name != "tokyonight" {
		t.Error("a failed SetTUITheme should keep the current theme")
	}
	for _, th := range AvailableTUIThemes() {
		if th.Primary == "" || th.Text == "" {
			t.Errorf("theme %q has empty colors", th.Name)
		}
	}
}
