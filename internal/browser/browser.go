// Package browser reads Gemini Web session cookies out of local browser
// profiles.
package browser

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/browserutils/kooky"
	_ "github.com/browserutils/kooky/browser/chrome"
	_ "github.com/browserutils/kooky/browser/chromium"
	_ "github.com/browserutils/kooky/browser/edge"
	_ "github.com/browserutils/kooky/browser/firefox"
	_ "github.com/browserutils/kooky/browser/opera"

	"github.com/diogo/muralguide/internal/config"
)

// SupportedBrowser represents a supported browser type
type SupportedBrowser string

const (
	BrowserAuto     SupportedBrowser = "auto"
	BrowserChrome   SupportedBrowser = "chrome"
	BrowserChromium SupportedBrowser = "chromium"
	BrowserFirefox  SupportedBrowser = "firefox"
	BrowserEdge     SupportedBrowser = "edge"
	BrowserOpera    SupportedBrowser = "opera"
)

// searchOrder is the order BrowserAuto probes browsers in
var searchOrder = []SupportedBrowser{
	BrowserChrome,
	BrowserFirefox,
	BrowserEdge,
	BrowserChromium,
	BrowserOpera,
}

// AllSupportedBrowsers returns every concrete browser, without BrowserAuto
func AllSupportedBrowsers() []SupportedBrowser {
	out := make([]SupportedBrowser, len(searchOrder))
	copy(out, searchOrder)
	return out
}

func (b SupportedBrowser) String() string {
	return string(b)
}

// ParseBrowser parses a browser name or one of its common aliases
func ParseBrowser(s string) (SupportedBrowser, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto", "":
		return BrowserAuto, nil
	case "chrome", "google-chrome":
		return BrowserChrome, nil
	case "chromium":
		return BrowserChromium, nil
	case "firefox", "mozilla", "mozilla-firefox":
		return BrowserFirefox, nil
	case "edge", "microsoft-edge", "msedge":
		return BrowserEdge, nil
	case "opera":
		return BrowserOpera, nil
	default:
		return "", fmt.Errorf("unsupported browser: %s. Supported: chrome, chromium, firefox, edge, opera", s)
	}
}

// ExtractResult holds cookies found in a browser profile
type ExtractResult struct {
	Cookies     *config.Cookies
	BrowserName string
}

// ExtractGeminiCookies finds the session cookies in browser, or in the first
// browser that has them when browser is BrowserAuto
func ExtractGeminiCookies(ctx context.Context, browser SupportedBrowser) (*ExtractResult, error) {
	if browser != BrowserAuto {
		return extractFromBrowser(ctx, browser)
	}

	var lastErr error
	for _, b := range searchOrder {
		result, err := extractFromBrowser(ctx, b)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, fmt.Errorf("could not find Gemini cookies in any browser: %w", lastErr)
}

// extractFromBrowser tries every profile of browser until one has the cookies
func extractFromBrowser(ctx context.Context, browser SupportedBrowser) (*ExtractResult, error) {
	var matching []kooky.CookieStore
	for _, store := range kooky.FindAllCookieStores(ctx) {
		if matchesBrowser(store.Browser(), browser) {
			matching = append(matching, store)
			continue
		}
		store.Close()
	}
	defer func() {
		for _, store := range matching {
			store.Close()
		}
	}()

	if len(matching) == 0 {
		return nil, fmt.Errorf("browser %s not found or no cookie store available", browser)
	}

	var lastErr error
	for _, store := range matching {
		name := store.Browser()
		if profile := store.Profile(); profile != "" {
			name = fmt.Sprintf("%s (profile: %s)", name, profile)
		}

		cookies, err := pickCookies(ctx, cookiesOnly(store.TraverseCookies(
			kooky.Valid,
			kooky.DomainContains("google.com"),
		).OnlyCookies()))
		if err != nil {
			lastErr = fmt.Errorf("%w in %s. Please ensure you are logged into gemini.google.com", err, name)
			continue
		}
		return &ExtractResult{Cookies: cookies, BrowserName: name}, nil
	}
	return nil, lastErr
}

// matchesBrowser reports whether a kooky browser name belongs to target
func matchesBrowser(browserName string, target SupportedBrowser) bool {
	browserName = strings.ToLower(browserName)

	switch target {
	case BrowserChrome:
		return strings.Contains(browserName, "chrome") && !strings.Contains(browserName, "chromium")
	case BrowserChromium:
		return strings.Contains(browserName, "chromium")
	case BrowserFirefox:
		return strings.Contains(browserName, "firefox")
	case BrowserEdge:
		return strings.Contains(browserName, "edge")
	case BrowserOpera:
		return strings.Contains(browserName, "opera")
	default:
		return false
	}
}

// cookiesOnly adapts a kooky.CookieSeq to an iter.Seq of its cookies
func cookiesOnly(seq kooky.CookieSeq) iter.Seq[*kooky.Cookie] {
	return func(yield func(*kooky.Cookie) bool) {
		for cookie := range seq {
			if !yield(cookie) {
				return
			}
		}
	}
}

// pickCookies collects the session cookies, preferring .google.com over
// regional domains
func pickCookies(ctx context.Context, seq iter.Seq[*kooky.Cookie]) (*config.Cookies, error) {
	var psid, psidts string
	for cookie := range seq {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cookie == nil {
			continue
		}
		preferred := cookie.Domain == ".google.com"
		switch cookie.Name {
		case config.CookiePSID:
			if psid == "" || preferred {
				psid = cookie.Value
			}
		case config.CookiePSIDTS:
			if psidts == "" || preferred {
				psidts = cookie.Value
			}
		}
	}

	if psid == "" {
		return nil, fmt.Errorf("cookie %s not found", config.CookiePSID)
	}
	return &config.Cookies{Secure1PSID: psid, Secure1PSIDTS: psidts}, nil
}

// ListAvailableBrowsers returns the names of browsers with a cookie store
func ListAvailableBrowsers(ctx context.Context) []string {
	var names []string
	seen := make(map[string]bool)
	for _, store := range kooky.FindAllCookieStores(ctx) {
		if name := store.Browser(); !seen[name] {
			names = append(names, name)
			seen[name] = true
		}
		store.Close()
	}
	return names
}
