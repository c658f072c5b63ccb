// Package webgemini implements the guide's text and image services on the
// cookie-authenticated Gemini Web interface.
package webgemini

import (
	"context"
	"fmt"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"go.uber.org/zap"

	"github.com/diogo/muralguide/internal/backend"
	"github.com/diogo/muralguide/internal/browser"
	"github.com/diogo/muralguide/internal/config"
	"github.com/diogo/muralguide/internal/conversation"
	apierrors "github.com/diogo/muralguide/internal/errors"
)

// Name identifies this backend in errors and logs.
const Name = "webgemini"

// doer is the part of tls_client.HttpClient the backend uses.
type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to gemini.google.com with browser cookies
type Client struct {
	http        doer
	cookies     *config.Cookies
	accessToken string
	model       Model
	timeout     time.Duration
	logger      *zap.SugaredLogger

	rotator        *cookieRotator
	autoRotate     bool
	rotateInterval time.Duration

	browserRefresh        bool
	browserType           browser.SupportedBrowser
	lastBrowserRefresh    time.Time
	browserRefreshMinWait time.Duration
	extract               func(context.Context, browser.SupportedBrowser) (*browser.ExtractResult, error)
	saveCookies           func(*config.Cookies) error

	mu     sync.RWMutex
	closed bool
}

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithModel sets the model used for every request
func WithModel(model Model) ClientOption {
	return func(c *Client) {
		c.model = model
	}
}

// WithAutoRotate enables background cookie rotation
func WithAutoRotate(enabled bool) ClientOption {
	return func(c *Client) {
		c.autoRotate = enabled
	}
}

// WithRotateInterval sets the cookie rotation period
func WithRotateInterval(interval time.Duration) ClientOption {
	return func(c *Client) {
		if interval > 0 {
			c.rotateInterval = interval
		}
	}
}

// WithBrowserRefresh re-reads cookies from browserType when the session expires
func WithBrowserRefresh(browserType browser.SupportedBrowser) ClientOption {
	return func(c *Client) {
		c.browserRefresh = true
		c.browserType = browserType
	}
}

// WithTimeout bounds every generate call
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
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

func withHTTP(d doer) ClientOption {
	return func(c *Client) {
		c.http = d
	}
}

// NewClient creates a Client for cookies. Call Init before generating.
func NewClient(cookies *config.Cookies, cfg config.WebGeminiConfig, opts ...ClientOption) (*Client, error) {
	if err := config.ValidateCookies(cookies); err != nil {
		return nil, err
	}

	model, err := ModelFromName(cfg.Model)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cookies:               cookies,
		model:                 model,
		logger:                zap.NewNop().Sugar(),
		autoRotate:            true,
		rotateInterval:        time.Duration(cfg.RefreshInterval) * time.Second,
		browserRefreshMinWait: 30 * time.Second,
		extract:               browser.ExtractGeminiCookies,
		saveCookies:           config.SaveCookies,
	}
	if c.rotateInterval <= 0 {
		c.rotateInterval = 9 * time.Minute
	}
	if cfg.BrowserRefresh != "" {
		bt, err := browser.ParseBrowser(cfg.BrowserRefresh)
		if err != nil {
			return nil, err
		}
		c.browserRefresh = true
		c.browserType = bt
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		httpClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(),
			tls_client.WithTimeoutSeconds(300),
			tls_client.WithClientProfile(profiles.Chrome_120),
			tls_client.WithNotFollowRedirects(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		c.http = httpClient
	}

	return c, nil
}

// Init fetches the access token and starts cookie rotation
func (c *Client) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}

	token, err := fetchAccessToken(ctx, c.http, c.cookies)
	if err != nil && c.browserRefresh && apierrors.IsAuthError(err) {
		c.logger.Infow("stored cookies rejected, reading browser cookies", "browser", c.browserType)
		if refreshErr := c.refreshLocked(ctx); refreshErr != nil {
			return fmt.Errorf("%w (browser refresh failed: %v)", err, refreshErr)
		}
		token, err = c.accessToken, nil
	}
	if err != nil {
		return err
	}
	c.accessToken = token

	if c.autoRotate && c.rotator == nil {
		c.rotator = newCookieRotator(c.http, c.cookies, c.rotateInterval, c.logger)
		c.rotator.Start()
	}

	c.logger.Debugw("gemini web session ready", "model", c.model.Name)
	return nil
}

// Close stops background rotation
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if c.rotator != nil {
		c.rotator.Stop()
	}
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Model returns the model in use
func (c *Client) Model() Model {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken
}

// Services returns the client as a conversation service pair
func (c *Client) Services() *backend.Services {
	return &backend.Services{
		Name:   Name,
		Text:   conversation.TextFunc(c.GenerateText),
		Image:  conversation.ImageFunc(c.GenerateImage),
		Closer: c.Close,
	}
}

// RefreshFromBrowser replaces the cookies with fresh ones from the browser
// and fetches a new access token
func (c *Client) RefreshFromBrowser(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Client) refreshLocked(ctx context.Context) error {
	if !c.browserRefresh {
		return fmt.Errorf("browser refresh is not enabled")
	}
	if wait := c.browserRefreshMinWait - time.Since(c.lastBrowserRefresh); wait > 0 {
		return fmt.Errorf("browser refresh attempted too recently, wait %v", wait.Round(time.Second))
	}
	c.lastBrowserRefresh = time.Now()

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	result, err := c.extract(ctx, c.browserType)
	if err != nil {
		return fmt.Errorf("failed to extract cookies from browser: %w", err)
	}

	psid, psidts := result.Cookies.Snapshot()
	c.cookies.SetBoth(psid, psidts)
	if err := c.saveCookies(c.cookies); err != nil {
		c.logger.Warnw("failed to save refreshed cookies", "error", err)
	}

	token, err := fetchAccessToken(ctx, c.http, c.cookies)
	if err != nil {
		return fmt.Errorf("failed to get access token with new cookies: %w", err)
	}
	c.accessToken = token

	c.logger.Infow("cookies refreshed from browser", "browser", result.BrowserName)
	return nil
}

// setCookies adds the session cookies to req
func setCookies(req *http.Request, cookies *config.Cookies) {
	psid, psidts := cookies.Snapshot()
	req.AddCookie(&http.Cookie{Name: config.CookiePSID, Value: psid})
	if psidts != "" {
		req.AddCookie(&http.Cookie{Name: config.CookiePSIDTS, Value: psidts})
	}
}
