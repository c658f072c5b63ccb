package webgemini

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"go.uber.org/zap"

	"github.com/diogo/muralguide/internal/config"
	apierrors "github.com/diogo/muralguide/internal/errors"
)

// minRotateGap is the shortest allowed time between two rotations
const minRotateGap = time.Minute

// rotateCookies asks Google for a fresh __Secure-1PSIDTS. An empty value
// with a nil error means the server kept the current cookie.
func rotateCookies(ctx context.Context, client doer, cookies *config.Cookies) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, EndpointRotateCookies,
		strings.NewReader(`[000,"-0000000000000000000"]`))
	if err != nil {
		return "", fmt.Errorf("failed to create rotate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setCookies(req, cookies)

	resp, err := client.Do(req)
	if err != nil {
		return "", apierrors.NewNetworkErrorWithEndpoint("rotate cookies", EndpointRotateCookies, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		e := apierrors.NewAuthErrorWithEndpoint("unauthorized during cookie rotation", EndpointRotateCookies)
		e.HTTPStatus = resp.StatusCode
		return "", e
	case resp.StatusCode != http.StatusOK:
		return "", apierrors.NewAPIError(resp.StatusCode, EndpointRotateCookies, "cookie rotation failed")
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == config.CookiePSIDTS {
			return cookie.Value, nil
		}
	}
	return "", nil
}

// cookieRotator refreshes the rotating cookie in the background
type cookieRotator struct {
	client     doer
	cookies    *config.Cookies
	interval   time.Duration
	logger     *zap.SugaredLogger
	now        func() time.Time
	lastRotate time.Time

	stopCh  chan struct{}
	done    chan struct{}
	running bool
	mu      sync.Mutex
}

func newCookieRotator(client doer, cookies *config.Cookies, interval time.Duration, logger *zap.SugaredLogger) *cookieRotator {
	return &cookieRotator{
		client:   client,
		cookies:  cookies,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins background rotation
func (r *cookieRotator) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.rotateOnce()
			case <-r.stopCh:
				return
			}
		}
	}()
}

// rotateOnce performs a single rotation unless one ran within minRotateGap.
// It reports whether the cookie changed.
func (r *cookieRotator) rotateOnce() bool {
	r.mu.Lock()
	if !r.lastRotate.IsZero() && r.now().Sub(r.lastRotate) < minRotateGap {
		r.mu.Unlock()
		return false
	}
	r.lastRotate = r.now()
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	value, err := rotateCookies(ctx, r.client, r.cookies)
	if err != nil {
		r.logger.Warnw("cookie rotation failed", "error", err)
		return false
	}
	if value == "" {
		return false
	}
	r.cookies.Update1PSIDTS(value)
	r.logger.Debugw("cookie rotated")
	return true
}

// Stop halts rotation and waits for the loop to exit
func (r *cookieRotator) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	<-r.done
}
