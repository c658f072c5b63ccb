package webgemini

import (
	"context"
	"fmt"
	"io"
	"regexp"

	http "github.com/bogdanfinn/fhttp"

	"github.com/diogo/muralguide/internal/config"
	apierrors "github.com/diogo/muralguide/internal/errors"
)

// maxPageSize bounds how much of the app page is scanned for the token
const maxPageSize = 8 << 20

// SNlM0e pattern for extracting access token from HTML
var snlm0ePattern = regexp.MustCompile(`"SNlM0e":"([^"]+)"`)

// fetchAccessToken loads the app page and extracts the SNlM0e token
func fetchAccessToken(ctx context.Context, client doer, cookies *config.Cookies) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, EndpointInit, nil)
	if err != nil {
		return "", apierrors.NewBackendError(Name, "create access token request", err)
	}
	for key, value := range defaultHeaders() {
		req.Header.Set(key, value)
	}
	setCookies(req, cookies)

	resp, err := client.Do(req)
	if err != nil {
		return "", apierrors.NewNetworkErrorWithEndpoint("fetch access token", EndpointInit, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", apierrors.NewNetworkErrorWithEndpoint("read access token page", EndpointInit, err)
	}

	if resp.StatusCode != http.StatusOK {
		authErr := apierrors.NewAuthErrorWithEndpoint(
			fmt.Sprintf("failed to fetch access token, status: %d", resp.StatusCode),
			EndpointInit,
		)
		authErr.HTTPStatus = resp.StatusCode
		authErr.WithBody(string(body))
		return "", authErr
	}

	matches := snlm0ePattern.FindSubmatch(body)
	if len(matches) < 2 {
		return "", apierrors.NewAuthErrorWithEndpoint(
			"SNlM0e token not found in response. Cookies may be expired.",
			EndpointInit,
		)
	}

	return string(matches[1]), nil
}
