package webgemini

import (
	"context"
	"io"
	"mime"
	"strings"

	http "github.com/bogdanfinn/fhttp"

	"github.com/diogo/muralguide/internal/backend"
	apierrors "github.com/diogo/muralguide/internal/errors"
)

const maxImageSize = 20 << 20

// fullSizeURL requests the largest rendition of a generated image
func fullSizeURL(u string) string {
	if strings.Contains(u, "=s") {
		return u
	}
	return u + "=s2048"
}

// fetchImage downloads a generated image and returns it as a data URI
func (c *Client) fetchImage(ctx context.Context, imageURL string) (string, error) {
	u := fullSizeURL(imageURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", apierrors.NewDownloadError("failed to create request: "+err.Error(), u)
	}
	req.Header.Set("User-Agent", defaultHeaders()["User-Agent"])
	req.Header.Set("Accept", "image/webp,image/apng,image/*,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	setCookies(req, c.cookies)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apierrors.NewDownloadNetworkError(u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", apierrors.NewDownloadErrorWithStatus(u, resp.StatusCode)
	}

	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "", apierrors.NewDownloadError("response is not an image: "+resp.Header.Get("Content-Type"), u)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return "", apierrors.NewDownloadError("failed to read response: "+err.Error(), u)
	}
	if len(data) == 0 {
		return "", apierrors.NewDownloadError("empty image", u)
	}

	c.logger.Debugw("image downloaded", "bytes", len(data), "type", mediaType)
	return backend.DataURI(mediaType, data), nil
}
