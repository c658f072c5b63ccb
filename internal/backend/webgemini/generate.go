package webgemini

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	"github.com/diogo/muralguide/internal/backend"
	apierrors "github.com/diogo/muralguide/internal/errors"
	"github.com/diogo/muralguide/internal/guide"
)

const maxReplySize = 16 << 20

var (
	cardContentPattern = regexp.MustCompile(`^http://googleusercontent\.com/card_content/\d+`)
	// placeholders the web UI swaps for rich content
	placeholderPattern = regexp.MustCompile(`http://googleusercontent\.com/\w+/\d+\s*`)
)

// GenerateText answers userText as the art guide
func (c *Client) GenerateText(ctx context.Context, userText string) (string, error) {
	out, err := c.generate(ctx, textPrompt(userText))
	if err != nil {
		return "", err
	}

	cand := out.chosen()
	text := ""
	if cand != nil {
		text = cleanText(cand.Text)
	}
	if text == "" {
		return "", apierrors.NewBackendError(Name, "generate text", apierrors.ErrNoContent)
	}
	return text, nil
}

// GenerateImage asks the model to draw prompt and returns the first
// generated image as a data URI
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if err := backend.RequirePrompt(prompt); err != nil {
		return "", err
	}

	out, err := c.generate(ctx, "Generate an image: "+guide.ImagePrompt(prompt))
	if err != nil {
		return "", err
	}

	cand := out.chosen()
	if cand == nil {
		return "", apierrors.NewBackendError(Name, "generate image", apierrors.ErrNoContent)
	}
	if len(cand.Images) == 0 {
		if said := cleanText(cand.Text); said != "" {
			return "", apierrors.NewModelError("no image returned: " + said)
		}
		return "", apierrors.NewBackendError(Name, "generate image", apierrors.ErrNoContent)
	}

	ctx, cancel := backend.WithTimeout(ctx, c.timeout)
	defer cancel()
	ref, err := c.fetchImage(ctx, cand.Images[0].URL)
	if err != nil {
		return "", backend.CheckTimeout(ctx, "download image", err)
	}
	return ref, nil
}

// textPrompt prefixes the guide instructions, since the web interface has
// no separate system prompt
func textPrompt(userText string) string {
	return guide.SystemInstruction + "\n\nVisitor: " + userText
}

func cleanText(text string) string {
	return strings.TrimSpace(placeholderPattern.ReplaceAllString(text, ""))
}

// generate runs one request, retrying once with browser cookies when the
// session has expired
func (c *Client) generate(ctx context.Context, prompt string) (*output, error) {
	ctx, cancel := backend.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.doGenerate(ctx, prompt)
	if err != nil && c.browserRefresh && apierrors.IsAuthError(err) {
		if refreshErr := c.RefreshFromBrowser(ctx); refreshErr == nil {
			out, err = c.doGenerate(ctx, prompt)
		} else {
			c.logger.Warnw("browser refresh failed", "error", refreshErr)
		}
	}
	if err != nil {
		return nil, backend.CheckTimeout(ctx, "generate", err)
	}
	return out, nil
}

func (c *Client) doGenerate(ctx context.Context, prompt string) (*output, error) {
	if c.IsClosed() {
		return nil, fmt.Errorf("client is closed")
	}
	token := c.token()
	if token == "" {
		return nil, apierrors.NewAuthError("client is not initialized")
	}
	model := c.Model()

	payload, err := buildPayload(prompt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build payload: %w", err)
	}

	form := url.Values{}
	form.Set("at", token)
	form.Set("f.req", payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, EndpointGenerate, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range defaultHeaders() {
		req.Header.Set(key, value)
	}
	for key, value := range model.Header {
		req.Header.Set(key, value)
	}
	setCookies(req, c.cookies)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apierrors.NewNetworkErrorWithEndpoint("generate content", EndpointGenerate, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return nil, apierrors.NewNetworkErrorWithEndpoint("read reply", EndpointGenerate, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apierrors.NewAPIErrorWithBody(resp.StatusCode, EndpointGenerate, "generate content failed", string(body))
	}

	return parseResponse(body, model.Name)
}

// buildPayload creates the f.req form value: [null, "[[prompt], null, metadata]"]
func buildPayload(prompt string, metadata []string) (string, error) {
	inner := []any{
		[]any{prompt},
		nil,
		metadata,
	}
	innerJSON, err := json.Marshal(inner)
	if err != nil {
		return "", err
	}

	outerJSON, err := json.Marshal([]any{nil, string(innerJSON)})
	if err != nil {
		return "", err
	}
	return string(outerJSON), nil
}

// parseResponse extracts candidates from a StreamGenerate reply. The reply
// starts with an anti-XSSI prefix and length lines before the JSON frames.
func parseResponse(body []byte, modelName string) (*output, error) {
	var frames []gjson.Result
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[") || !gjson.Valid(line) {
			continue
		}
		frames = append(frames, gjson.Parse(line))
	}
	if len(frames) == 0 {
		return nil, apierrors.NewParseError("no valid JSON found in response", "")
	}

	first := frames[0]
	if code := first.Get(PathAltErrorCode); code.Exists() && !code.IsArray() && code.Int() > 0 {
		return nil, apierrors.HandleErrorCode(apierrors.ErrorCode(code.Int()), EndpointGenerate, modelName)
	}

	var replyBody gjson.Result
	for _, frame := range frames {
		frame.ForEach(func(_, value gjson.Result) bool {
			data := value.Get(PathBody)
			if !data.Exists() || data.Type != gjson.String {
				return true
			}
			parsed := gjson.Parse(data.String())
			if parsed.Get(PathCandList).IsArray() {
				replyBody = parsed
				return false
			}
			return true
		})
		if replyBody.Exists() {
			break
		}
	}

	if !replyBody.Exists() {
		if code := first.Get(PathErrorCode); code.Exists() {
			return nil, apierrors.HandleErrorCode(apierrors.ErrorCode(code.Int()), EndpointGenerate, modelName)
		}
		return nil, apierrors.NewParseError("no response body found", PathBody)
	}

	out := &output{}
	replyBody.Get(PathMetadata).ForEach(func(_, v gjson.Result) bool {
		out.Metadata = append(out.Metadata, v.String())
		return true
	})

	replyBody.Get(PathCandList).ForEach(func(_, value gjson.Result) bool {
		rcid := value.Get(PathCandRCID).String()
		if rcid == "" {
			return true
		}

		text := value.Get(PathCandText).String()
		if cardContentPattern.MatchString(text) {
			if alt := value.Get(PathCandTextAlt).String(); alt != "" {
				text = alt
			}
		}

		out.Candidates = append(out.Candidates, candidate{
			RCID:   rcid,
			Text:   text,
			Images: parseGeneratedImages(value.Get(PathCandGenImages)),
		})
		return true
	})

	if len(out.Candidates) == 0 {
		return nil, apierrors.NewParseError("no valid candidates found", PathCandList)
	}
	return out, nil
}

func parseGeneratedImages(list gjson.Result) []generatedImage {
	var images []generatedImage
	list.ForEach(func(idx, value gjson.Result) bool {
		imgURL := value.Get(PathGenImgURL).String()
		if imgURL == "" {
			return true
		}

		title := "[Generated Image]"
		if num := value.Get(PathGenImgNum).String(); num != "" {
			title = fmt.Sprintf("[Generated Image %s]", num)
		}

		alt := ""
		if alts := value.Get(PathGenImgAlts); alts.IsArray() {
			if v := alts.Get(fmt.Sprintf("%d", idx.Int())); v.Exists() {
				alt = v.String()
			} else {
				alt = alts.Get("0").String()
			}
		}

		images = append(images, generatedImage{URL: imgURL, Title: title, Alt: alt})
		return true
	})
	return images
}
