package webgemini

import (
	"encoding/json"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"

	http "github.com/bogdanfinn/fhttp"

	"github.com/diogo/muralguide/internal/config"
)

// fakeDoer answers requests through handle and records them
type fakeDoer struct {
	mu     sync.Mutex
	handle func(req *http.Request, body string) (*http.Response, error)
	reqs   []*http.Request
	bodies []string
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	body := ""
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}

	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.bodies = append(f.bodies, body)
	handle := f.handle
	f.mu.Unlock()

	return handle(req, body)
}

func (f *fakeDoer) requests() ([]*http.Request, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*http.Request(nil), f.reqs...), append([]string(nil), f.bodies...)
}

func respond(status int, body string, header ...string) *http.Response {
	h := make(http.Header)
	for i := 0; i+1 < len(header); i += 2 {
		h.Add(header[i], header[i+1])
	}
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

const appPage = `<html><script>window.WIZ_global_data={"SNlM0e":"token-abc","other":"x"};</script></html>`

// candidateJSON builds one reply candidate with optional generated image URLs
func candidateJSON(rcid, text string, imageURLs ...string) []any {
	cand := make([]any, 13)
	cand[0] = rcid
	cand[1] = []any{text}

	if len(imageURLs) > 0 {
		var images []any
		for i, u := range imageURLs {
			images = append(images, []any{
				[]any{nil, nil, nil, []any{nil, nil, nil, u}},
				nil,
				nil,
				[]any{nil, nil, nil, nil, nil, []any{"a mural in ochre"}, i + 1},
			})
		}
		cand[12] = []any{nil, nil, nil, nil, nil, nil, nil, []any{images}}
	}
	return cand
}

// streamReply wraps candidates in the StreamGenerate framing
func streamReply(t *testing.T, cands ...[]any) string {
	t.Helper()
	list := make([]any, len(cands))
	for i, c := range cands {
		list[i] = c
	}
	inner, err := json.Marshal([]any{nil, []any{"c_1", "r_1", "rc_1"}, nil, nil, list})
	if err != nil {
		t.Fatal(err)
	}
	frame, err := json.Marshal([]any{[]any{"wrb.fr", nil, string(inner)}})
	if err != nil {
		t.Fatal(err)
	}
	return ")]}'\n\n" + "1234\n" + string(frame) + "\n"
}

func testCookies() *config.Cookies {
	return &config.Cookies{Secure1PSID: "psid-1", Secure1PSIDTS: "ts-1"}
}

func formValue(t *testing.T, body, key string) string {
	t.Helper()
	values, err := url.ParseQuery(body)
	if err != nil {
		t.Fatalf("ParseQuery() error = %v", err)
	}
	return values.Get(key)
}
