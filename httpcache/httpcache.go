// Package httpcache implements C3: a single-flight, URL-keyed fetcher that
// produces canonical ResponseRecords. It never fetches the same URL twice
// concurrently (spec invariant 3 / P4) and never throws — transport
// failures are mapped to FetchResult{Ok: false}.
package httpcache

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/use-agent/pagepocket/urlutil"
)

// HTTPDoer is the transport collaborator. *http.Client satisfies it
// directly; callers that need Cloudflare-challenge handling, a Chrome TLS
// fingerprint, or a custom user-agent policy (all explicitly out of this
// core's scope) plug those in by supplying their own HTTPDoer.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchResult is the outcome of a single C3 fetch.
type FetchResult struct {
	Ok          bool
	Response    *ResponseRecord
	ContentType string
	Text        string // populated when the body is textual; avoids re-fetch for recursive analyzers
	Buffer      []byte
	Error       string
}

// ResponseRecord is the captured body + metadata for one request, per §3.
type ResponseRecord struct {
	Status       int                  `json:"status"`
	StatusText   string               `json:"statusText"`
	Headers      map[string]string    `json:"headers"` // last-write-wins on case-insensitive collision
	Body         string               `json:"body"`
	BodyEncoding urlutil.BodyEncoding `json:"bodyEncoding"`
}

// Client is the C3 HTTP cache client. Safe for concurrent use.
type Client struct {
	doer  HTTPDoer
	group singleflight.Group
}

// New creates a Client backed by doer. Pass nil to use http.DefaultClient.
func New(doer HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{doer: doer}
}

// Fetch retrieves url, coalescing concurrent callers for the same URL into
// a single in-flight request (singleflight.Group gives us spec invariant 3
// / P4 for free: the underlying Do call happens exactly once per key while
// any caller is waiting on it).
func (c *Client) Fetch(ctx context.Context, url string) FetchResult {
	v, _, _ := c.group.Do(url, func() (interface{}, error) {
		return c.doFetch(ctx, url), nil
	})
	return v.(FetchResult)
}

func (c *Client) doFetch(ctx context.Context, url string) FetchResult {
	if c.doer == nil {
		return FetchResult{Ok: false, Error: "fetch-unavailable"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{Ok: false, Error: err.Error()}
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return FetchResult{Ok: false, Error: err.Error()}
	}
	defer resp.Body.Close()

	const maxBody = 25 << 20 // 25MB cap, mirrors the teacher's bounded-read discipline
	buffer, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return FetchResult{Ok: false, Error: fmt.Sprintf("read body: %v", err)}
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) == 0 {
			continue
		}
		headers[http.CanonicalHeaderKey(k)] = v[len(v)-1] // last-write-wins
	}

	contentType := resp.Header.Get("Content-Type")
	encoding := urlutil.ResolveBodyEncoding(contentType)

	record := &ResponseRecord{
		Status:       resp.StatusCode,
		StatusText:   resp.Status,
		Headers:      headers,
		BodyEncoding: encoding,
	}

	result := FetchResult{
		Ok:          true,
		Response:    record,
		ContentType: contentType,
		Buffer:      buffer,
	}

	if encoding == urlutil.EncodingText {
		text := urlutil.DecodeText(buffer, contentType, string(buffer))
		record.Body = text
		result.Text = text
	} else {
		record.Body = encodeBase64(buffer)
	}

	return result
}

func encodeBase64(buffer []byte) string {
	return base64.StdEncoding.EncodeToString(buffer)
}
