// Package lighterceptor wires C1–C8 into the Run API described in spec §6:
// given a URL or inline HTML, it produces a Snapshot of every URL the
// document (and, recursively, everything it references) resolves to a
// request for.
package lighterceptor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/use-agent/pagepocket/crawl"
	"github.com/use-agent/pagepocket/domharness"
	"github.com/use-agent/pagepocket/htmlanalyzer"
	"github.com/use-agent/pagepocket/httpcache"
	"github.com/use-agent/pagepocket/lperr"
	"github.com/use-agent/pagepocket/urlutil"
)

// RunOptions mirrors the Run API's optional arguments in §6.
type RunOptions struct {
	Recursion    bool
	SettleTimeMs int
	BaseUrl      string
}

// RequestSummary is the lightweight entry spec §6 lists under Result.requests
// (url/method/source/timestamp only; the full record with its response body
// lives in NetworkRecords).
type RequestSummary struct {
	URL       string                `json:"url"`
	Method    string                `json:"method"`
	Source    urlutil.RequestSource `json:"source"`
	Timestamp int64                 `json:"timestamp"`
}

// Snapshot is the Run API's Result (§6) / output data model (§3).
type Snapshot struct {
	URL            string                 `json:"url"`
	Title          string                 `json:"title,omitempty"`
	CapturedAt     string                 `json:"capturedAt"` // ISO8601 / RFC3339
	Degraded       bool                   `json:"degraded,omitempty"`
	Requests       []RequestSummary       `json:"requests"`
	NetworkRecords []*crawl.RequestRecord `json:"networkRecords"` // requests with a captured response
	Resources      []*crawl.RequestRecord `json:"resources"`      // every request seen, response or not
}

// Lighterceptor is one configured Run. It is not reused across runs: each
// Run gets its own RequestTable/CrawlQueue/ResponseCache per §3's lifecycle
// rules.
type Lighterceptor struct {
	input string
	opts  RunOptions

	doer     httpcache.HTTPDoer
	pool     *domharness.BrowserPool
	crawlCfg crawl.Config
}

// New builds a Lighterceptor for one Run. pool may be nil to force degraded
// (static-walk-only) analysis throughout, e.g. when no headless Chromium is
// available in the environment. doer may be nil to use http.DefaultClient.
func New(input string, doer httpcache.HTTPDoer, pool *domharness.BrowserPool, opts RunOptions, crawlCfg crawl.Config) *Lighterceptor {
	return &Lighterceptor{input: input, opts: opts, doer: doer, pool: pool, crawlCfg: crawlCfg}
}

// Run executes the Run: analyze the root document, then (if recursion is
// on) drain everything it and its descendants reference. It rejects when
// the crawl configuration is invalid, when a URL input's root document
// cannot be fetched, and for root-document harness failures (§7); every
// other failure is captured into the returned Snapshot.
func (l *Lighterceptor) Run(ctx context.Context) (*Snapshot, error) {
	cache := httpcache.New(l.doer)
	crawlCfg := l.crawlCfg
	crawlCfg.SettleTimeMs = l.opts.SettleTimeMs
	eng, err := crawl.New(cache, l.pool, crawlCfg)
	if err != nil {
		return nil, lperr.Programmer("invalid crawl configuration", err)
	}

	baseUrl := l.opts.BaseUrl
	var htmlText string
	if isInlineHTML(l.input) {
		htmlText = l.input
	} else {
		if baseUrl == "" {
			baseUrl = l.input
		}
		result := eng.Fetch(ctx, l.input)
		if !result.Ok {
			return nil, lperr.Transport("failed to fetch root document", errors.New(result.Error))
		}
		htmlText = result.Text
	}

	record := func(url string, source urlutil.RequestSource, referrer string) {
		eng.Record(url, source, referrer)
	}
	enqueue := func(url string, kind urlutil.ResourceKind) {
		eng.Enqueue(url, kind)
	}

	analysis, err := htmlanalyzer.Analyze(ctx, l.pool, htmlanalyzer.Options{
		HTML:         htmlText,
		BaseUrl:      baseUrl,
		SettleTimeMs: l.opts.SettleTimeMs,
		Stealth:      true,
		Recursive:    l.opts.Recursion,
		WantTitle:    true,
		IsRoot:       true,
	}, record, enqueue)
	if err != nil {
		return nil, err
	}

	if l.opts.Recursion {
		eng.Drain(ctx)
	}

	records := eng.Table.Records()
	return &Snapshot{
		URL:            baseUrl,
		Title:          analysis.Title,
		CapturedAt:     time.Now().UTC().Format(time.RFC3339),
		Degraded:       analysis.Degraded,
		Requests:       summarize(records),
		NetworkRecords: withResponse(records),
		Resources:      records,
	}, nil
}

// isInlineHTML applies §6's heuristic (starts with '<' after trimming); an
// empty or all-whitespace input is also treated as inline HTML rather than
// as an unfetchable empty URL, so Run("") yields an empty Snapshot per the
// boundary behavior in §8 instead of a transport error.
func isInlineHTML(input string) bool {
	trimmed := strings.TrimSpace(input)
	return trimmed == "" || strings.HasPrefix(trimmed, "<")
}

func summarize(records []*crawl.RequestRecord) []RequestSummary {
	out := make([]RequestSummary, len(records))
	for i, r := range records {
		out[i] = RequestSummary{URL: r.URL, Method: r.Method, Source: r.Source, Timestamp: r.Timestamp}
	}
	return out
}

func withResponse(records []*crawl.RequestRecord) []*crawl.RequestRecord {
	out := make([]*crawl.RequestRecord, 0, len(records))
	for _, r := range records {
		if r.Response != nil {
			out = append(out, r)
		}
	}
	return out
}
