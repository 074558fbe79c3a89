// Package htmlanalyzer implements C6: it drives a domharness.Harness
// pre-armed with an interceptor.Injector for one document, then walks the
// resulting DOM statically to pick up URLs that interception alone misses
// (srcset, video poster, link imagesrcset). When no harness can be built for
// a non-root document it falls back to a goquery-only static walk of the raw
// HTML so a single page's failure doesn't erase all of that document's
// discoverable URLs.
package htmlanalyzer

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/use-agent/pagepocket/cssutil"
	"github.com/use-agent/pagepocket/domharness"
	"github.com/use-agent/pagepocket/interceptor"
	"github.com/use-agent/pagepocket/urlutil"
)

// RecordFunc is invoked once per URL discovered, whether by live
// interception or by the static walk.
type RecordFunc func(url string, source urlutil.RequestSource, referrer string)

// EnqueueFunc pushes a newly discovered URL onto the caller's crawl queue.
// Only called when Options.Recursive is true.
type EnqueueFunc func(url string, kind urlutil.ResourceKind)

// Options configures one Analyze call.
type Options struct {
	HTML         string
	BaseUrl      string
	SettleTimeMs int
	Stealth      bool
	Recursive    bool
	WantTitle    bool

	// IsRoot marks the Run's root document. A harness-construction failure
	// on the root document is a fatal error (§7); on any other document,
	// Analyze degrades to a static-only walk instead of giving up.
	IsRoot bool
}

// Result is what one Analyze call learned about its document.
type Result struct {
	Title    string
	Degraded bool
}

var staticURLSelector = cascadia.MustCompile(
	"img[src], img[srcset], source[srcset], source[src], script[src], link, video, audio[src], track[src], embed[src], object[data], iframe[src], [style]",
)

var preloadRelAllowlist = map[string]urlutil.RequestSource{
	"stylesheet":    urlutil.SourceCSS,
	"preload":       urlutil.SourceResource,
	"prefetch":      urlutil.SourceResource,
	"icon":          urlutil.SourceResource,
	"modulepreload": urlutil.SourceResource,
}

// Analyze drives C4+C5 against opts.HTML and returns whatever title/degraded
// state the analysis produced. pool may be nil to force degraded mode (tests,
// or a caller that has no browser available at all).
func Analyze(ctx context.Context, pool *domharness.BrowserPool, opts Options, record RecordFunc, enqueue EnqueueFunc) (Result, error) {
	if pool == nil {
		return degradedAnalyze(opts, record, enqueue), nil
	}

	h, err := domharness.Open(ctx, pool, domharness.Options{
		HTML:         opts.HTML,
		BaseUrl:      opts.BaseUrl,
		Stealth:      opts.Stealth,
		SettleTimeMs: opts.SettleTimeMs,
	})
	if err != nil {
		if opts.IsRoot {
			return Result{}, err
		}
		slog.Warn("htmlanalyzer: harness construction failed, degrading", "url", opts.BaseUrl, "error", err)
		return degradedAnalyze(opts, record, enqueue), nil
	}
	defer h.Close()

	interceptorFn := func(_ context.Context, raw string, meta interceptor.Meta) (interface{}, error) {
		url, ok := urlutil.ResolveURL(opts.BaseUrl, raw)
		if !ok {
			return nil, nil
		}
		if record != nil {
			record(url, meta.Source, meta.Referrer)
		}
		if opts.Recursive && enqueue != nil {
			enqueue(url, inferKind(meta.Element, url))
		}
		return nil, nil
	}

	inj, err := interceptor.Install(ctx, interceptor.RodPage{Page: h.Page}, interceptorFn)
	if err != nil {
		slog.Warn("htmlanalyzer: interceptor install failed, continuing uninstrumented", "error", err)
	} else {
		defer inj.Close()
	}

	if err := h.Load(domharness.Options{HTML: opts.HTML, BaseUrl: opts.BaseUrl}); err != nil {
		if opts.IsRoot {
			return Result{}, err
		}
		slog.Warn("htmlanalyzer: document load failed, degrading", "url", opts.BaseUrl, "error", err)
		return degradedAnalyze(opts, record, enqueue), nil
	}

	h.Settle(ctx, opts.SettleTimeMs)

	rendered, err := h.HTML()
	if err != nil {
		slog.Warn("htmlanalyzer: failed to extract rendered HTML, static walk skipped", "error", err)
		rendered = ""
	}
	if rendered != "" {
		walkStatic(rendered, opts.BaseUrl, record, enqueue, opts.Recursive)
	}

	res := Result{}
	if opts.WantTitle {
		res.Title = h.Title()
	}
	return res, nil
}

func degradedAnalyze(opts Options, record RecordFunc, enqueue EnqueueFunc) Result {
	walkStatic(opts.HTML, opts.BaseUrl, record, enqueue, opts.Recursive)
	res := Result{Degraded: true}
	if opts.WantTitle {
		res.Title = extractTitle(opts.HTML)
	}
	return res
}

// walkStatic finds the URL-bearing attributes the interceptor's property
// patches never see because they are only read at parse/layout time, not
// assigned through a patched setter during our synthetic load.
func walkStatic(htmlText, baseUrl string, record RecordFunc, enqueue EnqueueFunc, recursive bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil || len(doc.Nodes) == 0 {
		return
	}

	emit := func(raw string, source urlutil.RequestSource, kind urlutil.ResourceKind) {
		resolved, ok := urlutil.ResolveURL(baseUrl, raw)
		if !ok {
			return
		}
		if record != nil {
			record(resolved, source, baseUrl)
		}
		if recursive && enqueue != nil {
			enqueue(resolved, kind)
		}
	}

	for _, n := range staticURLSelector.MatchAll(doc.Nodes[0]) {
		switch n.Data {
		case "img", "source":
			if v, ok := attr(n, "srcset"); ok {
				for _, u := range urlutil.ParseSrcsetUrls(v) {
					emit(u, urlutil.SourceImg, urlutil.KindImg)
				}
			}
			if n.Data == "source" {
				if v, ok := attr(n, "src"); ok {
					emit(v, urlutil.SourceResource, urlutil.KindUnknown)
				}
			} else if v, ok := attr(n, "src"); ok {
				emit(v, urlutil.SourceImg, urlutil.KindImg)
			}
		case "script":
			if v, ok := attr(n, "src"); ok {
				emit(v, urlutil.SourceResource, urlutil.KindJS)
			}
		case "link":
			rel, _ := attr(n, "rel")
			href, hasHref := attr(n, "href")
			if source, allowed := preloadRelAllowlist[strings.ToLower(rel)]; allowed && hasHref {
				kind := urlutil.KindUnknown
				if source == urlutil.SourceCSS {
					kind = urlutil.KindCSS
				}
				emit(href, source, kind)
			}
			if v, ok := attr(n, "imagesrcset"); ok {
				for _, u := range urlutil.ParseSrcsetUrls(v) {
					emit(u, urlutil.SourceResource, urlutil.KindImg)
				}
			}
		case "video":
			if v, ok := attr(n, "poster"); ok {
				emit(v, urlutil.SourceResource, urlutil.KindImg)
			}
			if v, ok := attr(n, "src"); ok {
				emit(v, urlutil.SourceResource, urlutil.KindMedia)
			}
		case "audio":
			if v, ok := attr(n, "src"); ok {
				emit(v, urlutil.SourceResource, urlutil.KindMedia)
			}
		case "track", "embed":
			if v, ok := attr(n, "src"); ok {
				emit(v, urlutil.SourceResource, urlutil.KindUnknown)
			}
		case "iframe":
			if v, ok := attr(n, "src"); ok {
				emit(v, urlutil.SourceResource, urlutil.KindHTML)
			}
		case "object":
			if v, ok := attr(n, "data"); ok {
				emit(v, urlutil.SourceResource, urlutil.KindUnknown)
			}
		}

		if style, ok := attr(n, "style"); ok {
			for _, u := range cssutil.ExtractCssUrls(style, baseUrl) {
				emit(u, urlutil.SourceCSS, urlutil.KindUnknown)
			}
		}
	}
}

func inferKind(elementTag, rawURL string) urlutil.ResourceKind {
	if kind := urlutil.InferKindFromElement(urlutil.ElementInfo{Tag: elementTag}); kind != urlutil.KindUnknown {
		return kind
	}
	return urlutil.InferResourceKindFromUrl(rawURL)
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// extractTitle is the degraded-mode fallback when there is no rendered DOM
// to read document.title from.
func extractTitle(htmlText string) string {
	tokenizer := html.NewTokenizer(bytes.NewReader([]byte(htmlText)))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "title" {
				if tokenizer.Next() == html.TextToken {
					return strings.TrimSpace(string(tokenizer.Text()))
				}
				return ""
			}
		}
	}
}
