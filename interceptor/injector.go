// Package interceptor implements C5: the injector that monkey-patches every
// URL-consuming surface inside a domharness.Harness and routes each
// observation through a single RequestInterceptor callback.
package interceptor

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ysmood/gson"

	"github.com/use-agent/pagepocket/lperr"
	"github.com/use-agent/pagepocket/urlutil"
)

// Meta carries the context spec §4.5 requires alongside every intercepted
// URL.
type Meta struct {
	Source   urlutil.RequestSource
	Element  string // lowercase tag name, best-effort
	Referrer string
}

// RequestInterceptor is invoked for every URL observed on a patched surface.
// A string or []byte return value is passed back to the page as the result
// of the bridge call; the patches ignore that result, so it does not replace
// the element's content and the page's own resource loading always runs.
// Any other returned kind is a protocol error (§7) and is treated as nil
// after a warning is logged.
type RequestInterceptor func(ctx context.Context, url string, meta Meta) (interface{}, error)

// page is the subset of *rod.Page the injector needs, so tests can supply a
// fake without spinning up a real browser.
type page interface {
	EvalOnNewDocument(js string) (interface{}, error)
	Expose(binding string, fn func(gson.JSON) (interface{}, error)) (func() error, error)
}

// Injector owns the installed patch set and the Go-side bridge for one
// Harness's page.
type Injector struct {
	stop func() error
}

const bindingName = "__lighterceptorReport"

// reportPayload mirrors the JSON object patches.go's report() function
// serializes across the bridge.
type reportPayload struct {
	URL      string `json:"url"`
	Source   string `json:"source"`
	Element  string `json:"element"`
	Referrer string `json:"referrer"`
}

// Install patches p's window and wires its reports to interceptor. The JS
// side self-guards via __lighterceptorInstalled, so the patches are applied
// once per window. The Go side keeps no record of earlier calls: each
// Install exposes the binding and registers the patch script again and
// returns a new Injector with its own stop function.
func Install(ctx context.Context, p page, interceptor RequestInterceptor) (*Injector, error) {
	stop, err := p.Expose(bindingName, func(arg gson.JSON) (interface{}, error) {
		var payload reportPayload
		raw := arg.Str()
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			slog.Warn("interceptor: malformed bridge payload", "error", err)
			return nil, nil
		}

		result, err := interceptor(ctx, payload.URL, Meta{
			Source:   urlutil.RequestSource(payload.Source),
			Element:  payload.Element,
			Referrer: payload.Referrer,
		})
		if err != nil {
			slog.Warn("interceptor: callback returned error", "url", payload.URL, "error", err)
			return nil, nil
		}

		switch result.(type) {
		case nil, string, []byte:
			return result, nil
		default:
			// Protocol error per §7: non-{Buffer,string,null,undefined}
			// results are treated as null so the default loader proceeds.
			slog.Warn("interceptor: callback returned unsupported type, defaulting to nil",
				"url", payload.URL)
			return nil, nil
		}
	})
	if err != nil {
		return nil, lperr.Harness("failed to expose interceptor bridge", err)
	}

	if _, err := p.EvalOnNewDocument(injectorJS(bindingName)); err != nil {
		stop()
		return nil, lperr.Harness("failed to install interceptor patches", err)
	}

	return &Injector{stop: stop}, nil
}

// Close removes the bridge binding. The JS-side patches themselves are not
// reversed — the Harness they live in is torn down immediately after, per
// §4.4's lifecycle.
func (i *Injector) Close() {
	if i.stop != nil {
		_ = i.stop()
	}
}
