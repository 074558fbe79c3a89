// Package domharness implements C4: a headless-DOM instance (go-rod driving
// a real Chromium tab) pre-armed with deterministic shims so arbitrary page
// scripts run to completion without fatal errors. A Harness lives for the
// duration of analyzing exactly one document.
package domharness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/use-agent/pagepocket/lperr"
)

// BrowserPool owns the single Chromium process a Run reuses across the
// root document and every recursively-discovered HTML document (C7 feeds
// documents back through the same pool rather than relaunching Chromium
// per page).
type BrowserPool struct {
	browser *rod.Browser
}

// NewBrowserPool launches headless Chromium with the same stealth-friendly
// flag set the teacher uses, minus anything that depends on a proxy or
// binary override (out of this core's scope).
func NewBrowserPool(headless bool) (*BrowserPool, error) {
	l := launcher.New().Headless(headless).NoSandbox(true)
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-dev-shm-usage"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, lperr.Harness("failed to launch headless browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, lperr.Harness("failed to connect to headless browser", err)
	}

	return &BrowserPool{browser: browser}, nil
}

// Close kills the underlying browser process.
func (p *BrowserPool) Close() {
	p.browser.MustClose()
}

// Options configures one Harness instance.
type Options struct {
	HTML         string
	BaseUrl      string // document.baseURI for relative-URL resolution; "" means no base
	Stealth      bool
	SettleTimeMs int // not read by Open/Load; Settle takes its own value and uses 50 when it is not positive
}

// Harness is a live DOM window for exactly one document.
type Harness struct {
	Page *rod.Page
}

// Open creates a tab and installs the base shims (and stealth.JS, if
// requested) but does not yet load any document content. This split exists
// so C5's injector can be installed — also via EvalOnNewDocument — while the
// frame is still blank: patches must be in place before Load runs opts.HTML,
// or early script execution would race the patch installation.
func Open(ctx context.Context, pool *BrowserPool, opts Options) (*Harness, error) {
	page, err := pool.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, lperr.Harness("failed to open tab", err)
	}
	page = page.Context(ctx)

	if opts.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("domharness: stealth injection failed, continuing without it", "error", err)
		}
	}
	if _, err := page.EvalOnNewDocument(baseShimsJS); err != nil {
		// A shim that fails to install is a degraded document, not a fatal
		// one: page scripts may throw later, but we still get partial
		// coverage out of the static walk layered on top in htmlanalyzer.
		slog.Warn("domharness: base shim injection failed", "error", err)
	}

	return &Harness{Page: page}, nil
}

// New is Open followed immediately by Load(opts) — the common case for
// callers (mostly tests) that don't need to pre-arm an injector in between.
func New(ctx context.Context, pool *BrowserPool, opts Options) (*Harness, error) {
	h, err := Open(ctx, pool, opts)
	if err != nil {
		return nil, err
	}
	if err := h.Load(opts); err != nil {
		h.Page.Close()
		return nil, err
	}
	return h, nil
}

// Load points the frame at opts.BaseUrl (if any) without waiting for that
// navigation to complete, then swaps in opts.HTML as the document content.
// This is the standard CDP trick for "render this HTML as if it were
// fetched from this URL" without actually issuing the request: Page.navigate
// begins a real navigation, Page.stopLoading cuts it short before the real
// response is applied, and Page.setDocumentContent replaces whatever
// partial content loaded with ours while leaving the frame's URL (hence
// document.baseURI) pointed at BaseUrl.
func (h *Harness) Load(opts Options) error {
	targetURL := opts.BaseUrl
	if targetURL == "" {
		targetURL = "about:blank"
	}

	if targetURL != "about:blank" {
		_ = h.Page.Navigate(targetURL)
		_ = proto.PageStopLoading{}.Call(h.Page)
	}

	frame, err := proto.PageGetFrameTree{}.Call(h.Page)
	if err != nil {
		return lperr.Harness("failed to resolve frame tree", err)
	}

	if err := (proto.PageSetDocumentContent{
		FrameID: frame.FrameTree.Frame.ID,
		HTML:    opts.HTML,
	}).Call(h.Page); err != nil {
		return lperr.Harness("failed to set document content", err)
	}

	if _, err := h.Page.Eval(loadEventJS); err != nil {
		slog.Debug("domharness: load-event dispatch failed", "error", err)
	}

	return nil
}

// Settle blocks for the document's settle window, giving late-mounted
// scripts time to kick off fetch/XHR/CSS operations before the caller
// extracts final HTML/title and tears the harness down.
func (h *Harness) Settle(ctx context.Context, settleTimeMs int) {
	if settleTimeMs <= 0 {
		settleTimeMs = 50
	}
	select {
	case <-time.After(time.Duration(settleTimeMs) * time.Millisecond):
	case <-ctx.Done():
	}
}

// HTML returns the current serialized document.
func (h *Harness) HTML() (string, error) {
	out, err := h.Page.HTML()
	if err != nil {
		return "", fmt.Errorf("domharness: extract HTML: %w", err)
	}
	return out, nil
}

// Title returns document.title, best-effort.
func (h *Harness) Title() string {
	res, err := h.Page.Eval(`() => document.title`)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// Close tears the harness down: navigates away first (releasing the
// document's in-page resources) then closes the tab.
func (h *Harness) Close() {
	_ = h.Page.Navigate("about:blank")
	_ = h.Page.Close()
}
