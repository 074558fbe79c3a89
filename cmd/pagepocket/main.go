// Command pagepocket runs a single Lighterceptor Run against a URL or a
// file of inline HTML and prints the resulting Snapshot as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/use-agent/pagepocket/config"
	"github.com/use-agent/pagepocket/crawl"
	"github.com/use-agent/pagepocket/domharness"
	"github.com/use-agent/pagepocket/lighterceptor"
)

func main() {
	// ── 1. Parse flags ───────────────────────────────────────────────
	var (
		htmlFile    = flag.String("html-file", "", "path to an inline HTML file to analyze instead of fetching a URL")
		noRecursion = flag.Bool("no-recursion", false, "analyze only the root document; don't follow discovered resources")
		noBrowser   = flag.Bool("no-browser", false, "skip launching headless Chromium; analyze statically only")
	)
	flag.Parse()
	target := flag.Arg(0)
	if target == "" && *htmlFile == "" {
		fmt.Fprintln(os.Stderr, "usage: pagepocket [flags] <url>")
		os.Exit(2)
	}

	// ── 2. Load configuration ────────────────────────────────────────
	cfg := config.Load()

	// ── 3. Initialise structured logging ─────────────────────────────
	initLogger(cfg.Log)
	slog.Info("pagepocket starting",
		"headless", cfg.Browser.Headless,
		"recursion", cfg.Run.Recursion && !*noRecursion,
		"concurrency", cfg.Run.Concurrency,
	)

	// ── 4. Resolve input ──────────────────────────────────────────────
	input := target
	if *htmlFile != "" {
		data, err := os.ReadFile(*htmlFile)
		if err != nil {
			slog.Error("failed to read html file", "path", *htmlFile, "error", err)
			os.Exit(1)
		}
		input = string(data)
	}

	// ── 5. Initialise browser pool (unless disabled) ──────────────────
	var pool *domharness.BrowserPool
	if !*noBrowser {
		p, err := domharness.NewBrowserPool(cfg.Browser.Headless)
		if err != nil {
			slog.Warn("failed to launch headless browser, continuing in degraded mode", "error", err)
		} else {
			pool = p
			defer pool.Close()
		}
	}

	// ── 6. Run ──────────────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Run.DefaultTimeout)
	defer cancel()

	l := lighterceptor.New(input, nil, pool, lighterceptor.RunOptions{
		Recursion:    cfg.Run.Recursion && !*noRecursion,
		SettleTimeMs: cfg.Run.DefaultSettleTimeMs,
	}, crawl.Config{
		Concurrency:    cfg.Run.Concurrency,
		RequestsPerSec: cfg.Run.RequestsPerSec,
		ExcludePattern: cfg.Run.ExcludePattern,
	})

	start := time.Now()
	snap, err := l.Run(ctx)
	if err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
	slog.Info("run complete", "elapsed", time.Since(start), "requests", len(snap.Requests), "degraded", snap.Degraded)

	// ── 7. Emit the snapshot ──────────────────────────────────────────
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		slog.Error("failed to encode snapshot", "error", err)
		os.Exit(1)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	// Logs go to stderr so stdout stays clean for the Snapshot JSON below.
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
