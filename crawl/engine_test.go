package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/use-agent/pagepocket/httpcache"
	"github.com/use-agent/pagepocket/urlutil"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/site.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte(`@import url("theme.css"); body { background: url("hero.png"); }`))
	})
	mux.HandleFunc("/theme.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte(`.card { background: url("card.png"); }`))
	})
	mux.HandleFunc("/hero.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	})
	mux.HandleFunc("/card.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	})
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte(`import "./feature.js"; fetch("/api/data");`))
	})
	mux.HandleFunc("/feature.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		w.Write([]byte(`console.log("feature");`))
	})
	mux.HandleFunc("/api/data", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/frame.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<link rel="stylesheet" href="frame.css">`))
	})
	mux.HandleFunc("/frame.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte(`body { background: url("frame-bg.png"); }`))
	})
	mux.HandleFunc("/frame-bg.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	})
	return httptest.NewServer(mux)
}

func TestEngine_RecursiveCrawl(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	cache := httpcache.New(srv.Client())
	eng, err := New(cache, nil, Config{Concurrency: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	eng.Record(srv.URL+"/site.css", urlutil.SourceCSS, "")
	eng.Enqueue(srv.URL+"/site.css", urlutil.KindCSS)
	eng.Record(srv.URL+"/app.js", urlutil.SourceResource, "")
	eng.Enqueue(srv.URL+"/app.js", urlutil.KindJS)
	eng.Record(srv.URL+"/frame.html", urlutil.SourceResource, "")
	eng.Enqueue(srv.URL+"/frame.html", urlutil.KindHTML)

	eng.Drain(context.Background())

	records := eng.Table.Records()
	seen := make(map[string]*RequestRecord, len(records))
	for _, r := range records {
		seen[r.URL] = r
	}

	wantURLs := []string{
		srv.URL + "/site.css",
		srv.URL + "/theme.css",
		srv.URL + "/hero.png",
		srv.URL + "/card.png",
		srv.URL + "/app.js",
		srv.URL + "/feature.js",
		srv.URL + "/api/data",
		srv.URL + "/frame.html",
		srv.URL + "/frame.css",
		srv.URL + "/frame-bg.png",
	}
	for _, u := range wantURLs {
		rec, ok := seen[u]
		if !ok {
			t.Errorf("missing request record for %s", u)
			continue
		}
		if rec.Response == nil && rec.Error == "" {
			t.Errorf("%s: fetched but neither Response nor Error set", u)
		}
		if rec.Response != nil && rec.Error != "" {
			t.Errorf("%s: violates P2, both Response and Error set", u)
		}
	}
}

func TestEngine_CyclicCSSImportsTerminate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte(`@import url("b.css");`))
	})
	mux.HandleFunc("/b.css", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte(`@import url("a.css");`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cache := httpcache.New(srv.Client())
	eng, err := New(cache, nil, Config{Concurrency: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	eng.Record(srv.URL+"/a.css", urlutil.SourceCSS, "")
	eng.Enqueue(srv.URL+"/a.css", urlutil.KindCSS)
	eng.Drain(context.Background())

	count := 0
	for _, r := range eng.Table.Records() {
		if r.URL == srv.URL+"/a.css" || r.URL == srv.URL+"/b.css" {
			count++
		}
	}
	if count != 2 {
		t.Errorf("expected exactly one record each for a.css/b.css, got %d total", count)
	}
}

func TestEngine_ExcludePattern(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	cache := httpcache.New(srv.Client())
	eng, err := New(cache, nil, Config{Concurrency: 1, ExcludePattern: "*feature*"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	eng.Record(srv.URL+"/app.js", urlutil.SourceResource, "")
	eng.Enqueue(srv.URL+"/app.js", urlutil.KindJS)
	eng.Drain(context.Background())

	for _, r := range eng.Table.Records() {
		if r.URL == srv.URL+"/feature.js" && (r.Response != nil || r.Error != "") {
			t.Errorf("feature.js matches the exclude pattern and should not have been fetched")
		}
	}
}
