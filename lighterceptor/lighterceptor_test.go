package lighterceptor

import (
	"context"
	"testing"

	"github.com/use-agent/pagepocket/crawl"
	"github.com/use-agent/pagepocket/urlutil"
)

func findRecord(records []*crawl.RequestRecord, url string) *crawl.RequestRecord {
	for _, r := range records {
		if r.URL == url {
			return r
		}
	}
	return nil
}

func TestRun_InlineStyleAttribute(t *testing.T) {
	html := `<div style="background-image: url(https://example.com/bg.png);"></div>`
	l := New(html, nil, nil, RunOptions{BaseUrl: "https://example.com/"}, crawl.Config{})

	snap, err := l.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rec := findRecord(snap.Resources, "https://example.com/bg.png")
	if rec == nil {
		t.Fatalf("expected a request record for the background url, got %+v", snap.Resources)
	}
	if rec.Source != urlutil.SourceCSS {
		t.Errorf("got source %s, want css", rec.Source)
	}
}

func TestRun_Srcset(t *testing.T) {
	html := `<img srcset="https://example.com/pic-1x.jpg 1x, https://example.com/pic-2x.jpg 2x">`
	l := New(html, nil, nil, RunOptions{}, crawl.Config{})

	snap, err := l.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, u := range []string{"https://example.com/pic-1x.jpg", "https://example.com/pic-2x.jpg"} {
		rec := findRecord(snap.Resources, u)
		if rec == nil {
			t.Errorf("missing record for %s", u)
			continue
		}
		if rec.Source != urlutil.SourceImg {
			t.Errorf("%s: got source %s, want img", u, rec.Source)
		}
	}
}

func TestRun_EmptyInput(t *testing.T) {
	l := New("", nil, nil, RunOptions{}, crawl.Config{})
	snap, err := l.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(snap.Resources) != 0 {
		t.Errorf("expected zero resources for empty input, got %+v", snap.Resources)
	}
	if snap.CapturedAt == "" {
		t.Error("expected a non-empty capturedAt")
	}
}

func TestRun_DataAndBlobURLsNeverRecorded(t *testing.T) {
	html := `<img src="data:image/png;base64,abc"><a href="blob:https://example.com/123"></a>`
	l := New(html, nil, nil, RunOptions{}, crawl.Config{})
	snap, err := l.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, r := range snap.Resources {
		if r.URL[:5] == "data:" || r.URL[:5] == "blob:" {
			t.Errorf("data:/blob: url leaked into Resources: %s", r.URL)
		}
	}
}
